package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const (
	twitterAPIURL   = "https://api.twitter.com"
	twitterAuthURL  = "https://twitter.com/i/oauth2/authorize"
	twitterTokenURL = "https://api.twitter.com/2/oauth2/token"
	tweetMaxRunes   = 280
)

// TwitterAdapter creates posts through the X API v2.
type TwitterAdapter struct {
	api apiClient
}

// NewTwitterAdapter targets baseURL (the API host root).
func NewTwitterAdapter(baseURL string, client *http.Client) *TwitterAdapter {
	if baseURL == "" {
		baseURL = twitterAPIURL
	}
	return &TwitterAdapter{api: newAPIClient(Twitter, baseURL, client, twitterErrorMessage)}
}

// tweetText appends the media link; media upload needs the v1.1 API.
func tweetText(p Payload) string {
	text := strings.TrimSpace(p.Text)
	if p.MediaURL == "" {
		return text
	}
	if text == "" {
		return p.MediaURL
	}
	return text + " " + p.MediaURL
}

func (a *TwitterAdapter) Validate(p Payload) error {
	text := tweetText(p)
	if text == "" {
		return newError(ErrInvalidPayload, Twitter, "text is required")
	}
	if len([]rune(text)) > tweetMaxRunes {
		return newError(ErrInvalidPayload, Twitter, "post exceeds %d characters", tweetMaxRunes)
	}
	return nil
}

func (a *TwitterAdapter) Publish(ctx context.Context, acct Account, p Payload) (string, error) {
	if err := requireToken(Twitter, acct); err != nil {
		return "", err
	}
	if err := a.Validate(p); err != nil {
		return "", err
	}
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if _, err := a.api.do(ctx, request{
		method: http.MethodPost,
		url:    "/2/tweets",
		token:  acct.AccessToken,
		json:   map[string]string{"text": tweetText(p)},
	}, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", newError(ErrUpstreamRejection, Twitter, "tweet id missing from response")
	}
	return out.Data.ID, nil
}

func twitterErrorMessage(body []byte) string {
	var e struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Errors) > 0:
		return e.Errors[0].Message
	default:
		return e.Title
	}
}

func newTwitterProvider(clientID, clientSecret string, api apiClient) *oauthProvider {
	return &oauthProvider{
		platform: Twitter,
		conf: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   twitterAuthURL,
				TokenURL:  twitterTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		pkce:        true,
		refreshable: true,
		api:         api,
		profile: func(ctx context.Context, api apiClient, tok *oauth2.Token) (*Profile, error) {
			var me struct {
				Data struct {
					ID       string `json:"id"`
					Name     string `json:"name"`
					Username string `json:"username"`
				} `json:"data"`
			}
			if _, err := api.do(ctx, request{method: http.MethodGet, url: "/2/users/me", token: tok.AccessToken}, &me); err != nil {
				return nil, err
			}
			if me.Data.ID == "" {
				return nil, newError(ErrUpstreamRejection, Twitter, "profile response has no user id")
			}
			return &Profile{AccountID: me.Data.ID, AccountName: "@" + me.Data.Username}, nil
		},
	}
}
