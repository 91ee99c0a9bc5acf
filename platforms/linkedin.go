package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const (
	linkedInAPIURL   = "https://api.linkedin.com"
	linkedInAuthURL  = "https://www.linkedin.com/oauth/v2/authorization"
	linkedInTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
	linkedInMaxRunes = 3000
)

// LinkedInAdapter shares member posts through the UGC API.
type LinkedInAdapter struct {
	api apiClient
}

// NewLinkedInAdapter targets baseURL (the API host root).
func NewLinkedInAdapter(baseURL string, client *http.Client) *LinkedInAdapter {
	if baseURL == "" {
		baseURL = linkedInAPIURL
	}
	return &LinkedInAdapter{api: newAPIClient(LinkedIn, baseURL, client, linkedInErrorMessage)}
}

func (a *LinkedInAdapter) Validate(p Payload) error {
	if strings.TrimSpace(p.Text) == "" {
		return newError(ErrInvalidPayload, LinkedIn, "text is required")
	}
	if len([]rune(p.Text)) > linkedInMaxRunes {
		return newError(ErrInvalidPayload, LinkedIn, "post exceeds %d characters", linkedInMaxRunes)
	}
	return nil
}

func (a *LinkedInAdapter) Publish(ctx context.Context, acct Account, p Payload) (string, error) {
	if err := requireToken(LinkedIn, acct); err != nil {
		return "", err
	}
	if err := a.Validate(p); err != nil {
		return "", err
	}
	if acct.AccountID == "" {
		return "", newError(ErrNotConnected, LinkedIn, "member id missing from connection")
	}

	share := map[string]interface{}{
		"shareCommentary":    map[string]string{"text": p.Text},
		"shareMediaCategory": "NONE",
	}
	if p.MediaURL != "" {
		media := map[string]interface{}{"status": "READY", "originalUrl": p.MediaURL}
		if p.Title != "" {
			media["title"] = map[string]string{"text": p.Title}
		}
		share["shareMediaCategory"] = "ARTICLE"
		share["media"] = []interface{}{media}
	}
	body := map[string]interface{}{
		"author":          "urn:li:person:" + acct.AccountID,
		"lifecycleState":  "PUBLISHED",
		"specificContent": map[string]interface{}{"com.linkedin.ugc.ShareContent": share},
		"visibility":      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	var out struct {
		ID string `json:"id"`
	}
	res, err := a.api.do(ctx, request{
		method:  http.MethodPost,
		url:     "/v2/ugcPosts",
		token:   acct.AccessToken,
		json:    body,
		headers: map[string]string{"X-Restli-Protocol-Version": "2.0.0"},
	}, &out)
	if err != nil {
		return "", err
	}
	id := res.header.Get("X-RestLi-Id")
	if id == "" {
		id = out.ID
	}
	if id == "" {
		return "", newError(ErrUpstreamRejection, LinkedIn, "share id missing from response")
	}
	return id, nil
}

func linkedInErrorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Message
}

func newLinkedInProvider(clientID, clientSecret string, api apiClient) *oauthProvider {
	return &oauthProvider{
		platform: LinkedIn,
		conf: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"openid", "profile", "w_member_social"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   linkedInAuthURL,
				TokenURL:  linkedInTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshable: true,
		api:         api,
		profile: func(ctx context.Context, api apiClient, tok *oauth2.Token) (*Profile, error) {
			var me struct {
				Sub  string `json:"sub"`
				Name string `json:"name"`
			}
			if _, err := api.do(ctx, request{method: http.MethodGet, url: "/v2/userinfo", token: tok.AccessToken}, &me); err != nil {
				return nil, err
			}
			if me.Sub == "" {
				return nil, newError(ErrUpstreamRejection, LinkedIn, "profile response has no member id")
			}
			return &Profile{AccountID: me.Sub, AccountName: me.Name}, nil
		},
	}
}
