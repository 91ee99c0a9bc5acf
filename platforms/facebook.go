package platforms

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const facebookGraphURL = "https://graph.facebook.com/v21.0"

// FacebookAdapter posts to a Facebook Page with a page access token.
type FacebookAdapter struct {
	api apiClient
}

// NewFacebookAdapter targets baseURL (the Graph API root).
func NewFacebookAdapter(baseURL string, client *http.Client) *FacebookAdapter {
	if baseURL == "" {
		baseURL = facebookGraphURL
	}
	return &FacebookAdapter{api: newAPIClient(Facebook, baseURL, client, graphErrorMessage)}
}

func (a *FacebookAdapter) Validate(p Payload) error {
	if strings.TrimSpace(p.Text) == "" && strings.TrimSpace(p.MediaURL) == "" {
		return newError(ErrInvalidPayload, Facebook, "text or media is required")
	}
	return nil
}

func (a *FacebookAdapter) Publish(ctx context.Context, acct Account, p Payload) (string, error) {
	if err := requireToken(Facebook, acct); err != nil {
		return "", err
	}
	if err := a.Validate(p); err != nil {
		return "", err
	}
	if acct.AccountID == "" {
		return "", newError(ErrNotConnected, Facebook, "no page is linked to this connection")
	}

	page := "/" + url.PathEscape(acct.AccountID)
	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	req := request{method: http.MethodPost, token: acct.AccessToken}
	switch {
	case p.MediaURL != "" && isVideo(p.MediaURL):
		req.url = page + "/videos"
		req.form = url.Values{"file_url": {p.MediaURL}, "description": {p.Text}}
		if p.Title != "" {
			req.form.Set("title", p.Title)
		}
	case p.MediaURL != "":
		req.url = page + "/photos"
		req.form = url.Values{"url": {p.MediaURL}, "caption": {p.Text}}
	default:
		req.url = page + "/feed"
		req.form = url.Values{"message": {p.Text}}
	}
	if _, err := a.api.do(ctx, req, &out); err != nil {
		return "", err
	}
	if out.PostID != "" {
		return out.PostID, nil
	}
	if out.ID == "" {
		return "", newError(ErrUpstreamRejection, Facebook, "post id missing from response")
	}
	return out.ID, nil
}

func newFacebookProvider(clientID, clientSecret string, api apiClient) *oauthProvider {
	return &oauthProvider{
		platform: Facebook,
		conf: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"pages_show_list", "pages_manage_posts", "pages_read_engagement"},
			Endpoint:     facebook.Endpoint,
		},
		api: api,
		profile: func(ctx context.Context, api apiClient, tok *oauth2.Token) (*Profile, error) {
			var pages struct {
				Data []struct {
					ID          string `json:"id"`
					Name        string `json:"name"`
					AccessToken string `json:"access_token"`
				} `json:"data"`
			}
			if _, err := api.do(ctx, request{
				method: http.MethodGet,
				url:    "/me/accounts?fields=id,name,access_token",
				token:  tok.AccessToken,
			}, &pages); err != nil {
				return nil, err
			}
			if len(pages.Data) == 0 {
				return nil, newError(ErrUpstreamRejection, Facebook, "no facebook pages are available to this account")
			}
			pg := pages.Data[0]
			return &Profile{AccountID: pg.ID, AccountName: pg.Name, AccessToken: pg.AccessToken}, nil
		},
	}
}
