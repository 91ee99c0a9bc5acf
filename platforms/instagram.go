package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	instagramGraphURL = "https://graph.instagram.com/v21.0"
	instagramAuthURL  = "https://www.instagram.com/oauth/authorize"
	instagramTokenURL = "https://api.instagram.com/oauth/access_token"
	instagramCaption  = 2200
)

// InstagramAdapter publishes through the Instagram Graph API: a media
// container is created first and then published.
type InstagramAdapter struct {
	api apiClient
	// PollInterval and PollAttempts bound the wait for video containers.
	PollInterval time.Duration
	PollAttempts int
}

// NewInstagramAdapter targets baseURL (the Graph API root).
func NewInstagramAdapter(baseURL string, client *http.Client) *InstagramAdapter {
	if baseURL == "" {
		baseURL = instagramGraphURL
	}
	return &InstagramAdapter{
		api:          newAPIClient(Instagram, baseURL, client, graphErrorMessage),
		PollInterval: 3 * time.Second,
		PollAttempts: 10,
	}
}

func (a *InstagramAdapter) Validate(p Payload) error {
	if strings.TrimSpace(p.MediaURL) == "" {
		return newError(ErrInvalidPayload, Instagram, "a media url is required")
	}
	if len([]rune(p.Text)) > instagramCaption {
		return newError(ErrInvalidPayload, Instagram, "caption exceeds %d characters", instagramCaption)
	}
	return nil
}

func (a *InstagramAdapter) Publish(ctx context.Context, acct Account, p Payload) (string, error) {
	if err := requireToken(Instagram, acct); err != nil {
		return "", err
	}
	if err := a.Validate(p); err != nil {
		return "", err
	}

	form := url.Values{"caption": {p.Text}}
	video := isVideo(p.MediaURL)
	if video {
		form.Set("media_type", "REELS")
		form.Set("video_url", p.MediaURL)
	} else {
		form.Set("image_url", p.MediaURL)
	}

	var container struct {
		ID string `json:"id"`
	}
	if _, err := a.api.do(ctx, request{
		method: http.MethodPost,
		url:    "/" + url.PathEscape(accountOrMe(acct)) + "/media",
		token:  acct.AccessToken,
		form:   form,
	}, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", newError(ErrUpstreamRejection, Instagram, "media container id missing from response")
	}

	if video {
		if err := a.waitForContainer(ctx, acct, container.ID); err != nil {
			return "", orphaned(err, "media container "+container.ID)
		}
	}

	var published struct {
		ID string `json:"id"`
	}
	if _, err := a.api.do(ctx, request{
		method: http.MethodPost,
		url:    "/" + url.PathEscape(accountOrMe(acct)) + "/media_publish",
		token:  acct.AccessToken,
		form:   url.Values{"creation_id": {container.ID}},
	}, &published); err != nil {
		return "", orphaned(err, "media container "+container.ID)
	}
	if published.ID == "" {
		return "", orphaned(newError(ErrUpstreamRejection, Instagram, "media id missing from publish response"), "media container "+container.ID)
	}
	return published.ID, nil
}

func (a *InstagramAdapter) waitForContainer(ctx context.Context, acct Account, id string) error {
	for i := 0; i < a.PollAttempts; i++ {
		var st struct {
			StatusCode string `json:"status_code"`
		}
		if _, err := a.api.do(ctx, request{
			method: http.MethodGet,
			url:    "/" + url.PathEscape(id) + "?fields=status_code",
			token:  acct.AccessToken,
		}, &st); err != nil {
			return err
		}
		switch st.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return newError(ErrUpstreamRejection, Instagram, "media container %s", strings.ToLower(st.StatusCode))
		}
		if err := sleepCtx(ctx, a.PollInterval); err != nil {
			return &Error{Kind: ErrNetworkFailure, Platform: Instagram, Message: "waiting for media container", Err: err}
		}
	}
	return newError(ErrNetworkFailure, Instagram, "media container not ready after %d checks", a.PollAttempts)
}

func newInstagramProvider(clientID, clientSecret string, api apiClient) *oauthProvider {
	return &oauthProvider{
		platform: Instagram,
		conf: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"instagram_business_basic,instagram_business_content_publish"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   instagramAuthURL,
				TokenURL:  instagramTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		api: api,
		profile: func(ctx context.Context, api apiClient, tok *oauth2.Token) (*Profile, error) {
			var me struct {
				UserID   string `json:"user_id"`
				ID       string `json:"id"`
				Username string `json:"username"`
			}
			if _, err := api.do(ctx, request{
				method: http.MethodGet,
				url:    "/me?fields=user_id,username",
				token:  tok.AccessToken,
			}, &me); err != nil {
				return nil, err
			}
			id := me.UserID
			if id == "" {
				id = me.ID
			}
			if id == "" {
				return nil, newError(ErrUpstreamRejection, Instagram, "profile response has no user id")
			}
			return &Profile{AccountID: id, AccountName: me.Username}, nil
		},
	}
}

func accountOrMe(acct Account) string {
	if acct.AccountID == "" {
		return "me"
	}
	return acct.AccountID
}

func isVideo(mediaURL string) bool {
	u, err := url.Parse(mediaURL)
	path := mediaURL
	if err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, ext := range []string{".mp4", ".mov", ".m4v", ".webm"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// orphaned notes the step-one asset left behind when a later step fails.
func orphaned(err error, asset string) error {
	var pe *Error
	if !errors.As(err, &pe) {
		return err
	}
	cp := *pe
	msg := pe.Message
	if msg == "" {
		msg = pe.Kind.Error()
	}
	cp.Message = fmt.Sprintf("%s (%s was left unpublished)", msg, asset)
	return &cp
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
