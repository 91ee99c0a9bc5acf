package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const (
	tiktokAPIURL   = "https://open.tiktokapis.com"
	tiktokAuthURL  = "https://www.tiktok.com/v2/auth/authorize/"
	tiktokTokenURL = "https://open.tiktokapis.com/v2/oauth/token/"
)

// TikTokAdapter asks TikTok to pull a video from a public URL.
type TikTokAdapter struct {
	api apiClient
	// PrivacyLevel applies to every post; unaudited apps may only post SELF_ONLY.
	PrivacyLevel string
}

// NewTikTokAdapter targets baseURL (the open API root).
func NewTikTokAdapter(baseURL string, client *http.Client) *TikTokAdapter {
	if baseURL == "" {
		baseURL = tiktokAPIURL
	}
	return &TikTokAdapter{
		api:          newAPIClient(TikTok, baseURL, client, tiktokErrorMessage),
		PrivacyLevel: "SELF_ONLY",
	}
}

type tiktokEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e tiktokEnvelope) failed() bool {
	return e.Error.Code != "" && e.Error.Code != "ok"
}

func (a *TikTokAdapter) Validate(p Payload) error {
	if strings.TrimSpace(p.MediaURL) == "" {
		return newError(ErrInvalidPayload, TikTok, "a video url is required")
	}
	if !isVideo(p.MediaURL) {
		return newError(ErrInvalidPayload, TikTok, "only video media can be posted")
	}
	return nil
}

func (a *TikTokAdapter) Publish(ctx context.Context, acct Account, p Payload) (string, error) {
	if err := requireToken(TikTok, acct); err != nil {
		return "", err
	}
	if err := a.Validate(p); err != nil {
		return "", err
	}

	title := p.Title
	if title == "" {
		title = p.Text
	}
	var out struct {
		tiktokEnvelope
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
	}
	if _, err := a.api.do(ctx, request{
		method: http.MethodPost,
		url:    "/v2/post/publish/video/init/",
		token:  acct.AccessToken,
		json: map[string]interface{}{
			"post_info": map[string]interface{}{
				"title":         title,
				"privacy_level": a.PrivacyLevel,
			},
			"source_info": map[string]string{
				"source":    "PULL_FROM_URL",
				"video_url": p.MediaURL,
			},
		},
	}, &out); err != nil {
		return "", err
	}
	if out.failed() {
		return "", newError(ErrUpstreamRejection, TikTok, "%s", out.Error.Message)
	}
	if out.Data.PublishID == "" {
		return "", newError(ErrUpstreamRejection, TikTok, "publish id missing from response")
	}
	return out.Data.PublishID, nil
}

func tiktokErrorMessage(body []byte) string {
	var e tiktokEnvelope
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Error.Code
}

func newTikTokProvider(clientKey, clientSecret string, api apiClient) *oauthProvider {
	// TikTok names the client id "client_key"
	key := oauth2.SetAuthURLParam("client_key", clientKey)
	return &oauthProvider{
		platform: TikTok,
		conf: oauth2.Config{
			ClientID:     clientKey,
			ClientSecret: clientSecret,
			Scopes:       []string{"user.info.basic,video.publish"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   tiktokAuthURL,
				TokenURL:  tiktokTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		pkce:       true,
		authParams: []oauth2.AuthCodeOption{key},
		api:        api,
		profile: func(ctx context.Context, api apiClient, tok *oauth2.Token) (*Profile, error) {
			var me struct {
				tiktokEnvelope
				Data struct {
					User struct {
						OpenID      string `json:"open_id"`
						DisplayName string `json:"display_name"`
					} `json:"user"`
				} `json:"data"`
			}
			if _, err := api.do(ctx, request{
				method: http.MethodGet,
				url:    "/v2/user/info/?fields=open_id,display_name",
				token:  tok.AccessToken,
			}, &me); err != nil {
				return nil, err
			}
			if me.failed() {
				return nil, newError(ErrUpstreamRejection, TikTok, "%s", me.Error.Message)
			}
			id := me.Data.User.OpenID
			if id == "" {
				if v, ok := tok.Extra("open_id").(string); ok {
					id = v
				}
			}
			if id == "" {
				return nil, newError(ErrUpstreamRejection, TikTok, "profile response has no open id")
			}
			return &Profile{AccountID: id, AccountName: me.Data.User.DisplayName}, nil
		},
	}
}
