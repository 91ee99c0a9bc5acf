package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	youTubeAPIURL    = "https://www.googleapis.com"
	youTubeMaxTitle  = 100
	youTubeUploadCap = 256 << 20
)

// YouTubeAdapter uploads a video with the resumable upload protocol: a
// session is opened with the metadata, then the bytes are sent to it.
type YouTubeAdapter struct {
	api apiClient
	// PrivacyStatus of uploaded videos.
	PrivacyStatus string
}

// NewYouTubeAdapter targets baseURL (the googleapis root).
func NewYouTubeAdapter(baseURL string, client *http.Client) *YouTubeAdapter {
	if baseURL == "" {
		baseURL = youTubeAPIURL
	}
	return &YouTubeAdapter{
		api:           newAPIClient(YouTube, baseURL, client, googleErrorMessage),
		PrivacyStatus: "public",
	}
}

func (a *YouTubeAdapter) Validate(p Payload) error {
	if strings.TrimSpace(p.MediaURL) == "" {
		return newError(ErrInvalidPayload, YouTube, "a video url is required")
	}
	if len([]rune(p.Title)) > youTubeMaxTitle {
		return newError(ErrInvalidPayload, YouTube, "title exceeds %d characters", youTubeMaxTitle)
	}
	return nil
}

func youTubeTitle(p Payload) string {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = strings.TrimSpace(strings.SplitN(p.Text, "\n", 2)[0])
	}
	if r := []rune(title); len(r) > youTubeMaxTitle {
		title = string(r[:youTubeMaxTitle])
	}
	if title == "" {
		title = "Untitled"
	}
	return title
}

func (a *YouTubeAdapter) Publish(ctx context.Context, acct Account, p Payload) (string, error) {
	if err := requireToken(YouTube, acct); err != nil {
		return "", err
	}
	if err := a.Validate(p); err != nil {
		return "", err
	}

	res, err := a.api.do(ctx, request{
		method: http.MethodPost,
		url:    "/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status",
		token:  acct.AccessToken,
		json: map[string]interface{}{
			"snippet": map[string]string{"title": youTubeTitle(p), "description": p.Text},
			"status":  map[string]string{"privacyStatus": a.PrivacyStatus},
		},
	}, nil)
	if err != nil {
		return "", err
	}
	session := res.header.Get("Location")
	if session == "" {
		return "", newError(ErrUpstreamRejection, YouTube, "upload session url missing from response")
	}

	media, err := a.fetchMedia(ctx, p.MediaURL)
	if err != nil {
		return "", orphaned(err, "upload session")
	}
	defer media.Body.Close()

	ctype := media.Header.Get("Content-Type")
	if ctype == "" || !strings.HasPrefix(ctype, "video/") {
		ctype = "video/*"
	}
	var out struct {
		ID string `json:"id"`
	}
	if _, err := a.api.do(ctx, request{
		method: http.MethodPut,
		url:    session,
		token:  acct.AccessToken,
		body:   media.Body,
		ctype:  ctype,
	}, &out); err != nil {
		return "", orphaned(err, "upload session")
	}
	if out.ID == "" {
		return "", newError(ErrUpstreamRejection, YouTube, "video id missing from upload response")
	}
	return out.ID, nil
}

func (a *YouTubeAdapter) fetchMedia(ctx context.Context, mediaURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, newError(ErrInvalidPayload, YouTube, "bad media url: %v", err)
	}
	resp, err := a.api.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrNetworkFailure, Platform: YouTube, Message: "fetching media: " + transportMessage(err), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		kind := ErrUpstreamRejection
		if resp.StatusCode >= 500 {
			kind = ErrNetworkFailure
		}
		return nil, &Error{Kind: kind, Platform: YouTube, Status: resp.StatusCode, Message: fmt.Sprintf("fetching media: HTTP %d", resp.StatusCode)}
	}
	if resp.ContentLength > youTubeUploadCap {
		resp.Body.Close()
		return nil, newError(ErrInvalidPayload, YouTube, "media is larger than %d MB", youTubeUploadCap>>20)
	}
	return resp, nil
}

func googleErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error.Message
}

func newYouTubeProvider(clientID, clientSecret string, api apiClient) *oauthProvider {
	return &oauthProvider{
		platform: YouTube,
		conf: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes: []string{
				"https://www.googleapis.com/auth/youtube.upload",
				"https://www.googleapis.com/auth/youtube.readonly",
			},
			Endpoint: google.Endpoint,
		},
		refreshable: true,
		authParams:  []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")},
		api:         api,
		profile: func(ctx context.Context, api apiClient, tok *oauth2.Token) (*Profile, error) {
			var channels struct {
				Items []struct {
					ID      string `json:"id"`
					Snippet struct {
						Title string `json:"title"`
					} `json:"snippet"`
				} `json:"items"`
			}
			if _, err := api.do(ctx, request{
				method: http.MethodGet,
				url:    "/youtube/v3/channels?part=snippet&mine=true",
				token:  tok.AccessToken,
			}, &channels); err != nil {
				return nil, err
			}
			if len(channels.Items) == 0 {
				return nil, newError(ErrUpstreamRejection, YouTube, "no youtube channel is linked to this account")
			}
			ch := channels.Items[0]
			return &Profile{AccountID: ch.ID, AccountName: ch.Snippet.Title}, nil
		},
	}
}
