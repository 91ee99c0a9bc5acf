package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtJustine/scheduler-sub001/media"
	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/oauthflow"
	"github.com/ArtJustine/scheduler-sub001/platforms"
	"github.com/ArtJustine/scheduler-sub001/scheduler"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/store/storetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAdapter struct {
	calls int
}

func (a *stubAdapter) Validate(p platforms.Payload) error {
	if len(p.Text) > 280 {
		return &platforms.Error{Kind: platforms.ErrInvalidPayload, Platform: platforms.Twitter, Message: "text exceeds 280 characters"}
	}
	return nil
}

func (a *stubAdapter) Publish(ctx context.Context, acct platforms.Account, p platforms.Payload) (string, error) {
	a.calls++
	return "tw-1", nil
}

type env struct {
	router  *gin.Engine
	posts   *store.PostStore
	creds   *store.CredentialStore
	ws      *models.Workspace
	adapter *stubAdapter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := storetest.Open(t)
	e := &env{
		posts:   store.NewPostStore(db),
		creds:   store.NewCredentialStore(db),
		ws:      &models.Workspace{OwnerID: "u1", Name: "main"},
		adapter: &stubAdapter{},
	}
	require.NoError(t, store.NewWorkspaceStore(db).Create(context.Background(), e.ws))

	reg := platforms.NewRegistry()
	reg.Register(platforms.Twitter, e.adapter, nil)
	sweeper := scheduler.New(e.posts, e.creds, reg, scheduler.Options{})
	pc := NewPostController(e.posts, sweeper, reg)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, "u1")
		c.Set(middleware.ContextWorkspaceIDKey, e.ws.ID)
	})
	r.GET("/posts", pc.ListPosts)
	r.POST("/posts", pc.CreatePost)
	r.GET("/posts/:id", pc.GetPost)
	r.PUT("/posts/:id", pc.UpdatePost)
	r.DELETE("/posts/:id", pc.DeletePost)
	r.POST("/posts/:id/publish-now", pc.PublishNow)
	e.router = r
	return e
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func postOf(t *testing.T, res envelope) models.Post {
	t.Helper()
	var data struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	return data.Post
}

func TestCreatePost(t *testing.T) {
	e := newEnv(t)
	due := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	w, res := do(t, e.router, http.MethodPost, "/posts", gin.H{
		"platform":     "X",
		"caption":      "<b>launch</b> day",
		"scheduled_at": due.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	post := postOf(t, res)
	assert.Equal(t, "twitter", post.Platform)
	assert.Equal(t, "launch day", post.Caption)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.True(t, due.Equal(post.ScheduledAt))
	assert.Equal(t, e.ws.ID, post.WorkspaceID)
	assert.Equal(t, "u1", post.UserID)

	cases := map[string]gin.H{
		"unknown platform":  {"platform": "myspace", "caption": "hi"},
		"no adapter":        {"platform": "instagram", "caption": "hi", "media_url": "https://x/y.jpg"},
		"no content":        {"platform": "twitter", "caption": "  "},
		"relative media":    {"platform": "twitter", "media_url": "/y.jpg"},
		"bad due time":      {"platform": "twitter", "caption": "hi", "scheduled_at": "tomorrow"},
		"adapter rejection": {"platform": "twitter", "caption": strings.Repeat("a", 281)},
	}
	for name, body := range cases {
		w, _ := do(t, e.router, http.MethodPost, "/posts", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestCreatePostDefaultsToNow(t *testing.T) {
	e := newEnv(t)
	before := time.Now().Add(-time.Second)

	w, res := do(t, e.router, http.MethodPost, "/posts", gin.H{"platform": "twitter", "caption": "now"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, postOf(t, res).ScheduledAt.After(before))
}

func TestUpdatePost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	post := &models.Post{WorkspaceID: e.ws.ID, UserID: "u1", Platform: "twitter", Caption: "draft", ScheduledAt: time.Now().Add(time.Hour)}
	require.NoError(t, e.posts.Create(ctx, post))

	w, res := do(t, e.router, http.MethodPut, "/posts/"+post.ID, gin.H{"caption": "final"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "final", postOf(t, res).Caption)

	w, _ = do(t, e.router, http.MethodPut, "/posts/"+post.ID, gin.H{"scheduled_at": time.Now().Format(time.RFC3339)})
	assert.Equal(t, http.StatusConflict, w.Code, "due time is immutable")

	_, err := e.posts.MarkFailed(ctx, post.ID, "boom", 1)
	require.NoError(t, err)
	w, _ = do(t, e.router, http.MethodPut, "/posts/"+post.ID, gin.H{"caption": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, e.router, http.MethodPut, "/posts/missing", gin.H{"caption": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndDeletePosts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, e.posts.Create(ctx, &models.Post{
			WorkspaceID: e.ws.ID, UserID: "u1", Platform: "twitter", Caption: "p",
			ScheduledAt: time.Now().Add(time.Duration(i+1) * time.Hour),
		}))
	}

	w, res := do(t, e.router, http.MethodGet, "/posts?page=2&page_size=2&status=scheduled", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Items      []models.Post `json:"items"`
		Pagination struct {
			Total      int64 `json:"total"`
			TotalPages int   `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	assert.Len(t, data.Items, 1)
	assert.EqualValues(t, 3, data.Pagination.Total)
	assert.Equal(t, 2, data.Pagination.TotalPages)

	w, _ = do(t, e.router, http.MethodGet, "/posts?status=pending", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, e.router, http.MethodDelete, "/posts/"+data.Items[0].ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, e.router, http.MethodGet, "/posts/"+data.Items[0].ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishNow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	post := &models.Post{WorkspaceID: e.ws.ID, UserID: "u1", Platform: "twitter", Caption: "soon", ScheduledAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, e.posts.Create(ctx, post))

	w, res := do(t, e.router, http.MethodPost, "/posts/"+post.ID+"/publish-now", nil)
	require.Equal(t, http.StatusOK, w.Code)
	failed := postOf(t, res)
	assert.Equal(t, models.PostStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "no connected account")
	assert.Zero(t, e.adapter.calls)

	require.NoError(t, e.creds.Upsert(ctx, &models.Credential{
		WorkspaceID: e.ws.ID, Platform: "twitter", AccessToken: "tok", Connected: true,
	}))
	w, res = do(t, e.router, http.MethodPost, "/posts/"+post.ID+"/publish-now", nil)
	require.Equal(t, http.StatusOK, w.Code)
	published := postOf(t, res)
	assert.Equal(t, models.PostStatusPublished, published.Status)
	assert.Equal(t, "tw-1", published.PlatformPostID)
	assert.NotNil(t, published.PublishedAt)
	assert.Empty(t, published.Error)

	w, _ = do(t, e.router, http.MethodPost, "/posts/"+post.ID+"/publish-now", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "published posts are final")
	assert.Equal(t, 1, e.adapter.calls)
}

type fakeFlow struct {
	cred *models.Credential
	err  error
}

func (f *fakeFlow) Begin(ctx context.Context, p platforms.Platform, userID, workspaceID string) (*oauthflow.Start, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oauthflow.Start{AuthURL: "https://auth.example/" + string(p), State: "st"}, nil
}

func (f *fakeFlow) Complete(ctx context.Context, p platforms.Platform, cb oauthflow.Callback) (*models.Credential, error) {
	return f.cred, f.err
}

func TestCallbackRedirects(t *testing.T) {
	db := storetest.Open(t)
	creds := store.NewCredentialStore(db)
	flow := &fakeFlow{cred: &models.Credential{Platform: "linkedin", AccountName: "Ada L"}}
	cc := NewConnectionController(flow, creds, platforms.NewRegistry(), "https://app.example/")
	r := gin.New()
	r.GET("/oauth/:platform/callback", cc.Callback)

	w, _ := do(t, r, http.MethodGet, "/oauth/linkedin/callback?code=c&state=s", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.example/dashboard/connections?success=linkedin", w.Header().Get("Location"))
	cookie := w.Result().Cookies()
	require.Len(t, cookie, 1)
	assert.Equal(t, HandoverCookie, cookie[0].Name)
	assert.False(t, cookie[0].HttpOnly)
	assert.True(t, cookie[0].Secure)
	raw, err := url.QueryUnescape(cookie[0].Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"platform":"linkedin","account_name":"Ada L"}`, raw)
	assert.NotContains(t, raw, "token")

	flow.err = &oauthflow.Failure{Platform: platforms.LinkedIn, Reason: oauthflow.ReasonInvalidState}
	w, _ = do(t, r, http.MethodGet, "/oauth/linkedin/callback?code=c&state=forged", nil)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "invalid_state", loc.Query().Get("error"))
	assert.Empty(t, w.Result().Cookies())

	w, _ = do(t, r, http.MethodGet, "/oauth/myspace/callback", nil)
	assert.Contains(t, w.Header().Get("Location"), "error=unsupported_platform")
}

func TestConnectionsListConnectDisconnect(t *testing.T) {
	db := storetest.Open(t)
	creds := store.NewCredentialStore(db)
	ctx := context.Background()
	require.NoError(t, creds.Upsert(ctx, &models.Credential{
		WorkspaceID: "ws1", Platform: "twitter", AccountName: "@ada", AccessToken: "secret-token", Connected: true,
	}))

	flow := &fakeFlow{}
	cc := NewConnectionController(flow, creds, platforms.NewRegistry(), "http://localhost:3000")
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextWorkspaceIDKey, "ws1") })
	r.GET("/connections", cc.List)
	r.GET("/connections/:platform/connect", cc.Connect)
	r.DELETE("/connections/:platform", cc.Disconnect)

	w, res := do(t, r, http.MethodGet, "/connections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-token")
	var data struct {
		Items []connectionView `json:"items"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	require.Len(t, data.Items, len(platforms.Known))
	for _, it := range data.Items {
		assert.False(t, it.Configured)
		assert.Equal(t, it.Platform == platforms.Twitter, it.Connected, it.Platform)
	}

	w, res = do(t, r, http.MethodGet, "/connections/tiktok/connect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var start oauthflow.Start
	require.NoError(t, json.Unmarshal(res.Data, &start))
	assert.Equal(t, "https://auth.example/tiktok", start.AuthURL)

	flow.err = &platforms.Error{Kind: platforms.ErrConfigurationMissing, Platform: platforms.TikTok}
	w, _ = do(t, r, http.MethodGet, "/connections/tiktok/connect", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/connections/twitter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cred, err := creds.Find(ctx, "ws1", "twitter")
	require.NoError(t, err)
	assert.False(t, cred.Connected)
	assert.Empty(t, cred.AccessToken)
	assert.Equal(t, "@ada", cred.AccountName)

	w, _ = do(t, r, http.MethodDelete, "/connections/youtube", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type fakeSweep struct {
	report *scheduler.Report
	err    error
}

func (f fakeSweep) Run(ctx context.Context) (*scheduler.Report, error) { return f.report, f.err }

func TestCronPublish(t *testing.T) {
	tests := []struct {
		name   string
		sweep  fakeSweep
		status int
	}{
		{"ok", fakeSweep{report: &scheduler.Report{Processed: 2, Published: 1, Failed: 1}}, http.StatusOK},
		{"overlap", fakeSweep{err: scheduler.ErrSweepInProgress}, http.StatusConflict},
		{"store down", fakeSweep{err: errors.New("db gone")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/cron", NewCronController(tt.sweep).Publish)
			w, res := do(t, r, http.MethodPost, "/cron", nil)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				var rep scheduler.Report
				require.NoError(t, json.Unmarshal(res.Data, &rep))
				assert.Equal(t, 2, rep.Processed)
			}
		})
	}
}

type memoryMedia struct {
	err error
}

func (m memoryMedia) Upload(ctx context.Context, workspaceID string, r io.Reader) (*media.Object, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, _ := io.ReadAll(r)
	return &media.Object{Path: workspaceID + "/a.png", URL: "https://cdn.example/" + workspaceID + "/a.png", Size: int64(len(data))}, nil
}

func (m memoryMedia) Delete(ctx context.Context, objectPath string) error { return nil }

func uploadRequest(t *testing.T, field string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "a.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMediaUpload(t *testing.T) {
	serve := func(ms media.Store, req *http.Request) *httptest.ResponseRecorder {
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set(middleware.ContextWorkspaceIDKey, "ws1") })
		r.POST("/media", NewMediaController(ms).Upload)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusServiceUnavailable, serve(nil, uploadRequest(t, "file")).Code)

	w := serve(memoryMedia{}, uploadRequest(t, "file"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://cdn.example/ws1/a.png")

	assert.Equal(t, http.StatusBadRequest, serve(memoryMedia{}, uploadRequest(t, "other")).Code)
	assert.Equal(t, http.StatusBadRequest, serve(memoryMedia{err: media.ErrUnsupportedType}, uploadRequest(t, "file")).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(memoryMedia{err: media.ErrTooLarge}, uploadRequest(t, "file")).Code)
}

func TestParsePagination(t *testing.T) {
	page, size := parsePagination("", "")
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = parsePagination("3", "500")
	assert.Equal(t, 3, page)
	assert.Equal(t, 20, size)

	page, size = parsePagination("-1", "50")
	assert.Equal(t, 1, page)
	assert.Equal(t, 50, size)
}
