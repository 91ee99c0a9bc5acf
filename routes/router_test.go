package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtJustine/scheduler-sub001/config"
	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/oauthflow"
	"github.com/ArtJustine/scheduler-sub001/platforms"
	"github.com/ArtJustine/scheduler-sub001/scheduler"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/store/storetest"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

type echoAdapter struct{}

func (echoAdapter) Validate(p platforms.Payload) error { return nil }

func (echoAdapter) Publish(ctx context.Context, acct platforms.Account, p platforms.Payload) (string, error) {
	return "remote-" + acct.AccountID, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db := storetest.Open(t)
	reg := platforms.NewRegistry()
	reg.Register(platforms.Twitter, echoAdapter{}, nil)

	posts := store.NewPostStore(db)
	creds := store.NewCredentialStore(db)
	cfg := config.AppConfig{
		JWTSecret:          "jwt",
		CronSecret:         "cron",
		AllowedOrigins:     []string{"*"},
		FrontendURL:        "http://localhost:3000",
		RateLimitPerMinute: 1000,
		GinMode:            "test",
	}
	return SetupRouter(cfg, Services{
		DB:         db,
		Posts:      posts,
		Creds:      creds,
		Workspaces: store.NewWorkspaceStore(db),
		Blacklist:  utils.NewTokenBlacklist(nil),
		Registry:   reg,
		Flow:       oauthflow.New(reg, creds, utils.NewTTLStore(nil, "state:"), "http://localhost:8080"),
		Sweeper:    scheduler.New(posts, creds, reg, scheduler.Options{}),
	})
}

type call struct {
	method, path, token string
	body                interface{}
	header              map[string]string
}

func (c call) do(t *testing.T, r http.Handler) (*httptest.ResponseRecorder, utils.JSONResponse) {
	t.Helper()
	var rd io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, rd)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var res utils.JSONResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return w, res
}

func field(t *testing.T, data interface{}, keys ...string) interface{} {
	t.Helper()
	cur := data
	for _, k := range keys {
		m, ok := cur.(map[string]interface{})
		require.True(t, ok, "no object at %q", k)
		cur = m[k]
	}
	return cur
}

func TestPublicEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w, _ := call{method: http.MethodGet, path: "/health"}.do(t, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w, _ = call{method: http.MethodGet, path: "/metrics"}.do(t, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w, res := call{method: http.MethodGet, path: "/api/v1/nope"}.do(t, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, res.Code)

	w, _ = call{method: http.MethodGet, path: "/api/v1/posts"}.do(t, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = call{method: http.MethodPost, path: "/api/v1/cron/publish"}.do(t, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = call{method: http.MethodGet, path: "/api/v1/oauth/twitter/callback?state=forged&code=c"}.do(t, r)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://localhost:3000/dashboard/connections?error=invalid_state&platform=twitter", w.Header().Get("Location"))
}

func TestScheduleAndSweep(t *testing.T) {
	r := newTestRouter(t)

	w, res := call{method: http.MethodPost, path: "/api/v1/auth/register", body: gin.H{
		"email": "ada@example.com", "password": "correct horse", "name": "Ada",
	}}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := field(t, res.Data, "token").(string)
	wsID := field(t, res.Data, "workspace", "id").(string)

	w, _ = call{method: http.MethodPost, path: "/api/v1/auth/register", body: gin.H{
		"email": "ADA@example.com", "password": "correct horse",
	}}.do(t, r)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, res = call{method: http.MethodPost, path: "/api/v1/auth/login", body: gin.H{
		"email": "ada@example.com", "password": "correct horse",
	}}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, field(t, res.Data, "token"))

	w, res = call{method: http.MethodGet, path: "/api/v1/auth/me", token: token}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, field(t, res.Data, "workspaces"), 1)

	w, res = call{method: http.MethodPost, path: "/api/v1/posts", token: token, body: gin.H{
		"platform": "twitter", "caption": "hello",
	}}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	postID := field(t, res.Data, "post", "id").(string)
	assert.Equal(t, wsID, field(t, res.Data, "post", "workspace_id"))

	w, _ = call{method: http.MethodGet, path: "/api/v1/posts", token: token,
		header: map[string]string{middleware.WorkspaceHeader: "someone-elses"}}.do(t, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, res = call{method: http.MethodPost, path: "/api/v1/cron/publish", token: "cron"}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, field(t, res.Data, "processed"))
	assert.EqualValues(t, 1, field(t, res.Data, "failed"))

	w, res = call{method: http.MethodGet, path: "/api/v1/posts/" + postID, token: token}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", field(t, res.Data, "post", "status"))

	w, res = call{method: http.MethodGet, path: "/api/v1/cron/publish", token: "cron"}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, field(t, res.Data, "processed"), "terminal posts are left alone")

	w, res = call{method: http.MethodGet, path: "/api/v1/stats", token: token}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, field(t, res.Data, "failed"))

	w, res = call{method: http.MethodGet, path: "/api/v1/connections/twitter/connect", token: token}.do(t, r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, res.Message)

	w, _ = call{method: http.MethodPost, path: "/api/v1/media", token: token}.do(t, r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = call{method: http.MethodPost, path: "/api/v1/auth/logout", token: token}.do(t, r)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = call{method: http.MethodGet, path: "/api/v1/auth/me", token: token}.do(t, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
