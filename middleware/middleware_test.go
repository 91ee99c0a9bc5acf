package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/store/storetest"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCronSecret(t *testing.T) {
	r := gin.New()
	r.POST("/cron", CronSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/cron", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/cron", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/cron", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)

	off := gin.New()
	off.POST("/cron", CronSecret(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req = httptest.NewRequest(http.MethodPost, "/cron", nil)
	req.Header.Set("Authorization", "Bearer ")
	assert.Equal(t, http.StatusServiceUnavailable, serve(off, req).Code)
}

func TestAuthRequired(t *testing.T) {
	blacklist := utils.NewTokenBlacklist(nil)
	r := gin.New()
	r.GET("/me", AuthRequired("secret", blacklist), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})

	token, err := utils.GenerateToken("secret", "user-7", "u@x.io", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-7", w.Body.String())

	require.NoError(t, blacklist.Revoke(context.Background(), token, time.Now().Add(time.Hour)))
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestWorkspaceRequired(t *testing.T) {
	workspaces := store.NewWorkspaceStore(storetest.Open(t))
	ctx := context.Background()
	def := &models.Workspace{OwnerID: "u1", Name: "Default"}
	require.NoError(t, workspaces.Create(ctx, def))
	other := &models.Workspace{OwnerID: "u2", Name: "Not mine"}
	require.NoError(t, workspaces.Create(ctx, other))

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { c.Set(ContextUserIDKey, "u1") }, WorkspaceRequired(workspaces), func(c *gin.Context) {
		c.String(http.StatusOK, WorkspaceID(c))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, def.ID, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set(WorkspaceHeader, other.ID)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(4)
	now := time.Now()
	assert.True(t, l.allow("a", now))
	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now), "burst is half the per-minute rate")
	assert.True(t, l.allow("b", now))
	assert.True(t, l.allow("a", now.Add(15*time.Second)))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/", RequestID(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	assert.Equal(t, "upstream-id", serve(r, req).Header().Get(RequestIDHeader))
}
