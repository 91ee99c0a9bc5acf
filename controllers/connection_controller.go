package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/oauthflow"
	"github.com/ArtJustine/scheduler-sub001/platforms"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

const (
	// HandoverCookie carries the just-connected account to the dashboard.
	HandoverCookie = "oauth_handover"
	handoverMaxAge = 60 // seconds
)

// ConnectionFlow is the OAuth handshake driver.
type ConnectionFlow interface {
	Begin(ctx context.Context, p platforms.Platform, userID, workspaceID string) (*oauthflow.Start, error)
	Complete(ctx context.Context, p platforms.Platform, cb oauthflow.Callback) (*models.Credential, error)
}

// ConnectionController manages the workspace's platform connections.
type ConnectionController struct {
	flow        ConnectionFlow
	creds       *store.CredentialStore
	providers   oauthflow.ProviderSource
	frontendURL string
}

func NewConnectionController(flow ConnectionFlow, creds *store.CredentialStore, providers oauthflow.ProviderSource, frontendURL string) *ConnectionController {
	return &ConnectionController{
		flow:        flow,
		creds:       creds,
		providers:   providers,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

type connectionView struct {
	Platform    platforms.Platform `json:"platform"`
	Configured  bool               `json:"configured"`
	Connected   bool               `json:"connected"`
	AccountID   string             `json:"account_id,omitempty"`
	AccountName string             `json:"account_name,omitempty"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
}

// List reports every known platform with its connection state. Tokens are never returned.
func (c *ConnectionController) List(ctx *gin.Context) {
	creds, err := c.creds.List(ctx.Request.Context(), middleware.WorkspaceID(ctx))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to load connections")
		return
	}
	byPlatform := make(map[string]models.Credential, len(creds))
	for _, cr := range creds {
		byPlatform[cr.Platform] = cr
	}

	items := make([]connectionView, 0, len(platforms.Known))
	for _, p := range platforms.Known {
		_, perr := c.providers.Provider(p)
		v := connectionView{Platform: p, Configured: perr == nil}
		if cr, ok := byPlatform[string(p)]; ok {
			v.Connected = cr.Usable()
			v.AccountID = cr.AccountID
			v.AccountName = cr.AccountName
			v.ExpiresAt = cr.ExpiresAt
		}
		items = append(items, v)
	}
	utils.Success(ctx, gin.H{"items": items})
}

// Connect starts the handshake and returns the consent URL.
func (c *ConnectionController) Connect(ctx *gin.Context) {
	p, err := platforms.Parse(ctx.Param("platform"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, err.Error())
		return
	}
	start, err := c.flow.Begin(ctx.Request.Context(), p, middleware.UserID(ctx), middleware.WorkspaceID(ctx))
	if errors.Is(err, platforms.ErrConfigurationMissing) {
		utils.Error(ctx, http.StatusServiceUnavailable, 50370, err.Error())
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to start connection")
		return
	}
	utils.Success(ctx, start)
}

// Callback is the public redirect target of every platform. It always
// answers with a redirect to the dashboard.
func (c *ConnectionController) Callback(ctx *gin.Context) {
	p, err := platforms.Parse(ctx.Param("platform"))
	if err != nil {
		c.redirect(ctx, url.Values{"error": {"unsupported_platform"}})
		return
	}

	cb := oauthflow.Callback{
		Code:  ctx.Query("code"),
		State: ctx.Query("state"),
		Error: ctx.Query("error"),
	}
	cred, err := c.flow.Complete(ctx.Request.Context(), p, cb)
	if err != nil {
		reason := oauthflow.ReasonExchangeFailed
		var fail *oauthflow.Failure
		if errors.As(err, &fail) {
			reason = fail.Reason
		}
		c.redirect(ctx, url.Values{"error": {reason}, "platform": {string(p)}})
		return
	}

	handover, _ := json.Marshal(map[string]string{
		"platform":     string(p),
		"account_name": cred.AccountName,
	})
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(HandoverCookie, string(handover), handoverMaxAge, "/",
		"", strings.HasPrefix(c.frontendURL, "https://"), false)
	c.redirect(ctx, url.Values{"success": {string(p)}})
}

// Disconnect clears the stored tokens but keeps the account row.
func (c *ConnectionController) Disconnect(ctx *gin.Context) {
	p, err := platforms.Parse(ctx.Param("platform"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, err.Error())
		return
	}
	err = c.creds.Disconnect(ctx.Request.Context(), middleware.WorkspaceID(ctx), string(p))
	if errors.Is(err, store.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40470, "connection not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to disconnect")
		return
	}
	utils.Success(ctx, gin.H{"platform": p, "connected": false})
}

func (c *ConnectionController) redirect(ctx *gin.Context, q url.Values) {
	ctx.Redirect(http.StatusFound, c.frontendURL+"/dashboard/connections?"+q.Encode())
}
