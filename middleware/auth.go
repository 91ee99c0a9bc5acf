package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextEmailKey stores the user's email inside Gin context.
	ContextEmailKey = "email"
	// ContextTokenKey stores the raw bearer token so logout can revoke it.
	ContextTokenKey = "token"
	// ContextClaimsKey stores the parsed JWT claims.
	ContextClaimsKey = "claims"
	// ContextWorkspaceIDKey stores the workspace the request acts on.
	ContextWorkspaceIDKey = "workspace_id"

	// WorkspaceHeader selects a workspace; the owner's default is used when absent.
	WorkspaceHeader = "X-Workspace-ID"
)

// AuthRequired ensures the request carries a valid, unrevoked JWT.
func AuthRequired(secret string, blacklist *utils.TokenBlacklist) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, ok := bearerToken(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing or malformed")
			ctx.Abort()
			return
		}

		if blacklist != nil && blacklist.Revoked(ctx.Request.Context(), tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(secret, tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextEmailKey, claims.Email)
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Set(ContextClaimsKey, claims)
		ctx.Next()
	}
}

// WorkspaceRequired resolves the workspace named by the X-Workspace-ID
// header, or the user's default one, and rejects workspaces the user does
// not own. Must run after AuthRequired.
func WorkspaceRequired(workspaces *store.WorkspaceStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := UserID(ctx)
		ws, err := workspaces.Resolve(ctx.Request.Context(), userID, strings.TrimSpace(ctx.GetHeader(WorkspaceHeader)))
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusForbidden, 40301, "workspace not found")
			ctx.Abort()
			return
		}
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to resolve workspace")
			ctx.Abort()
			return
		}
		ctx.Set(ContextWorkspaceIDKey, ws.ID)
		ctx.Next()
	}
}

// UserID returns the authenticated user id, or "".
func UserID(ctx *gin.Context) string {
	return ctx.GetString(ContextUserIDKey)
}

// WorkspaceID returns the resolved workspace id, or "".
func WorkspaceID(ctx *gin.Context) string {
	return ctx.GetString(ContextWorkspaceIDKey)
}

func bearerToken(ctx *gin.Context) (string, bool) {
	parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
