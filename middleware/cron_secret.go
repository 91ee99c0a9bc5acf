package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArtJustine/scheduler-sub001/utils"
)

// CronSecret guards the sweep trigger with a shared bearer secret. With no
// secret configured the trigger is disabled.
func CronSecret(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secret == "" {
			utils.Error(ctx, http.StatusServiceUnavailable, 50301, "cron trigger is not configured")
			ctx.Abort()
			return
		}
		token, ok := bearerToken(ctx)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
