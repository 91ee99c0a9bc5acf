package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

// StatsController reports post counts for the dashboard.
type StatsController struct {
	posts *store.PostStore
	creds *store.CredentialStore
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(posts *store.PostStore, creds *store.CredentialStore) *StatsController {
	return &StatsController{posts: posts, creds: creds}
}

// GetStats returns per-status post counts and the number of connected platforms.
func (s *StatsController) GetStats(ctx *gin.Context) {
	wsID := middleware.WorkspaceID(ctx)
	counts, err := s.posts.CountByStatus(ctx.Request.Context(), wsID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to count posts")
		return
	}

	connected := 0
	if creds, err := s.creds.List(ctx.Request.Context(), wsID); err == nil {
		for i := range creds {
			if creds[i].Usable() {
				connected++
			}
		}
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	utils.Success(ctx, gin.H{
		"total":       total,
		"scheduled":   counts[models.PostStatusScheduled],
		"published":   counts[models.PostStatusPublished],
		"failed":      counts[models.PostStatusFailed],
		"connections": connected,
	})
}
