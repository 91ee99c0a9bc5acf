package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/platforms"
	"github.com/ArtJustine/scheduler-sub001/scheduler"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

// AdapterSource looks up the publish adapter of a platform.
type AdapterSource interface {
	Adapter(p platforms.Platform) (platforms.Adapter, error)
}

// PostController manages the posts of the caller's workspace.
type PostController struct {
	posts    *store.PostStore
	sweeper  *scheduler.Sweeper
	adapters AdapterSource
	now      func() time.Time
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *store.PostStore, sweeper *scheduler.Sweeper, adapters AdapterSource) *PostController {
	return &PostController{posts: posts, sweeper: sweeper, adapters: adapters, now: time.Now}
}

type postRequest struct {
	Platform    string  `json:"platform"`
	Caption     *string `json:"caption"`
	Title       *string `json:"title"`
	MediaURL    *string `json:"media_url"`
	ScheduledAt string  `json:"scheduled_at"`
}

// CreatePost queues a post. An omitted scheduled_at means now.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	platform, err := platforms.Parse(req.Platform)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, err.Error())
		return
	}
	adapter, err := p.adapters.Adapter(platform)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, err.Error())
		return
	}

	due := p.now()
	if req.ScheduledAt != "" {
		if due, err = time.Parse(time.RFC3339, req.ScheduledAt); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40022, "scheduled_at must be RFC3339")
			return
		}
	}

	post := models.Post{
		UserID:      middleware.UserID(ctx),
		WorkspaceID: middleware.WorkspaceID(ctx),
		Platform:    string(platform),
		Caption:     utils.PlainText(deref(req.Caption)),
		Title:       utils.PlainText(deref(req.Title)),
		MediaURL:    strings.TrimSpace(deref(req.MediaURL)),
		ScheduledAt: due,
	}
	if msg := checkContent(post.Caption, post.MediaURL); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40023, msg)
		return
	}
	if err := adapter.Validate(payloadOf(&post)); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, err.Error())
		return
	}

	if err := p.posts.Create(ctx.Request.Context(), &post); err != nil {
		utils.Logger.Error("create post", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts pages through the workspace's posts, soonest due first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	filter := store.PostFilter{
		WorkspaceID: middleware.WorkspaceID(ctx),
		Status:      models.PostStatus(ctx.Query("status")),
		Platform:    ctx.Query("platform"),
		Page:        page,
		PageSize:    pageSize,
	}
	switch filter.Status {
	case "", models.PostStatusScheduled, models.PostStatusPublished, models.PostStatusFailed:
	default:
		utils.Error(ctx, http.StatusBadRequest, 40025, "unknown status")
		return
	}

	posts, total, err := p.posts.List(ctx.Request.Context(), filter)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list posts")
		return
	}
	utils.Paged(ctx, posts, page, pageSize, total)
}

func (p *PostController) GetPost(ctx *gin.Context) {
	post, err := p.posts.Get(ctx.Request.Context(), middleware.WorkspaceID(ctx), ctx.Param("id"))
	if err != nil {
		p.storeError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// UpdatePost edits the content of a post that has not run yet.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if req.ScheduledAt != "" {
		utils.Error(ctx, http.StatusConflict, 40902, "scheduled_at cannot be changed; use publish-now")
		return
	}

	wsID := middleware.WorkspaceID(ctx)
	current, err := p.posts.Get(ctx.Request.Context(), wsID, ctx.Param("id"))
	if err != nil {
		p.storeError(ctx, err)
		return
	}

	var upd store.PostUpdate
	next := *current
	if req.Caption != nil {
		c := utils.PlainText(*req.Caption)
		upd.Caption, next.Caption = &c, c
	}
	if req.Title != nil {
		t := utils.PlainText(*req.Title)
		upd.Title, next.Title = &t, t
	}
	if req.MediaURL != nil {
		m := strings.TrimSpace(*req.MediaURL)
		upd.MediaURL, next.MediaURL = &m, m
	}
	if msg := checkContent(next.Caption, next.MediaURL); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40023, msg)
		return
	}
	if adapter, err := p.adapters.Adapter(platforms.Platform(next.Platform)); err == nil {
		if err := adapter.Validate(payloadOf(&next)); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40024, err.Error())
			return
		}
	}

	post, err := p.posts.Update(ctx.Request.Context(), wsID, current.ID, upd)
	if err != nil {
		p.storeError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

func (p *PostController) DeletePost(ctx *gin.Context) {
	if err := p.posts.Delete(ctx.Request.Context(), middleware.WorkspaceID(ctx), ctx.Param("id")); err != nil {
		p.storeError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// PublishNow moves the due time to now and publishes through the sweep's
// code path. Failed posts may be re-queued this way.
func (p *PostController) PublishNow(ctx *gin.Context) {
	wsID := middleware.WorkspaceID(ctx)
	post, err := p.posts.PublishNow(ctx.Request.Context(), wsID, ctx.Param("id"), p.now())
	if err != nil {
		p.storeError(ctx, err)
		return
	}

	outcome := p.sweeper.PublishNow(ctx.Request.Context(), post)
	if post, err = p.posts.Get(ctx.Request.Context(), wsID, post.ID); err != nil {
		p.storeError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post, "outcome": outcome})
}

func (p *PostController) storeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
	case errors.Is(err, store.ErrNotEditable):
		utils.Error(ctx, http.StatusConflict, 40920, err.Error())
	default:
		utils.Logger.Error("post store", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to access posts")
	}
}

func checkContent(caption, mediaURL string) string {
	if caption == "" && mediaURL == "" {
		return "caption or media_url is required"
	}
	if mediaURL != "" {
		u, err := url.Parse(mediaURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "media_url must be an http(s) URL"
		}
	}
	return ""
}

func payloadOf(p *models.Post) platforms.Payload {
	return platforms.Payload{Text: p.Caption, MediaURL: p.MediaURL, Title: p.Title}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
