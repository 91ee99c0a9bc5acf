package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ArtJustine/scheduler-sub001/media"
	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

// MediaController uploads post media to object storage.
type MediaController struct {
	store media.Store
}

// NewMediaController accepts a nil store; uploads then report 503.
func NewMediaController(store media.Store) *MediaController {
	return &MediaController{store: store}
}

// Upload stores the multipart "file" field and returns its public URL.
func (m *MediaController) Upload(ctx *gin.Context) {
	if m.store == nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50360, "media storage is not configured")
		return
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, media.MaxBytes+1<<20)
	fh, err := ctx.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41360, media.ErrTooLarge.Error())
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40060, "file is required")
		return
	}
	if fh.Size > media.MaxBytes {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41360, media.ErrTooLarge.Error())
		return
	}

	f, err := fh.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40061, "failed to read file")
		return
	}
	defer f.Close()

	obj, err := m.store.Upload(ctx.Request.Context(), middleware.WorkspaceID(ctx), f)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41360, err.Error())
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmpty):
		utils.Error(ctx, http.StatusBadRequest, 40062, err.Error())
	case err != nil:
		utils.Logger.Error("media upload", zap.Error(err))
		utils.Error(ctx, http.StatusBadGateway, 50260, "upload failed")
	default:
		utils.Success(ctx, gin.H{"url": obj.URL, "path": obj.Path, "content_type": obj.ContentType, "size": obj.Size})
	}
}
