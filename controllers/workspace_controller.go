package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

// WorkspaceController lists and creates the caller's workspaces.
type WorkspaceController struct {
	workspaces *store.WorkspaceStore
}

func NewWorkspaceController(workspaces *store.WorkspaceStore) *WorkspaceController {
	return &WorkspaceController{workspaces: workspaces}
}

func (w *WorkspaceController) List(ctx *gin.Context) {
	list, err := w.workspaces.ListForOwner(ctx.Request.Context(), middleware.UserID(ctx))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to list workspaces")
		return
	}
	utils.Success(ctx, gin.H{"items": list})
}

func (w *WorkspaceController) Create(ctx *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,max=128"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	name := utils.PlainText(req.Name)
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "name cannot be empty")
		return
	}

	ws := models.Workspace{OwnerID: middleware.UserID(ctx), Name: name}
	if err := w.workspaces.Create(ctx.Request.Context(), &ws); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to create workspace")
		return
	}
	utils.Success(ctx, gin.H{"workspace": ws})
}
