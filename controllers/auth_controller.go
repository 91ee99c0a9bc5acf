package controllers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ArtJustine/scheduler-sub001/middleware"
	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

const tokenTTL = 72 * time.Hour

// AuthController handles dashboard accounts.
type AuthController struct {
	db         *gorm.DB
	workspaces *store.WorkspaceStore
	blacklist  *utils.TokenBlacklist
	secret     string
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB, blacklist *utils.TokenBlacklist, secret string) *AuthController {
	return &AuthController{db: db, workspaces: store.NewWorkspaceStore(db), blacklist: blacklist, secret: secret}
}

// Register creates an account together with its default workspace.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid email address")
		return
	}

	var existing int64
	if err := a.db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to check email")
		return
	}
	if existing > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordLength) {
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{Email: email, Name: utils.PlainText(req.Name), PasswordHash: hash}
	var workspace models.Workspace
	err = a.db.WithContext(ctx.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		workspace = models.Workspace{OwnerID: user.ID, Name: defaultWorkspaceName(user)}
		return store.NewWorkspaceStore(tx).Create(ctx.Request.Context(), &workspace)
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(a.secret, user.ID, user.Email, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token":     token,
		"user":      user,
		"workspace": workspace,
	})
}

// Login verifies credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	err := a.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
		return
	}

	token, err := utils.GenerateToken(a.secret, user.ID, user.Email, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout revokes the presented token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	expiresAt := time.Now().Add(tokenTTL)
	if claims, ok := ctx.Get(middleware.ContextClaimsKey); ok {
		if c, ok := claims.(*utils.Claims); ok && c.ExpiresAt != nil {
			expiresAt = c.ExpiresAt.Time
		}
	}
	if err := a.blacklist.Revoke(ctx.Request.Context(), token, expiresAt); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to revoke token")
		return
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current user and their workspaces.
func (a *AuthController) Me(ctx *gin.Context) {
	var user models.User
	err := a.db.Where("id = ?", middleware.UserID(ctx)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to load user")
		return
	}

	workspaces, err := a.workspaces.ListForOwner(ctx.Request.Context(), user.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to load workspaces")
		return
	}
	utils.Success(ctx, gin.H{"user": user, "workspaces": workspaces})
}

func defaultWorkspaceName(u models.User) string {
	if u.Name != "" {
		return u.Name + "'s workspace"
	}
	return "My workspace"
}
