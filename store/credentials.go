package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ArtJustine/scheduler-sub001/models"
)

// CredentialStore keeps one credential per workspace and platform.
type CredentialStore struct {
	db *gorm.DB
}

// NewCredentialStore wraps db.
func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Find returns the credential for a workspace's platform.
func (s *CredentialStore) Find(ctx context.Context, workspaceID, platform string) (*models.Credential, error) {
	var c models.Credential
	err := s.db.WithContext(ctx).Where("workspace_id = ? AND platform = ?", workspaceID, platform).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns every credential of a workspace, connected or not.
func (s *CredentialStore) List(ctx context.Context, workspaceID string) ([]models.Credential, error) {
	var out []models.Credential
	err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Order("platform ASC").Find(&out).Error
	return out, err
}

// Upsert writes c over any existing credential for the same workspace and
// platform. c is reloaded with the stored row.
func (s *CredentialStore) Upsert(ctx context.Context, c *models.Credential) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "workspace_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"account_id", "account_name", "access_token", "refresh_token",
			"expires_at", "connected", "connected_by", "updated_at",
		}),
	}).Create(c).Error
	if err != nil {
		return err
	}
	stored, err := s.Find(ctx, c.WorkspaceID, c.Platform)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// Disconnect clears the tokens and keeps the row.
func (s *CredentialStore) Disconnect(ctx context.Context, workspaceID, platform string) error {
	res := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("workspace_id = ? AND platform = ?", workspaceID, platform).
		Updates(map[string]interface{}{
			"connected":     false,
			"access_token":  "",
			"refresh_token": "",
			"expires_at":    nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateToken stores a refreshed token pair. An empty refresh token keeps the
// previous one.
func (s *CredentialStore) UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	if accessToken == "" {
		return models.ErrConnectedWithoutToken
	}
	fields := map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiresAt,
	}
	if refreshToken != "" {
		fields["refresh_token"] = refreshToken
	}
	return s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("id = ? AND connected = ?", id, true).
		Updates(fields).Error
}
