package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ArtJustine/scheduler-sub001/models"
)

// WorkspaceStore resolves the workspaces a user owns.
type WorkspaceStore struct {
	db *gorm.DB
}

func NewWorkspaceStore(db *gorm.DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

// Create inserts w. The first workspace of an owner becomes the default.
func (s *WorkspaceStore) Create(ctx context.Context, w *models.Workspace) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Workspace{}).Where("owner_id = ?", w.OwnerID).Count(&n).Error; err != nil {
			return err
		}
		w.IsDefault = n == 0
		return tx.Create(w).Error
	})
}

// ListForOwner returns the owner's workspaces, default first.
func (s *WorkspaceStore) ListForOwner(ctx context.Context, ownerID string) ([]models.Workspace, error) {
	var out []models.Workspace
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("is_default DESC").Order("created_at ASC").Find(&out).Error
	return out, err
}

// Resolve returns the workspace id for a request: the given id when the owner
// holds it, otherwise the owner's default.
func (s *WorkspaceStore) Resolve(ctx context.Context, ownerID, id string) (*models.Workspace, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if id != "" {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("is_default = ?", true)
	}
	var w models.Workspace
	err := q.First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
