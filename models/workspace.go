package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workspace groups platform connections and posts under one owner.
type Workspace struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string       `gorm:"index;size:36;not null" json:"owner_id"`
	Name        string       `gorm:"size:128;not null" json:"name"`
	IsDefault   bool         `gorm:"not null;default:false" json:"is_default"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Credentials []Credential `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE;" json:"-"`
}

// BeforeCreate assigns a random id.
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
