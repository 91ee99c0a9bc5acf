package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrConnectedWithoutToken guards the connected-credential invariant.
var ErrConnectedWithoutToken = errors.New("connected credential requires an access token")

// Credential is a workspace's connection to one platform. Disconnecting clears
// the tokens but keeps the row so the account history survives.
type Credential struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID  string     `gorm:"uniqueIndex:idx_credential_ws_platform;size:36;not null" json:"workspace_id"`
	Platform     string     `gorm:"uniqueIndex:idx_credential_ws_platform;size:32;not null" json:"platform"`
	AccountID    string     `gorm:"size:255" json:"account_id"`
	AccountName  string     `gorm:"size:255" json:"account_name"`
	AccessToken  string     `gorm:"type:text" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Connected    bool       `gorm:"not null;default:false" json:"connected"`
	ConnectedBy  string     `gorm:"size:36" json:"connected_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Usable reports whether the credential can authenticate a publish call.
func (c *Credential) Usable() bool {
	return c != nil && c.Connected && c.AccessToken != ""
}

// Expired reports whether the access token is past its expiry at now.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// BeforeCreate assigns a random id.
func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave rejects a connected credential without a token.
func (c *Credential) BeforeSave(tx *gorm.DB) error {
	if c.Connected && c.AccessToken == "" {
		return ErrConnectedWithoutToken
	}
	return nil
}
