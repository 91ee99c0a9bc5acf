package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostStatus is the lifecycle state of a scheduled post.
type PostStatus string

const (
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// Terminal reports whether the sweep must leave the post alone.
func (s PostStatus) Terminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed
}

// Post is a piece of content queued for one platform.
type Post struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"index;size:36;not null" json:"user_id"`
	WorkspaceID    string     `gorm:"index;size:36;not null" json:"workspace_id"`
	Platform       string     `gorm:"size:32;not null" json:"platform"`
	Caption        string     `gorm:"type:text" json:"caption"`
	Title          string     `gorm:"size:255" json:"title,omitempty"`
	MediaURL       string     `gorm:"size:1024" json:"media_url,omitempty"`
	ScheduledAt    time.Time  `gorm:"index:idx_posts_due,priority:2;not null" json:"scheduled_at"`
	Status         PostStatus `gorm:"index:idx_posts_due,priority:1;size:16;not null" json:"status"`
	Error          string     `gorm:"type:text" json:"error,omitempty"`
	PlatformPostID string     `gorm:"size:255" json:"platform_post_id,omitempty"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a random id and the initial status.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PostStatusScheduled
	}
	return nil
}
