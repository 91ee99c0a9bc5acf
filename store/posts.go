package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ArtJustine/scheduler-sub001/models"
)

// PostStore persists scheduled posts. Status transitions made by the sweep
// are conditional on the post still being scheduled, so two writers can
// never both move the same post.
type PostStore struct {
	db *gorm.DB
}

// NewPostStore wraps db.
func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

// PostFilter narrows List. Empty fields match everything.
type PostFilter struct {
	WorkspaceID string
	Status      models.PostStatus
	Platform    string
	Page        int
	PageSize    int
}

// PostUpdate carries the editable fields of a scheduled post. The due time is
// not editable; use PublishNow to move it.
type PostUpdate struct {
	Caption  *string
	Title    *string
	MediaURL *string
}

// Create inserts p with status scheduled.
func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	p.Status = models.PostStatusScheduled
	p.ScheduledAt = p.ScheduledAt.UTC()
	return s.db.WithContext(ctx).Create(p).Error
}

// Get loads a post within a workspace.
func (s *PostStore) Get(ctx context.Context, workspaceID, id string) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns a page of posts, soonest due first, and the total match count.
func (s *PostStore) List(ctx context.Context, f PostFilter) ([]models.Post, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Post{})
	if f.WorkspaceID != "" {
		q = q.Where("workspace_id = ?", f.WorkspaceID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Platform != "" {
		q = q.Where("platform = ?", f.Platform)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	var posts []models.Post
	err := q.Order("scheduled_at ASC").Order("created_at ASC").
		Offset((f.Page - 1) * f.PageSize).Limit(f.PageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Update edits a post that is still scheduled.
func (s *PostStore) Update(ctx context.Context, workspaceID, id string, u PostUpdate) (*models.Post, error) {
	fields := map[string]interface{}{}
	if u.Caption != nil {
		fields["caption"] = *u.Caption
	}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.MediaURL != nil {
		fields["media_url"] = *u.MediaURL
	}
	if len(fields) > 0 {
		if err := s.whileScheduled(ctx, workspaceID, id, fields); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, workspaceID, id)
}

// Delete removes a post in any state.
func (s *PostStore) Delete(ctx context.Context, workspaceID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).Delete(&models.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PublishNow moves the due time of a scheduled or failed post to now and
// puts it back in the scheduled state. Published posts are final.
func (s *PostStore) PublishNow(ctx context.Context, workspaceID, id string, now time.Time) (*models.Post, error) {
	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND workspace_id = ? AND status IN ?", id, workspaceID,
			[]models.PostStatus{models.PostStatusScheduled, models.PostStatusFailed}).
		Updates(map[string]interface{}{
			"scheduled_at": now.UTC(),
			"status":       models.PostStatusScheduled,
			"error":        "",
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, workspaceID, id); err != nil {
			return nil, err
		}
		return nil, ErrNotEditable
	}
	return s.Get(ctx, workspaceID, id)
}

// Due returns up to limit scheduled posts whose due time is at or before now,
// oldest first.
func (s *PostStore) Due(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.PostStatusScheduled, now.UTC()).
		Order("scheduled_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// MarkPublished records a successful publish. It reports false when the post
// was no longer scheduled.
func (s *PostStore) MarkPublished(ctx context.Context, id, platformPostID string, at time.Time, attempts int) (bool, error) {
	at = at.UTC()
	return s.transition(ctx, id, map[string]interface{}{
		"status":           models.PostStatusPublished,
		"platform_post_id": platformPostID,
		"published_at":     &at,
		"error":            "",
		"attempts":         attempts,
	})
}

// MarkFailed records a failed publish with its reason.
func (s *PostStore) MarkFailed(ctx context.Context, id, reason string, attempts int) (bool, error) {
	return s.transition(ctx, id, map[string]interface{}{
		"status":   models.PostStatusFailed,
		"error":    reason,
		"attempts": attempts,
	})
}

// CountByStatus tallies a workspace's posts per status.
func (s *PostStore) CountByStatus(ctx context.Context, workspaceID string) (map[models.PostStatus]int64, error) {
	var rows []struct {
		Status models.PostStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("status, COUNT(*) AS count").
		Where("workspace_id = ?", workspaceID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := map[models.PostStatus]int64{
		models.PostStatusScheduled: 0,
		models.PostStatusPublished: 0,
		models.PostStatusFailed:    0,
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

func (s *PostStore) transition(ctx context.Context, id string, fields map[string]interface{}) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND status = ?", id, models.PostStatusScheduled).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *PostStore) whileScheduled(ctx context.Context, workspaceID, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND workspace_id = ? AND status = ?", id, workspaceID, models.PostStatusScheduled).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, workspaceID, id); err != nil {
			return err
		}
		return ErrNotEditable
	}
	return nil
}
