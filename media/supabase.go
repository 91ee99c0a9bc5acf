package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore keeps media in a public Supabase Storage bucket.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
	now    func() time.Time
}

// NewSupabaseStore connects to the project at projectURL.
func NewSupabaseStore(projectURL, apiKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		client: storage_go.NewClient(strings.TrimRight(projectURL, "/")+"/storage/v1", apiKey, nil),
		bucket: bucket,
		now:    time.Now,
	}
}

func (s *SupabaseStore) Upload(ctx context.Context, workspaceID string, r io.Reader) (*Object, error) {
	u, err := prepare(workspaceID, r, s.now())
	if err != nil {
		return nil, err
	}
	ct := u.contentType
	if _, err := s.client.UploadFile(s.bucket, u.path, u.reader(), storage_go.FileOptions{ContentType: &ct}); err != nil {
		return nil, fmt.Errorf("uploading to bucket %s: %w", s.bucket, err)
	}
	return &Object{
		Path:        u.path,
		URL:         s.client.GetPublicUrl(s.bucket, u.path).SignedURL,
		ContentType: u.contentType,
		Size:        int64(len(u.data)),
	}, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, objectPath string) error {
	if _, err := s.client.RemoveFile(s.bucket, []string{objectPath}); err != nil {
		return fmt.Errorf("removing %s: %w", objectPath, err)
	}
	return nil
}
