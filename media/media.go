// Package media stores uploaded images and videos and hands back the public
// URL that posts reference.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxBytes caps a single upload.
const MaxBytes = 100 << 20

var (
	ErrTooLarge        = fmt.Errorf("media exceeds %d MB", MaxBytes>>20)
	ErrUnsupportedType = errors.New("only jpeg, png, gif, webp, mp4 and mov files are accepted")
	ErrEmpty           = errors.New("media file is empty")
)

var allowed = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "video/mp4", "video/quicktime"}

// Object is a stored file.
type Object struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Store puts files somewhere the platforms can fetch them from.
type Store interface {
	Upload(ctx context.Context, workspaceID string, r io.Reader) (*Object, error)
	Delete(ctx context.Context, objectPath string) error
}

// upload is a validated file ready to be written.
type upload struct {
	path        string
	contentType string
	data        []byte
}

// prepare reads r, sniffs its type and names it under the workspace.
func prepare(workspaceID string, r io.Reader, now time.Time) (*upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxBytes {
		return nil, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowed...) {
		return nil, ErrUnsupportedType
	}
	contentType := strings.SplitN(mt.String(), ";", 2)[0]
	name := uuid.NewString() + mt.Extension()
	return &upload{
		path:        path.Join(workspaceID, now.UTC().Format("2006/01"), name),
		contentType: contentType,
		data:        data,
	}, nil
}

func (u *upload) reader() io.Reader { return bytes.NewReader(u.data) }
