package sink

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/stagebox/service/internal/pending"
	"github.com/stagebox/service/internal/storage"
	"github.com/stagebox/service/internal/upload"
)

// StorageSink writes items straight into object storage. Each item gets a
// fresh file ID (a UUID plus the original extension) stored under prefix.
type StorageSink struct {
	store  storage.Storage
	prefix string
}

// NewStorageSink returns a sink writing to store under prefix.
func NewStorageSink(store storage.Storage, prefix string) *StorageSink {
	return &StorageSink{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a file ID.
func (s *StorageSink) Key(fileID string) string {
	if s.prefix == "" {
		return fileID
	}
	return path.Join(s.prefix, fileID)
}

// Upload stores item and returns its file ID.
func (s *StorageSink) Upload(ctx context.Context, item pending.Item, progress upload.ProgressFunc) (string, error) {
	id := uuid.NewString() + extension(item.Name)
	r := newProgressReader(item.Reader(), item.Size(), progress)
	if err := s.store.Upload(ctx, s.Key(id), r, item.Size(), item.MIMEType); err != nil {
		return "", err
	}
	return id, nil
}

// extension returns the lower-cased extension of name when it is a plain
// alphanumeric suffix, and "" otherwise.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

var _ upload.Sink = (*StorageSink)(nil)
