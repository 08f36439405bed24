// Package storage defines the interface for object storage operations.
// Implementations are selected at startup by Config.Driver; both work with
// any S3-compatible provider (MinIO, AWS S3, ArvanCloud).
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Storage is the interface for uploading and removing objects.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}

// Config selects and configures a storage driver.
type Config struct {
	Driver     string // "minio" or "s3"
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/uploads"
}

// New builds the driver named by cfg.Driver.
func New(ctx context.Context, cfg Config, logger *log.Logger) (Storage, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "minio":
		return NewMinioStorage(ctx, cfg, logger)
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
