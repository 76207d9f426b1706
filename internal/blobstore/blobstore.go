package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"autovault/internal/config"
)

// ErrInvalidKey is returned for keys that would escape the store's namespace.
var ErrInvalidKey = errors.New("invalid object key")

// Object describes a stored blob. Path is what gets persisted in the catalog;
// URL is the absolute address clients can fetch it from.
type Object struct {
	Key  string `json:"key"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Store persists uploaded binaries.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*Object, error)
	Delete(ctx context.Context, key string) error
	// KeyOf maps a Path or URL previously returned by Put back to its key.
	// ok is false for references that point elsewhere.
	KeyOf(ref string) (key string, ok bool)
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, publicBaseURL string, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalStore(cfg.UploadDir, publicBaseURL, log)
	case "s3":
		return NewS3Store(ctx, cfg.S3, log)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
