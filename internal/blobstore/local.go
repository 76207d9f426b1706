package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// URLPrefix is the route under which local uploads are served.
const URLPrefix = "/uploads"

// LocalStore keeps blobs in a directory on disk.
type LocalStore struct {
	dir     string
	baseURL string
	log     *zap.Logger
}

func NewLocalStore(dir, publicBaseURL string, log *zap.Logger) (*LocalStore, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		log:     log,
	}, nil
}

// Dir is the directory blobs are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put writes data under key. The file is written to a temporary name first
// so a reader never sees a partial upload.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (*Object, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write upload %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close upload %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to move upload %s into place: %w", key, err)
	}

	s.log.Info("file stored", zap.String("key", key), zap.Int("size", len(data)))

	p := URLPrefix + "/" + key
	return &Object{Key: key, Path: p, URL: s.baseURL + p}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) KeyOf(ref string) (string, bool) {
	if s.baseURL != "" {
		ref = strings.TrimPrefix(ref, s.baseURL)
	}
	key, ok := strings.CutPrefix(ref, URLPrefix+"/")
	if !ok || checkKey(key) != nil {
		return "", false
	}
	return key, true
}

// EnsureDir creates dirPath if it does not exist and fails when the path is
// occupied by something other than a directory.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("directory path must not be empty")
	}
	if dirPath == "/" || dirPath == "." {
		return fmt.Errorf("refusing to use unsafe directory path %q", dirPath)
	}

	info, err := os.Stat(dirPath)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return nil
}
