package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"autovault/internal/blobstore"

	_ "golang.org/x/image/webp"
)

const (
	thumbnailSize   = 480
	thumbnailPrefix = "thumb-"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadResult is returned to the client after a successful upload.
type UploadResult struct {
	Path         string `json:"path"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// UploadService accepts image binaries and hands them to blob storage.
type UploadService struct {
	blobs    blobstore.Store
	maxBytes int64
	log      *zap.Logger
	now      func() time.Time
}

func NewUploadService(blobs blobstore.Store, maxBytes int64, log *zap.Logger) *UploadService {
	return &UploadService{
		blobs:    blobs,
		maxBytes: maxBytes,
		log:      log,
		now:      time.Now,
	}
}

// MaxBytes is the largest payload Upload accepts.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores payload under a generated name. Both the declared MIME type
// and the sniffed content must be supported raster images.
func (s *UploadService) Upload(ctx context.Context, payload io.Reader, originalName, declaredType string) (*UploadResult, error) {
	if !isImageType(declaredType) {
		return nil, fmt.Errorf("declared type %q: %w", declaredType, ErrUnsupportedMediaType)
	}

	data, err := io.ReadAll(io.LimitReader(payload, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, newValidationError("image", "no file uploaded")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, newValidationError("image", fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}

	detected := mimetype.Detect(data)
	if !isImageType(detected.String()) {
		return nil, fmt.Errorf("detected type %q: %w", detected.String(), ErrUnsupportedMediaType)
	}

	name := StoredFileName(s.now(), originalName, detected.Extension())
	obj, err := s.blobs.Put(ctx, name, data, detected.String())
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	result := &UploadResult{Path: obj.Path, URL: obj.URL}
	if thumb, err := s.thumbnail(ctx, name, data); err != nil {
		s.log.Warn("thumbnail generation failed", zap.String("key", name), zap.Error(err))
	} else {
		result.ThumbnailURL = thumb.URL
	}

	s.log.Info("upload stored",
		zap.String("key", name),
		zap.String("mime", detected.String()),
		zap.Int("size", len(data)))
	return result, nil
}

func (s *UploadService) thumbnail(ctx context.Context, name string, data []byte) (*blobstore.Object, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	key := ThumbnailKey(name)
	return s.blobs.Put(ctx, key, buf.Bytes(), "image/jpeg")
}

// ThumbnailKey is the blob key of the preview generated for the upload stored under key.
func ThumbnailKey(key string) string {
	return thumbnailPrefix + strings.TrimSuffix(key, filepath.Ext(key)) + ".jpg"
}

// allowedImageTypes are the raster formats the thumbnailer can decode.
// Vector and script-capable formats such as SVG are refused.
var allowedImageTypes = map[string]bool{
	"image/jpeg":     true,
	"image/jpg":      true,
	"image/pjpeg":    true,
	"image/png":      true,
	"image/gif":      true,
	"image/webp":     true,
	"image/bmp":      true,
	"image/x-ms-bmp": true,
	"image/tiff":     true,
}

func isImageType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return allowedImageTypes[strings.ToLower(strings.TrimSpace(mediaType))]
}

// StoredFileName builds "<unix millis>-<sanitized name>". The client name is
// reduced to its base, whitespace becomes dashes and anything outside
// [A-Za-z0-9._-] is dropped. fallbackExt is used when nothing usable remains.
func StoredFileName(now time.Time, originalName, fallbackExt string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	base = strings.Join(strings.Fields(base), "-")
	base = unsafeNameChars.ReplaceAllString(base, "")
	base = strings.TrimLeft(base, ".-")
	if base == "" || base == "." {
		base = "image" + fallbackExt
	}
	if len(base) > 100 {
		ext := filepath.Ext(base)
		if len(ext) > 10 {
			ext = ""
		}
		base = base[:100-len(ext)] + ext
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}
