package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"autovault/internal/blobstore"
	"autovault/internal/database"
	"autovault/internal/models"
)

// ImageInput carries the writable fields of a catalog item. Nil fields are
// "not supplied": required on create, left unchanged on update.
type ImageInput struct {
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Category    *string  `json:"category" validate:"omitempty,oneof=car bike old modern"`
	Price       *float64 `json:"price"`
	ImageURL    *string  `json:"imageUrl" validate:"omitempty,max=2048"`
	IsPremium   *bool    `json:"isPremium"`
}

// MaxPrice caps the price of a premium image.
const MaxPrice = 1_000_000

// ListQuery is the raw, string-typed form of the catalog filters.
type ListQuery struct {
	Category string `form:"category"`
	Search   string `form:"search"`
	Type     string `form:"type"`
	Sort     string `form:"sort"`
}

// CatalogService is the query and admin surface over the image catalog.
type CatalogService struct {
	images  database.ImageStore
	blobs   blobstore.Store
	timeout time.Duration
	log     *zap.Logger
}

// NewCatalogService builds the service. blobs may be nil, in which case
// deleting an item leaves its uploaded files in place.
func NewCatalogService(images database.ImageStore, blobs blobstore.Store, timeout time.Duration, log *zap.Logger) *CatalogService {
	return &CatalogService{images: images, blobs: blobs, timeout: timeout, log: log}
}

// ParseFilter converts query parameters into an ImageFilter. Empty values
// impose no constraint; an unknown category or type is a validation error and
// an unknown sort key falls back to newest first.
func ParseFilter(q ListQuery) (models.ImageFilter, error) {
	filter := models.ImageFilter{
		Search: strings.TrimSpace(q.Search),
		Sort:   models.SortNewest,
	}

	if c := strings.ToLower(strings.TrimSpace(q.Category)); c != "" {
		category := models.Category(c)
		if !category.Valid() {
			return filter, newValidationError("category", "must be one of: car bike old modern")
		}
		filter.Category = category
	}

	switch strings.ToLower(strings.TrimSpace(q.Type)) {
	case "":
	case "free":
		premium := false
		filter.Premium = &premium
	case "premium":
		premium := true
		filter.Premium = &premium
	default:
		return filter, newValidationError("type", "must be one of: free premium")
	}

	switch q.Sort {
	case models.SortPriceAsc, models.SortPriceDesc:
		filter.Sort = q.Sort
	}
	return filter, nil
}

func (s *CatalogService) List(ctx context.Context, filter models.ImageFilter) ([]models.Image, error) {
	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	images, err := s.images.ListImages(sctx, filter)
	if err != nil {
		return nil, storeError(err, "list images")
	}
	return images, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Image, error) {
	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	image, err := s.images.GetImage(sctx, id)
	if err != nil {
		return nil, storeError(err, "image")
	}
	return image, nil
}

// Create adds a catalog item. Title, description, category and imageUrl are
// required; a free item is always stored with price 0.
func (s *CatalogService) Create(ctx context.Context, in ImageInput) (*models.Image, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	missing := map[string]string{}
	for field, value := range map[string]*string{
		"title":       in.Title,
		"description": in.Description,
		"category":    in.Category,
		"imageUrl":    in.ImageURL,
	} {
		if value == nil || strings.TrimSpace(*value) == "" {
			missing[field] = "is required"
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	image := &models.Image{
		Title:       strings.TrimSpace(*in.Title),
		Description: strings.TrimSpace(*in.Description),
		Category:    models.Category(*in.Category),
		ImageURL:    strings.TrimSpace(*in.ImageURL),
	}
	if in.IsPremium != nil {
		image.IsPremium = *in.IsPremium
	}
	if in.Price != nil {
		image.Price = *in.Price
	}
	if err := normalizePrice(image); err != nil {
		return nil, err
	}

	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	if err := s.images.CreateImage(sctx, image); err != nil {
		return nil, storeError(err, "create image")
	}

	s.log.Info("image created", zap.String("image_id", image.ID), zap.Bool("premium", image.IsPremium))
	return image, nil
}

// Update merges in onto the stored item. Blank strings keep the current value.
func (s *CatalogService) Update(ctx context.Context, id string, in ImageInput) (*models.Image, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	image, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	mergeString(&image.Title, in.Title)
	mergeString(&image.Description, in.Description)
	mergeString(&image.ImageURL, in.ImageURL)
	if in.Category != nil && strings.TrimSpace(*in.Category) != "" {
		image.Category = models.Category(*in.Category)
	}
	if in.IsPremium != nil {
		image.IsPremium = *in.IsPremium
	}
	if in.Price != nil {
		image.Price = *in.Price
	}
	if err := normalizePrice(image); err != nil {
		return nil, err
	}

	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	if err := s.images.UpdateImage(sctx, image); err != nil {
		return nil, storeError(err, "image")
	}

	s.log.Info("image updated", zap.String("image_id", image.ID))
	return image, nil
}

// Delete removes the item and, when its imageUrl points into the blob store,
// the uploaded file and its thumbnail.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	image, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	if err := s.images.DeleteImage(sctx, id); err != nil {
		return storeError(err, "image")
	}
	s.log.Info("image deleted", zap.String("image_id", id))

	s.removeBlobs(ctx, image.ImageURL)
	return nil
}

// removeBlobs is best effort: the catalog record is already gone.
func (s *CatalogService) removeBlobs(ctx context.Context, ref string) {
	if s.blobs == nil {
		return
	}
	key, ok := s.blobs.KeyOf(ref)
	if !ok {
		return
	}

	bctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	for _, k := range []string{key, ThumbnailKey(key)} {
		if err := s.blobs.Delete(bctx, k); err != nil {
			s.log.Warn("failed to delete blob", zap.String("key", k), zap.Error(err))
		}
	}
}

// normalizePrice zeroes the price of free images whatever was supplied and
// range checks premium ones.
func normalizePrice(image *models.Image) error {
	if !image.IsPremium {
		image.Price = 0
		return nil
	}
	if !(image.Price > 0) {
		return newValidationError("price", "must be greater than 0 for premium images")
	}
	if image.Price > MaxPrice {
		return newValidationError("price", "out of allowed range")
	}
	return nil
}

func mergeString(dst *string, src *string) {
	if src == nil {
		return
	}
	if v := strings.TrimSpace(*src); v != "" {
		*dst = v
	}
}

// String is a convenience for building ImageInput literals.
func String(v string) *string { return &v }

// Float is a convenience for building ImageInput literals.
func Float(v float64) *float64 { return &v }

// Bool is a convenience for building ImageInput literals.
func Bool(v bool) *bool { return &v }
