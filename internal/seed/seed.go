package seed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"autovault/internal/models"
	"autovault/internal/services"
)

// Catalog is the on-disk fixture format.
type Catalog struct {
	Images []Image `yaml:"images"`
}

type Image struct {
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Category    string  `yaml:"category"`
	Price       float64 `yaml:"price"`
	ImageURL    string  `yaml:"imageUrl"`
	IsPremium   bool    `yaml:"isPremium"`
}

// Creator is the catalog operation seeding needs.
type Creator interface {
	Create(ctx context.Context, in services.ImageInput) (*models.Image, error)
}

// Parse decodes a catalog fixture, rejecting unknown keys.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &c, nil
}

// Load creates every image in c and returns how many were written. It stops
// at the first failure.
func Load(ctx context.Context, catalog Creator, c *Catalog, log *zap.Logger) (int, error) {
	for i, img := range c.Images {
		in := services.ImageInput{
			Title:       services.String(img.Title),
			Description: services.String(img.Description),
			Category:    services.String(img.Category),
			ImageURL:    services.String(img.ImageURL),
			IsPremium:   services.Bool(img.IsPremium),
			Price:       services.Float(img.Price),
		}
		created, err := catalog.Create(ctx, in)
		if err != nil {
			return i, fmt.Errorf("image %d (%q): %w", i, img.Title, err)
		}
		log.Info("seeded image", zap.String("image_id", created.ID), zap.String("title", created.Title))
	}
	return len(c.Images), nil
}
