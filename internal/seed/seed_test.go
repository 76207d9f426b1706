package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"autovault/internal/database"
	"autovault/internal/models"
	"autovault/internal/services"
)

const fixture = `
images:
  - title: Red Ferrari
    description: Studio shot
    category: car
    price: 25
    imageUrl: /uploads/ferrari.jpg
    isPremium: true
  - title: Old Bike
    description: Barn find
    category: bike
    price: 10
    imageUrl: /uploads/bike.jpg
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(c.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(c.Images))
	}
	if got := c.Images[0]; got.Title != "Red Ferrari" || !got.IsPremium || got.Price != 25 || got.ImageURL != "/uploads/ferrari.jpg" {
		t.Errorf("first image = %+v", got)
	}

	if _, err := Parse(strings.NewReader("images:\n  - titel: typo\n")); err == nil {
		t.Error("Parse() should reject unknown keys")
	}
	if c, err := Parse(strings.NewReader("")); err != nil || len(c.Images) != 0 {
		t.Errorf("Parse(empty) = %+v, %v", c, err)
	}
}

func TestLoad(t *testing.T) {
	store, err := database.NewStore(context.Background(), "sqlite", ":memory:", "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	catalog := services.NewCatalogService(store, nil, time.Second, zap.NewNop())

	c, err := Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	n, err := Load(context.Background(), catalog, c, zap.NewNop())
	if err != nil || n != 2 {
		t.Fatalf("Load() = %d, %v", n, err)
	}

	images, err := catalog.List(context.Background(), models.ImageFilter{Sort: models.SortNewest})
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 2 {
		t.Fatalf("stored %d images", len(images))
	}
	for _, img := range images {
		if img.Title == "Old Bike" && img.Price != 0 {
			t.Errorf("free seeded image kept price %v", img.Price)
		}
	}
}

func TestLoadStopsOnInvalidImage(t *testing.T) {
	store, err := database.NewStore(context.Background(), "sqlite", ":memory:", "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	catalog := services.NewCatalogService(store, nil, time.Second, zap.NewNop())

	c := &Catalog{Images: []Image{
		{Title: "ok", Description: "d", Category: "car", ImageURL: "/a.jpg"},
		{Title: "bad", Description: "d", Category: "truck", ImageURL: "/b.jpg"},
	}}
	n, err := Load(context.Background(), catalog, c, zap.NewNop())
	if n != 1 || !errors.Is(err, services.ErrValidation) {
		t.Errorf("Load() = %d, %v; want 1, ErrValidation", n, err)
	}
}
