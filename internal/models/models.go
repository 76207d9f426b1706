package models

import (
	"time"
)

// Category is one of the fixed catalog sections.
type Category string

const (
	CategoryCar    Category = "car"
	CategoryBike   Category = "bike"
	CategoryOld    Category = "old"
	CategoryModern Category = "modern"
)

// Categories lists every accepted category in display order.
var Categories = []Category{CategoryCar, CategoryBike, CategoryOld, CategoryModern}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// OrderStatusCompleted is the only status an order is ever written with.
const OrderStatusCompleted = "completed"

// Account is a registered user of the storefront.
// PasswordHash is never serialized to clients.
type Account struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	IsAdmin         bool      `json:"isAdmin"`
	PurchasedImages []string  `json:"purchasedImages"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasPurchased reports whether imageID is already in the purchased set.
func (a *Account) HasPurchased(imageID string) bool {
	for _, id := range a.PurchasedImages {
		if id == imageID {
			return true
		}
	}
	return false
}

// Image is a sellable catalog item. Non-premium images always carry a zero price.
type Image struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	IsPremium   bool      `json:"isPremium"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Order is the ledger entry written once per fulfilled payment.
// PaymentID is the reconciliation key against the payment provider.
type Order struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"user"`
	ImageID   string    `json:"imageId"`
	PaymentID string    `json:"paymentId"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	// Image is resolved when listing orders; nil when the image has since been deleted.
	Image *Image `json:"image"`
}

// Grant describes one fulfilled payment: the order to record and the entitlement to append.
type Grant struct {
	UserID    string
	ImageID   string
	PaymentID string
	Amount    float64
}

// Sort keys accepted by the catalog listing.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// ImageFilter holds the optional, conjunctive catalog filters.
// A nil/empty field means "no constraint".
type ImageFilter struct {
	Search   string
	Category Category
	Premium  *bool
	Sort     string
}
