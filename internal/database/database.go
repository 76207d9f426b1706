package database

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"autovault/internal/models"
)

var (
	// ErrNotFound is returned when an identity does not resolve to a record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("record already exists")
)

// AccountStore persists user accounts and their purchased-image sets.
type AccountStore interface {
	// CreateAccount assigns an ID and timestamps to account and inserts it.
	// Returns ErrDuplicate when the email is taken.
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	SetAdmin(ctx context.Context, email string, isAdmin bool) error
}

// ImageStore persists catalog items.
type ImageStore interface {
	CreateImage(ctx context.Context, image *models.Image) error
	GetImage(ctx context.Context, id string) (*models.Image, error)
	// GetImages resolves ids in the given order, silently skipping unknown ones.
	GetImages(ctx context.Context, ids []string) ([]models.Image, error)
	ListImages(ctx context.Context, filter models.ImageFilter) ([]models.Image, error)
	UpdateImage(ctx context.Context, image *models.Image) error
	DeleteImage(ctx context.Context, id string) error
}

// OrderStore is the order ledger.
type OrderStore interface {
	// Fulfill records the order for grant.PaymentID and adds grant.ImageID to the
	// account's purchased set. Both writes are idempotent: a repeated payment id
	// does not create a second order and the image is never added twice.
	// created reports whether a new order row was written.
	Fulfill(ctx context.Context, grant models.Grant) (created bool, err error)
	// ListOrders returns the account's orders newest first with their images resolved.
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	AccountStore
	ImageStore
	OrderStore
	Ping(ctx context.Context) error
	Close() error
}

// NewStore opens the backend named by driver and makes sure its schema exists.
func NewStore(ctx context.Context, driver, connectionString, databaseName string, log *zap.Logger) (Store, error) {
	switch driver {
	case "sqlite":
		store, err := NewSQLiteStore(connectionString, log)
		if err != nil {
			return nil, err
		}
		log.Info("initializing database schema", zap.String("driver", driver))
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
		return store, nil
	case "mongo":
		store, err := NewMongoStore(ctx, connectionString, databaseName, log)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
