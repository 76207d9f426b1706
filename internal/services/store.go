package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autovault/internal/database"
)

// storeContext bounds a single store operation.
func storeContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// storeError translates persistence errors into the service taxonomy.
func storeError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, database.ErrDuplicate):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	case database.IsTransient(err):
		return fmt.Errorf("%s: %w: %v", what, ErrStoreUnavailable, err)
	default:
		return err
	}
}
