package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"autovault/internal/auth"
	"autovault/internal/database"
	"autovault/internal/models"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	store, err := database.NewStore(context.Background(), "sqlite", ":memory:", "", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestAccounts(t *testing.T, store database.Store) *AccountService {
	t.Helper()
	return NewAccountService(store, store, auth.NewTokenIssuer("test-secret", time.Hour), time.Second, zap.NewNop())
}

func mustRegister(t *testing.T, accounts *AccountService, name, email string) *models.Account {
	t.Helper()
	sess, err := accounts.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: "secret123"})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", email, err)
	}
	return sess.Account
}

func mustCreate(t *testing.T, catalog *CatalogService, title string, category models.Category, premium bool, price float64) *models.Image {
	t.Helper()
	image, err := catalog.Create(context.Background(), ImageInput{
		Title:       String(title),
		Description: String(title + " description"),
		Category:    String(string(category)),
		ImageURL:    String("/uploads/" + title + ".jpg"),
		IsPremium:   Bool(premium),
		Price:       Float(price),
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", title, err)
	}
	return image
}

func zapNop() *zap.Logger {
	return zap.NewNop()
}

func grantFor(userID, imageID string, n int) models.Grant {
	return models.Grant{
		UserID:    userID,
		ImageID:   imageID,
		PaymentID: "pay_test_" + imageID + "_" + string(rune('a'+n)),
		Amount:    10,
	}
}
