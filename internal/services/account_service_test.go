package services

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndLogin(t *testing.T) {
	store := newTestStore(t)
	accounts := newTestAccounts(t, store)
	ctx := context.Background()

	sess, err := accounts.Register(ctx, RegisterInput{Name: " Alice ", Email: "Alice@Example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if sess.Token == "" {
		t.Fatal("Register() returned an empty token")
	}
	if sess.Account.Email != "alice@example.com" || sess.Account.Name != "Alice" {
		t.Errorf("account = %+v", sess.Account)
	}
	if sess.Account.PasswordHash == "secret123" {
		t.Error("password stored in plain text")
	}

	id, err := accounts.Authenticate(sess.Token)
	if err != nil || id != sess.Account.ID {
		t.Fatalf("Authenticate() = %q, %v; want %q", id, err, sess.Account.ID)
	}

	login, err := accounts.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.Account.ID != sess.Account.ID {
		t.Errorf("Login() account = %s, want %s", login.Account.ID, sess.Account.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	accounts := newTestAccounts(t, store)
	mustRegister(t, accounts, "Alice", "alice@example.com")

	_, err := accounts.Register(context.Background(), RegisterInput{Name: "Other", Email: "ALICE@example.com", Password: "secret123"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Register() error = %v, want ErrConflict", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	accounts := newTestAccounts(t, newTestStore(t))

	_, err := accounts.Register(context.Background(), RegisterInput{Name: "", Email: "not-an-email", Password: "123"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Register() error = %v, want ValidationError", err)
	}
	for _, field := range []string{"name", "email", "password"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("missing field error for %q in %v", field, verr.Fields)
		}
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should unwrap to ErrValidation")
	}
}

func TestLoginFailures(t *testing.T) {
	store := newTestStore(t)
	accounts := newTestAccounts(t, store)
	mustRegister(t, accounts, "Alice", "alice@example.com")

	tests := []struct {
		name  string
		input LoginInput
	}{
		{"unknown email", LoginInput{Email: "bob@example.com", Password: "secret123"}},
		{"wrong password", LoginInput{Email: "alice@example.com", Password: "wrong-password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.Login(context.Background(), tt.input)
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Login() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	accounts := newTestAccounts(t, newTestStore(t))
	if _, err := accounts.Authenticate("not.a.token"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Authenticate() error = %v, want ErrUnauthorized", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	store := newTestStore(t)
	accounts := newTestAccounts(t, store)
	ctx := context.Background()
	account := mustRegister(t, accounts, "Alice", "alice@example.com")

	if _, err := accounts.RequireAdmin(ctx, account.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("RequireAdmin() error = %v, want ErrForbidden", err)
	}
	if err := accounts.SetAdmin(ctx, "ALICE@example.com", true); err != nil {
		t.Fatalf("SetAdmin() error = %v", err)
	}
	if _, err := accounts.RequireAdmin(ctx, account.ID); err != nil {
		t.Fatalf("RequireAdmin() after promotion error = %v", err)
	}
	if _, err := accounts.RequireAdmin(ctx, "missing"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("RequireAdmin(missing) error = %v, want ErrUnauthorized", err)
	}
	if err := accounts.SetAdmin(ctx, "nobody@example.com", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetAdmin(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestProfileResolvesPurchases(t *testing.T) {
	store := newTestStore(t)
	accounts := newTestAccounts(t, store)
	catalog := NewCatalogService(store, nil, 0, zapNop())
	ctx := context.Background()

	account := mustRegister(t, accounts, "Alice", "alice@example.com")
	kept := mustCreate(t, catalog, "kept", "car", true, 10)
	gone := mustCreate(t, catalog, "gone", "bike", true, 12)

	for i, image := range []string{kept.ID, gone.ID} {
		if _, err := store.Fulfill(ctx, grantFor(account.ID, image, i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := catalog.Delete(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	profile, err := accounts.Profile(ctx, account.ID)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if len(profile.Account.PurchasedImages) != 2 {
		t.Errorf("purchased ids = %v, want both ids", profile.Account.PurchasedImages)
	}
	if len(profile.PurchasedImages) != 1 || profile.PurchasedImages[0].ID != kept.ID {
		t.Errorf("resolved images = %+v, want only %s", profile.PurchasedImages, kept.ID)
	}
}
