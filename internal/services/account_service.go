package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"autovault/internal/auth"
	"autovault/internal/database"
	"autovault/internal/models"
)

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is what a successful register or login hands back to the client.
type Session struct {
	Account *models.Account
	Token   string
}

// Profile is an account together with its resolved purchases.
type Profile struct {
	Account         *models.Account
	PurchasedImages []models.Image
}

// AccountService covers registration, login and profile lookups.
type AccountService struct {
	accounts database.AccountStore
	images   database.ImageStore
	tokens   *auth.TokenIssuer
	timeout  time.Duration
	log      *zap.Logger
}

func NewAccountService(accounts database.AccountStore, images database.ImageStore, tokens *auth.TokenIssuer, timeout time.Duration, log *zap.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		images:   images,
		tokens:   tokens,
		timeout:  timeout,
		log:      log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs a token for it.
// A taken email yields ErrConflict.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	}

	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	if err := s.accounts.CreateAccount(sctx, account); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, fmt.Errorf("user already exists: %w", ErrConflict)
		}
		return nil, storeError(err, "create account")
	}

	s.log.Info("account registered", zap.String("account_id", account.ID))
	return s.session(account)
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller: both return ErrUnauthorized.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	account, err := s.accounts.GetAccountByEmail(sctx, in.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
		}
		return nil, storeError(err, "find account")
	}
	if !auth.CheckPasswordHash(in.Password, account.PasswordHash) {
		s.log.Info("failed login attempt", zap.String("account_id", account.ID))
		return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	}
	return s.session(account)
}

func (s *AccountService) session(account *models.Account) (*Session, error) {
	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token}, nil
}

// Authenticate resolves a token to the account id it was issued for.
func (s *AccountService) Authenticate(token string) (string, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return id, nil
}

// Account loads the account behind an authenticated id. A token for an
// account that no longer exists is treated as unauthorized.
func (s *AccountService) Account(ctx context.Context, accountID string) (*models.Account, error) {
	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	account, err := s.accounts.GetAccountByID(sctx, accountID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("account not found: %w", ErrUnauthorized)
		}
		return nil, storeError(err, "load account")
	}
	return account, nil
}

// RequireAdmin returns ErrForbidden unless the account carries the admin flag.
func (s *AccountService) RequireAdmin(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsAdmin {
		return nil, ErrForbidden
	}
	return account, nil
}

// Profile returns the account with every purchased image that still exists.
func (s *AccountService) Profile(ctx context.Context, accountID string) (*Profile, error) {
	account, err := s.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	images, err := s.images.GetImages(sctx, account.PurchasedImages)
	if err != nil {
		return nil, storeError(err, "load purchased images")
	}
	return &Profile{Account: account, PurchasedImages: images}, nil
}

// SetAdmin grants or revokes the admin flag by email.
func (s *AccountService) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	email = normalizeEmail(email)
	if email == "" {
		return newValidationError("email", "is required")
	}
	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	if err := s.accounts.SetAdmin(sctx, email, isAdmin); err != nil {
		return storeError(err, "update account")
	}
	s.log.Info("admin flag changed", zap.String("email", email), zap.Bool("is_admin", isAdmin))
	return nil
}
