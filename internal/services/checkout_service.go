package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autovault/internal/database"
	"autovault/internal/idempotency"
	"autovault/internal/metrics"
	"autovault/internal/models"
	"autovault/internal/payments"
)

// Offline checkout returns this fixed session id so the storefront's success
// page works without a provider.
const OfflineSessionID = "dummy_session_id"

// WebhookOutcome classifies how a provider delivery was handled.
type WebhookOutcome string

const (
	OutcomeFulfilled          WebhookOutcome = "fulfilled"
	OutcomeDuplicate          WebhookOutcome = "duplicate"
	OutcomeIgnored            WebhookOutcome = "ignored"
	OutcomeRejectedSignature  WebhookOutcome = "rejected_signature"
	OutcomeFulfillmentDropped WebhookOutcome = "fulfillment_dropped"
	OutcomeFulfillmentRetry   WebhookOutcome = "fulfillment_retry"
)

// Acknowledge reports whether the provider should get a success response.
func (o WebhookOutcome) Acknowledge() bool {
	return o != OutcomeRejectedSignature && o != OutcomeFulfillmentRetry
}

// Reporter forwards errors that need a human to look at them.
type Reporter func(err error, tags map[string]string)

// CheckoutConfig holds the non-store dependencies of CheckoutService.
type CheckoutConfig struct {
	// Checkout is nil in offline mode.
	Checkout    payments.Checkout
	Verifier    payments.Verifier
	Claims      idempotency.Claims
	Metrics     *metrics.Metrics
	Reporter    Reporter
	FrontendURL string
	Currency    string
	Timeout     time.Duration
}

// CheckoutService initiates purchases and fulfills them from provider events.
type CheckoutService struct {
	store       database.Store
	checkout    payments.Checkout
	verifier    payments.Verifier
	claims      idempotency.Claims
	metrics     *metrics.Metrics
	report      Reporter
	frontendURL string
	currency    string
	timeout     time.Duration
	log         *zap.Logger
	now         func() time.Time
}

func NewCheckoutService(store database.Store, cfg CheckoutConfig, log *zap.Logger) *CheckoutService {
	s := &CheckoutService{
		store:       store,
		checkout:    cfg.Checkout,
		verifier:    cfg.Verifier,
		claims:      cfg.Claims,
		metrics:     cfg.Metrics,
		report:      cfg.Reporter,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		currency:    cfg.Currency,
		timeout:     cfg.Timeout,
		log:         log,
		now:         time.Now,
	}
	if s.claims == nil {
		s.claims = idempotency.Noop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.report == nil {
		s.report = func(error, map[string]string) {}
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	return s
}

// Offline reports whether purchases are fulfilled without a provider.
func (s *CheckoutService) Offline() bool {
	return s.checkout == nil
}

// InitiateCheckout starts a purchase of imageID by accountID. In offline mode
// the purchase is fulfilled before returning; otherwise a hosted session is
// created and nothing is written locally.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, accountID, imageID string) (*payments.Session, error) {
	mode := "live"
	if s.Offline() {
		mode = "offline"
	}

	session, err := s.initiate(ctx, accountID, imageID)
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotPremium), errors.Is(err, ErrAlreadyPurchased), errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation):
		result = "rejected"
	default:
		result = "error"
	}
	s.metrics.Checkouts.WithLabelValues(mode, result).Inc()
	return session, err
}

func (s *CheckoutService) initiate(ctx context.Context, accountID, imageID string) (*payments.Session, error) {
	if strings.TrimSpace(imageID) == "" {
		return nil, newValidationError("imageId", "is required")
	}

	sctx, cancel := storeContext(ctx, s.timeout)
	image, err := s.store.GetImage(sctx, imageID)
	cancel()
	if err != nil {
		return nil, storeError(err, "image")
	}
	if !image.IsPremium {
		return nil, ErrNotPremium
	}

	sctx, cancel = storeContext(ctx, s.timeout)
	account, err := s.store.GetAccountByID(sctx, accountID)
	cancel()
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("account not found: %w", ErrUnauthorized)
		}
		return nil, storeError(err, "account")
	}
	if account.HasPurchased(image.ID) {
		return nil, ErrAlreadyPurchased
	}

	if s.Offline() {
		return s.fulfillOffline(ctx, account, image)
	}

	req := payments.SessionRequest{
		AccountID:   account.ID,
		ImageID:     image.ID,
		Title:       image.Title,
		Description: image.Description,
		ImageURL:    image.ImageURL,
		UnitAmount:  ToMinorUnits(image.Price),
		Currency:    s.currency,
		SuccessURL:  s.frontendURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.frontendURL + "/image/" + url.PathEscape(image.ID),
	}
	session, err := s.checkout.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("account_id", account.ID),
		zap.String("image_id", image.ID),
		zap.Int64("unit_amount", req.UnitAmount))
	return session, nil
}

func (s *CheckoutService) fulfillOffline(ctx context.Context, account *models.Account, image *models.Image) (*payments.Session, error) {
	suffix, err := GenerateSecureToken(6)
	if err != nil {
		return nil, err
	}
	grant := models.Grant{
		UserID:    account.ID,
		ImageID:   image.ID,
		PaymentID: fmt.Sprintf("dummy_payment_%d_%s", s.now().UnixMilli(), suffix),
		Amount:    image.Price,
	}

	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	if _, err := s.store.Fulfill(sctx, grant); err != nil {
		return nil, storeError(err, "fulfill offline purchase")
	}
	s.metrics.Fulfillments.WithLabelValues("offline").Inc()

	s.log.Info("offline purchase fulfilled",
		zap.String("payment_id", grant.PaymentID),
		zap.String("account_id", account.ID),
		zap.String("image_id", image.ID))

	return &payments.Session{
		ID:  OfflineSessionID,
		URL: s.frontendURL + "/payment-success?session_id=" + OfflineSessionID,
	}, nil
}

// HandleConfirmation authenticates and applies one provider event. The
// returned outcome decides the response: see WebhookOutcome.Acknowledge.
// A non-nil error accompanies the two outcomes that are not acknowledged.
func (s *CheckoutService) HandleConfirmation(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	outcome, err := s.handleConfirmation(ctx, payload, signature)
	s.metrics.WebhookEvents.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (s *CheckoutService) handleConfirmation(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	event, err := s.verifier.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			s.log.Warn("webhook rejected",
				zap.String("outcome", string(OutcomeRejectedSignature)),
				zap.Error(err))
			return OutcomeRejectedSignature, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		// Authentic but undecodable: nothing a redelivery would fix.
		return s.drop(nil, "", err), nil
	}

	log := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	if event.Type != payments.EventCheckoutCompleted || event.Completion == nil {
		log.Info("webhook event ignored", zap.String("outcome", string(OutcomeIgnored)))
		return OutcomeIgnored, nil
	}

	claimed, err := s.claims.Claim(ctx, event.ID)
	if err != nil {
		// The ledger deduplicates on payment id, so proceed without the claim.
		log.Warn("webhook claim unavailable", zap.Error(err))
		claimed = true
	}
	if !claimed {
		log.Info("webhook event already processed", zap.String("outcome", string(OutcomeDuplicate)))
		return OutcomeDuplicate, nil
	}

	c := event.Completion
	grant := models.Grant{
		UserID:    c.Metadata[payments.MetadataUserID],
		ImageID:   c.Metadata[payments.MetadataImageID],
		PaymentID: c.PaymentID(),
		Amount:    FromMinorUnits(c.AmountTotal),
	}
	log = log.With(
		zap.String("payment_id", grant.PaymentID),
		zap.String("account_id", grant.UserID),
		zap.String("image_id", grant.ImageID))

	if grant.UserID == "" || grant.ImageID == "" || grant.PaymentID == "" {
		return s.drop(log, event.ID, errors.New("checkout session is missing userId/imageId metadata")), nil
	}

	created, err := s.fulfill(ctx, grant)
	if err != nil {
		if database.IsTransient(err) {
			if rerr := s.claims.Release(context.WithoutCancel(ctx), event.ID); rerr != nil {
				log.Warn("failed to release webhook claim", zap.Error(rerr))
			}
			log.Error("webhook fulfillment will be retried",
				zap.String("outcome", string(OutcomeFulfillmentRetry)),
				zap.Error(err))
			return OutcomeFulfillmentRetry, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return s.drop(log, event.ID, err), nil
	}

	if !created {
		log.Info("payment already recorded", zap.String("outcome", string(OutcomeDuplicate)))
		return OutcomeDuplicate, nil
	}

	s.metrics.Fulfillments.WithLabelValues("webhook").Inc()
	log.Info("purchase fulfilled",
		zap.String("outcome", string(OutcomeFulfilled)),
		zap.Float64("amount", grant.Amount))
	return OutcomeFulfilled, nil
}

func (s *CheckoutService) fulfill(ctx context.Context, grant models.Grant) (bool, error) {
	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.GetImage(sctx, grant.ImageID); err != nil {
		return false, fmt.Errorf("image %s: %w", grant.ImageID, err)
	}
	created, err := s.store.Fulfill(sctx, grant)
	if err != nil {
		return false, fmt.Errorf("account %s: %w", grant.UserID, err)
	}
	return created, nil
}

// drop records an authenticated event that cannot be fulfilled. The provider
// is still acknowledged.
func (s *CheckoutService) drop(log *zap.Logger, eventID string, err error) WebhookOutcome {
	if log == nil {
		log = s.log
	}
	log.Error("webhook fulfillment dropped",
		zap.String("outcome", string(OutcomeFulfillmentDropped)),
		zap.Error(err))
	s.report(err, map[string]string{
		"component": "webhook",
		"outcome":   string(OutcomeFulfillmentDropped),
		"event_id":  eventID,
	})
	return OutcomeFulfillmentDropped
}

// ListOrders returns the caller's own orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, accountID string) ([]models.Order, error) {
	sctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	orders, err := s.store.ListOrders(sctx, accountID)
	if err != nil {
		return nil, storeError(err, "list orders")
	}
	return orders, nil
}

// ToMinorUnits converts a price to cents, rounding half away from zero.
func ToMinorUnits(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a price.
func FromMinorUnits(amount int64) float64 {
	return decimal.New(amount, -2).InexactFloat64()
}
