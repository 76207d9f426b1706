package payments

import (
	"context"
	"errors"
)

// EventCheckoutCompleted is the only event type that triggers fulfillment.
const EventCheckoutCompleted = "checkout.session.completed"

// Metadata keys attached to every checkout session.
const (
	MetadataUserID  = "userId"
	MetadataImageID = "imageId"
)

var (
	// ErrInvalidSignature means the payload was not signed with the shared secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrProvider wraps failures talking to the payment provider.
	ErrProvider = errors.New("payment provider error")
)

// SessionRequest describes one hosted checkout for a single image.
type SessionRequest struct {
	AccountID   string
	ImageID     string
	Title       string
	Description string
	ImageURL    string
	// UnitAmount is in minor currency units.
	UnitAmount int64
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Session is the provider's handle for a pending checkout.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Completion is the payload of a completed checkout event.
type Completion struct {
	SessionID     string
	PaymentIntent string
	// AmountTotal is in minor currency units.
	AmountTotal int64
	Metadata    map[string]string
}

// PaymentID is the provider reference an order is keyed by: the payment
// intent when present, otherwise the session id.
func (c *Completion) PaymentID() string {
	if c.PaymentIntent != "" {
		return c.PaymentIntent
	}
	return c.SessionID
}

// Event is a verified provider notification. Completion is only set for
// EventCheckoutCompleted.
type Event struct {
	ID         string
	Type       string
	Completion *Completion
}

// Checkout opens hosted checkout sessions.
type Checkout interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// Verifier authenticates and decodes inbound provider events.
type Verifier interface {
	ParseEvent(payload []byte, signature string) (*Event, error)
}
