package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test_secret"

func sign(t *testing.T, payload, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

const completedPayload = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "amount_total": 2500,
      "payment_intent": "pi_123",
      "metadata": {"userId": "u1", "imageId": "i1"}
    }
  }
}`

func TestParseCompletedEvent(t *testing.T) {
	v := NewStripeVerifier(testSecret)

	event, err := v.ParseEvent([]byte(completedPayload), sign(t, completedPayload, testSecret))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if event.ID != "evt_1" || event.Type != EventCheckoutCompleted {
		t.Fatalf("event = %+v", event)
	}
	c := event.Completion
	if c == nil {
		t.Fatal("Completion is nil")
	}
	if c.AmountTotal != 2500 {
		t.Errorf("AmountTotal = %d, want 2500", c.AmountTotal)
	}
	if c.PaymentID() != "pi_123" {
		t.Errorf("PaymentID() = %q, want pi_123", c.PaymentID())
	}
	if c.Metadata[MetadataUserID] != "u1" || c.Metadata[MetadataImageID] != "i1" {
		t.Errorf("Metadata = %v", c.Metadata)
	}
}

func TestPaymentIDFallsBackToSession(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","type":"checkout.session.completed",
"data":{"object":{"id":"cs_test_2","amount_total":100,"payment_intent":null,"metadata":{}}}}`

	event, err := NewStripeVerifier(testSecret).ParseEvent([]byte(payload), sign(t, payload, testSecret))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if got := event.Completion.PaymentID(); got != "cs_test_2" {
		t.Errorf("PaymentID() = %q, want cs_test_2", got)
	}
}

func TestExpandedPaymentIntent(t *testing.T) {
	if got := paymentIntentID([]byte(`{"id":"pi_9","object":"payment_intent"}`)); got != "pi_9" {
		t.Errorf("paymentIntentID(object) = %q", got)
	}
	if got := paymentIntentID([]byte(`"pi_8"`)); got != "pi_8" {
		t.Errorf("paymentIntentID(string) = %q", got)
	}
}

func TestOtherEventTypesCarryNoCompletion(t *testing.T) {
	payload := `{"id":"evt_3","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`

	event, err := NewStripeVerifier(testSecret).ParseEvent([]byte(payload), sign(t, payload, testSecret))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if event.Type != "payment_intent.created" || event.Completion != nil {
		t.Errorf("event = %+v", event)
	}
}

func TestRejectsBadSignatures(t *testing.T) {
	v := NewStripeVerifier(testSecret)

	tests := []struct {
		name      string
		payload   string
		signature string
	}{
		{"wrong secret", completedPayload, sign(t, completedPayload, "whsec_other")},
		{"tampered body", completedPayload + " ", sign(t, completedPayload, testSecret)},
		{"missing header", completedPayload, ""},
		{"garbage header", completedPayload, "t=1,v1=deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ParseEvent([]byte(tt.payload), tt.signature)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("ParseEvent() error = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestVerifierWithoutSecretRejectsEverything(t *testing.T) {
	_, err := NewStripeVerifier("").ParseEvent([]byte(completedPayload), sign(t, completedPayload, ""))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("ParseEvent() error = %v, want ErrInvalidSignature", err)
	}
}
