package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-watchmarket/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string // safe to expose to clients
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

var intentEvents = map[stripe.EventType]models.PaymentStatus{
	"payment_intent.processing":     models.PaymentProcessing,
	"payment_intent.succeeded":      models.PaymentCompleted,
	"payment_intent.payment_failed": models.PaymentFailed,
}

// ParseWebhook verifies a Stripe webhook and turns it into a PaymentEvent.
// Event types that do not affect orders yield a nil event and no error.
func ParseWebhook(payload []byte, signature, secret string) (*models.PaymentEvent, error) {
	if secret == "" {
		return nil, &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	occurred := time.Unix(event.Created, 0).UTC()

	if status, ok := intentEvents[event.Type]; ok {
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, processingError("payment intent", err)
		}
		orderID := intent.Metadata["order_id"]
		if orderID == "" {
			return nil, processingError("payment intent", errors.New("payment intent carries no order_id metadata"))
		}
		pe := &models.PaymentEvent{
			OrderID:         orderID,
			PaymentIntentID: intent.ID,
			Status:          status,
			OccurredAt:      occurred,
		}
		if intent.LastPaymentError != nil {
			pe.FailureReason = intent.LastPaymentError.Msg
		}
		return pe, nil
	}

	if event.Type == "charge.refunded" {
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, processingError("charge", err)
		}
		if charge.PaymentIntent == nil || charge.Metadata["order_id"] == "" && charge.PaymentIntent.Metadata["order_id"] == "" {
			return nil, nil
		}
		orderID := charge.Metadata["order_id"]
		if orderID == "" {
			orderID = charge.PaymentIntent.Metadata["order_id"]
		}
		return &models.PaymentEvent{
			OrderID:         orderID,
			PaymentIntentID: charge.PaymentIntent.ID,
			Status:          models.PaymentRefunded,
			OccurredAt:      occurred,
		}, nil
	}

	return nil, nil
}

func processingError(object string, err error) error {
	return &WebhookError{
		Category:      "processing",
		StatusCode:    http.StatusBadRequest,
		PublicError:   "Invalid webhook payload",
		InternalError: fmt.Sprintf("failed to decode %s: %v", object, err),
		OriginalErr:   err,
	}
}
