package order_api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/payment"
	"ms-watchmarket/internal/verification"
)

const maxWebhookBody = 65536

// CreatePaymentIntent creates a payment intent for an order
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadForParty(w, r, "CreatePaymentIntent", models.PartyBuyer)
	if !ok {
		return
	}

	intent, err := h.OrderService.CreatePaymentIntent(r.Context(), order.ID, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "CreatePaymentIntent", err)
		return
	}

	// Return client secret and payment intent ID to the client
	writeJSON(w, http.StatusOK, struct {
		ClientSecret    string  `json:"clientSecret"`
		PaymentIntentID string  `json:"paymentIntentId"`
		Amount          float64 `json:"amount"`
		Currency        string  `json:"currency"`
	}{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
	})
	h.Logger.Info("API", fmt.Sprintf("CreatePaymentIntent: created payment intent for order %s", order.ID))
}

// StripeWebhook handles webhook events from Stripe. Events the order cannot
// accept are acknowledged so Stripe stops retrying; storage and lock
// failures return 5xx so it retries.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusServiceUnavailable)
		return
	}

	event, err := payment.ParseWebhook(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		var webhookErr *payment.WebhookError
		if errors.As(err, &webhookErr) {
			h.Logger.Error("API", fmt.Sprintf("StripeWebhook: category=%s status=%d: %s",
				webhookErr.Category, webhookErr.StatusCode, webhookErr.InternalError))
			http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
			return
		}
		http.Error(w, "Webhook processing error", http.StatusBadRequest)
		return
	}
	if event == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	_, err = h.OrderService.ApplyPaymentEvent(r.Context(), *event)
	switch status := statusFor(err); {
	case err == nil:
		h.Logger.Info("API", fmt.Sprintf("StripeWebhook: order %s payment %s", event.OrderID, event.Status))
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity || status == http.StatusNotFound:
		h.Logger.Warn("API", fmt.Sprintf("StripeWebhook: ignoring %s for order %s: %v", event.Status, event.OrderID, err))
	default:
		h.writeError(w, "StripeWebhook", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AuthenticationResult receives the partner's inspection verdict.
func (h *Handler) AuthenticationResult(w http.ResponseWriter, r *http.Request) {
	var body verification.Result
	if err := h.decode(r, &body); err != nil {
		h.badRequest(w, "AuthenticationResult", err.Error())
		return
	}

	order, err := h.OrderService.RecordAuthenticationResult(r.Context(), body.OrderID, body.Reference, *body.Passed, body.Notes)
	if err != nil {
		// A failed refund after a committed cancellation still reports upstream failure.
		h.writeError(w, "AuthenticationResult", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
