package models

import "time"

// PaymentEvent is what the payment collaborator reports about an order.
type PaymentEvent struct {
	OrderID         string
	PaymentIntentID string
	Status          PaymentStatus
	OccurredAt      time.Time
	FailureReason   string
}

// PaymentIntent is the client-facing part of a created payment intent.
type PaymentIntent struct {
	ID           string  `json:"id"`
	ClientSecret string  `json:"clientSecret"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
}
