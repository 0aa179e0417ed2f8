package models

import "time"

const (
	EventOrderCreated   = "order.created"
	EventStatusChanged  = "order.status_changed"
	EventPaymentUpdated = "order.payment_updated"
	EventReturnDecided  = "order.return_decided"
)

// OrderEvent is published after a committed change to an order.
type OrderEvent struct {
	Type       string      `json:"type"`
	OrderID    string      `json:"orderId"`
	FromStatus OrderStatus `json:"fromStatus,omitempty"`
	ToStatus   OrderStatus `json:"toStatus"`
	Order      Order       `json:"order"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func NewOrderEvent(eventType string, from OrderStatus, order Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   order.Status,
		Order:      order,
		OccurredAt: at,
	}
}
