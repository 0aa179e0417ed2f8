package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order is one sale of one listed watch between a buyer and a seller.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID        string `bun:"order_id,pk" json:"id"`
	ListingID string `bun:"listing_id,notnull" json:"listingId"`
	BuyerID   string `bun:"buyer_id,notnull" json:"buyerId"`
	SellerID  string `bun:"seller_id,notnull" json:"sellerId"`

	// Snapshot of the listing at creation time.
	Title      string  `bun:"title,notnull" json:"title"`
	Brand      string  `bun:"brand" json:"brand"`
	Model      string  `bun:"model" json:"model"`
	FinalPrice float64 `bun:"final_price,notnull" json:"finalPrice"`
	Currency   string  `bun:"currency,notnull" json:"currency"`

	Status         OrderStatus    `bun:"status,notnull" json:"status"`
	PaymentStatus  PaymentStatus  `bun:"payment_status,notnull" json:"paymentStatus"`
	ShippingStatus ShippingStatus `bun:"shipping_status,notnull" json:"shippingStatus"`

	PaidAt          *time.Time `bun:"paid_at,nullzero" json:"paidAt,omitempty"`
	PaymentIntentID string     `bun:"payment_intent_id,nullzero" json:"paymentIntentId,omitempty"`

	TrackingNumber    string     `bun:"tracking_number,nullzero" json:"trackingNumber,omitempty"`
	Carrier           string     `bun:"carrier,nullzero" json:"carrier,omitempty"`
	ShippedAt         *time.Time `bun:"shipped_at,nullzero" json:"shippedAt,omitempty"`
	EstimatedDelivery *time.Time `bun:"estimated_delivery,nullzero" json:"estimatedDelivery,omitempty"`
	DeliveredAt       *time.Time `bun:"delivered_at,nullzero" json:"deliveredAt,omitempty"`

	AuthenticationRef string `bun:"authentication_ref,nullzero" json:"authenticationRef,omitempty"`

	ReturnWindowStart    *time.Time     `bun:"return_window_start,nullzero" json:"returnWindowStart,omitempty"`
	ReturnType           ReturnType     `bun:"return_type,nullzero" json:"returnType,omitempty"`
	ReturnShippingPaidBy Party          `bun:"return_shipping_paid_by,nullzero" json:"returnShippingPaidBy,omitempty"`
	Return               *ReturnRequest `bun:"rel:has-one,join:order_id=order_id" json:"returnRequest,omitempty"`

	VerificationCost float64 `bun:"verification_cost" json:"verificationCost"`
	ShippingCost     float64 `bun:"shipping_cost" json:"shippingCost"`
	TotalCost        float64 `bun:"total_cost" json:"totalCost"`

	// Version is bumped on every committed write and guards compare-and-swap updates.
	Version   int64     `bun:"version,notnull" json:"version"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// ReturnRequest is a buyer's attempt to send the watch back. It belongs to exactly one order.
type ReturnRequest struct {
	bun.BaseModel `bun:"table:return_requests"`

	ID             string       `bun:"return_id,pk" json:"id"`
	OrderID        string       `bun:"order_id,notnull,unique" json:"orderId"`
	Reason         string       `bun:"reason,notnull" json:"reason"`
	ReturnType     ReturnType   `bun:"return_type,notnull" json:"returnType"`
	Status         ReturnStatus `bun:"status,notnull" json:"status"`
	ShippingPaidBy Party        `bun:"shipping_paid_by,notnull" json:"shippingPaidBy"`
	LabelURL       string       `bun:"label_url,nullzero" json:"labelUrl,omitempty"`
	TrackingNumber string       `bun:"tracking_number,nullzero" json:"trackingNumber,omitempty"`
	DecisionNote   string       `bun:"decision_note,nullzero" json:"decisionNote,omitempty"`
	CreatedAt      time.Time    `bun:"created_at,notnull" json:"createdAt"`
	DecidedAt      *time.Time   `bun:"decided_at,nullzero" json:"decidedAt,omitempty"`
}

// Active reports whether the request still blocks a new one.
func (r *ReturnRequest) Active() bool {
	return r != nil && (r.Status == ReturnPendingApproval || r.Status == ReturnApproved)
}

// Clone returns a deep copy so callers can mutate the result without touching o.
func (o Order) Clone() Order {
	c := o
	c.PaidAt = cloneTime(o.PaidAt)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.EstimatedDelivery = cloneTime(o.EstimatedDelivery)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.ReturnWindowStart = cloneTime(o.ReturnWindowStart)
	if o.Return != nil {
		r := *o.Return
		r.DecidedAt = cloneTime(o.Return.DecidedAt)
		c.Return = &r
	}
	return c
}

// Party reports which side of the order userID is on.
func (o *Order) Party(userID string) (Party, bool) {
	switch userID {
	case "":
		return "", false
	case o.BuyerID:
		return PartyBuyer, true
	case o.SellerID:
		return PartySeller, true
	}
	return "", false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
