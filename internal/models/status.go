package models

// OrderStatus is the lifecycle position of an order.
type OrderStatus string

const (
	StatusPendingBid               OrderStatus = "pending_bid"
	StatusPendingPayment           OrderStatus = "pending_payment"
	StatusPaymentConfirmed         OrderStatus = "payment_confirmed"
	StatusAuthenticationInProgress OrderStatus = "authentication_in_progress"
	StatusAuthenticated            OrderStatus = "authenticated"
	StatusShipped                  OrderStatus = "shipped"
	StatusDelivered                OrderStatus = "delivered"
	StatusInspectionPeriod         OrderStatus = "inspection_period"
	StatusCompleted                OrderStatus = "completed"
	StatusReturnRequested          OrderStatus = "return_requested"
	StatusReturned                 OrderStatus = "returned"
	StatusCancelled                OrderStatus = "cancelled"
)

// OrderStatuses lists every order status in happy-path order followed by the side branches.
var OrderStatuses = []OrderStatus{
	StatusPendingBid,
	StatusPendingPayment,
	StatusPaymentConfirmed,
	StatusAuthenticationInProgress,
	StatusAuthenticated,
	StatusShipped,
	StatusDelivered,
	StatusInspectionPeriod,
	StatusCompleted,
	StatusReturnRequested,
	StatusReturned,
	StatusCancelled,
}

func (s OrderStatus) IsValid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusReturned || s == StatusCancelled
}

// Rank is the position of s on the happy path. Side-branch statuses that can
// only be reached after delivery rank after inspection; cancelled ranks -1.
func (s OrderStatus) Rank() int {
	switch s {
	case StatusReturnRequested, StatusReturned:
		return 8
	case StatusCancelled:
		return -1
	}
	for i, v := range OrderStatuses[:9] {
		if v == s {
			return i
		}
	}
	return -1
}

// PaymentStatus tracks the money side of an order.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentRefunded}

func (s PaymentStatus) IsValid() bool {
	for _, v := range PaymentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ShippingStatus tracks the parcel.
type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "pending"
	ShippingShipped   ShippingStatus = "shipped"
	ShippingInTransit ShippingStatus = "in_transit"
	ShippingDelivered ShippingStatus = "delivered"
	ShippingReturned  ShippingStatus = "returned"
)

var ShippingStatuses = []ShippingStatus{ShippingPending, ShippingShipped, ShippingInTransit, ShippingDelivered, ShippingReturned}

func (s ShippingStatus) IsValid() bool {
	for _, v := range ShippingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Dispatched reports whether the parcel has left the seller.
func (s ShippingStatus) Dispatched() bool {
	return s != ShippingPending && s.IsValid()
}

type ReturnType string

const (
	ReturnBuyerRemorse     ReturnType = "buyer_remorse"
	ReturnItemMismatch     ReturnType = "item_mismatch"
	ReturnNotAsDescribed   ReturnType = "not_as_described"
	ReturnDamagedInTransit ReturnType = "damaged_in_transit"
)

var ReturnTypes = []ReturnType{ReturnBuyerRemorse, ReturnItemMismatch, ReturnNotAsDescribed, ReturnDamagedInTransit}

func (t ReturnType) IsValid() bool {
	for _, v := range ReturnTypes {
		if v == t {
			return true
		}
	}
	return false
}

// DefaultShippingPayer is who covers return postage when nobody overrides it.
// Only buyer remorse puts the cost on the buyer.
func (t ReturnType) DefaultShippingPayer() Party {
	if t == ReturnBuyerRemorse {
		return PartyBuyer
	}
	return PartySeller
}

type ReturnStatus string

const (
	ReturnPendingApproval ReturnStatus = "pending_approval"
	ReturnApproved        ReturnStatus = "approved"
	ReturnRejected        ReturnStatus = "rejected"
)

func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnPendingApproval, ReturnApproved, ReturnRejected:
		return true
	}
	return false
}

// Party is one side of a sale.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

func (p Party) IsValid() bool {
	return p == PartyBuyer || p == PartySeller
}
