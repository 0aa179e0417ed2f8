package order_api

import (
	"fmt"

	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/order/lifecycle"
)

var (
	buyerOnly   = []models.Party{models.PartyBuyer}
	sellerOnly  = []models.Party{models.PartySeller}
	eitherParty = []models.Party{models.PartyBuyer, models.PartySeller}
)

// targetOwners lists which side may request a move into each status through
// POST /transitions. Statuses missing here are reached through a dedicated
// endpoint (authentication, payment webhook, partner callback) or by support.
var targetOwners = map[models.OrderStatus][]models.Party{
	models.StatusPendingPayment:   sellerOnly,
	models.StatusShipped:          sellerOnly,
	models.StatusDelivered:        eitherParty,
	models.StatusInspectionPeriod: eitherParty,
	models.StatusCompleted:        buyerOnly,
	models.StatusReturnRequested:  buyerOnly,
	models.StatusCancelled:        eitherParty,
}

// checkTransitionActor reports why party may not make req on o, or "" when it
// may. Support callers never reach it.
func checkTransitionActor(o *models.Order, req lifecycle.Request, party models.Party) string {
	if req.PaymentStatus != "" || req.Payment != nil {
		return "payment status is managed by the payment provider"
	}
	if (req.ShippingStatus != "" || req.Shipping != nil) && party != models.PartySeller {
		return "shipping details are recorded by the seller"
	}
	if req.Target == "" || req.Target == o.Status {
		return ""
	}

	owners, ok := targetOwners[req.Target]
	// Completing a return_requested order overrides a rejected return.
	if req.Target == models.StatusCompleted && o.Status == models.StatusReturnRequested {
		ok = false
	}
	if !ok {
		return fmt.Sprintf("%s is not set through this endpoint", req.Target)
	}
	if !containsParty(owners, party) {
		return fmt.Sprintf("only the %s may move an order to %s", owners[0], req.Target)
	}
	return ""
}
