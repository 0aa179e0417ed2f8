package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"ms-watchmarket/internal/models"

	"github.com/google/uuid"
)

type PaymentUpdate struct {
	IntentID string
	PaidAt   *time.Time
}

type ShippingUpdate struct {
	TrackingNumber    string
	Carrier           string
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time
}

// ReturnInput describes the return opened together with a move to return_requested.
// ShippingPaidBy overrides the default payer for the return type when set.
type ReturnInput struct {
	ID             string
	Reason         string
	Type           models.ReturnType
	ShippingPaidBy models.Party
}

// Request is one requested change. An empty Target leaves the order status
// alone and only moves the payment or shipping axes.
type Request struct {
	Target         models.OrderStatus
	PaymentStatus  models.PaymentStatus
	ShippingStatus models.ShippingStatus
	Payment        *PaymentUpdate
	Shipping       *ShippingUpdate
	Return         *ReturnInput
}

func (r Request) empty() bool {
	return r.Target == "" && r.PaymentStatus == "" && r.ShippingStatus == "" &&
		r.Payment == nil && r.Shipping == nil && r.Return == nil
}

// successor is the happy path.
var successor = map[models.OrderStatus]models.OrderStatus{
	models.StatusPendingBid:               models.StatusPendingPayment,
	models.StatusPendingPayment:           models.StatusPaymentConfirmed,
	models.StatusPaymentConfirmed:         models.StatusAuthenticationInProgress,
	models.StatusAuthenticationInProgress: models.StatusAuthenticated,
	models.StatusAuthenticated:            models.StatusShipped,
	models.StatusShipped:                  models.StatusDelivered,
	models.StatusDelivered:                models.StatusInspectionPeriod,
	models.StatusInspectionPeriod:         models.StatusCompleted,
}

var paymentMoves = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending:    {models.PaymentProcessing, models.PaymentCompleted, models.PaymentFailed},
	models.PaymentProcessing: {models.PaymentCompleted, models.PaymentFailed},
	models.PaymentFailed:     {models.PaymentProcessing},
	models.PaymentCompleted:  {models.PaymentRefunded},
}

var shippingMoves = map[models.ShippingStatus][]models.ShippingStatus{
	models.ShippingPending:   {models.ShippingShipped},
	models.ShippingShipped:   {models.ShippingInTransit, models.ShippingDelivered},
	models.ShippingInTransit: {models.ShippingDelivered},
	models.ShippingDelivered: {models.ShippingReturned},
}

// Transition applies req to current and returns the updated order. On any
// error the returned order is current, untouched.
func Transition(current models.Order, req Request, policy Policy, now time.Time) (models.Order, error) {
	if !current.Status.IsValid() {
		return current, models.InvalidTransition(current.Status, req.Target, "unknown current status")
	}
	if current.Status == models.StatusCompleted {
		return current, models.InvalidTransition(current.Status, req.Target, "order is completed")
	}
	if req.empty() {
		return current, models.InvalidTransition(current.Status, current.Status, "nothing to change")
	}
	if req.Target != "" && !req.Target.IsValid() {
		return current, models.InvalidTransition(current.Status, req.Target, "unknown status")
	}
	if req.Return != nil && req.Target != models.StatusReturnRequested {
		return current, fmt.Errorf("%w: return details only accompany a move to %s", models.ErrInvalidReturnRequest, models.StatusReturnRequested)
	}

	next := current.Clone()
	if err := applyPayment(&next, req, now); err != nil {
		return current, err
	}
	if err := applyShipping(&next, req, now); err != nil {
		return current, err
	}
	if req.Target != "" {
		if err := applyStatus(&next, current.Status, req, policy, now); err != nil {
			return current, err
		}
	}
	if err := CheckConsistency(next); err != nil {
		return current, err
	}

	next.UpdatedAt = now
	return next, nil
}

func applyPayment(o *models.Order, req Request, now time.Time) error {
	to := req.PaymentStatus
	if to != "" && to != o.PaymentStatus {
		if !to.IsValid() || !contains(paymentMoves[o.PaymentStatus], to) {
			return &models.TransitionError{Axis: "payment", From: string(o.PaymentStatus), To: string(to)}
		}
		o.PaymentStatus = to
	}
	if req.Payment != nil {
		if req.Payment.IntentID != "" {
			o.PaymentIntentID = req.Payment.IntentID
		}
		if req.Payment.PaidAt != nil {
			paid := *req.Payment.PaidAt
			o.PaidAt = &paid
		}
	}
	if o.PaymentStatus == models.PaymentCompleted && o.PaidAt == nil {
		paid := now
		o.PaidAt = &paid
	}
	return nil
}

func applyShipping(o *models.Order, req Request, now time.Time) error {
	if req.Shipping != nil {
		if v := strings.TrimSpace(req.Shipping.TrackingNumber); v != "" {
			o.TrackingNumber = v
		}
		if v := strings.TrimSpace(req.Shipping.Carrier); v != "" {
			o.Carrier = v
		}
		if req.Shipping.EstimatedDelivery != nil {
			eta := *req.Shipping.EstimatedDelivery
			o.EstimatedDelivery = &eta
		}
		if req.Shipping.DeliveredAt != nil {
			at := *req.Shipping.DeliveredAt
			o.DeliveredAt = &at
		}
	}

	to := req.ShippingStatus
	if to == "" || to == o.ShippingStatus {
		return nil
	}
	if !to.IsValid() || !contains(shippingMoves[o.ShippingStatus], to) {
		return &models.TransitionError{Axis: "shipping", From: string(o.ShippingStatus), To: string(to)}
	}
	if to == models.ShippingShipped {
		if err := requireShippingInfo(o); err != nil {
			return err
		}
	}
	advanceShipping(o, to, now)
	return nil
}

func advanceShipping(o *models.Order, to models.ShippingStatus, now time.Time) {
	o.ShippingStatus = to
	switch to {
	case models.ShippingShipped:
		if o.ShippedAt == nil {
			at := now
			o.ShippedAt = &at
		}
	case models.ShippingDelivered:
		if o.DeliveredAt == nil {
			at := now
			o.DeliveredAt = &at
		}
	}
}

func requireShippingInfo(o *models.Order) error {
	var missing []string
	if o.TrackingNumber == "" {
		missing = append(missing, "trackingNumber")
	}
	if o.Carrier == "" {
		missing = append(missing, "carrier")
	}
	if len(missing) > 0 {
		return models.MissingShippingInfo(missing...)
	}
	return nil
}

func applyStatus(o *models.Order, from models.OrderStatus, req Request, policy Policy, now time.Time) error {
	to := req.Target
	if from.IsTerminal() {
		return models.InvalidTransition(from, to, "order is in a terminal status")
	}
	if to == models.StatusReturnRequested && o.Return.Active() {
		return fmt.Errorf("order %s: %w", o.ID, models.ErrReturnAlreadyActive)
	}
	if to == from {
		return models.InvalidTransition(from, to, "order is already in this status")
	}

	switch to {
	case models.StatusCancelled:
		if from.Rank() >= models.StatusShipped.Rank() {
			return models.InvalidTransition(from, to, "cancellation closes once the order has shipped")
		}

	case models.StatusReturnRequested:
		if err := openReturn(o, from, req.Return, policy, now); err != nil {
			return err
		}

	case models.StatusReturned:
		if from != models.StatusReturnRequested {
			return models.InvalidTransition(from, to, "")
		}
		if o.Return == nil || o.Return.Status != models.ReturnApproved {
			return models.InvalidTransition(from, to, "return request has not been approved")
		}
		if o.ShippingStatus == models.ShippingDelivered {
			advanceShipping(o, models.ShippingReturned, now)
		}

	case models.StatusCompleted:
		switch from {
		case models.StatusInspectionPeriod:
		case models.StatusReturnRequested:
			// Forced completion after the seller rejected the return.
			if o.Return == nil || o.Return.Status != models.ReturnRejected {
				return models.InvalidTransition(from, to, "only a rejected return can be force-completed")
			}
			o.ReturnType = ""
			o.ReturnShippingPaidBy = ""
		default:
			return models.InvalidTransition(from, to, "")
		}

	default:
		if successor[from] != to {
			return models.InvalidTransition(from, to, "")
		}
		if err := enterForward(o, to, now); err != nil {
			return err
		}
	}

	o.Status = to
	return nil
}

func enterForward(o *models.Order, to models.OrderStatus, now time.Time) error {
	switch to {
	case models.StatusPaymentConfirmed:
		var missing []string
		if o.PaymentStatus != models.PaymentCompleted {
			missing = append(missing, "paymentStatus")
		}
		if o.PaymentIntentID == "" {
			missing = append(missing, "paymentIntentId")
		}
		if len(missing) > 0 {
			return models.MissingPaymentInfo(missing...)
		}
	case models.StatusShipped:
		if err := requireShippingInfo(o); err != nil {
			return err
		}
		if o.ShippingStatus == models.ShippingPending {
			advanceShipping(o, models.ShippingShipped, now)
		}
	case models.StatusDelivered:
		if o.ShippingStatus == models.ShippingShipped || o.ShippingStatus == models.ShippingInTransit {
			advanceShipping(o, models.ShippingDelivered, now)
		}
	case models.StatusInspectionPeriod:
		start := now
		o.ReturnWindowStart = &start
	}
	return nil
}

func openReturn(o *models.Order, from models.OrderStatus, in *ReturnInput, policy Policy, now time.Time) error {
	to := models.StatusReturnRequested
	switch {
	case from == models.StatusInspectionPeriod:
		if closes, ok := policy.WindowClosesAt(o.ReturnWindowStart); ok && now.After(closes) {
			return models.InvalidTransition(from, to, "return window closed")
		}
	case from == models.StatusDelivered && policy.AllowReturnFromDelivered:
	default:
		return models.InvalidTransition(from, to, "")
	}

	if in == nil {
		return fmt.Errorf("%w: return details are required", models.ErrInvalidReturnRequest)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return fmt.Errorf("%w: reason is required", models.ErrInvalidReturnRequest)
	}
	if !in.Type.IsValid() {
		return fmt.Errorf("%w: unknown return type %q", models.ErrInvalidReturnRequest, in.Type)
	}
	payer := in.Type.DefaultShippingPayer()
	if in.ShippingPaidBy != "" {
		if !in.ShippingPaidBy.IsValid() {
			return fmt.Errorf("%w: unknown party %q", models.ErrInvalidReturnRequest, in.ShippingPaidBy)
		}
		payer = in.ShippingPaidBy
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	o.Return = &models.ReturnRequest{
		ID:             id,
		OrderID:        o.ID,
		Reason:         reason,
		ReturnType:     in.Type,
		Status:         models.ReturnPendingApproval,
		ShippingPaidBy: payer,
		CreatedAt:      now,
	}
	o.ReturnType = in.Type
	o.ReturnShippingPaidBy = payer
	if o.ReturnWindowStart == nil {
		start := now
		o.ReturnWindowStart = &start
	}
	return nil
}

// AllowedTargets lists the statuses reachable from o in one step, ignoring
// payment and shipping preconditions.
func AllowedTargets(o models.Order, policy Policy) []models.OrderStatus {
	from := o.Status
	if from.IsTerminal() {
		return nil
	}
	var out []models.OrderStatus
	if next, ok := successor[from]; ok {
		out = append(out, next)
	}
	switch from {
	case models.StatusDelivered:
		if policy.AllowReturnFromDelivered && !o.Return.Active() {
			out = append(out, models.StatusReturnRequested)
		}
	case models.StatusInspectionPeriod:
		if !o.Return.Active() {
			out = append(out, models.StatusReturnRequested)
		}
	case models.StatusReturnRequested:
		if o.Return != nil && o.Return.Status == models.ReturnApproved {
			out = append(out, models.StatusReturned)
		}
		if o.Return != nil && o.Return.Status == models.ReturnRejected {
			out = append(out, models.StatusCompleted)
		}
	}
	if from.Rank() < models.StatusShipped.Rank() {
		out = append(out, models.StatusCancelled)
	}
	return out
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
