package lifecycle

import (
	"fmt"

	"ms-watchmarket/internal/models"
)

// CheckConsistency verifies that status, payment and shipping agree with each
// other and with the optional metadata. Transition never returns an order
// that fails this check.
func CheckConsistency(o models.Order) error {
	if !o.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, o.Status)
	}
	if !o.PaymentStatus.IsValid() {
		return fmt.Errorf("%w: unknown payment status %q", models.ErrInvalidTransition, o.PaymentStatus)
	}
	if !o.ShippingStatus.IsValid() {
		return fmt.Errorf("%w: unknown shipping status %q", models.ErrInvalidTransition, o.ShippingStatus)
	}
	if err := checkPayment(o); err != nil {
		return err
	}
	if err := checkShipping(o); err != nil {
		return err
	}
	return checkReturn(o)
}

func checkPayment(o models.Order) error {
	rank := o.Status.Rank()
	ps := o.PaymentStatus

	if rank >= models.StatusPaymentConfirmed.Rank() {
		ok := ps == models.PaymentCompleted || (ps == models.PaymentRefunded && o.Status == models.StatusReturned)
		if !ok {
			return &models.TransitionError{Axis: "payment", From: string(o.Status), To: string(ps),
				Reason: "an order past payment confirmation needs a completed payment"}
		}
	}
	if ps == models.PaymentRefunded && o.Status != models.StatusCancelled && o.Status != models.StatusReturned {
		return &models.TransitionError{Axis: "payment", From: string(o.Status), To: string(ps),
			Reason: "refunds only apply to cancelled or returned orders"}
	}

	switch ps {
	case models.PaymentPending:
		if o.PaymentIntentID != "" || o.PaidAt != nil {
			return &models.TransitionError{Axis: "payment", From: string(ps), To: string(ps),
				Reason: "payment details arrive with processing or later"}
		}
	case models.PaymentProcessing, models.PaymentCompleted, models.PaymentRefunded:
		if o.PaymentIntentID == "" {
			return models.MissingPaymentInfo("paymentIntentId")
		}
	}
	return nil
}

func checkShipping(o models.Order) error {
	rank := o.Status.Rank()
	ss := o.ShippingStatus
	bad := func(reason string) error {
		return &models.TransitionError{Axis: "shipping", From: string(o.Status), To: string(ss), Reason: reason}
	}

	switch {
	case o.Status == models.StatusReturned:
		if ss != models.ShippingDelivered && ss != models.ShippingReturned {
			return bad("a returned order must have been delivered")
		}
	case o.Status == models.StatusShipped:
		if !ss.Dispatched() || ss == models.ShippingReturned {
			return bad("a shipped order needs a dispatched parcel")
		}
	case rank >= models.StatusDelivered.Rank():
		if ss != models.ShippingDelivered {
			return bad("a delivered order needs a delivered parcel")
		}
	default:
		if ss != models.ShippingPending {
			return bad("the parcel cannot move before the order ships")
		}
	}

	if ss.Dispatched() {
		return requireShippingInfo(&o)
	}
	if o.TrackingNumber != "" || o.Carrier != "" || o.ShippedAt != nil || o.DeliveredAt != nil {
		// Tracking may be recorded once the watch is authenticated, ahead of the move to shipped.
		if o.Status != models.StatusAuthenticated && o.Status != models.StatusCancelled {
			return bad("shipping details arrive with dispatch")
		}
		if o.ShippedAt != nil || o.DeliveredAt != nil {
			return bad("shipping dates arrive with dispatch")
		}
	}
	return nil
}

func checkReturn(o models.Order) error {
	switch o.Status {
	case models.StatusReturnRequested, models.StatusReturned:
		if o.Return == nil {
			return fmt.Errorf("%w: %s needs a return request", models.ErrInvalidReturnRequest, o.Status)
		}
	case models.StatusCompleted:
		if o.Return != nil && o.Return.Status != models.ReturnRejected {
			return fmt.Errorf("%w: a completed order can only carry a rejected return", models.ErrInvalidReturnRequest)
		}
	default:
		if o.Return != nil {
			return fmt.Errorf("%w: no return may exist in %s", models.ErrInvalidReturnRequest, o.Status)
		}
	}

	if o.ReturnType != "" {
		switch o.Status {
		case models.StatusInspectionPeriod, models.StatusReturnRequested, models.StatusReturned:
		default:
			return fmt.Errorf("%w: return type cannot be set in %s", models.ErrInvalidReturnRequest, o.Status)
		}
	}
	return nil
}
