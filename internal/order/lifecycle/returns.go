package lifecycle

import (
	"strings"
	"time"

	"ms-watchmarket/internal/models"
)

// Decision is the seller's (or support's) answer to a pending return.
type Decision struct {
	Approve        bool
	LabelURL       string
	TrackingNumber string
	Note           string
}

// DecideReturn settles the pending return on o. The order status stays at
// return_requested either way; approval only unlocks the move to returned.
func DecideReturn(current models.Order, d Decision, now time.Time) (models.Order, error) {
	if current.Return == nil {
		return current, models.NotFound("return request for order", current.ID)
	}
	to := models.ReturnRejected
	if d.Approve {
		to = models.ReturnApproved
	}
	if current.Status != models.StatusReturnRequested {
		return current, models.InvalidTransition(current.Status, current.Status, "no return is under review")
	}
	if current.Return.Status != models.ReturnPendingApproval {
		return current, &models.TransitionError{Axis: "return", From: string(current.Return.Status), To: string(to),
			Reason: "return has already been decided"}
	}

	next := current.Clone()
	r := next.Return
	r.Status = to
	r.DecisionNote = strings.TrimSpace(d.Note)
	decided := now
	r.DecidedAt = &decided
	if d.Approve {
		r.LabelURL = d.LabelURL
		r.TrackingNumber = strings.TrimSpace(d.TrackingNumber)
	}
	next.UpdatedAt = now
	return next, nil
}
