// Package lifecycle holds the rules for moving an order between statuses.
// Every function here is pure: it takes an order value and returns a new one
// or an error, and never talks to storage or other services.
package lifecycle

import "time"

// Policy carries the product decisions that are allowed to vary per deployment.
type Policy struct {
	// AllowReturnFromDelivered lets a buyer open a return before the
	// inspection period formally starts.
	AllowReturnFromDelivered bool
	// InspectionPeriod is how long the buyer has to open a return once
	// inspection starts. Zero disables the window check.
	InspectionPeriod time.Duration
}

func DefaultPolicy() Policy {
	return Policy{InspectionPeriod: 72 * time.Hour}
}

// WindowClosesAt returns when the return window ends, or false if no window applies.
func (p Policy) WindowClosesAt(start *time.Time) (time.Time, bool) {
	if start == nil || p.InspectionPeriod <= 0 {
		return time.Time{}, false
	}
	return start.Add(p.InspectionPeriod), true
}
