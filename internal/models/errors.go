package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrMissingShippingInfo  = errors.New("missing shipping info")
	ErrMissingPaymentInfo   = errors.New("missing payment info")
	ErrReturnAlreadyActive  = errors.New("return already active")
	ErrInvalidReturnRequest = errors.New("invalid return request")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrNotFound             = errors.New("not found")
	ErrUpstreamFailure      = errors.New("upstream failure")
	ErrConcurrentUpdate     = errors.New("order was modified concurrently")
	ErrOrderLocked          = errors.New("order is locked by another request")
)

// TransitionError carries the rejected source/target pair. Axis is empty for
// order status changes and "payment" or "shipping" for sub-status moves.
type TransitionError struct {
	Axis   string
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	axis := "status"
	if e.Axis != "" {
		axis = e.Axis + " status"
	}
	msg := fmt.Sprintf("invalid transition: %s %s -> %s", axis, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func InvalidTransition(from, to OrderStatus, reason string) error {
	return &TransitionError{From: string(from), To: string(to), Reason: reason}
}

// MissingInfoError names the precondition fields that were not set.
type MissingInfoError struct {
	Kind   error
	Fields []string
}

func (e *MissingInfoError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Fields, ", "))
}

func (e *MissingInfoError) Is(target error) bool {
	return target == e.Kind
}

func MissingShippingInfo(fields ...string) error {
	return &MissingInfoError{Kind: ErrMissingShippingInfo, Fields: fields}
}

func MissingPaymentInfo(fields ...string) error {
	return &MissingInfoError{Kind: ErrMissingPaymentInfo, Fields: fields}
}

// UpstreamError is a failure reported by an external collaborator such as
// storage, payment, shipping, notification or the authentication partner.
type UpstreamError struct {
	Collaborator string
	Detail       string
	Err          error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream failure (%s): %s: %v", e.Collaborator, e.Detail, e.Err)
	}
	return fmt.Sprintf("upstream failure (%s): %s", e.Collaborator, e.Detail)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamFailure
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func Upstream(collaborator, detail string, err error) error {
	return &UpstreamError{Collaborator: collaborator, Detail: detail, Err: err}
}

func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
