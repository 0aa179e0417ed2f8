package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/models"
)

// errorBody is returned by every failed order API call. Code is stable
// across releases; Error is for humans.
type errorBody struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

var errorClasses = []struct {
	target error
	status int
	code   string
}{
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrOrderLocked, http.StatusLocked, "order_locked"},
	{models.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{models.ErrReturnAlreadyActive, http.StatusConflict, "return_already_active"},
	{models.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
	{models.ErrMissingShippingInfo, http.StatusUnprocessableEntity, "missing_shipping_info"},
	{models.ErrMissingPaymentInfo, http.StatusUnprocessableEntity, "missing_payment_info"},
	{models.ErrInvalidReturnRequest, http.StatusUnprocessableEntity, "invalid_return_request"},
	{models.ErrInvalidOrder, http.StatusUnprocessableEntity, "invalid_order"},
	{models.ErrUpstreamFailure, http.StatusBadGateway, "upstream_failure"},
}

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func statusFor(err error) int {
	status, _ := classify(err)
	return status
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		h.Logger.Error("API", op+": "+err.Error())
		message = http.StatusText(status)
	} else {
		h.Logger.Warn("API", op+": "+err.Error())
	}
	writeJSON(w, status, errorBody{Operation: op, Code: code, Error: message})
}

func (h *Handler) badRequest(w http.ResponseWriter, op, message string) {
	h.Logger.Warn("API", op+": "+message)
	writeJSON(w, http.StatusBadRequest, errorBody{Operation: op, Code: "bad_request", Error: message})
}

// forbidden refuses an authenticated caller who may not perform op.
func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request, op, message string) {
	h.Logger.LogSecurity("ORDER_ACCESS", fmt.Sprintf("%s: %s refused: %s", op, auth.UserID(r.Context()), message))
	writeJSON(w, http.StatusForbidden, errorBody{Operation: op, Code: "forbidden", Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
