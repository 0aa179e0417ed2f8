package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/order"
	"ms-watchmarket/internal/order/lifecycle"
	"ms-watchmarket/internal/returns/label"
	"ms-watchmarket/internal/shipping"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// OrderService is what the HTTP layer needs from the order service.
type OrderService interface {
	PlaceOrder(ctx context.Context, in lifecycle.CreateInput, carrier string) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, role models.Party, status models.OrderStatus) ([]models.Order, error)
	SellerStats(ctx context.Context, sellerID string, days int) (*order.SellerReport, error)
	AllowedTransitions(ctx context.Context, id string) ([]models.OrderStatus, error)
	Transition(ctx context.Context, id string, req lifecycle.Request) (*models.Order, error)
	RequestReturn(ctx context.Context, id string, in lifecycle.ReturnInput) (*models.Order, error)
	ApproveReturn(ctx context.Context, id, trackingNumber, note string) (*models.Order, error)
	RejectReturn(ctx context.Context, id, note string) (*models.Order, error)
	ReturnLabel(ctx context.Context, id string, format label.Format) ([]byte, error)
	StartAuthentication(ctx context.Context, id string) (*models.Order, error)
	RecordAuthenticationResult(ctx context.Context, id, reference string, passed bool, notes string) (*models.Order, error)
	CreatePaymentIntent(ctx context.Context, id, buyerID string) (*models.PaymentIntent, error)
	ApplyPaymentEvent(ctx context.Context, ev models.PaymentEvent) (*models.Order, error)
}

type Handler struct {
	OrderService  OrderService
	Estimator     *shipping.Estimator
	Logger        *logger.Logger
	WebhookSecret string
	validate      *validator.Validate
}

func NewHandler(svc OrderService, estimator *shipping.Estimator, webhookSecret string, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:  svc,
		Estimator:     estimator,
		Logger:        log,
		WebhookSecret: webhookSecret,
		validate:      validator.New(),
	}
}

type createOrderRequest struct {
	ListingID  string  `json:"listingId" validate:"required"`
	BuyerID    string  `json:"buyerId" validate:"required"`
	SellerID   string  `json:"sellerId" validate:"required,nefield=BuyerID"`
	Title      string  `json:"title" validate:"required"`
	Brand      string  `json:"brand"`
	Model      string  `json:"model"`
	FinalPrice float64 `json:"finalPrice" validate:"gt=0"`
	Currency   string  `json:"currency" validate:"omitempty,len=3"`
	Source     string  `json:"source" validate:"required,oneof=bid instant_sale"`
	Carrier    string  `json:"carrier"`
}

type shippingBody struct {
	TrackingNumber    string     `json:"trackingNumber"`
	Carrier           string     `json:"carrier"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	DeliveredAt       *time.Time `json:"deliveredAt"`
}

type paymentBody struct {
	IntentID string     `json:"paymentIntentId"`
	PaidAt   *time.Time `json:"paidAt"`
}

type transitionRequest struct {
	Target         string        `json:"target"`
	PaymentStatus  string        `json:"paymentStatus"`
	ShippingStatus string        `json:"shippingStatus"`
	Shipping       *shippingBody `json:"shipping"`
	Payment        *paymentBody  `json:"payment"`
}

type returnRequest struct {
	Reason         string `json:"reason" validate:"required"`
	Type           string `json:"type" validate:"required"`
	ShippingPaidBy string `json:"shippingPaidBy" validate:"omitempty,oneof=buyer seller"`
}

type decisionRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Note           string `json:"note"`
}

func (h *Handler) decode(r *http.Request, dst interface{}) error {
	// An empty body is fine for requests whose fields are all optional.
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// CreateOrder is called when a bid is accepted or an instant sale checks out.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, "CreateOrder", err.Error())
		return
	}
	caller := auth.UserID(r.Context())
	if caller != req.BuyerID && !auth.HasRole(r.Context(), auth.RoleSupport) {
		h.forbidden(w, r, "CreateOrder", "orders are placed by their buyer")
		return
	}

	order, err := h.OrderService.PlaceOrder(r.Context(), lifecycle.CreateInput{
		ListingID:  req.ListingID,
		BuyerID:    req.BuyerID,
		SellerID:   req.SellerID,
		Title:      req.Title,
		Brand:      req.Brand,
		Model:      req.Model,
		FinalPrice: req.FinalPrice,
		Currency:   req.Currency,
		Source:     lifecycle.Source(req.Source),
	}, req.Carrier)
	if err != nil {
		h.writeError(w, "CreateOrder", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: order %s created", order.ID))
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadForParty(w, r, "GetOrder")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListOrders returns the caller's orders as buyer (default) or seller.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	role := models.Party(r.URL.Query().Get("role"))
	if role == "" {
		role = models.PartyBuyer
	}
	if !role.IsValid() {
		h.badRequest(w, "ListOrders", "role must be buyer or seller")
		return
	}
	status := models.OrderStatus(r.URL.Query().Get("status"))

	orders, err := h.OrderService.ListOrders(r.Context(), auth.UserID(r.Context()), role, status)
	if err != nil {
		h.writeError(w, "ListOrders", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) SellerStats(w http.ResponseWriter, r *http.Request) {
	days := order.DefaultReportDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > order.MaxReportDays {
			h.badRequest(w, "SellerStats", fmt.Sprintf("days must be between 1 and %d", order.MaxReportDays))
			return
		}
		days = n
	}
	report, err := h.OrderService.SellerStats(r.Context(), auth.UserID(r.Context()), days)
	if err != nil {
		h.writeError(w, "SellerStats", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadForParty(w, r, "AllowedTransitions")
	if !ok {
		return
	}
	targets, err := h.OrderService.AllowedTransitions(r.Context(), order.ID)
	if err != nil {
		h.writeError(w, "AllowedTransitions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orderId": order.ID, "status": order.Status, "targets": targets})
}

// Transition moves the order status and/or its payment and shipping
// sub-statuses. Which side may ask for what is in targetOwners; payment
// fields are reserved to support and otherwise arrive through the webhook.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadForParty(w, r, "Transition")
	if !ok {
		return
	}
	var body transitionRequest
	if err := h.decode(r, &body); err != nil {
		h.badRequest(w, "Transition", err.Error())
		return
	}

	req := lifecycle.Request{
		Target:         models.OrderStatus(body.Target),
		PaymentStatus:  models.PaymentStatus(body.PaymentStatus),
		ShippingStatus: models.ShippingStatus(body.ShippingStatus),
	}
	if body.Shipping != nil {
		req.Shipping = &lifecycle.ShippingUpdate{
			TrackingNumber:    body.Shipping.TrackingNumber,
			Carrier:           body.Shipping.Carrier,
			EstimatedDelivery: body.Shipping.EstimatedDelivery,
			DeliveredAt:       body.Shipping.DeliveredAt,
		}
	}
	if body.Payment != nil {
		req.Payment = &lifecycle.PaymentUpdate{IntentID: body.Payment.IntentID, PaidAt: body.Payment.PaidAt}
	}
	if !auth.HasRole(r.Context(), auth.RoleSupport) {
		party, _ := order.Party(auth.UserID(r.Context()))
		if reason := checkTransitionActor(order, req, party); reason != "" {
			h.forbidden(w, r, "Transition", reason)
			return
		}
	}

	updated, err := h.OrderService.Transition(r.Context(), order.ID, req)
	if err != nil {
		h.writeError(w, "Transition", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadForParty(w, r, "RequestReturn", models.PartyBuyer)
	if !ok {
		return
	}
	var body returnRequest
	if err := h.decode(r, &body); err != nil {
		h.badRequest(w, "RequestReturn", err.Error())
		return
	}
	updated, err := h.OrderService.RequestReturn(r.Context(), order.ID, lifecycle.ReturnInput{
		Reason:         body.Reason,
		Type:           models.ReturnType(body.Type),
		ShippingPaidBy: models.Party(body.ShippingPaidBy),
	})
	if err != nil {
		h.writeError(w, "RequestReturn", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	h.decideReturn(w, r, true)
}

func (h *Handler) RejectReturn(w http.ResponseWriter, r *http.Request) {
	h.decideReturn(w, r, false)
}

func (h *Handler) decideReturn(w http.ResponseWriter, r *http.Request, approve bool) {
	op := "RejectReturn"
	if approve {
		op = "ApproveReturn"
	}
	order, ok := h.loadForParty(w, r, op, models.PartySeller)
	if !ok {
		return
	}
	var body decisionRequest
	if err := h.decode(r, &body); err != nil {
		h.badRequest(w, op, err.Error())
		return
	}

	var updated *models.Order
	var err error
	if approve {
		updated, err = h.OrderService.ApproveReturn(r.Context(), order.ID, body.TrackingNumber, body.Note)
	} else {
		updated, err = h.OrderService.RejectReturn(r.Context(), order.ID, body.Note)
	}
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) ReturnLabel(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadForParty(w, r, "ReturnLabel")
	if !ok {
		return
	}
	format, err := label.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.badRequest(w, "ReturnLabel", "format must be png or pdf")
		return
	}
	doc, err := h.OrderService.ReturnLabel(r.Context(), order.ID, format)
	if err != nil {
		h.writeError(w, "ReturnLabel", err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=return-%s.%s", order.ID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// StartAuthentication sends the watch to the authentication partner.
func (h *Handler) StartAuthentication(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadForParty(w, r, "StartAuthentication", models.PartySeller)
	if !ok {
		return
	}
	updated, err := h.OrderService.StartAuthentication(r.Context(), order.ID)
	if err != nil {
		h.writeError(w, "StartAuthentication", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) EstimateShipping(w http.ResponseWriter, r *http.Request) {
	price, err := strconv.ParseFloat(r.URL.Query().Get("price"), 64)
	if err != nil {
		h.badRequest(w, "EstimateShipping", "price must be a number")
		return
	}
	est, err := h.Estimator.Estimate(price, r.URL.Query().Get("carrier"))
	if err != nil {
		h.badRequest(w, "EstimateShipping", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, est)
}

// loadForParty fetches the order named in the URL and checks the caller is
// one of the given parties (buyer or seller when none are given). Support
// staff pass regardless. Strangers get 404 so order ids do not leak.
func (h *Handler) loadForParty(w http.ResponseWriter, r *http.Request, op string, allowed ...models.Party) (*models.Order, bool) {
	orderID := chi.URLParam(r, "orderId")
	if strings.TrimSpace(orderID) == "" {
		h.badRequest(w, op, "order ID is required")
		return nil, false
	}
	order, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, op, err)
		return nil, false
	}
	if auth.HasRole(r.Context(), auth.RoleSupport) {
		return order, true
	}

	party, ok := order.Party(auth.UserID(r.Context()))
	if ok && (len(allowed) == 0 || containsParty(allowed, party)) {
		return order, true
	}
	if ok {
		h.forbidden(w, r, op, fmt.Sprintf("only the %s may act on order %s", allowed[0], orderID))
		return nil, false
	}
	h.writeError(w, op, models.NotFound("order", orderID))
	return nil, false
}

func containsParty(list []models.Party, p models.Party) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}
