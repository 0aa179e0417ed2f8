package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/order/db"
	"ms-watchmarket/internal/order/lifecycle"
	"ms-watchmarket/internal/returns/label"
	"ms-watchmarket/internal/shipping"
)

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string, side models.Party, status models.OrderStatus) ([]models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order, expectedVersion int64) error
	CountOrdersByStatus(ctx context.Context, sellerID string) ([]db.StatusCount, error)
	ListSellerSales(ctx context.Context, sellerID string, since time.Time) ([]models.Order, error)
}

type RedisLock interface {
	LockOrder(ctx context.Context, orderID string) (string, bool, error)
	UnlockOrder(ctx context.Context, orderID, token string) error
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// Emitter pushes committed changes to live subscribers.
type Emitter interface {
	Emit(event models.OrderEvent)
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, order models.Order) (models.PaymentIntent, error)
	Refund(ctx context.Context, order models.Order) error
}

type AuthPartner interface {
	Submit(ctx context.Context, order models.Order) (string, error)
}

type Estimator interface {
	Estimate(price float64, carrier string) (shipping.Estimate, error)
	EstimatedDelivery(carrier string, shippedAt time.Time) (time.Time, error)
}

type LabelGenerator interface {
	Render(p label.Payload, f label.Format) ([]byte, error)
}

type Deps struct {
	DB        DBLayer
	Lock      RedisLock
	Publisher EventPublisher
	Emitter   Emitter
	Payments  PaymentGateway
	Partner   AuthPartner
	Estimator Estimator
	Labels    LabelGenerator
	Logger    *logger.Logger
}

type Options struct {
	Policy lifecycle.Policy
	// PublicURL prefixes links handed to buyers, such as return labels.
	PublicURL string
	// PartnerTimeout bounds the partner booking made while the order lock is
	// held. Keep it under the lock TTL.
	PartnerTimeout time.Duration
	Now            func() time.Time
}

const defaultPartnerTimeout = 5 * time.Second

type OrderService struct {
	DB        DBLayer
	Lock      RedisLock
	Publisher EventPublisher
	Emitter   Emitter
	Payments  PaymentGateway
	Partner   AuthPartner
	Estimator Estimator
	Labels    LabelGenerator
	log       *logger.Logger

	policy         lifecycle.Policy
	publicURL      string
	partnerTimeout time.Duration
	now            func() time.Time
}

func NewOrderService(deps Deps, opts Options) *OrderService {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	policy := opts.Policy
	if policy.InspectionPeriod <= 0 {
		policy.InspectionPeriod = lifecycle.DefaultPolicy().InspectionPeriod
	}
	partnerTimeout := opts.PartnerTimeout
	if partnerTimeout <= 0 {
		partnerTimeout = defaultPartnerTimeout
	}
	return &OrderService{
		DB:        deps.DB,
		Lock:      deps.Lock,
		Publisher: deps.Publisher,
		Emitter:   deps.Emitter,
		Payments:  deps.Payments,
		Partner:   deps.Partner,
		Estimator: deps.Estimator,
		Labels:    deps.Labels,
		log:       deps.Logger,
		policy:    policy,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		now:       now,

		partnerTimeout: partnerTimeout,
	}
}

func (s *OrderService) Policy() lifecycle.Policy {
	return s.policy
}

// errNoChange lets a mutation finish without writing.
var errNoChange = errors.New("no change")

// ---------------- ORDERS ----------------

// PlaceOrder creates the order for an accepted bid or instant sale. Shipping
// and verification costs come from the estimator for the chosen carrier.
func (s *OrderService) PlaceOrder(ctx context.Context, in lifecycle.CreateInput, carrier string) (*models.Order, error) {
	var costs lifecycle.Costs
	if in.FinalPrice > 0 {
		est, err := s.Estimator.Estimate(in.FinalPrice, carrier)
		if err != nil {
			if errors.Is(err, shipping.ErrUnknownCarrier) {
				return nil, fmt.Errorf("%w: %v", models.ErrInvalidOrder, err)
			}
			return nil, models.Upstream("shipping", "estimate costs", err)
		}
		costs = lifecycle.Costs{Shipping: est.ShippingCost, Verification: est.VerificationCost}
	}

	order, err := lifecycle.NewOrder(in, costs, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.DB.CreateOrder(ctx, &order); err != nil {
		return nil, models.Upstream("storage", "create order", err)
	}

	s.log.LogOrder("CREATE", order.ID, fmt.Sprintf("%s order placed by %s with seller %s, total %.2f %s",
		in.Source, order.BuyerID, order.SellerID, order.TotalCost, order.Currency))
	s.announce(ctx, models.NewOrderEvent(models.EventOrderCreated, "", order, s.now()))
	return &order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		return nil, storageError("load order", err)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string, role models.Party, status models.OrderStatus) ([]models.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, models.InvalidTransition(status, status, "unknown status filter")
	}
	orders, err := s.DB.ListOrdersByUser(ctx, userID, role, status)
	if err != nil {
		return nil, storageError("list orders", err)
	}
	return orders, nil
}

// AllowedTransitions lists the statuses the order can move to right now.
func (s *OrderService) AllowedTransitions(ctx context.Context, id string) ([]models.OrderStatus, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return lifecycle.AllowedTargets(*order, s.policy), nil
}

// Transition applies a status and/or sub-status change.
func (s *OrderService) Transition(ctx context.Context, orderID string, req lifecycle.Request) (*models.Order, error) {
	order, err := s.mutate(ctx, orderID, models.EventStatusChanged, func(current models.Order) (models.Order, error) {
		s.fillEstimatedDelivery(current, &req)
		return lifecycle.Transition(current, req, s.policy, s.now())
	})
	if err != nil {
		return nil, err
	}
	return s.settleCancelled(ctx, order)
}

// fillEstimatedDelivery projects the delivery date when a parcel ships
// without one.
func (s *OrderService) fillEstimatedDelivery(current models.Order, req *lifecycle.Request) {
	ships := req.Target == models.StatusShipped || req.ShippingStatus == models.ShippingShipped
	if !ships || current.EstimatedDelivery != nil || s.Estimator == nil {
		return
	}
	if req.Shipping != nil && req.Shipping.EstimatedDelivery != nil {
		return
	}
	carrier := current.Carrier
	if req.Shipping != nil && req.Shipping.Carrier != "" {
		carrier = req.Shipping.Carrier
	}
	if carrier == "" {
		return
	}
	eta, err := s.Estimator.EstimatedDelivery(carrier, s.now())
	if err != nil {
		s.log.Debug("SHIPPING", fmt.Sprintf("no delivery estimate for carrier %q: %v", carrier, err))
		return
	}
	update := lifecycle.ShippingUpdate{}
	if req.Shipping != nil {
		update = *req.Shipping
	}
	update.EstimatedDelivery = &eta
	req.Shipping = &update
}

// ---------------- RETURNS ----------------

func (s *OrderService) RequestReturn(ctx context.Context, orderID string, in lifecycle.ReturnInput) (*models.Order, error) {
	return s.Transition(ctx, orderID, lifecycle.Request{Target: models.StatusReturnRequested, Return: &in})
}

func (s *OrderService) ApproveReturn(ctx context.Context, orderID, trackingNumber, note string) (*models.Order, error) {
	return s.mutate(ctx, orderID, models.EventReturnDecided, func(current models.Order) (models.Order, error) {
		return lifecycle.DecideReturn(current, lifecycle.Decision{
			Approve:        true,
			LabelURL:       s.labelURL(orderID),
			TrackingNumber: trackingNumber,
			Note:           note,
		}, s.now())
	})
}

func (s *OrderService) RejectReturn(ctx context.Context, orderID, note string) (*models.Order, error) {
	return s.mutate(ctx, orderID, models.EventReturnDecided, func(current models.Order) (models.Order, error) {
		return lifecycle.DecideReturn(current, lifecycle.Decision{Note: note}, s.now())
	})
}

// ReturnLabel renders the label for an approved return as a bare QR code or
// a printable PDF.
func (s *OrderService) ReturnLabel(ctx context.Context, orderID string, format label.Format) ([]byte, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payload, err := label.PayloadFor(*order, s.now())
	if err != nil {
		return nil, models.InvalidTransition(order.Status, order.Status, "return has not been approved")
	}
	doc, err := s.Labels.Render(payload, format)
	if err != nil {
		return nil, models.Upstream("label", "render return label", err)
	}
	return doc, nil
}

func (s *OrderService) labelURL(orderID string) string {
	return fmt.Sprintf("%s/api/orders/%s/return/label", s.publicURL, orderID)
}

// ---------------- AUTHENTICATION ----------------

// StartAuthentication books the partner inspection and moves the order to
// authentication_in_progress. Nothing is written if the partner refuses.
// Bookings are keyed by order id on the partner side, so when the save fails
// after a booking the next attempt gets the same reference back.
func (s *OrderService) StartAuthentication(ctx context.Context, orderID string) (*models.Order, error) {
	var booked string
	order, err := s.mutate(ctx, orderID, models.EventStatusChanged, func(current models.Order) (models.Order, error) {
		next, err := lifecycle.Transition(current, lifecycle.Request{Target: models.StatusAuthenticationInProgress}, s.policy, s.now())
		if err != nil {
			return current, err
		}
		submitCtx, cancel := context.WithTimeout(ctx, s.partnerTimeout)
		defer cancel()
		ref, err := s.Partner.Submit(submitCtx, next)
		if err != nil {
			return current, models.Upstream("authentication", "submit inspection", err)
		}
		booked = ref
		next.AuthenticationRef = ref
		return next, nil
	})
	if err != nil && booked != "" {
		s.log.Warn("AUTHENTICATION", fmt.Sprintf("inspection %s booked for order %s but not recorded: %v", booked, orderID, err))
	}
	return order, err
}

// RecordAuthenticationResult applies the partner's verdict. A failed
// inspection cancels the order and refunds a completed payment.
func (s *OrderService) RecordAuthenticationResult(ctx context.Context, orderID, reference string, passed bool, notes string) (*models.Order, error) {
	target := models.StatusAuthenticated
	if !passed {
		target = models.StatusCancelled
	}

	order, err := s.mutate(ctx, orderID, models.EventStatusChanged, func(current models.Order) (models.Order, error) {
		if current.Status != models.StatusAuthenticationInProgress {
			return current, models.InvalidTransition(current.Status, target, "no authentication is in progress")
		}
		if current.AuthenticationRef != "" && current.AuthenticationRef != reference {
			return current, models.InvalidTransition(current.Status, target, "authentication reference does not match")
		}
		return lifecycle.Transition(current, lifecycle.Request{Target: target}, s.policy, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.log.LogOrder("AUTHENTICATION", orderID, fmt.Sprintf("reference %s passed=%v %s", reference, passed, notes))
	return s.settleCancelled(ctx, order)
}

// settleCancelled refunds a cancelled order that still holds a completed
// payment. Orders in any other state pass through untouched.
func (s *OrderService) settleCancelled(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.Status != models.StatusCancelled || order.PaymentStatus != models.PaymentCompleted {
		return order, nil
	}
	s.log.LogOrder("REFUND", order.ID, "cancelled order holds a completed payment")
	return s.refund(ctx, *order)
}

func (s *OrderService) refund(ctx context.Context, order models.Order) (*models.Order, error) {
	if err := s.Payments.Refund(ctx, order); err != nil {
		return &order, models.Upstream("payment", "refund", err)
	}
	return s.mutate(ctx, order.ID, models.EventPaymentUpdated, func(current models.Order) (models.Order, error) {
		if current.PaymentStatus == models.PaymentRefunded {
			return current, errNoChange
		}
		return lifecycle.Transition(current, lifecycle.Request{PaymentStatus: models.PaymentRefunded}, s.policy, s.now())
	})
}

// ---------------- PAYMENT ----------------

// CreatePaymentIntent asks the payment collaborator for an intent the buyer
// completes client-side. The order only changes once the webhook reports back.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, orderID, buyerID string) (*models.PaymentIntent, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, models.NotFound("order", orderID)
	}
	if order.Status != models.StatusPendingPayment {
		return nil, models.InvalidTransition(order.Status, models.StatusPaymentConfirmed, "order is not awaiting payment")
	}
	if order.PaymentStatus == models.PaymentCompleted || order.PaymentStatus == models.PaymentProcessing {
		return nil, &models.TransitionError{Axis: "payment", From: string(order.PaymentStatus), To: string(models.PaymentProcessing),
			Reason: "payment is already under way"}
	}

	intent, err := s.Payments.CreateIntent(ctx, *order)
	if err != nil {
		return nil, models.Upstream("payment", "create payment intent", err)
	}
	return &intent, nil
}

// ApplyPaymentEvent records what the payment collaborator reported. A
// completed payment on an order awaiting it also confirms the order, and one
// arriving after the order was cancelled is refunded straight away.
// Repeated deliveries of the same status are no-ops.
func (s *OrderService) ApplyPaymentEvent(ctx context.Context, ev models.PaymentEvent) (*models.Order, error) {
	order, err := s.mutate(ctx, ev.OrderID, models.EventPaymentUpdated, func(current models.Order) (models.Order, error) {
		if current.PaymentStatus == ev.Status {
			return current, errNoChange
		}
		if ev.Status == models.PaymentFailed {
			s.log.Warn("PAYMENT", fmt.Sprintf("payment failed for order %s: %s", current.ID, ev.FailureReason))
		}

		req := lifecycle.Request{
			PaymentStatus: ev.Status,
			Payment:       &lifecycle.PaymentUpdate{IntentID: ev.PaymentIntentID},
		}
		if ev.Status == models.PaymentCompleted {
			paid := ev.OccurredAt
			if paid.IsZero() {
				paid = s.now()
			}
			req.Payment.PaidAt = &paid
			if current.Status == models.StatusPendingPayment {
				req.Target = models.StatusPaymentConfirmed
			}
		}
		return lifecycle.Transition(current, req, s.policy, s.now())
	})
	if err != nil {
		return nil, err
	}
	return s.settleCancelled(ctx, order)
}

// ---------------- PLUMBING ----------------

// mutate runs one locked read-modify-write of an order. The lock is released
// before the change is announced.
func (s *OrderService) mutate(ctx context.Context, orderID, eventType string, change func(models.Order) (models.Order, error)) (*models.Order, error) {
	prev, next, err := s.locked(ctx, orderID, change)
	if errors.Is(err, errNoChange) {
		return &prev, nil
	}
	if err != nil {
		return nil, err
	}

	if next.Status != prev.Status {
		eventType = models.EventStatusChanged
		s.log.LogTransition(next.ID, string(prev.Status), string(next.Status))
	}
	s.announce(ctx, models.NewOrderEvent(eventType, prev.Status, next, s.now()))
	return &next, nil
}

func (s *OrderService) locked(ctx context.Context, orderID string, change func(models.Order) (models.Order, error)) (models.Order, models.Order, error) {
	token, ok, err := s.Lock.LockOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, models.Order{}, models.Upstream("redis", "acquire order lock", err)
	}
	if !ok {
		return models.Order{}, models.Order{}, fmt.Errorf("order %s: %w", orderID, models.ErrOrderLocked)
	}
	defer func() {
		if err := s.Lock.UnlockOrder(context.WithoutCancel(ctx), orderID, token); err != nil {
			s.log.Error("REDIS", fmt.Sprintf("Failed to unlock order %s: %v", orderID, err))
		}
	}()

	current, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return models.Order{}, models.Order{}, storageError("load order", err)
	}
	next, err := change(*current)
	if err != nil {
		return *current, *current, err
	}
	if err := s.DB.SaveOrder(ctx, &next, current.Version); err != nil {
		return *current, *current, storageError("save order", err)
	}
	return *current, next, nil
}

// announce is best-effort: the change is already committed.
func (s *OrderService) announce(ctx context.Context, event models.OrderEvent) {
	ctx = context.WithoutCancel(ctx)
	if s.Publisher != nil {
		if err := s.Publisher.PublishOrderEvent(ctx, event); err != nil {
			s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for order %s: %v", event.Type, event.OrderID, err))
		}
	}
	if s.Emitter != nil {
		s.Emitter.Emit(event)
	}
}

func storageError(op string, err error) error {
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrConcurrentUpdate) {
		return err
	}
	return models.Upstream("storage", op, err)
}
