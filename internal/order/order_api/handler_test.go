package order_api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/order"
	"ms-watchmarket/internal/order/db"
	"ms-watchmarket/internal/order/lifecycle"
	"ms-watchmarket/internal/returns/label"
	"ms-watchmarket/internal/shipping"
	"ms-watchmarket/internal/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	jwtSecret     = "test-jwt-secret"
	webhookSecret = "whsec_test"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) order(args mock.Arguments) (*models.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, in lifecycle.CreateInput, carrier string) (*models.Order, error) {
	return m.order(m.Called(in, carrier))
}

func (m *MockOrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return m.order(m.Called(id))
}

func (m *MockOrderService) ListOrders(ctx context.Context, userID string, role models.Party, status models.OrderStatus) ([]models.Order, error) {
	args := m.Called(userID, role, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderService) SellerStats(ctx context.Context, sellerID string, days int) (*order.SellerReport, error) {
	args := m.Called(sellerID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.SellerReport), args.Error(1)
}

func (m *MockOrderService) AllowedTransitions(ctx context.Context, id string) ([]models.OrderStatus, error) {
	args := m.Called(id)
	return args.Get(0).([]models.OrderStatus), args.Error(1)
}

func (m *MockOrderService) Transition(ctx context.Context, id string, req lifecycle.Request) (*models.Order, error) {
	return m.order(m.Called(id, req))
}

func (m *MockOrderService) RequestReturn(ctx context.Context, id string, in lifecycle.ReturnInput) (*models.Order, error) {
	return m.order(m.Called(id, in))
}

func (m *MockOrderService) ApproveReturn(ctx context.Context, id, trackingNumber, note string) (*models.Order, error) {
	return m.order(m.Called(id, trackingNumber, note))
}

func (m *MockOrderService) RejectReturn(ctx context.Context, id, note string) (*models.Order, error) {
	return m.order(m.Called(id, note))
}

func (m *MockOrderService) ReturnLabel(ctx context.Context, id string, format label.Format) ([]byte, error) {
	args := m.Called(id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockOrderService) StartAuthentication(ctx context.Context, id string) (*models.Order, error) {
	return m.order(m.Called(id))
}

func (m *MockOrderService) RecordAuthenticationResult(ctx context.Context, id, reference string, passed bool, notes string) (*models.Order, error) {
	return m.order(m.Called(id, reference, passed, notes))
}

func (m *MockOrderService) CreatePaymentIntent(ctx context.Context, id, buyerID string) (*models.PaymentIntent, error) {
	args := m.Called(id, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentIntent), args.Error(1)
}

func (m *MockOrderService) ApplyPaymentEvent(ctx context.Context, ev models.PaymentEvent) (*models.Order, error) {
	return m.order(m.Called(ev))
}

type testServer struct {
	svc     *MockOrderService
	emitter *sse.OrderEventEmitter
	router  http.Handler
}

func newTestServer() *testServer {
	svc := &MockOrderService{}
	emitter := sse.NewOrderEventEmitter()
	h := NewHandler(svc, shipping.NewEstimator(), webhookSecret, logger.Discard())
	return &testServer{
		svc:     svc,
		emitter: emitter,
		router: NewRouter(h, NewSSEHandler(h, emitter), RouterConfig{
			AllowedOrigins: []string{"https://market.example.com"},
			Verifier:       auth.NewHMACVerifier(jwtSecret),
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path, user, body string, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		token, err := auth.SignHMAC(jwtSecret, user, roles...)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func sampleOrder(status models.OrderStatus) *models.Order {
	return &models.Order{ID: "order-1", BuyerID: "buyer-1", SellerID: "seller-1", Status: status}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NotFound("order", "x"), http.StatusNotFound},
		{models.InvalidTransition(models.StatusShipped, models.StatusCancelled, ""), http.StatusConflict},
		{fmt.Errorf("x: %w", models.ErrReturnAlreadyActive), http.StatusConflict},
		{models.ErrConcurrentUpdate, http.StatusConflict},
		{models.MissingShippingInfo("carrier"), http.StatusUnprocessableEntity},
		{models.MissingPaymentInfo("paymentIntentId"), http.StatusUnprocessableEntity},
		{models.ErrInvalidReturnRequest, http.StatusUnprocessableEntity},
		{models.ErrInvalidOrder, http.StatusUnprocessableEntity},
		{models.Upstream("payment", "refund", errors.New("x")), http.StatusBadGateway},
		{models.ErrOrderLocked, http.StatusLocked},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestErrorBody(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusShipped), nil)
	s.svc.On("Transition", "order-1", mock.Anything).
		Return(nil, models.InvalidTransition(models.StatusShipped, models.StatusCancelled, ""))

	rec := s.do(t, "POST", "/api/orders/order-1/transitions", "buyer-1", `{"target":"cancelled"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"success":false,"operation":"Transition","code":"invalid_transition","error":`+
		strconv.Quote(models.InvalidTransition(models.StatusShipped, models.StatusCancelled, "").Error())+`}`, rec.Body.String())

	rec = s.do(t, "POST", "/api/orders/order-1/transitions", "buyer-1", `{"target":"shipped"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"forbidden"`)

	s.svc.On("GetOrder", "order-2").Return(nil, errors.New("connection reset"))
	rec = s.do(t, "GET", "/api/orders/order-2", "buyer-1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"internal"`)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestGetOrder_Access(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusShipped), nil)

	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/api/orders/order-1", "buyer-1", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/api/orders/order-1", "seller-1", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/orders/order-1", "stranger", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/api/orders/order-1", "agent-7", "", auth.RoleSupport).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, "GET", "/api/orders/order-1", "", "").Code)
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, "POST", "/api/orders", "buyer-1", `{"listingId":"l-1","buyerId":"buyer-1","sellerId":"buyer-1","title":"x","finalPrice":10,"source":"bid"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"listingId":"l-1","buyerId":"buyer-1","sellerId":"seller-1","title":"Speedmaster","finalPrice":6500,"source":"instant_sale","carrier":"ups"}`
	rec = s.do(t, "POST", "/api/orders", "someone-else", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	s.svc.On("PlaceOrder", mock.MatchedBy(func(in lifecycle.CreateInput) bool {
		return in.Source == lifecycle.SourceInstantSale && in.FinalPrice == 6500
	}), "ups").Return(sampleOrder(models.StatusPendingPayment), nil).Once()
	rec = s.do(t, "POST", "/api/orders", "buyer-1", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending_payment"`)
}

func TestTransition_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", models.InvalidTransition(models.StatusShipped, models.StatusCancelled, ""), http.StatusConflict},
		{"missing shipping", models.MissingShippingInfo("trackingNumber", "carrier"), http.StatusUnprocessableEntity},
		{"locked", fmt.Errorf("order-1: %w", models.ErrOrderLocked), http.StatusLocked},
		{"upstream", models.Upstream("storage", "save order", errors.New("disk")), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusAuthenticated), nil)
			s.svc.On("Transition", "order-1", mock.Anything).Return(nil, tt.err)

			rec := s.do(t, "POST", "/api/orders/order-1/transitions", "seller-1", `{"target":"shipped"}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestTransition_PassesShippingDetails(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusAuthenticated), nil)
	s.svc.On("Transition", "order-1", mock.MatchedBy(func(req lifecycle.Request) bool {
		return req.Target == models.StatusShipped && req.Shipping != nil &&
			req.Shipping.TrackingNumber == "1Z999" && req.Shipping.Carrier == "fedex"
	})).Return(sampleOrder(models.StatusShipped), nil)

	rec := s.do(t, "POST", "/api/orders/order-1/transitions", "seller-1",
		`{"target":"shipped","shipping":{"trackingNumber":"1Z999","carrier":"fedex"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransition_PaymentFieldsNeedSupport(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusCancelled), nil)
	s.svc.On("Transition", "order-1", mock.Anything).Return(sampleOrder(models.StatusCancelled), nil)

	assert.Equal(t, http.StatusForbidden, s.do(t, "POST", "/api/orders/order-1/transitions", "buyer-1", `{"paymentStatus":"refunded"}`).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "POST", "/api/orders/order-1/transitions", "agent", `{"paymentStatus":"refunded"}`, auth.RoleSupport).Code)
}

func TestTransition_ActorChecks(t *testing.T) {
	tests := []struct {
		name  string
		from  models.OrderStatus
		user  string
		body  string
		roles []string
		want  int
	}{
		{"buyer cannot mark authenticated", models.StatusAuthenticationInProgress, "buyer-1", `{"target":"authenticated"}`, nil, http.StatusForbidden},
		{"seller cannot mark authenticated", models.StatusAuthenticationInProgress, "seller-1", `{"target":"authenticated"}`, nil, http.StatusForbidden},
		{"support marks authenticated", models.StatusAuthenticationInProgress, "agent", `{"target":"authenticated"}`, []string{auth.RoleSupport}, http.StatusOK},
		{"seller cannot skip the partner", models.StatusPaymentConfirmed, "seller-1", `{"target":"authentication_in_progress"}`, nil, http.StatusForbidden},
		{"seller cannot complete", models.StatusInspectionPeriod, "seller-1", `{"target":"completed"}`, nil, http.StatusForbidden},
		{"buyer completes inspection", models.StatusInspectionPeriod, "buyer-1", `{"target":"completed"}`, nil, http.StatusOK},
		{"buyer completes on delivery", models.StatusDelivered, "buyer-1", `{"target":"completed"}`, nil, http.StatusOK},
		{"seller cannot open a return", models.StatusInspectionPeriod, "seller-1", `{"target":"return_requested"}`, nil, http.StatusForbidden},
		{"buyer cannot ship", models.StatusAuthenticated, "buyer-1", `{"target":"shipped"}`, nil, http.StatusForbidden},
		{"buyer cannot set tracking", models.StatusAuthenticated, "buyer-1", `{"shipping":{"trackingNumber":"1Z"}}`, nil, http.StatusForbidden},
		{"buyer cannot move the parcel", models.StatusShipped, "buyer-1", `{"shippingStatus":"in_transit"}`, nil, http.StatusForbidden},
		{"seller moves the parcel", models.StatusShipped, "seller-1", `{"shippingStatus":"in_transit"}`, nil, http.StatusOK},
		{"buyer confirms delivery", models.StatusShipped, "buyer-1", `{"target":"delivered"}`, nil, http.StatusOK},
		{"buyer cannot mark returned", models.StatusReturnRequested, "buyer-1", `{"target":"returned"}`, nil, http.StatusForbidden},
		{"seller cannot mark returned", models.StatusReturnRequested, "seller-1", `{"target":"returned"}`, nil, http.StatusForbidden},
		{"support marks returned", models.StatusReturnRequested, "agent", `{"target":"returned"}`, []string{auth.RoleSupport}, http.StatusOK},
		{"buyer cannot force completion", models.StatusReturnRequested, "buyer-1", `{"target":"completed"}`, nil, http.StatusForbidden},
		{"support forces completion", models.StatusReturnRequested, "agent", `{"target":"completed"}`, []string{auth.RoleSupport}, http.StatusOK},
		{"buyer cancels before shipping", models.StatusPaymentConfirmed, "buyer-1", `{"target":"cancelled"}`, nil, http.StatusOK},
		{"seller accepts the bid", models.StatusPendingBid, "seller-1", `{"target":"pending_payment"}`, nil, http.StatusOK},
		{"buyer cannot accept the bid", models.StatusPendingBid, "buyer-1", `{"target":"pending_payment"}`, nil, http.StatusForbidden},
		{"buyer cannot confirm payment", models.StatusPendingPayment, "buyer-1", `{"target":"payment_confirmed"}`, nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.svc.On("GetOrder", "order-1").Return(sampleOrder(tt.from), nil)
			s.svc.On("Transition", "order-1", mock.Anything).Return(sampleOrder(tt.from), nil)

			rec := s.do(t, "POST", "/api/orders/order-1/transitions", tt.user, tt.body, tt.roles...)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusForbidden {
				s.svc.AssertNotCalled(t, "Transition", "order-1", mock.Anything)
			}
		})
	}
}

func TestReturnEndpoints_PartyChecks(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusInspectionPeriod), nil)
	s.svc.On("RequestReturn", "order-1", lifecycle.ReturnInput{Reason: "strap worn", Type: models.ReturnNotAsDescribed}).
		Return(sampleOrder(models.StatusReturnRequested), nil)
	s.svc.On("ApproveReturn", "order-1", "1ZBACK", "").Return(sampleOrder(models.StatusReturnRequested), nil)

	body := `{"reason":"strap worn","type":"not_as_described"}`
	assert.Equal(t, http.StatusForbidden, s.do(t, "POST", "/api/orders/order-1/return", "seller-1", body).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "POST", "/api/orders/order-1/return", "buyer-1", body).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/orders/order-1/return", "buyer-1", `{"type":"x"}`).Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, "POST", "/api/orders/order-1/return/approve", "buyer-1", `{}`).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "POST", "/api/orders/order-1/return/approve", "seller-1", `{"trackingNumber":"1ZBACK"}`).Code)
}

func TestRejectReturn_EmptyBody(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusReturnRequested), nil)
	s.svc.On("RejectReturn", "order-1", "").Return(sampleOrder(models.StatusReturnRequested), nil)

	assert.Equal(t, http.StatusOK, s.do(t, "POST", "/api/orders/order-1/return/reject", "seller-1", "").Code)
}

func TestReturnLabel(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusReturnRequested), nil)
	s.svc.On("ReturnLabel", "order-1", label.FormatPNG).Return([]byte("\x89PNG..."), nil)
	s.svc.On("ReturnLabel", "order-1", label.FormatPDF).Return([]byte("%PDF-1.4"), nil)

	rec := s.do(t, "GET", "/api/orders/order-1/return/label", "buyer-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = s.do(t, "GET", "/api/orders/order-1/return/label?format=pdf", "buyer-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = s.do(t, "GET", "/api/orders/order-1/return/label?format=svg", "buyer-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentIntent(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusPendingPayment), nil)
	s.svc.On("CreatePaymentIntent", "order-1", "buyer-1").
		Return(&models.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: 100, Currency: "usd"}, nil)

	rec := s.do(t, "POST", "/api/orders/order-1/payment-intent", "buyer-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"clientSecret":"pi_1_secret"`)

	assert.Equal(t, http.StatusForbidden, s.do(t, "POST", "/api/orders/order-1/payment-intent", "seller-1", "").Code)
}

func signedWebhook(t *testing.T, eventType string) (string, string) {
	t.Helper()
	payload := fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"created":1767225600,
		"data":{"object":{"id":"pi_1","object":"payment_intent","metadata":{"order_id":"order-1"}}}}`, eventType)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload), Secret: webhookSecret, Timestamp: time.Now(),
	})
	return string(sp.Payload), sp.Header
}

func postWebhook(s *testServer, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhook(t *testing.T) {
	isSucceeded := mock.MatchedBy(func(ev models.PaymentEvent) bool {
		return ev.OrderID == "order-1" && ev.Status == models.PaymentCompleted && ev.PaymentIntentID == "pi_1"
	})

	t.Run("applied", func(t *testing.T) {
		s := newTestServer()
		s.svc.On("ApplyPaymentEvent", isSucceeded).Return(sampleOrder(models.StatusPaymentConfirmed), nil).Once()
		payload, sig := signedWebhook(t, "payment_intent.succeeded")
		assert.Equal(t, http.StatusOK, postWebhook(s, payload, sig).Code)
		s.svc.AssertExpectations(t)
	})

	t.Run("rejected by the order is acknowledged", func(t *testing.T) {
		s := newTestServer()
		s.svc.On("ApplyPaymentEvent", isSucceeded).Return(nil, models.InvalidTransition(models.StatusCancelled, models.StatusPaymentConfirmed, "")).Once()
		payload, sig := signedWebhook(t, "payment_intent.succeeded")
		assert.Equal(t, http.StatusOK, postWebhook(s, payload, sig).Code)
	})

	t.Run("storage failure asks for a retry", func(t *testing.T) {
		s := newTestServer()
		s.svc.On("ApplyPaymentEvent", isSucceeded).Return(nil, models.Upstream("storage", "save order", errors.New("down"))).Once()
		payload, sig := signedWebhook(t, "payment_intent.succeeded")
		assert.Equal(t, http.StatusBadGateway, postWebhook(s, payload, sig).Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		s := newTestServer()
		payload, _ := signedWebhook(t, "payment_intent.succeeded")
		assert.Equal(t, http.StatusBadRequest, postWebhook(s, payload, "t=1,v1=deadbeef").Code)
		s.svc.AssertNotCalled(t, "ApplyPaymentEvent", mock.Anything)
	})
}

func TestAuthenticationResult(t *testing.T) {
	s := newTestServer()
	s.svc.On("RecordAuthenticationResult", "order-1", "insp-1", false, "hands replaced").
		Return(sampleOrder(models.StatusCancelled), nil)

	body := `{"reference":"insp-1","orderId":"order-1","passed":false,"notes":"hands replaced"}`
	assert.Equal(t, http.StatusForbidden, s.do(t, "POST", "/api/partner/authentication", "seller-1", body).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/partner/authentication", "partner", `{"reference":"insp-1","orderId":"order-1"}`, auth.RoleAuthenticator).Code)

	rec := s.do(t, "POST", "/api/partner/authentication", "partner", body, auth.RoleAuthenticator)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
}

func TestEstimateShipping(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, "GET", "/api/shipping/estimate?price=10000&carrier=fedex", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalCost":10180`)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/shipping/estimate?price=abc", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/shipping/estimate?price=100&carrier=pigeon", "", "").Code)
}

func TestListOrdersAndStats(t *testing.T) {
	s := newTestServer()
	s.svc.On("ListOrders", "seller-1", models.PartySeller, models.StatusShipped).Return([]models.Order{*sampleOrder(models.StatusShipped)}, nil)
	s.svc.On("ListOrders", "buyer-1", models.PartyBuyer, models.OrderStatus("")).Return(nil, nil)
	s.svc.On("SellerStats", "seller-1", order.DefaultReportDays).Return(&order.SellerReport{
		SellerID: "seller-1",
		ByStatus: []db.StatusCount{{Status: models.StatusShipped, Count: 1}},
	}, nil)
	s.svc.On("SellerStats", "seller-1", 7).Return(&order.SellerReport{SellerID: "seller-1"}, nil)

	rec := s.do(t, "GET", "/api/orders?role=seller&status=shipped", "seller-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order-1"`)

	rec = s.do(t, "GET", "/api/orders", "buyer-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/orders?role=admin", "buyer-1", "").Code)

	rec = s.do(t, "GET", "/api/seller/stats", "seller-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/api/seller/stats?days=7", "seller-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/seller/stats?days=0", "seller-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/seller/stats?days=many", "seller-1", "").Code)
}

func TestOrderEventsStream(t *testing.T) {
	s := newTestServer()
	s.svc.On("GetOrder", "order-1").Return(sampleOrder(models.StatusAuthenticated), nil)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	token, err := auth.SignHMAC(jwtSecret, "buyer-1")
	require.NoError(t, err)
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/orders/order-1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.emitter.OrderClientCount("order-1") == 1 }, 2*time.Second, 10*time.Millisecond)
	shipped := *sampleOrder(models.StatusShipped)
	s.emitter.Emit(models.NewOrderEvent(models.EventStatusChanged, models.StatusAuthenticated, shipped, time.Now()))

	var names []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && len(names) < 2 {
		if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
			names = append(names, strings.TrimPrefix(line, "event: "))
		}
	}
	assert.Equal(t, []string{"snapshot", models.EventStatusChanged}, names)
}
