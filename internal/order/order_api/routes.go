package order_api

import (
	"fmt"
	"net/http"
	"time"

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	Verifier       auth.Verifier
}

// NewRouter wires the order API. Webhooks and the shipping estimate are
// public; everything else needs a bearer token.
func NewRouter(h *Handler, s *SSEHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/shipping/estimate", h.EstimateShipping)
		r.Post("/webhooks/stripe", h.StripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Verifier, h.Logger))

			r.With(auth.RequireRole(auth.RoleAuthenticator)).Post("/partner/authentication", h.AuthenticationResult)

			r.Get("/seller/stats", h.SellerStats)
			r.Get("/seller/events", s.HandleSellerEvents)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.ListOrders)
			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Get("/events", s.HandleOrderEvents)
				r.Get("/transitions", h.AllowedTransitions)
				r.Post("/transitions", h.Transition)
				r.Post("/authentication", h.StartAuthentication)
				r.Post("/payment-intent", h.CreatePaymentIntent)
				r.Post("/return", h.RequestReturn)
				r.Post("/return/approve", h.ApproveReturn)
				r.Post("/return/reject", h.RejectReturn)
				r.Get("/return/label", h.ReturnLabel)
			})
		})
	})
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
			if ww.Status() >= http.StatusInternalServerError {
				log.Debug("API", fmt.Sprintf("request id %s", middleware.GetReqID(r.Context())))
			}
		})
	}
}
