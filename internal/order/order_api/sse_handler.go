package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/sse"
)

// SSEHandler streams committed order changes to browsers.
type SSEHandler struct {
	*Handler
	EventEmitter *sse.OrderEventEmitter
}

func NewSSEHandler(h *Handler, emitter *sse.OrderEventEmitter) *SSEHandler {
	return &SSEHandler{Handler: h, EventEmitter: emitter}
}

// HandleOrderEvents streams changes to one order to its buyer or seller.
func (s *SSEHandler) HandleOrderEvents(w http.ResponseWriter, r *http.Request) {
	order, ok := s.loadForParty(w, r, "OrderEvents")
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	events := s.EventEmitter.SubscribeToOrder(r.Context(), order.ID)
	s.setupSSEHeaders(w)

	// The current state goes first so the client never starts blank.
	s.send(w, flusher, "snapshot", order)
	s.Logger.Info("SSE", fmt.Sprintf("Client connected to order events for order: %s", order.ID))
	s.stream(w, r, flusher, events)
}

// HandleSellerEvents streams changes to all of the caller's sales.
func (s *SSEHandler) HandleSellerEvents(w http.ResponseWriter, r *http.Request) {
	sellerID := auth.UserID(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	events := s.EventEmitter.SubscribeToSeller(r.Context(), sellerID)
	s.setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()
	s.Logger.Info("SSE", fmt.Sprintf("Seller %s connected to order events", sellerID))
	s.stream(w, r, flusher, events)
}

func (s *SSEHandler) stream(w http.ResponseWriter, r *http.Request, flusher http.Flusher, events <-chan models.OrderEvent) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			s.send(w, flusher, event.Type, event)
		case <-r.Context().Done():
			s.Logger.Debug("SSE", "Client disconnected")
			return
		}
	}
}

func (s *SSEHandler) send(w http.ResponseWriter, flusher http.Flusher, name string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s event: %v", name, err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	flusher.Flush()
}

func (s *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}
