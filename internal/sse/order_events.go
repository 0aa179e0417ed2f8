package sse

import (
	"context"
	"sync"

	"ms-watchmarket/internal/models"
)

const clientBuffer = 10

// OrderEventEmitter fans committed order changes out to SSE clients.
type OrderEventEmitter struct {
	// key: orderID
	orderClients     map[string][]chan models.OrderEvent
	orderClientMutex sync.RWMutex

	// key: sellerID, used by the seller dashboard
	sellerClients     map[string][]chan models.OrderEvent
	sellerClientMutex sync.RWMutex
}

func NewOrderEventEmitter() *OrderEventEmitter {
	return &OrderEventEmitter{
		orderClients:  make(map[string][]chan models.OrderEvent),
		sellerClients: make(map[string][]chan models.OrderEvent),
	}
}

// SubscribeToOrder registers a client for one order. The channel is closed
// once ctx is done.
func (e *OrderEventEmitter) SubscribeToOrder(ctx context.Context, orderID string) <-chan models.OrderEvent {
	return subscribe(ctx, &e.orderClientMutex, e.orderClients, orderID)
}

func (e *OrderEventEmitter) SubscribeToSeller(ctx context.Context, sellerID string) <-chan models.OrderEvent {
	return subscribe(ctx, &e.sellerClientMutex, e.sellerClients, sellerID)
}

// Emit broadcasts to the order's and the seller's subscribers.
func (e *OrderEventEmitter) Emit(event models.OrderEvent) {
	broadcast(&e.orderClientMutex, e.orderClients, event.OrderID, event)
	broadcast(&e.sellerClientMutex, e.sellerClients, event.Order.SellerID, event)
}

func (e *OrderEventEmitter) OrderClientCount(orderID string) int {
	e.orderClientMutex.RLock()
	defer e.orderClientMutex.RUnlock()
	return len(e.orderClients[orderID])
}

func (e *OrderEventEmitter) SellerClientCount(sellerID string) int {
	e.sellerClientMutex.RLock()
	defer e.sellerClientMutex.RUnlock()
	return len(e.sellerClients[sellerID])
}

func subscribe(ctx context.Context, mu *sync.RWMutex, clients map[string][]chan models.OrderEvent, key string) <-chan models.OrderEvent {
	ch := make(chan models.OrderEvent, clientBuffer)

	mu.Lock()
	clients[key] = append(clients[key], ch)
	mu.Unlock()

	go func() {
		<-ctx.Done()
		remove(mu, clients, key, ch)
	}()
	return ch
}

func broadcast(mu *sync.RWMutex, clients map[string][]chan models.OrderEvent, key string, event models.OrderEvent) {
	if key == "" {
		return
	}
	// Sends happen under the read lock so remove cannot close a channel mid-send.
	mu.RLock()
	defer mu.RUnlock()
	for _, ch := range clients[key] {
		// slow clients miss events rather than stall the writer
		select {
		case ch <- event:
		default:
		}
	}
}

func remove(mu *sync.RWMutex, clients map[string][]chan models.OrderEvent, key string, ch chan models.OrderEvent) {
	mu.Lock()
	defer mu.Unlock()

	list := clients[key]
	for i, c := range list {
		if c == ch {
			clients[key] = append(list[:i], list[i+1:]...)
			close(ch)
			break
		}
	}
	if len(clients[key]) == 0 {
		delete(clients, key)
	}
}
