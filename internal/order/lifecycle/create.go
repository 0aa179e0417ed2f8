package lifecycle

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"ms-watchmarket/internal/models"

	"github.com/google/uuid"
)

// Source is how the sale came about.
type Source string

const (
	SourceBid         Source = "bid"
	SourceInstantSale Source = "instant_sale"
)

type CreateInput struct {
	ID         string
	ListingID  string
	BuyerID    string
	SellerID   string
	Title      string
	Brand      string
	Model      string
	FinalPrice float64
	Currency   string
	Source     Source
}

// Costs are the informational amounts added on top of the final price.
type Costs struct {
	Shipping     float64
	Verification float64
}

// NewOrder builds the initial order for an accepted bid or a completed
// instant-sale checkout.
func NewOrder(in CreateInput, costs Costs, now time.Time) (models.Order, error) {
	var missing []string
	for field, v := range map[string]string{
		"listingId": in.ListingID,
		"buyerId":   in.BuyerID,
		"sellerId":  in.SellerID,
		"title":     in.Title,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return models.Order{}, fmt.Errorf("%w: missing %s", models.ErrInvalidOrder, strings.Join(missing, ", "))
	}
	if in.BuyerID == in.SellerID {
		return models.Order{}, fmt.Errorf("%w: buyer and seller must differ", models.ErrInvalidOrder)
	}
	if in.FinalPrice <= 0 || math.IsNaN(in.FinalPrice) || math.IsInf(in.FinalPrice, 0) {
		return models.Order{}, fmt.Errorf("%w: final price must be positive", models.ErrInvalidOrder)
	}
	if costs.Shipping < 0 || costs.Verification < 0 {
		return models.Order{}, fmt.Errorf("%w: costs cannot be negative", models.ErrInvalidOrder)
	}

	var status models.OrderStatus
	switch in.Source {
	case SourceBid:
		status = models.StatusPendingBid
	case SourceInstantSale:
		status = models.StatusPendingPayment
	default:
		return models.Order{}, fmt.Errorf("%w: unknown source %q", models.ErrInvalidOrder, in.Source)
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = "usd"
	}

	return models.Order{
		ID:               id,
		ListingID:        in.ListingID,
		BuyerID:          in.BuyerID,
		SellerID:         in.SellerID,
		Title:            in.Title,
		Brand:            in.Brand,
		Model:            in.Model,
		FinalPrice:       in.FinalPrice,
		Currency:         currency,
		Status:           status,
		PaymentStatus:    models.PaymentPending,
		ShippingStatus:   models.ShippingPending,
		ShippingCost:     costs.Shipping,
		VerificationCost: costs.Verification,
		TotalCost:        roundCents(in.FinalPrice + costs.Shipping + costs.Verification),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

