package lifecycle_test

import (
	"testing"

	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/order/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() lifecycle.CreateInput {
	return lifecycle.CreateInput{
		ListingID:  "listing-9",
		BuyerID:    "buyer-9",
		SellerID:   "seller-9",
		Title:      "Speedmaster Professional",
		Brand:      "Omega",
		Model:      "310.30.42.50.01.001",
		FinalPrice: 6200,
		Currency:   "USD",
		Source:     lifecycle.SourceBid,
	}
}

func TestNewOrder_FromBid(t *testing.T) {
	o, err := lifecycle.NewOrder(validInput(), lifecycle.Costs{Shipping: 45.5, Verification: 99.99}, created)
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, models.StatusPendingBid, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, models.ShippingPending, o.ShippingStatus)
	assert.Equal(t, "usd", o.Currency)
	assert.Equal(t, 6345.49, o.TotalCost)
	assert.Equal(t, int64(1), o.Version)
	assert.Equal(t, created, o.CreatedAt)
	assert.Equal(t, created, o.UpdatedAt)
	assert.NoError(t, lifecycle.CheckConsistency(o))
}

func TestNewOrder_FromInstantSale(t *testing.T) {
	in := validInput()
	in.Source = lifecycle.SourceInstantSale
	in.ID = "fixed-id"

	o, err := lifecycle.NewOrder(in, lifecycle.Costs{}, created)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", o.ID)
	assert.Equal(t, models.StatusPendingPayment, o.Status)
}

func TestNewOrder_Validation(t *testing.T) {
	cases := map[string]func(*lifecycle.CreateInput){
		"missing buyer":   func(in *lifecycle.CreateInput) { in.BuyerID = "" },
		"missing listing": func(in *lifecycle.CreateInput) { in.ListingID = " " },
		"missing title":   func(in *lifecycle.CreateInput) { in.Title = "" },
		"self purchase":   func(in *lifecycle.CreateInput) { in.SellerID = in.BuyerID },
		"zero price":      func(in *lifecycle.CreateInput) { in.FinalPrice = 0 },
		"unknown source":  func(in *lifecycle.CreateInput) { in.Source = "raffle" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := lifecycle.NewOrder(in, lifecycle.Costs{}, created)
			assert.ErrorIs(t, err, models.ErrInvalidOrder)
		})
	}

	_, err := lifecycle.NewOrder(validInput(), lifecycle.Costs{Shipping: -1}, created)
	assert.ErrorIs(t, err, models.ErrInvalidOrder)
}
