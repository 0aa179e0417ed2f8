package shipping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	e := NewEstimator()

	got, err := e.Estimate(10000, "")
	require.NoError(t, err)
	assert.Equal(t, Estimate{
		Carrier:          "fedex",
		ShippingCost:     80,
		VerificationCost: 100,
		TotalCost:        10180,
		EstimatedDays:    2,
	}, got)

	got, err = e.Estimate(800, "USPS")
	require.NoError(t, err)
	assert.Equal(t, "usps", got.Carrier)
	assert.Equal(t, 29.0, got.ShippingCost)
	assert.Equal(t, 25.0, got.VerificationCost)
	assert.Equal(t, 854.0, got.TotalCost)
}

func TestEstimateErrors(t *testing.T) {
	e := NewEstimator()

	_, err := e.Estimate(0, "fedex")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = e.Estimate(100, "pigeon")
	assert.ErrorIs(t, err, ErrUnknownCarrier)
}

func TestVerificationFeeTiers(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{999, 25},
		{1000, 25},
		{1000.01, 50},
		{5000, 50},
		{19999, 100},
		{250000, 150},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerificationFee(tt.price), "price %v", tt.price)
	}
}

func TestEstimatedDelivery(t *testing.T) {
	shipped := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	got, err := NewEstimator().EstimatedDelivery("dhl", shipped)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC), got)

	_, err = NewEstimator().EstimatedDelivery("nope", shipped)
	assert.ErrorIs(t, err, ErrUnknownCarrier)
}

func TestCarriers(t *testing.T) {
	assert.Equal(t, []string{"dhl", "fedex", "ups", "usps"}, Carriers())
}
