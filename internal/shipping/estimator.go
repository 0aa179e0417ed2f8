package shipping

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnknownCarrier = errors.New("unknown carrier")
	ErrInvalidPrice   = errors.New("price must be positive")
)

// DefaultCarrier is used when the caller does not pick one.
const DefaultCarrier = "fedex"

// Rate is a carrier's price for an insured, signature-required parcel.
type Rate struct {
	Base          float64
	InsuredRate   float64 // fraction of the declared value
	EstimatedDays int
}

var carriers = map[string]Rate{
	"fedex": {Base: 45, InsuredRate: 0.0035, EstimatedDays: 2},
	"ups":   {Base: 40, InsuredRate: 0.0040, EstimatedDays: 3},
	"dhl":   {Base: 55, InsuredRate: 0.0030, EstimatedDays: 4},
	"usps":  {Base: 25, InsuredRate: 0.0050, EstimatedDays: 5},
}

// verification fees by price ceiling, ascending
var verificationTiers = []struct {
	upTo float64
	fee  float64
}{
	{upTo: 1000, fee: 25},
	{upTo: 5000, fee: 50},
	{upTo: 20000, fee: 100},
	{upTo: math.Inf(1), fee: 150},
}

type Estimate struct {
	Carrier          string  `json:"carrier"`
	ShippingCost     float64 `json:"shippingCost"`
	VerificationCost float64 `json:"verificationCost"`
	TotalCost        float64 `json:"totalCost"`
	EstimatedDays    int     `json:"estimatedDays"`
}

type Estimator struct{}

func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) Estimate(price float64, carrier string) (Estimate, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return Estimate{}, ErrInvalidPrice
	}
	name, rate, err := lookup(carrier)
	if err != nil {
		return Estimate{}, err
	}

	shippingCost := roundCents(rate.Base + price*rate.InsuredRate)
	verificationCost := VerificationFee(price)
	return Estimate{
		Carrier:          name,
		ShippingCost:     shippingCost,
		VerificationCost: verificationCost,
		TotalCost:        roundCents(price + shippingCost + verificationCost),
		EstimatedDays:    rate.EstimatedDays,
	}, nil
}

// EstimatedDelivery projects the delivery date for a parcel handed to the
// carrier at shippedAt.
func (e *Estimator) EstimatedDelivery(carrier string, shippedAt time.Time) (time.Time, error) {
	_, rate, err := lookup(carrier)
	if err != nil {
		return time.Time{}, err
	}
	return shippedAt.AddDate(0, 0, rate.EstimatedDays), nil
}

func VerificationFee(price float64) float64 {
	for _, tier := range verificationTiers {
		if price <= tier.upTo {
			return tier.fee
		}
	}
	return verificationTiers[len(verificationTiers)-1].fee
}

// Carriers lists the supported carrier codes.
func Carriers() []string {
	names := make([]string, 0, len(carriers))
	for name := range carriers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(carrier string) (string, Rate, error) {
	name := strings.ToLower(strings.TrimSpace(carrier))
	if name == "" {
		name = DefaultCarrier
	}
	rate, ok := carriers[name]
	if !ok {
		return "", Rate{}, fmt.Errorf("%w: %q", ErrUnknownCarrier, carrier)
	}
	return name, rate, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
