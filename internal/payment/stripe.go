package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeGateway is the payment collaborator. It creates intents and refunds;
// order state only changes when Stripe reports back through the webhook.
type StripeGateway struct {
	client   *client.API
	currency string
	log      *logger.Logger
}

func NewStripeGateway(secretKey, defaultCurrency string, log *logger.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		log.Error("STRIPE", "Stripe secret key is not configured")
		return nil, ErrStripeClientInitFailed
	}
	sc := client.New(secretKey, nil)
	if sc == nil {
		return nil, ErrStripeClientInitFailed
	}
	if defaultCurrency == "" {
		defaultCurrency = "usd"
	}
	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeGateway{client: sc, currency: defaultCurrency, log: log}, nil
}

// AmountInCents converts the order total to Stripe's smallest currency unit.
func AmountInCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (g *StripeGateway) CreateIntent(ctx context.Context, order models.Order) (models.PaymentIntent, error) {
	currency := order.Currency
	if currency == "" {
		currency = g.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(AmountInCents(order.TotalCost)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(fmt.Sprintf("%s %s (%s)", order.Brand, order.Model, order.Title)),
	}
	params.AddMetadata("order_id", order.ID)
	params.AddMetadata("buyer_id", order.BuyerID)
	params.SetIdempotencyKey(fmt.Sprintf("intent-%s-v%d", order.ID, order.Version))

	intent, err := g.client.PaymentIntents.New(params)
	if err != nil {
		g.log.Error("PAYMENT", fmt.Sprintf("Failed to create Stripe payment intent for order %s: %v", order.ID, err))
		return models.PaymentIntent{}, err
	}

	g.log.Info("PAYMENT", fmt.Sprintf("Created payment intent %s for order %s (%s %.2f)", intent.ID, order.ID, currency, order.TotalCost))
	return models.PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       order.TotalCost,
		Currency:     currency,
		Status:       string(intent.Status),
	}, nil
}

// Refund returns the full charge behind the order's payment intent.
func (g *StripeGateway) Refund(ctx context.Context, order models.Order) error {
	if order.PaymentIntentID == "" {
		return models.MissingPaymentInfo("paymentIntentId")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(order.PaymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.AddMetadata("order_id", order.ID)
	params.SetIdempotencyKey("refund-" + order.ID)

	refund, err := g.client.Refunds.New(params)
	if err != nil {
		g.log.Error("PAYMENT", fmt.Sprintf("Refund failed for order %s: %v", order.ID, err))
		return err
	}
	g.log.Info("PAYMENT", fmt.Sprintf("Refund %s issued for order %s", refund.ID, order.ID))
	return nil
}
