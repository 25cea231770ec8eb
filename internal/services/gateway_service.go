// internal/services/gateway_service.go
package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
)

// PaymentGateway is the external card-payment boundary. Implementations make
// network calls and must never be invoked inside a database transaction:
// settlement verifies first, then opens its short transaction.
type PaymentGateway interface {
	// CreateIntent opens a payment for the given amount in minor units and
	// returns the provider reference plus the client secret the frontend
	// needs to collect the card.
	CreateIntent(amount int64, currency string, metadata map[string]string) (*GatewayIntent, error)

	// Verify re-reads the payment from the provider and reports whether it
	// actually succeeded for the expected amount. Settlement trusts this
	// call, never the client.
	Verify(ref string, expectedAmount int64) (bool, error)

	// Refund returns money on a previously captured payment.
	Refund(ref string, amount int64) error
}

// GatewayIntent is the provider-side handle for an in-flight payment.
type GatewayIntent struct {
	Ref          string `json:"ref"`
	ClientSecret string `json:"client_secret"`
}

// StripeGateway implements PaymentGateway on Stripe payment intents.
type StripeGateway struct {
	currency string
}

func NewStripeGateway(apiKey, currency string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{currency: currency}
}

func (g *StripeGateway) CreateIntent(amount int64, currency string, metadata map[string]string) (*GatewayIntent, error) {
	if currency == "" {
		currency = g.currency
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return &GatewayIntent{Ref: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (g *StripeGateway) Verify(ref string, expectedAmount int64) (bool, error) {
	intent, err := paymentintent.Get(ref, nil)
	if err != nil {
		return false, fmt.Errorf("failed to fetch payment intent: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return false, nil
	}
	if intent.AmountReceived < expectedAmount {
		logrus.WithFields(logrus.Fields{
			"ref":      ref,
			"expected": expectedAmount,
			"received": intent.AmountReceived,
		}).Warn("Payment amount mismatch")
		return false, nil
	}
	return true, nil
}

func (g *StripeGateway) Refund(ref string, amount int64) error {
	_, err := refund.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(ref),
		Amount:        stripe.Int64(amount),
	})
	if err != nil {
		return fmt.Errorf("failed to refund payment: %w", err)
	}
	return nil
}
