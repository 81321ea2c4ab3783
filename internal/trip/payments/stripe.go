package payments

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Processor holds the fare when a driver claims a trip and captures it when
// the trip completes. Payment outcomes never gate lifecycle transitions.
type Processor interface {
	Hold(ctx context.Context, amountCents int64, currency string) (string, error)
	Capture(ctx context.Context, ref string) error
	Release(ctx context.Context, ref string) error
}

// StripeProcessor is a thin wrapper around stripe-go PaymentIntents with
// manual capture.
type StripeProcessor struct{}

// NewStripeProcessor initializes the stripe client with the STRIPE_API_KEY
// env var.
func NewStripeProcessor() *StripeProcessor {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeProcessor{}
}

func (s *StripeProcessor) Hold(ctx context.Context, amountCents int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeProcessor) Capture(ctx context.Context, ref string) error {
	_, err := paymentintent.Capture(ref, nil)
	return err
}

func (s *StripeProcessor) Release(ctx context.Context, ref string) error {
	_, err := paymentintent.Cancel(ref, nil)
	return err
}
