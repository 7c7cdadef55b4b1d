package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/services/order/orderevents"
)

const defaultPaymentMethod = "pm_card_visa"

type StripeSettings struct {
	APIKey   string
	Currency string
	// PaymentMethod is charged instead of the card of the request: raw card numbers never reach stripe
	PaymentMethod string
}

type paymentIntentCreator func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

type stripeProcessor struct {
	settings StripeSettings
	create   paymentIntentCreator
}

func NewStripeProcessor(settings StripeSettings) Processor {
	sc := &client.API{}
	sc.Init(settings.APIKey, nil)

	return newStripeProcessor(settings, sc.PaymentIntents.New)
}

func newStripeProcessor(settings StripeSettings, create paymentIntentCreator) *stripeProcessor {
	if settings.PaymentMethod == "" {
		settings.PaymentMethod = defaultPaymentMethod
	}
	if settings.Currency == "" {
		settings.Currency = string(stripe.CurrencyEUR)
	}
	return &stripeProcessor{
		settings: settings,
		create:   create,
	}
}

func (p *stripeProcessor) Process(c context.Context, request orderevents.PaymentRequested) (bool, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(int64(math.Round(request.OrderTotal * 100))),
		Currency:           stripe.String(p.settings.Currency),
		PaymentMethod:      stripe.String(p.settings.PaymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		Description:        stripe.String(fmt.Sprintf("Order %s of %s", request.OrderID, request.PayerName)),
	}
	params.Context = c
	params.AddMetadata("orderId", request.OrderID)

	intent, err := p.create(params)
	if err != nil {
		return classifyStripeError(request.OrderID, err)
	}

	return intent.Status == stripe.PaymentIntentStatusSucceeded, nil
}

func classifyStripeError(orderID string, err error) (bool, error) {
	err = fmt.Errorf("error creating payment-intent for order %s: %w", orderID, err)

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// no answer from stripe
		return false, myerrors.NewUnavailableError(err)
	}

	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		return false, nil
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
		return false, myerrors.NewUnavailableError(err)
	default:
		return false, err
	}
}
