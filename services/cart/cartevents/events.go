package cartevents

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myevents"
)

const (
	TopicName             = "checkout"
	checkoutSubmittedName = TopicName + ".submitted"
)

//go:generate mockgen -source=events.go -package cartevents -destination handler_mock.go Handler
type Handler interface {
	OnCheckoutSubmitted(c context.Context, topic string, event CheckoutSubmitted) error
}

func Dispatch(c context.Context, envelope myevents.EventEnvelope, handler Handler) error {
	switch envelope.EventTypeName {
	case checkoutSubmittedName:
		event := CheckoutSubmitted{}
		err := myevents.DecodePayload(envelope, &event)
		if err != nil {
			return err
		}
		return handler.OnCheckoutSubmitted(c, envelope.Topic, event)
	default:
		return myerrors.NewInvalidInputError(myerrors.NewNotImplementedError(fmt.Errorf("unexpected event %s on %s", envelope.EventTypeName, TopicName)))
	}
}

// CheckoutSubmitted carries a snapshot of the cart at the moment the shopper checked out.
type CheckoutSubmitted struct {
	UserID          string             `json:"userId"`
	CouponCode      string             `json:"couponCode,omitempty"`
	DiscountTotal   float64            `json:"discountTotal"`
	OrderTotal      float64            `json:"orderTotal"`
	FirstName       string             `json:"firstName"`
	LastName        string             `json:"lastName"`
	Phone           string             `json:"phone"`
	Email           string             `json:"email"`
	PickupDateTime  time.Time          `json:"pickupDateTime"`
	CardNumber      string             `json:"cardNumber"`
	CVV             string             `json:"cvv"`
	ExpiryMonthYear string             `json:"expiryMonthYear"`
	CartTotalItems  int                `json:"cartTotalItems"`
	Lines           []CartLineSnapshot `json:"lines"`
	// DedupKey is the same for every publish of the same checkout submission
	DedupKey string `json:"dedupKey,omitempty"`
}

type CartLineSnapshot struct {
	ProductID   int     `json:"productId"`
	Count       int     `json:"count"`
	UnitPrice   float64 `json:"unitPrice"`
	ProductName string  `json:"productName"`
}

func (e CheckoutSubmitted) IsEmpty() bool {
	return e.UserID == "" && len(e.Lines) == 0
}

func (e CheckoutSubmitted) GetEventTypeName() string {
	return checkoutSubmittedName
}

func (e CheckoutSubmitted) GetAggregateName() string {
	return e.UserID
}
