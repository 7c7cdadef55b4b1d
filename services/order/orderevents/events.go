package orderevents

import (
	"context"
	"fmt"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myevents"
)

const (
	TopicName            = "paymentrequest"
	paymentRequestedName = TopicName + ".requested"
)

//go:generate mockgen -source=events.go -package orderevents -destination handler_mock.go Handler
type Handler interface {
	OnPaymentRequested(c context.Context, topic string, event PaymentRequested) error
}

func Dispatch(c context.Context, envelope myevents.EventEnvelope, handler Handler) error {
	switch envelope.EventTypeName {
	case paymentRequestedName:
		event := PaymentRequested{}
		err := myevents.DecodePayload(envelope, &event)
		if err != nil {
			return err
		}
		return handler.OnPaymentRequested(c, envelope.Topic, event)
	default:
		return myerrors.NewInvalidInputError(myerrors.NewNotImplementedError(fmt.Errorf("unexpected event %s on %s", envelope.EventTypeName, TopicName)))
	}
}

type PaymentRequested struct {
	OrderID         string  `json:"orderId"`
	PayerName       string  `json:"payerName"`
	OrderTotal      float64 `json:"orderTotal"`
	CardNumber      string  `json:"cardNumber"`
	ExpiryMonthYear string  `json:"expiryMonthYear"`
	CVV             string  `json:"cvv"`
}

func (e PaymentRequested) IsEmpty() bool {
	return e.OrderID == ""
}

func (e PaymentRequested) GetEventTypeName() string {
	return paymentRequestedName
}

func (e PaymentRequested) GetAggregateName() string {
	return e.OrderID
}
