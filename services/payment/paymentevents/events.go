package paymentevents

import (
	"context"
	"fmt"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myevents"
)

const (
	TopicName            = "paymentresult"
	paymentCompletedName = TopicName + ".completed"
)

//go:generate mockgen -source=events.go -package paymentevents -destination handler_mock.go Handler
type Handler interface {
	OnPaymentCompleted(c context.Context, topic string, event PaymentCompleted) error
}

func Dispatch(c context.Context, envelope myevents.EventEnvelope, handler Handler) error {
	switch envelope.EventTypeName {
	case paymentCompletedName:
		event := PaymentCompleted{}
		err := myevents.DecodePayload(envelope, &event)
		if err != nil {
			return err
		}
		return handler.OnPaymentCompleted(c, envelope.Topic, event)
	default:
		return myerrors.NewInvalidInputError(myerrors.NewNotImplementedError(fmt.Errorf("unexpected event %s on %s", envelope.EventTypeName, TopicName)))
	}
}

type PaymentCompleted struct {
	OrderID   string `json:"orderId"`
	Succeeded bool   `json:"succeeded"`
}

func (e PaymentCompleted) GetEventTypeName() string {
	return paymentCompletedName
}

func (e PaymentCompleted) GetAggregateName() string {
	return e.OrderID
}

func (e PaymentCompleted) IsEmpty() bool {
	return e.OrderID == ""
}
