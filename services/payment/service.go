package payment

import (
	"context"
	"fmt"

	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/mylog"
	"github.com/MarcGrol/shopsaga/services/order/orderevents"
	"github.com/MarcGrol/shopsaga/services/payment/paymentevents"
)

type service struct {
	processor          Processor
	publisher          mybus.Publisher
	paymentResultTopic string
	logger             mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(processor Processor, publisher mybus.Publisher, paymentResultTopic string) *service {
	return &service{
		processor:          processor,
		publisher:          publisher,
		paymentResultTopic: paymentResultTopic,
		logger:             mylog.New("payment"),
	}
}

// OnPaymentRequested charges the payer and reports the outcome. A redelivered request is charged again.
func (s *service) OnPaymentRequested(c context.Context, topic string, event orderevents.PaymentRequested) error {
	if event.IsEmpty() {
		s.logger.Log(c, "", mylog.SeverityWarn, "Empty payment request received on %s: nothing to do", topic)
		return nil
	}

	succeeded, err := s.processor.Process(c, event)
	if err != nil {
		if myerrors.IsUnavailable(err) {
			return fmt.Errorf("error processing payment of order %s: %w", event.OrderID, err)
		}
		s.logger.Log(c, event.OrderID, mylog.SeverityError, "Payment of order %s failed: %s", event.OrderID, err)
		succeeded = false
	}

	s.logger.Log(c, event.OrderID, mylog.SeverityInfo, "Payment of %.2f for order %s processed: succeeded=%v", event.OrderTotal, event.OrderID, succeeded)

	err = s.publisher.Publish(c, s.paymentResultTopic, paymentevents.PaymentCompleted{
		OrderID:   event.OrderID,
		Succeeded: succeeded,
	})
	if err != nil {
		return fmt.Errorf("error publishing payment result of order %s: %w", event.OrderID, err)
	}

	return nil
}
