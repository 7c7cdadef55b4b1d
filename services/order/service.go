package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/mylog"
	"github.com/MarcGrol/shopsaga/lib/myqueue"
	"github.com/MarcGrol/shopsaga/lib/mystore"
	"github.com/MarcGrol/shopsaga/lib/mytime"
	"github.com/MarcGrol/shopsaga/lib/myuuid"
	"github.com/MarcGrol/shopsaga/services/cart/cartevents"
	"github.com/MarcGrol/shopsaga/services/payment/paymentevents"
)

type Settings struct {
	PaymentRequestTopic string
	// WatchdogDelay is how long after creation an unpaid order gets reported as overdue
	WatchdogDelay time.Duration
}

type service struct {
	repository *repository
	publisher  mybus.Publisher
	queuer     myqueue.TaskQueuer
	settings   Settings
	nower      mytime.Nower
	logger     mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(orderStore mystore.Store[OrderAggregate], receiptStore mystore.Store[CheckoutReceipt], publisher mybus.Publisher, queuer myqueue.TaskQueuer, settings Settings, nower mytime.Nower, uuider myuuid.UUIDer) *service {
	logger := mylog.New("order")
	return &service{
		repository: newRepository(orderStore, receiptStore, uuider, logger),
		publisher:  publisher,
		queuer:     queuer,
		settings:   settings,
		nower:      nower,
		logger:     logger,
	}
}

// OnCheckoutSubmitted materializes the order and asks for its payment.
func (s *service) OnCheckoutSubmitted(c context.Context, topic string, event cartevents.CheckoutSubmitted) error {
	if event.IsEmpty() {
		s.logger.Log(c, "", mylog.SeverityWarn, "Empty checkout received on %s: nothing to do", topic)
		return nil
	}

	s.logger.Log(c, event.UserID, mylog.SeverityInfo, "Checkout %s of user %s received with %d lines", event.DedupKey, event.UserID, len(event.Lines))

	added, ok := s.repository.addOrder(c, orderFromCheckout(event, s.nower.Now()))
	if !ok {
		return myerrors.NewInternalError(fmt.Errorf("error persisting order of checkout %s of user %s", event.DedupKey, event.UserID))
	}
	order := added.Order

	if added.Duplicate {
		duplicateCheckoutsTotal.Inc()
		s.logger.Log(c, order.OrderID, mylog.SeverityWarn, "Checkout %s was received before: order %s already exists", event.DedupKey, order.OrderID)
	}

	if added.PaymentRequested {
		return nil
	}

	err := s.publisher.Publish(c, s.settings.PaymentRequestTopic, order.paymentRequest())
	if err != nil {
		return fmt.Errorf("error requesting payment of order %s: %w", order.OrderID, err)
	}

	err = s.repository.markPaymentRequested(c, order.DedupKey)
	if err != nil {
		return fmt.Errorf("error marking payment of order %s as requested: %w", order.OrderID, err)
	}

	s.scheduleWatchdog(c, order)

	s.logger.Log(c, order.OrderID, mylog.SeverityInfo, "Order %s created and payment of %.2f requested", order.OrderID, order.OrderTotal)

	return nil
}

func (s *service) scheduleWatchdog(c context.Context, order OrderAggregate) {
	err := s.queuer.Enqueue(c, myqueue.Task{
		UID:            "paymentoverdue-" + order.OrderID,
		WebhookURLPath: fmt.Sprintf("/api/order/%s/paymentoverdue", order.OrderID),
		ScheduleAfter:  s.settings.WatchdogDelay,
	})
	if err != nil {
		s.logger.Log(c, order.OrderID, mylog.SeverityError, "Error scheduling payment watchdog of order %s: %s", order.OrderID, err)
	}
}

// OnPaymentCompleted stores the outcome of the payment on the order.
func (s *service) OnPaymentCompleted(c context.Context, topic string, event paymentevents.PaymentCompleted) error {
	if event.IsEmpty() {
		s.logger.Log(c, "", mylog.SeverityWarn, "Empty payment result received on %s: nothing to do", topic)
		return nil
	}

	s.logger.Log(c, event.OrderID, mylog.SeverityInfo, "Payment of order %s completed: succeeded=%v", event.OrderID, event.Succeeded)

	err := s.repository.updatePaymentStatus(c, event.OrderID, event.Succeeded)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			unmatchedPaymentResultsTotal.Inc()
			s.logger.Log(c, event.OrderID, mylog.SeverityWarn, "Payment result for unknown order %s on %s", event.OrderID, topic)
			return nil
		}
		return fmt.Errorf("error updating payment status of order %s: %w", event.OrderID, err)
	}

	return nil
}

func (s *service) getOrder(c context.Context, orderID string) (OrderAggregate, error) {
	s.logger.Log(c, orderID, mylog.SeverityInfo, "Fetch order %s", orderID)
	return s.repository.getOrder(c, orderID)
}

func (s *service) listOrders(c context.Context, userID string) ([]OrderAggregate, error) {
	s.logger.Log(c, userID, mylog.SeverityInfo, "Fetch orders of user %s", userID)

	if userID == "" {
		return nil, myerrors.NewInvalidInputError(fmt.Errorf("missing userId"))
	}

	return s.repository.ordersOfUser(c, userID)
}

// paymentOverdue reports an order that is still unpaid. It never changes the order.
func (s *service) paymentOverdue(c context.Context, orderID string) (OrderAggregate, error) {
	order, err := s.repository.getOrder(c, orderID)
	if err != nil {
		return OrderAggregate{}, err
	}

	if !order.PaymentStatus {
		paymentOverdueTotal.Inc()
		s.logger.Log(c, orderID, mylog.SeverityWarn, "Payment of order %s created at %s is overdue", orderID, order.OrderTimestamp.Format(time.RFC3339))
	}

	return order, nil
}
