package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/myqueue"
	"github.com/MarcGrol/shopsaga/lib/mystore"
	"github.com/MarcGrol/shopsaga/lib/mytime"
	"github.com/MarcGrol/shopsaga/lib/myuuid"
	"github.com/MarcGrol/shopsaga/services/cart/cartevents"
	"github.com/MarcGrol/shopsaga/services/order/orderevents"
	"github.com/MarcGrol/shopsaga/services/payment/paymentevents"
)

const (
	paymentRequestTopic = "paymentrequest-test"
	watchdogDelay       = time.Hour
)

var widgetCheckout = cartevents.CheckoutSubmitted{
	UserID:          "u1",
	OrderTotal:      20.0,
	FirstName:       "Marc",
	LastName:        "Grol",
	CardNumber:      "4111111111111111",
	ExpiryMonthYear: "12/30",
	CVV:             "123",
	Lines: []cartevents.CartLineSnapshot{
		{ProductID: 7, Count: 2, UnitPrice: 10.0, ProductName: "Widget"},
	},
}

func TestOrderMaterializer(t *testing.T) {

	t.Run("Checkout creates order and requests payment", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, _, mocks := setup(t, ctrl)

		// given
		mocks.nower.EXPECT().Now().Return(mytime.ExampleTime)
		mocks.uuider.EXPECT().Create().Return("order-1")
		mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, orderevents.PaymentRequested{
			OrderID:         "order-1",
			PayerName:       "Marc Grol",
			OrderTotal:      20.0,
			CardNumber:      "4111111111111111",
			ExpiryMonthYear: "12/30",
			CVV:             "123",
		}).Return(nil)
		mocks.queuer.EXPECT().Enqueue(gomock.Any(), myqueue.Task{
			UID:            "paymentoverdue-order-1",
			WebhookURLPath: "/api/order/order-1/paymentoverdue",
			ScheduleAfter:  watchdogDelay,
		}).Return(nil)

		// when
		err := sut.OnCheckoutSubmitted(c, cartevents.TopicName, widgetCheckout)

		// then
		require.NoError(t, err)
		orders, err := orderStore.List(c)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		order := orders[0]
		assert.Equal(t, "order-1", order.OrderID)
		assert.Equal(t, "u1", order.UserID)
		assert.False(t, order.PaymentStatus)
		assert.Equal(t, 2, order.TotalItemCount)
		assert.Equal(t, mytime.ExampleTime, order.OrderTimestamp)
		assert.Equal(t, []OrderLine{{ProductID: 7, ProductName: "Widget", UnitPrice: 10.0, Count: 2}}, order.Lines)
	})

	t.Run("Total item count adds line counts to the cart total", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, _, mocks := setup(t, ctrl)

		// given
		event := widgetCheckout
		event.CartTotalItems = 2
		event.Lines = append([]cartevents.CartLineSnapshot{}, widgetCheckout.Lines...)
		event.Lines = append(event.Lines, cartevents.CartLineSnapshot{ProductID: 8, Count: 1, UnitPrice: 5, ProductName: "Gadget"})
		mocks.nower.EXPECT().Now().Return(mytime.ExampleTime)
		mocks.uuider.EXPECT().Create().Return("order-1")
		mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, gomock.Any()).Return(nil)
		mocks.queuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

		// when
		err := sut.OnCheckoutSubmitted(c, cartevents.TopicName, event)

		// then
		require.NoError(t, err)
		order, found, err := orderStore.Get(c, "order-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 5, order.TotalItemCount)
		assert.Len(t, order.Lines, 2)
	})

	t.Run("Empty checkout is ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, _, _ := setup(t, ctrl)

		// when
		err := sut.OnCheckoutSubmitted(c, cartevents.TopicName, cartevents.CheckoutSubmitted{})

		// then
		require.NoError(t, err)
		orders, err := orderStore.List(c)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("Failing publish is returned and nothing is scheduled", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, _, _, mocks := setup(t, ctrl)

		// given
		mocks.nower.EXPECT().Now().Return(mytime.ExampleTime)
		mocks.uuider.EXPECT().Create().Return("order-1")
		mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, gomock.Any()).Return(fmt.Errorf("broker down"))

		// when
		err := sut.OnCheckoutSubmitted(c, cartevents.TopicName, widgetCheckout)

		// then
		assert.Error(t, err)
	})

	t.Run("Failing persistence is returned and nothing is published", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c := context.TODO()
		receiptStore, _, _ := mystore.NewInMemoryStore[CheckoutReceipt](c)
		mocks := newMocks(ctrl)
		sut := NewService(failingStore[OrderAggregate]{}, receiptStore, mocks.publisher, mocks.queuer, Settings{PaymentRequestTopic: paymentRequestTopic}, mocks.nower, mocks.uuider)

		// given
		mocks.nower.EXPECT().Now().Return(mytime.ExampleTime)
		mocks.uuider.EXPECT().Create().Return("order-1")

		// when
		err := sut.OnCheckoutSubmitted(c, cartevents.TopicName, widgetCheckout)

		// then
		assert.Error(t, err)
	})

	t.Run("Failing watchdog does not fail the checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, _, _, mocks := setup(t, ctrl)

		// given
		mocks.nower.EXPECT().Now().Return(mytime.ExampleTime)
		mocks.uuider.EXPECT().Create().Return("order-1")
		mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, gomock.Any()).Return(nil)
		mocks.queuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(fmt.Errorf("queue down"))

		// when
		err := sut.OnCheckoutSubmitted(c, cartevents.TopicName, widgetCheckout)

		// then
		assert.NoError(t, err)
	})

	t.Run("Known gap: redelivered checkout without dedup key creates a second order", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, _, mocks := setup(t, ctrl)

		// given
		mocks.nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)
		gomock.InOrder(
			mocks.uuider.EXPECT().Create().Return("order-1"),
			mocks.uuider.EXPECT().Create().Return("order-2"),
		)
		gomock.InOrder(
			mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, gomock.Any()).Return(fmt.Errorf("broker down")),
			mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, gomock.Any()).Return(nil),
		)
		mocks.queuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

		// when
		err1 := sut.OnCheckoutSubmitted(c, cartevents.TopicName, widgetCheckout)
		err2 := sut.OnCheckoutSubmitted(c, cartevents.TopicName, widgetCheckout)

		// then
		assert.Error(t, err1)
		assert.NoError(t, err2)
		orders, err := orderStore.List(c)
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("Redelivered checkout with dedup key yields one order and one payment request", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, receiptStore, mocks := setup(t, ctrl)

		// given
		event := widgetCheckout
		event.DedupKey = "u1/1"
		duplicatesBefore := testutil.ToFloat64(duplicateCheckoutsTotal)
		mocks.nower.EXPECT().Now().Return(mytime.ExampleTime).Times(3)
		mocks.uuider.EXPECT().Create().Return("order-1")
		mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, gomock.Any()).Return(nil)
		mocks.queuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

		// when
		for i := 0; i < 3; i++ {
			err := sut.OnCheckoutSubmitted(c, cartevents.TopicName, event)
			require.NoError(t, err)
		}

		// then
		orders, err := orderStore.List(c)
		require.NoError(t, err)
		assert.Len(t, orders, 1)
		receipt, found, err := receiptStore.Get(c, "u1/1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, CheckoutReceipt{DedupKey: "u1/1", OrderID: "order-1", PaymentRequested: true}, receipt)
		assert.Equal(t, 2.0, testutil.ToFloat64(duplicateCheckoutsTotal)-duplicatesBefore)
	})

	t.Run("Checkout with dedup key retries the payment request of the existing order", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, _, mocks := setup(t, ctrl)

		// given
		event := widgetCheckout
		event.DedupKey = "u1/1"
		mocks.nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)
		mocks.uuider.EXPECT().Create().Return("order-1")
		gomock.InOrder(
			mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, gomock.Any()).Return(fmt.Errorf("broker down")),
			mocks.publisher.EXPECT().Publish(gomock.Any(), paymentRequestTopic, orderevents.PaymentRequested{
				OrderID:         "order-1",
				PayerName:       "Marc Grol",
				OrderTotal:      20.0,
				CardNumber:      "4111111111111111",
				ExpiryMonthYear: "12/30",
				CVV:             "123",
			}).Return(nil),
		)
		mocks.queuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

		// when
		err1 := sut.OnCheckoutSubmitted(c, cartevents.TopicName, event)
		err2 := sut.OnCheckoutSubmitted(c, cartevents.TopicName, event)

		// then
		assert.Error(t, err1)
		assert.NoError(t, err2)
		orders, err := orderStore.List(c)
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})
}

func TestOrderStatusUpdater(t *testing.T) {

	t.Run("Payment result sets payment status", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, _, _ := setup(t, ctrl)

		// given
		require.NoError(t, orderStore.Put(c, "order-1", OrderAggregate{OrderID: "order-1", UserID: "u1", TotalItemCount: 2, OrderTotal: 20}))

		// when
		err := sut.OnPaymentCompleted(c, paymentevents.TopicName, paymentevents.PaymentCompleted{OrderID: "order-1", Succeeded: true})

		// then
		require.NoError(t, err)
		order, _, err := orderStore.Get(c, "order-1")
		require.NoError(t, err)
		assert.Equal(t, OrderAggregate{OrderID: "order-1", UserID: "u1", TotalItemCount: 2, OrderTotal: 20, PaymentStatus: true}, order)
	})

	t.Run("Failed payment keeps order unpaid", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, _, _ := setup(t, ctrl)

		// given
		require.NoError(t, orderStore.Put(c, "order-1", OrderAggregate{OrderID: "order-1"}))

		// when
		err := sut.OnPaymentCompleted(c, paymentevents.TopicName, paymentevents.PaymentCompleted{OrderID: "order-1", Succeeded: false})

		// then
		require.NoError(t, err)
		order, _, err := orderStore.Get(c, "order-1")
		require.NoError(t, err)
		assert.False(t, order.PaymentStatus)
	})

	t.Run("Payment result of unknown order is counted and completed", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c, sut, orderStore, _, _ := setup(t, ctrl)

		// given
		unmatchedBefore := testutil.ToFloat64(unmatchedPaymentResultsTotal)

		// when
		err := sut.OnPaymentCompleted(c, paymentevents.TopicName, paymentevents.PaymentCompleted{OrderID: "unknown", Succeeded: true})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(unmatchedPaymentResultsTotal)-unmatchedBefore)
		orders, err := orderStore.List(c)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("Empty payment result is completed without touching the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c := context.TODO()
		mocks := newMocks(ctrl)
		sut := NewService(failingStore[OrderAggregate]{}, failingStore[CheckoutReceipt]{}, mocks.publisher, mocks.queuer, Settings{}, mocks.nower, mocks.uuider)

		// given
		unmatchedBefore := testutil.ToFloat64(unmatchedPaymentResultsTotal)

		// when
		err := sut.OnPaymentCompleted(c, paymentevents.TopicName, paymentevents.PaymentCompleted{})

		// then
		require.NoError(t, err)
		assert.Equal(t, unmatchedBefore, testutil.ToFloat64(unmatchedPaymentResultsTotal))
	})

	t.Run("Failing persistence gets payment result redelivered", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		// setup
		c := context.TODO()
		receiptStore, _, _ := mystore.NewInMemoryStore[CheckoutReceipt](c)
		mocks := newMocks(ctrl)
		sut := NewService(failingStore[OrderAggregate]{}, receiptStore, mocks.publisher, mocks.queuer, Settings{}, mocks.nower, mocks.uuider)

		// when
		err := sut.OnPaymentCompleted(c, paymentevents.TopicName, paymentevents.PaymentCompleted{OrderID: "order-1", Succeeded: true})

		// then
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrOrderNotFound)
	})
}

type collaborators struct {
	publisher *mybus.MockPublisher
	queuer    *myqueue.MockTaskQueuer
	nower     *mytime.MockNower
	uuider    *myuuid.MockUUIDer
}

func newMocks(ctrl *gomock.Controller) collaborators {
	return collaborators{
		publisher: mybus.NewMockPublisher(ctrl),
		queuer:    myqueue.NewMockTaskQueuer(ctrl),
		nower:     mytime.NewMockNower(ctrl),
		uuider:    myuuid.NewMockUUIDer(ctrl),
	}
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *service, mystore.Store[OrderAggregate], mystore.Store[CheckoutReceipt], collaborators) {
	c := context.TODO()
	orderStore, _, err := mystore.NewInMemoryStore[OrderAggregate](c)
	require.NoError(t, err)
	receiptStore, _, err := mystore.NewInMemoryStore[CheckoutReceipt](c)
	require.NoError(t, err)
	m := newMocks(ctrl)

	sut := NewService(orderStore, receiptStore, m.publisher, m.queuer, Settings{
		PaymentRequestTopic: paymentRequestTopic,
		WatchdogDelay:       watchdogDelay,
	}, m.nower, m.uuider)

	return c, sut, orderStore, receiptStore, m
}

type failingStore[T any] struct{}

func (s failingStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	return f(c)
}

func (s failingStore[T]) Put(c context.Context, uid string, value T) error {
	return fmt.Errorf("datastore unavailable")
}

func (s failingStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	return *new(T), false, fmt.Errorf("datastore unavailable")
}

func (s failingStore[T]) List(c context.Context) ([]T, error) {
	return nil, fmt.Errorf("datastore unavailable")
}

func (s failingStore[T]) Query(c context.Context, filters []mystore.Filter, orderByField string) ([]T, error) {
	return nil, fmt.Errorf("datastore unavailable")
}
