package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/myevents"
	"github.com/MarcGrol/shopsaga/lib/myhttpclient"
	"github.com/MarcGrol/shopsaga/lib/mylifecycle"
	"github.com/MarcGrol/shopsaga/lib/myqueue"
	"github.com/MarcGrol/shopsaga/lib/mystore"
	"github.com/MarcGrol/shopsaga/lib/mysubscriber"
	"github.com/MarcGrol/shopsaga/lib/mytime"
	"github.com/MarcGrol/shopsaga/lib/myuuid"
	"github.com/MarcGrol/shopsaga/services/cart"
	"github.com/MarcGrol/shopsaga/services/cart/cartevents"
	"github.com/MarcGrol/shopsaga/services/order"
	"github.com/MarcGrol/shopsaga/services/order/orderevents"
	"github.com/MarcGrol/shopsaga/services/payment"
	"github.com/MarcGrol/shopsaga/services/payment/paymentevents"
)

// infrastructure is what differs between running in the cloud and running locally.
type infrastructure struct {
	publisher mybus.Publisher
	// subscribe makes sure the subscription of the destination exists and returns how to bind to it
	subscribe func(c context.Context, dest Destination) (mybus.Dialer, error)
	queuer    myqueue.TaskQueuer
	nower     mytime.Nower
	uuider    myuuid.UUIDer
}

func newInfrastructure(c context.Context, cfg Config) (infrastructure, func(), error) {
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")

	queuer, cleanupQueue, err := myqueue.New(c, myqueue.QueueName{
		ProjectID:  projectID,
		LocationID: cfg.Watchdog.LocationID,
		Queue:      cfg.Watchdog.Queue,
	})
	if err != nil {
		return infrastructure{}, nil, fmt.Errorf("error creating task queue: %w", err)
	}

	if projectID == "" {
		return newLocalInfrastructure(cfg, queuer), cleanupQueue, nil
	}

	return newGcloudInfrastructure(cfg, queuer), cleanupQueue, nil
}

func newLocalInfrastructure(cfg Config, queuer myqueue.TaskQueuer) infrastructure {
	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}
	broker := mybus.NewInMemoryBroker(cfg.Subscriber.LockWindow, nower, uuider)

	// Keeps dead-lettered messages around for inspection
	broker.CreateSubscription(cfg.DeadLetter.Topic, cfg.DeadLetter.Subscription)

	return infrastructure{
		publisher: broker,
		subscribe: func(c context.Context, dest Destination) (mybus.Dialer, error) {
			broker.CreateSubscription(dest.Topic, dest.Subscription)
			return broker.Dialer(dest.Subscription, receiveSettings(cfg)), nil
		},
		queuer: queuer,
		nower:  nower,
		uuider: uuider,
	}
}

func newGcloudInfrastructure(cfg Config, queuer myqueue.TaskQueuer) infrastructure {
	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	connections := map[string]mybus.Connection{}
	for _, dest := range []Destination{cfg.Checkout, cfg.PaymentRequest, cfg.PaymentResult, cfg.DeadLetter} {
		connections[dest.Topic] = dest.connection()
	}

	return infrastructure{
		publisher: mybus.NewGcloudPublisher(connections, nower, uuider),
		subscribe: func(c context.Context, dest Destination) (mybus.Dialer, error) {
			err := mybus.EnsureSubscription(c, dest.connection(), dest.Topic, dest.Subscription, mybus.SubscriptionSettings{
				LockWindow:          cfg.Subscriber.LockWindow,
				MaxDeliveryAttempts: cfg.Subscriber.MaxDeliveryAttempts,
				DeadLetterTopic:     cfg.DeadLetter.Topic,
			})
			if err != nil {
				return nil, err
			}
			return mybus.GcloudDialer(dest.connection(), dest.Subscription, receiveSettings(cfg)), nil
		},
		queuer: queuer,
		nower:  nower,
		uuider: uuider,
	}
}

func receiveSettings(cfg Config) mybus.ReceiveSettings {
	return mybus.ReceiveSettings{
		MaxConcurrentDeliveries: cfg.Subscriber.MaxConcurrentDeliveries,
	}
}

type application struct {
	router     *mux.Router
	processors []mylifecycle.Processor
	cleanups   []func()
}

func (app *application) cleanup() {
	for _, f := range app.cleanups {
		f()
	}
}

func newApplication(c context.Context, cfg Config, infra infrastructure) (*application, error) {
	app := &application{
		router: mux.NewRouter(),
	}

	app.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	app.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	var err error
	if cfg.hosts(serviceCart) {
		err = app.withCart(c, cfg, infra)
		if err != nil {
			app.cleanup()
			return nil, err
		}
	}
	if cfg.hosts(serviceOrder) {
		err = app.withOrder(c, cfg, infra)
		if err != nil {
			app.cleanup()
			return nil, err
		}
	}
	if cfg.hosts(servicePayment) {
		err = app.withPayment(c, cfg, infra)
		if err != nil {
			app.cleanup()
			return nil, err
		}
	}

	return app, nil
}

func (app *application) withCart(c context.Context, cfg Config, infra infrastructure) error {
	cartStore, cleanup, err := mystore.New[cart.Cart](c)
	if err != nil {
		return fmt.Errorf("error creating cart store: %w", err)
	}
	app.cleanups = append(app.cleanups, cleanup)

	couponReader := cart.NewCouponReader(cfg.CouponAPI.BaseURL, myhttpclient.New(cfg.CouponAPI.Timeout))

	return cart.NewWebService(cartStore, couponReader, infra.publisher, cfg.Checkout.Topic, infra.nower).
		RegisterEndpoints(c, app.router)
}

func (app *application) withOrder(c context.Context, cfg Config, infra infrastructure) error {
	orderStore, cleanup, err := mystore.New[order.OrderAggregate](c)
	if err != nil {
		return fmt.Errorf("error creating order store: %w", err)
	}
	app.cleanups = append(app.cleanups, cleanup)

	receiptStore, cleanup, err := mystore.New[order.CheckoutReceipt](c)
	if err != nil {
		return fmt.Errorf("error creating receipt store: %w", err)
	}
	app.cleanups = append(app.cleanups, cleanup)

	svc := order.NewService(orderStore, receiptStore, infra.publisher, infra.queuer, order.Settings{
		PaymentRequestTopic: cfg.PaymentRequest.Topic,
		WatchdogDelay:       cfg.Watchdog.Delay,
	}, infra.nower, infra.uuider)

	err = svc.RegisterEndpoints(c, app.router)
	if err != nil {
		return err
	}

	err = app.consume(c, cfg, infra, cfg.Checkout, func(c context.Context, envelope myevents.EventEnvelope) error {
		return cartevents.Dispatch(c, envelope, svc)
	})
	if err != nil {
		return err
	}

	return app.consume(c, cfg, infra, cfg.PaymentResult, func(c context.Context, envelope myevents.EventEnvelope) error {
		return paymentevents.Dispatch(c, envelope, svc)
	})
}

func (app *application) withPayment(c context.Context, cfg Config, infra infrastructure) error {
	var processor payment.Processor
	switch cfg.Payment.Provider {
	case providerStripe:
		processor = payment.NewStripeProcessor(payment.StripeSettings{
			APIKey:        cfg.Payment.StripeAPIKey,
			Currency:      cfg.Payment.Currency,
			PaymentMethod: cfg.Payment.StripePaymentMethod,
		})
	default:
		processor = payment.NewSimulatedProcessor()
	}

	svc := payment.NewService(processor, infra.publisher, cfg.PaymentResult.Topic)

	return app.consume(c, cfg, infra, cfg.PaymentRequest, func(c context.Context, envelope myevents.EventEnvelope) error {
		return orderevents.Dispatch(c, envelope, svc)
	})
}

func (app *application) consume(c context.Context, cfg Config, infra infrastructure, dest Destination, handler mysubscriber.HandlerFunc) error {
	dialer, err := infra.subscribe(c, dest)
	if err != nil {
		return fmt.Errorf("error subscribing %s to %s: %w", dest.Subscription, dest.Topic, err)
	}

	app.processors = append(app.processors, mysubscriber.New(dest.Subscription, dialer, handler, infra.publisher, mysubscriber.Options{
		MaxDeliveryAttempts: cfg.Subscriber.MaxDeliveryAttempts,
		DeadLetterTopic:     cfg.DeadLetter.Topic,
		ErrorBackoff:        cfg.Subscriber.ErrorBackoff,
	}))

	return nil
}
