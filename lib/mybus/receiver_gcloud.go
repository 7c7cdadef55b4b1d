package mybus

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
)

type gcloudReceiver struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
}

func GcloudDialer(conn Connection, subscriptionID string, settings ReceiveSettings) Dialer {
	return func(c context.Context) (Receiver, error) {
		client, err := newClient(c, conn)
		if err != nil {
			return nil, err
		}

		sub := client.Subscription(subscriptionID)
		if settings.MaxConcurrentDeliveries > 0 {
			sub.ReceiveSettings.MaxOutstandingMessages = settings.MaxConcurrentDeliveries
		}

		return &gcloudReceiver{
			client:       client,
			subscription: sub,
		}, nil
	}
}

func (r *gcloudReceiver) Receive(c context.Context, f func(c context.Context, d Delivery)) error {
	err := r.subscription.Receive(c, func(ctx context.Context, msg *pubsub.Message) {
		f(ctx, gcloudDelivery{msg: msg})
	})
	if err != nil {
		return fmt.Errorf("error receiving from subscription %s: %w", r.subscription.ID(), err)
	}
	return nil
}

func (r *gcloudReceiver) Close() error {
	return r.client.Close()
}

type gcloudDelivery struct {
	msg *pubsub.Message
}

func (d gcloudDelivery) ID() string {
	return d.msg.ID
}

func (d gcloudDelivery) Data() []byte {
	return d.msg.Data
}

func (d gcloudDelivery) DeliveryAttempt() int {
	// Only filled when the subscription has a dead-letter policy
	if d.msg.DeliveryAttempt == nil {
		return 0
	}
	return *d.msg.DeliveryAttempt
}

func (d gcloudDelivery) Complete() {
	d.msg.Ack()
}

// Abandon makes the message available again once the retry backoff of the subscription has passed.
func (d gcloudDelivery) Abandon() {
	d.msg.Nack()
}
