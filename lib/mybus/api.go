package mybus

import (
	"context"

	"github.com/MarcGrol/shopsaga/lib/myevents"
)

// Connection holds what is needed to reach the broker that hosts a destination.
type Connection struct {
	ProjectID       string
	CredentialsFile string
}

//go:generate mockgen -source=api.go -package mybus -destination publisher_mock.go Publisher
type Publisher interface {
	// Publish makes the event visible on the topic if and only if it returns nil. It does not retry.
	Publish(c context.Context, topic string, event myevents.Event) error
}

// Delivery is a single delivery of a message to a subscriber.
type Delivery interface {
	ID() string
	Data() []byte
	// DeliveryAttempt is 1 for the first delivery, 0 when the broker does not track attempts.
	DeliveryAttempt() int
	Complete()
	Abandon()
}

type Receiver interface {
	// Receive calls f concurrently for every delivered message until c is cancelled.
	// It returns only after all invocations of f have returned.
	Receive(c context.Context, f func(c context.Context, d Delivery)) error
	Close() error
}

// Dialer opens a receiver bound to one subscription.
type Dialer func(c context.Context) (Receiver, error)

type ReceiveSettings struct {
	MaxConcurrentDeliveries int
}

const (
	attributeCorrelationID = "correlationId"
	attributeEventTypeName = "eventTypeName"
)
