package mybus

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myevents"
	"github.com/MarcGrol/shopsaga/lib/mytime"
	"github.com/MarcGrol/shopsaga/lib/myuuid"
)

type gcloudPublisher struct {
	connections map[string]Connection
	enveloper   enveloper
}

// NewGcloudPublisher publishes to Cloud Pub/Sub. Every topic is reached through its own connection.
func NewGcloudPublisher(connections map[string]Connection, nower mytime.Nower, uuider myuuid.UUIDer) Publisher {
	return &gcloudPublisher{
		connections: connections,
		enveloper:   newEnveloper(nower, uuider),
	}
}

func (p *gcloudPublisher) Publish(c context.Context, topic string, event myevents.Event) error {
	conn, found := p.connections[topic]
	if !found {
		return myerrors.NewInternalError(fmt.Errorf("no broker connection configured for topic %s", topic))
	}

	envelope, data, attributes, err := p.enveloper.encode(topic, event)
	if err != nil {
		return err
	}

	// The client only lives for the duration of this call
	client, err := newClient(c, conn)
	if err != nil {
		return myerrors.NewUnavailableError(fmt.Errorf("error connecting to broker for topic %s: %w", topic, err))
	}
	defer client.Close()

	t := client.Topic(topic)
	t.PublishSettings.CountThreshold = 1
	defer t.Stop()

	_, err = t.Publish(c, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	}).Get(c)
	if err != nil {
		return myerrors.NewUnavailableError(fmt.Errorf("error publishing %s: %w", envelope, err))
	}

	return nil
}

func newClient(c context.Context, conn Connection) (*pubsub.Client, error) {
	opts := []option.ClientOption{}
	if conn.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conn.CredentialsFile))
	}

	client, err := pubsub.NewClient(c, conn.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating pubsub-client for project %s: %w", conn.ProjectID, err)
	}
	return client, nil
}
