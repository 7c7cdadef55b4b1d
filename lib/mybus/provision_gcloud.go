package mybus

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

const (
	minAckDeadline         = 10 * time.Second
	maxAckDeadline         = 600 * time.Second
	minNativeDeliveryLimit = 5
	maxNativeDeliveryLimit = 100
)

type SubscriptionSettings struct {
	LockWindow          time.Duration
	MaxDeliveryAttempts int
	DeadLetterTopic     string
}

// EnsureSubscription creates the topic and the subscription when they do not exist yet.
func EnsureSubscription(c context.Context, conn Connection, topicID string, subscriptionID string, settings SubscriptionSettings) error {
	client, err := newClient(c, conn)
	if err != nil {
		return err
	}
	defer client.Close()

	topic, err := ensureTopic(c, client, topicID)
	if err != nil {
		return err
	}

	sub := client.Subscription(subscriptionID)
	exists, err := sub.Exists(c)
	if err != nil {
		return fmt.Errorf("error checking existence of subscription %s: %w", subscriptionID, err)
	}
	if exists {
		return nil
	}

	lockWindow := clampDuration(settings.LockWindow, minAckDeadline, maxAckDeadline)
	config := pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: lockWindow,
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: lockWindow,
			MaximumBackoff: lockWindow,
		},
	}

	if settings.DeadLetterTopic != "" && settings.MaxDeliveryAttempts > 0 {
		_, err = ensureTopic(c, client, settings.DeadLetterTopic)
		if err != nil {
			return err
		}
		config.DeadLetterPolicy = &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     fmt.Sprintf("projects/%s/topics/%s", conn.ProjectID, settings.DeadLetterTopic),
			MaxDeliveryAttempts: nativeDeliveryLimit(settings.MaxDeliveryAttempts),
		}
	}

	_, err = client.CreateSubscription(c, subscriptionID, config)
	if err != nil {
		return fmt.Errorf("error creating subscription %s on topic %s: %w", subscriptionID, topicID, err)
	}

	return nil
}

func ensureTopic(c context.Context, client *pubsub.Client, topicID string) (*pubsub.Topic, error) {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(c)
	if err != nil {
		return nil, fmt.Errorf("error checking existence of topic %s: %w", topicID, err)
	}
	if exists {
		return topic, nil
	}

	topic, err = client.CreateTopic(c, topicID)
	if err != nil {
		return nil, fmt.Errorf("error creating topic %s: %w", topicID, err)
	}
	return topic, nil
}

// nativeDeliveryLimit stays one above the limit of the processor, so the processor forwards an exhausted
// message as DeadLettered before the broker forwards it raw. The broker only takes over for a processor limit
// of maxNativeDeliveryLimit or more.
func nativeDeliveryLimit(processorLimit int) int {
	return clampInt(processorLimit+1, minNativeDeliveryLimit, maxNativeDeliveryLimit)
}

func clampDuration(d, lower, upper time.Duration) time.Duration {
	return min(max(d, lower), upper)
}

func clampInt(i, lower, upper int) int {
	return min(max(i, lower), upper)
}
