package myevents

import "time"

// EventEnvelope is what travels over the broker. CorrelationID identifies a single publish, not the saga:
// events carry their own business identifiers to correlate hops.
type EventEnvelope struct {
	CorrelationID string    `json:"correlationId"`
	CreatedAt     time.Time `json:"createdAt"`
	Topic         string    `json:"topic"`
	AggregateUID  string    `json:"aggregateUid"`
	EventTypeName string    `json:"eventTypeName"`
	EventPayload  string    `json:"eventPayload"`
}

func (e EventEnvelope) String() string {
	return e.Topic + "." + e.EventTypeName + "." + e.AggregateUID
}

type Event interface {
	GetEventTypeName() string
	GetAggregateName() string
}
