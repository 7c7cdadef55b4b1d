package myevents

const (
	DeadLetterTopicName   = "deadletter"
	deadLetteredEventName = DeadLetterTopicName + ".message"
)

// DeadLettered wraps a message that exhausted its deliveries.
type DeadLettered struct {
	Subscription    string `json:"subscription"`
	MessageID       string `json:"messageId"`
	DeliveryAttempt int    `json:"deliveryAttempt"`
	Data            string `json:"data"`
}

func (e DeadLettered) GetEventTypeName() string {
	return deadLetteredEventName
}

func (e DeadLettered) GetAggregateName() string {
	return e.Subscription
}
