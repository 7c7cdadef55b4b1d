package mysubscriber

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCompleted    = "completed"
	outcomeAbandoned    = "abandoned"
	outcomePoison       = "poison"
	outcomeDeadLettered = "deadlettered"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_messages_total",
		Help: "Deliveries handled per subscription, by outcome",
	}, []string{"subscription", "outcome"})

	transportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_transport_errors_total",
		Help: "Errors reported by the broker connection of a subscription",
	}, []string{"subscription"})
)
