package mybus

import (
	"encoding/json"
	"fmt"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myevents"
	"github.com/MarcGrol/shopsaga/lib/mytime"
	"github.com/MarcGrol/shopsaga/lib/myuuid"
)

type enveloper struct {
	nower  mytime.Nower
	uuider myuuid.UUIDer
}

func newEnveloper(nower mytime.Nower, uuider myuuid.UUIDer) enveloper {
	return enveloper{
		nower:  nower,
		uuider: uuider,
	}
}

func (e enveloper) do(topic string, event myevents.Event) (myevents.EventEnvelope, error) {
	jsonPayload, err := json.Marshal(event)
	if err != nil {
		return myevents.EventEnvelope{}, myerrors.NewInternalError(fmt.Errorf("error marshalling payload of %s: %w", event.GetEventTypeName(), err))
	}

	return myevents.EventEnvelope{
		// Every publish is a new hop, so it gets its own correlation
		CorrelationID: e.uuider.Create(),
		CreatedAt:     e.nower.Now(),
		Topic:         topic,
		AggregateUID:  event.GetAggregateName(),
		EventTypeName: event.GetEventTypeName(),
		EventPayload:  string(jsonPayload),
	}, nil
}

func (e enveloper) encode(topic string, event myevents.Event) (myevents.EventEnvelope, []byte, map[string]string, error) {
	envelope, err := e.do(topic, event)
	if err != nil {
		return envelope, nil, nil, err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return envelope, nil, nil, myerrors.NewInternalError(fmt.Errorf("error marshalling envelope %s: %w", envelope, err))
	}

	return envelope, data, map[string]string{
		attributeCorrelationID: envelope.CorrelationID,
		attributeEventTypeName: envelope.EventTypeName,
	}, nil
}
