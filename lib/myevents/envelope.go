package myevents

import (
	"encoding/json"
	"fmt"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
)

func ParseEventEnvelope(data []byte) (EventEnvelope, error) {
	if len(data) == 0 {
		return EventEnvelope{}, myerrors.NewInvalidInputErrorf("empty message")
	}

	envlp := EventEnvelope{}
	err := json.Unmarshal(data, &envlp)
	if err != nil {
		return EventEnvelope{}, myerrors.NewInvalidInputError(fmt.Errorf("error parsing envelope: %w", err))
	}

	if envlp.EventTypeName == "" {
		return EventEnvelope{}, myerrors.NewInvalidInputErrorf("envelope %s lacks event type", envlp.CorrelationID)
	}

	return envlp, nil
}

// DecodePayload unmarshals the payload of the envelope into the given event variant.
func DecodePayload(envlp EventEnvelope, event any) error {
	err := json.Unmarshal([]byte(envlp.EventPayload), event)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error parsing payload of %s: %w", envlp.String(), err))
	}
	return nil
}
