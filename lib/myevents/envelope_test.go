package myevents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
)

func TestParseEventEnvelope(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		envlp, err := ParseEventEnvelope([]byte(`{"correlationId":"c1","topic":"checkout","aggregateUid":"u1","eventTypeName":"checkout.submitted","eventPayload":"{}"}`))
		assert.NoError(t, err)
		assert.Equal(t, "checkout.checkout.submitted.u1", envlp.String())
		assert.Equal(t, "c1", envlp.CorrelationID)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := ParseEventEnvelope(nil)
		assert.True(t, myerrors.IsInvalidInput(err))
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := ParseEventEnvelope([]byte(`{"correlationId":`))
		assert.True(t, myerrors.IsInvalidInput(err))
	})

	t.Run("Without event type", func(t *testing.T) {
		_, err := ParseEventEnvelope([]byte(`null`))
		assert.True(t, myerrors.IsInvalidInput(err))
	})
}

func TestDecodePayload(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		dl := DeadLettered{}
		err := DecodePayload(EventEnvelope{EventPayload: `{"subscription":"s1","deliveryAttempt":3}`}, &dl)
		assert.NoError(t, err)
		assert.Equal(t, DeadLettered{Subscription: "s1", DeliveryAttempt: 3}, dl)
	})

	t.Run("Malformed", func(t *testing.T) {
		dl := DeadLettered{}
		err := DecodePayload(EventEnvelope{EventPayload: `[1,2`}, &dl)
		assert.True(t, myerrors.IsInvalidInput(err))
	})
}
