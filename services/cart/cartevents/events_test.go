package cartevents

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/myevents"
)

func TestDispatch(t *testing.T) {
	c := context.Background()

	t.Run("Checkout submitted", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		handler := NewMockHandler(ctrl)
		event := CheckoutSubmitted{
			UserID:   "u1",
			Lines:    []CartLineSnapshot{{ProductID: 7, Count: 2, UnitPrice: 10.0, ProductName: "Widget"}},
			DedupKey: "u1/1",
		}
		payload, _ := json.Marshal(event)

		// given
		handler.EXPECT().OnCheckoutSubmitted(gomock.Any(), TopicName, event).Return(nil)

		// when
		err := Dispatch(c, myevents.EventEnvelope{Topic: TopicName, EventTypeName: event.GetEventTypeName(), EventPayload: string(payload)}, handler)

		// then
		assert.NoError(t, err)
	})

	t.Run("Unknown event is poison", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// when
		err := Dispatch(c, myevents.EventEnvelope{Topic: TopicName, EventTypeName: "checkout.unknown"}, NewMockHandler(ctrl))

		// then
		assert.True(t, myerrors.IsInvalidInput(err))
	})

	t.Run("Malformed payload is poison", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// when
		err := Dispatch(c, myevents.EventEnvelope{Topic: TopicName, EventTypeName: checkoutSubmittedName, EventPayload: `{"lines":"x"}`}, NewMockHandler(ctrl))

		// then
		assert.True(t, myerrors.IsInvalidInput(err))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.True(t, CheckoutSubmitted{}.IsEmpty())
		assert.False(t, CheckoutSubmitted{UserID: "u1"}.IsEmpty())
	})
}
