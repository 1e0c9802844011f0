package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
)

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	b := New(logger.NewNop())

	var got []Event
	b.Subscribe("flight.delay.minor", func(ctx context.Context, evt Event) {
		got = append(got, evt)
	})

	b.Publish(context.Background(), "test", "flight.delay.minor", map[string]any{"flight_id": "SW1234"})

	require.Len(t, got, 1)
	assert.Equal(t, "flight.delay.minor", got[0].DetailType)
	assert.Equal(t, "test", got[0].Source)
	assert.Equal(t, "SW1234", got[0].Detail["flight_id"])
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Time.IsZero())
}

func TestBus_PublishOnlyMatchingDetailType(t *testing.T) {
	b := New(logger.NewNop())

	var delays, cancellations int
	b.Subscribe("flight.delay.minor", func(ctx context.Context, evt Event) { delays++ })
	b.Subscribe("flight.cancelled", func(ctx context.Context, evt Event) { cancellations++ })

	b.Publish(context.Background(), "test", "flight.cancelled", map[string]any{"flight_id": "SW1"})

	assert.Equal(t, 0, delays)
	assert.Equal(t, 1, cancellations)
}

func TestBus_MultipleSubscribersAllReceive(t *testing.T) {
	b := New(logger.NewNop())

	var a, c int
	b.Subscribe("notification.email", func(ctx context.Context, evt Event) { a++ })
	b.Subscribe("notification.email", func(ctx context.Context, evt Event) { c++ })

	b.Publish(context.Background(), "test", "notification.email", map[string]any{"to": "x@example.com"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, c)
}

func TestBus_NoSubscribersIsDropped(t *testing.T) {
	b := New(logger.NewNop())
	assert.NotPanics(t, func() {
		b.Publish(context.Background(), "test", "flight.diverted", map[string]any{"flight_id": "SW1"})
	})
}
