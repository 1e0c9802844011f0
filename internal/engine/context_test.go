package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_SetAndGet(t *testing.T) {
	c := Context{}

	c.Set("bookings.count", 4)
	c.Set("bookings.items", []any{"a", "b"})
	c.Set("detail", map[string]any{"flight_id": "SW1234"})

	n, ok := c.Int("bookings.count")
	require.True(t, ok)
	assert.Equal(t, 4, n)

	items, ok := c.Slice("bookings.items")
	require.True(t, ok)
	assert.Len(t, items, 2)

	s, ok := c.String("detail.flight_id")
	require.True(t, ok)
	assert.Equal(t, "SW1234", s)

	_, ok = c.Get("missing.path")
	assert.False(t, ok)
}

func TestContext_SetDoesNotClobberSiblings(t *testing.T) {
	c := Context{}
	c.Set("bookings.count", 4)
	c.Set("bookings.items", []any{"a"})

	n, ok := c.Int("bookings.count")
	require.True(t, ok)
	assert.Equal(t, 4, n)
}

func TestContext_CloneIsIndependent(t *testing.T) {
	c := Context{}
	c.Set("detail.flight_id", "SW1234")
	c.Set("detail.tags", []any{"x"})

	clone := c.Clone()
	clone.Set("detail.flight_id", "SW9999")
	tags, _ := clone.Slice("detail.tags")
	tags[0] = "y"

	orig, _ := c.String("detail.flight_id")
	assert.Equal(t, "SW1234", orig)
	origTags, _ := c.Slice("detail.tags")
	assert.Equal(t, "x", origTags[0])
}

func TestContext_IntAcceptsFloat(t *testing.T) {
	c := Context{"count": float64(7)}
	n, ok := c.Int("count")
	require.True(t, ok)
	assert.Equal(t, 7, n)
}

func TestContext_Decode(t *testing.T) {
	c := Context{"booking": map[string]any{"booking_id": "B1", "passenger_id": "P1"}}

	var out struct {
		BookingID   string `json:"booking_id"`
		PassengerID string `json:"passenger_id"`
	}
	require.NoError(t, c.Decode("booking", &out))
	assert.Equal(t, "B1", out.BookingID)
	assert.Equal(t, "P1", out.PassengerID)
}

func TestContext_NilSliceReadsEmpty(t *testing.T) {
	c := Context{"items": nil}
	items, ok := c.Slice("items")
	require.True(t, ok)
	assert.Empty(t, items)
}
