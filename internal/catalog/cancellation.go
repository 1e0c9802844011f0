package catalog

import (
	"github.com/cx-tal-miterani/flightpulse/internal/engine"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
)

// Cancellation handles flight.cancelled. The steps run strictly in order:
// every booking is moved to NEEDS_REBOOKING before any cancellation
// notification goes out, so the messages reflect the persisted rebooking
// state.
func (c *Catalog) Cancellation() *engine.Definition {
	return &engine.Definition{
		Name: "flight-cancellation",
		Match: func(detailType string) bool {
			return detailType == models.DetailCancelled
		},
		Steps: []engine.Step{
			c.taskGetAffectedBookings(),
			&engine.Map{
				Name:      "MarkBookingsForRebooking",
				ItemsPath: "bookings.items",
				ItemKey:   "booking",
				Steps: []engine.Step{
					c.taskMarkBookingNeedsRebooking(),
				},
			},
			c.processBookings("flight-cancellation", models.MessageTypeCancellation),
			c.taskUpdateFlightStatusCancelled(),
			&engine.Succeed{Name: "CancellationHandled"},
		},
	}
}
