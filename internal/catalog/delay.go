package catalog

import (
	"strings"

	"github.com/cx-tal-miterani/flightpulse/internal/engine"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
)

// Delay handles flight.delay.{minor|major|severe}: notify every affected
// passenger, then mark the flight DELAYED. Booking processing runs before
// the status update so a Map item never observes a half-applied flight
// record mid-flight; the two were parallel branches once and that ordering
// was not safe to rely on.
func (c *Catalog) Delay() *engine.Definition {
	return &engine.Definition{
		Name: "flight-delay",
		Match: func(detailType string) bool {
			return strings.HasPrefix(detailType, "flight.delay.")
		},
		Steps: []engine.Step{
			c.taskGetAffectedBookings(),
			&engine.Choice{
				Name: "AnyAffectedBookings",
				Rules: []engine.ChoiceRule{
					{When: bookingsFound, Then: c.processBookings("flight-delay", models.MessageTypeDelay)},
				},
			},
			c.taskUpdateFlightStatusDelayed(),
			&engine.Succeed{Name: "DelayHandled"},
		},
	}
}
