package catalog

import (
	"github.com/cx-tal-miterani/flightpulse/internal/engine"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
)

// processBookings is the shared fan-out: for each affected booking, fetch
// the passenger, generate a personalized message, and dispatch it on the
// channels the passenger opted into. A missing passenger record is caught
// and reported per item; the remaining items still complete.
func (c *Catalog) processBookings(workflow string, messageType models.MessageType) *engine.Map {
	return &engine.Map{
		Name:           "ProcessBookings",
		ItemsPath:      "bookings.items",
		ItemKey:        "booking",
		MaxConcurrency: c.mapConcurrency,
		Steps: []engine.Step{
			c.taskGetPassengerDetails(workflow),
			c.taskGenerateMessage(messageType),
			&engine.Parallel{
				Name: "DispatchNotifications",
				Branches: []engine.Step{
					&engine.Choice{
						Name: "EmailPreferred",
						Rules: []engine.ChoiceRule{
							{When: prefersEmail, Then: c.taskPublishEmail()},
						},
					},
					&engine.Choice{
						Name: "SMSPreferred",
						Rules: []engine.ChoiceRule{
							{When: prefersSMS, Then: c.taskPublishSMS()},
						},
					},
				},
			},
		},
	}
}

func prefersEmail(input engine.Context) bool {
	ok, _ := input.Bool("passenger.notification_preferences.email")
	return ok
}

func prefersSMS(input engine.Context) bool {
	ok, _ := input.Bool("passenger.notification_preferences.sms")
	return ok
}

func bookingsFound(input engine.Context) bool {
	n, _ := input.Int("bookings.count")
	return n > 0
}
