package generator

import (
	"context"

	"github.com/cx-tal-miterani/flightpulse/internal/models"
)

// Input carries everything the generator needs to personalize a message.
type Input struct {
	Passenger   models.Passenger `json:"passenger"`
	FlightEvent map[string]any   `json:"flight_event"`
	MessageType models.MessageType `json:"message_type"`
}

// Message is the generated notification copy across channels.
type Message struct {
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
	SMSBody      string `json:"sms_body"`
}

// Generator produces notification copy. Implementations never return an
// error: internal failures resolve to a templated fallback so message
// generation can never abort a workflow.
type Generator interface {
	Generate(ctx context.Context, in Input) Message
}
