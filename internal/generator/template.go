package generator

import (
	"context"
	"fmt"

	"github.com/cx-tal-miterani/flightpulse/internal/models"
)

// TemplateGenerator produces name-only personalized copy from fixed
// templates. It is both the local default and the fallback behind the LLM
// client.
type TemplateGenerator struct{}

// NewTemplateGenerator creates a TemplateGenerator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) Generate(ctx context.Context, in Input) Message {
	firstName := in.Passenger.FirstName
	if firstName == "" {
		firstName = "Valued Passenger"
	}
	flightID, _ := in.FlightEvent["flight_id"].(string)
	if flightID == "" {
		flightID = "your flight"
	}

	switch in.MessageType {
	case models.MessageTypeDelay:
		delayMinutes := intField(in.FlightEvent, "delay_minutes")
		return Message{
			EmailSubject: fmt.Sprintf("Flight %s Delay Update", flightID),
			EmailBody: fmt.Sprintf("Dear %s,\n\nYour flight %s has been delayed by %d minutes. We apologize for any inconvenience.",
				firstName, flightID, delayMinutes),
			SMSBody: fmt.Sprintf("%s, Flight %s delayed %d min. Check email for details.", firstName, flightID, delayMinutes),
		}
	case models.MessageTypeCancellation:
		return Message{
			EmailSubject: fmt.Sprintf("Flight %s Cancellation", flightID),
			EmailBody: fmt.Sprintf("Dear %s,\n\nWe regret to inform you that flight %s has been cancelled. Our team will assist with rebooking.",
				firstName, flightID),
			SMSBody: fmt.Sprintf("%s, Flight %s cancelled. Check email for rebooking options.", firstName, flightID),
		}
	case models.MessageTypeGateChange:
		newGate, _ := in.FlightEvent["new_gate"].(string)
		if newGate == "" {
			newGate = "TBD"
		}
		msg := Message{
			EmailSubject: fmt.Sprintf("Flight %s Gate Change", flightID),
			EmailBody: fmt.Sprintf("Dear %s,\n\nYour flight %s gate has changed to %s. Please proceed to the new gate.",
				firstName, flightID, newGate),
			SMSBody: fmt.Sprintf("%s, Flight %s gate changed to %s.", firstName, flightID, newGate),
		}
		// A terminal change needs passengers moving sooner.
		if terminal, _ := in.FlightEvent["terminal_change"].(bool); terminal {
			msg.EmailSubject = "URGENT: " + msg.EmailSubject
			msg.EmailBody = fmt.Sprintf("Dear %s,\n\nYour flight %s has moved to gate %s in a different terminal. Please allow extra time to reach the new gate.",
				firstName, flightID, newGate)
			msg.SMSBody = fmt.Sprintf("URGENT: %s, Flight %s moved to gate %s (new terminal).", firstName, flightID, newGate)
		}
		return msg
	}

	return Message{
		EmailSubject: "Flight Update",
		EmailBody:    fmt.Sprintf("Dear %s,\n\nThere has been an update to your flight.", firstName),
		SMSBody:      fmt.Sprintf("%s, Flight update. Check email for details.", firstName),
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
