package models

// Raw operational event types produced by the operations center onto the
// flight-operations topic.
const (
	RawEventFlightDelay     = "FLIGHT_DELAY"
	RawEventFlightCancelled = "FLIGHT_CANCELLED"
	RawEventGateChange      = "GATE_CHANGE"
)

// RawEvent is the envelope of an operational event as it arrives from Kafka.
type RawEvent struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
	Payload   map[string]any `json:"payload"`
}

// Classified trigger detail types. Delay events are split by severity
// before they reach the workflow engine.
const (
	DetailDelayMinor  = "flight.delay.minor"
	DetailDelayMajor  = "flight.delay.major"
	DetailDelaySevere = "flight.delay.severe"
	DetailCancelled   = "flight.cancelled"
	DetailGateChange  = "flight.gate_change"
)

// Outbound notification detail types.
const (
	DetailNotificationEmail = "notification.email"
	DetailNotificationSMS   = "notification.sms"
)

// TriggerDetailTypes lists every detail type the engine subscribes to.
func TriggerDetailTypes() []string {
	return []string{
		DetailDelayMinor,
		DetailDelayMajor,
		DetailDelaySevere,
		DetailCancelled,
		DetailGateChange,
	}
}

// MessageType selects the notification copy the generator produces.
type MessageType string

const (
	MessageTypeDelay        MessageType = "DELAY_NOTIFICATION"
	MessageTypeCancellation MessageType = "CANCELLATION_NOTIFICATION"
	MessageTypeGateChange   MessageType = "GATE_CHANGE_NOTIFICATION"
)
