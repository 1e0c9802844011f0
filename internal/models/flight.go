package models

import "time"

// FlightStatus represents the operational status of a flight
type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "SCHEDULED"
	FlightStatusBoarding  FlightStatus = "BOARDING"
	FlightStatusDelayed   FlightStatus = "DELAYED"
	FlightStatusCancelled FlightStatus = "CANCELLED"
	FlightStatusDeparted  FlightStatus = "DEPARTED"
	FlightStatusArrived   FlightStatus = "ARRIVED"
)

// Flight represents a scheduled flight
type Flight struct {
	FlightID           string       `json:"flight_id"`
	Origin             string       `json:"origin"`
	Destination        string       `json:"destination"`
	ScheduledDeparture time.Time    `json:"scheduled_departure"`
	ScheduledArrival   time.Time    `json:"scheduled_arrival"`
	ActualDeparture    *time.Time   `json:"actual_departure,omitempty"`
	ActualArrival      *time.Time   `json:"actual_arrival,omitempty"`
	Status             FlightStatus `json:"status"`
	Gate               string       `json:"gate,omitempty"`
	DelayMinutes       int          `json:"delay_minutes,omitempty"`
	DelayReason        string       `json:"delay_reason,omitempty"`
}
