package models

import "time"

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"
	BookingStatusCheckedIn      BookingStatus = "CHECKED_IN"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
	BookingStatusNeedsRebooking BookingStatus = "NEEDS_REBOOKING"
)

// Booking ties one passenger to one flight
type Booking struct {
	BookingID        string        `json:"booking_id"`
	FlightID         string        `json:"flight_id"`
	PassengerID      string        `json:"passenger_id"`
	ConfirmationCode string        `json:"confirmation_code"`
	Seat             string        `json:"seat"`
	Status           BookingStatus `json:"booking_status"`
	CreatedAt        time.Time     `json:"created_at"`
}

// BookingRef is the denormalized association record stored under both the
// flight and the passenger partitions. It carries just enough to fan out
// booking processing without reading the Booking entity itself.
type BookingRef struct {
	BookingID   string `json:"booking_id"`
	FlightID    string `json:"flight_id"`
	PassengerID string `json:"passenger_id"`
}
