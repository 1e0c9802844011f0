package store

import (
	"github.com/cx-tal-miterani/flightpulse/internal/models"
)

// Key layout of the single table:
//
//	FLIGHT#<id>    / METADATA       flight entity
//	FLIGHT#<id>    / BOOKING#<id>   flight-side booking lookup record
//	PASSENGER#<id> / METADATA       passenger entity
//	PASSENGER#<id> / BOOKING#<id>   passenger-side booking lookup record
//	BOOKING#<id>   / METADATA       booking entity
const (
	MetadataSK       = "METADATA"
	BookingKeyPrefix = "BOOKING#"
)

func FlightPK(flightID string) string { return "FLIGHT#" + flightID }

func PassengerPK(passengerID string) string { return "PASSENGER#" + passengerID }

func BookingPK(bookingID string) string { return "BOOKING#" + bookingID }

func BookingSK(bookingID string) string { return BookingKeyPrefix + bookingID }

// FlightStatusKey is the IndexA partition for flights in a given status.
func FlightStatusKey(status models.FlightStatus) string {
	return "STATUS#" + string(status)
}

// BookingStatusKey is the IndexB partition for bookings in a given status.
func BookingStatusKey(status models.BookingStatus) string {
	return "STATUS#" + string(status)
}
