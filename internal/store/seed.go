package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flightpulse/internal/models"
)

// FlightItem builds the store item for a flight entity, projected into the
// flight status index ordered by scheduled departure.
func FlightItem(f models.Flight) (*Item, error) {
	attrs, err := MarshalAttrs(f)
	if err != nil {
		return nil, err
	}
	return &Item{
		PK:         FlightPK(f.FlightID),
		SK:         MetadataSK,
		Attrs:      attrs,
		IndexAKey:  FlightStatusKey(f.Status),
		IndexASort: f.ScheduledDeparture.UTC().Format(time.RFC3339),
	}, nil
}

// PassengerItem builds the store item for a passenger entity.
func PassengerItem(p models.Passenger) (*Item, error) {
	attrs, err := MarshalAttrs(p)
	if err != nil {
		return nil, err
	}
	return &Item{
		PK:    PassengerPK(p.PassengerID),
		SK:    MetadataSK,
		Attrs: attrs,
	}, nil
}

// BookingItems builds the booking entity item plus its two lookup records,
// one under the flight partition and one under the passenger partition.
func BookingItems(b models.Booking) ([]*Item, error) {
	attrs, err := MarshalAttrs(b)
	if err != nil {
		return nil, err
	}
	ref, err := MarshalAttrs(models.BookingRef{
		BookingID:   b.BookingID,
		FlightID:    b.FlightID,
		PassengerID: b.PassengerID,
	})
	if err != nil {
		return nil, err
	}
	return []*Item{
		{
			PK:         BookingPK(b.BookingID),
			SK:         MetadataSK,
			Attrs:      attrs,
			IndexBKey:  BookingStatusKey(b.Status),
			IndexBSort: b.CreatedAt.UTC().Format(time.RFC3339),
		},
		{PK: FlightPK(b.FlightID), SK: BookingSK(b.BookingID), Attrs: ref},
		{PK: PassengerPK(b.PassengerID), SK: BookingSK(b.BookingID), Attrs: ref},
	}, nil
}

// Seed writes flights, passengers, and bookings (with lookup records) into
// the store. Rows normally exist before any workflow runs; this mirrors the
// provisioning path for tests and local demos.
func Seed(ctx context.Context, s Store, flights []models.Flight, passengers []models.Passenger, bookings []models.Booking) error {
	for _, f := range flights {
		item, err := FlightItem(f)
		if err != nil {
			return fmt.Errorf("failed to build flight %s: %w", f.FlightID, err)
		}
		if err := s.Put(ctx, item); err != nil {
			return fmt.Errorf("failed to seed flight %s: %w", f.FlightID, err)
		}
	}
	for _, p := range passengers {
		item, err := PassengerItem(p)
		if err != nil {
			return fmt.Errorf("failed to build passenger %s: %w", p.PassengerID, err)
		}
		if err := s.Put(ctx, item); err != nil {
			return fmt.Errorf("failed to seed passenger %s: %w", p.PassengerID, err)
		}
	}
	for _, b := range bookings {
		items, err := BookingItems(b)
		if err != nil {
			return fmt.Errorf("failed to build booking %s: %w", b.BookingID, err)
		}
		for _, item := range items {
			if err := s.Put(ctx, item); err != nil {
				return fmt.Errorf("failed to seed booking %s: %w", b.BookingID, err)
			}
		}
	}
	return nil
}

// SampleFixtures returns a small seed set for local demos.
func SampleFixtures() ([]models.Flight, []models.Passenger, []models.Booking) {
	now := time.Now().UTC()
	flights := []models.Flight{
		{
			FlightID:           "SW1234",
			Origin:             "AUS",
			Destination:        "DEN",
			ScheduledDeparture: now.Add(3 * time.Hour),
			ScheduledArrival:   now.Add(5 * time.Hour),
			Status:             models.FlightStatusScheduled,
			Gate:               "B12",
		},
		{
			FlightID:           "SW5678",
			Origin:             "DAL",
			Destination:        "MDW",
			ScheduledDeparture: now.Add(6 * time.Hour),
			ScheduledArrival:   now.Add(8 * time.Hour),
			Status:             models.FlightStatusScheduled,
			Gate:               "C4",
		},
	}
	passengers := []models.Passenger{
		{
			PassengerID: "P001",
			FirstName:   "Maria",
			LastName:    "Santos",
			Email:       "maria.santos@example.com",
			Phone:       "+15125550101",
			Tier:        models.TierPreferredPlus,
			Preferences: models.NotificationPreferences{Email: true, SMS: true},
		},
		{
			PassengerID:       "P002",
			FirstName:         "James",
			LastName:          "Okafor",
			Email:             "james.okafor@example.com",
			Phone:             "+15125550102",
			Tier:              models.TierMember,
			Preferences:       models.NotificationPreferences{Email: true},
			SpecialAssistance: []string{"WHEELCHAIR"},
		},
	}
	bookings := []models.Booking{
		{
			BookingID:        "B001",
			FlightID:         "SW1234",
			PassengerID:      "P001",
			ConfirmationCode: "K2R9PL",
			Seat:             "4A",
			Status:           models.BookingStatusConfirmed,
			CreatedAt:        now.Add(-48 * time.Hour),
		},
		{
			BookingID:        "B002",
			FlightID:         "SW1234",
			PassengerID:      "P002",
			ConfirmationCode: "M7X3QT",
			Seat:             "11C",
			Status:           models.BookingStatusCheckedIn,
			CreatedAt:        now.Add(-24 * time.Hour),
		},
	}
	return flights, passengers, bookings
}
