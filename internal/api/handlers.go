package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cx-tal-miterani/flightpulse/internal/models"
	"github.com/cx-tal-miterani/flightpulse/internal/store"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/gorilla/mux"
)

// Handler contains the read-only HTTP handlers over the state store.
// Lookups only; all mutation goes through workflows.
type Handler struct {
	store store.Store
	log   logger.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(s store.Store, log logger.Logger) *Handler {
	return &Handler{store: s, log: log}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// GetFlight handles GET /api/flights/{id}
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	flightID := mux.Vars(r)["id"]
	item, err := h.store.Get(r.Context(), store.FlightPK(flightID), store.MetadataSK)
	if err != nil {
		h.respondStoreError(w, err, "Flight not found")
		return
	}
	var flight models.Flight
	if err := store.UnmarshalAttrs(item.Attrs, &flight); err != nil {
		h.log.Error("failed to decode flight", "flightId", flightID, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// GetFlightBookings handles GET /api/flights/{id}/bookings
func (h *Handler) GetFlightBookings(w http.ResponseWriter, r *http.Request) {
	flightID := mux.Vars(r)["id"]
	items, err := h.store.Query(r.Context(), store.FlightPK(flightID), store.BookingKeyPrefix)
	if err != nil {
		h.respondStoreError(w, err, "Flight not found")
		return
	}
	refs := make([]models.BookingRef, 0, len(items))
	for _, item := range items {
		var ref models.BookingRef
		if err := store.UnmarshalAttrs(item.Attrs, &ref); err != nil {
			h.log.Error("failed to decode booking lookup", "flightId", flightID, "error", err)
			respondError(w, http.StatusInternalServerError, "Internal error")
			return
		}
		refs = append(refs, ref)
	}
	respondJSON(w, http.StatusOK, refs)
}

// GetBooking handles GET /api/bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]
	item, err := h.store.Get(r.Context(), store.BookingPK(bookingID), store.MetadataSK)
	if err != nil {
		h.respondStoreError(w, err, "Booking not found")
		return
	}
	var booking models.Booking
	if err := store.UnmarshalAttrs(item.Attrs, &booking); err != nil {
		h.log.Error("failed to decode booking", "bookingId", bookingID, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// GetPassenger handles GET /api/passengers/{id}. Contact fields never
// leave the service; the response is the sanitized view.
func (h *Handler) GetPassenger(w http.ResponseWriter, r *http.Request) {
	passengerID := mux.Vars(r)["id"]
	item, err := h.store.Get(r.Context(), store.PassengerPK(passengerID), store.MetadataSK)
	if err != nil {
		h.respondStoreError(w, err, "Passenger not found")
		return
	}
	var passenger models.Passenger
	if err := store.UnmarshalAttrs(item.Attrs, &passenger); err != nil {
		h.log.Error("failed to decode passenger", "passengerId", passengerID, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, passenger.View())
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, notFound)
		return
	}
	h.log.Error("store read failed", "error", err)
	respondError(w, http.StatusServiceUnavailable, "Store unavailable")
}
