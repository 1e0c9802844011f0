package api

import (
	"net/http"

	"github.com/cx-tal-miterani/flightpulse/internal/feed"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the HTTP router. hub may be nil when
// the ops feed is disabled.
func SetupRouter(h *Handler, hub *feed.Hub) *mux.Router {
	r := mux.NewRouter()

	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/flights/{id}", h.GetFlight).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/{id}/bookings", h.GetFlightBookings).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/bookings/{id}", h.GetBooking).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/passengers/{id}", h.GetPassenger).Methods(http.MethodGet, http.MethodOptions)

	// Live notification feed for ops dashboards
	if hub != nil {
		api.HandleFunc("/flights/{flightId}/feed", hub.HandleWebSocket)
	}

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
