package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/oddaby/ebus/internal/auth"
	"github.com/oddaby/ebus/internal/handlers"
	"github.com/oddaby/ebus/internal/websocket"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(h *handlers.Handler, hub *websocket.Hub, jwtSecret []byte) *mux.Router {
	r := mux.NewRouter()

	// CORS middleware
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	// Trips (public reads)
	api.HandleFunc("/trips", h.GetTrips).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trips/{id}", h.GetTrip).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trips/{id}/seats", h.GetTripSeats).Methods(http.MethodGet, http.MethodOptions)

	// WebSocket for live seat updates
	api.HandleFunc("/trips/{id}/ws", hub.ServeWS)

	// Trip administration
	admin := api.NewRoute().Subrouter()
	admin.Use(auth.Middleware(jwtSecret), auth.RequireAdmin)
	admin.HandleFunc("/trips", h.CreateTrip).Methods(http.MethodPost, http.MethodOptions)

	// Bookings and payments require authentication
	authed := api.NewRoute().Subrouter()
	authed.Use(auth.Middleware(jwtSecret))
	authed.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/bookings", h.GetBookings).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/bookings/{id}", h.GetBooking).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/bookings/{id}", h.DeleteBooking).Methods(http.MethodDelete, http.MethodOptions)
	authed.HandleFunc("/bookings/{id}/cancel", h.CancelBooking).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/payments", h.InitiatePayment).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/payments", h.GetPayments).Methods(http.MethodGet, http.MethodOptions)

	// Completion callback comes from the payment processor, not a user
	api.HandleFunc("/payments/{id}/complete", h.CompletePayment).Methods(http.MethodPost, http.MethodOptions)

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
