package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/oddaby/ebus/internal/auth"
	"github.com/oddaby/ebus/internal/database"
	"github.com/oddaby/ebus/internal/service"
)

// Handler contains HTTP handlers for the API
type Handler struct {
	bookingService service.BookingService
}

// NewHandler creates a new Handler instance
func NewHandler(bookingService service.BookingService) *Handler {
	return &Handler{
		bookingService: bookingService,
	}
}

// Response helpers
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

// respondServiceError translates coordinator errors to HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	var unavailable *database.SeatUnavailableError
	var notInTrip *database.SeatNotInTripError

	switch {
	case errors.As(err, &unavailable), errors.As(err, &notInTrip),
		errors.Is(err, service.ErrInvalidTrip),
		errors.Is(err, service.ErrPassengerSeatMismatch),
		errors.Is(err, service.ErrInvalidPaymentMethod):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTripNotFound),
		errors.Is(err, service.ErrBookingNotFound),
		errors.Is(err, service.ErrTransactionNotFound),
		errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTripDeparted),
		errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrDeleteNotAllowed),
		errors.Is(err, service.ErrBookingNotPayable),
		errors.Is(err, database.ErrTransactionExists),
		errors.Is(err, database.ErrTransactionFinished):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func actorFrom(r *http.Request) (service.Actor, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: id.UserID, Admin: id.Admin}, true
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

// --- Trips ---

// CreateTripRequest is the body of POST /api/trips.
type CreateTripRequest struct {
	BusNumber     string    `json:"busNumber"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	Capacity      int       `json:"capacity"`
	FarePerSeat   string    `json:"farePerSeat"`
}

// CreateTrip handles POST /api/trips
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Origin == "" || req.Destination == "" {
		respondError(w, http.StatusBadRequest, "Origin and destination are required")
		return
	}
	if req.Capacity <= 0 {
		respondError(w, http.StatusBadRequest, "Capacity must be positive")
		return
	}

	trip, err := h.bookingService.CreateTrip(r.Context(), service.CreateTripInput{
		BusNumber:     req.BusNumber,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		Capacity:      req.Capacity,
		FarePerSeat:   req.FarePerSeat,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, trip)
}

// GetTrips handles GET /api/trips
func (h *Handler) GetTrips(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	destination := r.URL.Query().Get("destination")

	trips, err := h.bookingService.ListTrips(r.Context(), origin, destination)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trips)
}

// GetTrip handles GET /api/trips/{id}
func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid trip ID")
		return
	}

	trip, err := h.bookingService.GetTrip(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trip)
}

// GetTripSeats handles GET /api/trips/{id}/seats
func (h *Handler) GetTripSeats(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid trip ID")
		return
	}

	seats, err := h.bookingService.GetTripSeats(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, seats)
}

// --- Bookings ---

// CreateBookingRequest is the body of POST /api/bookings. Passengers bind to
// seats by index.
type CreateBookingRequest struct {
	TripID     string                   `json:"tripId"`
	SeatIDs    []string                 `json:"seatIds"`
	Passengers []service.PassengerInput `json:"passengers"`
}

// CreateBooking handles POST /api/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tripID, err := uuid.Parse(req.TripID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid trip ID")
		return
	}
	if len(req.SeatIDs) == 0 {
		respondError(w, http.StatusBadRequest, "At least one seat must be selected")
		return
	}

	seatIDs := make([]uuid.UUID, len(req.SeatIDs))
	for i, raw := range req.SeatIDs {
		seatIDs[i], err = uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid seat ID")
			return
		}
	}

	booking, err := h.bookingService.CreateBooking(r.Context(), actor.UserID, service.CreateBookingInput{
		TripID:     tripID,
		SeatIDs:    seatIDs,
		Passengers: req.Passengers,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, booking)
}

// GetBookings handles GET /api/bookings
func (h *Handler) GetBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := database.BookingFilter{
		Window: r.URL.Query().Get("filter"),
		Search: r.URL.Query().Get("q"),
	}
	bookings, err := h.bookingService.ListBookings(r.Context(), actor.UserID, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bookings)
}

// GetBooking handles GET /api/bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookingID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.bookingService.GetBooking(r.Context(), actor, bookingID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// CancelBooking handles POST /api/bookings/{id}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookingID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	if err := h.bookingService.CancelBooking(r.Context(), actor, bookingID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(database.BookingStatusCancelled)})
}

// DeleteBooking handles DELETE /api/bookings/{id}
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookingID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	if err := h.bookingService.DeleteBooking(r.Context(), actor, bookingID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Payments ---

// PaymentRequest is the body of POST /api/payments.
type PaymentRequest struct {
	BookingID string `json:"bookingId"`
	Method    string `json:"method"`
}

// CompletePaymentRequest is the body of POST /api/payments/{id}/complete.
type CompletePaymentRequest struct {
	Status string `json:"status"`
}

// InitiatePayment handles POST /api/payments
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	tx, err := h.bookingService.InitiatePayment(r.Context(), actor, bookingID, database.PaymentMethod(req.Method))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// CompletePayment handles POST /api/payments/{id}/complete
func (h *Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	transactionID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	var req CompletePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != string(database.TransactionStatusSuccess) && req.Status != string(database.TransactionStatusFailed) {
		respondError(w, http.StatusBadRequest, "Status must be success or failed")
		return
	}

	tx, err := h.bookingService.CompletePayment(r.Context(), transactionID, req.Status == string(database.TransactionStatusSuccess))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// GetPayments handles GET /api/payments
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	txs, err := h.bookingService.ListPayments(r.Context(), actor.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
