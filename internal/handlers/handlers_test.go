package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oddaby/ebus/internal/auth"
	"github.com/oddaby/ebus/internal/database"
	"github.com/oddaby/ebus/internal/service"
	"github.com/oddaby/ebus/internal/service/mocks"
)

func setupTestRouter(h *Handler, id auth.Identity) *mux.Router {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), id)))
		})
	})
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/trips", h.GetTrips).Methods(http.MethodGet)
	api.HandleFunc("/trips", h.CreateTrip).Methods(http.MethodPost)
	api.HandleFunc("/trips/{id}", h.GetTrip).Methods(http.MethodGet)
	api.HandleFunc("/trips/{id}/seats", h.GetTripSeats).Methods(http.MethodGet)
	api.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings", h.GetBookings).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", h.GetBooking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", h.DeleteBooking).Methods(http.MethodDelete)
	api.HandleFunc("/bookings/{id}/cancel", h.CancelBooking).Methods(http.MethodPost)
	api.HandleFunc("/payments", h.InitiatePayment).Methods(http.MethodPost)
	api.HandleFunc("/payments", h.GetPayments).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}/complete", h.CompletePayment).Methods(http.MethodPost)
	return r
}

func TestHandler_GetTrips(t *testing.T) {
	mockService := new(mocks.MockBookingService)
	handler := NewHandler(mockService)
	router := setupTestRouter(handler, auth.Identity{UserID: uuid.New()})

	expected := []database.Trip{
		{
			ID:          uuid.New(),
			BusNumber:   "EB-101",
			Origin:      "Nairobi",
			Destination: "Mombasa",
			FarePerSeat: decimal.RequireFromString("150.00"),
			Capacity:    40,
		},
	}
	mockService.On("ListTrips", mock.Anything, "", "").Return(expected, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response []database.Trip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Len(t, response, 1)
	assert.Equal(t, "EB-101", response[0].BusNumber)

	mockService.AssertExpectations(t)
}

func TestHandler_CreateTrip(t *testing.T) {
	validBody := CreateTripRequest{
		BusNumber:     "EB-101",
		Origin:        "Nairobi",
		Destination:   "Mombasa",
		DepartureTime: time.Now().Add(24 * time.Hour),
		ArrivalTime:   time.Now().Add(32 * time.Hour),
		Capacity:      40,
		FarePerSeat:   "150.00",
	}

	tests := []struct {
		name           string
		requestBody    CreateTripRequest
		mockReturn     *database.Trip
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name:           "valid trip",
			requestBody:    validBody,
			mockReturn:     &database.Trip{ID: uuid.New(), BusNumber: "EB-101"},
			expectedStatus: http.StatusCreated,
			shouldCallMock: true,
		},
		{
			name:           "bad fare rejected",
			requestBody:    validBody,
			mockError:      service.ErrInvalidTrip,
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: true,
		},
		{
			name:           "store fault",
			requestBody:    validBody,
			mockError:      errors.New("connection reset"),
			expectedStatus: http.StatusInternalServerError,
			shouldCallMock: true,
		},
		{
			name:           "missing origin",
			requestBody:    CreateTripRequest{Destination: "Mombasa", Capacity: 40, FarePerSeat: "150.00"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler, auth.Identity{UserID: uuid.New(), Admin: true})

			if tt.shouldCallMock {
				mockService.On("CreateTrip", mock.Anything,
					mock.AnythingOfType("service.CreateTripInput")).Return(tt.mockReturn, tt.mockError)
			}

			body, _ := json.Marshal(tt.requestBody)
			req := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_GetTripSeats(t *testing.T) {
	tripID := uuid.New()

	tests := []struct {
		name           string
		tripID         string
		mockReturn     []database.Seat
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name:   "seats found",
			tripID: tripID.String(),
			mockReturn: []database.Seat{
				{ID: uuid.New(), TripID: tripID, SeatNumber: "S01", IsAvailable: true},
				{ID: uuid.New(), TripID: tripID, SeatNumber: "S02", IsAvailable: false},
			},
			expectedStatus: http.StatusOK,
			shouldCallMock: true,
		},
		{
			name:           "trip not found",
			tripID:         uuid.New().String(),
			mockError:      service.ErrTripNotFound,
			expectedStatus: http.StatusNotFound,
			shouldCallMock: true,
		},
		{
			name:           "invalid trip id",
			tripID:         "not-a-uuid",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler, auth.Identity{UserID: uuid.New()})

			if tt.shouldCallMock {
				id := uuid.MustParse(tt.tripID)
				mockService.On("GetTripSeats", mock.Anything, id).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/trips/"+tt.tripID+"/seats", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_CreateBooking(t *testing.T) {
	userID := uuid.New()
	tripID := uuid.New()
	seatID := uuid.New()
	passenger := service.PassengerInput{FullName: "Amina Otieno", Age: 28, Gender: "female"}

	tests := []struct {
		name           string
		requestBody    interface{}
		mockReturn     *database.Booking
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name: "valid booking",
			requestBody: CreateBookingRequest{
				TripID:     tripID.String(),
				SeatIDs:    []string{seatID.String()},
				Passengers: []service.PassengerInput{passenger},
			},
			mockReturn: &database.Booking{
				ID:     uuid.New(),
				UserID: userID,
				TripID: tripID,
				Status: database.BookingStatusConfirmed,
			},
			expectedStatus: http.StatusCreated,
			shouldCallMock: true,
		},
		{
			name: "seat unavailable",
			requestBody: CreateBookingRequest{
				TripID:     tripID.String(),
				SeatIDs:    []string{seatID.String()},
				Passengers: []service.PassengerInput{passenger},
			},
			mockError:      &database.SeatUnavailableError{SeatID: seatID},
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: true,
		},
		{
			name: "trip departed",
			requestBody: CreateBookingRequest{
				TripID:     tripID.String(),
				SeatIDs:    []string{seatID.String()},
				Passengers: []service.PassengerInput{passenger},
			},
			mockError:      service.ErrTripDeparted,
			expectedStatus: http.StatusConflict,
			shouldCallMock: true,
		},
		{
			name: "passenger seat mismatch",
			requestBody: CreateBookingRequest{
				TripID:  tripID.String(),
				SeatIDs: []string{seatID.String()},
			},
			mockError:      service.ErrPassengerSeatMismatch,
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: true,
		},
		{
			name: "no seats selected",
			requestBody: CreateBookingRequest{
				TripID: tripID.String(),
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid trip id",
			requestBody:    CreateBookingRequest{TripID: "bogus", SeatIDs: []string{seatID.String()}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body",
			requestBody:    "not json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler, auth.Identity{UserID: userID})

			if tt.shouldCallMock {
				mockService.On("CreateBooking", mock.Anything, userID,
					mock.AnythingOfType("service.CreateBookingInput")).Return(tt.mockReturn, tt.mockError)
			}

			body, _ := json.Marshal(tt.requestBody)
			req := httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_CancelBooking(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.New()

	tests := []struct {
		name           string
		mockError      error
		expectedStatus int
	}{
		{"successful cancellation", nil, http.StatusOK},
		{"already cancelled", service.ErrAlreadyCancelled, http.StatusConflict},
		{"booking not found", service.ErrBookingNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler, auth.Identity{UserID: userID})

			mockService.On("CancelBooking", mock.Anything,
				service.Actor{UserID: userID}, bookingID).Return(tt.mockError)

			req := httptest.NewRequest(http.MethodPost, "/api/bookings/"+bookingID.String()+"/cancel", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_DeleteBooking(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.New()

	tests := []struct {
		name           string
		mockError      error
		expectedStatus int
	}{
		{"successful deletion", nil, http.StatusNoContent},
		{"delete not allowed", service.ErrDeleteNotAllowed, http.StatusConflict},
		{"booking not found", service.ErrBookingNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler, auth.Identity{UserID: userID})

			mockService.On("DeleteBooking", mock.Anything,
				service.Actor{UserID: userID}, bookingID).Return(tt.mockError)

			req := httptest.NewRequest(http.MethodDelete, "/api/bookings/"+bookingID.String(), nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_GetBookings(t *testing.T) {
	userID := uuid.New()

	mockService := new(mocks.MockBookingService)
	handler := NewHandler(mockService)
	router := setupTestRouter(handler, auth.Identity{UserID: userID})

	filter := database.BookingFilter{Window: "upcoming", Search: "amina"}
	mockService.On("ListBookings", mock.Anything, userID, filter).Return([]database.Booking{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings?filter=upcoming&q=amina", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_InitiatePayment(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.New()

	tests := []struct {
		name           string
		requestBody    PaymentRequest
		mockReturn     *database.Transaction
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name:        "valid payment",
			requestBody: PaymentRequest{BookingID: bookingID.String(), Method: "card"},
			mockReturn: &database.Transaction{
				ID:        uuid.New(),
				BookingID: bookingID,
				Amount:    decimal.RequireFromString("300.00"),
				Method:    database.PaymentMethodCard,
				Status:    database.TransactionStatusPending,
			},
			expectedStatus: http.StatusCreated,
			shouldCallMock: true,
		},
		{
			name:           "unsupported method",
			requestBody:    PaymentRequest{BookingID: bookingID.String(), Method: "cash"},
			mockError:      service.ErrInvalidPaymentMethod,
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: true,
		},
		{
			name:           "duplicate transaction",
			requestBody:    PaymentRequest{BookingID: bookingID.String(), Method: "card"},
			mockError:      database.ErrTransactionExists,
			expectedStatus: http.StatusConflict,
			shouldCallMock: true,
		},
		{
			name:           "invalid booking id",
			requestBody:    PaymentRequest{BookingID: "bogus", Method: "card"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler, auth.Identity{UserID: userID})

			if tt.shouldCallMock {
				mockService.On("InitiatePayment", mock.Anything, service.Actor{UserID: userID},
					bookingID, database.PaymentMethod(tt.requestBody.Method)).Return(tt.mockReturn, tt.mockError)
			}

			body, _ := json.Marshal(tt.requestBody)
			req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_CompletePayment(t *testing.T) {
	txID := uuid.New()
	completedAt := time.Now()

	tests := []struct {
		name           string
		status         string
		succeeded      bool
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{"payment succeeded", "success", true, nil, http.StatusOK, true},
		{"payment failed", "failed", false, nil, http.StatusOK, true},
		{"already finished", "success", true, database.ErrTransactionFinished, http.StatusConflict, true},
		{"bad status value", "maybe", false, nil, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler, auth.Identity{UserID: uuid.New()})

			if tt.shouldCallMock {
				var ret *database.Transaction
				if tt.mockError == nil {
					ret = &database.Transaction{ID: txID, Status: database.TransactionStatusSuccess, CompletedAt: &completedAt}
				}
				mockService.On("CompletePayment", mock.Anything, txID, tt.succeeded).Return(ret, tt.mockError)
			}

			body, _ := json.Marshal(CompletePaymentRequest{Status: tt.status})
			req := httptest.NewRequest(http.MethodPost, "/api/payments/"+txID.String()+"/complete", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}
