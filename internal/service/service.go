package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddaby/ebus/internal/database"
	"github.com/oddaby/ebus/internal/fare"
)

var (
	ErrInvalidTrip           = errors.New("invalid trip definition")
	ErrTripNotFound          = errors.New("trip not found")
	ErrTripDeparted          = errors.New("trip has already departed")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrPassengerSeatMismatch = errors.New("passenger count does not match seat count")
	ErrAlreadyCancelled      = errors.New("booking is already cancelled")
	ErrDeleteNotAllowed      = errors.New("booking can no longer be deleted")
	ErrInvalidPaymentMethod  = errors.New("unsupported payment method")
	ErrBookingNotPayable     = errors.New("booking is not payable")
	ErrTransactionNotFound   = errors.New("transaction not found")
)

// Store is the persistence surface the coordinator drives. Implemented by
// database.Repository and database.MemoryStore.
type Store interface {
	CreateTrip(ctx context.Context, trip *database.Trip) error
	ListTrips(ctx context.Context, origin, destination string) ([]database.Trip, error)
	GetTripByID(ctx context.Context, id uuid.UUID) (*database.Trip, error)

	GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]database.Seat, error)
	ListAvailableSeats(ctx context.Context, tripID uuid.UUID) ([]database.Seat, error)
	ClaimSeats(ctx context.Context, tripID uuid.UUID, seatIDs []uuid.UUID) ([]database.Seat, error)
	ReleaseSeats(ctx context.Context, seatIDs []uuid.UUID) error

	CreateBooking(ctx context.Context, booking *database.Booking, claims []database.SeatClaim, passengers []database.Passenger) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*database.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID, filter database.BookingFilter) ([]database.Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID) error
	DeleteBooking(ctx context.Context, id uuid.UUID) error

	CreateTransaction(ctx context.Context, t *database.Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*database.Transaction, error)
	CompleteTransaction(ctx context.Context, id uuid.UUID, status database.TransactionStatus, completedAt time.Time) error
	ListTransactionsByUser(ctx context.Context, userID uuid.UUID) ([]database.Transaction, error)
}

// Notifier pushes seat-state changes to interested listeners.
type Notifier interface {
	SeatsClaimed(tripID uuid.UUID, seatIDs []uuid.UUID)
	SeatsReleased(tripID uuid.UUID, seatIDs []uuid.UUID)
}

// Actor identifies the caller of an operation. Admins bypass booking
// ownership checks.
type Actor struct {
	UserID uuid.UUID
	Admin  bool
}

// PassengerInput carries one passenger's details; it binds to the seat at
// the same index of the booking request.
type PassengerInput struct {
	FullName string `json:"fullName"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
}

// CreateBookingInput is a request to claim seats on a trip.
type CreateBookingInput struct {
	TripID     uuid.UUID
	SeatIDs    []uuid.UUID
	Passengers []PassengerInput
}

// CreateTripInput is a request to schedule a trip.
type CreateTripInput struct {
	BusNumber     string
	Origin        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	Capacity      int
	FarePerSeat   string
}

// BookingService defines the booking service interface
type BookingService interface {
	CreateTrip(ctx context.Context, in CreateTripInput) (*database.Trip, error)
	ListTrips(ctx context.Context, origin, destination string) ([]database.Trip, error)
	GetTrip(ctx context.Context, tripID uuid.UUID) (*database.Trip, error)
	GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]database.Seat, error)

	CreateBooking(ctx context.Context, userID uuid.UUID, in CreateBookingInput) (*database.Booking, error)
	GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*database.Booking, error)
	ListBookings(ctx context.Context, userID uuid.UUID, filter database.BookingFilter) ([]database.Booking, error)
	CancelBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) error
	DeleteBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) error

	InitiatePayment(ctx context.Context, actor Actor, bookingID uuid.UUID, method database.PaymentMethod) (*database.Transaction, error)
	CompletePayment(ctx context.Context, transactionID uuid.UUID, succeeded bool) (*database.Transaction, error)
	ListPayments(ctx context.Context, userID uuid.UUID) ([]database.Transaction, error)
}

type bookingServiceImpl struct {
	store    Store
	notifier Notifier
}

// NewBookingService creates a new BookingService. notifier may be nil.
func NewBookingService(store Store, notifier Notifier) BookingService {
	return &bookingServiceImpl{store: store, notifier: notifier}
}

// --- Trips ---

func (s *bookingServiceImpl) CreateTrip(ctx context.Context, in CreateTripInput) (*database.Trip, error) {
	if in.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidTrip)
	}
	farePerSeat, err := decimal.NewFromString(in.FarePerSeat)
	if err != nil || farePerSeat.IsNegative() {
		return nil, fmt.Errorf("%w: bad fare %q", ErrInvalidTrip, in.FarePerSeat)
	}

	trip := &database.Trip{
		BusNumber:     in.BusNumber,
		Origin:        in.Origin,
		Destination:   in.Destination,
		DepartureTime: in.DepartureTime,
		ArrivalTime:   in.ArrivalTime,
		Capacity:      in.Capacity,
		FarePerSeat:   farePerSeat,
	}
	if err := s.store.CreateTrip(ctx, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

func (s *bookingServiceImpl) ListTrips(ctx context.Context, origin, destination string) ([]database.Trip, error) {
	return s.store.ListTrips(ctx, origin, destination)
}

func (s *bookingServiceImpl) GetTrip(ctx context.Context, tripID uuid.UUID) (*database.Trip, error) {
	trip, err := s.store.GetTripByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return trip, nil
}

func (s *bookingServiceImpl) GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]database.Seat, error) {
	if _, err := s.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return s.store.GetTripSeats(ctx, tripID)
}

// --- Bookings ---

// CreateBooking runs the reservation protocol: validate, claim the seats
// all-or-nothing, compute the fare, then persist the booking with its claims
// and passengers. If the ledger write fails after the claim succeeded, the
// claimed seats are released before the error is surfaced so they cannot
// leak into permanent unavailability.
func (s *bookingServiceImpl) CreateBooking(ctx context.Context, userID uuid.UUID, in CreateBookingInput) (*database.Booking, error) {
	if len(in.SeatIDs) == 0 || len(in.SeatIDs) != len(in.Passengers) {
		return nil, ErrPassengerSeatMismatch
	}

	trip, err := s.store.GetTripByID(ctx, in.TripID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	if !trip.DepartureTime.After(time.Now()) {
		return nil, ErrTripDeparted
	}

	seats, err := s.store.ClaimSeats(ctx, in.TripID, in.SeatIDs)
	if err != nil {
		return nil, err
	}

	totalFare := fare.Compute(trip.FarePerSeat, len(in.SeatIDs))

	booking := &database.Booking{
		ID:        uuid.New(),
		UserID:    userID,
		TripID:    trip.ID,
		TotalFare: totalFare,
		Status:    database.BookingStatusConfirmed,
	}

	now := time.Now()
	claims := make([]database.SeatClaim, len(in.SeatIDs))
	passengers := make([]database.Passenger, len(in.SeatIDs))
	for i, seatID := range in.SeatIDs {
		claims[i] = database.SeatClaim{
			ID:        uuid.New(),
			BookingID: booking.ID,
			SeatID:    seatID,
			ClaimedAt: now,
		}
		passengers[i] = database.Passenger{
			ID:          uuid.New(),
			BookingID:   booking.ID,
			SeatClaimID: claims[i].ID,
			FullName:    in.Passengers[i].FullName,
			Age:         in.Passengers[i].Age,
			Gender:      in.Passengers[i].Gender,
		}
	}

	if err := s.store.CreateBooking(ctx, booking, claims, passengers); err != nil {
		// Compensating release: the seats were claimed but the ledger
		// write failed, so hand them back before reporting the fault.
		if relErr := s.store.ReleaseSeats(ctx, in.SeatIDs); relErr != nil {
			return nil, fmt.Errorf("failed to persist booking: %w (release failed: %v)", err, relErr)
		}
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}

	for i := range claims {
		claims[i].SeatNumber = seatNumberFor(seats, claims[i].SeatID)
	}
	booking.Origin = trip.Origin
	booking.Destination = trip.Destination
	booking.DepartureTime = trip.DepartureTime
	booking.Claims = claims
	booking.Passengers = passengers

	if s.notifier != nil {
		s.notifier.SeatsClaimed(trip.ID, in.SeatIDs)
	}

	return booking, nil
}

func seatNumberFor(seats []database.Seat, seatID uuid.UUID) string {
	for _, s := range seats {
		if s.ID == seatID {
			return s.SeatNumber
		}
	}
	return ""
}

func (s *bookingServiceImpl) GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*database.Booking, error) {
	return s.loadOwnedBooking(ctx, actor, bookingID)
}

func (s *bookingServiceImpl) ListBookings(ctx context.Context, userID uuid.UUID, filter database.BookingFilter) ([]database.Booking, error) {
	return s.store.ListBookingsByUser(ctx, userID, filter)
}

// CancelBooking flips a booking to cancelled and releases its seats. The
// store performs both as one atomic operation, so a fault leaves the booking
// confirmed and its seats claimed, and cancelling can simply be retried. The
// transition is one-way; cancelling twice is reported, not ignored.
func (s *bookingServiceImpl) CancelBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	booking, err := s.loadOwnedBooking(ctx, actor, bookingID)
	if err != nil {
		return err
	}
	if booking.Status == database.BookingStatusCancelled {
		return ErrAlreadyCancelled
	}

	if err := s.store.CancelBooking(ctx, bookingID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.SeatsReleased(booking.TripID, claimedSeatIDs(booking))
	}
	return nil
}

// DeleteBooking removes a booking entirely. Only a confirmed booking on a
// trip that has not yet departed may be deleted. The store releases the
// seats and removes the ledger rows atomically, so a fault never leaves a
// released seat behind a still-confirmed booking.
func (s *bookingServiceImpl) DeleteBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	booking, err := s.loadOwnedBooking(ctx, actor, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != database.BookingStatusConfirmed || !booking.DepartureTime.After(time.Now()) {
		return ErrDeleteNotAllowed
	}

	if err := s.store.DeleteBooking(ctx, bookingID); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.SeatsReleased(booking.TripID, claimedSeatIDs(booking))
	}
	return nil
}

func claimedSeatIDs(booking *database.Booking) []uuid.UUID {
	ids := make([]uuid.UUID, len(booking.Claims))
	for i, c := range booking.Claims {
		ids[i] = c.SeatID
	}
	return ids
}

// loadOwnedBooking hides bookings the actor does not own behind
// ErrBookingNotFound, so callers cannot probe for other users' bookings.
func (s *bookingServiceImpl) loadOwnedBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*database.Booking, error) {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.UserID != actor.UserID && !actor.Admin {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

// --- Payments ---

func (s *bookingServiceImpl) InitiatePayment(ctx context.Context, actor Actor, bookingID uuid.UUID, method database.PaymentMethod) (*database.Transaction, error) {
	switch method {
	case database.PaymentMethodMpesa, database.PaymentMethodCard, database.PaymentMethodPaypal:
	default:
		return nil, ErrInvalidPaymentMethod
	}

	booking, err := s.loadOwnedBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != database.BookingStatusConfirmed {
		return nil, ErrBookingNotPayable
	}

	t := &database.Transaction{
		ID:        uuid.New(),
		BookingID: booking.ID,
		Amount:    booking.TotalFare,
		Method:    method,
		Status:    database.TransactionStatusPending,
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *bookingServiceImpl) CompletePayment(ctx context.Context, transactionID uuid.UUID, succeeded bool) (*database.Transaction, error) {
	if _, err := s.store.GetTransactionByID(ctx, transactionID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	status := database.TransactionStatusFailed
	if succeeded {
		status = database.TransactionStatusSuccess
	}
	if err := s.store.CompleteTransaction(ctx, transactionID, status, time.Now()); err != nil {
		return nil, err
	}
	return s.store.GetTransactionByID(ctx, transactionID)
}

func (s *bookingServiceImpl) ListPayments(ctx context.Context, userID uuid.UUID) ([]database.Transaction, error) {
	return s.store.ListTransactionsByUser(ctx, userID)
}
