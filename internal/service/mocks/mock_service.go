package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/oddaby/ebus/internal/database"
	"github.com/oddaby/ebus/internal/service"
)

// MockBookingService is a mock implementation of service.BookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateTrip(ctx context.Context, in service.CreateTripInput) (*database.Trip, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Trip), args.Error(1)
}

func (m *MockBookingService) ListTrips(ctx context.Context, origin, destination string) ([]database.Trip, error) {
	args := m.Called(ctx, origin, destination)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Trip), args.Error(1)
}

func (m *MockBookingService) GetTrip(ctx context.Context, tripID uuid.UUID) (*database.Trip, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Trip), args.Error(1)
}

func (m *MockBookingService) GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]database.Seat, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Seat), args.Error(1)
}

func (m *MockBookingService) CreateBooking(ctx context.Context, userID uuid.UUID, in service.CreateBookingInput) (*database.Booking, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Booking), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, actor service.Actor, bookingID uuid.UUID) (*database.Booking, error) {
	args := m.Called(ctx, actor, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Booking), args.Error(1)
}

func (m *MockBookingService) ListBookings(ctx context.Context, userID uuid.UUID, filter database.BookingFilter) ([]database.Booking, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Booking), args.Error(1)
}

func (m *MockBookingService) CancelBooking(ctx context.Context, actor service.Actor, bookingID uuid.UUID) error {
	args := m.Called(ctx, actor, bookingID)
	return args.Error(0)
}

func (m *MockBookingService) DeleteBooking(ctx context.Context, actor service.Actor, bookingID uuid.UUID) error {
	args := m.Called(ctx, actor, bookingID)
	return args.Error(0)
}

func (m *MockBookingService) InitiatePayment(ctx context.Context, actor service.Actor, bookingID uuid.UUID, method database.PaymentMethod) (*database.Transaction, error) {
	args := m.Called(ctx, actor, bookingID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Transaction), args.Error(1)
}

func (m *MockBookingService) CompletePayment(ctx context.Context, transactionID uuid.UUID, succeeded bool) (*database.Transaction, error) {
	args := m.Called(ctx, transactionID, succeeded)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Transaction), args.Error(1)
}

func (m *MockBookingService) ListPayments(ctx context.Context, userID uuid.UUID) ([]database.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Transaction), args.Error(1)
}
