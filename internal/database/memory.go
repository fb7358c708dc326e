package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the full reservation state in memory behind one mutex.
// It backs tests and local development; the mutex held across the
// check-then-mark sequence in ClaimSeats gives the same serialization
// guarantee the SQL repository gets from conditional updates.
type MemoryStore struct {
	mu           sync.Mutex
	trips        map[uuid.UUID]*Trip
	seats        map[uuid.UUID]*Seat
	bookings     map[uuid.UUID]*Booking
	transactions map[uuid.UUID]*Transaction
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:        make(map[uuid.UUID]*Trip),
		seats:        make(map[uuid.UUID]*Seat),
		bookings:     make(map[uuid.UUID]*Booking),
		transactions: make(map[uuid.UUID]*Transaction),
	}
}

// --- Trip Operations ---

func (m *MemoryStore) CreateTrip(ctx context.Context, trip *Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if trip.ID == uuid.Nil {
		trip.ID = uuid.New()
	}
	now := time.Now()
	trip.CreatedAt = now
	trip.UpdatedAt = now

	t := *trip
	m.trips[t.ID] = &t

	for i := 1; i <= trip.Capacity; i++ {
		s := &Seat{
			ID:          uuid.New(),
			TripID:      t.ID,
			SeatNumber:  fmt.Sprintf("S%02d", i),
			IsAvailable: true,
		}
		m.seats[s.ID] = s
	}

	return nil
}

func (m *MemoryStore) ListTrips(ctx context.Context, origin, destination string) ([]Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var trips []Trip
	for _, t := range m.trips {
		if !t.DepartureTime.After(now) {
			continue
		}
		if origin != "" && !strings.EqualFold(t.Origin, origin) {
			continue
		}
		if destination != "" && !strings.EqualFold(t.Destination, destination) {
			continue
		}
		trips = append(trips, *t)
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].DepartureTime.Before(trips[j].DepartureTime)
	})
	return trips, nil
}

func (m *MemoryStore) GetTripByID(ctx context.Context, id uuid.UUID) (*Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

// --- Seat Inventory Operations ---

func (m *MemoryStore) GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tripSeatsLocked(tripID, false), nil
}

func (m *MemoryStore) ListAvailableSeats(ctx context.Context, tripID uuid.UUID) ([]Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tripSeatsLocked(tripID, true), nil
}

func (m *MemoryStore) tripSeatsLocked(tripID uuid.UUID, availableOnly bool) []Seat {
	var seats []Seat
	for _, s := range m.seats {
		if s.TripID != tripID {
			continue
		}
		if availableOnly && !s.IsAvailable {
			continue
		}
		seats = append(seats, *s)
	}
	sort.Slice(seats, func(i, j int) bool {
		return seats[i].SeatNumber < seats[j].SeatNumber
	})
	return seats
}

func (m *MemoryStore) ClaimSeats(ctx context.Context, tripID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check every seat before touching any of them.
	for _, id := range seatIDs {
		s, ok := m.seats[id]
		if !ok || s.TripID != tripID {
			return nil, &SeatNotInTripError{SeatID: id}
		}
		if !s.IsAvailable {
			return nil, &SeatUnavailableError{SeatID: id}
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return nil, &SeatUnavailableError{SeatID: id}
		}
		seen[id] = struct{}{}
	}

	claimed := make([]Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		s := m.seats[id]
		s.IsAvailable = false
		claimed = append(claimed, *s)
	}
	sort.Slice(claimed, func(i, j int) bool {
		return claimed[i].SeatNumber < claimed[j].SeatNumber
	})
	return claimed, nil
}

func (m *MemoryStore) ReleaseSeats(ctx context.Context, seatIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range seatIDs {
		if s, ok := m.seats[id]; ok {
			s.IsAvailable = true
		}
	}
	return nil
}

// --- Booking Ledger Operations ---

func (m *MemoryStore) CreateBooking(ctx context.Context, booking *Booking, claims []SeatClaim, passengers []Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	b := *booking
	b.Claims = append([]SeatClaim(nil), claims...)
	b.Passengers = append([]Passenger(nil), passengers...)
	for i := range b.Claims {
		if s, ok := m.seats[b.Claims[i].SeatID]; ok {
			b.Claims[i].SeatNumber = s.SeatNumber
		}
	}
	m.bookings[b.ID] = &b
	return nil
}

func (m *MemoryStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *b
	out.Claims = append([]SeatClaim(nil), b.Claims...)
	out.Passengers = append([]Passenger(nil), b.Passengers...)
	if t, ok := m.trips[b.TripID]; ok {
		out.Origin = t.Origin
		out.Destination = t.Destination
		out.DepartureTime = t.DepartureTime
	}
	return &out, nil
}

func (m *MemoryStore) ListBookingsByUser(ctx context.Context, userID uuid.UUID, filter BookingFilter) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var bookings []Booking
	for _, b := range m.bookings {
		if b.UserID != userID {
			continue
		}
		t := m.trips[b.TripID]
		if t == nil {
			continue
		}
		switch filter.Window {
		case "upcoming":
			if !t.DepartureTime.After(now) {
				continue
			}
		case "past":
			if t.DepartureTime.After(now) {
				continue
			}
		}
		if filter.Search != "" && !bookingMatches(b, t, filter.Search) {
			continue
		}
		out := *b
		out.Origin = t.Origin
		out.Destination = t.Destination
		out.DepartureTime = t.DepartureTime
		out.Claims = nil
		out.Passengers = nil
		bookings = append(bookings, out)
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	return bookings, nil
}

func bookingMatches(b *Booking, t *Trip, search string) bool {
	q := strings.ToLower(search)
	if strings.Contains(strings.ToLower(t.Origin), q) ||
		strings.Contains(strings.ToLower(t.Destination), q) {
		return true
	}
	for _, p := range b.Passengers {
		if strings.Contains(strings.ToLower(p.FullName), q) {
			return true
		}
	}
	return false
}

// CancelBooking flips the booking to cancelled and releases its seats under
// one lock, mirroring the SQL repository's single transaction.
func (m *MemoryStore) CancelBooking(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = BookingStatusCancelled
	b.UpdatedAt = time.Now()
	m.releaseClaimedLocked(b)
	return nil
}

func (m *MemoryStore) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	m.releaseClaimedLocked(b)
	for txID, t := range m.transactions {
		if t.BookingID == id {
			delete(m.transactions, txID)
		}
	}
	delete(m.bookings, id)
	return nil
}

func (m *MemoryStore) releaseClaimedLocked(b *Booking) {
	for _, c := range b.Claims {
		if s, ok := m.seats[c.SeatID]; ok {
			s.IsAvailable = true
		}
	}
}

// --- Transaction Operations ---

func (m *MemoryStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.transactions {
		if existing.BookingID == t.BookingID {
			return ErrTransactionExists
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()

	out := *t
	m.transactions[out.ID] = &out
	return nil
}

func (m *MemoryStore) GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

func (m *MemoryStore) CompleteTransaction(ctx context.Context, id uuid.UUID, status TransactionStatus, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok || t.Status != TransactionStatusPending {
		return ErrTransactionFinished
	}
	t.Status = status
	t.CompletedAt = &completedAt
	return nil
}

func (m *MemoryStore) ListTransactionsByUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var txs []Transaction
	for _, t := range m.transactions {
		b, ok := m.bookings[t.BookingID]
		if !ok || b.UserID != userID {
			continue
		}
		txs = append(txs, *t)
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}
