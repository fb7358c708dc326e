package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxIface is the subset of pgxpool.Pool the repository needs. Tests satisfy
// it with a pgxmock pool.
type PgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles all database operations
type Repository struct {
	db PgxIface
}

// NewRepository creates a new repository
func NewRepository(db PgxIface) *Repository {
	return &Repository{db: db}
}

// --- Trip Operations ---

// CreateTrip inserts a trip and fans out its seat rows in one transaction.
// Seats exist from this moment on and are never created again for the trip.
func (r *Repository) CreateTrip(ctx context.Context, trip *Trip) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if trip.ID == uuid.Nil {
		trip.ID = uuid.New()
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO trips (id, bus_number, origin, destination, departure_time, arrival_time, capacity, fare_per_seat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, trip.ID, trip.BusNumber, trip.Origin, trip.Destination,
		trip.DepartureTime, trip.ArrivalTime, trip.Capacity, trip.FarePerSeat,
	).Scan(&trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}

	for i := 1; i <= trip.Capacity; i++ {
		_, err = tx.Exec(ctx, `
			INSERT INTO seats (id, trip_id, seat_number, is_available)
			VALUES ($1, $2, $3, TRUE)
		`, uuid.New(), trip.ID, fmt.Sprintf("S%02d", i))
		if err != nil {
			return fmt.Errorf("failed to create seat: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListTrips returns upcoming trips, optionally filtered by origin and
// destination.
func (r *Repository) ListTrips(ctx context.Context, origin, destination string) ([]Trip, error) {
	query := `
		SELECT id, bus_number, origin, destination, departure_time, arrival_time,
		       capacity, fare_per_seat, created_at, updated_at
		FROM trips
		WHERE departure_time > NOW()
	`
	args := []any{}
	if origin != "" {
		args = append(args, origin)
		query += fmt.Sprintf(" AND origin ILIKE $%d", len(args))
	}
	if destination != "" {
		args = append(args, destination)
		query += fmt.Sprintf(" AND destination ILIKE $%d", len(args))
	}
	query += " ORDER BY departure_time ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		err := rows.Scan(
			&t.ID, &t.BusNumber, &t.Origin, &t.Destination,
			&t.DepartureTime, &t.ArrivalTime, &t.Capacity, &t.FarePerSeat,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, t)
	}

	return trips, rows.Err()
}

// GetTripByID returns a trip by ID
func (r *Repository) GetTripByID(ctx context.Context, id uuid.UUID) (*Trip, error) {
	var t Trip
	err := r.db.QueryRow(ctx, `
		SELECT id, bus_number, origin, destination, departure_time, arrival_time,
		       capacity, fare_per_seat, created_at, updated_at
		FROM trips
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.BusNumber, &t.Origin, &t.Destination,
		&t.DepartureTime, &t.ArrivalTime, &t.Capacity, &t.FarePerSeat,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return &t, nil
}

// --- Seat Inventory Operations ---

// GetTripSeats returns all seats for a trip, ordered by seat number.
func (r *Repository) GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]Seat, error) {
	return r.querySeats(ctx, `
		SELECT id, trip_id, seat_number, is_available
		FROM seats
		WHERE trip_id = $1
		ORDER BY seat_number
	`, tripID)
}

// ListAvailableSeats returns the available seats for a trip, ordered by seat
// number.
func (r *Repository) ListAvailableSeats(ctx context.Context, tripID uuid.UUID) ([]Seat, error) {
	return r.querySeats(ctx, `
		SELECT id, trip_id, seat_number, is_available
		FROM seats
		WHERE trip_id = $1 AND is_available
		ORDER BY seat_number
	`, tripID)
}

func (r *Repository) querySeats(ctx context.Context, query string, tripID uuid.UUID) ([]Seat, error) {
	rows, err := r.db.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}
	defer rows.Close()

	var seats []Seat
	for rows.Next() {
		var s Seat
		if err := rows.Scan(&s.ID, &s.TripID, &s.SeatNumber, &s.IsAvailable); err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, s)
	}

	return seats, rows.Err()
}

// ClaimSeats atomically marks the requested seats unavailable. Each seat is
// flipped with a conditional update; a zero-row result means the seat is
// either taken or not part of the trip, and the whole transaction rolls back
// so no partial claim is ever visible. Returns the claimed seat rows.
func (r *Repository) ClaimSeats(ctx context.Context, tripID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, seatID := range seatIDs {
		tag, err := tx.Exec(ctx, `
			UPDATE seats
			SET is_available = FALSE
			WHERE id = $1 AND trip_id = $2 AND is_available
		`, seatID, tripID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim seat: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			err := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM seats WHERE id = $1 AND trip_id = $2)
			`, seatID, tripID).Scan(&exists)
			if err != nil {
				return nil, fmt.Errorf("failed to check seat: %w", err)
			}
			if !exists {
				return nil, &SeatNotInTripError{SeatID: seatID}
			}
			return nil, &SeatUnavailableError{SeatID: seatID}
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT id, trip_id, seat_number, is_available
		FROM seats
		WHERE id = ANY($1)
		ORDER BY seat_number
	`, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query claimed seats: %w", err)
	}

	var seats []Seat
	for rows.Next() {
		var s Seat
		if err := rows.Scan(&s.ID, &s.TripID, &s.SeatNumber, &s.IsAvailable); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claimed seats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return seats, nil
}

// ReleaseSeats marks the given seats available again. Releasing a seat that
// is already available is a no-op.
func (r *Repository) ReleaseSeats(ctx context.Context, seatIDs []uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE seats
		SET is_available = TRUE
		WHERE id = ANY($1)
	`, seatIDs)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}
	return nil
}

// --- Booking Ledger Operations ---

// CreateBooking persists a booking with its seat claims and passengers in
// one transaction.
func (r *Repository) CreateBooking(ctx context.Context, booking *Booking, claims []SeatClaim, passengers []Passenger) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (id, user_id, trip_id, total_fare, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, booking.ID, booking.UserID, booking.TripID, booking.TotalFare, booking.Status,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	for _, c := range claims {
		_, err = tx.Exec(ctx, `
			INSERT INTO seat_claims (id, booking_id, seat_id, claimed_at)
			VALUES ($1, $2, $3, $4)
		`, c.ID, c.BookingID, c.SeatID, c.ClaimedAt)
		if err != nil {
			return fmt.Errorf("failed to create seat claim: %w", err)
		}
	}

	for _, p := range passengers {
		_, err = tx.Exec(ctx, `
			INSERT INTO passengers (id, booking_id, seat_claim_id, full_name, age, gender)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, p.BookingID, p.SeatClaimID, p.FullName, p.Age, p.Gender)
		if err != nil {
			return fmt.Errorf("failed to create passenger: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetBookingByID returns a booking with its seat claims and passengers.
func (r *Repository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := r.db.QueryRow(ctx, `
		SELECT b.id, b.user_id, b.trip_id, t.origin, t.destination, t.departure_time,
		       b.total_fare, b.status, b.created_at, b.updated_at
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.id = $1
	`, id).Scan(
		&b.ID, &b.UserID, &b.TripID, &b.Origin, &b.Destination, &b.DepartureTime,
		&b.TotalFare, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.booking_id, c.seat_id, s.seat_number, c.claimed_at
		FROM seat_claims c
		JOIN seats s ON s.id = c.seat_id
		WHERE c.booking_id = $1
		ORDER BY s.seat_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query seat claims: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c SeatClaim
		if err := rows.Scan(&c.ID, &c.BookingID, &c.SeatID, &c.SeatNumber, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan seat claim: %w", err)
		}
		b.Claims = append(b.Claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seat claims: %w", err)
	}

	prows, err := r.db.Query(ctx, `
		SELECT id, booking_id, seat_claim_id, full_name, age, gender
		FROM passengers
		WHERE booking_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query passengers: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var p Passenger
		if err := prows.Scan(&p.ID, &p.BookingID, &p.SeatClaimID, &p.FullName, &p.Age, &p.Gender); err != nil {
			return nil, fmt.Errorf("failed to scan passenger: %w", err)
		}
		b.Passengers = append(b.Passengers, p)
	}

	return &b, prows.Err()
}

// ListBookingsByUser returns a user's bookings, newest first. The filter
// narrows by departure window and free-text search over passenger names and
// trip origin/destination.
func (r *Repository) ListBookingsByUser(ctx context.Context, userID uuid.UUID, filter BookingFilter) ([]Booking, error) {
	query := `
		SELECT b.id, b.user_id, b.trip_id, t.origin, t.destination, t.departure_time,
		       b.total_fare, b.status, b.created_at, b.updated_at
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.user_id = $1
	`
	args := []any{userID}

	switch filter.Window {
	case "upcoming":
		query += " AND t.departure_time > NOW()"
	case "past":
		query += " AND t.departure_time <= NOW()"
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		query += fmt.Sprintf(` AND (t.origin ILIKE $%d OR t.destination ILIKE $%d
			OR EXISTS (SELECT 1 FROM passengers p WHERE p.booking_id = b.id AND p.full_name ILIKE $%d))`, n, n, n)
	}

	query += " ORDER BY b.created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		err := rows.Scan(
			&b.ID, &b.UserID, &b.TripID, &b.Origin, &b.Destination, &b.DepartureTime,
			&b.TotalFare, &b.Status, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// CancelBooking flips the booking to cancelled and releases its seats in one
// transaction. Either both are committed or neither is, so a fault never
// strands a cancelled booking with claimed seats.
func (r *Repository) CancelBooking(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE bookings SET status = 'cancelled', updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE seats
		SET is_available = TRUE
		WHERE id IN (SELECT seat_id FROM seat_claims WHERE booking_id = $1)
	`, id)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	return tx.Commit(ctx)
}

// DeleteBooking removes a booking with its claims, passengers and payment
// transaction, releasing the booking's seats in the same transaction.
func (r *Repository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE seats
		SET is_available = TRUE
		WHERE id IN (SELECT seat_id FROM seat_claims WHERE booking_id = $1)
	`, id)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE booking_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM passengers WHERE booking_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete passengers: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM seat_claims WHERE booking_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete seat claims: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	return tx.Commit(ctx)
}

// --- Transaction Operations ---

// CreateTransaction inserts a pending payment transaction for a booking.
func (r *Repository) CreateTransaction(ctx context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO transactions (id, booking_id, amount, method, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, t.ID, t.BookingID, t.Amount, t.Method, t.Status).Scan(&t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTransactionExists
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetTransactionByID returns a transaction by ID
func (r *Repository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := r.db.QueryRow(ctx, `
		SELECT id, booking_id, amount, method, status, created_at, completed_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(&t.ID, &t.BookingID, &t.Amount, &t.Method, &t.Status, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &t, nil
}

// CompleteTransaction moves a pending transaction to success or failed. A
// transaction that already finished is left untouched.
func (r *Repository) CompleteTransaction(ctx context.Context, id uuid.UUID, status TransactionStatus, completedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = 'pending'
	`, status, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionFinished
	}
	return nil
}

// ListTransactionsByUser returns the transactions for a user's bookings,
// newest first.
func (r *Repository) ListTransactionsByUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT x.id, x.booking_id, x.amount, x.method, x.status, x.created_at, x.completed_at
		FROM transactions x
		JOIN bookings b ON b.id = x.booking_id
		WHERE b.user_id = $1
		ORDER BY x.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.BookingID, &t.Amount, &t.Method, &t.Status, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}

	return txs, rows.Err()
}
