package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trip represents a scheduled bus run in the database. Its seat set is
// created once, at trip creation, with one row per unit of capacity.
type Trip struct {
	ID            uuid.UUID       `json:"id"`
	BusNumber     string          `json:"busNumber"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureTime time.Time       `json:"departureTime"`
	ArrivalTime   time.Time       `json:"arrivalTime"`
	Capacity      int             `json:"capacity"`
	FarePerSeat   decimal.Decimal `json:"farePerSeat"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Seat represents one bookable unit of capacity on a trip. The is_available
// flag is the authoritative seat state: a seat is either available or claimed
// by some booking, never anything in between.
type Seat struct {
	ID          uuid.UUID `json:"id"`
	TripID      uuid.UUID `json:"tripId"`
	SeatNumber  string    `json:"seatNumber"`
	IsAvailable bool      `json:"available"`
}

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking represents one purchase transaction against one trip. Origin,
// Destination and DepartureTime are denormalized from the trip on reads.
type Booking struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"userId"`
	TripID        uuid.UUID       `json:"tripId"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureTime time.Time       `json:"departureTime"`
	TotalFare     decimal.Decimal `json:"totalFare"`
	Status        BookingStatus   `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Claims        []SeatClaim     `json:"claims,omitempty"`
	Passengers    []Passenger     `json:"passengers,omitempty"`
}

// SeatClaim is the junction between a booking and one of its seats. Claim
// rows are retained when a booking is cancelled; availability is gated off
// the seat flag alone.
type SeatClaim struct {
	ID         uuid.UUID `json:"id"`
	BookingID  uuid.UUID `json:"bookingId"`
	SeatID     uuid.UUID `json:"seatId"`
	SeatNumber string    `json:"seatNumber,omitempty"`
	ClaimedAt  time.Time `json:"claimedAt"`
}

// Passenger belongs to one booking and is bound to exactly one seat claim.
type Passenger struct {
	ID          uuid.UUID `json:"id"`
	BookingID   uuid.UUID `json:"bookingId"`
	SeatClaimID uuid.UUID `json:"seatClaimId"`
	FullName    string    `json:"fullName"`
	Age         int       `json:"age"`
	Gender      string    `json:"gender"`
}

// TransactionStatus represents the status of a payment transaction
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// PaymentMethod represents how a transaction is settled
type PaymentMethod string

const (
	PaymentMethodMpesa  PaymentMethod = "mpesa"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPaypal PaymentMethod = "paypal"
)

// Transaction represents a payment transaction, one-to-one with a booking.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	BookingID   uuid.UUID         `json:"bookingId"`
	Amount      decimal.Decimal   `json:"amount"`
	Method      PaymentMethod     `json:"method"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// BookingFilter narrows booking list queries.
type BookingFilter struct {
	// Window is "", "upcoming" or "past", relative to trip departure.
	Window string
	// Search matches passenger names and trip origin/destination.
	Search string
}
