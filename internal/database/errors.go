package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrTransactionFinished = errors.New("transaction already finished")
	ErrTransactionExists   = errors.New("booking already has a transaction")
)

// SeatUnavailableError reports the first requested seat that is already
// claimed by another booking.
type SeatUnavailableError struct {
	SeatID uuid.UUID
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat %s is not available", e.SeatID)
}

// SeatNotInTripError reports the first requested seat that does not belong
// to the trip being booked.
type SeatNotInTripError struct {
	SeatID uuid.UUID
}

func (e *SeatNotInTripError) Error() string {
	return fmt.Sprintf("seat %s does not belong to this trip", e.SeatID)
}
