// Package statemachine implements the deterministic booking domain that Raft
// replicates. It never reads a local clock or random source — every
// time-dependent decision is driven by a timestamp embedded in the command
// payload by the proposing leader, so every replica that applies the same
// command reaches the same state.
package statemachine

import "time"

// SeatStatus is the lifecycle state of a single seat for a single movie.
type SeatStatus int

const (
	Available SeatStatus = iota
	Held
	Booked
)

func (s SeatStatus) String() string {
	switch s {
	case Available:
		return "Available"
	case Held:
		return "Held"
	case Booked:
		return "Booked"
	default:
		return "Unknown"
	}
}

// BookingState is the lifecycle state of a Booking.
type BookingState int

const (
	Pending BookingState = iota
	Paid
	Cancelled
)

func (s BookingState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Paid:
		return "Paid"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Movie is seeded once at startup and never mutated thereafter.
type Movie struct {
	ID         string
	Title      string
	TotalSeats int
	Price      int64 // integer cents, avoids float drift across replicas
}

// Seat is one row per (MovieID, SeatNo).
type Seat struct {
	MovieID   string
	SeatNo    int
	Status    SeatStatus
	Holder    string // userID, empty when Available
	BookingID string
	ExpiresAt time.Time // zero when not Held
}

// Booking groups the seats a user reserved together.
type Booking struct {
	ID        string
	UserID    string
	MovieID   string
	Seats     []int
	Total     int64
	State     BookingState
	CreatedAt time.Time
}

// ErrCode is a small, stable vocabulary of state-machine-level outcomes,
// distinct from Raft's own error kinds.
type ErrCode string

const (
	OK              ErrCode = ""
	SeatUnavailable ErrCode = "SeatUnavailable"
	NotPending      ErrCode = "NotPending"
	Expired         ErrCode = "Expired"
	NotOwner        ErrCode = "NotOwner"
	NotCancellable  ErrCode = "NotCancellable"
	NotFound        ErrCode = "NotFound"
)

// Result is the outcome of applying one command, cached verbatim under the
// command's idempotency key so a retried request observes exactly the same
// reply without re-executing any side effect.
type Result struct {
	Err          ErrCode
	BookingID    string
	Total        int64
	Confirmation string
}

func (r Result) IsError() bool { return r.Err != OK }
