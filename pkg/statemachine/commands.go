package statemachine

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/vzdtic/movieticket-raft/pkg/raft"
)

// SeedMoviesPayload seeds the immutable movie/seat set. Idempotent: Apply
// only seeds once, no matter how many times this command is replayed.
type SeedMoviesPayload struct {
	Movies []Movie
}

// HoldSeatsPayload requests a set of seats be held for a user. ApplyTime is
// stamped by the leader at Propose time and used verbatim as the hold's
// ExpiresAt base — Apply never calls time.Now().
type HoldSeatsPayload struct {
	UserID    string
	MovieID   string
	Seats     []int
	TTL       time.Duration
	ApplyTime time.Time
	BookingID string // minted by the leader so all replicas agree on the ID
}

// ConfirmPaymentPayload confirms a pending booking's payment.
type ConfirmPaymentPayload struct {
	BookingID    string
	Method       string
	ApplyTime    time.Time
	Confirmation string // minted by the leader
}

// CancelBookingPayload cancels a booking, releasing any held/booked seats.
type CancelBookingPayload struct {
	BookingID string
	UserID    string
}

// ExpireHoldsPayload is proposed periodically by the leader so every replica
// expires the same holds at the same logical time.
type ExpireHoldsPayload struct {
	Now time.Time
}

func encode(v interface{}) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		panic("statemachine: encode: " + err.Error())
	}
	return buf.Bytes()
}

func decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// EncodeResult/DecodeResult let callers (ServiceFront) round-trip the opaque
// []byte a raft.CommitResult carries back to a typed Result.
func EncodeResult(r Result) []byte { return encode(r) }

func DecodeResult(data []byte) (Result, error) {
	var r Result
	err := decode(data, &r)
	return r, err
}

// NewSeedMoviesCommand builds the raft.Command for seeding movies. Seeding is
// idempotent by construction (Apply only seeds an empty store) so the
// idempotency key is fixed rather than per-client.
func NewSeedMoviesCommand(movies []Movie) raft.Command {
	return raft.Command{
		Type:       raft.CommandSeedMovies,
		Payload:    encode(SeedMoviesPayload{Movies: movies}),
		ClientID:   "system",
		RequestSeq: 1,
	}
}

func NewHoldSeatsCommand(clientID string, seq uint64, p HoldSeatsPayload) raft.Command {
	return raft.Command{
		Type:       raft.CommandHoldSeats,
		Payload:    encode(p),
		ClientID:   clientID,
		RequestSeq: seq,
	}
}

func NewConfirmPaymentCommand(clientID string, seq uint64, p ConfirmPaymentPayload) raft.Command {
	return raft.Command{
		Type:       raft.CommandConfirmPayment,
		Payload:    encode(p),
		ClientID:   clientID,
		RequestSeq: seq,
	}
}

func NewCancelBookingCommand(clientID string, seq uint64, p CancelBookingPayload) raft.Command {
	return raft.Command{
		Type:       raft.CommandCancelBooking,
		Payload:    encode(p),
		ClientID:   clientID,
		RequestSeq: seq,
	}
}

// NewExpireHoldsCommand is proposed by the leader, not a client; it carries a
// fixed system client ID and a monotonically increasing sequence so repeated
// proposals at the same logical time are still deduped like any other
// command, but the leader is expected to increase seq on every periodic tick.
func NewExpireHoldsCommand(seq uint64, now time.Time) raft.Command {
	return raft.Command{
		Type:       raft.CommandExpireHolds,
		Payload:    encode(ExpireHoldsPayload{Now: now}),
		ClientID:   "system-expire",
		RequestSeq: seq,
	}
}
