package statemachine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vzdtic/movieticket-raft/pkg/statemachine"
)

func seedOneMovie(t *testing.T, sm *statemachine.StateMachine, seats int) statemachine.Movie {
	t.Helper()
	movie := statemachine.Movie{ID: "m1", Title: "Arrival", TotalSeats: seats, Price: 1200}
	cmd := statemachine.NewSeedMoviesCommand([]statemachine.Movie{movie})
	encoded := sm.Apply(cmd)
	result, err := statemachine.DecodeResult(encoded)
	require.NoError(t, err)
	require.False(t, result.IsError())
	return movie
}

func TestSeedMoviesIsIdempotent(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 10)

	again := statemachine.NewSeedMoviesCommand([]statemachine.Movie{{ID: "m2", Title: "Other", TotalSeats: 5}})
	sm.Apply(again)

	movies := sm.ListMovies()
	require.Len(t, movies, 1)
	require.Equal(t, "m1", movies[0].ID)
}

func TestHoldSeatsThenConfirmPayment(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 10)

	now := time.Now()
	hold := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{1, 2}, TTL: time.Minute, ApplyTime: now, BookingID: "b1",
	})
	encoded := sm.Apply(hold)
	result, err := statemachine.DecodeResult(encoded)
	require.NoError(t, err)
	require.False(t, result.IsError())
	require.Equal(t, "b1", result.BookingID)
	require.Equal(t, int64(2400), result.Total)

	seat, ok := sm.GetSeat("m1", 1)
	require.True(t, ok)
	require.Equal(t, statemachine.Held, seat.Status)
	require.Equal(t, "alice", seat.Holder)

	confirm := statemachine.NewConfirmPaymentCommand("client-1", 2, statemachine.ConfirmPaymentPayload{
		BookingID: "b1", Method: "card", ApplyTime: now.Add(time.Second), Confirmation: "conf-1",
	})
	encoded = sm.Apply(confirm)
	result, err = statemachine.DecodeResult(encoded)
	require.NoError(t, err)
	require.False(t, result.IsError())
	require.Equal(t, "conf-1", result.Confirmation)

	seat, ok = sm.GetSeat("m1", 1)
	require.True(t, ok)
	require.Equal(t, statemachine.Booked, seat.Status)

	booking, ok := sm.GetBooking("b1")
	require.True(t, ok)
	require.Equal(t, statemachine.Paid, booking.State)
}

func TestConfirmPaymentAfterExpiryFails(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 10)

	now := time.Now()
	hold := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{1}, TTL: time.Second, ApplyTime: now, BookingID: "b1",
	})
	sm.Apply(hold)

	confirm := statemachine.NewConfirmPaymentCommand("client-1", 2, statemachine.ConfirmPaymentPayload{
		BookingID: "b1", Method: "card", ApplyTime: now.Add(2 * time.Second), Confirmation: "conf-1",
	})
	encoded := sm.Apply(confirm)
	result, err := statemachine.DecodeResult(encoded)
	require.NoError(t, err)
	require.Equal(t, statemachine.Expired, result.Err)
}

func TestHoldSeatsRejectsOverbooking(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 2)

	now := time.Now()
	first := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{1}, TTL: time.Minute, ApplyTime: now, BookingID: "b1",
	})
	sm.Apply(first)

	second := statemachine.NewHoldSeatsCommand("client-2", 1, statemachine.HoldSeatsPayload{
		UserID: "bob", MovieID: "m1", Seats: []int{1, 2}, TTL: time.Minute, ApplyTime: now, BookingID: "b2",
	})
	encoded := sm.Apply(second)
	result, err := statemachine.DecodeResult(encoded)
	require.NoError(t, err)
	require.Equal(t, statemachine.SeatUnavailable, result.Err)

	// A rejected all-or-nothing hold must not have partially claimed seat 2:
	// no seat is ever held or booked by more than one booking.
	seat2, ok := sm.GetSeat("m1", 2)
	require.True(t, ok)
	require.Equal(t, statemachine.Available, seat2.Status)
	require.Equal(t, 1, sm.HeldOrBookedCount("m1"))
}

func TestCancelBookingReleasesSeats(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 10)

	now := time.Now()
	hold := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{3, 4}, TTL: time.Minute, ApplyTime: now, BookingID: "b1",
	})
	sm.Apply(hold)

	cancel := statemachine.NewCancelBookingCommand("client-1", 2, statemachine.CancelBookingPayload{
		BookingID: "b1", UserID: "alice",
	})
	encoded := sm.Apply(cancel)
	result, err := statemachine.DecodeResult(encoded)
	require.NoError(t, err)
	require.False(t, result.IsError())

	seat, ok := sm.GetSeat("m1", 3)
	require.True(t, ok)
	require.Equal(t, statemachine.Available, seat.Status)

	booking, ok := sm.GetBooking("b1")
	require.True(t, ok)
	require.Equal(t, statemachine.Cancelled, booking.State)
}

func TestCancelBookingRejectsWrongOwner(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 10)

	now := time.Now()
	hold := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{1}, TTL: time.Minute, ApplyTime: now, BookingID: "b1",
	})
	sm.Apply(hold)

	cancel := statemachine.NewCancelBookingCommand("client-2", 1, statemachine.CancelBookingPayload{
		BookingID: "b1", UserID: "mallory",
	})
	encoded := sm.Apply(cancel)
	result, err := statemachine.DecodeResult(encoded)
	require.NoError(t, err)
	require.Equal(t, statemachine.NotOwner, result.Err)
}

func TestExpireHoldsReleasesStaleHolds(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 10)

	now := time.Now()
	hold := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{5}, TTL: time.Second, ApplyTime: now, BookingID: "b1",
	})
	sm.Apply(hold)

	expire := statemachine.NewExpireHoldsCommand(1, now.Add(2*time.Second))
	sm.Apply(expire)

	seat, ok := sm.GetSeat("m1", 5)
	require.True(t, ok)
	require.Equal(t, statemachine.Available, seat.Status)

	booking, ok := sm.GetBooking("b1")
	require.True(t, ok)
	require.Equal(t, statemachine.Cancelled, booking.State)
}

func TestIdempotentRetryReturnsCachedResult(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 10)

	now := time.Now()
	hold := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{1}, TTL: time.Minute, ApplyTime: now, BookingID: "b1",
	})
	first := sm.Apply(hold)

	// Same ClientID/RequestSeq, different seats — if this were re-executed
	// instead of replayed from cache, it would hold seat 2 too.
	retried := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{2}, TTL: time.Minute, ApplyTime: now, BookingID: "b2",
	})
	second := sm.Apply(retried)

	require.Equal(t, first, second)

	seat2, ok := sm.GetSeat("m1", 2)
	require.True(t, ok)
	require.Equal(t, statemachine.Available, seat2.Status)
}

func TestListBookingsForUser(t *testing.T) {
	sm := statemachine.New(16)
	seedOneMovie(t, sm, 10)

	now := time.Now()
	sm.Apply(statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{1}, TTL: time.Minute, ApplyTime: now, BookingID: "b1",
	}))
	sm.Apply(statemachine.NewHoldSeatsCommand("client-1", 2, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "m1", Seats: []int{2}, TTL: time.Minute, ApplyTime: now, BookingID: "b2",
	}))
	sm.Apply(statemachine.NewHoldSeatsCommand("client-2", 1, statemachine.HoldSeatsPayload{
		UserID: "bob", MovieID: "m1", Seats: []int{3}, TTL: time.Minute, ApplyTime: now, BookingID: "b3",
	}))

	bookings := sm.ListBookingsForUser("alice")
	require.Len(t, bookings, 2)

	bookings = sm.ListBookingsForUser("bob")
	require.Len(t, bookings, 1)
}

func TestHoldSeatsUnknownMovieNotFound(t *testing.T) {
	sm := statemachine.New(16)

	hold := statemachine.NewHoldSeatsCommand("client-1", 1, statemachine.HoldSeatsPayload{
		UserID: "alice", MovieID: "does-not-exist", Seats: []int{1}, TTL: time.Minute, ApplyTime: time.Now(), BookingID: "b1",
	})
	encoded := sm.Apply(hold)
	result, err := statemachine.DecodeResult(encoded)
	require.NoError(t, err)
	require.Equal(t, statemachine.NotFound, result.Err)
}
