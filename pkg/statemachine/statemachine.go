package statemachine

import (
	"sync"
	"time"

	"github.com/vzdtic/movieticket-raft/pkg/raft"
)

type seatKey struct {
	movieID string
	seatNo  int
}

// StateMachine is the single-writer, multi-reader booking domain applied by
// Raft's apply worker. Mutations only ever happen inside Apply, called
// strictly in log-index order; reads may be served from any goroutine
// under RLock.
type StateMachine struct {
	mu sync.RWMutex

	seeded   bool
	movies   map[string]*Movie
	seats    map[seatKey]*Seat
	bookings map[string]*Booking
	byUser   map[string][]string // userID -> bookingIDs, insertion order

	applied *appliedCache
}

// New creates an empty state machine with an idempotency cache bounded to
// cacheSize entries.
func New(cacheSize int) *StateMachine {
	return &StateMachine{
		movies:   make(map[string]*Movie),
		seats:    make(map[seatKey]*Seat),
		bookings: make(map[string]*Booking),
		byUser:   make(map[string][]string),
		applied:  newAppliedCache(cacheSize),
	}
}

// Apply implements raft.StateMachineInterface. It is only ever called by the
// single apply worker, with entries strictly in increasing index order.
func (s *StateMachine) Apply(cmd raft.Command) []byte {
	key := idempotencyKey{clientID: cmd.ClientID, seq: cmd.RequestSeq}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.applied.get(key); ok {
		return cached
	}

	var result Result
	switch cmd.Type {
	case raft.CommandSeedMovies:
		result = s.applySeedMovies(cmd.Payload)
	case raft.CommandHoldSeats:
		result = s.applyHoldSeats(cmd.Payload)
	case raft.CommandConfirmPayment:
		result = s.applyConfirmPayment(cmd.Payload)
	case raft.CommandCancelBooking:
		result = s.applyCancelBooking(cmd.Payload)
	case raft.CommandExpireHolds:
		result = s.applyExpireHolds(cmd.Payload)
	case raft.CommandNoop:
		result = Result{}
	default:
		result = Result{Err: NotFound}
	}

	encoded := EncodeResult(result)
	s.applied.put(key, encoded)
	return encoded
}

func (s *StateMachine) applySeedMovies(payload []byte) Result {
	if s.seeded {
		return Result{}
	}
	var p SeedMoviesPayload
	if err := decode(payload, &p); err != nil {
		return Result{Err: NotFound}
	}
	for i := range p.Movies {
		m := p.Movies[i]
		s.movies[m.ID] = &m
		for seatNo := 1; seatNo <= m.TotalSeats; seatNo++ {
			s.seats[seatKey{movieID: m.ID, seatNo: seatNo}] = &Seat{
				MovieID: m.ID,
				SeatNo:  seatNo,
				Status:  Available,
			}
		}
	}
	s.seeded = true
	return Result{}
}

func (s *StateMachine) applyHoldSeats(payload []byte) Result {
	var p HoldSeatsPayload
	if err := decode(payload, &p); err != nil {
		return Result{Err: NotFound}
	}

	movie, ok := s.movies[p.MovieID]
	if !ok {
		return Result{Err: NotFound}
	}

	keys := make([]seatKey, 0, len(p.Seats))
	for _, seatNo := range p.Seats {
		k := seatKey{movieID: p.MovieID, seatNo: seatNo}
		seat, ok := s.seats[k]
		if !ok || seat.Status != Available {
			return Result{Err: SeatUnavailable}
		}
		keys = append(keys, k)
	}

	expiresAt := p.ApplyTime.Add(p.TTL)
	var total int64
	for _, k := range keys {
		seat := s.seats[k]
		seat.Status = Held
		seat.Holder = p.UserID
		seat.BookingID = p.BookingID
		seat.ExpiresAt = expiresAt
		total += movie.Price
	}

	booking := &Booking{
		ID:        p.BookingID,
		UserID:    p.UserID,
		MovieID:   p.MovieID,
		Seats:     append([]int(nil), p.Seats...),
		Total:     total,
		State:     Pending,
		CreatedAt: p.ApplyTime,
	}
	s.bookings[booking.ID] = booking
	s.byUser[p.UserID] = append(s.byUser[p.UserID], booking.ID)

	return Result{BookingID: booking.ID, Total: total}
}

func (s *StateMachine) applyConfirmPayment(payload []byte) Result {
	var p ConfirmPaymentPayload
	if err := decode(payload, &p); err != nil {
		return Result{Err: NotFound}
	}

	booking, ok := s.bookings[p.BookingID]
	if !ok {
		return Result{Err: NotFound}
	}
	if booking.State != Pending {
		return Result{Err: NotPending}
	}

	for _, seatNo := range booking.Seats {
		seat := s.seats[seatKey{movieID: booking.MovieID, seatNo: seatNo}]
		if seat != nil && !seat.ExpiresAt.IsZero() && !p.ApplyTime.Before(seat.ExpiresAt) {
			return Result{Err: Expired}
		}
	}

	for _, seatNo := range booking.Seats {
		seat := s.seats[seatKey{movieID: booking.MovieID, seatNo: seatNo}]
		if seat != nil {
			seat.Status = Booked
			seat.ExpiresAt = time.Time{}
		}
	}
	booking.State = Paid

	return Result{BookingID: booking.ID, Confirmation: p.Confirmation}
}

func (s *StateMachine) applyCancelBooking(payload []byte) Result {
	var p CancelBookingPayload
	if err := decode(payload, &p); err != nil {
		return Result{Err: NotFound}
	}

	booking, ok := s.bookings[p.BookingID]
	if !ok {
		return Result{Err: NotFound}
	}
	if booking.UserID != p.UserID {
		return Result{Err: NotOwner}
	}
	if booking.State == Cancelled {
		return Result{Err: NotCancellable}
	}

	s.releaseSeats(booking)
	booking.State = Cancelled

	return Result{BookingID: booking.ID}
}

func (s *StateMachine) applyExpireHolds(payload []byte) Result {
	var p ExpireHoldsPayload
	if err := decode(payload, &p); err != nil {
		return Result{Err: NotFound}
	}

	expiredBookings := make(map[string]bool)
	for _, seat := range s.seats {
		if seat.Status == Held && !seat.ExpiresAt.IsZero() && !p.Now.Before(seat.ExpiresAt) {
			if seat.BookingID != "" {
				expiredBookings[seat.BookingID] = true
			}
			seat.Status = Available
			seat.Holder = ""
			seat.BookingID = ""
			seat.ExpiresAt = time.Time{}
		}
	}
	for id := range expiredBookings {
		if b, ok := s.bookings[id]; ok && b.State == Pending {
			b.State = Cancelled
		}
	}

	return Result{}
}

func (s *StateMachine) releaseSeats(booking *Booking) {
	for _, seatNo := range booking.Seats {
		seat := s.seats[seatKey{movieID: booking.MovieID, seatNo: seatNo}]
		if seat == nil {
			continue
		}
		seat.Status = Available
		seat.Holder = ""
		seat.BookingID = ""
		seat.ExpiresAt = time.Time{}
	}
}

// Read-only accessors. These may be called concurrently with Apply (RLock)
// and are what ServiceFront uses to serve reads without going through Raft.

// ListMovies returns the immutable seeded movie catalogue.
func (s *StateMachine) ListMovies() []Movie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, *m)
	}
	return out
}

// GetBooking returns a copy of a booking by ID.
func (s *StateMachine) GetBooking(id string) (Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return Booking{}, false
	}
	return *b, true
}

// ListBookingsForUser returns copies of every booking a user has made.
func (s *StateMachine) ListBookingsForUser(userID string) []Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	out := make([]Booking, 0, len(ids))
	for _, id := range ids {
		if b, ok := s.bookings[id]; ok {
			out = append(out, *b)
		}
	}
	return out
}

// GetSeat returns a copy of one seat's state, used by tests to assert the
// no-overbooking invariant holds across replicas.
func (s *StateMachine) GetSeat(movieID string, seatNo int) (Seat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.seats[seatKey{movieID: movieID, seatNo: seatNo}]
	if !ok {
		return Seat{}, false
	}
	return *seat, true
}

// HeldOrBookedCount reports how many seats of a movie are not Available,
// used to check that holds and bookings never exceed total seat count.
func (s *StateMachine) HeldOrBookedCount(movieID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for k, seat := range s.seats {
		if k.movieID == movieID && seat.Status != Available {
			count++
		}
	}
	return count
}
