// Package service implements ServiceFront: the client-facing RPC surface
// that authenticates requests, forwards writes through RaftNode.Propose,
// serves reads from the local StateMachine, and translates NotLeader into
// an advisory hint callers retry against.
package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vzdtic/movieticket-raft/pkg/raft"
	"github.com/vzdtic/movieticket-raft/pkg/statemachine"
)

// Config holds the client-facing tunables.
type Config struct {
	SeatHoldTTL    time.Duration
	ProposeTimeout time.Duration
}

// ServiceFront is the boundary between external clients and one Raft node.
// Reads never touch Raft; writes always go through node.Propose.
type ServiceFront struct {
	node      *raft.Node
	sm        *statemachine.StateMachine
	auth      Authenticator
	assistant Assistant
	cfg       Config

	// httpAddrs maps every node's Raft ID to the HTTP address its
	// ServiceFront listens on, so a NotLeader reply can hand the caller
	// something it can actually dial instead of a bare node ID.
	httpAddrs map[string]string

	systemSeq uint64 // monotonic sequence for leader-originated commands (ExpireHolds)
}

func New(node *raft.Node, sm *statemachine.StateMachine, auth Authenticator, assistant Assistant, cfg Config, httpAddrs map[string]string) *ServiceFront {
	return &ServiceFront{node: node, sm: sm, auth: auth, assistant: assistant, cfg: cfg, httpAddrs: httpAddrs}
}

// BookingView and MovieView are the read-facing shapes returned to clients;
// kept distinct from the internal statemachine types so the wire contract
// doesn't couple to storage representation.
type MovieView struct {
	ID         string
	Title      string
	TotalSeats int
	Price      int64
}

type BookingView struct {
	ID        string
	UserID    string
	MovieID   string
	Seats     []int
	Total     int64
	State     string
	CreatedAt time.Time
}

// Login authenticates user/pass and returns a bearer token. It never touches
// Raft.
func (s *ServiceFront) Login(user, pass string) (token string, expiresAt time.Time, err error) {
	return s.auth.Authenticate(user, pass)
}

func (s *ServiceFront) authenticate(token string) (string, error) {
	principal, err := s.auth.Validate(token)
	if err != nil {
		return "", kind(ErrUnauthorized)
	}
	return principal, nil
}

// ListMovies serves the seeded catalogue straight from the local
// StateMachine; no consensus round needed for a read.
func (s *ServiceFront) ListMovies(token string) ([]MovieView, error) {
	if _, err := s.authenticate(token); err != nil {
		return nil, err
	}
	movies := s.sm.ListMovies()
	out := make([]MovieView, len(movies))
	for i, m := range movies {
		out[i] = MovieView{ID: m.ID, Title: m.Title, TotalSeats: m.TotalSeats, Price: m.Price}
	}
	return out, nil
}

// BookSeats proposes a HoldSeats command and waits for it to be applied.
func (s *ServiceFront) BookSeats(ctx context.Context, token, movieID string, seats []int, clientID string, requestSeq uint64) (bookingID string, total int64, appliedIndex uint64, err error) {
	userID, authErr := s.authenticate(token)
	if authErr != nil {
		return "", 0, 0, authErr
	}

	payload := statemachine.HoldSeatsPayload{
		UserID:    userID,
		MovieID:   movieID,
		Seats:     seats,
		TTL:       s.cfg.SeatHoldTTL,
		ApplyTime: time.Now(),
		BookingID: uuid.NewString(),
	}
	cmd := statemachine.NewHoldSeatsCommand(clientID, requestSeq, payload)

	commit, proposeErr := s.propose(ctx, cmd)
	if proposeErr != nil {
		return "", 0, 0, proposeErr
	}

	result, decodeErr := statemachine.DecodeResult(commit.Result)
	if decodeErr != nil {
		return "", 0, 0, kind(ErrInternal)
	}
	if result.IsError() {
		return "", 0, 0, resultError(result.Err)
	}
	return result.BookingID, result.Total, commit.Index, nil
}

// ConfirmPayment proposes a ConfirmPayment command.
func (s *ServiceFront) ConfirmPayment(ctx context.Context, token, bookingID, method, clientID string, requestSeq uint64) (confirmation string, err error) {
	if _, authErr := s.authenticate(token); authErr != nil {
		return "", authErr
	}

	payload := statemachine.ConfirmPaymentPayload{
		BookingID:    bookingID,
		Method:       method,
		ApplyTime:    time.Now(),
		Confirmation: uuid.NewString(),
	}
	cmd := statemachine.NewConfirmPaymentCommand(clientID, requestSeq, payload)

	commit, proposeErr := s.propose(ctx, cmd)
	if proposeErr != nil {
		return "", proposeErr
	}

	result, decodeErr := statemachine.DecodeResult(commit.Result)
	if decodeErr != nil {
		return "", kind(ErrInternal)
	}
	if result.IsError() {
		return "", resultError(result.Err)
	}
	return result.Confirmation, nil
}

// ListMyBookings serves a per-user read straight from the StateMachine.
func (s *ServiceFront) ListMyBookings(token string) ([]BookingView, error) {
	userID, err := s.authenticate(token)
	if err != nil {
		return nil, err
	}
	bookings := s.sm.ListBookingsForUser(userID)
	out := make([]BookingView, len(bookings))
	for i, b := range bookings {
		out[i] = BookingView{
			ID: b.ID, UserID: b.UserID, MovieID: b.MovieID,
			Seats: b.Seats, Total: b.Total, State: b.State.String(), CreatedAt: b.CreatedAt,
		}
	}
	return out, nil
}

// CancelBooking proposes a CancelBooking command.
func (s *ServiceFront) CancelBooking(ctx context.Context, token, bookingID, clientID string, requestSeq uint64) error {
	userID, authErr := s.authenticate(token)
	if authErr != nil {
		return authErr
	}

	cmd := statemachine.NewCancelBookingCommand(clientID, requestSeq, statemachine.CancelBookingPayload{
		BookingID: bookingID,
		UserID:    userID,
	})

	commit, proposeErr := s.propose(ctx, cmd)
	if proposeErr != nil {
		return proposeErr
	}

	result, decodeErr := statemachine.DecodeResult(commit.Result)
	if decodeErr != nil {
		return kind(ErrInternal)
	}
	if result.IsError() {
		return resultError(result.Err)
	}
	return nil
}

// Chat authenticates and proxies to the black-box Assistant.
func (s *ServiceFront) Chat(ctx context.Context, token, prompt string) (string, error) {
	if _, err := s.authenticate(token); err != nil {
		return "", err
	}
	text, err := s.assistant.Chat(ctx, prompt)
	if err != nil {
		return "", kind(ErrInternal)
	}
	return text, nil
}

// SeedMovies proposes the one-time catalogue seed. On a follower it fails
// with NotLeader. cmd/server does not call it, so a server started from
// cmd/server has an empty catalogue until a seed is proposed.
func (s *ServiceFront) SeedMovies(ctx context.Context, movies []statemachine.Movie) error {
	cmd := statemachine.NewSeedMoviesCommand(movies)
	_, err := s.propose(ctx, cmd)
	return err
}

// ProposeExpireHolds is called periodically (by cmd/server's leader-only
// ticker) so every replica expires the same holds at the same logical time.
func (s *ServiceFront) ProposeExpireHolds(ctx context.Context, now time.Time) error {
	seq := atomic.AddUint64(&s.systemSeq, 1)
	cmd := statemachine.NewExpireHoldsCommand(seq, now)
	_, err := s.propose(ctx, cmd)
	return err
}

// IsLeader reports whether the local node is currently the Raft leader,
// used by cmd/server to gate the ExpireHolds ticker to the leader only.
func (s *ServiceFront) IsLeader() bool { return s.node.IsLeader() }

func (s *ServiceFront) propose(ctx context.Context, cmd raft.Command) (raft.CommitResult, error) {
	proposeCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.ProposeTimeout > 0 {
		proposeCtx, cancel = context.WithTimeout(ctx, s.cfg.ProposeTimeout)
		defer cancel()
	}

	commit, err := s.node.Propose(proposeCtx, cmd)
	switch err {
	case nil:
		return commit, nil
	case raft.ErrNotLeader:
		return raft.CommitResult{}, notLeader(s.httpAddrs[s.node.GetLeaderID()])
	case raft.ErrLeadershipLost:
		return raft.CommitResult{}, kind(ErrLeadershipLost)
	case raft.ErrShuttingDown:
		return raft.CommitResult{}, kind(ErrShuttingDown)
	default:
		if proposeCtx.Err() != nil {
			return raft.CommitResult{}, kind(ErrTimeout)
		}
		return raft.CommitResult{}, kind(ErrInternal)
	}
}

func resultError(code statemachine.ErrCode) error {
	switch code {
	case statemachine.SeatUnavailable:
		return kind(ErrSeatUnavailable)
	case statemachine.NotPending:
		return kind(ErrNotPending)
	case statemachine.Expired:
		return kind(ErrExpired)
	case statemachine.NotOwner:
		return kind(ErrNotOwner)
	case statemachine.NotCancellable:
		return kind(ErrNotCancellable)
	case statemachine.NotFound:
		return kind(ErrNotFound)
	default:
		return kind(ErrInternal)
	}
}
