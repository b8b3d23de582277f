// Package api exposes ServiceFront over HTTP/JSON, the external client RPC
// surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/vzdtic/movieticket-raft/pkg/raft"
	"github.com/vzdtic/movieticket-raft/pkg/service"
)

type HTTPHandler struct {
	front *service.ServiceFront
	node  *raft.Node
	mux   *http.ServeMux
}

func NewHTTPHandler(front *service.ServiceFront, node *raft.Node) *HTTPHandler {
	h := &HTTPHandler{front: front, node: node, mux: http.NewServeMux()}

	h.mux.HandleFunc("/login", h.handleLogin)
	h.mux.HandleFunc("/movies", h.handleListMovies)
	h.mux.HandleFunc("/bookings", h.handleBookSeatsOrList)
	h.mux.HandleFunc("/bookings/confirm", h.handleConfirmPayment)
	h.mux.HandleFunc("/bookings/cancel", h.handleCancelBooking)
	h.mux.HandleFunc("/chat", h.handleChat)
	h.mux.HandleFunc("/status", h.handleStatus)

	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func bearerToken(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct{ User, Pass string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	token, expiresAt, err := h.front.Login(req.User, req.Pass)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt,
	})
}

func (h *HTTPHandler) handleListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.front.ListMovies(bearerToken(r))
	if !h.respondOnError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

func (h *HTTPHandler) handleBookSeatsOrList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		bookings, err := h.front.ListMyBookings(bearerToken(r))
		if !h.respondOnError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, bookings)

	case http.MethodPost:
		var req struct {
			MovieID    string
			Seats      []int
			ClientID   string
			RequestSeq uint64
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		bookingID, total, appliedIndex, err := h.front.BookSeats(ctx, bearerToken(r), req.MovieID, req.Seats, req.ClientID, req.RequestSeq)
		if !h.respondOnError(w, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"bookingId":    bookingID,
			"total":        total,
			"appliedIndex": appliedIndex,
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID  string
		Method     string
		ClientID   string
		RequestSeq uint64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	confirmation, err := h.front.ConfirmPayment(ctx, bearerToken(r), req.BookingID, req.Method, req.ClientID, req.RequestSeq)
	if !h.respondOnError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"confirmation": confirmation})
}

func (h *HTTPHandler) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID  string
		ClientID   string
		RequestSeq uint64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	if err := h.front.CancelBooking(ctx, bearerToken(r), req.BookingID, req.ClientID, req.RequestSeq); !h.respondOnError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct{ Prompt string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	text, err := h.front.Chat(ctx, bearerToken(r), req.Prompt)
	if !h.respondOnError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	term, isLeader := h.node.GetState()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          h.node.GetID(),
		"term":        term,
		"isLeader":    isLeader,
		"leaderId":    h.node.GetLeaderID(),
		"commitIndex": h.node.GetCommitIndex(),
	})
}

// respondOnError writes the appropriate HTTP response for err and reports
// whether the caller should continue writing a success body.
func (h *HTTPHandler) respondOnError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	svcErr, ok := err.(*service.Error)
	if !ok {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}

	switch svcErr.Kind {
	case service.ErrUnauthorized:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case service.ErrNotLeader:
		writeJSON(w, http.StatusMisdirectedRequest, map[string]string{
			"error":      "not leader",
			"leaderHint": svcErr.Hint,
		})
	case service.ErrTimeout:
		http.Error(w, "timeout", http.StatusGatewayTimeout)
	case service.ErrShuttingDown:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	case service.ErrSeatUnavailable:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "SeatUnavailable"})
	case service.ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case service.ErrNotCancellable, service.ErrNotPending, service.ErrExpired, service.ErrNotOwner:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": string(svcErr.Kind)})
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
