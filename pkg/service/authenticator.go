package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Authenticator is the black-box credential issuer; ServiceFront only
// depends on this interface, never a concrete implementation.
type Authenticator interface {
	Authenticate(user, pass string) (token string, expiresAt time.Time, err error)
	Validate(token string) (principal string, err error)
}

// Assistant is the black-box conversational service Chat proxies to.
type Assistant interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// InMemoryAuthenticator is a minimal Authenticator good enough to exercise
// ServiceFront in tests: any (user, pass) pair with both fields non-empty
// succeeds and mints a random bearer token valid for ttl.
type InMemoryAuthenticator struct {
	ttl time.Duration

	mu     sync.Mutex
	tokens map[string]tokenEntry
}

type tokenEntry struct {
	principal string
	expiresAt time.Time
}

func NewInMemoryAuthenticator(ttl time.Duration) *InMemoryAuthenticator {
	return &InMemoryAuthenticator{
		ttl:    ttl,
		tokens: make(map[string]tokenEntry),
	}
}

func (a *InMemoryAuthenticator) Authenticate(user, pass string) (string, time.Time, error) {
	if user == "" || pass == "" {
		return "", time.Time{}, kind(ErrUnauthorized)
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, kind(ErrInternal)
	}
	token := hex.EncodeToString(buf)
	expiresAt := time.Now().Add(a.ttl)

	a.mu.Lock()
	a.tokens[token] = tokenEntry{principal: user, expiresAt: expiresAt}
	a.mu.Unlock()

	return token, expiresAt, nil
}

func (a *InMemoryAuthenticator) Validate(token string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.tokens[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", kind(ErrUnauthorized)
	}
	return entry.principal, nil
}

// NullAssistant is a stand-in Assistant that echoes the prompt back, used
// where no real conversational backend is wired.
type NullAssistant struct{}

func (NullAssistant) Chat(_ context.Context, prompt string) (string, error) {
	return "echo: " + prompt, nil
}
