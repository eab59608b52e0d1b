// Package auth carries the session bearer token from the HTTP layer to the
// progress engine and on to remote stores. Token issuance lives outside
// this service; a Verifier may bind tokens to users.
package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrUserMismatch is returned when a token may not act for a user.
var ErrUserMismatch = errors.New("token not valid for user")

// Verifier decides whether token may act for userID.
type Verifier interface {
	Verify(ctx context.Context, token, userID string) error
}

// StaticUsers binds tokens to user IDs from configuration.
type StaticUsers map[string]string

// Verify implements Verifier.
func (s StaticUsers) Verify(_ context.Context, token, userID string) error {
	if u, ok := s[token]; ok && u == userID {
		return nil
	}
	return ErrUserMismatch
}

// Holder is a per-session token slot. The engine consults it before every
// store call; clearing it (logout) turns further sync attempts into no-ops.
type Holder struct {
	mu    sync.RWMutex
	token string
}

// NewHolder returns a Holder containing token.
func NewHolder(token string) *Holder {
	return &Holder{token: token}
}

// CurrentToken returns the token, or false if none is set.
func (h *Holder) CurrentToken() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token, h.token != ""
}

// Set replaces the token.
func (h *Holder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

// Clear removes the token.
func (h *Holder) Clear() {
	h.Set("")
}

type tokenKey struct{}

// WithToken returns a context carrying token for downstream stores.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token stored by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}
