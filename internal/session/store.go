package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/auth"
	"github.com/studyquest/backend/internal/gamification"
)

var (
	// ErrNotFound is returned for an unknown session ID.
	ErrNotFound = errors.New("session not found")
	// ErrTokenInUse is returned when a token already has a session for a
	// different user.
	ErrTokenInUse = errors.New("token bound to another user")
	// ErrInvalidRequest is returned when Open is missing a user or token.
	ErrInvalidRequest = errors.New("user id and token are required")
	// ErrForbidden is returned when the verifier rejects a token for a user.
	ErrForbidden = errors.New("token may not open this user")
)

// Manager owns the live sessions, one engine per session. Engines are never
// shared; tearing a session down closes its engine.
type Manager struct {
	store gamification.ProgressStore
	clock gamification.Clock
	opts  gamification.Options

	mu       sync.RWMutex
	sessions map[string]*Session
	byToken  map[string]string // token fingerprint -> session ID
	onEvent  func(Event)
	verifier auth.Verifier
}

// NewManager creates a Manager whose engines use store, clock and opts.
func NewManager(store gamification.ProgressStore, clock gamification.Clock, opts gamification.Options) *Manager {
	return &Manager{
		store:    store,
		clock:    clock,
		opts:     opts,
		sessions: make(map[string]*Session),
		byToken:  make(map[string]string),
	}
}

// OnEvent registers the observer for reward notifications of every
// session. Must be called before the first Open.
func (m *Manager) OnEvent(fn func(Event)) {
	m.mu.Lock()
	m.onEvent = fn
	m.mu.Unlock()
}

// SetVerifier makes Open check every token against v. Without one any
// token may open any user. Must be called before the first Open.
func (m *Manager) SetVerifier(v auth.Verifier) {
	m.mu.Lock()
	m.verifier = v
	m.mu.Unlock()
}

// Open returns the session bound to token, creating and hydrating a new
// engine when there is none.
func (m *Manager) Open(ctx context.Context, userID, token string) (*Session, error) {
	if userID == "" || token == "" {
		return nil, ErrInvalidRequest
	}
	m.mu.RLock()
	verifier := m.verifier
	m.mu.RUnlock()
	if verifier != nil {
		if err := verifier.Verify(ctx, token, userID); err != nil {
			log.WithFields(log.Fields{"user": userID, "token": Fingerprint(token)}).Warn("Session open rejected")
			return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
		}
	}
	fp := Fingerprint(token)
	if s, ok := m.ByToken(token); ok {
		if s.UserID != userID {
			return nil, ErrTokenInUse
		}
		return s, nil
	}

	holder := auth.NewHolder(token)
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		OpenedAt:    time.Now().UTC(),
		Engine:      gamification.NewEngine(userID, m.store, holder, m.clock, m.opts),
		auth:        holder,
		fingerprint: fp,
	}
	s.Engine.OnReward(func(ev gamification.RewardEvent) {
		m.emit(eventFor(s, ev))
	})
	s.Engine.Start(ctx)

	m.mu.Lock()
	if id, ok := m.byToken[fp]; ok {
		// Lost a race with a concurrent Open for the same token.
		existing := m.sessions[id]
		m.mu.Unlock()
		s.Engine.Close()
		if existing.UserID != userID {
			return nil, ErrTokenInUse
		}
		return existing, nil
	}
	m.sessions[s.ID] = s
	m.byToken[fp] = s.ID
	m.mu.Unlock()

	log.WithFields(log.Fields{"session": s.ID, "user": userID, "token": fp}).Info("Session opened")
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// ByToken returns the session bound to token.
func (m *Manager) ByToken(token string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[Fingerprint(token)]
	if !ok {
		return nil, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// Close pushes the session's progress one last time, then tears the
// engine down and forgets the token.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		delete(m.byToken, s.fingerprint)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if !s.Engine.SyncToDatabase(ctx) {
		log.WithField("session", id).Warn("Final progress push failed")
	}
	s.Engine.Close()
	s.auth.Clear()
	log.WithFields(log.Fields{"session": id, "user": s.UserID}).Info("Session closed")
	return nil
}

// CloseAll closes every session. Used on shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	for _, id := range m.ids() {
		m.Close(ctx, id)
	}
}

// Each calls fn for every open session. fn runs without the manager lock
// held and may call back into the engine.
func (m *Manager) Each(fn func(*Session)) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		fn(s)
	}
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) emit(ev Event) {
	m.mu.RLock()
	fn := m.onEvent
	m.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
