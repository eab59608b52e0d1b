package session

import (
	"time"

	"github.com/studyquest/backend/internal/auth"
	"github.com/studyquest/backend/internal/gamification"
)

// Session is one authenticated user's live progress engine.
type Session struct {
	ID       string
	UserID   string
	OpenedAt time.Time
	Engine   *gamification.Engine

	auth        *auth.Holder
	fingerprint string
}

// Info is the client-facing description of a session.
type Info struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	OpenedAt time.Time `json:"openedAt"`
}

// Info returns the session's public fields.
func (s *Session) Info() Info {
	return Info{ID: s.ID, UserID: s.UserID, OpenedAt: s.OpenedAt}
}
