package gamification

import (
	"fmt"
	"time"

	"github.com/studyquest/backend/internal/progress"
)

const defaultMultiplier = 2

// PowerUpScheduler tracks time-boxed effects. It has no timer of its own:
// the engine drives Sweep from a single ticker shared by all power-ups.
type PowerUpScheduler struct {
	order    []string
	powerUps map[string]*progress.PowerUp
}

// NewPowerUpScheduler creates a scheduler loaded with the power-up catalog,
// everything inactive.
func NewPowerUpScheduler() *PowerUpScheduler {
	s := &PowerUpScheduler{powerUps: make(map[string]*progress.PowerUp)}
	for _, p := range progress.DefaultPowerUps() {
		p := p
		s.order = append(s.order, p.ID)
		s.powerUps[p.ID] = &p
	}
	return s
}

// Known reports whether id is in the catalog.
func (s *PowerUpScheduler) Known(id string) bool {
	_, ok := s.powerUps[id]
	return ok
}

// Activate switches the power-up on until now+Duration. A zero-duration
// power-up is an instantaneous effect and stays inactive. Activating an
// already active power-up restarts its window.
func (s *PowerUpScheduler) Activate(id string, now time.Time) error {
	p, ok := s.powerUps[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPowerUp, id)
	}
	if p.Duration <= 0 {
		p.Active = false
		p.EndTime = nil
		return nil
	}
	end := now.Add(p.Duration)
	p.Active = true
	p.EndTime = &end
	return nil
}

// IsActive reports whether the power-up is currently switched on.
func (s *PowerUpScheduler) IsActive(id string) bool {
	p, ok := s.powerUps[id]
	return ok && p.Active
}

// Sweep deactivates every power-up whose window has ended at now and
// returns their IDs.
func (s *PowerUpScheduler) Sweep(now time.Time) []string {
	var expired []string
	for _, id := range s.order {
		p := s.powerUps[id]
		if !p.Active || p.EndTime == nil || p.EndTime.After(now) {
			continue
		}
		p.Active = false
		p.EndTime = nil
		expired = append(expired, id)
	}
	return expired
}

// Multiplier returns the point multiplier of an active power-up, or 1.
func (s *PowerUpScheduler) Multiplier(id string) float64 {
	p, ok := s.powerUps[id]
	if !ok || !p.Active {
		return 1
	}
	if p.Multiplier <= 0 {
		return defaultMultiplier
	}
	return p.Multiplier
}

// List returns copies of all power-ups in catalog order.
func (s *PowerUpScheduler) List() []progress.PowerUp {
	out := make([]progress.PowerUp, 0, len(s.order))
	for _, id := range s.order {
		p := *s.powerUps[id]
		if p.EndTime != nil {
			end := *p.EndTime
			p.EndTime = &end
		}
		out = append(out, p)
	}
	return out
}
