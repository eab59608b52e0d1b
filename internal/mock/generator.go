// Package mock drives demo learners through real sessions so the API and
// reward notifications can be exercised without a client.
package mock

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/session"
)

// Sessions is the part of session.Manager the generator needs.
type Sessions interface {
	Open(ctx context.Context, userID, token string) (*session.Session, error)
}

type mockLearner struct {
	userID  string
	token   string
	pattern string
	sess    *session.Session
}

type MockGenerator struct {
	sessions Sessions
	interval time.Duration
	rng      *rand.Rand
	learners []*mockLearner
	tick     int
}

func NewGenerator(sessions Sessions, interval time.Duration, seed int64) *MockGenerator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &MockGenerator{
		sessions: sessions,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		learners: []*mockLearner{
			{userID: "mock-ada", token: "mock-token-ada", pattern: "steady"},
			{userID: "mock-grace", token: "mock-token-grace", pattern: "quizzer"},
			{userID: "mock-alan", token: "mock-token-alan", pattern: "crammer"},
			{userID: "mock-edsger", token: "mock-token-edsger", pattern: "flaky"},
		},
	}
}

// Tokens returns the learners' bearer tokens mapped to their user IDs.
func (g *MockGenerator) Tokens() map[string]string {
	out := make(map[string]string, len(g.learners))
	for _, l := range g.learners {
		out[l.token] = l.userID
	}
	return out
}

// Open opens a session for every demo learner.
func (g *MockGenerator) Open(ctx context.Context) error {
	for _, l := range g.learners {
		sess, err := g.sessions.Open(ctx, l.userID, l.token)
		if err != nil {
			return err
		}
		l.sess = sess
	}
	return nil
}

// Start opens the learners and advances them every interval until ctx ends.
func (g *MockGenerator) Start(ctx context.Context) error {
	if err := g.Open(ctx); err != nil {
		return err
	}
	go g.run(ctx)
	return nil
}

func (g *MockGenerator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Tick()
		}
	}
}

// Tick advances every learner by one step of its pattern.
func (g *MockGenerator) Tick() {
	g.tick++
	for _, l := range g.learners {
		if l.sess == nil {
			continue
		}
		switch l.pattern {
		case "steady":
			g.advanceSteady(l)
		case "quizzer":
			g.advanceQuizzer(l)
		case "crammer":
			g.advanceCrammer(l)
		case "flaky":
			g.advanceFlaky(l)
		}
	}
}

// advanceSteady studies a short block every tick and reviews cards.
func (g *MockGenerator) advanceSteady(l *mockLearner) {
	e := l.sess.Engine
	minutes := 5 + g.rng.Intn(6)
	e.AddStudySessionPoints(minutes, true)
	e.AddStudyTime(minutes)
	e.AddFlashcardReviews(1 + g.rng.Intn(3))
}

// advanceQuizzer takes a quiz every tick, mostly right, sometimes using
// coins, and buys double points when it can afford it.
func (g *MockGenerator) advanceQuizzer(l *mockLearner) {
	e := l.sess.Engine
	e.ResetCoins()
	revealed := 0
	for g.rng.Intn(3) == 0 && e.UseCoin() {
		revealed++
	}
	correct := 6 + g.rng.Intn(5)
	wrong := g.rng.Intn(3)
	e.AddQuizPoints(correct, wrong, revealed)

	if !e.IsPowerUpActive(progress.PowerUpDoublePoints) && e.Snapshot().Points >= 3*progress.PowerUpCost {
		e.BuyPowerUp(progress.PowerUpDoublePoints)
	}
}

// advanceCrammer idles, then logs a long session every fifth tick.
func (g *MockGenerator) advanceCrammer(l *mockLearner) {
	if g.tick%5 != 0 {
		return
	}
	e := l.sess.Engine
	minutes := 45 + g.rng.Intn(30)
	e.AddStudySessionPoints(minutes, true)
	e.AddStudyTime(minutes)
}

// advanceFlaky abandons a third of its sessions.
func (g *MockGenerator) advanceFlaky(l *mockLearner) {
	e := l.sess.Engine
	minutes := 10 + g.rng.Intn(20)
	if g.rng.Intn(3) == 0 {
		e.AddStudySessionPoints(minutes, false)
		log.WithField("user", l.userID).Debug("Mock learner abandoned a session")
		return
	}
	e.AddStudySessionPoints(minutes, true)
	e.AddStudyTime(minutes)
}
