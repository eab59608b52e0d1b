package mock

import (
	"context"
	"testing"
	"time"

	"github.com/studyquest/backend/internal/auth"
	"github.com/studyquest/backend/internal/gamification"
	"github.com/studyquest/backend/internal/session"
	"github.com/studyquest/backend/internal/store"
)

func newTestGenerator(t *testing.T) (*MockGenerator, *session.Manager) {
	t.Helper()
	clock := gamification.NewManualClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	opts := gamification.DefaultOptions()
	opts.Location = time.UTC
	m := session.NewManager(store.NewMemory(), clock, opts)
	t.Cleanup(func() { m.CloseAll(context.Background()) })
	return NewGenerator(m, time.Second, 42), m
}

func TestMockGenerator_OpensOneSessionPerLearner(t *testing.T) {
	g, m := newTestGenerator(t)
	if err := g.Open(context.Background()); err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if got, want := m.Count(), len(g.learners); got != want {
		t.Errorf("Count() = %d, want %d", got, want)
	}
	for _, l := range g.learners {
		if s, ok := m.ByToken(l.token); !ok || s.UserID != l.userID {
			t.Errorf("no session for %s", l.userID)
		}
	}
}

func TestMockGenerator_TokensPassVerifier(t *testing.T) {
	g, m := newTestGenerator(t)
	tokens := g.Tokens()
	if len(tokens) != len(g.learners) {
		t.Fatalf("Tokens() has %d entries, want %d", len(tokens), len(g.learners))
	}
	m.SetVerifier(auth.StaticUsers(tokens))
	if err := g.Open(context.Background()); err != nil {
		t.Fatalf("Open with verifier: %v", err)
	}
}

func TestMockGenerator_TickBeforeOpenIsNoop(t *testing.T) {
	g, _ := newTestGenerator(t)
	g.Tick()
}

func TestMockGenerator_LearnersProgress(t *testing.T) {
	g, _ := newTestGenerator(t)
	if err := g.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		g.Tick()
	}

	byUser := map[string]*mockLearner{}
	for _, l := range g.learners {
		byUser[l.userID] = l
	}

	steady := byUser["mock-ada"].sess.Engine.Snapshot()
	if steady.TotalStudyTime < 50 || steady.Streak != 1 {
		t.Errorf("steady learner: study %d min, streak %d", steady.TotalStudyTime, steady.Streak)
	}
	if steady.Level < 2 {
		t.Errorf("steady learner stuck at level %d", steady.Level)
	}

	quizzer := byUser["mock-grace"].sess.Engine.Snapshot()
	if q := quizzer.Quest("quiz-streak"); q == nil || !q.Completed {
		t.Error("quizzer should have completed the quiz quest")
	}

	crammer := byUser["mock-alan"].sess.Engine.Snapshot()
	if crammer.TotalStudyTime < 90 {
		t.Errorf("crammer studied %d min over two cram ticks, want >= 90", crammer.TotalStudyTime)
	}
}

func TestMockGenerator_Deterministic(t *testing.T) {
	a, _ := newTestGenerator(t)
	b, _ := newTestGenerator(t)
	for _, g := range []*MockGenerator{a, b} {
		if err := g.Open(context.Background()); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 5; i++ {
			g.Tick()
		}
	}
	for i := range a.learners {
		pa := a.learners[i].sess.Engine.Snapshot().Points
		pb := b.learners[i].sess.Engine.Snapshot().Points
		if pa != pb {
			t.Errorf("%s: %d vs %d points with the same seed", a.learners[i].userID, pa, pb)
		}
	}
}
