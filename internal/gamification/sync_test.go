package gamification

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/studyquest/backend/internal/auth"
	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/store"
)

func (h *harness) storedPoints(t *testing.T) int {
	t.Helper()
	s, ok := h.store.Get(testUser)
	if !ok {
		t.Fatal("nothing stored for user")
	}
	return s.Points
}

func TestSync_StartupSuppression(t *testing.T) {
	h := startEngine(t, nil)

	h.e.AddPoints(10)
	h.clock.Advance(2 * time.Second)
	if n := h.store.Persists(); n != 0 {
		t.Fatalf("pushed %d times inside the startup window, want 0", n)
	}
	h.clock.Advance(time.Second)
	if n := h.store.Persists(); n != 1 {
		t.Fatalf("Persists() = %d at end of startup window, want 1", n)
	}
	if p := h.storedPoints(t); p != 10 {
		t.Errorf("stored points = %d, want 10", p)
	}
}

func TestSync_HydrationIsNotEchoed(t *testing.T) {
	h := startEngine(t, seeded(func(s *progress.Snapshot) {
		s.Points = 80
		s.Streak = 2
	}))
	h.clock.Advance(30 * time.Second)
	if n := h.store.Persists(); n != 0 {
		t.Errorf("Persists() = %d after hydration, want 0", n)
	}
}

func TestSync_DebounceCoalescesBursts(t *testing.T) {
	h := startEngine(t, nil)
	h.clock.Advance(5 * time.Second)

	for i := 0; i < 5; i++ {
		h.e.AddPoints(1)
		h.clock.Advance(200 * time.Millisecond)
	}
	if n := h.store.Persists(); n != 0 {
		t.Fatalf("pushed %d times during the burst, want 0", n)
	}
	h.clock.Advance(2 * time.Second)
	if n := h.store.Persists(); n != 1 {
		t.Fatalf("Persists() = %d after debounce, want 1", n)
	}
	if p := h.storedPoints(t); p != 5 {
		t.Errorf("stored points = %d, want 5", p)
	}
	h.clock.Advance(time.Minute)
	if n := h.store.Persists(); n != 1 {
		t.Errorf("Persists() = %d with no further changes, want 1", n)
	}
}

func TestSync_PushFloorDefersSecondPush(t *testing.T) {
	h := startEngine(t, nil)
	h.clock.Advance(5 * time.Second)

	h.e.AddPoints(10)
	h.clock.Advance(2 * time.Second) // first push at +7s
	if n := h.store.Persists(); n != 1 {
		t.Fatalf("Persists() = %d, want 1", n)
	}

	h.e.AddPoints(10)
	h.clock.Advance(14 * time.Second) // +21s, floor ends at +22s
	if n := h.store.Persists(); n != 1 {
		t.Fatalf("pushed inside the floor: Persists() = %d, want 1", n)
	}
	if !h.e.SyncStatus().PushPending {
		t.Error("deferred push should still be pending")
	}
	h.clock.Advance(time.Second)
	if n := h.store.Persists(); n != 2 {
		t.Fatalf("Persists() = %d after the floor, want 2", n)
	}
	if p := h.storedPoints(t); p != 20 {
		t.Errorf("stored points = %d, want 20", p)
	}
}

func TestSync_UnchangedKeyDoesNotPush(t *testing.T) {
	h := startEngine(t, nil)
	h.clock.Advance(5 * time.Second)

	h.e.AddPoints(10)
	h.e.AddPoints(-10)
	h.e.UseCoin()
	h.clock.Advance(time.Minute)
	if n := h.store.Persists(); n != 0 {
		t.Errorf("Persists() = %d for a net-zero change, want 0", n)
	}
}

func TestSync_ManualPushBypassesGates(t *testing.T) {
	h := startEngine(t, nil)

	h.e.AddPoints(10)
	if !h.e.SyncToDatabase(context.Background()) {
		t.Fatal("SyncToDatabase should succeed")
	}
	if n := h.store.Persists(); n != 1 {
		t.Fatalf("Persists() = %d, want 1", n)
	}
	if h.e.SyncStatus().PushPending {
		t.Error("manual push should cancel the pending debounce")
	}
	h.clock.Advance(time.Minute)
	if n := h.store.Persists(); n != 1 {
		t.Errorf("Persists() = %d, want 1 (nothing new to push)", n)
	}

	// A second manual push inside the push floor still goes through.
	h.e.AddPoints(5)
	h.clock.Advance(time.Second)
	if !h.e.SyncToDatabase(context.Background()) {
		t.Fatal("second SyncToDatabase inside the floor should succeed")
	}
	if n := h.store.Persists(); n != 2 {
		t.Errorf("Persists() = %d, want 2", n)
	}
}

func TestSync_Unauthenticated(t *testing.T) {
	h := startEngine(t, nil)
	h.clock.Advance(5 * time.Second)
	h.auth.Clear()

	h.e.AddPoints(10)
	h.clock.Advance(5 * time.Second)
	if h.e.SyncToDatabase(context.Background()) {
		t.Error("SyncToDatabase should fail without a token")
	}
	if h.e.FetchLatestProgress(context.Background()) {
		t.Error("FetchLatestProgress should fail without a token")
	}
	if n := h.store.Persists(); n != 0 {
		t.Errorf("store saw %d persists without a token", n)
	}
	if n := h.store.Fetches(); n != 1 {
		t.Errorf("store saw %d fetches, want only the hydration", n)
	}
	if p := h.e.Snapshot().Points; p != 10 {
		t.Errorf("local points = %d, want 10", p)
	}
}

func TestSync_PushFailureIsSwallowed(t *testing.T) {
	h := startEngine(t, nil)
	h.clock.Advance(5 * time.Second)
	h.store.SetPersistErr(errors.New("network down"))

	h.e.AddPoints(10)
	h.clock.Advance(2 * time.Second)
	if n := h.store.Persists(); n != 1 {
		t.Fatalf("Persists() = %d, want 1 attempt", n)
	}
	if h.e.SyncStatus().LastError == "" {
		t.Error("LastError should record the failure")
	}
	h.clock.Advance(time.Minute)
	if n := h.store.Persists(); n != 1 {
		t.Errorf("failed push was retried: Persists() = %d", n)
	}

	// Rewards keep working while sync is down.
	if !h.e.CompleteQuest(progress.QuestDailyStudy) {
		t.Fatal("CompleteQuest should succeed while sync is failing")
	}

	h.store.SetPersistErr(nil)
	h.clock.Advance(2 * time.Second)
	if p, want := h.storedPoints(t), h.e.Snapshot().Points; p != want {
		t.Errorf("stored points = %d, want %d", p, want)
	}
	if h.e.SyncStatus().LastError != "" {
		t.Error("LastError should clear after a successful push")
	}
}

func TestSync_RejectedSnapshotLeavesLocalState(t *testing.T) {
	h := startEngine(t, nil)
	h.store.SetPersistErr(progress.ErrInvalidSnapshot)
	h.e.AddPoints(40)
	if h.e.SyncToDatabase(context.Background()) {
		t.Error("rejected push should report false")
	}
	if p := h.e.Snapshot().Points; p != 40 {
		t.Errorf("local points = %d, want 40", p)
	}
}

func TestSync_PullOverwritesLocal(t *testing.T) {
	h := startEngine(t, nil)
	h.clock.Advance(5 * time.Second)

	h.e.AddPoints(30)
	remote := seeded(func(s *progress.Snapshot) {
		s.Points = 500
		s.Level = 4
		s.Streak = 9
	})
	if err := h.store.Put(testUser, remote); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	if !h.e.FetchLatestProgress(context.Background()) {
		t.Fatal("FetchLatestProgress should succeed")
	}
	s := h.e.Snapshot()
	if s.Points != 500 || s.Level != 4 || s.Streak != 9 {
		t.Errorf("after pull = %+v, want remote values", s.SyncKey())
	}
	if h.e.SyncStatus().PushPending {
		t.Error("pull should cancel the pending push")
	}
	h.clock.Advance(time.Minute)
	if n := h.store.Persists(); n != 0 {
		t.Errorf("Persists() = %d, pulled state must not be echoed", n)
	}
}

func TestSync_PullNotFoundKeepsLocal(t *testing.T) {
	h := startEngine(t, nil)
	h.e.AddPoints(10)
	if h.e.FetchLatestProgress(context.Background()) {
		t.Error("pull of a missing record should report false")
	}
	if p := h.e.Snapshot().Points; p != 10 {
		t.Errorf("local points = %d, want 10", p)
	}
}

func TestSync_PullFailureKeepsLocal(t *testing.T) {
	h := startEngine(t, nil)
	h.e.AddPoints(10)
	h.store.SetFetchErr(errors.New("timeout"))
	if h.e.FetchLatestProgress(context.Background()) {
		t.Error("failed pull should report false")
	}
	if p := h.e.Snapshot().Points; p != 10 {
		t.Errorf("local points = %d, want 10", p)
	}
}

func TestSync_ManualPullRateLimited(t *testing.T) {
	h := startEngine(t, seeded(func(s *progress.Snapshot) { s.Points = 40 }))
	ctx := context.Background()

	if !h.e.FetchLatestProgress(ctx) {
		t.Fatal("first pull should succeed")
	}
	if h.e.FetchLatestProgress(ctx) {
		t.Error("second pull inside the floor should be skipped")
	}
	h.clock.Advance(4 * time.Second)
	if h.e.FetchLatestProgress(ctx) {
		t.Error("pull at 4s should still be skipped")
	}
	h.clock.Advance(time.Second)
	if !h.e.FetchLatestProgress(ctx) {
		t.Error("pull at 5s should go through")
	}
	// Hydration plus two manual pulls.
	if n := h.store.Fetches(); n != 3 {
		t.Errorf("Fetches() = %d, want 3", n)
	}
}

func TestSync_PeriodicPull(t *testing.T) {
	h := startEngine(t, nil)
	remote := seeded(func(s *progress.Snapshot) {
		s.Points = 300
		s.Level = 3
	})
	if err := h.store.Put(testUser, remote); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	h.clock.Advance(10*time.Minute - time.Second)
	if p := h.e.Snapshot().Points; p != 0 {
		t.Fatalf("pulled before the interval: points = %d", p)
	}
	h.clock.Advance(time.Second)
	if p := h.e.Snapshot().Points; p != 300 {
		t.Errorf("points after interval pull = %d, want 300", p)
	}
}

func TestSync_UnknownRemoteHoldsPushes(t *testing.T) {
	mem := store.NewMemory()
	mem.SetFetchErr(errors.New("connection refused"))
	h := startEngineWith(t, mem, mem)

	h.e.AddPoints(10)
	h.clock.Advance(5 * time.Second)
	if h.e.SyncToDatabase(context.Background()) {
		t.Error("push before the remote copy is known should be refused")
	}
	if n := mem.Persists(); n != 0 {
		t.Fatalf("Persists() = %d, want 0", n)
	}

	mem.SetFetchErr(nil)
	h.e.FetchLatestProgress(context.Background()) // not found, remote now known
	if !h.e.SyncStatus().RemoteKnown {
		t.Fatal("remote should be known after a not-found pull")
	}
	h.e.AddPoints(1)
	h.clock.Advance(2 * time.Second)
	if n := mem.Persists(); n != 1 {
		t.Errorf("Persists() = %d, want 1", n)
	}
}

func TestSync_TokenReachesStore(t *testing.T) {
	mem := store.NewMemory()
	ts := &tokenStore{Memory: mem}
	h := startEngineWith(t, ts, mem)

	h.e.AddPoints(5)
	h.e.SyncToDatabase(context.Background())
	if got := ts.token.Load(); got != "token" {
		t.Errorf("store saw token %v, want %q", got, "token")
	}
}

func TestClose_CancelsTimers(t *testing.T) {
	h := startEngine(t, nil)
	h.e.AddPoints(10)
	if n := h.clock.Pending(); n != 3 {
		t.Fatalf("Pending() = %d, want sweep, pull and debounce", n)
	}

	h.e.Close()
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("Pending() = %d after Close, want 0", n)
	}
	h.clock.Advance(time.Hour)
	if n := h.store.Persists(); n != 0 {
		t.Errorf("Persists() = %d after Close, want 0", n)
	}
	if h.e.SyncToDatabase(context.Background()) {
		t.Error("SyncToDatabase after Close should fail")
	}
	h.e.Close()
}

func TestClose_DiscardsInFlightPull(t *testing.T) {
	mem := store.NewMemory()
	gs := &gatedStore{Memory: mem, entered: make(chan struct{}), release: make(chan struct{})}
	h := startEngineWith(t, gs, mem)

	remote := seeded(func(s *progress.Snapshot) { s.Points = 900; s.Level = 6 })
	if err := mem.Put(testUser, remote); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	gs.gate.Store(true)

	done := make(chan bool)
	go func() { done <- h.e.FetchLatestProgress(context.Background()) }()
	<-gs.entered
	h.e.Close()
	close(gs.release)

	if <-done {
		t.Error("pull completing after Close should be discarded")
	}
	if p := h.e.Snapshot().Points; p != 0 {
		t.Errorf("points = %d, stale pull wrote into a closed engine", p)
	}
}

// gatedStore blocks Fetch while gate is set, until release is closed.
type gatedStore struct {
	*store.Memory
	gate    atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Fetch(ctx context.Context, userID string) (*progress.Snapshot, error) {
	if g.gate.Load() {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.Memory.Fetch(ctx, userID)
}

// tokenStore records the bearer token it was called with.
type tokenStore struct {
	*store.Memory
	token atomic.Value
}

func (s *tokenStore) Persist(ctx context.Context, userID string, snap *progress.Snapshot) error {
	if tok, ok := auth.TokenFromContext(ctx); ok {
		s.token.Store(tok)
	}
	return s.Memory.Persist(ctx, userID, snap)
}
