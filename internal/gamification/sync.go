package gamification

import (
	"context"
	"errors"
	"time"

	"github.com/studyquest/backend/internal/auth"
	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/store"
)

// Timer names owned by the engine.
const (
	timerSweep        = "sweep"
	timerPushDebounce = "pushDebounce"
	timerPullInterval = "pullInterval"
)

// scheduler keeps the engine's named one-shot timers. Re-arming a name
// stops its previous timer; a callback that was already running when it
// was replaced sees a stale generation and does nothing. Guarded by the
// engine lock.
type scheduler struct {
	clock  Clock
	timers map[string]*timerSlot
}

type timerSlot struct {
	timer Timer
	gen   uint64
}

func newScheduler(clock Clock) *scheduler {
	return &scheduler{clock: clock, timers: make(map[string]*timerSlot)}
}

func (s *scheduler) arm(name string, d time.Duration, fire func(gen uint64)) {
	slot, ok := s.timers[name]
	if !ok {
		slot = &timerSlot{}
		s.timers[name] = slot
	}
	if slot.timer != nil {
		slot.timer.Stop()
	}
	slot.gen++
	gen := slot.gen
	slot.timer = s.clock.AfterFunc(d, func() { fire(gen) })
}

// claim reports whether gen is the live arming of name, and marks it fired.
func (s *scheduler) claim(name string, gen uint64) bool {
	slot, ok := s.timers[name]
	if !ok || slot.gen != gen || slot.timer == nil {
		return false
	}
	slot.timer = nil
	return true
}

func (s *scheduler) armed(name string) bool {
	slot, ok := s.timers[name]
	return ok && slot.timer != nil
}

func (s *scheduler) stop(name string) {
	slot, ok := s.timers[name]
	if !ok {
		return
	}
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
	}
	slot.gen++
}

func (s *scheduler) stopAll() {
	for name := range s.timers {
		s.stop(name)
	}
}

// syncState is the runtime side of reconciliation. Nothing here is persisted.
type syncState struct {
	started bool
	closed  bool

	// remoteKnown is set once the remote copy has been read (or found
	// missing). Pushes wait for it so defaults never overwrite real data.
	remoteKnown bool
	loadedAt    time.Time

	pushing     bool
	lastPushAt  time.Time
	lastPushKey progress.SyncKey

	pullGen    uint64
	lastPullAt time.Time // last pull attempt, manual or scheduled
	lastError  string
}

// SyncStatus is a read-only view of the sync coordinator.
type SyncStatus struct {
	RemoteKnown bool      `json:"remoteKnown"`
	PushPending bool      `json:"pushPending"`
	LastPushAt  time.Time `json:"lastPushAt"`
	LastPullAt  time.Time `json:"lastPullAt"`
	LastError   string    `json:"lastError,omitempty"`
}

// SyncStatus reports the coordinator state.
func (e *Engine) SyncStatus() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return SyncStatus{
		RemoteKnown: e.sync.remoteKnown,
		PushPending: e.timers.armed(timerPushDebounce),
		LastPushAt:  e.sync.lastPushAt,
		LastPullAt:  e.sync.lastPullAt,
		LastError:   e.sync.lastError,
	}
}

// Start hydrates the snapshot from the store and arms the sweep and pull
// timers. Hydration failures are logged; the engine keeps its defaults and
// holds pushes until a later pull reaches the store.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.sync.started || e.sync.closed {
		e.mu.Unlock()
		return
	}
	e.sync.started = true
	e.armSweep()
	e.armPull()
	e.mu.Unlock()

	if err := e.pull(ctx, pullHydrate); err != nil && !errors.Is(err, store.ErrNotFound) {
		e.log.WithError(err).Warn("Initial progress load failed")
	}

	e.mu.Lock()
	e.sync.loadedAt = e.clock.Now()
	e.mu.Unlock()
}

// Close tears the engine down: all three timers are cancelled and results
// of store calls still in flight are discarded. Close does not push.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sync.closed {
		return
	}
	e.sync.closed = true
	e.timers.stopAll()
	e.cancel()
}

// SyncToDatabase pushes the current snapshot now, bypassing the debounce,
// the startup grace and the push floor; those gate scheduled pushes only.
// It still waits for hydration. It reports whether the store accepted it.
func (e *Engine) SyncToDatabase(ctx context.Context) bool {
	e.mu.Lock()
	if err := e.canPush(); err != nil {
		e.mu.Unlock()
		e.log.WithError(err).Debug("Manual push skipped")
		return false
	}
	e.timers.stop(timerPushDebounce)
	snap := e.snap.Clone()
	e.sync.pushing = true
	e.mu.Unlock()

	return e.push(ctx, snap) == nil
}

// FetchLatestProgress pulls the remote snapshot now, at most once per pull
// floor. It reports whether the local state was replaced.
func (e *Engine) FetchLatestProgress(ctx context.Context) bool {
	err := e.pull(ctx, pullManual)
	if err != nil {
		e.log.WithError(err).Debug("Manual pull did not replace progress")
	}
	return err == nil
}

// notifyChange arms the push debounce when the sync key differs from the
// last successful push. Called with the lock held after every mutation.
func (e *Engine) notifyChange() {
	if !e.sync.started || e.sync.closed {
		return
	}
	if e.snap.SyncKey() == e.sync.lastPushKey {
		return
	}
	e.timers.arm(timerPushDebounce, e.opts.Debounce, e.onDebounce)
}

func (e *Engine) onDebounce(gen uint64) {
	e.mu.Lock()
	if e.sync.closed || !e.timers.claim(timerPushDebounce, gen) {
		e.mu.Unlock()
		return
	}
	if e.snap.SyncKey() == e.sync.lastPushKey {
		e.mu.Unlock()
		return
	}
	if e.sync.pushing {
		e.timers.arm(timerPushDebounce, e.opts.Debounce, e.onDebounce)
		e.mu.Unlock()
		return
	}
	if err := e.canPush(); err != nil {
		e.mu.Unlock()
		e.log.WithError(err).Debug("Scheduled push skipped")
		return
	}
	if wait := e.pushWait(e.clock.Now()); wait > 0 {
		e.timers.arm(timerPushDebounce, wait, e.onDebounce)
		e.mu.Unlock()
		return
	}
	snap := e.snap.Clone()
	e.sync.pushing = true
	e.mu.Unlock()

	e.push(e.ctx, snap)
}

// canPush reports why a push may not start. Called with the lock held.
func (e *Engine) canPush() error {
	switch {
	case e.sync.closed:
		return ErrClosed
	case !e.sync.remoteKnown:
		return errRemoteUnknown
	case e.sync.pushing:
		return errPushInFlight
	}
	return nil
}

var (
	errRemoteUnknown = errors.New("remote progress not loaded yet")
	errPushInFlight  = errors.New("push already in flight")
	errStalePull     = errors.New("pull superseded")
)

// pushWait returns how long a scheduled push must still wait for the
// startup grace and the push floor.
func (e *Engine) pushWait(now time.Time) time.Duration {
	var wait time.Duration
	if !e.sync.loadedAt.IsZero() {
		wait = e.sync.loadedAt.Add(e.opts.StartupGrace).Sub(now)
	} else {
		wait = e.opts.StartupGrace
	}
	if !e.sync.lastPushAt.IsZero() {
		wait = max(wait, e.sync.lastPushAt.Add(e.opts.PushFloor).Sub(now))
	}
	return wait
}

// push sends snap to the store. The caller has set pushing.
func (e *Engine) push(ctx context.Context, snap *progress.Snapshot) error {
	err := e.withToken(ctx, func(ctx context.Context) error {
		return e.store.Persist(ctx, e.userID, snap)
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sync.pushing = false
	if err != nil {
		e.sync.lastError = err.Error()
		e.logSyncError(err, "Progress push failed")
		return err
	}
	if e.sync.closed {
		return ErrClosed
	}
	e.sync.lastPushAt = e.clock.Now()
	e.sync.lastPushKey = snap.SyncKey()
	e.sync.lastError = ""
	if !e.timers.armed(timerPushDebounce) {
		e.notifyChange()
	}
	e.log.WithField("points", snap.Points).Debug("Progress pushed")
	return nil
}

func (e *Engine) armPull() {
	e.timers.arm(timerPullInterval, e.opts.PullInterval, func(gen uint64) {
		e.mu.Lock()
		if e.sync.closed || !e.timers.claim(timerPullInterval, gen) {
			e.mu.Unlock()
			return
		}
		e.armPull()
		e.mu.Unlock()

		if err := e.pull(e.ctx, pullScheduled); err != nil && !errors.Is(err, store.ErrNotFound) {
			e.logSyncError(err, "Scheduled progress pull failed")
		}
	})
}

func (e *Engine) armSweep() {
	e.timers.arm(timerSweep, e.opts.SweepInterval, func(gen uint64) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.sync.closed || !e.timers.claim(timerSweep, gen) {
			return
		}
		for _, id := range e.powerUps.Sweep(e.clock.Now()) {
			e.log.WithField("powerup", id).Debug("Power-up expired")
		}
		e.armSweep()
	})
}

type pullKind int

const (
	pullHydrate pullKind = iota
	pullScheduled
	pullManual
)

// pull fetches the remote snapshot and replaces local progress with it.
// Manual pulls are held to the pull floor; hydration does not count
// against it. Results landing after Close or
// after a newer pull are dropped. A missing remote record keeps the local
// snapshot and returns store.ErrNotFound.
func (e *Engine) pull(ctx context.Context, kind pullKind) error {
	e.mu.Lock()
	if e.sync.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	now := e.clock.Now()
	if kind == pullManual && !e.sync.lastPullAt.IsZero() && now.Sub(e.sync.lastPullAt) < e.opts.PullFloor {
		e.mu.Unlock()
		return ErrRateLimited
	}
	if kind != pullHydrate {
		e.sync.lastPullAt = now
	}
	e.sync.pullGen++
	gen := e.sync.pullGen
	e.mu.Unlock()

	var remote *progress.Snapshot
	err := e.withToken(ctx, func(ctx context.Context) error {
		var err error
		remote, err = e.store.Fetch(ctx, e.userID)
		return err
	})

	e.mu.Lock()
	if e.sync.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if gen != e.sync.pullGen {
		e.mu.Unlock()
		return errStalePull
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		e.sync.remoteKnown = true
		e.mu.Unlock()
		return err
	case err != nil:
		e.sync.lastError = err.Error()
		e.mu.Unlock()
		return err
	}

	e.snap = remote
	e.sync.remoteKnown = true
	e.sync.lastPushKey = remote.SyncKey()
	e.sync.lastError = ""
	e.timers.stop(timerPushDebounce)
	e.settle(e.clock.Now())
	e.notifyChange()
	events, cb := e.takeEvents()
	e.mu.Unlock()

	e.log.WithField("points", remote.Points).Debug("Progress pulled")
	dispatch(cb, events)
	return nil
}

// withToken runs a store call with the session token in ctx and the store
// timeout applied.
func (e *Engine) withToken(ctx context.Context, call func(ctx context.Context) error) error {
	tok, ok := e.auth.CurrentToken()
	if !ok {
		return ErrUnauthenticated
	}
	ctx = auth.WithToken(ctx, tok)
	if e.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.StoreTimeout)
		defer cancel()
	}
	return call(ctx)
}

func (e *Engine) logSyncError(err error, msg string) {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, context.Canceled):
		e.log.WithError(err).Debug(msg)
	case errors.Is(err, progress.ErrInvalidSnapshot):
		e.log.WithError(err).Error(msg)
	default:
		e.log.WithError(err).Warn(msg)
	}
}
