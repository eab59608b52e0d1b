package gamification

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/progress"
)

// ProgressStore is the remote copy of a user's snapshot. Persist always
// overwrites the whole document.
type ProgressStore interface {
	Fetch(ctx context.Context, userID string) (*progress.Snapshot, error)
	Persist(ctx context.Context, userID string, s *progress.Snapshot) error
}

// AuthProvider supplies the session token. It is consulted before every
// store call.
type AuthProvider interface {
	CurrentToken() (string, bool)
}

// RewardCallback is invoked for every grant, outside the engine lock.
type RewardCallback func(ev RewardEvent)

// Options tunes the engine's timers and per-session budgets.
type Options struct {
	Debounce      time.Duration // push debounce, restarted per change
	PushFloor     time.Duration // minimum gap between successful pushes
	StartupGrace  time.Duration // pushes suppressed after hydration
	PullInterval  time.Duration
	PullFloor     time.Duration // minimum gap between pulls
	SweepInterval time.Duration
	StoreTimeout  time.Duration
	CoinsPerQuiz  int
	DailyGoal     int            // daily goal for users with no stored record
	Location      *time.Location // calendar used for streak days
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		Debounce:      2 * time.Second,
		PushFloor:     15 * time.Second,
		StartupGrace:  3 * time.Second,
		PullInterval:  10 * time.Minute,
		PullFloor:     5 * time.Second,
		SweepInterval: time.Second,
		StoreTimeout:  10 * time.Second,
		CoinsPerQuiz:  3,
		DailyGoal:     progress.DefaultDailyGoal,
		Location:      time.Local,
	}
}

// Engine owns one user's progress for the lifetime of an authenticated
// session. Every mutation and timer callback is serialised by mu; store
// calls run outside the lock on a cloned snapshot.
type Engine struct {
	userID string
	store  ProgressStore
	auth   AuthProvider
	clock  Clock
	opts   Options
	log    *log.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	snap     *progress.Snapshot
	powerUps *PowerUpScheduler
	ledger   *Ledger
	rules    *RuleEngine
	coins    int
	events   []RewardEvent // grants not yet dispatched
	onReward RewardCallback

	timers *scheduler
	sync   syncState
}

// NewEngine creates an engine holding a default snapshot. Call Start to
// hydrate it from the store and arm the timers.
func NewEngine(userID string, store ProgressStore, auth AuthProvider, clock Clock, opts Options) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	powerUps := NewPowerUpScheduler()
	ledger := NewLedger(powerUps)
	snap := progress.New()
	if opts.DailyGoal > 0 {
		snap.DailyGoal = opts.DailyGoal
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		userID:   userID,
		store:    store,
		auth:     auth,
		clock:    clock,
		opts:     opts,
		log:      log.WithField("user", userID),
		ctx:      ctx,
		cancel:   cancel,
		snap:     snap,
		powerUps: powerUps,
		ledger:   ledger,
		rules:    NewRuleEngine(ledger),
		coins:    opts.CoinsPerQuiz,
		timers:   newScheduler(clock),
	}
	e.sync.lastPushKey = snap.SyncKey()
	return e
}

// UserID returns the user this engine belongs to.
func (e *Engine) UserID() string { return e.userID }

// OnReward registers the grant callback. Must be called before Start.
func (e *Engine) OnReward(cb RewardCallback) {
	e.mu.Lock()
	e.onReward = cb
	e.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the current progress.
func (e *Engine) Snapshot() *progress.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone()
}

// LevelProgress returns display data for the current points.
func (e *Engine) LevelProgress() LevelProgress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return GetLevelProgress(e.snap.Points)
}

// PowerUps returns copies of all power-ups in catalog order.
func (e *Engine) PowerUps() []progress.PowerUp {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.powerUps.List()
}

// ── Points ──────────────────────────────────────────────────────────────

// AddPoints applies a signed delta and returns the amount actually applied.
func (e *Engine) AddPoints(amount int) int {
	var applied int
	e.mutate(func(s *progress.Snapshot, _ time.Time) {
		applied = e.ledger.Apply(s, amount)
	})
	return applied
}

// AddStudySessionPoints scores a finished study session: 5 points per
// minute when completed, a flat penalty when ended early.
func (e *Engine) AddStudySessionPoints(minutes int, completed bool) int {
	return e.AddPoints(StudySessionDelta(minutes, completed))
}

// AddQuizPoints scores a finished quiz in one delta and advances the quiz
// quests. A quiz with no wrong answers and no reveals earns quiz-whiz.
func (e *Engine) AddQuizPoints(correct, wrong, revealed int) int {
	correct, wrong, revealed = max(correct, 0), max(wrong, 0), max(revealed, 0)
	var applied int
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		applied = e.ledger.Apply(s, QuizDelta(correct, wrong, revealed))
		if correct > 0 {
			e.record(e.rules.CheckQuestProgress(s, progress.QuestQuizStreak, correct, now))
		}
		if correct > 0 && wrong == 0 && revealed == 0 {
			e.record(e.rules.EarnBadge(s, progress.BadgeQuizWhiz, now))
			e.record(e.rules.CheckQuestProgress(s, progress.QuestPerfectQuiz, 1, now))
		}
	})
	return applied
}

// ── Power-ups ───────────────────────────────────────────────────────────

// BuyPowerUp spends PowerUpCost points and activates id. It returns false,
// leaving everything unchanged, when id is unknown or points are short.
func (e *Engine) BuyPowerUp(id string) bool {
	bought := false
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		if !e.powerUps.Known(id) || s.Points < progress.PowerUpCost {
			return
		}
		e.ledger.Apply(s, -progress.PowerUpCost)
		if err := e.powerUps.Activate(id, now); err != nil {
			e.log.WithError(err).Warn("Activating purchased power-up failed")
			return
		}
		bought = true
	})
	if bought {
		e.log.WithField("powerup", id).Debug("Power-up bought")
	}
	return bought
}

// ActivatePowerUp switches id on without charging for it.
func (e *Engine) ActivatePowerUp(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.powerUps.Activate(id, e.clock.Now())
}

// IsPowerUpActive reports whether id is currently on.
func (e *Engine) IsPowerUpActive(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.powerUps.IsActive(id)
}

// ── Streak and study time ───────────────────────────────────────────────

// IncrementStreak records today as a study day. The streak grows by one
// when the previous study day was yesterday, restarts at 1 after a gap, and
// is unchanged on a second call the same day. It returns the new streak.
func (e *Engine) IncrementStreak() int {
	var streak int
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		e.incrementStreak(s, now)
		streak = s.Streak
	})
	return streak
}

// ResetStreak sets the streak to zero.
func (e *Engine) ResetStreak() {
	e.mutate(func(s *progress.Snapshot, _ time.Time) {
		s.Streak = 0
		s.LastStudyDate = ""
	})
}

func (e *Engine) incrementStreak(s *progress.Snapshot, now time.Time) {
	local := now.In(e.opts.Location)
	today := progress.StudyDate(local)
	if s.LastStudyDate == today && s.Streak > 0 {
		return
	}
	if s.LastStudyDate == progress.StudyDate(local.AddDate(0, 0, -1)) {
		s.Streak++
	} else {
		s.Streak = 1
	}
	s.LastStudyDate = today
}

// AddStudyTime logs minutes of study: total and daily progress grow, today
// counts toward the streak and the study quests advance.
func (e *Engine) AddStudyTime(minutes int) {
	if minutes <= 0 {
		return
	}
	minutes = min(minutes, MaxCount)
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		s.TotalStudyTime = min(s.TotalStudyTime, math.MaxInt-minutes) + minutes
		s.DailyProgress = min(s.DailyProgress+minutes, s.DailyGoal)
		e.incrementStreak(s, now)
		e.record(e.rules.CheckQuestProgress(s, progress.QuestDailyStudy, minutes, now))
		e.record(e.rules.CheckQuestProgress(s, progress.QuestWeeklyMarathon, minutes, now))
	})
}

// AddFlashcardReviews advances the flashcard quest by n reviewed cards.
func (e *Engine) AddFlashcardReviews(n int) bool {
	return e.CheckQuestProgress(progress.QuestFlashcardReview, n)
}

// RollOverDay starts a new calendar day: daily progress resets and a
// streak whose last study day is older than yesterday is broken.
func (e *Engine) RollOverDay() {
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		s.DailyProgress = 0
		if s.LastStudyDate == "" {
			return
		}
		yesterday := progress.StudyDate(now.In(e.opts.Location).AddDate(0, 0, -1))
		if s.LastStudyDate < yesterday {
			s.Streak = 0
		}
	})
}

// ── Unlocks ─────────────────────────────────────────────────────────────

// CompleteQuest completes id and pays its reward. It returns false when id
// is unknown or already completed.
func (e *Engine) CompleteQuest(id string) bool {
	var ok bool
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		ok = e.record(e.rules.CompleteQuest(s, id, now))
	})
	return ok
}

// CompleteChallenge completes a quest of the challenge category.
func (e *Engine) CompleteChallenge(id string) bool {
	var ok bool
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		q := s.Quest(id)
		if q == nil || q.Category != progress.CategoryChallenge {
			return
		}
		ok = e.record(e.rules.CompleteQuest(s, id, now))
	})
	return ok
}

// CheckQuestProgress advances id by delta and reports whether the quest
// completed in this call.
func (e *Engine) CheckQuestProgress(id string, delta int) bool {
	var ok bool
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		ok = e.record(e.rules.CheckQuestProgress(s, id, delta, now))
	})
	return ok
}

// EarnBadge grants badge id once.
func (e *Engine) EarnBadge(id string) bool {
	var ok bool
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		ok = e.record(e.rules.EarnBadge(s, id, now))
	})
	return ok
}

// UnlockAchievement grants achievement id once and pays its points.
func (e *Engine) UnlockAchievement(id string) bool {
	var ok bool
	e.mutate(func(s *progress.Snapshot, now time.Time) {
		ok = e.record(e.rules.UnlockAchievement(s, id, now))
	})
	return ok
}

// ── Coins ───────────────────────────────────────────────────────────────

// UseCoin spends one reveal coin of the current quiz.
func (e *Engine) UseCoin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.coins <= 0 {
		return false
	}
	e.coins--
	return true
}

// ResetCoins restores the per-quiz coin budget.
func (e *Engine) ResetCoins() {
	e.mu.Lock()
	e.coins = e.opts.CoinsPerQuiz
	e.mu.Unlock()
}

// CoinsLeft returns the coins remaining for the current quiz.
func (e *Engine) CoinsLeft() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coins
}

// ── Mutation plumbing ───────────────────────────────────────────────────

// mutate runs fn under the lock, settles levels and standing rules,
// schedules a push if the sync key moved, and dispatches grants after
// unlocking.
func (e *Engine) mutate(fn func(s *progress.Snapshot, now time.Time)) {
	e.mu.Lock()
	now := e.clock.Now()
	fn(e.snap, now)
	e.settle(now)
	e.notifyChange()
	events, cb := e.takeEvents()
	e.mu.Unlock()

	dispatch(cb, events)
}

// settle brings the snapshot to a stable point: level fixed point, then
// standing rules once in id order, repeated while rules keep granting.
func (e *Engine) settle(now time.Time) {
	for {
		e.settleLevel(now)
		granted := e.rules.Evaluate(e.snap, now)
		if len(granted) == 0 {
			return
		}
		e.events = append(e.events, granted...)
	}
}

// settleLevel moves the stored level to LevelFor(points). Every level
// gained pays a flat bonus, which may itself cross the next threshold.
// Losing points lowers the level without taking bonuses back.
func (e *Engine) settleLevel(now time.Time) {
	s := e.snap
	for {
		target := LevelFor(s.Points)
		if target <= s.Level {
			s.Level = target
			return
		}
		s.Level = target
		applied := e.ledger.Grant(s, LevelUpBonus)
		e.events = append(e.events, RewardEvent{
			Kind:   KindLevel,
			ID:     fmt.Sprintf("level-%d", target),
			Name:   fmt.Sprintf("Level %d", target),
			Points: applied,
			Level:  target,
			At:     now.UTC(),
		})
	}
}

func (e *Engine) record(ev RewardEvent, ok bool) bool {
	if ok {
		e.events = append(e.events, ev)
	}
	return ok
}

func (e *Engine) takeEvents() ([]RewardEvent, RewardCallback) {
	events := e.events
	e.events = nil
	return events, e.onReward
}

func dispatch(cb RewardCallback, events []RewardEvent) {
	if cb == nil {
		return
	}
	for _, ev := range events {
		cb(ev)
	}
}
