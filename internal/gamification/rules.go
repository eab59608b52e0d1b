package gamification

import (
	"sort"
	"time"

	"github.com/studyquest/backend/internal/progress"
)

// RewardKind identifies what a RewardEvent granted.
type RewardKind string

const (
	KindBadge       RewardKind = "badge"
	KindQuest       RewardKind = "quest"
	KindAchievement RewardKind = "achievement"
	KindLevel       RewardKind = "level"
)

// RewardEvent records one grant. Every unlock and level-up produces exactly
// one event, which makes grants individually auditable.
type RewardEvent struct {
	Kind   RewardKind `json:"kind"`
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Points int        `json:"points"` // points actually applied by this grant
	Level  int        `json:"level,omitempty"`
	At     time.Time  `json:"at"`
}

// Rule is a standing predicate: it is re-checked after every mutation and
// unlocks its target the first time Condition holds.
type Rule struct {
	ID   string
	Kind RewardKind
	// Condition reports whether the target should be granted given a snapshot.
	Condition func(*progress.Snapshot) bool
}

// RuleEngine grants badges, quests and achievements exactly once.
type RuleEngine struct {
	ledger *Ledger
	rules  []Rule
}

// NewRuleEngine creates an engine with the standing rule set, sorted by ID
// so that simultaneous unlocks are granted in a fixed order.
func NewRuleEngine(ledger *Ledger) *RuleEngine {
	rules := buildRules()
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return &RuleEngine{ledger: ledger, rules: rules}
}

// Rules returns a copy of the standing rule set.
func (r *RuleEngine) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Evaluate checks every standing rule against s and grants the ones that
// newly hold. It returns one event per grant.
func (r *RuleEngine) Evaluate(s *progress.Snapshot, now time.Time) []RewardEvent {
	var events []RewardEvent
	for _, rule := range r.rules {
		if !rule.Condition(s) {
			continue
		}
		var (
			ev RewardEvent
			ok bool
		)
		switch rule.Kind {
		case KindBadge:
			ev, ok = r.EarnBadge(s, rule.ID, now)
		case KindAchievement:
			ev, ok = r.UnlockAchievement(s, rule.ID, now)
		case KindQuest:
			ev, ok = r.CompleteQuest(s, rule.ID, now)
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events
}

// EarnBadge marks the badge earned. It is a no-op returning false when the
// badge is unknown or already earned.
func (r *RuleEngine) EarnBadge(s *progress.Snapshot, id string, now time.Time) (RewardEvent, bool) {
	b := s.Badge(id)
	if b == nil || b.Earned {
		return RewardEvent{}, false
	}
	at := now.UTC()
	b.Earned = true
	b.EarnedAt = &at
	return RewardEvent{Kind: KindBadge, ID: b.ID, Name: b.Name, At: at}, true
}

// UnlockAchievement marks the achievement earned and pays its points.
// It is a no-op returning false when unknown or already earned.
func (r *RuleEngine) UnlockAchievement(s *progress.Snapshot, id string, now time.Time) (RewardEvent, bool) {
	a := s.Achievement(id)
	if a == nil || a.Earned {
		return RewardEvent{}, false
	}
	at := now.UTC()
	a.Earned = true
	a.EarnedAt = &at
	applied := r.ledger.Apply(s, a.Points)
	return RewardEvent{Kind: KindAchievement, ID: a.ID, Name: a.Name, Points: applied, At: at}, true
}

// CompleteQuest fills the quest to its target, marks it completed and pays
// its reward. It is a no-op returning false when unknown or already completed.
func (r *RuleEngine) CompleteQuest(s *progress.Snapshot, id string, now time.Time) (RewardEvent, bool) {
	q := s.Quest(id)
	if q == nil || q.Completed {
		return RewardEvent{}, false
	}
	return r.completeQuest(s, q, now), true
}

// CheckQuestProgress adds delta to the quest's progress, clamped to
// [0, Target]. When the target is reached for the first time the quest is
// completed and its reward paid in the same call. Completed quests ignore
// further progress.
func (r *RuleEngine) CheckQuestProgress(s *progress.Snapshot, id string, delta int, now time.Time) (RewardEvent, bool) {
	q := s.Quest(id)
	if q == nil || q.Completed {
		return RewardEvent{}, false
	}
	q.Progress = max(q.Progress+min(delta, q.Target-q.Progress), 0)
	if q.Progress < q.Target {
		return RewardEvent{}, false
	}
	return r.completeQuest(s, q, now), true
}

func (r *RuleEngine) completeQuest(s *progress.Snapshot, q *progress.Quest, now time.Time) RewardEvent {
	at := now.UTC()
	q.Progress = q.Target
	q.Completed = true
	q.CompletedAt = &at
	applied := r.ledger.Apply(s, q.Reward)
	return RewardEvent{Kind: KindQuest, ID: q.ID, Name: q.Name, Points: applied, At: at}
}

func buildRules() []Rule {
	return []Rule{

		// ── Badges ─────────────────────────────────────────────────────────

		{
			ID: progress.BadgePoints100, Kind: KindBadge,
			Condition: func(s *progress.Snapshot) bool { return s.Points >= 100 },
		},
		{
			ID: progress.BadgeStreak7, Kind: KindBadge,
			Condition: func(s *progress.Snapshot) bool { return s.Streak >= 7 },
		},
		{
			ID: progress.BadgeScholar, Kind: KindBadge,
			Condition: func(s *progress.Snapshot) bool { return s.Level >= 5 },
		},
		{
			ID: progress.BadgeFirstSteps, Kind: KindBadge,
			Condition: func(s *progress.Snapshot) bool { return s.TotalStudyTime > 0 },
		},

		// ── Achievements ───────────────────────────────────────────────────

		{
			ID: progress.AchievementFirstHour, Kind: KindAchievement,
			Condition: func(s *progress.Snapshot) bool { return s.TotalStudyTime >= 60 },
		},
		{
			ID: progress.AchievementTenHours, Kind: KindAchievement,
			Condition: func(s *progress.Snapshot) bool { return s.TotalStudyTime >= 600 },
		},
		{
			ID: progress.AchievementLevel10, Kind: KindAchievement,
			Condition: func(s *progress.Snapshot) bool { return s.Level >= 10 },
		},
		{
			ID: progress.AchievementMonthStreak, Kind: KindAchievement,
			Condition: func(s *progress.Snapshot) bool { return s.Streak >= 30 },
		},
	}
}
