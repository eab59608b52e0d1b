package progress

import (
	"time"
)

const (
	// DefaultDailyGoal is the daily study target in minutes for a new user.
	DefaultDailyGoal = 60

	// DateLayout is the format of Snapshot.LastStudyDate.
	DateLayout = "2006-01-02"
)

// Rarity grades a badge for display.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Snapshot is the full persisted gamification state of one user. It is the
// unit of persistence and sync: stores read and write it as a whole document.
type Snapshot struct {
	Points         int `json:"points"`
	Level          int `json:"level"`
	Streak         int `json:"streak"`
	TotalStudyTime int `json:"totalStudyTime"` // minutes
	DailyGoal      int `json:"dailyGoal"`      // minutes
	DailyProgress  int `json:"dailyProgress"`  // minutes, clamped to DailyGoal

	Badges       []Badge       `json:"badges"`
	Quests       []Quest       `json:"quests"`
	Achievements []Achievement `json:"achievements"`

	// LastStudyDate is the calendar day (DateLayout) of the most recent
	// study activity, or empty if the user never studied.
	LastStudyDate string `json:"lastStudyDate,omitempty"`
}

// Badge is a collectible marker. Badges carry no point reward.
type Badge struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earnedAt,omitempty"`
	Rarity      Rarity     `json:"rarity"`
}

// Quest is a countable goal. Progress is clamped to Target and Reward is
// paid once when the quest completes.
type Quest struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Progress    int        `json:"progress"`
	Target      int        `json:"target"`
	Reward      int        `json:"reward"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// Achievement is a one-time milestone worth Points when unlocked.
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earnedAt,omitempty"`
	Points      int        `json:"points"`
}

// PowerUp is a session-local effect. It is never part of a Snapshot.
// A zero Duration marks an instantaneous effect with no active window.
type PowerUp struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Duration   time.Duration `json:"duration"`
	Active     bool          `json:"active"`
	EndTime    *time.Time    `json:"endTime,omitempty"`
	Multiplier float64       `json:"multiplier,omitempty"`
}

// SyncKey holds the fields compared to decide whether a push is needed.
type SyncKey struct {
	Points         int
	Level          int
	Streak         int
	TotalStudyTime int
}

// New returns the snapshot of a user with no prior record: zero counters,
// level 1, the default daily goal and the full catalog unearned.
func New() *Snapshot {
	return &Snapshot{
		Level:        1,
		DailyGoal:    DefaultDailyGoal,
		Badges:       DefaultBadges(),
		Quests:       DefaultQuests(),
		Achievements: DefaultAchievements(),
	}
}

// SyncKey returns the eagerly synced fields of s.
func (s *Snapshot) SyncKey() SyncKey {
	return SyncKey{
		Points:         s.Points,
		Level:          s.Level,
		Streak:         s.Streak,
		TotalStudyTime: s.TotalStudyTime,
	}
}

// Badge returns a pointer to the badge with the given id, or nil.
func (s *Snapshot) Badge(id string) *Badge {
	for i := range s.Badges {
		if s.Badges[i].ID == id {
			return &s.Badges[i]
		}
	}
	return nil
}

// Quest returns a pointer to the quest with the given id, or nil.
func (s *Snapshot) Quest(id string) *Quest {
	for i := range s.Quests {
		if s.Quests[i].ID == id {
			return &s.Quests[i]
		}
	}
	return nil
}

// Achievement returns a pointer to the achievement with the given id, or nil.
func (s *Snapshot) Achievement(id string) *Achievement {
	for i := range s.Achievements {
		if s.Achievements[i].ID == id {
			return &s.Achievements[i]
		}
	}
	return nil
}

// Clone returns a deep copy of s. Push reads a clone so that the document
// handed to a store cannot change while it is being serialized.
func (s *Snapshot) Clone() *Snapshot {
	cp := *s
	cp.Badges = make([]Badge, len(s.Badges))
	for i, b := range s.Badges {
		b.EarnedAt = cloneTime(b.EarnedAt)
		cp.Badges[i] = b
	}
	cp.Quests = make([]Quest, len(s.Quests))
	for i, q := range s.Quests {
		q.CompletedAt = cloneTime(q.CompletedAt)
		cp.Quests[i] = q
	}
	cp.Achievements = make([]Achievement, len(s.Achievements))
	for i, a := range s.Achievements {
		a.EarnedAt = cloneTime(a.EarnedAt)
		cp.Achievements[i] = a
	}
	return &cp
}

// Normalize fills documented defaults on a decoded snapshot: nil lists,
// level and daily goal floors, clamps, and catalog entries that an older
// document does not know about yet. Earned flags are never touched.
func (s *Snapshot) Normalize() {
	if s.Level < 1 {
		s.Level = 1
	}
	if s.Points < 0 {
		s.Points = 0
	}
	if s.Streak < 0 {
		s.Streak = 0
	}
	if s.TotalStudyTime < 0 {
		s.TotalStudyTime = 0
	}
	if s.DailyGoal < 1 {
		s.DailyGoal = DefaultDailyGoal
	}
	s.DailyProgress = min(max(s.DailyProgress, 0), s.DailyGoal)

	for _, b := range DefaultBadges() {
		if s.Badge(b.ID) == nil {
			s.Badges = append(s.Badges, b)
		}
	}
	for _, q := range DefaultQuests() {
		if s.Quest(q.ID) == nil {
			s.Quests = append(s.Quests, q)
		}
	}
	for _, a := range DefaultAchievements() {
		if s.Achievement(a.ID) == nil {
			s.Achievements = append(s.Achievements, a)
		}
	}
	for i := range s.Quests {
		q := &s.Quests[i]
		q.Progress = min(max(q.Progress, 0), q.Target)
		if q.Completed {
			q.Progress = q.Target
		}
	}
}

// StudyDate formats t as a LastStudyDate value.
func StudyDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseStudyDate parses a LastStudyDate value.
func ParseStudyDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
