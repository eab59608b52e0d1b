package progress

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	s := New()
	if s.Level != 1 {
		t.Errorf("Level = %d, want 1", s.Level)
	}
	if s.DailyGoal != DefaultDailyGoal {
		t.Errorf("DailyGoal = %d, want %d", s.DailyGoal, DefaultDailyGoal)
	}
	if len(s.Badges) != len(DefaultBadges()) {
		t.Errorf("len(Badges) = %d, want %d", len(s.Badges), len(DefaultBadges()))
	}
	for _, id := range []string{BadgePoints100, BadgeStreak7, BadgeScholar} {
		if s.Badge(id) == nil {
			t.Errorf("badge %q missing from catalog", id)
		}
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() on a new snapshot: %v", err)
	}
}

func TestClone_IsDeep(t *testing.T) {
	s := New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.Badges[0].Earned = true
	s.Badges[0].EarnedAt = &now

	cp := s.Clone()
	cp.Points = 500
	cp.Badges[0].Name = "changed"
	*cp.Badges[0].EarnedAt = now.Add(time.Hour)
	cp.Quests[0].Progress = 10

	if s.Points != 0 {
		t.Errorf("original Points changed to %d", s.Points)
	}
	if s.Badges[0].Name == "changed" {
		t.Error("original badge name changed through clone")
	}
	if !s.Badges[0].EarnedAt.Equal(now) {
		t.Errorf("original EarnedAt changed to %v", s.Badges[0].EarnedAt)
	}
	if s.Quests[0].Progress != 0 {
		t.Errorf("original quest progress changed to %d", s.Quests[0].Progress)
	}
}

func TestNormalize(t *testing.T) {
	s := &Snapshot{
		Points:        -5,
		DailyGoal:     0,
		DailyProgress: 500,
		Quests: []Quest{
			{ID: QuestDailyStudy, Target: 60, Progress: 90},
			{ID: "legacy", Target: 5, Progress: 2, Completed: true},
		},
	}
	s.Normalize()

	if s.Points != 0 {
		t.Errorf("Points = %d, want 0", s.Points)
	}
	if s.Level != 1 {
		t.Errorf("Level = %d, want 1", s.Level)
	}
	if s.DailyGoal != DefaultDailyGoal {
		t.Errorf("DailyGoal = %d, want %d", s.DailyGoal, DefaultDailyGoal)
	}
	if s.DailyProgress != DefaultDailyGoal {
		t.Errorf("DailyProgress = %d, want %d", s.DailyProgress, DefaultDailyGoal)
	}
	if q := s.Quest(QuestDailyStudy); q.Progress != 60 {
		t.Errorf("daily-study progress = %d, want 60", q.Progress)
	}
	if q := s.Quest("legacy"); q.Progress != 5 {
		t.Errorf("completed legacy quest progress = %d, want 5", q.Progress)
	}
	if s.Badge(BadgeScholar) == nil {
		t.Error("Normalize should merge missing catalog badges")
	}
	if s.Achievement(AchievementFirstHour) == nil {
		t.Error("Normalize should merge missing catalog achievements")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() after Normalize: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"negative points", func(s *Snapshot) { s.Points = -1 }},
		{"points above cap", func(s *Snapshot) { s.Points = MaxPoints + 1 }},
		{"level zero", func(s *Snapshot) { s.Level = 0 }},
		{"negative streak", func(s *Snapshot) { s.Streak = -2 }},
		{"daily goal zero", func(s *Snapshot) { s.DailyGoal = 0 }},
		{"daily progress over goal", func(s *Snapshot) { s.DailyProgress = s.DailyGoal + 1 }},
		{"quest over target", func(s *Snapshot) { s.Quests[0].Progress = s.Quests[0].Target + 1 }},
		{"quest completed early", func(s *Snapshot) { s.Quests[0].Completed = true }},
		{"duplicate badge", func(s *Snapshot) { s.Badges = append(s.Badges, s.Badges[0]) }},
		{"empty achievement id", func(s *Snapshot) { s.Achievements[0].ID = "" }},
		{"bad study date", func(s *Snapshot) { s.LastStudyDate = "yesterday" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			tt.mutate(s)
			err := s.Validate()
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("Validate() = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
}

func TestSnapshot_JSONFieldNames(t *testing.T) {
	s := New()
	s.Points = 42
	s.TotalStudyTime = 90
	s.LastStudyDate = "2026-03-01"

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"points", "level", "streak", "totalStudyTime", "dailyGoal", "dailyProgress", "badges", "quests", "achievements", "lastStudyDate"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("JSON is missing %q", key)
		}
	}
}

func TestSyncKey(t *testing.T) {
	s := New()
	s.Points, s.Level, s.Streak, s.TotalStudyTime = 120, 2, 3, 45
	s.DailyProgress = 10

	want := SyncKey{Points: 120, Level: 2, Streak: 3, TotalStudyTime: 45}
	if got := s.SyncKey(); got != want {
		t.Errorf("SyncKey() = %+v, want %+v", got, want)
	}
}
