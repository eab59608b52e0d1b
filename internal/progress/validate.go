package progress

import (
	"errors"
	"fmt"
)

// ErrInvalidSnapshot is returned when a snapshot breaks a data-model rule.
// Stores reject such documents instead of writing them.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// MaxPoints caps a point balance. It fits a 32-bit int so that point and
// level arithmetic cannot overflow on any platform.
const MaxPoints = 1_000_000_000

// Validate checks the data-model rules of s. It does not check that Level
// matches the point ledger; that is the engine's job.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil", ErrInvalidSnapshot)
	}
	switch {
	case s.Points < 0 || s.Points > MaxPoints:
		return fmt.Errorf("%w: points %d outside [0, %d]", ErrInvalidSnapshot, s.Points, MaxPoints)
	case s.Level < 1:
		return fmt.Errorf("%w: level %d < 1", ErrInvalidSnapshot, s.Level)
	case s.Streak < 0:
		return fmt.Errorf("%w: streak %d < 0", ErrInvalidSnapshot, s.Streak)
	case s.TotalStudyTime < 0:
		return fmt.Errorf("%w: totalStudyTime %d < 0", ErrInvalidSnapshot, s.TotalStudyTime)
	case s.DailyGoal < 1:
		return fmt.Errorf("%w: dailyGoal %d < 1", ErrInvalidSnapshot, s.DailyGoal)
	case s.DailyProgress < 0 || s.DailyProgress > s.DailyGoal:
		return fmt.Errorf("%w: dailyProgress %d outside [0, %d]", ErrInvalidSnapshot, s.DailyProgress, s.DailyGoal)
	}

	seen := make(map[string]bool)
	for _, b := range s.Badges {
		if err := checkID("badge", b.ID, seen); err != nil {
			return err
		}
	}
	for _, q := range s.Quests {
		if err := checkID("quest", q.ID, seen); err != nil {
			return err
		}
		if q.Target < 1 {
			return fmt.Errorf("%w: quest %s target %d < 1", ErrInvalidSnapshot, q.ID, q.Target)
		}
		if q.Progress < 0 || q.Progress > q.Target {
			return fmt.Errorf("%w: quest %s progress %d outside [0, %d]", ErrInvalidSnapshot, q.ID, q.Progress, q.Target)
		}
		if q.Completed && q.Progress != q.Target {
			return fmt.Errorf("%w: quest %s completed at %d/%d", ErrInvalidSnapshot, q.ID, q.Progress, q.Target)
		}
	}
	for _, a := range s.Achievements {
		if err := checkID("achievement", a.ID, seen); err != nil {
			return err
		}
	}
	if s.LastStudyDate != "" {
		if _, err := ParseStudyDate(s.LastStudyDate); err != nil {
			return fmt.Errorf("%w: lastStudyDate %q", ErrInvalidSnapshot, s.LastStudyDate)
		}
	}
	return nil
}

func checkID(kind, id string, seen map[string]bool) error {
	if id == "" {
		return fmt.Errorf("%w: %s with empty id", ErrInvalidSnapshot, kind)
	}
	key := kind + "/" + id
	if seen[key] {
		return fmt.Errorf("%w: duplicate %s %s", ErrInvalidSnapshot, kind, id)
	}
	seen[key] = true
	return nil
}
