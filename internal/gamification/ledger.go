package gamification

import (
	"github.com/studyquest/backend/internal/progress"
)

// Point deltas for the study and quiz flows.
const (
	PointsPerStudyMinute = 5
	EarlyEndPenalty      = -25
	PointsPerCorrect     = 5
	PointsPerWrong       = -1
	PointsPerRevealed    = -10

	// MaxPoints is the highest balance a snapshot can hold.
	MaxPoints = progress.MaxPoints
	// MaxCount bounds the per-call minutes and quiz answer counts fed into
	// the point formulas.
	MaxCount = MaxPoints / 10
)

// Ledger applies signed point deltas to a snapshot.
type Ledger struct {
	powerUps *PowerUpScheduler
}

// NewLedger returns a ledger that consults powerUps for the earning multiplier.
func NewLedger(powerUps *PowerUpScheduler) *Ledger {
	return &Ledger{powerUps: powerUps}
}

// Apply adds amount to s.Points and returns the amount actually applied.
// Positive amounts are scaled by an active double-points power-up; negative
// amounts never are. Points are clamped to [0, MaxPoints] and the excess
// is dropped.
func (l *Ledger) Apply(s *progress.Snapshot, amount int) int {
	if amount > 0 {
		amount = scale(amount, l.powerUps.Multiplier(progress.PowerUpDoublePoints))
	}
	return l.Grant(s, amount)
}

// Grant adds amount without any multiplier. It is used for the flat
// level-up bonus.
func (l *Ledger) Grant(s *progress.Snapshot, amount int) int {
	before := min(max(s.Points, 0), MaxPoints)
	switch {
	case amount > MaxPoints-before:
		s.Points = MaxPoints
	case amount < -before:
		s.Points = 0
	default:
		s.Points = before + amount
	}
	return s.Points - before
}

// scale multiplies a positive amount, saturating at MaxPoints.
func scale(amount int, mult float64) int {
	if mult == 1 {
		return amount
	}
	if float64(amount) >= MaxPoints/mult {
		return MaxPoints
	}
	return int(float64(amount) * mult)
}

// QuizDelta returns the single combined delta for a finished quiz. Counts
// are clamped to [0, MaxCount].
func QuizDelta(correct, wrong, revealed int) int {
	return clampCount(correct)*PointsPerCorrect +
		clampCount(wrong)*PointsPerWrong +
		clampCount(revealed)*PointsPerRevealed
}

// StudySessionDelta returns the delta for a finished study session.
func StudySessionDelta(minutes int, completed bool) int {
	if !completed {
		return EarlyEndPenalty
	}
	return clampCount(minutes) * PointsPerStudyMinute
}

func clampCount(n int) int {
	return min(max(n, 0), MaxCount)
}
