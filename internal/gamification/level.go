package gamification

import "math"

const (
	baseLevelCost = 100
	levelCostStep = 50

	// LevelUpBonus is granted each time a recomputation raises the level.
	LevelUpBonus = 100

	// levelCap bounds PointsForLevel so it fits a 32-bit int. Its
	// threshold lies well above MaxPoints.
	levelCap = 8000
)

// LevelProgress describes the player's position within the current level.
type LevelProgress struct {
	Level  int     `json:"level"`
	Points int     `json:"points"`
	Into   int     `json:"into"`   // points earned since the current level began
	Needed int     `json:"needed"` // points still missing for the next level
	Pct    float64 `json:"pct"`    // progress within current level, 0.0–1.0
}

// levelCost returns the points needed to advance from level to level+1.
//
// Cost model (escalating): 100, 150, 200, 250, … so the cumulative
// threshold to reach level N is the sum of the first N-1 costs:
//
//	level 2 at 100, level 3 at 250, level 4 at 450, level 5 at 700.
func levelCost(level int) int {
	return baseLevelCost + (level-1)*levelCostStep
}

// LevelFor returns the level reached with the given cumulative points.
// It is pure and monotonic non-decreasing in points. Points are clamped to
// [0, MaxPoints].
//
// PointsForLevel(n+1) = 25n² + 75n, so the level is 1 plus the largest n
// with 25n² + 75n <= points, solved directly and then corrected for
// floating-point rounding.
func LevelFor(points int) int {
	p := min(max(points, 0), MaxPoints)
	a, b := float64(levelCostStep)/2, float64(baseLevelCost)-float64(levelCostStep)/2
	n := int((-b + math.Sqrt(b*b+4*a*float64(p))) / (2 * a))
	for n > 0 && PointsForLevel(n+1) > p {
		n--
	}
	for PointsForLevel(n+2) <= p {
		n++
	}
	return n + 1
}

// PointsForLevel returns the cumulative points at which level begins.
// Levels beyond reach of MaxPoints are clamped first.
func PointsForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := min(level, levelCap) - 1
	return n*baseLevelCost + levelCostStep/2*n*(n-1)
}

// GetLevelProgress computes the display-ready level progress for points.
func GetLevelProgress(points int) LevelProgress {
	points = min(max(points, 0), MaxPoints)
	level := LevelFor(points)
	start := PointsForLevel(level)
	cost := levelCost(level)
	into := max(points-start, 0)
	return LevelProgress{
		Level:  level,
		Points: points,
		Into:   into,
		Needed: cost - into,
		Pct:    min(float64(into)/float64(cost), 1),
	}
}
