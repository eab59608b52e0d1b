package progress

import "time"

// Badge IDs granted by standing predicates.
const (
	BadgePoints100  = "points-100"
	BadgeStreak7    = "streak-7"
	BadgeScholar    = "scholar"
	BadgeFirstSteps = "first-steps"
	BadgeQuizWhiz   = "quiz-whiz"
)

// Quest categories.
const (
	CategoryStudy      = "study"
	CategoryQuiz       = "quiz"
	CategoryFlashcards = "flashcards"
	CategoryChallenge  = "challenge"
)

// Quest IDs.
const (
	QuestDailyStudy      = "daily-study"
	QuestQuizStreak      = "quiz-streak"
	QuestFlashcardReview = "flashcard-review"
	QuestWeeklyMarathon  = "weekly-marathon"
	QuestPerfectQuiz     = "perfect-quiz"
)

// Achievement IDs.
const (
	AchievementFirstHour   = "first-hour"
	AchievementTenHours    = "ten-hours"
	AchievementLevel10     = "level-10"
	AchievementMonthStreak = "month-streak"
)

// Power-up IDs.
const (
	PowerUpDoublePoints  = "double-points"
	PowerUpHintRevealer  = "hint-revealer"
	PowerUpFocusMode     = "focus-mode"
	PowerUpTimeExtension = "time-extension"
)

// PowerUpCost is the flat point price of any power-up.
const PowerUpCost = 100

// DefaultBadges returns the badge catalog, all unearned.
func DefaultBadges() []Badge {
	return []Badge{
		{
			ID: BadgeFirstSteps, Name: "First Steps",
			Description: "Log your first study session",
			Icon:        "👣", Rarity: RarityCommon,
		},
		{
			ID: BadgePoints100, Name: "Century",
			Description: "Collect 100 points",
			Icon:        "💯", Rarity: RarityCommon,
		},
		{
			ID: BadgeQuizWhiz, Name: "Quiz Whiz",
			Description: "Finish a quiz without a wrong answer",
			Icon:        "🧠", Rarity: RarityRare,
		},
		{
			ID: BadgeStreak7, Name: "On Fire",
			Description: "Study seven days in a row",
			Icon:        "🔥", Rarity: RarityEpic,
		},
		{
			ID: BadgeScholar, Name: "Scholar",
			Description: "Reach level 5",
			Icon:        "🎓", Rarity: RarityLegendary,
		},
	}
}

// DefaultQuests returns the quest catalog with no progress.
func DefaultQuests() []Quest {
	return []Quest{

		// ── Core ───────────────────────────────────────────────────────────

		{
			ID: QuestDailyStudy, Name: "Study Hour",
			Description: "Log 60 minutes of study",
			Icon:        "📚", Target: 60, Reward: 50, Category: CategoryStudy,
		},
		{
			ID: QuestQuizStreak, Name: "Quiz Streak",
			Description: "Answer 10 quiz questions correctly",
			Icon:        "✅", Target: 10, Reward: 30, Category: CategoryQuiz,
		},
		{
			ID: QuestFlashcardReview, Name: "Card Shark",
			Description: "Review 20 flashcards",
			Icon:        "🃏", Target: 20, Reward: 25, Category: CategoryFlashcards,
		},

		// ── Challenges ─────────────────────────────────────────────────────

		{
			ID: QuestWeeklyMarathon, Name: "Marathon Week",
			Description: "Study 300 minutes in total",
			Icon:        "🏃", Target: 300, Reward: 150, Category: CategoryChallenge,
		},
		{
			ID: QuestPerfectQuiz, Name: "Flawless",
			Description: "Score a perfect quiz",
			Icon:        "🎯", Target: 1, Reward: 75, Category: CategoryChallenge,
		},
	}
}

// DefaultAchievements returns the achievement catalog, all locked.
func DefaultAchievements() []Achievement {
	return []Achievement{
		{
			ID: AchievementFirstHour, Name: "First Hour",
			Description: "Study for 60 minutes in total",
			Icon:        "⏱️", Points: 25,
		},
		{
			ID: AchievementTenHours, Name: "Ten Hours",
			Description: "Study for 600 minutes in total",
			Icon:        "⌛", Points: 100,
		},
		{
			ID: AchievementLevel10, Name: "Double Digits",
			Description: "Reach level 10",
			Icon:        "🚀", Points: 200,
		},
		{
			ID: AchievementMonthStreak, Name: "Unbreakable",
			Description: "Keep a 30 day study streak",
			Icon:        "🗓️", Points: 300,
		},
	}
}

// DefaultPowerUps returns the power-up catalog, all inactive.
func DefaultPowerUps() []PowerUp {
	return []PowerUp{
		{ID: PowerUpDoublePoints, Name: "Double Points", Duration: 10 * time.Minute, Multiplier: 2},
		{ID: PowerUpHintRevealer, Name: "Hint Revealer", Duration: 5 * time.Minute},
		{ID: PowerUpFocusMode, Name: "Focus Mode", Duration: 25 * time.Minute},
		{ID: PowerUpTimeExtension, Name: "Time Extension"},
	}
}
