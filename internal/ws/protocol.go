package ws

import (
	"time"

	"github.com/studyquest/backend/internal/gamification"
	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/session"
)

// MessageType names a WebSocket notification.
type MessageType string

const (
	MsgHello         MessageType = "hello"
	MsgRewardGranted MessageType = "reward_granted"
	MsgLevelUp       MessageType = "level_up"
)

// WSMessage is the envelope of every WebSocket notification.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// HelloPayload greets a new connection with the current standing.
type HelloPayload struct {
	UserID string `json:"userId"`
	Points int    `json:"points"`
	Level  int    `json:"level"`
}

// RewardPayload describes one grant.
type RewardPayload struct {
	Kind   gamification.RewardKind `json:"kind"`
	ID     string                  `json:"id"`
	Name   string                  `json:"name"`
	Points int                     `json:"points"`
	Level  int                     `json:"level,omitempty"`
	At     time.Time               `json:"at"`
}

func messageFor(ev session.Event) WSMessage {
	t := MsgRewardGranted
	if ev.Type == session.EventLevelUp {
		t = MsgLevelUp
	}
	r := ev.Reward
	return WSMessage{
		Type: t,
		Payload: RewardPayload{
			Kind:   r.Kind,
			ID:     r.ID,
			Name:   r.Name,
			Points: r.Points,
			Level:  r.Level,
			At:     r.At,
		},
	}
}

// ── REST bodies ─────────────────────────────────────────────────────────

// OpenSessionRequest is the body of POST /api/session.
type OpenSessionRequest struct {
	UserID string `json:"userId"`
}

// ProgressResponse is the body of GET /api/progress.
type ProgressResponse struct {
	Session  session.Info               `json:"session"`
	Progress *progress.Snapshot         `json:"progress"`
	Level    gamification.LevelProgress `json:"levelProgress"`
	PowerUps []progress.PowerUp         `json:"activePowerUps"`
	Coins    int                        `json:"coinsLeft"`
	Sync     gamification.SyncStatus    `json:"sync"`
}

// MutationResponse is returned by every write endpoint.
type MutationResponse struct {
	OK        bool `json:"ok"`
	Applied   int  `json:"applied,omitempty"`
	Points    int  `json:"points"`
	Level     int  `json:"level"`
	Streak    int  `json:"streak"`
	CoinsLeft int  `json:"coinsLeft"`
}

// PointsRequest is the body of POST /api/points.
type PointsRequest struct {
	Amount int `json:"amount"`
}

// StudySessionRequest is the body of POST /api/study-session.
type StudySessionRequest struct {
	Minutes   int  `json:"minutes"`
	Completed bool `json:"completed"`
}

// QuizRequest is the body of POST /api/quiz.
type QuizRequest struct {
	Correct  int `json:"correct"`
	Wrong    int `json:"wrong"`
	Revealed int `json:"revealed"`
}

// StudyTimeRequest is the body of POST /api/study-time.
type StudyTimeRequest struct {
	Minutes int `json:"minutes"`
}

// StreakRequest is the body of POST /api/streak; Action is "increment" or "reset".
type StreakRequest struct {
	Action string `json:"action"` // "increment" or "reset"
}

// QuestProgressRequest is the body of POST /api/quests/{id}/progress.
type QuestProgressRequest struct {
	Delta int `json:"delta"`
}
