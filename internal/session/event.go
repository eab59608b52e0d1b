package session

import "github.com/studyquest/backend/internal/gamification"

// EventType classifies notifications sent to a user's clients.
type EventType int

const (
	EventReward  EventType = iota // badge, quest or achievement granted
	EventLevelUp                  // level raised, bonus paid
)

func (t EventType) String() string {
	switch t {
	case EventReward:
		return "reward_granted"
	case EventLevelUp:
		return "level_up"
	}
	return "unknown"
}

// Event carries one grant from a session's engine to observers.
type Event struct {
	Type      EventType
	SessionID string
	UserID    string
	Reward    gamification.RewardEvent
}

func eventFor(s *Session, ev gamification.RewardEvent) Event {
	t := EventReward
	if ev.Kind == gamification.KindLevel {
		t = EventLevelUp
	}
	return Event{Type: t, SessionID: s.ID, UserID: s.UserID, Reward: ev}
}
