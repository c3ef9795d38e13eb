package quiz

import "github.com/danmuck/quizlink/internal/protocol"

type EventKind uint8

const (
	EventWaitingStarted EventKind = iota + 1
	EventJoined
	EventRosterChanged
	EventQuestion
	EventPlayerAnswered
	EventRoundResolved
	EventPlayerDisconnected
	EventResult
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventWaitingStarted:
		return "waiting_started"
	case EventJoined:
		return "joined"
	case EventRosterChanged:
		return "roster_changed"
	case EventQuestion:
		return "question"
	case EventPlayerAnswered:
		return "player_answered"
	case EventRoundResolved:
		return "round_resolved"
	case EventPlayerDisconnected:
		return "player_disconnected"
	case EventResult:
		return "result"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one notification for the application. Which fields are set
// depends on Kind:
//
//	WaitingStarted, Joined     Player
//	RosterChanged, Result      Players
//	Question                   Question, Round
//	PlayerAnswered             Number
//	PlayerDisconnected         Number
//	RoundResolved              Correct (local player's answer), Choice
//	Stopped                    Err (nil on a normal end)
type Event struct {
	Kind     EventKind
	Player   Player
	Players  []Player
	Question string
	Round    int
	Number   int
	Correct  bool
	Choice   protocol.Choice
	Err      error
}
