package progress

import "goaltracker/internal/goals"

type EventKind int

const (
	// EventConfirmed: the server accepted the latest intent and its pair is displayed.
	EventConfirmed EventKind = iota
	// EventUpdateFailed: the latest intent failed and the display reverted.
	EventUpdateFailed
	// EventNavigateBack: the goal was deleted and the screen must close.
	EventNavigateBack
	// EventDeleteFailed: the delete request failed; the screen stays.
	EventDeleteFailed
)

func (k EventKind) String() string {
	switch k {
	case EventConfirmed:
		return "confirmed"
	case EventUpdateFailed:
		return "update_failed"
	case EventNavigateBack:
		return "navigate_back"
	case EventDeleteFailed:
		return "delete_failed"
	default:
		return "unknown"
	}
}

// Event is a notification for the hosting screen.
type Event struct {
	Kind EventKind
	// Pair is the displayed pair after the event.
	Pair goals.Pair
	Err  error
}

type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}
