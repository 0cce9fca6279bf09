package goals

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in selector order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted}

func (s Status) String() string {
	return string(s)
}

// Label is the human form shown on selector buttons ("in progress").
func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "not started"
	case StatusInProgress:
		return "in progress"
	case StatusCompleted:
		return "completed"
	default:
		return string(s)
	}
}

func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown status %q: %w", s, ErrValidation)
	}
	return status, nil
}

type Goal struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Pair returns the (status, progress) part of the goal.
func (g Goal) Pair() Pair {
	return Pair{Status: g.Status, Progress: g.Progress}
}

// WithPair returns a copy of g carrying p.
func (g Goal) WithPair(p Pair) Goal {
	g.Status = p.Status
	g.Progress = p.Progress
	return g
}

// Patch is a partial update. Nil fields are left to the server.
type Patch struct {
	Status   *Status `json:"status,omitempty"`
	Progress *int    `json:"progress,omitempty"`
}

// PatchFor encodes a full pair as a patch.
func PatchFor(p Pair) Patch {
	s, v := p.Status, p.Progress
	return Patch{Status: &s, Progress: &v}
}

type NewGoal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status,omitempty"`
}
