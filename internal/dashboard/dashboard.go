// Package dashboard summarises a user's goals for the home screen.
package dashboard

import (
	"math"

	"goaltracker/internal/goals"
)

type Stats struct {
	Total           int `json:"total"`
	Completed       int `json:"completed"`
	InProgress      int `json:"inProgress"`
	NotStarted      int `json:"notStarted"`
	AverageProgress int `json:"averageProgress"`
}

// Compute counts goals by the status their progress implies and averages
// the clamped progress.
func Compute(list []goals.Goal) Stats {
	var st Stats
	sum := 0
	for _, g := range list {
		st.Total++
		switch goals.StatusFor(g.Progress) {
		case goals.StatusCompleted:
			st.Completed++
		case goals.StatusInProgress:
			st.InProgress++
		default:
			st.NotStarted++
		}
		sum += goals.ClampProgress(g.Progress)
	}
	if st.Total > 0 {
		st.AverageProgress = int(math.Round(float64(sum) / float64(st.Total)))
	}
	return st
}

// CompletionRate is the share of completed goals in percent.
func (s Stats) CompletionRate() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Completed) * 100 / float64(s.Total)))
}
