package goals

import "fmt"

const (
	MinProgress = 0
	MaxProgress = 100
)

// Pair is the displayed (status, progress) combination of a goal.
type Pair struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

func (p Pair) String() string {
	return fmt.Sprintf("(%s, %d)", p.Status, p.Progress)
}

// Valid reports whether the status is the one implied by the progress.
func (p Pair) Valid() bool {
	if p.Progress < MinProgress || p.Progress > MaxProgress {
		return false
	}
	return p.Status == StatusFor(p.Progress)
}

func ClampProgress(v int) int {
	if v < MinProgress {
		return MinProgress
	}
	if v > MaxProgress {
		return MaxProgress
	}
	return v
}

// StatusFor derives the status from a progress value.
func StatusFor(progress int) Status {
	switch progress = ClampProgress(progress); {
	case progress == MinProgress:
		return StatusNotStarted
	case progress == MaxProgress:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// CanonicalProgress is the value a status snaps the progress to.
func CanonicalProgress(s Status) int {
	switch s {
	case StatusInProgress:
		return 50
	case StatusCompleted:
		return MaxProgress
	default:
		return MinProgress
	}
}

func PairForProgress(progress int) Pair {
	progress = ClampProgress(progress)
	return Pair{Status: StatusFor(progress), Progress: progress}
}

// PairForStatus snaps the progress to the canonical value for s. With
// preserve set, an in_progress selection keeps a current progress that is
// already strictly between 0 and 100.
func PairForStatus(s Status, current Pair, preserve bool) Pair {
	if preserve && s == StatusInProgress && current.Status == StatusInProgress && current.Valid() {
		return current
	}
	return Pair{Status: s, Progress: CanonicalProgress(s)}
}

// ApplyPatch canonicalises a partial update against the current pair.
func ApplyPatch(current Pair, patch Patch) (Pair, error) {
	if patch.Status != nil && !patch.Status.IsValid() {
		return current, fmt.Errorf("unknown status %q: %w", *patch.Status, ErrValidation)
	}
	if patch.Progress != nil && (*patch.Progress < MinProgress || *patch.Progress > MaxProgress) {
		return current, fmt.Errorf("progress %d out of range: %w", *patch.Progress, ErrValidation)
	}

	switch {
	case patch.Status != nil && patch.Progress != nil:
		next := Pair{Status: *patch.Status, Progress: *patch.Progress}
		if !next.Valid() {
			return current, fmt.Errorf("status %s contradicts progress %d: %w", next.Status, next.Progress, ErrValidation)
		}
		return next, nil
	case patch.Status != nil:
		return PairForStatus(*patch.Status, current, false), nil
	case patch.Progress != nil:
		return PairForProgress(*patch.Progress), nil
	default:
		return current, nil
	}
}
