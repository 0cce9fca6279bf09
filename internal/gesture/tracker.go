// Package gesture turns pointer interaction over a horizontal track into a
// progress percentage. It has no side effects beyond the callback it is given.
package gesture

import "math"

// Percent maps x on a track of width w to an integer in [0,100].
// A non-positive or NaN width yields 0.
func Percent(x, w float64) int {
	if !(w > 0) || math.IsInf(w, 0) {
		return 0
	}
	if math.IsNaN(x) || x < 0 {
		x = 0
	}
	if x > w {
		x = w
	}
	return int(math.Round(x / w * 100))
}

// Tracker follows one gesture at a time: a press, any number of drag
// updates, then an end. It is not safe for concurrent use; call it from the
// goroutine that receives the input events.
type Tracker struct {
	width    float64
	onChange func(int)
	active   bool
	last     int
}

// NewTracker creates a tracker for a track of the given pixel width.
// onChange receives every computed value.
func NewTracker(width float64, onChange func(int)) *Tracker {
	return &Tracker{width: width, onChange: onChange}
}

// SetWidth updates the track width after a layout change. Later presses and
// drags are measured against it.
func (t *Tracker) SetWidth(width float64) {
	t.width = width
}

// Width is the current track width.
func (t *Tracker) Width() float64 {
	return t.width
}

// PressAt starts a gesture and emits exactly one value for the press point.
func (t *Tracker) PressAt(x float64) int {
	t.active = true
	return t.emit(x)
}

// DragUpdate emits the value for originX+dx. Updates outside an active
// gesture are dropped and return false.
func (t *Tracker) DragUpdate(originX, dx float64) (int, bool) {
	if !t.active {
		return t.last, false
	}
	return t.emit(originX + dx), true
}

// DragEnd finishes the gesture. Further drag updates are ignored until the
// next PressAt.
func (t *Tracker) DragEnd() {
	t.active = false
}

// Active reports whether a gesture is in progress.
func (t *Tracker) Active() bool {
	return t.active
}

// Last is the most recently emitted value.
func (t *Tracker) Last() int {
	return t.last
}

func (t *Tracker) emit(x float64) int {
	t.last = Percent(x, t.width)
	if t.onChange != nil {
		t.onChange(t.last)
	}
	return t.last
}
