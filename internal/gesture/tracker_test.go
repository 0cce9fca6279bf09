package gesture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent_InsideTrack(t *testing.T) {
	const w = 300.0
	for x := 0.0; x <= w; x += 0.5 {
		got := Percent(x, w)
		assert.Equal(t, int(math.Round(x/w*100)), got, "x=%v", x)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
	}
}

func TestPercent_Clamps(t *testing.T) {
	assert.Equal(t, 0, Percent(-1, 300))
	assert.Equal(t, 0, Percent(-5000, 300))
	assert.Equal(t, 100, Percent(301, 300))
	assert.Equal(t, 100, Percent(math.Inf(1), 300))
	assert.Equal(t, 0, Percent(math.NaN(), 300))
}

func TestPercent_BadWidth(t *testing.T) {
	for _, w := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		assert.Equal(t, 0, Percent(150, w), "width %v", w)
	}
}

func TestTracker_TapEmitsOnce(t *testing.T) {
	var got []int
	tr := NewTracker(300, func(v int) { got = append(got, v) })

	v := tr.PressAt(150)
	tr.DragEnd()

	assert.Equal(t, 50, v)
	assert.Equal(t, []int{50}, got)
	assert.False(t, tr.Active())
}

func TestTracker_DragAcrossTrack(t *testing.T) {
	var got []int
	tr := NewTracker(300, func(v int) { got = append(got, v) })

	tr.PressAt(0)
	for dx := 10.0; dx <= 300; dx += 10 {
		_, ok := tr.DragUpdate(0, dx)
		require.True(t, ok)
	}
	tr.DragEnd()

	require.NotEmpty(t, got)
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 100, got[len(got)-1])
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "not monotonic at %d", i)
	}
}

func TestTracker_DragOvershootClamps(t *testing.T) {
	tr := NewTracker(300, nil)
	tr.PressAt(280)

	v, ok := tr.DragUpdate(280, 200)
	assert.True(t, ok)
	assert.Equal(t, 100, v)

	v, _ = tr.DragUpdate(280, -900)
	assert.Equal(t, 0, v)
}

func TestTracker_IgnoresDragOutsideGesture(t *testing.T) {
	calls := 0
	tr := NewTracker(300, func(int) { calls++ })

	_, ok := tr.DragUpdate(0, 150)
	assert.False(t, ok)

	tr.PressAt(30)
	tr.DragEnd()
	v, ok := tr.DragUpdate(30, 100)
	assert.False(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, calls)
}

func TestTracker_ZeroWidth(t *testing.T) {
	tr := NewTracker(0, nil)
	assert.Equal(t, 0, tr.PressAt(40))

	tr.SetWidth(80)
	assert.Equal(t, 50, tr.PressAt(40))
}

func TestTracker_ResizeMidGesture(t *testing.T) {
	var got []int
	tr := NewTracker(200, func(v int) { got = append(got, v) })
	assert.False(t, tr.Active())

	tr.PressAt(100)
	assert.True(t, tr.Active())

	tr.SetWidth(400)
	assert.Equal(t, 400.0, tr.Width())
	v, ok := tr.DragUpdate(100, 100)
	assert.True(t, ok)
	assert.Equal(t, 50, v)

	tr.DragEnd()
	assert.False(t, tr.Active())
	assert.Equal(t, []int{50, 50}, got)
}
