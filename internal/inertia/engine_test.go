package inertia

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"momentum-mouse/internal/config"
	"momentum-mouse/internal/queue"
)

// fakeTouch records every call the engine makes so tests can assert on
// gesture open/close counts and ordering without a real uinput device.
type fakeTouch struct {
	pans        []int32
	jumpOnNext  bool
	endGestures int
}

func (f *fakeTouch) EmitPan(delta int32) (bool, error) {
	f.pans = append(f.pans, delta)
	if f.jumpOnNext {
		f.jumpOnNext = false
		return true, nil
	}
	return false, nil
}

func (f *fakeTouch) EndGesture() error {
	f.endGestures++
	return nil
}

type fakeWheel struct {
	emitted []int32
}

func (f *fakeWheel) EmitWheel(value int32) error {
	f.emitted = append(f.emitted, value)
	return nil
}

func newTestEngine(cfg config.Config, touch TouchEmitter, wheel WheelEmitter) (*Engine, *fakeClock) {
	q := queue.NewScroll()
	e := New(cfg, q, wheel, touch)
	clk := &fakeClock{t: time.Unix(1000, 0)}
	e.now = clk.now
	return e, clk
}

// fakeClock lets tests advance time deterministically instead of
// depending on wall-clock scheduling.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DisplayWidth = 1920
	cfg.DisplayHeight = 1080
	// ResolutionMultiplier default (10.0) gives a 19200x10800 virtual
	// screen, a realistic high-resolution touch surface size.
	return cfg
}

func TestAdmitZeroDeltaIsNoopButRefreshesTick(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.updateInertiaLocked(0)
	require.False(t, e.active)
	require.Equal(t, clk.t, e.lastTick)
	e.mu.Unlock()
}

func TestFirstAdmissionMatchesDeltaSign(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, _ := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.updateInertiaLocked(1)
	require.True(t, e.active)
	require.Greater(t, e.velocity, 0.0)
	e.mu.Unlock()

	e2, _ := newTestEngine(cfg, touch, nil)
	e2.mu.Lock()
	e2.updateInertiaLocked(-1)
	require.True(t, e2.active)
	require.Less(t, e2.velocity, 0.0)
	e2.mu.Unlock()
}

func TestTickFrictionIsMonotoneNonIncreasingInMagnitude(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.updateInertiaLocked(5)
	e.mu.Unlock()

	last := math.Abs(e.velocity)
	for i := 0; i < 50; i++ {
		clk.advance(5 * time.Millisecond)
		_, _, _ = e.tick()
		e.mu.Lock()
		cur := math.Abs(e.velocity)
		e.mu.Unlock()
		require.LessOrEqual(t, cur, last+1e-9)
		last = cur
		if !e.active {
			break
		}
	}
}

func TestInactiveImpliesZeroVelocity(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, _ := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.stopLocked()
	require.False(t, e.active)
	require.Equal(t, 0.0, e.velocity)
	e.mu.Unlock()
}

func TestStopInertiaIsIdempotent(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, _ := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.updateInertiaLocked(3)
	e.stopLocked()
	firstVel, firstActive := e.velocity, e.active
	e.stopLocked()
	require.Equal(t, firstVel, e.velocity)
	require.Equal(t, firstActive, e.active)
	e.mu.Unlock()
}

func TestHardDirectionReversalStopsRatherThanReverses(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	for i := 0; i < 5; i++ {
		e.updateInertiaLocked(1)
		clk.advance(50 * time.Millisecond)
	}
	require.Greater(t, e.velocity, directionChangeVelocityThreshold)
	preVelocity := e.velocity

	e.updateInertiaLocked(-1)
	e.mu.Unlock()

	// A full stop means the resulting velocity comes from treating this
	// admission as the start of a new gesture, not a blend against the
	// pre-reversal magnitude.
	require.Less(t, math.Abs(e.velocity), math.Abs(preVelocity))
	require.LessOrEqual(t, e.velocity, 0.0)
}

func TestThreeInARowBuildUpExceedsLinearSum(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	for i := 0; i < 3; i++ {
		e.updateInertiaLocked(1)
		clk.advance(50 * time.Millisecond)
	}
	linearVelocityFactor := 60.0 * (cfg.Sensitivity / cfg.SensitivityDivisor)
	require.Greater(t, e.velocity, 3*linearVelocityFactor)
	e.mu.Unlock()
}

func TestBoundaryResetIgnoresThenScalesThenClears(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.boundaryResetInProgress = true
	e.lastBoundaryReset = clk.t
	clk.advance(50 * time.Millisecond)
	velBefore := e.velocity
	e.updateInertiaLocked(5)
	require.Equal(t, velBefore, e.velocity) // ignored entirely
	require.True(t, e.boundaryResetInProgress)

	clk.advance(150 * time.Millisecond) // now 200ms since reset: scaling window
	e.updateInertiaLocked(5)
	require.True(t, e.boundaryResetInProgress)

	clk.advance(200 * time.Millisecond) // now 400ms since reset: cleared
	e.updateInertiaLocked(5)
	require.False(t, e.boundaryResetInProgress)
	e.mu.Unlock()
}

func TestEngineEndsGestureExactlyOnceWhenVelocityDecaysBelowThreshold(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.updateInertiaLocked(1)
	e.mu.Unlock()

	endGestures := 0
	for i := 0; i < 1000 && e.active; i++ {
		clk.advance(5 * time.Millisecond)
		_, _, shouldEnd := e.tick()
		if shouldEnd {
			endGestures++
		}
	}
	require.Equal(t, 1, endGestures)
	require.False(t, e.active)
}

func TestDragFrictionStrictlyDecreasesVelocityEachCall(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	cfg.MouseMoveDrag = true
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.active = true
	e.velocity = 100
	e.mu.Unlock()

	last := 100.0
	stopped := false
	for i := 0; i < 10; i++ {
		clk.advance(10 * time.Millisecond)
		e.mu.Lock()
		e.applyMouseFrictionLocked(20)
		cur := math.Abs(e.velocity)
		active := e.active
		e.mu.Unlock()
		require.Less(t, cur, last)
		last = cur
		if !active {
			stopped = true
			break
		}
	}
	_ = stopped
}

func TestEscapeSignalStopsWithinOneTickAndEndsGesture(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.updateInertiaLocked(1)
	e.mu.Unlock()

	e.SignalStop()
	e.processSignals()

	require.False(t, e.active)
	require.Equal(t, 1, touch.endGestures)

	clk.advance(5 * time.Millisecond)
	e.runTick()
	require.Empty(t, touch.pans)
}

func TestRunTickRecordsBoundaryResetWhenEmitterReportsJump(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, clk := newTestEngine(cfg, touch, nil)

	e.mu.Lock()
	e.updateInertiaLocked(1)
	e.mu.Unlock()

	touch.jumpOnNext = true
	clk.advance(5 * time.Millisecond)
	e.runTick()

	e.mu.Lock()
	require.True(t, e.boundaryResetInProgress)
	require.Equal(t, clk.t, e.lastBoundaryReset)
	e.mu.Unlock()
	require.Len(t, touch.pans, 1)
}

func TestQueueOverflowLeavesExistingStateUnchanged(t *testing.T) {
	cfg := testConfig()
	touch := &fakeTouch{}
	e, _ := newTestEngine(cfg, touch, nil)

	for i := int32(0); i < queue.Capacity; i++ {
		e.Admit(i)
	}
	e.Admit(999) // must be dropped, not override the oldest pending entry

	first := <-e.queue.C()
	require.Equal(t, int32(0), first)
}
