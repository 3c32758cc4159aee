// Package inertia implements the kinetic-scroll physics engine: it holds
// the velocity/position state, admits scroll deltas from the capture
// loop, integrates friction on a timer, and drives whichever emitter
// (wheel or multitouch) the configuration selects.
package inertia

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"momentum-mouse/internal/config"
	"momentum-mouse/internal/queue"
)

// WheelEmitter renders engine output as relative wheel ticks.
type WheelEmitter interface {
	EmitWheel(value int32) error
}

// TouchEmitter renders engine output as two-finger touchpad pan events.
// jumped reports that the emitter performed a boundary jump while handling
// this call — the engine, not the emitter, owns boundaryResetInProgress,
// so the emitter signals it back rather than reaching into engine state.
type TouchEmitter interface {
	EmitPan(delta int32) (jumped bool, err error)
	EndGesture() error
}

// Engine owns the inertia state and the goroutine that advances it.
type Engine struct {
	cfg   config.Config
	queue *queue.Scroll
	wheel WheelEmitter
	touch TouchEmitter

	wake chan struct{}

	mu sync.Mutex
	state

	axisScreenSize float64
	now            func() time.Time
}

// New builds an Engine for cfg. Exactly one of wheel/touch is used,
// depending on cfg.UseMultitouch; the other may be nil.
func New(cfg config.Config, q *queue.Scroll, wheel WheelEmitter, touch TouchEmitter) *Engine {
	w, h := cfg.VirtualScreenSize()
	axisSize := h
	if cfg.ScrollAxis == config.AxisHorizontal {
		axisSize = w
	}
	return &Engine{
		cfg:            cfg,
		queue:          q,
		wheel:          wheel,
		touch:          touch,
		wake:           make(chan struct{}, 1),
		axisScreenSize: axisSize,
		now:            time.Now,
	}
}

// SignalStop requests that inertia come to a full stop by the next tick.
// Safe to call from the capture goroutine.
func (e *Engine) SignalStop() {
	e.mu.Lock()
	e.stopRequested = true
	e.mu.Unlock()
	e.poke()
}

// SignalFriction records a mouse-motion drag-friction request of the given
// magnitude. Magnitudes are not summed across calls, only the largest
// pending one is kept until the engine processes it.
func (e *Engine) SignalFriction(magnitude int32) {
	if magnitude <= 0 {
		return
	}
	e.mu.Lock()
	if magnitude > e.pendingFriction {
		e.pendingFriction = magnitude
	}
	e.mu.Unlock()
	e.poke()
}

func (e *Engine) poke() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Admit enqueues a captured scroll delta for processing by Run. It never
// blocks; on overflow the delta is dropped (queue.Scroll handles and logs
// that).
func (e *Engine) Admit(delta int32) {
	e.queue.Enqueue(delta)
}

// Run drives the engine loop until ctx is canceled. It must run on its own
// goroutine; it is the only goroutine that emits synthesized events (the
// capture loop separately writes passthrough events to the wheel device).
func (e *Engine) Run(ctx context.Context) {
	period := time.Second / time.Duration(e.cfg.RefreshRateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case delta := <-e.queue.C():
			e.drainAndAdmit(delta)
		case <-e.wake:
		case <-ticker.C:
		}

		e.processSignals()
		e.runTick()
	}
}

// drainAndAdmit processes delta and any further deltas already buffered,
// so a burst of wheel notches is admitted before the next tick runs.
func (e *Engine) drainAndAdmit(delta int32) {
	e.admitOne(delta)
	for {
		select {
		case d := <-e.queue.C():
			e.admitOne(d)
		default:
			return
		}
	}
}

func (e *Engine) admitOne(delta int32) {
	e.mu.Lock()
	e.updateInertiaLocked(delta)
	e.mu.Unlock()
}

// processSignals handles a pending stop or friction request. Any resulting
// gesture teardown happens outside the lock.
func (e *Engine) processSignals() {
	e.mu.Lock()
	stop := e.stopRequested
	frictionMag := e.pendingFriction
	e.stopRequested = false
	e.pendingFriction = 0

	endGesture := false
	if stop && e.active {
		e.stopLocked()
		endGesture = e.cfg.UseMultitouch
	}
	if frictionMag > 0 && e.active && e.cfg.MouseMoveDrag {
		e.applyMouseFrictionLocked(frictionMag)
	}
	e.mu.Unlock()

	if endGesture && e.touch != nil {
		if err := e.touch.EndGesture(); err != nil {
			log.Errorf("inertia: end gesture on stop: %v", err)
		}
	}
}

// runTick performs one integration tick and emits the resulting event, if
// any, outside the state lock.
func (e *Engine) runTick() {
	emitVal, shouldEmit, endGesture := e.tick()

	if endGesture && e.touch != nil {
		if err := e.touch.EndGesture(); err != nil {
			log.Errorf("inertia: end gesture on threshold stop: %v", err)
		}
		return
	}
	if !shouldEmit || emitVal == 0 {
		return
	}

	if e.cfg.UseMultitouch {
		if e.touch == nil {
			return
		}
		jumped, err := e.touch.EmitPan(emitVal)
		if err != nil {
			log.Errorf("inertia: emit pan: %v", err)
			e.mu.Lock()
			e.stopLocked()
			e.mu.Unlock()
			return
		}
		if jumped {
			e.mu.Lock()
			e.boundaryResetInProgress = true
			e.lastBoundaryReset = e.now()
			e.mu.Unlock()
		}
		return
	}

	if e.wheel == nil {
		return
	}
	emitWheel := e.wheel.EmitWheel
	if e.cfg.ScrollAxis == config.AxisHorizontal {
		if hw, ok := e.wheel.(interface{ EmitHWheel(int32) error }); ok {
			emitWheel = hw.EmitHWheel
		}
	}
	if err := emitWheel(emitVal); err != nil {
		log.Errorf("inertia: emit wheel: %v", err)
		e.mu.Lock()
		e.stopLocked()
		e.mu.Unlock()
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	wasActive := e.active
	e.stopLocked()
	e.mu.Unlock()
	if wasActive && e.cfg.UseMultitouch && e.touch != nil {
		_ = e.touch.EndGesture()
	}
}

// tick integrates one friction step: it decays velocity exponentially
// toward zero, stops the gesture once velocity drops below the configured
// threshold, and otherwise returns the position delta (multitouch) or
// rounded velocity (wheel) to emit. It takes and releases mu itself.
func (e *Engine) tick() (emitVal int32, shouldEmit bool, shouldEndGesture bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return 0, false, false
	}

	now := e.now()
	var dt float64
	if !e.lastTick.IsZero() {
		dt = now.Sub(e.lastTick).Seconds()
	}
	if dt > 0.1 {
		dt = 0.1
	}
	e.lastTick = now

	var k float64
	if e.cfg.UseMultitouch {
		k = 0.6 * e.cfg.Friction / math.Sqrt(e.cfg.Sensitivity)
	} else {
		k = 2.0 * e.cfg.Friction
	}
	e.velocity *= math.Exp(-k * dt)

	if math.Abs(e.velocity) < e.cfg.InertiaStopThreshold {
		e.stopLocked()
		return 0, false, e.cfg.UseMultitouch
	}

	if e.cfg.UseMultitouch {
		positionDelta := e.velocity * dt
		e.position += positionDelta
		emitVal = int32(math.Round(positionDelta))
	} else {
		emitVal = int32(math.Round(e.velocity))
	}
	return emitVal, emitVal != 0, false
}

// updateInertiaLocked folds one captured scroll delta into velocity and
// position: it blends the new contribution against the existing velocity
// (70% new target, 30% carried-over), boosts same-direction consecutive
// notches so repeated scrolling builds up faster than a linear sum, and
// stops outright on a hard direction reversal rather than subtracting into
// it. Callers hold mu.
func (e *Engine) updateInertiaLocked(delta int32) {
	if e.cfg.ScrollDirection == config.DirectionNatural {
		delta = -delta
	}
	if delta == 0 {
		e.lastTick = e.now()
		return
	}

	now := e.now()

	if e.boundaryResetInProgress {
		sinceReset := now.Sub(e.lastBoundaryReset)
		switch {
		case sinceReset < 100*time.Millisecond:
			if e.cfg.DebugLevel > 0 {
				log.Debugf("inertia: ignoring delta during boundary reset (%s)", sinceReset)
			}
			e.lastTick = now
			return
		case sinceReset < 300*time.Millisecond:
			scale := float64(sinceReset-100*time.Millisecond) / float64(200*time.Millisecond)
			delta = int32(float64(delta) * scale)
			if e.cfg.DebugLevel > 0 {
				log.Debugf("inertia: scaling delta during boundary reset by %.2f", scale)
			}
			if delta == 0 {
				e.lastTick = now
				return
			}
		default:
			e.boundaryResetInProgress = false
		}
	}

	var dt float64
	if !e.lastTick.IsZero() {
		dt = now.Sub(e.lastTick).Seconds()
	}
	e.lastTick = now

	if e.active && math.Abs(e.velocity) > directionChangeVelocityThreshold && signsDiffer(e.velocity, float64(delta)) {
		if e.cfg.DebugLevel > 0 {
			log.Debugf("inertia: direction change, velocity=%.2f delta=%d", e.velocity, delta)
		}
		e.stopLocked()
	}

	wasActive := e.active

	velocityFactor := 60.0 * (e.cfg.Sensitivity / e.cfg.SensitivityDivisor)
	sameSignContinuation := wasActive && sameSign(e.velocity, float64(delta)) && dt < 0.3
	if sameSignContinuation {
		velocityFactor = (60.0 + math.Abs(e.velocity)/3.0) *
			(e.cfg.Sensitivity / e.cfg.SensitivityDivisor) * e.cfg.Multiplier
	}

	target := e.velocity + float64(delta)*velocityFactor
	e.velocity = 0.7*target + 0.3*e.velocity

	maxVelocity := e.axisScreenSize * e.cfg.MaxVelocityFactor
	if e.velocity > maxVelocity {
		e.velocity = maxVelocity
	} else if e.velocity < -maxVelocity {
		e.velocity = -maxVelocity
	}

	posFactor := 40.0 * (e.cfg.Sensitivity / e.cfg.SensitivityDivisor)
	posMultiplier := 1.0
	if sameSignContinuation {
		posMultiplier = e.cfg.Multiplier
	}
	e.position += float64(delta) * posFactor * posMultiplier

	e.active = true
}

// applyMouseFrictionLocked bleeds velocity in proportion to how hard the
// mouse is being dragged, capped at a fixed fraction per call so a single
// big jerk can't kill a gesture outright. Callers hold mu.
func (e *Engine) applyMouseFrictionLocked(magnitude int32) {
	f := (0.01 + 0.0001*float64(magnitude)) * e.cfg.Friction / math.Sqrt(e.cfg.Sensitivity)
	maxF := 0.05 * e.cfg.Friction / math.Sqrt(e.cfg.Sensitivity)
	if f > maxF {
		f = maxF
	}
	e.velocity *= 1.0 - f
	if math.Abs(e.velocity) < e.cfg.InertiaStopThreshold {
		e.stopLocked()
	}
	e.lastTick = e.now()
}

func signsDiffer(a, b float64) bool {
	return (a > 0 && b < 0) || (a < 0 && b > 0)
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
