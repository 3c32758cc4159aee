package inertia

import "time"

// direction-change threshold above which an opposite-sign delta stops
// inertia outright instead of being blended in.
const directionChangeVelocityThreshold = 10.0

// state is the single owned state record guarded by Engine.mu. The engine
// goroutine is its sole mutator; the capture goroutine only ever touches
// stopRequested / pendingFriction, through Engine.SignalStop /
// Engine.SignalFriction, which take the same lock.
type state struct {
	velocity float64
	position float64
	active   bool
	lastTick time.Time

	boundaryResetInProgress bool
	lastBoundaryReset       time.Time

	stopRequested   bool
	pendingFriction int32
}

// stopLocked zeroes velocity, position and the active flag. Callers hold
// mu. It is idempotent: calling it on an already-idle state is a no-op in
// effect, just redundant writes.
func (s *state) stopLocked() {
	s.velocity = 0
	s.position = 0
	s.active = false
	s.lastTick = time.Time{}
}
