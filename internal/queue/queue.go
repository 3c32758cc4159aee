// Package queue implements the bounded producer/consumer ring linking
// capture to the inertia engine: the capture goroutine enqueues scroll
// deltas, the inertia engine goroutine dequeues them in FIFO order. A
// buffered channel is the idiomatic Go expression of "ring buffer + mutex +
// condvar" here — it is already a bounded, thread-safe FIFO with blocking
// and non-blocking send built in, so there is no separate mutex to
// hand-roll.
package queue

import "github.com/charmbracelet/log"

// Capacity is the maximum number of pending scroll deltas. Past this, new
// deltas are dropped (and logged) rather than overwriting older ones.
const Capacity = 64

// Scroll is the bounded delta queue linking capture to the inertia engine.
type Scroll struct {
	ch chan int32
}

// NewScroll creates an empty queue at Capacity.
func NewScroll() *Scroll {
	return &Scroll{ch: make(chan int32, Capacity)}
}

// Enqueue adds delta to the tail of the queue. On overflow the delta is
// dropped and a debug line is emitted; it never blocks the capture loop.
func (q *Scroll) Enqueue(delta int32) {
	select {
	case q.ch <- delta:
	default:
		log.Debugf("queue: scroll queue full (cap=%d), dropping delta=%d", Capacity, delta)
	}
}

// C exposes the underlying channel for the engine's select loop so it can
// wait on a scroll delta and a signal wakeup at the same time without an
// extra layer of indirection.
func (q *Scroll) C() <-chan int32 {
	return q.ch
}
