// Package capture reads the physical scroll-wheel device via evdev,
// classifies each event, and drives the inertia engine and wheel emitter
// accordingly: scroll deltas are admitted to the engine, stop/friction
// requests are signaled, and relative X/Y motion and left/right/middle
// button events are passed through to the virtual wheel device. Other
// events are not forwarded.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"

	"momentum-mouse/internal/config"
	"momentum-mouse/internal/emit"
)

// evdev event type/code constants the loop classifies on. Named locally
// rather than imported from the library's own (differently-cased)
// constants, to keep the classification switch self-documenting.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	relX      = 0x00
	relY      = 0x01
	relWheel  = 0x08
	relHWheel = 0x06

	keyEscape = 1
	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112

	// motionStopMagnitude is the drag-friction magnitude above which a
	// mouse motion event also signals a full stop, treating a sharp jerk
	// of the mouse as deliberate cancellation rather than just drag.
	motionStopMagnitude = 50
	// selectTimeoutMillis bounds how long one select() call blocks, so
	// the loop can observe ctx.Done() promptly.
	selectTimeoutMillis = 100
)

// Engine is the subset of inertia.Engine the capture loop drives.
type Engine interface {
	Admit(delta int32)
	SignalStop()
	SignalFriction(magnitude int32)
}

// Loop owns the evdev handle and runs the capture/classify/dispatch
// cycle on its own goroutine.
type Loop struct {
	dev    *evdev.InputDevice
	cfg    config.Config
	engine Engine
	wheel  *emit.Wheel
}

// New opens cfg.DevicePath, optionally grabs it exclusively, and returns
// a Loop ready to Run.
func New(cfg config.Config, engine Engine, wheel *emit.Wheel) (*Loop, error) {
	dev, err := evdev.Open(cfg.DevicePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", emit.ErrSetup, cfg.DevicePath, err)
	}
	if cfg.GrabDevice {
		if err := dev.Grab(); err != nil {
			dev.File.Close()
			return nil, fmt.Errorf("%w: grab %s: %v", emit.ErrSetup, cfg.DevicePath, err)
		}
	}
	return &Loop{dev: dev, cfg: cfg, engine: engine, wheel: wheel}, nil
}

// Run blocks until ctx is canceled or an unrecoverable read error occurs.
// It is the only goroutine that reads from the evdev handle.
func (l *Loop) Run(ctx context.Context) error {
	fd := int(l.dev.File.Fd())

	for {
		if ctx.Err() != nil {
			return nil
		}

		ready, err := l.waitReadable(fd)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return fmt.Errorf("capture: select: %w", err)
		}
		if !ready {
			continue // timeout: loop back and recheck ctx
		}

		events, err := l.dev.Read()
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return fmt.Errorf("capture: read: %w", err)
		}
		for _, ev := range events {
			l.dispatch(ev)
		}
	}
}

// waitReadable blocks up to selectTimeoutMillis for fd to become
// readable, returning false on timeout.
func (l *Loop) waitReadable(fd int) (bool, error) {
	var fdSet unix.FdSet
	fdSet.Bits[fd/64] |= 1 << (uint(fd) % 64)
	timeout := unix.Timeval{Sec: 0, Usec: selectTimeoutMillis * 1000}
	n, err := unix.Select(fd+1, &fdSet, nil, nil, &timeout)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Loop) dispatch(ev evdev.InputEvent) {
	switch ev.Type {
	case evRel:
		l.dispatchRel(ev)
	case evKey:
		l.dispatchKey(ev)
	default:
		l.passthrough(ev)
	}
}

func (l *Loop) dispatchRel(ev evdev.InputEvent) {
	wheelCode := uint16(relWheel)
	if l.cfg.ScrollAxis == config.AxisHorizontal {
		wheelCode = relHWheel
	}

	switch ev.Code {
	case wheelCode:
		l.engine.Admit(ev.Value)
		if !l.cfg.GrabDevice {
			l.emitPassthroughZero(ev.Code)
		}
	case relX, relY:
		mag := ev.Value
		if mag < 0 {
			mag = -mag
		}
		l.engine.SignalFriction(mag)
		if mag > motionStopMagnitude {
			l.engine.SignalStop()
		}
		l.passthrough(ev)
	default:
		l.passthrough(ev)
	}
}

func (l *Loop) dispatchKey(ev evdev.InputEvent) {
	switch ev.Code {
	case keyEscape:
		if ev.Value == 1 {
			l.engine.SignalStop()
		}
		l.passthrough(ev)
	case btnLeft, btnRight, btnMiddle:
		if ev.Value == 1 {
			l.engine.SignalStop()
		}
		l.passthrough(ev)
	default:
		l.passthrough(ev)
	}
}

// emitPassthroughZero writes a zero-delta wheel event so the real device
// doesn't double-scroll when the wheel isn't exclusively grabbed.
func (l *Loop) emitPassthroughZero(code uint16) {
	var err error
	if code == relHWheel {
		err = l.wheel.EmitHWheel(0)
	} else {
		err = l.wheel.EmitWheel(0)
	}
	if err != nil && l.cfg.DebugLevel > 0 {
		log.Debugf("capture: passthrough zero-wheel: %v", err)
	}
}

// passthrough forwards a non-wheel event to the virtual wheel device. Only
// relative X/Y motion and the left/right/middle buttons are forwarded;
// other event codes are dropped. Errors for sync and motion events are
// suppressed to avoid log spam during ordinary mouse movement; everything
// else is logged at debug level and otherwise ignored, since passthrough
// failures must never stop capture.
func (l *Loop) passthrough(ev evdev.InputEvent) {
	var err error
	switch ev.Type {
	case evRel:
		switch ev.Code {
		case relX:
			err = l.wheel.PassthroughMotion(ev.Value, 0)
		case relY:
			err = l.wheel.PassthroughMotion(0, ev.Value)
		}
	case evKey:
		if btn, ok := passthroughButton(ev.Code); ok {
			err = l.wheel.PassthroughButton(btn, ev.Value == 1)
		}
	case evSyn:
		// no-op: synthesized events carry their own sync.
	}
	suppressed := ev.Type == evSyn || (ev.Type == evRel && (ev.Code == relX || ev.Code == relY))
	if err != nil && l.cfg.DebugLevel > 0 && !suppressed {
		log.Debugf("capture: passthrough type=%d code=%d: %v", ev.Type, ev.Code, err)
	}
}

func passthroughButton(code uint16) (emit.Button, bool) {
	switch code {
	case btnLeft:
		return emit.ButtonLeft, true
	case btnRight:
		return emit.ButtonRight, true
	case btnMiddle:
		return emit.ButtonMiddle, true
	default:
		return 0, false
	}
}

// Close releases the grab (if any) and closes the evdev handle. Safe to
// call after a partial Run failure.
func (l *Loop) Close() error {
	if l.cfg.GrabDevice {
		_ = l.dev.Release()
	}
	return l.dev.File.Close()
}
