package emit

import (
	"fmt"
	"sync"

	"github.com/bendahl/uinput"
)

// WheelName is the device name presented to the kernel for the relative
// wheel device (C1).
const WheelName = "Momentum Mouse Wheel"

// Wheel is the virtual relative-wheel device. Its fd is written from two
// goroutines — the engine (synthesized inertia ticks) and the capture
// loop (passthrough of everything the wheel device doesn't swallow) — so
// every public method takes mu for the duration of its write.
type Wheel struct {
	mu    sync.Mutex
	mouse uinput.Mouse
}

// NewWheel opens /dev/uinput and creates the wheel device. The EV_REL
// wheel/hwheel capability bits are set up by uinput.CreateMouse itself;
// vendor/product are the library's own fixed values, not 0x1234/0x5678.
func NewWheel() (*Wheel, error) {
	mouse, err := uinput.CreateMouse("/dev/uinput", []byte(WheelName))
	if err != nil {
		return nil, fmt.Errorf("%w: create wheel device: %v", ErrSetup, err)
	}
	return &Wheel{mouse: mouse}, nil
}

// EmitWheel writes one vertical relative wheel tick followed by the
// implicit sync the library issues per call. Positive value scrolls up.
func (w *Wheel) EmitWheel(value int32) error {
	return w.emitWheel(value, false)
}

// EmitHWheel is EmitWheel's horizontal-axis counterpart, used when the
// configured scroll axis is horizontal.
func (w *Wheel) EmitHWheel(value int32) error {
	return w.emitWheel(value, true)
}

func (w *Wheel) emitWheel(value int32, horizontal bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mouse.Wheel(horizontal, value); err != nil {
		return fmt.Errorf("%w: wheel: %v", ErrEmitFailed, err)
	}
	return nil
}

// PassthroughMotion forwards a captured relative X/Y motion pair. Either
// component may be zero.
func (w *Wheel) PassthroughMotion(dx, dy int32) error {
	if dx == 0 && dy == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mouse.Move(dx, dy); err != nil {
		return fmt.Errorf("%w: passthrough motion: %v", ErrEmitFailed, err)
	}
	return nil
}

// Button identifies one of the three buttons this device understands.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

// PassthroughButton forwards a captured button press or release.
func (w *Wheel) PassthroughButton(btn Button, down bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	switch btn {
	case ButtonLeft:
		if down {
			err = w.mouse.LeftPress()
		} else {
			err = w.mouse.LeftRelease()
		}
	case ButtonRight:
		if down {
			err = w.mouse.RightPress()
		} else {
			err = w.mouse.RightRelease()
		}
	case ButtonMiddle:
		if down {
			err = w.mouse.MiddlePress()
		} else {
			err = w.mouse.MiddleRelease()
		}
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: passthrough button: %v", ErrEmitFailed, err)
	}
	return nil
}

// Destroy closes the underlying device. Safe to call on a Wheel whose
// setup failed partway, since uinput.CreateMouse only ever returns a
// non-nil mouse on full success.
func (w *Wheel) Destroy() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mouse == nil {
		return nil
	}
	return w.mouse.Close()
}
