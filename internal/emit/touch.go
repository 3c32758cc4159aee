package emit

import (
	"fmt"
	"math"
	"os"
	"time"

	"momentum-mouse/internal/config"
)

// TouchName is the device name presented to the kernel for the virtual
// multi-touch trackpad (C2).
const TouchName = "Momentum Mouse Touchpad"

// minGestureIntervalMS is the cooldown between a gesture ending and a new
// one opening, halved from the original 100ms to keep boundary-jump
// re-opens snappy at 200Hz tick rates.
const minGestureIntervalMS = 50

// fingerSeparation is the fixed horizontal offset between the two
// synthetic contacts, preserved across every reposition.
const fingerSeparation = 100.0

// Touch is the virtual multi-touch device. Per the concurrency model it
// is driven only by the engine goroutine, so it needs no internal lock.
type Touch struct {
	fd *os.File

	axis config.ScrollAxis
	w, h float64

	f0x, f0y float64
	f1x, f1y float64

	active         bool
	ending         bool
	lastGestureEnd time.Time

	now func() time.Time
}

// NewTouch opens /dev/uinput and creates the multi-touch device sized to
// cfg's virtual screen, with fingers seated at their rest position.
func NewTouch(cfg config.Config) (*Touch, error) {
	f, err := openUinput()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}

	for _, ev := range []int{evAbs, evKey, evSyn} {
		if err := ioctlInt(f.Fd(), uiSetEvBit, ev); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: set evbit %d: %v", ErrSetup, ev, err)
		}
	}
	for _, abs := range []int{absMTSlot, absMTTrackingID, absMTPositionX, absMTPositionY} {
		if err := ioctlInt(f.Fd(), uiSetAbsBit, abs); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: set absbit %d: %v", ErrSetup, abs, err)
		}
	}
	for _, key := range []int{btnTouch, btnToolFinger, btnToolDoubletap} {
		if err := ioctlInt(f.Fd(), uiSetKeyBit, key); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: set keybit %d: %v", ErrSetup, key, err)
		}
	}

	w, h := cfg.VirtualScreenSize()
	absmin := map[int]int32{absMTPositionX: 0, absMTPositionY: 0, absMTSlot: 0, absMTTrackingID: 0}
	absmax := map[int]int32{
		absMTPositionX:  int32(w),
		absMTPositionY:  int32(h),
		absMTSlot:       1,
		absMTTrackingID: 65535,
	}
	if err := writeUserDev(f, TouchName, 0x1234, 0x5678, absmin, absmax); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: write device info: %v", ErrSetup, err)
	}
	if err := ioctlInt(f.Fd(), uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: create device: %v", ErrSetup, err)
	}
	time.Sleep(100 * time.Millisecond)

	t := &Touch{fd: f, axis: cfg.ScrollAxis, w: w, h: h, now: time.Now}
	t.seat(w/2-fingerSeparation/2, h/2)
	return t, nil
}

// seat resets both fingers to rest at (x, y), with finger 1 offset from
// finger 0 by fingerSeparation along x. The offset is constant regardless
// of scroll axis: EmitPan's horizontal branch advances both fingers' x by
// the same delta, so the gap survives every subsequent update too.
func (t *Touch) seat(x, y float64) {
	t.f0x, t.f0y = x, y
	t.f1x, t.f1y = x+fingerSeparation, y
}

// EmitPan advances both fingers by delta along the configured axis,
// opening a gesture first if none is active, or performing a boundary
// jump instead of the advance if it would leave the virtual screen.
func (t *Touch) EmitPan(delta int32) (jumped bool, err error) {
	if delta == 0 {
		return false, nil
	}

	nx0, ny0 := t.f0x, t.f0y
	nx1, ny1 := t.f1x, t.f1y
	if t.axis == config.AxisHorizontal {
		nx0 += float64(delta)
		nx1 += float64(delta)
	} else {
		ny0 += float64(delta)
		ny1 += float64(delta)
	}

	if t.outOfBounds(nx0, ny0) || t.outOfBounds(nx1, ny1) {
		if err := t.endGestureLocked(); err != nil {
			return false, err
		}
		t.jumpTo(delta)
		return true, nil
	}

	t.f0x, t.f0y = nx0, ny0
	t.f1x, t.f1y = nx1, ny1

	if !t.active {
		if err := t.openGesture(); err != nil {
			return false, err
		}
	}
	if err := t.writeUpdate(); err != nil {
		return false, err
	}
	return false, nil
}

func (t *Touch) outOfBounds(x, y float64) bool {
	return x < 0 || x > t.w || y < 0 || y > t.h
}

// jumpTo reseats both fingers at the opposite edge of the scroll axis, the
// finger nearest that edge 50 pixels in from it, centered on the other axis.
func (t *Touch) jumpTo(delta int32) {
	if t.axis == config.AxisHorizontal {
		x := 50.0
		if delta < 0 {
			x = t.w - 50.0 - fingerSeparation
		}
		t.seat(x, t.h/2)
	} else {
		y := 50.0
		if delta < 0 {
			y = t.h - 50.0
		}
		t.seat(t.w/2-fingerSeparation/2, y)
	}
}

// openGesture implements the exact opening protocol: cooldown, then
// slot-wise tracking id and position writes, then the two buttons, then
// one sync.
func (t *Touch) openGesture() error {
	if !t.lastGestureEnd.IsZero() {
		elapsed := t.now().Sub(t.lastGestureEnd)
		if remaining := minGestureIntervalMS*time.Millisecond - elapsed; remaining > 0 {
			time.Sleep(remaining)
		}
	}

	writes := []struct {
		slot       int32
		trackingID int32
		x, y       float64
	}{
		{0, 100, t.f0x, t.f0y},
		{1, 200, t.f1x, t.f1y},
	}
	for _, w := range writes {
		if err := t.write(evAbs, absMTSlot, w.slot); err != nil {
			return err
		}
		if err := t.write(evAbs, absMTTrackingID, w.trackingID); err != nil {
			return err
		}
		if err := t.write(evAbs, absMTPositionX, int32(math.Round(w.x))); err != nil {
			return err
		}
		if err := t.write(evAbs, absMTPositionY, int32(math.Round(w.y))); err != nil {
			return err
		}
	}
	if err := t.write(evKey, btnTouch, 1); err != nil {
		return err
	}
	if err := t.write(evKey, btnToolDoubletap, 1); err != nil {
		return err
	}
	if err := t.sync(); err != nil {
		return err
	}
	t.active = true
	return nil
}

// writeUpdate rewrites only the coordinate being scrolled, per slot, then
// syncs: SLOT 0 -> axis, SLOT 1 -> axis, SYN.
func (t *Touch) writeUpdate() error {
	code := absMTPositionY
	v0, v1 := t.f0y, t.f1y
	if t.axis == config.AxisHorizontal {
		code = absMTPositionX
		v0, v1 = t.f0x, t.f1x
	}
	if err := t.write(evAbs, absMTSlot, 0); err != nil {
		return err
	}
	if err := t.write(evAbs, uint16(code), int32(math.Round(v0))); err != nil {
		return err
	}
	if err := t.write(evAbs, absMTSlot, 1); err != nil {
		return err
	}
	if err := t.write(evAbs, uint16(code), int32(math.Round(v1))); err != nil {
		return err
	}
	return t.sync()
}

// EndGesture releases both tracking ids and buttons and syncs. Safe to
// call when no gesture is open; reentrancy is guarded so a caller racing
// itself (engine stop + threshold stop in the same tick) only emits the
// closing sequence once.
func (t *Touch) EndGesture() error {
	return t.endGestureLocked()
}

func (t *Touch) endGestureLocked() error {
	if !t.active || t.ending {
		return nil
	}
	t.ending = true
	defer func() { t.ending = false }()

	for _, slot := range []int32{0, 1} {
		if err := t.write(evAbs, absMTSlot, slot); err != nil {
			return err
		}
		if err := t.write(evAbs, absMTTrackingID, -1); err != nil {
			return err
		}
	}
	if err := t.write(evKey, btnTouch, 0); err != nil {
		return err
	}
	if err := t.write(evKey, btnToolDoubletap, 0); err != nil {
		return err
	}
	if err := t.sync(); err != nil {
		return err
	}

	t.active = false
	t.lastGestureEnd = t.now()
	t.seat(t.w/2-fingerSeparation/2, t.h/2)
	return nil
}

func (t *Touch) write(typ, code uint16, value int32) error {
	if err := writeRawEvent(t.fd, typ, code, value); err != nil {
		return fmt.Errorf("%w: %v", ErrEmitFailed, err)
	}
	return nil
}

func (t *Touch) sync() error {
	return t.write(evSyn, synReport, 0)
}

// Destroy issues the device-destroy ioctl and closes the fd. Safe after
// a partial setup failure since NewTouch always closes fd itself before
// returning an error.
func (t *Touch) Destroy() error {
	return destroyDevice(t.fd)
}
