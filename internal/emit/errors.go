// Package emit renders the inertia engine's output into kernel input
// events: the wheel emitter via github.com/bendahl/uinput, the touch
// emitter via raw /dev/uinput ioctls (no pack library exposes multi-touch
// slot setup, so this one corner stays on the syscall layer).
package emit

import "errors"

// ErrSetup wraps failures opening /dev/uinput or creating a virtual
// device. Fatal: the daemon cannot run without its emitters.
var ErrSetup = errors.New("emit: setup failed")

// ErrEmitFailed wraps an underlying write failure on an already-created
// virtual device. Non-fatal for passthrough; the inertia engine treats
// it as fatal for its own emissions only in the sense that it stops
// inertia and continues running.
var ErrEmitFailed = errors.New("emit: write failed")
