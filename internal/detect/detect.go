// Package detect implements two startup-only auto-detection heuristics:
// finding a plausible scroll-wheel device when none is given explicitly,
// and reading the desktop's natural-scrolling preference. Neither
// participates in the real-time pipeline; both run once at startup.
package detect

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	evdev "github.com/gvalkov/golang-evdev"

	"momentum-mouse/internal/config"
)

// DeviceResolver finds the evdev path for a configured device name (or a
// best-guess mouse) when the positional DEVICE_PATH / device_name wasn't
// given as a literal path.
type DeviceResolver interface {
	Resolve(nameHint string) (string, error)
}

// DirectionDetector reads the desktop's natural-scrolling preference so
// the daemon can default scroll_direction without an explicit flag.
type DirectionDetector interface {
	Detect(ctx context.Context) (config.ScrollDirection, bool)
}

// EvdevResolver scans /dev/input for a device exposing relative motion
// and a left button — the same "is it a mouse" test device_scanner.c
// uses via EVIOCGBIT, reimplemented on top of golang-evdev's own
// capability bitmap.
type EvdevResolver struct{}

// Resolve returns nameHint verbatim if it already looks like a device
// path; otherwise it lists /dev/input/event* and returns the first mouse
// whose name contains nameHint (case-insensitive), or the first mouse
// found if nameHint is empty.
func (EvdevResolver) Resolve(nameHint string) (string, error) {
	if strings.HasPrefix(nameHint, "/dev/") {
		return nameHint, nil
	}

	devices, err := evdev.ListInputDevices()
	if err != nil {
		return "", fmt.Errorf("detect: list input devices: %w", err)
	}

	var fallback string
	lowerHint := strings.ToLower(nameHint)
	for _, dev := range devices {
		if !isMouse(dev) {
			continue
		}
		if fallback == "" {
			fallback = dev.Fn
		}
		if lowerHint != "" && strings.Contains(strings.ToLower(dev.Name), lowerHint) {
			return dev.Fn, nil
		}
	}
	if fallback != "" {
		if lowerHint != "" {
			log.Warnf("detect: no device name matched %q, falling back to %s", nameHint, fallback)
		}
		return fallback, nil
	}
	return "", fmt.Errorf("detect: no mouse-like device found under %s", filepath.Dir("/dev/input/"))
}

func isMouse(dev *evdev.InputDevice) bool {
	hasRel := false
	hasLeftButton := false
	for capability, codes := range dev.Capabilities {
		switch capability.Type {
		case evdev.EV_REL:
			hasRel = true
		case evdev.EV_KEY:
			for _, code := range codes {
				if code.Code == evdev.BTN_LEFT {
					hasLeftButton = true
				}
			}
		}
	}
	return hasRel && hasLeftButton
}

// GsettingsDirectionDetector shells out to gsettings the way
// system_settings.c's detect_scroll_direction does, honoring SUDO_USER
// when running as root so the query reaches the logged-in user's
// session bus rather than root's (nonexistent) one.
type GsettingsDirectionDetector struct{}

func (GsettingsDirectionDetector) Detect(ctx context.Context) (config.ScrollDirection, bool) {
	username, display := targetSession()

	args := []string{"gsettings", "get", "org.gnome.desktop.peripherals.mouse", "natural-scroll"}
	var cmd *exec.Cmd
	if os.Geteuid() == 0 && username != "" {
		cmd = exec.CommandContext(ctx, "su", username, "-c", strings.Join(args, " "))
	} else {
		cmd = exec.CommandContext(ctx, args[0], args[1:]...)
	}
	cmd.Env = append(os.Environ(), "DISPLAY="+display)

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		log.Debugf("detect: gsettings natural-scroll unavailable: %v", err)
		return "", false
	}

	natural, err := strconv.ParseBool(strings.TrimSpace(out.String()))
	if err != nil {
		return "", false
	}
	if natural {
		return config.DirectionNatural, true
	}
	return config.DirectionTraditional, true
}

func targetSession() (username, display string) {
	display = os.Getenv("DISPLAY")
	if display == "" {
		display = ":0"
	}
	if sudoUser := os.Getenv("SUDO_USER"); os.Geteuid() == 0 && sudoUser != "" {
		return sudoUser, display
	}
	if u, err := user.Current(); err == nil {
		return u.Username, display
	}
	return "", display
}

// detectTimeout bounds the gsettings subprocess so a hung or missing
// session bus never delays startup noticeably.
const detectTimeout = 2 * time.Second

// DetectWithTimeout is the convenience entry point cmd/momentum-mouse
// uses: it wraps Detect in its own short-lived context.
func DetectWithTimeout(d DirectionDetector) (config.ScrollDirection, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
	defer cancel()
	return d.Detect(ctx)
}
