// Package config holds the validated, read-only configuration the core
// pipeline is handed at startup. Nothing in this package talks to the
// filesystem or the command line directly — see Load in loader.go for
// that.
package config

import "fmt"

// ScrollDirection selects the mapping of wheel sign to content motion.
type ScrollDirection string

const (
	DirectionTraditional ScrollDirection = "traditional"
	DirectionNatural     ScrollDirection = "natural"
)

// ScrollAxis selects which wheel axis the daemon intercepts.
type ScrollAxis string

const (
	AxisVertical   ScrollAxis = "vertical"
	AxisHorizontal ScrollAxis = "horizontal"
)

// Config is the validated set of physics and behavior knobs. All fields are
// scalar and read-only once Validate has succeeded; the core never mutates
// a Config after startup.
type Config struct {
	Sensitivity           float64
	Multiplier            float64
	Friction              float64
	MaxVelocityFactor     float64
	SensitivityDivisor    float64
	ResolutionMultiplier  float64
	RefreshRateHz         int
	InertiaStopThreshold  float64

	ScrollDirection ScrollDirection
	ScrollAxis      ScrollAxis
	GrabDevice      bool
	UseMultitouch   bool
	MouseMoveDrag   bool

	DevicePath string
	// DebugLevel mirrors the original's debug_mode. The loader sets it to 1
	// when debug is enabled; code only checks whether it is above 0, which
	// turns on debug-level logging.
	DebugLevel int

	DisplayWidth  int
	DisplayHeight int
}

// Default returns the documented out-of-the-box defaults.
func Default() Config {
	return Config{
		Sensitivity:          1.0,
		Multiplier:           1.0,
		Friction:             2.0,
		MaxVelocityFactor:    0.8,
		SensitivityDivisor:   0.3,
		ResolutionMultiplier: 10.0,
		RefreshRateHz:        200,
		InertiaStopThreshold: 1.0,
		ScrollDirection:      DirectionTraditional,
		ScrollAxis:           AxisVertical,
		GrabDevice:           false,
		UseMultitouch:        true,
		MouseMoveDrag:        false,
		DebugLevel:           0,
		DisplayWidth:         1920,
		DisplayHeight:        1080,
	}
}

// ErrConfigInvalid is wrapped by Validate for every out-of-range or
// malformed field. The daemon's startup treats a Validate error as fatal.
var ErrConfigInvalid = fmt.Errorf("config: invalid value")

// VirtualScreenSize returns the touch emitter's W, H in virtual pixels.
func (c Config) VirtualScreenSize() (w, h float64) {
	return float64(c.DisplayWidth) * c.ResolutionMultiplier, float64(c.DisplayHeight) * c.ResolutionMultiplier
}

// Validate checks every numeric and enum invariant the physics engine and
// emitters rely on. It returns the first violation found, wrapped in
// ErrConfigInvalid; callers that want
// "log and keep default" semantics should validate field-by-field during
// loading instead (as Load does for file keys), this method is for validating a config
// that has already been fully assembled (e.g. in tests).
func (c Config) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"sensitivity", c.Sensitivity > 0},
		{"multiplier", c.Multiplier > 0},
		{"friction", c.Friction > 0},
		{"max_velocity_factor", c.MaxVelocityFactor > 0},
		{"sensitivity_divisor", c.SensitivityDivisor > 0},
		{"resolution_multiplier", c.ResolutionMultiplier > 0},
		{"refresh_rate_hz", c.RefreshRateHz > 0},
		{"inertia_stop_threshold", c.InertiaStopThreshold >= 0},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s=%v", ErrConfigInvalid, chk.name, chk.ok)
		}
	}
	switch c.ScrollDirection {
	case DirectionTraditional, DirectionNatural:
	default:
		return fmt.Errorf("%w: scroll_direction=%q", ErrConfigInvalid, c.ScrollDirection)
	}
	switch c.ScrollAxis {
	case AxisVertical, AxisHorizontal:
	default:
		return fmt.Errorf("%w: scroll_axis=%q", ErrConfigInvalid, c.ScrollAxis)
	}
	return nil
}
