package config

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers the daemon's CLI flags onto fs, mirroring the
// [smooth_scroll] config keys one-for-one. Call once per command
// invocation before Load.
func BindFlags(fs *pflag.FlagSet) {
	fs.Float64("sensitivity", 0, "scroll sensitivity multiplier")
	fs.Float64("multiplier", 0, "same-direction consecutive-scroll multiplier")
	fs.Float64("friction", 0, "inertia friction coefficient")
	fs.Float64("max-velocity", 0, "max velocity as a fraction of screen size")
	fs.Float64("sensitivity-divisor", 0, "sensitivity divisor")
	fs.Float64("resolution-multiplier", 0, "virtual touchpad resolution multiplier")
	fs.Int("refresh-rate", 0, "engine tick rate in Hz")
	fs.Float64("inertia-stop-threshold", 0, "velocity below which inertia stops")

	fs.Bool("grab", false, "exclusively grab the source device")
	fs.Bool("natural", false, "use natural scrolling direction")
	fs.Bool("traditional", false, "use traditional scrolling direction")
	fs.Bool("multitouch", true, "emit two-finger touchpad gestures instead of wheel ticks")
	fs.Bool("horizontal", false, "intercept the horizontal wheel axis instead of vertical")
	fs.Bool("mouse-move-drag", false, "let mouse motion apply drag friction to active inertia")
	fs.Bool("debug", false, "enable debug logging")
	fs.Bool("daemon", false, "run detached from the controlling terminal")
	fs.Bool("no-auto-detect", false, "disable scroll-direction auto-detection")
	fs.String("config", "", "path to an INI config file")
}

// Load builds a Config from defaults, an optional INI file, and CLI flags,
// in that order of increasing precedence. File keys are validated one by
// one: a failure is logged and the field keeps its default — this mirrors
// original_source/src/config_reader.c, which never aborts the whole file
// on one bad key. Flag values are applied as given, without validation.
func Load(fs *pflag.FlagSet, deviceArg string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("ini")
	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
		applyFileSection(&cfg, v)
	}

	applyFlags(&cfg, fs)
	if deviceArg != "" {
		cfg.DevicePath = deviceArg
	}
	return cfg, nil
}

// applyFileSection reads the [smooth_scroll] section viper parsed and
// applies each recognized key, validating as it goes.
func applyFileSection(cfg *Config, v *viper.Viper) {
	section := v.Sub("smooth_scroll")
	if section == nil {
		// viper lowercases INI section headers; be tolerant either way.
		for _, key := range v.AllKeys() {
			if !strings.HasPrefix(key, "smooth_scroll.") {
				continue
			}
			applyKey(cfg, strings.TrimPrefix(key, "smooth_scroll."), v.Get(key))
		}
		return
	}
	for _, key := range section.AllKeys() {
		applyKey(cfg, key, section.Get(key))
	}
}

func applyKey(cfg *Config, key string, value interface{}) {
	setPositiveFloat := func(name string, dst *float64) {
		f := cast.ToFloat64(value)
		if f > 0 {
			*dst = f
		} else {
			log.Warnf("config: ignoring invalid %s=%v, keeping %v", name, value, *dst)
		}
	}

	switch key {
	case "sensitivity":
		setPositiveFloat(key, &cfg.Sensitivity)
	case "multiplier":
		setPositiveFloat(key, &cfg.Multiplier)
	case "friction":
		setPositiveFloat(key, &cfg.Friction)
	case "max_velocity":
		setPositiveFloat(key, &cfg.MaxVelocityFactor)
	case "sensitivity_divisor":
		setPositiveFloat(key, &cfg.SensitivityDivisor)
	case "resolution_multiplier":
		setPositiveFloat(key, &cfg.ResolutionMultiplier)
	case "inertia_stop_threshold":
		f := cast.ToFloat64(value)
		if f >= 0 {
			cfg.InertiaStopThreshold = f
		} else {
			log.Warnf("config: ignoring invalid inertia_stop_threshold=%v, keeping %v", value, cfg.InertiaStopThreshold)
		}
	case "refresh_rate":
		n := cast.ToInt(value)
		if n > 0 {
			cfg.RefreshRateHz = n
		} else {
			log.Warnf("config: ignoring invalid refresh_rate=%v, keeping %v", value, cfg.RefreshRateHz)
		}
	case "grab":
		cfg.GrabDevice = cast.ToBool(value)
	case "natural":
		if cast.ToBool(value) {
			cfg.ScrollDirection = DirectionNatural
		}
	case "multitouch":
		cfg.UseMultitouch = cast.ToBool(value)
	case "horizontal":
		if cast.ToBool(value) {
			cfg.ScrollAxis = AxisHorizontal
		}
	case "debug":
		if cast.ToBool(value) {
			cfg.DebugLevel = 1
		}
	case "mouse_move_drag":
		cfg.MouseMoveDrag = cast.ToBool(value)
	case "device_name":
		cfg.DevicePath = cast.ToString(value)
	}
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	ifSet := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	ifSet("sensitivity", func() { cfg.Sensitivity, _ = fs.GetFloat64("sensitivity") })
	ifSet("multiplier", func() { cfg.Multiplier, _ = fs.GetFloat64("multiplier") })
	ifSet("friction", func() { cfg.Friction, _ = fs.GetFloat64("friction") })
	ifSet("max-velocity", func() { cfg.MaxVelocityFactor, _ = fs.GetFloat64("max-velocity") })
	ifSet("sensitivity-divisor", func() { cfg.SensitivityDivisor, _ = fs.GetFloat64("sensitivity-divisor") })
	ifSet("resolution-multiplier", func() { cfg.ResolutionMultiplier, _ = fs.GetFloat64("resolution-multiplier") })
	ifSet("refresh-rate", func() { cfg.RefreshRateHz, _ = fs.GetInt("refresh-rate") })
	ifSet("inertia-stop-threshold", func() { cfg.InertiaStopThreshold, _ = fs.GetFloat64("inertia-stop-threshold") })
	ifSet("grab", func() { cfg.GrabDevice, _ = fs.GetBool("grab") })
	ifSet("natural", func() { cfg.ScrollDirection = DirectionNatural })
	ifSet("traditional", func() { cfg.ScrollDirection = DirectionTraditional })
	ifSet("multitouch", func() { cfg.UseMultitouch, _ = fs.GetBool("multitouch") })
	ifSet("horizontal", func() {
		if horiz, _ := fs.GetBool("horizontal"); horiz {
			cfg.ScrollAxis = AxisHorizontal
		}
	})
	ifSet("mouse-move-drag", func() { cfg.MouseMoveDrag, _ = fs.GetBool("mouse-move-drag") })
	ifSet("debug", func() {
		if dbg, _ := fs.GetBool("debug"); dbg {
			cfg.DebugLevel = 1
		}
	})
}
