package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func newTestFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	return fs
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "momentum-mouse.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesFileThenFlags(t *testing.T) {
	path := writeConfigFile(t, "[smooth_scroll]\nsensitivity = 2.5\nnatural = true\nrefresh_rate = 120\n")

	fs := newTestFlagSet()
	require.NoError(t, fs.Set("config", path))
	require.NoError(t, fs.Set("refresh-rate", "240")) // flag beats file

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	require.Equal(t, 2.5, cfg.Sensitivity)
	require.Equal(t, DirectionNatural, cfg.ScrollDirection)
	require.Equal(t, 240, cfg.RefreshRateHz)
}

func TestLoadIgnoresInvalidKeyAndKeepsDefault(t *testing.T) {
	path := writeConfigFile(t, "[smooth_scroll]\nsensitivity = -5\nfriction = 3.0\n")

	fs := newTestFlagSet()
	require.NoError(t, fs.Set("config", path))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	require.Equal(t, Default().Sensitivity, cfg.Sensitivity)
	require.Equal(t, 3.0, cfg.Friction)
}

func TestLoadPositionalDeviceArgOverridesConfig(t *testing.T) {
	fs := newTestFlagSet()
	cfg, err := Load(fs, "/dev/input/event3")
	require.NoError(t, err)
	require.Equal(t, "/dev/input/event3", cfg.DevicePath)
}

func TestLoadTraditionalFlagWinsOverNaturalFile(t *testing.T) {
	path := writeConfigFile(t, "[smooth_scroll]\nnatural = true\n")

	fs := newTestFlagSet()
	require.NoError(t, fs.Set("config", path))
	require.NoError(t, fs.Set("traditional", "true"))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	require.Equal(t, DirectionTraditional, cfg.ScrollDirection)
}
