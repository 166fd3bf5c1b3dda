package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.9, cfg.ClearSky.Threshold)
	assert.Equal(t, 120, cfg.Daylight.OffsetMinutes)
	assert.Equal(t, 12, cfg.Preprocess.MissingThreshold)
	assert.Equal(t, 12, cfg.Clipping.MinSlots)
	assert.Equal(t, 255.0, cfg.Thresholds.OvervoltageV)
	assert.Equal(t, 216.0, cfg.Thresholds.BlackoutV)
	assert.Equal(t, 250.0, cfg.Thresholds.VoltWattV)
	assert.Equal(t, 248.0, cfg.Thresholds.VoltVarV)
}

func TestValidate_VoltageOrdering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"volt_watt below volt_var", func(c *Config) { c.Thresholds.VoltWattV = 247 }},
		{"overvoltage below volt_watt", func(c *Config) { c.Thresholds.OvervoltageV = 249 }},
		{"blackout above volt_var", func(c *Config) { c.Thresholds.BlackoutV = 249 }},
		{"overvoltage at sanity bound", func(c *Config) { c.Thresholds.SanityVoltageV = 255 }},
		{"inverted diff band", func(c *Config) { c.Clipping.DiffLower = 0.01 }},
		{"inverted sun hours", func(c *Config) { c.Clipping.SunStartHour = 16 }},
		{"zero min slots", func(c *Config) { c.Clipping.MinSlots = 0 }},
		{"unknown clipping metric", func(c *Config) { c.Clipping.Metric = "Grid.V" }},
		{"unknown direction", func(c *Config) { c.Grid.Direction = "forward" }},
		{"no workers", func(c *Config) { c.Run.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestValidate_EqualBandsAllowed(t *testing.T) {
	cfg := Default()
	cfg.Thresholds.VoltVarV = 250
	cfg.Thresholds.VoltWattV = 250
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
clear_sky:
  threshold: 0.8
thresholds:
  overvoltage_v: 260
clipping:
  min_slots: 6
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.ClearSky.Threshold)
	assert.Equal(t, 260.0, cfg.Thresholds.OvervoltageV)
	assert.Equal(t, 6, cfg.Clipping.MinSlots)
	// untouched keys keep defaults
	assert.Equal(t, 216.0, cfg.Thresholds.BlackoutV)
	assert.Equal(t, 120, cfg.Daylight.OffsetMinutes)
}

func TestLoad_RejectsMisorderedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  volt_watt_v: 240\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PVFL_WORKERS", "9")
	t.Setenv("PVFL_CLEAR_SKY_THRESHOLD", "0.75")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Run.Workers)
	assert.Equal(t, 0.75, cfg.ClearSky.Threshold)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := Default()
	b := Default()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)

	b.Clipping.MinSlots = 13
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
