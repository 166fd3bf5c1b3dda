// Package config holds the thresholds and options of the labelling pipeline.
// A Config is built once (Default or Load) and passed by value to every stage.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when thresholds are inconsistent.
var ErrInvalidConfig = errors.New("invalid config")

// ClearSky configures clear-sky day selection.
type ClearSky struct {
	Threshold       float64 `yaml:"threshold"`         // min expected/clear-sky ratio
	FillAcrossSites bool    `yaml:"fill_across_sites"` // fill undefined ratios from the previous site in the row
}

// Daylight configures the daylight window.
type Daylight struct {
	OffsetMinutes int `yaml:"offset_minutes"` // applied after sunrise and before sunset
}

// Preprocess configures day rejection and outlier removal.
type Preprocess struct {
	MissingThreshold      int     `yaml:"missing_threshold"`       // max missing DC-current samples per day
	OutlierCapacityFactor float64 `yaml:"outlier_capacity_factor"` // DC power above factor*pv_size nulls the sample
}

// Clipping configures the run-length clipping detector.
type Clipping struct {
	Metric       string  `yaml:"metric"` // ac_power or dc_power
	DiffLower    float64 `yaml:"diff_lower"`
	DiffUpper    float64 `yaml:"diff_upper"`
	SunStartHour int     `yaml:"sun_start_hour"`
	SunEndHour   int     `yaml:"sun_end_hour"`
	PowerFloorW  float64 `yaml:"power_floor_w"`
	MinSlots     int     `yaml:"min_slots"`
}

// Thresholds holds the voltage bands and power ratios of the fault rules.
type Thresholds struct {
	OvervoltageV          float64 `yaml:"overvoltage_v"`
	BlackoutV             float64 `yaml:"blackout_v"`
	VoltWattV             float64 `yaml:"volt_watt_v"`
	VoltVarV              float64 `yaml:"volt_var_v"`
	SanityVoltageV        float64 `yaml:"sanity_voltage_v"`
	InverterClippingRatio float64 `yaml:"inverter_clipping_ratio"` // DC/AC power ratio above which clipping is inverter-side
	TrippingDCPowerW      float64 `yaml:"tripping_dc_power_w"`
}

// Theoretical configures the clear-sky power model.
type Theoretical struct {
	TiltDeg    float64 `yaml:"tilt_deg"`
	AzimuthDeg float64 `yaml:"azimuth_deg"` // 0 = north, clockwise
	LossFactor float64 `yaml:"loss_factor"`
}

// Grid configures alignment of sparse telemetry onto the sample grid.
type Grid struct {
	StepMinutes      int    `yaml:"step_minutes"`
	ToleranceSeconds int    `yaml:"tolerance_seconds"`
	Direction        string `yaml:"direction"` // backward or nearest
}

// Run configures the orchestrator.
type Run struct {
	Workers int `yaml:"workers"`
}

// Config is the complete pipeline configuration.
type Config struct {
	ClearSky    ClearSky    `yaml:"clear_sky"`
	Daylight    Daylight    `yaml:"daylight"`
	Preprocess  Preprocess  `yaml:"preprocess"`
	Clipping    Clipping    `yaml:"clipping"`
	Thresholds  Thresholds  `yaml:"thresholds"`
	Theoretical Theoretical `yaml:"theoretical"`
	Grid        Grid        `yaml:"grid"`
	Run         Run         `yaml:"run"`
}

// Alignment directions.
const (
	DirectionBackward = "backward"
	DirectionNearest  = "nearest"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		ClearSky: ClearSky{
			Threshold: 0.9,
		},
		Daylight: Daylight{
			OffsetMinutes: 120,
		},
		Preprocess: Preprocess{
			MissingThreshold:      12,
			OutlierCapacityFactor: 1.2,
		},
		Clipping: Clipping{
			Metric:       "ac_power",
			DiffLower:    -0.001,
			DiffUpper:    0.001,
			SunStartHour: 10,
			SunEndHour:   15,
			PowerFloorW:  50,
			MinSlots:     12,
		},
		Thresholds: Thresholds{
			OvervoltageV:          255,
			BlackoutV:             216,
			VoltWattV:             250,
			VoltVarV:              248,
			SanityVoltageV:        300,
			InverterClippingRatio: 1.1,
			TrippingDCPowerW:      100,
		},
		Theoretical: Theoretical{
			TiltDeg:    10,
			AzimuthDeg: 0,
			LossFactor: 0.85,
		},
		Grid: Grid{
			StepMinutes:      5,
			ToleranceSeconds: 60,
			Direction:        DirectionBackward,
		},
		Run: Run{
			Workers: 4,
		},
	}
}

// Load reads a YAML file over the defaults, applies env overrides and validates.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg = applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg Config) Config {
	cfg.ClearSky.Threshold = getenvFloat("PVFL_CLEAR_SKY_THRESHOLD", cfg.ClearSky.Threshold)
	cfg.Daylight.OffsetMinutes = getenvInt("PVFL_DAYLIGHT_OFFSET_MINUTES", cfg.Daylight.OffsetMinutes)
	cfg.Preprocess.MissingThreshold = getenvInt("PVFL_MISSING_THRESHOLD", cfg.Preprocess.MissingThreshold)
	cfg.Clipping.MinSlots = getenvInt("PVFL_CLIPPING_MIN_SLOTS", cfg.Clipping.MinSlots)
	cfg.Run.Workers = getenvInt("PVFL_WORKERS", cfg.Run.Workers)
	return cfg
}

// Validate checks that thresholds preserve the orderings the rule families rely on.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	t := c.Thresholds
	if !(t.BlackoutV <= t.VoltVarV && t.VoltVarV <= t.VoltWattV && t.VoltWattV <= t.OvervoltageV) {
		add("voltage bands must satisfy blackout (%.1f) <= volt_var (%.1f) <= volt_watt (%.1f) <= overvoltage (%.1f)",
			t.BlackoutV, t.VoltVarV, t.VoltWattV, t.OvervoltageV)
	}
	if t.OvervoltageV >= t.SanityVoltageV {
		add("overvoltage (%.1f) must be below sanity bound (%.1f)", t.OvervoltageV, t.SanityVoltageV)
	}
	if t.InverterClippingRatio < 1 {
		add("inverter_clipping_ratio must be >= 1, got %.3f", t.InverterClippingRatio)
	}
	if t.TrippingDCPowerW < 0 {
		add("tripping_dc_power_w must be >= 0")
	}

	cl := c.Clipping
	if cl.DiffLower > cl.DiffUpper {
		add("clipping diff band lower (%g) exceeds upper (%g)", cl.DiffLower, cl.DiffUpper)
	}
	if cl.SunStartHour < 0 || cl.SunEndHour > 23 || cl.SunStartHour > cl.SunEndHour {
		add("clipping sun hours [%d, %d] out of order", cl.SunStartHour, cl.SunEndHour)
	}
	if cl.MinSlots < 1 {
		add("clipping min_slots must be >= 1")
	}
	if cl.Metric != "ac_power" && cl.Metric != "dc_power" {
		add("clipping metric must be ac_power or dc_power, got %q", cl.Metric)
	}

	if c.ClearSky.Threshold <= 0 {
		add("clear_sky threshold must be > 0")
	}
	if c.Daylight.OffsetMinutes < 0 {
		add("daylight offset_minutes must be >= 0")
	}
	if c.Preprocess.MissingThreshold < 0 {
		add("preprocess missing_threshold must be >= 0")
	}
	if c.Preprocess.OutlierCapacityFactor <= 0 {
		add("preprocess outlier_capacity_factor must be > 0")
	}
	if c.Theoretical.LossFactor <= 0 || c.Theoretical.LossFactor > 1 {
		add("theoretical loss_factor must be in (0, 1]")
	}
	if c.Grid.StepMinutes <= 0 {
		add("grid step_minutes must be > 0")
	}
	if c.Grid.ToleranceSeconds < 0 {
		add("grid tolerance_seconds must be >= 0")
	}
	if c.Grid.Direction != DirectionBackward && c.Grid.Direction != DirectionNearest {
		add("grid direction must be %s or %s, got %q", DirectionBackward, DirectionNearest, c.Grid.Direction)
	}
	if c.Run.Workers < 1 {
		add("run workers must be >= 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Step returns the sample grid step.
func (c Config) Step() time.Duration {
	return time.Duration(c.Grid.StepMinutes) * time.Minute
}

// Tolerance returns the alignment tolerance.
func (c Config) Tolerance() time.Duration {
	return time.Duration(c.Grid.ToleranceSeconds) * time.Second
}

// Offset returns the daylight window offset.
func (c Config) Offset() time.Duration {
	return time.Duration(c.Daylight.OffsetMinutes) * time.Minute
}

// Fingerprint returns a stable hash of the configuration.
func (c Config) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
