// Package solar computes sun events and clear-sky generation for a site.
package solar

import (
	"errors"
	"time"

	"pv-fault-lab/internal/domain"
)

// ErrNoSunEvent is returned when the sun does not rise or set on a date (polar day or night).
var ErrNoSunEvent = errors.New("no sunrise or sunset")

// SunTimes holds the sun events of one date as naive local timestamps.
type SunTimes struct {
	Sunrise time.Time
	Sunset  time.Time
}

// PlaneConfig describes the orientation and losses of the array.
type PlaneConfig struct {
	TiltDeg    float64
	AzimuthDeg float64 // 0 = north, clockwise
	LossFactor float64
}

// Provider supplies sun events and theoretical power for a location.
type Provider interface {
	// SunTimes returns sunrise and sunset of date at (lat, lon) in loc's wall clock.
	SunTimes(date domain.Date, lat, lon float64, loc *time.Location) (SunTimes, error)

	// TheoreticalPower returns clear-sky AC power in W for each naive local time.
	TheoreticalPower(times []time.Time, plane PlaneConfig, lat, lon float64, loc *time.Location, capacityW float64) []float64
}
