package domain

import (
	"math"
	"time"
)

// Missing marks an absent measurement.
var Missing = math.NaN()

// IsMissing reports whether v carries no measurement.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Reading is one sparse telemetry point as returned by the telemetry source.
type Reading struct {
	Time  time.Time // instant of the reading (UTC)
	Value float64
}

// Sample is one monitor record on the 5-minute grid.
// Time is a naive local timestamp (see Naive); absent values are NaN.
type Sample struct {
	MonitorID string
	Time      time.Time

	ACPower     float64 // W
	ACVoltage   float64 // V
	ACCurrent   float64 // A
	ACFrequency float64 // Hz
	DCPower     float64 // W
	DCVoltage   float64 // V
	DCCurrent   float64 // A, derived

	TheoreticalPower float64 // W, clear-sky model

	// Daylight window of the sample's day, zero until the window filter runs.
	WindowStart time.Time
	WindowEnd   time.Time
}

// NewSample returns a sample with every measurement missing.
func NewSample(monitorID string, t time.Time) Sample {
	return Sample{
		MonitorID:        monitorID,
		Time:             t,
		ACPower:          Missing,
		ACVoltage:        Missing,
		ACCurrent:        Missing,
		ACFrequency:      Missing,
		DCPower:          Missing,
		DCVoltage:        Missing,
		DCCurrent:        Missing,
		TheoreticalPower: Missing,
	}
}

// Measurements returns pointers to the seven measured fields, in a fixed order.
func (s *Sample) Measurements() []*float64 {
	return []*float64{
		&s.DCPower,
		&s.DCVoltage,
		&s.DCCurrent,
		&s.ACPower,
		&s.ACVoltage,
		&s.ACCurrent,
		&s.ACFrequency,
	}
}

// Value returns the field backing metric m.
func (s *Sample) Value(m Metric) float64 {
	switch m {
	case MetricACPower:
		return s.ACPower
	case MetricACVoltage:
		return s.ACVoltage
	case MetricACCurrent:
		return s.ACCurrent
	case MetricACFrequency:
		return s.ACFrequency
	case MetricDCPower:
		return s.DCPower
	case MetricDCVoltage:
		return s.DCVoltage
	}
	return Missing
}

// Set assigns the field backing metric m.
func (s *Sample) Set(m Metric, v float64) {
	switch m {
	case MetricACPower:
		s.ACPower = v
	case MetricACVoltage:
		s.ACVoltage = v
	case MetricACCurrent:
		s.ACCurrent = v
	case MetricACFrequency:
		s.ACFrequency = v
	case MetricDCPower:
		s.DCPower = v
	case MetricDCVoltage:
		s.DCVoltage = v
	}
}

// Date returns the calendar date of the sample.
func (s *Sample) Date() Date {
	return DateOf(s.Time)
}

// InWindow reports whether the sample lies within its daylight window (inclusive).
// A sample without a window is never in it.
func (s *Sample) InWindow() bool {
	if s.WindowStart.IsZero() || s.WindowEnd.IsZero() {
		return false
	}
	return !s.Time.Before(s.WindowStart) && !s.Time.After(s.WindowEnd)
}

// DeriveDCCurrent computes DC current from DC power and voltage.
// Zero voltage yields zero current; a missing input yields a missing current.
func DeriveDCCurrent(power, voltage float64) float64 {
	if IsMissing(power) || IsMissing(voltage) {
		return Missing
	}
	if voltage == 0 {
		return 0
	}
	return power / voltage
}
