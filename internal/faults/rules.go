// Package faults assigns fault categories to classified samples through an ordered rule cascade.
package faults

import (
	"pv-fault-lab/internal/config"
	"pv-fault-lab/internal/domain"
)

// Input is one sample with its clipping classification.
type Input struct {
	Sample *domain.Sample
	Clip   domain.ClipState
}

// EvalContext carries the series-level facts shared by all rules of one monitor.
type EvalContext struct {
	Thresholds   config.Thresholds
	MaxACVoltage float64 // maximum AC voltage of the series, NaN when none observed
}

// Sane reports whether the series passes the AC voltage sanity bound.
func (e *EvalContext) Sane() bool {
	return e.MaxACVoltage < e.Thresholds.SanityVoltageV
}

// Predicate decides whether a rule matches one input.
type Predicate func(e *EvalContext, in Input) bool

// Rule pairs a label with its predicate.
type Rule struct {
	Label     domain.FaultLabel
	Predicate Predicate
}

// DefaultRules returns the rules in priority order.
// Zero-generation causes come first, then generation state, then flat generation.
func DefaultRules() []Rule {
	return []Rule{
		{domain.LabelGridOvervoltage, GridOvervoltage},
		{domain.LabelBlackout, Blackout},
		{domain.LabelUndersizedMPPT, UndersizedMPPT},
		{domain.LabelDCSideZeroGenIssue, DCSideZeroGenIssue},
		{domain.LabelDCZeroGeneration, DCZeroGeneration},
		{domain.LabelInverterTripping, InverterTripping},
		{domain.LabelVoltWattCurtailment, VoltWattCurtailment},
		{domain.LabelVoltVarCurtailment, VoltVarCurtailment},
		{domain.LabelInverterClipping, InverterClipping},
		{domain.LabelDCSideFlatGenIssue, DCSideFlatGenIssue},
	}
}

// DCZeroGeneration: no DC and no AC power inside the window.
func DCZeroGeneration(_ *EvalContext, in Input) bool {
	s := in.Sample
	return s.DCPower == 0 && s.ACPower == 0 && s.InWindow()
}

// InverterTripping: DC power present but no AC output inside the window.
func InverterTripping(e *EvalContext, in Input) bool {
	s := in.Sample
	return s.DCPower > e.Thresholds.TrippingDCPowerW && s.ACPower == 0 && s.InWindow()
}

// zeroGeneration is the shared guard of the zero-generation family.
func zeroGeneration(e *EvalContext, s *domain.Sample) bool {
	return s.ACPower == 0 && s.InWindow() && e.Sane()
}

// withinGridBand reports blackout <= AC voltage <= overvoltage.
func withinGridBand(e *EvalContext, s *domain.Sample) bool {
	return s.ACVoltage >= e.Thresholds.BlackoutV && s.ACVoltage <= e.Thresholds.OvervoltageV
}

func GridOvervoltage(e *EvalContext, in Input) bool {
	s := in.Sample
	return zeroGeneration(e, s) && s.ACVoltage > e.Thresholds.OvervoltageV
}

func Blackout(e *EvalContext, in Input) bool {
	s := in.Sample
	return zeroGeneration(e, s) && s.ACVoltage < e.Thresholds.BlackoutV
}

func UndersizedMPPT(e *EvalContext, in Input) bool {
	s := in.Sample
	return zeroGeneration(e, s) && withinGridBand(e, s) && s.DCVoltage > s.ACVoltage
}

func DCSideZeroGenIssue(e *EvalContext, in Input) bool {
	s := in.Sample
	return zeroGeneration(e, s) && withinGridBand(e, s) && s.DCVoltage <= s.ACVoltage
}

func VoltWattCurtailment(e *EvalContext, in Input) bool {
	s := in.Sample
	return in.Clip.IsClipping && s.ACVoltage > e.Thresholds.VoltWattV && e.Sane()
}

func VoltVarCurtailment(e *EvalContext, in Input) bool {
	s := in.Sample
	return in.Clip.IsClipping && s.ACVoltage > e.Thresholds.VoltVarV && s.ACVoltage <= e.Thresholds.VoltWattV
}

// InverterClipping: DC exceeds AC by more than the inverter tolerance while output is flat.
func InverterClipping(e *EvalContext, in Input) bool {
	s := in.Sample
	return in.Clip.IsClipping &&
		s.ACVoltage <= e.Thresholds.VoltVarV &&
		e.Sane() &&
		s.DCPower > e.Thresholds.InverterClippingRatio*s.ACPower &&
		s.InWindow()
}

// DCSideFlatGenIssue: AC tracks DC while output is flat, so the limit is on the DC side.
func DCSideFlatGenIssue(e *EvalContext, in Input) bool {
	s := in.Sample
	return in.Clip.IsClipping && s.ACVoltage <= e.Thresholds.VoltVarV && s.DCPower <= s.ACPower
}
