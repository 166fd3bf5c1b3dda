package faults

import (
	"errors"
	"fmt"
	"math"

	"pv-fault-lab/internal/config"
	"pv-fault-lab/internal/domain"
)

var (
	// ErrFamilyConflict is returned when two labels of one family match the same sample.
	ErrFamilyConflict = errors.New("conflicting labels within a family")
	// ErrLengthMismatch is returned when samples and clip states are not index-aligned.
	ErrLengthMismatch = errors.New("samples and clip states differ in length")
)

// Result is the labelling of one sample.
type Result struct {
	Labels  domain.LabelSet
	Primary domain.FaultLabel
}

// Cascade evaluates rules in priority order.
type Cascade struct {
	rules      []Rule
	thresholds config.Thresholds
}

// NewCascade creates a Cascade with the default rules.
func NewCascade(thresholds config.Thresholds) *Cascade {
	return NewCascadeWithRules(thresholds, DefaultRules())
}

// NewCascadeWithRules creates a Cascade with a custom rule order.
func NewCascadeWithRules(thresholds config.Thresholds, rules []Rule) *Cascade {
	return &Cascade{rules: rules, thresholds: thresholds}
}

// Rules returns the rules in evaluation order.
func (c *Cascade) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Evaluate labels every sample. clip must be index-aligned with samples.
func (c *Cascade) Evaluate(samples []domain.Sample, clip []domain.ClipState) ([]Result, error) {
	if len(samples) != len(clip) {
		return nil, fmt.Errorf("%w: %d samples, %d states", ErrLengthMismatch, len(samples), len(clip))
	}

	e := &EvalContext{
		Thresholds:   c.thresholds,
		MaxACVoltage: MaxACVoltage(samples),
	}

	results := make([]Result, len(samples))
	for i := range samples {
		in := Input{Sample: &samples[i], Clip: clip[i]}
		r := c.evaluateOne(e, in)
		if err := CheckExclusive(r.Labels); err != nil {
			return nil, fmt.Errorf("%s at %s: %w", samples[i].MonitorID, samples[i].Time.Format("2006-01-02 15:04"), err)
		}
		results[i] = r
	}
	return results, nil
}

func (c *Cascade) evaluateOne(e *EvalContext, in Input) Result {
	var r Result
	for _, rule := range c.rules {
		if !rule.Predicate(e, in) {
			continue
		}
		r.Labels = r.Labels.Add(rule.Label)
		if r.Primary == domain.LabelNone {
			r.Primary = rule.Label
		}
	}
	return r
}

// CheckExclusive returns ErrFamilyConflict if a voltage-partitioned family has more than one member set.
func CheckExclusive(set domain.LabelSet) error {
	for _, f := range []domain.Family{domain.FamilyZeroGeneration, domain.FamilyFlatGeneration} {
		if members := set.InFamily(f); len(members) > 1 {
			return fmt.Errorf("%w: %s has %v", ErrFamilyConflict, f, members)
		}
	}
	return nil
}

// MaxACVoltage returns the largest observed AC voltage, NaN when there is none.
func MaxACVoltage(samples []domain.Sample) float64 {
	peak := math.NaN()
	for i := range samples {
		v := samples[i].ACVoltage
		if domain.IsMissing(v) {
			continue
		}
		if math.IsNaN(peak) || v > peak {
			peak = v
		}
	}
	return peak
}
