package domain

import (
	"strings"
	"time"
)

// FaultLabel is a fault category assigned to a sample.
type FaultLabel string

const (
	LabelNone                FaultLabel = ""
	LabelDCZeroGeneration    FaultLabel = "dc_zero_generation"
	LabelInverterTripping    FaultLabel = "inverter_tripping"
	LabelGridOvervoltage     FaultLabel = "grid_overvoltage"
	LabelBlackout            FaultLabel = "blackout"
	LabelUndersizedMPPT      FaultLabel = "undersized_mppt_input_voltage"
	LabelDCSideZeroGenIssue  FaultLabel = "dc_side_zero_generation_issue"
	LabelVoltWattCurtailment FaultLabel = "volt_watt_curtailment"
	LabelVoltVarCurtailment  FaultLabel = "volt_var_curtailment"
	LabelInverterClipping    FaultLabel = "inverter_clipping"
	LabelDCSideFlatGenIssue  FaultLabel = "dc_side_flat_generation_issue"
)

// AllLabels lists every fault category in output column order.
var AllLabels = []FaultLabel{
	LabelDCZeroGeneration,
	LabelInverterTripping,
	LabelGridOvervoltage,
	LabelBlackout,
	LabelUndersizedMPPT,
	LabelDCSideZeroGenIssue,
	LabelVoltWattCurtailment,
	LabelVoltVarCurtailment,
	LabelInverterClipping,
	LabelDCSideFlatGenIssue,
}

// Family groups labels whose conditions partition one generation regime.
type Family string

const (
	FamilyGenerationState Family = "generation_state"
	FamilyZeroGeneration  Family = "zero_generation"
	FamilyFlatGeneration  Family = "flat_generation"
)

// Family returns the family the label belongs to.
func (l FaultLabel) Family() Family {
	switch l {
	case LabelGridOvervoltage, LabelBlackout, LabelUndersizedMPPT, LabelDCSideZeroGenIssue:
		return FamilyZeroGeneration
	case LabelVoltWattCurtailment, LabelVoltVarCurtailment, LabelInverterClipping, LabelDCSideFlatGenIssue:
		return FamilyFlatGeneration
	case LabelDCZeroGeneration, LabelInverterTripping:
		return FamilyGenerationState
	}
	return ""
}

// String returns the string representation of FaultLabel.
func (l FaultLabel) String() string {
	return string(l)
}

// IsValid checks if the label is a known category.
func (l FaultLabel) IsValid() bool {
	return l.bit() != 0
}

func (l FaultLabel) bit() LabelSet {
	for i, known := range AllLabels {
		if known == l {
			return 1 << i
		}
	}
	return 0
}

// LabelSet is a set of fault labels.
type LabelSet uint16

// Add returns the set with l added.
func (s LabelSet) Add(l FaultLabel) LabelSet {
	return s | l.bit()
}

// Has reports whether l is in the set.
func (s LabelSet) Has(l FaultLabel) bool {
	b := l.bit()
	return b != 0 && s&b != 0
}

// Labels returns the members in AllLabels order.
func (s LabelSet) Labels() []FaultLabel {
	var out []FaultLabel
	for _, l := range AllLabels {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

// InFamily returns the members belonging to family f.
func (s LabelSet) InFamily(f Family) []FaultLabel {
	var out []FaultLabel
	for _, l := range s.Labels() {
		if l.Family() == f {
			out = append(out, l)
		}
	}
	return out
}

// IsEmpty reports whether no label is set.
func (s LabelSet) IsEmpty() bool {
	return s == 0
}

// String joins the member names with '|'.
func (s LabelSet) String() string {
	labels := s.Labels()
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = string(l)
	}
	return strings.Join(names, "|")
}

// LabelRow is the labelling output for one (monitor, timestamp).
// Corresponds to fault_labels table in ClickHouse.
type LabelRow struct {
	MonitorID        string
	Time             time.Time // naive local timestamp
	Labels           LabelSet
	Primary          FaultLabel // first matching rule in priority order
	IsClipping       bool
	SegmentDuration  int
	ACPower          float64
	ACVoltage        float64
	DCPower          float64
	TheoreticalPower float64
}
