package domain

// Metric identifies one telemetry series of a monitor.
type Metric string

const (
	MetricACPower     Metric = "ac_power"
	MetricACVoltage   Metric = "ac_voltage"
	MetricACCurrent   Metric = "ac_current"
	MetricACFrequency Metric = "ac_frequency"
	MetricDCPower     Metric = "dc_power"
	MetricDCVoltage   Metric = "dc_voltage"
)

// ElectricalMetrics lists the series loaded for every monitor, in load order.
var ElectricalMetrics = []Metric{
	MetricACPower,
	MetricACVoltage,
	MetricACCurrent,
	MetricACFrequency,
	MetricDCPower,
	MetricDCVoltage,
}

// pointNames maps metrics to the point names used by the monitoring platform.
var pointNames = map[Metric]string{
	MetricACPower:     "Gen.W",
	MetricACVoltage:   "Grid.V",
	MetricACCurrent:   "Grid.I",
	MetricACFrequency: "Grid.Hz",
	MetricDCPower:     "Inv.DC.P.W",
	MetricDCVoltage:   "Inv.DC.V",
}

// String returns the string representation of Metric.
func (m Metric) String() string {
	return string(m)
}

// IsValid checks if the metric is a known series.
func (m Metric) IsValid() bool {
	_, ok := pointNames[m]
	return ok
}

// PointName returns the upstream point name of the metric.
func (m Metric) PointName() string {
	return pointNames[m]
}

// ParseMetric resolves either a metric name or an upstream point name.
func ParseMetric(s string) (Metric, bool) {
	if m := Metric(s); m.IsValid() {
		return m, true
	}
	for m, name := range pointNames {
		if name == s {
			return m, true
		}
	}
	return "", false
}
