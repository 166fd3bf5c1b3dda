package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counterWithLabel(f *dto.MetricFamily, name, value string) float64 {
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetrics_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg, "test")

	m.RecordRun("COMPLETED", 3*time.Second)
	m.RecordRun("PARTIAL", time.Second)

	families := gather(t, reg)
	runs := families["test_run_total"]
	require.NotNil(t, runs)
	assert.Equal(t, 1.0, counterWithLabel(runs, "status", "COMPLETED"))
	assert.Equal(t, 1.0, counterWithLabel(runs, "status", "PARTIAL"))

	last := families["test_health_last_successful_run_timestamp"]
	require.NotNil(t, last)
	assert.Greater(t, last.GetMetric()[0].GetGauge().GetValue(), 0.0)

	hist := families["test_run_duration_seconds"]
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestMetrics_RecordLabelsAndDB(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg, "test")

	m.RecordLabels(map[string]int{"inverter_clipping": 13, "blackout": 2})
	m.RecordLabels(map[string]int{"inverter_clipping": 1})
	m.RecordDBQuery("clickhouse", "insert_labels", 10*time.Millisecond, nil)
	m.RecordDBQuery("clickhouse", "insert_labels", 10*time.Millisecond, errors.New("boom"))

	families := gather(t, reg)
	assert.Equal(t, 14.0, counterWithLabel(families["test_labelling_labels_assigned_total"], "label", "inverter_clipping"))
	assert.Equal(t, 2.0, counterWithLabel(families["test_labelling_labels_assigned_total"], "label", "blackout"))
	assert.Equal(t, 1.0, counterWithLabel(families["test_database_query_errors_total"], "operation", "insert_labels"))
}
