package reporting

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pv-fault-lab/internal/clearsky"
	"pv-fault-lab/internal/domain"
)

func testReport() *Report {
	rows := map[string][]domain.LabelRow{
		"m-a": {
			*row("m-a", 1, 10, 0),
			*row("m-a", 1, 10, 5, domain.LabelInverterClipping),
		},
		"site/b": {
			*row("site/b", 1, 10, 5, domain.LabelDCZeroGeneration, domain.LabelBlackout),
		},
	}
	summaries := []MonitorSummary{
		{MonitorID: "m-a", SiteID: "s1", Rows: 2, Counts: CountLabels(rows["m-a"])},
		{MonitorID: "site/b", SiteID: "s1", Rows: 1, Counts: CountLabels(rows["site/b"])},
	}
	return &Report{
		GeneratedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Run:         domain.LabelRun{RunID: "run-x", RangeFrom: jan(1), RangeTo: jan(2), Status: domain.RunStatusPartial, RowsWritten: 3},
		Monitors:    summaries,
		LabelTotals: Totals(summaries),
		Sites: []SiteRatios{{SiteID: "s1", Ratios: []clearsky.DailyRatio{
			{Date: jan(1), Ratio: 0.9, Defined: true},
		}}},
		Table: BuildFleetTable(rows),
	}
}

func TestRenderCSV(t *testing.T) {
	out := RenderCSV(testReport().Table)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	header := strings.Split(lines[0], ",")
	assert.Equal(t, "timestamp", header[0])
	assert.Equal(t, "monitor_id", header[1])
	assert.Equal(t, string(domain.AllLabels[0]), header[2])
	assert.Equal(t, "theoretical_power", header[len(header)-1])

	// Every line has the same number of fields
	for _, l := range lines[1:] {
		assert.Len(t, strings.Split(l, ","), len(header))
	}

	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01 10:00:00,m-a,0,0,"))
	// Missing theoretical power renders empty
	assert.True(t, strings.HasSuffix(lines[1], ",5000.00,240.00,5200.00,"))
	assert.Contains(t, lines[2], ",inverter_clipping,1,3,")
	assert.True(t, strings.HasPrefix(lines[3], "2024-01-01 10:05:00,site/b,1,0,0,1,"))
}

func TestRenderRatiosCSV(t *testing.T) {
	out := RenderRatiosCSV([]SiteRatios{{SiteID: "s1", Ratios: []clearsky.DailyRatio{
		{Date: jan(1), Ratio: 0.9, Defined: true},
		{Date: jan(2), Ratio: domain.Missing},
	}}})
	assert.Equal(t, "site_id,date,ratio\ns1,2024-01-01,0.9000\ns1,2024-01-02,\n", out)
}

func TestCSVField(t *testing.T) {
	assert.Equal(t, "plain", csvField("plain"))
	assert.Equal(t, `"a,b"`, csvField("a,b"))
	assert.Equal(t, `"say ""hi"""`, csvField(`say "hi"`))
}

func TestBuildXLSX(t *testing.T) {
	r := testReport()
	data, err := BuildXLSX(r)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, SheetNames(r), f.GetSheetList())
	assert.Equal(t, []string{"Summary", "m-a", "site_b"}, f.GetSheetList())

	v, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "run-x", v)

	v, err = f.GetCellValue("Summary", "B5")
	require.NoError(t, err)
	assert.Equal(t, "PARTIAL", v)

	v, err = f.GetCellValue("m-a", "A1")
	require.NoError(t, err)
	assert.Equal(t, "timestamp", v)

	v, err = f.GetCellValue("m-a", "A3")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 10:05:00", v)

	rows, err := f.GetRows("site_b")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "a_b_c", sheetName("a:b/c"))
	assert.Equal(t, "m_Summary", sheetName("Summary"))
	assert.Len(t, sheetName(strings.Repeat("x", 40)), 31)
}
