package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pv-fault-lab/internal/config"
	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/solar"
	"pv-fault-lab/internal/storage"
)

// FixtureRange is the date range covered by LoadFixtures.
var FixtureRange = domain.DateRange{
	From: domain.Date{Year: 2024, Month: time.January, Day: 8},
	To:   domain.Date{Year: 2024, Month: time.January, Day: 11},
}

// FixtureStores are the stores LoadFixtures populates.
type FixtureStores struct {
	Sites     storage.SiteStore
	Monitors  storage.MonitorStore
	Daily     storage.DailyGenerationStore
	Telemetry storage.TelemetryStore
}

const (
	fixtureClearSkyWh  = 40000.0
	inverterEfficiency = 0.97
	nominalACVoltage   = 240.0
	nominalDCVoltage   = 380.0
	gridFrequency      = 50.0
)

var (
	fixtureDay1 = FixtureRange.From
	fixtureDay2 = FixtureRange.From.AddDays(1)
	fixtureDay3 = FixtureRange.From.AddDays(2)
)

// point is the electrical state of a monitor at one instant.
type point struct {
	acPower   float64
	acVoltage float64
	dcPower   float64
	dcVoltage float64
}

// shape turns the clear-sky power of one naive local time into measurements.
type shape func(day domain.Date, t time.Time, theoretical float64) point

type fixtureMonitor struct {
	monitor domain.Monitor
	shape   shape
}

type fixtureSite struct {
	site   domain.Site
	ratios []*float64 // per day of FixtureRange, nil for an undefined clear-sky model
}

func ratio(v float64) *float64 { return &v }

var fixtureSites = []fixtureSite{
	{
		site:   domain.Site{SiteID: "site-syd", Timezone: "Australia/Sydney", Name: "Sydney Depot"},
		ratios: []*float64{ratio(0.95), ratio(0.5), ratio(0.97)},
	},
	{
		site:   domain.Site{SiteID: "site-per", Timezone: "Australia/Perth", Name: "Perth Warehouse"},
		ratios: []*float64{ratio(0.96), ratio(0.93), nil},
	},
}

var fixtureMonitors = []fixtureMonitor{
	{
		monitor: domain.Monitor{MonitorID: "syd-healthy", SiteID: "site-syd", PVSizeW: 5000, Latitude: -33.87, Longitude: 151.21},
		shape:   healthy,
	},
	{
		// 6.6 kW array on an inverter capped at 4 kW
		monitor: domain.Monitor{MonitorID: "syd-clipping", SiteID: "site-syd", PVSizeW: 6600, Latitude: -33.87, Longitude: 151.21},
		shape:   clipped(4000),
	},
	{
		monitor: domain.Monitor{MonitorID: "syd-tripping", SiteID: "site-syd", PVSizeW: 5000, Latitude: -33.87, Longitude: 151.21},
		shape:   tripped(fixtureDay3, 11, 12),
	},
	{
		monitor: domain.Monitor{MonitorID: "per-blackout", SiteID: "site-per", PVSizeW: 8000, Latitude: -31.95, Longitude: 115.86},
		shape:   blackout(fixtureDay1, 12, 13),
	},
	{
		monitor: domain.Monitor{MonitorID: "per-voltvar", SiteID: "site-per", PVSizeW: 8000, Latitude: -31.95, Longitude: 115.86},
		shape:   voltVar(fixtureDay2, 11, 14, 2500),
	},
}

// FixtureMonitorIDs returns the monitor IDs LoadFixtures creates, sorted.
func FixtureMonitorIDs() []string {
	ids := make([]string, len(fixtureMonitors))
	for i, m := range fixtureMonitors {
		ids[i] = m.monitor.MonitorID
	}
	sort.Strings(ids)
	return ids
}

// LoadFixtures populates stores with a synthetic fleet over FixtureRange.
// Telemetry follows the clear-sky model of each monitor with faults injected on clear-sky days.
func LoadFixtures(ctx context.Context, stores FixtureStores) error {
	cfg := config.Default()
	plane := solar.PlaneConfig{
		TiltDeg:    cfg.Theoretical.TiltDeg,
		AzimuthDeg: cfg.Theoretical.AzimuthDeg,
		LossFactor: cfg.Theoretical.LossFactor,
	}

	locations := make(map[string]*time.Location, len(fixtureSites))
	for _, fs := range fixtureSites {
		site := fs.site
		if err := stores.Sites.Insert(ctx, &site); err != nil {
			return fmt.Errorf("insert site %s: %w", site.SiteID, err)
		}
		loc, err := time.LoadLocation(site.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %s: %w", site.Timezone, err)
		}
		locations[site.SiteID] = loc

		if err := loadDaily(ctx, stores.Daily, fs); err != nil {
			return err
		}
	}

	provider := solar.NewNOAA()
	for _, fm := range fixtureMonitors {
		m := fm.monitor
		if err := stores.Monitors.Insert(ctx, &m); err != nil {
			return fmt.Errorf("insert monitor %s: %w", m.MonitorID, err)
		}
		readings := synthesize(provider, plane, fm, locations[m.SiteID])
		for _, metric := range domain.ElectricalMetrics {
			if err := stores.Telemetry.InsertReadings(ctx, m.MonitorID, metric, readings[metric]); err != nil {
				return fmt.Errorf("insert %s readings of %s: %w", metric, m.MonitorID, err)
			}
		}
	}
	return nil
}

func loadDaily(ctx context.Context, store storage.DailyGenerationStore, fs fixtureSite) error {
	rows := make([]*domain.DailyGeneration, 0, len(fs.ratios))
	for i, d := range FixtureRange.Dates() {
		row := &domain.DailyGeneration{SiteID: fs.site.SiteID, Date: d}
		if r := fs.ratios[i]; r != nil {
			expected, clearSky := *r*fixtureClearSkyWh, fixtureClearSkyWh
			row.Expected = &expected
			row.ClearSky = &clearSky
		} else {
			expected := 0.9 * fixtureClearSkyWh
			row.Expected = &expected
		}
		rows = append(rows, row)
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		return fmt.Errorf("insert daily generation of %s: %w", fs.site.SiteID, err)
	}
	return nil
}

// synthesize produces 5-minute readings of every electrical metric over FixtureRange.
func synthesize(provider solar.Provider, plane solar.PlaneConfig, fm fixtureMonitor, loc *time.Location) map[domain.Metric][]domain.Reading {
	m := fm.monitor
	out := make(map[domain.Metric][]domain.Reading, len(domain.ElectricalMetrics))

	for _, day := range FixtureRange.Dates() {
		var naive []time.Time
		for t := day.In(time.UTC); t.Before(day.AddDays(1).In(time.UTC)); t = t.Add(5 * time.Minute) {
			naive = append(naive, t)
		}
		theoretical := provider.TheoreticalPower(naive, plane, m.Latitude, m.Longitude, loc, m.PVSizeW)

		for i, t := range naive {
			p := fm.shape(day, t, theoretical[i])
			instant := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc).UTC()

			acCurrent := 0.0
			if p.acVoltage > 0 {
				acCurrent = p.acPower / p.acVoltage
			}
			frequency := gridFrequency
			if p.acVoltage < 100 {
				frequency = 0
			}

			add := func(metric domain.Metric, v float64) {
				out[metric] = append(out[metric], domain.Reading{Time: instant, Value: v})
			}
			add(domain.MetricACPower, p.acPower)
			add(domain.MetricACVoltage, p.acVoltage)
			add(domain.MetricACCurrent, acCurrent)
			add(domain.MetricACFrequency, frequency)
			add(domain.MetricDCPower, p.dcPower)
			add(domain.MetricDCVoltage, p.dcVoltage)
		}
	}
	return out
}

func healthy(_ domain.Date, _ time.Time, theoretical float64) point {
	if theoretical <= 0 {
		return point{acVoltage: nominalACVoltage}
	}
	return point{
		acPower:   theoretical,
		acVoltage: nominalACVoltage,
		dcPower:   theoretical / inverterEfficiency,
		dcVoltage: nominalDCVoltage,
	}
}

// clipped caps AC output at limitW while the array keeps producing.
func clipped(limitW float64) shape {
	return func(day domain.Date, t time.Time, theoretical float64) point {
		p := healthy(day, t, theoretical)
		if p.acPower > limitW {
			p.acPower = limitW
		}
		return p
	}
}

// tripped drops AC output to zero between the given hours of day while DC stays up.
func tripped(on domain.Date, fromHour, toHour int) shape {
	return func(day domain.Date, t time.Time, theoretical float64) point {
		p := healthy(day, t, theoretical)
		if day == on && inHours(t, fromHour, toHour) {
			p.acPower = 0
		}
		return p
	}
}

// blackout loses the grid between the given hours: no output and a collapsed AC voltage.
func blackout(on domain.Date, fromHour, toHour int) shape {
	return func(day domain.Date, t time.Time, theoretical float64) point {
		p := healthy(day, t, theoretical)
		if day == on && inHours(t, fromHour, toHour) {
			p.acPower = 0
			p.dcPower = 0
			p.acVoltage = 180
		}
		return p
	}
}

// voltVar holds output flat at limitW with the grid inside the volt-var band.
func voltVar(on domain.Date, fromHour, toHour int, limitW float64) shape {
	return func(day domain.Date, t time.Time, theoretical float64) point {
		p := healthy(day, t, theoretical)
		if day == on && inHours(t, fromHour, toHour) && p.acPower > limitW {
			p.acPower = limitW
			p.dcPower = limitW / inverterEfficiency
			p.acVoltage = 249
		}
		return p
	}
}

func inHours(t time.Time, fromHour, toHour int) bool {
	return t.Hour() >= fromHour && t.Hour() < toHour
}
