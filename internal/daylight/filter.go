// Package daylight restricts a monitor's samples to the offset sunrise-sunset window of clear-sky days.
package daylight

import (
	"errors"
	"fmt"
	"time"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/solar"
)

// Filter computes daylight windows and applies them to samples.
type Filter struct {
	provider solar.Provider
	offset   time.Duration
}

// NewFilter creates a Filter. offset is applied after sunrise and before sunset.
func NewFilter(provider solar.Provider, offset time.Duration) *Filter {
	return &Filter{
		provider: provider,
		offset:   offset,
	}
}

// Windows returns the daylight window of each date for the monitor's location.
// Dates without a sun event or with an empty offset window are omitted.
func (f *Filter) Windows(monitor *domain.Monitor, loc *time.Location, dates []domain.Date) (map[domain.Date]domain.DaylightWindow, error) {
	windows := make(map[domain.Date]domain.DaylightWindow, len(dates))
	for _, d := range dates {
		st, err := f.provider.SunTimes(d, monitor.Latitude, monitor.Longitude, loc)
		if errors.Is(err, solar.ErrNoSunEvent) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sun times for %s on %s: %w", monitor.MonitorID, d, err)
		}

		w := domain.DaylightWindow{
			Date:    d,
			Sunrise: st.Sunrise,
			Sunset:  st.Sunset,
			Start:   st.Sunrise.Add(f.offset),
			End:     st.Sunset.Add(-f.offset),
		}
		if w.Empty() {
			continue
		}
		windows[d] = w
	}
	return windows, nil
}

// Apply keeps samples inside their day's window on a clear-sky date.
// Kept samples carry the window bounds; the result is a new dense slice.
func Apply(samples []domain.Sample, windows map[domain.Date]domain.DaylightWindow, clearSky []domain.Date) []domain.Sample {
	allowed := make(map[domain.Date]bool, len(clearSky))
	for _, d := range clearSky {
		allowed[d] = true
	}

	out := make([]domain.Sample, 0, len(samples))
	for _, s := range samples {
		d := s.Date()
		if !allowed[d] {
			continue
		}
		w, ok := windows[d]
		if !ok || !w.Contains(s.Time) {
			continue
		}
		s.WindowStart = w.Start
		s.WindowEnd = w.End
		out = append(out, s)
	}
	return out
}
