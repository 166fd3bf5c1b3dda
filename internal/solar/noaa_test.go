package solar

import (
	"errors"
	"testing"
	"time"

	"pv-fault-lab/internal/domain"
)

func within(a, b time.Time, tol time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestSunTimes(t *testing.T) {
	tests := []struct {
		name        string
		date        domain.Date
		lat, lon    float64
		loc         *time.Location
		wantSunrise time.Time
		wantSunset  time.Time
	}{
		{
			name:        "sydney summer solstice",
			date:        domain.Date{Year: 2023, Month: time.December, Day: 21},
			lat:         -33.87,
			lon:         151.21,
			loc:         time.FixedZone("AEDT", 11*3600),
			wantSunrise: time.Date(2023, 12, 21, 5, 41, 0, 0, time.UTC),
			wantSunset:  time.Date(2023, 12, 21, 20, 5, 0, 0, time.UTC),
		},
		{
			name:        "london summer solstice",
			date:        domain.Date{Year: 2023, Month: time.June, Day: 21},
			lat:         51.5,
			lon:         -0.12,
			loc:         time.FixedZone("BST", 3600),
			wantSunrise: time.Date(2023, 6, 21, 4, 43, 0, 0, time.UTC),
			wantSunset:  time.Date(2023, 6, 21, 21, 21, 0, 0, time.UTC),
		},
	}

	p := NewNOAA()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.SunTimes(tt.date, tt.lat, tt.lon, tt.loc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !within(got.Sunrise, tt.wantSunrise, 5*time.Minute) {
				t.Errorf("sunrise = %v, want ~%v", got.Sunrise, tt.wantSunrise)
			}
			if !within(got.Sunset, tt.wantSunset, 5*time.Minute) {
				t.Errorf("sunset = %v, want ~%v", got.Sunset, tt.wantSunset)
			}
			if got.Sunrise.Location() != time.UTC {
				t.Errorf("sun times must be naive (UTC-carried), got %v", got.Sunrise.Location())
			}
		})
	}
}

func TestSunTimes_PolarNight(t *testing.T) {
	p := NewNOAA()
	_, err := p.SunTimes(domain.Date{Year: 2023, Month: time.December, Day: 21}, 80, 15, time.UTC)
	if !errors.Is(err, ErrNoSunEvent) {
		t.Errorf("expected ErrNoSunEvent, got %v", err)
	}
}

func TestTheoreticalPower(t *testing.T) {
	p := NewNOAA()
	loc := time.FixedZone("AEDT", 11*3600)
	plane := PlaneConfig{TiltDeg: 10, AzimuthDeg: 0, LossFactor: 0.85}

	times := []time.Time{
		time.Date(2023, 12, 21, 0, 0, 0, 0, time.UTC),  // midnight
		time.Date(2023, 12, 21, 13, 0, 0, 0, time.UTC), // near solar noon
		time.Date(2023, 12, 21, 8, 0, 0, 0, time.UTC),  // morning
	}
	got := p.TheoreticalPower(times, plane, -33.87, 151.21, loc, 10000)

	if len(got) != len(times) {
		t.Fatalf("expected %d values, got %d", len(times), len(got))
	}
	if got[0] != 0 {
		t.Errorf("midnight power = %f, want 0", got[0])
	}
	if got[1] <= 7000 || got[1] > 10000*0.85*1.1 {
		t.Errorf("noon power = %f, want plausible clear-sky value", got[1])
	}
	if got[2] <= 0 || got[2] >= got[1] {
		t.Errorf("morning power = %f, want between 0 and noon (%f)", got[2], got[1])
	}
}

func TestPosition_AzimuthRange(t *testing.T) {
	for h := 0; h < 24; h++ {
		_, az := Position(time.Date(2023, 3, 20, h, 0, 0, 0, time.UTC), -33.87, 151.21)
		if az < 0 || az >= 360 {
			t.Errorf("hour %d: azimuth %f out of [0, 360)", h, az)
		}
	}
}
