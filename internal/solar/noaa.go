package solar

import (
	"math"
	"time"

	"pv-fault-lab/internal/domain"
)

const (
	// Apparent sunrise zenith including refraction and solar disc radius.
	sunriseZenithDeg = 90.833
	solarConstant    = 1367.0 // W/m2
	groundAlbedo     = 0.2
	diffuseFraction  = 0.1 // diffuse horizontal as a share of DNI
)

// NOAA implements Provider with the NOAA general solar position equations
// and a Meinel clear-sky beam model transposed onto a tilted plane.
type NOAA struct{}

// NewNOAA creates a NOAA provider.
func NewNOAA() *NOAA {
	return &NOAA{}
}

// SunTimes returns sunrise and sunset for date.
func (n *NOAA) SunTimes(date domain.Date, lat, lon float64, loc *time.Location) (SunTimes, error) {
	noon := time.Date(date.Year, date.Month, date.Day, 12, 0, 0, 0, time.UTC)
	eqTime, decl := orbit(noon)

	phi := rad(lat)
	cosHA := math.Cos(rad(sunriseZenithDeg))/(math.Cos(phi)*math.Cos(decl)) - math.Tan(phi)*math.Tan(decl)
	if cosHA < -1 || cosHA > 1 {
		return SunTimes{}, ErrNoSunEvent
	}
	ha := deg(math.Acos(cosHA))

	// minutes after UTC midnight of the civil date
	riseMin := 720 - 4*(lon+ha) - eqTime
	setMin := 720 - 4*(lon-ha) - eqTime

	base := date.In(time.UTC)
	return SunTimes{
		Sunrise: domain.Naive(base.Add(minutes(riseMin)), loc),
		Sunset:  domain.Naive(base.Add(minutes(setMin)), loc),
	}, nil
}

// TheoreticalPower returns the clear-sky AC power of the plane for each naive local time.
func (n *NOAA) TheoreticalPower(times []time.Time, plane PlaneConfig, lat, lon float64, loc *time.Location, capacityW float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		instant := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc).UTC()
		out[i] = planeIrradiance(instant, plane, lat, lon) * capacityW * plane.LossFactor / 1000
	}
	return out
}

// Position returns solar zenith and azimuth (degrees, azimuth clockwise from north) at a UTC instant.
func Position(utc time.Time, lat, lon float64) (zenith, azimuth float64) {
	eqTime, decl := orbit(utc)
	trueSolarMin := float64(utc.Hour()*60+utc.Minute()) + float64(utc.Second())/60 + eqTime + 4*lon
	ha := rad(trueSolarMin/4 - 180)
	phi := rad(lat)

	cosZ := math.Sin(phi)*math.Sin(decl) + math.Cos(phi)*math.Cos(decl)*math.Cos(ha)
	cosZ = math.Max(-1, math.Min(1, cosZ))
	zenith = deg(math.Acos(cosZ))

	azimuth = deg(math.Atan2(math.Sin(ha), math.Cos(ha)*math.Sin(phi)-math.Tan(decl)*math.Cos(phi))) + 180
	return zenith, math.Mod(azimuth, 360)
}

// planeIrradiance returns clear-sky plane-of-array irradiance in W/m2.
func planeIrradiance(utc time.Time, plane PlaneConfig, lat, lon float64) float64 {
	zenith, azimuth := Position(utc, lat, lon)
	cosZ := math.Cos(rad(zenith))
	if cosZ <= 0 {
		return 0
	}

	doy := float64(utc.YearDay())
	extra := solarConstant * (1 + 0.033*math.Cos(2*math.Pi*doy/365))

	// Kasten-Young air mass
	airMass := 1 / (cosZ + 0.50572*math.Pow(96.07995-zenith, -1.6364))
	dni := extra * math.Pow(0.7, math.Pow(airMass, 0.678))
	dhi := diffuseFraction * dni
	ghi := dni*cosZ + dhi

	tilt := rad(plane.TiltDeg)
	cosAOI := cosZ*math.Cos(tilt) + math.Sin(rad(zenith))*math.Sin(tilt)*math.Cos(rad(azimuth-plane.AzimuthDeg))

	beam := dni * math.Max(cosAOI, 0)
	sky := dhi * (1 + math.Cos(tilt)) / 2
	ground := ghi * groundAlbedo * (1 - math.Cos(tilt)) / 2
	return beam + sky + ground
}

// orbit returns the equation of time (minutes) and declination (radians) at a UTC instant.
func orbit(utc time.Time) (eqTime, decl float64) {
	hour := float64(utc.Hour()) + float64(utc.Minute())/60 + float64(utc.Second())/3600
	g := 2 * math.Pi / 365 * (float64(utc.YearDay()-1) + (hour-12)/24)

	eqTime = 229.18 * (0.000075 + 0.001868*math.Cos(g) - 0.032077*math.Sin(g) -
		0.014615*math.Cos(2*g) - 0.040849*math.Sin(2*g))
	decl = 0.006918 - 0.399912*math.Cos(g) + 0.070257*math.Sin(g) -
		0.006758*math.Cos(2*g) + 0.000907*math.Sin(2*g) -
		0.002697*math.Cos(3*g) + 0.00148*math.Sin(3*g)
	return eqTime, decl
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

var _ Provider = (*NOAA)(nil)
