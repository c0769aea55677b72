// Package astro computes sun and moon positions for the observer with
// low-precision analytic series. Accuracy is a few arc minutes, plenty for
// twilight times and a moon phase display.
package astro

import (
	"math"
	"time"
)

const (
	rad       = math.Pi / 180
	obliquity = rad * 23.4397
	sunDistKM = 149598000.0
)

// Observer is a position on Earth in degrees.
type Observer struct {
	Lat float64
	Lon float64
}

type equatorial struct {
	ra, dec float64
	dist    float64 // km, moon only
}

// daysSinceJ2000 counts days from 2000-01-01 12:00 UTC.
func daysSinceJ2000(t time.Time) float64 {
	return float64(t.UnixNano())/1e9/86400 - 10957.5
}

func rightAscension(l, b float64) float64 {
	return math.Atan2(math.Sin(l)*math.Cos(obliquity)-math.Tan(b)*math.Sin(obliquity), math.Cos(l))
}

func declination(l, b float64) float64 {
	return math.Asin(math.Sin(b)*math.Cos(obliquity) + math.Cos(b)*math.Sin(obliquity)*math.Sin(l))
}

func siderealTime(d, lw float64) float64 {
	return rad*(280.16+360.9856235*d) - lw
}

func altitude(h, phi, dec float64) float64 {
	return math.Asin(math.Sin(phi)*math.Sin(dec) + math.Cos(phi)*math.Cos(dec)*math.Cos(h))
}

func sunCoords(d float64) equatorial {
	m := rad * (357.5291 + 0.98560028*d)
	c := rad * (1.9148*math.Sin(m) + 0.02*math.Sin(2*m) + 0.0003*math.Sin(3*m))
	l := m + c + rad*102.9372 + math.Pi
	return equatorial{ra: rightAscension(l, 0), dec: declination(l, 0), dist: sunDistKM}
}

func moonCoords(d float64) equatorial {
	lng := rad * (218.316 + 13.176396*d)
	m := rad * (134.963 + 13.064993*d)
	f := rad * (93.272 + 13.229350*d)

	l := lng + rad*6.289*math.Sin(m)
	b := rad * 5.128 * math.Sin(f)
	return equatorial{ra: rightAscension(l, b), dec: declination(l, b), dist: 385001 - 20905*math.Cos(m)}
}

func elevation(t time.Time, obs Observer, coords func(float64) equatorial) float64 {
	d := daysSinceJ2000(t)
	lw := rad * -obs.Lon
	phi := rad * obs.Lat
	c := coords(d)
	h := siderealTime(d, lw) - c.ra
	return altitude(h, phi, c.dec) / rad
}

// SunElevation returns the geometric elevation of the sun's centre in degrees.
func SunElevation(t time.Time, obs Observer) float64 {
	return elevation(t, obs, sunCoords)
}

// MoonElevation returns the geometric elevation of the moon in degrees.
func MoonElevation(t time.Time, obs Observer) float64 {
	return elevation(t, obs, moonCoords)
}

// MoonIlluminatedFraction is in the range 0..1.
func MoonIlluminatedFraction(t time.Time) float64 {
	d := daysSinceJ2000(t)
	s := sunCoords(d)
	m := moonCoords(d)

	phi := math.Acos(math.Sin(s.dec)*math.Sin(m.dec) + math.Cos(s.dec)*math.Cos(m.dec)*math.Cos(s.ra-m.ra))
	inc := math.Atan2(s.dist*math.Sin(phi), m.dist-s.dist*math.Cos(phi))
	return (1 + math.Cos(inc)) / 2
}
