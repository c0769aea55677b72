package astro

import (
	"errors"
	"time"
)

const (
	CivilTwilightElevation = -6.0

	// elevation floors keep the arc scaling on the panel sensible
	minMaxElevation      = 10.0
	FallbackMaxElevation = 45.0
)

// ErrNoCrossing is returned when the sun never crosses the requested
// elevation in the search window, e.g. during polar day.
var ErrNoCrossing = errors.New("sun does not cross the requested elevation")

// findCrossing bisects [start, end] for the moment the sun passes target.
// rising selects an upward crossing.
func findCrossing(obs Observer, target float64, start, end time.Time, rising bool) (time.Time, error) {
	startEl, endEl := SunElevation(start, obs), SunElevation(end, obs)
	if rising && !(startEl < target && endEl >= target) {
		return time.Time{}, ErrNoCrossing
	}
	if !rising && !(startEl > target && endEl <= target) {
		return time.Time{}, ErrNoCrossing
	}

	for i := 0; i < 30; i++ {
		mid := start.Add(end.Sub(start) / 2)
		el := SunElevation(mid, obs)
		if (rising && el < target) || (!rising && el > target) {
			start = mid
		} else {
			end = mid
		}
	}
	return start.Add(end.Sub(start) / 2), nil
}

// CivilTwilight returns civil dawn and dusk (sun at -6°) for the local date of day.
func CivilTwilight(day time.Time, obs Observer, loc *time.Location) (dawn, dusk time.Time, err error) {
	y, m, d := day.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	noon := time.Date(y, m, d, 12, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, 0, loc)

	dawn, err = findCrossing(obs, CivilTwilightElevation, midnight, noon, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	dusk, err = findCrossing(obs, CivilTwilightElevation, noon, end, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return dawn.In(loc), dusk.In(loc), nil
}

// SolarNoon scans 11:00 to 14:55 local time in 5 minute steps and returns
// the sample with the highest sun together with that elevation, floored at 10°.
func SolarNoon(day time.Time, obs Observer, loc *time.Location) (time.Time, float64) {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 11, 0, 0, 0, loc)

	// 12:00 stands when the sun never rises above the horizon
	best, bestEl := time.Date(y, m, d, 12, 0, 0, 0, loc), 0.0
	for t := start; t.Before(start.Add(4 * time.Hour)); t = t.Add(5 * time.Minute) {
		if el := SunElevation(t, obs); el > bestEl {
			best, bestEl = t, el
		}
	}
	return best, max(bestEl, minMaxElevation)
}

// MaxMoonElevation samples every full hour of the local date, floored at 10°.
func MaxMoonElevation(day time.Time, obs Observer, loc *time.Location) float64 {
	y, m, d := day.In(loc).Date()
	best := 0.0
	for h := 0; h < 24; h++ {
		if el := MoonElevation(time.Date(y, m, d, h, 0, 0, 0, loc), obs); el > best {
			best = el
		}
	}
	return max(best, minMaxElevation)
}
