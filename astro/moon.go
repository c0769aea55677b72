package astro

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	TrendWaxing = "↑"
	TrendWaning = "↓"

	synodicMonth = 29.530588
)

var referenceNewMoon = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

// MoonPhase is the display state of the moon.
type MoonPhase struct {
	Name         string
	Trend        string
	Illumination int // percent
}

// ClassifyMoonPhase names the phase from the illuminated percentage and
// whether it is growing.
func ClassifyMoonPhase(illumination int, trend string) string {
	waxing := trend == TrendWaxing
	switch {
	case illumination <= 2:
		return "Neumond"
	case illumination >= 98:
		return "Vollmond"
	case illumination < 48:
		if waxing {
			return "Zunehmende Sichel"
		}
		return "Abnehmende Sichel"
	case illumination <= 52:
		if waxing {
			return "Erstes Viertel"
		}
		return "Letztes Viertel"
	case waxing:
		return "Zunehmender Mond"
	default:
		return "Abnehmender Mond"
	}
}

var errBadIllumination = errors.New("moon illumination out of range")

// CurrentMoonPhase uses the ephemeris. The trend compares with two hours earlier.
func CurrentMoonPhase(now time.Time) (MoonPhase, error) {
	frac, prevFrac := MoonIlluminatedFraction(now), MoonIlluminatedFraction(now.Add(-2*time.Hour))
	if math.IsNaN(frac) || math.IsNaN(prevFrac) {
		return MoonPhase{}, errBadIllumination
	}
	illum := int(math.Round(frac * 100))
	prev := int(math.Round(prevFrac * 100))
	trend := TrendWaning
	if illum >= prev {
		trend = TrendWaxing
	}
	return MoonPhase{Name: ClassifyMoonPhase(illum, trend), Trend: trend, Illumination: illum}, nil
}

// MoonPhaseFallback estimates the phase from the mean synodic month.
func MoonPhaseFallback(now time.Time) MoonPhase {
	days := now.Sub(referenceNewMoon).Hours() / 24
	phase := math.Mod(days, synodicMonth) / synodicMonth
	if phase < 0 {
		phase++
	}
	illum := int(math.Round((1 - math.Cos(2*math.Pi*phase)) / 2 * 100))
	trend := TrendWaning
	if phase < 0.5 {
		trend = TrendWaxing
	}
	return MoonPhase{Name: ClassifyMoonPhase(illum, trend), Trend: trend, Illumination: illum}
}

// FormatOffset renders the UTC offset of t as +HH:MM.
func FormatOffset(t time.Time) string {
	_, secs := t.Zone()
	sign := "+"
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	mins := secs / 60
	return fmt.Sprintf("%s%02d:%02d", sign, mins/60, mins%60)
}

// OffsetForDate takes the offset at local noon, away from DST switches.
func OffsetForDate(day time.Time, loc *time.Location) string {
	y, m, d := day.In(loc).Date()
	return FormatOffset(time.Date(y, m, d, 12, 0, 0, 0, loc))
}
