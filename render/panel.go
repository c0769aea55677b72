// Package render draws the dashboard snapshot as a small bitmap panel for
// kiosk browsers and e-paper clients.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"SmartHome.dashboard/models"
)

const (
	Width  = 480
	Height = 320

	lineHeight = 15
	margin     = 8
	columnX    = 248
)

var (
	background = color.RGBA{R: 0x12, G: 0x14, B: 0x1a, A: 0xff}
	foreground = color.RGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}
	dim        = color.RGBA{R: 0x88, G: 0x8c, B: 0x96, A: 0xff}
	accent     = color.RGBA{R: 0xf5, G: 0xb0, B: 0x2e, A: 0xff}
	divider    = color.RGBA{R: 0x33, G: 0x37, B: 0x40, A: 0xff}
)

// RenderPanel draws the snapshot: clock and station modules on the left,
// PV and astronomy on the right, today's PV curve along the bottom.
func RenderPanel(snap models.Snapshot, now time.Time) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	text(img, margin, 18, now.Format("Mon 02.01.2006  15:04"), accent)
	fillRect(img, image.Rect(margin, 26, Width-margin, 27), divider)
	fillRect(img, image.Rect(columnX-margin, 30, columnX-margin+1, 230), divider)

	drawStation(img, snap.Station, margin, 44)
	drawPV(img, snap.PV, columnX, 44)
	drawAstro(img, snap.Astro, columnX, 44+5*lineHeight)

	if snap.PV != nil {
		drawCurve(img, snap.PV.Measurements, image.Rect(margin, 240, Width-margin, Height-margin))
	}
	return img
}

func drawStation(img *image.RGBA, st *models.StationView, x, y int) {
	if st == nil {
		text(img, x, y, "Station: no data", dim)
		return
	}

	for _, m := range st.Modules {
		text(img, x, y, fmt.Sprintf("%-12s %s", m.DisplayName, temperature(m.Temperature)), foreground)
		y += lineHeight

		var details []string
		if m.Humidity != nil {
			details = append(details, fmt.Sprintf("%.0f%%", *m.Humidity))
		}
		if m.CO2 != nil {
			details = append(details, fmt.Sprintf("%.0f ppm", *m.CO2))
		}
		if m.Battery != nil {
			details = append(details, fmt.Sprintf("bat %d%%", *m.Battery))
		}
		if len(details) > 0 {
			text(img, x+8, y, strings.Join(details, "  "), dim)
		}
		y += lineHeight + 2
	}

	if st.Pressure != nil {
		c := foreground
		if st.PressureHigh {
			c = accent
		}
		text(img, x, y, fmt.Sprintf("%.1f hPa %s", *st.Pressure, st.PressureTrend), c)
		y += lineHeight
	}
	if st.Rain24h > 0 {
		text(img, x, y, fmt.Sprintf("Rain %.1f mm/h  %.1f mm/24h", st.Rain1h, st.Rain24h), dim)
	}
}

func drawPV(img *image.RGBA, pv *models.PVView, x, y int) {
	if pv == nil {
		text(img, x, y, "PV: no data", dim)
		return
	}

	if pv.Producing && pv.CurrentPower != nil {
		text(img, x, y, fmt.Sprintf("PV %.0f W", *pv.CurrentPower), accent)
	} else {
		text(img, x, y, "PV Night", dim)
	}
	y += lineHeight
	text(img, x, y, fmt.Sprintf("Day   %s", energy(pv.DailyKWh)), foreground)
	y += lineHeight
	text(img, x, y, fmt.Sprintf("Month %s", energy(pv.MonthlyKWh)), foreground)
	y += lineHeight
	text(img, x, y, fmt.Sprintf("Year  %s", energy(pv.YearlyKWh)), foreground)
}

func drawAstro(img *image.RGBA, a *models.AstroData, x, y int) {
	if a == nil {
		text(img, x, y, "Astro: no data", dim)
		return
	}

	rows := []string{
		fmt.Sprintf("Sun  %s - %s", a.Sunrise, a.Sunset),
		fmt.Sprintf("Day  %s", a.DayLength),
		fmt.Sprintf("Civil %s - %s", a.CivilDawn, a.CivilDusk),
		fmt.Sprintf("Noon %s  %.0f deg", a.SolarNoon, a.MaxSunElevation),
		fmt.Sprintf("Moon %s - %s", a.Moonrise, a.Moonset),
		fmt.Sprintf("%s %s %d%%", a.MoonPhase, a.MoonTrend, a.MoonIllumination),
	}
	for _, row := range rows {
		text(img, x, y, row, foreground)
		y += lineHeight
	}
}

// drawCurve plots the PV measurements as vertical bars scaled to the peak.
func drawCurve(img *image.RGBA, ms []models.PVMeasurement, r image.Rectangle) {
	fillRect(img, image.Rect(r.Min.X, r.Max.Y, r.Max.X, r.Max.Y+1), divider)
	if len(ms) == 0 {
		return
	}

	peak := 0.0
	for _, m := range ms {
		peak = max(peak, m.Power)
	}
	if peak <= 0 {
		return
	}

	width := r.Dx()
	for i, m := range ms {
		x := r.Min.X + i*width/len(ms)
		h := int(m.Power / peak * float64(r.Dy()))
		fillRect(img, image.Rect(x, r.Max.Y-h, x+max(1, width/len(ms)), r.Max.Y), accent)
	}
	text(img, r.Min.X, r.Min.Y+10, fmt.Sprintf("max %.0f W", peak), dim)
}

func temperature(v *float64) string {
	if v == nil {
		return "--.- C"
	}
	return fmt.Sprintf("%5.1f C", *v)
}

func energy(v *float64) string {
	if v == nil {
		return "-- kWh"
	}
	return fmt.Sprintf("%.1f kWh", *v)
}

func text(img *image.RGBA, x, y int, s string, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(ASCII(s))
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

var asciiReplacer = strings.NewReplacer(
	"…", "..",
	"↑", "^",
	"↓", "v",
	"→", "->",
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss",
	"°", " deg",
)

// ASCII maps the symbols the dashboard uses onto glyphs basicfont can draw.
// Any other non-ASCII rune becomes '?'.
func ASCII(s string) string {
	s = asciiReplacer.Replace(s)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, s)
}
