package services

import (
	"sort"
	"unicode/utf8"

	"SmartHome.dashboard/models"
)

const (
	maxDisplayModules = 4
	maxNameRunes      = 12
	normalPressure    = 1013.25
)

var modulePriority = map[string]int{
	models.ModuleMain:    0,
	models.ModuleIndoor:  1,
	models.ModuleOutdoor: 2,
	models.ModuleRain:    3,
	models.ModuleWind:    4,
}

func priority(moduleType string) int {
	if p, ok := modulePriority[moduleType]; ok {
		return p
	}
	return 99
}

// Snapshot assembles the current view of all sources.
func (d *Dashboard) Snapshot() models.Snapshot {
	snap := models.Snapshot{
		GeneratedAt: d.now().In(d.loc),
		Sources:     map[string]models.SourceStatus{},
	}

	if d.netatmo != nil {
		src := d.netatmo.Source()
		snap.Sources[SourceNetatmo] = src.Status()
		if data, ok := src.Current(); ok {
			snap.Station = stationView(data, d.pressure.Entries())
		}
	}

	snap.Sources[SourceAstro] = d.astro.Source().Status()
	if a, ok := d.astro.Source().Current(); ok {
		snap.Astro = &a
	}

	snap.Sources[SourcePV] = d.pv.Source().Status()
	if ov, ok := d.pv.Source().Current(); ok {
		stats := d.pv.Stats()
		snap.PV = &models.PVView{
			CurrentPower: ov.CurrentPower,
			Producing:    ov.Producing(),
			DailyKWh:     kWh(ov.DailyEnergy),
			MonthlyKWh:   kWh(ov.MonthlyEnergy),
			YearlyKWh:    kWh(ov.YearlyEnergy),
			Measurements: d.daily.Measurements(),
			QueriesToday: stats.QueriesToday,
			AttemptsDay:  stats.AttemptsToday,
			MaxQueries:   stats.MaxQueries,
		}
	}
	return snap
}

func stationView(data models.StationsResponse, history []models.PressureEntry) *models.StationView {
	v := &models.StationView{
		Modules:            displayModules(data),
		PressureTrend:      PressureTrend(history),
		OutdoorTemperature: data.OutdoorTemperature(),
	}
	if main, ok := data.Main(); ok {
		v.Pressure = main.Data().Pressure
		v.Noise = main.Data().Noise
		v.PressureHigh = v.Pressure != nil && *v.Pressure >= normalPressure
	}
	for _, m := range data.AllModules() {
		if m.Type != models.ModuleRain {
			continue
		}
		if r := m.Data().SumRain1; r != nil {
			v.Rain1h = *r
		}
		if r := m.Data().SumRain24; r != nil {
			v.Rain24h = *r
		}
	}
	return v
}

// displayModules picks up to four modules by type priority. Modules without
// temperature (wind, rain) are skipped, the base station never is.
func displayModules(data models.StationsResponse) []models.ModuleView {
	all := data.AllModules()
	sort.SliceStable(all, func(i, j int) bool { return priority(all[i].Type) < priority(all[j].Type) })

	views := []models.ModuleView{}
	for _, m := range all {
		if len(views) >= maxDisplayModules {
			break
		}
		isMain := m.Type == models.ModuleMain
		if !isMain && (m.DashboardData == nil || m.DashboardData.Temperature == nil) {
			continue
		}
		d := m.Data()
		view := models.ModuleView{
			Name:        m.ModuleName,
			DisplayName: DisplayName(m.ModuleName),
			Type:        m.Type,
			Temperature: d.Temperature,
			MinTemp:     d.MinTemp,
			MaxTemp:     d.MaxTemp,
			Humidity:    d.Humidity,
			CO2:         d.CO2,
		}
		if isMain {
			view.Noise = d.Noise
		} else {
			view.Battery = m.BatteryPercent
		}
		views = append(views, view)
	}
	return views
}

// DisplayName shortens names longer than 12 characters to 11 plus an ellipsis.
func DisplayName(name string) string {
	if utf8.RuneCountInString(name) <= maxNameRunes {
		return name
	}
	return string([]rune(name)[:maxNameRunes-1]) + "…"
}

// PressureTrend compares the first and last pressure of the three newest
// history entries.
func PressureTrend(history []models.PressureEntry) string {
	if len(history) < 3 {
		return ""
	}
	var pressures []float64
	for _, e := range history[len(history)-3:] {
		if e.Pressure != nil {
			pressures = append(pressures, *e.Pressure)
		}
	}
	if len(pressures) < 2 {
		return ""
	}
	switch diff := pressures[len(pressures)-1] - pressures[0]; {
	case diff > 1:
		return "↑↑"
	case diff > 0.3:
		return "↑"
	case diff < -1:
		return "↓↓"
	case diff < -0.3:
		return "↓"
	default:
		return "→"
	}
}

func kWh(wh *float64) *float64 {
	if wh == nil {
		return nil
	}
	v := *wh / 1000
	return &v
}
