package models

import "time"

// SourceStatus describes the freshness of one data source.
type SourceStatus struct {
	Name        string     `json:"name"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	FromCache   bool       `json:"from_cache"`
	HasData     bool       `json:"has_data"`
}

// Snapshot is the combined dashboard state served to clients.
type Snapshot struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Station     *StationView            `json:"station,omitempty"`
	PV          *PVView                 `json:"pv,omitempty"`
	Astro       *AstroData              `json:"astro,omitempty"`
	Sources     map[string]SourceStatus `json:"sources"`
}

type StationView struct {
	Modules            []ModuleView `json:"modules"`
	Pressure           *float64     `json:"pressure,omitempty"`
	PressureTrend      string       `json:"pressure_trend"`
	PressureHigh       bool         `json:"pressure_high"`
	Noise              *float64     `json:"noise,omitempty"`
	Rain1h             float64      `json:"rain_1h"`
	Rain24h            float64      `json:"rain_24h"`
	OutdoorTemperature *float64     `json:"outdoor_temperature,omitempty"`
}

type ModuleView struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Type        string   `json:"type"`
	Temperature *float64 `json:"temperature,omitempty"`
	MinTemp     *float64 `json:"min_temp,omitempty"`
	MaxTemp     *float64 `json:"max_temp,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	CO2         *float64 `json:"co2,omitempty"`
	Battery     *int     `json:"battery_percent,omitempty"`
	Noise       *float64 `json:"noise,omitempty"`
}

type PVView struct {
	CurrentPower *float64        `json:"current_power,omitempty"`
	Producing    bool            `json:"producing"`
	DailyKWh     *float64        `json:"daily_kwh,omitempty"`
	MonthlyKWh   *float64        `json:"monthly_kwh,omitempty"`
	YearlyKWh    *float64        `json:"yearly_kwh,omitempty"`
	Measurements []PVMeasurement `json:"measurements"`
	QueriesToday int             `json:"queries_today"`
	AttemptsDay  int             `json:"attempts_today"`
	MaxQueries   int             `json:"max_queries"`
}
