package models

// ArchiveRecord is one line of the yearly JSONL measurement archive.
type ArchiveRecord struct {
	Timestamp string          `json:"timestamp"`
	Modules   []ArchiveModule `json:"modules"`
	PVPower   *float64        `json:"pv_power,omitempty"`
}

type ArchiveModule struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	CO2            *float64 `json:"co2,omitempty"`
	Pressure       *float64 `json:"pressure,omitempty"`
	Noise          *float64 `json:"noise,omitempty"`
	BatteryPercent *int     `json:"battery_percent,omitempty"`
	MinTemp        *float64 `json:"min_temp,omitempty"`
	MaxTemp        *float64 `json:"max_temp,omitempty"`
	Rain1h         *float64 `json:"rain_1h,omitempty"`
	Rain24h        *float64 `json:"rain_24h,omitempty"`
}
