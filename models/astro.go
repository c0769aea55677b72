package models

import (
	"encoding/json"
	"fmt"
)

// NoTime is shown for any time that could not be determined.
const NoTime = "--:--"

// AstroData is the astronomy block of the dashboard. Times are local HH:MM.
type AstroData struct {
	Date             string  `json:"date"`
	Sunrise          string  `json:"sunrise"`
	Sunset           string  `json:"sunset"`
	DayLength        string  `json:"day_length"`
	CivilDawn        string  `json:"civil_dawn"`
	CivilDusk        string  `json:"civil_dusk"`
	SolarNoon        string  `json:"solar_noon"`
	Moonrise         string  `json:"moonrise"`
	Moonset          string  `json:"moonset"`
	MoonPhase        string  `json:"moon_phase"`
	MoonTrend        string  `json:"moon_trend"`
	MoonIllumination int     `json:"moon_illumination"`
	MaxSunElevation  float64 `json:"max_sun_elevation"`
	MaxMoonElevation float64 `json:"max_moon_elevation"`
}

type astroAlias AstroData

// UnmarshalJSON reads the object form as well as the positional arrays older
// caches hold (13, 12 or 11 elements).
func (a *AstroData) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		var obj astroAlias
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*a = AstroData(obj)
		return nil
	}

	out := AstroData{DayLength: NoTime, MaxMoonElevation: 45}
	var fields []any
	switch len(arr) {
	case 13:
		fields = []any{&out.Sunrise, &out.Sunset, &out.DayLength, &out.CivilDawn, &out.CivilDusk, &out.SolarNoon,
			&out.Moonrise, &out.Moonset, &out.MoonPhase, &out.MoonTrend, &out.MoonIllumination, &out.MaxSunElevation, &out.MaxMoonElevation}
	case 12:
		fields = []any{&out.Sunrise, &out.Sunset, &out.DayLength, &out.CivilDawn, &out.CivilDusk, &out.SolarNoon,
			&out.Moonrise, &out.Moonset, &out.MoonPhase, &out.MoonTrend, &out.MoonIllumination, &out.MaxSunElevation}
	case 11:
		fields = []any{&out.Sunrise, &out.Sunset, &out.CivilDawn, &out.CivilDusk, &out.SolarNoon,
			&out.Moonrise, &out.Moonset, &out.MoonPhase, &out.MoonTrend, &out.MoonIllumination, &out.MaxSunElevation}
	default:
		return fmt.Errorf("unknown astronomy cache format: %d elements", len(arr))
	}
	for i, f := range fields {
		if err := json.Unmarshal(arr[i], f); err != nil {
			return fmt.Errorf("astronomy cache element %d: %w", i, err)
		}
	}
	*a = out
	return nil
}
