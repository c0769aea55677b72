package models

import (
	"encoding/json"
	"fmt"
)

// PressureEntry is one hourly barograph sample, stored as [timestamp, pressure, outdoor_temp].
type PressureEntry struct {
	Timestamp   string
	Pressure    *float64
	Temperature *float64
}

func (e PressureEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Timestamp, e.Pressure, e.Temperature})
}

// UnmarshalJSON also accepts the two-element rows written before temperatures were recorded.
func (e *PressureEntry) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("pressure entry: expected at least 2 elements, got %d", len(raw))
	}
	var out PressureEntry
	if err := json.Unmarshal(raw[0], &out.Timestamp); err != nil {
		return fmt.Errorf("pressure entry timestamp: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.Pressure); err != nil {
		return fmt.Errorf("pressure entry value: %w", err)
	}
	if len(raw) >= 3 {
		if err := json.Unmarshal(raw[2], &out.Temperature); err != nil {
			return fmt.Errorf("pressure entry temperature: %w", err)
		}
	}
	*e = out
	return nil
}
