package models

// PVOverview is the cached SolarEdge overview: power in W, energies in Wh.
type PVOverview struct {
	CurrentPower  *float64 `json:"current"`
	DailyEnergy   *float64 `json:"daily"`
	MonthlyEnergy *float64 `json:"monthly"`
	YearlyEnergy  *float64 `json:"yearly"`
}

// Producing is false at night, when SolarEdge reports nothing or zero.
func (o PVOverview) Producing() bool {
	return o.CurrentPower != nil && *o.CurrentPower > 0
}

type PVMeasurement struct {
	Time  string  `json:"time"` // HH:MM:SS local
	Power float64 `json:"power"`
}

// PVDaily is the persisted layout of pv_daily_data.json.
type PVDaily struct {
	Date         string          `json:"date"`
	Measurements []PVMeasurement `json:"measurements"`
}

// SolarEdgeOverviewResponse mirrors /site/{id}/overview.
type SolarEdgeOverviewResponse struct {
	Overview struct {
		LastUpdateTime string          `json:"lastUpdateTime"`
		CurrentPower   *solarEdgeValue `json:"currentPower"`
		LastDayData    *solarEdgeValue `json:"lastDayData"`
		LastMonthData  *solarEdgeValue `json:"lastMonthData"`
		LastYearData   *solarEdgeValue `json:"lastYearData"`
	} `json:"overview"`
}

type solarEdgeValue struct {
	Power  *float64 `json:"power"`
	Energy *float64 `json:"energy"`
}

// ToOverview flattens the vendor layout.
func (r SolarEdgeOverviewResponse) ToOverview() PVOverview {
	var o PVOverview
	if v := r.Overview.CurrentPower; v != nil {
		o.CurrentPower = v.Power
	}
	if v := r.Overview.LastDayData; v != nil {
		o.DailyEnergy = v.Energy
	}
	if v := r.Overview.LastMonthData; v != nil {
		o.MonthlyEnergy = v.Energy
	}
	if v := r.Overview.LastYearData; v != nil {
		o.YearlyEnergy = v.Energy
	}
	return o
}
