package models

import "encoding/json"

// Netatmo module types.
const (
	ModuleMain    = "NAMain"    // indoor base station (CO2, noise, pressure)
	ModuleOutdoor = "NAModule1" // outdoor temperature
	ModuleWind    = "NAModule2"
	ModuleRain    = "NAModule3"
	ModuleIndoor  = "NAModule4" // additional indoor module
)

// StationsResponse is /api/getstationsdata. The dashboard reads a subset;
// every other field is kept in Extra and written back unchanged.
type StationsResponse struct {
	Status string                     `json:"status,omitempty"`
	Body   StationsBody               `json:"body"`
	Extra  map[string]json.RawMessage `json:"-"`
}

type StationsBody struct {
	Devices []StationModule            `json:"devices"`
	Extra   map[string]json.RawMessage `json:"-"`
}

// StationModule is either a base station (with Modules) or one of its modules.
type StationModule struct {
	ID             string          `json:"_id,omitempty"`
	Type           string          `json:"type,omitempty"`
	ModuleName     string          `json:"module_name,omitempty"`
	StationName    string          `json:"station_name,omitempty"`
	BatteryPercent *int            `json:"battery_percent,omitempty"`
	DashboardData  *DashboardData  `json:"dashboard_data,omitempty"`
	Modules        []StationModule `json:"modules,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type DashboardData struct {
	TimeUTC     int64    `json:"time_utc,omitempty"`
	Temperature *float64 `json:"Temperature,omitempty"`
	Humidity    *float64 `json:"Humidity,omitempty"`
	CO2         *float64 `json:"CO2,omitempty"`
	Pressure    *float64 `json:"Pressure,omitempty"`
	Noise       *float64 `json:"Noise,omitempty"`
	MinTemp     *float64 `json:"min_temp,omitempty"`
	MaxTemp     *float64 `json:"max_temp,omitempty"`
	SumRain1    *float64 `json:"sum_rain_1,omitempty"`
	SumRain24   *float64 `json:"sum_rain_24,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Data never returns nil.
func (m StationModule) Data() DashboardData {
	if m.DashboardData == nil {
		return DashboardData{}
	}
	return *m.DashboardData
}

// AllModules flattens every device and its sub-modules, devices first.
func (r StationsResponse) AllModules() []StationModule {
	var all []StationModule
	for _, d := range r.Body.Devices {
		all = append(all, d)
		all = append(all, d.Modules...)
	}
	return all
}

// OutdoorTemperature returns the temperature of the first outdoor module reporting one.
func (r StationsResponse) OutdoorTemperature() *float64 {
	for _, m := range r.AllModules() {
		if m.Type == ModuleOutdoor && m.Data().Temperature != nil {
			return m.Data().Temperature
		}
	}
	return nil
}

// Main returns the first base station.
func (r StationsResponse) Main() (StationModule, bool) {
	if len(r.Body.Devices) == 0 {
		return StationModule{}, false
	}
	return r.Body.Devices[0], true
}

type (
	stationsResponseAlias StationsResponse
	stationsBodyAlias     StationsBody
	stationModuleAlias    StationModule
	dashboardDataAlias    DashboardData
)

func (r *StationsResponse) UnmarshalJSON(b []byte) error {
	var a stationsResponseAlias
	extra, err := decodeWithExtra(b, &a)
	if err != nil {
		return err
	}
	*r = StationsResponse(a)
	r.Extra = extra
	return nil
}

func (r StationsResponse) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(stationsResponseAlias(r), r.Extra)
}

func (b *StationsBody) UnmarshalJSON(data []byte) error {
	var a stationsBodyAlias
	extra, err := decodeWithExtra(data, &a)
	if err != nil {
		return err
	}
	*b = StationsBody(a)
	b.Extra = extra
	return nil
}

func (b StationsBody) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(stationsBodyAlias(b), b.Extra)
}

func (m *StationModule) UnmarshalJSON(b []byte) error {
	var a stationModuleAlias
	extra, err := decodeWithExtra(b, &a)
	if err != nil {
		return err
	}
	*m = StationModule(a)
	m.Extra = extra
	return nil
}

func (m StationModule) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(stationModuleAlias(m), m.Extra)
}

func (d *DashboardData) UnmarshalJSON(b []byte) error {
	var a dashboardDataAlias
	extra, err := decodeWithExtra(b, &a)
	if err != nil {
		return err
	}
	*d = DashboardData(a)
	d.Extra = extra
	return nil
}

func (d DashboardData) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(dashboardDataAlias(d), d.Extra)
}
