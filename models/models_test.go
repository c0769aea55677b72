package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPressureEntryMigratesLegacyRows(t *testing.T) {
	var entries []PressureEntry
	raw := `[["2024-06-21T10:00:00+02:00", 1012.5], ["2024-06-21T11:00:00+02:00", 1013.1, 18.4]]`
	require.NoError(t, json.Unmarshal([]byte(raw), &entries))
	require.Len(t, entries, 2)

	assert.Equal(t, "2024-06-21T10:00:00+02:00", entries[0].Timestamp)
	assert.Equal(t, 1012.5, *entries[0].Pressure)
	assert.Nil(t, entries[0].Temperature)
	assert.Equal(t, 18.4, *entries[1].Temperature)

	out, err := json.Marshal(entries[0])
	require.NoError(t, err)
	assert.JSONEq(t, `["2024-06-21T10:00:00+02:00", 1012.5, null]`, string(out))
}

func TestPressureEntryRejectsShortRows(t *testing.T) {
	var e PressureEntry
	assert.Error(t, json.Unmarshal([]byte(`["2024-06-21T10:00:00+02:00"]`), &e))
}

func TestAstroDataLegacyFormats(t *testing.T) {
	t.Run("13 elements", func(t *testing.T) {
		var a AstroData
		raw := `["06:01","20:30","14h 29m","05:25","21:06","13:16","22:10","07:40","Zunehmender Mond","↑",71,65.2,38.0]`
		require.NoError(t, json.Unmarshal([]byte(raw), &a))
		assert.Equal(t, "14h 29m", a.DayLength)
		assert.Equal(t, 71, a.MoonIllumination)
		assert.Equal(t, 38.0, a.MaxMoonElevation)
	})

	t.Run("12 elements default moon elevation", func(t *testing.T) {
		var a AstroData
		raw := `["06:01","20:30","14h 29m","05:25","21:06","13:16","22:10","07:40","Vollmond","↓",99,65.2]`
		require.NoError(t, json.Unmarshal([]byte(raw), &a))
		assert.Equal(t, 45.0, a.MaxMoonElevation)
		assert.Equal(t, "↓", a.MoonTrend)
	})

	t.Run("11 elements without day length", func(t *testing.T) {
		var a AstroData
		raw := `["06:01","20:30","05:25","21:06","13:16","22:10","07:40","Neumond","↑",1,65.2]`
		require.NoError(t, json.Unmarshal([]byte(raw), &a))
		assert.Equal(t, NoTime, a.DayLength)
		assert.Equal(t, "05:25", a.CivilDawn)
		assert.Equal(t, 65.2, a.MaxSunElevation)
	})

	t.Run("unknown length", func(t *testing.T) {
		var a AstroData
		assert.Error(t, json.Unmarshal([]byte(`["06:01"]`), &a))
	})

	t.Run("object", func(t *testing.T) {
		var a AstroData
		require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-06-21","sunrise":"05:29","moon_illumination":12}`), &a))
		assert.Equal(t, "05:29", a.Sunrise)
		assert.Equal(t, 12, a.MoonIllumination)
	})
}

func TestSolarEdgeOverviewFlattening(t *testing.T) {
	raw := `{"overview":{"lastUpdateTime":"2024-06-21 12:00:00","currentPower":{"power":3120.5},
		"lastDayData":{"energy":14500},"lastMonthData":{"energy":310000},"lastYearData":{"energy":2100000}}}`
	var resp SolarEdgeOverviewResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	o := resp.ToOverview()
	assert.Equal(t, 3120.5, *o.CurrentPower)
	assert.Equal(t, 14500.0, *o.DailyEnergy)
	assert.Equal(t, 2100000.0, *o.YearlyEnergy)
	assert.True(t, o.Producing())

	assert.False(t, SolarEdgeOverviewResponse{}.ToOverview().Producing())
}

func TestTokenValid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := Token{AccessToken: "a", ExpiresAt: float64(now.Unix() + 60)}
	assert.True(t, tok.Valid(now))
	assert.False(t, tok.Valid(now.Add(2*time.Minute)))
	assert.False(t, Token{ExpiresAt: float64(now.Unix() + 60)}.Valid(now))
}

func TestStationsResponseHelpers(t *testing.T) {
	temp := 12.5
	resp := StationsResponse{Body: StationsBody{Devices: []StationModule{{
		Type:       ModuleMain,
		ModuleName: "Wohnzimmer",
		Modules: []StationModule{
			{Type: ModuleRain, ModuleName: "Regen"},
			{Type: ModuleOutdoor, ModuleName: "Carport", DashboardData: &DashboardData{Temperature: &temp}},
		},
	}}}}

	assert.Len(t, resp.AllModules(), 3)
	require.NotNil(t, resp.OutdoorTemperature())
	assert.Equal(t, 12.5, *resp.OutdoorTemperature())
	main, ok := resp.Main()
	assert.True(t, ok)
	assert.Equal(t, "Wohnzimmer", main.ModuleName)
}

func TestStationsResponseKeepsUnknownFields(t *testing.T) {
	raw := `{
		"status": "ok",
		"time_server": 1718960000,
		"body": {
			"user": {"mail": "someone@example.com"},
			"devices": [{
				"_id": "a",
				"type": "NAMain",
				"wifi_status": 56,
				"reachable": true,
				"dashboard_data": {"Temperature": 21.5, "pressure_trend": "up", "time_utc": 0},
				"modules": [{"_id": "b", "type": "NAModule1", "rf_status": 70, "dashboard_data": {"Temperature": 9.5}}]
			}]
		}
	}`

	var resp StationsResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	main, ok := resp.Main()
	require.True(t, ok)
	assert.Equal(t, 21.5, *main.Data().Temperature)
	assert.Equal(t, 9.5, *resp.OutdoorTemperature())
	assert.JSONEq(t, `56`, string(main.Extra["wifi_status"]))

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))

	var again StationsResponse
	require.NoError(t, json.Unmarshal(out, &again))
	out2, err := json.Marshal(again)
	require.NoError(t, err)
	assert.Equal(t, string(out), string(out2))
}

func TestStationsResponseWithoutExtrasIsUnchanged(t *testing.T) {
	temp := 12.5
	resp := StationsResponse{Body: StationsBody{Devices: []StationModule{{
		ID: "a", Type: ModuleMain, DashboardData: &DashboardData{Temperature: &temp},
	}}}}

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"body":{"devices":[{"_id":"a","type":"NAMain","dashboard_data":{"Temperature":12.5}}]}}`, string(out))

	var back StationsResponse
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, resp, back)
}
