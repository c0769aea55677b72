package dao

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"SmartHome.dashboard/models"
)

const (
	measurementStation = "station_measurements"
	measurementPV      = "pv_power"
)

// InfluxArchive mirrors the JSONL archive into InfluxDB for charting.
type InfluxArchive struct {
	writeAPI api.WriteAPIBlocking
}

func NewInfluxArchive(client influxdb2.Client, org, bucket string) *InfluxArchive {
	return &InfluxArchive{writeAPI: client.WriteAPIBlocking(org, bucket)}
}

func (a *InfluxArchive) Archive(ctx context.Context, rec models.ArchiveRecord) error {
	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("archive timestamp %q: %w", rec.Timestamp, err)
	}

	var points []*write.Point
	for _, m := range rec.Modules {
		fields := stationFields(m)
		if len(fields) == 0 {
			continue
		}
		points = append(points, influxdb2.NewPoint(measurementStation,
			map[string]string{"module": m.Name, "type": m.Type}, fields, ts))
	}
	if rec.PVPower != nil {
		points = append(points, influxdb2.NewPoint(measurementPV,
			map[string]string{}, map[string]interface{}{"power": *rec.PVPower}, ts))
	}
	if len(points) == 0 {
		return nil
	}

	if err := a.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points to InfluxDB: %w", len(points), err)
	}
	return nil
}

func stationFields(m models.ArchiveModule) map[string]interface{} {
	fields := map[string]interface{}{}
	add := func(name string, v *float64) {
		if v != nil {
			fields[name] = *v
		}
	}
	add("temperature", m.Temperature)
	add("humidity", m.Humidity)
	add("co2", m.CO2)
	add("pressure", m.Pressure)
	add("noise", m.Noise)
	add("min_temp", m.MinTemp)
	add("max_temp", m.MaxTemp)
	add("rain_1h", m.Rain1h)
	add("rain_24h", m.Rain24h)
	if m.BatteryPercent != nil {
		fields["battery_percent"] = *m.BatteryPercent
	}
	return fields
}
