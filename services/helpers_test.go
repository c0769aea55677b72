package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"SmartHome.dashboard/clients"
	"SmartHome.dashboard/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newMemStore() *memStore { return &memStore{data: map[string]json.RawMessage{}} }

func (m *memStore) Save(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = b
	m.mu.Unlock()
	return nil
}

func (m *memStore) Load(context.Context) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]json.RawMessage, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(topic string, _ any) error {
	p.mu.Lock()
	p.topics = append(p.topics, topic)
	p.mu.Unlock()
	return nil
}

type stubMetNo struct {
	sun     clients.SunTimes
	sunErr  error
	moon    clients.MoonTimes
	moonErr error
}

func (s *stubMetNo) SunTimes(context.Context, time.Time) (clients.SunTimes, error) {
	return s.sun, s.sunErr
}

func (s *stubMetNo) MoonTimes(context.Context, time.Time) (clients.MoonTimes, error) {
	return s.moon, s.moonErr
}

func fp(v float64) *float64 { return &v }

func tp(t time.Time) *time.Time { return &t }

func stationsFixture(pressure float64) models.StationsResponse {
	return models.StationsResponse{Body: models.StationsBody{Devices: []models.StationModule{{
		Type:          models.ModuleMain,
		ModuleName:    "Wohnzimmer",
		DashboardData: &models.DashboardData{Temperature: fp(22.4), CO2: fp(650), Pressure: fp(pressure), Noise: fp(38)},
		Modules: []models.StationModule{
			{Type: models.ModuleWind, ModuleName: "Wind", DashboardData: &models.DashboardData{}},
			{Type: models.ModuleRain, ModuleName: "Regen", DashboardData: &models.DashboardData{SumRain1: fp(0.4), SumRain24: fp(3.2)}},
			{Type: models.ModuleOutdoor, ModuleName: "Carport", BatteryPercent: intp(76), DashboardData: &models.DashboardData{Temperature: fp(14.1)}},
			{Type: models.ModuleIndoor, ModuleName: "Schlafzimmer oben", BatteryPercent: intp(55), DashboardData: &models.DashboardData{Temperature: fp(20.9)}},
			{Type: models.ModuleIndoor, ModuleName: "Keller", DashboardData: &models.DashboardData{Temperature: fp(16.0)}},
		},
	}}}}
}

func intp(v int) *int { return &v }
