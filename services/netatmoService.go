package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"SmartHome.dashboard/clients"
	"SmartHome.dashboard/dao"
	"SmartHome.dashboard/models"
)

const netatmoAttempts = 3

var (
	// ErrEmptyResponse is a Netatmo reply without any device.
	ErrEmptyResponse = errors.New("netatmo returned no devices")
	// ErrPollInProgress is returned when another poll is still running.
	ErrPollInProgress = errors.New("netatmo poll already running")
)

type stationsFetcher interface {
	GetStationsData(ctx context.Context, accessToken string) (models.StationsResponse, error)
}

type accessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Publisher pushes updates to subscribers, e.g. an MQTT broker.
type Publisher interface {
	Publish(topic string, v any) error
}

type NetatmoService struct {
	source    *CachedSource[models.StationsResponse]
	client    stationsFetcher
	tokens    accessTokenSource
	pressure  *dao.PressureHistory
	archive   dao.Archiver
	publisher Publisher
	pvPower   func() *float64
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger

	newBackOff func() backoff.BackOff

	pollMu        sync.Mutex
	lastSavedHour time.Time
}

type NetatmoDeps struct {
	Client    stationsFetcher
	Tokens    accessTokenSource
	Store     dao.SnapshotStore
	Pressure  *dao.PressureHistory
	Archive   dao.Archiver
	Publisher Publisher // optional
	PVPower   func() *float64
	Location  *time.Location
	Interval  time.Duration
	Logger    zerolog.Logger
}

func NewNetatmoService(d NetatmoDeps) *NetatmoService {
	s := &NetatmoService{
		client:     d.Client,
		tokens:     d.Tokens,
		pressure:   d.Pressure,
		archive:    d.Archive,
		publisher:  d.Publisher,
		pvPower:    d.PVPower,
		loc:        d.Location,
		now:        time.Now,
		log:        d.Logger,
		newBackOff: netatmoBackOff,
	}
	s.source = NewCachedSource(SourceNetatmo, d.Interval, s.fetch, d.Store, d.Logger)
	return s
}

// netatmoBackOff waits 30s then 60s between the three attempts, capped at 5 min.
func netatmoBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 30 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, netatmoAttempts-1)
}

func (s *NetatmoService) Source() *CachedSource[models.StationsResponse] { return s.source }

// Poll refreshes the station data. Only one poll runs at a time.
func (s *NetatmoService) Poll(ctx context.Context, force bool) error {
	if !s.pollMu.TryLock() {
		s.log.Debug().Msg("Netatmo poll already running, skipping")
		return ErrPollInProgress
	}
	defer s.pollMu.Unlock()

	data, fresh, err := s.source.Refresh(ctx, force)
	if err != nil {
		return err
	}
	if fresh {
		s.handleLiveData(ctx, data)
	}
	return nil
}

func (s *NetatmoService) fetch(ctx context.Context) (models.StationsResponse, error) {
	var out models.StationsResponse
	attempt := 0
	op := func() error {
		attempt++
		token, err := s.tokens.AccessToken(ctx)
		if err != nil {
			if errors.Is(err, clients.ErrAuthorizationRequired) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp, err := s.client.GetStationsData(ctx, token)
		if err != nil {
			return err
		}
		if len(resp.Body.Devices) == 0 {
			return ErrEmptyResponse
		}
		out = resp
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn().Err(err).Int("attempt", attempt).Int("of", netatmoAttempts).
			Dur("wait", wait).Msg("Netatmo fetch failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
		s.log.Error().Err(err).Msg("Netatmo fetch failed")
		return models.StationsResponse{}, err
	}
	return out, nil
}

// handleLiveData runs only for data fetched from the API, never for cache restores.
func (s *NetatmoService) handleLiveData(ctx context.Context, data models.StationsResponse) {
	now := s.now().In(s.loc)
	s.recordPressure(now, data)

	rec := archiveRecord(now, data, s.pvPower())
	if s.archive != nil {
		if err := s.archive.Archive(ctx, rec); err != nil {
			s.log.Error().Err(err).Msg("Archiving measurements failed")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(SourceNetatmo, rec); err != nil {
			s.log.Warn().Err(err).Msg("Publishing station data failed")
		}
	}
}

func (s *NetatmoService) recordPressure(now time.Time, data models.StationsResponse) {
	main, ok := data.Main()
	if !ok || main.Data().Pressure == nil {
		return
	}
	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	if hour.Equal(s.lastSavedHour) {
		return
	}
	entry := models.PressureEntry{
		Timestamp:   hour.Format(time.RFC3339),
		Pressure:    main.Data().Pressure,
		Temperature: data.OutdoorTemperature(),
	}
	if s.pressure.Append(entry) {
		if err := s.pressure.Save(); err != nil {
			s.log.Error().Err(err).Msg("Saving pressure history failed")
		}
	}
	s.lastSavedHour = hour
}

func archiveRecord(now time.Time, data models.StationsResponse, pvPower *float64) models.ArchiveRecord {
	rec := models.ArchiveRecord{Timestamp: now.Format(time.RFC3339), PVPower: pvPower}
	for i, m := range data.AllModules() {
		d := m.Data()
		name, typ := m.ModuleName, m.Type
		if name == "" {
			name = fmt.Sprintf("Modul %d", i+1)
		}
		if typ == "" {
			typ = "unknown"
		}
		rec.Modules = append(rec.Modules, models.ArchiveModule{
			Name:           name,
			Type:           typ,
			Temperature:    d.Temperature,
			Humidity:       d.Humidity,
			CO2:            d.CO2,
			Pressure:       d.Pressure,
			Noise:          d.Noise,
			BatteryPercent: m.BatteryPercent,
			MinTemp:        d.MinTemp,
			MaxTemp:        d.MaxTemp,
			Rain1h:         d.SumRain1,
			Rain24h:        d.SumRain24,
		})
	}
	return rec
}
