package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"SmartHome.dashboard/dao"
	"SmartHome.dashboard/models"
)

// Source names, also used as cache keys and MQTT topics.
const (
	SourceNetatmo = "netatmo"
	SourceAstro   = "astro"
	SourcePV      = "pv"
)

const (
	netatmoStaleAfter   = 10 * time.Minute
	netatmoMaxRetrigger = 3
	pvStaleAfter        = 30 * time.Minute
)

var (
	ErrUnknownSource  = errors.New("unknown source")
	ErrSourceDisabled = errors.New("source disabled")
)

type DashboardConfig struct {
	NetatmoInterval     time.Duration
	AstronomyInterval   time.Duration
	PVFlushInterval     time.Duration
	HealthCheckInterval time.Duration
}

// Dashboard owns the data sources and their timers and assembles the
// combined snapshot.
type Dashboard struct {
	cfg      DashboardConfig
	netatmo  *NetatmoService // nil when Netatmo is not configured
	astro    *AstroService
	pv       *PVScheduler
	pressure *dao.PressureHistory
	daily    *dao.PVDailyBuffer
	store    dao.SnapshotStore
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger

	mu             sync.Mutex
	netatmoRetries int
	lastNetatmoOK  time.Time

	// retriggered Netatmo polls started by the health check
	inflight sync.WaitGroup
}

type DashboardDeps struct {
	Config   DashboardConfig
	Netatmo  *NetatmoService
	Astro    *AstroService
	PV       *PVScheduler
	Pressure *dao.PressureHistory
	Daily    *dao.PVDailyBuffer
	Store    dao.SnapshotStore
	Location *time.Location
	Logger   zerolog.Logger
}

func NewDashboard(d DashboardDeps) *Dashboard {
	return &Dashboard{
		cfg:      d.Config,
		netatmo:  d.Netatmo,
		astro:    d.Astro,
		pv:       d.PV,
		pressure: d.Pressure,
		daily:    d.Daily,
		store:    d.Store,
		loc:      d.Location,
		now:      time.Now,
		log:      d.Logger,
	}
}

// Restore loads the persisted state so the dashboard has data before the
// first fetch. Restored Netatmo data is not archived.
func (d *Dashboard) Restore(ctx context.Context) error {
	var err error
	if lerr := d.pressure.Load(); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	if lerr := d.daily.Load(d.now()); lerr != nil {
		err = multierr.Append(err, lerr)
	}

	cache, lerr := d.store.Load(ctx)
	if lerr != nil {
		return multierr.Append(err, fmt.Errorf("load cache: %w", lerr))
	}

	restore := map[string]func(json.RawMessage) error{
		SourceAstro: d.astro.Source().Restore,
		SourcePV:    d.pv.Source().Restore,
	}
	if d.netatmo != nil {
		restore[SourceNetatmo] = d.netatmo.Source().Restore
	}
	for key, raw := range cache {
		fn, ok := restore[key]
		if !ok {
			continue
		}
		if rerr := fn(raw); rerr != nil {
			err = multierr.Append(err, rerr)
			continue
		}
		d.log.Info().Str("source", key).Msg("Restored from cache")
	}
	return err
}

// Run starts all timer loops and blocks until ctx ends and every poll the
// health check started has returned. The Netatmo and astronomy tickers set
// the pace, so each tick fetches.
func (d *Dashboard) Run(ctx context.Context) error {
	defer d.inflight.Wait()
	g, ctx := errgroup.WithContext(ctx)

	if d.netatmo != nil {
		g.Go(func() error {
			return every(ctx, d.cfg.NetatmoInterval, true, func() { d.pollNetatmo(ctx, true) })
		})
	}
	g.Go(func() error {
		return every(ctx, d.cfg.AstronomyInterval, true, func() {
			if err := d.astro.Refresh(ctx, true); err != nil {
				d.log.Error().Err(err).Msg("Astronomy update failed")
			}
		})
	})
	g.Go(func() error { return d.pv.Run(ctx) })
	g.Go(func() error {
		return every(ctx, d.cfg.PVFlushInterval, false, func() {
			if err := d.daily.Flush(); err != nil {
				d.log.Debug().Err(err).Msg("PV flush failed")
			}
		})
	})
	g.Go(func() error {
		return every(ctx, d.cfg.HealthCheckInterval, false, func() { d.healthCheck(ctx) })
	})

	return g.Wait()
}

// every calls fn each interval until ctx ends, optionally once right away.
func every(ctx context.Context, interval time.Duration, immediate bool, fn func()) error {
	if immediate {
		fn()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}

func (d *Dashboard) pollNetatmo(ctx context.Context, force bool) error {
	err := d.netatmo.Poll(ctx, force)
	if errors.Is(err, ErrPollInProgress) {
		return err
	}
	if err != nil {
		d.log.Error().Err(err).Msg("Netatmo update failed")
		return err
	}
	if last := d.netatmo.Source().LastSuccess(); !last.IsZero() {
		d.mu.Lock()
		if last.After(d.lastNetatmoOK) {
			d.lastNetatmoOK = last
			d.netatmoRetries = 0
		}
		d.mu.Unlock()
	}
	return nil
}

// healthCheck re-triggers a stuck Netatmo loop (at most three times until
// it recovers) and warns about stale PV data during the day.
func (d *Dashboard) healthCheck(ctx context.Context) {
	now := d.now()

	if d.netatmo != nil {
		last := d.netatmo.Source().LastSuccess()
		if !last.IsZero() && now.Sub(last) > netatmoStaleAfter {
			d.mu.Lock()
			d.netatmoRetries++
			retry := d.netatmoRetries <= netatmoMaxRetrigger
			d.mu.Unlock()

			d.log.Warn().Dur("since", now.Sub(last)).Bool("retrigger", retry).Msg("Netatmo updates stalled")
			if retry {
				d.inflight.Add(1)
				go func() {
					defer d.inflight.Done()
					d.pollNetatmo(ctx, true)
				}()
			}
		}
	}

	hour := now.In(d.loc).Hour()
	if last := d.pv.Stats().LastUpdate; hour >= 7 && hour <= 20 && !last.IsZero() && now.Sub(last) > pvStaleAfter {
		d.log.Warn().Dur("since", now.Sub(last)).Msg("PV updates stalled")
	}
}

// Refresh forces a fetch of one source, used by the manual refresh endpoint.
func (d *Dashboard) Refresh(ctx context.Context, source string) error {
	switch source {
	case SourceNetatmo:
		if d.netatmo == nil {
			return ErrSourceDisabled
		}
		return d.pollNetatmo(ctx, true)
	case SourceAstro:
		return d.astro.Refresh(ctx, true)
	case SourcePV:
		return d.pv.QueryNow(ctx)
	default:
		return ErrUnknownSource
	}
}

// SourceData returns the current raw value of a source and its status.
func (d *Dashboard) SourceData(source string) (any, models.SourceStatus, error) {
	switch source {
	case SourceNetatmo:
		if d.netatmo == nil {
			return nil, models.SourceStatus{}, ErrSourceDisabled
		}
		v, _ := d.netatmo.Source().Current()
		return v, d.netatmo.Source().Status(), nil
	case SourceAstro:
		v, _ := d.astro.Source().Current()
		return v, d.astro.Source().Status(), nil
	case SourcePV:
		v, _ := d.pv.Source().Current()
		return v, d.pv.Source().Status(), nil
	default:
		return nil, models.SourceStatus{}, ErrUnknownSource
	}
}

func (d *Dashboard) PressureHistory() []models.PressureEntry {
	return d.pressure.Entries()
}

func (d *Dashboard) PVToday() []models.PVMeasurement {
	return d.daily.Measurements()
}

// Shutdown waits for retriggered polls, then persists everything held in memory.
func (d *Dashboard) Shutdown() error {
	d.inflight.Wait()
	err := multierr.Combine(d.daily.Flush(), d.pressure.Save())
	if err != nil {
		d.log.Error().Err(err).Msg("Saving state on shutdown failed")
		return err
	}
	d.log.Info().Msg("Dashboard state saved")
	return nil
}
