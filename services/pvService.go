package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"SmartHome.dashboard/astro"
	"SmartHome.dashboard/clients"
	"SmartHome.dashboard/dao"
	"SmartHome.dashboard/models"
)

const (
	coreWeight = 5
	rampWeight = 1

	fallbackRampInterval = 10 * time.Minute
	fallbackCoreInterval = 2 * time.Minute
	followupInterval     = 10 * time.Minute
	failurePause         = 15 * time.Minute
	planRetry            = 30 * time.Minute
	nextDayRetry         = 12 * time.Hour
	maxConsecutiveFails  = 5
)

type pvAction int

const (
	pvPlan pvAction = iota
	pvQuery
	pvFollowup
)

func (a pvAction) String() string {
	switch a {
	case pvQuery:
		return "query"
	case pvFollowup:
		return "followup"
	default:
		return "plan"
	}
}

type pvStep struct {
	Action pvAction
	Delay  time.Duration
}

// PVWindow is the daylight span PV production is polled in:
// civil dawn, sunrise, sunset, civil dusk.
type PVWindow struct {
	Dawn    time.Time
	Sunrise time.Time
	Sunset  time.Time
	Dusk    time.Time
}

// PVBudget spreads the daily query budget over the window. Core minutes
// weigh five times as much as twilight ramp minutes.
type PVBudget struct {
	RampMorning  int
	Core         int
	RampEvening  int
	RampInterval time.Duration
	CoreInterval time.Duration
}

func ComputeBudget(w PVWindow, maxQueries int) PVBudget {
	rampMorning := max(0, w.Sunrise.Sub(w.Dawn).Minutes())
	core := max(0, w.Sunset.Sub(w.Sunrise).Minutes())
	rampEvening := max(0, w.Dusk.Sub(w.Sunset).Minutes())

	weighted := rampMorning*rampWeight + core*coreWeight + rampEvening*rampWeight
	if weighted <= 0 {
		return PVBudget{RampInterval: fallbackRampInterval, CoreInterval: fallbackCoreInterval}
	}

	b := PVBudget{
		RampMorning: int(float64(maxQueries) * rampMorning * rampWeight / weighted),
		Core:        int(float64(maxQueries) * core * coreWeight / weighted),
		RampEvening: int(float64(maxQueries) * rampEvening * rampWeight / weighted),
	}
	if total := b.RampMorning + b.Core + b.RampEvening; total > maxQueries {
		b.Core -= total - maxQueries
	}

	b.RampInterval = fallbackRampInterval
	if b.RampMorning > 0 && rampMorning > 0 {
		b.RampInterval = time.Duration(rampMorning / float64(b.RampMorning) * float64(time.Minute))
	}
	b.CoreInterval = fallbackCoreInterval
	if b.Core > 0 && core > 0 {
		b.CoreInterval = time.Duration(core / float64(b.Core) * float64(time.Minute))
	}
	return b
}

// PVStats is the scheduler state shown on the dashboard.
type PVStats struct {
	QueriesToday  int
	AttemptsToday int
	MaxQueries    int
	LastPower     *float64
	LastUpdate    time.Time
}

// PVScheduler polls SolarEdge within its daily API budget, densely while
// the sun is up and sparsely during twilight.
type PVScheduler struct {
	source     *CachedSource[models.PVOverview]
	daily      *dao.PVDailyBuffer
	metno      sunTimesFetcher
	publisher  Publisher
	obs        astro.Observer
	loc        *time.Location
	maxQueries int
	now        func() time.Time
	log        zerolog.Logger

	mu         sync.Mutex
	day        string
	queries    int
	attempts   int
	failures   int
	lastPower  *float64
	lastUpdate time.Time
	window     *PVWindow
	budget     PVBudget
}

type PVDeps struct {
	Fetch       func(ctx context.Context) (models.PVOverview, error)
	Store       dao.SnapshotStore
	Daily       *dao.PVDailyBuffer
	MetNo       sunTimesFetcher
	Publisher   Publisher // optional
	Observer    astro.Observer
	Location    *time.Location
	MaxQueries  int
	MinInterval time.Duration
	Logger      zerolog.Logger
}

func NewPVScheduler(d PVDeps) *PVScheduler {
	s := &PVScheduler{
		daily:      d.Daily,
		metno:      d.MetNo,
		publisher:  d.Publisher,
		obs:        d.Observer,
		loc:        d.Location,
		maxQueries: d.MaxQueries,
		now:        time.Now,
		log:        d.Logger,
	}
	s.source = NewCachedSource(SourcePV, d.MinInterval, d.Fetch, d.Store, d.Logger)
	return s
}

func (s *PVScheduler) Source() *CachedSource[models.PVOverview] { return s.source }

func (s *PVScheduler) Stats() PVStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PVStats{
		QueriesToday:  s.queries,
		AttemptsToday: s.attempts,
		MaxQueries:    s.maxQueries,
		LastPower:     s.lastPower,
		LastUpdate:    s.lastUpdate,
	}
}

// LastPower is the most recent current power in W, nil before the first success.
func (s *PVScheduler) LastPower() *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPower
}

// Run drives the scheduler until ctx ends. It starts with one query so the
// dashboard has fresh data right away, then plans the day.
func (s *PVScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.resetDayLocked(s.now())
	s.mu.Unlock()
	if _, err := s.refresh(ctx, false); errors.Is(err, clients.ErrNotConfigured) {
		s.log.Warn().Msg("SolarEdge is not configured, PV scheduler stopped")
		return nil
	}

	step := pvStep{Action: pvPlan}
	for {
		if step.Delay > 0 {
			timer := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		step = s.execute(ctx, step.Action)
	}
}

func (s *PVScheduler) execute(ctx context.Context, a pvAction) pvStep {
	var next pvStep
	switch a {
	case pvPlan:
		next = s.plan(ctx)
	case pvQuery:
		next = s.query(ctx)
	case pvFollowup:
		next = s.followup(ctx)
	}
	s.log.Debug().Stringer("next", next.Action).Dur("in", next.Delay).Msg("PV step scheduled")
	return next
}

func (s *PVScheduler) resetDayLocked(now time.Time) {
	today := now.In(s.loc).Format(time.DateOnly)
	if s.day == today {
		return
	}
	s.day = today
	s.queries = 0
	s.attempts = 0
	s.log.Info().Str("date", today).Msg("PV query counters reset")
}

func (s *PVScheduler) plan(ctx context.Context) pvStep {
	now := s.now().In(s.loc)
	w, err := s.computeWindow(ctx, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDayLocked(now)

	if err != nil {
		s.log.Warn().Err(err).Dur("retry_in", planRetry).Msg("PV window unavailable")
		s.window = nil
		return pvStep{Action: pvPlan, Delay: planRetry}
	}
	s.window = &w
	s.budget = ComputeBudget(w, s.maxQueries)

	s.log.Info().
		Str("dawn", w.Dawn.Format("15:04")).Str("sunrise", w.Sunrise.Format("15:04")).
		Str("sunset", w.Sunset.Format("15:04")).Str("dusk", w.Dusk.Format("15:04")).
		Int("ramp_morning", s.budget.RampMorning).Int("core", s.budget.Core).Int("ramp_evening", s.budget.RampEvening).
		Dur("ramp_interval", s.budget.RampInterval).Dur("core_interval", s.budget.CoreInterval).
		Msg("PV window planned")

	switch {
	case now.Before(w.Dawn):
		return pvStep{Action: pvQuery, Delay: max(w.Dawn.Sub(now), time.Second)}
	case !now.After(w.Dusk):
		return pvStep{Action: pvQuery}
	default:
		return s.nextDay(now)
	}
}

// computeWindow prefers the local ephemeris for twilight and met.no for
// sunrise and sunset, filling each from the other when one is missing.
func (s *PVScheduler) computeWindow(ctx context.Context, now time.Time) (PVWindow, error) {
	var w PVWindow

	sun, sunErr := s.metno.SunTimes(ctx, now)
	if sunErr == nil && (sun.Sunrise == nil || sun.Sunset == nil) {
		sunErr = errors.New("met.no returned no sunrise or sunset")
	}

	dawn, dusk, err := astro.CivilTwilight(now, s.obs, s.loc)
	if err != nil {
		if sunErr != nil {
			return PVWindow{}, multierr.Append(err, sunErr)
		}
		s.log.Info().Err(err).Msg("Local twilight unavailable, estimating from met.no")
		dawn = sun.Sunrise.Add(-30 * time.Minute)
		dusk = sun.Sunset.Add(30 * time.Minute)
	}
	w.Dawn, w.Dusk = dawn, dusk

	if sunErr != nil {
		s.log.Info().Err(sunErr).Msg("Sun times unavailable, estimating from twilight")
		w.Sunrise = dawn.Add(30 * time.Minute)
		w.Sunset = dusk.Add(-30 * time.Minute)
	} else {
		w.Sunrise, w.Sunset = *sun.Sunrise, *sun.Sunset
	}
	return w, nil
}

func (s *PVScheduler) query(ctx context.Context) pvStep {
	ok := s.fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok && s.failures >= maxConsecutiveFails {
		s.log.Warn().Int("failures", s.failures).Dur("pause", failurePause).Msg("PV queries failing, pausing")
		return pvStep{Action: pvPlan, Delay: failurePause}
	}

	now := s.now().In(s.loc)
	if interval, ok := s.currentInterval(now); ok {
		if s.queries > 0 && s.queries%50 == 0 {
			s.log.Info().Int("queries", s.queries).Int("attempts", s.attempts).Int("max", s.maxQueries).Msg("PV queries today")
		}
		return pvStep{Action: pvQuery, Delay: interval}
	}

	if s.producing() && s.queries < s.maxQueries {
		s.log.Info().Msg("PV window over but still producing, following up")
		return pvStep{Action: pvFollowup}
	}
	s.log.Info().Int("queries", s.queries).Msg("PV window over")
	return s.nextDay(now)
}

func (s *PVScheduler) followup(ctx context.Context) pvStep {
	ok := s.fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok && s.failures >= maxConsecutiveFails {
		s.log.Warn().Int("failures", s.failures).Dur("pause", failurePause).Msg("PV follow-up failing, pausing")
		return pvStep{Action: pvFollowup, Delay: failurePause}
	}

	now := s.now().In(s.loc)
	if s.queries >= s.maxQueries {
		s.log.Info().Int("queries", s.queries).Msg("PV follow-up stopped, daily budget used")
		return s.nextDay(now)
	}
	if s.producing() {
		return pvStep{Action: pvFollowup, Delay: followupInterval}
	}
	s.log.Info().Msg("PV production ended")
	return s.nextDay(now)
}

// nextDay waits for tomorrow's civil dawn.
func (s *PVScheduler) nextDay(now time.Time) pvStep {
	dawn, _, err := astro.CivilTwilight(now.AddDate(0, 0, 1), s.obs, s.loc)
	if err != nil {
		s.log.Warn().Err(err).Dur("retry_in", nextDayRetry).Msg("Could not compute tomorrow's dawn")
		return pvStep{Action: pvPlan, Delay: nextDayRetry}
	}
	s.log.Info().Time("at", dawn).Msg("PV scheduled for tomorrow")
	return pvStep{Action: pvPlan, Delay: max(dawn.Sub(now), time.Minute)}
}

// currentInterval returns the delay until the next query and whether
// querying should continue at all. Callers hold mu.
func (s *PVScheduler) currentInterval(now time.Time) (time.Duration, bool) {
	if s.queries >= s.maxQueries {
		s.log.Warn().Int("queries", s.queries).Int("max", s.maxQueries).Msg("PV daily limit reached")
		return 0, false
	}
	w := s.window
	if w == nil {
		return 0, false
	}
	switch {
	case now.Before(w.Dawn) || now.After(w.Dusk):
		return 0, false
	case now.Before(w.Sunrise):
		return s.budget.RampInterval, true
	case !now.After(w.Sunset):
		return s.budget.CoreInterval, true
	default:
		return s.budget.RampInterval, true
	}
}

// QueryNow is used by the manual refresh endpoint. It bypasses the minimum
// interval but still counts against the daily budget.
func (s *PVScheduler) QueryNow(ctx context.Context) error {
	_, err := s.refresh(ctx, true)
	return err
}

// fetch performs one counted scheduled attempt and reports success.
func (s *PVScheduler) fetch(ctx context.Context) bool {
	_, err := s.refresh(ctx, false)
	if err != nil {
		s.log.Debug().Err(err).Msg("PV query failed")
	}
	return err == nil
}

// refresh counts an attempt only when the source actually went to the
// network, not when the minimum interval served the cached value.
func (s *PVScheduler) refresh(ctx context.Context, force bool) (bool, error) {
	ov, fresh, err := s.source.Refresh(ctx, force)

	s.mu.Lock()
	defer s.mu.Unlock()
	if fresh || err != nil {
		s.attempts++
	}
	if err != nil {
		s.failures++
		return false, err
	}
	s.failures = 0
	if fresh {
		s.queries++
		s.applyLocked(ov)
	}
	return fresh, nil
}

func (s *PVScheduler) applyLocked(ov models.PVOverview) {
	now := s.now()
	s.lastPower = ov.CurrentPower
	s.lastUpdate = now
	if err := s.daily.Add(now, ov.CurrentPower); err != nil {
		s.log.Error().Err(err).Msg("Storing PV measurement failed")
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(SourcePV, ov); err != nil {
			s.log.Warn().Err(err).Msg("Publishing PV data failed")
		}
	}
}

// producing reports whether the last reading showed power. Callers hold mu.
func (s *PVScheduler) producing() bool {
	return s.lastPower != nil && *s.lastPower > 0
}
