package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"SmartHome.dashboard/astro"
	"SmartHome.dashboard/clients"
	"SmartHome.dashboard/dao"
	"SmartHome.dashboard/models"
)

type sunTimesFetcher interface {
	SunTimes(ctx context.Context, date time.Time) (clients.SunTimes, error)
}

type astroFetcher interface {
	sunTimesFetcher
	MoonTimes(ctx context.Context, date time.Time) (clients.MoonTimes, error)
}

// AstroService combines met.no rise and set times with the local ephemeris.
type AstroService struct {
	source *CachedSource[models.AstroData]
	metno  astroFetcher
	obs    astro.Observer
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

func NewAstroService(metno astroFetcher, obs astro.Observer, loc *time.Location, interval time.Duration,
	store dao.SnapshotStore, logger zerolog.Logger) *AstroService {
	s := &AstroService{metno: metno, obs: obs, loc: loc, now: time.Now, log: logger}
	s.source = NewCachedSource(SourceAstro, interval, s.build, store, logger)
	return s
}

func (s *AstroService) Source() *CachedSource[models.AstroData] { return s.source }

func (s *AstroService) Refresh(ctx context.Context, force bool) error {
	_, _, err := s.source.Refresh(ctx, force)
	return err
}

// build never fails as a whole. A part that cannot be determined reuses the
// cached value of the same day, otherwise it shows "--:--".
func (s *AstroService) build(ctx context.Context) (models.AstroData, error) {
	now := s.now().In(s.loc)
	today := now.Format(time.DateOnly)

	prev, ok := s.source.Current()
	sameDay := ok && prev.Date == today

	out := models.AstroData{
		Date:             today,
		Sunrise:          models.NoTime,
		Sunset:           models.NoTime,
		DayLength:        models.NoTime,
		CivilDawn:        models.NoTime,
		CivilDusk:        models.NoTime,
		SolarNoon:        models.NoTime,
		Moonrise:         models.NoTime,
		Moonset:          models.NoTime,
		MaxSunElevation:  astro.FallbackMaxElevation,
		MaxMoonElevation: astro.FallbackMaxElevation,
	}

	if sun, err := s.metno.SunTimes(ctx, now); err != nil {
		s.log.Error().Err(err).Msg("Fetching sun times from met.no failed")
		if sameDay {
			out.Sunrise, out.Sunset, out.DayLength = prev.Sunrise, prev.Sunset, prev.DayLength
		}
	} else {
		out.Sunrise = clock(sun.Sunrise)
		out.Sunset = clock(sun.Sunset)
		out.DayLength = dayLength(sun.Sunrise, sun.Sunset)
	}

	if moon, err := s.metno.MoonTimes(ctx, now); err != nil {
		s.log.Error().Err(err).Msg("Fetching moon times from met.no failed")
		if sameDay {
			out.Moonrise, out.Moonset = prev.Moonrise, prev.Moonset
		}
	} else {
		out.Moonrise = clock(moon.Moonrise)
		out.Moonset = clock(moon.Moonset)
	}

	if dawn, dusk, err := astro.CivilTwilight(now, s.obs, s.loc); err != nil {
		s.log.Warn().Err(err).Msg("Civil twilight not available")
		if sameDay {
			out.CivilDawn, out.CivilDusk = prev.CivilDawn, prev.CivilDusk
		}
	} else {
		out.CivilDawn = dawn.Format("15:04")
		out.CivilDusk = dusk.Format("15:04")
	}

	noon, maxSun := astro.SolarNoon(now, s.obs, s.loc)
	out.SolarNoon = noon.Format("15:04")
	out.MaxSunElevation = math.Round(maxSun*10) / 10
	out.MaxMoonElevation = math.Round(astro.MaxMoonElevation(now, s.obs, s.loc)*10) / 10

	phase, err := astro.CurrentMoonPhase(now)
	if err != nil {
		s.log.Warn().Err(err).Msg("Moon phase from ephemeris failed, using synodic estimate")
		phase = astro.MoonPhaseFallback(now)
	}
	out.MoonPhase = phase.Name
	out.MoonTrend = phase.Trend
	out.MoonIllumination = phase.Illumination

	return out, nil
}

func clock(t *time.Time) string {
	if t == nil {
		return models.NoTime
	}
	return t.Format("15:04")
}

func dayLength(rise, set *time.Time) string {
	if rise == nil || set == nil || set.Before(*rise) {
		return models.NoTime
	}
	d := set.Sub(*rise)
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
