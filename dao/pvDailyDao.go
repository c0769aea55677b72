package dao

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"SmartHome.dashboard/models"
)

const (
	maxPVMeasurements = 500
	pvFlushEvery      = 20
)

// PVDailyBuffer keeps today's PV curve in memory and writes it to
// pv_daily_data.json periodically, sparing the SD card.
type PVDailyBuffer struct {
	path string
	loc  *time.Location
	log  zerolog.Logger

	mu           sync.Mutex
	date         string
	measurements []models.PVMeasurement
	dirty        bool
	sinceFlush   int
}

func NewPVDailyBuffer(path string, loc *time.Location, logger zerolog.Logger) *PVDailyBuffer {
	return &PVDailyBuffer{path: path, loc: loc, log: logger}
}

// Load restores the buffer if the file belongs to the day of now.
func (b *PVDailyBuffer) Load(now time.Time) error {
	today := now.In(b.loc).Format(time.DateOnly)

	var daily models.PVDaily
	err := readJSON(b.path, &daily)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.date = today
	b.measurements = nil
	b.dirty = false

	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("load PV daily data: %w", err)
	case daily.Date != today:
		b.log.Info().Str("stored", daily.Date).Msg("PV daily data is from another day, starting empty")
		return nil
	}
	b.measurements = daily.Measurements
	return nil
}

// Add records a measurement. Values ≤ 0 are ignored. A date change flushes the
// previous day before the buffer restarts.
func (b *PVDailyBuffer) Add(now time.Time, power *float64) error {
	if power == nil || *power <= 0 {
		return nil
	}
	local := now.In(b.loc)
	today := local.Format(time.DateOnly)

	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.date != today {
		if b.dirty && b.date != "" {
			err = b.flushLocked()
		}
		b.date = today
		b.measurements = nil
		b.dirty = false
		b.sinceFlush = 0
	}

	b.measurements = append(b.measurements, models.PVMeasurement{Time: local.Format(time.TimeOnly), Power: *power})
	if len(b.measurements) > maxPVMeasurements {
		thinned := make([]models.PVMeasurement, 0, len(b.measurements)/2+1)
		for i := 0; i < len(b.measurements); i += 2 {
			thinned = append(thinned, b.measurements[i])
		}
		b.measurements = thinned
	}
	b.dirty = true
	b.sinceFlush++

	if b.sinceFlush >= pvFlushEvery {
		if ferr := b.flushLocked(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

// Flush writes the buffer if it changed since the last write.
func (b *PVDailyBuffer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty {
		return nil
	}
	return b.flushLocked()
}

func (b *PVDailyBuffer) flushLocked() error {
	m := b.measurements
	if m == nil {
		m = []models.PVMeasurement{}
	}
	if err := writeJSONAtomic(b.path, models.PVDaily{Date: b.date, Measurements: m}); err != nil {
		return fmt.Errorf("flush PV daily data: %w", err)
	}
	b.dirty = false
	b.sinceFlush = 0
	return nil
}

// Measurements returns a copy of today's curve.
func (b *PVDailyBuffer) Measurements() []models.PVMeasurement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.PVMeasurement{}, b.measurements...)
}
