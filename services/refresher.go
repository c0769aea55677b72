package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"SmartHome.dashboard/dao"
	"SmartHome.dashboard/models"
)

// gateSlackDivisor lets a fetch through a tenth of the interval early, so
// ticker jitter does not skip a whole period.
const gateSlackDivisor = 10

// CachedSource wraps one remote data source. It throttles fetches to its
// interval, remembers the last good value across failures and persists every
// success under its cache key.
type CachedSource[T any] struct {
	name     string
	interval time.Duration
	fetch    func(ctx context.Context) (T, error)
	store    dao.SnapshotStore
	now      func() time.Time
	log      zerolog.Logger

	fetchMu sync.Mutex

	mu     sync.RWMutex
	value  T
	has    bool
	status models.SourceStatus
}

func NewCachedSource[T any](name string, interval time.Duration, fetch func(context.Context) (T, error),
	store dao.SnapshotStore, logger zerolog.Logger) *CachedSource[T] {
	return &CachedSource[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		store:    store,
		now:      time.Now,
		log:      logger.With().Str("source", name).Logger(),
		status:   models.SourceStatus{Name: name},
	}
}

func (s *CachedSource[T]) Name() string { return s.name }

// Refresh fetches a new value unless the last success is younger than the
// interval and force is false. fresh reports whether the returned value came
// from this call. On error the last known value is returned alongside it.
func (s *CachedSource[T]) Refresh(ctx context.Context, force bool) (value T, fresh bool, err error) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if !force && s.recentlyFetched() {
		v, _ := s.Current()
		return v, false, nil
	}

	attempt := s.now()
	v, err := s.fetch(ctx)

	s.mu.Lock()
	s.status.LastAttempt = &attempt
	if err != nil {
		s.status.LastError = err.Error()
		last := s.value
		s.mu.Unlock()
		return last, false, fmt.Errorf("%s: %w", s.name, err)
	}
	// measured from the start so a ticker with the same interval is never gated
	success := attempt
	s.value = v
	s.has = true
	s.status.LastSuccess = &success
	s.status.LastError = ""
	s.status.FromCache = false
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, s.name, v); err != nil {
			s.log.Warn().Err(err).Msg("Could not persist cache entry")
		}
	}
	return v, true, nil
}

func (s *CachedSource[T]) recentlyFetched() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.LastSuccess != nil && s.now().Sub(*s.status.LastSuccess) < s.interval-s.interval/gateSlackDivisor
}

// Restore loads a persisted value. It is marked as cached and does not count
// as a fetch, so the next Refresh goes to the network.
func (s *CachedSource[T]) Restore(raw json.RawMessage) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("restore %s: %w", s.name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.has = true
	s.status.FromCache = true
	return nil
}

// Current returns the last known value and whether there is one.
func (s *CachedSource[T]) Current() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.has
}

func (s *CachedSource[T]) Status() models.SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.HasData = s.has
	return st
}

// LastSuccess is the zero time until the first successful fetch.
func (s *CachedSource[T]) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status.LastSuccess == nil {
		return time.Time{}
	}
	return *s.status.LastSuccess
}
