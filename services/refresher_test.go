package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedSourceThrottlesAndPersists(t *testing.T) {
	clock := newClock(time.Date(2024, 6, 21, 10, 0, 0, 0, time.UTC))
	store := newMemStore()
	calls := 0
	src := NewCachedSource("counter", 5*time.Minute, func(context.Context) (int, error) {
		calls++
		return calls, nil
	}, store, zerolog.Nop())
	src.now = clock.Now

	v, fresh, err := src.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, 1, v)
	assert.JSONEq(t, `1`, string(store.data["counter"]))

	clock.Advance(time.Minute)
	v, fresh, err = src.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, 1, v)

	v, fresh, err = src.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, 2, v)

	clock.Advance(5 * time.Minute)
	_, fresh, _ = src.Refresh(context.Background(), false)
	assert.True(t, fresh)
	assert.Equal(t, 3, calls)
}

func TestCachedSourceKeepsLastValueOnFailure(t *testing.T) {
	clock := newClock(time.Date(2024, 6, 21, 10, 0, 0, 0, time.UTC))
	fail := false
	src := NewCachedSource("s", time.Minute, func(context.Context) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return "good", nil
	}, nil, zerolog.Nop())
	src.now = clock.Now

	_, _, err := src.Refresh(context.Background(), false)
	require.NoError(t, err)
	success := src.LastSuccess()

	fail = true
	clock.Advance(2 * time.Minute)
	v, fresh, err := src.Refresh(context.Background(), false)
	assert.ErrorContains(t, err, "boom")
	assert.False(t, fresh)
	assert.Equal(t, "good", v)

	st := src.Status()
	assert.Equal(t, "boom", st.LastError)
	assert.Equal(t, success, *st.LastSuccess)
	assert.True(t, st.LastAttempt.After(success))
	assert.True(t, st.HasData)
}

func TestCachedSourceRestore(t *testing.T) {
	calls := 0
	src := NewCachedSource("s", time.Hour, func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"v": 2}, nil
	}, nil, zerolog.Nop())

	require.NoError(t, src.Restore(json.RawMessage(`{"v":1}`)))
	v, ok := src.Current()
	assert.True(t, ok)
	assert.Equal(t, 1, v["v"])
	assert.True(t, src.Status().FromCache)
	assert.Nil(t, src.Status().LastSuccess)

	_, fresh, err := src.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, fresh, "restored data does not count as a fetch")
	assert.Equal(t, 1, calls)
	assert.False(t, src.Status().FromCache)

	assert.Error(t, src.Restore(json.RawMessage(`[1,2]`)))
}
