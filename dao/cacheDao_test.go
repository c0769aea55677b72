package dao

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SmartHome.dashboard/models"
)

func TestFileCacheMergesKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dashboard_cache.json")
	cache := NewFileCache(path, zerolog.Nop())

	empty, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, cache.Save(ctx, "astro", models.AstroData{Date: "2024-06-21", Sunrise: "05:29"}))
	require.NoError(t, cache.Save(ctx, "pv", models.PVOverview{}))

	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, "astro")
	require.Contains(t, loaded, "pv")

	var astro models.AstroData
	require.NoError(t, json.Unmarshal(loaded["astro"], &astro))
	assert.Equal(t, "05:29", astro.Sunrise)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestFileCacheReplacesCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dashboard_cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	cache := NewFileCache(path, zerolog.Nop())

	_, err := cache.Load(ctx)
	assert.Error(t, err)

	require.NoError(t, cache.Save(ctx, "pv", map[string]int{"current": 5}))
	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"current":5}`, string(loaded["pv"]))
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	cache := NewRedisCache(client, time.Hour)

	require.NoError(t, cache.Save(ctx, "netatmo", map[string]string{"status": "ok"}))
	require.NoError(t, cache.Save(ctx, "astro", models.AstroData{Sunset: "21:30"}))

	assert.True(t, mr.Exists("dashboard:cache:netatmo"))
	assert.Equal(t, time.Hour, mr.TTL("dashboard:cache:netatmo"))

	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.JSONEq(t, `{"status":"ok"}`, string(loaded["netatmo"]))

	mr.FastForward(2 * time.Hour)
	loaded, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestTokenStore(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "access_token.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)

	tok := models.Token{AccessToken: "a", RefreshToken: "r", ExpiresIn: 10800, ExpiresAt: 1_700_000_000}
	require.NoError(t, store.Save(tok))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, tok, loaded)
}
