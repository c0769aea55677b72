package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jose "gopkg.in/go-jose/go-jose.v2"
	"gopkg.in/go-jose/go-jose.v2/jwt"

	"SmartHome.dashboard/clients"
	"SmartHome.dashboard/config"
	"SmartHome.dashboard/controllers"
	"SmartHome.dashboard/models"
	"SmartHome.dashboard/services"
	"SmartHome.dashboard/utils"
)

var authConfig = config.AuthConfig{
	Secret:   "0123456789abcdef0123456789abcdef",
	Issuer:   "homedash",
	Audience: "homedash-api",
}

type fakeDashboard struct {
	refreshErr error
	refreshed  []string
}

func (f *fakeDashboard) Snapshot() models.Snapshot {
	return models.Snapshot{
		Astro:   &models.AstroData{Sunrise: "07:45", Sunset: "18:30"},
		Sources: map[string]models.SourceStatus{services.SourceAstro: {Name: services.SourceAstro, HasData: true}},
	}
}

func (f *fakeDashboard) SourceData(source string) (any, models.SourceStatus, error) {
	switch source {
	case services.SourceAstro:
		return models.AstroData{Sunrise: "07:45"}, models.SourceStatus{Name: source, HasData: true}, nil
	case services.SourcePV:
		return models.PVOverview{}, models.SourceStatus{Name: source}, nil
	case services.SourceNetatmo:
		return nil, models.SourceStatus{}, services.ErrSourceDisabled
	default:
		return nil, models.SourceStatus{}, services.ErrUnknownSource
	}
}

func (f *fakeDashboard) Refresh(ctx context.Context, source string) error {
	f.refreshed = append(f.refreshed, source)
	if f.refreshErr != nil {
		return f.refreshErr
	}
	_, _, err := f.SourceData(source)
	return err
}

func (f *fakeDashboard) PressureHistory() []models.PressureEntry {
	p := 1012.5
	return []models.PressureEntry{{Timestamp: "2026-10-15T13:00:00+02:00", Pressure: &p}}
}

func (f *fakeDashboard) PVToday() []models.PVMeasurement { return nil }

func newServer(t *testing.T, dash *fakeDashboard, withAuth bool) *httptest.Server {
	t.Helper()
	var auth func(http.Handler) http.Handler
	if withAuth {
		var err error
		auth, err = utils.EnsureValidToken(authConfig)
		require.NoError(t, err)
	}
	ctrl := controllers.NewDashboardController(dash, zerolog.Nop())
	srv := httptest.NewServer(SetupRouter(ctrl, auth))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, secret, audience string, expiry time.Time) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	token, err := jwt.Signed(signer).Claims(jwt.Claims{
		Issuer:   authConfig.Issuer,
		Subject:  "kiosk",
		Audience: jwt.Audience{audience},
		IssuedAt: jwt.NewNumericDate(time.Now()),
		Expiry:   jwt.NewNumericDate(expiry),
	}).CompactSerialize()
	require.NoError(t, err)
	return token
}

func do(t *testing.T, method, url, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decodeAPIError(t *testing.T, body []byte) models.APIError {
	t.Helper()
	var apiErr models.APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	return apiErr
}

func TestReadEndpoints(t *testing.T) {
	srv := newServer(t, &fakeDashboard{}, false)

	t.Run("health", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", string(body))
	})

	t.Run("dashboard", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/api/dashboard", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var snap models.Snapshot
		require.NoError(t, json.Unmarshal(body, &snap))
		require.NotNil(t, snap.Astro)
		assert.Equal(t, "07:45", snap.Astro.Sunrise)
	})

	t.Run("source with data", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/api/sources/astro", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), `"sunrise":"07:45"`)
		assert.Contains(t, string(body), `"has_data":true`)
	})

	t.Run("source without data", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/api/sources/pv", "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, models.ErrorCodeNoDataAvailable, decodeAPIError(t, body).Code)
	})

	t.Run("unknown source", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/api/sources/weather", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, models.ErrorCodeUnknownSource, decodeAPIError(t, body).Code)
	})

	t.Run("disabled source", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/api/sources/netatmo", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, models.ErrorCodeSourceDisabled, decodeAPIError(t, body).Code)
	})

	t.Run("pressure history", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/api/pressure", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[["2026-10-15T13:00:00+02:00",1012.5,null]]`, string(body))
	})

	t.Run("pv today is never null", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/api/pv/today", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[]`, string(body))
	})

	t.Run("panel", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/api/panel.png", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))
	})
}

func TestRefreshNotRegisteredWithoutAuth(t *testing.T) {
	dash := &fakeDashboard{}
	srv := newServer(t, dash, false)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/refresh/astro", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.ErrorCodeNotFound, decodeAPIError(t, body).Code)
	assert.Empty(t, dash.refreshed)
}

func TestRefreshRequiresValidToken(t *testing.T) {
	dash := &fakeDashboard{}
	srv := newServer(t, dash, true)
	url := srv.URL + "/api/refresh/astro"

	t.Run("missing token", func(t *testing.T) {
		resp, body := do(t, http.MethodPost, url, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, models.ErrorCodeUnauthorized, decodeAPIError(t, body).Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "another-secret-another-secret-xx", authConfig.Audience, time.Now().Add(time.Hour))
		resp, _ := do(t, http.MethodPost, url, token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token := signToken(t, authConfig.Secret, "someone-else", time.Now().Add(time.Hour))
		resp, _ := do(t, http.MethodPost, url, token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, authConfig.Secret, authConfig.Audience, time.Now().Add(-time.Hour))
		resp, _ := do(t, http.MethodPost, url, token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	assert.Empty(t, dash.refreshed)

	t.Run("valid", func(t *testing.T) {
		token := signToken(t, authConfig.Secret, authConfig.Audience, time.Now().Add(time.Hour))
		resp, body := do(t, http.MethodPost, url, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var status models.SourceStatus
		require.NoError(t, json.Unmarshal(body, &status))
		assert.Equal(t, services.SourceAstro, status.Name)
		assert.Equal(t, []string{services.SourceAstro}, dash.refreshed)
	})
}

func TestRefreshErrorMapping(t *testing.T) {
	token := signToken(t, authConfig.Secret, authConfig.Audience, time.Now().Add(time.Hour))

	cases := []struct {
		name   string
		source string
		err    error
		status int
		code   models.ErrorCode
	}{
		{"unknown", "weather", nil, http.StatusNotFound, models.ErrorCodeUnknownSource},
		{"disabled", services.SourceNetatmo, nil, http.StatusNotFound, models.ErrorCodeSourceDisabled},
		{"not configured", services.SourcePV, clients.ErrNotConfigured, http.StatusNotFound, models.ErrorCodeSourceDisabled},
		{"in progress", services.SourceNetatmo, services.ErrPollInProgress, http.StatusConflict, models.ErrorCodeRefreshInProgress},
		{"needs authorization", services.SourceNetatmo, clients.ErrAuthorizationRequired, http.StatusBadGateway, models.ErrorCodeAuthorizationRequired},
		{"upstream", services.SourcePV, errors.New("connection reset"), http.StatusBadGateway, models.ErrorCodeUpstreamFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, &fakeDashboard{refreshErr: tc.err}, true)

			resp, body := do(t, http.MethodPost, srv.URL+"/api/refresh/"+tc.source, token)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decodeAPIError(t, body).Code)
		})
	}
}

func TestEnsureValidTokenRejectsEmptySecret(t *testing.T) {
	_, err := utils.EnsureValidToken(config.AuthConfig{Issuer: "homedash", Audience: "homedash-api"})
	assert.Error(t, err)
}
