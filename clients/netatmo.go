package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"SmartHome.dashboard/dao"
	"SmartHome.dashboard/models"
)

// NetatmoClient wraps the OAuth token endpoint and getstationsdata.
type NetatmoClient struct {
	http         *resty.Client
	clientID     string
	clientSecret string
}

func NewNetatmoClient(baseURL, clientID, clientSecret string) *NetatmoClient {
	return &NetatmoClient{
		http:         resty.New().SetBaseURL(baseURL).SetTimeout(20 * time.Second),
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// RefreshToken exchanges a refresh token for a new access token. A rejected
// refresh token is reported as ErrAuthorizationRequired.
func (c *NetatmoClient) RefreshToken(ctx context.Context, refreshToken string) (models.Token, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
		}).
		Post("/oauth2/token")
	if err != nil {
		return models.Token{}, fmt.Errorf("netatmo token refresh: %w", err)
	}

	var tok models.Token
	if err := decode("netatmo token endpoint", resp, &tok); err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusBadRequest || se.StatusCode == http.StatusUnauthorized) {
			return models.Token{}, fmt.Errorf("%w: %v", ErrAuthorizationRequired, err)
		}
		return models.Token{}, err
	}
	if tok.AccessToken == "" {
		return models.Token{}, errors.New("netatmo token endpoint returned no access token")
	}
	return tok, nil
}

func (c *NetatmoClient) GetStationsData(ctx context.Context, accessToken string) (models.StationsResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", accessToken).
		Get("/api/getstationsdata")
	if err != nil {
		return models.StationsResponse{}, fmt.Errorf("netatmo getstationsdata: %w", err)
	}

	var out models.StationsResponse
	if err := decode("netatmo getstationsdata", resp, &out); err != nil {
		return models.StationsResponse{}, err
	}
	return out, nil
}

type tokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (models.Token, error)
}

// TokenSource hands out a valid access token, refreshing and persisting it
// when the stored one has expired.
type TokenSource struct {
	client tokenRefresher
	store  *dao.TokenStore
	now    func() time.Time
	log    zerolog.Logger
	mu     sync.Mutex
}

func NewTokenSource(client tokenRefresher, store *dao.TokenStore, logger zerolog.Logger) *TokenSource {
	return &TokenSource{client: client, store: store, now: time.Now, log: logger}
}

func (s *TokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.store.Load()
	if err != nil {
		return "", fmt.Errorf("%w: token file unusable: %v", ErrAuthorizationRequired, err)
	}
	now := s.now()
	if tok.Valid(now) {
		return tok.AccessToken, nil
	}
	if tok.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token stored", ErrAuthorizationRequired)
	}

	s.log.Info().Msg("Access token expired, refreshing")
	fresh, err := s.client.RefreshToken(ctx, tok.RefreshToken)
	if err != nil {
		return "", err
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	fresh.ExpiresAt = float64(now.Unix()) + fresh.ExpiresIn
	if err := s.store.Save(fresh); err != nil {
		// the token is still usable for this run
		s.log.Error().Err(err).Msg("Could not persist refreshed token")
	}
	return fresh.AccessToken, nil
}
