package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/rs/zerolog/log"

	"SmartHome.dashboard/config"
	"SmartHome.dashboard/models"
)

// EnsureValidToken returns a middleware that rejects requests without a valid
// HS256 bearer token issued for the configured issuer and audience.
func EnsureValidToken(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWT secret is empty")
	}

	keyFunc := func(ctx context.Context) (any, error) {
		return []byte(cfg.Secret), nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		cfg.Issuer,
		[]string{cfg.Audience},
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the JWT validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected request with invalid token")
		RespondWithError(w, models.NewAPIError(
			models.ErrorCodeUnauthorized,
			"Failed to validate JWT.",
			nil,
			http.StatusUnauthorized,
		))
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(next http.Handler) http.Handler {
		return middleware.CheckJWT(next)
	}, nil
}
