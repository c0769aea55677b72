package config

import "os"

// AuthConfig stores the details needed to validate HS256 tokens on the refresh endpoints.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// LoadAuthConfig returns nil when token validation is not configured.
func LoadAuthConfig() *AuthConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil
	}

	return &AuthConfig{
		Secret:   secret,
		Issuer:   getEnv("JWT_ISSUER", "homedash"),
		Audience: getEnv("JWT_AUDIENCE", "homedash-api"),
	}
}
