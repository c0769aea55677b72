package models

import "time"

// Token is the Netatmo OAuth token as persisted in access_token.json.
type Token struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    float64  `json:"expires_in,omitempty"`
	ExpiresAt    float64  `json:"expires_at"`
	Scope        []string `json:"scope,omitempty"`
}

// Valid reports whether the access token can still be used at now.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && float64(now.UnixNano())/1e9 < t.ExpiresAt
}
