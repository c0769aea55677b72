// Package clients talks to the vendor APIs the dashboard polls.
package clients

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrAuthorizationRequired means no usable Netatmo token exists and the
	// interactive authorization has to be run again.
	ErrAuthorizationRequired = errors.New("netatmo authorization required")
	// ErrNotConfigured is returned by clients whose credentials are missing.
	ErrNotConfigured = errors.New("source not configured")
)

// StatusError is a non-2xx reply from a vendor API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// decode checks the status and unmarshals the body into out.
func decode(service string, resp *resty.Response, out any) error {
	if resp.IsError() {
		body := resp.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return &StatusError{Service: service, StatusCode: resp.StatusCode(), Body: body}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}
