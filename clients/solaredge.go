package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"SmartHome.dashboard/models"
)

type SolarEdgeClient struct {
	http   *resty.Client
	siteID string
	apiKey string
}

func NewSolarEdgeClient(baseURL, siteID, apiKey string) *SolarEdgeClient {
	return &SolarEdgeClient{
		http:   resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		siteID: siteID,
		apiKey: apiKey,
	}
}

func (c *SolarEdgeClient) Configured() bool {
	return c.siteID != "" && c.apiKey != ""
}

// Overview returns current power (W) and the day, month and year energy (Wh).
func (c *SolarEdgeClient) Overview(ctx context.Context) (models.PVOverview, error) {
	if !c.Configured() {
		return models.PVOverview{}, ErrNotConfigured
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("site", c.siteID).
		SetQueryParam("api_key", c.apiKey).
		Get("/site/{site}/overview")
	if err != nil {
		return models.PVOverview{}, fmt.Errorf("solaredge overview: %w", err)
	}

	var out models.SolarEdgeOverviewResponse
	if err := decode("solaredge overview", resp, &out); err != nil {
		return models.PVOverview{}, err
	}
	return out.ToOverview(), nil
}
