package clients

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"SmartHome.dashboard/astro"
)

// MetNoClient queries the api.met.no Sunrise 3.0 service.
type MetNoClient struct {
	http *resty.Client
	lat  float64
	lon  float64
	loc  *time.Location
}

func NewMetNoClient(baseURL, userAgent string, lat, lon float64, loc *time.Location) *MetNoClient {
	return &MetNoClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", userAgent),
		lat: lat,
		lon: lon,
		loc: loc,
	}
}

// SunTimes holds sunrise and sunset in local time. Nil means the event does
// not happen on that date.
type SunTimes struct {
	Sunrise *time.Time
	Sunset  *time.Time
}

type MoonTimes struct {
	Moonrise *time.Time
	Moonset  *time.Time
}

type metEvent struct {
	Time string `json:"time"`
}

type metResponse struct {
	Properties struct {
		Sunrise  *metEvent `json:"sunrise"`
		Sunset   *metEvent `json:"sunset"`
		Moonrise *metEvent `json:"moonrise"`
		Moonset  *metEvent `json:"moonset"`
	} `json:"properties"`
}

func (c *MetNoClient) SunTimes(ctx context.Context, date time.Time) (SunTimes, error) {
	props, err := c.fetch(ctx, "sun", date)
	if err != nil {
		return SunTimes{}, err
	}
	var out SunTimes
	if out.Sunrise, err = c.eventTime(props.Properties.Sunrise); err != nil {
		return SunTimes{}, err
	}
	if out.Sunset, err = c.eventTime(props.Properties.Sunset); err != nil {
		return SunTimes{}, err
	}
	return out, nil
}

func (c *MetNoClient) MoonTimes(ctx context.Context, date time.Time) (MoonTimes, error) {
	props, err := c.fetch(ctx, "moon", date)
	if err != nil {
		return MoonTimes{}, err
	}
	var out MoonTimes
	if out.Moonrise, err = c.eventTime(props.Properties.Moonrise); err != nil {
		return MoonTimes{}, err
	}
	if out.Moonset, err = c.eventTime(props.Properties.Moonset); err != nil {
		return MoonTimes{}, err
	}
	return out, nil
}

func (c *MetNoClient) fetch(ctx context.Context, body string, date time.Time) (metResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":    strconv.FormatFloat(c.lat, 'f', -1, 64),
			"lon":    strconv.FormatFloat(c.lon, 'f', -1, 64),
			"date":   date.In(c.loc).Format(time.DateOnly),
			"offset": astro.OffsetForDate(date, c.loc),
		}).
		Get("/weatherapi/sunrise/3.0/" + body)
	if err != nil {
		return metResponse{}, fmt.Errorf("met.no %s: %w", body, err)
	}
	var out metResponse
	if err := decode("met.no "+body, resp, &out); err != nil {
		return metResponse{}, err
	}
	return out, nil
}

func (c *MetNoClient) eventTime(ev *metEvent) (*time.Time, error) {
	if ev == nil || ev.Time == "" {
		return nil, nil
	}
	t, err := ParseMetTime(ev.Time, c.loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var metLayouts = []string{
	"2006-01-02T15:04Z07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseMetTime converts a met.no timestamp to loc. A trailing Z or a missing
// zone is read as UTC.
func ParseMetTime(s string, loc *time.Location) (time.Time, error) {
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range metLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable met.no time %q", s)
}
