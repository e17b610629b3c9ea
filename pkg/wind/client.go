// Package wind annotates the ride with current wind conditions from a forecast API.
package wind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"ridelog/pkg/model"
)

// ErrNoCurrent is returned when the response carries no "current" object.
var ErrNoCurrent = errors.New("wind: response has no current conditions")

// Getter is the HTTP surface the client needs; *request.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, u string) ([]byte, error)
}

// Client queries an Open-Meteo compatible forecast endpoint.
type Client struct {
	getter  Getter
	baseURL string
}

// NewClient creates a Client for the endpoint at baseURL.
func NewClient(g Getter, baseURL string) *Client {
	return &Client{getter: g, baseURL: baseURL}
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type forecastResponse struct {
	Current *struct {
		WindSpeed     *float64 `json:"wind_speed_10m"`
		WindDirection *float64 `json:"wind_direction_10m"`
		WindGusts     *float64 `json:"wind_gusts_10m"`
	} `json:"current"`
}

// FetchWind returns the current wind at lat/lon. Fields missing from the response
// are left nil (unknown).
func (c *Client) FetchWind(ctx context.Context, lat, lon float64) (model.WindInfo, error) {
	body, err := c.getter.Get(ctx, c.buildURL(lat, lon))
	if err != nil {
		return model.WindInfo{}, fmt.Errorf("wind request failed: %w", err)
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.WindInfo{}, fmt.Errorf("failed to decode wind response: %w", err)
	}
	if resp.Current == nil {
		return model.WindInfo{}, ErrNoCurrent
	}

	info := model.WindInfo{
		SpeedKmh: finite(resp.Current.WindSpeed),
		GustKmh:  finite(resp.Current.WindGusts),
	}
	if d := finite(resp.Current.WindDirection); d != nil {
		deg := int(math.Round(*d)) % 360
		if deg < 0 {
			deg += 360
		}
		info.DirFromDeg = &deg
	}
	return info, nil
}

func (c *Client) buildURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 5, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 5, 64))
	q.Set("current", "wind_speed_10m,wind_direction_10m,wind_gusts_10m")
	q.Set("wind_speed_unit", "kmh")
	q.Set("timezone", "auto")
	return c.baseURL + "?" + q.Encode()
}

func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}
