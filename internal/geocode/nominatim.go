// Package geocode resolves free-form addresses in the Tricity area to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"urbanflow/internal/geo"
)

// DefaultURL is the public Nominatim search endpoint.
const DefaultURL = "https://nominatim.openstreetmap.org/search"

// ErrNoResult is returned when the query matched nothing in the area.
var ErrNoResult = errors.New("geocode: no result")

// Result holds a geocoding result.
type Result struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"displayName"`
}

// Client is a Nominatim geocoding client.
type Client struct {
	searchURL  string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// New creates a Nominatim geocoding client.
// userAgent is required by Nominatim's usage policy.
func New(searchURL, userAgent string, logger *slog.Logger) *Client {
	if searchURL == "" {
		searchURL = DefaultURL
	}
	return &Client{
		searchURL:  searchURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Search geocodes a free-form query, bounded to Gdańsk, Sopot and Gdynia.
func (c *Client) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrNoResult
	}

	u := c.searchURL + "?" + url.Values{
		"q":               {query},
		"format":          {"jsonv2"},
		"limit":           {"1"},
		"countrycodes":    {"pl"},
		"viewbox":         {geo.Tricity.Viewbox()},
		"bounded":         {"1"},
		"addressdetails":  {"0"},
		"accept-language": {"pl"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Result{}, fmt.Errorf("nominatim decode: %w", err)
	}
	if len(results) == 0 {
		return Result{}, ErrNoResult
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lon: %w", err)
	}

	c.logger.Debug("geocoded address",
		"query", query,
		"lat", lat,
		"lon", lon,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return Result{Lat: lat, Lon: lon, DisplayName: results[0].DisplayName}, nil
}
