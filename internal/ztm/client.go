package ztm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spkg/bom"
)

// Default upstream endpoints published by ZTM Gdańsk on the Tristar open data portal.
const (
	DefaultStopsURL      = "https://ckan.multimediagdansk.pl/dataset/c24aa637-3619-4dc2-a171-a23eec8f2172/resource/4c4025f0-01bf-41f7-a39f-d156d201b82b/download/stops.json"
	DefaultDeparturesURL = "https://ckan2.multimediagdansk.pl/departures"
)

var (
	// ErrTimeout is returned when the upstream did not answer within its deadline.
	ErrTimeout = errors.New("ztm: upstream timeout")
	// ErrUnavailable covers network failures and non-2xx responses.
	ErrUnavailable = errors.New("ztm: upstream unavailable")
	// ErrMalformed is returned when a response body cannot be decoded.
	ErrMalformed = errors.New("ztm: malformed upstream response")
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	StopsURL          string
	DeparturesURL     string
	UserAgent         string
	CatalogTimeout    time.Duration
	DeparturesTimeout time.Duration
	HTTPClient        *http.Client
}

// Client is an HTTP client for the ZTM Gdańsk open data API.
// It performs no caching and no retries.
type Client struct {
	stopsURL          string
	departuresURL     string
	userAgent         string
	catalogTimeout    time.Duration
	departuresTimeout time.Duration
	client            *http.Client
	logger            *slog.Logger
}

// NewClient creates a ZTM API client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	c := &Client{
		stopsURL:          opts.StopsURL,
		departuresURL:     opts.DeparturesURL,
		userAgent:         opts.UserAgent,
		catalogTimeout:    opts.CatalogTimeout,
		departuresTimeout: opts.DeparturesTimeout,
		client:            opts.HTTPClient,
		logger:            logger,
	}
	if c.stopsURL == "" {
		c.stopsURL = DefaultStopsURL
	}
	if c.departuresURL == "" {
		c.departuresURL = DefaultDeparturesURL
	}
	if c.userAgent == "" {
		c.userAgent = "UrbanFlow/1.0"
	}
	if c.catalogTimeout <= 0 {
		c.catalogTimeout = 30 * time.Second
	}
	if c.departuresTimeout <= 0 {
		c.departuresTimeout = 10 * time.Second
	}
	if c.client == nil {
		// Deadlines are applied per request through the context.
		c.client = &http.Client{}
	}
	return c
}

// FetchStopCatalog downloads the bulk stop list for all published dates.
func (c *Client) FetchStopCatalog(ctx context.Context) (StopCatalog, error) {
	ctx, cancel := context.WithTimeout(ctx, c.catalogTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.doGet(ctx, c.stopsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch stop catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch stop catalog: %w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var catalog StopCatalog
	if err := decode(resp.Body, &catalog); err != nil {
		return nil, fmt.Errorf("decode stop catalog: %w", classify(ctx, err, true))
	}

	c.logger.Debug("stop catalog fetched",
		"dates", len(catalog),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return catalog, nil
}

// FetchDepartures fetches live departures for a stop.
// A 404 means ZTM has no live feed for the stop and yields an empty result.
func (c *Client) FetchDepartures(ctx context.Context, stopID int) ([]Departure, error) {
	ctx, cancel := context.WithTimeout(ctx, c.departuresTimeout)
	defer cancel()

	u, err := url.Parse(c.departuresURL)
	if err != nil {
		return nil, fmt.Errorf("departures url: %w", err)
	}
	q := u.Query()
	q.Set("stopId", strconv.Itoa(stopID))
	u.RawQuery = q.Encode()

	resp, err := c.doGet(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("departures for stop %d: %w", stopID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("departures for stop %d: %w: HTTP %d", stopID, ErrUnavailable, resp.StatusCode)
	}

	var result DeparturesResponse
	if err := decode(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decode departures for stop %d: %w", stopID, classify(ctx, err, true))
	}
	return result.Departures, nil
}

func (c *Client) doGet(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err, false)
	}
	return resp, nil
}

// decode reads a JSON body, skipping a leading UTF-8 BOM.
func decode(r io.Reader, v any) error {
	return json.NewDecoder(bom.NewReader(r)).Decode(v)
}

// classify maps a transport or decode error to one of the package sentinels.
// Body read errors can be timeouts too, since the deadline covers the whole exchange.
func classify(ctx context.Context, err error, decoding bool) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case decoding:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
