// Package geocoding resolves addresses through a Nominatim compatible API.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/telemetry"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var ErrNotFound = errors.New("address not found")

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RateLimit is requests per second; public Nominatim allows one.
	RateLimit float64
}

// Result is a geocoded place. Bounds is nil when the service returned no box.
type Result struct {
	Lat     float64
	Lon     float64
	Bounds  *orb.Bound
	Address string
}

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
	logger     logger.Logger
}

func NewClient(cfg Config, l logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     telemetry.Tracer(),
		logger:     l,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

type place struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
	Error       string   `json:"error"`
}

// Lookup returns the best match for address or ErrNotFound.
func (c *Client) Lookup(ctx context.Context, address string) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "geocoding.Lookup", trace.WithAttributes(attribute.String("geocoding.query", address)))
	defer span.End()

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	var places []place
	if err := c.get(ctx, "/search", q, &places); err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	if len(places) == 0 {
		metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		c.logger.Info("address not found", "address", address)
		return Result{}, fmt.Errorf("%w: %q", ErrNotFound, address)
	}

	res, err := places[0].result()
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	metrics.GeocodeRequests.WithLabelValues("found").Inc()
	c.logger.Debug("address resolved", "address", address, "lat", res.Lat, "lon", res.Lon)
	return res, nil
}

// Reverse returns the address of the place at lat, lon or ErrNotFound.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "geocoding.Reverse", trace.WithAttributes(
		attribute.Float64("geocoding.lat", lat),
		attribute.Float64("geocoding.lon", lon),
	))
	defer span.End()

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "jsonv2")

	var p place
	if err := c.get(ctx, "/reverse", q, &p); err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	if p.Error != "" || p.Lat == "" {
		metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		return Result{}, fmt.Errorf("%w: %v, %v", ErrNotFound, lat, lon)
	}

	res, err := p.result()
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return Result{}, err
	}

	metrics.GeocodeRequests.WithLabelValues("found").Inc()
	return res, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for geocoder rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build geocoding request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	return nil
}

func (p place) result() (Result, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Result{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Result{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}

	res := Result{Lat: lat, Lon: lon, Address: p.DisplayName}

	// south, north, west, east
	if len(p.BoundingBox) == 4 {
		var v [4]float64
		for i, s := range p.BoundingBox {
			if v[i], err = strconv.ParseFloat(s, 64); err != nil {
				return Result{}, fmt.Errorf("invalid bounding box %v: %w", p.BoundingBox, err)
			}
		}
		res.Bounds = &orb.Bound{
			Min: orb.Point{v[2], v[0]},
			Max: orb.Point{v[3], v[1]},
		}
	}
	return res, nil
}
