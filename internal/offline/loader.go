// Package offline bulk-loads map sections into the sqlite tile database so the
// viewer can run without network access.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jaennil/guide_helper/backend/mapview/internal/projection"
	"github.com/jaennil/guide_helper/backend/mapview/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/metrics"
	"github.com/paulmach/orb"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers  = 50
	DefaultAttempts = 3
)

var (
	ErrSectionLoaded = errors.New("section is already in the database")
	ErrInvalidRange  = errors.New("invalid section")
)

// Store is the part of the offline database the loader writes to.
type Store interface {
	Has(ctx context.Context, k cache.TileCacheKey) (bool, error)
	Set(ctx context.Context, k cache.TileCacheKey, v cache.TileCacheValue) error
	AddServer(ctx context.Context, url string, maxZoom int) error
	HasSection(ctx context.Context, s cache.Section) (bool, error)
	AddSection(ctx context.Context, s cache.Section) error
	Sections(ctx context.Context) ([]cache.Section, error)
}

var _ Store = (*cache.SQLiteCache)(nil)

// Progress observes a section load. TileDone is called from worker
// goroutines. A nil Progress is allowed.
type Progress interface {
	ZoomStarted(zoom, tiles int)
	TileDone()
	ZoomFinished(zoom int)
}

type Config struct {
	TileServer string
	MaxZoom    int
	Workers    int
	Attempts   int
	UserAgent  string
	Timeout    time.Duration
	// RateLimit is in requests per second; 0 disables it.
	RateLimit  float64
}

// Report counts what happened to the tiles of a section.
type Report struct {
	Total   int
	Present int
	Stored  int
	Invalid int
	Failed  int
}

type Loader struct {
	store      Store
	server     string
	maxZoom    int
	workers    int
	attempts   int
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
}

func NewLoader(store Store, cfg Config, l logger.Logger) (*Loader, error) {
	if err := tiles.ValidateTemplate(cfg.TileServer); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	ld := &Loader{
		store:      store,
		server:     cfg.TileServer,
		maxZoom:    cfg.MaxZoom,
		workers:    workers,
		attempts:   attempts,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     l,
	}
	if cfg.RateLimit > 0 {
		ld.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return ld, nil
}

// formatPosition renders a position the way the sections table stores it.
func formatPosition(p orb.Point) string {
	return fmt.Sprintf("(%v, %v)", p.Lat(), p.Lon())
}

// SaveSection downloads every tile between the north-west corner topLeft and
// the south-east corner bottomRight for zoom levels zoomA through zoomB.
// Tiles already stored are kept. The section is recorded once every zoom
// level is done; loading a recorded section returns ErrSectionLoaded.
func (ld *Loader) SaveSection(ctx context.Context, topLeft, bottomRight orb.Point, zoomA, zoomB int, progress Progress) (Report, error) {
	if zoomA < 0 || zoomB < zoomA {
		return Report{}, fmt.Errorf("%w: zoom range %d..%d", ErrInvalidRange, zoomA, zoomB)
	}
	if topLeft.Lat() < bottomRight.Lat() || topLeft.Lon() > bottomRight.Lon() {
		return Report{}, fmt.Errorf("%w: %s is not north-west of %s", ErrInvalidRange, formatPosition(topLeft), formatPosition(bottomRight))
	}

	section := cache.Section{
		PositionA: formatPosition(topLeft),
		PositionB: formatPosition(bottomRight),
		ZoomA:     zoomA,
		ZoomB:     zoomB,
		Server:    ld.server,
	}

	loaded, err := ld.store.HasSection(ctx, section)
	if err != nil {
		return Report{}, fmt.Errorf("failed to look up section: %w", err)
	}
	if loaded {
		return Report{}, ErrSectionLoaded
	}

	if err := ld.store.AddServer(ctx, ld.server, ld.maxZoom); err != nil {
		return Report{}, fmt.Errorf("failed to register tile server: %w", err)
	}

	var report Report
	for zoom := zoomA; zoom <= zoomB; zoom++ {
		keys, invalid := sectionTiles(topLeft, bottomRight, zoom, ld.server)
		report.Invalid += invalid

		ld.logger.Info("loading zoom level", "zoom", zoom, "tiles", len(keys))
		if progress != nil {
			progress.ZoomStarted(zoom, len(keys))
		}

		zr, err := ld.loadZoom(ctx, keys, progress)
		report.Total += len(keys)
		report.Present += zr.Present
		report.Stored += zr.Stored
		report.Failed += zr.Failed
		if err != nil {
			return report, err
		}

		if progress != nil {
			progress.ZoomFinished(zoom)
		}
	}

	if err := ld.store.AddSection(ctx, section); err != nil {
		return report, fmt.Errorf("failed to record section: %w", err)
	}

	ld.logger.Info("section loaded",
		"position_a", section.PositionA,
		"position_b", section.PositionB,
		"stored", report.Stored,
		"present", report.Present,
		"failed", report.Failed,
	)
	return report, nil
}

func (ld *Loader) Sections(ctx context.Context) ([]cache.Section, error) {
	return ld.store.Sections(ctx)
}

// sectionTiles lists the tiles covering the section at zoom, including the
// column and row past each far corner. Indices outside the world are
// counted, not returned.
func sectionTiles(topLeft, bottomRight orb.Point, zoom int, server string) (keys []cache.TileCacheKey, invalid int) {
	ul := projection.ToGrid(projection.ClampLatitude(topLeft.Lat()), topLeft.Lon(), zoom)
	lr := projection.ToGrid(projection.ClampLatitude(bottomRight.Lat()), bottomRight.Lon(), zoom)

	for x := int(math.Floor(ul.X)); x <= int(math.Ceil(lr.X)); x++ {
		for y := int(math.Floor(ul.Y)); y <= int(math.Ceil(lr.Y)); y++ {
			if !(tiles.Key{Zoom: zoom, X: x, Y: y}).Valid() {
				invalid++
				continue
			}
			keys = append(keys, cache.TileCacheKey{X: x, Y: y, Z: zoom, Server: server})
		}
	}
	return keys, invalid
}

type downloaded struct {
	key  cache.TileCacheKey
	data []byte
}

// loadZoom fetches keys on the worker pool. A single writer goroutine stores
// the results, so the database only ever sees one writer.
func (ld *Loader) loadZoom(ctx context.Context, keys []cache.TileCacheKey, progress Progress) (Report, error) {
	var (
		report  Report
		present atomic.Int64
		failed  atomic.Int64
		results = make(chan downloaded, ld.workers)
	)

	var writer errgroup.Group
	writer.Go(func() error {
		var writeErr error
		for d := range results {
			if writeErr != nil {
				continue
			}
			if err := ld.store.Set(ctx, d.key, d.data); err != nil {
				writeErr = fmt.Errorf("failed to store tile %d/%d/%d: %w", d.key.Z, d.key.X, d.key.Y, err)
				continue
			}
			report.Stored++
			metrics.OfflineTiles.WithLabelValues("stored").Inc()
			if progress != nil {
				progress.TileDone()
			}
		}
		return writeErr
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ld.workers)
	for _, key := range keys {
		g.Go(func() error {
			has, err := ld.store.Has(gctx, key)
			if err != nil {
				return fmt.Errorf("failed to check tile %d/%d/%d: %w", key.Z, key.X, key.Y, err)
			}
			if has {
				present.Add(1)
				metrics.OfflineTiles.WithLabelValues("present").Inc()
				if progress != nil {
					progress.TileDone()
				}
				return nil
			}

			data, err := ld.fetch(gctx, key)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				metrics.OfflineTiles.WithLabelValues("failed").Inc()
				ld.logger.Warn("failed to load tile", "z", key.Z, "x", key.X, "y", key.Y, "error", err)
				if progress != nil {
					progress.TileDone()
				}
				return nil
			}

			select {
			case results <- downloaded{key: key, data: data}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	close(results)
	if werr := writer.Wait(); err == nil {
		err = werr
	}

	report.Present = int(present.Load())
	report.Failed = int(failed.Load())
	return report, err
}

// fetch downloads one tile, retrying transport errors and server errors.
// Bodies that do not decode as an image are rejected.
func (ld *Loader) fetch(ctx context.Context, key cache.TileCacheKey) ([]byte, error) {
	url := tiles.FormatURL(key.Server, key.Z, key.X, key.Y)

	var lastErr error
	for attempt := range ld.attempts {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, retry, err := ld.download(ctx, url)
		if err == nil {
			if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
				return nil, fmt.Errorf("tile body is not an image: %w", err)
			}
			return data, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (ld *Loader) download(ctx context.Context, url string) (data []byte, retry bool, err error) {
	if ld.limiter != nil {
		if err := ld.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	if ld.userAgent != "" {
		req.Header.Set("User-Agent", ld.userAgent)
	}

	resp, err := ld.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read tile data: %w", err)
	}
	return data, false, nil
}
