package usecase

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
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jaennil/guide_helper/backend/mapview/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// UpstreamStatusError is returned when a tile server answers with a non-200 status.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Permanent reports whether the status means the tile does not exist, as
// opposed to the server being overloaded or failing.
func (e *UpstreamStatusError) Permanent() bool {
	return e.StatusCode != http.StatusTooManyRequests && e.StatusCode < 500
}

type TileUseCaseConfig struct {
	UserAgent    string
	Timeout      time.Duration
	RateLimit    float64
	RateBurst    int
	DatabaseOnly bool
	WriteThrough bool
	Overlay      string
}

// TileUseCase resolves a tile key to an image: in-memory cache first, then the
// persistent store, then the tile server. It never returns nil.
type TileUseCase struct {
	cache        *tiles.ImageCache
	store        cache.TileCache
	databaseOnly bool
	writeThrough bool
	userAgent    string
	httpClient   *http.Client
	limiter      *rate.Limiter
	overlay      atomic.Pointer[string]
	inflight     singleflight.Group
	tracer       trace.Tracer
	logger       logger.Logger
}

func NewTileUseCase(imageCache *tiles.ImageCache, store cache.TileCache, cfg TileUseCaseConfig, l logger.Logger) *TileUseCase {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	uc := &TileUseCase{
		cache:        imageCache,
		store:        store,
		databaseOnly: cfg.DatabaseOnly,
		writeThrough: cfg.WriteThrough,
		userAgent:    cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer: telemetry.Tracer(),
		logger: l,
	}

	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		uc.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	uc.SetOverlayServer(cfg.Overlay)

	return uc
}

// Cached returns the decoded tile if it is in memory.
func (uc *TileUseCase) Cached(key tiles.Key) (image.Image, bool) {
	return uc.cache.Get(key)
}

func (uc *TileUseCase) Contains(key tiles.Key) bool {
	return uc.cache.Contains(key)
}

// SetOverlayServer sets the template whose tiles are composited over every
// network tile. An empty template disables compositing.
func (uc *TileUseCase) SetOverlayServer(template string) {
	uc.overlay.Store(&template)
}

func (uc *TileUseCase) OverlayServer() string {
	if p := uc.overlay.Load(); p != nil {
		return *p
	}
	return ""
}

// Reset drops every decoded tile.
func (uc *TileUseCase) Reset() {
	uc.cache.Clear()
}

func (uc *TileUseCase) Resolve(ctx context.Context, key tiles.Key) image.Image {
	metrics.TilesRequests.Inc()

	if img, ok := uc.cache.Get(key); ok {
		return img
	}

	if img, ok := uc.fromStore(ctx, key); ok {
		return img
	}

	if uc.databaseOnly {
		return tiles.Empty
	}

	v, _, shared := uc.inflight.Do(key.String(), func() (any, error) {
		return uc.fromNetwork(ctx, key), nil
	})
	if shared {
		uc.logger.Debug("tile fetch shared", "z", key.Zoom, "x", key.X, "y", key.Y)
	}

	return v.(image.Image)
}

func (uc *TileUseCase) fromStore(ctx context.Context, key tiles.Key) (image.Image, bool) {
	if uc.store == nil {
		return nil, false
	}

	storeKey := cache.TileCacheKey{X: key.X, Y: key.Y, Z: key.Zoom, Server: key.Server}
	data, found, err := uc.store.Get(ctx, storeKey)
	if err != nil {
		metrics.TilesStoreErrors.WithLabelValues("get").Inc()
		uc.logger.Warn("tile store lookup failed", "z", key.Zoom, "x", key.X, "y", key.Y, "error", err)
		if uc.databaseOnly {
			return tiles.Empty, true
		}
		return nil, false
	}
	if !found {
		metrics.TilesStoreMisses.Inc()
		return nil, false
	}

	img, err := decode(data)
	if err != nil {
		uc.logger.Warn("stored tile is not an image", "z", key.Zoom, "x", key.X, "y", key.Y, "error", err)
		if uc.databaseOnly {
			return tiles.Empty, true
		}
		return nil, false
	}

	metrics.TilesStoreHits.Inc()
	uc.cache.Put(key, img)
	return img, true
}

func (uc *TileUseCase) fromNetwork(ctx context.Context, key tiles.Key) image.Image {
	data, err := uc.download(ctx, key.URL())
	if err != nil {
		var statusErr *UpstreamStatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			metrics.TilesUpstreamFailures.WithLabelValues("absent").Inc()
			uc.logger.Debug("tile absent on server", "z", key.Zoom, "x", key.X, "y", key.Y, "status", statusErr.StatusCode)
			uc.cache.Put(key, tiles.Empty)
			return tiles.Empty
		}

		metrics.TilesUpstreamFailures.WithLabelValues("transient").Inc()
		uc.logger.Warn("failed to fetch tile", "z", key.Zoom, "x", key.X, "y", key.Y, "error", err)
		return tiles.Empty
	}

	img, err := decode(data)
	if err != nil {
		metrics.TilesUpstreamFailures.WithLabelValues("undecodable").Inc()
		uc.logger.Debug("tile body is not an image", "z", key.Zoom, "x", key.X, "y", key.Y, "error", err)
		uc.cache.Put(key, tiles.Empty)
		return tiles.Empty
	}

	if uc.writeThrough && uc.store != nil {
		// Store in persistent cache (fire and forget)
		go uc.storeTile(key, data)
	}

	if overlay := uc.OverlayServer(); overlay != "" {
		var complete bool
		img, complete = uc.withOverlay(ctx, key, img, overlay)
		if !complete {
			return img
		}
	}

	uc.cache.Put(key, img)
	return img
}

func (uc *TileUseCase) storeTile(key tiles.Key, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	storeKey := cache.TileCacheKey{X: key.X, Y: key.Y, Z: key.Zoom, Server: key.Server}
	if err := uc.store.Set(ctx, storeKey, data); err != nil {
		metrics.TilesStoreErrors.WithLabelValues("set").Inc()
		uc.logger.Warn("failed to store tile", "z", key.Zoom, "x", key.X, "y", key.Y, "error", err)
	}
}

// withOverlay composites the overlay tile over base. complete is false when
// the overlay may still appear later, so the result must not be cached.
func (uc *TileUseCase) withOverlay(ctx context.Context, key tiles.Key, base image.Image, overlay string) (img image.Image, complete bool) {
	data, err := uc.download(ctx, tiles.FormatURL(overlay, key.Zoom, key.X, key.Y))
	if err != nil {
		var statusErr *UpstreamStatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			uc.logger.Debug("overlay tile absent on server", "z", key.Zoom, "x", key.X, "y", key.Y, "status", statusErr.StatusCode)
			return base, true
		}
		uc.logger.Warn("failed to fetch overlay tile", "z", key.Zoom, "x", key.X, "y", key.Y, "error", err)
		return base, false
	}

	top, err := decode(data)
	if err != nil {
		uc.logger.Debug("overlay tile is not an image", "z", key.Zoom, "x", key.X, "y", key.Y, "error", err)
		return base, true
	}

	return composite(base, top), true
}

func (uc *TileUseCase) download(ctx context.Context, url string) ([]byte, error) {
	if uc.limiter != nil {
		if err := uc.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, span := uc.tracer.Start(ctx, "tiles.download",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tile.url", url)),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", uc.userAgent)

	metrics.TilesUpstreamRequests.Inc()
	start := time.Now()
	resp, err := uc.httpClient.Do(req)
	metrics.TilesUpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		span.SetStatus(codes.Error, resp.Status)
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}

	return data, nil
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// composite draws top over base, scaling top to the size of base.
func composite(base, top image.Image) *image.RGBA {
	b := base.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), base, b.Min, xdraw.Src)

	if top.Bounds().Size() == dst.Bounds().Size() {
		xdraw.Draw(dst, dst.Bounds(), top, top.Bounds().Min, xdraw.Over)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), top, top.Bounds(), xdraw.Over, nil)
	}

	return dst
}
