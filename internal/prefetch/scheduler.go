// Package prefetch loads tiles around the viewport centre in widening square
// rings so that panning finds them already cached.
package prefetch

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/metrics"
)

const (
	DefaultMaxRadius = 8
	DefaultIdle      = 100 * time.Millisecond
)

// Hint is the centre tile of the viewport, published by the display loop.
type Hint struct {
	X      int
	Y      int
	Zoom   int
	Server string
}

type Resolver interface {
	Resolve(ctx context.Context, key tiles.Key) image.Image
	Contains(key tiles.Key) bool
}

type Scheduler struct {
	resolver  Resolver
	maxRadius int
	idle      time.Duration
	logger    logger.Logger

	hint atomic.Pointer[Hint]
	wake chan struct{}
}

func NewScheduler(resolver Resolver, maxRadius int, idle time.Duration, l logger.Logger) *Scheduler {
	if maxRadius <= 0 {
		maxRadius = DefaultMaxRadius
	}
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Scheduler{
		resolver:  resolver,
		maxRadius: maxRadius,
		idle:      idle,
		logger:    l,
		wake:      make(chan struct{}, 1),
	}
}

// SetCenter publishes a new centre. Safe to call from any goroutine.
func (s *Scheduler) SetCenter(h Hint) {
	if cur := s.hint.Load(); cur != nil && *cur == h {
		return
	}
	s.hint.Store(&h)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Center() (Hint, bool) {
	h := s.hint.Load()
	if h == nil {
		return Hint{}, false
	}
	return *h, true
}

func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("pre-fetch scheduler started", "max_radius", s.maxRadius)

	var (
		last   Hint
		radius = 1
	)
	for {
		if ctx.Err() != nil {
			return
		}

		h, ok := s.Center()
		if ok && h != last {
			last = h
			radius = 1
		}

		if ok && radius <= s.maxRadius {
			if s.loadRing(ctx, h, radius) {
				radius++
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-time.After(s.idle):
		}
	}
}

// loadRing resolves every uncached tile on the ring and reports whether it
// finished before the centre moved.
func (s *Scheduler) loadRing(ctx context.Context, h Hint, radius int) bool {
	for _, key := range Ring(h, radius) {
		if ctx.Err() != nil {
			return false
		}
		if cur, _ := s.Center(); cur != h {
			return false
		}
		if !key.Valid() || s.resolver.Contains(key) {
			continue
		}
		metrics.PrefetchRequests.Inc()
		s.resolver.Resolve(ctx, key)
	}
	return true
}

// Ring lists the tiles on the perimeter of the square of the given radius
// around the hint, each exactly once.
func Ring(h Hint, radius int) []tiles.Key {
	key := func(x, y int) tiles.Key {
		return tiles.Key{Zoom: h.Zoom, X: x, Y: y, Server: h.Server}
	}
	if radius == 0 {
		return []tiles.Key{key(h.X, h.Y)}
	}

	keys := make([]tiles.Key, 0, 8*radius)
	for x := h.X - radius; x <= h.X+radius; x++ {
		keys = append(keys, key(x, h.Y-radius), key(x, h.Y+radius))
	}
	for y := h.Y - radius + 1; y < h.Y+radius; y++ {
		keys = append(keys, key(h.X-radius, y), key(h.X+radius, y))
	}
	return keys
}
