package prefetch

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryResolver struct {
	mu       sync.Mutex
	cached   map[tiles.Key]bool
	requests []tiles.Key
}

func newMemoryResolver() *memoryResolver {
	return &memoryResolver{cached: map[tiles.Key]bool{}}
}

func (r *memoryResolver) Resolve(ctx context.Context, key tiles.Key) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, key)
	r.cached[key] = true
	return tiles.Empty
}

func (r *memoryResolver) Contains(key tiles.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached[key]
}

func (r *memoryResolver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func TestRingPerimeter(t *testing.T) {
	h := Hint{X: 10, Y: 10, Zoom: 5}

	for radius := 1; radius <= 8; radius++ {
		keys := Ring(h, radius)
		require.Len(t, keys, 8*radius)

		seen := map[tiles.Key]bool{}
		for _, k := range keys {
			assert.False(t, seen[k], "duplicate %v", k)
			seen[k] = true

			dx, dy := k.X-h.X, k.Y-h.Y
			onEdge := dx == radius || dx == -radius || dy == radius || dy == -radius
			assert.True(t, onEdge, "%v not on ring %d", k, radius)
			assert.Equal(t, 5, k.Zoom)
		}
	}

	assert.Equal(t, []tiles.Key{{Zoom: 5, X: 10, Y: 10}}, Ring(h, 0))
}

func TestSchedulerLoadsRingsUpToMaxRadius(t *testing.T) {
	resolver := newMemoryResolver()
	s := NewScheduler(resolver, 2, 5*time.Millisecond, logger.NewNoOp())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.SetCenter(Hint{X: 100, Y: 100, Zoom: 10})

	// rings of radius 1 and 2: 8 + 16 tiles
	require.Eventually(t, func() bool { return resolver.count() == 24 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 24, resolver.count())
}

func TestSchedulerSkipsCachedAndInvalidTiles(t *testing.T) {
	resolver := newMemoryResolver()
	resolver.cached[tiles.Key{Zoom: 1, X: 1, Y: 1}] = true
	s := NewScheduler(resolver, 1, 5*time.Millisecond, logger.NewNoOp())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// zoom 1 world is 2x2; ring 1 around (0,0) has three valid tiles, one cached
	s.SetCenter(Hint{X: 0, Y: 0, Zoom: 1})

	require.Eventually(t, func() bool { return resolver.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	assert.ElementsMatch(t, []tiles.Key{{Zoom: 1, X: 1, Y: 0}, {Zoom: 1, X: 0, Y: 1}}, resolver.requests)
}

func TestSchedulerResetsRadiusOnNewCenter(t *testing.T) {
	resolver := newMemoryResolver()
	s := NewScheduler(resolver, 1, 5*time.Millisecond, logger.NewNoOp())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.SetCenter(Hint{X: 50, Y: 50, Zoom: 8})
	require.Eventually(t, func() bool { return resolver.count() == 8 }, 2*time.Second, 5*time.Millisecond)

	s.SetCenter(Hint{X: 60, Y: 50, Zoom: 8})
	require.Eventually(t, func() bool { return resolver.count() == 16 }, 2*time.Second, 5*time.Millisecond)
}

func TestSetCenterIgnoresRepeats(t *testing.T) {
	s := NewScheduler(newMemoryResolver(), 1, time.Millisecond, logger.NewNoOp())

	_, ok := s.Center()
	assert.False(t, ok)

	s.SetCenter(Hint{X: 1, Y: 2, Zoom: 3})
	first := s.hint.Load()
	s.SetCenter(Hint{X: 1, Y: 2, Zoom: 3})

	assert.Same(t, first, s.hint.Load())
}
