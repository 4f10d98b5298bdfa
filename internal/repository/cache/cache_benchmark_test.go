package cache

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
)

const (
	smallTileSize  = 1024      // 1KB
	mediumTileSize = 10 * 1024 // 10KB
	largeTileSize  = 50 * 1024 // 50KB
)

func generateTileData(size int) []byte {
	data := make([]byte, size)
	rand.Read(data)
	return data
}

func setupSQLiteCache(b *testing.B) (TileCache, func()) {
	b.Helper()
	c, err := NewSQLiteCache(filepath.Join(b.TempDir(), "bench.db"), logger.NewNoOp())
	if err != nil {
		b.Fatalf("Failed to create SQLite cache: %v", err)
	}
	return c, func() { c.Close() }
}

func setupMapCache(b *testing.B) (TileCache, func()) {
	b.Helper()
	return NewMapCache(), func() {}
}

func setupFilesystemCache(b *testing.B) (TileCache, func()) {
	b.Helper()
	c, err := NewFilesystemCache(b.TempDir())
	if err != nil {
		b.Fatalf("Failed to create filesystem cache: %v", err)
	}
	return c, func() {}
}

var backends = []struct {
	name  string
	setup func(b *testing.B) (TileCache, func())
}{
	{"SQLite", setupSQLiteCache},
	{"Map", setupMapCache},
	{"Filesystem", setupFilesystemCache},
}

func benchKey(i int) TileCacheKey {
	return TileCacheKey{X: i % 1000, Y: i % 1000, Z: i % 20, Server: testServer}
}

func BenchmarkSet(b *testing.B) {
	ctx := context.Background()
	for _, size := range []struct {
		name  string
		bytes int
	}{{"Small", smallTileSize}, {"Large", largeTileSize}} {
		for _, backend := range backends {
			b.Run(backend.name+"_"+size.name, func(b *testing.B) {
				cache, cleanup := backend.setup(b)
				defer cleanup()
				data := generateTileData(size.bytes)

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := cache.Set(ctx, benchKey(i), data); err != nil {
						b.Fatalf("Set failed: %v", err)
					}
				}
			})
		}
	}
}

func BenchmarkGet(b *testing.B) {
	ctx := context.Background()
	for _, backend := range backends {
		b.Run(backend.name, func(b *testing.B) {
			cache, cleanup := backend.setup(b)
			defer cleanup()
			data := generateTileData(mediumTileSize)

			for i := 0; i < 100; i++ {
				cache.Set(ctx, benchKey(i), data)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := cache.Get(ctx, benchKey(i%100)); err != nil {
					b.Fatalf("Get failed: %v", err)
				}
			}
		})
	}
}

// 80% reads, 20% writes, like a viewer panning over a partly loaded area.
func BenchmarkConcurrent(b *testing.B) {
	ctx := context.Background()
	for _, backend := range backends {
		b.Run(backend.name, func(b *testing.B) {
			cache, cleanup := backend.setup(b)
			defer cleanup()
			data := generateTileData(mediumTileSize)

			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					key := benchKey(i % 100)
					if i%5 == 0 {
						cache.Set(ctx, key, data)
					} else {
						cache.Get(ctx, key)
					}
					i++
				}
			})
		})
	}
}
