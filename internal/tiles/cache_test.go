package tiles

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServer = "https://tile.example.com/{z}/{x}/{y}.png"

func key(x, y int) Key {
	return Key{Zoom: 14, X: x, Y: y, Server: testServer}
}

func TestImageCachePutIsIdempotent(t *testing.T) {
	c := NewImageCache(16)
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	c.Put(key(1, 1), img)
	c.Put(key(1, 1), img)

	assert.Equal(t, 1, c.Len())
	got, ok := c.Get(key(1, 1))
	require.True(t, ok)
	assert.Same(t, img, got)
}

func TestImageCacheMiss(t *testing.T) {
	c := NewImageCache(16)

	got, ok := c.Get(key(5, 5))
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestImageCacheCeiling(t *testing.T) {
	c := NewImageCache(DefaultCeiling)

	for i := range 10050 {
		c.Put(key(i, 0), Empty)
		assert.LessOrEqual(t, c.Len(), DefaultCeiling)
	}

	assert.Equal(t, DefaultCeiling, c.Len())
	assert.False(t, c.Contains(key(0, 0)))
	assert.False(t, c.Contains(key(49, 0)))
	assert.True(t, c.Contains(key(50, 0)))
	assert.True(t, c.Contains(key(10049, 0)))
}

func TestImageCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewImageCache(3)

	c.Put(key(0, 0), Empty)
	c.Put(key(1, 0), Empty)
	c.Put(key(2, 0), Empty)

	_, ok := c.Get(key(0, 0))
	require.True(t, ok)

	c.Put(key(3, 0), Empty)

	assert.True(t, c.Contains(key(0, 0)))
	assert.False(t, c.Contains(key(1, 0)))
	assert.True(t, c.Contains(key(2, 0)))
	assert.True(t, c.Contains(key(3, 0)))
}

func TestImageCacheServerIsPartOfKey(t *testing.T) {
	c := NewImageCache(8)
	other := Key{Zoom: 14, X: 1, Y: 1, Server: "https://other.example.com/{z}/{x}/{y}.png"}

	c.Put(key(1, 1), Empty)

	assert.False(t, c.Contains(other))
}

func TestImageCacheClear(t *testing.T) {
	c := NewImageCache(8)
	c.Put(key(1, 1), Empty)
	c.Put(key(2, 1), NotLoaded)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Contains(key(1, 1)))
}

func TestImageCacheConcurrentAccess(t *testing.T) {
	c := NewImageCache(100)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				c.Put(key(w*1000+i, w), Empty)
				c.Get(key(w*1000+i/2, w))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, c.Len())
}

func TestPlaceholders(t *testing.T) {
	assert.True(t, IsPlaceholder(Empty))
	assert.True(t, IsPlaceholder(NotLoaded))
	assert.False(t, IsPlaceholder(image.NewRGBA(image.Rect(0, 0, 256, 256))))
	assert.NotSame(t, Empty, NotLoaded)
}
