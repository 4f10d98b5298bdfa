package tiles

import (
	"container/list"
	"image"
	"sync"

	"github.com/jaennil/guide_helper/backend/mapview/pkg/metrics"
)

const DefaultCeiling = 10000

type entry struct {
	key   Key
	image image.Image
}

// ImageCache is a bounded LRU of decoded tiles, safe for concurrent use.
// After every Put it holds at most ceiling entries.
type ImageCache struct {
	mu      sync.Mutex
	ceiling int
	items   map[Key]*list.Element
	order   *list.List
}

func NewImageCache(ceiling int) *ImageCache {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &ImageCache{
		ceiling: ceiling,
		items:   make(map[Key]*list.Element),
		order:   list.New(),
	}
}

func (c *ImageCache) Get(key Key) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		metrics.TilesCacheMisses.Inc()
		return nil, false
	}
	c.order.MoveToFront(el)
	metrics.TilesCacheHits.Inc()
	return el.Value.(*entry).image, true
}

// Contains reports presence without touching recency.
func (c *ImageCache) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

func (c *ImageCache) Put(key Key, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).image = img
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&entry{key: key, image: img})

	for c.order.Len() > c.ceiling {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
		metrics.TilesCacheEvictions.Inc()
	}
	metrics.TilesCacheSize.Set(float64(c.order.Len()))
}

func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

func (c *ImageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[Key]*list.Element)
	c.order.Init()
	metrics.TilesCacheSize.Set(0)
}
