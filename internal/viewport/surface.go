package viewport

import (
	"image"

	"github.com/jaennil/guide_helper/backend/mapview/internal/fetch"
	"github.com/jaennil/guide_helper/backend/mapview/internal/prefetch"
	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
)

// Handle identifies an image placed on a Surface.
type Handle uint64

// Surface is the drawing target for tile images. Positions are the canvas
// pixel coordinates of the image's top-left corner. Placeholders are never
// placed; the surface background shows through instead.
type Surface interface {
	Place(img image.Image, x, y float64) Handle
	Move(h Handle, x, y float64)
	Update(h Handle, img image.Image)
	Release(h Handle)
}

// TileSource answers in-memory cache lookups without blocking.
type TileSource interface {
	Cached(key tiles.Key) (image.Image, bool)
	SetOverlayServer(template string)
	Reset()
}

type Fetcher interface {
	Enqueue(task fetch.Task)
	ClearPending() int
	ClearResults()
}

// HintSink receives the viewport centre after every change.
type HintSink interface {
	SetCenter(h prefetch.Hint)
}
