// Package tiles holds the tile addressing types shared by the fetch pipeline
// and the grid, together with the in-memory decoded tile cache.
package tiles

import (
	"fmt"
	"math"
)

// Key addresses one tile of one tile server. Server is the URL template the
// tile is fetched from.
type Key struct {
	Zoom   int
	X      int
	Y      int
	Server string
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d@%s", k.Zoom, k.X, k.Y, k.Server)
}

// Valid reports whether the key lies inside the world at its zoom.
func (k Key) Valid() bool {
	if k.Zoom < 0 || k.Zoom > 30 {
		return false
	}
	n := int(math.Exp2(float64(k.Zoom)))
	return k.X >= 0 && k.Y >= 0 && k.X < n && k.Y < n
}
