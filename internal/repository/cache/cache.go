package cache

import (
	"context"
	"errors"
)

var ErrUnknownStoreType = errors.New("unknown tile store type")

// TileCacheKey addresses a raw tile in a persistent store. Server is the tile
// server URL template, matching the server column of the offline database.
type TileCacheKey struct {
	X      int
	Y      int
	Z      int
	Server string
}

type TileCacheValue []byte

type TileCache interface {
	Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error)
	Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error
}
