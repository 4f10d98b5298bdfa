package cache

import (
	"context"
	"fmt"
	"io"

	"github.com/jaennil/guide_helper/backend/mapview/pkg/config"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
)

const (
	StoreSQLite     = "sqlite"
	StoreRedis      = "redis"
	StoreFilesystem = "filesystem"
	StoreMemory     = "memory"
	StoreNone       = "none"
)

// NewTileCache builds the persistent store selected by cfg.Store.Type.
// The returned closer releases it; both are nil for the "none" type.
func NewTileCache(ctx context.Context, cfg *config.Config, l logger.Logger) (TileCache, io.Closer, error) {
	switch cfg.Store.Type {
	case StoreSQLite:
		c, err := NewSQLiteCache(cfg.Store.Path, l)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case StoreRedis:
		c, err := NewRedisCache(ctx, RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		l.Info("redis cache initialized", "addr", cfg.Redis.Addr)
		return c, c, nil
	case StoreFilesystem:
		c, err := NewFilesystemCache(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		l.Info("filesystem cache initialized", "root", cfg.Store.Path)
		return c, nil, nil
	case StoreMemory:
		return NewMapCache(), nil, nil
	case StoreNone, "":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStoreType, cfg.Store.Type)
	}
}
