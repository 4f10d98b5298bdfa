package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FilesystemCache stores tiles as {root}/{server hash}/{z}/{x}/{y} files.
type FilesystemCache struct {
	root string
}

func NewFilesystemCache(root string) (*FilesystemCache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FilesystemCache{root: root}, nil
}

var _ TileCache = (*FilesystemCache)(nil)

func (c *FilesystemCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	content, err := os.ReadFile(c.pathFor(k))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return content, true, nil
}

func (c *FilesystemCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	path := c.pathFor(k)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, v, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *FilesystemCache) pathFor(k TileCacheKey) string {
	return filepath.Join(c.root, serverHash(k.Server), strconv.Itoa(k.Z), strconv.Itoa(k.X), strconv.Itoa(k.Y))
}
