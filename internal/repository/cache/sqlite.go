package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// SQLiteCache is the offline tile database: tiles, the servers they came
// from and the sections that were bulk loaded.
type SQLiteCache struct {
	db     *sql.DB
	logger logger.Logger
}

// Section is one bulk-loaded area of the offline database.
type Section struct {
	PositionA string
	PositionB string
	ZoomA     int
	ZoomB     int
	Server    string
}

func NewSQLiteCache(path string, l logger.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &SQLiteCache{
		db:     db,
		logger: l,
	}

	err = c.runMigrations()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate offline database: %w", err)
	}

	l.Info("sqlite cache initialized", "path", path)

	return c, nil
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	err = goose.Up(c.db, "migrations")
	if err != nil {
		return err
	}

	return nil
}

var _ TileCache = (*SQLiteCache)(nil)

func (c *SQLiteCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	c.logger.Debug("sqlite cache get", "z", k.Z, "x", k.X, "y", k.Y)

	query := `SELECT tile_image
	FROM tiles
	WHERE zoom = ? AND x = ? AND y = ? AND server = ?`

	var tileData []byte
	err := c.db.QueryRowContext(ctx, query, k.Z, k.X, k.Y, k.Server).Scan(&tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		c.logger.Error("sqlite cache get failed", "z", k.Z, "x", k.X, "y", k.Y, "error", err)
		return nil, false, err
	}

	return tileData, true, nil
}

// Set stores a tile. The server row is created on demand with max zoom 0
// unless AddServer registered it before.
func (c *SQLiteCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	c.logger.Debug("sqlite cache set", "z", k.Z, "x", k.X, "y", k.Y)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO server (url, max_zoom) VALUES (?, 0)
	ON CONFLICT(url) DO NOTHING`, k.Server)
	if err != nil {
		c.logger.Error("sqlite cache server insert failed", "server", k.Server, "error", err)
		return err
	}

	query := `INSERT INTO tiles (zoom, x, y, server, tile_image)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(zoom, x, y, server) DO UPDATE SET tile_image = excluded.tile_image`

	_, err = tx.ExecContext(ctx, query, k.Z, k.X, k.Y, k.Server, []byte(v))
	if err != nil {
		c.logger.Error("sqlite cache set failed", "z", k.Z, "x", k.X, "y", k.Y, "error", err)
		return err
	}

	return tx.Commit()
}

// Has reports whether the tile is stored without reading its image.
func (c *SQLiteCache) Has(ctx context.Context, k TileCacheKey) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM tiles
	WHERE zoom = ? AND x = ? AND y = ? AND server = ?`, k.Z, k.X, k.Y, k.Server).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddServer registers a tile server, updating its max zoom if already known.
func (c *SQLiteCache) AddServer(ctx context.Context, url string, maxZoom int) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO server (url, max_zoom) VALUES (?, ?)
	ON CONFLICT(url) DO UPDATE SET max_zoom = excluded.max_zoom`, url, maxZoom)
	return err
}

func (c *SQLiteCache) HasSection(ctx context.Context, s Section) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM sections
	WHERE position_a = ? AND position_b = ? AND zoom_a = ? AND zoom_b = ? AND server = ?`,
		s.PositionA, s.PositionB, s.ZoomA, s.ZoomB, s.Server).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *SQLiteCache) AddSection(ctx context.Context, s Section) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO sections (position_a, position_b, zoom_a, zoom_b, server)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING`, s.PositionA, s.PositionB, s.ZoomA, s.ZoomB, s.Server)
	return err
}

func (c *SQLiteCache) Sections(ctx context.Context) ([]Section, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT position_a, position_b, zoom_a, zoom_b, server FROM sections`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.PositionA, &s.PositionB, &s.ZoomA, &s.ZoomB, &s.Server); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
