// Package viewport keeps the grid of tile slots covering the visible map area
// in sync with the viewport corners. It is not safe for concurrent use: one
// goroutine owns a Map together with its Surface.
package viewport

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/mapview/internal/fetch"
	"github.com/jaennil/guide_helper/backend/mapview/internal/overlay"
	"github.com/jaennil/guide_helper/backend/mapview/internal/prefetch"
	"github.com/jaennil/guide_helper/backend/mapview/internal/projection"
	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/paulmach/orb"
)

const (
	DefaultTileSize = 256
	DefaultMaxZoom  = 19

	// DefaultAddressZoom is used for geocoding results without a bounding box.
	DefaultAddressZoom = 10
)

var (
	ErrInvalidConfig = errors.New("invalid viewport configuration")
	ErrInvalidBounds = errors.New("invalid bounding box")
)

type Config struct {
	Width      int
	Height     int
	TileServer string
	TileSize   int
	MaxZoom    int
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("%w: tile size %d", ErrInvalidConfig, c.TileSize)
	}
	if c.MaxZoom < 0 {
		return fmt.Errorf("%w: max zoom %d", ErrInvalidConfig, c.MaxZoom)
	}
	if err := tiles.ValidateTemplate(c.TileServer); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Map is the viewport: two corners on the tile grid of the rounded zoom and
// the column-major grid of slots between them.
type Map struct {
	width    int
	height   int
	tileSize int
	server   string
	minZoom  int
	maxZoom  int

	zoom     float64
	lastZoom int

	upperLeft  projection.Point
	lowerRight projection.Point

	// grid[column][row]
	grid [][]*Slot

	surface Surface
	source  TileSource
	fetcher Fetcher
	hints   HintSink

	overlays  *overlay.Registry
	projected []overlay.Geometry

	fade fading

	logger logger.Logger
}

// New returns an uninitialized map centred on the world at its minimum zoom.
// The grid is built by the first positioning call. hints may be nil.
func New(cfg Config, surface Surface, source TileSource, fetcher Fetcher, hints HintSink, l logger.Logger) (*Map, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Map{
		width:    cfg.Width,
		height:   cfg.Height,
		tileSize: cfg.TileSize,
		server:   cfg.TileServer,
		maxZoom:  cfg.MaxZoom,
		surface:  surface,
		source:   source,
		fetcher:  fetcher,
		hints:    hints,
		overlays: overlay.NewRegistry(),
		logger:   l,
	}
	m.minZoom = m.computeMinZoom()
	m.zoom = float64(m.minZoom)
	m.lastZoom = m.minZoom

	center := projection.WorldSize(m.minZoom) / 2
	half := m.span().Scale(0.5)
	m.upperLeft = projection.Point{X: center, Y: center}.Sub(half)
	m.lowerRight = projection.Point{X: center, Y: center}.Add(half)
	m.clampBorders()

	return m, nil
}

// computeMinZoom is the smallest zoom at which the world is at least as wide
// as the viewport.
func (m *Map) computeMinZoom() int {
	columns := math.Ceil(float64(m.width) / float64(m.tileSize))
	z := int(math.Ceil(math.Log2(columns)))
	return min(max(z, 0), m.maxZoom)
}

// span is the viewport size in tiles.
func (m *Map) span() projection.Point {
	return projection.Point{
		X: float64(m.width) / float64(m.tileSize),
		Y: float64(m.height) / float64(m.tileSize),
	}
}

func (m *Map) tileZoom() int {
	return projection.ZoomRound(m.zoom)
}

func (m *Map) Zoom() float64             { return m.zoom }
func (m *Map) TileZoom() int             { return m.tileZoom() }
func (m *Map) MinZoom() int              { return m.minZoom }
func (m *Map) MaxZoom() int              { return m.maxZoom }
func (m *Map) TileServer() string        { return m.server }
func (m *Map) TileSize() int             { return m.tileSize }
func (m *Map) Size() (width, height int) { return m.width, m.height }
func (m *Map) Initialized() bool         { return len(m.grid) > 0 }

func (m *Map) Corners() (upperLeft, lowerRight projection.Point) {
	return m.upperLeft, m.lowerRight
}

// Grid returns the keys of the current slots, column-major.
func (m *Map) Grid() [][]tiles.Key {
	out := make([][]tiles.Key, len(m.grid))
	for i, column := range m.grid {
		out[i] = make([]tiles.Key, len(column))
		for j, s := range column {
			out[i][j] = s.key
		}
	}
	return out
}

// Position is the geographic centre of the viewport.
func (m *Map) Position() (lat, lon float64) {
	center := m.upperLeft.Add(m.lowerRight).Scale(0.5)
	return projection.ToGeo(center, m.tileZoom())
}

// SetPosition centres the viewport on lat/lon and rebuilds the grid.
func (m *Map) SetPosition(lat, lon float64) {
	p := projection.ToGrid(projection.ClampLatitude(lat), lon, m.tileZoom())
	half := m.span().Scale(0.5)

	m.upperLeft = p.Sub(half)
	m.lowerRight = p.Add(half)

	m.clampBorders()
	m.rebuild()
}

// SetZoom changes the zoom keeping the point at (relX, relY) of the viewport
// fixed; 0.5, 0.5 zooms around the centre.
func (m *Map) SetZoom(zoom, relX, relY float64) {
	focus := projection.Point{
		X: m.upperLeft.X + (m.lowerRight.X-m.upperLeft.X)*relX,
		Y: m.upperLeft.Y + (m.lowerRight.Y-m.upperLeft.Y)*relY,
	}
	lat, lon := projection.ToGeo(focus, m.tileZoom())

	m.zoom = math.Max(float64(m.minZoom), math.Min(float64(m.maxZoom), zoom))

	p := projection.ToGrid(projection.ClampLatitude(lat), lon, m.tileZoom())
	span := m.span()
	m.upperLeft = projection.Point{X: p.X - relX*span.X, Y: p.Y - relY*span.Y}
	m.lowerRight = projection.Point{X: p.X + (1-relX)*span.X, Y: p.Y + (1-relY)*span.Y}

	m.clampBorders()

	if z := m.tileZoom(); z != m.lastZoom {
		m.drawZoom()
		m.lastZoom = z
		return
	}
	m.drawMove()
}

func (m *Map) ZoomIn() {
	m.SetZoom(m.zoom+1, 0.5, 0.5)
}

func (m *Map) ZoomOut() {
	m.SetZoom(m.zoom-1, 0.5, 0.5)
}

// Translate moves the viewport by dx, dy canvas pixels. Positive values move
// the view right and down.
func (m *Map) Translate(dx, dy float64) {
	move := projection.Point{
		X: dx / float64(m.width) * (m.lowerRight.X - m.upperLeft.X),
		Y: dy / float64(m.height) * (m.lowerRight.Y - m.upperLeft.Y),
	}
	m.upperLeft = m.upperLeft.Add(move)
	m.lowerRight = m.lowerRight.Add(move)

	m.clampBorders()
	m.drawMove()
}

// SetTileServer switches the base layer. Pending work and every decoded tile
// are dropped; the geographic centre is kept.
func (m *Map) SetTileServer(template string, tileSize, maxZoom int) error {
	cfg := Config{Width: m.width, Height: m.height, TileServer: template, TileSize: tileSize, MaxZoom: maxZoom}
	if err := cfg.validate(); err != nil {
		return err
	}

	lat, lon := m.Position()

	m.fetcher.ClearPending()
	m.fetcher.ClearResults()
	m.source.Reset()

	m.server = template
	m.tileSize = tileSize
	m.maxZoom = maxZoom
	m.minZoom = m.computeMinZoom()
	m.zoom = math.Max(float64(m.minZoom), math.Min(float64(m.maxZoom), m.zoom))
	m.lastZoom = m.tileZoom()

	m.logger.Info("tile server changed", "server", template, "tile_size", tileSize, "max_zoom", maxZoom)

	m.SetPosition(lat, lon)
	return nil
}

// SetOverlayTileServer sets the layer composited over every tile. An empty
// template removes it.
func (m *Map) SetOverlayTileServer(template string) error {
	if template != "" {
		if err := tiles.ValidateTemplate(template); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	m.fetcher.ClearPending()
	m.fetcher.ClearResults()
	m.source.SetOverlayServer(template)
	m.source.Reset()

	m.logger.Info("overlay tile server changed", "server", template)

	m.rebuild()
	return nil
}

// Resize changes the canvas size keeping the upper-left corner in place.
func (m *Map) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, width, height)
	}
	if width == m.width && height == m.height {
		return nil
	}

	m.width = width
	m.height = height
	m.minZoom = m.computeMinZoom()

	m.SetZoom(m.zoom, 0, 0)
	return nil
}

// FitBounds shows the whole box at the largest zoom it fits in. The box must
// have positive extent in both directions.
func (m *Map) FitBounds(b orb.Bound) error {
	north, south := b.Max.Lat(), b.Min.Lat()
	west, east := b.Min.Lon(), b.Max.Lon()
	if !(north > south && west < east) {
		return fmt.Errorf("%w: top left (%v, %v) must be north-west of bottom right (%v, %v)",
			ErrInvalidBounds, north, west, south, east)
	}

	midLat, midLon := (north+south)/2, (west+east)/2
	half := m.span().Scale(0.5)

	fitting := m.minZoom
	for z := m.minZoom; z <= m.maxZoom; z++ {
		mid := projection.ToGrid(projection.ClampLatitude(midLat), midLon, z)
		topLeft := projection.ToGrid(projection.ClampLatitude(north), west, z)
		bottomRight := projection.ToGrid(projection.ClampLatitude(south), east, z)

		ul, lr := mid.Sub(half), mid.Add(half)
		if !(ul.X < topLeft.X && ul.Y < topLeft.Y && lr.X > bottomRight.X && lr.Y > bottomRight.Y) {
			break
		}
		fitting = z
	}

	m.SetZoom(float64(fitting), 0.5, 0.5)
	m.SetPosition(midLat, midLon)
	return nil
}

// ZoomForBounds picks the zoom for showing a geocoding result: the smallest
// zoom at which the box is wider than the viewport, max zoom if there is none,
// DefaultAddressZoom when the result has no box.
func (m *Map) ZoomForBounds(b *orb.Bound) int {
	if b == nil {
		return DefaultAddressZoom
	}

	columns := math.Floor(float64(m.width) / float64(m.tileSize))
	for z := m.minZoom; z <= m.maxZoom; z++ {
		sw := projection.ToGrid(projection.ClampLatitude(b.Min.Lat()), b.Min.Lon(), z)
		ne := projection.ToGrid(projection.ClampLatitude(b.Max.Lat()), b.Max.Lon(), z)
		if ne.X-sw.X > columns {
			return z
		}
	}
	return m.maxZoom
}

// CanvasToGeo converts a canvas pixel to geographic coordinates.
func (m *Map) CanvasToGeo(x, y float64) (lat, lon float64) {
	p := projection.Point{
		X: m.upperLeft.X + (m.lowerRight.X-m.upperLeft.X)*x/float64(m.width),
		Y: m.upperLeft.Y + (m.lowerRight.Y-m.upperLeft.Y)*y/float64(m.height),
	}
	return projection.ToGeo(p, m.tileZoom())
}

func (m *Map) GeoToCanvas(lat, lon float64) (x, y float64) {
	p := projection.ToGrid(projection.ClampLatitude(lat), lon, m.tileZoom())
	return m.gridToCanvas(p.X, p.Y)
}

func (m *Map) gridToCanvas(gx, gy float64) (x, y float64) {
	x = (gx - m.upperLeft.X) / (m.lowerRight.X - m.upperLeft.X) * float64(m.width)
	y = (gy - m.upperLeft.Y) / (m.lowerRight.Y - m.upperLeft.Y) * float64(m.height)
	return x, y
}

// clampBorders shifts both corners by the same delta so the viewport stays
// inside the world at the rounded zoom.
func (m *Map) clampBorders() {
	n := projection.WorldSize(m.tileZoom())

	var d projection.Point
	if m.upperLeft.X < 0 {
		d.X -= m.upperLeft.X
	}
	if m.upperLeft.Y < 0 {
		d.Y -= m.upperLeft.Y
	}
	if m.lowerRight.X > n {
		d.X -= m.lowerRight.X - n
	}
	if m.lowerRight.Y > n {
		d.Y -= m.lowerRight.Y - n
	}

	m.upperLeft = m.upperLeft.Add(d)
	m.lowerRight = m.lowerRight.Add(d)
}

// lookup returns what a slot for key shows right now and queues a fetch when
// the tile is not in memory.
func (m *Map) lookup(key tiles.Key, s *Slot) image.Image {
	if !key.Valid() {
		return tiles.Empty
	}
	if img, ok := m.source.Cached(key); ok {
		return img
	}
	m.fetcher.Enqueue(fetch.Task{Key: key, Target: s})
	return tiles.NotLoaded
}

func (m *Map) newSlot(x, y int) *Slot {
	s := &Slot{m: m, key: tiles.Key{Zoom: m.tileZoom(), X: x, Y: y, Server: m.server}}
	s.image = m.lookup(s.key, s)
	return s
}

// tileRange is the inclusive range of tile indices the corners cover.
func (m *Map) tileRange() (left, top, right, bottom int) {
	left = int(math.Floor(m.upperLeft.X))
	top = int(math.Floor(m.upperLeft.Y))
	right = max(int(math.Ceil(m.lowerRight.X))-1, left)
	bottom = max(int(math.Ceil(m.lowerRight.Y))-1, top)
	return left, top, right, bottom
}

// rebuild replaces every slot. Used when the viewport jumps.
func (m *Map) rebuild() {
	m.fetcher.ClearPending()

	for _, column := range m.grid {
		for _, s := range column {
			s.release()
		}
	}

	left, top, right, bottom := m.tileRange()
	m.grid = make([][]*Slot, 0, right-left+1)
	for x := left; x <= right; x++ {
		column := make([]*Slot, 0, bottom-top+1)
		for y := top; y <= bottom; y++ {
			column = append(column, m.newSlot(x, y))
		}
		m.grid = append(m.grid, column)
	}

	m.redraw()
}

// drawZoom readdresses every slot at the new zoom, then fixes the grid
// dimensions incrementally.
func (m *Map) drawZoom() {
	if len(m.grid) == 0 {
		m.rebuild()
		return
	}

	m.fetcher.ClearPending()

	left, top, _, _ := m.tileRange()
	zoom := m.tileZoom()
	for i, column := range m.grid {
		for j, s := range column {
			key := tiles.Key{Zoom: zoom, X: left + i, Y: top + j, Server: m.server}
			s.setImageAndKey(m.lookup(key, s), key)
		}
	}

	m.drawMove()
}

// drawMove inserts and removes rows and columns at each edge so the grid
// covers the corners again. Slots that stay visible are kept and only moved.
func (m *Map) drawMove() {
	if len(m.grid) == 0 {
		m.rebuild()
		return
	}

	first := m.grid[0][0].key
	last := m.grid[len(m.grid)-1][len(m.grid[0])-1].key
	left, top, right, bottom := m.tileRange()

	if left > last.X || right < first.X || top > last.Y || bottom < first.Y {
		m.rebuild()
		return
	}

	for y := first.Y - 1; y >= top; y-- {
		m.insertRow(0, y)
	}
	for range top - first.Y {
		m.removeRow(0)
	}

	for x := first.X - 1; x >= left; x-- {
		m.insertColumn(0, x)
	}
	for range left - first.X {
		m.removeColumn(0)
	}

	for y := last.Y + 1; y <= bottom; y++ {
		m.insertRow(len(m.grid[0]), y)
	}
	for range last.Y - bottom {
		m.removeRow(len(m.grid[0]) - 1)
	}

	for x := last.X + 1; x <= right; x++ {
		m.insertColumn(len(m.grid), x)
	}
	for range last.X - right {
		m.removeColumn(len(m.grid) - 1)
	}

	m.redraw()
}

func (m *Map) insertRow(at, y int) {
	for i, column := range m.grid {
		s := m.newSlot(column[0].key.X, y)
		m.grid[i] = slices.Insert(column, at, s)
	}
}

func (m *Map) insertColumn(at, x int) {
	column := make([]*Slot, 0, len(m.grid[0]))
	for _, s := range m.grid[0] {
		column = append(column, m.newSlot(x, s.key.Y))
	}
	m.grid = slices.Insert(m.grid, at, column)
}

// removeRow never removes the last row.
func (m *Map) removeRow(at int) {
	if len(m.grid[0]) <= 1 {
		return
	}
	for i, column := range m.grid {
		column[at].release()
		m.grid[i] = slices.Delete(column, at, at+1)
	}
}

// removeColumn never removes the last column.
func (m *Map) removeColumn(at int) {
	if len(m.grid) <= 1 {
		return
	}
	for _, s := range m.grid[at] {
		s.release()
	}
	m.grid = slices.Delete(m.grid, at, at+1)
}

// redraw positions every slot, reprojects overlays and publishes the
// pre-fetch centre.
func (m *Map) redraw() {
	for _, column := range m.grid {
		for _, s := range column {
			s.draw(false)
		}
	}

	m.RedrawOverlays()

	if m.hints != nil {
		center := m.upperLeft.Add(m.lowerRight).Scale(0.5)
		m.hints.SetCenter(prefetch.Hint{
			X:      int(math.Round(center.X)),
			Y:      int(math.Round(center.Y)),
			Zoom:   m.tileZoom(),
			Server: m.server,
		})
	}
}

// AddOverlay registers o and draws it.
func (m *Map) AddOverlay(o overlay.Overlay) {
	m.overlays.Add(o)
	m.RedrawOverlays()
}

func (m *Map) Overlay(id uuid.UUID) (overlay.Overlay, bool) {
	return m.overlays.Get(id)
}

func (m *Map) RemoveOverlay(id uuid.UUID) bool {
	ok := m.overlays.Remove(id)
	if ok {
		m.RedrawOverlays()
	}
	return ok
}

func (m *Map) RemoveOverlays(kind overlay.Kind) int {
	n := m.overlays.RemoveKind(kind)
	m.RedrawOverlays()
	return n
}

// Overlays lists overlays in drawing order.
func (m *Map) Overlays() []overlay.Overlay {
	return m.overlays.All()
}

// ProjectedOverlays is the canvas geometry of every overlay as of the last
// viewport change, in drawing order.
func (m *Map) ProjectedOverlays() []overlay.Geometry {
	return m.projected
}

// RedrawOverlays reprojects every overlay. Call it after mutating one.
func (m *Map) RedrawOverlays() {
	all := m.overlays.All()
	m.projected = make([]overlay.Geometry, 0, len(all))
	for _, o := range all {
		m.projected = append(m.projected, o.Project(m))
	}
}
