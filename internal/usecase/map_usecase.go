package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/mapview/internal/geocoding"
	"github.com/jaennil/guide_helper/backend/mapview/internal/overlay"
	"github.com/jaennil/guide_helper/backend/mapview/internal/projection"
	"github.com/jaennil/guide_helper/backend/mapview/internal/render"
	"github.com/jaennil/guide_helper/backend/mapview/internal/surface"
	"github.com/jaennil/guide_helper/backend/mapview/internal/viewport"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/paulmach/orb"
)

var (
	ErrStopped         = errors.New("map display loop is not running")
	ErrOverlayNotFound = errors.New("overlay not found")
	ErrNotEditable     = errors.New("overlay positions cannot be edited")
	ErrNoPosition      = errors.New("position is not on the overlay")
	ErrNotMarker       = errors.New("overlay is not a marker")
)

type Geocoder interface {
	Lookup(ctx context.Context, address string) (geocoding.Result, error)
	Reverse(ctx context.Context, lat, lon float64) (geocoding.Result, error)
}

// TileFetcher queues tile fetches for the grid and hands back the results.
type TileFetcher interface {
	viewport.Fetcher
	render.Results
}

// TileSource is the in-memory side of the tile pipeline.
type TileSource interface {
	viewport.TileSource
	OverlayServer() string
}

type MapUseCaseConfig struct {
	Viewport       viewport.Config
	Latitude       float64
	Longitude      float64
	Zoom           float64
	Background     color.Color
	RenderInterval time.Duration
	FadeInterval   time.Duration
}

type MarkerOptions struct {
	Marker bool
	Style  overlay.Style
}

// MarkerUpdate changes a marker in place. Nil fields are left as they are.
type MarkerUpdate struct {
	Latitude  *float64
	Longitude *float64
	Text      *string
}

type ViewportState struct {
	Latitude      float64          `json:"latitude"`
	Longitude     float64          `json:"longitude"`
	Zoom          float64          `json:"zoom"`
	TileZoom      int              `json:"tile_zoom"`
	MinZoom       int              `json:"min_zoom"`
	MaxZoom       int              `json:"max_zoom"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	UpperLeft     projection.Point `json:"upper_left"`
	LowerRight    projection.Point `json:"lower_right"`
	Columns       int              `json:"columns"`
	Rows          int              `json:"rows"`
	PlacedTiles   int              `json:"placed_tiles"`
	TileServer    string           `json:"tile_server"`
	OverlayServer string           `json:"overlay_server,omitempty"`
	TileSize      int              `json:"tile_size"`
	Fading        bool             `json:"fading"`
}

// OverlayView is an overlay with both its geographic positions (lat, lon)
// and its current canvas geometry.
type OverlayView struct {
	ID        uuid.UUID        `json:"id"`
	Kind      overlay.Kind     `json:"kind"`
	Positions [][2]float64     `json:"positions"`
	Geometry  overlay.Geometry `json:"geometry"`
}

type command struct {
	fn   func()
	done chan struct{}
}

// MapUseCase owns the viewport and its canvas on a single goroutine started
// by Run. Every method hands a command to that goroutine and waits for it.
type MapUseCase struct {
	m        *viewport.Map
	canvas   *surface.Canvas
	sync     *render.Synchronizer
	source   TileSource
	geocoder Geocoder

	renderInterval time.Duration
	fadeInterval   time.Duration
	now            func() time.Time

	commands chan command
	stopped  chan struct{}

	logger logger.Logger
}

// NewMapUseCase builds the viewport and positions it. hints may be nil.
func NewMapUseCase(cfg MapUseCaseConfig, source TileSource, fetcher TileFetcher, hints viewport.HintSink, geocoder Geocoder, l logger.Logger) (*MapUseCase, error) {
	background := cfg.Background
	if background == nil {
		background = color.RGBA{R: 0xdb, G: 0xdb, B: 0xdb, A: 0xff}
	}
	canvas := surface.NewCanvas(cfg.Viewport.Width, cfg.Viewport.Height, background)

	m, err := viewport.New(cfg.Viewport, canvas, source, fetcher, hints, l)
	if err != nil {
		return nil, err
	}

	uc := &MapUseCase{
		m:              m,
		canvas:         canvas,
		sync:           render.NewSynchronizer(fetcher, m.TileZoom, l),
		source:         source,
		geocoder:       geocoder,
		renderInterval: cfg.RenderInterval,
		fadeInterval:   cfg.FadeInterval,
		now:            time.Now,
		commands:       make(chan command),
		stopped:        make(chan struct{}),
		logger:         l,
	}
	if uc.renderInterval <= 0 {
		uc.renderInterval = 10 * time.Millisecond
	}
	if uc.fadeInterval <= 0 {
		uc.fadeInterval = 16 * time.Millisecond
	}

	m.SetZoom(cfg.Zoom, 0.5, 0.5)
	m.SetPosition(cfg.Latitude, cfg.Longitude)

	return uc, nil
}

// Run is the display loop. It returns when ctx is cancelled.
func (uc *MapUseCase) Run(ctx context.Context) {
	defer close(uc.stopped)

	renderTicker := time.NewTicker(uc.renderInterval)
	defer renderTicker.Stop()
	fadeTicker := time.NewTicker(uc.fadeInterval)
	defer fadeTicker.Stop()

	uc.logger.Info("map display loop started",
		"render_interval", uc.renderInterval,
		"fade_interval", uc.fadeInterval,
	)

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("map display loop stopped")
			return
		case cmd := <-uc.commands:
			cmd.fn()
			close(cmd.done)
		case <-renderTicker.C:
			uc.sync.Drain()
		case <-fadeTicker.C:
			if uc.m.Fading() {
				uc.m.FadeStep(uc.now())
			}
		}
	}
}

func (uc *MapUseCase) do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}

	select {
	case uc.commands <- cmd:
	case <-uc.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-uc.stopped:
		return ErrStopped
	}
}

func (uc *MapUseCase) Position(ctx context.Context) (lat, lon float64, err error) {
	err = uc.do(ctx, func() {
		lat, lon = uc.m.Position()
	})
	return lat, lon, err
}

// SetPosition centres the map and optionally drops a marker there. The
// marker id is uuid.Nil when no marker was requested.
func (uc *MapUseCase) SetPosition(ctx context.Context, lat, lon float64, opts MarkerOptions) (uuid.UUID, error) {
	var id uuid.UUID
	err := uc.do(ctx, func() {
		uc.m.SetPosition(lat, lon)
		if opts.Marker {
			marker := overlay.NewMarker(lat, lon, opts.Style)
			uc.m.AddOverlay(marker)
			id = marker.ID()
		}
	})
	return id, err
}

func (uc *MapUseCase) SetZoom(ctx context.Context, zoom, relX, relY float64) error {
	return uc.do(ctx, func() {
		uc.m.SetZoom(zoom, relX, relY)
	})
}

func (uc *MapUseCase) ZoomIn(ctx context.Context) error {
	return uc.do(ctx, uc.m.ZoomIn)
}

func (uc *MapUseCase) ZoomOut(ctx context.Context) error {
	return uc.do(ctx, uc.m.ZoomOut)
}

// Pan moves the view by dx, dy pixels and cancels any inertial movement.
func (uc *MapUseCase) Pan(ctx context.Context, dx, dy float64) error {
	return uc.do(ctx, func() {
		uc.m.StopFading()
		uc.m.Translate(dx, dy)
	})
}

// Fling starts an inertial movement, as after releasing a drag.
func (uc *MapUseCase) Fling(ctx context.Context, vx, vy float64) error {
	return uc.do(ctx, func() {
		uc.m.Fling(vx, vy, uc.now())
	})
}

func (uc *MapUseCase) StopFading(ctx context.Context) error {
	return uc.do(ctx, uc.m.StopFading)
}

// SetAddress geocodes address and shows the result at a zoom matching its
// size. The viewport is left unchanged when the lookup fails.
func (uc *MapUseCase) SetAddress(ctx context.Context, address string, opts MarkerOptions) (geocoding.Result, uuid.UUID, error) {
	res, err := uc.geocoder.Lookup(ctx, address)
	if err != nil {
		return geocoding.Result{}, uuid.Nil, err
	}

	if opts.Marker && opts.Style.Text == "" {
		opts.Style.Text = res.Address
		if opts.Style.Text == "" {
			opts.Style.Text = address
		}
	}

	var id uuid.UUID
	err = uc.do(ctx, func() {
		uc.m.SetZoom(float64(uc.m.ZoomForBounds(res.Bounds)), 0.5, 0.5)
		uc.m.SetPosition(res.Lat, res.Lon)
		if opts.Marker {
			marker := overlay.NewMarker(res.Lat, res.Lon, opts.Style)
			uc.m.AddOverlay(marker)
			id = marker.ID()
		}
	})
	if err != nil {
		return geocoding.Result{}, uuid.Nil, err
	}

	uc.logger.Info("moved to address", "address", address, "lat", res.Lat, "lon", res.Lon)
	return res, id, nil
}

// ReverseGeocode looks up the address under a canvas pixel.
func (uc *MapUseCase) ReverseGeocode(ctx context.Context, x, y float64) (geocoding.Result, error) {
	lat, lon, err := uc.CanvasToGeo(ctx, x, y)
	if err != nil {
		return geocoding.Result{}, err
	}
	return uc.geocoder.Reverse(ctx, lat, lon)
}

func (uc *MapUseCase) CanvasToGeo(ctx context.Context, x, y float64) (lat, lon float64, err error) {
	err = uc.do(ctx, func() {
		lat, lon = uc.m.CanvasToGeo(x, y)
	})
	return lat, lon, err
}

func (uc *MapUseCase) FitBounds(ctx context.Context, b orb.Bound) error {
	var fitErr error
	if err := uc.do(ctx, func() { fitErr = uc.m.FitBounds(b) }); err != nil {
		return err
	}
	return fitErr
}

func (uc *MapUseCase) SetTileServer(ctx context.Context, template string, tileSize, maxZoom int) error {
	var setErr error
	if err := uc.do(ctx, func() { setErr = uc.m.SetTileServer(template, tileSize, maxZoom) }); err != nil {
		return err
	}
	return setErr
}

func (uc *MapUseCase) SetOverlayTileServer(ctx context.Context, template string) error {
	var setErr error
	if err := uc.do(ctx, func() { setErr = uc.m.SetOverlayTileServer(template) }); err != nil {
		return err
	}
	return setErr
}

func (uc *MapUseCase) Resize(ctx context.Context, width, height int) error {
	var resizeErr error
	err := uc.do(ctx, func() {
		if resizeErr = uc.m.Resize(width, height); resizeErr == nil {
			uc.canvas.Resize(width, height)
		}
	})
	if err != nil {
		return err
	}
	return resizeErr
}

func (uc *MapUseCase) State(ctx context.Context) (ViewportState, error) {
	var s ViewportState
	err := uc.do(ctx, func() {
		s.Latitude, s.Longitude = uc.m.Position()
		s.Zoom = uc.m.Zoom()
		s.TileZoom = uc.m.TileZoom()
		s.MinZoom = uc.m.MinZoom()
		s.MaxZoom = uc.m.MaxZoom()
		s.Width, s.Height = uc.m.Size()
		s.UpperLeft, s.LowerRight = uc.m.Corners()
		grid := uc.m.Grid()
		s.Columns = len(grid)
		if len(grid) > 0 {
			s.Rows = len(grid[0])
		}
		s.PlacedTiles = uc.canvas.Len()
		s.TileServer = uc.m.TileServer()
		s.OverlayServer = uc.source.OverlayServer()
		s.TileSize = uc.m.TileSize()
		s.Fading = uc.m.Fading()
	})
	return s, err
}

// Snapshot renders the canvas with its overlays as PNG.
func (uc *MapUseCase) Snapshot(ctx context.Context) ([]byte, error) {
	var (
		buf       bytes.Buffer
		renderErr error
	)
	err := uc.do(ctx, func() {
		renderErr = uc.canvas.WritePNG(&buf, uc.m.ProjectedOverlays())
	})
	if err != nil {
		return nil, err
	}
	if renderErr != nil {
		return nil, renderErr
	}
	return buf.Bytes(), nil
}

func (uc *MapUseCase) AddMarker(ctx context.Context, lat, lon float64, style overlay.Style) (uuid.UUID, error) {
	return uc.addOverlay(ctx, overlay.NewMarker(lat, lon, style))
}

// AddPath adds a line through positions given as lat, lon pairs.
func (uc *MapUseCase) AddPath(ctx context.Context, positions [][2]float64, style overlay.Style) (uuid.UUID, error) {
	return uc.addOverlay(ctx, overlay.NewPath(positions, style))
}

func (uc *MapUseCase) AddPolygon(ctx context.Context, positions [][2]float64, style overlay.Style) (uuid.UUID, error) {
	return uc.addOverlay(ctx, overlay.NewPolygon(positions, style))
}

func (uc *MapUseCase) addOverlay(ctx context.Context, o overlay.Overlay) (uuid.UUID, error) {
	if err := uc.do(ctx, func() { uc.m.AddOverlay(o) }); err != nil {
		return uuid.Nil, err
	}
	uc.logger.Debug("overlay added", "id", o.ID(), "kind", o.Kind())
	return o.ID(), nil
}

type editable interface {
	AddPosition(lat, lon float64, index int)
	RemovePosition(lat, lon float64) bool
}

// AddOverlayPosition inserts a position into a path or polygon; a negative
// index appends.
func (uc *MapUseCase) AddOverlayPosition(ctx context.Context, id uuid.UUID, lat, lon float64, index int) error {
	return uc.editOverlay(ctx, id, func(e editable) error {
		e.AddPosition(lat, lon, index)
		return nil
	})
}

func (uc *MapUseCase) RemoveOverlayPosition(ctx context.Context, id uuid.UUID, lat, lon float64) error {
	return uc.editOverlay(ctx, id, func(e editable) error {
		if !e.RemovePosition(lat, lon) {
			return fmt.Errorf("%w: (%v, %v) on %s", ErrNoPosition, lat, lon, id)
		}
		return nil
	})
}

func (uc *MapUseCase) editOverlay(ctx context.Context, id uuid.UUID, edit func(e editable) error) error {
	var editErr error
	err := uc.do(ctx, func() {
		o, ok := uc.m.Overlay(id)
		if !ok {
			editErr = fmt.Errorf("%w: %s", ErrOverlayNotFound, id)
			return
		}
		e, ok := o.(editable)
		if !ok {
			editErr = fmt.Errorf("%w: %s is a %s", ErrNotEditable, id, o.Kind())
			return
		}
		if editErr = edit(e); editErr == nil {
			uc.m.RedrawOverlays()
		}
	})
	if err != nil {
		return err
	}
	return editErr
}

// UpdateMarker moves or relabels a marker.
func (uc *MapUseCase) UpdateMarker(ctx context.Context, id uuid.UUID, upd MarkerUpdate) error {
	var updErr error
	err := uc.do(ctx, func() {
		o, ok := uc.m.Overlay(id)
		if !ok {
			updErr = fmt.Errorf("%w: %s", ErrOverlayNotFound, id)
			return
		}
		m, ok := o.(*overlay.Marker)
		if !ok {
			updErr = fmt.Errorf("%w: %s is a %s", ErrNotMarker, id, o.Kind())
			return
		}

		lat, lon := m.Position()
		if upd.Latitude != nil {
			lat = *upd.Latitude
		}
		if upd.Longitude != nil {
			lon = *upd.Longitude
		}
		m.SetPosition(lat, lon)
		if upd.Text != nil {
			m.SetText(*upd.Text)
		}
		uc.m.RedrawOverlays()
	})
	if err != nil {
		return err
	}
	return updErr
}

func (uc *MapUseCase) RemoveOverlay(ctx context.Context, id uuid.UUID) error {
	var found bool
	if err := uc.do(ctx, func() { found = uc.m.RemoveOverlay(id) }); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrOverlayNotFound, id)
	}
	return nil
}

// RemoveOverlays removes every overlay of kind and returns how many there were.
func (uc *MapUseCase) RemoveOverlays(ctx context.Context, kind overlay.Kind) (int, error) {
	var n int
	err := uc.do(ctx, func() { n = uc.m.RemoveOverlays(kind) })
	return n, err
}

// Overlays lists every overlay in drawing order.
func (uc *MapUseCase) Overlays(ctx context.Context) ([]OverlayView, error) {
	var views []OverlayView
	err := uc.do(ctx, func() {
		geometries := uc.m.ProjectedOverlays()
		for i, o := range uc.m.Overlays() {
			view := OverlayView{ID: o.ID(), Kind: o.Kind(), Positions: positionsOf(o)}
			if i < len(geometries) {
				view.Geometry = geometries[i]
			}
			views = append(views, view)
		}
	})
	return views, err
}

func positionsOf(o overlay.Overlay) [][2]float64 {
	var pts []orb.Point
	switch v := o.(type) {
	case *overlay.Marker:
		lat, lon := v.Position()
		return [][2]float64{{lat, lon}}
	case *overlay.Path:
		pts = v.Positions()
	case *overlay.Polygon:
		pts = v.Positions()
	}

	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.Lat(), p.Lon()}
	}
	return out
}
