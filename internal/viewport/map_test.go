package viewport

import (
	"image"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/mapview/internal/fetch"
	"github.com/jaennil/guide_helper/backend/mapview/internal/overlay"
	"github.com/jaennil/guide_helper/backend/mapview/internal/prefetch"
	"github.com/jaennil/guide_helper/backend/mapview/internal/projection"
	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
	"github.com/jaennil/guide_helper/backend/mapview/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServer = "https://tiles.example.com/{z}/{x}/{y}.png"

type placement struct {
	img  image.Image
	x, y float64
}

type fakeSurface struct {
	next        Handle
	live        map[Handle]placement
	badReleases int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{live: map[Handle]placement{}}
}

func (s *fakeSurface) Place(img image.Image, x, y float64) Handle {
	s.next++
	s.live[s.next] = placement{img: img, x: x, y: y}
	return s.next
}

func (s *fakeSurface) Move(h Handle, x, y float64) {
	p := s.live[h]
	p.x, p.y = x, y
	s.live[h] = p
}

func (s *fakeSurface) Update(h Handle, img image.Image) {
	p := s.live[h]
	p.img = img
	s.live[h] = p
}

func (s *fakeSurface) Release(h Handle) {
	if _, ok := s.live[h]; !ok {
		s.badReleases++
	}
	delete(s.live, h)
}

type fakeSource struct {
	cached  func(key tiles.Key) (image.Image, bool)
	overlay string
	resets  int
}

func (s *fakeSource) Cached(key tiles.Key) (image.Image, bool) {
	if s.cached == nil {
		return nil, false
	}
	return s.cached(key)
}

func (s *fakeSource) SetOverlayServer(template string) { s.overlay = template }
func (s *fakeSource) Reset()                           { s.resets++ }

type fakeFetcher struct {
	pending        []fetch.Task
	enqueued       int
	clearedResults int
}

func (f *fakeFetcher) Enqueue(task fetch.Task) {
	f.pending = append(f.pending, task)
	f.enqueued++
}

func (f *fakeFetcher) ClearPending() int {
	n := len(f.pending)
	f.pending = nil
	return n
}

func (f *fakeFetcher) ClearResults() { f.clearedResults++ }

type fakeHints struct {
	last prefetch.Hint
	n    int
}

func (h *fakeHints) SetCenter(hint prefetch.Hint) {
	h.last = hint
	h.n++
}

type testMap struct {
	*Map
	surface *fakeSurface
	source  *fakeSource
	fetcher *fakeFetcher
	hints   *fakeHints
}

func newTestMap(t *testing.T, width, height int) testMap {
	t.Helper()

	tm := testMap{
		surface: newFakeSurface(),
		source:  &fakeSource{},
		fetcher: &fakeFetcher{},
		hints:   &fakeHints{},
	}
	m, err := New(Config{
		Width:      width,
		Height:     height,
		TileServer: testServer,
		TileSize:   256,
		MaxZoom:    19,
	}, tm.surface, tm.source, tm.fetcher, tm.hints, logger.NewNoOp())
	require.NoError(t, err)
	tm.Map = m
	return tm
}

var tileImage = image.NewRGBA(image.Rect(0, 0, 256, 256))

// checkGrid asserts the grid covers exactly the corners and every slot is
// addressed by its position.
func checkGrid(t *testing.T, tm testMap) {
	t.Helper()

	require.NotEmpty(t, tm.grid)
	require.NotEmpty(t, tm.grid[0])

	left, top, right, bottom := tm.tileRange()
	origin := tm.grid[0][0].key
	assert.Equal(t, left, origin.X)
	assert.Equal(t, top, origin.Y)
	require.Len(t, tm.grid, right-left+1)

	placed := 0
	for i, column := range tm.grid {
		require.Len(t, column, bottom-top+1)
		for j, s := range column {
			want := tiles.Key{Zoom: tm.TileZoom(), X: origin.X + i, Y: origin.Y + j, Server: tm.server}
			assert.Equal(t, want, s.key)
			assert.False(t, s.released)
			assert.Equal(t, !tiles.IsPlaceholder(s.image), s.placed, "slot %v", s.key)
			if s.placed {
				placed++
			}
		}
	}
	assert.Len(t, tm.surface.live, placed)
	assert.Zero(t, tm.surface.badReleases)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	valid := Config{Width: 512, Height: 256, TileServer: testServer, TileSize: 256, MaxZoom: 19}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"negative height", func(c *Config) { c.Height = -1 }},
		{"zero tile size", func(c *Config) { c.TileSize = 0 }},
		{"negative max zoom", func(c *Config) { c.MaxZoom = -1 }},
		{"template without y", func(c *Config) { c.TileServer = "https://tiles.example.com/{z}/{x}.png" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := New(cfg, newFakeSurface(), &fakeSource{}, &fakeFetcher{}, nil, logger.NewNoOp())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := New(valid, newFakeSurface(), &fakeSource{}, &fakeFetcher{}, nil, logger.NewNoOp())
	assert.NoError(t, err)
}

func TestMinZoom(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{100, 0},
		{256, 0},
		{512, 1},
		{600, 2},
		{1024, 2},
		{1025, 3},
	}

	for _, tt := range tests {
		tm := newTestMap(t, tt.width, 300)
		assert.Equal(t, tt.want, tm.MinZoom(), "width %d", tt.width)
	}
}

func TestSetPositionBuildsGrid(t *testing.T) {
	tm := newTestMap(t, 512, 256)
	assert.False(t, tm.Initialized())

	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)

	ul, lr := tm.Corners()
	assert.Equal(t, projection.Point{X: 511, Y: 511.5}, ul)
	assert.Equal(t, projection.Point{X: 513, Y: 512.5}, lr)

	want := [][]tiles.Key{
		{{Zoom: 10, X: 511, Y: 511, Server: testServer}, {Zoom: 10, X: 511, Y: 512, Server: testServer}},
		{{Zoom: 10, X: 512, Y: 511, Server: testServer}, {Zoom: 10, X: 512, Y: 512, Server: testServer}},
	}
	assert.Equal(t, want, tm.Grid())
	checkGrid(t, tm)

	// nothing cached: every slot waits for a fetch and nothing is drawn
	assert.Len(t, tm.fetcher.pending, 4)
	assert.Empty(t, tm.surface.live)
	for _, column := range tm.grid {
		for _, s := range column {
			assert.Same(t, tiles.NotLoaded, s.Image())
		}
	}

	lat, lon := tm.Position()
	assert.InDelta(t, 0, lat, 1e-9)
	assert.InDelta(t, 0, lon, 1e-9)

	assert.Equal(t, prefetch.Hint{X: 512, Y: 512, Zoom: 10, Server: testServer}, tm.hints.last)
}

func TestCachedTilesArePlaced(t *testing.T) {
	tm := newTestMap(t, 512, 256)
	tm.source.cached = func(key tiles.Key) (image.Image, bool) {
		return tileImage, true
	}

	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)

	assert.Empty(t, tm.fetcher.pending)
	require.Len(t, tm.surface.live, 4)

	s := tm.grid[0][0]
	p := tm.surface.live[s.handle]
	assert.Equal(t, 0.0, p.x)
	assert.Equal(t, -128.0, p.y)
	assert.Same(t, tileImage, p.img)
}

func TestTranslateKeepsVisibleSlots(t *testing.T) {
	tm := newTestMap(t, 512, 256)
	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)
	require.Len(t, tm.fetcher.pending, 4)

	kept := tm.grid[1][0]
	dropped := tm.grid[0][0]

	tm.Translate(128, 0)
	checkGrid(t, tm)
	require.Len(t, tm.grid, 3)
	assert.Same(t, dropped, tm.grid[0][0])
	assert.Same(t, kept, tm.grid[1][0])
	assert.Equal(t, 513, tm.grid[2][0].key.X)
	// only the new column is fetched
	assert.Len(t, tm.fetcher.pending, 6)

	tm.Translate(256, 0)
	checkGrid(t, tm)
	require.Len(t, tm.grid, 3)
	assert.Same(t, kept, tm.grid[0][0])
	assert.Equal(t, 514, tm.grid[2][0].key.X)
	assert.Len(t, tm.fetcher.pending, 8)

	assert.True(t, dropped.Released())
	dropped.SetImage(tileImage)
	assert.Same(t, tiles.NotLoaded, dropped.Image())
	assert.Empty(t, tm.surface.live)
}

func TestTranslateMovesPlacedSlots(t *testing.T) {
	tm := newTestMap(t, 512, 256)
	tm.source.cached = func(key tiles.Key) (image.Image, bool) {
		return tileImage, true
	}
	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)

	s := tm.grid[1][1]
	before := tm.surface.live[s.handle]

	tm.Translate(64, 32)

	after := tm.surface.live[s.handle]
	assert.Equal(t, before.x-64, after.x)
	assert.Equal(t, before.y-32, after.y)
	checkGrid(t, tm)
}

func TestTranslateWithoutOverlapRebuilds(t *testing.T) {
	tm := newTestMap(t, 512, 256)
	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)
	old := tm.grid[0][0]

	tm.Translate(512*10, 0)

	checkGrid(t, tm)
	assert.True(t, old.Released())
	assert.Equal(t, 531, tm.grid[0][0].key.X)
	// the rebuild drops tasks for tiles no longer on screen
	assert.Len(t, tm.fetcher.pending, 4)
}

func TestGridInvariantUnderRandomOperations(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.source.cached = func(key tiles.Key) (image.Image, bool) {
		if (key.X+key.Y)%3 == 0 {
			return tileImage, true
		}
		return nil, false
	}

	rng := rand.New(rand.NewPCG(1, 2))
	tm.SetZoom(5, 0.5, 0.5)
	tm.SetPosition(48.85, 2.35)
	checkGrid(t, tm)

	for i := range 500 {
		switch rng.IntN(5) {
		case 0, 1:
			tm.Translate(rng.Float64()*6000-3000, rng.Float64()*6000-3000)
		case 2:
			tm.SetZoom(rng.Float64()*21, rng.Float64(), rng.Float64())
		case 3:
			tm.SetPosition(rng.Float64()*178-89, rng.Float64()*360-180)
		case 4:
			if rng.IntN(2) == 0 {
				tm.ZoomIn()
			} else {
				tm.ZoomOut()
			}
		}

		checkGrid(t, tm)
		if t.Failed() {
			t.Fatalf("grid broken after operation %d", i)
		}

		ul, lr := tm.Corners()
		n := projection.WorldSize(tm.TileZoom())
		assert.GreaterOrEqual(t, ul.X, 0.0)
		assert.GreaterOrEqual(t, ul.Y, 0.0)
		assert.LessOrEqual(t, lr.X, n)
		assert.LessOrEqual(t, lr.Y, n)
	}
}

func TestBorderClampPreservesSize(t *testing.T) {
	tm := newTestMap(t, 512, 512)
	tm.SetZoom(2, 0.5, 0.5)
	tm.SetPosition(0, 0)

	ul, lr := tm.Corners()
	require.Equal(t, projection.Point{X: 1, Y: 1}, ul)
	require.Equal(t, projection.Point{X: 3, Y: 3}, lr)

	tm.Translate(-300, -300)
	ul, lr = tm.Corners()
	assert.Equal(t, projection.Point{X: 0, Y: 0}, ul)
	assert.Equal(t, 2.0, lr.X-ul.X)
	assert.Equal(t, 2.0, lr.Y-ul.Y)

	tm.Translate(2000, 2000)
	ul, lr = tm.Corners()
	assert.Equal(t, projection.Point{X: 4, Y: 4}, lr)
	assert.Equal(t, 2.0, lr.X-ul.X)
	assert.Equal(t, 2.0, lr.Y-ul.Y)
	checkGrid(t, tm)
}

func TestLastRowAndColumnAreNeverRemoved(t *testing.T) {
	tm := newTestMap(t, 100, 100)
	tm.SetZoom(3, 0.5, 0.5)
	tm.upperLeft = projection.Point{X: 2, Y: 2}
	tm.lowerRight = projection.Point{X: 2.25, Y: 2.25}
	tm.rebuild()
	require.Len(t, tm.grid, 1)
	require.Len(t, tm.grid[0], 1)

	tm.removeRow(0)
	tm.removeColumn(0)

	assert.Len(t, tm.grid, 1)
	assert.Len(t, tm.grid[0], 1)
	assert.False(t, tm.grid[0][0].Released())
}

func TestOutOfWorldTilesAreEmpty(t *testing.T) {
	// taller than the whole world at zoom 1
	tm := newTestMap(t, 512, 1024)
	tm.SetZoom(1, 0.5, 0.5)
	tm.SetPosition(0, 0)
	checkGrid(t, tm)

	for _, task := range tm.fetcher.pending {
		assert.True(t, task.Key.Valid(), "fetch queued for %v", task.Key)
	}

	invalid := 0
	for _, column := range tm.grid {
		for _, s := range column {
			if !s.key.Valid() {
				invalid++
				assert.Same(t, tiles.Empty, s.Image())
			}
		}
	}
	assert.Positive(t, invalid)
}

func TestSetZoomKeepsFocusPoint(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.SetZoom(12, 0.5, 0.5)
	tm.SetPosition(52.516268, 13.377695)

	fx, fy := 200.0, 150.0
	lat, lon := tm.CanvasToGeo(fx, fy)

	tm.SetZoom(14, fx/800, fy/600)
	assert.Equal(t, 14.0, tm.Zoom())
	checkGrid(t, tm)

	lat2, lon2 := tm.CanvasToGeo(fx, fy)
	assert.InDelta(t, lat, lat2, 1e-9)
	assert.InDelta(t, lon, lon2, 1e-9)

	for _, task := range tm.fetcher.pending {
		assert.Equal(t, 14, task.Key.Zoom)
	}
}

func TestSetZoomClampsAndClearsPending(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.SetZoom(8, 0.5, 0.5)
	tm.SetPosition(10, 10)
	old := tm.grid[0][0]

	tm.SetZoom(100, 0.5, 0.5)
	assert.Equal(t, 19.0, tm.Zoom())
	// the slot is reused and readdressed at the new zoom
	assert.Same(t, old, tm.grid[0][0])
	assert.Equal(t, 19, old.key.Zoom)
	checkGrid(t, tm)
	for _, task := range tm.fetcher.pending {
		assert.Equal(t, 19, task.Key.Zoom)
	}

	tm.SetZoom(-4, 0.5, 0.5)
	assert.Equal(t, float64(tm.MinZoom()), tm.Zoom())
	checkGrid(t, tm)
}

func TestFractionalZoomUsesRoundedTiles(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.SetZoom(7, 0.5, 0.5)
	tm.SetPosition(10, 10)
	pending := len(tm.fetcher.pending)

	tm.SetZoom(7.3, 0.5, 0.5)
	assert.Equal(t, 7.3, tm.Zoom())
	assert.Equal(t, 7, tm.TileZoom())
	assert.Len(t, tm.fetcher.pending, pending)

	tm.SetZoom(7.6, 0.5, 0.5)
	assert.Equal(t, 8, tm.TileZoom())
	checkGrid(t, tm)
}

func TestSetTileServer(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.SetZoom(15, 0.5, 0.5)
	tm.SetPosition(40, -3)

	err := tm.SetTileServer("https://broken.example.com/{z}.png", 256, 19)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, testServer, tm.TileServer())

	const other = "https://other.example.com/{z}/{x}/{y}.jpg"
	require.NoError(t, tm.SetTileServer(other, 512, 12))

	assert.Equal(t, other, tm.TileServer())
	assert.Equal(t, 512, tm.TileSize())
	assert.Equal(t, 12.0, tm.Zoom())
	assert.Equal(t, 1, tm.source.resets)
	assert.Equal(t, 1, tm.fetcher.clearedResults)
	checkGrid(t, tm)
	assert.Equal(t, other, tm.grid[0][0].key.Server)
	assert.Equal(t, other, tm.hints.last.Server)

	lat, lon := tm.Position()
	assert.InDelta(t, 40, lat, 1e-6)
	assert.InDelta(t, -3, lon, 1e-6)
}

func TestSetOverlayTileServer(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)
	old := tm.grid[0][0]

	assert.ErrorIs(t, tm.SetOverlayTileServer("https://overlay.example.com/tile.png"), ErrInvalidConfig)
	assert.Empty(t, tm.source.overlay)

	require.NoError(t, tm.SetOverlayTileServer("https://overlay.example.com/{z}/{x}/{y}.png"))
	assert.Equal(t, "https://overlay.example.com/{z}/{x}/{y}.png", tm.source.overlay)
	assert.Equal(t, 1, tm.source.resets)
	assert.True(t, old.Released())
	checkGrid(t, tm)

	require.NoError(t, tm.SetOverlayTileServer(""))
	assert.Empty(t, tm.source.overlay)
}

func TestResizeKeepsUpperLeft(t *testing.T) {
	tm := newTestMap(t, 512, 512)
	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)
	ul, _ := tm.Corners()

	require.NoError(t, tm.Resize(1024, 256))

	ul2, lr2 := tm.Corners()
	assert.InDelta(t, ul.X, ul2.X, 1e-9)
	assert.InDelta(t, ul.Y, ul2.Y, 1e-9)
	assert.InDelta(t, ul2.X+4, lr2.X, 1e-9)
	assert.InDelta(t, ul2.Y+1, lr2.Y, 1e-9)
	checkGrid(t, tm)

	w, h := tm.Size()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 256, h)
	assert.Equal(t, 2, tm.MinZoom())

	assert.ErrorIs(t, tm.Resize(0, 10), ErrInvalidConfig)
}

func TestFitBounds(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.SetZoom(3, 0.5, 0.5)
	tm.SetPosition(0, 0)

	invalid := orb.Bound{Min: orb.Point{13.8, 52.3}, Max: orb.Point{13.0, 52.7}}
	assert.ErrorIs(t, tm.FitBounds(invalid), ErrInvalidBounds)
	assert.Equal(t, 3.0, tm.Zoom())

	berlin := orb.Bound{Min: orb.Point{13.0, 52.3}, Max: orb.Point{13.8, 52.7}}
	require.NoError(t, tm.FitBounds(berlin))
	checkGrid(t, tm)

	lat, lon := tm.Position()
	assert.InDelta(t, 52.5, lat, 1e-6)
	assert.InDelta(t, 13.4, lon, 1e-6)

	// the box is fully on screen
	for _, p := range []orb.Point{berlin.Min, berlin.Max} {
		x, y := tm.GeoToCanvas(p.Lat(), p.Lon())
		assert.True(t, x > 0 && x < 800, "x %v", x)
		assert.True(t, y > 0 && y < 600, "y %v", y)
	}

	// one level deeper it would not be
	tm.SetZoom(tm.Zoom()+1, 0.5, 0.5)
	wx, _ := tm.GeoToCanvas(berlin.Min.Lat(), berlin.Min.Lon())
	ex, _ := tm.GeoToCanvas(berlin.Max.Lat(), berlin.Max.Lon())
	_, ny := tm.GeoToCanvas(berlin.Max.Lat(), berlin.Max.Lon())
	_, sy := tm.GeoToCanvas(berlin.Min.Lat(), berlin.Min.Lon())
	assert.True(t, wx < 0 || ex > 800 || ny < 0 || sy > 600)
}

func TestZoomForBounds(t *testing.T) {
	tm := newTestMap(t, 512, 512)

	assert.Equal(t, DefaultAddressZoom, tm.ZoomForBounds(nil))

	quarter := orb.Bound{Min: orb.Point{0, -10}, Max: orb.Point{90, 10}}
	assert.Equal(t, 4, tm.ZoomForBounds(&quarter))

	tiny := orb.Bound{Min: orb.Point{13.4, 52.5}, Max: orb.Point{13.4 + 1e-9, 52.5 + 1e-9}}
	assert.Equal(t, tm.MaxZoom(), tm.ZoomForBounds(&tiny))
}

func TestCanvasConversionsAreInverse(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.SetZoom(11, 0.5, 0.5)
	tm.SetPosition(-33.86, 151.2)

	lat, lon := tm.CanvasToGeo(400, 300)
	assert.InDelta(t, -33.86, lat, 1e-9)
	assert.InDelta(t, 151.2, lon, 1e-9)

	lat, lon = tm.CanvasToGeo(123, 456)
	x, y := tm.GeoToCanvas(lat, lon)
	assert.InDelta(t, 123, x, 1e-6)
	assert.InDelta(t, 456, y, 1e-6)
}

func TestFading(t *testing.T) {
	tm := newTestMap(t, 512, 512)
	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)
	ul, _ := tm.Corners()

	start := time.Unix(1000, 0)
	tm.Fling(1024, 0, start)
	require.True(t, tm.Fading())

	// 62.5ms at 1024 px/s is 64 px, a quarter of a tile
	now := start.Add(62500 * time.Microsecond)
	assert.True(t, tm.FadeStep(now))
	ul2, _ := tm.Corners()
	assert.InDelta(t, ul.X+0.25, ul2.X, 1e-9)
	assert.Equal(t, ul.Y, ul2.Y)
	assert.InDelta(t, 1024*math.Exp2(-9*0.0625), tm.fade.vx, 1e-9)

	steps := 0
	for tm.FadeStep(now) {
		now = now.Add(16 * time.Millisecond)
		steps++
		require.Less(t, steps, 1000)
	}
	assert.False(t, tm.Fading())
	checkGrid(t, tm)
}

func TestFadingStopsAfterLongGap(t *testing.T) {
	tm := newTestMap(t, 512, 512)
	tm.SetZoom(10, 0.5, 0.5)
	tm.SetPosition(0, 0)
	ul, _ := tm.Corners()

	start := time.Unix(1000, 0)
	tm.Fling(5000, 5000, start)
	assert.False(t, tm.FadeStep(start.Add(time.Second)))
	assert.False(t, tm.Fading())

	ul2, _ := tm.Corners()
	assert.Equal(t, ul, ul2)

	tm.Fling(5000, 0, start)
	tm.StopFading()
	assert.False(t, tm.FadeStep(start.Add(10*time.Millisecond)))
}

func TestOverlaysAreReprojected(t *testing.T) {
	tm := newTestMap(t, 800, 600)
	tm.SetZoom(12, 0.5, 0.5)
	tm.SetPosition(48.85, 2.35)

	marker := overlay.NewMarker(48.85, 2.35, overlay.Style{Text: "Paris"})
	path := overlay.NewPath([][2]float64{{48.85, 2.35}, {48.86, 2.36}}, overlay.Style{})
	tm.AddOverlay(marker)
	tm.AddOverlay(path)

	geometries := tm.ProjectedOverlays()
	require.Len(t, geometries, 2)
	assert.Equal(t, overlay.KindPath, geometries[0].Kind)
	assert.Equal(t, overlay.KindMarker, geometries[1].Kind)
	assert.InDelta(t, 400, geometries[1].Points[0][0], 1e-6)
	assert.InDelta(t, 300, geometries[1].Points[0][1], 1e-6)
	assert.True(t, geometries[1].Visible)

	tm.Translate(100, -50)
	moved := tm.ProjectedOverlays()[1]
	assert.InDelta(t, 300, moved.Points[0][0], 1e-6)
	assert.InDelta(t, 350, moved.Points[0][1], 1e-6)

	got, ok := tm.Overlay(marker.ID())
	require.True(t, ok)
	assert.Same(t, marker, got)

	assert.True(t, tm.RemoveOverlay(marker.ID()))
	assert.False(t, tm.RemoveOverlay(marker.ID()))
	assert.Len(t, tm.ProjectedOverlays(), 1)

	assert.Equal(t, 1, tm.RemoveOverlays(overlay.KindPath))
	assert.Empty(t, tm.ProjectedOverlays())
	assert.Empty(t, tm.Overlays())
}
