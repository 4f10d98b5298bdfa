// Package surface is an in-memory drawing target for the tile grid. It keeps
// placed images by handle and renders them on request.
package surface

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/jaennil/guide_helper/backend/mapview/internal/overlay"
	"github.com/jaennil/guide_helper/backend/mapview/internal/viewport"
	xdraw "golang.org/x/image/draw"
)

type item struct {
	img image.Image
	x   float64
	y   float64
}

// Canvas implements viewport.Surface. Like the map it serves, it belongs to
// one goroutine.
type Canvas struct {
	width      int
	height     int
	background color.Color
	next       viewport.Handle
	items      map[viewport.Handle]*item
}

func NewCanvas(width, height int, background color.Color) *Canvas {
	return &Canvas{
		width:      width,
		height:     height,
		background: background,
		items:      make(map[viewport.Handle]*item),
	}
}

func (c *Canvas) Place(img image.Image, x, y float64) viewport.Handle {
	c.next++
	c.items[c.next] = &item{img: img, x: x, y: y}
	return c.next
}

func (c *Canvas) Move(h viewport.Handle, x, y float64) {
	if it, ok := c.items[h]; ok {
		it.x, it.y = x, y
	}
}

func (c *Canvas) Update(h viewport.Handle, img image.Image) {
	if it, ok := c.items[h]; ok {
		it.img = img
	}
}

func (c *Canvas) Release(h viewport.Handle) {
	delete(c.items, h)
}

func (c *Canvas) Resize(width, height int) {
	c.width, c.height = width, height
}

// Len is the number of placed images.
func (c *Canvas) Len() int {
	return len(c.items)
}

// Render draws the background, every placed image in placement order and
// then the overlay geometries on top.
func (c *Canvas) Render(geometries []overlay.Geometry) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(c.background), image.Point{}, xdraw.Src)

	for _, h := range slices.Sorted(maps.Keys(c.items)) {
		it := c.items[h]
		b := it.img.Bounds()
		at := image.Pt(int(math.Round(it.x)), int(math.Round(it.y)))
		xdraw.Draw(dst, b.Sub(b.Min).Add(at), it.img, b.Min, xdraw.Over)
	}

	dc := gg.NewContextForRGBA(dst)
	for _, g := range geometries {
		if g.Visible {
			drawGeometry(dc, g)
		}
	}
	return dst
}

// WritePNG renders the canvas and encodes it to w.
func (c *Canvas) WritePNG(w io.Writer, geometries []overlay.Geometry) error {
	dc := gg.NewContextForRGBA(c.Render(geometries))
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

var (
	defaultLineColor   = color.RGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xff}
	defaultMarkerColor = color.RGBA{R: 0xc5, G: 0x54, B: 0x2d, A: 0xff}
)

const markerRadius = 5

func drawGeometry(dc *gg.Context, g overlay.Geometry) {
	switch g.Kind {
	case overlay.KindMarker:
		dc.SetColor(styleColor(g.Style.Color, defaultMarkerColor))
		for _, p := range g.Points {
			dc.DrawCircle(p[0], p[1], markerRadius)
			dc.Fill()
		}
	case overlay.KindPath, overlay.KindPolygon:
		if len(g.Points) == 0 {
			return
		}
		dc.MoveTo(g.Points[0][0], g.Points[0][1])
		for _, p := range g.Points[1:] {
			dc.LineTo(p[0], p[1])
		}
		if g.Kind == overlay.KindPolygon {
			dc.ClosePath()
			if g.Style.Fill != "" {
				if fill, err := ParseColor(g.Style.Fill); err == nil {
					dc.SetColor(fill)
					dc.FillPreserve()
				}
			}
		}
		dc.SetColor(styleColor(g.Style.Color, defaultLineColor))
		dc.SetLineWidth(float64(max(g.Style.Width, 1)))
		dc.Stroke()
	}
}

func styleColor(s string, fallback color.RGBA) color.RGBA {
	if s == "" {
		return fallback
	}
	c, err := ParseColor(s)
	if err != nil {
		return fallback
	}
	return c
}

// ParseColor parses #rgb and #rrggbb colours.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
