// Package overlay holds vector annotations anchored to geographic
// coordinates. Overlays only project themselves; drawing them is up to the UI.
package overlay

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

type Kind string

const (
	KindMarker  Kind = "marker"
	KindPath    Kind = "path"
	KindPolygon Kind = "polygon"
)

// Projector maps geographic coordinates to canvas pixels for the current viewport.
type Projector interface {
	GeoToCanvas(lat, lon float64) (x, y float64)
	Size() (width, height int)
}

// Geometry is an overlay in canvas pixel space. Points are (x, y) pixels.
type Geometry struct {
	ID      uuid.UUID
	Kind    Kind
	Points  []orb.Point
	Visible bool
	Style   Style
}

// Style carries presentation attributes through to the UI untouched.
type Style struct {
	Text  string `json:"text,omitempty"`
	Color string `json:"color,omitempty"`
	Fill  string `json:"fill,omitempty"`
	Width int    `json:"width,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Overlay interface {
	ID() uuid.UUID
	Kind() Kind
	Project(p Projector) Geometry
}

func project(p Projector, positions []orb.Point) []orb.Point {
	out := make([]orb.Point, len(positions))
	for i, pos := range positions {
		x, y := p.GeoToCanvas(pos.Lat(), pos.Lon())
		out[i] = orb.Point{x, y}
	}
	return out
}

// intersectsCanvas reports whether the bounding box of pts overlaps the canvas.
func intersectsCanvas(p Projector, pts []orb.Point) bool {
	if len(pts) == 0 {
		return false
	}
	w, h := p.Size()
	canvas := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(w), float64(h)}}
	return orb.MultiPoint(pts).Bound().Intersects(canvas)
}

func removePosition(positions []orb.Point, lat, lon float64) ([]orb.Point, bool) {
	target := orb.Point{lon, lat}
	for i, p := range positions {
		if p.Equal(target) {
			return append(positions[:i], positions[i+1:]...), true
		}
	}
	return positions, false
}

func insertPosition(positions []orb.Point, lat, lon float64, index int) []orb.Point {
	p := orb.Point{lon, lat}
	if index < 0 || index >= len(positions) {
		return append(positions, p)
	}
	positions = append(positions, orb.Point{})
	copy(positions[index+1:], positions[index:])
	positions[index] = p
	return positions
}
