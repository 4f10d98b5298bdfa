package overlay

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

type Polygon struct {
	id        uuid.UUID
	positions orb.Ring
	style     Style
}

func NewPolygon(positions [][2]float64, style Style) *Polygon {
	p := &Polygon{id: uuid.New(), style: style}
	for _, pos := range positions {
		p.positions = append(p.positions, orb.Point{pos[1], pos[0]})
	}
	return p
}

func (p *Polygon) ID() uuid.UUID { return p.id }
func (p *Polygon) Kind() Kind    { return KindPolygon }

func (p *Polygon) Positions() orb.Ring {
	return p.positions
}

func (p *Polygon) AddPosition(lat, lon float64, index int) {
	p.positions = insertPosition(p.positions, lat, lon, index)
}

func (p *Polygon) RemovePosition(lat, lon float64) bool {
	var ok bool
	p.positions, ok = removePosition(p.positions, lat, lon)
	return ok
}

// Project returns the outline closed back onto its first point.
func (p *Polygon) Project(pr Projector) Geometry {
	pts := project(pr, p.positions)
	if len(pts) > 0 && !pts[0].Equal(pts[len(pts)-1]) {
		pts = append(pts, pts[0])
	}
	return Geometry{
		ID:      p.id,
		Kind:    KindPolygon,
		Points:  pts,
		Visible: len(p.positions) > 2 && intersectsCanvas(pr, pts),
		Style:   p.style,
	}
}
