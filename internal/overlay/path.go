package overlay

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

type Path struct {
	id        uuid.UUID
	positions orb.LineString
	style     Style
}

// NewPath builds a path from lat/lon pairs.
func NewPath(positions [][2]float64, style Style) *Path {
	p := &Path{id: uuid.New(), style: style}
	for _, pos := range positions {
		p.positions = append(p.positions, orb.Point{pos[1], pos[0]})
	}
	return p
}

func (p *Path) ID() uuid.UUID { return p.id }
func (p *Path) Kind() Kind    { return KindPath }

func (p *Path) Positions() orb.LineString {
	return p.positions
}

// AddPosition inserts at index, or appends when index is negative.
func (p *Path) AddPosition(lat, lon float64, index int) {
	p.positions = insertPosition(p.positions, lat, lon, index)
}

func (p *Path) RemovePosition(lat, lon float64) bool {
	var ok bool
	p.positions, ok = removePosition(p.positions, lat, lon)
	return ok
}

func (p *Path) Project(pr Projector) Geometry {
	pts := project(pr, p.positions)
	return Geometry{
		ID:      p.id,
		Kind:    KindPath,
		Points:  pts,
		Visible: len(pts) > 1 && intersectsCanvas(pr, pts),
		Style:   p.style,
	}
}
