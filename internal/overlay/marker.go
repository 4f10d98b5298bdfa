package overlay

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

type Marker struct {
	id       uuid.UUID
	position orb.Point
	style    Style
}

func NewMarker(lat, lon float64, style Style) *Marker {
	return &Marker{
		id:       uuid.New(),
		position: orb.Point{lon, lat},
		style:    style,
	}
}

func (m *Marker) ID() uuid.UUID { return m.id }
func (m *Marker) Kind() Kind    { return KindMarker }

func (m *Marker) Position() (lat, lon float64) {
	return m.position.Lat(), m.position.Lon()
}

func (m *Marker) SetPosition(lat, lon float64) {
	m.position = orb.Point{lon, lat}
}

func (m *Marker) SetText(text string) {
	m.style.Text = text
}

// Project keeps the marker visible slightly past the canvas edges so its
// icon and label do not pop in late.
func (m *Marker) Project(p Projector) Geometry {
	x, y := p.GeoToCanvas(m.position.Lat(), m.position.Lon())
	w, h := p.Size()

	return Geometry{
		ID:      m.id,
		Kind:    KindMarker,
		Points:  []orb.Point{{x, y}},
		Visible: -50 < x && x < float64(w)+50 && 0 < y && y < float64(h)+70,
		Style:   m.style,
	}
}
