package viewport

import (
	"image"

	"github.com/jaennil/guide_helper/backend/mapview/internal/tiles"
)

// Slot is one cell of the tile grid. The grid owns its slots; a slot dropped
// from the grid is released and ignores late images.
type Slot struct {
	m        *Map
	key      tiles.Key
	image    image.Image
	handle   Handle
	placed   bool
	released bool
}

func (s *Slot) Key() tiles.Key {
	return s.key
}

func (s *Slot) Image() image.Image {
	return s.image
}

func (s *Slot) Released() bool {
	return s.released
}

// SetImage must be called from the goroutine that owns the map.
func (s *Slot) SetImage(img image.Image) {
	if s.released {
		return
	}
	s.image = img
	s.draw(true)
}

func (s *Slot) setImageAndKey(img image.Image, key tiles.Key) {
	s.image = img
	s.key = key
	s.draw(true)
}

func (s *Slot) draw(imageUpdate bool) {
	x, y := s.m.gridToCanvas(float64(s.key.X), float64(s.key.Y))

	if !s.placed {
		if !tiles.IsPlaceholder(s.image) {
			s.handle = s.m.surface.Place(s.image, x, y)
			s.placed = true
		}
		return
	}

	s.m.surface.Move(s.handle, x, y)
	if !imageUpdate {
		return
	}
	if tiles.IsPlaceholder(s.image) {
		s.m.surface.Release(s.handle)
		s.placed = false
		return
	}
	s.m.surface.Update(s.handle, s.image)
}

func (s *Slot) release() {
	if s.released {
		return
	}
	s.released = true
	if s.placed {
		s.m.surface.Release(s.handle)
		s.placed = false
	}
}
