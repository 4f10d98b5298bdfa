package overlay

import (
	"slices"

	"github.com/google/uuid"
)

// drawing order, bottom to top
var zOrder = []Kind{KindPolygon, KindPath, KindMarker}

// Registry keeps overlays in insertion order per kind. Not safe for
// concurrent use; the display loop owns it.
type Registry struct {
	byKind map[Kind][]Overlay
}

func NewRegistry() *Registry {
	return &Registry{byKind: make(map[Kind][]Overlay)}
}

func (r *Registry) Add(o Overlay) {
	r.byKind[o.Kind()] = append(r.byKind[o.Kind()], o)
}

func (r *Registry) Get(id uuid.UUID) (Overlay, bool) {
	for _, list := range r.byKind {
		for _, o := range list {
			if o.ID() == id {
				return o, true
			}
		}
	}
	return nil, false
}

func (r *Registry) Remove(id uuid.UUID) bool {
	for kind, list := range r.byKind {
		i := slices.IndexFunc(list, func(o Overlay) bool { return o.ID() == id })
		if i >= 0 {
			r.byKind[kind] = slices.Delete(list, i, i+1)
			return true
		}
	}
	return false
}

// RemoveKind drops every overlay of kind and returns how many there were.
func (r *Registry) RemoveKind(kind Kind) int {
	n := len(r.byKind[kind])
	delete(r.byKind, kind)
	return n
}

// All returns overlays in z-order: polygons, then paths, then markers.
func (r *Registry) All() []Overlay {
	var out []Overlay
	for _, kind := range zOrder {
		out = append(out, r.byKind[kind]...)
	}
	return out
}

func (r *Registry) Len() int {
	n := 0
	for _, list := range r.byKind {
		n += len(list)
	}
	return n
}
