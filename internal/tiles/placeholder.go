package tiles

import (
	"image"
	"image/color"
)

// Placeholder is a uniform image standing in for a tile that has no imagery.
// Placeholders are compared by identity.
type Placeholder struct {
	*image.Uniform
	name string
}

func (p *Placeholder) String() string {
	return p.name
}

var (
	// NotLoaded is shown by a slot while its tile is being fetched.
	NotLoaded = &Placeholder{Uniform: image.NewUniform(color.RGBA{R: 250, G: 250, B: 250, A: 255}), name: "not-loaded"}

	// Empty marks a tile that has no imagery: the server does not have it,
	// the body could not be decoded, or the offline store misses it.
	Empty = &Placeholder{Uniform: image.NewUniform(color.RGBA{R: 190, G: 190, B: 190, A: 255}), name: "empty"}
)

// IsPlaceholder reports whether img is one of the placeholder images.
func IsPlaceholder(img image.Image) bool {
	_, ok := img.(*Placeholder)
	return ok
}
