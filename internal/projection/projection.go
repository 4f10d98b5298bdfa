// Package projection converts between geographic coordinates and the
// continuous Web-Mercator tile grid used by slippy-map tile servers.
package projection

import "math"

// MaxLatitude is the northern and southern bound of the square Web-Mercator world.
const MaxLatitude = 85.0511287798

// Point is a position on the tile grid. The integer part addresses a tile,
// the fractional part the offset inside it.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// WorldSize is the number of tiles along one axis at zoom.
func WorldSize(zoom int) float64 {
	return math.Exp2(float64(zoom))
}

// ToGrid projects lat/lon in degrees onto the tile grid at zoom.
func ToGrid(lat, lon float64, zoom int) Point {
	n := WorldSize(zoom)
	phi := lat * math.Pi / 180

	return Point{
		X: (lon + 180) / 360 * n,
		Y: (1 - math.Log(math.Tan(phi)+1/math.Cos(phi))/math.Pi) / 2 * n,
	}
}

// ToGeo is the inverse of ToGrid.
func ToGeo(p Point, zoom int) (lat, lon float64) {
	n := WorldSize(zoom)

	lon = p.X/n*360 - 180
	lat = math.Atan(math.Sinh(math.Pi*(1-2*p.Y/n))) * 180 / math.Pi

	return lat, lon
}

// ClampLatitude limits lat to the range the projection can represent.
func ClampLatitude(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}

// ZoomRound rounds a fractional zoom the way tile addressing does.
func ZoomRound(zoom float64) int {
	return int(math.Round(zoom))
}
