package tile

import (
	"fmt"
	"math"
)

// Web mercator clamps latitude so the projected map stays square.
const (
	MinLatitude = -85.05112878
	MaxLatitude = 85.05112878
)

// Tile addresses one cell of a quad-tree tile pyramid. Zoom level z has a
// 2^z by 2^z grid; X grows eastward and Y grows southward from the top-left
// corner of the map.
type Tile struct {
	Zoom int
	X    int
	Y    int
}

// New validates the address and returns the tile.
func New(zoom, x, y int) (Tile, error) {
	t := Tile{Zoom: zoom, X: x, Y: y}
	if !t.Valid() {
		return Tile{}, fmt.Errorf("invalid tile address %d/%d/%d", zoom, x, y)
	}
	return t, nil
}

// Valid reports whether the address lies inside the pyramid.
func (t Tile) Valid() bool {
	if t.Zoom < 0 || t.Zoom > 30 {
		return false
	}
	n := 1 << t.Zoom
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Quadkey encodes the address as a base-4 string, one digit per zoom level,
// most significant digit first. Each digit combines the corresponding bit of
// X (contributes 1) and Y (contributes 2). Zoom 0 yields the empty string.
func (t Tile) Quadkey() string {
	key := make([]byte, t.Zoom)
	for i := t.Zoom; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		key[t.Zoom-i] = digit
	}
	return string(key)
}

// ParseQuadkey is the inverse of Quadkey.
func ParseQuadkey(key string) (Tile, error) {
	if len(key) > 30 {
		return Tile{}, fmt.Errorf("quadkey too long: %d digits", len(key))
	}
	t := Tile{Zoom: len(key)}
	for i := 0; i < len(key); i++ {
		mask := 1 << (t.Zoom - i - 1)
		switch key[i] {
		case '0':
		case '1':
			t.X |= mask
		case '2':
			t.Y |= mask
		case '3':
			t.X |= mask
			t.Y |= mask
		default:
			return Tile{}, fmt.Errorf("invalid quadkey digit %q at position %d", key[i], i)
		}
	}
	return t, nil
}

// Parent returns the enclosing tile one zoom level up. The second return is
// false for the root tile.
func (t Tile) Parent() (Tile, bool) {
	if t.Zoom == 0 {
		return Tile{}, false
	}
	return Tile{Zoom: t.Zoom - 1, X: t.X / 2, Y: t.Y / 2}, true
}

// Children returns the four tiles covering this one at the next zoom level,
// ordered top-left, top-right, bottom-left, bottom-right.
func (t Tile) Children() [4]Tile {
	z, x, y := t.Zoom+1, t.X*2, t.Y*2
	return [4]Tile{
		{z, x, y},
		{z, x + 1, y},
		{z, x, y + 1},
		{z, x + 1, y + 1},
	}
}

// Bounds returns the geographic extent of the tile in degrees.
func (t Tile) Bounds() (south, west, north, east float64) {
	n := float64(int(1) << t.Zoom)
	west = float64(t.X)/n*360.0 - 180.0
	east = float64(t.X+1)/n*360.0 - 180.0
	north = mercatorLatitude(float64(t.Y) / n)
	south = mercatorLatitude(float64(t.Y+1) / n)
	return south, west, north, east
}

// At returns the tile containing the given coordinate at a zoom level.
// Latitude is clamped to the web mercator range.
func At(lat, lon float64, zoom int) Tile {
	lat = clip(lat, MinLatitude, MaxLatitude)
	lon = clip(lon, -180.0, 180.0)

	n := float64(int(1) << zoom)
	x := int((lon + 180.0) / 360.0 * n)
	latRad := lat * math.Pi / 180.0
	y := int((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n)

	max := (1 << zoom) - 1
	return Tile{
		Zoom: zoom,
		X:    clampInt(x, 0, max),
		Y:    clampInt(y, 0, max),
	}
}

// mercatorLatitude converts a normalized map Y in [0,1] to latitude degrees.
func mercatorLatitude(yf float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1.0-2.0*yf))) * 180.0 / math.Pi
}

func clip(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
