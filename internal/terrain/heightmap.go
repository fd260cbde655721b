package terrain

import (
	"fmt"
	"image"
)

// Heightmap is a decoded grid of elevation samples, one per source pixel,
// in meters.
type Heightmap struct {
	Width   int
	Height  int
	Samples []float32
}

// SampleAt returns the elevation at a pixel position.
func (h *Heightmap) SampleAt(x, y int) float32 {
	return h.Samples[y*h.Width+x]
}

// DecodeTerrarium converts a terrarium-encoded elevation tile into a
// heightmap. Elevation is packed into the RGB channels as
// (R*256 + G + B/256) - 32768 meters.
func DecodeTerrarium(img image.Image) (*Heightmap, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty elevation tile")
	}

	hm := &Heightmap{
		Width:   w,
		Height:  h,
		Samples: make([]float32, w*h),
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// RGBA returns 16-bit channels; shift back down to 8-bit.
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r8 := float64(r >> 8)
			g8 := float64(g >> 8)
			b8 := float64(b >> 8)
			hm.Samples[y*w+x] = float32(r8*256.0 + g8 + b8/256.0 - 32768.0)
		}
	}
	return hm, nil
}

// Shade renders the heightmap as a grayscale image, mapping the sample range
// [min, max] onto [0, 255]. Useful for visually inspecting elevation tiles.
func (h *Heightmap) Shade(min, max float32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, h.Width, h.Height))
	span := max - min
	if span <= 0 {
		span = 1
	}

	for i, s := range h.Samples {
		v := (s - min) / span
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		img.Pix[i] = uint8(v * 255)
	}
	return img
}

// Range returns the minimum and maximum elevation in the grid.
func (h *Heightmap) Range() (min, max float32) {
	min, max = h.Samples[0], h.Samples[0]
	for _, s := range h.Samples[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}
