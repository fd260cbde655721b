package provider

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

// Debug generates tiles locally with the tile address printed on them, for
// inspecting which addresses a renderer requests. No network is involved;
// fetches resolve immediately.
type Debug struct {
	Size int
}

func NewDebug() *Debug {
	return &Debug{Size: 256}
}

func (p *Debug) Name() string { return "debug" }

func (p *Debug) TileSize() int { return p.Size }

func (p *Debug) ZoomRange() (int, int) { return 0, 30 }

func (p *Debug) FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle {
	if err := rangeCheck(p, t); err != nil {
		return rejected(err)
	}
	return fetch.Resolved(p.render(t))
}

func (p *Debug) render(t tile.Tile) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, p.Size, p.Size))

	// Alternate the background so adjacent tiles are distinguishable.
	bg := color.RGBA{R: 0x95, G: 0xb5, B: 0xd4, A: 0xff}
	if (t.X+t.Y)%2 == 1 {
		bg = color.RGBA{R: 0xb4, G: 0xcd, B: 0xe2, A: 0xff}
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	border := color.RGBA{A: 0xff}
	for i := 0; i < p.Size; i++ {
		img.Set(i, 0, border)
		img.Set(i, p.Size-1, border)
		img.Set(0, i, border)
		img.Set(p.Size-1, i, border)
	}

	drawLabel(img, t.String(), p.Size/2, p.Size/2-8)
	if key := t.Quadkey(); key != "" {
		drawLabel(img, key, p.Size/2, p.Size/2+8)
	}
	return img
}

// drawLabel centers a line of text horizontally around (cx, y).
func drawLabel(img draw.Image, text string, cx, y int) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{A: 0xff}),
		Face: face,
		Dot:  fixed.P(cx-width/2, y),
	}
	d.DrawString(text)
}
