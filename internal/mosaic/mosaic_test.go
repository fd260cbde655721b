package mosaic

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

// colorByAddress serves 4x4 tiles whose red channel encodes X and green
// channel encodes Y, so misplaced tiles are detectable.
type colorByAddress struct{}

func (colorByAddress) Name() string { return "test" }

func (colorByAddress) TileSize() int { return 4 }

func (colorByAddress) ZoomRange() (int, int) { return 0, 30 }

func (colorByAddress) FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	c := color.RGBA{R: uint8(t.X), G: uint8(t.Y), A: 0xff}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	return fetch.Resolved(img)
}

// failing rejects every fetch.
type failing struct{ colorByAddress }

func (failing) FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle {
	return fetch.Go(ctx, func(context.Context) (image.Image, error) {
		return nil, errors.New("tile service unavailable")
	})
}

func TestRegionTiles(t *testing.T) {
	r := Region{Zoom: 3, MinX: 1, MaxX: 2, MinY: 4, MaxY: 5}
	tiles := r.Tiles()
	if len(tiles) != 4 {
		t.Fatalf("Tiles() returned %d tiles, want 4", len(tiles))
	}
	if tiles[0] != (tile.Tile{Zoom: 3, X: 1, Y: 4}) {
		t.Errorf("first tile %v, want 3/1/4", tiles[0])
	}
	if tiles[3] != (tile.Tile{Zoom: 3, X: 2, Y: 5}) {
		t.Errorf("last tile %v, want 3/2/5", tiles[3])
	}
}

func TestRegionValidate(t *testing.T) {
	bad := []Region{
		{Zoom: 2, MinX: 3, MaxX: 2, MinY: 0, MaxY: 0},
		{Zoom: 2, MinX: 0, MaxX: 4, MinY: 0, MaxY: 0},
		{Zoom: -1, MinX: 0, MaxX: 0, MinY: 0, MaxY: 0},
	}
	for _, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("Validate(%+v) succeeded, want error", r)
		}
	}
}

func TestStitchPlacesTiles(t *testing.T) {
	s := New(colorByAddress{}, zap.NewNop())

	region := Region{Zoom: 4, MinX: 2, MaxX: 4, MinY: 6, MaxY: 7}
	out, err := s.Stitch(context.Background(), region, 3)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}

	if out.Bounds().Dx() != 12 || out.Bounds().Dy() != 8 {
		t.Fatalf("stitched bounds %v, want 12x8", out.Bounds())
	}

	// Every tile cell must hold the color encoding its own address.
	for ty := 6; ty <= 7; ty++ {
		for tx := 2; tx <= 4; tx++ {
			c := out.RGBAAt((tx-2)*4+1, (ty-6)*4+1)
			if int(c.R) != tx || int(c.G) != ty {
				t.Errorf("cell (%d,%d) holds tile (%d,%d)", tx, ty, c.R, c.G)
			}
		}
	}
}

func TestStitchFailsWhenTileFails(t *testing.T) {
	s := New(failing{}, zap.NewNop())

	_, err := s.Stitch(context.Background(), Region{Zoom: 1, MinX: 0, MaxX: 1, MinY: 0, MaxY: 1}, 2)
	if err == nil {
		t.Fatal("Stitch succeeded with a failing provider")
	}
}
