package terrain

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

// fetcherFunc adapts a function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, t tile.Tile) *fetch.Handle

func (f fetcherFunc) FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle {
	return f(ctx, t)
}

func terrariumPixel(height float64) color.RGBA {
	v := height + 32768.0
	whole := int(v)
	return color.RGBA{
		R: uint8(whole / 256),
		G: uint8(whole % 256),
		B: uint8((v - float64(whole)) * 256.0),
		A: 0xff,
	}
}

func uniformTile(c color.Color, size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecodeTerrarium(t *testing.T) {
	for _, height := range []float64{-32768, -11, 0, 8.5, 86, 1950, 8848} {
		img := uniformTile(terrariumPixel(height), 2)
		hm, err := DecodeTerrarium(img)
		if err != nil {
			t.Fatalf("DecodeTerrarium(height=%v): %v", height, err)
		}
		got := float64(hm.SampleAt(1, 1))
		if diff := got - height; diff > 0.01 || diff < -0.01 {
			t.Errorf("decoded height %v, want %v", got, height)
		}
	}
}

func TestDecodeTerrariumRejectsEmpty(t *testing.T) {
	if _, err := DecodeTerrarium(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Fatal("DecodeTerrarium accepted an empty image")
	}
}

func TestHeightmapRangeAndShade(t *testing.T) {
	hm := &Heightmap{Width: 2, Height: 2, Samples: []float32{0, 50, 100, 25}}

	min, max := hm.Range()
	if min != 0 || max != 100 {
		t.Fatalf("Range() = %v, %v; want 0, 100", min, max)
	}

	img := hm.Shade(0, 100)
	if img.GrayAt(0, 0).Y != 0 {
		t.Errorf("min sample shaded to %d, want 0", img.GrayAt(0, 0).Y)
	}
	if img.GrayAt(0, 1).Y != 255 {
		t.Errorf("max sample shaded to %d, want 255", img.GrayAt(0, 1).Y)
	}
}

func TestSubdivideBuildsQuadTree(t *testing.T) {
	root := NewRoot(fetcherFunc(func(ctx context.Context, addr tile.Tile) *fetch.Handle {
		return fetch.Resolved(uniformTile(color.White, 1))
	}))

	children := root.Subdivide()
	if len(children) != 4 {
		t.Fatalf("Subdivide returned %d children, want 4", len(children))
	}
	for _, c := range children {
		if c.Parent() != root {
			t.Error("child does not point back at root")
		}
		if c.Tile.Zoom != 1 {
			t.Errorf("child zoom %d, want 1", c.Tile.Zoom)
		}
	}

	// Subdividing again must reuse the same nodes.
	again := root.Subdivide()
	if again[0] != children[0] {
		t.Error("second Subdivide replaced existing children")
	}
}

func TestLoadImagery(t *testing.T) {
	var requested tile.Tile
	root := NewRoot(fetcherFunc(func(ctx context.Context, addr tile.Tile) *fetch.Handle {
		requested = addr
		return fetch.Resolved(uniformTile(color.White, 2))
	}))

	node := root.Subdivide()[3]
	if err := node.LoadImagery(context.Background()); err != nil {
		t.Fatalf("LoadImagery: %v", err)
	}
	if requested != node.Tile {
		t.Errorf("fetched %v, want %v", requested, node.Tile)
	}
	if node.Imagery() == nil {
		t.Error("imagery not stored on node")
	}
}

func TestPlaneNodeHeightGeometryIsNoop(t *testing.T) {
	p := NewPlaneNode(NewRoot(nil))
	if err := p.LoadHeightGeometry(context.Background()); err != nil {
		t.Fatalf("LoadHeightGeometry: %v", err)
	}

	// A plane node must satisfy the loader capability.
	var _ HeightGeometryLoader = p
}

func TestHeightNodeLoadsGrid(t *testing.T) {
	heights := fetcherFunc(func(ctx context.Context, addr tile.Tile) *fetch.Handle {
		return fetch.Resolved(uniformTile(terrariumPixel(512), 4))
	})

	h := NewHeightNode(NewRoot(nil), heights)
	if err := h.LoadHeightGeometry(context.Background()); err != nil {
		t.Fatalf("LoadHeightGeometry: %v", err)
	}

	hm := h.Heightmap()
	if hm == nil {
		t.Fatal("heightmap not stored")
	}
	if got := hm.SampleAt(2, 2); got < 511.9 || got > 512.1 {
		t.Errorf("sample = %v, want 512", got)
	}

	var _ HeightGeometryLoader = h
}

func TestHeightNodePropagatesFetchError(t *testing.T) {
	want := errors.New("no elevation here")
	heights := fetcherFunc(func(ctx context.Context, addr tile.Tile) *fetch.Handle {
		return fetch.Go(ctx, func(context.Context) (image.Image, error) {
			return nil, want
		})
	})

	h := NewHeightNode(NewRoot(nil), heights)
	if err := h.LoadHeightGeometry(context.Background()); !errors.Is(err, want) {
		t.Fatalf("LoadHeightGeometry error = %v, want %v", err, want)
	}
	if h.Heightmap() != nil {
		t.Error("failed load left a heightmap behind")
	}
}
