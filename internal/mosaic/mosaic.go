// Package mosaic composites a rectangle of fetched tiles into one image.
package mosaic

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"sync"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/provider"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

// Region is an inclusive rectangle of tile addresses at one zoom level.
type Region struct {
	Zoom int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

func (r Region) Validate() error {
	if r.MinX > r.MaxX || r.MinY > r.MaxY {
		return fmt.Errorf("empty region %+v", r)
	}
	for _, corner := range [][2]int{{r.MinX, r.MinY}, {r.MaxX, r.MaxY}} {
		if _, err := tile.New(r.Zoom, corner[0], corner[1]); err != nil {
			return err
		}
	}
	return nil
}

// Tiles enumerates the region row by row.
func (r Region) Tiles() []tile.Tile {
	tiles := make([]tile.Tile, 0, (r.MaxX-r.MinX+1)*(r.MaxY-r.MinY+1))
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			tiles = append(tiles, tile.Tile{Zoom: r.Zoom, X: x, Y: y})
		}
	}
	return tiles
}

// Stitcher fetches regions of tiles and composites them.
type Stitcher struct {
	provider provider.Provider
	logger   *zap.Logger
}

func New(p provider.Provider, logger *zap.Logger) *Stitcher {
	return &Stitcher{provider: p, logger: logger}
}

// Stitch fetches every tile in the region, at most workers at a time, and
// draws them into a single image. A failed tile fails the whole stitch.
func (s *Stitcher) Stitch(ctx context.Context, region Region, workers int) (*image.RGBA, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}

	size := s.provider.TileSize()
	out := image.NewRGBA(image.Rect(0, 0, (region.MaxX-region.MinX+1)*size, (region.MaxY-region.MinY+1)*size))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	workerChan := make(chan struct{}, workers)

	for _, t := range region.Tiles() {
		wg.Add(1)
		workerChan <- struct{}{} // Acquire worker slot

		go func(t tile.Tile) {
			defer wg.Done()
			defer func() { <-workerChan }() // Release worker slot

			img, err := s.provider.FetchTile(ctx, t).Wait(ctx)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("tile %s: %w", t, err)
					cancel()
				}
				mu.Unlock()
				return
			}

			dst := image.Rect(
				(t.X-region.MinX)*size,
				(t.Y-region.MinY)*size,
				(t.X-region.MinX+1)*size,
				(t.Y-region.MinY+1)*size,
			)

			mu.Lock()
			draw.Draw(out, dst, img, img.Bounds().Min, draw.Src)
			mu.Unlock()

			s.logger.Debug("Stitched tile", zap.String("tile", t.String()))
		}(t)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// ExportJPEG re-encodes a stitched image through libvips, scaling it down
// with a Lanczos kernel if its longest edge exceeds maxDim (0 disables
// scaling). vips.Startup must have been called.
func ExportJPEG(src image.Image, maxDim, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("failed to stage image: %w", err)
	}

	img, err := vips.NewPngloadBuffer(buf.Bytes(), vips.DefaultPngloadBufferOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to load staged image: %w", err)
	}
	defer img.Close()

	bounds := src.Bounds()
	longest := bounds.Dx()
	if bounds.Dy() > longest {
		longest = bounds.Dy()
	}

	if maxDim > 0 && longest > maxDim {
		resizeOpts := vips.DefaultResizeOptions()
		resizeOpts.Kernel = vips.KernelLanczos3
		if err := img.Resize(float64(maxDim)/float64(longest), resizeOpts); err != nil {
			return nil, fmt.Errorf("failed to resize: %w", err)
		}
	}

	jpegOpts := vips.DefaultJpegsaveBufferOptions()
	if quality > 0 {
		jpegOpts.Q = quality
	}

	data, err := img.JpegsaveBuffer(jpegOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}
	return data, nil
}
