package provider

import (
	"context"
	"fmt"
	"image"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/terrain"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

// HeightDebug wraps an elevation provider and re-encodes its
// terrarium-encoded tiles as grayscale, so elevation data can be inspected
// with the same tooling as imagery.
type HeightDebug struct {
	// Source serves the terrarium-encoded elevation tiles.
	Source Provider

	// MinHeight and MaxHeight bound the grayscale mapping, in meters.
	MinHeight float32
	MaxHeight float32
}

func NewHeightDebug(source Provider) *HeightDebug {
	return &HeightDebug{
		Source:    source,
		MinHeight: -100,
		MaxHeight: 4000,
	}
}

func (p *HeightDebug) Name() string { return p.Source.Name() + "-height" }

func (p *HeightDebug) TileSize() int { return p.Source.TileSize() }

func (p *HeightDebug) ZoomRange() (int, int) { return p.Source.ZoomRange() }

func (p *HeightDebug) FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle {
	inner := p.Source.FetchTile(ctx, t)

	return fetch.Go(ctx, func(ctx context.Context) (image.Image, error) {
		img, err := inner.Wait(ctx)
		if err != nil {
			// Tear down the wrapped fetch if we gave up waiting on it.
			inner.Cancel()
			return nil, err
		}

		hm, err := terrain.DecodeTerrarium(img)
		if err != nil {
			return nil, fmt.Errorf("elevation tile %s: %w", t, err)
		}
		return hm.Shade(p.MinHeight, p.MaxHeight), nil
	})
}
