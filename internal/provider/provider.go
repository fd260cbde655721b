// Package provider implements tile imagery sources. Each provider turns a
// tile address into an asynchronous image fetch against its remote service
// (or generates the tile locally, for the debug variants).
package provider

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

// Provider is a source of raster map tiles.
type Provider interface {
	// Name identifies the provider in logs and URLs.
	Name() string

	// TileSize is the edge length in pixels of the tiles served.
	TileSize() int

	// ZoomRange is the inclusive range of zoom levels the provider serves.
	ZoomRange() (min, max int)

	// FetchTile starts an asynchronous load of one tile. The returned handle
	// settles with the decoded image, an error, or by cancellation. No retry
	// is attempted; a transport or decode failure rejects the handle.
	FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle
}

// MetadataProvider is implemented by providers whose service exposes a
// metadata document alongside the tile endpoint.
type MetadataProvider interface {
	Provider

	// Metadata fetches the provider's metadata document. The document is
	// returned as parsed but otherwise uninterpreted JSON; which fields
	// matter is up to the caller.
	Metadata(ctx context.Context) (map[string]interface{}, error)
}

// MapView selects the imagery style a provider serves.
type MapView int

const (
	Aerial MapView = iota
	Road
	AerialLabels
	Oblique
	ObliqueLabels
)

func (v MapView) String() string {
	switch v {
	case Aerial:
		return "aerial"
	case Road:
		return "road"
	case AerialLabels:
		return "aerial-labels"
	case Oblique:
		return "oblique"
	case ObliqueLabels:
		return "oblique-labels"
	default:
		return fmt.Sprintf("MapView(%d)", int(v))
	}
}

// ParseMapView maps a configuration string to a MapView.
func ParseMapView(s string) (MapView, error) {
	switch s {
	case "", "aerial":
		return Aerial, nil
	case "road":
		return Road, nil
	case "aerial-labels":
		return AerialLabels, nil
	case "oblique":
		return Oblique, nil
	case "oblique-labels":
		return ObliqueLabels, nil
	default:
		return Aerial, fmt.Errorf("unknown map view: %s (supported: aerial, road, aerial-labels, oblique, oblique-labels)", s)
	}
}

// rangeCheck rejects addresses outside the provider's pyramid before any
// transport is started.
func rangeCheck(p Provider, t tile.Tile) error {
	if !t.Valid() {
		return fmt.Errorf("invalid tile address %s", t)
	}
	min, max := p.ZoomRange()
	if t.Zoom < min || t.Zoom > max {
		return fmt.Errorf("zoom %d outside %s range [%d, %d]", t.Zoom, p.Name(), min, max)
	}
	return nil
}

// rejected returns a handle settled with err, keeping FetchTile non-blocking
// even for inputs rejected before transport.
func rejected(err error) *fetch.Handle {
	return fetch.Go(context.Background(), func(context.Context) (image.Image, error) {
		return nil, err
	})
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
