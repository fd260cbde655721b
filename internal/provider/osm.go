package provider

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

const osmDefaultServer = "https://a.tile.openstreetmap.org"

// OpenStreetMap fetches tiles from an OSM-compatible slippy map server using
// the standard {server}/{z}/{x}/{y}.png layout.
type OpenStreetMap struct {
	// Server is the tile server root without a trailing slash.
	Server string

	// Format is the image extension in the tile path.
	Format string

	client *http.Client
	logger *zap.Logger
}

func NewOpenStreetMap(server string, logger *zap.Logger) *OpenStreetMap {
	if server == "" {
		server = osmDefaultServer
	}
	return &OpenStreetMap{
		Server: server,
		Format: "png",
		client: newHTTPClient(),
		logger: logger,
	}
}

func (p *OpenStreetMap) Name() string { return "osm" }

func (p *OpenStreetMap) TileSize() int { return 256 }

func (p *OpenStreetMap) ZoomRange() (int, int) { return 0, 19 }

func (p *OpenStreetMap) TileURL(t tile.Tile) string {
	return fmt.Sprintf("%s/%d/%d/%d.%s", p.Server, t.Zoom, t.X, t.Y, p.Format)
}

func (p *OpenStreetMap) FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle {
	if err := rangeCheck(p, t); err != nil {
		return rejected(err)
	}

	u := p.TileURL(t)
	p.logger.Debug("Fetching osm tile", zap.String("tile", t.String()), zap.String("url", u))
	return fetch.Get(ctx, p.client, u)
}
