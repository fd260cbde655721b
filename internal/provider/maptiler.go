package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

const mapTilerAddress = "https://api.maptiler.com"

// MapTiler fetches tiles from the MapTiler cloud service. Unlike Bing it
// addresses tiles by z/x/y directly and requires an API key on every tile
// request.
type MapTiler struct {
	APIKey  string
	Style   string
	Format  string
	Address string

	client *http.Client
	logger *zap.Logger
}

func NewMapTiler(apiKey, style string, logger *zap.Logger) *MapTiler {
	if style == "" {
		style = "satellite"
	}
	return &MapTiler{
		APIKey:  apiKey,
		Style:   style,
		Format:  "jpg",
		Address: mapTilerAddress,
		client:  newHTTPClient(),
		logger:  logger,
	}
}

func (p *MapTiler) Name() string { return "maptiler" }

func (p *MapTiler) TileSize() int { return 256 }

func (p *MapTiler) ZoomRange() (int, int) { return 0, 20 }

func (p *MapTiler) TileURL(t tile.Tile) string {
	return fmt.Sprintf("%s/maps/%s/256/%d/%d/%d.%s?key=%s",
		p.Address, p.Style, t.Zoom, t.X, t.Y, p.Format, url.QueryEscape(p.APIKey))
}

func (p *MapTiler) FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle {
	if err := rangeCheck(p, t); err != nil {
		return rejected(err)
	}
	if p.APIKey == "" {
		return rejected(fmt.Errorf("maptiler requires an api key"))
	}

	u := p.TileURL(t)
	p.logger.Debug("Fetching maptiler tile", zap.String("tile", t.String()), zap.String("style", p.Style))
	return fetch.Get(ctx, p.client, u)
}
