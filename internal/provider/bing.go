package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

const (
	bingTileAddress = "https://ecn.%s.tiles.virtualearth.net"
	bingMetaAddress = "https://dev.virtualearth.net"

	// Fixed tile generation parameter carried on every tile request.
	bingTileQuery = "g=1173&mkt=en-US"

	bingMaxZoom  = 19
	bingTileSize = 256
)

// Bing fetches imagery from the Bing Maps tile service. Tiles are addressed
// by quadkey; the view type selects between aerial, road and oblique
// imagery sets.
//
// The exported fields are request parameters with service defaults; tests
// and advanced callers may override them before the first fetch.
type Bing struct {
	// APIKey authenticates metadata requests. Tile requests do not need it.
	APIKey string

	// View is the imagery set to fetch from.
	View MapView

	// Format is the image extension requested from the tile endpoint.
	Format string

	// Subdomain is the tile server shard, t0 through t3.
	Subdomain string

	// TileAddress and MetaAddress are the service roots.
	TileAddress string
	MetaAddress string

	client *http.Client
	logger *zap.Logger
}

// NewBing returns a Bing provider with an empty API key and aerial view by
// default.
func NewBing(apiKey string, view MapView, logger *zap.Logger) *Bing {
	return &Bing{
		APIKey:      apiKey,
		View:        view,
		Format:      "jpeg",
		Subdomain:   "t1",
		TileAddress: fmt.Sprintf(bingTileAddress, "t1"),
		MetaAddress: bingMetaAddress,
		client:      newHTTPClient(),
		logger:      logger,
	}
}

func (b *Bing) Name() string { return "bing" }

func (b *Bing) TileSize() int { return bingTileSize }

func (b *Bing) ZoomRange() (int, int) { return 1, bingMaxZoom }

// typeCode is the single-character view selector in the tile path.
func (b *Bing) typeCode() (string, error) {
	switch b.View {
	case Aerial:
		return "a", nil
	case Road:
		return "r", nil
	case AerialLabels:
		return "h", nil
	case Oblique:
		return "o", nil
	case ObliqueLabels:
		return "b", nil
	default:
		return "", fmt.Errorf("map view %s not supported by bing", b.View)
	}
}

// metadataImagerySet is the imagery-set path segment of the metadata REST
// resource for each view.
func (b *Bing) metadataImagerySet() string {
	switch b.View {
	case Road:
		return "RoadOnDemand"
	case AerialLabels:
		return "AerialWithLabels"
	case Oblique:
		return "Birdseye"
	case ObliqueLabels:
		return "BirdseyeWithLabels"
	default:
		return "Aerial"
	}
}

// TileURL builds the fully-qualified tile request URL for an address.
func (b *Bing) TileURL(t tile.Tile) (string, error) {
	code, err := b.typeCode()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/tiles/%s%s.%s?%s", b.TileAddress, code, t.Quadkey(), b.Format, bingTileQuery), nil
}

func (b *Bing) FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle {
	if err := rangeCheck(b, t); err != nil {
		return rejected(err)
	}

	u, err := b.TileURL(t)
	if err != nil {
		return rejected(err)
	}

	b.logger.Debug("Fetching bing tile",
		zap.String("tile", t.String()),
		zap.String("quadkey", t.Quadkey()),
		zap.String("url", u),
	)
	return fetch.Get(ctx, b.client, u)
}

// Metadata fetches the imagery metadata document for the configured view.
// The document is decoded but not interpreted; the service's field layout is
// left to the caller.
func (b *Bing) Metadata(ctx context.Context) (map[string]interface{}, error) {
	u := fmt.Sprintf("%s/REST/V1/Imagery/Metadata/%s?output=json&include=ImageryProviders&key=%s",
		b.MetaAddress, b.metadataImagerySet(), url.QueryEscape(b.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request returned status %d", resp.StatusCode)
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return doc, nil
}
