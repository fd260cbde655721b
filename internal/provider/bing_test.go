package provider

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/tile"
)

func tilePNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestBingTileURL(t *testing.T) {
	cases := []struct {
		view MapView
		tile tile.Tile
		want string
	}{
		{Aerial, tile.Tile{Zoom: 3, X: 3, Y: 5}, "https://ecn.t1.tiles.virtualearth.net/tiles/a213.jpeg?g=1173&mkt=en-US"},
		{Road, tile.Tile{Zoom: 1, X: 1, Y: 0}, "https://ecn.t1.tiles.virtualearth.net/tiles/r1.jpeg?g=1173&mkt=en-US"},
		{AerialLabels, tile.Tile{Zoom: 2, X: 0, Y: 0}, "https://ecn.t1.tiles.virtualearth.net/tiles/h00.jpeg?g=1173&mkt=en-US"},
		{Oblique, tile.Tile{Zoom: 1, X: 0, Y: 1}, "https://ecn.t1.tiles.virtualearth.net/tiles/o2.jpeg?g=1173&mkt=en-US"},
		{ObliqueLabels, tile.Tile{Zoom: 1, X: 1, Y: 1}, "https://ecn.t1.tiles.virtualearth.net/tiles/b3.jpeg?g=1173&mkt=en-US"},
	}

	for _, c := range cases {
		b := NewBing("", c.view, zap.NewNop())
		got, err := b.TileURL(c.tile)
		if err != nil {
			t.Fatalf("TileURL(%v, %v): %v", c.view, c.tile, err)
		}
		if got != c.want {
			t.Errorf("TileURL(%v, %v) = %q, want %q", c.view, c.tile, got, c.want)
		}
	}
}

func TestBingFetchTile(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(tilePNG(t, color.RGBA{G: 255, A: 255}))
	}))
	defer srv.Close()

	b := NewBing("", Aerial, zap.NewNop())
	b.TileAddress = srv.URL
	b.client = srv.Client()

	addr := tile.Tile{Zoom: 3, X: 3, Y: 5}
	img, err := b.FetchTile(context.Background(), addr).Wait(context.Background())
	if err != nil {
		t.Fatalf("FetchTile: %v", err)
	}
	if img == nil {
		t.Fatal("FetchTile returned nil image")
	}
	if gotPath != "/tiles/a213.jpeg" {
		t.Errorf("requested path %q, want /tiles/a213.jpeg", gotPath)
	}
}

func TestBingFetchTileRejectsOutOfRange(t *testing.T) {
	b := NewBing("", Aerial, zap.NewNop())

	// Bing serves nothing at zoom 0 and nothing past its maximum.
	for _, addr := range []tile.Tile{
		{Zoom: 0},
		{Zoom: 20, X: 1, Y: 1},
		{Zoom: 3, X: 8, Y: 0},
	} {
		h := b.FetchTile(context.Background(), addr)
		if _, err := h.Wait(context.Background()); err == nil {
			t.Errorf("FetchTile(%v) succeeded, want error", addr)
		}
	}
}

func TestBingMetadataReturnsParsedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"statusCode": 200, "resourceSets": [{"estimatedTotal": 1}]}`))
	}))
	defer srv.Close()

	b := NewBing("secret", Aerial, zap.NewNop())
	b.MetaAddress = srv.URL
	b.client = srv.Client()

	doc, err := b.Metadata(context.Background())
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if doc["statusCode"] != float64(200) {
		t.Errorf("statusCode = %v, want 200", doc["statusCode"])
	}
	if _, ok := doc["resourceSets"]; !ok {
		t.Error("resourceSets missing from parsed document")
	}
}

func TestBingMetadataParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	b := NewBing("", Aerial, zap.NewNop())
	b.MetaAddress = srv.URL
	b.client = srv.Client()

	if _, err := b.Metadata(context.Background()); err == nil {
		t.Fatal("Metadata succeeded on malformed body, want error")
	}
}

func TestParseMapView(t *testing.T) {
	for _, c := range []struct {
		in   string
		want MapView
	}{
		{"", Aerial},
		{"aerial", Aerial},
		{"road", Road},
		{"aerial-labels", AerialLabels},
		{"oblique", Oblique},
		{"oblique-labels", ObliqueLabels},
	} {
		got, err := ParseMapView(c.in)
		if err != nil || got != c.want {
			t.Errorf("ParseMapView(%q) = %v, %v; want %v, nil", c.in, got, err, c.want)
		}
	}

	if _, err := ParseMapView("satellite"); err == nil {
		t.Error("ParseMapView accepted an unknown view")
	}
}
