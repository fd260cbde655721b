package main

import (
	"context"
	"flag"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cshum/vipsgen/vips"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/config"
	"github.com/JERRYZFC/geo-three/internal/logger"
	"github.com/JERRYZFC/geo-three/internal/mosaic"
	"github.com/JERRYZFC/geo-three/internal/provider"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

func main() {
	var (
		providerName = flag.String("provider", "bing", "tile provider: bing, osm, maptiler, debug")
		zoom         = flag.Int("zoom", 15, "zoom level")
		south        = flag.Float64("south", 0, "bounding box south edge, degrees")
		west         = flag.Float64("west", 0, "bounding box west edge, degrees")
		north        = flag.Float64("north", 0, "bounding box north edge, degrees")
		east         = flag.Float64("east", 0, "bounding box east edge, degrees")
		outDir       = flag.String("out", "tiles", "output directory for individual tiles")
		mosaicPath   = flag.String("mosaic", "", "write a stitched mosaic to this file instead of individual tiles")
		maxDim       = flag.Int("max-dim", 8192, "longest mosaic edge in pixels before downscaling")
		quality      = flag.Int("quality", 82, "mosaic jpeg quality")
	)
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if *south >= *north || *west >= *east {
		log.Fatal("Bounding box is empty",
			zap.Float64("south", *south), zap.Float64("north", *north),
			zap.Float64("west", *west), zap.Float64("east", *east),
		)
	}

	p, err := pickProvider(*providerName, cfg, log)
	if err != nil {
		log.Fatal("Failed to configure provider", zap.Error(err))
	}

	region := regionForBounds(*south, *west, *north, *east, *zoom)
	log.Info("Resolved region",
		zap.String("provider", p.Name()),
		zap.Int("zoom", region.Zoom),
		zap.Int("tiles", (region.MaxX-region.MinX+1)*(region.MaxY-region.MinY+1)),
	)

	ctx := context.Background()

	if *mosaicPath != "" {
		vips.Startup(&vips.Config{
			ConcurrencyLevel: 1,
			MaxCacheFiles:    0,
			MaxCacheSize:     0,
		})
		defer vips.Shutdown()

		stitched, err := mosaic.New(p, log).Stitch(ctx, region, cfg.FetchWorkers)
		if err != nil {
			log.Fatal("Stitch failed", zap.Error(err))
		}

		data, err := mosaic.ExportJPEG(stitched, *maxDim, *quality)
		if err != nil {
			log.Fatal("Export failed", zap.Error(err))
		}
		if err := os.WriteFile(*mosaicPath, data, 0644); err != nil {
			log.Fatal("Failed to write mosaic", zap.Error(err))
		}

		log.Info("Mosaic written", zap.String("path", *mosaicPath), zap.Int("bytes", len(data)))
		return
	}

	if err := downloadTiles(ctx, p, region, *outDir, cfg.FetchWorkers, cfg.FetchTimeout, log); err != nil {
		log.Fatal("Download failed", zap.Error(err))
	}
}

// regionForBounds converts a geographic bounding box to the covered tile
// rectangle at a zoom level.
func regionForBounds(south, west, north, east float64, zoom int) mosaic.Region {
	z := maptile.Zoom(zoom)
	topLeft := maptile.At(orb.Point{west, north}, z)
	bottomRight := maptile.At(orb.Point{east, south}, z)

	return mosaic.Region{
		Zoom: zoom,
		MinX: int(topLeft.X),
		MaxX: int(bottomRight.X),
		MinY: int(topLeft.Y),
		MaxY: int(bottomRight.Y),
	}
}

func pickProvider(name string, cfg *config.Config, log *zap.Logger) (provider.Provider, error) {
	switch name {
	case "bing":
		view, err := provider.ParseMapView(cfg.BingMapView)
		if err != nil {
			return nil, err
		}
		return provider.NewBing(cfg.BingAPIKey, view, log), nil
	case "osm":
		return provider.NewOpenStreetMap(cfg.OSMServer, log), nil
	case "maptiler":
		return provider.NewMapTiler(cfg.MapTilerAPIKey, cfg.MapTilerStyle, log), nil
	case "debug":
		return provider.NewDebug(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// downloadTiles fetches every tile in the region with a bounded worker pool
// and writes {out}/{z}/{x}_{y}.jpg files. Tiles already on disk are skipped.
func downloadTiles(ctx context.Context, p provider.Provider, region mosaic.Region, outDir string, workers int, timeout time.Duration, log *zap.Logger) error {
	if workers <= 0 {
		workers = 1
	}

	dir := filepath.Join(outDir, fmt.Sprintf("%d", region.Zoom))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	workerChan := make(chan struct{}, workers)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error

	for _, t := range region.Tiles() {
		fname := filepath.Join(dir, fmt.Sprintf("%d_%d.jpg", t.X, t.Y))
		if _, err := os.Stat(fname); err == nil {
			continue
		}

		wg.Add(1)
		workerChan <- struct{}{} // Acquire worker slot

		go func(t tile.Tile, fname string) {
			defer wg.Done()
			defer func() { <-workerChan }() // Release worker slot

			fctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			img, err := p.FetchTile(fctx, t).Wait(fctx)
			if err != nil {
				log.Warn("Tile fetch failed", zap.String("tile", t.String()), zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			f, err := os.Create(fname)
			if err == nil {
				err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}
			if err != nil {
				log.Warn("Failed to write tile", zap.String("path", fname), zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			log.Debug("Tile written", zap.String("path", fname))
		}(t, fname)
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	log.Info("Download completed", zap.String("dir", dir))
	return nil
}
