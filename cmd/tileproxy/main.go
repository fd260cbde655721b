package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/config"
	httphandlers "github.com/JERRYZFC/geo-three/internal/http"
	"github.com/JERRYZFC/geo-three/internal/logger"
	"github.com/JERRYZFC/geo-three/internal/provider"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	providers, err := buildProviders(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure providers", zap.Error(err))
	}

	log.Info("Starting tile proxy",
		zap.Int("port", cfg.Port),
		zap.Int("providers", len(providers)),
	)

	handlers := httphandlers.New(cfg, log, providers)

	mux := http.NewServeMux()
	mux.HandleFunc("/tiles/", handlers.HandleTiles)
	mux.HandleFunc("/metadata/", handlers.HandleMetadata)
	mux.HandleFunc("/providers", handlers.HandleProviders)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

// buildProviders assembles the provider table from configuration. Bing and
// the debug provider are always available; key-gated services are added only
// when configured.
func buildProviders(cfg *config.Config, log *zap.Logger) (map[string]provider.Provider, error) {
	view, err := provider.ParseMapView(cfg.BingMapView)
	if err != nil {
		return nil, err
	}

	providers := map[string]provider.Provider{}

	bing := provider.NewBing(cfg.BingAPIKey, view, log)
	providers[bing.Name()] = bing

	osm := provider.NewOpenStreetMap(cfg.OSMServer, log)
	providers[osm.Name()] = osm

	debug := provider.NewDebug()
	providers[debug.Name()] = debug

	if cfg.MapTilerAPIKey != "" {
		mt := provider.NewMapTiler(cfg.MapTilerAPIKey, cfg.MapTilerStyle, log)
		providers[mt.Name()] = mt
		log.Info("MapTiler provider enabled", zap.String("style", cfg.MapTilerStyle))
	}

	return providers, nil
}
