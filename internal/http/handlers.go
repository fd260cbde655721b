package http

import (
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JERRYZFC/geo-three/internal/config"
	"github.com/JERRYZFC/geo-three/internal/provider"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

// Handlers proxies tile requests to the configured providers.
type Handlers struct {
	config    *config.Config
	logger    *zap.Logger
	providers map[string]provider.Provider
}

func New(config *config.Config, logger *zap.Logger, providers map[string]provider.Provider) *Handlers {
	return &Handlers{
		config:    config,
		logger:    logger,
		providers: providers,
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else if origin == "" {
			allowedOrigin = "*"
		} else {
			host := r.Host
			if strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
				allowedOrigin = origin
			}
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleTiles serves /tiles/{provider}/{z}/{x}/{y}.{ext}.
func (h *Handlers) HandleTiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/tiles/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		http.NotFound(w, r)
		return
	}

	p, ok := h.providers[parts[0]]
	if !ok {
		http.Error(w, "Unknown provider", http.StatusNotFound)
		return
	}

	var z, x, y int
	if _, err := fmt.Sscanf(parts[1], "%d", &z); err != nil {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}
	if _, err := fmt.Sscanf(parts[2], "%d", &x); err != nil {
		http.Error(w, "Invalid x coordinate", http.StatusBadRequest)
		return
	}

	ext := filepath.Ext(parts[3])
	if _, err := fmt.Sscanf(strings.TrimSuffix(parts[3], ext), "%d", &y); err != nil {
		http.Error(w, "Invalid y coordinate", http.StatusBadRequest)
		return
	}

	format := strings.TrimPrefix(ext, ".")
	if format == "jpg" {
		format = "jpeg"
	}
	if format != "jpeg" && format != "png" {
		http.Error(w, "Invalid format", http.StatusBadRequest)
		return
	}

	addr, err := tile.New(z, x, y)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The fetch is tied to the request context, so a client that goes away
	// cancels the upstream transport.
	ctx := r.Context()
	if h.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.FetchTimeout)
		defer cancel()
	}

	img, err := p.FetchTile(ctx, addr).Wait(ctx)
	if err != nil {
		h.logger.Error("Failed to fetch tile",
			zap.String("provider", p.Name()),
			zap.String("tile", addr.String()),
			zap.Error(err),
		)
		http.Error(w, "Failed to fetch tile", http.StatusBadGateway)
		return
	}

	switch format {
	case "png":
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, img); err != nil {
			h.logger.Warn("Failed to write tile", zap.Error(err))
		}
	default:
		w.Header().Set("Content-Type", "image/jpeg")
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 82}); err != nil {
			h.logger.Warn("Failed to write tile", zap.Error(err))
		}
	}
}

// HandleMetadata serves /metadata/{provider} for providers whose upstream
// service exposes a metadata document.
func (h *Handlers) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/metadata/"), "/")
	p, ok := h.providers[name]
	if !ok {
		http.Error(w, "Unknown provider", http.StatusNotFound)
		return
	}

	mp, ok := p.(provider.MetadataProvider)
	if !ok {
		http.Error(w, "Provider has no metadata", http.StatusNotFound)
		return
	}

	doc, err := mp.Metadata(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch metadata", zap.String("provider", name), zap.Error(err))
		http.Error(w, "Failed to fetch metadata", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// HandleProviders lists the configured providers and their zoom ranges.
func (h *Handlers) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type info struct {
		Name     string `json:"name"`
		TileSize int    `json:"tile_size"`
		MinZoom  int    `json:"min_zoom"`
		MaxZoom  int    `json:"max_zoom"`
		Metadata bool   `json:"metadata"`
	}

	list := make([]info, 0, len(h.providers))
	for name, p := range h.providers {
		min, max := p.ZoomRange()
		_, hasMeta := p.(provider.MetadataProvider)
		list = append(list, info{
			Name:     name,
			TileSize: p.TileSize(),
			MinZoom:  min,
			MaxZoom:  max,
			Metadata: hasMeta,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
