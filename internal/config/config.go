package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          int
	LogLevel      string
	LogFormat     string
	AllowedOrigin string

	// Provider credentials and settings.
	BingAPIKey     string
	BingMapView    string
	MapTilerAPIKey string
	MapTilerStyle  string
	OSMServer      string

	FetchTimeout time.Duration
	FetchWorkers int
}

func Load() *Config {
	return &Config{
		Port:          getEnvInt("PORT", 8080),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", ""),

		BingAPIKey:     getEnv("BING_API_KEY", ""),
		BingMapView:    getEnv("BING_MAP_VIEW", "aerial"),
		MapTilerAPIKey: getEnv("MAPTILER_API_KEY", ""),
		MapTilerStyle:  getEnv("MAPTILER_STYLE", "satellite"),
		OSMServer:      getEnv("OSM_SERVER", ""),

		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchWorkers: getEnvInt("FETCH_WORKERS", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
