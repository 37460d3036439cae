// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an
// error. A .env file, when present, overlays the system environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the feed service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	PageSize           int // items per search page
	GateTimeoutMs      int // asset readiness gate bound
	VisibleBatch       int // leading items whose images gate the commit
	SparseThreshold    int // primary count below which expansion applies
	ExpandedRadiusKm   float64
	SnapshotTTLMinutes int

	WarmIntervalMinutes int // how often the snapshot warmer fires
	WarmTopN            int // recent queries re-warmed per tick
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("FEED_PORT")
	if port == "" {
		port = "8083"
	}

	cfg := &Config{
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		PageSize:            20,
		GateTimeoutMs:       2500,
		VisibleBatch:        8,
		SparseThreshold:     30,
		ExpandedRadiusKm:    100,
		SnapshotTTLMinutes:  3,
		WarmIntervalMinutes: 2,
		WarmTopN:            20,
	}

	overrides := []struct {
		env string
		dst *int
	}{
		{"FEED_PAGE_SIZE", &cfg.PageSize},
		{"FEED_GATE_TIMEOUT_MS", &cfg.GateTimeoutMs},
		{"FEED_VISIBLE_BATCH", &cfg.VisibleBatch},
		{"FEED_SPARSE_THRESHOLD", &cfg.SparseThreshold},
		{"FEED_SNAPSHOT_TTL_MINUTES", &cfg.SnapshotTTLMinutes},
		{"FEED_WARM_INTERVAL_MINUTES", &cfg.WarmIntervalMinutes},
		{"FEED_WARM_TOP_N", &cfg.WarmTopN},
	}
	for _, o := range overrides {
		s := os.Getenv(o.env)
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("%s must be a positive integer, got %q", o.env, s)
		}
		*o.dst = v
	}

	if s := os.Getenv("FEED_EXPANDED_RADIUS_KM"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("FEED_EXPANDED_RADIUS_KM must be a positive number, got %q", s)
		}
		cfg.ExpandedRadiusKm = v
	}

	return cfg, nil
}
