// Package config holds the engine's environment-variable configuration:
// dataset roots, worker counts and grid/returns resolutions. There is no
// config file parser here, matching the engine's own minimal footprint —
// every operator knob is an env var with a sane default.
package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"time"
)

// env returns the value of key, or def if unset or empty.
func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// mustEnv fetches key or terminates the process — used only for settings
// that have no safe default (e.g. the tick dataset's source root).
func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("environment variable %s is required", key)
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Config is the engine's runtime configuration, loaded once at process
// startup.
type Config struct {
	TickRoot     string // raw upstream tick dataset root (required)
	GridRoot     string // grid dataset root
	MetadataRoot string // metadata dataset root

	GridInterval     time.Duration
	ReturnsInterval  time.Duration
	MetadataInterval time.Duration

	NumWorkers   int
	DaysPerBatch int
}

// Load reads Config from the environment. TICK_ROOT is required; everything
// else falls back to a default tuned for a single-machine research run.
func Load() Config {
	return Config{
		TickRoot:         mustEnv("TICK_ROOT"),
		GridRoot:         env("GRID_ROOT", "./data/grid"),
		MetadataRoot:     env("METADATA_ROOT", "./data/metadata"),
		GridInterval:     envDuration("GRID_INTERVAL", time.Hour),
		ReturnsInterval:  envDuration("RETURNS_INTERVAL", 10*time.Minute),
		MetadataInterval: envDuration("METADATA_GRID_INTERVAL", time.Hour),
		NumWorkers:       envInt("NUM_WORKERS", defaultWorkerCount()),
		DaysPerBatch:     envInt("DAYS_PER_BATCH", 30),
	}
}

func defaultWorkerCount() int {
	cpus := runtime.NumCPU()
	if cpus > 8 {
		return 8
	}
	return cpus
}
