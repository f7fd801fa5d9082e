package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string
	SweepInterval  time.Duration
	RoomTTL        time.Duration
	OriginPatterns []string
}

// Load reads .env if present, then the environment, falling back to
// defaults that match production behavior.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:           envString("FLAGRUSH_ADDR", ":8080"),
		SweepInterval:  envDuration("FLAGRUSH_SWEEP_INTERVAL", time.Minute),
		RoomTTL:        envDuration("FLAGRUSH_ROOM_TTL", 30*time.Minute),
		OriginPatterns: envList("FLAGRUSH_ORIGINS", nil),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
