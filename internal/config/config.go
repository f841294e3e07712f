package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	Port            string
	UpstreamURL     string
	UpstreamTimeout time.Duration
	SessionTTL      time.Duration
	AllowedOrigins  []string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8082"),
		UpstreamURL:     getEnv("UPSTREAM_URL", "http://localhost:8080/api"),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		SessionTTL:      getDuration("SESSION_TTL", 30*time.Minute),
		AllowedOrigins:  getList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
