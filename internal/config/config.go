package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the settings for the demo pipeline binary
type Config struct {
	CollectorEndpoint string
	EnterpriseEnabled bool
	StorageBackend    string // "memory", "postgres" or "redis"
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	FlushSchedule     string // robfig/cron spec with seconds
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Load reads configuration from the environment
func Load() (Config, error) {
	cfg := Config{
		CollectorEndpoint: getenv("COLLECTOR_ENDPOINT", "https://console.phishguard.example/api/v1/alerts"),
		EnterpriseEnabled: getenvBool("ENTERPRISE_ENABLED", false),
		StorageBackend:    strings.ToLower(getenv("STORAGE_BACKEND", "memory")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getenvInt("REDIS_DB", 0),
		FlushSchedule:     os.Getenv("FLUSH_SCHEDULE"),
	}

	switch cfg.StorageBackend {
	case "memory", "redis":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL required for postgres storage backend")
		}
	default:
		return cfg, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}
