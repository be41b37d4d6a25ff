package config

import (
	"os"
	"time"
)

// Config - настройки mock API сервера, читаются из окружения.
type Config struct {
	Port        string
	DatabaseURL string // пусто - используется in-memory репозиторий
	Latency     time.Duration
}

func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Latency:     getEnvDuration("LATENCY", time.Second),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
