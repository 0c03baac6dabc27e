package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	StoreDir string
	LogLevel string
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	return &Config{
		StoreDir: getEnv("STORE_DIR", "/var/lib/layerstore"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
