// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/stagebox/service/internal/storage"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// DatabaseURL enables the upload ledger when set.
	DatabaseURL string
	// JWTSecret enables bearer-token auth on the upload API when set.
	JWTSecret string

	Storage       storage.Config
	StoragePrefix string // key prefix for relayed objects, e.g. "uploads"

	UploadMaxFiles  int
	UploadMaxMemory int64 // multipart bytes held in memory before spilling to temp files
	UploadMaxBytes  int64 // whole request body
	UploadTimeout   time.Duration

	// EnvFileLoaded reports whether a .env file was read.
	EnvFileLoaded bool
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	loaded := godotenv.Load() == nil

	return &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		Storage: storage.Config{
			Driver:     getEnv("STORAGE_DRIVER", "minio"),
			Endpoint:   getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			Bucket:     getEnv("STORAGE_BUCKET", "uploads"),
			Region:     getEnv("STORAGE_REGION", "us-east-1"),
			UseSSL:     getEnv("STORAGE_USE_SSL", "false") == "true",
			PublicBase: getEnv("STORAGE_PUBLIC_BASE", "http://localhost:9000/uploads"),
		},
		StoragePrefix: getEnv("STORAGE_PREFIX", ""),

		UploadMaxFiles:  getEnvInt("UPLOAD_MAX_FILES", 15),
		UploadMaxMemory: int64(getEnvInt("UPLOAD_MAX_MEMORY_MB", 32)) << 20,
		UploadMaxBytes:  int64(getEnvInt("UPLOAD_MAX_BYTES_MB", 1024)) << 20,
		UploadTimeout:   getEnvDuration("UPLOAD_TIMEOUT", 5*time.Minute),

		EnvFileLoaded: loaded,
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
