package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv          string
	GeminiAPIKey    string
	GeminiBaseURL   string
	VideoModel      string
	OutputKey       string
	StoragePath     string
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	PollTimeout     time.Duration
	HTTPTimeout     time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. The API key is not validated here: the CLI may
// supply it via flag, and requiredness is enforced at the entrypoint.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VideoModel:      getEnv("VEO_MODEL", "veo-3.0-generate-preview"),
		OutputKey:       getEnv("VIDEO_OUTPUT", "style_example.mp4"),
		StoragePath:     getEnv("STORAGE_PATH", "."),
		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 10)),
		PollMaxInterval: time.Second * time.Duration(getEnvInt("POLL_MAX_INTERVAL_SECONDS", 60)),
		PollTimeout:     time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 600)),
		HTTPTimeout:     time.Second * time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 60)),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}

	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("POLL_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
