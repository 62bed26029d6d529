package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all runtime configuration, resolved once at startup from the
// environment with development defaults.
type Config struct {
	Port    string
	DataDir string

	// Artifact paths. The model, scaler and background set are fitted during
	// training and persisted; they are never refit at inference time.
	ModelPath      string
	ScalerPath     string
	BackgroundPath string

	// BackgroundSample bounds the background rows used by the sampling-based
	// attribution path to keep latency acceptable.
	BackgroundSample int

	// ExplainSeed fixes the RNG seed for the sampling-based explainers so that
	// repeated explanations of the same record are reproducible.
	ExplainSeed int64

	// ExplainTimeout bounds a single attribution computation.
	ExplainTimeout time.Duration

	RedisAddr string
	CacheTTL  time.Duration

	AllowedOrigins []string
	IPLimitPerMin  int
}

// Load resolves configuration from the environment.
func Load() Config {
	dataDir := getEnvOrDefault("DATA_DIR", "./data")

	return Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		DataDir:          dataDir,
		ModelPath:        getEnvOrDefault("MODEL_PATH", filepath.Join(dataDir, "model.json")),
		ScalerPath:       getEnvOrDefault("SCALER_PATH", filepath.Join(dataDir, "scaler.json")),
		BackgroundPath:   getEnvOrDefault("BACKGROUND_PATH", filepath.Join(dataDir, "background.csv")),
		BackgroundSample: getEnvIntOrDefault("BACKGROUND_SAMPLE", 100),
		ExplainSeed:      int64(getEnvIntOrDefault("EXPLAIN_SEED", 42)),
		ExplainTimeout:   getEnvDurationOrDefault("EXPLAIN_TIMEOUT", 10*time.Second),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		CacheTTL:         getEnvDurationOrDefault("CACHE_TTL", 15*time.Minute),
		AllowedOrigins:   []string{getEnvOrDefault("CORS_ORIGIN", "http://localhost:3000")},
		IPLimitPerMin:    getEnvIntOrDefault("IP_LIMIT_PER_MIN", 60),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
