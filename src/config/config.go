package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	DatabasePath string
	LogLevel     string

	APIAuthSecret string

	UploadDir          string
	MaxUploadSizeBytes int64

	// Embedding / LLM collaborator settings. The Gemini API key is read by
	// the genai client from GEMINI_API_KEY / GOOGLE_API_KEY directly.
	EmbeddingModel string
	AnswerModel    string
	EmbeddingDim   int

	ChunkSize    int
	ChunkOverlap int

	MetricsCacheExpiry  time.Duration
	MetricsCacheCleanup time.Duration
}

func Load() *AppConfig {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	apiAuthSecret := getEnv("API_AUTH_SECRET", "a-very-secure-32-byte-long-key-must-be-32-bytes!")
	if apiAuthSecret == "a-very-secure-32-byte-long-key-must-be-32-bytes!" {
		log.Println("WARNING: Using default insecure API_AUTH_SECRET. Set API_AUTH_SECRET environment variable for production.")
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "26214400")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 25MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 25 * 1024 * 1024
	}

	cfg := &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./fundsight.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		APIAuthSecret: apiAuthSecret,

		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSizeBytes: maxUploadSizeBytes,

		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		AnswerModel:    getEnv("ANSWER_MODEL", "gemini-2.0-flash"),
		EmbeddingDim:   getEnvAsInt("EMBEDDING_DIM", 768),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 500),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 50),

		MetricsCacheExpiry:  getEnvAsDuration("METRICS_CACHE_EXPIRY", 15*time.Minute),
		MetricsCacheCleanup: getEnvAsDuration("METRICS_CACHE_CLEANUP", 30*time.Minute),
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		log.Printf("WARNING: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d). Using defaults 500/50.", cfg.ChunkOverlap, cfg.ChunkSize)
		cfg.ChunkSize = 500
		cfg.ChunkOverlap = 50
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, EmbeddingModel=%s",
		cfg.Port, cfg.LogLevel, cfg.DatabasePath, cfg.EmbeddingModel)
	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
