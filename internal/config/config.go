package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port         string
	DatabaseFile string
	LogLevel     string

	// S3
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// HuggingFace inference. An empty API key is a valid configuration:
	// explanation generation then runs on the deterministic fallback.
	HuggingFaceAPIKey string
	HuggingFaceModel  string

	// OCR
	TesseractBinary   string
	TesseractLanguage string

	// Auth
	JWTSecret string

	// Upload limits
	MaxFileSize int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseFile:      getEnv("DATABASE_FILE", "data/reports.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		S3Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:      getEnv("S3_BUCKET_NAME", "reports"),
		S3UseSSL:          getEnv("S3_USE_SSL", "false") == "true",
		HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
		HuggingFaceModel:  getEnv("HUGGINGFACE_MODEL", "google/flan-t5-base"),
		TesseractBinary:   getEnv("TESSERACT_BINARY", "tesseract"),
		TesseractLanguage: getEnv("TESSERACT_LANG", "eng"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 10*1024*1024),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
