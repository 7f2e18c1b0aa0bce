package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey     string
	PerplexityAPIKey string
	DatabaseURL      string
	HTTPPort         string
	LogLevel         string
	JWTSecret        string

	// Analytical thresholds. The defaults mirror the values the analysis
	// pipeline was calibrated with; deployments can tune them without a rebuild.
	AnomalyMinSamples     int
	AnomalyContamination  float64
	AnomalySeed           int64
	CorrelationMinOverlap int
	MinCorrelation        float64
	ForecastMinPoints     int
	ForecastDays          int
	LookbackDays          int
	SimilarityFloor       float64
	JournalTopK           int

	// Orchestration limits.
	ToolTimeout   time.Duration
	GlobalTimeout time.Duration
	MemoryWindow  int
	MaxSessions   int
	InsightTTL    time.Duration
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		PerplexityAPIKey: getEnv("PERPLEXITY_API_KEY", ""),
		DatabaseURL:      getEnv("DATABASE_URL", "axion_health.db"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:        getEnv("JWT_SECRET", ""),

		AnomalyMinSamples:     getEnvAsInt("ANOMALY_MIN_SAMPLES", 7),
		AnomalyContamination:  getEnvAsFloat("ANOMALY_CONTAMINATION", 0.1),
		AnomalySeed:           int64(getEnvAsInt("ANOMALY_SEED", 42)),
		CorrelationMinOverlap: getEnvAsInt("CORRELATION_MIN_OVERLAP", 5),
		MinCorrelation:        getEnvAsFloat("MIN_CORRELATION", 0.3),
		ForecastMinPoints:     getEnvAsInt("FORECAST_MIN_POINTS", 14),
		ForecastDays:          getEnvAsInt("FORECAST_DAYS", 7),
		LookbackDays:          getEnvAsInt("LOOKBACK_DAYS", 30),
		SimilarityFloor:       getEnvAsFloat("SIMILARITY_FLOOR", 0.3),
		JournalTopK:           getEnvAsInt("JOURNAL_TOP_K", 5),

		ToolTimeout:   time.Duration(getEnvAsInt("TOOL_TIMEOUT_SECONDS", 10)) * time.Second,
		GlobalTimeout: time.Duration(getEnvAsInt("GLOBAL_TIMEOUT_SECONDS", 15)) * time.Second,
		MemoryWindow:  getEnvAsInt("MEMORY_WINDOW", 20),
		MaxSessions:   getEnvAsInt("MAX_SESSIONS", 1024),
		InsightTTL:    time.Duration(getEnvAsInt("INSIGHT_TTL_SECONDS", 300)) * time.Second,
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
