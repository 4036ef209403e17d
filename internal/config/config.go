package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	DatabaseURL     string
	UseMemoryStores bool
	UseMemoryQueue  bool
	WorkerCount     int

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Dialogue state persistence: "redis", "dynamodb" or "memory"
	StateBackend       string
	DialogueStateTable string
	DialogueStateTTL   time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	TurnQueueURL        string
	OutcomeQueueURL     string
	EventsQueueURL      string

	// Slot extraction
	LLMProvider      string
	GeminiAPIKey     string
	GeminiModelID    string
	BedrockModelID   string
	ExtractorTimeout time.Duration

	GoogleCalendarCredentialsFile string

	CatalogCacheTTL          time.Duration
	CatalogSeedFile          string
	BookingCommitMaxAttempts int
	BookingCommitBackoff     time.Duration
	MaxSlotsToPresent        int

	ServiceJWTSecret string
	RateLimitRPS     float64
	RateLimitBurst   int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		UseMemoryStores: getEnvAsBool("USE_MEMORY_STORES", false),
		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		StateBackend:       strings.ToLower(strings.TrimSpace(getEnv("STATE_BACKEND", "redis"))),
		DialogueStateTable: getEnv("DIALOGUE_STATE_TABLE", "booking_dialogue_state"),
		DialogueStateTTL:   getEnvAsDuration("DIALOGUE_STATE_TTL", 7*24*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		TurnQueueURL:        getEnv("TURN_QUEUE_URL", ""),
		OutcomeQueueURL:     getEnv("OUTCOME_QUEUE_URL", ""),
		EventsQueueURL:      getEnv("EVENTS_QUEUE_URL", ""),

		LLMProvider:      strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		ExtractorTimeout: getEnvAsDuration("EXTRACTOR_TIMEOUT", 8*time.Second),

		GoogleCalendarCredentialsFile: getEnv("GOOGLE_CALENDAR_CREDENTIALS_FILE", ""),

		CatalogCacheTTL:          getEnvAsDuration("CATALOG_CACHE_TTL", time.Minute),
		CatalogSeedFile:          getEnv("CATALOG_SEED_FILE", ""),
		BookingCommitMaxAttempts: getEnvAsInt("BOOKING_COMMIT_MAX_ATTEMPTS", 3),
		BookingCommitBackoff:     getEnvAsDuration("BOOKING_COMMIT_BACKOFF", 50*time.Millisecond),
		MaxSlotsToPresent:        getEnvAsInt("MAX_SLOTS_TO_PRESENT", 6),

		ServiceJWTSecret: getEnv("SERVICE_JWT_SECRET", ""),
		RateLimitRPS:     getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:   getEnvAsInt("RATE_LIMIT_BURST", 40),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
