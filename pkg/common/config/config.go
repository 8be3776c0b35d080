package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	ImportServicePort    string
	ReportsServicePort   string
	AnalyticsServicePort string
	IdentityServicePort  string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers        []string
	KafkaGroupID        string
	AnalyticsEventTopic string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// Import pipeline
	ImportMaxPayloadBytes  int64 // hard server-side ceiling
	ImportSoftUploadBytes  int64 // UI-facing cap for multipart uploads
	ImportRulesPath        string
	ImportRefreshAttempts  int
	ImportDefaultVersion   string

	// Reports
	ReportsCacheTTL time.Duration

	// Rate limiting
	RateLimitMax    int
	RateLimitWindow time.Duration
}

func Load() *Config {
	return &Config{
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		ImportServicePort:    getEnv("IMPORT_SERVICE_PORT", "8081"),
		ReportsServicePort:   getEnv("REPORTS_SERVICE_PORT", "8082"),
		AnalyticsServicePort: getEnv("ANALYTICS_SERVICE_PORT", "8083"),
		IdentityServicePort:  getEnv("IDENTITY_SERVICE_PORT", "8084"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pickwire"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pickwire123"),
		PostgresDB:       getEnv("POSTGRES_DB", "pickwire"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "pickwire-platform"),
		AnalyticsEventTopic: getEnv("ANALYTICS_EVENT_TOPIC", "analytics-events"),

		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me-please"),
		JWTIssuer:   getEnv("JWT_ISSUER", "pickwire"),
		JWTAudience: getEnv("JWT_AUDIENCE", "pickwire-admin"),
		JWTTTL:      getDuration("JWT_TTL", 12*time.Hour),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),

		ImportMaxPayloadBytes: int64(getIntEnv("IMPORT_MAX_PAYLOAD_BYTES", 5*1024*1024)),
		ImportSoftUploadBytes: int64(getIntEnv("IMPORT_SOFT_UPLOAD_BYTES", 2*1024*1024)),
		ImportRulesPath:       getEnv("IMPORT_RULES_PATH", ""),
		ImportRefreshAttempts: getIntEnv("IMPORT_REFRESH_ATTEMPTS", 3),
		ImportDefaultVersion:  getEnv("IMPORT_DEFAULT_VERSION", "v1"),

		ReportsCacheTTL: getDuration("REPORTS_CACHE_TTL", 5*time.Minute),

		RateLimitMax:    getIntEnv("RATE_LIMIT_MAX", 60),
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
