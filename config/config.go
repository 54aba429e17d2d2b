package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string
	Port                          int
	LogLevel                      string
	PrettyLogs                    bool
	HttpServerWriteTimeoutSeconds int
	HttpServerReadTimeoutSeconds  int
	HttpServerIdleTimeoutSeconds  int
	AllowOrigins                  []string
	AllowMethods                  []string
	StartupMaxAttempts            int

	// PostgreSQL
	DatabaseDriver                string
	DatabaseHost                  string
	DatabasePort                  string
	DatabaseUserName              string
	DatabasePassword              string
	DatabaseName                  string
	DatabaseSSLMode               string
	DatabaseMaxOpenConns          int
	DatabaseMaxIdleConns          int
	DatabaseConnMaxLifetime       time.Duration
	DatabaseMigrationFolderPath   string
	DatabaseMigrationVersion      int
	DatabaseMigrationForce        int
	DatabaseMigrationAutoRollback bool

	// Auth
	AuthEnabled   bool
	AuthIssuerURL string
	AuthClientID  string

	// Redis (dashboard cache)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	DashboardTTL  time.Duration

	// Kafka (realtime notifications)
	KafkaEnabled           bool
	KafkaBrokers           []string
	KafkaNotificationTopic string
	KafkaBatchSize         int
	KafkaBatchTimeout      time.Duration
	KafkaRequiredAcks      int
	KafkaCompression       string

	// Object storage (uploads)
	StorageEndpoint       string
	StorageAccessKey      string
	StorageSecretKey      string
	StorageBucket         string
	StorageUseSSL         bool
	StorageSignedURLTTL   time.Duration

	// Tracing
	TracingEnabled      bool
	TracingOTLPEndpoint string
	TracingOTLPProtocol string

	// Workflow
	TicketSLAHours int
}

// Load reads configuration from the environment. A .env file is honored for
// local development; real deployments set the variables directly.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:                       getenv("APP_NAME", "laurel-api"),
		Port:                          getenvInt("PORT", 3004),
		LogLevel:                      getenv("LOG_LEVEL", "info"),
		PrettyLogs:                    getenvBool("PRETTY_LOGS", false),
		HttpServerWriteTimeoutSeconds: getenvInt("HTTP_SERVER_WRITE_TIMEOUT_SECONDS", 10),
		HttpServerReadTimeoutSeconds:  getenvInt("HTTP_SERVER_READ_TIMEOUT_SECONDS", 10),
		HttpServerIdleTimeoutSeconds:  getenvInt("HTTP_SERVER_IDLE_TIMEOUT_SECONDS", 10),
		AllowOrigins:                  getenvList("HTTP_SERVER_ALLOW_ORIGINS", "*"),
		AllowMethods:                  getenvList("HTTP_SERVER_ALLOW_METHODS", "GET,POST,PUT,PATCH,DELETE"),
		StartupMaxAttempts:            getenvInt("STARTUP_MAX_ATTEMPTS", 5),

		DatabaseDriver:                getenv("DB_DRIVER", "postgres"),
		DatabaseHost:                  getenv("DB_HOST", "localhost"),
		DatabasePort:                  getenv("DB_PORT", "5432"),
		DatabaseUserName:              getenv("DB_USER_NAME", ""),
		DatabasePassword:              getenv("DB_PASSWORD", ""),
		DatabaseName:                  getenv("DB_NAME", "laurel"),
		DatabaseSSLMode:               getenv("DB_SSL_MODE", "disable"),
		DatabaseMaxOpenConns:          getenvInt("DB_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns:          getenvInt("DB_MAX_IDLE_CONNS", 10),
		DatabaseConnMaxLifetime:       getenvDuration("DB_CONN_MAX_LIFETIME", 10*time.Second),
		DatabaseMigrationFolderPath:   getenv("DB_MIGRATION_FOLDER_PATH", "db/pg"),
		DatabaseMigrationVersion:      getenvInt("DB_MIGRATION_VERSION", 0),
		DatabaseMigrationForce:        getenvInt("DB_MIGRATION_FORCE", 0),
		DatabaseMigrationAutoRollback: getenvBool("DB_MIGRATION_AUTO_ROLLBACK", true),

		AuthEnabled:   getenvBool("AUTH_ENABLED", false),
		AuthIssuerURL: getenv("AUTH_ISSUER_URL", ""),
		AuthClientID:  getenv("AUTH_CLIENT_ID", ""),

		RedisHost:     getenv("REDIS_HOST", "localhost"),
		RedisPort:     getenvInt("REDIS_PORT", 6379),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),
		DashboardTTL:  getenvDuration("DASHBOARD_CACHE_TTL", 30*time.Second),

		KafkaEnabled:           getenvBool("KAFKA_ENABLED", true),
		KafkaBrokers:           getenvList("KAFKA_BROKERS", "localhost:9092"),
		KafkaNotificationTopic: getenv("KAFKA_NOTIFICATION_TOPIC", "laurel-notifications"),
		KafkaBatchSize:         getenvInt("KAFKA_BATCH_SIZE", 100),
		KafkaBatchTimeout:      getenvDuration("KAFKA_BATCH_TIMEOUT", 100*time.Millisecond),
		KafkaRequiredAcks:      getenvInt("KAFKA_REQUIRED_ACKS", 1),
		KafkaCompression:       getenv("KAFKA_COMPRESSION", "snappy"),

		StorageEndpoint:     getenv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey:    getenv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey:    getenv("STORAGE_SECRET_KEY", ""),
		StorageBucket:       getenv("STORAGE_BUCKET", "laurel-uploads"),
		StorageUseSSL:       getenvBool("STORAGE_USE_SSL", false),
		StorageSignedURLTTL: getenvDuration("STORAGE_SIGNED_URL_TTL", 15*time.Minute),

		TracingEnabled:      getenvBool("TRACING_ENABLED", false),
		TracingOTLPEndpoint: getenv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
		TracingOTLPProtocol: getenv("TRACING_OTLP_PROTOCOL", "grpc"),

		TicketSLAHours: getenvInt("TICKET_SLA_HOURS", 24),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvList(key, fallback string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
