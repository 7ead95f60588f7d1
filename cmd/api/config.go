package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/printflow/job-lifecycle/pkg/kafka"
	"github.com/printflow/job-lifecycle/pkg/mongodb"
)

const (
	backendMongoDB = "mongodb"
	backendSQLite  = "sqlite"
)

// Config holds application configuration
type Config struct {
	ServerAddr     string
	RequestTimeout time.Duration
	StoreBackend   string
	SQLitePath     string
	MongoDB        *mongodb.Config
	Kafka          *kafka.Config
	KafkaTopic     string

	KafkaBridgeEnabled bool
	OutboxPollInterval time.Duration

	OTLPEndpoint   string
	TracingEnabled bool
	Environment    string
	LogLevel       string

	StrictStageOrder       bool
	StatsCacheTTL          time.Duration
	NotifierResyncInterval time.Duration
	NotifierBuffer         int

	OpenAPIValidation     bool
	EventSchemaValidation bool
}

func loadConfig() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092"))

	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", "printflow_jobs")

	cfg := &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8080"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", backendMongoDB)),
		SQLitePath:     getEnv("SQLITE_PATH", "job-lifecycle.db"),
		MongoDB:        mongoConfig,
		Kafka:          kafkaConfig,
		KafkaTopic:     getEnv("KAFKA_TOPIC", kafka.DefaultTopic),

		KafkaBridgeEnabled: getBool("KAFKA_BRIDGE_ENABLED", true),
		OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", time.Second),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getBool("TRACING_ENABLED", false),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		StrictStageOrder:       getBool("STRICT_STAGE_ORDER", false),
		StatsCacheTTL:          getDuration("STATS_CACHE_TTL", 5*time.Second),
		NotifierResyncInterval: getDuration("NOTIFIER_RESYNC_INTERVAL", 30*time.Second),
		NotifierBuffer:         getInt("NOTIFIER_BUFFER", 64),

		OpenAPIValidation:     getBool("OPENAPI_VALIDATION", false),
		EventSchemaValidation: getBool("EVENT_SCHEMA_VALIDATION", false),
	}

	switch cfg.StoreBackend {
	case backendMongoDB, backendSQLite:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q (want %s or %s)", cfg.StoreBackend, backendMongoDB, backendSQLite)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must name at least one broker")
	}
	return cfg, nil
}

// loadEnvFiles seeds the environment from .env and CONFIG_FILE. Neither
// overrides a variable that is already set.
func loadEnvFiles() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return nil
	}
	defaults, err := readConfigFile(path)
	if err != nil {
		return err
	}
	for key, value := range defaults {
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to apply %s from %s: %w", key, path, err)
			}
		}
	}
	return nil
}

// readConfigFile parses a flat YAML mapping of config keys to scalars
func readConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				parts = append(parts, fmt.Sprint(p))
			}
			out[strings.ToUpper(key)] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config file %s: key %s must be a scalar or list", path, key)
		default:
			out[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, defaultValue.String()))
	if err != nil {
		return defaultValue
	}
	return v
}
