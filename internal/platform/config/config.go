package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "nutridash/pkg/platform/strings"
)

// Store backends understood by the document store factory.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Write policies for the record cache.
const (
	WritePolicyOptimistic = "optimistic"
	WritePolicyRefetch    = "refetch"
)

// Server captures everything the binaries need to wire the dashboard.
type Server struct {
	Addr         string
	StoreBackend string
	Collection   string
	PageSize     int
	SessionTTL   time.Duration
	WritePolicy  string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Log         LogConfig
}

// RedisConfig holds pool settings for the Redis-backed document store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the record change publisher. Empty Brokers
// disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		Addr:         getEnv("NUTRIDASH_ADDR", ":8080"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		Collection:   getEnv("COLLECTION", "nutritionData"),
		PageSize:     getEnvAsInt("PAGE_SIZE", 8),
		SessionTTL:   getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		WritePolicy:  strings.ToLower(getEnv("WRITE_POLICY", WritePolicyOptimistic)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "nutrition.changes"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate ensures the selected backend has what it needs.
func (c Server) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the %s backend", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Collection == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	switch c.WritePolicy {
	case WritePolicyOptimistic, WritePolicyRefetch:
	default:
		return fmt.Errorf("unknown WRITE_POLICY %q", c.WritePolicy)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
