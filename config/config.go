package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret     = "jwt-secret"
	defaultAdminPassword = "admin"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Store     StoreConfig
	Shop      ShopConfig
	JWT       JWTConfig
	Log       LogConfig
	Kafka     KafkaConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	HTTPPort     int
	GRpcPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type PostgresConfig struct {
	DSN string
}

type StoreConfig struct {
	Driver        string
	RevenueDriver string
	KeyPrefix     string
	MaxTxRetries  int
}

type ShopConfig struct {
	Timezone          string
	AdminPassword     string
	AdminPasswordHash string
	BlockedNames      []string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ConsumerGroupID      string
}

type NotifyConfig struct {
	Sink         string
	WebhookURL   string
	WebhookToken string
	DeviceIDs    []string
}

type RateLimitConfig struct {
	JoinPerMinute int
	JoinBurst     int
}

type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8080),
			GRpcPort:     getEnvAsInt("SERVER_GRPC_PORT", 50056),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		Store: StoreConfig{
			Driver:        getEnv("STORE_DRIVER", "redis"),
			RevenueDriver: getEnv("REVENUE_DRIVER", "redis"),
			KeyPrefix:     getEnv("STORE_KEY_PREFIX", "barberqueue"),
			MaxTxRetries:  getEnvAsInt("STORE_MAX_TX_RETRIES", 5),
		},
		Shop: ShopConfig{
			Timezone:          getEnv("SHOP_TIMEZONE", "Local"),
			AdminPassword:     getEnv("SHOP_ADMIN_PASSWORD", defaultAdminPassword),
			AdminPasswordHash: getEnv("SHOP_ADMIN_PASSWORD_HASH", ""),
			BlockedNames:      getEnvAsSlice("SHOP_BLOCKED_NAMES", nil),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", defaultJWTSecret),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 12*time.Hour),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "barberqueue"),
		},
		Notify: NotifyConfig{
			Sink:         getEnv("NOTIFY_SINK", "log"),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookToken: getEnv("NOTIFY_WEBHOOK_TOKEN", ""),
			DeviceIDs:    getEnvAsSlice("NOTIFY_DEVICE_IDS", nil),
		},
		RateLimit: RateLimitConfig{
			JoinPerMinute: getEnvAsInt("RATE_LIMIT_JOIN_PER_MIN", 20),
			JoinBurst:     getEnvAsInt("RATE_LIMIT_JOIN_BURST", 5),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "barberqueue"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}

	if c.Server.GRpcPort <= 0 || c.Server.GRpcPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRpcPort)
	}

	switch c.Store.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	switch c.Store.RevenueDriver {
	case "redis":
		if c.Store.Driver != "redis" {
			return fmt.Errorf("revenue driver redis requires store driver redis")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn is required for revenue driver postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown revenue driver: %q", c.Store.RevenueDriver)
	}

	switch c.Notify.Sink {
	case "", "log", "noop", "webhook":
	case "kafka":
		if !c.Kafka.Enabled {
			return fmt.Errorf("notify sink kafka requires KAFKA_ENABLED")
		}
	default:
		return fmt.Errorf("unknown notify sink: %q", c.Notify.Sink)
	}

	if _, err := time.LoadLocation(c.Shop.Timezone); err != nil {
		return fmt.Errorf("invalid shop timezone %q: %w", c.Shop.Timezone, err)
	}

	if c.Env == "production" {
		if c.JWT.Secret == "" || c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT secret must be set in production")
		}
		if c.Shop.AdminPasswordHash == "" && c.Shop.AdminPassword == defaultAdminPassword {
			return fmt.Errorf("admin password must be set in production")
		}
	}

	return nil
}

// Location returns the shop's calendar location. Validate has already
// rejected unknown zones.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Shop.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	// Split by comma
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
