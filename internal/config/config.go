// Package config reads service settings from environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/database"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/logger"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Port       string
	CORSOrigin string

	LogLevel  string
	LogFormat string

	StoreBackend string
	DB           database.Config

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
	RedisMaxRetries int

	KafkaBrokers          []string
	KafkaSensorTopic      string
	KafkaSensorGroup      string
	KafkaReservationTopic string

	MongoURI         string
	MongoDatabase    string
	MongoConnTimeout time.Duration

	FacilitiesFile string

	RateLimitRPS   float64
	RateLimitBurst int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log *logger.Logger
}

// FromEnv reads every setting, applying defaults for unset variables.
func FromEnv() *Config {
	return &Config{
		Port:       getEnvStr("PORT", "3000"),
		CORSOrigin: getEnvStr("CORS_ORIGIN", "*"),

		LogLevel:  getEnvStr("LOG_LEVEL", logger.INFO),
		LogFormat: getEnvStr("LOG_FORMAT", logger.JSON),

		StoreBackend: strings.ToLower(getEnvStr("STORE_BACKEND", BackendMemory)),
		DB: database.Config{
			Host:     getEnvStr("DB_HOST", "localhost"),
			Port:     getEnvStr("DB_PORT", "5432"),
			User:     getEnvStr("DB_USER", "postgres"),
			Password: getEnvStr("DB_PASSWORD", "postgres"),
			DBName:   getEnvStr("DB_NAME", "gymcapacity"),
			SSLMode:  getEnvStr("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvNum("DB_MAX_CONNS", 20)),
		},

		RedisAddr:       getEnvStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnvStr("REDIS_PASSWORD", ""),
		RedisDB:         getEnvNum("REDIS_DB", 0),
		RedisPrefix:     getEnvStr("REDIS_PREFIX", "gym"),
		RedisMaxRetries: getEnvNum("REDIS_MAX_RETRIES", 64),

		KafkaBrokers:          getEnvList("KAFKA_BROKERS"),
		KafkaSensorTopic:      getEnvStr("KAFKA_SENSOR_TOPIC", "facility-sensor-readings"),
		KafkaSensorGroup:      getEnvStr("KAFKA_SENSOR_GROUP", "gym-capacity"),
		KafkaReservationTopic: getEnvStr("KAFKA_RESERVATION_TOPIC", ""),

		MongoURI:         getEnvStr("MONGO_URI", ""),
		MongoDatabase:    getEnvStr("MONGO_DATABASE", "gymcapacity"),
		MongoConnTimeout: getEnvDuration("MONGO_CONN_TIMEOUT", 10*time.Second),

		FacilitiesFile: getEnvStr("FACILITIES_FILE", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvNum("RATE_LIMIT_BURST", 10),

		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Load reads the environment, builds the logger and exits on invalid settings.
func Load(serviceName string) *Config {
	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: false,
		Service:   serviceName,
	})

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// Validate reports every invalid setting at once.
func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errors = append(errors, fmt.Sprintf("STORE_BACKEND must be one of memory, postgres, redis, got: %s", cfg.StoreBackend))
	}

	if cfg.StoreBackend == BackendRedis && cfg.RedisAddr == "" {
		errors = append(errors, "REDIS_ADDR cannot be empty when STORE_BACKEND=redis")
	}
	if cfg.RedisMaxRetries <= 0 {
		errors = append(errors, fmt.Sprintf("REDIS_MAX_RETRIES must be positive, got: %d", cfg.RedisMaxRetries))
	}

	if cfg.MongoURI != "" && !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MONGO_URI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
	}
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MONGO_CONN_TIMEOUT must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if cfg.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("RATE_LIMIT_RPS must be positive, got: %g", cfg.RateLimitRPS))
	}
	if cfg.RateLimitBurst <= 0 {
		errors = append(errors, fmt.Sprintf("RATE_LIMIT_BURST must be positive, got: %d", cfg.RateLimitBurst))
	}

	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("READ_TIMEOUT must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WRITE_TIMEOUT must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IDLE_TIMEOUT must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("SHUTDOWN_TIMEOUT must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}
	return nil
}

// SensorFeedEnabled reports whether the Kafka sensor consumer should run.
func (cfg *Config) SensorFeedEnabled() bool {
	return len(cfg.KafkaBrokers) > 0 && cfg.KafkaSensorTopic != ""
}

// ReservationEventsEnabled reports whether admitted reservations are published.
func (cfg *Config) ReservationEventsEnabled() bool {
	return len(cfg.KafkaBrokers) > 0 && cfg.KafkaReservationTopic != ""
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"port", cfg.Port,
		"cors_origin", cfg.CORSOrigin,
		"store_backend", cfg.StoreBackend,
		"db_host", cfg.DB.Host,
		"db_name", cfg.DB.DBName,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_sensor_topic", cfg.KafkaSensorTopic,
		"kafka_reservation_topic", cfg.KafkaReservationTopic,
		"mongo_uri", redactURI(cfg.MongoURI),
		"facilities_file", cfg.FacilitiesFile,
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

var credentialRegex = regexp.MustCompile(`(://)[^:/@]+:[^@]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
