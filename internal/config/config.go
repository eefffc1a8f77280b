package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// App describes the service identity reported by health endpoints.
type App struct {
	Name        string
	Version     string
	Description string
	Port        int
}

// HTTP holds HTTP server configuration.
type HTTP struct {
	Host string
	Port int
}

// GRPC holds gRPC server configuration.
type GRPC struct {
	Enabled bool
	Host    string
	Port    int
}

// Cache configures caching behavior and backend selection.
type Cache struct {
	Enabled    bool
	Driver     string
	DefaultTTL time.Duration
	Redis      Redis
}

// Redis contains redis-specific connection settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Messaging configures the message bus used by the application.
type Messaging struct {
	Driver        string
	Enabled       bool
	Kafka         Kafka
	ConsumerGroup string
	Workers       Worker
}

// Kafka holds Kafka connection details.
type Kafka struct {
	Brokers        []string
	ClientID       string
	Topic          string
	CommitInterval time.Duration
	MinBytes       int
	MaxBytes       int
	ConnectTimeout time.Duration
}

// Worker configures background worker concurrency and polling.
type Worker struct {
	Enabled      bool
	PollInterval time.Duration
	Concurrency  int
}

// Database holds the storage backend coordinates. Endpoint and Credential are
// only checked when a handle is acquired, so a misconfigured process fails at
// startup through the connection registry rather than here.
type Database struct {
	Driver          string
	Endpoint        string
	ReaderEndpoint  string
	Credential      string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

// Address is a postal address used for procurement defaults.
type Address struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// Procurement holds domain knobs for the procurement services.
type Procurement struct {
	ServiceName         string
	StorageKey          string
	Currency            string
	DefaultAddress      Address
	TopSuppliers        int
	RecentActivityLimit int
	MetricsCacheTTL     time.Duration
	SeedOnStart         bool
	SeedHospitalID      string
}

// Observability contains logging, tracing, and metrics configuration.
type Observability struct {
	ServiceName     string
	Environment     string
	LogLevel        string
	LogEncoding     string
	EnableTracing   bool
	TraceExporter   string
	TraceEndpoint   string
	TraceInsecure   bool
	EnableMetrics   bool
	MetricsExporter string
	PrometheusPath  string
}

// IsProduction reports whether the process runs in a production environment.
func (o Observability) IsProduction() bool {
	switch o.Environment {
	case "production", "prod":
		return true
	default:
		return false
	}
}

// Config wraps all application configuration knobs.
type Config struct {
	App           App
	HTTP          HTTP
	GRPC          GRPC
	Cache         Cache
	Messaging     Messaging
	Database      Database
	Procurement   Procurement
	Observability Observability
}

// Module wires the configuration loader into the Fx graph.
var Module = fx.Provide(New)

var loadEnvOnce sync.Once

// New builds a Config from environment variables or defaults.
func New() (Config, error) {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	cfg := Config{
		App: App{
			Name:        getEnv("APP_NAME", "ff-purc"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Description: getEnv("APP_DESCRIPTION", "Furfield Purchasing & Procurement Microservice"),
			Port:        getEnvAsInt("APP_PUBLIC_PORT", 6870),
		},
		HTTP: HTTP{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnvAsInt("HTTP_PORT", 6870),
		},
		GRPC: GRPC{
			Enabled: getEnvAsBool("GRPC_ENABLED", true),
			Host:    getEnv("GRPC_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("GRPC_PORT", 9090),
		},
		Cache: Cache{
			Enabled:    getEnvAsBool("CACHE_ENABLED", true),
			Driver:     getEnv("CACHE_DRIVER", "redis"),
			DefaultTTL: getEnvAsDuration("CACHE_DEFAULT_TTL", time.Minute*5),
			Redis: Redis{
				Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		Messaging: Messaging{
			Driver:  getEnv("MESSAGING_DRIVER", "kafka"),
			Enabled: getEnvAsBool("MESSAGING_ENABLED", true),
			Kafka: Kafka{
				Brokers:        getEnvAsStringSlice("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
				ClientID:       getEnv("KAFKA_CLIENT_ID", "ff-purc"),
				Topic:          getEnv("KAFKA_TOPIC", "procurement.events"),
				CommitInterval: getEnvAsDuration("KAFKA_COMMIT_INTERVAL", time.Second),
				MinBytes:       getEnvAsInt("KAFKA_MIN_BYTES", 10e3),
				MaxBytes:       getEnvAsInt("KAFKA_MAX_BYTES", 10e6),
				ConnectTimeout: getEnvAsDuration("KAFKA_CONNECT_TIMEOUT", 5*time.Second),
			},
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "ff-purc-worker"),
			Workers: Worker{
				Enabled:      getEnvAsBool("WORKER_ENABLED", true),
				PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
				Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 4),
			},
		},
		Database: Database{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Endpoint:        getEnv("DB_ENDPOINT", "postgres://procurement@localhost:5432/procurement?sslmode=disable"),
			ReaderEndpoint:  getEnv("DB_READER_ENDPOINT", ""),
			Credential:      getEnv("DB_CREDENTIAL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Minute*5),
		},
		Procurement: Procurement{
			ServiceName: getEnv("PROCUREMENT_SERVICE_NAME", "ff-purc-6870"),
			StorageKey:  getEnv("PROCUREMENT_STORAGE_KEY", "supabase.auth.procurement"),
			Currency:    getEnv("PROCUREMENT_CURRENCY", "USD"),
			DefaultAddress: Address{
				Street:  getEnv("PROCUREMENT_ADDRESS_STREET", "123 Veterinary St"),
				City:    getEnv("PROCUREMENT_ADDRESS_CITY", "Anytown"),
				State:   getEnv("PROCUREMENT_ADDRESS_STATE", "ST"),
				Zip:     getEnv("PROCUREMENT_ADDRESS_ZIP", "12345"),
				Country: getEnv("PROCUREMENT_ADDRESS_COUNTRY", "US"),
			},
			TopSuppliers:        getEnvAsInt("PROCUREMENT_TOP_SUPPLIERS", 5),
			RecentActivityLimit: getEnvAsInt("PROCUREMENT_RECENT_ACTIVITY", 10),
			MetricsCacheTTL:     getEnvAsDuration("PROCUREMENT_METRICS_CACHE_TTL", time.Minute),
			SeedOnStart:         getEnvAsBool("PROCUREMENT_SEED_ON_START", false),
			SeedHospitalID:      getEnv("PROCUREMENT_SEED_HOSPITAL_ID", "mock-hospital-id"),
		},
		Observability: Observability{
			ServiceName:     getEnv("OBS_SERVICE_NAME", "ff-purc"),
			Environment:     getEnv("OBS_ENVIRONMENT", "local"),
			LogLevel:        getEnv("OBS_LOG_LEVEL", "info"),
			LogEncoding:     getEnv("OBS_LOG_ENCODING", "json"),
			EnableTracing:   getEnvAsBool("OBS_ENABLE_TRACING", true),
			TraceExporter:   getEnv("OBS_TRACE_EXPORTER", "stdout"),
			TraceEndpoint:   getEnv("OBS_OTLP_ENDPOINT", "localhost:4317"),
			TraceInsecure:   getEnvAsBool("OBS_OTLP_INSECURE", true),
			EnableMetrics:   getEnvAsBool("OBS_ENABLE_METRICS", true),
			MetricsExporter: getEnv("OBS_METRICS_EXPORTER", "prometheus"),
			PrometheusPath:  getEnv("OBS_PROMETHEUS_PATH", "/metrics"),
		},
	}

	if cfg.HTTP.Port <= 0 {
		return Config{}, fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}

	if cfg.GRPC.Enabled && cfg.GRPC.Port <= 0 {
		return Config{}, fmt.Errorf("invalid gRPC port: %d", cfg.GRPC.Port)
	}

	if cfg.App.Port <= 0 {
		cfg.App.Port = cfg.HTTP.Port
	}

	if !cfg.Cache.Enabled {
		cfg.Cache.Driver = "noop"
	}

	switch cfg.Cache.Driver {
	case "redis", "memory", "noop":
		// supported
	default:
		return Config{}, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}

	if cfg.Cache.Driver == "redis" && cfg.Cache.Redis.Addr == "" {
		return Config{}, fmt.Errorf("missing REDIS_ADDR for redis cache")
	}

	if cfg.Cache.DefaultTTL < 0 {
		cfg.Cache.DefaultTTL = time.Minute * 5
	}

	cfg.Observability.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Observability.LogLevel))
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	cfg.Observability.LogEncoding = strings.ToLower(strings.TrimSpace(cfg.Observability.LogEncoding))
	if cfg.Observability.LogEncoding == "" {
		cfg.Observability.LogEncoding = "json"
	}
	cfg.Observability.Environment = strings.ToLower(strings.TrimSpace(cfg.Observability.Environment))
	cfg.Observability.TraceExporter = strings.ToLower(strings.TrimSpace(cfg.Observability.TraceExporter))
	if cfg.Observability.TraceExporter == "" {
		cfg.Observability.TraceExporter = "stdout"
	}
	cfg.Observability.MetricsExporter = strings.ToLower(strings.TrimSpace(cfg.Observability.MetricsExporter))
	if cfg.Observability.MetricsExporter == "" {
		cfg.Observability.MetricsExporter = "prometheus"
	}

	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	} else if !strings.HasPrefix(cfg.Observability.PrometheusPath, "/") {
		cfg.Observability.PrometheusPath = "/" + cfg.Observability.PrometheusPath
	}

	if !cfg.Messaging.Enabled {
		cfg.Messaging.Driver = "noop"
	}

	switch cfg.Messaging.Driver {
	case "kafka", "noop":
		// supported
	default:
		return Config{}, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}

	if cfg.Messaging.Driver == "kafka" {
		if len(cfg.Messaging.Kafka.Brokers) == 0 {
			return Config{}, fmt.Errorf("KAFKA_BROKERS must be provided")
		}
		if cfg.Messaging.Kafka.Topic == "" {
			return Config{}, fmt.Errorf("KAFKA_TOPIC must be provided")
		}
		if cfg.Messaging.ConsumerGroup == "" {
			return Config{}, fmt.Errorf("KAFKA_CONSUMER_GROUP must be provided")
		}
	}

	if cfg.Messaging.Workers.Concurrency <= 0 {
		cfg.Messaging.Workers.Concurrency = 1
	}
	if cfg.Messaging.Workers.PollInterval <= 0 {
		cfg.Messaging.Workers.PollInterval = time.Second
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case "memory", "postgres", "mysql", "sqlite":
		// supported
	default:
		return Config{}, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	if cfg.Database.ReaderEndpoint == "" {
		cfg.Database.ReaderEndpoint = cfg.Database.Endpoint
	}

	if cfg.Procurement.ServiceName == "" {
		return Config{}, fmt.Errorf("PROCUREMENT_SERVICE_NAME must be provided")
	}
	if cfg.Procurement.StorageKey == "" {
		cfg.Procurement.StorageKey = "procurement." + cfg.Procurement.ServiceName
	}
	if cfg.Procurement.Currency == "" {
		cfg.Procurement.Currency = "USD"
	}
	if cfg.Procurement.TopSuppliers <= 0 {
		cfg.Procurement.TopSuppliers = 5
	}
	if cfg.Procurement.RecentActivityLimit <= 0 {
		cfg.Procurement.RecentActivityLimit = 10
	}

	return cfg, nil
}
