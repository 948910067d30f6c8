// Package config provides configuration management for the syllabus review service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// AI service backends.
const (
	// AIBackendHTTP talks to the AI service's REST job API.
	AIBackendHTTP = "http"
	// AIBackendTemporal runs AI jobs as Temporal workflow executions.
	AIBackendTemporal = "temporal"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds all configuration for the syllabus review service.
type Config struct {
	// Server contains HTTP/gRPC server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Tracing contains OpenTelemetry distributed tracing settings.
	Tracing TracingConfig `mapstructure:"tracing"`
	// Auth contains bearer token verification settings.
	Auth AuthConfig `mapstructure:"auth"`
	// AIService contains AI job service client settings.
	AIService AIServiceConfig `mapstructure:"ai_service"`
	// DomainData contains CLO/PLO domain-data client settings.
	DomainData DomainDataConfig `mapstructure:"domain_data"`
	// Polling contains AI job polling policies.
	Polling PollingConfig `mapstructure:"polling"`
	// Throttle contains list-refresh throttle settings.
	Throttle ThrottleConfig `mapstructure:"throttle"`
	// Cache contains result cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Redis contains Redis connection settings for the durable result cache.
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka contains Kafka publisher settings for lifecycle events.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Temporal contains Temporal settings for the temporal AI backend.
	Temporal TemporalConfig `mapstructure:"temporal"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// GRPCPort is the gRPC health server port (default: 9090).
	GRPCPort int `mapstructure:"grpc_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 20).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun       bool `mapstructure:"migration_auto_run"`
	StatementCacheCapacity int  `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP/HTTP collector endpoint (host:port).
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	// JWTSecret is the HMAC secret (loaded from SYLLABUS_AUTH_JWT_SECRET env var).
	JWTSecret string `mapstructure:"-"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `mapstructure:"issuer"`
	// AllowDevHeaders accepts X-User-ID / X-User-Role headers when no token is
	// presented. Never enable outside local development.
	AllowDevHeaders bool `mapstructure:"allow_dev_headers"`
}

// AIServiceConfig holds AI job service settings.
type AIServiceConfig struct {
	// Backend selects the job client implementation (http, temporal).
	Backend string `mapstructure:"backend"`
	// BaseURL is the AI service REST base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is sent as X-API-Key (loaded from SYLLABUS_AI_SERVICE_API_KEY env var).
	APIKey     string        `mapstructure:"-"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	BurstSize  int           `mapstructure:"burst_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// DomainDataConfig holds CLO/PLO domain-data client settings.
type DomainDataConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	BurstSize  int           `mapstructure:"burst_size"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// PollPolicyConfig mirrors polling.Policy.
type PollPolicyConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Step            time.Duration `mapstructure:"step"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
}

// PollingConfig holds the polling policies per call site.
type PollingConfig struct {
	CLOCheck PollPolicyConfig `mapstructure:"clo_check"`
	Summary  PollPolicyConfig `mapstructure:"summary"`
	Ingest   PollPolicyConfig `mapstructure:"ingest"`
}

// ThrottleConfig holds minimum refresh gaps for throttled lists.
type ThrottleConfig struct {
	// ReviewQueueGap is the minimum gap between HoD/AA queue refreshes.
	ReviewQueueGap time.Duration `mapstructure:"review_queue_gap"`
	// LecturerListGap is the minimum gap between lecturer list refreshes.
	LecturerListGap time.Duration `mapstructure:"lecturer_list_gap"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// Backend selects the store (memory, redis).
	Backend string `mapstructure:"backend"`
	// KeyPrefix namespaces keys in the durable store.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	// Password is loaded from SYLLABUS_REDIS_PASSWORD env var.
	Password    string        `mapstructure:"-"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic lifecycle events are written to.
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// TemporalConfig holds Temporal settings.
type TemporalConfig struct {
	// HostPort is the Temporal server address.
	HostPort string `mapstructure:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `mapstructure:"namespace"`
	// TaskQueue is the task queue the AI workers listen on.
	TaskQueue string `mapstructure:"task_queue"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddress returns the gRPC server address.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SYLLABUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/syllabus-review-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Auth.JWTSecret = os.Getenv("SYLLABUS_AUTH_JWT_SECRET")
	cfg.AIService.APIKey = os.Getenv("SYLLABUS_AI_SERVICE_API_KEY")
	cfg.Redis.Password = os.Getenv("SYLLABUS_REDIS_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "syllabus")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "syllabus_review_service")
	// Use SYLLABUS_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "syllabus-review-service")
	v.SetDefault("tracing.sample_rate", 0.1)

	// Auth defaults. The secret comes from the environment (see loadSecrets).
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.allow_dev_headers", false)

	// AI service defaults
	v.SetDefault("ai_service.backend", AIBackendHTTP)
	v.SetDefault("ai_service.base_url", "http://localhost:8000/api/ai")
	v.SetDefault("ai_service.timeout", "30s")
	v.SetDefault("ai_service.rate_limit", 10.0)
	v.SetDefault("ai_service.burst_size", 5)
	v.SetDefault("ai_service.max_retries", 2)
	v.SetDefault("ai_service.retry_delay", "1s")

	// Domain-data defaults
	v.SetDefault("domain_data.base_url", "http://localhost:8081/api/v1")
	v.SetDefault("domain_data.timeout", "10s")
	v.SetDefault("domain_data.rate_limit", 20.0)
	v.SetDefault("domain_data.burst_size", 10)
	v.SetDefault("domain_data.max_retries", 1)

	// Polling defaults
	v.SetDefault("polling.clo_check.initial_interval", "1s")
	v.SetDefault("polling.clo_check.max_interval", "5s")
	v.SetDefault("polling.clo_check.step", "500ms")
	v.SetDefault("polling.clo_check.max_wait", "5m")
	v.SetDefault("polling.clo_check.max_attempts", 0)
	v.SetDefault("polling.summary.initial_interval", "5s")
	v.SetDefault("polling.summary.max_interval", "5s")
	v.SetDefault("polling.summary.step", "0s")
	v.SetDefault("polling.summary.max_wait", "5m")
	v.SetDefault("polling.summary.max_attempts", 60)
	v.SetDefault("polling.ingest.initial_interval", "2s")
	v.SetDefault("polling.ingest.max_interval", "10s")
	v.SetDefault("polling.ingest.step", "1s")
	v.SetDefault("polling.ingest.max_wait", "10m")
	v.SetDefault("polling.ingest.max_attempts", 0)

	// Throttle defaults
	v.SetDefault("throttle.review_queue_gap", "8s")
	v.SetDefault("throttle.lecturer_list_gap", "1s")

	// Cache defaults
	v.SetDefault("cache.backend", CacheBackendRedis)
	v.SetDefault("cache.key_prefix", "syllabus-review:result:")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.syllabus_review_service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Temporal defaults
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "syllabus-ai")
	v.SetDefault("temporal.task_queue", "syllabus-ai-jobs")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1")
	}

	if c.Auth.JWTSecret == "" && !c.Auth.AllowDevHeaders {
		return fmt.Errorf("SYLLABUS_AUTH_JWT_SECRET is required unless auth.allow_dev_headers is enabled")
	}

	switch strings.ToLower(c.AIService.Backend) {
	case AIBackendHTTP:
		if c.AIService.BaseURL == "" {
			return fmt.Errorf("ai_service.base_url is required for the http backend")
		}
	case AIBackendTemporal:
		if c.Temporal.HostPort == "" || c.Temporal.TaskQueue == "" {
			return fmt.Errorf("temporal host_port and task_queue are required for the temporal backend")
		}
	default:
		return fmt.Errorf("invalid ai_service backend: %s", c.AIService.Backend)
	}

	if c.DomainData.BaseURL == "" {
		return fmt.Errorf("domain_data.base_url is required")
	}

	for name, p := range map[string]PollPolicyConfig{
		"clo_check": c.Polling.CLOCheck,
		"summary":   c.Polling.Summary,
		"ingest":    c.Polling.Ingest,
	} {
		if p.MaxWait <= 0 {
			return fmt.Errorf("polling.%s.max_wait must be positive", name)
		}
		if p.InitialInterval <= 0 {
			return fmt.Errorf("polling.%s.initial_interval must be positive", name)
		}
	}

	if c.Throttle.ReviewQueueGap < 0 || c.Throttle.LecturerListGap < 0 {
		return fmt.Errorf("throttle gaps must not be negative")
	}

	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka brokers and topic are required when kafka is enabled")
	}

	return nil
}
