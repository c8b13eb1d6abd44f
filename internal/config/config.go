package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Physics  PhysicsConfig
	Bake     BakeConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	Postgres PostgresConfig
	Worker   WorkerConfig
	Sentry   SentryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PhysicsConfig locates the simulation service
type PhysicsConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxFailures   int           `mapstructure:"max_failures"`
	CoolDown      time.Duration `mapstructure:"cool_down"`
	RecordingPath string        `mapstructure:"recording_path"`
}

// Guard backends
const (
	GuardMemory = "memory"
	GuardRedis  = "redis"
)

// BakeConfig tunes the baking orchestrator
type BakeConfig struct {
	DefaultFPS   int           `mapstructure:"default_fps"`
	Concurrency  int           `mapstructure:"concurrency"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// Timeout bounds a whole bake. With the redis guard it must leave room
	// inside GuardTTL so a slot cannot expire under a running bake.
	Timeout  time.Duration `mapstructure:"timeout"`
	Guard    string        `mapstructure:"guard"`
	GuardTTL time.Duration `mapstructure:"guard_ttl"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// DSN returns the PostgreSQL connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Concurrency   int           `mapstructure:"concurrency"`
	QueueCritical string        `mapstructure:"queue_critical"`
	QueueDefault  string        `mapstructure:"queue_default"`
	QueueLow      string        `mapstructure:"queue_low"`
	BakeTimeout   time.Duration `mapstructure:"bake_timeout"`
	MaxRetry      int           `mapstructure:"max_retry"`
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN        string  `mapstructure:"dsn"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// IsDevelopment returns true if running in development
// SharedGuard reports an error unless bake slots are shared between
// processes. The worker and the server bake the same scenes, so any setup
// running both needs the redis guard.
func (c *Config) SharedGuard() error {
	if c.Bake.Guard != GuardRedis {
		return fmt.Errorf("bake_guard must be %q when bakes run in more than one process", GuardRedis)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
