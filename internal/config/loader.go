package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPhysicsURL is the public Rapier service
const DefaultPhysicsURL = "https://rapier.chukai.io"

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Older deployments name the physics service after its engine.
	_ = v.BindEnv("physics_url", "PHYSICS_URL", "RAPIER_SERVICE_URL", "RAPIER_URL")
	_ = v.BindEnv("physics_timeout", "PHYSICS_TIMEOUT", "RAPIER_TIMEOUT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/stage")

	// A missing config file is fine; env and defaults cover everything.
	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	var err error

	// Server
	cfg.Server.Host = v.GetString("server_host")
	cfg.Server.Port = v.GetInt("server_port")
	cfg.Server.Env = v.GetString("server_env")
	cfg.Server.Version = v.GetString("server_version")

	// Logging
	cfg.Log.Level = v.GetString("log_level")
	cfg.Log.Format = v.GetString("log_format")

	// Physics
	cfg.Physics.URL = strings.TrimRight(v.GetString("physics_url"), "/")
	if cfg.Physics.Timeout, err = seconds(v, "physics_timeout"); err != nil {
		return nil, err
	}
	cfg.Physics.MaxFailures = v.GetInt("physics_max_failures")
	if cfg.Physics.CoolDown, err = seconds(v, "physics_cool_down"); err != nil {
		return nil, err
	}
	cfg.Physics.RecordingPath = v.GetString("physics_recording_path")

	// Bake
	cfg.Bake.DefaultFPS = v.GetInt("bake_default_fps")
	cfg.Bake.Concurrency = v.GetInt("bake_concurrency")
	if cfg.Bake.FetchTimeout, err = seconds(v, "bake_fetch_timeout"); err != nil {
		return nil, err
	}
	if cfg.Bake.Timeout, err = seconds(v, "bake_timeout"); err != nil {
		return nil, err
	}
	cfg.Bake.Guard = strings.ToLower(v.GetString("bake_guard"))
	if cfg.Bake.GuardTTL, err = seconds(v, "bake_guard_ttl"); err != nil {
		return nil, err
	}

	// Redis
	cfg.Redis.Host = v.GetString("redis_host")
	cfg.Redis.Port = v.GetInt("redis_port")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	// MinIO
	cfg.MinIO.Enabled = v.GetBool("minio_enabled")
	cfg.MinIO.Endpoint = v.GetString("minio_endpoint")
	cfg.MinIO.AccessKey = v.GetString("minio_access_key")
	cfg.MinIO.SecretKey = v.GetString("minio_secret_key")
	cfg.MinIO.UseSSL = v.GetBool("minio_use_ssl")
	cfg.MinIO.Bucket = v.GetString("minio_bucket")

	// PostgreSQL
	cfg.Postgres.Enabled = v.GetBool("postgres_enabled")
	cfg.Postgres.Host = v.GetString("postgres_host")
	cfg.Postgres.Port = v.GetInt("postgres_port")
	cfg.Postgres.User = v.GetString("postgres_user")
	cfg.Postgres.Password = v.GetString("postgres_password")
	cfg.Postgres.Database = v.GetString("postgres_db")
	cfg.Postgres.SSLMode = v.GetString("postgres_ssl_mode")
	cfg.Postgres.MaxConns = int32(v.GetInt("postgres_max_conns"))
	cfg.Postgres.MinConns = int32(v.GetInt("postgres_min_conns"))

	// Worker
	cfg.Worker.Enabled = v.GetBool("worker_enabled")
	cfg.Worker.Concurrency = v.GetInt("worker_concurrency")
	cfg.Worker.QueueCritical = v.GetString("worker_queue_critical")
	cfg.Worker.QueueDefault = v.GetString("worker_queue_default")
	cfg.Worker.QueueLow = v.GetString("worker_queue_low")
	if cfg.Worker.BakeTimeout, err = seconds(v, "worker_bake_timeout"); err != nil {
		return nil, err
	}
	cfg.Worker.MaxRetry = v.GetInt("worker_max_retry")

	// Sentry
	cfg.Sentry.DSN = v.GetString("sentry_dsn")
	cfg.Sentry.SampleRate = v.GetFloat64("sentry_sample_rate")

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// seconds reads a duration given either as a Go duration string ("30s")
// or as a bare number of seconds ("30", "2.5").
func seconds(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, raw)
	}
	return d, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_env", "development")
	v.SetDefault("server_version", "dev")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Physics defaults
	v.SetDefault("physics_url", DefaultPhysicsURL)
	v.SetDefault("physics_timeout", "30s")
	v.SetDefault("physics_max_failures", 5)
	v.SetDefault("physics_cool_down", "30s")
	v.SetDefault("physics_recording_path", "")

	// Bake defaults
	v.SetDefault("bake_default_fps", 60)
	v.SetDefault("bake_concurrency", 8)
	v.SetDefault("bake_fetch_timeout", "30s")
	v.SetDefault("bake_timeout", "5m")
	v.SetDefault("bake_guard", GuardMemory)
	v.SetDefault("bake_guard_ttl", "10m")

	// Redis defaults
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	// MinIO defaults
	v.SetDefault("minio_enabled", false)
	v.SetDefault("minio_endpoint", "localhost:9000")
	v.SetDefault("minio_access_key", "stage")
	v.SetDefault("minio_secret_key", "stage12345")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("minio_bucket", "stage-animations")

	// PostgreSQL defaults
	v.SetDefault("postgres_enabled", false)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "stage")
	v.SetDefault("postgres_password", "stage")
	v.SetDefault("postgres_db", "stage")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("postgres_max_conns", 10)
	v.SetDefault("postgres_min_conns", 2)

	// Worker defaults
	v.SetDefault("worker_enabled", false)
	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("worker_queue_critical", "critical")
	v.SetDefault("worker_queue_default", "default")
	v.SetDefault("worker_queue_low", "low")
	v.SetDefault("worker_bake_timeout", "5m")
	v.SetDefault("worker_max_retry", 5)

	// Sentry defaults
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("sentry_sample_rate", 1.0)
}

const persistAllowance = time.Minute

func validate(cfg *Config) error {
	if cfg.Physics.URL == "" && cfg.Physics.RecordingPath == "" {
		return fmt.Errorf("physics_url or physics_recording_path must be set")
	}
	if cfg.Physics.Timeout <= 0 {
		return fmt.Errorf("physics_timeout must be positive")
	}
	if cfg.Bake.DefaultFPS <= 0 || cfg.Bake.DefaultFPS > 240 {
		return fmt.Errorf("bake_default_fps must be in (0, 240]")
	}
	if cfg.Bake.Concurrency <= 0 {
		return fmt.Errorf("bake_concurrency must be positive")
	}
	switch cfg.Bake.Guard {
	case GuardMemory:
	case GuardRedis:
		if cfg.Bake.GuardTTL <= 0 {
			return fmt.Errorf("bake_guard_ttl must be positive for the redis guard")
		}
		// Persisting a finished bake still holds the slot.
		if cfg.Bake.Timeout <= 0 || cfg.Bake.Timeout+persistAllowance > cfg.Bake.GuardTTL {
			return fmt.Errorf("bake_timeout plus %s must fit inside bake_guard_ttl", persistAllowance)
		}
	default:
		return fmt.Errorf("bake_guard must be %q or %q", GuardMemory, GuardRedis)
	}
	if cfg.Worker.Enabled {
		if cfg.Worker.Concurrency <= 0 {
			return fmt.Errorf("worker_concurrency must be positive")
		}
		if err := cfg.SharedGuard(); err != nil {
			return err
		}
	}
	return nil
}
