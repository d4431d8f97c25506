package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Export   ExportConfig   `mapstructure:"export" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// LogFile, when set, receives a JSON copy of every log record.
	LogFile                string `mapstructure:"log_file"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
	BCryptCost           int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// RedisConfig contains the connection settings shared by the cache and the
// export queue.
type RedisConfig struct {
	Addr                       string `mapstructure:"addr" validate:"required,hostname_port"`
	Password                   string `mapstructure:"password"`
	DB                         int    `mapstructure:"db" validate:"gte=0"`
	HealthCheckIntervalSeconds int    `mapstructure:"health_check_interval_seconds" validate:"gt=0"`
	DialTimeoutMillis          int    `mapstructure:"dial_timeout_ms" validate:"gt=0"`
}

// ExportConfig contains export artifact settings.
type ExportConfig struct {
	// Dir is the directory artifacts are written to.
	Dir string `mapstructure:"dir" validate:"required"`
	// LeaseSeconds bounds how long a PROCESSING claim is honoured before
	// another delivery may re-claim the export.
	LeaseSeconds int `mapstructure:"lease_seconds" validate:"gt=0"`
}

// TaskConfig contains background job settings.
type TaskConfig struct {
	WorkerConcurrency         int  `mapstructure:"worker_concurrency" validate:"gt=0"`
	MaxAttempts               int  `mapstructure:"max_attempts" validate:"gt=0"`
	BackoffBaseSeconds        int  `mapstructure:"backoff_base_seconds" validate:"gt=0"`
	TimeoutSeconds            int  `mapstructure:"timeout_seconds" validate:"gt=0"`
	StalePendingAgeMinutes    int  `mapstructure:"stale_pending_age_minutes" validate:"gt=0"`
	StaleCheckIntervalMinutes int  `mapstructure:"stale_check_interval_minutes" validate:"gt=0"`
	RunWorkerInServer         bool `mapstructure:"run_worker_in_server"`
}

// ShutdownTimeout returns the graceful shutdown window.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// TokenLifetime returns how long issued tokens stay valid.
func (c AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// HealthCheckInterval returns the cache ping period.
func (c RedisConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSeconds) * time.Second
}

// DialTimeout returns the connection and per-command timeout.
func (c RedisConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMillis) * time.Millisecond
}

// Lease returns the claim lease duration.
func (c ExportConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

// BackoffBase returns the first retry delay.
func (c TaskConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

// Timeout returns the per-job execution deadline.
func (c TaskConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StalePendingAge returns how long an export may stay PENDING before the
// sweeper re-dispatches it.
func (c TaskConfig) StalePendingAge() time.Duration {
	return time.Duration(c.StalePendingAgeMinutes) * time.Minute
}

// StaleCheckInterval returns the sweeper period.
func (c TaskConfig) StaleCheckInterval() time.Duration {
	return time.Duration(c.StaleCheckIntervalMinutes) * time.Minute
}
