package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TASKBOARD_DATABASE_URL for database.url.
const EnvPrefix = "TASKBOARD"

var defaults = map[string]any{
	"server.port":                         8080,
	"server.log_level":                    "info",
	"server.log_file":                     "",
	"server.shutdown_timeout_seconds":     10,
	"database.url":                        "",
	"database.max_open_conns":             10,
	"database.max_idle_conns":             5,
	"auth.jwt_secret":                     "",
	"auth.token_lifetime_minutes":         7 * 24 * 60,
	"auth.bcrypt_cost":                    10,
	"redis.addr":                          "localhost:6379",
	"redis.password":                      "",
	"redis.db":                            0,
	"redis.health_check_interval_seconds": 5,
	"redis.dial_timeout_ms":               500,
	"export.dir":                          "./exports",
	"export.lease_seconds":                300,
	"task.worker_concurrency":             2,
	"task.max_attempts":                   3,
	"task.backoff_base_seconds":           2,
	"task.timeout_seconds":                120,
	"task.stale_pending_age_minutes":      10,
	"task.stale_check_interval_minutes":   5,
	"task.run_worker_in_server":           true,
}

// Load reads configuration from an optional config.yaml in the working
// directory (or ./config) and from TASKBOARD_* environment variables.
// Environment variables take precedence over values from the file.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile is like Load but reads the named config file, which must exist.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
