// Package config loads application configuration with viper: defaults,
// an optional config file, and CHIPIN_-prefixed env overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Ledger   LedgerConfig
	Notify   NotifyConfig
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
}

// LedgerConfig holds core engine knobs.
type LedgerConfig struct {
	// SplitTolerance is the allowed absolute difference between an
	// expense amount and the sum of its splits.
	SplitTolerance float64 `mapstructure:"split_tolerance"`

	// InviteTTL is how long invitations stay acceptable.
	InviteTTL time.Duration `mapstructure:"invite_ttl"`

	// SweepInterval is how often expired invitations are swept.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// NotifyConfig holds notification delivery settings. An empty AMQPURL
// selects the log-only notifier.
type NotifyConfig struct {
	AMQPURL string `mapstructure:"amqp_url"`
}

// Load reads configuration from file and env. Env var overrides use
// prefix CHIPIN_, e.g. CHIPIN_DATABASE_PATH.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", "./data/chipin.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_duration", 24*time.Hour)
	v.SetDefault("ledger.split_tolerance", 0.01)
	v.SetDefault("ledger.invite_ttl", 7*24*time.Hour)
	v.SetDefault("ledger.sweep_interval", time.Hour)
	v.SetDefault("notify.amqp_url", "")
	v.SetDefault("log_level", "info")

	v.SetConfigType("toml")
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/chipin")

	v.SetEnvPrefix("CHIPIN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("auth.jwt_secret (CHIPIN_AUTH_JWT_SECRET) is required")
	}
	return c, nil
}
