// Package config loads the server configuration from an optional YAML
// file plus WARDEN_* environment variables, with env taking precedence
// over file values and file values over defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the fully resolved server configuration.
type Config struct {
	// Addr is the listen address of the main HTTP server.
	Addr string `mapstructure:"addr" validate:"required"`

	// MetricsAddr is the listen address of the Prometheus metrics
	// server. Empty disables the dedicated metrics listener.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// APIKey is the shared secret expected in the X-API-Key header.
	// The server refuses to start without one.
	APIKey string `mapstructure:"api_key" validate:"required"`

	// DefaultUserID is the mailbox owner used when a request carries
	// no user_id of its own.
	DefaultUserID string `mapstructure:"default_user_id" validate:"required"`

	// Gmail backend credentials.
	GmailCredentialsPath string   `mapstructure:"gmail_credentials_path"`
	GmailTokenPath       string   `mapstructure:"gmail_token_path"`
	GmailScopes          []string `mapstructure:"gmail_scopes"`

	// Rule storage.
	RulesDBPath string `mapstructure:"rules_db_path" validate:"required"`

	// Session context storage.
	SessionDBPath     string `mapstructure:"session_db_path" validate:"required"`
	SessionTableName  string `mapstructure:"session_table_name" validate:"required"`
	SessionTTLSeconds int    `mapstructure:"session_ttl_seconds" validate:"gt=0"`

	// Logging.
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// SessionTTL returns the session expiry window as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	// Every key needs a registered default: Unmarshal only visits keys
	// viper knows about, and env bindings resolve through that set.
	v.SetDefault("addr", ":8892")
	v.SetDefault("api_key", "")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("default_user_id", "me")
	v.SetDefault("gmail_credentials_path", "credentials.json")
	v.SetDefault("gmail_token_path", "token.json")
	v.SetDefault("gmail_scopes", []string{"https://mail.google.com/"})
	v.SetDefault("rules_db_path", "warden_rules.db")
	v.SetDefault("session_db_path", "warden_sessions.db")
	v.SetDefault("session_table_name", "session_contexts")
	v.SetDefault("session_ttl_seconds", 3600)
	v.SetDefault("log_format", "text")
	v.SetDefault("log_level", "info")
}

// Load resolves the configuration. When path is non-empty the file
// must exist and parse; otherwise only defaults and environment
// variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
