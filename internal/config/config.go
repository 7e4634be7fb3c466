// Package config binds the server's runtime settings to viper, following
// an env-prefix-plus-defaults pattern.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "COLLABTEXT"

	defaultHTTPAddress       = ":8080"
	defaultRedisAddr         = "localhost:6379"
	defaultMaxOpsPerSec      = 50
	defaultMaxClientsPerDoc  = 64
	defaultHistorySize       = 10000
	defaultIdleTimeout       = 10 * time.Minute
	defaultOutboundQueueSize = 1024
	defaultLogLevel          = "info"
)

// AppConfig captures the server's runtime configuration, matching the
// config surface documented for the collaborative editing engine.
type AppConfig struct {
	HTTPAddress string
	RedisAddr   string
	PostgresURL string

	MaxOpsPerSec      float64
	MaxClientsPerDoc  int
	HistorySize       int
	IdleTimeout       time.Duration
	OutboundQueueSize int

	JWTSecret string
	LogLevel  string
}

// NewViper returns a viper instance with defaults and env bindings applied.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures env bindings and default values on v.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.address", defaultHTTPAddress)
	v.SetDefault("redis.addr", defaultRedisAddr)
	v.SetDefault("postgres.url", "")
	v.SetDefault("session.max_ops_per_sec", defaultMaxOpsPerSec)
	v.SetDefault("session.max_clients_per_doc", defaultMaxClientsPerDoc)
	v.SetDefault("session.history_size", defaultHistorySize)
	v.SetDefault("session.idle_timeout", defaultIdleTimeout)
	v.SetDefault("session.outbound_queue_size", defaultOutboundQueueSize)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.level", defaultLogLevel)
}

// Load parses AppConfig out of v.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       v.GetString("http.address"),
		RedisAddr:         v.GetString("redis.addr"),
		PostgresURL:       v.GetString("postgres.url"),
		MaxOpsPerSec:      v.GetFloat64("session.max_ops_per_sec"),
		MaxClientsPerDoc:  v.GetInt("session.max_clients_per_doc"),
		HistorySize:       v.GetInt("session.history_size"),
		IdleTimeout:       v.GetDuration("session.idle_timeout"),
		OutboundQueueSize: v.GetInt("session.outbound_queue_size"),
		JWTSecret:         v.GetString("auth.jwt_secret"),
		LogLevel:          v.GetString("log.level"),
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.MaxOpsPerSec <= 0 {
		return fmt.Errorf("session.max_ops_per_sec must be positive")
	}
	if c.MaxClientsPerDoc <= 0 {
		return fmt.Errorf("session.max_clients_per_doc must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be positive")
	}
	return nil
}
