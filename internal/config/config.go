// FilePath: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database PostgresConfig `mapstructure:"database"`
	Redis    RedisConfig
	Auth     AuthConfig
	Socket   SocketConfig
	Pipeline PipelineConfig
	LogLevel string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	Issuer           string        `mapstructure:"issuer"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type SocketConfig struct {
	MaxConnectionsPerIP int           `mapstructure:"max_connections_per_ip"`
	MaxEventsPerMinute  int           `mapstructure:"max_events_per_minute"`
	RateLimitWindow     time.Duration `mapstructure:"rate_limit_window"`
	OutboundQueueSize   int           `mapstructure:"outbound_queue_size"`
	ClientSendBuffer    int           `mapstructure:"client_send_buffer"`
	WriteWait           time.Duration `mapstructure:"write_wait"`
	PongWait            time.Duration `mapstructure:"pong_wait"`
}

type PipelineConfig struct {
	DebounceWindow    time.Duration `mapstructure:"debounce_window"`
	StoreTimeout      time.Duration `mapstructure:"store_timeout"`
	ReadingInterval   time.Duration `mapstructure:"reading_interval"`
	RuleSweepInterval time.Duration `mapstructure:"rule_sweep_interval"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("CROSSHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// Redis defaults
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// Auth defaults
	viper.SetDefault("auth.issuer", "crosshub")
	viper.SetDefault("auth.handshake_timeout", "10s")

	// Socket defaults
	viper.SetDefault("socket.max_connections_per_ip", 5)
	viper.SetDefault("socket.max_events_per_minute", 60)
	viper.SetDefault("socket.rate_limit_window", "60s")
	viper.SetDefault("socket.outbound_queue_size", 256)
	viper.SetDefault("socket.client_send_buffer", 64)
	viper.SetDefault("socket.write_wait", "10s")
	viper.SetDefault("socket.pong_wait", "60s")

	// Pipeline defaults
	viper.SetDefault("pipeline.debounce_window", "2s")
	viper.SetDefault("pipeline.store_timeout", "5s")
	viper.SetDefault("pipeline.reading_interval", "5m")
	viper.SetDefault("pipeline.rule_sweep_interval", "1h")

	viper.SetDefault("log_level", "info")
}

func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required")
	}
	if config.Socket.MaxConnectionsPerIP <= 0 {
		return fmt.Errorf("socket max connections per IP must be positive")
	}
	if config.Socket.MaxEventsPerMinute <= 0 {
		return fmt.Errorf("socket max events per minute must be positive")
	}
	return nil
}
