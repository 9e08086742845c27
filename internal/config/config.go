package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Order    OrderConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	Production         bool
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled bool
	Addr    string
	Channel string
}

type OrderConfig struct {
	MaxRetryAttempts int
	TxTimeout        time.Duration
	BatchWindow      time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

// Load reads configuration from the environment, a .env file in the working
// directory if present, and the optional YAML file at path. Environment
// variables win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT", "SERVER_REQUEST_TIMEOUT",
		"DB_CONN_MAX_LIFETIME", "ORDER_TX_TIMEOUT", "ORDER_BATCH_WINDOW",
	} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", key, err)
		}
		durations[key] = d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               v.GetInt("SERVER_PORT"),
			ReadTimeout:        durations["SERVER_READ_TIMEOUT"],
			WriteTimeout:       durations["SERVER_WRITE_TIMEOUT"],
			IdleTimeout:        durations["SERVER_IDLE_TIMEOUT"],
			RequestTimeout:     durations["SERVER_REQUEST_TIMEOUT"],
			RateLimitPerMinute: v.GetInt("SERVER_RATE_LIMIT_PER_MINUTE"),
			Production:         v.GetBool("SERVER_PRODUCTION"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"],
		},
		Redis: RedisConfig{
			Enabled: v.GetBool("REDIS_ENABLED"),
			Addr:    v.GetString("REDIS_ADDR"),
			Channel: v.GetString("REDIS_CHANNEL"),
		},
		Order: OrderConfig{
			MaxRetryAttempts: v.GetInt("ORDER_MAX_RETRY_ATTEMPTS"),
			TxTimeout:        durations["ORDER_TX_TIMEOUT"],
			BatchWindow:      durations["ORDER_BATCH_WINDOW"],
		},
		Log: LogConfig{
			Level:       v.GetString("LOG_LEVEL"),
			Development: v.GetBool("LOG_DEVELOPMENT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "30s")
	v.SetDefault("SERVER_REQUEST_TIMEOUT", "8s")
	v.SetDefault("SERVER_RATE_LIMIT_PER_MINUTE", 300)
	v.SetDefault("SERVER_PRODUCTION", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_USER", "orderflow")
	v.SetDefault("DB_PASSWORD", "secret")
	v.SetDefault("DB_NAME", "orderflow")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_CHANNEL", "orderflow:order-changed")
	v.SetDefault("ORDER_MAX_RETRY_ATTEMPTS", 3)
	v.SetDefault("ORDER_TX_TIMEOUT", "5s")
	v.SetDefault("ORDER_BATCH_WINDOW", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Order.MaxRetryAttempts < 1 {
		return errors.New("ORDER_MAX_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Order.BatchWindow <= 0 {
		return errors.New("ORDER_BATCH_WINDOW must be positive")
	}
	return nil
}
