package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Presence PresenceConfig `yaml:"presence"`
	Redis    RedisConfig    `yaml:"redis"`
	Events   EventsConfig   `yaml:"events"`
	Retainer RetainerConfig `yaml:"retainer"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// PresenceConfig selects the presence store backend. "sqlite" keeps presence
// in the main database; "redis" uses the connection from RedisConfig.
type PresenceConfig struct {
	Backend       string        `yaml:"backend"`
	IdleThreshold time.Duration `yaml:"idle_threshold"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RedisConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

// EventsConfig configures the outbound event fan-out. An empty URL disables
// publishing; the event log itself is unaffected.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
}

type RetainerConfig struct {
	ExpireInterval time.Duration `yaml:"expire_interval"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "tally.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Presence: PresenceConfig{
			Backend:       "sqlite",
			IdleThreshold: 10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		Retainer: RetainerConfig{
			ExpireInterval: time.Hour,
		},
	}

	if path := os.Getenv("TALLY_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("TALLY_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("TALLY_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TALLY_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("TALLY_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if secret := os.Getenv("TALLY_AUTH_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	if backend := os.Getenv("TALLY_PRESENCE_BACKEND"); backend != "" {
		cfg.Presence.Backend = backend
	}
	if threshold := os.Getenv("TALLY_PRESENCE_IDLE_THRESHOLD"); threshold != "" {
		d, err := time.ParseDuration(threshold)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TALLY_PRESENCE_IDLE_THRESHOLD: %w", err)
		}
		cfg.Presence.IdleThreshold = d
	}
	if addr := os.Getenv("TALLY_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if url := os.Getenv("TALLY_NATS_URL"); url != "" {
		cfg.Events.NATSURL = url
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required (TALLY_AUTH_SECRET)")
	}
	switch c.Presence.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("invalid presence backend %q (want sqlite or redis)", c.Presence.Backend)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
