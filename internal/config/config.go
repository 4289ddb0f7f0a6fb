package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 5000
	DefaultBufSize     = 100
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultPostgresURL = "postgres://admin@localhost:5432/webtools"
	DefaultMongoURI    = "mongodb://localhost:27017"
	DefaultMongoDB     = "webtools"
	DefaultRedisAddr   = "localhost:6379"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Postgres  PostgresConfig  `json:"postgres"`
	Mongo     MongoConfig     `json:"mongo"`
	Redis     RedisConfig     `json:"redis"`
	Secrets   SecretsConfig   `json:"secrets"`
	Gemini    GeminiConfig    `json:"gemini"`
	Mail      MailConfig      `json:"mail"`
	DDNS      DDNSConfig      `json:"ddns"`
	Reminders RemindersConfig `json:"reminders"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type PostgresConfig struct {
	URL string `json:"url"`
}

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type RedisConfig struct {
	Addr string `json:"addr"`
	DB   int    `json:"db,omitempty"`
}

type SecretsConfig struct {
	Dir   string `json:"dir"`
	Watch bool   `json:"watch"`
}

type GeminiConfig struct {
	Model string `json:"model"`
}

type MailConfig struct {
	FromEmail        string `json:"fromEmail"`
	FromName         string `json:"fromName"`
	DispatchSchedule string `json:"dispatchSchedule,omitempty"` // cron expression; empty leaves delivery to the polling endpoint
}

type DDNSConfig struct {
	Host     string `json:"host"`
	Domain   string `json:"domain"`
	Schedule string `json:"schedule,omitempty"` // cron expression; empty disables
}

type RemindersConfig struct {
	CheckinSchedule string `json:"checkinSchedule,omitempty"` // cron expression; empty disables
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server:   ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Postgres: PostgresConfig{URL: DefaultPostgresURL},
		Mongo:    MongoConfig{URI: DefaultMongoURI, Database: DefaultMongoDB},
		Redis:    RedisConfig{Addr: DefaultRedisAddr},
		Secrets:  SecretsConfig{Dir: filepath.Join(home, ".webtools", "secrets"), Watch: true},
		Gemini:   GeminiConfig{Model: DefaultGeminiModel},
		Mail:     MailConfig{FromName: "webtools"},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".webtools")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	return loadFrom(ConfigPath())
}

func loadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("WEBTOOLS_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("WEBTOOLS_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("WEBTOOLS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("WEBTOOLS_SECRETS_DIR"); v != "" {
		cfg.Secrets.Dir = v
	}
	if v := os.Getenv("WEBTOOLS_GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	return cfg, nil
}
