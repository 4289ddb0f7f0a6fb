package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Gemini.Model != DefaultGeminiModel {
		t.Errorf("gemini model = %q, want %q", cfg.Gemini.Model, DefaultGeminiModel)
	}
	if cfg.Mongo.Database != DefaultMongoDB {
		t.Errorf("mongo db = %q, want %q", cfg.Mongo.Database, DefaultMongoDB)
	}
	if cfg.Secrets.Dir == "" {
		t.Error("secrets dir should not be empty")
	}
	if !cfg.Secrets.Watch {
		t.Error("secrets watch should be on by default")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("loadFrom error: %v", err)
	}
	if cfg.Postgres.URL != DefaultPostgresURL {
		t.Errorf("postgres url = %q, want default", cfg.Postgres.URL)
	}
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	contents := `{
		"server": {"host": "127.0.0.1", "port": 8080},
		"mongo": {"uri": "mongodb://db:27017", "database": "tools"},
		"ddns": {"host": "www", "domain": "example.com", "schedule": "@hourly"}
	}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEBTOOLS_REDIS_ADDR", "redis:6379")
	t.Setenv("WEBTOOLS_POSTGRES_URL", "")

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Mongo.Database != "tools" {
		t.Errorf("mongo db = %q, want tools", cfg.Mongo.Database)
	}
	if cfg.DDNS.Schedule != "@hourly" {
		t.Errorf("ddns schedule = %q, want @hourly", cfg.DDNS.Schedule)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis addr = %q, want env override", cfg.Redis.Addr)
	}
	// File values not overridden by env keep their file value.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want 127.0.0.1", cfg.Server.Host)
	}
}

func TestLoadConfig_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadFrom(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
