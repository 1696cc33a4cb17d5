package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	BatchSize     int           `env:"CHRONICLE_TEST_BATCH_SIZE" envDefault:"100"`
	FlushInterval time.Duration `env:"CHRONICLE_TEST_FLUSH_INTERVAL" envDefault:"5s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.BatchSize != 100 {
		t.Fatalf("expected default batch size 100, got %d", cfg.BatchSize)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Fatalf("expected default flush interval 5s, got %s", cfg.FlushInterval)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CHRONICLE_TEST_BATCH_SIZE", "3")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.BatchSize != 3 {
		t.Fatalf("expected batch size 3, got %d", cfg.BatchSize)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CHRONICLE_TEST_BATCH_SIZE", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

type prefixedConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:""`
}

func TestParseEnvPrefixed(t *testing.T) {
	var cfg prefixedConfig
	t.Setenv("CHRONICLE_TEST2_SQLITE_PATH", "/tmp/chronicle.db")

	if err := ParseEnvPrefixed("CHRONICLE_TEST2_", &cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Path != "/tmp/chronicle.db" {
		t.Fatalf("expected prefixed path, got %q", cfg.Path)
	}
}
