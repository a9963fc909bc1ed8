package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

const validYAML = `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: "5s"
  write_timeout: "15s"
  idle_timeout: "30s"
  shutdown_timeout: "5s"

database:
  path: "./testdata/wordflow.db"
  max_open_conns: 1

import:
  batch_size: 100
  tx_batch_size: 500
  max_concurrent: 2
  max_reported_row_errors: 50

scheduler:
  default_limit: 30
  default_new_limit: 10

log:
  level: "debug"
  format: "text"

srs:
  default_ease: 2.5
  min_ease: 1.3
  max_ease: 3.5
  leech_threshold: 8

cors:
  allowed_origins: "http://localhost:3000"
`

func TestLoad_FromYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "./testdata/wordflow.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Import.TxBatchSize != 500 {
		t.Errorf("Import.TxBatchSize = %d, want 500", cfg.Import.TxBatchSize)
	}
	if cfg.SRS.DefaultEase != 2.5 {
		t.Errorf("SRS.DefaultEase = %v, want 2.5", cfg.SRS.DefaultEase)
	}
}

func TestLoad_EnvOnly_Defaults(t *testing.T) {
	// An unset CONFIG_PATH falls back to ./config.yaml, which does not exist
	// here, so Load reads ENV + defaults only.
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./wordflow.db" {
		t.Errorf("Database.Path = %q, want default ./wordflow.db", cfg.Database.Path)
	}
	if cfg.Import.MaxConcurrent != 2 {
		t.Errorf("Import.MaxConcurrent = %d, want default 2", cfg.Import.MaxConcurrent)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 10s default", cfg.Server.ReadTimeout)
	}
}

func TestValidate_RejectsBadSRSBounds(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Path: "x.db"},
		Import:   ImportConfig{BatchSize: 10, TxBatchSize: 500, MaxConcurrent: 1},
		SRS:      SRSConfig{DefaultEase: 2.5, MinEase: 1.3, MaxEase: 1.0, LeechThreshold: 8},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_ease < min_ease")
	}
}

func TestValidate_RejectsBatchSizeExceedingTxBatchSize(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Path: "x.db"},
		Import:   ImportConfig{BatchSize: 600, TxBatchSize: 500, MaxConcurrent: 1},
		SRS:      SRSConfig{DefaultEase: 2.5, MinEase: 1.3, MaxEase: 3.5, LeechThreshold: 8},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when batch_size > tx_batch_size")
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Path: "./wordflow.db"},
		Import:   ImportConfig{BatchSize: 100, TxBatchSize: 500, MaxConcurrent: 2},
		SRS:      SRSConfig{DefaultEase: 2.5, MinEase: 1.3, MaxEase: 3.5, LeechThreshold: 8},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
