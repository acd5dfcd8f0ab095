package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Job.Workers != 4 {
		t.Errorf("Job.Workers = %d, want 4", cfg.Job.Workers)
	}
	if cfg.Kafka.Topics.Events != "lepton-events" {
		t.Errorf("Kafka.Topics.Events = %q", cfg.Kafka.Topics.Events)
	}
	if cfg.Redis.CheckpointTTL != 7*24*time.Hour {
		t.Errorf("Redis.CheckpointTTL = %v", cfg.Redis.CheckpointTTL)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	content := `
job:
  inputGlobs: ["/data/run2011/*.ndjson.gz"]
  outputDir: /var/out
  workers: 8
  publishPairs: true
postgres:
  host: db.internal
  port: 5433
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Job.InputGlobs) != 1 || cfg.Job.InputGlobs[0] != "/data/run2011/*.ndjson.gz" {
		t.Errorf("Job.InputGlobs = %v", cfg.Job.InputGlobs)
	}
	if cfg.Job.Workers != 8 || !cfg.Job.PublishPairs {
		t.Errorf("Job = %+v", cfg.Job)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Port != 5433 {
		t.Errorf("Postgres = %+v", cfg.Postgres)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TT_JOB_INPUT_GLOBS", "/a/*.ndjson,/b/*.zst")
	t.Setenv("TT_JOB_WORKERS", "16")
	t.Setenv("TT_POSTGRES_PASSWORD", "s3cret")
	t.Setenv("TT_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TT_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Job.InputGlobs) != 2 || cfg.Job.InputGlobs[1] != "/b/*.zst" {
		t.Errorf("Job.InputGlobs = %v", cfg.Job.InputGlobs)
	}
	if cfg.Job.Workers != 16 {
		t.Errorf("Job.Workers = %d, want 16", cfg.Job.Workers)
	}
	if cfg.Postgres.Password != "s3cret" {
		t.Errorf("Postgres.Password = %q", cfg.Postgres.Password)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestEnvOverrideIgnoresBadNumbers(t *testing.T) {
	t.Setenv("TT_JOB_WORKERS", "lots")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Job.Workers != 4 {
		t.Errorf("Job.Workers = %d, want default 4", cfg.Job.Workers)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "localhost", Port: 5432,
		User: "u", Password: "p", Database: "d", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=u password=p dbname=d sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
