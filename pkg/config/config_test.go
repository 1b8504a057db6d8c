package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7700 {
		t.Errorf("server port = %d, want 7700", cfg.Server.Port)
	}
	if cfg.Postgres.Host != "localhost" || cfg.Postgres.Port != 5432 {
		t.Errorf("postgres defaults wrong: %s:%d", cfg.Postgres.Host, cfg.Postgres.Port)
	}
	if cfg.Search.DefaultLimit != 20 || cfg.Search.MaxResults != 1000 {
		t.Errorf("search defaults wrong: %+v", cfg.Search)
	}
	if cfg.Kafka.Topics.SearchEvents != "search-events" {
		t.Errorf("kafka topic = %q", cfg.Kafka.Topics.SearchEvents)
	}
	if cfg.Redis.CacheTTL != 60*time.Second {
		t.Errorf("cache ttl = %v", cfg.Redis.CacheTTL)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8800
postgres:
  host: db.internal
  database: search_prod
logging:
  level: debug
  format: text
metrics:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8800 {
		t.Errorf("server port = %d, want 8800", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("request timeout = %v, want default 15s", cfg.Server.RequestTimeout)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Database != "search_prod" {
		t.Errorf("postgres = %+v", cfg.Postgres)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d, want default 5432", cfg.Postgres.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled by the file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a mapping"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SC_SERVER_PORT", "9999")
	t.Setenv("SC_POSTGRES_HOST", "pg.example")
	t.Setenv("SC_POSTGRES_PASSWORD", "secret")
	t.Setenv("SC_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SC_LOGGING_LEVEL", "error")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Postgres.Host != "pg.example" || cfg.Postgres.Password != "secret" {
		t.Errorf("postgres overrides not applied: %+v", cfg.Postgres)
	}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("kafka brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
}

func TestEnvOverrideIgnoresBadNumbers(t *testing.T) {
	t.Setenv("SC_SERVER_PORT", "not-a-port")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7700 {
		t.Errorf("server port = %d, want default 7700", cfg.Server.Port)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5433, User: "svc", Password: "pw",
		Database: "search", SSLMode: "require",
	}
	want := "host=db port=5433 user=svc password=pw dbname=search sslmode=require"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
