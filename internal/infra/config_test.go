package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
feed:
  instruments: [NQ]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Name != "tradecore" {
		t.Errorf("expected default app name, got %s", cfg.App.Name)
	}
	if cfg.Feed.StaleAfterSec != 120 {
		t.Errorf("expected default stale bound 120, got %d", cfg.Feed.StaleAfterSec)
	}
	if cfg.Execution.MaxSlippagePts != 2 || cfg.Execution.MaxLatencyMS != 500 {
		t.Errorf("unexpected friction defaults: %+v", cfg.Execution)
	}
	if cfg.Storage.Path != "data/journal.db" {
		t.Errorf("unexpected storage default: %s", cfg.Storage.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected logging default: %s", cfg.Logging.Level)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	// No instruments: nothing to run.
	path := writeConfig(t, `
feed:
  instruments: []
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation failure for empty instruments")
	}

	// A feed URL must be a WebSocket endpoint.
	path = writeConfig(t, `
feed:
  ws_url: http://feed.example.com
  instruments: [NQ]
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation failure for non-ws URL")
	}

	path = writeConfig(t, `
feed:
  instruments: [NQ]
logging:
  level: loud
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation failure for unknown log level")
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, `
feed:
  ws_url: wss://feed.example.com/bars
  instruments: [NQ]
`)

	t.Setenv("TRADECORE_FEED_URL", "wss://other.example.com/bars")
	t.Setenv("TRADECORE_STORAGE_PATH", "/tmp/override.db")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Feed.WSURL != "wss://other.example.com/bars" {
		t.Errorf("env override lost: %s", cfg.Feed.WSURL)
	}
	if cfg.Storage.Path != "/tmp/override.db" {
		t.Errorf("env override lost: %s", cfg.Storage.Path)
	}
}
