package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PARLEY_HOME", dir)
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("PARLEY_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Bot.Learning || !cfg.Bot.Answering {
		t.Fatalf("expected learning and answering enabled by default")
	}
	if cfg.Monitor.Interval != 60*time.Second {
		t.Fatalf("expected 60s default interval, got %v", cfg.Monitor.Interval)
	}
	if !strings.HasSuffix(cfg.Corpus.Path, filepath.Join("data", "corpus.db")) {
		t.Fatalf("expected corpus path under home data dir, got %q", cfg.Corpus.Path)
	}
}

func TestMissingTokenIsFatal(t *testing.T) {
	writeConfig(t, `
[bot]
threshold = 0.5
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestMissingThresholdIsFatal(t *testing.T) {
	writeConfig(t, `
[telegram]
token = "123:abc"
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "threshold") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestLoadFullConfig(t *testing.T) {
	writeConfig(t, `
[telegram]
token = "123:abc"

[bot]
threshold = 0.7
learning = false

[corpus]
path = "/tmp/parley-test/corpus.db"

[monitor]
interval = "90s"
operator_chat_id = 4242

[camera]
snapshot_url = "http://localhost:8080/photoaf.jpg"
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("unexpected token %q", cfg.Telegram.Token)
	}
	if cfg.Bot.Threshold != 0.7 {
		t.Fatalf("unexpected threshold %v", cfg.Bot.Threshold)
	}
	if cfg.Bot.Learning {
		t.Fatalf("expected learning disabled")
	}
	if !cfg.Bot.Answering {
		t.Fatalf("expected answering still enabled")
	}
	if cfg.Corpus.Path != "/tmp/parley-test/corpus.db" {
		t.Fatalf("unexpected corpus path %q", cfg.Corpus.Path)
	}
	if cfg.Monitor.Interval != 90*time.Second {
		t.Fatalf("unexpected interval %v", cfg.Monitor.Interval)
	}
	if cfg.Monitor.OperatorChatID != 4242 {
		t.Fatalf("unexpected operator chat id %d", cfg.Monitor.OperatorChatID)
	}
	if cfg.Camera.SnapshotURL != "http://localhost:8080/photoaf.jpg" {
		t.Fatalf("unexpected snapshot url %q", cfg.Camera.SnapshotURL)
	}
}

func TestTokenExpandsEnvironment(t *testing.T) {
	t.Setenv("PARLEY_TEST_TOKEN", "999:zzz")
	writeConfig(t, `
[telegram]
token = "$PARLEY_TEST_TOKEN"

[bot]
threshold = 0.5
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "999:zzz" {
		t.Fatalf("expected env-expanded token, got %q", cfg.Telegram.Token)
	}
}

func TestThresholdOutOfRange(t *testing.T) {
	for _, threshold := range []string{"1.5", "-0.5"} {
		writeConfig(t, `
[telegram]
token = "123:abc"

[bot]
threshold = `+threshold+`
`)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected validation error for threshold %s", threshold)
		}
	}
}

func TestNonPositiveIntervalIsFatal(t *testing.T) {
	writeConfig(t, `
[telegram]
token = "123:abc"

[bot]
threshold = 0.5

[monitor]
interval = "0s"
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "interval") {
		t.Fatalf("expected interval error, got %v", err)
	}
}

func TestWriteRendersMergedTOML(t *testing.T) {
	writeConfig(t, `
[telegram]
token = "123:abc"

[bot]
threshold = 0.5
`)
	var out strings.Builder
	if err := Write(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	rendered := out.String()
	for _, want := range []string{"123:abc", "1m0s"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in rendered config:\n%s", want, rendered)
		}
	}
}
