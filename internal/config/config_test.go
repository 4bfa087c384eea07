package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Remote.ProbeTimeout != 3*time.Second {
		t.Errorf("ProbeTimeout = %v, want 3s", cfg.Remote.ProbeTimeout)
	}
	if cfg.Migrate.BatchSize != 30 {
		t.Errorf("BatchSize = %d, want 30", cfg.Migrate.BatchSize)
	}
	if cfg.Queue.MaxAttempts != 0 {
		t.Errorf("MaxAttempts = %d, want unlimited", cfg.Queue.MaxAttempts)
	}
	if cfg.Remote.Enabled() {
		t.Error("remote enabled by default")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `data_dir: ` + dir + `
remote:
  url: libsql://tally-sam.turso.io
  probe_timeout: 5s
queue:
  max_attempts: 7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("TALLY_QUEUE_MAX_ATTEMPTS", "9")
	t.Setenv("TALLY_REMOTE_AUTH_TOKEN", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"url from file", cfg.Remote.URL, "libsql://tally-sam.turso.io"},
		{"duration from file", cfg.Remote.ProbeTimeout, 5 * time.Second},
		{"env overrides file", cfg.Queue.MaxAttempts, 9},
		{"env only", cfg.Remote.AuthToken, "secret"},
		{"default kept", cfg.Migrate.BatchSize, 30},
		{"replica under data dir", cfg.Remote.ReplicaPath, filepath.Join(dir, "replica.db")},
		{"inbox under data dir", cfg.Inbox.Dir, filepath.Join(dir, "inbox")},
		{"local path", cfg.LocalPath(), filepath.Join(dir, "local.db")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() of a missing explicit file should fail")
	}
}

func TestLogsWriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.log")
	logs := NewLogs(LogConfig{File: path, MaxSizeMB: 1}, false)

	logs.Logger("sync").Printf("Flushed %d ops", 3)
	if err := logs.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "[sync] ") || !strings.Contains(string(data), "Flushed 3 ops") {
		t.Errorf("log file = %q", data)
	}
}
