package server

import (
	"flag"
	"path/filepath"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Addr != "" {
		t.Fatalf("expected empty addr, got %q", cfg.Addr)
	}
	if cfg.DBPath != "coffers.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9001", "-addr", "127.0.0.1:9999", "-db", "memory"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.DBPath != "memory" {
		t.Fatalf("expected memory db, got %q", cfg.DBPath)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("COFFERS_PORT", "9100")
	t.Setenv("COFFERS_DB_PATH", "/tmp/ledger.db")
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("expected env port 9100, got %d", cfg.Port)
	}
	if cfg.DBPath != "/tmp/ledger.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
}

func TestOpenStore(t *testing.T) {
	mem, err := OpenStore(Config{DBPath: "memory"})
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if err := mem.Close(); err != nil {
		t.Fatalf("close memory store: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := OpenStore(Config{DBPath: path})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close sqlite store: %v", err)
	}
}
