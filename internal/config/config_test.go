package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/lanes.db")
	if cfg.Database.Path != "/tmp/lanes.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Delete.DefaultMode != DeleteModeArchive {
		t.Fatalf("unexpected delete mode %q", cfg.Delete.DefaultMode)
	}
	if cfg.Board.Default != "tasks" || cfg.Board.Collision != CollisionClosestCorners {
		t.Fatalf("unexpected board defaults %#v", cfg.Board)
	}
	if cfg.ToastDuration() != 4*time.Second {
		t.Fatalf("unexpected toast duration %s", cfg.ToastDuration())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/lanes.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/lanes.db"

[delete]
default_mode = "hard"

[board]
default = "roadmap"
activation_distance = 3
collision = "pointer_within"

[notifications]
toast_seconds = 9

[logging]
level = "debug"

[server]
bind = "0.0.0.0:9000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/lanes.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Delete.DefaultMode != DeleteModeHard {
		t.Fatalf("unexpected delete mode %q", cfg.Delete.DefaultMode)
	}
	if cfg.Board.Default != "roadmap" || cfg.Board.ActivationDistance != 3 || cfg.Board.Collision != CollisionPointerWithin {
		t.Fatalf("unexpected board config %#v", cfg.Board)
	}
	if cfg.ToastDuration() != 9*time.Second {
		t.Fatalf("unexpected toast duration %s", cfg.ToastDuration())
	}
	if cfg.Logging.Level != "debug" || cfg.Server.Bind != "0.0.0.0:9000" {
		t.Fatalf("unexpected logging/server config %#v %#v", cfg.Logging, cfg.Server)
	}
	if cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("expected untouched mcp endpoint default, got %q", cfg.Server.MCPEndpoint)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"delete mode": `
[delete]
default_mode = "weird"
`,
		"board": `
[board]
default = "leads"
`,
		"collision": `
[board]
collision = "nearest"
`,
		"activation distance": `
[board]
activation_distance = -1
`,
		"toast": `
[notifications]
toast_seconds = 0
`,
		"log level": `
[logging]
level = "chatty"
`,
		"endpoint collision": `
[server]
api_endpoint = "/mcp/"
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/default.db")); err == nil {
				t.Fatalf("expected error for invalid %s", name)
			}
		})
	}
}

func TestLoadEnvFilesPrefersLocal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LANES_TEST_BOARD=tasks\nLANES_TEST_ONLY_BASE=yes\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(.env) error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("LANES_TEST_BOARD=roadmap\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(.env.local) error = %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("LANES_TEST_BOARD")
		_ = os.Unsetenv("LANES_TEST_ONLY_BASE")
	})

	loaded, err := LoadEnvFiles(dir)
	if err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 env files, got %v", loaded)
	}
	if got := os.Getenv("LANES_TEST_BOARD"); got != "roadmap" {
		t.Fatalf("LANES_TEST_BOARD = %q, want roadmap", got)
	}
	if got := os.Getenv("LANES_TEST_ONLY_BASE"); got != "yes" {
		t.Fatalf("LANES_TEST_ONLY_BASE = %q, want yes", got)
	}

	none, err := LoadEnvFiles(t.TempDir())
	if err != nil || len(none) != 0 {
		t.Fatalf("LoadEnvFiles(empty) = %v, %v", none, err)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default("/tmp/lanes.db")
	cfg.Board.Collision = CollisionPointerWithin
	cfg.Board.Assignee = "ana"
	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := Load(path, Default("/tmp/other.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != cfg {
		t.Fatalf("Load() = %#v, want %#v", got, cfg)
	}

	bad := cfg
	bad.Delete.DefaultMode = "shred"
	if err := WriteFile(path, bad); err == nil {
		t.Fatal("expected invalid config to be rejected")
	}
}
