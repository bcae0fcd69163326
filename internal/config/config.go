package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

type DeleteMode string

const (
	DeleteModeArchive DeleteMode = "archive"
	DeleteModeHard    DeleteMode = "hard"
)

// Collision strategies accepted by board.collision.
const (
	CollisionClosestCorners = "closest_corners"
	CollisionPointerWithin  = "pointer_within"
)

type Config struct {
	Database      DatabaseConfig      `toml:"database"`
	Delete        DeleteConfig        `toml:"delete"`
	Board         BoardConfig         `toml:"board"`
	Notifications NotificationsConfig `toml:"notifications"`
	Logging       LoggingConfig       `toml:"logging"`
	Server        ServerConfig        `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type DeleteConfig struct {
	DefaultMode DeleteMode `toml:"default_mode"`
}

type BoardConfig struct {
	Default            string `toml:"default"`
	ActivationDistance int    `toml:"activation_distance"`
	Collision          string `toml:"collision"` // closest_corners | pointer_within
	Assignee           string `toml:"assignee"`
}

type NotificationsConfig struct {
	ToastSeconds int `toml:"toast_seconds"`
}

type LoggingConfig struct {
	Level   string               `toml:"level"`
	DevFile DevFileLoggingConfig `toml:"dev_file"`
}

type DevFileLoggingConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Delete: DeleteConfig{
			DefaultMode: DeleteModeArchive,
		},
		Board: BoardConfig{
			Default:            "tasks",
			ActivationDistance: 1,
			Collision:          CollisionClosestCorners,
		},
		Notifications: NotificationsConfig{
			ToastSeconds: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileLoggingConfig{
				Enabled: true,
				Dir:     ".lanes/log",
			},
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch c.Delete.DefaultMode {
	case DeleteModeArchive, DeleteModeHard:
	default:
		return fmt.Errorf("invalid delete.default_mode: %q", c.Delete.DefaultMode)
	}

	switch strings.TrimSpace(strings.ToLower(c.Board.Default)) {
	case "tasks", "improvements", "roadmap":
	default:
		return fmt.Errorf("invalid board.default: %q", c.Board.Default)
	}
	if c.Board.ActivationDistance < 0 {
		return errors.New("board.activation_distance must be >= 0")
	}
	switch strings.TrimSpace(strings.ToLower(c.Board.Collision)) {
	case "", CollisionClosestCorners, CollisionPointerWithin:
	default:
		return fmt.Errorf("invalid board.collision: %q", c.Board.Collision)
	}

	if c.Notifications.ToastSeconds <= 0 {
		return errors.New("notifications.toast_seconds must be > 0")
	}

	if _, err := log.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind is required")
	}
	api := "/" + strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := "/" + strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", api)
	}

	return nil
}

// ToastDuration returns how long error notices stay visible.
func (c Config) ToastDuration() time.Duration {
	if c.Notifications.ToastSeconds <= 0 {
		return 4 * time.Second
	}
	return time.Duration(c.Notifications.ToastSeconds) * time.Second
}

// LoadEnvFiles applies `.env.local` and then `.env` from dir. Variables already set win, so
// `.env.local` shadows `.env`. It returns the files that were applied.
func LoadEnvFiles(dir string) ([]string, error) {
	loaded := make([]string, 0, 2)
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("stat %s: %w", name, err)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load %s: %w", name, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteFile validates cfg and writes it as TOML, creating the parent directory.
func WriteFile(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
