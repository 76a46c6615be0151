package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Smoothie describes where the smoothie-rs installation lives.
type Smoothie struct {
	Executable string `toml:"executable"`
	Recipe     string `toml:"recipe"`
	SearchDir  string `toml:"search_dir"`
}

// Queue contains task defaults and worker timing.
type Queue struct {
	OutputDir      string   `toml:"output_dir"`
	PollIntervalMS int      `toml:"poll_interval_ms"`
	Extensions     []string `toml:"extensions"`
}

// Paths contains runtime state locations.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	TaskFailed     bool   `toml:"task_failed"`
	QueueFinished  bool   `toml:"queue_finished"`
}

// History controls the finished-task journal.
type History struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Config encapsulates all configuration values for smoothieq.
//
// Configuration sections by subsystem:
//   - Smoothie: executable, default recipe, installation search root
//   - Queue: output folder, supervision poll interval, accepted extensions
//   - Paths: socket/lock/history state and logs
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
//   - History: finished-task journal
type Config struct {
	Smoothie      Smoothie      `toml:"smoothie"`
	Queue         Queue         `toml:"queue"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// resolveConfigPath picks the explicit path when given. Otherwise the first
// existing candidate wins: the user config, then ./smoothieq.toml. When none
// exists the user config path is returned so defaults apply.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		if err != nil {
			return "", false, fmt.Errorf("config path: %w", err)
		}
		return expanded, exists, nil
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("smoothieq.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "smoothieq.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "smoothieq.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "smoothieq.pid")
}

// HistoryPath returns the finished-task journal database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// PollInterval returns the supervision poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Queue.PollIntervalMS) * time.Millisecond
}

// AcceptsExtension reports whether files with the given extension may be queued.
// The extension may include the leading dot and is compared case-insensitively.
func (c *Config) AcceptsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Queue.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
