package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"smoothieq/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SMOOTHIE_EXECUTABLE", "")
	t.Setenv("SMOOTHIE_RECIPE", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "smoothieq")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.SocketPath() != filepath.Join(wantState, "smoothieq.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
	if cfg.PollInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}
	if cfg.Queue.OutputDir != "" {
		t.Fatalf("expected empty output dir, got %q", cfg.Queue.OutputDir)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[smoothie]
executable = "~/bin/smoothie-rs"
recipe = "~/recipes/fast.ini"

[queue]
output_dir = "renders"
poll_interval_ms = 250
extensions = [".MKV", "mp4", "mkv", " "]

[logging]
format = "JSON"
level = "DEBUG"

[notifications]
ntfy_topic = "https://ntfy.sh/renders"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Smoothie.Executable != filepath.Join(tempHome, "bin", "smoothie-rs") {
		t.Fatalf("unexpected executable: %q", cfg.Smoothie.Executable)
	}
	if cfg.Smoothie.Recipe != filepath.Join(tempHome, "recipes", "fast.ini") {
		t.Fatalf("unexpected recipe: %q", cfg.Smoothie.Recipe)
	}
	if cfg.Queue.OutputDir != "renders" {
		t.Fatalf("expected relative output dir to be preserved, got %q", cfg.Queue.OutputDir)
	}
	if got := strings.Join(cfg.Queue.Extensions, ","); got != "mkv,mp4" {
		t.Fatalf("unexpected extensions: %q", got)
	}
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/renders" {
		t.Fatalf("unexpected topic: %q", cfg.Notifications.NtfyTopic)
	}
}

func TestLoadUsesEnvironmentFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	exe := filepath.Join(t.TempDir(), "smoothie-rs")
	t.Setenv("SMOOTHIE_EXECUTABLE", exe)
	t.Setenv("SMOOTHIE_RECIPE", "")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Smoothie.Executable != exe {
		t.Fatalf("expected executable from env, got %q", cfg.Smoothie.Executable)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "poll interval",
			mutate: func(c *config.Config) { c.Queue.PollIntervalMS = -1 },
			want:   "poll_interval_ms",
		},
		{
			name:   "topic without scheme",
			mutate: func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" },
			want:   "ntfy_topic",
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Logging.Level = "verbose" },
			want:   "logging.level",
		},
		{
			name:   "no extensions",
			mutate: func(c *config.Config) { c.Queue.Extensions = nil },
			want:   "extensions",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestAcceptsExtension(t *testing.T) {
	cfg := config.Default()
	for _, ext := range []string{".mp4", "MKV", ".Mov", "avi", "webm"} {
		if !cfg.AcceptsExtension(ext) {
			t.Fatalf("expected %q to be accepted", ext)
		}
	}
	for _, ext := range []string{"", ".txt", ".ini", "gif"} {
		if cfg.AcceptsExtension(ext) {
			t.Fatalf("expected %q to be rejected", ext)
		}
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded map[string]any
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid toml: %v", err)
	}
	if _, ok := decoded["queue"]; !ok {
		t.Fatal("sample missing queue section")
	}

	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("Load(sample) exists=%v err=%v", exists, err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
