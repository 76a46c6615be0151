package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"smoothieq/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// A recipe file is written under the temp root and selected as the default.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Smoothie.Recipe = WriteRecipe(t, filepath.Join(base, "recipe.ini"))
	cfgVal.Queue.PollIntervalMS = 10

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithOutputDir selects a fixed output folder.
func WithOutputDir(dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.OutputDir = dir
	}
}

// WithStubbedSmoothie writes a smoothie-rs stand-in running script, selects it
// as the configured executable, and prepends its directory to PATH. An empty
// script exits 0.
func WithStubbedSmoothie(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Smoothie.Executable = StubExecutable(b.t, filepath.Join(b.baseDir, "bin"), "smoothie-rs", script)
		b.t.Setenv("PATH", filepath.Join(b.baseDir, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// StubExecutable writes an executable shell script named name into dir and
// returns its path.
func StubExecutable(t testing.TB, dir, name, script string) string {
	t.Helper()

	if script == "" {
		script = "exit 0\n"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
