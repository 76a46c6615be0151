package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[smoothie]") {
		t.Fatalf("sample config missing smoothie section")
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateUsesConfigFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	for _, want := range []string{"Config path: " + env.configPath, "History enabled: yes", "Configuration valid"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validate output missing %q: %q", want, out)
		}
	}
}

func TestConfigValidateRejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, "", path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDoctorReportsMissingRecipe(t *testing.T) {
	env := setupCLITestEnv(t)
	exe := filepath.Join(env.mediaDir, "bin", "smoothie-rs")
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(exe, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	env.cfg.Smoothie.Executable = exe
	env.cfg.Smoothie.Recipe = filepath.Join(env.mediaDir, "missing.ini")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"doctor"}, "", env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail for a missing recipe")
	}
	if !strings.Contains(out, "Recipe") || !strings.Contains(out, "does not exist") {
		t.Fatalf("unexpected doctor output: %q", out)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"[smoothie]", "[queue]", env.cfg.Paths.StateDir} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q: %q", want, out)
		}
	}
}
