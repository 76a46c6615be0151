package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"smoothieq/internal/config"
	"smoothieq/internal/daemon"
	"smoothieq/internal/ipc"
	"smoothieq/internal/logging"
	"smoothieq/internal/queue"
	"smoothieq/internal/supervisor"
	"smoothieq/internal/testsupport"
	"smoothieq/internal/workflow"
)

type instantRunner struct{}

func (instantRunner) Run(_ context.Context, task queue.Task, _ supervisor.ForceStopSource) supervisor.Outcome {
	if strings.Contains(task.InputPath, "broken") {
		return supervisor.Outcome{Kind: supervisor.OutcomeProcessFailed, Message: "exit status 1"}
	}
	return supervisor.Outcome{Kind: supervisor.OutcomeSucceeded}
}

type cliTestEnv struct {
	cfg        *config.Config
	manager    *workflow.Manager
	socketPath string
	configPath string
	logPath    string
	mediaDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	logger := logging.NewNop()
	journal := testsupport.MustOpenJournal(t, cfg)
	mgr := workflow.NewManager(cfg, "smoothie-rs", logger,
		workflow.WithRunner(instantRunner{}),
		workflow.WithJournal(journal),
	)
	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	d, err := daemon.New(cfg, logger, mgr, daemon.WithJournal(journal), daemon.WithLogPath(logPath))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		manager:    mgr,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		logPath:    logPath,
		mediaDir:   filepath.Join(base, "media"),
	}
}

func (e *cliTestEnv) media(t *testing.T, name string) string {
	t.Helper()
	return testsupport.WriteMedia(t, e.mediaDir, name)
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.socketPath, e.configPath)
}

func (e *cliTestEnv) waitIdle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for e.manager.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
