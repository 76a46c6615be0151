package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"smoothieq/internal/config"
	"smoothieq/internal/daemon"
	"smoothieq/internal/history"
	"smoothieq/internal/ipc"
	"smoothieq/internal/logging"
	"smoothieq/internal/notifications"
	"smoothieq/internal/preflight"
	"smoothieq/internal/smoothie"
	"smoothieq/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel   string
	SocketPath string
}

// Run starts the smoothieq daemon and blocks until SIGINT, SIGTERM, or a
// Shutdown RPC.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logPath := logging.SessionLogPath(cfg.Paths.LogDir, time.Now())
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logging.LinkCurrent(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.PruneSessions(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)

	inst, err := smoothie.Discover(cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "smoothie-rs not found", "smoothie_missing",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set smoothie.executable or smoothie.search_dir in the config, or add smoothie-rs to PATH"),
			logging.String(logging.FieldImpact, "daemon cannot run tasks"),
		)
		return err
	}

	for _, check := range preflight.Failed(preflight.RunAll(cfg, inst)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "tasks may fail until this is fixed"),
		)
	}

	var journal *history.Journal
	if cfg.History.Enabled {
		journal, err = history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(logger, "history journal unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete history.db if the schema changed"),
				logging.String(logging.FieldImpact, "finished tasks will not be recorded"),
			)
			journal = nil
		}
	}

	manager := workflow.NewManager(cfg, inst.Executable, logger,
		workflow.WithRecipe(inst.Recipe),
		workflow.WithNotifier(notifications.NewService(cfg)),
		workflow.WithJournal(journal),
	)

	d, err := daemon.New(cfg, logger, manager,
		daemon.WithJournal(journal),
		daemon.WithLogPath(logPath),
		daemon.WithRecipeRoot(inst.Root),
	)
	if err != nil {
		manager.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.OnShutdown(cancel)
	ipcServer.Serve()

	logStartup(logger, cfg, inst, socketPath)
	<-signalCtx.Done()
	logger.Info("smoothieq daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func logStartup(logger *slog.Logger, cfg *config.Config, inst smoothie.Installation, socketPath string) {
	logger.Info("daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", socketPath),
		logging.String("executable", inst.Executable),
		logging.String("recipe", inst.Recipe),
		logging.String("output_dir", cfg.Queue.OutputDir),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
