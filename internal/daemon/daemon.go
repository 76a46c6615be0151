package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"smoothieq/internal/config"
	"smoothieq/internal/history"
	"smoothieq/internal/logging"
	"smoothieq/internal/notifications"
	"smoothieq/internal/smoothie"
	"smoothieq/internal/workflow"
)

// ErrAlreadyRunning is returned when the lock is held by another daemon.
var ErrAlreadyRunning = errors.New("another smoothieq daemon instance is already running")

// ErrHistoryDisabled is returned by History when no journal is attached.
var ErrHistoryDisabled = errors.New("history journal disabled")

// Daemon coordinates the workflow manager and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	workflow   *workflow.Manager
	journal    *history.Journal
	logPath    string
	recipeRoot string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	LockFilePath string
	SocketPath   string
	HistoryPath  string
	LogPath      string
}

// Option configures optional daemon collaborators.
type Option func(*Daemon)

// WithJournal attaches the history journal pruned on start and served by History.
func WithJournal(journal *history.Journal) Option {
	return func(d *Daemon) { d.journal = journal }
}

// WithLogPath records the active log file reported in Status.
func WithLogPath(path string) Option {
	return func(d *Daemon) { d.logPath = path }
}

// WithRecipeRoot sets the smoothie installation root scanned by Recipes.
func WithRecipeRoot(root string) Option {
	return func(d *Daemon) { d.recipeRoot = root }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock and performs startup maintenance. It does not
// start the worker; that stays an explicit user action.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	if _, err := d.PruneHistory(ctx); err != nil {
		logging.WarnWithContext(d.logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.db permissions"),
			logging.String(logging.FieldImpact, "old history entries retained"),
		)
	}

	d.running.Store(true)
	d.logger.Info("smoothieq daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("executable", d.workflow.Executable()),
	)
	return nil
}

// Stop force-stops the worker and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("smoothieq daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.workflow.Close()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Workflow returns the queue manager driven by this daemon.
func (d *Daemon) Workflow() *workflow.Manager {
	return d.workflow
}

// PruneHistory removes journal entries older than the configured retention.
func (d *Daemon) PruneHistory(ctx context.Context) (int64, error) {
	days := d.cfg.History.RetentionDays
	if d.journal == nil || days <= 0 {
		return 0, nil
	}
	removed, err := d.journal.Prune(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		d.logger.Info("history pruned",
			logging.String(logging.FieldEventType, "history_pruned"),
			logging.Int64("removed", removed),
			logging.Int("retention_days", days),
		)
	}
	return removed, nil
}

// History returns the most recent finished tasks, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if d.journal == nil {
		return nil, ErrHistoryDisabled
	}
	return d.journal.List(ctx, limit)
}

// Recipes lists recipe files available in the smoothie installation.
func (d *Daemon) Recipes() []string {
	root := strings.TrimSpace(d.recipeRoot)
	if root == "" {
		root = strings.TrimSpace(d.cfg.Smoothie.SearchDir)
	}
	if root == "" {
		return nil
	}
	return smoothie.FindRecipes(root)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	historyPath := ""
	if d.journal != nil {
		historyPath = d.journal.Path()
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		HistoryPath:  historyPath,
		LogPath:      d.logPath,
	}
}
