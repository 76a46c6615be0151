package workflow

import (
	"context"
	"log/slog"
	"sync"

	"smoothieq/internal/config"
	"smoothieq/internal/history"
	"smoothieq/internal/logging"
	"smoothieq/internal/notifications"
	"smoothieq/internal/queue"
	"smoothieq/internal/supervisor"
	"smoothieq/internal/worker"
)

const defaultEventCapacity = 1024

// Manager coordinates the queue, the worker, and notification side effects.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	mailbox  *worker.Mailbox
	runner   worker.Runner
	base     *slog.Logger
	logger   *slog.Logger
	notifier notifications.Service
	journal  *history.Journal

	executable string

	mu        sync.RWMutex
	nextID    int64
	recipe    string
	outputDir string
	running   bool
	closed    bool
	loop      *worker.Loop
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	progress  taskProgress

	events *eventLog

	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
	sideWG     sync.WaitGroup
	run        runTally
}

type taskProgress struct {
	taskID  int64
	percent float64
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithRunner replaces the smoothie-rs supervisor (used in tests).
func WithRunner(runner worker.Runner) Option {
	return func(m *Manager) {
		if runner != nil {
			m.runner = runner
		}
	}
}

// WithNotifier sets the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithJournal records finished tasks in the history journal.
func WithJournal(journal *history.Journal) Option {
	return func(m *Manager) {
		m.journal = journal
	}
}

// WithRecipe sets the recipe applied to newly added files.
func WithRecipe(path string) Option {
	return func(m *Manager) {
		m.recipe = path
	}
}

// WithEventCapacity bounds the in-memory event log.
func WithEventCapacity(capacity int) Option {
	return func(m *Manager) {
		m.events = newEventLog(capacity)
	}
}

// NewManager constructs a manager that launches executable for each task and
// starts the notification pump. Call Close to release it.
func NewManager(cfg *config.Config, executable string, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:        cfg,
		store:      queue.NewStore(),
		mailbox:    worker.NewMailbox(),
		base:       logger,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		notifier:   notifications.NewService(cfg),
		executable: executable,
		recipe:     cfg.Smoothie.Recipe,
		outputDir:  cfg.Queue.OutputDir,
		events:     newEventLog(defaultEventCapacity),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runner == nil {
		m.runner = supervisor.New(executable,
			supervisor.WithPollInterval(cfg.PollInterval()),
			supervisor.WithLogger(logging.NewComponentLogger(logger, "supervisor")),
			supervisor.WithProgress(m.recordProgress),
		)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	m.pumpCancel = cancel
	m.pumpDone = make(chan struct{})
	go m.pump(pumpCtx)
	return m
}

// Store exposes the underlying queue for read access and callers that build
// tasks themselves.
func (m *Manager) Store() *queue.Store { return m.store }

// Executable returns the smoothie-rs path tasks are run with.
func (m *Manager) Executable() string { return m.executable }

// Close stops any running worker, flushes pending notifications, and stops
// the pump. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	m.pumpCancel()
	<-m.pumpDone
	m.sideWG.Wait()
	m.events.close()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) recordProgress(taskID int64, percent float64) {
	m.mu.Lock()
	m.progress = taskProgress{taskID: taskID, percent: percent}
	m.mu.Unlock()
}
