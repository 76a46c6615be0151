package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"smoothieq/internal/logging"
	"smoothieq/internal/queue"
)

var commandContext = exec.CommandContext

// DefaultPollInterval is how often the run checks for force stop and exit.
const DefaultPollInterval = 100 * time.Millisecond

// ForceStopSource reports whether the in-flight process must be killed.
// *queue.Store satisfies it.
type ForceStopSource interface {
	IsForceStopRequested() bool
}

// ProgressFunc receives percentages parsed from smoothie-rs output.
type ProgressFunc func(taskID int64, percent float64)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithPollInterval overrides the supervision poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Supervisor) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithLogger sets the logger used for lifecycle and process output lines.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress registers a callback for progress parsed from output lines.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Supervisor) {
		s.progress = fn
	}
}

// Supervisor launches smoothie-rs for one task at a time.
type Supervisor struct {
	executable   string
	pollInterval time.Duration
	logger       *slog.Logger
	progress     ProgressFunc
}

// New constructs a Supervisor for the given executable path or name.
func New(executable string, opts ...Option) *Supervisor {
	s := &Supervisor{
		executable:   executable,
		pollInterval: DefaultPollInterval,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Executable returns the configured executable.
func (s *Supervisor) Executable() string { return s.executable }

// Args returns the smoothie-rs argument list for a task.
func Args(recipe, input, outputDir string) []string {
	return []string{"--recipe", recipe, "--input", input, "--outdir", outputDir}
}

// ResolveOutputDir returns dir as an absolute path, joining relative values
// onto the current working directory.
func ResolveOutputDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return filepath.Join(cwd, dir), nil
}

// Run supervises one invocation for task. Cancelling ctx is handled like a
// force stop.
func (s *Supervisor) Run(ctx context.Context, task queue.Task, stop ForceStopSource) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.WithContext(logging.WithTaskID(ctx, task.ID), s.logger)

	if _, err := os.Stat(task.RecipePath); err != nil {
		msg := fmt.Sprintf("Task %d failed: Recipe file not found at path: %s", task.ID, task.RecipePath)
		logging.WarnWithContext(logger, "recipe missing; task not started", "recipe_missing",
			logging.String("recipe", task.RecipePath),
			logging.String(logging.FieldErrorHint, "choose an existing recipe with 'smoothieq recipe set'"),
			logging.String(logging.FieldImpact, "task marked failed"),
		)
		return Outcome{Kind: OutcomeConfigMissing, Message: msg, ExitCode: -1, Cause: err}
	}

	outputDir, err := ResolveOutputDir(task.OutputDir)
	if err != nil {
		msg := fmt.Sprintf("Task %d failed to spawn: %v", task.ID, err)
		return Outcome{Kind: OutcomeSpawnFailed, Message: msg, ExitCode: -1, Cause: err}
	}

	args := Args(task.RecipePath, task.InputPath, outputDir)
	cmd := commandContext(ctx, s.executable, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.spawnFailed(logger, task, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.spawnFailed(logger, task, err)
	}
	if err := cmd.Start(); err != nil {
		return s.spawnFailed(logger, task, err)
	}

	logger.Info("smoothie-rs started",
		logging.String(logging.FieldEventType, "process_started"),
		logging.Int("pid", cmd.Process.Pid),
		logging.String("input", task.InputPath),
		logging.String("outdir", outputDir),
		logging.String("recipe", task.RecipePath),
	)
	started := time.Now()

	output := logging.NewComponentLogger(logger, "smoothie")
	sampler := logging.NewProgressSampler(5)
	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		s.streamOutput(output, sampler, task.ID, stdout, "stdout")
	}()
	go func() {
		defer streams.Done()
		s.streamOutput(output, nil, task.ID, stderr, "stderr")
	}()

	done := make(chan error, 1)
	go func() {
		streams.Wait()
		done <- cmd.Wait()
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.cancel(logger, task, cmd, done, ctx.Err())
		case <-ticker.C:
		}

		if stop != nil && stop.IsForceStopRequested() {
			return s.cancel(logger, task, cmd, done, nil)
		}

		select {
		case waitErr := <-done:
			if ctx.Err() != nil {
				return cancelledOutcome(ctx.Err())
			}
			return s.exited(logger, task, waitErr, time.Since(started))
		default:
		}
	}
}

func (s *Supervisor) spawnFailed(logger *slog.Logger, task queue.Task, err error) Outcome {
	msg := fmt.Sprintf("Task %d failed to spawn: %v. Is '%s' in PATH?", task.ID, err, filepath.Base(s.executable))
	logging.ErrorWithContext(logger, "smoothie-rs spawn failed", "process_spawn_failed",
		logging.Error(err),
		logging.String("executable", s.executable),
		logging.String(logging.FieldErrorHint, "set smoothie.executable or add smoothie-rs to PATH"),
	)
	return Outcome{Kind: OutcomeSpawnFailed, Message: msg, ExitCode: -1, Cause: err}
}

func (s *Supervisor) exited(logger *slog.Logger, task queue.Task, waitErr error, elapsed time.Duration) Outcome {
	if waitErr == nil {
		logger.Info("smoothie-rs finished",
			logging.String(logging.FieldEventType, "process_succeeded"),
			logging.Duration("elapsed", elapsed),
		)
		return Outcome{Kind: OutcomeSucceeded, ExitCode: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		msg := fmt.Sprintf("Task %d failed with status: %v", task.ID, exitErr)
		logging.ErrorWithContext(logger, "smoothie-rs exited with failure", "process_failed",
			logging.Int("exit_code", exitErr.ExitCode()),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, "check smoothie output lines above for the cause"),
		)
		return Outcome{Kind: OutcomeProcessFailed, Message: msg, ExitCode: exitErr.ExitCode(), Cause: waitErr}
	}

	msg := fmt.Sprintf("Task %d failed while waiting: %v", task.ID, waitErr)
	logging.ErrorWithContext(logger, "waiting for smoothie-rs failed", "process_wait_failed", logging.Error(waitErr))
	return Outcome{Kind: OutcomeWaitFailed, Message: msg, ExitCode: -1, Cause: waitErr}
}

func (s *Supervisor) cancel(logger *slog.Logger, task queue.Task, cmd *exec.Cmd, done <-chan error, cause error) Outcome {
	if err := killGroup(cmd.Process); err != nil {
		logging.WarnWithContext(logger, "failed to kill smoothie-rs", "process_kill_failed",
			logging.Error(err),
			logging.Int("pid", cmd.Process.Pid),
			logging.String(logging.FieldErrorHint, "check for a leftover smoothie-rs process"),
			logging.String(logging.FieldImpact, "process may still be writing output"),
		)
	}
	<-done
	logger.Info("smoothie-rs force stopped",
		logging.String(logging.FieldEventType, "process_cancelled"),
	)
	return cancelledOutcome(cause)
}

func cancelledOutcome(cause error) Outcome {
	return Outcome{Kind: OutcomeCancelled, Message: "Task force stopped by user", ExitCode: -1, Cause: cause}
}

// killGroup kills the process group led by proc, falling back to the single
// process when the group is already gone.
func killGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err == nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (s *Supervisor) streamOutput(logger *slog.Logger, sampler *logging.ProgressSampler, taskID int64, r io.Reader, source string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLinesOrCR)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if sampler != nil {
			if percent, ok := logging.ParsePercent(line); ok {
				if s.progress != nil {
					s.progress(taskID, percent)
				}
				if sampler.ShouldLog(percent) {
					logger.Info("progress",
						logging.Float64(logging.FieldProgressPercent, percent),
						logging.String("source", source),
					)
				}
				continue
			}
		}
		logger.Debug(line, logging.String("source", source))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Debug("output stream closed", logging.String("source", source), logging.Error(err))
	}
}

// scanLinesOrCR splits on \n or \r so carriage-return progress bars become lines.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
