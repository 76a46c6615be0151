package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"smoothieq/internal/daemon"
	"smoothieq/internal/history"
	"smoothieq/internal/logging"
	"smoothieq/internal/notifications"
	"smoothieq/internal/smoothie"
	"smoothieq/internal/worker"
	"smoothieq/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var recipe string
	var outputDir string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run <file>...",
		Short: "Process files in the foreground without a daemon",
		Long: "Process files in the foreground without a daemon.\n\n" +
			"Interrupting with Ctrl-C force stops the running task.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level := cfg.Logging.Level
			if strings.TrimSpace(logLevel) != "" {
				level = logLevel
			}
			logger := logging.NewConsole(level)

			inst, err := smoothie.Discover(cfg, logger)
			if err != nil {
				return err
			}
			if strings.TrimSpace(recipe) != "" {
				if inst.Recipe, err = filepath.Abs(recipe); err != nil {
					return fmt.Errorf("resolve recipe: %w", err)
				}
			}

			var journal *history.Journal
			if cfg.History.Enabled {
				if journal, err = history.Open(cfg.HistoryPath()); err != nil {
					logging.WarnWithContext(logger, "history journal unavailable", "history_open_failed",
						logging.Error(err),
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
			d, err := daemon.New(cfg, logger, manager, daemon.WithJournal(journal))
			if err != nil {
				manager.Close()
				return err
			}
			defer d.Close()
			if err := d.Start(cmd.Context()); err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return errors.New("a smoothieq daemon is running; queue files with `smoothieq add` instead")
				}
				return err
			}

			if strings.TrimSpace(outputDir) != "" {
				abs, err := filepath.Abs(outputDir)
				if err != nil {
					return fmt.Errorf("resolve output folder: %w", err)
				}
				if _, err := manager.SetOutputDir(abs); err != nil {
					return err
				}
			}

			paths := make([]string, 0, len(args))
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", arg, err)
				}
				paths = append(paths, abs)
			}
			tasks, addErr := manager.AddFiles(paths...)
			if addErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipped:\n%v\n", addErr)
			}
			if len(tasks) == 0 {
				return errors.New("no files were queued")
			}

			return runForeground(cmd, manager)
		},
	}

	cmd.Flags().StringVar(&recipe, "recipe", "", "Recipe to use instead of the installation default")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output folder (defaults to each input's folder)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func runForeground(cmd *cobra.Command, manager *workflow.Manager) error {
	ctx := cmd.Context()
	if err := manager.Start(ctx); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-signals:
				manager.ForceStop()
			case <-done:
				return
			}
		}
	}()

	out := cmd.OutOrStdout()
	failed := 0
	var after uint64
	for {
		events, err := manager.WaitEvents(ctx, after)
		if err != nil {
			manager.Stop()
			return err
		}
		for _, evt := range events {
			after = evt.Seq
			fmt.Fprintln(out, formatEvent(evt))
			switch evt.Kind {
			case worker.TaskFailed:
				failed++
			case worker.WorkerFinished:
				manager.Wait()
				if failed > 0 {
					return fmt.Errorf("%d task(s) failed", failed)
				}
				return nil
			}
		}
	}
}
