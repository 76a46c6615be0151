package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"smoothieq/internal/daemonctl"
	"smoothieq/internal/daemonrun"
)

const (
	daemonStartTimeout = 10 * time.Second
	daemonStopGrace    = 5 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the smoothieq daemon process",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonRestartCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:    "run",
		Short:  "Run the daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   logLevel,
				SocketPath: ctx.socketPath(),
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the smoothieq daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureRunning(ctx.socketPath(), exe, daemonLaunchOptions(ctx, logLevel), daemonStartTimeout)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
				return nil
			}
			fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the smoothieq daemon (force stops any running task)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), daemonStopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			reportStop(stdout, result)
			return nil
		},
	}
}

func newDaemonRestartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the smoothieq daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), daemonStopGrace)
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
			case err != nil:
				return err
			default:
				reportStop(stdout, result)
			}
			start, err := daemonctl.EnsureRunning(ctx.socketPath(), exe, daemonLaunchOptions(ctx, logLevel), daemonStartTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", start.PID)
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func reportStop(out io.Writer, result daemonctl.StopResult) {
	if result.ForcedKill && result.PID > 0 {
		fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
	}
	fmt.Fprintln(out, "Daemon stopped")
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		SocketPath: ctx.explicitSocket(),
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
}
