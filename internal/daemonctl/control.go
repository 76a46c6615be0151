// Package daemonctl launches, locates, and stops the background smoothieq
// daemon from CLI processes.
package daemonctl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"smoothieq/internal/config"
	"smoothieq/internal/ipc"
)

// ErrDaemonNotRunning indicates nothing is listening on the daemon socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

const (
	dialRetryInterval = 200 * time.Millisecond
	stopPollInterval  = 100 * time.Millisecond
	pidFileName       = "smoothieq.pid"
)

// LaunchOptions are forwarded to the detached `daemon run` process.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	LogLevel   string
}

func (o LaunchOptions) args() []string {
	args := []string{"daemon", "run"}
	for _, flag := range [][2]string{
		{"--socket", o.SocketPath},
		{"--config", o.ConfigPath},
		{"--log-level", o.LogLevel},
	} {
		if value := strings.TrimSpace(flag[1]); value != "" {
			args = append(args, flag[0], value)
		}
	}
	return args
}

// StartResult reports whether EnsureRunning had to launch a process.
type StartResult struct {
	Launched bool
	PID      int
}

// StopResult describes how the daemon went away.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// Launch starts executable as a detached daemon in its own session.
func Launch(executable string, opts LaunchOptions) error {
	if strings.TrimSpace(executable) == "" {
		return errors.New("launch daemon: executable path is empty")
	}
	proc := exec.Command(executable, opts.args()...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient dials socketPath until it answers or timeout elapses.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	var lastErr error
	ok := poll(timeout, dialRetryInterval, func() bool {
		client, lastErr = ipc.Dial(socketPath)
		return lastErr == nil
	})
	if ok {
		return client, nil
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureRunning launches the daemon when its socket is not reachable and
// waits for it to answer.
func EnsureRunning(socketPath, executable string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	var result StartResult
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if !IsDaemonUnavailable(err) {
			return result, err
		}
		if err := Launch(executable, opts); err != nil {
			return result, err
		}
		if client, err = WaitForClient(socketPath, timeout); err != nil {
			return result, err
		}
		result.Launched = true
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return result, err
	}
	result.PID = status.PID
	return result, nil
}

// WaitForShutdown waits until nothing is listening on socketPath.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	gone := poll(timeout, stopPollInterval, func() bool {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return IsDaemonUnavailable(err)
		}
		_ = client.Close()
		return false
	})
	if !gone {
		return fmt.Errorf("daemon did not stop within %s", timeout)
	}
	return nil
}

// StopAndTerminate asks the daemon to shut down and force-kills the process
// if it is still answering after grace.
func StopAndTerminate(socketPath string, cfg *config.Config, grace time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if IsDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	var result StopResult
	var pidPath string
	if status, err := client.Status(); err == nil {
		result.PID = status.PID
		if status.LockPath != "" {
			pidPath = filepath.Join(filepath.Dir(status.LockPath), pidFileName)
		}
	}
	if pidPath == "" && cfg != nil {
		pidPath = cfg.PIDPath()
	}

	resp, err := client.Shutdown()
	_ = client.Close()
	if err != nil {
		return result, err
	}
	result.StopAcknowledged = resp.Stopping

	if WaitForShutdown(socketPath, grace) == nil {
		return result, nil
	}
	pid, err := forceKill(pidPath, result.PID)
	if err != nil {
		return result, fmt.Errorf("daemon ignored shutdown and could not be killed: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = pid
	return result, nil
}

// IsDaemonUnavailable reports whether a dial error means nothing is listening.
func IsDaemonUnavailable(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}

// forceKill sends SIGKILL to the pid recorded in pidPath, or fallbackPID when
// the file is missing, then removes the pid file.
func forceKill(pidPath string, fallbackPID int) (int, error) {
	pid, err := readPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		pid = fallbackPID
	}
	switch {
	case pid <= 0:
		return 0, fmt.Errorf("no daemon pid known (pid file %s)", pidPath)
	case pid == os.Getpid():
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return pid, fmt.Errorf("remove pid file: %w", err)
	}
	return pid, nil
}

// readPID returns 0 when the file is absent or does not hold a positive pid.
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid < 0 {
		return 0, nil
	}
	return pid, nil
}

// poll calls done every interval until it reports true or timeout elapses.
func poll(timeout, interval time.Duration, done func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if done() {
			return true
		}
		if time.Now().Add(interval).After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
