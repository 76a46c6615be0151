package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"smoothieq/internal/config"
	"smoothieq/internal/ipc"
)

// globalFlags holds the persistent flags registered on the root command.
type globalFlags struct {
	socket string
	config string
}

// commandContext is shared by every subcommand. The config file is read at
// most once per invocation.
type commandContext struct {
	flags      *globalFlags
	loadConfig func() (*config.Config, error)
}

func newCommandContext(flags *globalFlags) *commandContext {
	c := &commandContext{flags: flags}
	c.loadConfig = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.loadConfig()
}

// configValue returns the loaded config, or nil when loading failed.
func (c *commandContext) configValue() *config.Config {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil
	}
	return cfg
}

func (c *commandContext) configPath() string {
	return strings.TrimSpace(c.flags.config)
}

// explicitSocket is the --socket value, empty when the flag was not given.
func (c *commandContext) explicitSocket() string {
	return strings.TrimSpace(c.flags.socket)
}

// socketPath resolves the daemon socket: --socket first, then the configured
// state directory, then the default state directory.
func (c *commandContext) socketPath() string {
	if socket := c.explicitSocket(); socket != "" {
		return socket
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	stateDir, err := config.ExpandPath("~/.local/share/smoothieq")
	if err != nil {
		stateDir = os.TempDir()
	}
	return filepath.Join(stateDir, "smoothieq.sock")
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, socket string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("no daemon listening at %s; run `smoothieq daemon start` first", socket)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("daemon socket %s refused the connection; it may have exited uncleanly, try `smoothieq daemon start`", socket)
	}
	return fmt.Errorf("connect to daemon at %s: %w", socket, err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
