package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSmoothie(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSmoothie() error {
	if c.Smoothie.Executable == "" {
		if value, ok := os.LookupEnv("SMOOTHIE_EXECUTABLE"); ok {
			c.Smoothie.Executable = value
		}
	}
	if c.Smoothie.Recipe == "" {
		if value, ok := os.LookupEnv("SMOOTHIE_RECIPE"); ok {
			c.Smoothie.Recipe = value
		}
	}

	var err error
	c.Smoothie.Executable = strings.TrimSpace(c.Smoothie.Executable)
	if c.Smoothie.Executable, err = expandPath(c.Smoothie.Executable); err != nil {
		return fmt.Errorf("smoothie.executable: %w", err)
	}
	c.Smoothie.Recipe = strings.TrimSpace(c.Smoothie.Recipe)
	if c.Smoothie.Recipe, err = expandPath(c.Smoothie.Recipe); err != nil {
		return fmt.Errorf("smoothie.recipe: %w", err)
	}
	c.Smoothie.SearchDir = strings.TrimSpace(c.Smoothie.SearchDir)
	if c.Smoothie.SearchDir, err = expandPath(c.Smoothie.SearchDir); err != nil {
		return fmt.Errorf("smoothie.search_dir: %w", err)
	}
	return nil
}

// Output directories stay as written so relative values resolve against the
// working directory when each task is launched.
func (c *Config) normalizeQueue() {
	c.Queue.OutputDir = strings.TrimSpace(c.Queue.OutputDir)
	if strings.HasPrefix(c.Queue.OutputDir, "~") {
		if expanded, err := expandPath(c.Queue.OutputDir); err == nil {
			c.Queue.OutputDir = expanded
		}
	}
	if c.Queue.PollIntervalMS == 0 {
		c.Queue.PollIntervalMS = defaultPollIntervalMS
	}

	seen := make(map[string]struct{}, len(c.Queue.Extensions))
	exts := make([]string, 0, len(c.Queue.Extensions))
	for _, ext := range c.Queue.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Queue.Extensions = exts
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
