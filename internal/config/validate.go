package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.PollIntervalMS <= 0 {
		return errors.New("queue.poll_interval_ms must be positive")
	}
	if len(c.Queue.Extensions) == 0 {
		return errors.New("queue.extensions must include at least one extension")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
