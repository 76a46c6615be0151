package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"smoothieq/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Outputs lists destinations; "stdout" and "stderr" name the standard
	// streams and anything else is a file opened for append.
	Outputs []string
	// AddSource forces caller annotations. Debug level always adds them.
	AddSource bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.AddSource || levelVar.Level() <= slog.LevelDebug

	outputs := opts.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	w, err := openOutputs(outputs)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(newConsoleHandler(w, levelVar, addSource)), nil
	case "json":
		return slog.New(newJSONHandler(w, levelVar, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig builds the daemon logger. Records go to stdout and logPath;
// an empty logPath falls back to LogFileName inside the configured log dir.
func NewFromConfig(cfg *config.Config, logPath string) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info"})
	}
	if logPath == "" && cfg.Paths.LogDir != "" {
		logPath = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}
	outputs := []string{"stdout"}
	if logPath != "" {
		outputs = append(outputs, logPath)
	}
	return New(Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: outputs,
	})
}

// NewConsole builds a stderr-only logger for interactive CLI commands.
func NewConsole(level string) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(level))
	return slog.New(newConsoleHandler(os.Stderr, levelVar, false))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutputs(outputs []string) (io.Writer, error) {
	seen := make(map[string]bool, len(outputs))
	writers := make([]io.Writer, 0, len(outputs))
	for _, raw := range outputs {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", name, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
