package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(sourceLabel(src))
				}
			}
			return attr
		},
	})
}

// consoleHandler writes one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO worker: task started [worker.go:88] task_id=3 path=/a.mkv
//
// The component attribute is lifted into the prefix. Attributes bound with
// WithAttrs are rendered once and reused for every record.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	component string
	bound     string
	prefix    string
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	component := h.component
	var attrs strings.Builder
	attrs.WriteString(h.bound)
	record.Attrs(func(attr slog.Attr) bool {
		if h.prefix == "" && attr.Key == FieldComponent && component == "" {
			component = valueText(attr.Value)
			return true
		}
		writeAttr(&attrs, h.prefix, attr)
		return true
	})

	var line strings.Builder
	line.Grow(96 + attrs.Len())
	line.WriteString(ts.UTC().Format(time.RFC3339))
	line.WriteByte(' ')
	line.WriteString(levelLabel(record.Level))
	line.WriteByte(' ')
	if component != "" {
		line.WriteString(component)
		line.WriteString(": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(msg)
	if h.addSource {
		if src := record.Source(); src != nil {
			line.WriteString(" [" + sourceLabel(src) + "]")
		}
	}
	line.WriteString(attrs.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	var bound strings.Builder
	bound.WriteString(h.bound)
	for _, attr := range attrs {
		if h.prefix == "" && attr.Key == FieldComponent {
			next.component = valueText(attr.Value)
			continue
		}
		writeAttr(&bound, h.prefix, attr)
	}
	next.bound = bound.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// writeAttr appends " key=value" pairs, flattening groups into dotted keys.
func writeAttr(b *strings.Builder, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = prefix + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			writeAttr(b, inner, member)
		}
		return
	}
	key := prefix + attr.Key
	if key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(quoteIfNeeded(valueText(attr.Value)))
}

func valueText(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func sourceLabel(src *slog.Source) string {
	return filepath.Base(src.File) + ":" + strconv.Itoa(src.Line)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
