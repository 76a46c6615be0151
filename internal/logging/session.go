package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogFileName is the pointer inside the log directory that always refers to
// the newest daemon session log.
const LogFileName = "smoothieq.log"

const (
	sessionPrefix = "smoothieq-"
	sessionSuffix = ".log"
	sessionStamp  = "20060102T150405.000Z"
)

// SessionLog is one per-run daemon log file.
type SessionLog struct {
	Path    string
	Started time.Time
	ModTime time.Time
	Size    int64
}

// SessionLogPath returns the log file for a daemon session started at now.
func SessionLogPath(dir string, now time.Time) string {
	return filepath.Join(dir, sessionPrefix+now.UTC().Format(sessionStamp)+sessionSuffix)
}

// LinkCurrent repoints dir/LogFileName at target. A hard link is used when the
// filesystem refuses symlinks.
func LinkCurrent(dir, target string) error {
	if dir == "" || target == "" {
		return nil
	}
	pointer := filepath.Join(dir, LogFileName)
	if err := os.Remove(pointer); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove log pointer: %w", err)
	}
	if err := os.Symlink(target, pointer); err == nil {
		return nil
	}
	if err := os.Link(target, pointer); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// ListSessions returns the session logs in dir, newest first. Files whose
// names carry no session stamp are ignored.
func ListSessions(dir string) ([]SessionLog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sessions []SessionLog
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasPrefix(name, sessionPrefix) || !strings.HasSuffix(name, sessionSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, sessionPrefix), sessionSuffix)
		started, err := time.Parse(sessionStamp, stamp)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, SessionLog{
			Path:    filepath.Join(dir, name),
			Started: started,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Started.After(sessions[j].Started) })
	return sessions, nil
}

// PruneSessions deletes session logs in dir not written to for retentionDays.
// The file at keep survives regardless of age, and retentionDays <= 0 keeps
// everything. It returns how many files were removed.
func PruneSessions(logger *slog.Logger, dir string, retentionDays int, keep string) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	sessions, err := ListSessions(dir)
	if err != nil {
		WarnWithContext(logger, "log retention skipped", "log_retention_failed",
			String("log_dir", dir),
			Error(err),
			String(FieldImpact, "old session logs remain on disk"),
		)
		return 0
	}
	if keep != "" {
		if abs, err := filepath.Abs(keep); err == nil {
			keep = abs
		}
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, session := range sessions {
		if !session.ModTime.Before(cutoff) {
			continue
		}
		if abs, err := filepath.Abs(session.Path); err == nil && abs == keep {
			continue
		}
		if err := os.Remove(session.Path); err != nil {
			WarnWithContext(logger, "session log not pruned", "log_retention_failed",
				String("path", session.Path),
				Error(err),
				String(FieldErrorHint, "check log_dir ownership"),
				String(FieldImpact, "old session log remains on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Info("pruned session logs",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
