package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"smoothieq/internal/ipc"
	"smoothieq/internal/queue"
	"smoothieq/internal/worker"
)

const pathColumnWidth = 48

var titleCaser = cases.Title(language.English)

// statusOrder lists queue states in lifecycle order for summaries.
var statusOrder = func() []string {
	kinds := queue.AllStatusKinds()
	out := make([]string, len(kinds))
	for i, kind := range kinds {
		out[i] = string(kind)
	}
	return out
}()

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(stats))
	rows := make([][]string, 0, len(stats))
	for _, key := range statusOrder {
		count, ok := stats[key]
		if !ok || count == 0 {
			continue
		}
		seen[key] = true
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(count)})
	}
	extra := make([]string, 0)
	for key, count := range stats {
		if !seen[key] && count > 0 {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(stats[key])})
	}
	return rows
}

func buildTaskRows(tasks []ipc.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		status := formatStatusLabel(task.Status)
		if task.Reason != "" {
			status = fmt.Sprintf("%s (%s)", status, task.Reason)
		}
		rows = append(rows, []string{
			strconv.FormatInt(task.ID, 10),
			status,
			shortenPath(task.InputPath, pathColumnWidth),
			shortenPath(task.OutputDir, pathColumnWidth),
		})
	}
	return rows
}

func buildHistoryRows(entries []ipc.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		duration := ""
		if !entry.StartedAt.IsZero() && !entry.FinishedAt.IsZero() {
			duration = entry.FinishedAt.Sub(entry.StartedAt).Round(time.Second).String()
		}
		status := formatStatusLabel(entry.Status)
		if entry.Message != "" {
			status = fmt.Sprintf("%s (%s)", status, entry.Message)
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.TaskID, 10),
			status,
			shortenPath(entry.InputPath, pathColumnWidth),
			entry.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
		})
	}
	return rows
}

func formatEvent(evt ipc.Event) string {
	stamp := evt.Time.Local().Format("15:04:05")
	switch evt.Kind {
	case worker.TaskStarted:
		return fmt.Sprintf("%s task %d started", stamp, evt.TaskID)
	case worker.TaskCompleted:
		return fmt.Sprintf("%s task %d completed", stamp, evt.TaskID)
	case worker.TaskFailed:
		return fmt.Sprintf("%s task %d failed: %s", stamp, evt.TaskID, evt.Message)
	case worker.TaskCancelled:
		return fmt.Sprintf("%s task %d cancelled", stamp, evt.TaskID)
	case worker.WorkerFinished:
		if evt.Message != "" {
			return fmt.Sprintf("%s worker finished (%s)", stamp, evt.Message)
		}
		return fmt.Sprintf("%s worker finished", stamp)
	default:
		return fmt.Sprintf("%s %s", stamp, evt.Kind)
	}
}

func formatProgress(percent float64) string {
	if percent <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f%%", percent)
}

func parseTaskID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", value)
	}
	return id, nil
}
