package main

import (
	"strings"
	"testing"
	"time"

	"smoothieq/internal/ipc"
	"smoothieq/internal/worker"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":      "Pending",
		"cancelled":    "Cancelled",
		"worker_state": "Worker State",
		"  ":           "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildQueueStatusRowsFollowsLifecycleOrder(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{
		"failed":    1,
		"pending":   3,
		"completed": 2,
		"running":   0,
	})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %v", rows)
	}
	want := []string{"Pending", "Completed", "Failed"}
	for i, label := range want {
		if rows[i][0] != label {
			t.Fatalf("row %d = %v, want %s", i, rows[i], label)
		}
	}
	if rows[0][1] != "3" {
		t.Fatalf("unexpected pending count %q", rows[0][1])
	}
}

func TestShortenPath(t *testing.T) {
	if got := shortenPath("/a/b.mp4", 20); got != "/a/b.mp4" {
		t.Fatalf("short path changed: %q", got)
	}
	got := shortenPath("/very/long/directory/name/clip.mp4", 12)
	if len([]rune(got)) != 12 || !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "clip.mp4") {
		t.Fatalf("unexpected shortened path %q", got)
	}
}

func TestParseTaskID(t *testing.T) {
	if id, err := parseTaskID(" 7 "); err != nil || id != 7 {
		t.Fatalf("parseTaskID: %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := parseTaskID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	got := formatEvent(ipc.Event{Kind: worker.TaskFailed, TaskID: 4, Message: "recipe missing", Time: stamp})
	if got != "03:04:05 task 4 failed: recipe missing" {
		t.Fatalf("unexpected event text %q", got)
	}
	got = formatEvent(ipc.Event{Kind: worker.WorkerFinished, Message: "force stopped", Time: stamp})
	if !strings.HasSuffix(got, "worker finished (force stopped)") {
		t.Fatalf("unexpected finish text %q", got)
	}
}

func TestWorkerStateKind(t *testing.T) {
	if kind, label := workerStateKind(true, true, false); kind != statusWarn || !strings.Contains(label, "Pausing") {
		t.Fatalf("unexpected pausing state: %v %q", kind, label)
	}
	if kind, _ := workerStateKind(true, false, true); kind != statusWarn {
		t.Fatalf("force stop should warn, got %v", kind)
	}
	if kind, label := workerStateKind(false, false, false); kind != statusInfo || label != "Idle" {
		t.Fatalf("unexpected idle state: %v %q", kind, label)
	}
}

func TestStatusPrinterSections(t *testing.T) {
	var out strings.Builder
	p := newStatusPrinter(&out)
	p.section("Worker")
	p.line("State", statusOK, "Running")
	p.section("Daemon")
	p.line("Log", statusInfo, "")

	want := "== Worker ==\n" +
		"------------\n" +
		"  State:               [OK] Running\n" +
		"\n" +
		"== Daemon ==\n" +
		"------------\n" +
		"  Log:                 [INFO]\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", out.String(), want)
	}
}
