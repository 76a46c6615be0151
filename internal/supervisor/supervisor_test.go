package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smoothieq/internal/queue"
)

type flag struct{ set atomic.Bool }

func (f *flag) IsForceStopRequested() bool { return f.set.Load() }

func useHelper(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "SMOOTHIE_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func writeRecipe(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.ini")
	if err := os.WriteFile(path, []byte("[interpolation]\nenabled=yes\n"), 0o644); err != nil {
		t.Fatalf("write recipe: %v", err)
	}
	return path
}

func TestRunSucceedsAndPassesArguments(t *testing.T) {
	var captured []string
	useHelper(t, "success", &captured)

	recipe := writeRecipe(t)
	outDir := t.TempDir()
	task := queue.NewTask(1, "/videos/clip.mkv", outDir, recipe)

	var mu sync.Mutex
	var progress []float64
	sup := New("smoothie-rs",
		WithPollInterval(10*time.Millisecond),
		WithProgress(func(id int64, percent float64) {
			mu.Lock()
			defer mu.Unlock()
			if id == 1 {
				progress = append(progress, percent)
			}
		}),
	)
	outcome := sup.Run(context.Background(), task, &flag{})
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Err() != nil {
		t.Fatalf("expected nil error, got %v", outcome.Err())
	}

	want := []string{"smoothie-rs", "--recipe", recipe, "--input", "/videos/clip.mkv", "--outdir", outDir}
	if strings.Join(captured, "|") != strings.Join(want, "|") {
		t.Fatalf("args = %v, want %v", captured, want)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) != 2 || progress[0] != 50 || progress[1] != 100 {
		t.Fatalf("unexpected progress: %v", progress)
	}
}

func TestRunResolvesRelativeOutputDir(t *testing.T) {
	var captured []string
	useHelper(t, "success", &captured)
	cwd := t.TempDir()
	t.Chdir(cwd)

	task := queue.NewTask(2, "in.mp4", "renders", writeRecipe(t))
	outcome := New("smoothie-rs", WithPollInterval(10*time.Millisecond)).Run(context.Background(), task, &flag{})
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	got := captured[len(captured)-1]
	if !filepath.IsAbs(got) || filepath.Base(got) != "renders" {
		t.Fatalf("expected absolute renders dir, got %q", got)
	}
}

func TestRunMissingRecipeDoesNotSpawn(t *testing.T) {
	spawned := false
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		spawned = true
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { commandContext = original })

	missing := filepath.Join(t.TempDir(), "nope.ini")
	task := queue.NewTask(3, "in.mp4", t.TempDir(), missing)
	outcome := New("smoothie-rs").Run(context.Background(), task, &flag{})

	if outcome.Kind != OutcomeConfigMissing {
		t.Fatalf("expected config missing, got %+v", outcome)
	}
	if !strings.Contains(outcome.Message, missing) {
		t.Fatalf("message %q does not name %q", outcome.Message, missing)
	}
	if spawned {
		t.Fatal("process spawned despite missing recipe")
	}
	if !errors.Is(outcome.Err(), ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", outcome.Err())
	}
}

func TestRunProcessFailureCarriesStatus(t *testing.T) {
	useHelper(t, "fail", nil)
	task := queue.NewTask(4, "in.mp4", t.TempDir(), writeRecipe(t))

	outcome := New("smoothie-rs", WithPollInterval(10*time.Millisecond)).Run(context.Background(), task, &flag{})
	if outcome.Kind != OutcomeProcessFailed {
		t.Fatalf("expected process failure, got %+v", outcome)
	}
	if outcome.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", outcome.ExitCode)
	}
	if outcome.Message != "Task 4 failed with status: exit status 3" {
		t.Fatalf("unexpected message: %q", outcome.Message)
	}
	if !errors.Is(outcome.Err(), ErrProcess) {
		t.Fatalf("expected ErrProcess, got %v", outcome.Err())
	}
}

func TestRunSpawnFailureIsDistinct(t *testing.T) {
	task := queue.NewTask(5, "in.mp4", t.TempDir(), writeRecipe(t))
	exe := filepath.Join(t.TempDir(), "missing", "smoothie-rs")

	outcome := New(exe).Run(context.Background(), task, &flag{})
	if outcome.Kind != OutcomeSpawnFailed {
		t.Fatalf("expected spawn failure, got %+v", outcome)
	}
	if !strings.Contains(outcome.Message, "Is 'smoothie-rs' in PATH?") {
		t.Fatalf("unexpected message: %q", outcome.Message)
	}
	if !errors.Is(outcome.Err(), ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", outcome.Err())
	}
}

func TestRunForceStopKillsProcess(t *testing.T) {
	useHelper(t, "sleep", nil)
	task := queue.NewTask(6, "in.mp4", t.TempDir(), writeRecipe(t))

	stop := &flag{}
	go func() {
		time.Sleep(150 * time.Millisecond)
		stop.set.Store(true)
	}()

	start := time.Now()
	outcome := New("smoothie-rs", WithPollInterval(10*time.Millisecond)).Run(context.Background(), task, stop)
	if outcome.Kind != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %+v", outcome)
	}
	if outcome.Message != "Task force stopped by user" {
		t.Fatalf("unexpected message: %q", outcome.Message)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("force stop took too long: %s", elapsed)
	}
	if !errors.Is(outcome.Err(), ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", outcome.Err())
	}
}

func TestRunContextCancelTreatedAsForceStop(t *testing.T) {
	useHelper(t, "sleep", nil)
	task := queue.NewTask(7, "in.mp4", t.TempDir(), writeRecipe(t))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	outcome := New("smoothie-rs", WithPollInterval(10*time.Millisecond)).Run(ctx, task, nil)
	if outcome.Kind != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %+v", outcome)
	}
	if !errors.Is(outcome.Err(), context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", outcome.Err())
	}
}

func TestOutcomeErrUnknownKind(t *testing.T) {
	if err := (Outcome{Kind: "bogus"}).Err(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestScanLinesOrCR(t *testing.T) {
	advance, token, _ := scanLinesOrCR([]byte("10%\r20%"), false)
	if advance != 4 || string(token) != "10%" {
		t.Fatalf("advance=%d token=%q", advance, token)
	}
	advance, token, _ = scanLinesOrCR([]byte("tail"), true)
	if advance != 4 || string(token) != "tail" {
		t.Fatalf("advance=%d token=%q", advance, token)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("SMOOTHIE_HELPER_MODE") {
	case "success":
		fmt.Println("Loading recipe")
		fmt.Print("Rendering 50%\r")
		fmt.Println("Rendering 100%")
		fmt.Fprintln(os.Stderr, "warning: vspipe noise")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "error: unsupported codec")
		os.Exit(3)
	case "sleep":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	default:
		os.Exit(2)
	}
}
