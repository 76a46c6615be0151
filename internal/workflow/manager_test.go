package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"smoothieq/internal/config"
	"smoothieq/internal/logging"
	"smoothieq/internal/notifications"
	"smoothieq/internal/queue"
	"smoothieq/internal/supervisor"
	"smoothieq/internal/testsupport"
	"smoothieq/internal/worker"
	"smoothieq/internal/workflow"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    []int64
	outcomes map[int64]supervisor.Outcome
	block    chan struct{}
	started  chan int64
	onRun    func(task queue.Task)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outcomes: make(map[int64]supervisor.Outcome),
		started:  make(chan int64, 16),
	}
}

func (f *fakeRunner) Run(ctx context.Context, task queue.Task, stop supervisor.ForceStopSource) supervisor.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, task.ID)
	block := f.block
	outcome, ok := f.outcomes[task.ID]
	hook := f.onRun
	f.mu.Unlock()

	if hook != nil {
		hook(task)
	}
	select {
	case f.started <- task.ID:
	default:
	}

	if block != nil {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
	wait:
		for {
			select {
			case <-block:
				break wait
			case <-ctx.Done():
				return supervisor.Outcome{Kind: supervisor.OutcomeCancelled, Message: "Task cancelled", Cause: ctx.Err()}
			case <-ticker.C:
				if stop.IsForceStopRequested() {
					return supervisor.Outcome{Kind: supervisor.OutcomeCancelled, Message: "Task force stopped by user"}
				}
			}
		}
	}
	if ok {
		return outcome
	}
	return supervisor.Outcome{Kind: supervisor.OutcomeSucceeded}
}

func (f *fakeRunner) Calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

type recordingNotifier struct {
	mu        sync.Mutex
	failures  []int64
	summaries []notifications.QueueSummary
}

func (r *recordingNotifier) NotifyTaskFailed(_ context.Context, taskID int64, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, taskID)
	return nil
}

func (r *recordingNotifier) NotifyQueueFinished(_ context.Context, summary notifications.QueueSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func newManager(t *testing.T, runner *fakeRunner, opts ...workflow.Option) (*workflow.Manager, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	opts = append([]workflow.Option{workflow.WithRunner(runner)}, opts...)
	mgr := workflow.NewManager(cfg, "smoothie-rs", logging.NewNop(), opts...)
	t.Cleanup(mgr.Close)
	return mgr, cfg
}

func addInputs(t *testing.T, mgr *workflow.Manager, names ...string) []queue.Task {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, testsupport.WriteMedia(t, dir, name))
	}
	tasks, err := mgr.AddFiles(paths...)
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	return tasks
}

// collectRun gathers notifications after cursor until WorkerFinished arrives.
func collectRun(t *testing.T, mgr *workflow.Manager, after uint64) []worker.Notification {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out []worker.Notification
	for {
		batch, err := mgr.WaitEvents(ctx, after)
		if err != nil {
			t.Fatalf("WaitEvents after %d: %v (got %v)", after, err, out)
		}
		for _, n := range batch {
			out = append(out, n)
			after = n.Seq
			if n.Kind == worker.WorkerFinished {
				return out
			}
		}
	}
}

func kinds(events []worker.Notification) []worker.Kind {
	out := make([]worker.Kind, 0, len(events))
	for _, n := range events {
		out = append(out, n.Kind)
	}
	return out
}

func equalKinds(a, b []worker.Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitStarted(t *testing.T, runner *fakeRunner) int64 {
	t.Helper()
	select {
	case id := <-runner.started:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("runner was not invoked")
		return 0
	}
}

func waitIdle(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for mgr.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAddFilesAssignsIDsAndDefaults(t *testing.T) {
	mgr, cfg := newManager(t, newFakeRunner())

	tasks := addInputs(t, mgr, "a.mp4", "b.MKV")
	if len(tasks) != 2 || tasks[0].ID != 1 || tasks[1].ID != 2 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	for _, task := range tasks {
		if task.RecipePath != cfg.Smoothie.Recipe {
			t.Fatalf("task %d recipe = %q, want %q", task.ID, task.RecipePath, cfg.Smoothie.Recipe)
		}
		if task.OutputDir != filepath.Dir(task.InputPath) {
			t.Fatalf("task %d output dir = %q, want input folder", task.ID, task.OutputDir)
		}
		if !task.IsPending() {
			t.Fatalf("task %d status = %s", task.ID, task.Status)
		}
	}

	more := addInputs(t, mgr, "c.webm")
	if more[0].ID != 3 {
		t.Fatalf("expected id 3, got %d", more[0].ID)
	}
}

func TestAddFilesRejectsUnsupportedExtensions(t *testing.T) {
	mgr, _ := newManager(t, newFakeRunner())
	dir := t.TempDir()

	tasks, err := mgr.AddFiles(
		filepath.Join(dir, "notes.txt"),
		filepath.Join(dir, "clip.mov"),
		filepath.Join(dir, "noext"),
	)
	if !errors.Is(err, workflow.ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != 1 {
		t.Fatalf("expected only clip.mov queued as task 1, got %+v", tasks)
	}
	if got := len(mgr.Snapshot()); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}
}

func TestAddFilesUsesSelectedOutputDir(t *testing.T) {
	mgr, _ := newManager(t, newFakeRunner())
	out := t.TempDir()
	if _, err := mgr.SetOutputDir(out); err != nil {
		t.Fatalf("SetOutputDir: %v", err)
	}
	tasks := addInputs(t, mgr, "a.mp4")
	if tasks[0].OutputDir != out {
		t.Fatalf("output dir = %q, want %q", tasks[0].OutputDir, out)
	}
}

func TestManagerProcessesQueueInOrder(t *testing.T) {
	runner := newFakeRunner()
	runner.outcomes[2] = supervisor.Outcome{Kind: supervisor.OutcomeProcessFailed, Message: "Task 2 failed with status: exit status 1"}
	notifier := &recordingNotifier{}
	cfg := testsupport.NewConfig(t)
	journal := testsupport.MustOpenJournal(t, cfg)
	mgr := workflow.NewManager(cfg, "smoothie-rs", logging.NewNop(),
		workflow.WithRunner(runner), workflow.WithNotifier(notifier), workflow.WithJournal(journal))
	t.Cleanup(mgr.Close)

	addInputs(t, mgr, "a.mp4", "b.mp4", "c.mp4")
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collectRun(t, mgr, 0)

	want := []worker.Kind{
		worker.TaskStarted, worker.TaskCompleted,
		worker.TaskStarted, worker.TaskFailed,
		worker.TaskStarted, worker.TaskCompleted,
		worker.WorkerFinished,
	}
	if !equalKinds(kinds(events), want) {
		t.Fatalf("event kinds = %v, want %v", kinds(events), want)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Fatalf("sequence not increasing: %d then %d", events[i-1].Seq, events[i].Seq)
		}
	}
	if events[len(events)-1].Message != worker.ReasonDrained {
		t.Fatalf("finish reason = %q", events[len(events)-1].Message)
	}
	if calls := runner.Calls(); len(calls) != 3 || calls[0] != 1 || calls[2] != 3 {
		t.Fatalf("runner calls = %v", calls)
	}

	waitIdle(t, mgr)
	status := mgr.Status()
	if status.QueueStats[queue.StatusCompleted] != 2 || status.QueueStats[queue.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %+v", status.QueueStats)
	}
	if status.LastError == "" {
		t.Fatal("expected last error from failed task")
	}

	mgr.Close()
	notifier.mu.Lock()
	failures := append([]int64(nil), notifier.failures...)
	summaries := append([]notifications.QueueSummary(nil), notifier.summaries...)
	notifier.mu.Unlock()
	if len(failures) != 1 || failures[0] != 2 {
		t.Fatalf("failure notifications = %v", failures)
	}
	if len(summaries) != 1 || summaries[0].Completed != 2 || summaries[0].Failed != 1 {
		t.Fatalf("queue summaries = %+v", summaries)
	}

	entries, err := journal.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("journal.List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("history entries = %d, want 3", len(entries))
	}
	if entries[0].TaskID != 3 || entries[1].Status != string(queue.StatusFailed) {
		t.Fatalf("unexpected history order: %+v", entries)
	}
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})
	mgr, _ := newManager(t, runner)
	addInputs(t, mgr, "a.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStarted(t, runner)

	if err := mgr.Start(context.Background()); !errors.Is(err, workflow.ErrWorkerActive) {
		t.Fatalf("second Start = %v, want ErrWorkerActive", err)
	}
	if err := mgr.Clear(); !errors.Is(err, workflow.ErrWorkerActive) {
		t.Fatalf("Clear while running = %v, want ErrWorkerActive", err)
	}
	if err := mgr.Remove(1); !errors.Is(err, workflow.ErrNotPending) {
		t.Fatalf("Remove running task = %v, want ErrNotPending", err)
	}

	close(runner.block)
	collectRun(t, mgr, 0)
	waitIdle(t, mgr)

	if err := mgr.Clear(); err != nil {
		t.Fatalf("Clear after run: %v", err)
	}
	if err := mgr.Clear(); !errors.Is(err, workflow.ErrQueueEmpty) {
		t.Fatalf("Clear on empty queue = %v, want ErrQueueEmpty", err)
	}
}

func TestPauseStopsAfterCurrentTask(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})
	mgr, _ := newManager(t, runner)
	addInputs(t, mgr, "a.mp4", "b.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStarted(t, runner)
	mgr.Pause()
	if !mgr.Status().Paused() {
		t.Fatal("expected paused status")
	}
	close(runner.block)

	events := collectRun(t, mgr, 0)
	want := []worker.Kind{worker.TaskStarted, worker.TaskCompleted, worker.WorkerFinished}
	if !equalKinds(kinds(events), want) {
		t.Fatalf("event kinds = %v, want %v", kinds(events), want)
	}
	if events[2].Message != worker.ReasonStopped {
		t.Fatalf("finish reason = %q", events[2].Message)
	}
	waitIdle(t, mgr)

	task, _ := mgr.Store().Get(2)
	if !task.IsPending() {
		t.Fatalf("task 2 status = %s, want pending", task.Status)
	}

	// Start clears the pause and continues with the remaining task.
	last := events[2].Seq
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	events = collectRun(t, mgr, last)
	if events[0].TaskID != 2 || events[1].Kind != worker.TaskCompleted {
		t.Fatalf("restart events = %+v", events)
	}
}

func TestForceStopCancelsRunningTask(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})
	defer close(runner.block)
	mgr, _ := newManager(t, runner)
	addInputs(t, mgr, "a.mp4", "b.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStarted(t, runner)
	mgr.ForceStop()

	events := collectRun(t, mgr, 0)
	want := []worker.Kind{worker.TaskStarted, worker.TaskCancelled, worker.WorkerFinished}
	if !equalKinds(kinds(events), want) {
		t.Fatalf("event kinds = %v, want %v", kinds(events), want)
	}
	if events[1].Message != "Task force stopped by user" {
		t.Fatalf("cancel message = %q", events[1].Message)
	}
	waitIdle(t, mgr)
	task, _ := mgr.Store().Get(1)
	if task.Status.Kind != queue.StatusCancelled {
		t.Fatalf("task 1 status = %s", task.Status)
	}
	if got := len(runner.Calls()); got != 1 {
		t.Fatalf("runner calls = %d, want 1", got)
	}
}

func TestTogglePauseAndResume(t *testing.T) {
	mgr, _ := newManager(t, newFakeRunner())
	if !mgr.TogglePause() {
		t.Fatal("first toggle should pause")
	}
	if mgr.TogglePause() {
		t.Fatal("second toggle should resume")
	}
	mgr.Pause()
	mgr.Resume()
	if mgr.Status().Paused() {
		t.Fatal("resume should clear pause")
	}
}

func TestRemovePendingTask(t *testing.T) {
	mgr, _ := newManager(t, newFakeRunner())
	addInputs(t, mgr, "a.mp4", "b.mp4")

	if err := mgr.Remove(1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := mgr.Remove(1); !errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatalf("Remove missing = %v, want ErrTaskNotFound", err)
	}
	snapshot := mgr.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != 2 {
		t.Fatalf("snapshot = %+v", snapshot)
	}
}

func TestSetRecipeUpdatesOnlyPendingTasks(t *testing.T) {
	runner := newFakeRunner()
	mgr, cfg := newManager(t, runner)
	addInputs(t, mgr, "a.mp4")
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	collectRun(t, mgr, 0)
	waitIdle(t, mgr)
	addInputs(t, mgr, "b.mp4")

	other := testsupport.WriteRecipe(t, filepath.Join(t.TempDir(), "other.ini"))
	updated, err := mgr.SetRecipe(other)
	if err != nil {
		t.Fatalf("SetRecipe: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	done, _ := mgr.Store().Get(1)
	pending, _ := mgr.Store().Get(2)
	if done.RecipePath != cfg.Smoothie.Recipe || pending.RecipePath != other {
		t.Fatalf("recipes = %q / %q", done.RecipePath, pending.RecipePath)
	}
	if mgr.Recipe() != other {
		t.Fatalf("Recipe() = %q", mgr.Recipe())
	}
	if _, err := mgr.SetRecipe("  "); !errors.Is(err, workflow.ErrEmptyPath) {
		t.Fatalf("empty recipe = %v, want ErrEmptyPath", err)
	}
}

func TestStatusReportsCurrentTaskProgress(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})
	mgr, _ := newManager(t, runner)
	addInputs(t, mgr, "a.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := waitStarted(t, runner)
	mgr.RecordProgress(id, 42.5)

	status := mgr.Status()
	if !status.Running || status.RunID == "" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Current == nil || status.Current.ID != id {
		t.Fatalf("current = %+v", status.Current)
	}
	if status.Progress != 42.5 {
		t.Fatalf("progress = %v", status.Progress)
	}
	close(runner.block)
	collectRun(t, mgr, 0)
}

func TestSubscribeReceivesNotifications(t *testing.T) {
	mgr, _ := newManager(t, newFakeRunner())
	ch, unsubscribe := mgr.Subscribe()
	defer unsubscribe()
	addInputs(t, mgr, "a.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.Kind == worker.WorkerFinished {
				return
			}
		case <-timeout:
			t.Fatal("no worker_finished on subscription")
		}
	}
}

func TestWaitEventsHonorsContext(t *testing.T) {
	mgr, _ := newManager(t, newFakeRunner())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := mgr.WaitEvents(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitEvents = %v, want deadline exceeded", err)
	}
}

func TestCloseStopsRunningWorker(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})
	defer close(runner.block)
	mgr, _ := newManager(t, runner)
	addInputs(t, mgr, "a.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStarted(t, runner)
	mgr.Close()

	if mgr.IsRunning() {
		t.Fatal("worker still running after Close")
	}
	if _, err := mgr.AddFiles("x.mp4"); !errors.Is(err, workflow.ErrClosed) {
		t.Fatalf("AddFiles after Close = %v, want ErrClosed", err)
	}
	if err := mgr.Start(context.Background()); !errors.Is(err, workflow.ErrClosed) {
		t.Fatalf("Start after Close = %v, want ErrClosed", err)
	}
}

func TestRemoveRefusesTaskOnceRunning(t *testing.T) {
	runner := newFakeRunner()
	mgr, _ := newManager(t, runner)
	addInputs(t, mgr, "a.mp4", "b.mp4")

	removeErrs := make(chan error, 2)
	runner.mu.Lock()
	runner.onRun = func(task queue.Task) {
		removeErrs <- mgr.Remove(task.ID)
	}
	runner.mu.Unlock()

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	notes := collectRun(t, mgr, 0)
	waitIdle(t, mgr)

	for i := 0; i < 2; i++ {
		if err := <-removeErrs; !errors.Is(err, workflow.ErrNotPending) {
			t.Fatalf("Remove of running task = %v, want ErrNotPending", err)
		}
	}
	tasks := mgr.Snapshot()
	if len(tasks) != 2 {
		t.Fatalf("running tasks were deleted: %+v", tasks)
	}
	for _, task := range tasks {
		if task.Status.Kind != queue.StatusCompleted {
			t.Fatalf("task %d = %v, want completed", task.ID, task.Status)
		}
	}
	for _, n := range notes {
		if n.Kind == worker.TaskFailed {
			t.Fatalf("unexpected failure notification: %+v", n)
		}
	}
}
