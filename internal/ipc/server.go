package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"smoothieq/internal/daemon"
	"smoothieq/internal/logging"
	"smoothieq/internal/logs"
	"smoothieq/internal/queue"
)

// ServiceName is the registered JSON-RPC service.
const ServiceName = "Smoothieq"

const maxWait = 30 * time.Second

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	svc    *service
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		svc:       svc,
	}, nil
}

// OnShutdown registers the function invoked by the Shutdown RPC. Without one,
// Shutdown only stops the daemon.
func (s *Server) OnShutdown(fn func()) {
	s.svc.mu.Lock()
	s.svc.shutdown = fn
	s.svc.mu.Unlock()
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				go func() {
					<-s.ctx.Done()
					_ = c.Close()
				}()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context

	mu       sync.Mutex
	shutdown func()
}

func (s *service) Add(req AddRequest, resp *AddResponse) error {
	tasks, err := s.daemon.Workflow().AddFiles(req.Paths...)
	resp.Tasks = make([]Task, 0, len(tasks))
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, FromTask(task))
	}
	if err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, rejected := range joined.Unwrap() {
				resp.Rejected = append(resp.Rejected, rejected.Error())
			}
		} else {
			resp.Rejected = append(resp.Rejected, err.Error())
		}
	}
	s.logger.Debug("add requested",
		logging.Int("queued", len(resp.Tasks)),
		logging.Int("rejected", len(resp.Rejected)))
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	filter := make(map[queue.StatusKind]struct{}, len(req.Statuses))
	for _, raw := range req.Statuses {
		kind, ok := queue.ParseStatusKind(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		filter[kind] = struct{}{}
	}
	tasks := s.daemon.Workflow().Snapshot()
	resp.Tasks = make([]Task, 0, len(tasks))
	for _, task := range tasks {
		if len(filter) > 0 {
			if _, ok := filter[task.Status.Kind]; !ok {
				continue
			}
		}
		resp.Tasks = append(resp.Tasks, FromTask(task))
	}
	return nil
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	wf := s.daemon.Workflow()
	if err := wf.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	status := wf.Status()
	resp.Started = true
	resp.RunID = status.RunID
	resp.Message = "queue started"
	s.logger.Info("queue started via IPC",
		logging.String(logging.FieldEventType, "queue_start_requested"),
		logging.String(logging.FieldRunID, status.RunID))
	return nil
}

func (s *service) controlState(resp *ControlResponse) {
	flags := s.daemon.Workflow().Status().Flags
	resp.Paused = flags.StopRequested
	resp.ForceStopping = flags.ForceStopRequested
}

func (s *service) Pause(_ ControlRequest, resp *ControlResponse) error {
	s.daemon.Workflow().Pause()
	s.controlState(resp)
	return nil
}

func (s *service) Resume(_ ControlRequest, resp *ControlResponse) error {
	s.daemon.Workflow().Resume()
	s.controlState(resp)
	return nil
}

func (s *service) TogglePause(_ ControlRequest, resp *ControlResponse) error {
	s.daemon.Workflow().TogglePause()
	s.controlState(resp)
	return nil
}

func (s *service) ForceStop(_ ControlRequest, resp *ControlResponse) error {
	s.daemon.Workflow().ForceStop()
	s.controlState(resp)
	return nil
}

func (s *service) Clear(_ ClearRequest, resp *ClearResponse) error {
	wf := s.daemon.Workflow()
	count := len(wf.Snapshot())
	if err := wf.Clear(); err != nil {
		return err
	}
	resp.Removed = count
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	if err := s.daemon.Workflow().Remove(req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) SetRecipe(req PathRequest, resp *PathResponse) error {
	updated, err := s.daemon.Workflow().SetRecipe(req.Path)
	if err != nil {
		return err
	}
	resp.Path = s.daemon.Workflow().Recipe()
	resp.Updated = updated
	return nil
}

func (s *service) SetOutputDir(req PathRequest, resp *PathResponse) error {
	updated, err := s.daemon.Workflow().SetOutputDir(req.Path)
	if err != nil {
		return err
	}
	resp.Path = s.daemon.Workflow().OutputDir()
	resp.Updated = updated
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	wf := status.Workflow
	resp.Running = status.Running
	resp.WorkerRunning = wf.Running
	resp.WorkerState = string(wf.WorkerState)
	resp.RunID = wf.RunID
	resp.Paused = wf.Flags.StopRequested
	resp.ForceStopping = wf.Flags.ForceStopRequested
	resp.QueueStats = make(map[string]int, len(wf.QueueStats))
	for kind, count := range wf.QueueStats {
		resp.QueueStats[string(kind)] = count
	}
	if wf.Current != nil {
		current := FromTask(*wf.Current)
		resp.Current = &current
	}
	resp.Progress = wf.Progress
	resp.Recipe = wf.Recipe
	resp.OutputDir = wf.OutputDir
	resp.Executable = wf.Executable
	resp.LastError = wf.LastError
	resp.LastEvent = wf.LastEvent
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	resp.HistoryPath = status.HistoryPath
	resp.LogPath = status.LogPath
	resp.PID = status.PID
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	wf := s.daemon.Workflow()
	resp.Last = req.After
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait > maxWait {
		wait = maxWait
	}

	var events []Event
	if wait <= 0 {
		events = wf.Events(req.After)
	} else {
		ctx, cancel := context.WithTimeout(s.ctx, wait)
		defer cancel()
		var err error
		events, err = wf.WaitEvents(ctx, req.After)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	resp.Events = events
	if n := len(events); n > 0 {
		resp.Last = events[n-1].Seq
	}
	return nil
}

func (s *service) Recipes(_ RecipesRequest, resp *RecipesResponse) error {
	resp.Recipes = s.daemon.Recipes()
	resp.Selected = s.daemon.Workflow().Recipe()
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, fromHistory(entry))
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	if wait > maxWait {
		wait = maxWait
	}
	ctx, cancel := context.WithTimeout(s.ctx, wait+500*time.Millisecond)
	defer cancel()
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		TaskID: req.TaskID,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.logger.Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown_requested"))
	s.mu.Lock()
	fn := s.shutdown
	s.mu.Unlock()
	resp.Stopping = true
	// Reply before the listener goes away.
	go func() {
		time.Sleep(50 * time.Millisecond)
		s.daemon.Stop()
		if fn != nil {
			fn()
		}
	}()
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
