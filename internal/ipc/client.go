package ipc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"

	"smoothieq/internal/daemon"
	"smoothieq/internal/queue"
	"smoothieq/internal/workflow"
)

const callTimeout = 10 * time.Second

// ErrTimeout is returned when the daemon does not answer in time.
var ErrTimeout = errors.New("daemon did not respond")

// remoteSentinels are errors whose text is recognized in RPC error strings.
var remoteSentinels = []error{
	workflow.ErrWorkerActive,
	workflow.ErrQueueEmpty,
	workflow.ErrNotPending,
	workflow.ErrEmptyPath,
	workflow.ErrClosed,
	queue.ErrTaskNotFound,
	daemon.ErrHistoryDisabled,
}

// RemoteError carries a daemon-side error message and, when recognized, the
// matching sentinel.
type RemoteError struct {
	Message string
	Kind    error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Kind }

func translate(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	remote := &RemoteError{Message: string(serverErr)}
	for _, sentinel := range remoteSentinels {
		if strings.Contains(remote.Message, sentinel.Error()) {
			remote.Kind = sentinel
			break
		}
	}
	return remote
}

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, args, reply any, extra time.Duration) error {
	call := c.client.Go(ServiceName+"."+method, args, reply, make(chan *rpc.Call, 1))
	timer := time.NewTimer(callTimeout + extra)
	defer timer.Stop()
	select {
	case done := <-call.Done:
		return translate(done.Error)
	case <-timer.C:
		return fmt.Errorf("%s: %w", method, ErrTimeout)
	}
}

// Add queues the given files.
func (c *Client) Add(paths []string) (*AddResponse, error) {
	var resp AddResponse
	if err := c.call("Add", AddRequest{Paths: paths}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns queued tasks, optionally filtered by status.
func (c *Client) List(statuses []string) (*ListResponse, error) {
	var resp ListResponse
	if err := c.call("List", ListRequest{Statuses: statuses}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start launches the worker.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.call("Start", StartRequest{}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) control(method string) (*ControlResponse, error) {
	var resp ControlResponse
	if err := c.call(method, ControlRequest{}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause asks the worker to stop after the current task.
func (c *Client) Pause() (*ControlResponse, error) { return c.control("Pause") }

// Resume clears a pending pause.
func (c *Client) Resume() (*ControlResponse, error) { return c.control("Resume") }

// TogglePause flips the pause flag.
func (c *Client) TogglePause() (*ControlResponse, error) { return c.control("TogglePause") }

// ForceStop kills the running process and halts the queue.
func (c *Client) ForceStop() (*ControlResponse, error) { return c.control("ForceStop") }

// Clear empties the queue.
func (c *Client) Clear() (*ClearResponse, error) {
	var resp ClearResponse
	if err := c.call("Clear", ClearRequest{}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove deletes a pending task.
func (c *Client) Remove(id int64) (*RemoveResponse, error) {
	var resp RemoveResponse
	if err := c.call("Remove", RemoveRequest{ID: id}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetRecipe selects the recipe for pending and future tasks.
func (c *Client) SetRecipe(path string) (*PathResponse, error) {
	var resp PathResponse
	if err := c.call("SetRecipe", PathRequest{Path: path}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetOutputDir selects the output folder for pending and future tasks.
func (c *Client) SetOutputDir(path string) (*PathResponse, error) {
	var resp PathResponse
	if err := c.call("SetOutputDir", PathRequest{Path: path}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events polls worker notifications newer than after, waiting up to wait.
func (c *Client) Events(after uint64, wait time.Duration) (*EventsResponse, error) {
	var resp EventsResponse
	req := EventsRequest{After: after, WaitMillis: int(wait / time.Millisecond)}
	if err := c.call("Events", req, &resp, wait); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recipes lists recipes in the smoothie installation.
func (c *Client) Recipes() (*RecipesResponse, error) {
	var resp RecipesResponse
	if err := c.call("Recipes", RecipesRequest{}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns up to limit finished tasks.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", HistoryRequest{Limit: limit}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns daemon log lines.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	extra := time.Duration(req.WaitMillis) * time.Millisecond
	if err := c.call("LogTail", req, &resp, extra); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon to force-stop the worker and exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.call("Shutdown", ShutdownRequest{}, &resp, 0); err != nil {
		return nil, err
	}
	return &resp, nil
}
