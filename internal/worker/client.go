package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/xln3/forgeagent/internal/ipc"
	"github.com/xln3/forgeagent/pkg/types"
)

// DefaultRequestTimeout bounds how long Call waits for a response before
// giving up on a request it already sent.
const DefaultRequestTimeout = 30 * time.Second

// Client dials a worker's listener and issues framed requests, correlating
// responses to callers by id via a background reader goroutine (the same
// shape as go-memsh's client-side pendingRequests map, adapted to this
// package's raw framing instead of JSON-RPC-over-WebSocket).
type Client struct {
	conn    net.Conn
	corr    *ipc.Correlator
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Dial connects to a worker listening at addr and starts its background
// reader. The caller must call Close when done.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial(Network(), addr)
	if err != nil {
		return nil, fmt.Errorf("worker: dial %s: %w", addr, err)
	}
	c := &Client{
		conn:    conn,
		corr:    ipc.NewCorrelator(),
		timeout: DefaultRequestTimeout,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// TryConnect reports whether a worker is reachable and responsive at addr,
// used by internal/lifecycle to decide whether a daemon needs starting.
func TryConnect(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout(Network(), addr, timeout)
	if err != nil {
		return false
	}
	client := &Client{conn: conn, corr: ipc.NewCorrelator(), timeout: timeout, done: make(chan struct{})}
	go client.readLoop()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err = client.Call(ctx, "ping", nil)
	return err == nil
}

func (c *Client) readLoop() {
	for {
		frame, err := ipc.ReadFrame(c.conn)
		if err != nil {
			c.corr.FailAll(err)
			return
		}
		resp, err := ipc.DecodeResponse(frame)
		if err != nil {
			continue
		}
		c.corr.Resolve(resp)
	}
}

// Call sends a request of type typ with params and waits for its response,
// returning the response's Data undecoded. ctx's deadline (or
// DefaultRequestTimeout if ctx carries none) bounds the wait.
func (c *Client) Call(ctx context.Context, typ string, params any) (json.RawMessage, error) {
	req, err := ipc.NewRequest(typ, params)
	if err != nil {
		return nil, err
	}

	ch := c.corr.Register(req.ID)

	c.mu.Lock()
	writeErr := ipc.WriteRequest(c.conn, req)
	c.mu.Unlock()
	if writeErr != nil {
		c.corr.Forget(req.ID)
		return nil, fmt.Errorf("worker: write request: %w", writeErr)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.Success {
			return nil, errors.New(resp.Error)
		}
		return resp.Data, nil
	case <-ctx.Done():
		c.corr.Forget(req.ID)
		return nil, ctx.Err()
	case <-timer.C:
		c.corr.Forget(req.ID)
		return nil, fmt.Errorf("worker: request %q timed out after %s", typ, timeout)
	case <-c.done:
		return nil, errors.New("worker: client closed")
	}
}

func callAs[T any](c *Client, ctx context.Context, typ string, params any) (T, error) {
	var out T
	data, err := c.Call(ctx, typ, params)
	if err != nil {
		return out, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("worker: decode %s response: %w", typ, err)
	}
	return out, nil
}

// Ping checks the worker is alive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, "ping", nil)
	return err
}

// CreateSession starts a new worker-tracked session.
func (c *Client) CreateSession(ctx context.Context, projectRoot, model string) (*types.Session, error) {
	return callAs[*types.Session](c, ctx, "session_create", sessionCreateParams{ProjectRoot: projectRoot, Model: model})
}

// GetTask fetches a task's current record.
func (c *Client) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	return callAs[*types.Task](c, ctx, "task_get", idParams{ID: taskID})
}

// Execute starts a task's agent-loop run.
func (c *Client) Execute(ctx context.Context, sessionID, taskID, agent, prompt, workDir string) error {
	_, err := c.Call(ctx, "execute", executeParams{
		SessionID: sessionID,
		TaskID:    taskID,
		Agent:     agent,
		Prompt:    prompt,
		WorkDir:   workDir,
	})
	return err
}

// Cancel requests a running task stop.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	_, err := c.Call(ctx, "cancel", cancelParams{TaskID: taskID})
	return err
}

// StreamOutput polls get_output from fromPosition forward every interval,
// invoking onChunk for each new chunk in position order, until the task
// reaches a terminal status or ctx is cancelled. It advances its own cursor
// so callers don't re-receive chunks across polls.
func (c *Client) StreamOutput(ctx context.Context, taskID string, fromPosition int, interval time.Duration, onChunk func(types.OutputChunk)) error {
	cursor := fromPosition
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		chunks, err := callAs[[]types.OutputChunk](c, ctx, "get_output", getOutputParams{TaskID: taskID, FromPosition: cursor})
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			onChunk(chunk)
			cursor = chunk.Position + 1
		}

		task, err := c.GetTask(ctx, taskID)
		if err == nil && task != nil && isTerminal(task.Status) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func isTerminal(status types.TaskStatus) bool {
	switch status {
	case types.TaskCompleted, types.TaskFailed, types.TaskCancelled:
		return true
	default:
		return false
	}
}

// Close shuts down the connection and its background reader.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	return c.conn.Close()
}

var _ io.Closer = (*Client)(nil)
