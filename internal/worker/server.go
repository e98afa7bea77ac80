package worker

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xln3/forgeagent/internal/agentloop"
	"github.com/xln3/forgeagent/internal/ipc"
	"github.com/xln3/forgeagent/internal/logz"
	"github.com/xln3/forgeagent/internal/outputbuf"
	"github.com/xln3/forgeagent/internal/store"
	"github.com/xln3/forgeagent/internal/tool"
	"github.com/xln3/forgeagent/internal/toolexec"
	"github.com/xln3/forgeagent/pkg/types"
)

// Network picks the listener family for Addr: a Unix domain socket on
// POSIX, a loopback TCP port on Windows (spec §4.11).
func Network() string {
	if runtime.GOOS == "windows" {
		return "tcp"
	}
	return "unix"
}

// Server is the worker daemon: an IPC listener plus the store/outputbuf/
// agent-loop wiring its handlers dispatch against.
type Server struct {
	Addr string

	store     *store.Store
	outputs   *outputbuf.Manager
	tools     *tool.Registry
	loop      *agentloop.Loop
	spec      *agentloop.AgentSpec
	agentByID map[string]*agentloop.AgentSpec

	handlers map[string]handlerFunc
	cancels  *cancelRegistry
	clock    func() int64

	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// Deps bundles the collaborators a Server dispatches handlers against.
type Deps struct {
	Store     *store.Store
	Outputs   *outputbuf.Manager
	Tools     *tool.Registry
	Loop      *agentloop.Loop
	AgentByID map[string]*agentloop.AgentSpec // "plan"/"code"/... -> spec, consulted by executeParams.Agent
}

// New builds a Server bound to addr (a filesystem path under Network() ==
// "unix", or "host:port" under "tcp"). It does not start listening; call
// Serve.
func New(addr string, deps Deps) *Server {
	s := &Server{
		Addr:      addr,
		store:     deps.Store,
		outputs:   deps.Outputs,
		tools:     deps.Tools,
		loop:      deps.Loop,
		agentByID: deps.AgentByID,
		cancels:   newCancelRegistry(),
		clock:     func() int64 { return time.Now().UnixMilli() },
	}
	if s.outputs == nil {
		s.outputs = outputbuf.NewManager(outputbuf.DefaultEvictAfter)
	}
	if deps.Loop != nil {
		s.spec = deps.Loop.Agent
	}
	s.registerHandlers()
	return s
}

// Serve opens the listener and blocks accepting connections until Stop is
// called or ctx is cancelled. Each connection is served in its own
// goroutine so requests across connections run concurrently; requests
// within one connection are handled one at a time, in arrival order.
func (s *Server) Serve(ctx context.Context) error {
	if Network() == "unix" {
		os.Remove(s.Addr)
	}
	ln, err := net.Listen(Network(), s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				s.wg.Wait()
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stop closes the listener; in-flight connections drain on their own once
// their next ReadFrame observes the closed socket.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	if Network() == "unix" {
		os.Remove(s.Addr)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		frame, err := ipc.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logz.Debug().Err(err).Msg("worker: connection read failed")
			}
			return
		}
		req, err := ipc.DecodeRequest(frame)
		if err != nil {
			logz.Warn().Err(err).Msg("worker: malformed request frame")
			continue
		}
		resp := s.dispatch(ctx, req)
		if err := ipc.WriteResponse(conn, resp); err != nil {
			logz.Debug().Err(err).Msg("worker: connection write failed")
			return
		}
	}
}

func newID() string {
	return uuid.NewString()
}

// cancelRegistry tracks the cancel channel for each in-flight task so
// "cancel" requests can signal a running execute without the store (which
// has no notion of live goroutines) being involved.
type cancelRegistry struct {
	mu     sync.Mutex
	active map[string]chan struct{}
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{active: make(map[string]chan struct{})}
}

func (r *cancelRegistry) start(taskID string) chan struct{} {
	ch := make(chan struct{})
	r.mu.Lock()
	r.active[taskID] = ch
	r.mu.Unlock()
	return ch
}

func (r *cancelRegistry) finish(taskID string) {
	r.mu.Lock()
	delete(r.active, taskID)
	r.mu.Unlock()
}

func (r *cancelRegistry) cancel(taskID string) {
	r.mu.Lock()
	ch, ok := r.active[taskID]
	if ok {
		delete(r.active, taskID)
	}
	r.mu.Unlock()
	if ok {
		close(ch)
	}
}

// runTask drives one task's agent-loop run to completion, writing status,
// text and error chunks and each tool's start/complete/error event into buf
// as OutputChunks, and recording the final status in the store. It runs in its own goroutine, started by
// handleExecute.
func (s *Server) runTask(params executeParams, cancel chan struct{}, buf *outputbuf.Buffer) {
	defer s.cancels.finish(params.TaskID)
	defer s.outputs.MarkDone(params.TaskID, time.Now())

	ctx := context.Background()
	spec := s.spec
	if want, ok := s.agentByID[params.Agent]; ok {
		spec = want
	}
	if spec == nil {
		spec = agentloop.DefaultAgent()
	}

	loop := s.loop
	if loop == nil {
		return
	}
	runner := &agentloop.Loop{Providers: loop.Providers, Agent: spec, Config: loop.Config}
	runner.Hooks = s.hooksFor(buf)

	tc := &types.ToolContext{
		SessionID: params.SessionID,
		Cancel:    cancel,
		WorkDir:   params.WorkDir,
	}

	buf.Append(types.ChunkStatus, "running", nil)
	text, err := runner.Run(ctx, cancel, spec.Prompt, params.Prompt, s.tools, tc)

	completedAt := s.clock()
	if err != nil {
		msg := err.Error()
		buf.Append(types.ChunkError, msg, nil)
		s.store.UpdateTaskStatus(ctx, params.TaskID, types.TaskFailed, nil, &msg, nil, &completedAt)
		return
	}
	buf.Append(types.ChunkText, text, nil)
	s.store.UpdateTaskStatus(ctx, params.TaskID, types.TaskCompleted, &text, nil, nil, &completedAt)
}

// hooksFor adapts the agent loop's lifecycle callbacks into OutputChunks so
// a get_output poller observes the run as it happens rather than only at
// completion.
func (s *Server) hooksFor(buf *outputbuf.Buffer) agentloop.Hooks {
	return agentloop.Hooks{
		OnToolStart: func(toolUseID, name string, input map[string]any) {
			buf.Append(types.ChunkToolUse, name, &types.ChunkAttrs{ToolID: toolUseID, ToolName: name})
		},
		OnToolComplete: func(toolUseID string, outcome toolexec.Outcome) {
			buf.Append(types.ChunkToolResult, outcome.Content, &types.ChunkAttrs{ToolID: toolUseID, IsError: outcome.IsError})
		},
		OnToolError: func(toolUseID string, outcome toolexec.Outcome) {
			buf.Append(types.ChunkToolResult, outcome.Content, &types.ChunkAttrs{ToolID: toolUseID, IsError: true})
		},
	}
}
