package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xln3/forgeagent/internal/ipc"
	"github.com/xln3/forgeagent/pkg/types"
)

// dispatch routes one decoded request to its handler and always returns a
// Response (never an error) so the caller can write it back over the wire
// regardless of outcome.
func (s *Server) dispatch(ctx context.Context, req ipc.Request) ipc.Response {
	handler, ok := s.handlers[req.Type]
	if !ok {
		return ipc.Fail(req.ID, fmt.Errorf("worker: unknown request type %q", req.Type))
	}
	data, err := handler(ctx, req.Payload)
	if err != nil {
		return ipc.Fail(req.ID, err)
	}
	return ipc.OK(req.ID, data)
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

func (s *Server) registerHandlers() {
	s.handlers = map[string]handlerFunc{
		"ping":           s.handlePing,
		"session_create": s.handleSessionCreate,
		"session_get":    s.handleSessionGet,
		"session_list":   s.handleSessionList,
		"task_create":    s.handleTaskCreate,
		"task_get":       s.handleTaskGet,
		"task_list":      s.handleTaskList,
		"execute":        s.handleExecute,
		"get_status":     s.handleGetStatus,
		"get_output":     s.handleGetOutput,
		"cancel":         s.handleCancel,
		"shutdown":       s.handleShutdown,
	}
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("worker: decode payload: %w", err)
	}
	return v, nil
}

func (s *Server) handlePing(ctx context.Context, payload json.RawMessage) (any, error) {
	return map[string]bool{"pong": true}, nil
}

type sessionCreateParams struct {
	ProjectRoot string `json:"projectRoot"`
	Model       string `json:"model"`
}

func (s *Server) handleSessionCreate(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[sessionCreateParams](payload)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	sess := &types.Session{
		ID:          newID(),
		ProjectRoot: params.ProjectRoot,
		Model:       params.Model,
		Status:      types.SessionActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) handleSessionGet(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[idParams](payload)
	if err != nil {
		return nil, err
	}
	return s.store.GetSession(ctx, params.ID)
}

type listParams struct {
	Status string `json:"status"`
}

func (s *Server) handleSessionList(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[listParams](payload)
	if err != nil {
		return nil, err
	}
	return s.store.ListSessions(ctx, params.Status)
}

type taskCreateParams struct {
	SessionID   string `json:"sessionID"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (s *Server) handleTaskCreate(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[taskCreateParams](payload)
	if err != nil {
		return nil, err
	}
	t := &types.Task{
		ID:          newID(),
		SessionID:   params.SessionID,
		Type:        params.Type,
		Description: params.Description,
		Status:      types.TaskPending,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Server) handleTaskGet(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[idParams](payload)
	if err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, params.ID)
}

type taskListParams struct {
	SessionID string `json:"sessionID"`
}

func (s *Server) handleTaskList(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[taskListParams](payload)
	if err != nil {
		return nil, err
	}
	return s.store.ListTasksBySession(ctx, params.SessionID)
}

type executeParams struct {
	SessionID string `json:"sessionID"`
	TaskID    string `json:"taskID"`
	Agent     string `json:"agent"`
	Prompt    string `json:"prompt"`
	WorkDir   string `json:"workDir"`
}

// handleExecute starts a task's agent loop run in the background and
// returns immediately; progress is observed through get_output/get_status,
// mirroring spec's fire-and-poll execute contract rather than blocking the
// IPC connection for the run's whole duration.
func (s *Server) handleExecute(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[executeParams](payload)
	if err != nil {
		return nil, err
	}
	if params.TaskID == "" {
		return nil, fmt.Errorf("worker: execute requires taskID")
	}

	startedAt := s.clock()
	if err := s.store.UpdateTaskStatus(ctx, params.TaskID, types.TaskRunning, nil, nil, &startedAt, nil); err != nil {
		return nil, err
	}

	cancel := s.cancels.start(params.TaskID)
	buf := s.outputs.Get(params.TaskID)

	go s.runTask(params, cancel, buf)

	return map[string]string{"taskID": params.TaskID, "status": string(types.TaskRunning)}, nil
}

type getStatusParams struct {
	TaskID string `json:"taskID"`
}

func (s *Server) handleGetStatus(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[getStatusParams](payload)
	if err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, params.TaskID)
}

type getOutputParams struct {
	TaskID       string `json:"taskID"`
	FromPosition int    `json:"fromPosition"`
}

func (s *Server) handleGetOutput(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[getOutputParams](payload)
	if err != nil {
		return nil, err
	}
	buf, ok := s.outputs.Lookup(params.TaskID)
	if !ok {
		return []types.OutputChunk{}, nil
	}
	return buf.GetChunks(params.FromPosition), nil
}

type cancelParams struct {
	TaskID string `json:"taskID"`
}

func (s *Server) handleCancel(ctx context.Context, payload json.RawMessage) (any, error) {
	params, err := decode[cancelParams](payload)
	if err != nil {
		return nil, err
	}
	s.cancels.cancel(params.TaskID)
	if err := s.store.CancelTask(ctx, params.TaskID, s.clock()); err != nil {
		return nil, err
	}
	return map[string]bool{"cancelled": true}, nil
}

func (s *Server) handleShutdown(ctx context.Context, payload json.RawMessage) (any, error) {
	go s.Stop()
	return map[string]bool{"shuttingDown": true}, nil
}
