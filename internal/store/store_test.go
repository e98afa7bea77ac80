package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xln3/forgeagent/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateAppliesSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	sess := &types.Session{ID: "s1", ProjectRoot: "/tmp/p", Model: "m", Status: types.SessionActive, CreatedAt: 1, UpdatedAt: 1}
	if err := s1.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open (reapplying migrations must be a no-op): %v", err)
	}
	defer s2.Close()

	got, err := s2.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSession after reopen: %v", err)
	}
	if got.ID != "s1" {
		t.Fatalf("expected session to survive reopen, got %+v", got)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := &types.Session{
		ID: "sess-1", ProjectRoot: "/proj", Model: "claude", Status: types.SessionActive,
		Metadata: map[string]string{"k": "v"}, CreatedAt: 100, UpdatedAt: 100,
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Model != "claude" || got.Metadata["k"] != "v" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetSession(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSessionCascadesTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := &types.Session{ID: "sess-2", ProjectRoot: "/proj", Model: "m", Status: types.SessionActive, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	task := &types.Task{ID: "task-1", SessionID: "sess-2", Type: "execute", Description: "d", Status: types.TaskPending}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := s.DeleteSession(ctx, "sess-2"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := s.GetTask(ctx, "task-1"); err != ErrNotFound {
		t.Fatalf("expected task to cascade-delete, got err=%v", err)
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := &types.Session{ID: "sess-3", ProjectRoot: "/proj", Model: "m", Status: types.SessionActive, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	task := &types.Task{ID: "task-2", SessionID: "sess-3", Type: "execute", Description: "d", Status: types.TaskPending}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	result := "done"
	if err := s.UpdateTaskStatus(ctx, "task-2", types.TaskCompleted, &result, nil, nil, nil); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	got, err := s.GetTask(ctx, "task-2")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != types.TaskCompleted || got.Result == nil || *got.Result != "done" {
		t.Fatalf("unexpected task after update: %+v", got)
	}
}

func TestListSessionsFiltersByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, status := range []types.SessionStatus{types.SessionActive, types.SessionCompleted, types.SessionActive} {
		sess := &types.Session{ID: string(rune('a' + i)), ProjectRoot: "/p", Model: "m", Status: status, CreatedAt: int64(i), UpdatedAt: int64(i)}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	active, err := s.ListSessions(ctx, string(types.SessionActive))
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(active))
	}
}
