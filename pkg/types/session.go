package types

// SessionStatus is the worker-persisted lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is a worker-persisted record. Sessions own Tasks; deleting a
// Session cascades to delete its Tasks (enforced by internal/store's
// foreign key).
type Session struct {
	ID          string            `json:"id"`
	ProjectRoot string            `json:"projectRoot"`
	Model       string            `json:"model"`
	Status      SessionStatus     `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
	CompletedAt *int64            `json:"completedAt,omitempty"`
}

// TaskStatus is the worker-persisted lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is a worker-persisted record belonging to exactly one Session.
type Task struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionID"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Result      *string    `json:"result,omitempty"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   *int64     `json:"startedAt,omitempty"`
	CompletedAt *int64     `json:"completedAt,omitempty"`
}
