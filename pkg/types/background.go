package types

import "time"

// BackgroundTaskState is the lifecycle state of a detached sub-agent run.
type BackgroundTaskState string

const (
	BackgroundRunning   BackgroundTaskState = "running"
	BackgroundCompleted BackgroundTaskState = "completed"
	BackgroundFailed    BackgroundTaskState = "failed"
	BackgroundKilled    BackgroundTaskState = "killed"
)

// BackgroundTask is the in-memory record a Task tool spawn registers when it
// runs asynchronously. TaskOutput reads it by ID; internal/subagent's sweeper
// evicts it after a TTL once it leaves BackgroundRunning.
type BackgroundTask struct {
	ID          string
	AgentType   string
	Description string
	Prompt      string
	State       BackgroundTaskState
	StartedAt   time.Time
	EndedAt     *time.Time
	Result      string
	Error       string

	// Cancel is tripped to kill the inner loop; Done closes when the loop
	// has finished (successfully, with an error, or killed), letting
	// TaskOutput's blocking mode await it with a timeout.
	Cancel chan struct{}
	Done   chan struct{}
}
