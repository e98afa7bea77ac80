package subagent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/xln3/forgeagent/internal/tool"
	"github.com/xln3/forgeagent/pkg/types"
)

// Runner instantiates and drives one inner agent loop to completion,
// returning its final assistant text. Defined here rather than depending on
// internal/agentloop directly, since the loop package will in turn need the
// Task tool this package builds — erasing the dependency at this interface
// avoids the cycle.
type Runner interface {
	Run(ctx context.Context, cancel <-chan struct{}, systemPrompt, userPrompt string, registry *tool.Registry, tc *types.ToolContext) (string, error)
}

const (
	taskDescription = `Launches a new agent to handle complex, multi-step tasks autonomously.

Available agent types (subagent_type) and when to use them:
- general: researching a question or codebase area without knowing which files matter up front
- explore: fast, read-only codebase exploration (definitions, call sites, summaries)
- review: reviewing a diff or file set for defects without modifying anything

Each invocation is stateless: provide every detail the agent needs in the
prompt, since it cannot ask a follow-up question. Set background:true to
return immediately with a task id and poll it later with task_output.`

	taskOutputDescription = `Reads the state of a background task started by task(background:true).

Non-blocking (the default) returns the current snapshot immediately.
block:true waits for completion (or the timeout) before returning.`
)

var taskSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"description":   map[string]any{"type": "string", "description": "short (3-5 word) task summary"},
		"prompt":        map[string]any{"type": "string", "description": "the full task for the subagent to perform"},
		"subagent_type": map[string]any{"type": "string", "description": "which agent type to use"},
		"background":    map[string]any{"type": "boolean", "description": "run detached and return a task id instead of awaiting completion"},
	},
	"required": []any{"description", "prompt", "subagent_type"},
}

var taskOutputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":      map[string]any{"type": "string", "description": "task id returned by a background task() call"},
		"block":   map[string]any{"type": "boolean", "description": "wait for completion instead of returning the current snapshot"},
		"timeout": map[string]any{"type": "integer", "description": "seconds to wait when block is set, default 60"},
	},
	"required": []any{"id"},
}

// NewTaskDescriptor builds the task tool. Not read-only (it has side
// effects via whatever tools the inner loop runs) and not concurrency-safe
// (an inner loop is not cheap to run twice).
func NewTaskDescriptor(catalog *Registry, registry *tool.Registry, runner Runner, store *Store) *types.ToolDescriptor {
	return &types.ToolDescriptor{
		Name:              "task",
		Description:       taskDescription,
		Schema:            taskSchema,
		IsReadOnly:        func(map[string]any) bool { return false },
		IsConcurrencySafe: func(map[string]any) bool { return false },
		Call: func(ctx context.Context, tc *types.ToolContext, input map[string]any) (<-chan types.ToolEvent, error) {
			ch := make(chan types.ToolEvent, 1)

			agentType, _ := input["subagent_type"].(string)
			prompt, _ := input["prompt"].(string)
			description, _ := input["description"].(string)
			background, _ := input["background"].(bool)

			at, err := catalog.Get(agentType)
			if err != nil {
				go func() {
					defer close(ch)
					ch <- errorResult(err)
				}()
				return ch, nil
			}

			scoped := registry.Filtered(at.Allowed, at.Disallowed)
			innerCtx := scopedToolContext(tc, at.DefaultModel)

			if !background {
				go func() {
					defer close(ch)
					text, err := runner.Run(ctx, innerCtx.Cancel, at.SystemPrompt, prompt, scoped, innerCtx)
					if err != nil {
						ch <- errorResult(err)
						return
					}
					ch <- types.ToolEvent{Type: types.ToolEventResult, Result: types.ToolResult{
						Data:               map[string]any{"agentType": agentType},
						ResultForAssistant: text,
					}}
				}()
				return ch, nil
			}

			id := newTaskID()
			cancelCh := make(chan struct{})
			doneCh := make(chan struct{})
			bg := &types.BackgroundTask{
				ID:          id,
				AgentType:   agentType,
				Description: description,
				Prompt:      prompt,
				State:       types.BackgroundRunning,
				StartedAt:   time.Now(),
				Cancel:      cancelCh,
				Done:        doneCh,
			}
			store.Register(bg)

			go runBackground(context.Background(), bg, at, prompt, scoped, runner, innerCtx)

			go func() {
				defer close(ch)
				ch <- types.ToolEvent{Type: types.ToolEventResult, Result: types.ToolResult{
					Data:               map[string]any{"id": id, "agentType": agentType},
					ResultForAssistant: fmt.Sprintf("started background task %s (%s)", id, description),
				}}
			}()
			return ch, nil
		},
		Render: renderResult,
	}
}

// NewTaskOutputDescriptor builds the task_output tool. Read-only and
// concurrency-safe: it only ever reads the Store.
func NewTaskOutputDescriptor(store *Store) *types.ToolDescriptor {
	return &types.ToolDescriptor{
		Name:              "task_output",
		Description:       taskOutputDescription,
		Schema:            taskOutputSchema,
		IsReadOnly:        func(map[string]any) bool { return true },
		IsConcurrencySafe: func(map[string]any) bool { return true },
		Call: func(ctx context.Context, tc *types.ToolContext, input map[string]any) (<-chan types.ToolEvent, error) {
			ch := make(chan types.ToolEvent, 1)
			id, _ := input["id"].(string)
			block, _ := input["block"].(bool)
			timeoutSec, _ := input["timeout"].(float64)

			go func() {
				defer close(ch)

				snapshot, ok := store.Get(id)
				if !ok {
					ch <- types.ToolEvent{Type: types.ToolEventResult, Result: types.ToolResult{
						Data:               map[string]any{"status": "not_found"},
						ResultForAssistant: fmt.Sprintf("no such task %s", id),
					}}
					return
				}

				if block && snapshot.State == types.BackgroundRunning {
					timeout := 60 * time.Second
					if timeoutSec > 0 {
						timeout = time.Duration(timeoutSec) * time.Second
					}
					select {
					case <-snapshot.Done:
						snapshot, _ = store.Get(id)
					case <-time.After(timeout):
						ch <- types.ToolEvent{Type: types.ToolEventResult, Result: types.ToolResult{
							Data:               map[string]any{"status": "timeout"},
							ResultForAssistant: fmt.Sprintf("task %s still running after %s", id, timeout),
						}}
						return
					case <-ctx.Done():
						return
					}
				}

				ch <- types.ToolEvent{Type: types.ToolEventResult, Result: types.ToolResult{
					Data: map[string]any{"status": "success", "state": snapshot.State},
					ResultForAssistant: formatTaskSnapshot(snapshot),
				}}
			}()
			return ch, nil
		},
		Render: renderResult,
	}
}

func runBackground(ctx context.Context, bg *types.BackgroundTask, at *AgentType, prompt string, registry *tool.Registry, runner Runner, tc *types.ToolContext) {
	defer close(bg.Done)

	text, err := runner.Run(ctx, bg.Cancel, at.SystemPrompt, prompt, registry, tc)
	now := time.Now()
	bg.EndedAt = &now

	select {
	case <-bg.Cancel:
		bg.State = types.BackgroundKilled
		bg.Error = "cancelled"
		return
	default:
	}

	if err != nil {
		bg.State = types.BackgroundFailed
		bg.Error = err.Error()
		return
	}
	bg.State = types.BackgroundCompleted
	bg.Result = text
}

// scopedToolContext derives a per-spawn ToolContext that inherits the
// parent's cwd and LLM config, overriding the model when the agent type
// names a preferred one so a sub-agent's loop picks it up via its own
// LLMConfig["model"] lookup rather than always falling back to the root
// loop's default.
func scopedToolContext(tc *types.ToolContext, defaultModel string) *types.ToolContext {
	var scoped types.ToolContext
	if tc == nil {
		scoped = types.ToolContext{Cancel: make(chan struct{})}
	} else {
		scoped = *tc
	}
	if defaultModel != "" {
		llmConfig := make(map[string]any, len(scoped.LLMConfig)+1)
		for k, v := range scoped.LLMConfig {
			llmConfig[k] = v
		}
		llmConfig["model"] = defaultModel
		scoped.LLMConfig = llmConfig
	}
	return &scoped
}

func newTaskID() string {
	return strings.ToLower(ulid.Make().String()[:10])
}

func errorResult(err error) types.ToolEvent {
	return types.ToolEvent{Type: types.ToolEventResult, Result: types.ToolResult{Err: err}}
}

func renderResult(r types.ToolResult) string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.ResultForAssistant
}

func formatTaskSnapshot(t types.BackgroundTask) string {
	switch t.State {
	case types.BackgroundCompleted:
		return t.Result
	case types.BackgroundFailed:
		return fmt.Sprintf("task failed: %s", t.Error)
	case types.BackgroundKilled:
		return "task was cancelled"
	default:
		return fmt.Sprintf("task %s still running (started %s ago)", t.ID, time.Since(t.StartedAt).Round(time.Second))
	}
}
