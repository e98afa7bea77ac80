// Package toolexec runs the tool-use blocks of one assistant turn against a
// registry, producing user-facing tool_result messages in input order
// regardless of completion order. Read-only, concurrency-safe tools fan out
// in parallel; anything else runs alone, so Grep/Glob/Read overlap freely
// while Bash/Edit/Write serialize.
package toolexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xln3/forgeagent/internal/tool"
	"github.com/xln3/forgeagent/pkg/types"
)

// Call is one entry the agent loop wants executed: a tool_use block's id,
// tool name, and input.
type Call struct {
	ID    string
	Tool  string
	Input map[string]any
}

// Outcome is the folded terminal result for one Call, ready to become a
// tool_result content block.
type Outcome struct {
	ToolUseID string
	Content   string
	IsError   bool
	Duration  time.Duration
}

// ProgressFunc receives progress/streaming_output events as they arrive,
// attributed to the originating tool-use id. It must not block the executor.
type ProgressFunc func(toolUseID string, ev types.ToolEvent)

// Run executes calls against registry and returns one Outcome per launched
// call, in the same order as calls. Once tc is aborted Run launches no
// further runs, and the calls not yet launched get no Outcome, so the
// result can be shorter than calls. The executor itself never returns an error for a
// tool failure; those are folded into an Outcome with IsError set. Run
// returns a non-nil error only for a structural problem in its own setup
// (currently: never, kept for forward compatibility with a queue-build
// failure mode).
func Run(ctx context.Context, calls []Call, tc *types.ToolContext, registry *tool.Registry, onProgress ProgressFunc) ([]Outcome, error) {
	entries := buildQueue(calls, registry)
	outcomes := make([]Outcome, len(entries))

	i := 0
	for i < len(entries) {
		if tc != nil && tc.IsAborted() {
			break // stop launching new runs; in-flight work already observes tc.Cancel
		}

		runLen := concurrentRunLength(entries[i:])
		run := entries[i : i+runLen]

		results := executeRun(ctx, run, tc, onProgress)
		for j, r := range results {
			outcomes[i+j] = r
		}
		i += runLen
	}

	return outcomes[:i], nil
}

// queueEntry is one Call resolved against the registry, or already failed
// (unknown tool, schema validation) before it ever runs.
type queueEntry struct {
	call       Call
	descriptor *types.ToolDescriptor
	preErr     string // non-empty means already failed; descriptor is nil
}

func buildQueue(calls []Call, registry *tool.Registry) []queueEntry {
	entries := make([]queueEntry, len(calls))
	for i, c := range calls {
		d, ok := registry.Get(c.Tool)
		if !ok {
			entries[i] = queueEntry{call: c, preErr: fmt.Sprintf("unknown tool %q", c.Tool)}
			continue
		}
		if err := validateInput(ctx0(), d, c.Input); err != nil {
			entries[i] = queueEntry{call: c, preErr: err.Error()}
			continue
		}
		entries[i] = queueEntry{call: c, descriptor: d}
	}
	return entries
}

// ctx0 exists so buildQueue can call ValidateInput hooks without threading a
// context through the queue-build step; those hooks are expected to be fast,
// synchronous checks (required-field presence, value ranges), not
// cancellable work.
func ctx0() context.Context { return context.Background() }

func validateInput(ctx context.Context, d *types.ToolDescriptor, input map[string]any) error {
	if err := validateSchema(d.Schema, input); err != nil {
		return err
	}
	if d.ValidateInput != nil {
		return d.ValidateInput(ctx, input)
	}
	return nil
}

// validateSchema checks the "required" list of the JSON-schema-shaped
// description the descriptor publishes. It is intentionally minimal: only
// the presence of required keys is checked; property types are not, and it
// is not a full JSON Schema validator.
func validateSchema(schema map[string]any, input map[string]any) error {
	if schema == nil {
		return nil
	}
	required, _ := schema["required"].([]any)
	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := input[name]; !present {
			return fmt.Errorf("missing required field %q", name)
		}
	}
	return nil
}

// concurrentRunLength returns the length of the maximal prefix of entries
// that are all failed-already, or all satisfy IsReadOnly && IsConcurrencySafe
// for their own input. A single non-safe entry (or the first entry when it
// is non-safe) runs alone, i.e. returns 1.
func concurrentRunLength(entries []queueEntry) int {
	if len(entries) == 0 {
		return 0
	}
	if !isSafe(entries[0]) {
		return 1
	}
	n := 1
	for n < len(entries) && isSafe(entries[n]) {
		n++
	}
	return n
}

func isSafe(e queueEntry) bool {
	if e.preErr != "" {
		return true // pre-failed entries carry no side effects; safe to batch with anything
	}
	return e.descriptor.IsReadOnly(e.call.Input) && e.descriptor.IsConcurrencySafe(e.call.Input)
}

// executeRun launches every entry in run concurrently (run length 1 is the
// common serial case) and returns their outcomes in run order.
func executeRun(ctx context.Context, run []queueEntry, tc *types.ToolContext, onProgress ProgressFunc) []Outcome {
	outcomes := make([]Outcome, len(run))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i, entry := range run {
		i, entry := i, entry
		g.Go(func() error {
			out := executeEntry(gctx, entry, tc, onProgress)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			return nil // never propagate; partial failure must not cancel siblings
		})
	}
	_ = g.Wait()

	return outcomes
}

func executeEntry(ctx context.Context, entry queueEntry, tc *types.ToolContext, onProgress ProgressFunc) Outcome {
	start := time.Now()

	if entry.preErr != "" {
		return Outcome{ToolUseID: entry.call.ID, Content: entry.preErr, IsError: true, Duration: time.Since(start)}
	}

	entryCtx := scopedContext(tc, entry.call.ID)

	events, err := entry.descriptor.Call(ctx, entryCtx, entry.call.Input)
	if err != nil {
		return Outcome{ToolUseID: entry.call.ID, Content: err.Error(), IsError: true, Duration: time.Since(start)}
	}

	var result types.ToolResult
	gotResult := false
	for ev := range events {
		switch ev.Type {
		case types.ToolEventResult:
			result = ev.Result
			gotResult = true
		default:
			if onProgress != nil {
				onProgress(entry.call.ID, ev)
			}
		}
	}

	duration := time.Since(start)
	if !gotResult {
		return Outcome{
			ToolUseID: entry.call.ID,
			Content:   fmt.Sprintf("tool %q ended without a terminal result", entry.call.Tool),
			IsError:   true,
			Duration:  duration,
		}
	}
	if result.Err != nil {
		return Outcome{ToolUseID: entry.call.ID, Content: entry.descriptor.Render(result), IsError: true, Duration: duration}
	}
	return Outcome{ToolUseID: entry.call.ID, Content: entry.descriptor.Render(result), IsError: false, Duration: duration}
}

// scopedContext derives a per-call ToolContext sharing the parent's
// cancellation, working directory, and read-timestamp map, but tagged with
// this call's id so tools can attribute metadata correctly.
func scopedContext(tc *types.ToolContext, callID string) *types.ToolContext {
	if tc == nil {
		return &types.ToolContext{CallID: callID}
	}
	scoped := *tc
	scoped.CallID = callID
	return &scoped
}
