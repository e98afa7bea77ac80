package subagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xln3/forgeagent/internal/tool"
	"github.com/xln3/forgeagent/pkg/types"
)

type fakeRunner struct {
	text string
	err  error
	wait time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, cancel <-chan struct{}, systemPrompt, userPrompt string, registry *tool.Registry, tc *types.ToolContext) (string, error) {
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-cancel:
			return "", errors.New("cancelled")
		}
	}
	return f.text, f.err
}

func drainResult(t *testing.T, ch <-chan types.ToolEvent) types.ToolResult {
	t.Helper()
	var last types.ToolResult
	for ev := range ch {
		if ev.Type == types.ToolEventResult {
			last = ev.Result
		}
	}
	return last
}

func TestTask_SynchronousRunReturnsRunnerText(t *testing.T) {
	catalog := NewRegistry()
	registry := tool.NewRegistry()
	runner := &fakeRunner{text: "done investigating"}
	store := NewStore()

	d := NewTaskDescriptor(catalog, registry, runner, store)
	ch, err := d.Call(context.Background(), &types.ToolContext{Cancel: make(chan struct{})}, map[string]any{
		"description":   "look into X",
		"prompt":        "investigate X",
		"subagent_type": "general",
	})
	require.NoError(t, err)

	result := drainResult(t, ch)
	require.NoError(t, result.Err)
	require.Equal(t, "done investigating", result.ResultForAssistant)
}

func TestTask_UnknownAgentTypeErrors(t *testing.T) {
	catalog := NewRegistry()
	registry := tool.NewRegistry()
	runner := &fakeRunner{text: "x"}
	store := NewStore()

	d := NewTaskDescriptor(catalog, registry, runner, store)
	ch, err := d.Call(context.Background(), &types.ToolContext{Cancel: make(chan struct{})}, map[string]any{
		"description":   "x",
		"prompt":        "x",
		"subagent_type": "nonexistent",
	})
	require.NoError(t, err)

	result := drainResult(t, ch)
	require.Error(t, result.Err)
}

func TestTask_BackgroundThenTaskOutputBlocks(t *testing.T) {
	catalog := NewRegistry()
	registry := tool.NewRegistry()
	runner := &fakeRunner{text: "finished", wait: 20 * time.Millisecond}
	store := NewStore()

	taskDesc := NewTaskDescriptor(catalog, registry, runner, store)
	ch, err := taskDesc.Call(context.Background(), &types.ToolContext{Cancel: make(chan struct{})}, map[string]any{
		"description":   "slow task",
		"prompt":        "do the slow thing",
		"subagent_type": "general",
		"background":    true,
	})
	require.NoError(t, err)
	started := drainResult(t, ch)
	require.NoError(t, started.Err)

	id := started.Data.(map[string]any)["id"].(string)
	require.NotEmpty(t, id)

	outputDesc := NewTaskOutputDescriptor(store)
	outCh, err := outputDesc.Call(context.Background(), &types.ToolContext{}, map[string]any{
		"id":      id,
		"block":   true,
		"timeout": float64(5),
	})
	require.NoError(t, err)
	result := drainResult(t, outCh)
	require.NoError(t, result.Err)
	require.Equal(t, "finished", result.ResultForAssistant)
}

func TestTaskOutput_NotFound(t *testing.T) {
	store := NewStore()
	d := NewTaskOutputDescriptor(store)
	ch, err := d.Call(context.Background(), &types.ToolContext{}, map[string]any{"id": "missing"})
	require.NoError(t, err)
	result := drainResult(t, ch)
	require.Equal(t, "not_found", result.Data.(map[string]any)["status"])
}
