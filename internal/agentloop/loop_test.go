package agentloop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/xln3/forgeagent/internal/provider"
	"github.com/xln3/forgeagent/internal/tool"
	"github.com/xln3/forgeagent/pkg/types"
)

// fakeChatModel replays a fixed sequence of responses, one per Generate
// call, so a test can script a multi-step conversation without a real
// backend.
type fakeChatModel struct {
	mu        sync.Mutex
	responses []fakeResponse
	idx       int
	calls     int
}

type fakeResponse struct {
	msg *schema.Message
	err error
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.idx >= len(f.responses) {
		return nil, errors.New("fakeChatModel: no more responses queued")
	}
	r := f.responses[f.idx]
	f.idx++
	return r.msg, r.err
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("fakeChatModel: streaming not used by these tests")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

type fakeProvider struct {
	id    string
	chat  *fakeChatModel
	model types.Model
}

func (p *fakeProvider) ID() string                           { return p.id }
func (p *fakeProvider) Name() string                         { return p.id }
func (p *fakeProvider) Models() []types.Model                { return []types.Model{p.model} }
func (p *fakeProvider) ChatModel() model.ToolCallingChatModel { return p.chat }

func newTestRegistry(chat *fakeChatModel) *provider.Registry {
	registry := provider.NewRegistry(nil)
	registry.Register(&fakeProvider{
		id:   "fake",
		chat: chat,
		model: types.Model{
			ID:         "fake-model",
			ProviderID: "fake",
		},
	})
	return registry
}

func testConfig() Config {
	return Config{DefaultProviderID: "fake", DefaultModel: "fake-model"}
}

func textMessage(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text, ResponseMeta: &schema.ResponseMeta{FinishReason: "stop"}}
}

func toolUseMessage(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
		ResponseMeta: &schema.ResponseMeta{FinishReason: "tool_calls"},
	}
}

func echoToolDescriptor() *types.ToolDescriptor {
	return &types.ToolDescriptor{
		Name:              "echo",
		IsReadOnly:        func(map[string]any) bool { return true },
		IsConcurrencySafe: func(map[string]any) bool { return true },
		Call: func(ctx context.Context, tc *types.ToolContext, input map[string]any) (<-chan types.ToolEvent, error) {
			ch := make(chan types.ToolEvent, 1)
			go func() {
				defer close(ch)
				ch <- types.ToolEvent{Type: types.ToolEventResult, Result: types.ToolResult{ResultForAssistant: "echoed"}}
			}()
			return ch, nil
		},
		Render: func(r types.ToolResult) string { return r.ResultForAssistant },
	}
}

func TestRun_TerminatesOnFirstStepWithNoToolUse(t *testing.T) {
	chat := &fakeChatModel{responses: []fakeResponse{{msg: textMessage("done")}}}
	l := New(newTestRegistry(chat), DefaultAgent(), testConfig())

	tc := &types.ToolContext{}
	text, err := l.Run(context.Background(), nil, "system", "hello", tool.NewRegistry(), tc)

	require.NoError(t, err)
	require.Equal(t, "done", text)
	require.Equal(t, 1, chat.calls)
}

func TestRunMessages_ToolUseThenTerminate(t *testing.T) {
	chat := &fakeChatModel{responses: []fakeResponse{
		{msg: toolUseMessage("call-1", "echo", `{"x":1}`)},
		{msg: textMessage("all done")},
	}}
	l := New(newTestRegistry(chat), DefaultAgent(), testConfig())

	registry := tool.NewRegistry()
	registry.Register(echoToolDescriptor())

	seed := []types.Message{{ID: "m1", Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}}}
	result, err := l.RunMessages(context.Background(), nil, "system", seed, registry, &types.ToolContext{})

	require.NoError(t, err)
	require.Equal(t, 2, result.Steps)
	require.Equal(t, "all done", result.Text)
	require.Equal(t, types.FinishStop, result.FinishReason)

	// One assistant tool_use message plus one synthetic tool_result user
	// message must have been appended between the seed and the final reply.
	require.Len(t, result.Messages, 4)
	require.Equal(t, types.RoleUser, result.Messages[2].Role)
	require.Equal(t, types.BlockToolResult, result.Messages[2].Content[0].Type)
	require.Equal(t, "echoed", result.Messages[2].Content[0].Content)
}

func TestRunMessages_MaxStepsExceeded(t *testing.T) {
	chat := &fakeChatModel{responses: []fakeResponse{
		{msg: toolUseMessage("call-1", "echo", `{}`)},
		{msg: toolUseMessage("call-2", "echo", `{}`)},
	}}
	agent := DefaultAgent()
	agent.MaxSteps = 1
	l := New(newTestRegistry(chat), agent, testConfig())

	registry := tool.NewRegistry()
	registry.Register(echoToolDescriptor())

	seed := []types.Message{{ID: "m1", Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}}}
	_, err := l.RunMessages(context.Background(), nil, "system", seed, registry, &types.ToolContext{})

	require.Error(t, err)
	require.Contains(t, err.Error(), "max steps")
}

func TestRunMessages_CancelledBeforeFirstStep(t *testing.T) {
	chat := &fakeChatModel{responses: []fakeResponse{{msg: textMessage("never")}}}
	l := New(newTestRegistry(chat), DefaultAgent(), testConfig())

	cancel := make(chan struct{})
	close(cancel)

	seed := []types.Message{{ID: "m1", Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}}}
	_, err := l.RunMessages(context.Background(), cancel, "system", seed, tool.NewRegistry(), &types.ToolContext{})

	var cancelled *types.CancelledError
	require.ErrorAs(t, err, &cancelled)
	require.Equal(t, 0, chat.calls)
}

func TestRunMessages_PermanentProviderError(t *testing.T) {
	chat := &fakeChatModel{responses: []fakeResponse{{err: errors.New("401 unauthorized")}}}
	l := New(newTestRegistry(chat), DefaultAgent(), testConfig())

	seed := []types.Message{{ID: "m1", Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}}}
	_, err := l.RunMessages(context.Background(), nil, "system", seed, tool.NewRegistry(), &types.ToolContext{})

	require.Error(t, err)
	require.Equal(t, 1, chat.calls)
}

func TestAgentSpec_ToolEnabled(t *testing.T) {
	plan := PlanAgent()
	require.True(t, plan.ToolEnabled("read"))
	require.False(t, plan.ToolEnabled("write"))
	require.False(t, plan.ToolEnabled("bash"))

	scoped := &AgentSpec{Allowed: []string{"read", "grep"}}
	require.True(t, scoped.ToolEnabled("read"))
	require.False(t, scoped.ToolEnabled("bash"))
}

func TestHooks_QueryStartAndLLMRequestFire(t *testing.T) {
	var events []string
	h := Hooks{
		OnQueryStart: func() { events = append(events, "start") },
		OnLLMRequest: func(step int, req *providerRequestSnapshot) {
			events = append(events, req.ProviderID)
		},
	}
	h.queryStart()
	h.llmRequest(1, "fake", "fake-model", 2)

	require.Equal(t, []string{"start", "fake"}, events)
}
