package agentloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/xln3/forgeagent/internal/message"
	"github.com/xln3/forgeagent/internal/provider"
	"github.com/xln3/forgeagent/internal/tool"
	"github.com/xln3/forgeagent/internal/toolexec"
	"github.com/xln3/forgeagent/pkg/types"
)

// defaultMaxSteps is used when an AgentSpec leaves MaxSteps unset (zero).
const defaultMaxSteps = 50

// Config carries the provider/model defaults a Loop falls back to when a
// call's ToolContext.LLMConfig doesn't override them, plus the per-request
// token ceiling passed to every provider.Complete call.
type Config struct {
	DefaultProviderID string
	DefaultModel      string
	MaxTokens         int
}

// Loop drives the §4.5 state machine against a provider registry and an
// agent profile. One Loop is reused across many Run calls; it holds no
// per-call state.
type Loop struct {
	Providers *provider.Registry
	Agent     *AgentSpec
	Config    Config
	Hooks     Hooks
}

// New creates a Loop. agent defaults to DefaultAgent() if nil.
func New(providers *provider.Registry, agent *AgentSpec, cfg Config) *Loop {
	if agent == nil {
		agent = DefaultAgent()
	}
	return &Loop{Providers: providers, Agent: agent, Config: cfg}
}

// Result is the outcome of one Run: the full message history, the
// terminating finish reason, accumulated usage/cost across every step, and
// the final assistant text.
type Result struct {
	Messages     []types.Message
	FinishReason types.FinishReason
	Usage        types.TokenUsage
	Cost         float64
	Steps        int
	Text         string
}

// Run implements internal/subagent.Runner: it runs a fresh conversation
// seeded with one user message and returns the final assistant text. This
// is also the entry point the top-level worker/REPL front-end calls; a
// caller needing the full message history and accounting should use
// RunMessages directly.
func (l *Loop) Run(ctx context.Context, cancel <-chan struct{}, systemPrompt, userPrompt string, registry *tool.Registry, tc *types.ToolContext) (string, error) {
	seed := []types.Message{{
		ID:      newMessageID(),
		Role:    types.RoleUser,
		Content: []types.ContentBlock{types.TextBlock(userPrompt)},
	}}
	result, err := l.RunMessages(ctx, cancel, systemPrompt, seed, registry, tc)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// RunMessages executes the agent loop over an existing message list until
// termination (§4.5): normalize, complete, append; terminate if the
// assistant turn carries no tool_use, otherwise execute the tool batch and
// extend the history with its results.
func (l *Loop) RunMessages(ctx context.Context, cancel <-chan struct{}, systemPrompt string, seed []types.Message, registry *tool.Registry, tc *types.ToolContext) (*Result, error) {
	l.Hooks.queryStart()

	maxSteps := l.Agent.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps
	}

	providerID, modelID := l.resolveTarget(tc)
	tools := l.enabledTools(registry)

	m := make([]types.Message, len(seed))
	copy(m, seed)

	var totalUsage types.TokenUsage
	var totalCost float64
	steps := 0

	finish := func(fr types.FinishReason, err error) (*Result, error) {
		result := &Result{
			Messages:     m,
			FinishReason: fr,
			Usage:        totalUsage,
			Cost:         totalCost,
			Steps:        steps,
			Text:         lastAssistantText(m),
		}
		l.Hooks.queryEnd(result)
		return result, err
	}

	for {
		if isTripped(cancel) {
			l.Hooks.abort()
			return finish(types.FinishError, &types.CancelledError{})
		}

		steps++
		if steps > maxSteps {
			return finish(types.FinishError, fmt.Errorf("agent loop exceeded max steps (%d)", maxSteps))
		}

		normalized, err := message.Normalize(m)
		if err != nil {
			return finish(types.FinishError, fmt.Errorf("normalize: %w", err))
		}

		req := &provider.CompletionRequest{
			ProviderID:  providerID,
			Model:       modelID,
			System:      systemPrompt,
			Messages:    normalized,
			Tools:       tools,
			MaxTokens:   l.Config.MaxTokens,
			Temperature: l.Agent.Temperature,
		}

		l.Hooks.llmRequest(steps, providerID, modelID, len(normalized))
		start := time.Now()
		resp, err := l.Providers.Complete(ctx, req, cancel)
		duration := time.Since(start)

		if err != nil {
			l.Hooks.llmResponse(steps, nil, duration, err)
			var cancelled *types.CancelledError
			if errors.As(err, &cancelled) {
				l.Hooks.abort()
				return finish(types.FinishError, err)
			}
			return finish(types.FinishError, fmt.Errorf("provider: %w", err))
		}

		assistant := types.Message{
			ID:           newMessageID(),
			Role:         types.RoleAssistant,
			Created:      time.Now().Unix(),
			Content:      resp.Content,
			ModelID:      modelID,
			ProviderID:   providerID,
			FinishReason: resp.FinishReason,
			Usage:        resp.Usage,
		}
		if resp.Usage != nil {
			assistant.Cost = provider.EstimateCost(l.Providers, providerID, modelID, resp.Usage)
			accumulateUsage(&totalUsage, resp.Usage)
			totalCost += assistant.Cost
		}
		l.Hooks.llmResponse(steps, &assistant, duration, nil)
		m = append(m, assistant)

		toolUses := assistant.ToolUseBlocks()
		if len(toolUses) == 0 {
			return finish(resp.FinishReason, nil)
		}

		calls := make([]toolexec.Call, len(toolUses))
		for i, b := range toolUses {
			calls[i] = toolexec.Call{ID: b.ToolUseID, Tool: b.ToolName, Input: b.Input}
			l.Hooks.toolStart(b.ToolUseID, b.ToolName, b.Input)
		}

		outcomes, _ := toolexec.Run(ctx, calls, tc, registry, l.Hooks.toolProgress)
		for _, out := range outcomes {
			l.Hooks.toolComplete(out.ToolUseID, out)
			m = append(m, types.Message{
				ID:      newMessageID(),
				Role:    types.RoleUser,
				Created: time.Now().Unix(),
				Content: []types.ContentBlock{types.ToolResultBlock(out.ToolUseID, out.Content, out.IsError)},
			})
		}
	}
}

// resolveTarget picks the provider/model for this run: an explicit override
// in tc.LLMConfig wins (the way a sub-agent spawn can pin a cheaper model),
// otherwise the Loop's configured defaults.
func (l *Loop) resolveTarget(tc *types.ToolContext) (providerID, modelID string) {
	providerID, modelID = l.Config.DefaultProviderID, l.Config.DefaultModel
	if tc == nil || tc.LLMConfig == nil {
		return providerID, modelID
	}
	if v, ok := tc.LLMConfig["providerID"].(string); ok && v != "" {
		providerID = v
	}
	if v, ok := tc.LLMConfig["model"].(string); ok && v != "" {
		modelID = v
	}
	return providerID, modelID
}

// enabledTools filters registry down to what l.Agent allows, in registry
// order.
func (l *Loop) enabledTools(registry *tool.Registry) []*types.ToolDescriptor {
	if registry == nil {
		return nil
	}
	all := registry.List()
	out := make([]*types.ToolDescriptor, 0, len(all))
	for _, d := range all {
		if l.Agent.ToolEnabled(d.Name) {
			out = append(out, d)
		}
	}
	return out
}

func accumulateUsage(total *types.TokenUsage, step *types.TokenUsage) {
	total.Input += step.Input
	total.Output += step.Output
	total.Reasoning += step.Reasoning
	total.CacheRead += step.CacheRead
	total.CacheWrite += step.CacheWrite
}

func lastAssistantText(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != types.RoleAssistant {
			continue
		}
		var text string
		for _, b := range messages[i].Content {
			if b.Type == types.BlockText {
				text += b.Text
			}
		}
		return text
	}
	return ""
}

func isTripped(cancel <-chan struct{}) bool {
	if cancel == nil {
		return false
	}
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}

func newMessageID() string {
	return ulid.Make().String()
}
