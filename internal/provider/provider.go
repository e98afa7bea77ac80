// Package provider adapts the uniform agent-loop message/tool model onto
// Eino chat models. Each concrete backend (Anthropic, OpenAI, ARK) builds its
// own Eino ToolCallingChatModel; Complete is the single entry point the loop
// calls, picking a backend by explicit provider id or by a model-name
// heuristic and translating in both directions at the boundary.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/xln3/forgeagent/pkg/types"
)

// Provider represents an LLM provider with an Eino ChatModel.
type Provider interface {
	ID() string
	Name() string
	Models() []types.Model
	ChatModel() model.ToolCallingChatModel
}

// Dialect is the wire-level shape a model family expects: Claude's
// messages API has native extended-thinking blocks, chat-completions
// does not.
type Dialect string

const (
	DialectClaude          Dialect = "claude"
	DialectChatCompletions Dialect = "chat-completions"
)

// DialectForModel implements the model-name heuristic: a name starting
// with or containing "claude" is the Claude dialect, everything else is
// chat-completions.
func DialectForModel(modelID string) Dialect {
	if strings.Contains(strings.ToLower(modelID), "claude") {
		return DialectClaude
	}
	return DialectChatCompletions
}

// CompletionRequest is the normalized input to Complete.
type CompletionRequest struct {
	ProviderID  string
	Model       string
	System      string
	Messages    []types.Message
	Tools       []*types.ToolDescriptor
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the normalized §4.2 response shape.
type CompletionResponse struct {
	Content      []types.ContentBlock
	Usage        *types.TokenUsage
	FinishReason types.FinishReason
}

// ErrorKind classifies a ProviderError per §7.
type ErrorKind string

const (
	ErrorTransient ErrorKind = "transient" // timeout, 429, 5xx: retry at the adapter
	ErrorPermanent ErrorKind = "permanent" // 4xx other than 429: fatal turn outcome
)

// ProviderError wraps a network or backend failure with its retry
// classification.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func classifyError(statusCode int, err error) *ProviderError {
	kind := ErrorPermanent
	switch {
	case statusCode == 429, statusCode >= 500, statusCode == 0:
		kind = ErrorTransient
	}
	return &ProviderError{Kind: kind, StatusCode: statusCode, Err: err}
}

// maxCompleteRetries bounds the adapter's backoff for transient failures;
// permanent failures are returned on the first attempt.
const maxCompleteRetries = 3

// Complete resolves a backend from req.ProviderID (falling back to the
// model-name dialect heuristic against registry), converts the request,
// invokes the backend's ChatModel, and converts the response back to the
// normalized {content, usage, finishReason} shape. Transient provider
// failures are retried with exponential backoff; permanent ones return
// immediately.
func Complete(ctx context.Context, registry *Registry, req *CompletionRequest, cancel <-chan struct{}) (*CompletionResponse, error) {
	p, err := resolveProvider(registry, req)
	if err != nil {
		return nil, err
	}

	chatModel := p.ChatModel()
	if len(req.Tools) > 0 {
		einoTools := ConvertToolDescriptors(req.Tools)
		chatModel, err = chatModel.WithTools(einoTools)
		if err != nil {
			return nil, classifyError(0, fmt.Errorf("bind tools: %w", err))
		}
	}

	messages := ConvertToEinoMessages(req.System, req.Messages)
	opts := []model.Option{model.WithMaxTokens(req.MaxTokens)}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	var out *schema.Message
	attempts := 0
	operation := func() error {
		select {
		case <-cancel:
			return backoff.Permanent(&types.CancelledError{})
		default:
		}
		attempts++
		out, err = chatModel.Generate(ctx, messages, opts...)
		if err == nil {
			return nil
		}
		perr := toProviderError(err)
		if perr.Kind != ErrorTransient || attempts > maxCompleteRetries {
			return backoff.Permanent(perr)
		}
		return perr
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxCompleteRetries)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		var cancelled *types.CancelledError
		if errors.As(err, &cancelled) {
			return nil, err
		}
		return nil, toProviderError(err)
	}

	return ConvertFromEinoMessage(out), nil
}

// resolveProvider picks the backend for a request: an explicit ProviderID
// wins, otherwise a Claude-dialect model goes to "anthropic" when it is
// registered, and any other model (or a Claude model with no "anthropic"
// registered) goes to the first registered of "openai" and "ark".
func resolveProvider(registry *Registry, req *CompletionRequest) (Provider, error) {
	if req.ProviderID != "" {
		return registry.Get(req.ProviderID)
	}

	dialect := DialectForModel(req.Model)
	if dialect == DialectClaude {
		if p, err := registry.Get("anthropic"); err == nil {
			return p, nil
		}
	}
	for _, candidate := range []string{"openai", "ark"} {
		if p, err := registry.Get(candidate); err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no provider registered that serves model %q", req.Model)
}

func toProviderError(err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	status := httpStatusFromError(err)
	return classifyError(status, err)
}

// httpStatusFromError scrapes a status code out of the error text when the
// underlying SDK doesn't expose a typed status (Eino's model components
// wrap transport errors as plain strings).
func httpStatusFromError(err error) int {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"), strings.Contains(lower, "connection reset"):
		return 0
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"):
		return 429
	}
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			n, _ := strconv.Atoi(code)
			return n
		}
	}
	for _, code := range []string{"400", "401", "403", "404", "422"} {
		if strings.Contains(msg, code) {
			n, _ := strconv.Atoi(code)
			return n
		}
	}
	return 0
}

// ConvertToolDescriptors converts erased tool descriptors into Eino tool
// definitions, deriving parameter info from each descriptor's JSON-schema
// shaped Schema map.
func ConvertToolDescriptors(tools []*types.ToolDescriptor) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		result[i] = &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(parseSchemaMap(t.Schema)),
		}
	}
	return result
}

func parseSchemaMap(s map[string]any) map[string]*schema.ParameterInfo {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return parseJSONSchemaToParams(raw)
}

func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}

// ConvertToEinoMessages flattens a system prompt plus the normalized
// message/content-block list into Eino's schema.Message sequence. tool_use
// blocks become assistant ToolCalls; tool_result blocks become Tool-role
// messages keyed by ToolCallID.
func ConvertToEinoMessages(system string, messages []types.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages)+1)
	if system != "" {
		result = append(result, &schema.Message{Role: schema.System, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleUser:
			result = append(result, userEinoMessages(msg)...)
		case types.RoleAssistant:
			result = append(result, assistantEinoMessage(msg))
		}
	}
	return result
}

func userEinoMessages(msg types.Message) []*schema.Message {
	var text strings.Builder
	var toolResults []*schema.Message
	for _, b := range msg.Content {
		switch b.Type {
		case types.BlockText:
			text.WriteString(b.Text)
		case types.BlockToolResult:
			content := b.Content
			toolResults = append(toolResults, &schema.Message{
				Role:       schema.Tool,
				Content:    content,
				ToolCallID: b.ToolUseRefID,
			})
		}
	}

	var out []*schema.Message
	if text.Len() > 0 {
		out = append(out, &schema.Message{Role: schema.User, Content: text.String()})
	}
	out = append(out, toolResults...)
	return out
}

func assistantEinoMessage(msg types.Message) *schema.Message {
	var text strings.Builder
	var toolCalls []schema.ToolCall
	for _, b := range msg.Content {
		switch b.Type {
		case types.BlockText:
			text.WriteString(b.Text)
		case types.BlockToolUse:
			inputJSON, _ := json.Marshal(b.Input)
			toolCalls = append(toolCalls, schema.ToolCall{
				ID: b.ToolUseID,
				Function: schema.FunctionCall{
					Name:      b.ToolName,
					Arguments: string(inputJSON),
				},
			})
		}
	}
	return &schema.Message{Role: schema.Assistant, Content: text.String(), ToolCalls: toolCalls}
}

// ConvertFromEinoMessage re-materializes an Eino completion into the
// normalized {content, usage, finishReason} response, turning ToolCalls
// back into tool_use blocks per §4.2.
func ConvertFromEinoMessage(msg *schema.Message) *CompletionResponse {
	var content []types.ContentBlock
	if msg.Content != "" {
		content = append(content, types.TextBlock(msg.Content))
	}
	finish := types.FinishStop
	for _, tc := range msg.ToolCalls {
		var input map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		content = append(content, types.ToolUseBlock(tc.ID, tc.Function.Name, input))
		finish = types.FinishToolUse
	}

	var usage *types.TokenUsage
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		u := msg.ResponseMeta.Usage
		usage = &types.TokenUsage{
			Input:  int(u.PromptTokens),
			Output: int(u.CompletionTokens),
		}
	}
	if msg.ResponseMeta != nil {
		switch msg.ResponseMeta.FinishReason {
		case "length", "max_tokens":
			finish = types.FinishLength
		case "stop", "end_turn", "":
			if finish != types.FinishToolUse {
				finish = types.FinishStop
			}
		}
	}

	return &CompletionResponse{Content: content, Usage: usage, FinishReason: finish}
}
