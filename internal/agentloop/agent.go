package agentloop

// AgentSpec is a named agent profile: system prompt, sampling parameters,
// step budget, and a tool allow/disallow split. It plays the same role for
// the top-level loop that internal/subagent.AgentType plays for spawned
// sub-agents, but carries the sampling/step fields a catalog entry doesn't
// need.
type AgentSpec struct {
	Name string

	// Prompt is the agent's own system-prompt text; SystemPromptBuilder
	// places it after the provider header (see system.go).
	Prompt string

	Temperature float64
	TopP        float64

	// MaxSteps bounds the state machine's step count; exceeding it without a
	// natural termination is reported as an error rather than looping
	// forever on a misbehaving model.
	MaxSteps int

	// Allowed is the tool allow-list; nil means every tool in the registry
	// passed to Run. Disallowed subtracts from Allowed (or from "all").
	Allowed    []string
	Disallowed []string
}

// ToolEnabled reports whether name is usable under this spec's allow/
// disallow split.
func (a *AgentSpec) ToolEnabled(name string) bool {
	for _, d := range a.Disallowed {
		if d == name {
			return false
		}
	}
	if len(a.Allowed) == 0 {
		return true
	}
	for _, n := range a.Allowed {
		if n == name {
			return true
		}
	}
	return false
}

// DefaultAgent is the general-purpose profile used when a caller doesn't
// supply its own AgentSpec.
func DefaultAgent() *AgentSpec {
	return &AgentSpec{
		Name:        "default",
		Temperature: 0.7,
		TopP:        1.0,
		MaxSteps:    50,
	}
}

// CodeAgent is tuned for focused implementation work: lower temperature, a
// larger step budget, and a prompt biased toward minimal, explained diffs.
func CodeAgent() *AgentSpec {
	return &AgentSpec{
		Name:        "code",
		Temperature: 0.3,
		TopP:        0.95,
		MaxSteps:    100,
		Prompt: `You are an expert software engineer helping with coding tasks.
Focus on writing clean, maintainable code. Follow best practices and existing conventions in the codebase.
When making changes, prefer minimal modifications and explain your reasoning.`,
	}
}

// PlanAgent is read-only: no Write/Edit/Bash, tuned for breaking a task down
// before any code changes happen.
func PlanAgent() *AgentSpec {
	return &AgentSpec{
		Name:        "plan",
		Temperature: 0.5,
		TopP:        1.0,
		MaxSteps:    20,
		Prompt: `You are a helpful assistant focused on planning and analysis.
Break down complex tasks into manageable steps and provide clear explanations.
Focus on understanding the problem before suggesting solutions.`,
		Disallowed: []string{"write", "edit", "bash"},
	}
}
