// Package agentloop implements the §4.5 agent loop: the state machine that
// interleaves provider completions with tool execution over a growing
// message list M.
//
// # Step
//
// Each step normalizes M (internal/message), calls the provider adapter
// (internal/provider), appends the assistant message, and — if that message
// carries no tool_use blocks — terminates. Otherwise the tool-use blocks run
// through internal/toolexec and the resulting tool_result messages extend M
// for the next step.
//
//	l := agentloop.New(providerRegistry, agentloop.DefaultAgent(), agentloop.Config{
//		DefaultProviderID: "anthropic",
//		DefaultModel:      "claude-sonnet-4-20250514",
//	})
//	text, err := l.Run(ctx, cancel, systemPrompt, "fix the flaky test", toolRegistry, tc)
//
// # Hooks
//
// Loop.Hooks dispatches onQueryStart/onLLMRequest/onLLMResponse/
// onToolStart/Progress/Complete/Error/onQueryEnd/onAbort at the points named
// in spec §4.5. Each is a best-effort callback and the only way a worker or
// REPL front-end observes a run; the loop publishes nothing to
// internal/event.
//
// # Sub-agents
//
// Run's signature is exactly internal/subagent.Runner, so the Task tool can
// instantiate a fresh Loop scoped to a filtered registry and a root cancel
// token without either package importing the other's concrete type.
package agentloop
