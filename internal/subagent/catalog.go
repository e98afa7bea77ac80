// Package subagent is the static catalog of agent types the Task tool can
// spawn, plus the spawner itself: a tool whose call instantiates a fresh
// inner agent loop scoped to a filtered tool registry.
package subagent

// AgentType is one entry in the static catalog: everything the Task tool
// needs to instantiate a scoped inner loop for a named agent flavor.
type AgentType struct {
	Name        string
	Description string // the "when to use this agent" blurb shown to the model

	// Allowed is the tool allow-list; nil means "*" (every registered tool).
	Allowed []string
	// Disallowed is subtracted from Allowed (or from "*") to produce the
	// filtered registry: allowed \ disallowed.
	Disallowed []string

	SystemPrompt string
	DefaultModel string
}

// BuiltInCatalog returns the default agent-type catalog.
func BuiltInCatalog() map[string]*AgentType {
	return map[string]*AgentType{
		"general": {
			Name:        "general",
			Description: "General-purpose agent for researching complex questions, searching for code, and executing multi-step tasks. Use when a task needs several rounds of search/read without knowing exactly which files matter up front.",
			Disallowed:  []string{"task", "task_output"},
			SystemPrompt: "You are a focused research subagent. Investigate the assigned " +
				"question thoroughly using the tools available, then report a concise, " +
				"complete answer in your final message. You cannot spawn further subagents.",
		},
		"explore": {
			Name:        "explore",
			Description: "Fast, read-only agent specialized for codebase exploration: locating definitions, tracing call sites, summarizing a subsystem.",
			Allowed:     []string{"read", "glob", "grep", "list"},
			SystemPrompt: "You explore a codebase read-only. Find what was asked for and " +
				"summarize it precisely with file:line references. Do not attempt to edit " +
				"or run commands.",
		},
		"review": {
			Name:        "review",
			Description: "Reviews a diff or file set for correctness issues and reports findings; does not modify anything.",
			Allowed:     []string{"read", "glob", "grep", "list", "bash"},
			SystemPrompt: "You review code changes for defects: correctness, edge cases, " +
				"concurrency hazards, and security. Report findings as a ranked list with " +
				"file:line references. You do not edit files.",
		},
	}
}
