// Package subagent is the static catalog of agent types the Task tool can
// spawn (general, explore, review), the Task/TaskOutput tool pair, and the
// in-memory store backing their background-task bookkeeping.
//
// Spawning is decoupled from internal/agentloop through the Runner
// interface: the loop package runs the inner conversation, this package
// only knows how to pick and scope a catalog entry and track its lifecycle.
package subagent
