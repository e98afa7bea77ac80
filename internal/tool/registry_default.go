package tool

import (
	"fmt"
	"path/filepath"

	"github.com/xln3/forgeagent/internal/config"
	"github.com/xln3/forgeagent/internal/filestore"
	"github.com/xln3/forgeagent/internal/permission"
	"github.com/xln3/forgeagent/internal/toolset"
)

// DefaultRegistry builds the registry of built-in tools rooted at workDir:
// bash, edit, write, webfetch, read, list, glob, grep, and the todo pair.
// checker gates edit/write/webfetch/bash per perms; checker may be nil to
// run every tool unchecked (tests, headless automation that has already
// scoped the workspace).
func DefaultRegistry(workDir string, checker *permission.Checker, perms permission.AgentPermissions) (*Registry, error) {
	todoDir := filepath.Join(config.GetPaths().Data, "todo")
	todoStore, err := filestore.New(todoDir)
	if err != nil {
		return nil, fmt.Errorf("tool: open todo store %s: %w", todoDir, err)
	}

	r := NewRegistry()
	r.Register(toolset.NewBashDescriptor(workDir, checker, perms.Bash))
	r.Register(toolset.NewEditDescriptor(checker, perms.Edit))
	r.Register(toolset.NewWriteDescriptor(checker, perms.Edit))
	r.Register(toolset.NewWebFetchDescriptor(checker, perms.WebFetch))
	r.Register(toolset.NewReadDescriptor())
	r.Register(toolset.NewListDescriptor())
	r.Register(toolset.NewGlobDescriptor())
	r.Register(toolset.NewGrepDescriptor())
	r.Register(toolset.NewTodoReadDescriptor(todoStore))
	r.Register(toolset.NewTodoWriteDescriptor(todoStore))
	return r, nil
}
