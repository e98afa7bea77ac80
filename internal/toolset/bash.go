package toolset

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/xln3/forgeagent/internal/permission"
	"github.com/xln3/forgeagent/pkg/types"
)

// DefaultBashTimeout is the per-tool default applied when the model omits
// a timeout.
const (
	DefaultBashTimeout = 30 * time.Second
	MaxBashTimeout     = 10 * time.Minute
	MaxOutputLength    = 30000
	SigkillTimeout     = 200 * time.Millisecond
)

const bashDescription = `Executes a shell command in the working directory.

- command is required; description should summarize intent for the user
- timeout is optional, in milliseconds, capped at 10 minutes
- output from stdout and stderr is combined and truncated past 30000 bytes
- the command runs in its own process group so cancellation can kill children`

var bashSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"command":     map[string]any{"type": "string", "description": "the command to execute"},
		"timeout":     map[string]any{"type": "integer", "description": "timeout in milliseconds, max 600000"},
		"description": map[string]any{"type": "string", "description": "brief description of what this command does"},
	},
	"required": []any{"command", "description"},
}

// NewBashDescriptor builds the bash tool. checker may be nil to run
// unchecked (tests, headless automation that has already scoped commands).
func NewBashDescriptor(workDir string, checker *permission.Checker, perms map[string]permission.PermissionAction) *types.ToolDescriptor {
	shell := detectShell()

	return &types.ToolDescriptor{
		Name:              "bash",
		Description:       bashDescription,
		Schema:            bashSchema,
		IsReadOnly:        constPredicate(false),
		IsConcurrencySafe: constPredicate(false),
		Call: func(ctx context.Context, tc *types.ToolContext, input map[string]any) (<-chan types.ToolEvent, error) {
			ch := make(chan types.ToolEvent, 1)
			go func() {
				defer close(ch)
				data, rendered, err := runBash(ctx, tc, input, workDir, shell, checker, perms)
				ch <- types.ToolEvent{Type: types.ToolEventResult, Result: types.ToolResult{Data: data, ResultForAssistant: rendered, Err: err}}
			}()
			return ch, nil
		},
		Render: func(r types.ToolResult) string {
			if r.Err != nil {
				return r.Err.Error()
			}
			return r.ResultForAssistant
		},
	}
}

func runBash(ctx context.Context, tc *types.ToolContext, input map[string]any, workDir, shell string, checker *permission.Checker, perms map[string]permission.PermissionAction) (any, string, error) {
	command := strInput(input, "command")
	description := strInput(input, "description")

	if checker != nil {
		if err := checkBashPermission(ctx, tc, command, workDir, checker, perms); err != nil {
			return nil, "", err
		}
	}

	timeout := DefaultBashTimeout
	if ms := intInput(input, "timeout"); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
		if timeout > MaxBashTimeout {
			timeout = MaxBashTimeout
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(cmdCtx, shell, "/c", command)
	} else {
		cmd = exec.CommandContext(cmdCtx, shell, "-c", command)
	}

	dir := workDir
	if tc != nil && tc.WorkDir != "" {
		dir = tc.WorkDir
	}
	cmd.Dir = dir
	cmd.Env = os.Environ()
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if tc != nil && tc.OnMetadata != nil {
		tc.OnMetadata("description", description)
	}

	output, err := cmd.CombinedOutput()
	timedOut := cmdCtx.Err() == context.DeadlineExceeded

	result := string(output)
	if len(result) > MaxOutputLength {
		result = result[:MaxOutputLength] + "\n\n(output truncated)"
	}
	if timedOut {
		killProcessGroup(cmd)
		result += fmt.Sprintf("\n\n(command timed out after %v)", timeout)
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil && !timedOut {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			result += fmt.Sprintf("\n\nerror: %v", err)
		}
	}

	return map[string]any{"output": result, "exit": exitCode}, result, nil
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil || runtime.GOOS == "windows" {
		return
	}
	pid := cmd.Process.Pid
	syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(SigkillTimeout)
	if cmd.ProcessState == nil {
		syscall.Kill(-pid, syscall.SIGKILL)
	}
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		if s != "/bin/fish" && s != "/usr/bin/fish" && s != "/bin/nu" && s != "/usr/bin/nu" {
			return s
		}
	}
	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

func checkBashPermission(ctx context.Context, tc *types.ToolContext, command, workDir string, checker *permission.Checker, perms map[string]permission.PermissionAction) error {
	commands, err := permission.ParseBashCommand(command)
	if err != nil {
		return checker.Ask(ctx, permission.Request{
			Type: permission.PermBash, Pattern: []string{command}, SessionID: tc.SessionID, CallID: tc.CallID,
			Title: command, Metadata: map[string]any{"command": command, "parse_failed": true},
		})
	}

	var askPatterns []string
	for _, cmd := range commands {
		if permission.IsDangerousCommand(cmd.Name) {
			for _, p := range permission.ExtractPaths(cmd) {
				resolved, err := permission.ResolvePath(ctx, p, workDir)
				if err != nil {
					continue
				}
				if !permission.IsWithinDir(resolved, workDir) {
					return &permission.RejectedError{
						SessionID: tc.SessionID, Type: permission.PermExternalDir, CallID: tc.CallID,
						Message:  fmt.Sprintf("command references paths outside of %s", workDir),
						Metadata: map[string]any{"command": command, "path": resolved},
					}
				}
			}
		}
		if cmd.Name == "cd" {
			continue
		}
		switch permission.MatchBashPermission(cmd, perms) {
		case permission.ActionDeny:
			return &permission.RejectedError{
				SessionID: tc.SessionID, Type: permission.PermBash, CallID: tc.CallID,
				Message: fmt.Sprintf("command not allowed: %s", cmd.Name), Metadata: map[string]any{"command": command},
			}
		case permission.ActionAsk:
			askPatterns = append(askPatterns, permission.BuildPattern(cmd))
		}
	}

	if len(askPatterns) == 0 {
		return nil
	}
	seen := map[string]bool{}
	unique := askPatterns[:0]
	for _, p := range askPatterns {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	return checker.Ask(ctx, permission.Request{
		Type: permission.PermBash, Pattern: unique, SessionID: tc.SessionID, CallID: tc.CallID,
		Title: command, Metadata: map[string]any{"command": command, "patterns": unique},
	})
}
