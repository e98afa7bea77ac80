package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xln3/forgeagent/internal/agentloop"
	"github.com/xln3/forgeagent/internal/config"
	"github.com/xln3/forgeagent/internal/logz"
	"github.com/xln3/forgeagent/internal/permission"
	"github.com/xln3/forgeagent/internal/provider"
	"github.com/xln3/forgeagent/internal/tool"
	"github.com/xln3/forgeagent/internal/toolexec"
	"github.com/xln3/forgeagent/pkg/types"
)

var (
	runModel       string
	runAgent       string
	runFiles       []string
	runPrompt      string
	runPromptFile  string
	runDir         string
	runAutoApprove bool
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Run a single OpenCode agent turn",
	Long: `Run a single OpenCode agent turn against the working directory.

Examples:
  opencode run "Fix the bug in main.go"
  opencode run --model anthropic/claude-sonnet-4 "Explain this code"
  opencode run --agent plan "Break this feature down into steps"
  opencode run --file main.go "Review this file"`,
	RunE: runInteractive,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (provider/model format)")
	runCmd.Flags().StringVar(&runAgent, "agent", "", "Agent profile: default, code, or plan")
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "File(s) to attach to message")
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "Custom system prompt template")
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "", "Custom system prompt from file")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
	runCmd.Flags().BoolVar(&runAutoApprove, "auto-approve", false, "Auto-approve every permission check")
	runCmd.Flags().BoolVar(&runAutoApprove, "yolo", false, "Alias for --auto-approve")
}

func runInteractive(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if model := GetGlobalModel(); model != "" {
		appConfig.Model = model
	}
	if runModel != "" {
		appConfig.Model = runModel
	}

	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. Usage: opencode run \"your message\"")
	}
	for _, file := range runFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read file %s: %w", file, err)
		}
		message += fmt.Sprintf("\n\n--- File: %s ---\n%s", file, string(content))
	}

	var systemPrompt string
	switch {
	case runPromptFile != "":
		data, err := os.ReadFile(runPromptFile)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		systemPrompt = string(data)
	case runPrompt != "":
		systemPrompt = runPrompt
	}

	ctx := context.Background()
	providerReg, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("initialize providers: %w", err)
	}

	perms := permission.DefaultAgentPermissions()
	var checker *permission.Checker
	if runAutoApprove {
		perms.Edit, perms.WebFetch, perms.ExternalDir, perms.DoomLoop = permission.ActionAllow, permission.ActionAllow, permission.ActionAllow, permission.ActionAllow
	} else {
		checker = permission.NewChecker()
	}

	toolReg, err := tool.DefaultRegistry(workDir, checker, perms)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	spec := agentSpecFor(runAgent)
	if systemPrompt != "" {
		spec.Prompt = systemPrompt
	}

	defaultProviderID, defaultModelID := splitModel(appConfig.Model)
	loop := agentloop.New(providerReg, spec, agentloop.Config{
		DefaultProviderID: defaultProviderID,
		DefaultModel:      defaultModelID,
	})
	loop.Hooks = agentloop.Hooks{
		OnToolStart: func(toolUseID, name string, input map[string]any) {
			logz.Info().Str("tool", name).Msg("tool call started")
		},
		OnToolComplete: func(toolUseID string, outcome toolexec.Outcome) {
			logz.Debug().Str("toolUseID", toolUseID).Bool("isError", outcome.IsError).Msg("tool call finished")
		},
	}

	tc := &types.ToolContext{
		SessionID:          fmt.Sprintf("cli-%d", os.Getpid()),
		WorkDir:            workDir,
		FileReadTimestamps: map[string]int64{},
	}

	fmt.Printf("Model: %s\n", appConfig.Model)
	fmt.Printf("Agent: %s\n\n", spec.Name)

	text, err := loop.Run(ctx, nil, spec.Prompt, message, toolReg, tc)
	if err != nil {
		return fmt.Errorf("agent run: %w", err)
	}

	fmt.Println(text)
	return nil
}

// agentSpecFor resolves the --agent flag to one of agentloop's built-in
// profiles, falling back to DefaultAgent for an empty or unrecognized name.
func agentSpecFor(name string) *agentloop.AgentSpec {
	switch name {
	case "code":
		return agentloop.CodeAgent()
	case "plan":
		return agentloop.PlanAgent()
	default:
		return agentloop.DefaultAgent()
	}
}

// splitModel parses a "provider/model" string into its two halves; an
// unqualified model string leaves providerID empty so the loop falls back
// to its own default resolution.
func splitModel(model string) (providerID, modelID string) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", model
}
