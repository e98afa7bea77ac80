package agentloop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// SystemPromptBuilder assembles the system prompt for one turn: a
// provider-specific header, the agent's own prompt, model-specific
// guidance, environment context, any project-local rules file, and the
// tool-usage guidelines every leaf tool in internal/toolset expects the
// model to already know.
type SystemPromptBuilder struct {
	agent      *AgentSpec
	providerID string
	modelID    string
	workDir    string
}

// NewSystemPromptBuilder creates a builder for one provider/model pair and
// working directory (normally tc.WorkDir).
func NewSystemPromptBuilder(agent *AgentSpec, providerID, modelID, workDir string) *SystemPromptBuilder {
	return &SystemPromptBuilder{agent: agent, providerID: providerID, modelID: modelID, workDir: workDir}
}

// Build returns the complete system prompt.
func (s *SystemPromptBuilder) Build() string {
	var parts []string

	if header := s.providerHeader(); header != "" {
		parts = append(parts, header)
	}
	if s.agent != nil && s.agent.Prompt != "" {
		parts = append(parts, s.agent.Prompt)
	}
	if modelPrompt := s.modelPrompt(); modelPrompt != "" {
		parts = append(parts, modelPrompt)
	}
	parts = append(parts, s.environmentContext())
	if rules := s.loadCustomRules(); rules != "" {
		parts = append(parts, rules)
	}
	parts = append(parts, toolInstructions)

	return strings.Join(parts, "\n\n")
}

func (s *SystemPromptBuilder) providerHeader() string {
	switch s.providerID {
	case "anthropic":
		return `You are Claude, an AI assistant made by Anthropic. You are helpful, harmless, and honest.

IMPORTANT: You have access to tools that can read, write, and execute commands on the user's computer. Use them responsibly.`
	case "openai":
		return `You are a helpful AI assistant with access to tools for reading, writing, and executing commands.

Use tools responsibly and follow user instructions carefully.`
	case "ark":
		return `You are a helpful AI assistant with tool access.

You can read files, write code, and execute commands to help the user.`
	default:
		return ""
	}
}

func (s *SystemPromptBuilder) modelPrompt() string {
	switch {
	case strings.Contains(s.modelID, "claude"):
		return `When using tools, be decisive and take action. Don't ask for confirmation unless absolutely necessary.

For file operations:
- Read files before editing to understand context
- Make minimal, focused changes
- Preserve existing code style and formatting`
	case strings.Contains(s.modelID, "gpt"):
		return `When working with files:
- Always read files before making changes
- Make precise, targeted edits
- Follow existing code conventions`
	default:
		return ""
	}
}

func (s *SystemPromptBuilder) environmentContext() string {
	var env strings.Builder
	env.WriteString("# Environment Information\n\n")

	workDir := s.workDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	env.WriteString(fmt.Sprintf("Working Directory: %s\n", workDir))
	env.WriteString(fmt.Sprintf("Current Date: %s\n", time.Now().Format("2006-01-02")))
	env.WriteString(fmt.Sprintf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH))

	if branch := gitBranch(workDir); branch != "" {
		env.WriteString(fmt.Sprintf("Git Branch: %s\n", branch))
	}
	if projectType := detectProjectType(workDir); projectType != "" {
		env.WriteString(fmt.Sprintf("Project Type: %s\n", projectType))
	}
	return env.String()
}

// loadCustomRules looks for a project- or user-level rules file, the way the
// teacher's system prompt picks up AGENTS.md/CLAUDE.md conventions.
func (s *SystemPromptBuilder) loadCustomRules() string {
	workDir := s.workDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	locations := []string{
		filepath.Join(workDir, "AGENTS.md"),
		filepath.Join(workDir, "CLAUDE.md"),
		filepath.Join(workDir, ".forgeagent", "rules.md"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "forgeagent", "rules.md"))
	}

	for _, loc := range locations {
		if content, err := os.ReadFile(loc); err == nil && len(content) > 0 {
			return fmt.Sprintf("# Custom Rules\n\n%s", string(content))
		}
	}
	return ""
}

const toolInstructions = `# Tool Usage Guidelines

1. **File Operations**
   - Use the read tool before editing files
   - Use edit for surgical changes, write for new files
   - Always provide absolute paths

2. **Bash Commands**
   - Prefer built-in tools over bash when possible
   - Include a description for every bash command
   - Handle errors gracefully

3. **Search**
   - Use glob for file discovery
   - Use grep for content search
   - Be specific with patterns to avoid noise

4. **Best Practices**
   - Work iteratively, verify changes work
   - Don't modify files you haven't read
   - Explain your reasoning before acting`

func gitBranch(dir string) string {
	if dir == "" {
		return ""
	}
	cmd := exec.Command("git", "branch", "--show-current")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

func detectProjectType(dir string) string {
	if dir == "" {
		return ""
	}
	indicators := map[string][]string{
		"Node.js": {"package.json"},
		"Python":  {"pyproject.toml", "setup.py", "requirements.txt"},
		"Go":      {"go.mod"},
		"Rust":    {"Cargo.toml"},
	}
	for projectType, files := range indicators {
		for _, pattern := range files {
			if matches, _ := filepath.Glob(filepath.Join(dir, pattern)); len(matches) > 0 {
				return projectType
			}
		}
	}
	return ""
}
