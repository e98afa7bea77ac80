package types

// Config is the layered configuration forgeagent loads for a run: which
// providers are registered and which model is used by default. File,
// environment, and CLI-flag layers merge into this shape in that order of
// increasing precedence.
type Config struct {
	Model      string                    `yaml:"model,omitempty"`
	SmallModel string                    `yaml:"smallModel,omitempty"`
	Provider   map[string]ProviderConfig `yaml:"provider,omitempty"`
	MCP        map[string]MCPServerConfig `yaml:"mcp,omitempty"`
}

// MCPServerConfig configures one external MCP tool server entry, keyed by
// name in Config.MCP. It mirrors internal/mcp.Config's shape rather than
// importing that package directly, so pkg/types has no dependency on the
// MCP client implementation.
type MCPServerConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Type        string            `yaml:"type"` // "local"/"stdio" or "remote"
	URL         string            `yaml:"url,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Command     []string          `yaml:"command,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Timeout     int               `yaml:"timeout,omitempty"` // milliseconds
}

// ProviderConfig configures one named provider entry.
type ProviderConfig struct {
	Disable bool          `yaml:"disable,omitempty"`
	Npm     string        `yaml:"npm,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	Options *ModelOptions `yaml:"options,omitempty"`
}

// ModelOptions carries provider-call credentials and per-model capability
// flags reported to callers deciding which model to pick.
type ModelOptions struct {
	APIKey         string `yaml:"apiKey,omitempty"`
	BaseURL        string `yaml:"baseURL,omitempty"`
	PromptCaching  bool   `yaml:"-"`
	ExtendedOutput bool   `yaml:"-"`
}

// Model describes one model a provider exposes, for listing and default
// selection.
type Model struct {
	ID                string
	Name              string
	ProviderID        string
	ContextLength     int
	MaxOutputTokens   int
	SupportsTools     bool
	SupportsVision    bool
	SupportsReasoning bool
	InputPrice        float64
	OutputPrice       float64
	Options           ModelOptions
}
