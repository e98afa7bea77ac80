// Package config loads forgeagent's configuration from a layered set of
// sources: a YAML file, a .env file, and environment variables, in that
// order of increasing precedence.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xln3/forgeagent/pkg/types"
)

// Load resolves configuration for directory (the project root), merging:
//  1. the global config file under GetPaths().Config
//  2. the project config file at <directory>/.forgeagent/config.yaml
//  3. a .env file at <directory>/.env, loaded via godotenv
//  4. environment variable overrides
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	_ = loadConfigFile(filepath.Join(GetPaths().Config, "config.yaml"), config)

	if directory != "" {
		_ = loadConfigFile(filepath.Join(directory, ".forgeagent", "config.yaml"), config)
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	applyEnvOverrides(config)
	return config, nil
}

func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileConfig types.Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// mergeConfig merges source into target; source wins on conflicting scalars,
// provider maps are merged key by key.
func mergeConfig(target, source *types.Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.SmallModel != "" {
		target.SmallModel = source.SmallModel
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]types.MCPServerConfig)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}
}

// applyEnvOverrides applies FORGEAGENT_*-prefixed (falling back to legacy
// ANTHROPIC_*) environment variables, the highest-precedence layer.
func applyEnvOverrides(config *types.Config) {
	apiKey := firstNonEmpty(os.Getenv("FORGEAGENT_API_KEY"), os.Getenv("ANTHROPIC_API_KEY"))
	baseURL := firstNonEmpty(os.Getenv("FORGEAGENT_BASE_URL"), os.Getenv("ANTHROPIC_BASE_URL"))

	if apiKey != "" || baseURL != "" {
		if config.Provider == nil {
			config.Provider = make(map[string]types.ProviderConfig)
		}
		p := config.Provider["anthropic"]
		if p.Options == nil {
			p.Options = &types.ModelOptions{}
		}
		if apiKey != "" && p.Options.APIKey == "" {
			p.Options.APIKey = apiKey
		}
		if baseURL != "" && p.Options.BaseURL == "" {
			p.Options.BaseURL = baseURL
		}
		config.Provider["anthropic"] = p
	}

	if model := os.Getenv("FORGEAGENT_MODEL"); model != "" {
		config.Model = model
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Save writes config as YAML to path, creating parent directories as needed.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
