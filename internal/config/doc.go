// Package config loads and merges forgeagent's configuration.
//
// Load resolves a *types.Config from four layers, each overriding the
// last:
//
//  1. the global config file (GetPaths().Config/config.yaml)
//  2. the project config file (<directory>/.forgeagent/config.yaml)
//  3. a .env file at <directory>/.env, loaded with godotenv
//  4. environment variables (FORGEAGENT_API_KEY, falling back to the legacy
//     ANTHROPIC_API_KEY; FORGEAGENT_BASE_URL/ANTHROPIC_BASE_URL;
//     FORGEAGENT_MODEL)
//
// Paths follows the XDG Base Directory layout, adapted for Windows via
// APPDATA.
package config
