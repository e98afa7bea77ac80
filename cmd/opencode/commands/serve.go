package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xln3/forgeagent/internal/agentloop"
	"github.com/xln3/forgeagent/internal/config"
	"github.com/xln3/forgeagent/internal/lifecycle"
	"github.com/xln3/forgeagent/internal/logz"
	"github.com/xln3/forgeagent/internal/mcp"
	"github.com/xln3/forgeagent/internal/permission"
	"github.com/xln3/forgeagent/internal/provider"
	"github.com/xln3/forgeagent/internal/store"
	"github.com/xln3/forgeagent/internal/tool"
	"github.com/xln3/forgeagent/internal/worker"
)

var serveDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the OpenCode worker daemon",
	Long: `Run OpenCode as a worker daemon: a long-lived process that accepts
framed IPC requests over a Unix domain socket (TCP on Windows) and drives
sessions/tasks through the agent loop. This is the process internal/lifecycle
starts and supervises on behalf of interactive CLI invocations.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	logz.Info().Str("version", Version).Str("directory", workDir).Msg("starting opencode worker daemon")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providerReg, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		logz.Warn().Err(err).Msg("failed to initialize some providers")
	}

	toolReg, err := tool.DefaultRegistry(workDir, permission.NewChecker(), permission.DefaultAgentPermissions())
	if err != nil {
		return err
	}

	mcpClient := mcp.NewClient()
	for name, srv := range appConfig.MCP {
		if !srv.Enabled {
			continue
		}
		mcpCfg := &mcp.Config{
			Enabled:     srv.Enabled,
			Type:        mcp.TransportType(srv.Type),
			URL:         srv.URL,
			Headers:     srv.Headers,
			Command:     srv.Command,
			Environment: srv.Environment,
			Timeout:     srv.Timeout,
		}
		if err := mcpClient.AddServer(ctx, name, mcpCfg); err != nil {
			logz.Warn().Err(err).Str("server", name).Msg("failed to connect MCP server")
		}
	}
	for _, d := range mcpClient.ToolDescriptors() {
		toolReg.Register(d)
	}
	logz.Info().Int("mcpServers", mcpClient.ServerCount()).Int("mcpTools", len(mcpClient.Tools())).Msg("MCP servers registered")
	defer mcpClient.Close()

	dbPath := filepath.Join(paths.Data, "worker.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	defaultProviderID, defaultModelID := splitModel(appConfig.Model)
	loop := agentloop.New(providerReg, agentloop.DefaultAgent(), agentloop.Config{
		DefaultProviderID: defaultProviderID,
		DefaultModel:      defaultModelID,
	})

	lcPaths := lifecycle.DefaultPaths(daemonName(workDir))
	srv := worker.New(lcPaths.Socket, worker.Deps{
		Store: st,
		Tools: toolReg,
		Loop:  loop,
		AgentByID: map[string]*agentloop.AgentSpec{
			"default": agentloop.DefaultAgent(),
			"code":    agentloop.CodeAgent(),
			"plan":    agentloop.PlanAgent(),
		},
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logz.Info().Msg("shutting down opencode worker daemon")
		cancel()
	}()

	logz.Info().Str("socket", lcPaths.Socket).Msg("worker daemon listening")
	if err := srv.Serve(ctx); err != nil {
		logz.Error().Err(err).Msg("worker daemon stopped with error")
		return err
	}
	return nil
}

// daemonName scopes a daemon's socket/db/pid files by working directory so
// running opencode serve from two project roots doesn't collide.
func daemonName(workDir string) string {
	return filepath.Base(workDir)
}
