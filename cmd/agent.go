package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-lite/internal/agent"
	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
	"github.com/nextlevelbuilder/goclaw-lite/internal/mcp"
	"github.com/nextlevelbuilder/goclaw-lite/internal/runtime"
	"github.com/nextlevelbuilder/goclaw-lite/internal/tracing"
)

// agentCmd runs the agent outside any channel, for local testing and
// scripting.
func agentCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the agent directly (single message or REPL)",
		Run:   func(cmd *cobra.Command, args []string) {
			setupLogging()
			runAgentCLI(message)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send, instead of entering the REPL")
	return cmd
}

func runAgentCLI(message string) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
		Protocol: cfg.Tracing.Protocol,
	})
	if err == nil {
		defer shutdownTracing(ctx)
	}

	rt := runtime.New(runtime.Config{
		Type:    runtime.ProviderType(cfg.Provider.Type),
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Agent.Model,
	})

	mcpMgr := mcp.NewManager()
	if len(cfg.MCP.Servers) > 0 {
		servers := make([]mcp.ServerConfig, 0, len(cfg.MCP.Servers))
		for _, s := range cfg.MCP.Servers {
			servers = append(servers, mcp.ServerConfig{Name: s.Name, Command: s.Command, Args: s.Args, Env: s.Env})
		}
		mcpMgr.Start(ctx, servers)
	}
	defer mcpMgr.Stop()

	runner := agent.New(agentConfigFromCLI(cfg), rt, mcpMgr)

	ask := func(prompt string) {
		out, err := runner.Run(ctx, "cli", prompt, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		fmt.Println(out)
	}

	if message != "" {
		ask(message)
		return
	}

	fmt.Println("goclaw-lite agent (type 'exit' to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		ask(line)
	}
}

// agentConfigFromCLI mirrors gateway.agentConfigFrom — kept as a separate,
// smaller mapping here since the CLI path has no gateway/MCP-server-name
// wiring concerns beyond what's already resolved locally.
func agentConfigFromCLI(cfg *config.Config) agent.Config {
	names := make([]string, 0, len(cfg.MCP.Servers))
	for _, s := range cfg.MCP.Servers {
		names = append(names, s.Name)
	}
	return agent.Config{
		Workspace:                cfg.Agent.Workspace,
		RestrictToWorkspace:      cfg.Agent.RestrictToWorkspace,
		Model:                    cfg.Agent.Model,
		MaxTokens:                cfg.Agent.MaxTokens,
		Temperature:              cfg.Agent.Temperature,
		MaxToolIterations:        cfg.Agent.MaxToolIterations,
		ProviderType:             cfg.Provider.Type,
		ExecTimeoutSeconds:       cfg.Tools.ExecTimeoutSeconds,
		SkillsEnabled:            cfg.Skills.Enabled,
		SkillsDir:                cfg.Skills.Dir,
		MCPServerNames:           names,
		Hooks:                    cfg.Hooks,
		AutoCompactThreshold:     cfg.AutoCompact.Threshold,
		AutoCompactPreserveCount: cfg.AutoCompact.PreserveCount,
		TokenTrackingEnabled:     cfg.TokenTracking.Enabled,
		TokenTrackingPath:        cfg.TokenTracking.Path,
	}
}
