package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
)

// statusCmd prints a masked view of the active configuration, mirroring pyclaw cli.py's run_status.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show config status",
		Run:   func(cmd *cobra.Command, args []string) {
			runStatusCLI()
		},
	}
}

func runStatusCLI() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: %v\n", err)
		os.Exit(1)
	}
	masked := cfg.Masked()

	fmt.Printf("Config: %s\n", cfgPath)
	fmt.Printf("Workspace: %s\n", cfg.WorkspacePath())
	fmt.Printf("Model: %s\n", masked.Agent.Model)
	fmt.Printf("Provider: %s\n", masked.Provider.Type)
	if masked.Provider.APIKey != "" {
		fmt.Printf("API Key: %s\n", masked.Provider.APIKey)
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Telegram: enabled=%t\n", masked.Channels.Telegram.Enabled)
	fmt.Printf("Feishu: enabled=%t\n", masked.Channels.Feishu.Enabled)
	fmt.Printf("Slack: enabled=%t\n", masked.Channels.Slack.Enabled)
	fmt.Printf("WebUI: enabled=%t\n", masked.Channels.WebUI.Enabled)
	if len(masked.MCP.Servers) > 0 {
		fmt.Printf("MCP servers: %d configured\n", len(masked.MCP.Servers))
	}
}
