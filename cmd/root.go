// Package cmd implements the CLI surface: five subcommands — agent,
// gateway, onboard, status, version — over a shared --config flag, using cobra for
// command wiring and pyclaw's cli.py for which subcommands exist and what
// each one does.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
	"github.com/nextlevelbuilder/goclaw-lite/pkg/protocol"
)

// Version is set at build time via -ldflags "-X.../cmd.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "goclaw-lite",
	Short: "GoClaw-lite — a multi-channel conversational gateway",
	Long:  "GoClaw-lite: a single-process agent gateway that bridges Telegram, Feishu, Slack, and a web UI to one tool-using LLM agent.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.ember/config.json or $PYCLAW_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(gatewayCmd())
	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   func(cmd *cobra.Command, args []string) {
			fmt.Printf("goclaw-lite %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

// setupLogging installs a structured text handler on slog's default logger,
// at debug level when -v is set.
func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("PYCLAW_CONFIG"); v != "" {
		return v
	}
	return config.DefaultConfigPath()
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
