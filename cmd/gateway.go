package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
	"github.com/nextlevelbuilder/goclaw-lite/internal/gateway"
	"github.com/nextlevelbuilder/goclaw-lite/internal/tracing"
)

// gatewayCmd starts the assembled gateway process with every enabled
// channel.
func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the gateway with every enabled channel",
		Run:   func(cmd *cobra.Command, args []string) {
			setupLogging()
			runGatewayCLI()
		},
	}
}

func runGatewayCLI() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: %v\n", err)
		os.Exit(1)
	}

	if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) {
		fmt.Println("No configuration found. Run 'goclaw-lite onboard' first.")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
		Protocol: cfg.Tracing.Protocol,
	})
	if err != nil {
		slog.Warn("gateway.tracing_setup_failed", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
	}

	gw := gateway.New(cfg)

	slog.Info("gateway.starting", "host", cfg.Gateway.Host, "port", cfg.Gateway.Port)
	if err := gw.Run(ctx); err != nil {
		slog.Error("gateway.exited", "error", err)
		os.Exit(1)
	}
}
