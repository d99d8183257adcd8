package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vivon-labs/vivon/sui-assistant/internal/config"
	"github.com/vivon-labs/vivon/sui-assistant/internal/logging"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Sui blockchain and VIVON platform assistant",
	Long: `assistant answers questions about the Sui blockchain and the VIVON platform
with a retrieval workflow over indexed documentation.

Without an LLM API key or a document store it serves canned development answers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile, config.DefaultEnvFiles...)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debug {
			cfg.Workflow.Debug = true
			cfg.Log.Level = "debug"
		}
		logger = logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose workflow logging and error details")

	rootCmd.AddCommand(serveCmd, indexCmd, seedCmd, queryCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
