// Package commands implements harrowctl's cobra command tree,
// grounded on the pack's cobra root-command layout (marmos91-dittofs's
// cmd/dittofs/commands/root.go, OswaldKardingson-lightwalletd's cmd
// root).
package commands

import (
	"fmt"
	"os"

	"github.com/pnevyk/harrow/internal/config"
	"github.com/pnevyk/harrow/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "harrowctl",
	Short:         "Inspect and exercise a harrow file-backed byte buffer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "harrowctl:", err)

		return err
	}

	return nil
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(touchCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(benchCmd)
}

// loadConfig resolves §4.7's Config and builds a logger from it,
// shared by every subcommand's RunE.
func loadConfig(cmd *cobra.Command) (config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}

	return cfg, logger, nil
}
