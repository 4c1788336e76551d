package main

import (
	"fmt"
	"os"

	"charsmith/config"
	"charsmith/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRootCmd builds the charsmith command tree. Running it without a
// subcommand serves the HTTP API.
func newRootCmd() *cobra.Command {
	var (
		verbose bool
		logger  = zap.NewNop()
	)

	rootCmd := &cobra.Command{
		Use:           "charsmith",
		Short:         "Character generation and agent launcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: could not read .env file:", err)
			}

			l, err := logging.New(config.GetLogLevel(), verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logger)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd(&logger))
	rootCmd.AddCommand(newRepairCmd(&logger))
	rootCmd.AddCommand(newValidateCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
