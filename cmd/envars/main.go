package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/envars/cmd/envars/commands"
	"github.com/systmms/envars/internal/config"
	"github.com/systmms/envars/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		filePath         string
		noColor          bool
		debug            bool
		passthroughUnset bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "envars",
		Short: "Scoped environment variables with KMS-encrypted secrets",
		Long: `envars keeps environment variables in a single YAML file, scoped by
environment and location, with secrets encrypted through AWS or GCP KMS
and values that can reference each other or remote cloud sources.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = filePath
			cfg.Logger = logging.New(debug, noColor)
			cfg.PassthroughUnset = passthroughUnset
		},
	}

	rootCmd.PersistentFlags().StringVarP(&filePath, "file", "f", config.DefaultPath, "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&passthroughUnset, "passthrough-unset", false, "Keep placeholders for unset variables instead of substituting empty")

	rootCmd.AddCommand(
		commands.NewInitCommand(cfg),
		commands.NewAddCommand(cfg),
		commands.NewConfigCommand(cfg),
		commands.NewOutputCommand(cfg),
		commands.NewExecCommand(cfg),
		commands.NewTreeCommand(cfg),
		commands.NewValidateCommand(cfg),
		commands.NewRotateKeyCommand(cfg),
	)

	return rootCmd.Execute()
}
