package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/envars/internal/config"
	"github.com/systmms/envars/internal/resolve"
	"github.com/systmms/envars/internal/rotation"
)

func NewRotateKeyCommand(cfg *config.Config) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "rotate-key NEW_KEY",
		Short: "Re-encrypt every secret under a new KMS key",
		Long: `Decrypt every secret with its current key and re-encrypt it under
NEW_KEY, then write the updated file. The rotation happens on a copy:
if any value fails to decrypt or encrypt, the file is left untouched.
With --output-file the rotated document is written beside the original
instead of replacing it.

Values stored under a per-location key override keep their override key.

Examples:
  envars rotate-key arn:aws:kms:us-east-1:123456789012:key/new
  envars rotate-key projects/p/locations/global/keyRings/r/cryptoKeys/new -o envars.rotated.yml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			next, err := rotation.Rotate(cmd.Context(), cfg.Document(), args[0], backendFactory(cfg), cfg.Logger)
			if err != nil {
				return err
			}
			if err := resolve.CheckAllContexts(next); err != nil {
				return err
			}

			target := cfg
			if outputFile != "" {
				target = &config.Config{Path: outputFile, Logger: cfg.Logger}
			}
			if err := target.Save(next); err != nil {
				return err
			}
			cfg.Logger.Info("Rotated %s to %s", target.Path, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "Write the rotated document to this path instead of replacing the original")

	return cmd
}
