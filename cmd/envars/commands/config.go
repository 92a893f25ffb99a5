package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/envars/internal/config"
	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/resolve"
)

func NewConfigCommand(cfg *config.Config) *cobra.Command {
	var (
		kmsKey    string
		addEnv    string
		removeEnv string
		addLoc    string
		removeLoc string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Update the configuration block of an existing file",
		Long: `Change document-level settings after init: declare or remove
environments and locations, switch the global KMS key, or toggle
mandatory descriptions. Removing an environment or location fails while
any variable still has a value bound to it.

Changing the KMS key affects new secrets only; existing ciphertexts keep
the key they were encrypted under (use rotate-key to re-encrypt them).

Examples:
  envars config --add-env staging
  envars config --add-location backup=210987654321
  envars config --kms-key arn:aws:kms:us-east-1:123:key/new
  envars config --description-mandatory=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("kms-key") && !flags.Changed("add-env") && !flags.Changed("remove-env") &&
				!flags.Changed("add-location") && !flags.Changed("remove-location") &&
				!flags.Changed("description-mandatory") {
				return enverrors.UserError{
					Message:    "No configuration change requested",
					Suggestion: "Run 'envars config --help' for the available options",
				}
			}

			if err := cfg.Load(); err != nil {
				return err
			}
			next := cfg.Document().Clone()

			if flags.Changed("kms-key") {
				next.KeyID = kmsKey
			}
			if addEnv != "" {
				if err := next.AddEnvironment(addEnv); err != nil {
					return err
				}
			}
			if removeEnv != "" {
				if err := next.RemoveEnvironment(removeEnv); err != nil {
					return err
				}
			}
			if addLoc != "" {
				loc, err := parseLocationSpec(addLoc)
				if err != nil {
					return err
				}
				if err := next.AddLocation(loc); err != nil {
					return err
				}
			}
			if removeLoc != "" {
				if err := next.RemoveLocation(removeLoc); err != nil {
					return err
				}
			}
			if flags.Changed("description-mandatory") {
				v, err := flags.GetBool("description-mandatory")
				if err != nil {
					return err
				}
				next.DescriptionMandatory = v
			}

			if err := resolve.CheckAllContexts(next); err != nil {
				return err
			}
			if err := cfg.Save(next); err != nil {
				return err
			}
			cfg.Logger.Info("Updated %s", cfg.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kmsKey, "kms-key", "k", "", "Set the document-level KMS key")
	cmd.Flags().StringVar(&addEnv, "add-env", "", "Declare a new environment")
	cmd.Flags().StringVar(&removeEnv, "remove-env", "", "Remove an environment (must be unused)")
	cmd.Flags().StringVar(&addLoc, "add-location", "", "Declare a location as NAME=ID or NAME=ID=KEY")
	cmd.Flags().StringVar(&removeLoc, "remove-location", "", "Remove a location by name (must be unused)")
	cmd.Flags().Bool("description-mandatory", false, "Require a description for every variable")

	return cmd
}
