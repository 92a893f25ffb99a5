package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/envars/internal/config"
	"github.com/systmms/envars/internal/document"
)

func NewInitCommand(cfg *config.Config) *cobra.Command {
	var (
		app           string
		kmsKey        string
		environments  []string
		locations     []string
		descMandatory bool
	)

	cmd := &cobra.Command{
		Use:   "init --app <name>",
		Short: "Create a new configuration file",
		Long: `Create an envars.yml with the application name, KMS key, environments,
and locations. Locations pair a name with a cloud account or project ID
(NAME=ID), optionally with a per-location key (NAME=ID=KEY).

Examples:
  envars init --app myapp --kms-key arn:aws:kms:us-east-1:123:key/abc -e dev -e prod
  envars init --app myapp -e prod -l main=123456789012`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfg.Path); err == nil {
				return fmt.Errorf("%s already exists; remove it first to reinitialize", cfg.Path)
			}
			if app == "" {
				return fmt.Errorf("--app is required")
			}

			doc := document.New(app, kmsKey)
			doc.DescriptionMandatory = descMandatory
			for _, env := range environments {
				if err := doc.AddEnvironment(env); err != nil {
					return err
				}
			}
			for _, spec := range locations {
				loc, err := parseLocationSpec(spec)
				if err != nil {
					return err
				}
				if err := doc.AddLocation(loc); err != nil {
					return err
				}
			}

			if err := cfg.Save(doc); err != nil {
				return err
			}
			cfg.Logger.Info("Created %s for app %s", cfg.Path, app)
			cfg.Logger.Info("Next steps:")
			cfg.Logger.Info("  1. Add a variable: envars add DB_HOST db.internal")
			cfg.Logger.Info("  2. Add a secret:   envars add --secret -e prod API_KEY <value>")
			cfg.Logger.Info("  3. Render output:  envars output -e prod")
			return nil
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "Application name (required)")
	cmd.Flags().StringVar(&kmsKey, "kms-key", "", "Default KMS key (AWS ARN or GCP resource name)")
	cmd.Flags().StringArrayVarP(&environments, "env", "e", nil, "Environment name (repeatable)")
	cmd.Flags().StringArrayVarP(&locations, "location", "l", nil, "Location as NAME=ID or NAME=ID=KEY (repeatable)")
	cmd.Flags().BoolVar(&descMandatory, "description-mandatory", false, "Require a description for every variable")

	return cmd
}

// parseLocationSpec splits NAME=ID or NAME=ID=KEY.
func parseLocationSpec(spec string) (document.Location, error) {
	parts := strings.SplitN(spec, "=", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return document.Location{}, fmt.Errorf("invalid location %q: expected NAME=ID or NAME=ID=KEY", spec)
	}
	loc := document.Location{Name: parts[0], ID: parts[1]}
	if len(parts) == 3 {
		loc.KeyID = parts[2]
	}
	return loc, nil
}
