package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/envars/internal/config"
	"github.com/systmms/envars/internal/document"
	"github.com/systmms/envars/internal/resolve"
	"github.com/systmms/envars/internal/template"
	"github.com/systmms/envars/internal/validation"
	"github.com/systmms/envars/pkg/remotevalue"
	"github.com/systmms/envars/pkg/secretbackend"
)

func NewValidateCommand(cfg *config.Config) *cobra.Command {
	var decryptSecrets bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for problems",
		Long: `Run every static check against the configuration file: schema shape,
scope references, reference cycles in every context, validation
patterns, remote locator prefixes, and missing descriptions. All
problems are reported, not just the first.

With --decrypt, secret values are decrypted and checked against their
validation patterns too. This contacts the key service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(cfg.Path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", cfg.Path, err)
			}

			schemaProblems, err := document.CheckSchema(raw)
			if err != nil {
				return err
			}
			for _, p := range schemaProblems {
				cfg.Logger.Error("schema: %s", p)
			}
			if len(schemaProblems) > 0 {
				return fmt.Errorf("%d schema problem(s) in %s", len(schemaProblems), cfg.Path)
			}

			doc, err := document.Load(raw)
			if err != nil {
				return err
			}

			problems := semanticProblems(doc)
			if decryptSecrets {
				problems = append(problems, secretProblems(cmd.Context(), cfg, doc)...)
			}
			for _, p := range problems {
				cfg.Logger.Error("%s", p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problem(s) in %s", len(problems), cfg.Path)
			}

			cfg.Logger.Info("%s is valid", cfg.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&decryptSecrets, "decrypt", false, "Decrypt secrets and check them against validation patterns")
	return cmd
}

// secretProblems decrypts every secret value and applies the owning
// variable's validation pattern to the plaintext.
func secretProblems(ctx context.Context, cfg *config.Config, doc *document.Document) []string {
	var problems []string

	engine := resolve.New(doc, backendFactory(cfg), nil, cfg.Logger)
	for _, name := range doc.VariableNames() {
		v := doc.Variables[name]
		for _, sv := range doc.ValuesOf(name) {
			if !sv.Secret {
				continue
			}
			plaintext, err := engine.DecryptValue(ctx, sv)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s (%s): %s", name, sv.Scope, err))
				continue
			}
			if err := validation.Check(*v, plaintext); err != nil {
				problems = append(problems, fmt.Sprintf("%s (%s): %s", name, sv.Scope, err))
			}
		}
	}

	return problems
}

// semanticProblems collects every violation beyond schema shape.
func semanticProblems(doc *document.Document) []string {
	var problems []string

	if err := resolve.CheckAllContexts(doc); err != nil {
		problems = append(problems, err.Error())
	}

	for _, err := range validation.Sweep(doc) {
		problems = append(problems, err.Error())
	}

	keyFamily := secretbackend.FamilyForKey(doc.KeyID)
	for _, name := range doc.VariableNames() {
		v := doc.Variables[name]
		if doc.DescriptionMandatory && v.Description == "" {
			problems = append(problems, fmt.Sprintf("%s: description is mandatory but missing", name))
		}

		for _, sv := range doc.ValuesOf(name) {
			if sv.Secret {
				continue
			}
			for _, ref := range template.Refs(sv.Value) {
				if _, ok := doc.Variables[ref]; !ok {
					problems = append(problems, fmt.Sprintf("%s (%s): references undeclared variable %s", name, sv.Scope, ref))
				}
			}
			if kind, _, ok := remotevalue.SplitLocator(sv.Value); ok {
				if keyFamily != secretbackend.FamilyUnknown && kind.Family() != keyFamily {
					problems = append(problems, fmt.Sprintf("%s (%s): %s locator conflicts with %s key family", name, sv.Scope, kind, keyFamily))
				}
			}
		}
	}

	if doc.KeyID != "" && keyFamily == secretbackend.FamilyUnknown {
		problems = append(problems, fmt.Sprintf("kms_key %q does not match any supported KMS family", doc.KeyID))
	}

	return problems
}
