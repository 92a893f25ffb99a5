package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/envars/internal/config"
	"github.com/systmms/envars/internal/document"
	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/resolve"
	"github.com/systmms/envars/internal/validation"
	"github.com/systmms/envars/pkg/remotevalue"
	"github.com/systmms/envars/pkg/secretbackend"
)

func NewAddCommand(cfg *config.Config) *cobra.Command {
	var (
		envName        string
		locName        string
		secret         bool
		overwrite      bool
		allowPlaintext bool
		description    string
		pattern        string
		valueFile      string
	)

	cmd := &cobra.Command{
		Use:   "add NAME [VALUE]",
		Short: "Add or update a variable",
		Long: `Add a variable definition and optionally a value for a scope. Without
--env and --location the value applies everywhere; with either or both it
applies to that environment, location, or the exact pair.

With --secret the value is encrypted before it is stored. Values may
reference other variables with {{ NAME }} placeholders or point at remote
sources (parameter_store:, cloudformation_export:, gcp_secret_manager:).

Examples:
  envars add DB_HOST db.internal
  envars add DSN '{{ DB_HOST }}:5432' -e prod
  envars add --secret API_KEY hunter2 -e prod -l main
  envars add DB_PASSWORD 'parameter_store:/myapp/{{ ENV_NAME }}/db' -e prod`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			doc := cfg.Document()
			name := args[0]

			next := doc.Clone()
			if _, ok := next.Variables[name]; !ok {
				if next.DescriptionMandatory && description == "" {
					return enverrors.ConfigError{
						Field:      "description",
						Message:    fmt.Sprintf("description is mandatory for new variable %s", name),
						Suggestion: "pass --description",
					}
				}
				v := document.Variable{Name: name, Description: description, Validation: pattern}
				if err := next.AddVariable(v); err != nil {
					return err
				}
			} else if description != "" || pattern != "" {
				v := next.Variables[name]
				if description != "" {
					v.Description = description
				}
				if pattern != "" {
					v.Validation = pattern
				}
			}

			value, hasValue, err := readValue(args, valueFile)
			if err != nil {
				return err
			}
			if hasValue {
				if err := addValue(cmd, cfg, next, name, value, envName, locName, secret, overwrite, allowPlaintext); err != nil {
					return err
				}
			}

			if err := resolve.CheckAllContexts(next); err != nil {
				return err
			}
			if err := cfg.Save(next); err != nil {
				return err
			}
			cfg.Logger.Info("Saved %s", name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&envName, "env", "e", "", "Environment the value applies to")
	cmd.Flags().StringVarP(&locName, "location", "l", "", "Location the value applies to")
	cmd.Flags().BoolVar(&secret, "secret", false, "Encrypt the value before storing")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing value in the same scope")
	cmd.Flags().BoolVar(&allowPlaintext, "allow-plaintext", false, "Store a sensitive-looking variable without encryption")
	cmd.Flags().StringVar(&description, "description", "", "Variable description")
	cmd.Flags().StringVar(&pattern, "validation", "", "Regular expression the value must match")
	cmd.Flags().StringVar(&valueFile, "value-file", "", "Read the value from a file instead of the argument")

	return cmd
}

// readValue takes the value from the positional argument or --value-file.
func readValue(args []string, valueFile string) (string, bool, error) {
	if valueFile != "" {
		if len(args) == 2 {
			return "", false, fmt.Errorf("pass either a VALUE argument or --value-file, not both")
		}
		raw, err := os.ReadFile(valueFile)
		if err != nil {
			return "", false, fmt.Errorf("failed to read %s: %w", valueFile, err)
		}
		return strings.TrimSuffix(string(raw), "\n"), true, nil
	}
	if len(args) == 2 {
		return args[1], true, nil
	}
	return "", false, nil
}

func addValue(cmd *cobra.Command, cfg *config.Config, doc *document.Document, name, value, envName, locName string, secret, overwrite, allowPlaintext bool) error {
	scope := document.ScopeFor(envName, locName)

	// Reject before touching the key service so a bad invocation never
	// produces a ciphertext.
	if secret && scope.Kind == document.ScopeDefault {
		return enverrors.SecretScopeError{Variable: name}
	}

	if !secret && validation.LooksSensitive(name) && !allowPlaintext {
		return enverrors.UserError{
			Message:    fmt.Sprintf("%s looks like a credential but --secret was not given", name),
			Suggestion: "Pass --secret to encrypt it, or --allow-plaintext to store it anyway",
		}
	}

	// Secrets are checked as plaintext here; after encryption the stored
	// blob is opaque to the pattern.
	if err := validation.Check(*doc.Variables[name], value); err != nil {
		return err
	}

	// Locator prefixes must agree with the key family before anything is
	// stored; a mismatched value could never resolve.
	if kind, _, ok := remotevalue.SplitLocator(value); ok {
		keyFamily := secretbackend.FamilyForKey(doc.KeyID)
		if keyFamily != secretbackend.FamilyUnknown && kind.Family() != keyFamily {
			return enverrors.ProviderMismatchError{
				Variable:  name,
				Prefix:    kind.Prefix(),
				KeyFamily: string(keyFamily),
			}
		}
	}

	sv := document.ScopedValue{Variable: name, Scope: scope, Value: value, Secret: secret}
	if secret {
		keyID := doc.KeyFor(scope)
		if keyID == "" {
			return enverrors.ConfigError{
				Field:      "kms_key",
				Message:    "cannot store a secret without a kms_key in configuration",
				Suggestion: "set kms_key in the configuration block or on the location",
			}
		}
		backend, err := backendFactory(cfg)(keyID)
		if err != nil {
			return err
		}
		encCtx := secretbackend.NewContext(doc.App, scope.Environment, scope.Location)
		ciphertext, err := backend.Encrypt(cmd.Context(), value, keyID, encCtx)
		if err != nil {
			return err
		}
		sv.Value = ciphertext
		sv.KeyID = keyID
	}

	if overwrite {
		return doc.ReplaceValue(sv)
	}
	return doc.AddValue(sv)
}
