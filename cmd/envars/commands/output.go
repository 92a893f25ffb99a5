package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/systmms/envars/internal/config"
	enverrors "github.com/systmms/envars/internal/errors"
)

func NewOutputCommand(cfg *config.Config) *cobra.Command {
	var (
		envName string
		locName string
		format  string
		outPath string
		export  bool
	)

	cmd := &cobra.Command{
		Use:   "output -e <environment>",
		Short: "Print resolved variables",
		Long: `Resolve every variable for a context and print the result.

Supported formats:
  dotenv   - NAME=value lines (default)
  json     - JSON object
  yaml     - YAML mapping

Examples:
  envars output -e prod
  envars output -e prod -l main --format json
  envars output -e dev --export > .env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			env, err := cfg.ResolveEnvironment(envName)
			if err != nil {
				return err
			}
			loc := resolveLocation(cmd.Context(), cfg, locName)

			resolved, err := newEngine(cfg).ResolveAll(cmd.Context(), env, loc)
			if err != nil {
				return err
			}

			out, err := formatResolved(resolved, format, export)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, out, 0o600); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
				cfg.Logger.Info("Wrote %d variable(s) to %s", len(resolved), outPath)
				return nil
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&envName, "env", "e", "", "Environment to resolve (or $"+config.EnvVarName+")")
	cmd.Flags().StringVarP(&locName, "location", "l", "", "Location to resolve (default: detected from cloud identity)")
	cmd.Flags().StringVar(&format, "format", "dotenv", "Output format: dotenv, json, or yaml")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to file instead of stdout")
	cmd.Flags().BoolVar(&export, "export", false, "Prefix dotenv lines with 'export '")

	return cmd
}

func formatResolved(resolved map[string]string, format string, export bool) ([]byte, error) {
	switch format {
	case "dotenv":
		var buf bytes.Buffer
		for _, name := range sortedNames(resolved) {
			if export {
				buf.WriteString("export ")
			}
			buf.WriteString(name)
			buf.WriteByte('=')
			buf.WriteString(quoteDotenv(resolved[name]))
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	case "json":
		out, err := json.MarshalIndent(resolved, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "yaml":
		return yaml.Marshal(resolved)
	default:
		return nil, enverrors.UserError{
			Message:    fmt.Sprintf("Unknown output format %q", format),
			Suggestion: "Use dotenv, json, or yaml",
		}
	}
}

// quoteDotenv quotes values that would break NAME=value parsing.
func quoteDotenv(value string) string {
	if !strings.ContainsAny(value, " \t\n\"'#$") {
		return value
	}
	quoted := strings.ReplaceAll(value, `\`, `\\`)
	quoted = strings.ReplaceAll(quoted, `"`, `\"`)
	quoted = strings.ReplaceAll(quoted, "\n", `\n`)
	return `"` + quoted + `"`
}
