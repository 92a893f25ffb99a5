package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/envars/internal/config"
	"github.com/systmms/envars/internal/document"
)

func NewTreeCommand(cfg *config.Config) *cobra.Command {
	var decrypt bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show every variable and its scoped values",
		Long: `Print the document as a tree of variables and the scopes they hold
values for. Secret values print as [SECRET] unless --decrypt is given.

Examples:
  envars tree
  envars tree --decrypt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			doc := cfg.Document()
			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "%s\n", doc.App)
			for _, name := range doc.VariableNames() {
				v := doc.Variables[name]
				fmt.Fprintf(w, "├── %s\n", name)
				if v.Description != "" {
					fmt.Fprintf(w, "│     # %s\n", v.Description)
				}
				for _, sv := range doc.ValuesOf(name) {
					value, err := treeValue(cmd, cfg, sv, decrypt)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "│   %s: %s\n", sv.Scope, value)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&decrypt, "decrypt", false, "Decrypt secret values for display")

	return cmd
}

func treeValue(cmd *cobra.Command, cfg *config.Config, sv document.ScopedValue, decrypt bool) (string, error) {
	if !sv.Secret {
		return sv.Value, nil
	}
	if !decrypt {
		return "[SECRET]", nil
	}
	return newEngine(cfg).DecryptValue(cmd.Context(), sv)
}
