package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/envars/internal/config"
	"github.com/systmms/envars/internal/execenv"
)

func NewExecCommand(cfg *config.Config) *cobra.Command {
	var (
		envName    string
		locName    string
		workingDir string
	)

	cmd := &cobra.Command{
		Use:   "exec -e <environment> -- <command> [args...]",
		Short: "Run a command with resolved variables in its environment",
		Long: `Resolve every variable for a context and run a command with the result
injected into its environment. The child's exit code becomes the exit
code of envars.

Examples:
  envars exec -e dev -- npm start
  envars exec -e prod -l main -- ./server --listen :8080`,
		Args: cobra.MinimumNArgs(1),
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

			executor := execenv.New(cfg.Logger)
			code, err := executor.Exec(cmd.Context(), execenv.Options{
				Command:     args,
				Environment: resolved,
				WorkingDir:  workingDir,
			})
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&envName, "env", "e", "", "Environment to resolve (or $"+config.EnvVarName+")")
	cmd.Flags().StringVarP(&locName, "location", "l", "", "Location to resolve (default: detected from cloud identity)")
	cmd.Flags().StringVar(&workingDir, "cwd", "", "Working directory for the command")

	return cmd
}
