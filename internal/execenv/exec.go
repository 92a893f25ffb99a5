// Package execenv runs child processes with resolved variables injected
// into their environment.
package execenv

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"

	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/logging"
)

// Executor handles running commands with ephemeral environment variables.
type Executor struct {
	logger *logging.Logger
}

// New creates a new executor.
func New(logger *logging.Logger) *Executor {
	return &Executor{logger: logger}
}

// Options configures command execution.
type Options struct {
	Command     []string          // Command and arguments to run
	Environment map[string]string // Resolved variables to inject
	WorkingDir  string            // Working directory for the command
}

// Exec runs a command with the resolved variables layered over the
// current environment. It returns the child's exit code; resolved values
// win over pre-existing variables of the same name.
func (e *Executor) Exec(ctx context.Context, opts Options) (int, error) {
	if len(opts.Command) == 0 {
		return 0, enverrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., envars exec -e prod -- npm start)",
		}
	}

	cmdName := opts.Command[0]
	if _, err := exec.LookPath(cmdName); err != nil {
		return 0, enverrors.UserError{
			Message:    "Command not found: " + cmdName,
			Details:    err.Error(),
			Suggestion: "Check that the command is installed and on PATH",
			Err:        err,
		}
	}

	cmd := exec.CommandContext(ctx, cmdName, opts.Command[1:]...)
	cmd.Env = buildEnvironment(opts.Environment)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}

	e.logger.Debug("executing: %s", strings.Join(opts.Command, " "))
	e.logger.Debug("injecting %d variable(s)", len(opts.Environment))

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 0, enverrors.UserError{
			Message:    "Command failed to run: " + strings.Join(opts.Command, " "),
			Details:    err.Error(),
			Suggestion: "Check the command output above for details",
			Err:        err,
		}
	}
	return 0, nil
}

// buildEnvironment layers the resolved variables over os.Environ in
// deterministic order.
func buildEnvironment(vars map[string]string) []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.Index(kv, "="); i > 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for name, value := range vars {
		merged[name] = value
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]string, 0, len(names))
	for _, name := range names {
		env = append(env, name+"="+merged[name])
	}
	return env
}
