// Package config holds the runtime configuration shared by commands: the
// document file path, the loaded document, and flag-derived settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/systmms/envars/internal/document"
	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/logging"
)

// DefaultPath is the document file commands read when --file is not set.
const DefaultPath = "envars.yml"

// EnvVarName selects the environment when the --env flag is not set.
const EnvVarName = "ENVARS_ENV"

// Config holds the runtime configuration.
type Config struct {
	Path             string
	Logger           *logging.Logger
	PassthroughUnset bool

	doc *document.Document
}

// Load reads and parses the document file. Calling it twice reloads.
func (c *Config) Load() error {
	raw, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return enverrors.UserError{
				Message:    fmt.Sprintf("No configuration file found at %s", c.Path),
				Suggestion: "Run 'envars init' to create one, or point --file at an existing file",
				Err:        err,
			}
		}
		return fmt.Errorf("failed to read %s: %w", c.Path, err)
	}

	doc, err := document.Load(raw)
	if err != nil {
		return err
	}
	c.doc = doc
	return nil
}

// Document returns the loaded document. Load must have succeeded.
func (c *Config) Document() *document.Document {
	return c.doc
}

// Save marshals the document and writes it to the configured path. The
// write goes through a temp file and rename so a crash cannot leave a
// half-written document behind.
func (c *Config) Save(doc *document.Document) error {
	out, err := document.Marshal(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.Path)
	tmp, err := os.CreateTemp(dir, ".envars-*.yml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, c.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", c.Path, err)
	}

	c.doc = doc
	return nil
}

// ResolveEnvironment returns the environment from the flag value or the
// ENVARS_ENV variable. An empty result is an error: resolution always
// needs an environment.
func (c *Config) ResolveEnvironment(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(EnvVarName); v != "" {
		c.Logger.Debug("environment %s taken from %s", v, EnvVarName)
		return v, nil
	}
	return "", enverrors.UserError{
		Message:    "No environment selected",
		Suggestion: fmt.Sprintf("Pass --env or set %s", EnvVarName),
	}
}
