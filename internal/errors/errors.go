// Package errors defines the user-facing error types shared across envars.
//
// Two shapes exist: general-purpose errors carrying a suggestion for the
// user (UserError, ConfigError), and the resolution taxonomy, one typed
// error per structural failure mode so callers can branch with errors.As.
package errors

import (
	"fmt"
	"strings"
)

// UserError is an error intended for direct display, optionally wrapping
// a technical cause and carrying a remediation hint.
type UserError struct {
	Message    string
	Details    string
	Suggestion string
	Err        error
}

func (e UserError) Error() string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}
	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}
	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error { return e.Err }

// ConfigError reports an invalid document or flag value.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// UnknownVariableError reports a reference to an undeclared variable.
type UnknownVariableError struct {
	Name string
}

func (e UnknownVariableError) Error() string {
	return fmt.Sprintf("variable '%s' is not defined", e.Name)
}

// UnknownEnvironmentError reports a context or scope naming an
// undeclared environment.
type UnknownEnvironmentError struct {
	Name string
}

func (e UnknownEnvironmentError) Error() string {
	return fmt.Sprintf("environment '%s' not found in configuration", e.Name)
}

// UnknownLocationError reports a context or scope naming an
// undeclared location.
type UnknownLocationError struct {
	Name string
}

func (e UnknownLocationError) Error() string {
	return fmt.Sprintf("location '%s' not found in configuration", e.Name)
}

// CycleError reports a loop of template references. Names holds the
// variables forming the loop, in reference order, starting and ending
// conceptually at Names[0].
type CycleError struct {
	Names []string
}

func (e CycleError) Error() string {
	return "circular dependency detected: " + strings.Join(e.Names, " -> ") + " -> " + e.Names[0]
}

// ValidationError reports a value that does not match its variable's
// validation pattern.
type ValidationError struct {
	Variable string
	Value    string
	Pattern  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("value '%s' for variable '%s' does not match validation regex: %s",
		e.Value, e.Variable, e.Pattern)
}

// SecretScopeError reports an attempt to store a secret at DEFAULT scope.
type SecretScopeError struct {
	Variable string
}

func (e SecretScopeError) Error() string {
	return fmt.Sprintf("variable '%s' is a secret and cannot have a default value; scope it to an environment and/or location", e.Variable)
}

// ProviderMismatchError reports a remote locator whose cloud family does
// not match the family of the document's configured key.
type ProviderMismatchError struct {
	Variable  string
	Prefix    string
	KeyFamily string
}

func (e ProviderMismatchError) Error() string {
	return fmt.Sprintf("variable '%s' uses '%s' with a %s key", e.Variable, e.Prefix, e.KeyFamily)
}

// RemoteFetchError reports a failed remote value lookup.
type RemoteFetchError struct {
	Kind    string
	Locator string
	Err     error
}

func (e RemoteFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s value '%s': %v", e.Kind, e.Locator, e.Err)
}

func (e RemoteFetchError) Unwrap() error { return e.Err }

// DecryptError reports a failed decryption of a stored secret.
type DecryptError struct {
	Variable string
	Err      error
}

func (e DecryptError) Error() string {
	return fmt.Sprintf("error decrypting %s: %v", e.Variable, e.Err)
}

func (e DecryptError) Unwrap() error { return e.Err }
