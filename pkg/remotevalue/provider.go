// Package remotevalue defines the contract between the resolution engine
// and external value stores addressed by prefixed locator strings.
//
// The recognized locator prefixes form a closed, versioned set. Adding a
// new source means adding a new Kind and Provider implementation; the
// engine's resolution algorithm never changes. Prefix inspection happens
// after template rendering, since a template reference may construct part
// of a locator (for example a secret name interpolated into a resource
// path).
package remotevalue

import (
	"context"
	"strings"

	"github.com/systmms/envars/pkg/secretbackend"
)

// Kind identifies one of the recognized remote value sources.
type Kind string

const (
	// ParameterStore fetches from AWS SSM Parameter Store.
	ParameterStore Kind = "parameter_store"

	// StackExport fetches from AWS CloudFormation stack exports.
	StackExport Kind = "cloudformation_export"

	// SecretManager fetches from Google Cloud Secret Manager.
	SecretManager Kind = "gcp_secret_manager"
)

// Kinds lists the closed set of recognized remote value kinds.
func Kinds() []Kind {
	return []Kind{ParameterStore, StackExport, SecretManager}
}

// Prefix returns the literal prefix that marks a rendered value as a
// locator of this kind.
func (k Kind) Prefix() string { return string(k) + ":" }

// Family returns the cloud family the kind belongs to, used for the
// static consistency check against the document's configured key.
func (k Kind) Family() secretbackend.Family {
	switch k {
	case ParameterStore, StackExport:
		return secretbackend.FamilyAWS
	case SecretManager:
		return secretbackend.FamilyGCP
	default:
		return secretbackend.FamilyUnknown
	}
}

// SplitLocator inspects a rendered value for a recognized prefix. When one
// matches it returns the kind, the remainder of the string, and true.
func SplitLocator(rendered string) (Kind, string, bool) {
	for _, k := range Kinds() {
		if strings.HasPrefix(rendered, k.Prefix()) {
			return k, strings.TrimPrefix(rendered, k.Prefix()), true
		}
	}
	return "", "", false
}

// Provider fetches plaintext values from one remote source.
//
// Implementations may make network calls and must report failures through
// the typed errors in this package (NotFoundError, AccessDeniedError,
// TransportError) so the engine can tell the caller which variable and
// locator failed, and why.
type Provider interface {
	// Kind returns the locator kind this provider serves.
	Kind() Kind

	// Fetch retrieves the plaintext value for a locator (the rendered
	// string with the kind prefix already stripped).
	Fetch(ctx context.Context, locator string) (string, error)
}

// NotFoundError reports a locator that names no value in the remote store.
type NotFoundError struct {
	Kind    Kind
	Locator string
}

func (e NotFoundError) Error() string {
	return string(e.Kind) + " value not found: " + e.Locator
}

// AccessDeniedError reports missing permissions for a locator.
type AccessDeniedError struct {
	Kind    Kind
	Locator string
	Message string
}

func (e AccessDeniedError) Error() string {
	msg := "access denied to " + string(e.Kind) + " value: " + e.Locator
	if e.Message != "" {
		msg += " (" + e.Message + ")"
	}
	return msg
}

// TransportError reports a network or service failure distinct from the
// value being missing or forbidden.
type TransportError struct {
	Kind Kind
	Err  error
}

func (e TransportError) Error() string {
	return string(e.Kind) + " request failed: " + e.Err.Error()
}

func (e TransportError) Unwrap() error { return e.Err }
