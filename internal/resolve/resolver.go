// Package resolve implements scope resolution and the template resolution
// engine: given a document snapshot and a context, it picks the applicable
// value of every variable, decrypts secrets, expands template references
// in dependency order, and dispatches remote locators to their providers.
package resolve

import (
	"github.com/systmms/envars/internal/document"
)

// Raw returns the single applicable stored value for a variable in a
// context, following the fixed precedence order: SPECIFIC beats
// ENVIRONMENT beats LOCATION beats DEFAULT. A variable with no matching
// entry is unset, not an error; the second return is false.
//
// Tier uniqueness is a write-time invariant, so the first match within a
// tier is the only one.
func Raw(doc *document.Document, name string, ctx document.Context) (document.ScopedValue, bool) {
	values := doc.ValuesOf(name)

	if ctx.Environment != "" && ctx.Location != "" {
		for _, sv := range values {
			if sv.Scope.Kind == document.ScopeSpecific &&
				sv.Scope.Environment == ctx.Environment &&
				sv.Scope.Location == ctx.Location {
				return sv, true
			}
		}
	}
	if ctx.Environment != "" {
		for _, sv := range values {
			if sv.Scope.Kind == document.ScopeEnvironment && sv.Scope.Environment == ctx.Environment {
				return sv, true
			}
		}
	}
	if ctx.Location != "" {
		for _, sv := range values {
			if sv.Scope.Kind == document.ScopeLocation && sv.Scope.Location == ctx.Location {
				return sv, true
			}
		}
	}
	for _, sv := range values {
		if sv.Scope.Kind == document.ScopeDefault {
			return sv, true
		}
	}
	return document.ScopedValue{}, false
}
