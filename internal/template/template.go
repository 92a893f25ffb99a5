// Package template implements the placeholder grammar used inside stored
// variable values.
//
// Two placeholder forms are recognized:
//
//	{{ NAME }}                       substitutes another variable's value
//	{{ env.get('NAME') }}            reads the ambient process environment
//	{{ env.get('NAME', 'fallback') }}
//
// Variable references participate in the dependency graph built by the
// resolution engine; env placeholders never do, since they resolve without
// reference to other variables. Anything between braces that matches
// neither form is left in the output verbatim.
package template

import (
	"regexp"
	"sort"
)

// LookupFunc returns the value for a name and whether it was found.
type LookupFunc func(name string) (string, bool)

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
	refRe         = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	envGetRe      = regexp.MustCompile(`^env\.get\(\s*['"]([^'"]+)['"]\s*(?:,\s*['"]([^'"]*)['"]\s*)?\)$`)
)

// Refs returns the sorted set of variable names referenced by raw.
func Refs(raw string) []string {
	seen := map[string]struct{}{}
	for _, m := range placeholderRe.FindAllStringSubmatch(raw, -1) {
		inner := m[1]
		if refRe.MatchString(inner) {
			seen[inner] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasPlaceholders reports whether raw contains any recognized placeholder.
func HasPlaceholders(raw string) bool {
	for _, m := range placeholderRe.FindAllStringSubmatch(raw, -1) {
		if refRe.MatchString(m[1]) || envGetRe.MatchString(m[1]) {
			return true
		}
	}
	return false
}

// Render substitutes placeholders in raw. Variable references are answered
// by vars; env placeholders by env, falling back to the literal given in
// the placeholder itself. A variable reference with no value renders as
// the empty string unless passthroughUnset is set, in which case the
// placeholder survives verbatim.
func Render(raw string, vars, env LookupFunc, passthroughUnset bool) string {
	return placeholderRe.ReplaceAllStringFunc(raw, func(match string) string {
		inner := placeholderRe.FindStringSubmatch(match)[1]

		if refRe.MatchString(inner) {
			if v, ok := vars(inner); ok {
				return v
			}
			if passthroughUnset {
				return match
			}
			return ""
		}

		if m := envGetRe.FindStringSubmatch(inner); m != nil {
			if v, ok := env(m[1]); ok {
				return v
			}
			return m[2]
		}

		// Unrecognized placeholder syntax passes through untouched.
		return match
	})
}
