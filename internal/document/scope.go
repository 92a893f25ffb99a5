package document

import "fmt"

// ScopeKind is the breadth of applicability of a scoped value.
type ScopeKind int

const (
	// ScopeDefault applies in every context.
	ScopeDefault ScopeKind = iota
	// ScopeEnvironment applies to one environment in any location.
	ScopeEnvironment
	// ScopeLocation applies to one location in any environment.
	ScopeLocation
	// ScopeSpecific applies to one (environment, location) pair.
	ScopeSpecific
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeDefault:
		return "DEFAULT"
	case ScopeEnvironment:
		return "ENVIRONMENT"
	case ScopeLocation:
		return "LOCATION"
	case ScopeSpecific:
		return "SPECIFIC"
	default:
		return fmt.Sprintf("ScopeKind(%d)", int(k))
	}
}

// Scope pairs a kind with the environment/location names it binds to.
// The kind dictates which references must be set: DEFAULT neither,
// ENVIRONMENT only Environment, LOCATION only Location, SPECIFIC both.
type Scope struct {
	Kind        ScopeKind
	Environment string
	Location    string
}

// DefaultScope returns the universal scope.
func DefaultScope() Scope { return Scope{Kind: ScopeDefault} }

// ScopeFor derives a scope from optional environment and location names,
// mirroring how the CLI flags map onto scope kinds.
func ScopeFor(env, loc string) Scope {
	switch {
	case env != "" && loc != "":
		return Scope{Kind: ScopeSpecific, Environment: env, Location: loc}
	case env != "":
		return Scope{Kind: ScopeEnvironment, Environment: env}
	case loc != "":
		return Scope{Kind: ScopeLocation, Location: loc}
	default:
		return DefaultScope()
	}
}

// validate checks kind/reference coherence.
func (s Scope) validate() error {
	switch s.Kind {
	case ScopeDefault:
		if s.Environment != "" || s.Location != "" {
			return fmt.Errorf("DEFAULT scope must not name an environment or location")
		}
	case ScopeEnvironment:
		if s.Environment == "" || s.Location != "" {
			return fmt.Errorf("ENVIRONMENT scope requires an environment and no location")
		}
	case ScopeLocation:
		if s.Location == "" || s.Environment != "" {
			return fmt.Errorf("LOCATION scope requires a location and no environment")
		}
	case ScopeSpecific:
		if s.Environment == "" || s.Location == "" {
			return fmt.Errorf("SPECIFIC scope requires both an environment and a location")
		}
	default:
		return fmt.Errorf("invalid scope kind %d", int(s.Kind))
	}
	return nil
}

// sameTier reports whether two scopes occupy the same precedence slot, the
// write-time uniqueness rule: at most one value per variable per tier per
// (environment, location) pair.
func (s Scope) sameTier(o Scope) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case ScopeDefault:
		return true
	case ScopeEnvironment:
		return s.Environment == o.Environment
	case ScopeLocation:
		return s.Location == o.Location
	case ScopeSpecific:
		return s.Environment == o.Environment && s.Location == o.Location
	default:
		return false
	}
}

// String renders the scope for error messages, e.g. "SPECIFIC(prod, main)".
func (s Scope) String() string {
	switch s.Kind {
	case ScopeEnvironment:
		return fmt.Sprintf("ENVIRONMENT(%s)", s.Environment)
	case ScopeLocation:
		return fmt.Sprintf("LOCATION(%s)", s.Location)
	case ScopeSpecific:
		return fmt.Sprintf("SPECIFIC(%s, %s)", s.Environment, s.Location)
	default:
		return s.Kind.String()
	}
}

// Context is one resolution request: an environment plus an optional
// location. It is never persisted.
type Context struct {
	Environment string
	Location    string
}

func (c Context) String() string {
	if c.Location == "" {
		return c.Environment
	}
	return c.Environment + "/" + c.Location
}
