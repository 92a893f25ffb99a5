// Package document holds the in-memory model of an envars.yml file: the
// declared environments and locations, the variables, and their scoped
// values. The document is the single owning root; resolution components
// operate on borrowed read-only references to it.
//
// All invariants are enforced at construction and mutation time, never at
// resolution time. Mutations follow build-then-swap: callers Clone the
// document, apply changes to the clone, and make the clone durable only
// after every check passes.
package document

import (
	"fmt"
	"sort"
	"strings"

	enverrors "github.com/systmms/envars/internal/errors"
)

// Variable declares a configuration variable. The uppercase name is its
// identity; values live in the document's value list.
type Variable struct {
	Name        string
	Description string
	Validation  string
}

// Location is a deployment target (an AWS account, a GCP project, ...).
// ID carries the cloud-side identifier used for ambient detection; KeyID,
// when set, overrides the document-level key for values bound here.
type Location struct {
	Name  string
	ID    string
	KeyID string
}

// ScopedValue is one value of a variable under one scope. For secret
// values, Value holds the base64 ciphertext blob and KeyID records the
// key it was encrypted under.
type ScopedValue struct {
	Variable string
	Scope    Scope
	Value    string
	Secret   bool
	KeyID    string
}

// Document is the root of the model.
type Document struct {
	App                  string
	KeyID                string
	DescriptionMandatory bool
	Environments         []string
	Locations            []Location
	Variables            map[string]*Variable
	Values               []ScopedValue
}

// New returns an empty document.
func New(app, keyID string) *Document {
	return &Document{
		App:       app,
		KeyID:     keyID,
		Variables: map[string]*Variable{},
	}
}

// HasEnvironment reports whether name is a declared environment.
func (d *Document) HasEnvironment(name string) bool {
	for _, e := range d.Environments {
		if e == name {
			return true
		}
	}
	return false
}

// LocationByName returns the declared location with the given name.
func (d *Document) LocationByName(name string) (Location, bool) {
	for _, l := range d.Locations {
		if l.Name == name {
			return l, true
		}
	}
	return Location{}, false
}

// KeyFor returns the key identifier in effect for a scope: the location's
// override when the scope binds a location that has one, otherwise the
// document-level key.
func (d *Document) KeyFor(s Scope) string {
	if s.Location != "" {
		if loc, ok := d.LocationByName(s.Location); ok && loc.KeyID != "" {
			return loc.KeyID
		}
	}
	return d.KeyID
}

// AddEnvironment declares an environment.
func (d *Document) AddEnvironment(name string) error {
	if d.HasEnvironment(name) {
		return enverrors.ConfigError{
			Field:   "environments",
			Value:   name,
			Message: "environment already exists",
		}
	}
	d.Environments = append(d.Environments, name)
	return nil
}

// AddLocation declares a location.
func (d *Document) AddLocation(loc Location) error {
	if _, exists := d.LocationByName(loc.Name); exists {
		return enverrors.ConfigError{
			Field:   "locations",
			Value:   loc.Name,
			Message: "location already exists",
		}
	}
	d.Locations = append(d.Locations, loc)
	return nil
}

// RemoveEnvironment drops a declared environment. It fails while any
// scoped value still binds the environment, naming the variables that do.
func (d *Document) RemoveEnvironment(name string) error {
	if !d.HasEnvironment(name) {
		return enverrors.UnknownEnvironmentError{Name: name}
	}
	users := d.variablesBinding(func(sv ScopedValue) bool { return sv.Scope.Environment == name })
	if len(users) > 0 {
		return enverrors.ConfigError{
			Field:      "environments",
			Value:      name,
			Message:    fmt.Sprintf("environment is in use by: %s", strings.Join(users, ", ")),
			Suggestion: "remove those values first",
		}
	}
	for i, e := range d.Environments {
		if e == name {
			d.Environments = append(d.Environments[:i], d.Environments[i+1:]...)
			break
		}
	}
	return nil
}

// RemoveLocation drops a declared location under the same in-use rule as
// RemoveEnvironment.
func (d *Document) RemoveLocation(name string) error {
	if _, ok := d.LocationByName(name); !ok {
		return enverrors.UnknownLocationError{Name: name}
	}
	users := d.variablesBinding(func(sv ScopedValue) bool { return sv.Scope.Location == name })
	if len(users) > 0 {
		return enverrors.ConfigError{
			Field:      "locations",
			Value:      name,
			Message:    fmt.Sprintf("location is in use by: %s", strings.Join(users, ", ")),
			Suggestion: "remove those values first",
		}
	}
	for i, l := range d.Locations {
		if l.Name == name {
			d.Locations = append(d.Locations[:i], d.Locations[i+1:]...)
			break
		}
	}
	return nil
}

// variablesBinding returns the sorted names of variables with at least
// one value matching the predicate.
func (d *Document) variablesBinding(match func(ScopedValue) bool) []string {
	seen := map[string]bool{}
	var names []string
	for _, sv := range d.Values {
		if match(sv) && !seen[sv.Variable] {
			seen[sv.Variable] = true
			names = append(names, sv.Variable)
		}
	}
	sort.Strings(names)
	return names
}

// AddVariable declares a variable. Names must be uppercase and unique.
func (d *Document) AddVariable(v Variable) error {
	if strings.ToUpper(v.Name) != v.Name {
		return enverrors.ConfigError{
			Field:      "variable",
			Value:      v.Name,
			Message:    "variable names must be uppercase",
			Suggestion: fmt.Sprintf("Rename it to '%s'", strings.ToUpper(v.Name)),
		}
	}
	if _, exists := d.Variables[v.Name]; exists {
		return enverrors.ConfigError{
			Field:   "variable",
			Value:   v.Name,
			Message: "variable already exists",
		}
	}
	if d.Variables == nil {
		d.Variables = map[string]*Variable{}
	}
	d.Variables[v.Name] = &v
	return nil
}

// VariableNames returns the declared variable names in sorted order.
func (d *Document) VariableNames() []string {
	names := make([]string, 0, len(d.Variables))
	for name := range d.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValuesOf returns all scoped values of one variable, in document order.
func (d *Document) ValuesOf(name string) []ScopedValue {
	var out []ScopedValue
	for _, sv := range d.Values {
		if sv.Variable == name {
			out = append(out, sv)
		}
	}
	return out
}

// checkValue enforces every structural invariant a scoped value must
// satisfy before it may enter the document.
func (d *Document) checkValue(sv ScopedValue) error {
	if err := sv.Scope.validate(); err != nil {
		return enverrors.ConfigError{Field: "scope", Value: sv.Variable, Message: err.Error()}
	}
	if _, ok := d.Variables[sv.Variable]; !ok {
		return enverrors.UnknownVariableError{Name: sv.Variable}
	}
	if sv.Scope.Environment != "" && !d.HasEnvironment(sv.Scope.Environment) {
		return enverrors.UnknownEnvironmentError{Name: sv.Scope.Environment}
	}
	if sv.Scope.Location != "" {
		if _, ok := d.LocationByName(sv.Scope.Location); !ok {
			return enverrors.UnknownLocationError{Name: sv.Scope.Location}
		}
	}
	if sv.Secret && sv.Scope.Kind == ScopeDefault {
		return enverrors.SecretScopeError{Variable: sv.Variable}
	}
	return nil
}

// AddValue appends a scoped value, rejecting a second value at the same
// tier for the same (environment, location) pair.
func (d *Document) AddValue(sv ScopedValue) error {
	if err := d.checkValue(sv); err != nil {
		return err
	}
	for _, existing := range d.Values {
		if existing.Variable == sv.Variable && existing.Scope.sameTier(sv.Scope) {
			return enverrors.ConfigError{
				Field:   "value",
				Value:   sv.Variable,
				Message: fmt.Sprintf("a value already exists at scope %s", sv.Scope),
			}
		}
	}
	d.Values = append(d.Values, sv)
	return nil
}

// ReplaceValue inserts a scoped value, discarding any existing value at
// the same tier. The replaced value is only dropped after the new one
// passes all structural checks.
func (d *Document) ReplaceValue(sv ScopedValue) error {
	if err := d.checkValue(sv); err != nil {
		return err
	}
	for i, existing := range d.Values {
		if existing.Variable == sv.Variable && existing.Scope.sameTier(sv.Scope) {
			d.Values[i] = sv
			return nil
		}
	}
	d.Values = append(d.Values, sv)
	return nil
}

// Clone returns a deep copy. Mutating operations work on a clone and swap
// it in only once fully validated, so a half-applied change is never
// observable.
func (d *Document) Clone() *Document {
	out := &Document{
		App:                  d.App,
		KeyID:                d.KeyID,
		DescriptionMandatory: d.DescriptionMandatory,
		Environments:         append([]string(nil), d.Environments...),
		Locations:            append([]Location(nil), d.Locations...),
		Variables:            make(map[string]*Variable, len(d.Variables)),
		Values:               append([]ScopedValue(nil), d.Values...),
	}
	for name, v := range d.Variables {
		copied := *v
		out.Variables[name] = &copied
	}
	return out
}

// ResolveContext validates a resolution request against the declared
// environments and locations.
func (d *Document) ResolveContext(env, loc string) (Context, error) {
	if !d.HasEnvironment(env) {
		return Context{}, enverrors.UnknownEnvironmentError{Name: env}
	}
	if loc != "" {
		if _, ok := d.LocationByName(loc); !ok {
			return Context{}, enverrors.UnknownLocationError{Name: loc}
		}
	}
	return Context{Environment: env, Location: loc}, nil
}
