package document

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	enverrors "github.com/systmms/envars/internal/errors"
)

// The on-disk format, kept stable:
//
//	configuration:
//	  app: myapp
//	  kms_key: arn:aws:kms:...
//	  description_mandatory: false
//	  environments: [dev, prod]
//	  locations:
//	    - main: "123456789012"
//	    - edge:
//	        id: "210987654321"
//	        kms_key: arn:aws:kms:...
//	environment_variables:
//	  DB_URL:
//	    description: Connection string
//	    validation: ^postgres://
//	    default: postgres://localhost/dev
//	    prod:
//	      main: postgres://db.prod/app
//
// Secret ciphertexts carry a !secret tag with literal block style. Inside
// a nested per-environment mapping, the reserved key "default" holds the
// environment-wide value so that ENVIRONMENT and SPECIFIC scopes for the
// same environment can coexist.

const secretTag = "!secret"

// Load parses an envars.yml document. Duplicate mapping keys are an error.
func Load(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, enverrors.ConfigError{
			Field:      "document",
			Message:    "invalid YAML: " + err.Error(),
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	doc := New("", "")
	if root.Kind == 0 || len(root.Content) == 0 {
		return doc, nil
	}

	top, err := mappingEntries(root.Content[0])
	if err != nil {
		return nil, err
	}

	for _, entry := range top {
		switch entry.key {
		case "configuration":
			if err := loadConfiguration(doc, entry.value); err != nil {
				return nil, err
			}
		case "environment_variables":
			if err := loadVariables(doc, entry.value); err != nil {
				return nil, err
			}
		default:
			return nil, enverrors.ConfigError{
				Field:      entry.key,
				Message:    "unknown top-level section",
				Suggestion: "Expected 'configuration' and 'environment_variables'",
			}
		}
	}
	return doc, nil
}

type mapEntry struct {
	key   string
	value *yaml.Node
}

func mappingEntries(node *yaml.Node) ([]mapEntry, error) {
	if node.Kind != yaml.MappingNode {
		return nil, enverrors.ConfigError{
			Field:   "document",
			Message: fmt.Sprintf("expected a mapping at line %d", node.Line),
		}
	}
	seen := map[string]bool{}
	entries := make([]mapEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if seen[key] {
			return nil, enverrors.ConfigError{
				Field:   key,
				Message: fmt.Sprintf("duplicate key at line %d", node.Content[i].Line),
			}
		}
		seen[key] = true
		entries = append(entries, mapEntry{key: key, value: node.Content[i+1]})
	}
	return entries, nil
}

func loadConfiguration(doc *Document, node *yaml.Node) error {
	entries, err := mappingEntries(node)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch e.key {
		case "app":
			doc.App = e.value.Value
		case "kms_key":
			doc.KeyID = e.value.Value
		case "description_mandatory":
			var b bool
			if err := e.value.Decode(&b); err != nil {
				return enverrors.ConfigError{Field: "description_mandatory", Message: "expected a boolean"}
			}
			doc.DescriptionMandatory = b
		case "environments":
			var envs []string
			if err := e.value.Decode(&envs); err != nil {
				return enverrors.ConfigError{Field: "environments", Message: "expected a list of names"}
			}
			for _, env := range envs {
				if err := doc.AddEnvironment(env); err != nil {
					return err
				}
			}
		case "locations":
			if err := loadLocations(doc, e.value); err != nil {
				return err
			}
		default:
			return enverrors.ConfigError{Field: "configuration." + e.key, Message: "unknown configuration key"}
		}
	}
	return nil
}

func loadLocations(doc *Document, node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return enverrors.ConfigError{Field: "locations", Message: "expected a list"}
	}
	for _, item := range node.Content {
		entries, err := mappingEntries(item)
		if err != nil || len(entries) != 1 {
			return enverrors.ConfigError{
				Field:      "locations",
				Message:    "each location must be a single 'name: id' or 'name: {id, kms_key}' entry",
				Suggestion: "Example: '- main: \"123456789012\"'",
			}
		}
		entry := entries[0]
		loc := Location{Name: entry.key}
		if entry.value.Kind == yaml.MappingNode {
			details, err := mappingEntries(entry.value)
			if err != nil {
				return err
			}
			for _, d := range details {
				switch d.key {
				case "id":
					loc.ID = d.value.Value
				case "kms_key":
					loc.KeyID = d.value.Value
				default:
					return enverrors.ConfigError{Field: "locations." + entry.key, Message: "unknown location key: " + d.key}
				}
			}
		} else {
			loc.ID = entry.value.Value
		}
		if err := doc.AddLocation(loc); err != nil {
			return err
		}
	}
	return nil
}

func loadVariables(doc *Document, node *yaml.Node) error {
	vars, err := mappingEntries(node)
	if err != nil {
		return err
	}
	for _, v := range vars {
		if err := loadVariable(doc, v.key, v.value); err != nil {
			return err
		}
	}
	return nil
}

func loadVariable(doc *Document, name string, node *yaml.Node) error {
	entries, err := mappingEntries(node)
	if err != nil {
		return err
	}

	variable := Variable{Name: name}
	for _, e := range entries {
		switch e.key {
		case "description":
			variable.Description = e.value.Value
		case "validation":
			variable.Validation = e.value.Value
		}
	}
	if err := doc.AddVariable(variable); err != nil {
		return err
	}

	for _, e := range entries {
		switch e.key {
		case "description", "validation":
			continue
		case "default":
			if err := addScalarValue(doc, name, DefaultScope(), e.value); err != nil {
				return err
			}
		default:
			if err := loadScopedEntry(doc, name, e.key, e.value); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadScopedEntry handles a key under a variable that names an environment
// or a location, with a scalar value or a nested mapping for SPECIFIC
// scopes (either env→loc or loc→env order).
func loadScopedEntry(doc *Document, variable, key string, node *yaml.Node) error {
	switch {
	case doc.HasEnvironment(key):
		if node.Kind != yaml.MappingNode {
			return addScalarValue(doc, variable, Scope{Kind: ScopeEnvironment, Environment: key}, node)
		}
		nested, err := mappingEntries(node)
		if err != nil {
			return err
		}
		for _, n := range nested {
			if n.value.Kind == yaml.MappingNode {
				return enverrors.ConfigError{
					Field:   variable,
					Message: fmt.Sprintf("invalid nesting under '%s' -> '%s'", key, n.key),
				}
			}
			if n.key == "default" {
				if _, isLoc := doc.LocationByName("default"); !isLoc {
					if err := addScalarValue(doc, variable, Scope{Kind: ScopeEnvironment, Environment: key}, n.value); err != nil {
						return err
					}
					continue
				}
			}
			if _, ok := doc.LocationByName(n.key); !ok {
				return enverrors.UnknownLocationError{Name: n.key}
			}
			scope := Scope{Kind: ScopeSpecific, Environment: key, Location: n.key}
			if err := addScalarValue(doc, variable, scope, n.value); err != nil {
				return err
			}
		}
		return nil

	case hasLocation(doc, key):
		if node.Kind != yaml.MappingNode {
			return addScalarValue(doc, variable, Scope{Kind: ScopeLocation, Location: key}, node)
		}
		nested, err := mappingEntries(node)
		if err != nil {
			return err
		}
		for _, n := range nested {
			if n.value.Kind == yaml.MappingNode {
				return enverrors.ConfigError{
					Field:   variable,
					Message: fmt.Sprintf("invalid nesting under '%s' -> '%s'", key, n.key),
				}
			}
			if !doc.HasEnvironment(n.key) {
				return enverrors.UnknownEnvironmentError{Name: n.key}
			}
			scope := Scope{Kind: ScopeSpecific, Environment: n.key, Location: key}
			if err := addScalarValue(doc, variable, scope, n.value); err != nil {
				return err
			}
		}
		return nil

	default:
		return enverrors.ConfigError{
			Field:      variable,
			Value:      key,
			Message:    "not a valid environment or location",
			Suggestion: "Declare it under configuration.environments or configuration.locations",
		}
	}
}

func hasLocation(doc *Document, name string) bool {
	_, ok := doc.LocationByName(name)
	return ok
}

func addScalarValue(doc *Document, variable string, scope Scope, node *yaml.Node) error {
	sv := ScopedValue{
		Variable: variable,
		Scope:    scope,
		Value:    node.Value,
		Secret:   node.Tag == secretTag,
	}
	if sv.Secret {
		sv.KeyID = doc.KeyFor(scope)
	}
	return doc.AddValue(sv)
}

// Marshal renders the document deterministically: sorted environments,
// locations, and variables, two-space indentation, secrets as !secret
// literal blocks.
func Marshal(doc *Document) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	cfg := &yaml.Node{Kind: yaml.MappingNode}
	appendScalarEntry(cfg, "app", doc.App)
	if doc.KeyID != "" {
		appendScalarEntry(cfg, "kms_key", doc.KeyID)
	}
	appendEntry(cfg, "description_mandatory", boolNode(doc.DescriptionMandatory))

	envs := append([]string(nil), doc.Environments...)
	sort.Strings(envs)
	envSeq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, e := range envs {
		envSeq.Content = append(envSeq.Content, strNode(e))
	}
	appendEntry(cfg, "environments", envSeq)

	locs := append([]Location(nil), doc.Locations...)
	sort.Slice(locs, func(i, j int) bool { return locs[i].Name < locs[j].Name })
	locSeq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, l := range locs {
		item := &yaml.Node{Kind: yaml.MappingNode}
		if l.KeyID != "" {
			details := &yaml.Node{Kind: yaml.MappingNode}
			appendScalarEntry(details, "id", l.ID)
			appendScalarEntry(details, "kms_key", l.KeyID)
			appendEntry(item, l.Name, details)
		} else {
			appendScalarEntry(item, l.Name, l.ID)
		}
		locSeq.Content = append(locSeq.Content, item)
	}
	appendEntry(cfg, "locations", locSeq)
	appendEntry(root, "configuration", cfg)

	vars := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range doc.VariableNames() {
		appendEntry(vars, name, marshalVariable(doc, name))
	}
	appendEntry(root, "environment_variables", vars)

	return encodeNode(root)
}

func marshalVariable(doc *Document, name string) *yaml.Node {
	v := doc.Variables[name]
	node := &yaml.Node{Kind: yaml.MappingNode}
	if v.Description != "" {
		appendScalarEntry(node, "description", v.Description)
	}
	if v.Validation != "" {
		appendScalarEntry(node, "validation", v.Validation)
	}

	values := doc.ValuesOf(name)
	var envNames, locNames []string
	envScoped := map[string]ScopedValue{}
	locScoped := map[string]ScopedValue{}
	specific := map[string]map[string]ScopedValue{}

	for _, sv := range values {
		switch sv.Scope.Kind {
		case ScopeDefault:
			appendEntry(node, "default", valueNode(sv))
		case ScopeEnvironment:
			envScoped[sv.Scope.Environment] = sv
			envNames = appendOnce(envNames, sv.Scope.Environment)
		case ScopeLocation:
			locScoped[sv.Scope.Location] = sv
			locNames = appendOnce(locNames, sv.Scope.Location)
		case ScopeSpecific:
			if specific[sv.Scope.Environment] == nil {
				specific[sv.Scope.Environment] = map[string]ScopedValue{}
			}
			specific[sv.Scope.Environment][sv.Scope.Location] = sv
			envNames = appendOnce(envNames, sv.Scope.Environment)
		}
	}

	sort.Strings(envNames)
	sort.Strings(locNames)

	for _, env := range envNames {
		perLoc, hasSpecific := specific[env]
		envValue, hasEnvValue := envScoped[env]
		if !hasSpecific {
			appendEntry(node, env, valueNode(envValue))
			continue
		}
		nested := &yaml.Node{Kind: yaml.MappingNode}
		if hasEnvValue {
			appendEntry(nested, "default", valueNode(envValue))
		}
		var sublocs []string
		for loc := range perLoc {
			sublocs = append(sublocs, loc)
		}
		sort.Strings(sublocs)
		for _, loc := range sublocs {
			appendEntry(nested, loc, valueNode(perLoc[loc]))
		}
		appendEntry(node, env, nested)
	}

	for _, loc := range locNames {
		appendEntry(node, loc, valueNode(locScoped[loc]))
	}

	return node
}

func appendOnce(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

func valueNode(sv ScopedValue) *yaml.Node {
	n := strNode(sv.Value)
	if sv.Secret {
		n.Tag = secretTag
		n.Style = yaml.LiteralStyle
	}
	return n
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func boolNode(b bool) *yaml.Node {
	v := "false"
	if b {
		v = "true"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v}
}

func appendScalarEntry(m *yaml.Node, key, value string) {
	appendEntry(m, key, strNode(value))
}

func appendEntry(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, strNode(key), value)
}

func encodeNode(root *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
