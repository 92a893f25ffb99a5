package document

import (
	"fmt"
	"strconv"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	enverrors "github.com/systmms/envars/internal/errors"
)

// documentSchema is the structural contract for envars.yml, checked before
// semantic validation so that shape errors surface with a path instead of
// a parser panic deeper in.
const documentSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "configuration": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "app": {"type": "string"},
        "kms_key": {"type": "string"},
        "description_mandatory": {"type": "boolean"},
        "environments": {
          "type": "array",
          "items": {"type": "string", "minLength": 1}
        },
        "locations": {
          "type": "array",
          "items": {
            "type": "object",
            "minProperties": 1,
            "maxProperties": 1,
            "additionalProperties": {
              "oneOf": [
                {"type": "string"},
                {
                  "type": "object",
                  "additionalProperties": false,
                  "properties": {
                    "id": {"type": "string"},
                    "kms_key": {"type": "string"}
                  },
                  "required": ["id"]
                }
              ]
            }
          }
        }
      }
    },
    "environment_variables": {
      "type": "object",
      "propertyNames": {"pattern": "^[A-Z][A-Z0-9_]*$"},
      "additionalProperties": {"type": "object"}
    }
  }
}`

// CheckSchema validates raw envars.yml bytes against the document schema,
// returning one message per violation.
func CheckSchema(raw []byte) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, enverrors.ConfigError{
			Field:   "document",
			Message: "invalid YAML: " + err.Error(),
		}
	}
	if node.Kind == 0 || len(node.Content) == 0 {
		return nil, nil
	}

	value, err := nodeToValue(node.Content[0])
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewGoLoader(value),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return problems, nil
}

// nodeToValue converts a YAML node tree into plain Go values for the
// schema validator. Scalars with custom tags (the !secret ciphertexts)
// are treated as strings.
func nodeToValue(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!bool":
			return strconv.ParseBool(node.Value)
		case "!!int":
			return strconv.ParseInt(node.Value, 10, 64)
		case "!!float":
			return strconv.ParseFloat(node.Value, 64)
		case "!!null":
			return nil, nil
		default:
			return node.Value, nil
		}
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := nodeToValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]interface{}, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := nodeToValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[node.Content[i].Value] = v
		}
		return out, nil
	case yaml.AliasNode:
		return nodeToValue(node.Alias)
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d at line %d", node.Kind, node.Line)
	}
}
