package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entity is one entity definition, read from <Name>.yml.
type Entity struct {
	Name       string               `yaml:"-" json:"name"`
	Table      string               `yaml:"table" json:"table"`
	PrimaryKey string               `yaml:"primary_key" json:"primary_key"`
	Casts      map[string]string    `yaml:"casts" json:"casts,omitempty"`
	Relations  map[string]*Relation `yaml:"relations" json:"relations,omitempty"`
	Searchable SearchableFields     `yaml:"searchable" json:"searchable,omitempty"`
}

// Relation is a named relation from the owning entity to Model.
type Relation struct {
	Model string `yaml:"model" json:"model"`
	Type  string `yaml:"type" json:"type"` // belongs_to (default), has_one, has_many
	FK    string `yaml:"fk" json:"fk"`     // belongs_to: on the owner; has_*: on the target
	PK    string `yaml:"pk" json:"pk"`     // belongs_to: target key the fk points at
}

// SearchableField is one entry of the searchable list.
type SearchableField struct {
	Field string `json:"field"`
	Mode  string `json:"mode,omitempty"`
}

// SearchableFields keeps declaration order. In YAML it is either a mapping
// field: mode, or a list whose items are a field name or a one-key mapping.
type SearchableFields []SearchableField

func (s *SearchableFields) UnmarshalYAML(node *yaml.Node) error {
	var out SearchableFields
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, SearchableField{Field: node.Content[i].Value, Mode: node.Content[i+1].Value})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				out = append(out, SearchableField{Field: item.Value})
			case yaml.MappingNode:
				if len(item.Content) != 2 {
					return fmt.Errorf("line %d: searchable entry must have exactly one field", item.Line)
				}
				out = append(out, SearchableField{Field: item.Content[0].Value, Mode: item.Content[1].Value})
			default:
				return fmt.Errorf("line %d: unsupported searchable entry", item.Line)
			}
		}
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("line %d: searchable must be a mapping or a list", node.Line)
		}
	default:
		return fmt.Errorf("line %d: searchable must be a mapping or a list", node.Line)
	}
	*s = out
	return nil
}
