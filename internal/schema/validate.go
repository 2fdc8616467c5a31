package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

var allowedEntityKeys = map[string]bool{
	"table":       true,
	"primary_key": true,
	"casts":       true,
	"relations":   true,
	"searchable":  true,
}

var allowedRelationKeys = map[string]bool{
	"model": true,
	"type":  true,
	"fk":    true,
	"pk":    true,
}

var allowedRelationTypes = map[string]bool{
	"":           true,
	"belongs_to": true,
	"has_one":    true,
	"has_many":   true,
}

var allowedCastValues = map[string]bool{
	"bool":     true,
	"boolean":  true,
	"int":      true,
	"integer":  true,
	"float":    true,
	"double":   true,
	"real":     true,
	"decimal":  true,
	"string":   true,
	"date":     true,
	"datetime": true,
	"time":     true,
	"uuid":     true,
	"json":     true,
}

// validateNode walks a decoded document and rejects unknown keys and values
// before it is decoded into an Entity.
func validateNode(node *yaml.Node, context string) error {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := validateNode(child, "entity"); err != nil {
				return err
			}
		}

	case yaml.MappingNode:
		var allowed map[string]bool
		switch context {
		case "entity":
			allowed = allowedEntityKeys
		case "relation":
			allowed = allowedRelationKeys
		}

		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			val := node.Content[i+1]

			if allowed != nil && !allowed[key] {
				return fmt.Errorf("line %d: unknown key '%s' in %s", node.Content[i].Line, key, context)
			}
			if context == "relation" && key == "type" && !allowedRelationTypes[val.Value] {
				return fmt.Errorf("line %d: unknown relation type '%s'", val.Line, val.Value)
			}
			if context == "casts" && !allowedCastValues[val.Value] {
				return fmt.Errorf("line %d: unknown cast '%s' for column '%s'", val.Line, val.Value, key)
			}

			next := ""
			switch {
			case context == "entity" && key == "relations":
				next = "relations-map"
			case context == "relations-map":
				next = "relation"
			case context == "entity" && key == "casts":
				next = "casts"
			case context == "entity" && key == "searchable":
				next = "searchable"
			default:
				next = context + "-value"
			}
			if err := validateNode(val, next); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		for _, item := range node.Content {
			if err := validateNode(item, context+"-item"); err != nil {
				return err
			}
		}
	}
	return nil
}
