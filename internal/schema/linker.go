package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"
)

// link validates relation targets and fills in defaults:
// table is the plural snake case of the entity name, primary key is "id",
// belongs_to fk is <relation>_id, has_one/has_many fk is <owner>_id and the
// belongs_to pk is the target's primary key.
func link(entities map[string]*Entity) error {
	for _, e := range entities {
		if e.Table == "" {
			e.Table = inflect.Pluralize(inflect.Underscore(e.Name))
		}
		if e.PrimaryKey == "" {
			e.PrimaryKey = "id"
		}
	}

	for name, e := range entities {
		for relName, rel := range e.Relations {
			if rel == nil {
				return fmt.Errorf("relation '%s.%s' is empty", name, relName)
			}
			target, ok := entities[rel.Model]
			if !ok {
				return fmt.Errorf("invalid relation: model '%s' not found in '%s.%s'", rel.Model, name, relName)
			}
			switch rel.Type {
			case "", "belongs_to":
				rel.Type = "belongs_to"
				if rel.FK == "" {
					rel.FK = inflect.Underscore(relName) + "_id"
				}
				if rel.PK == "" {
					rel.PK = target.PrimaryKey
				}
			case "has_one", "has_many":
				if rel.FK == "" {
					rel.FK = inflect.Underscore(name) + "_id"
				}
				if rel.PK == "" {
					rel.PK = e.PrimaryKey
				}
			default:
				return fmt.Errorf("relation '%s.%s' must have valid type (has_many, has_one, belongs_to), got '%s'", name, relName, rel.Type)
			}
		}
	}
	return nil
}
