// Package schema loads entity definitions and serves them to the compiler.
package schema

import (
	"sort"

	"RequestCriteria/internal/criteria"
)

// Registry is the linked, read-only set of entities.
type Registry struct {
	entities map[string]*Entity
}

// InitRegistry loads and links every definition in dir.
func InitRegistry(dir string) (*Registry, error) {
	entities, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewRegistry(entities)
}

// NewRegistry links entities. The map is owned by the registry afterwards.
func NewRegistry(entities map[string]*Entity) (*Registry, error) {
	if err := link(entities); err != nil {
		return nil, err
	}
	return &Registry{entities: entities}, nil
}

// Names returns the entity names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definition returns the raw definition of an entity.
func (r *Registry) Definition(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

func (r *Registry) Entity(name string) (criteria.EntityMetadata, bool) {
	e, ok := r.entities[name]
	if !ok {
		return criteria.EntityMetadata{}, false
	}
	return criteria.EntityMetadata{
		Name:       e.Name,
		Table:      e.Table,
		PrimaryKey: e.PrimaryKey,
		Casts:      e.Casts,
	}, true
}

func (r *Registry) Relation(entity, name string) (criteria.RelationMetadata, bool) {
	e, ok := r.entities[entity]
	if !ok {
		return criteria.RelationMetadata{}, false
	}
	rel, ok := e.Relations[name]
	if !ok {
		return criteria.RelationMetadata{}, false
	}
	return criteria.RelationMetadata{
		Name:             name,
		Target:           rel.Model,
		JoinKey:          rel.FK,
		TargetPrimaryKey: rel.PK,
		Kind:             criteria.RelationKind(rel.Type),
	}, true
}

// Searchable returns the searchable fields declared for an entity.
func (r *Registry) Searchable(entity string) criteria.SearchFieldSpec {
	e, ok := r.entities[entity]
	if !ok {
		return nil
	}
	spec := make(criteria.SearchFieldSpec, 0, len(e.Searchable))
	for _, f := range e.Searchable {
		path := criteria.ParsePath(f.Field)
		if len(path) == 0 {
			continue
		}
		spec = append(spec, criteria.SearchField{Path: path, Mode: criteria.ParseSearchMode(f.Mode)})
	}
	return spec
}
