package criteria

import (
	"fmt"
	"regexp"
)

// identifier matches the column and relation names allowed in a path. They
// are written into SQL text unquoted.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ResolvedRelation is where a relation path ends up.
type ResolvedRelation struct {
	Table  string
	Entity EntityMetadata
	Joins  []Join // joins the path needs that the plan did not have yet
}

// RelationResolver walks relation paths against a Schema.
type RelationResolver struct {
	schema Schema
}

func NewRelationResolver(schema Schema) *RelationResolver {
	return &RelationResolver{schema: schema}
}

// Resolve walks relations from the base entity of cc. Joins are committed to
// cc only when every segment resolves, so a failing path leaves no partial
// join behind. An empty path returns the base entity.
func (r *RelationResolver) Resolve(cc *CompilationContext, relations []string) (ResolvedRelation, error) {
	res, err := r.walk(cc, relations)
	if err != nil {
		return ResolvedRelation{}, err
	}
	cc.commit(res.Joins)
	return res, nil
}

// walk resolves relations without touching the join plan.
func (r *RelationResolver) walk(cc *CompilationContext, relations []string) (ResolvedRelation, error) {
	current := cc.base
	if len(relations) == 0 {
		return ResolvedRelation{Table: current.Table, Entity: current}, nil
	}

	var pending []Join
	seen := map[string]struct{}{}
	for _, name := range relations {
		rel, ok := r.schema.Relation(current.Name, name)
		if !ok {
			return ResolvedRelation{}, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, current.Name, name)
		}
		target, ok := r.schema.Entity(rel.Target)
		if !ok {
			return ResolvedRelation{}, fmt.Errorf("%w: %s.%s targets unknown entity %s", ErrUnknownRelation, current.Name, name, rel.Target)
		}

		_, pendingAlready := seen[target.Table]
		if !cc.hasJoined(target.Table) && !pendingAlready {
			pending = append(pending, joinFor(current, rel, target))
			seen[target.Table] = struct{}{}
		}
		current = target
	}

	return ResolvedRelation{Table: current.Table, Entity: current, Joins: pending}, nil
}

func joinFor(owner EntityMetadata, rel RelationMetadata, target EntityMetadata) Join {
	switch rel.Kind {
	case HasOne, HasMany:
		return Join{
			LeftTable:   owner.Table,
			LeftColumn:  owner.PK(),
			RightTable:  target.Table,
			RightColumn: rel.JoinKey,
			Fanout:      true,
		}
	}
	return Join{
		LeftTable:   owner.Table,
		LeftColumn:  rel.JoinKey,
		RightTable:  target.Table,
		RightColumn: rel.targetPK(),
	}
}

// column qualifies the trailing column of path. The joins it needs are not
// committed; callers commit once the clause is known to be emitted. Unknown
// relations and segments that are not plain identifiers are recorded as
// dropped for clause.
func (r *RelationResolver) column(cc *CompilationContext, clause string, path DottedPath) (string, ResolvedRelation, bool) {
	for _, seg := range path {
		if !identifier.MatchString(seg) {
			cc.drop(&ClauseError{Clause: clause, Field: path.String(), Err: fmt.Errorf("%w: %q", ErrInvalidColumn, seg)})
			return "", ResolvedRelation{}, false
		}
	}
	res, err := r.walk(cc, path.Relations())
	if err != nil {
		cc.drop(&ClauseError{Clause: clause, Field: path.String(), Err: err})
		return "", ResolvedRelation{}, false
	}
	return res.Table + "." + path.Column(), res, true
}

// Hop is one traversed relation and the entity it lands on.
type Hop struct {
	Relation RelationMetadata
	Owner    EntityMetadata
	Target   EntityMetadata
}

// Hops checks that every segment of path is a relation, without treating the
// last segment as a column. Eager loading walks paths this way.
func (r *RelationResolver) Hops(base EntityMetadata, path DottedPath) ([]Hop, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrUnknownRelation)
	}
	hops := make([]Hop, 0, len(path))
	current := base
	for _, name := range path {
		rel, ok := r.schema.Relation(current.Name, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, current.Name, name)
		}
		target, ok := r.schema.Entity(rel.Target)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s targets unknown entity %s", ErrUnknownRelation, current.Name, name, rel.Target)
		}
		hops = append(hops, Hop{Relation: rel, Owner: current, Target: target})
		current = target
	}
	return hops, nil
}
