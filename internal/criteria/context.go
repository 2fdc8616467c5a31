package criteria

// CompilationContext is the mutable state of one compilation. Each stage
// receives it by exclusive reference; it is never shared between requests.
type CompilationContext struct {
	base    EntityMetadata
	joins   []Join
	joined  map[string]struct{}
	dropped []DroppedClause
}

func newCompilationContext(base EntityMetadata) *CompilationContext {
	return &CompilationContext{
		base:   base,
		joined: map[string]struct{}{base.Table: {}},
	}
}

// Base returns the entity the compilation starts from.
func (cc *CompilationContext) Base() EntityMetadata { return cc.base }

// Joins returns the join plan accumulated so far.
func (cc *CompilationContext) Joins() []Join { return cc.joins }

func (cc *CompilationContext) hasJoined(table string) bool {
	_, ok := cc.joined[table]
	return ok
}

func (cc *CompilationContext) commit(joins []Join) {
	for _, j := range joins {
		if cc.hasJoined(j.RightTable) {
			continue
		}
		cc.joined[j.RightTable] = struct{}{}
		cc.joins = append(cc.joins, j)
	}
}

func (cc *CompilationContext) drop(err *ClauseError) {
	cc.dropped = append(cc.dropped, dropped(err))
}
