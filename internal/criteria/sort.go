package criteria

// SortCompiler emits the single ORDER BY key of a plan.
type SortCompiler struct {
	resolver *RelationResolver
}

func NewSortCompiler(r *RelationResolver) *SortCompiler {
	return &SortCompiler{resolver: r}
}

// Compile returns nil when either the path or the direction is missing, or
// when the path does not resolve.
func (sc *SortCompiler) Compile(cc *CompilationContext, path DottedPath, dir Direction) *Order {
	if len(path) == 0 || dir == "" {
		return nil
	}
	column, res, ok := sc.resolver.column(cc, "sort", path)
	if !ok {
		return nil
	}
	cc.commit(res.Joins)
	return &Order{Column: column, Direction: dir}
}
