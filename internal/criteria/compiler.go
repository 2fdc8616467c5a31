// Package criteria compiles datatable-style requests (search, filters, sort,
// eager hints, pagination) into relational query plans against a pluggable
// schema.
package criteria

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// InvalidValuePolicy decides what an InvalidValue failure does to a compilation.
type InvalidValuePolicy int

const (
	// PolicyPropagate fails the compilation, reporting every invalid clause.
	PolicyPropagate InvalidValuePolicy = iota
	// PolicySkip drops invalid clauses and keeps compiling.
	PolicySkip
)

// ParsePolicy accepts "propagate" or "skip".
func ParsePolicy(s string) (InvalidValuePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "propagate":
		return PolicyPropagate, nil
	case "skip":
		return PolicySkip, nil
	}
	return PolicyPropagate, fmt.Errorf("criteria: unknown invalid value policy %q", s)
}

func (p InvalidValuePolicy) String() string {
	if p == PolicySkip {
		return "skip"
	}
	return "propagate"
}

// Options tune a Compiler.
type Options struct {
	Policy       InvalidValuePolicy
	DefaultLimit uint64 // used when Input.Limit is 0; 0 means no limit
	MaxLimit     uint64 // 0 means uncapped
}

// DefaultOptions mirror the datatable defaults: ten rows per page.
func DefaultOptions() Options {
	return Options{Policy: PolicyPropagate, DefaultLimit: 10, MaxLimit: 1000}
}

// Compiler sequences the compilation stages. It holds no per-request state
// and is safe for concurrent use.
type Compiler struct {
	schema  Schema
	opts    Options
	filters *FilterCompiler
	sorts   *SortCompiler
	search  *SearchCompiler
	rel     *RelationResolver
}

func NewCompiler(schema Schema, opts Options) *Compiler {
	r := NewRelationResolver(schema)
	return &Compiler{
		schema:  schema,
		opts:    opts,
		filters: NewFilterCompiler(r),
		sorts:   NewSortCompiler(r),
		search:  NewSearchCompiler(r),
		rel:     r,
	}
}

// Compile builds the plan for one request against entity. Stages run in a
// fixed order: search, with, withCount, filters, sort, select, limit/offset.
func (c *Compiler) Compile(entity string, searchable SearchFieldSpec, in Input) (*Plan, error) {
	base, ok := c.schema.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	cc := newCompilationContext(base)
	plan := &Plan{Entity: base}

	plan.Search = c.search.Compile(cc, in.Search, searchable)
	plan.EagerLoads = c.compileWith(cc, in.With)
	plan.EagerCounts = c.compileWithCount(cc, in.WithCount)

	filters, invalid := c.filters.Compile(cc, in.Filters, in.FilterJoin)
	if len(invalid) > 0 {
		if c.opts.Policy == PolicyPropagate {
			var merr *multierror.Error
			for _, e := range invalid {
				merr = multierror.Append(merr, e)
			}
			return nil, merr.ErrorOrNil()
		}
		for _, e := range invalid {
			cc.drop(e)
		}
	}
	plan.Filters = filters

	plan.Order = c.sorts.Compile(cc, in.SortColumn, in.SortDirection)
	plan.Columns = c.eagerKeys(cc.base, c.compileSelect(cc, in.Select), plan.EagerLoads)
	plan.Limit = c.limit(in.Limit)
	plan.Offset = in.Offset

	plan.Joins = cc.joins
	plan.Dropped = cc.dropped
	return plan, nil
}

// compileWith keeps eager-load paths whose every segment is a known relation.
func (c *Compiler) compileWith(cc *CompilationContext, with string) []DottedPath {
	var out []DottedPath
	for _, raw := range splitRelations(with) {
		path := ParsePath(raw)
		if len(path) == 0 {
			continue
		}
		if _, err := c.rel.Hops(cc.base, path); err != nil {
			cc.drop(&ClauseError{Clause: "with", Field: raw, Err: err})
			continue
		}
		out = append(out, path)
	}
	return out
}

// compileWithCount builds one correlated count per direct relation.
func (c *Compiler) compileWithCount(cc *CompilationContext, withCount string) []EagerCount {
	var out []EagerCount
	for _, name := range splitRelations(withCount) {
		rels, err := c.rel.Hops(cc.base, ParsePath(name))
		if err == nil && len(rels) != 1 {
			err = fmt.Errorf("%w: counts only follow direct relations", ErrUnknownRelation)
		}
		if err != nil {
			cc.drop(&ClauseError{Clause: "with_count", Field: name, Err: err})
			continue
		}
		rel, target := rels[0].Relation, rels[0].Target
		ec := EagerCount{
			Relation: name,
			Alias:    name + "_count",
			Table:    target.Table,
		}
		switch rel.Kind {
		case HasOne, HasMany:
			ec.Column, ec.ParentTable, ec.ParentColumn = rel.JoinKey, cc.base.Table, cc.base.PK()
		default:
			ec.Column, ec.ParentTable, ec.ParentColumn = rel.targetPK(), cc.base.Table, rel.JoinKey
		}
		out = append(out, ec)
	}
	return out
}

// compileSelect qualifies projected columns. Dotted paths are joined in and
// aliased with the path so the caller can tell them apart.
func (c *Compiler) compileSelect(cc *CompilationContext, paths []DottedPath) []string {
	var out []string
	for _, path := range paths {
		if len(path) == 0 {
			continue
		}
		column, res, ok := c.rel.column(cc, "select", path)
		if !ok {
			continue
		}
		cc.commit(res.Joins)
		if len(path) == 1 {
			out = append(out, column)
			continue
		}
		out = append(out, fmt.Sprintf("%s AS %q", column, path.String()))
	}
	return out
}

// eagerKeys extends an explicit projection with the base columns eager
// loads are matched on. An empty projection already selects every column.
func (c *Compiler) eagerKeys(base EntityMetadata, columns []string, eager []DottedPath) []string {
	if len(columns) == 0 {
		return columns
	}
	for _, path := range eager {
		hops, err := c.rel.Hops(base, path[:1])
		if err != nil {
			continue
		}
		key := hops[0].Relation.JoinKey
		if kind := hops[0].Relation.Kind; kind == HasOne || kind == HasMany {
			key = base.PK()
		}
		if col := base.Table + "." + key; !slices.Contains(columns, col) {
			columns = append(columns, col)
		}
	}
	return columns
}

func (c *Compiler) limit(requested uint64) uint64 {
	n := requested
	if n == 0 {
		n = c.opts.DefaultLimit
	}
	if c.opts.MaxLimit > 0 && n > c.opts.MaxLimit {
		n = c.opts.MaxLimit
	}
	return n
}
