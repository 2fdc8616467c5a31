// Package executor runs compiled plans against Postgres through database/sql.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"

	"RequestCriteria/internal/criteria"
	"RequestCriteria/internal/logger"
	"RequestCriteria/internal/sqlbuild"
)

// Row is one result row keyed by column name. Eager relations are attached
// under the relation name.
type Row = map[string]any

// Executor runs plans built by criteria.Compiler.
type Executor struct {
	db     *sql.DB
	schema criteria.Schema
}

func New(db *sql.DB, schema criteria.Schema) *Executor {
	return &Executor{db: db, schema: schema}
}

// Index runs the row query of plan and attaches its eager loads.
func (e *Executor) Index(ctx context.Context, plan *criteria.Plan) ([]Row, error) {
	b := sqlbuild.Build(plan)
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	logger.Debug("sql", logger.Fields{"entity": plan.Entity.Name, "sql": query, "args": args})

	rows, err := e.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(b.EagerLoads()) == 0 {
		return rows, nil
	}
	if err := e.loadEager(ctx, plan.Entity, rows, eagerTree(b.EagerLoads())); err != nil {
		return nil, err
	}
	return rows, nil
}

// Count runs the count variant of plan.
func (e *Executor) Count(ctx context.Context, plan *criteria.Plan) (int64, error) {
	query, args, err := sqlbuild.Build(plan).CountSQL()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	logger.Debug("sql", logger.Fields{"entity": plan.Entity.Name, "sql": query, "args": args})

	var n int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", plan.Entity.Name, err)
	}
	return n, nil
}

func (e *Executor) query(ctx context.Context, query string, args []any) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// scanRows reads every row into a map. Byte slices become strings so values
// can be used as map keys when grouping eager loads.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if col == sqlbuild.SortKeyAlias() {
				continue
			}
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// eagerNode groups eager paths by their first segment so that "books" and
// "books.publisher" share one load of books.
type eagerNode map[string]eagerNode

func eagerTree(paths []criteria.DottedPath) eagerNode {
	root := eagerNode{}
	for _, p := range paths {
		node := root
		for _, seg := range p {
			next, ok := node[seg]
			if !ok {
				next = eagerNode{}
				node[seg] = next
			}
			node = next
		}
	}
	return root
}

type eagerResult struct {
	name    string
	rel     criteria.RelationMetadata
	target  criteria.EntityMetadata
	grouped map[any][]Row
}

// loadEager fetches every relation of tree for parents concurrently, then
// attaches the results. Attachment happens after Wait so parents are only
// written from one goroutine.
func (e *Executor) loadEager(ctx context.Context, owner criteria.EntityMetadata, parents []Row, tree eagerNode) error {
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]eagerResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		rel, ok := e.schema.Relation(owner.Name, name)
		if !ok {
			return fmt.Errorf("eager load %s.%s: %w", owner.Name, name, criteria.ErrUnknownRelation)
		}
		target, ok := e.schema.Entity(rel.Target)
		if !ok {
			return fmt.Errorf("eager load %s.%s: %w", owner.Name, name, criteria.ErrUnknownRelation)
		}
		children := tree[name]
		g.Go(func() error {
			grouped, err := e.fetchRelated(gctx, owner, rel, target, parents, children)
			if err != nil {
				return fmt.Errorf("eager load %s.%s: %w", owner.Name, name, err)
			}
			results[i] = eagerResult{name: name, rel: rel, target: target, grouped: grouped}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		attach(owner, res, parents)
	}
	return nil
}

// parentKey is the parent column a relation is matched on.
func parentKey(owner criteria.EntityMetadata, rel criteria.RelationMetadata) string {
	if rel.Kind == criteria.HasOne || rel.Kind == criteria.HasMany {
		return owner.PK()
	}
	return rel.JoinKey
}

// childKey is the target column a relation is matched on.
func childKey(rel criteria.RelationMetadata, target criteria.EntityMetadata) string {
	if rel.Kind == criteria.HasOne || rel.Kind == criteria.HasMany {
		return rel.JoinKey
	}
	if rel.TargetPrimaryKey != "" {
		return rel.TargetPrimaryKey
	}
	return target.PK()
}

func (e *Executor) fetchRelated(
	ctx context.Context,
	owner criteria.EntityMetadata,
	rel criteria.RelationMetadata,
	target criteria.EntityMetadata,
	parents []Row,
	children eagerNode,
) (map[any][]Row, error) {
	pk := parentKey(owner, rel)
	seen := make(map[any]struct{}, len(parents))
	keys := make([]any, 0, len(parents))
	for _, p := range parents {
		v := matchKey(p[pk])
		if v == nil {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		keys = append(keys, v)
	}
	if len(keys) == 0 {
		return map[any][]Row{}, nil
	}

	ck := childKey(rel, target)
	query, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(target.Table + ".*").
		From(target.Table).
		Where(squirrel.Eq{target.Table + "." + ck: keys}).
		ToSql()
	if err != nil {
		return nil, err
	}
	logger.Debug("sql", logger.Fields{"entity": target.Name, "sql": query, "args": args})

	rows, err := e.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(children) > 0 {
		if err := e.loadEager(ctx, target, rows, children); err != nil {
			return nil, err
		}
	}

	grouped := make(map[any][]Row, len(keys))
	for _, r := range rows {
		k := matchKey(r[ck])
		grouped[k] = append(grouped[k], r)
	}
	return grouped, nil
}

func attach(owner criteria.EntityMetadata, res eagerResult, parents []Row) {
	pk := parentKey(owner, res.rel)
	for _, p := range parents {
		var matched []Row
		if v := matchKey(p[pk]); v != nil {
			matched = res.grouped[v]
		}
		if res.rel.Kind == criteria.HasMany {
			if matched == nil {
				matched = []Row{}
			}
			p[res.name] = matched
			continue
		}
		if len(matched) == 0 {
			p[res.name] = nil
			continue
		}
		p[res.name] = matched[0]
	}
}

// matchKey normalises a join key so that parent and child columns of
// different integer widths or text encodings group together.
func matchKey(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
	case float32:
		return matchKey(float64(x))
	case float64:
		if x == math.Trunc(x) && x >= -(1<<63) && x < 1<<63 {
			return int64(x)
		}
	case []byte:
		return string(x)
	}
	return v
}
