// Package sqlbuild renders compiled plans as PostgreSQL with squirrel.
package sqlbuild

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"RequestCriteria/internal/criteria"
)

// sortKeyAlias names the order column added to DISTINCT selects.
const sortKeyAlias = "_sort_key"

// SelectBuilder receives a plan through criteria.Builder and renders it.
type SelectBuilder struct {
	base    criteria.EntityMetadata
	joins   []criteria.Join
	groups  []criteria.Group
	order   *criteria.Order
	columns []string
	counts  []criteria.EagerCount
	eager   []criteria.DottedPath
	limit   uint64
	offset  uint64
}

var _ criteria.Builder = (*SelectBuilder)(nil)

func New(base criteria.EntityMetadata) *SelectBuilder {
	return &SelectBuilder{base: base}
}

// Build replays plan into a fresh SelectBuilder.
func Build(plan *criteria.Plan) *SelectBuilder {
	b := New(plan.Entity)
	plan.Apply(b)
	return b
}

func (b *SelectBuilder) AddJoin(j criteria.Join)             { b.joins = append(b.joins, j) }
func (b *SelectBuilder) AddPredicate(g criteria.Group)       { b.groups = append(b.groups, g) }
func (b *SelectBuilder) AddOrder(o criteria.Order)           { b.order = &o }
func (b *SelectBuilder) AddEagerLoad(p criteria.DottedPath)  { b.eager = append(b.eager, p) }
func (b *SelectBuilder) AddEagerCount(c criteria.EagerCount) { b.counts = append(b.counts, c) }
func (b *SelectBuilder) SetColumns(columns []string)         { b.columns = columns }
func (b *SelectBuilder) SetLimit(n uint64)                   { b.limit = n }
func (b *SelectBuilder) SetOffset(n uint64)                  { b.offset = n }

// EagerLoads returns the relation paths the executor loads after the select.
func (b *SelectBuilder) EagerLoads() []criteria.DottedPath { return b.eager }

func (b *SelectBuilder) fanout() bool {
	for _, j := range b.joins {
		if j.Fanout {
			return true
		}
	}
	return false
}

// from applies FROM, joins and WHERE, shared by the select and the count.
func (b *SelectBuilder) from(sb squirrel.SelectBuilder) (squirrel.SelectBuilder, error) {
	sb = sb.From(b.base.Table)
	for _, j := range b.joins {
		sb = sb.LeftJoin(fmt.Sprintf("%s ON %s.%s = %s.%s", j.RightTable, j.LeftTable, j.LeftColumn, j.RightTable, j.RightColumn))
	}
	for _, g := range b.groups {
		pred, err := Predicate(g)
		if err != nil {
			return sb, err
		}
		sb = sb.Where(pred)
	}
	return sb, nil
}

// Select renders the row query.
func (b *SelectBuilder) Select() (squirrel.SelectBuilder, error) {
	columns := b.columns
	if len(columns) == 0 {
		columns = []string{b.base.Table + ".*"}
	}
	columns = append([]string(nil), columns...)
	for _, c := range b.counts {
		columns = append(columns, fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE %s.%s = %s.%s) AS %s",
			c.Table, c.Table, c.Column, c.ParentTable, c.ParentColumn, c.Alias))
	}

	sb := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Select()
	if b.fanout() {
		sb = sb.Distinct()
		if b.order != nil {
			// DISTINCT requires ORDER BY expressions in the select list.
			columns = append(columns, fmt.Sprintf("%s AS %s", b.order.Column, sortKeyAlias))
		}
	}
	sb = sb.Columns(columns...)

	sb, err := b.from(sb)
	if err != nil {
		return sb, err
	}
	if b.order != nil {
		sb = sb.OrderBy(b.order.Column + " " + string(b.order.Direction))
	}
	if b.limit > 0 {
		sb = sb.Limit(b.limit)
	}
	if b.offset > 0 {
		sb = sb.Offset(b.offset)
	}
	return sb, nil
}

// ToSql renders the row query with $n placeholders.
func (b *SelectBuilder) ToSql() (string, []any, error) {
	sb, err := b.Select()
	if err != nil {
		return "", nil, err
	}
	return sb.ToSql()
}

// Count renders the total-count query: same joins and predicates, no
// ordering or pagination.
func (b *SelectBuilder) Count() (squirrel.SelectBuilder, error) {
	column := "COUNT(*)"
	if b.fanout() {
		column = fmt.Sprintf("COUNT(DISTINCT %s.%s)", b.base.Table, b.base.PK())
	}
	sb := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Select(column)
	return b.from(sb)
}

func (b *SelectBuilder) CountSQL() (string, []any, error) {
	sb, err := b.Count()
	if err != nil {
		return "", nil, err
	}
	return sb.ToSql()
}

// SortKeyAlias is the synthetic column executors should drop from rows.
func SortKeyAlias() string { return sortKeyAlias }
