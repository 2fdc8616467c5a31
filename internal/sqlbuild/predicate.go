package sqlbuild

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"RequestCriteria/internal/criteria"
)

// Predicate translates a compiled predicate tree into a squirrel expression.
func Predicate(p criteria.Predicate) (squirrel.Sqlizer, error) {
	switch p := p.(type) {
	case criteria.Comparison:
		return squirrel.Expr(p.Column+" "+p.Operator+" ?", p.Value), nil
	case criteria.NullCheck:
		if p.Not {
			return squirrel.Expr(p.Column + " IS NOT NULL"), nil
		}
		return squirrel.Expr(p.Column + " IS NULL"), nil
	case criteria.Range:
		return squirrel.Expr(p.Column+" BETWEEN ? AND ?", p.Low, p.High), nil
	case criteria.Membership:
		return squirrel.Eq{p.Column: p.Values}, nil
	case criteria.FoldedLike:
		return squirrel.Expr("LOWER("+p.Column+") LIKE LOWER(?)", p.Pattern), nil
	case criteria.Group:
		parts := make([]squirrel.Sqlizer, 0, len(p.Predicates))
		for _, child := range p.Predicates {
			part, err := Predicate(child)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		if p.Combinator == criteria.Or {
			return squirrel.Or(parts), nil
		}
		return squirrel.And(parts), nil
	}
	return nil, fmt.Errorf("sqlbuild: unsupported predicate %T", p)
}
