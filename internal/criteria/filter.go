package criteria

import (
	"errors"
	"fmt"
)

// FilterCompiler turns filter descriptors into one predicate group.
type FilterCompiler struct {
	resolver *RelationResolver
}

func NewFilterCompiler(r *RelationResolver) *FilterCompiler {
	return &FilterCompiler{resolver: r}
}

// Compile emits one predicate per descriptor, combined with comb. Unknown
// relations and malformed ranges drop their clause. Invalid values are
// returned so the caller can apply its policy; the clause is left out either way.
func (fc *FilterCompiler) Compile(cc *CompilationContext, descs []FilterDescriptor, comb Combinator) (Group, []*ClauseError) {
	if comb == "" {
		comb = And
	}
	group := Group{Combinator: comb}
	var invalid []*ClauseError

	for _, d := range descs {
		if len(d.Field) == 0 {
			continue
		}
		column, res, ok := fc.resolver.column(cc, "filter", d.Field)
		if !ok {
			continue
		}
		pred, err := predicateFor(column, d.Condition, d.Value, res.Entity.CastOf(d.Field.Column()))
		if err != nil {
			cerr := &ClauseError{Clause: "filter", Field: d.Field.String(), Err: err}
			if errors.Is(err, ErrMalformedRange) {
				cc.drop(cerr)
				continue
			}
			invalid = append(invalid, cerr)
			continue
		}
		cc.commit(res.Joins)
		group.Predicates = append(group.Predicates, pred)
	}
	return group, invalid
}

func predicateFor(column string, cond ConditionKind, raw Value, cast string) (Predicate, error) {
	switch cond {
	case IsEmpty:
		return NullCheck{Column: column}, nil
	case IsNotEmpty:
		return NullCheck{Column: column, Not: true}, nil
	}

	v, err := Coerce(raw, cond, cast)
	if err != nil {
		return nil, err
	}
	switch cond {
	case Between:
		items := v.Items()
		return Range{Column: column, Low: items[0], High: items[1]}, nil
	case In:
		return Membership{Column: column, Values: v.Items()}, nil
	}

	op, ok := OperatorFor(cond)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCondition, cond)
	}
	return Comparison{Column: column, Operator: op, Value: v.Scalar()}, nil
}
