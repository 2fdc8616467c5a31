package criteria

import "reflect"

// ValueKind tags the shape of a filter value.
type ValueKind uint8

const (
	KindAbsent ValueKind = iota
	KindScalar
	KindPair
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindPair:
		return "pair"
	case KindList:
		return "list"
	}
	return "absent"
}

// Value is a filter value: absent, a single scalar, a pair of bounds or a list.
type Value struct {
	kind  ValueKind
	items []any
}

func AbsentValue() Value { return Value{} }

func ScalarValue(v any) Value { return Value{kind: KindScalar, items: []any{v}} }

func PairValue(lo, hi any) Value { return Value{kind: KindPair, items: []any{lo, hi}} }

func ListValue(vs ...any) Value {
	items := make([]any, len(vs))
	copy(items, vs)
	return Value{kind: KindList, items: items}
}

func (v Value) Kind() ValueKind { return v.kind }

// Scalar returns the scalar payload, nil for other kinds.
func (v Value) Scalar() any {
	if v.kind != KindScalar {
		return nil
	}
	return v.items[0]
}

// Items returns the pair or list elements. The slice must not be modified.
func (v Value) Items() []any {
	if v.kind == KindPair || v.kind == KindList {
		return v.items
	}
	return nil
}

func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && reflect.DeepEqual(v.items, o.items)
}
