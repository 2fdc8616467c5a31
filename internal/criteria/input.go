package criteria

import "strings"

// DottedPath is a column reference, optionally reached through relations:
// [relation, ..., column].
type DottedPath []string

// ParsePath splits "a.b.c". It returns nil for empty input or empty segments.
func ParsePath(s string) DottedPath {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ".")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil
		}
		parts[i] = p
	}
	return DottedPath(parts)
}

// Relations returns every segment but the last.
func (p DottedPath) Relations() []string {
	if len(p) < 2 {
		return nil
	}
	return p[:len(p)-1]
}

// Column returns the trailing segment.
func (p DottedPath) Column() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (p DottedPath) String() string {
	return strings.Join(p, ".")
}

// Direction of an order clause.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc":
		return Ascending, true
	case "desc":
		return Descending, true
	}
	return "", false
}

// Combinator joins predicates of one group.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// ParseCombinator accepts and/or in any case; anything else is And.
func ParseCombinator(s string) Combinator {
	if strings.EqualFold(strings.TrimSpace(s), "or") {
		return Or
	}
	return And
}

// FilterDescriptor is one requested filter.
type FilterDescriptor struct {
	Field     DottedPath
	Condition ConditionKind
	Value     Value
}

// Input is everything a single request asks of the compiler.
type Input struct {
	Search        string
	Filters       []FilterDescriptor
	FilterJoin    Combinator
	SortColumn    DottedPath
	SortDirection Direction
	With          string // semicolon-delimited relation paths
	WithCount     string // semicolon-delimited relation names
	Select        []DottedPath
	Limit         uint64 // 0 selects the compiler default
	Offset        uint64
}

func splitRelations(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
