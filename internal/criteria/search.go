package criteria

import "strings"

// SearchMode is how a searchable field is compared against the search term.
type SearchMode string

const (
	SearchEqual   SearchMode = "="
	SearchLike    SearchMode = "like"
	SearchILike   SearchMode = "ilike"
	SearchIn      SearchMode = "in"
	SearchBetween SearchMode = "between"
)

// ParseSearchMode defaults to equality for an empty mode and to substring
// matching for modes it does not know.
func ParseSearchMode(s string) SearchMode {
	switch m := SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SearchEqual
	case SearchEqual, SearchLike, SearchILike, SearchIn, SearchBetween:
		return m
	}
	return SearchLike
}

// SearchField is one searchable field and its comparison mode.
type SearchField struct {
	Path DottedPath
	Mode SearchMode
}

// SearchFieldSpec is the ordered set of searchable fields of an entity.
type SearchFieldSpec []SearchField

// SearchCompiler applies a free-text term across searchable fields.
type SearchCompiler struct {
	resolver *RelationResolver
}

func NewSearchCompiler(r *RelationResolver) *SearchCompiler {
	return &SearchCompiler{resolver: r}
}

// Compile ORs one predicate per searchable field. An empty term yields an
// empty group.
func (sc *SearchCompiler) Compile(cc *CompilationContext, term string, fields SearchFieldSpec) Group {
	group := Group{Combinator: Or}
	if term == "" {
		return group
	}
	for _, f := range fields {
		if len(f.Path) == 0 {
			continue
		}
		column, res, ok := sc.resolver.column(cc, "search", f.Path)
		if !ok {
			continue
		}
		pred, ok := searchPredicate(column, f.Mode, term)
		if !ok {
			cc.drop(&ClauseError{Clause: "search", Field: f.Path.String(), Err: ErrMalformedRange})
			continue
		}
		cc.commit(res.Joins)
		group.Predicates = append(group.Predicates, pred)
	}
	return group
}

func searchPredicate(column string, mode SearchMode, term string) (Predicate, bool) {
	switch mode {
	case SearchEqual, "":
		return Comparison{Column: column, Operator: "=", Value: term}, true
	case SearchILike:
		return FoldedLike{Column: column, Pattern: "%" + term + "%"}, true
	case SearchIn:
		return Membership{Column: column, Values: splitList(term)}, true
	case SearchBetween:
		parts := strings.Split(term, ",")
		if len(parts) != 2 {
			return nil, false
		}
		return Range{Column: column, Low: parts[0], High: parts[1]}, true
	}
	return Comparison{Column: column, Operator: "LIKE", Value: "%" + term + "%"}, true
}
