package criteria

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
)

func newTestCompiler(policy InvalidValuePolicy) *Compiler {
	opts := DefaultOptions()
	opts.Policy = policy
	return NewCompiler(library(), opts)
}

func TestCompileNestedRelationFilter(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", nil, Input{
		Filters: []FilterDescriptor{filter("author.country.name", Equal, ScalarValue("Ukraine"))},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	wantJoins := []Join{
		{LeftTable: "books", LeftColumn: "author_id", RightTable: "authors", RightColumn: "id"},
		{LeftTable: "authors", LeftColumn: "country_id", RightTable: "countries", RightColumn: "id"},
	}
	if diff := cmp.Diff(wantJoins, plan.Joins); diff != "" {
		t.Fatalf("joins mismatch (-want +got):\n%s", diff)
	}
	wantFilters := Group{Combinator: And, Predicates: []Predicate{
		Comparison{Column: "countries.name", Operator: "=", Value: "Ukraine"},
	}}
	if diff := cmp.Diff(wantFilters, plan.Filters); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileSingleSegmentUsesBaseTable(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", nil, Input{
		Filters: []FilterDescriptor{
			filter("title", Contains, ScalarValue("ring")),
			filter("price", Between, ListValue("5", "9.5")),
			filter("deleted_at", IsEmpty, AbsentValue()),
			filter("isbn", In, ScalarValue("a,b")),
			filter("pages", GreaterOrEqual, ScalarValue("100")),
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Joins) != 0 {
		t.Fatalf("expected no joins, got %+v", plan.Joins)
	}
	want := []Predicate{
		Comparison{Column: "books.title", Operator: "LIKE", Value: "%ring%"},
		Range{Column: "books.price", Low: float64(5), High: 9.5},
		NullCheck{Column: "books.deleted_at"},
		Membership{Column: "books.isbn", Values: []any{"a", "b"}},
		Comparison{Column: "books.pages", Operator: ">=", Value: int64(100)},
	}
	if diff := cmp.Diff(want, plan.Filters.Predicates); diff != "" {
		t.Fatalf("predicates mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileDeduplicatesJoinsAcrossClauses(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", SearchFieldSpec{{Path: ParsePath("author.name"), Mode: SearchLike}}, Input{
		Search: "le guin",
		Filters: []FilterDescriptor{
			filter("author.name", StartsWith, ScalarValue("Ur")),
			filter("author.country.is_europe", Equal, ScalarValue("off")),
			filter("publisher.name", NotEqual, ScalarValue("Ace")),
		},
		SortColumn:    ParsePath("author.country.name"),
		SortDirection: Ascending,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var tables []string
	for _, j := range plan.Joins {
		tables = append(tables, j.RightTable)
	}
	if diff := cmp.Diff([]string{"authors", "countries", "publishers"}, tables); diff != "" {
		t.Fatalf("join tables mismatch (-want +got):\n%s", diff)
	}
	if got := plan.Filters.Predicates[1]; got != (Comparison{Column: "countries.is_europe", Operator: "=", Value: false}) {
		t.Fatalf("terminal cast not applied: %+v", got)
	}
	if plan.Order == nil || *plan.Order != (Order{Column: "countries.name", Direction: Ascending}) {
		t.Fatalf("unexpected order: %+v", plan.Order)
	}
}

func TestCompileUnknownRelationDropsOnlyThatClause(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", nil, Input{
		Filters: []FilterDescriptor{
			filter("author.planet.name", Equal, ScalarValue("Earth")),
			filter("author.ghost.name", Equal, ScalarValue("Boo")),
			filter("title", Equal, ScalarValue("Dune")),
		},
		SortColumn:    ParsePath("editor.name"),
		SortDirection: Descending,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Joins) != 0 {
		t.Fatalf("failed paths must not leave partial joins, got %+v", plan.Joins)
	}
	if len(plan.Filters.Predicates) != 1 {
		t.Fatalf("expected only the base filter, got %+v", plan.Filters.Predicates)
	}
	if plan.Order != nil {
		t.Fatalf("unresolved sort should be a no-op, got %+v", plan.Order)
	}
	if got, want := droppedFields(plan), "filter:author.planet.name,filter:author.ghost.name,sort:editor.name"; got != want {
		t.Fatalf("dropped = %s; want %s", got, want)
	}
}

func TestCompileDropsNonIdentifierColumns(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", SearchFieldSpec{{Path: ParsePath("title;--"), Mode: SearchLike}}, Input{
		Search: "x",
		Filters: []FilterDescriptor{
			filter("id = 0 OR 1=1 OR id", Equal, ScalarValue(int64(1))),
			filter("author.name) OR (1=1", Equal, ScalarValue("x")),
			filter("title", Equal, ScalarValue("Dune")),
		},
		SortColumn:    ParsePath("(SELECT pg_sleep(5))"),
		SortDirection: Ascending,
		Select:        []DottedPath{ParsePath("title"), ParsePath("price AS p")},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Joins) != 0 {
		t.Fatalf("rejected paths must not join, got %+v", plan.Joins)
	}
	if !plan.Search.Empty() {
		t.Fatalf("search on a rejected field should be empty, got %+v", plan.Search)
	}
	want := Group{Combinator: And, Predicates: []Predicate{
		Comparison{Column: "books.title", Operator: "=", Value: "Dune"},
	}}
	if diff := cmp.Diff(want, plan.Filters); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}
	if plan.Order != nil {
		t.Fatalf("rejected sort column should be a no-op, got %+v", plan.Order)
	}
	if diff := cmp.Diff([]string{"books.title"}, plan.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	for _, d := range plan.Dropped {
		if d.Field == "title" {
			t.Fatalf("valid filter was dropped: %+v", d)
		}
		if !strings.Contains(d.Reason, ErrInvalidColumn.Error()) {
			t.Fatalf("unexpected drop reason: %+v", d)
		}
	}
	if len(plan.Dropped) != 5 {
		t.Fatalf("expected five dropped clauses, got %s", droppedFields(plan))
	}
}

func TestCompileSortOnBaseColumn(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", nil, Input{SortColumn: ParsePath("price"), SortDirection: Descending})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if plan.Order == nil || *plan.Order != (Order{Column: "books.price", Direction: Descending}) {
		t.Fatalf("unexpected order: %+v", plan.Order)
	}
	if len(plan.Joins) != 0 {
		t.Fatalf("expected zero joins, got %d", len(plan.Joins))
	}

	plan, err = c.Compile("Book", nil, Input{SortColumn: ParsePath("price")})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if plan.Order != nil {
		t.Fatalf("sort without direction should be a no-op, got %+v", plan.Order)
	}
}

func TestCompileSearch(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	spec := SearchFieldSpec{
		{Path: ParsePath("name"), Mode: ParseSearchMode("like")},
		{Path: ParsePath("email"), Mode: ParseSearchMode("=")},
	}
	plan, err := c.Compile("Book", spec, Input{Search: "smith"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := Group{Combinator: Or, Predicates: []Predicate{
		Comparison{Column: "books.name", Operator: "LIKE", Value: "%smith%"},
		Comparison{Column: "books.email", Operator: "=", Value: "smith"},
	}}
	if diff := cmp.Diff(want, plan.Search); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}

	plan, err = c.Compile("Book", spec, Input{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !plan.Search.Empty() {
		t.Fatalf("empty term must not emit a search group: %+v", plan.Search)
	}
}

func TestCompileSearchModes(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	spec := SearchFieldSpec{
		{Path: ParsePath("title"), Mode: ParseSearchMode("ilike")},
		{Path: ParsePath("isbn"), Mode: ParseSearchMode("in")},
		{Path: ParsePath("pages"), Mode: ParseSearchMode("between")},
		{Path: ParsePath("summary"), Mode: ParseSearchMode("fuzzy")},
		{Path: ParsePath("id"), Mode: ParseSearchMode("")},
	}
	plan, err := c.Compile("Book", spec, Input{Search: "a,b"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []Predicate{
		FoldedLike{Column: "books.title", Pattern: "%a,b%"},
		Membership{Column: "books.isbn", Values: []any{"a", "b"}},
		Range{Column: "books.pages", Low: "a", High: "b"},
		Comparison{Column: "books.summary", Operator: "LIKE", Value: "%a,b%"},
		Comparison{Column: "books.id", Operator: "=", Value: "a,b"},
	}
	if diff := cmp.Diff(want, plan.Search.Predicates); diff != "" {
		t.Fatalf("search predicates mismatch (-want +got):\n%s", diff)
	}

	plan, err = c.Compile("Book", spec[2:3], Input{Search: "abc"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !plan.Search.Empty() || droppedFields(plan) != "search:pages" {
		t.Fatalf("malformed range should be skipped, got %+v / %+v", plan.Search, plan.Dropped)
	}
}

func TestCompileInvalidValuePropagates(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", nil, Input{
		Filters: []FilterDescriptor{
			filter("in_stock", Equal, ScalarValue("maybe")),
			filter("pages", LessThan, ScalarValue("many")),
			filter("title", Equal, ScalarValue("ok")),
		},
	})
	if plan != nil {
		t.Fatalf("expected no plan, got %+v", plan)
	}
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 2 {
		t.Fatalf("expected both failures aggregated, got %v", err)
	}
	var cerr *ClauseError
	if !errors.As(merr.Errors[1], &cerr) || cerr.Field != "pages" {
		t.Fatalf("expected clause error for pages, got %v", merr.Errors[1])
	}
}

func TestCompileInvalidValueSkipLeavesNoJoin(t *testing.T) {
	c := newTestCompiler(PolicySkip)
	plan, err := c.Compile("Book", nil, Input{
		Filters: []FilterDescriptor{
			filter("author.country.is_europe", Equal, ScalarValue("maybe")),
			filter("title", Equal, ScalarValue("ok")),
			filter("price", Between, ScalarValue("1,2,3")),
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Joins) != 0 {
		t.Fatalf("skipped clause must not join, got %+v", plan.Joins)
	}
	if len(plan.Filters.Predicates) != 1 {
		t.Fatalf("expected one surviving predicate, got %+v", plan.Filters.Predicates)
	}
	if got, want := droppedFields(plan), "filter:price,filter:author.country.is_europe"; got != want {
		t.Fatalf("dropped = %s; want %s", got, want)
	}
}

func TestCompileFilterJoinOr(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", nil, Input{
		Filters: []FilterDescriptor{
			filter("title", Equal, ScalarValue("a")),
			filter("title", Equal, ScalarValue("b")),
		},
		FilterJoin: ParseCombinator("OR"),
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if plan.Filters.Combinator != Or {
		t.Fatalf("expected OR combinator, got %s", plan.Filters.Combinator)
	}
}

func TestCompileWithAndWithCount(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Author", nil, Input{
		With:      "country; books ;books.publisher;planet",
		WithCount: "books;country;books.publisher",
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	wantLoads := []DottedPath{{"country"}, {"books"}, {"books", "publisher"}}
	if diff := cmp.Diff(wantLoads, plan.EagerLoads); diff != "" {
		t.Fatalf("eager loads mismatch (-want +got):\n%s", diff)
	}
	wantCounts := []EagerCount{
		{Relation: "books", Alias: "books_count", Table: "books", Column: "author_id", ParentTable: "authors", ParentColumn: "id"},
		{Relation: "country", Alias: "country_count", Table: "countries", Column: "id", ParentTable: "authors", ParentColumn: "country_id"},
	}
	if diff := cmp.Diff(wantCounts, plan.EagerCounts); diff != "" {
		t.Fatalf("eager counts mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Joins) != 0 {
		t.Fatalf("eager hints must not join, got %+v", plan.Joins)
	}
	if got, want := droppedFields(plan), "with:planet,with_count:books.publisher"; got != want {
		t.Fatalf("dropped = %s; want %s", got, want)
	}
}

func TestCompileSelectAndLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLimit = 50
	c := NewCompiler(library(), opts)

	plan, err := c.Compile("Book", nil, Input{
		Select: []DottedPath{ParsePath("id"), ParsePath("author.name"), ParsePath("nope.name")},
		Offset: 20,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if diff := cmp.Diff([]string{"books.id", `authors.name AS "author.name"`}, plan.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if plan.Limit != 10 || plan.Offset != 20 {
		t.Fatalf("limit/offset = %d/%d; want 10/20", plan.Limit, plan.Offset)
	}
	if len(plan.Joins) != 1 {
		t.Fatalf("dotted select should join authors, got %+v", plan.Joins)
	}

	plan, err = c.Compile("Book", nil, Input{Limit: 500})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if plan.Limit != 50 {
		t.Fatalf("limit should be capped at 50, got %d", plan.Limit)
	}
}

func TestCompileUnknownEntity(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	if _, err := c.Compile("Dragon", nil, Input{}); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	c := newTestCompiler(PolicySkip)
	in := Input{
		Search: "x",
		Filters: []FilterDescriptor{
			filter("author.country.name", Equal, ScalarValue("Ukraine")),
			filter("publisher.name", In, ListValue("A", "B")),
			filter("in_stock", Equal, ScalarValue("nope")),
		},
		SortColumn:    ParsePath("author.name"),
		SortDirection: Descending,
		With:          "author",
	}
	spec := SearchFieldSpec{{Path: ParsePath("title"), Mode: SearchLike}}
	first, err := c.Compile("Book", spec, in)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	second, err := c.Compile("Book", spec, in)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("plans differ between runs (-first +second):\n%s", diff)
	}
}

func TestConcurrentCompilationsAreIsolated(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	inputs := []Input{
		{Filters: []FilterDescriptor{filter("author.name", Equal, ScalarValue("a"))}},
		{Filters: []FilterDescriptor{filter("publisher.name", Equal, ScalarValue("b"))}},
		{Filters: []FilterDescriptor{filter("author.country.name", Equal, ScalarValue("c"))}},
	}
	want := make([]*Plan, len(inputs))
	for i, in := range inputs {
		p, err := c.Compile("Book", nil, in)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		want[i] = p
	}

	var wg sync.WaitGroup
	got := make([][]*Plan, 8)
	for w := range got {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, in := range inputs {
				p, _ := c.Compile("Book", nil, in)
				got[w] = append(got[w], p)
			}
		}(w)
	}
	wg.Wait()
	for w := range got {
		if diff := cmp.Diff(want, got[w]); diff != "" {
			t.Fatalf("worker %d diverged (-want +got):\n%s", w, diff)
		}
	}
}

type recordingBuilder struct {
	calls []string
}

func (b *recordingBuilder) AddJoin(j Join) { b.calls = append(b.calls, "join:"+j.RightTable) }
func (b *recordingBuilder) AddPredicate(g Group) {
	b.calls = append(b.calls, "where:"+string(g.Combinator))
}
func (b *recordingBuilder) AddOrder(o Order)           { b.calls = append(b.calls, "order:"+o.Column) }
func (b *recordingBuilder) AddEagerLoad(p DottedPath)  { b.calls = append(b.calls, "with:"+p.String()) }
func (b *recordingBuilder) AddEagerCount(c EagerCount) { b.calls = append(b.calls, "count:"+c.Alias) }
func (b *recordingBuilder) SetColumns(cols []string)   { b.calls = append(b.calls, "columns") }
func (b *recordingBuilder) SetLimit(n uint64)          { b.calls = append(b.calls, "limit") }
func (b *recordingBuilder) SetOffset(n uint64)         { b.calls = append(b.calls, "offset") }

func TestPlanApplyOrder(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Book", SearchFieldSpec{{Path: ParsePath("title"), Mode: SearchLike}}, Input{
		Search:        "x",
		Filters:       []FilterDescriptor{filter("author.name", Equal, ScalarValue("a"))},
		SortColumn:    ParsePath("title"),
		SortDirection: Ascending,
		With:          "author",
		WithCount:     "publisher",
		Select:        []DottedPath{ParsePath("title")},
		Offset:        5,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b := &recordingBuilder{}
	plan.Apply(b)
	want := []string{
		"join:authors",
		"where:OR",
		"with:author",
		"count:publisher_count",
		"where:AND",
		"order:books.title",
		"columns",
		"limit",
		"offset",
	}
	if diff := cmp.Diff(want, b.calls); diff != "" {
		t.Fatalf("apply order mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileHasManyJoinsOnTargetKey(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	plan, err := c.Compile("Author", nil, Input{
		Filters: []FilterDescriptor{filter("books.pages", GreaterThan, ScalarValue("300"))},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []Join{{LeftTable: "authors", LeftColumn: "id", RightTable: "books", RightColumn: "author_id", Fanout: true}}
	if diff := cmp.Diff(want, plan.Joins); diff != "" {
		t.Fatalf("joins mismatch (-want +got):\n%s", diff)
	}
	if got := plan.Filters.Predicates[0]; got != (Comparison{Column: "books.pages", Operator: ">", Value: int64(300)}) {
		t.Fatalf("unexpected predicate: %+v", got)
	}
}

func TestCompileSelectKeepsEagerJoinKeys(t *testing.T) {
	c := newTestCompiler(PolicyPropagate)
	cases := []struct {
		entity string
		in     Input
		want   []string
	}{
		{"Book", Input{With: "author;publisher", Select: []DottedPath{ParsePath("title"), ParsePath("author_id")}},
			[]string{"books.title", "books.author_id", "books.publisher_id"}},
		{"Author", Input{With: "books;books.author", Select: []DottedPath{ParsePath("name")}},
			[]string{"authors.name", "authors.id"}},
		{"Book", Input{With: "author"}, nil},
	}
	for _, tc := range cases {
		plan, err := c.Compile(tc.entity, nil, tc.in)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if diff := cmp.Diff(tc.want, plan.Columns); diff != "" {
			t.Errorf("%s %q: columns mismatch (-want +got):\n%s", tc.entity, tc.in.With, diff)
		}
	}
}
