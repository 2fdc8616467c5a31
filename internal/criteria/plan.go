package criteria

// Join is one LEFT JOIN: RightTable is joined on
// LeftTable.LeftColumn = RightTable.RightColumn.
type Join struct {
	LeftTable   string
	LeftColumn  string
	RightTable  string
	RightColumn string
	Fanout      bool // has_one/has_many: base rows may repeat
}

// Predicate is a node of the compiled predicate tree.
type Predicate interface {
	predicate()
}

// Comparison is "Column Operator Value".
type Comparison struct {
	Column   string
	Operator string
	Value    any
}

// NullCheck is "Column IS [NOT] NULL".
type NullCheck struct {
	Column string
	Not    bool
}

// Range is "Column BETWEEN Low AND High".
type Range struct {
	Column    string
	Low, High any
}

// Membership is "Column IN (Values...)".
type Membership struct {
	Column string
	Values []any
}

// FoldedLike is a case-insensitive "LOWER(Column) LIKE LOWER(Pattern)".
type FoldedLike struct {
	Column  string
	Pattern string
}

// Group combines predicates with one combinator.
type Group struct {
	Combinator Combinator
	Predicates []Predicate
}

func (Comparison) predicate() {}
func (NullCheck) predicate()  {}
func (Range) predicate()      {}
func (Membership) predicate() {}
func (FoldedLike) predicate() {}
func (Group) predicate()      {}

// Empty reports whether the group has nothing to emit.
func (g Group) Empty() bool { return len(g.Predicates) == 0 }

// Order is a single ORDER BY key.
type Order struct {
	Column    string
	Direction Direction
}

// EagerCount counts rows of Table where Table.Column = ParentTable.ParentColumn,
// exposed as Alias.
type EagerCount struct {
	Relation     string
	Alias        string
	Table        string
	Column       string
	ParentTable  string
	ParentColumn string
}

// Plan is the compiled form of one Input. It is not mutated after Compile returns.
type Plan struct {
	Entity      EntityMetadata
	Joins       []Join
	Search      Group
	Filters     Group
	Order       *Order
	EagerLoads  []DottedPath
	EagerCounts []EagerCount
	Columns     []string
	Limit       uint64
	Offset      uint64
	Dropped     []DroppedClause
}

// Builder is the capability set a query engine exposes to receive a plan.
type Builder interface {
	AddJoin(Join)
	AddPredicate(Group)
	AddOrder(Order)
	AddEagerLoad(path DottedPath)
	AddEagerCount(EagerCount)
	SetColumns(columns []string)
	SetLimit(n uint64)
	SetOffset(n uint64)
}

// Apply replays the plan into b in compilation order. Joins go first since
// every later clause may reference them.
func (p *Plan) Apply(b Builder) {
	for _, j := range p.Joins {
		b.AddJoin(j)
	}
	if !p.Search.Empty() {
		b.AddPredicate(p.Search)
	}
	for _, path := range p.EagerLoads {
		b.AddEagerLoad(path)
	}
	for _, c := range p.EagerCounts {
		b.AddEagerCount(c)
	}
	if !p.Filters.Empty() {
		b.AddPredicate(p.Filters)
	}
	if p.Order != nil {
		b.AddOrder(*p.Order)
	}
	if len(p.Columns) > 0 {
		b.SetColumns(p.Columns)
	}
	if p.Limit > 0 {
		b.SetLimit(p.Limit)
	}
	if p.Offset > 0 {
		b.SetOffset(p.Offset)
	}
}
