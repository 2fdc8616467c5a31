package criteria

import "strings"

type memSchema struct {
	entities  map[string]EntityMetadata
	relations map[string]RelationMetadata
}

func (s memSchema) Entity(name string) (EntityMetadata, bool) {
	e, ok := s.entities[name]
	return e, ok
}

func (s memSchema) Relation(entity, name string) (RelationMetadata, bool) {
	r, ok := s.relations[entity+"."+name]
	return r, ok
}

// library: Book belongs to Author and Publisher, Author belongs to Country
// and has many Books.
func library() memSchema {
	return memSchema{
		entities: map[string]EntityMetadata{
			"Book": {Name: "Book", Table: "books", PrimaryKey: "id", Casts: map[string]string{
				"price":    "float",
				"pages":    "int",
				"in_stock": "bool",
			}},
			"Author":    {Name: "Author", Table: "authors", PrimaryKey: "id"},
			"Publisher": {Name: "Publisher", Table: "publishers", PrimaryKey: "id"},
			"Country": {Name: "Country", Table: "countries", PrimaryKey: "id", Casts: map[string]string{
				"is_europe": "boolean",
			}},
		},
		relations: map[string]RelationMetadata{
			"Book.author":    {Name: "author", Target: "Author", JoinKey: "author_id", TargetPrimaryKey: "id", Kind: BelongsTo},
			"Book.publisher": {Name: "publisher", Target: "Publisher", JoinKey: "publisher_id", Kind: BelongsTo},
			"Author.country": {Name: "country", Target: "Country", JoinKey: "country_id", TargetPrimaryKey: "id", Kind: BelongsTo},
			"Author.books":   {Name: "books", Target: "Book", JoinKey: "author_id", Kind: HasMany},
			"Author.ghost":   {Name: "ghost", Target: "Ghost", JoinKey: "ghost_id"},
		},
	}
}

func filter(field string, cond ConditionKind, v Value) FilterDescriptor {
	return FilterDescriptor{Field: ParsePath(field), Condition: cond, Value: v}
}

func droppedFields(p *Plan) string {
	fields := make([]string, 0, len(p.Dropped))
	for _, d := range p.Dropped {
		fields = append(fields, d.Clause+":"+d.Field)
	}
	return strings.Join(fields, ",")
}
