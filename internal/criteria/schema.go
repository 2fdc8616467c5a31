package criteria

// RelationKind decides which side of a join carries the key.
type RelationKind string

const (
	BelongsTo RelationKind = "belongs_to"
	HasOne    RelationKind = "has_one"
	HasMany   RelationKind = "has_many"
)

// EntityMetadata describes one entity as seen by the compiler.
type EntityMetadata struct {
	Name       string
	Table      string
	PrimaryKey string
	Casts      map[string]string
}

// PK returns the primary key column, "id" when none is declared.
func (e EntityMetadata) PK() string {
	if e.PrimaryKey == "" {
		return "id"
	}
	return e.PrimaryKey
}

// CastOf returns the declared cast of a column or "".
func (e EntityMetadata) CastOf(column string) string {
	return e.Casts[column]
}

// RelationMetadata describes a named relation from one entity to another.
//
// For belongs_to, JoinKey lives on the owning entity and points at
// TargetPrimaryKey. For has_one/has_many, JoinKey lives on the target and
// points at the owner's primary key.
type RelationMetadata struct {
	Name             string
	Target           string
	JoinKey          string
	TargetPrimaryKey string
	Kind             RelationKind
}

func (r RelationMetadata) targetPK() string {
	if r.TargetPrimaryKey == "" {
		return "id"
	}
	return r.TargetPrimaryKey
}

// Schema is the read-only metadata source the compiler runs against.
type Schema interface {
	Entity(name string) (EntityMetadata, bool)
	Relation(entity, name string) (RelationMetadata, bool)
}
