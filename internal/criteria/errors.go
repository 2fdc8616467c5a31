package criteria

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity is returned when the base entity is not known to the schema.
	ErrUnknownEntity = errors.New("criteria: unknown entity")

	// ErrUnknownRelation marks a path segment that does not resolve to a relation.
	// Clauses failing with it are dropped, never returned.
	ErrUnknownRelation = errors.New("criteria: unknown relation")

	// ErrInvalidValue marks a value that cannot be coerced to the column cast
	// or does not fit the shape the condition expects.
	ErrInvalidValue = errors.New("criteria: invalid value")

	// ErrMalformedRange marks a between/range value that does not have exactly two parts.
	ErrMalformedRange = errors.New("criteria: malformed range")

	// ErrInvalidColumn marks a path segment that is not a plain SQL identifier.
	// Clauses failing with it are dropped.
	ErrInvalidColumn = errors.New("criteria: invalid column name")

	// ErrUnknownCondition is returned by ParseCondition for keywords outside the enumeration.
	ErrUnknownCondition = errors.New("criteria: unknown condition")
)

// ClauseError ties a failure to the clause that produced it.
type ClauseError struct {
	Clause string // filter, sort, search, with, with_count, select
	Field  string
	Err    error
}

func (e *ClauseError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Clause, e.Field, e.Err)
}

func (e *ClauseError) Unwrap() error {
	return e.Err
}

// DroppedClause records a clause left out of a plan and why.
type DroppedClause struct {
	Clause string `json:"clause"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func dropped(err *ClauseError) DroppedClause {
	return DroppedClause{Clause: err.Clause, Field: err.Field, Reason: err.Err.Error()}
}
