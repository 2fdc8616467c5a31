// Package request decodes the JSON body of index, count and compile calls.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"RequestCriteria/internal/criteria"
)

// Filter is one entry of the "filters" array.
type Filter struct {
	Field     string          `json:"field"`
	Condition string          `json:"condition"`
	Value     json.RawMessage `json:"value"`
}

// Request is the wire shape shared by every endpoint.
type Request struct {
	Model         string   `json:"model"`
	Search        string   `json:"search"`
	Filters       []Filter `json:"filters"`
	SearchJoin    string   `json:"searchJoin"`
	SortColumn    string   `json:"sortColumn"`
	SortDirection string   `json:"sortDirection"`
	With          string   `json:"with"`
	WithCount     string   `json:"withCount"`
	Select        string   `json:"select"` // comma-separated
	Limit         uint64   `json:"limit"`
	Offset        uint64   `json:"offset"`
}

// Decode reads a single request object from r.
func Decode(r io.Reader) (Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	req.Model = strings.TrimSpace(req.Model)
	return req, nil
}

// Input converts the wire request into compiler input. Filters with an empty
// field are skipped. An unknown condition or an unusable value fails the
// whole request.
func (r Request) Input() (criteria.Input, error) {
	in := criteria.Input{
		Search:     strings.TrimSpace(r.Search),
		FilterJoin: criteria.ParseCombinator(r.SearchJoin),
		SortColumn: criteria.ParsePath(r.SortColumn),
		With:       r.With,
		WithCount:  r.WithCount,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
	// A missing or unknown direction leaves the sort unset.
	if dir, ok := criteria.ParseDirection(r.SortDirection); ok {
		in.SortDirection = dir
	}
	for _, col := range strings.Split(r.Select, ",") {
		if path := criteria.ParsePath(col); path != nil {
			in.Select = append(in.Select, path)
		}
	}

	for _, f := range r.Filters {
		field := criteria.ParsePath(f.Field)
		if field == nil {
			continue
		}
		cond, err := criteria.ParseCondition(f.Condition)
		if err != nil {
			return criteria.Input{}, &criteria.ClauseError{Clause: "filter", Field: f.Field, Err: err}
		}
		val, err := DecodeValue(f.Value)
		if err != nil {
			return criteria.Input{}, &criteria.ClauseError{Clause: "filter", Field: f.Field, Err: err}
		}
		in.Filters = append(in.Filters, criteria.FilterDescriptor{Field: field, Condition: cond, Value: val})
	}
	return in, nil
}

// DecodeValue maps a raw JSON value onto the compiler's value union:
// missing or null is absent, an array is a list and anything else scalar.
// Numbers become int64 when integral and float64 otherwise.
func DecodeValue(raw json.RawMessage) (criteria.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return criteria.AbsentValue(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return criteria.Value{}, fmt.Errorf("%w: %v", criteria.ErrInvalidValue, err)
	}

	switch v := v.(type) {
	case nil:
		return criteria.AbsentValue(), nil
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			s, err := scalar(item)
			if err != nil {
				return criteria.Value{}, err
			}
			items[i] = s
		}
		return criteria.ListValue(items...), nil
	}
	s, err := scalar(v)
	if err != nil {
		return criteria.Value{}, err
	}
	return criteria.ScalarValue(s), nil
}

func scalar(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", criteria.ErrInvalidValue, err)
		}
		return f, nil
	case string, bool, nil:
		return v, nil
	}
	return nil, fmt.Errorf("%w: nested %T not supported", criteria.ErrInvalidValue, v)
}
