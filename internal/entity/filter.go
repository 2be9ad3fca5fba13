// Package entity implements the Entity Engine of spec.md §4.6: the public
// CRUD and query surface that orchestrates the Record/Schema, Codec, Log
// Segment, Index Set, and Concurrency Gate into one per-entity object
// store.
package entity

import (
	"fmt"

	"github.com/yourdb-org/yourdb/pkg/record"
)

// Operator is one of the six comparison operators the operator-form filter
// grammar accepts (spec.md §6): $gt, $lt, $gte, $lte, $ne, $eq.
type Operator string

const (
	OpGt  Operator = "$gt"
	OpLt  Operator = "$lt"
	OpGte Operator = "$gte"
	OpLte Operator = "$lte"
	OpNe  Operator = "$ne"
	OpEq  Operator = "$eq"
)

func (o Operator) valid() bool {
	switch o {
	case OpGt, OpLt, OpGte, OpLte, OpNe, OpEq:
		return true
	default:
		return false
	}
}

// Condition is one top-level field constraint. Scalar is true for the
// `{field: value}` shorthand, which is index-eligible; it is false for the
// explicit `{field: {op: value}}` operator form, which always requires a
// full scan — even when op is $eq and field is indexed (spec.md §4.6).
type Condition struct {
	Field  string
	Scalar bool
	Op     Operator
	Value  record.Value
}

// Filter is a set of top-level field conditions, AND-combined. A Filter
// with no conditions matches every record (spec.md §4.6's "None" case).
type Filter struct {
	Conditions []Condition
}

// New returns an empty filter matching every record.
func New() *Filter {
	return &Filter{}
}

// Eq adds a scalar equality condition eligible for an index lookup.
func (f *Filter) Eq(field string, value record.Value) *Filter {
	f.Conditions = append(f.Conditions, Condition{Field: field, Scalar: true, Value: value})
	return f
}

// Where adds an operator-form condition, always evaluated by full scan.
func (f *Filter) Where(field string, op Operator, value record.Value) *Filter {
	f.Conditions = append(f.Conditions, Condition{Field: field, Op: op, Value: value})
	return f
}

// IsEmpty reports whether the filter has no conditions (matches everything).
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.Conditions) == 0
}

// matches evaluates every condition against rec, AND-combined.
func (f *Filter) matches(rec record.Accessor) (bool, error) {
	if f.IsEmpty() {
		return true, nil
	}
	for _, c := range f.Conditions {
		ok, err := evaluateCondition(rec, c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evaluateCondition(rec record.Accessor, c Condition) (bool, error) {
	fv, ok := rec.Get(c.Field)
	if !ok {
		return false, nil
	}
	if c.Scalar {
		return fv.Equal(c.Value), nil
	}
	if !c.Op.valid() {
		return false, fmt.Errorf("entity: unknown operator %q", c.Op)
	}
	cmp, err := fv.Compare(c.Value)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGte:
		return cmp >= 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLte:
		return cmp <= 0, nil
	default:
		return false, nil
	}
}
