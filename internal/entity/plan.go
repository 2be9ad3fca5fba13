package entity

import (
	"fmt"

	"github.com/yourdb-org/yourdb/internal/index"
	"github.com/yourdb-org/yourdb/pkg/record"
)

// checkFilterKinds validates that every condition's operand kind matches
// its field's declared kind, per spec.md §7's KindMismatch: "a filter
// operand's kind does not match the field kind; operation not performed."
// A condition on a field the schema does not declare is left for matches
// to resolve (it simply never matches, since Get on a well-formed record
// never returns that field).
func checkFilterKinds(schema *record.Schema, filter *Filter) error {
	if filter.IsEmpty() {
		return nil
	}
	for _, c := range filter.Conditions {
		declared, ok := schema.Fields[c.Field]
		if !ok {
			continue
		}
		if c.Value.Kind() != declared {
			return fmt.Errorf("entity: field %s expects kind %s, got %s", c.Field, declared, c.Value.Kind())
		}
	}
	return nil
}

// planResult describes how a filter was resolved, for the query-stats test
// hook (spec.md §8 property: "index accelerates query," observable via a
// test hook per S2).
type planResult struct {
	records      []*record.Record
	usedIndex    bool
	indexField   string
	candidateLen int // size of the seed plan chose, before per-condition filtering
}

// plan resolves filter against idx, choosing an index-lookup seed when
// possible and falling back to a full scan otherwise, per spec.md §4.6:
//
//   - nil/empty filter: full scan, every live record.
//   - a scalar condition on an indexed field: seed from that field's
//     bucket; when more than one scalar condition is indexed, the smallest
//     bucket is chosen.
//   - otherwise (only non-indexed scalars, or only operator-form
//     conditions): full scan.
//
// Every condition — including the one that produced the seed — is then
// re-evaluated against the seed, so the result is always exactly "all live
// records matching every condition," regardless of which path produced the
// seed.
func plan(schema *record.Schema, idx *index.Set, filter *Filter) (planResult, error) {
	if filter.IsEmpty() {
		seed := idx.Scan()
		return planResult{records: seed, candidateLen: len(seed)}, nil
	}
	if err := checkFilterKinds(schema, filter); err != nil {
		return planResult{}, err
	}

	bestField := ""
	bestValue := record.Value{}
	bestSize := -1
	for _, c := range filter.Conditions {
		if !c.Scalar || !schema.IsIndexed(c.Field) {
			continue
		}
		size := bucketSize(schema, idx, c.Field, c.Value)
		if bestSize == -1 || size < bestSize {
			bestSize = size
			bestField = c.Field
			bestValue = c.Value
		}
	}

	var seed []*record.Record
	usedIndex := bestSize != -1
	if usedIndex {
		seed = recordsForBucket(schema, idx, bestField, bestValue)
	} else {
		seed = idx.Scan()
	}

	matched := make([]*record.Record, 0, len(seed))
	for _, rec := range seed {
		ok, err := filter.matches(rec)
		if err != nil {
			return planResult{}, err
		}
		if ok {
			matched = append(matched, rec)
		}
	}

	return planResult{records: matched, usedIndex: usedIndex, indexField: bestField, candidateLen: len(seed)}, nil
}

// bucketSize reports how many live records share field=value. The primary
// key has no secondary bucket of its own — a pk lookup is either 0 or 1 —
// so it is handled directly against the primary map.
func bucketSize(schema *record.Schema, idx *index.Set, field string, value record.Value) int {
	if field == schema.PrimaryKey {
		if _, ok := idx.Get(value); ok {
			return 1
		}
		return 0
	}
	return idx.BucketSize(field, value)
}

// recordsForBucket resolves an indexed field's bucket back to live records.
func recordsForBucket(schema *record.Schema, idx *index.Set, field string, value record.Value) []*record.Record {
	if field == schema.PrimaryKey {
		if rec, ok := idx.Get(value); ok {
			return []*record.Record{rec}
		}
		return nil
	}
	pks := idx.Lookup(field, value)
	recs := make([]*record.Record, 0, len(pks))
	for _, pk := range pks {
		rec, ok := idx.GetByCanonicalKey(pk)
		if ok {
			recs = append(recs, rec)
		}
	}
	return recs
}
