// Package index implements the in-memory Index Set of spec.md §4.4: a
// primary map (pk -> record) plus one ordered map per declared secondary
// index (field value -> set of pk), maintained in lockstep with mutations
// to the live record set.
//
// Storage for both the primary map and each secondary map is a
// github.com/google/btree.BTree rather than a plain Go map, grounded on
// abhi3114-glitch-ShardDB's internal/storage/memory.go (MemoryStore wraps
// btree.New(32) with an Item implementing Less). The ordering this buys is
// purely internal determinism — scan() and the compactor's snapshot walk
// the primary map in primary-key order instead of Go's randomized map
// order — it does not change select()'s documented planning behavior:
// operator-form predicates still force a full scan even over an indexed
// field, exactly as spec.md §4.6 requires.
package index

import (
	"github.com/google/btree"

	"github.com/yourdb-org/yourdb/internal/errs"
	"github.com/yourdb-org/yourdb/pkg/record"
)

const treeDegree = 32

type primaryItem struct {
	pkKey string
	rec   *record.Record
}

func (a *primaryItem) Less(than btree.Item) bool {
	return a.pkKey < than.(*primaryItem).pkKey
}

// secondaryItem keys are "<value-canonical-key>\x00<pk-canonical-key>" so
// that AscendRange over a fixed value prefix enumerates every pk in that
// bucket in pk order. The separator byte 0x00 is lower than every byte a
// record.Value.CanonicalKey() can produce (canonical keys start with a
// kind letter and ':'), so a bucket's range never bleeds into the next.
type secondaryItem struct {
	compositeKey string
	pkKey        string
}

func (a *secondaryItem) Less(than btree.Item) bool {
	return a.compositeKey < than.(*secondaryItem).compositeKey
}

// Set is the live Index Set for one entity.
type Set struct {
	schema    *record.Schema
	primary   *btree.BTree
	secondary map[string]*btree.BTree
}

// New builds an empty Index Set for schema.
func New(schema *record.Schema) *Set {
	s := &Set{
		schema:    schema,
		primary:   btree.New(treeDegree),
		secondary: make(map[string]*btree.BTree, len(schema.Indexed)),
	}
	for _, field := range schema.Indexed {
		s.secondary[field] = btree.New(treeDegree)
	}
	return s
}

func bucketKey(valueKey string) (lo, hi *secondaryItem) {
	return &secondaryItem{compositeKey: valueKey + "\x00"}, &secondaryItem{compositeKey: valueKey + "\x01"}
}

// Insert adds rec, keyed by its primary-key field, to the primary map and
// every declared secondary index. It fails with errs.DuplicatePrimaryKey if
// the pk is already present.
func (s *Set) Insert(rec *record.Record) error {
	pkVal, ok := rec.Get(s.schema.PrimaryKey)
	if !ok {
		return errs.SchemaViolation("record missing primary key " + s.schema.PrimaryKey)
	}
	pkKey := pkVal.CanonicalKey()
	if s.primary.Has(&primaryItem{pkKey: pkKey}) {
		return errs.DuplicatePrimaryKey(pkKey)
	}
	s.primary.ReplaceOrInsert(&primaryItem{pkKey: pkKey, rec: rec})
	for _, field := range s.schema.Indexed {
		v, ok := rec.Get(field)
		if !ok {
			continue
		}
		composite := v.CanonicalKey() + "\x00" + pkKey
		s.secondary[field].ReplaceOrInsert(&secondaryItem{compositeKey: composite, pkKey: pkKey})
	}
	return nil
}

// Remove deletes the record under pk from the primary map and every
// secondary index, returning the record that was removed. It fails with
// errs.NotFound if pk is absent.
func (s *Set) Remove(pk record.Value) (*record.Record, error) {
	pkKey := pk.CanonicalKey()
	item := s.primary.Get(&primaryItem{pkKey: pkKey})
	if item == nil {
		return nil, errs.NotFound(pkKey)
	}
	old := item.(*primaryItem).rec
	s.primary.Delete(&primaryItem{pkKey: pkKey})
	for _, field := range s.schema.Indexed {
		v, ok := old.Get(field)
		if !ok {
			continue
		}
		composite := v.CanonicalKey() + "\x00" + pkKey
		s.secondary[field].Delete(&secondaryItem{compositeKey: composite})
	}
	return old, nil
}

// Replace atomically swaps the record under pk for updated, keeping pk
// fixed; used by update() where the pk is invariant across the transform.
// It fails with errs.NotFound if pk is absent.
func (s *Set) Replace(pk record.Value, updated *record.Record) error {
	if _, err := s.Remove(pk); err != nil {
		return err
	}
	return s.Insert(updated)
}

// Get returns the live record under pk, if any.
func (s *Set) Get(pk record.Value) (*record.Record, bool) {
	item := s.primary.Get(&primaryItem{pkKey: pk.CanonicalKey()})
	if item == nil {
		return nil, false
	}
	return item.(*primaryItem).rec, true
}

// GetByCanonicalKey returns the live record whose primary key's canonical
// key (record.Value.CanonicalKey) is pkKey, as returned by Lookup.
func (s *Set) GetByCanonicalKey(pkKey string) (*record.Record, bool) {
	item := s.primary.Get(&primaryItem{pkKey: pkKey})
	if item == nil {
		return nil, false
	}
	return item.(*primaryItem).rec, true
}

// IsIndexed reports whether field has a secondary index.
func (s *Set) IsIndexed(field string) bool {
	_, ok := s.secondary[field]
	return ok
}

// Lookup returns the primary keys in the bucket for field=value, in pk
// order. The field must be indexed; callers should check IsIndexed first.
func (s *Set) Lookup(field string, value record.Value) []string {
	tree, ok := s.secondary[field]
	if !ok {
		return nil
	}
	lo, hi := bucketKey(value.CanonicalKey())
	var pks []string
	tree.AscendRange(lo, hi, func(i btree.Item) bool {
		pks = append(pks, i.(*secondaryItem).pkKey)
		return true
	})
	return pks
}

// BucketSize is the number of pks sharing value in field's index, used by
// the query planner's smallest-bucket tie-break (spec.md §4.6).
func (s *Set) BucketSize(field string, value record.Value) int {
	tree, ok := s.secondary[field]
	if !ok {
		return 0
	}
	lo, hi := bucketKey(value.CanonicalKey())
	n := 0
	tree.AscendRange(lo, hi, func(btree.Item) bool { n++; return true })
	return n
}

// Scan returns every live record, in primary-key order.
func (s *Set) Scan() []*record.Record {
	recs := make([]*record.Record, 0, s.primary.Len())
	s.primary.Ascend(func(i btree.Item) bool {
		recs = append(recs, i.(*primaryItem).rec)
		return true
	})
	return recs
}

// Len returns the number of live records.
func (s *Set) Len() int {
	return s.primary.Len()
}
