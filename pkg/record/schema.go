package record

import (
	"fmt"
	"sort"
)

// UpgradeFunc transforms a record at version v into the shape expected at
// version v+1. It is supplied by the host (spec.md §3: "each step is an
// opaque transformation ... supplied by the host") and must not mutate its
// argument in place — callers pass it a clone.
type UpgradeFunc func(*Record) (*Record, error)

// Schema describes one entity: its declared fields, primary key, secondary
// indexes, and the chain of upgrades that bring an old record forward to
// the current version. Schema is immutable after entity creation except
// through RegisterUpgrade (spec.md §3).
type Schema struct {
	Name       string
	PrimaryKey string
	Fields     map[string]Kind
	Indexed    []string // secondary indexes only; PK is implicitly indexed

	version  int
	upgrades map[int]UpgradeFunc // keyed by from-version
}

// NewSchema validates and constructs a schema. The primary key must be one
// of the declared fields.
func NewSchema(name, primaryKey string, fields map[string]Kind, indexed []string) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("record: entity name must not be empty")
	}
	if _, ok := fields[primaryKey]; !ok {
		return nil, fmt.Errorf("record: primary key %q is not a declared field", primaryKey)
	}
	for _, f := range indexed {
		if _, ok := fields[f]; !ok {
			return nil, fmt.Errorf("record: indexed field %q is not a declared field", f)
		}
	}
	fieldsCopy := make(map[string]Kind, len(fields))
	for k, v := range fields {
		fieldsCopy[k] = v
	}
	indexedCopy := append([]string(nil), indexed...)
	return &Schema{
		Name:       name,
		PrimaryKey: primaryKey,
		Fields:     fieldsCopy,
		Indexed:    indexedCopy,
		version:    1,
		upgrades:   make(map[int]UpgradeFunc),
	}, nil
}

// Version returns the schema's current version.
func (s *Schema) Version() int { return s.version }

// IsIndexed reports whether field is a secondary index or the primary key.
func (s *Schema) IsIndexed(field string) bool {
	if field == s.PrimaryKey {
		return true
	}
	for _, f := range s.Indexed {
		if f == field {
			return true
		}
	}
	return false
}

// RegisterUpgrade appends the from_v -> from_v+1 step to the upgrade chain.
// Steps must be registered in order starting at 1 (spec.md §4.1: "consecutive
// versions must form a gapless chain 1→2→…→current"); registering step N
// requires steps 1..N-1 already present and implicitly advances the
// schema's current version to N+1.
func (s *Schema) RegisterUpgrade(fromVersion int, fn UpgradeFunc) error {
	if fromVersion != len(s.upgrades)+1 {
		return fmt.Errorf("record: upgrade chain broken: expected step from version %d, got %d", len(s.upgrades)+1, fromVersion)
	}
	s.upgrades[fromVersion] = fn
	if fromVersion+1 > s.version {
		s.version = fromVersion + 1
	}
	return nil
}

// UpgradeChainBrokenError is returned by Upgrade when a stored record's
// version has no reachable path to the schema's current version.
type UpgradeChainBrokenError struct {
	From, Missing int
}

func (e *UpgradeChainBrokenError) Error() string {
	return fmt.Sprintf("record: no upgrade registered from version %d (need step starting at %d)", e.From, e.Missing)
}

// Upgrade applies the registered upgrade chain to rec until it reaches the
// schema's current version. It never mutates rec; each step works on a
// clone. Lazy upgrade (spec.md's glossary): this runs in memory on read,
// never rewriting the log.
func (s *Schema) Upgrade(rec *Record) (*Record, error) {
	cur := rec
	for cur.Version() < s.version {
		step, ok := s.upgrades[cur.Version()]
		if !ok {
			return nil, &UpgradeChainBrokenError{From: rec.Version(), Missing: cur.Version()}
		}
		next, err := step(cur.Clone())
		if err != nil {
			return nil, fmt.Errorf("record: upgrade step %d->%d failed: %w", cur.Version(), cur.Version()+1, err)
		}
		next.SetVersion(cur.Version() + 1)
		cur = next
	}
	return cur, nil
}

// FieldOrder returns the schema's declared field names in a stable order,
// primary key first, then the rest lexically, independent of Go map
// iteration order.
func (s *Schema) FieldOrder() []string {
	rest := make([]string, 0, len(s.Fields))
	for f := range s.Fields {
		if f != s.PrimaryKey {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	return append([]string{s.PrimaryKey}, rest...)
}
