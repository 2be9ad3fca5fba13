package record

import "sort"

// Accessor is the field-access contract the storage engine requires of a
// record. spec.md's design notes (§9) call for keeping record access behind
// a small accessor interface so that a richer host-object serializer could
// be substituted later without touching the engine; Record is the concrete,
// map-backed implementation the engine uses by default.
type Accessor interface {
	Get(field string) (Value, bool)
	Set(field string, v Value)
	Fields() []string
	Version() int
	SetVersion(version int)
}

// Record is an ordered mapping from field name to Value plus a schema
// version tag. The default version is 1, matching spec.md §3.
type Record struct {
	version int
	fields  map[string]Value
}

var _ Accessor = (*Record)(nil)

// New creates an empty record at version 1.
func New() *Record {
	return &Record{version: 1, fields: make(map[string]Value)}
}

// NewWithVersion creates an empty record at the given version.
func NewWithVersion(version int) *Record {
	return &Record{version: version, fields: make(map[string]Value)}
}

// FromFields builds a record from an existing field map, taking ownership of
// it (callers should not mutate the map afterward).
func FromFields(version int, fields map[string]Value) *Record {
	if fields == nil {
		fields = make(map[string]Value)
	}
	return &Record{version: version, fields: fields}
}

func (r *Record) Get(field string) (Value, bool) {
	v, ok := r.fields[field]
	return v, ok
}

func (r *Record) Set(field string, v Value) {
	r.fields[field] = v
}

// Fields returns the declared field names in lexical order, so callers that
// print or hash a record get a deterministic result.
func (r *Record) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Record) Version() int { return r.version }

func (r *Record) SetVersion(version int) { r.version = version }

// Clone returns a deep copy. The engine hands clones to callers so that
// mutating a returned record never corrupts the Index Set (spec.md §4.4:
// "callers receive shallow clones" — Value is immutable and copied by
// value, so a field-for-field copy of the map is already a full clone).
func (r *Record) Clone() *Record {
	fields := make(map[string]Value, len(r.fields))
	for k, v := range r.fields {
		fields[k] = v
	}
	return &Record{version: r.version, fields: fields}
}
