package record

import "fmt"

// SchemaViolation reports a validation failure: a missing field, an extra
// field not declared by the schema, or a missing/null primary key.
type SchemaViolation struct {
	Field    string
	Expected string
	Got      string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("record: schema violation on field %q: expected %s, got %s", e.Field, e.Expected, e.Got)
}

// KindMismatch reports that a value's kind does not match the schema's (or
// a filter operand's) declared kind. There is no implicit widening between
// int and float (spec.md §4.1).
type KindMismatch struct {
	Field    string
	Expected Kind
	Got      Kind
}

func (e *KindMismatch) Error() string {
	return fmt.Sprintf("record: kind mismatch on field %q: expected %s, got %s", e.Field, e.Expected, e.Got)
}

// Validate checks rec against schema: every declared field must be present
// with a value of the declared kind, extra fields are rejected, and the
// primary-key field must be present and non-null (Go has no null Value, so
// "non-null" means present with a value of the correct kind).
func Validate(rec Accessor, schema *Schema) error {
	for _, field := range rec.Fields() {
		expected, declared := schema.Fields[field]
		if !declared {
			return &SchemaViolation{Field: field, Expected: "<not declared>", Got: "present"}
		}
		v, _ := rec.Get(field)
		if v.Kind() != expected {
			return &KindMismatch{Field: field, Expected: expected, Got: v.Kind()}
		}
	}
	for field, kind := range schema.Fields {
		v, present := rec.Get(field)
		if !present {
			return &SchemaViolation{Field: field, Expected: kind.String(), Got: "<missing>"}
		}
		if field == schema.PrimaryKey && v.Kind() == KindInvalid {
			return &SchemaViolation{Field: field, Expected: "non-null primary key", Got: "<null>"}
		}
	}
	pk, ok := rec.Get(schema.PrimaryKey)
	if !ok || pk.Kind() == KindInvalid {
		return &SchemaViolation{Field: schema.PrimaryKey, Expected: "non-null primary key", Got: "<missing>"}
	}
	return nil
}

// CoerceKind checks that v already has the expected kind. Per spec.md
// §4.1 there is no implicit widening: an int value presented where a float
// is expected (or vice versa) is a KindMismatch, not a conversion.
func CoerceKind(v Value, kind Kind) (Value, error) {
	if v.Kind() != kind {
		return Value{}, &KindMismatch{Expected: kind, Got: v.Kind()}
	}
	return v, nil
}
