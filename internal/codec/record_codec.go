package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"

	"github.com/yourdb-org/yourdb/pkg/record"
)

// CorruptPayloadError wraps any failure to decode a frame's payload — a
// non-trailing frame that fails this is, per spec.md §7, a CorruptFrame
// fatal to entity open.
type CorruptPayloadError struct {
	Op  OpTag
	Err error
}

func (e *CorruptPayloadError) Error() string {
	return fmt.Sprintf("codec: corrupt %s payload: %v", e.Op, e.Err)
}

func (e *CorruptPayloadError) Unwrap() error { return e.Err }

// wireField is the self-describing, per-field representation stored inside
// an INSERT payload: the field's own kind tag travels with its value so
// decode never has to guess or consult a schema. This matters for lazy
// upgrades (spec.md §4.1): a record decoded straight off the log may be
// several schema versions behind, with field kinds the current schema no
// longer uses for that name, and schema.Upgrade is what reconciles it —
// decode must hand back exactly what was written, not what the live schema
// now expects.
type wireField struct {
	Kind record.Kind     `json:"k"`
	Raw  json.RawMessage `json:"v"`
}

// EncodeInsert serializes a record for an INSERT frame. Layout:
// version:u32 LE | snappy(json(fields)), where fields maps each field name
// to a wireField. The version tag sits at a fixed offset recoverable
// without decoding the (possibly compressed) body, per spec.md §4.2's
// requirement that the codec expose the version without a full decode.
func EncodeInsert(rec record.Accessor) ([]byte, error) {
	raw := make(map[string]wireField, len(rec.Fields()))
	for _, f := range rec.Fields() {
		v, _ := rec.Get(f)
		enc, err := encodeScalar(v)
		if err != nil {
			return nil, fmt.Errorf("codec: marshal field %s: %w", f, err)
		}
		raw[f] = wireField{Kind: v.Kind(), Raw: enc}
	}
	j, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal record fields: %w", err)
	}
	compressed := snappy.Encode(nil, j)

	out := make([]byte, 4+len(compressed))
	binary.LittleEndian.PutUint32(out[0:4], uint32(rec.Version()))
	copy(out[4:], compressed)
	return out, nil
}

// PeekVersion reads the version tag out of an INSERT payload without
// decoding the record body.
func PeekVersion(payload []byte) (int, error) {
	if len(payload) < 4 {
		return 0, &CorruptPayloadError{Op: OpInsert, Err: fmt.Errorf("payload shorter than version prefix")}
	}
	return int(binary.LittleEndian.Uint32(payload[0:4])), nil
}

// DecodeInsert reverses EncodeInsert. It does not consult a schema: the
// fields it returns carry whatever kinds were written at encode time, and
// it is the caller's job (schema.Upgrade then record.Validate) to bring an
// old record in line with the current schema.
func DecodeInsert(payload []byte) (*record.Record, error) {
	version, err := PeekVersion(payload)
	if err != nil {
		return nil, err
	}
	j, err := snappy.Decode(nil, payload[4:])
	if err != nil {
		return nil, &CorruptPayloadError{Op: OpInsert, Err: fmt.Errorf("snappy decode: %w", err)}
	}

	var rawFields map[string]wireField
	if err := json.Unmarshal(j, &rawFields); err != nil {
		return nil, &CorruptPayloadError{Op: OpInsert, Err: fmt.Errorf("unmarshal fields: %w", err)}
	}

	fields := make(map[string]record.Value, len(rawFields))
	for name, wf := range rawFields {
		v, err := decodeScalar(wf.Kind, wf.Raw)
		if err != nil {
			return nil, &CorruptPayloadError{Op: OpInsert, Err: fmt.Errorf("field %s: %w", name, err)}
		}
		fields[name] = v
	}

	return record.FromFields(version, fields), nil
}

// EncodeDelete serializes a primary-key value for a DELETE frame. Layout:
// kind:u8 | json(scalar).
func EncodeDelete(pk record.Value) ([]byte, error) {
	j, err := encodeScalar(pk)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal delete key: %w", err)
	}
	out := make([]byte, 1+len(j))
	out[0] = byte(pk.Kind())
	copy(out[1:], j)
	return out, nil
}

// DecodeDelete reverses EncodeDelete.
func DecodeDelete(payload []byte) (record.Value, error) {
	if len(payload) < 1 {
		return record.Value{}, &CorruptPayloadError{Op: OpDelete, Err: fmt.Errorf("empty payload")}
	}
	kind := record.Kind(payload[0])
	v, err := decodeScalar(kind, payload[1:])
	if err != nil {
		return record.Value{}, &CorruptPayloadError{Op: OpDelete, Err: err}
	}
	return v, nil
}

func encodeScalar(v record.Value) ([]byte, error) {
	return json.Marshal(v.Raw())
}

func decodeScalar(kind record.Kind, raw []byte) (record.Value, error) {
	switch kind {
	case record.KindInt:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return record.Value{}, err
		}
		i, err := n.Int64()
		if err != nil {
			return record.Value{}, err
		}
		return record.IntValue(i), nil
	case record.KindFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return record.Value{}, err
		}
		return record.FloatValue(f), nil
	case record.KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return record.Value{}, err
		}
		return record.StringValue(s), nil
	case record.KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return record.Value{}, err
		}
		return record.BoolValue(b), nil
	default:
		return record.Value{}, fmt.Errorf("codec: unknown kind %d", kind)
	}
}
