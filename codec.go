package tabular

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache payloads are msgpack-encoded. The wire structs keep the tagged value
// union and record field order intact across a round trip; field order is
// part of a record's identity.

type wireValue struct {
	Kind  uint8       `msgpack:"k"`
	Bool  bool        `msgpack:"b,omitempty"`
	Int   int64       `msgpack:"i,omitempty"`
	Float float64     `msgpack:"f,omitempty"`
	Str   string      `msgpack:"s,omitempty"`
	Bytes []byte      `msgpack:"y,omitempty"`
	List  []wireValue `msgpack:"l,omitempty"`
	Rec   []wireField `msgpack:"r,omitempty"`
}

type wireField struct {
	Name  string    `msgpack:"n"`
	Value wireValue `msgpack:"v"`
}

type wirePayload struct {
	Records     [][]wireField    `msgpack:"records"`
	Schema      map[string]uint8 `msgpack:"schema,omitempty"`
	Fingerprint []byte           `msgpack:"fingerprint,omitempty"`
}

func toWireValue(v Value) wireValue {
	w := wireValue{Kind: uint8(v.Kind())}
	switch v.Kind() {
	case KindBool:
		w.Bool, _ = v.Bool()
	case KindInt:
		w.Int, _ = v.Int()
	case KindFloat:
		w.Float, _ = v.Float()
	case KindString:
		w.Str, _ = v.Str()
	case KindBytes:
		w.Bytes, _ = v.BytesValue()
	case KindList:
		list, _ := v.ListValue()
		w.List = make([]wireValue, len(list))
		for i, e := range list {
			w.List[i] = toWireValue(e)
		}
	case KindRecord:
		rec, _ := v.RecordValue()
		w.Rec = toWireRecord(rec)
	}
	return w
}

func fromWireValue(w wireValue) (Value, error) {
	switch Kind(w.Kind) {
	case KindNull:
		return Null(), nil
	case KindBool:
		return Bool(w.Bool), nil
	case KindInt:
		return Int(w.Int), nil
	case KindFloat:
		return Float(w.Float), nil
	case KindString:
		return String(w.Str), nil
	case KindBytes:
		return Bytes(w.Bytes), nil
	case KindList:
		list := make([]Value, len(w.List))
		for i, e := range w.List {
			v, err := fromWireValue(e)
			if err != nil {
				return Value{}, err
			}
			list[i] = v
		}
		return List(list...), nil
	case KindRecord:
		rec, err := fromWireRecord(w.Rec)
		if err != nil {
			return Value{}, err
		}
		return Nested(rec), nil
	}
	return Value{}, fmt.Errorf("unknown value kind tag %d", w.Kind)
}

func toWireRecord(r Record) []wireField {
	out := make([]wireField, len(r))
	for i, f := range r {
		out[i] = wireField{Name: f.Name, Value: toWireValue(f.Value)}
	}
	return out
}

func fromWireRecord(fields []wireField) (Record, error) {
	out := make(Record, len(fields))
	for i, f := range fields {
		v, err := fromWireValue(f.Value)
		if err != nil {
			return nil, err
		}
		out[i] = Field{Name: f.Name, Value: v}
	}
	return out, nil
}

// encodeDataset serializes a dataset's records, schema, and fingerprint
// into a cache payload.
func encodeDataset(d *Dataset) ([]byte, error) {
	p := wirePayload{Records: make([][]wireField, len(d.records))}
	for i, r := range d.records {
		p.Records[i] = toWireRecord(r)
	}
	if d.schema != nil {
		p.Schema = make(map[string]uint8, len(d.schema))
		for name, kind := range d.schema {
			p.Schema[name] = uint8(kind)
		}
	}
	if !d.fp.IsZero() {
		p.Fingerprint = d.fp[:]
	}

	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset payload: %w", err)
	}
	return b, nil
}

// decodeDataset reverses encodeDataset. Any decode failure means a corrupt
// payload; callers treat it as a cache miss.
func decodeDataset(b []byte) (*Dataset, error) {
	var p wirePayload
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("failed to decode dataset payload: %w", err)
	}

	records := make([]Record, len(p.Records))
	for i, fields := range p.Records {
		r, err := fromWireRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", i, err)
		}
		records[i] = r
	}

	d := &Dataset{records: records}
	if p.Schema != nil {
		d.schema = make(Schema, len(p.Schema))
		for name, kind := range p.Schema {
			d.schema[name] = Kind(kind)
		}
	}
	if len(p.Fingerprint) == len(d.fp) {
		copy(d.fp[:], p.Fingerprint)
	}
	return d, nil
}
