package tabular

import (
	"fmt"
	"math"
	"strconv"
)

// Schema maps field names to their expected kinds. Schemas are optional:
// they drive validation and casting only, never transformation correctness.
type Schema map[string]Kind

// InferSchema derives a schema from the records it is given. The first
// non-null kind seen for a field wins; fields that never carry a non-null
// value infer as null.
func InferSchema(records []Record) Schema {
	s := make(Schema)
	for _, r := range records {
		for _, f := range r {
			if k, seen := s[f.Name]; !seen || (k == KindNull && f.Value.Kind() != KindNull) {
				s[f.Name] = f.Value.Kind()
			}
		}
	}
	return s
}

// Validate checks a record against the schema. Fields absent from the
// schema are ignored; null values satisfy any kind. All mismatches are
// collected into a single SchemaError.
func (s Schema) Validate(r Record) error {
	var errs []error
	for _, f := range r {
		want, ok := s[f.Name]
		if !ok {
			continue
		}
		if got := f.Value.Kind(); got != want && got != KindNull {
			errs = append(errs, fmt.Errorf("field %q: have %s, want %s", f.Name, got, want))
		}
	}
	return newSchemaError(errs)
}

// Equal reports whether two schemas describe the same fields. Two nil
// schemas are equal; nil never equals non-nil.
func (s Schema) Equal(o Schema) bool {
	if (s == nil) != (o == nil) || len(s) != len(o) {
		return false
	}
	for k, v := range s {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns a copy of the schema.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// castValue converts a value to the target kind. Null casts to null for any
// target. Lossy or meaningless conversions return ErrCast; silent clamping
// would hide contract violations.
func castValue(v Value, target Kind) (Value, error) {
	if v.Kind() == target || v.IsNull() {
		return v, nil
	}
	switch target {
	case KindInt:
		switch v.Kind() {
		case KindFloat:
			f, _ := v.Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
				return Value{}, fmt.Errorf("%w: float %v to int", ErrCast, f)
			}
			return Int(int64(f)), nil
		case KindBool:
			if b, _ := v.Bool(); b {
				return Int(1), nil
			}
			return Int(0), nil
		case KindString:
			s, _ := v.Str()
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: string %q to int", ErrCast, s)
			}
			return Int(n), nil
		}
	case KindFloat:
		switch v.Kind() {
		case KindInt:
			n, _ := v.Int()
			return Float(float64(n)), nil
		case KindString:
			s, _ := v.Str()
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: string %q to float", ErrCast, s)
			}
			return Float(f), nil
		}
	case KindString:
		switch v.Kind() {
		case KindInt:
			n, _ := v.Int()
			return String(strconv.FormatInt(n, 10)), nil
		case KindFloat:
			f, _ := v.Float()
			return String(strconv.FormatFloat(f, 'g', -1, 64)), nil
		case KindBool:
			b, _ := v.Bool()
			return String(strconv.FormatBool(b)), nil
		case KindBytes:
			b, _ := v.BytesValue()
			return String(string(b)), nil
		}
	case KindBool:
		if v.Kind() == KindInt {
			n, _ := v.Int()
			switch n {
			case 0:
				return Bool(false), nil
			case 1:
				return Bool(true), nil
			}
			return Value{}, fmt.Errorf("%w: int %d to bool", ErrCast, n)
		}
	case KindBytes:
		if v.Kind() == KindString {
			s, _ := v.Str()
			return Bytes([]byte(s)), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %s to %s", ErrCast, v.Kind(), target)
}
