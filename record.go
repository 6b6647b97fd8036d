package tabular

import "strings"

// Field is a single named value within a record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered mapping from field name to value. Field order is
// preserved and significant for fingerprinting and serialization. Records
// are treated as immutable: mutating methods return a fresh copy.
type Record []Field

// NewRecord builds a record from fields in order.
func NewRecord(fields ...Field) Record {
	return Record(fields)
}

// Get returns the value for a field name. Lookup is linear: records are
// expected to stay narrow.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether a field with the given name exists.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the field names in record order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Set returns a copy with the named field replaced, or appended if absent.
func (r Record) Set(name string, v Value) Record {
	out := r.Clone()
	for i := range out {
		if out[i].Name == name {
			out[i].Value = v
			return out
		}
	}
	return append(out, Field{Name: name, Value: v})
}

// Delete returns a copy without the named field. Deleting an absent field
// is a no-op copy.
func (r Record) Delete(name string) Record {
	out := make(Record, 0, len(r))
	for _, f := range r {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}

// Rename returns a copy with the field renamed in place, preserving order.
func (r Record) Rename(oldName, newName string) Record {
	out := r.Clone()
	for i := range out {
		if out[i].Name == oldName {
			out[i].Name = newName
		}
	}
	return out
}

// Clone returns a shallow copy of the record. Field values are shared;
// values themselves are immutable by convention.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// Equal reports whether two records have identical fields in identical order.
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i].Name != o[i].Name || !r[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

// String renders the record for debugging.
func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

// normalize converts the record to an ordered pair list for canonical
// encoding. A plain map would lose field order.
func (r Record) normalize() any {
	out := make([]any, len(r))
	for i, f := range r {
		out[i] = []any{f.Name, f.Value.normalize()}
	}
	return out
}

// flatten expands nested record fields into dotted names, depth first.
func (r Record) flatten(prefix string) Record {
	out := make(Record, 0, len(r))
	for _, f := range r {
		name := f.Name
		if prefix != "" {
			name = prefix + "." + f.Name
		}
		if nested, ok := f.Value.RecordValue(); ok {
			out = append(out, nested.flatten(name)...)
			continue
		}
		out = append(out, Field{Name: name, Value: f.Value})
	}
	return out
}
