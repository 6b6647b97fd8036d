package tabular

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"runtime"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Fingerprint is an opaque 256-bit content/operation digest used as a cache
// key component. The zero value means "absent".
type Fingerprint [sha256.Size]byte

// String renders the fingerprint as lowercase hex.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether the fingerprint is absent.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// ParseFingerprint parses a lowercase-hex fingerprint as rendered by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("%w: bad fingerprint %q: %v", ErrInvalidArgument, s, err)
	}
	if len(b) != len(f) {
		return f, fmt.Errorf("%w: bad fingerprint length %d", ErrInvalidArgument, len(b))
	}
	copy(f[:], b)
	return f, nil
}

// fingerprintEnc is the canonical encoder: RFC 8949 Core Deterministic CBOR,
// so identical logical inputs always serialize to identical bytes.
var fingerprintEnc cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("tabular: cbor enc mode: %v", err))
	}
	fingerprintEnc = em
}

// fingerprintSampleSize bounds how many records FingerprintFromDataset reads
// from each end of a dataset.
const fingerprintSampleSize = 100

// GenerateFingerprint computes the fingerprint of an operation applied with
// the given arguments and options. It is pure: the same inputs always yield
// the same fingerprint. Function-typed arguments are represented by their
// runtime symbol name only - a coarse token that does not distinguish two
// closures compiled to the same symbol. See Dataset.Map for the cache-key
// consequences.
func GenerateFingerprint(op string, args []any, options map[string]string) (Fingerprint, error) {
	normArgs := make([]any, len(args))
	for i, a := range args {
		normArgs[i] = normalizeArg(a)
	}

	// Options sorted by key.
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]any, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, []any{k, options[k]})
	}

	return canonicalDigest([]any{op, normArgs, opts})
}

// FingerprintFromDataset fingerprints a dataset by content. Large datasets
// are sampled: the first and last fingerprintSampleSize records plus the
// total count. Two datasets agreeing on both edges and length hash alike
// even if their interiors differ - an accepted O(1) trade-off.
func FingerprintFromDataset(d *Dataset) (Fingerprint, error) {
	n := len(d.records)
	head := d.records
	var tail []Record
	if n > 2*fingerprintSampleSize {
		head = d.records[:fingerprintSampleSize]
		tail = d.records[n-fingerprintSampleSize:]
	}

	norm := []any{int64(n), normalizeRecords(head), normalizeRecords(tail)}
	return canonicalDigest(norm)
}

// CombineFingerprints chains two fingerprints. The combination is
// order-dependent: pipelines must combine in application order.
func CombineFingerprints(a, b Fingerprint) Fingerprint {
	h := sha256.New()
	h.Write(a[:])
	h.Write(b[:])
	var f Fingerprint
	h.Sum(f[:0])
	return f
}

// canonicalDigest serializes normalized data deterministically and hashes it.
func canonicalDigest(v any) (Fingerprint, error) {
	var f Fingerprint
	b, err := fingerprintEnc.Marshal(v)
	if err != nil {
		return f, fmt.Errorf("failed to canonicalize fingerprint input: %w", err)
	}
	return sha256.Sum256(b), nil
}

func normalizeRecords(records []Record) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r.normalize()
	}
	return out
}

// normalizeArg maps an operation argument to canonical plain data.
func normalizeArg(a any) any {
	switch v := a.(type) {
	case nil:
		return nil
	case Value:
		return v.normalize()
	case Record:
		return v.normalize()
	case []Record:
		return normalizeRecords(v)
	case []Value:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e.normalize()
		}
		return out
	case Fingerprint:
		return v[:]
	case Kind:
		return v.String()
	case bool, int64, uint64, float64, string, []byte:
		return v
	case int:
		return int64(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalizeArg(e)
		}
		return out
	}

	rv := reflect.ValueOf(a)
	if rv.Kind() == reflect.Func {
		return funcToken(rv)
	}
	return fmt.Sprintf("%T:%v", a, a)
}

// funcToken derives the identifying token for a function argument.
// Deliberately coarse: the runtime symbol name only, with no view of
// captured variables or function bodies.
func funcToken(rv reflect.Value) string {
	if rv.IsNil() {
		return "func:nil"
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "func:unknown"
	}
	return "func:" + fn.Name()
}
