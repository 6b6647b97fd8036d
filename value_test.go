package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKindsAndGetters(t *testing.T) {
	var zero Value
	assert.True(t, zero.IsNull())
	assert.Equal(t, KindNull, zero.Kind())

	b, ok := Bool(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)

	n, ok := Int(-5).Int()
	assert.True(t, ok)
	assert.Equal(t, int64(-5), n)

	// Kind-mismatched getters report not-ok instead of zero-value confusion.
	_, ok = Int(5).Float()
	assert.False(t, ok)
	_, ok = String("x").Int()
	assert.False(t, ok)
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Null().Equal(Null()))
	assert.True(t, Int(1).Equal(Int(1)))
	assert.False(t, Int(1).Equal(Int(2)))
	assert.False(t, Int(1).Equal(Float(1)), "equality never crosses kinds")

	assert.True(t, Bytes([]byte{1, 2}).Equal(Bytes([]byte{1, 2})))
	assert.True(t, List(Int(1), String("a")).Equal(List(Int(1), String("a"))))
	assert.False(t, List(Int(1)).Equal(List(Int(1), Int(2))))

	r := NewRecord(Field{Name: "x", Value: Int(1)})
	assert.True(t, Nested(r).Equal(Nested(r.Clone())))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "null", Null().String())
	assert.Equal(t, `"hi"`, String("hi").String())
	assert.Equal(t, "[1, true]", List(Int(1), Bool(true)).String())
	assert.Equal(t, "{a: 1}", NewRecord(Field{Name: "a", Value: Int(1)}).String())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("int")
	require.NoError(t, err)
	assert.Equal(t, KindInt, k)

	_, err = ParseKind("integer")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, compareValues(Int(1), Int(1)))
	assert.Negative(t, compareValues(Int(1), Int(2)))
	assert.Positive(t, compareValues(String("b"), String("a")))
	assert.Negative(t, compareValues(Null(), Int(0)), "null sorts first")
	assert.Negative(t, compareValues(List(Int(1)), List(Int(1), Int(2))), "prefix sorts first")
}

func TestRecordAccessors(t *testing.T) {
	r := NewRecord(
		Field{Name: "a", Value: Int(1)},
		Field{Name: "b", Value: String("x")},
	)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))

	v, ok := r.Get("b")
	require.True(t, ok)
	s, _ := v.Str()
	assert.Equal(t, "x", s)
}

func TestRecordMutatorsCopy(t *testing.T) {
	r := NewRecord(Field{Name: "a", Value: Int(1)})

	set := r.Set("a", Int(2))
	appended := r.Set("b", Int(3))
	deleted := appended.Delete("a")
	renamed := r.Rename("a", "z")

	// The receiver is never modified.
	v, _ := r.Get("a")
	n, _ := v.Int()
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{"a"}, r.Names())

	v, _ = set.Get("a")
	n, _ = v.Int()
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"a", "b"}, appended.Names())
	assert.Equal(t, []string{"b"}, deleted.Names())
	assert.Equal(t, []string{"z"}, renamed.Names())
}

func TestInferSchema(t *testing.T) {
	records := []Record{
		NewRecord(Field{Name: "a", Value: Null()}, Field{Name: "b", Value: Int(1)}),
		NewRecord(Field{Name: "a", Value: String("x")}),
	}

	s := InferSchema(records)
	assert.Equal(t, Schema{"a": KindString, "b": KindInt}, s, "first non-null kind wins")
}

func TestSchemaValidate(t *testing.T) {
	s := Schema{"a": KindInt, "b": KindString}

	ok := NewRecord(Field{Name: "a", Value: Int(1)}, Field{Name: "b", Value: Null()})
	assert.NoError(t, s.Validate(ok), "null satisfies any kind")

	extra := NewRecord(Field{Name: "c", Value: Bool(true)})
	assert.NoError(t, s.Validate(extra), "fields outside the schema are ignored")

	bad := NewRecord(
		Field{Name: "a", Value: String("no")},
		Field{Name: "b", Value: Int(0)},
	)
	err := s.Validate(bad)
	require.Error(t, err)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Len(t, se.Errors, 2, "all mismatches are collected")
}

func TestCastValue(t *testing.T) {
	cases := []struct {
		in     Value
		target Kind
		want   Value
	}{
		{Int(5), KindFloat, Float(5)},
		{Float(2), KindInt, Int(2)},
		{String("7"), KindInt, Int(7)},
		{String("1.5"), KindFloat, Float(1.5)},
		{Bool(true), KindInt, Int(1)},
		{Int(0), KindBool, Bool(false)},
		{Int(42), KindString, String("42")},
		{String("ab"), KindBytes, Bytes([]byte("ab"))},
		{Null(), KindInt, Null()},
		{Int(3), KindInt, Int(3)},
	}
	for _, tc := range cases {
		got, err := castValue(tc.in, tc.target)
		require.NoError(t, err, "%s to %s", tc.in, tc.target)
		assert.True(t, tc.want.Equal(got), "%s to %s: got %s", tc.in, tc.target, got)
	}

	lossy := []struct {
		in     Value
		target Kind
	}{
		{Float(1.5), KindInt},
		{String("abc"), KindInt},
		{Int(2), KindBool},
		{Bool(true), KindFloat},
	}
	for _, tc := range lossy {
		_, err := castValue(tc.in, tc.target)
		assert.ErrorIs(t, err, ErrCast, "%s to %s", tc.in, tc.target)
	}
}
