package veld

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test JSON decoding into the Value union
func TestDecodeJSON(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		v, err := DecodeJSON([]byte(`{"b": true, "n": 42, "f": 1.5, "s": "x", "z": null}`))
		require.NoError(t, err)

		b, _ := v.MapGet("b")
		assert.Equal(t, KindBool, b.Kind())
		n, _ := v.MapGet("n")
		require.Equal(t, KindInt, n.Kind())
		assert.Equal(t, int64(42), n.Int64())
		f, _ := v.MapGet("f")
		require.Equal(t, KindFloat, f.Kind())
		assert.Equal(t, 1.5, f.Float64())
		s, _ := v.MapGet("s")
		assert.Equal(t, "x", s.Str())
		z, _ := v.MapGet("z")
		assert.True(t, z.IsNull())
	})

	t.Run("KeyOrderPreserved", func(t *testing.T) {
		v, err := DecodeJSON([]byte(`{"z": 1, "a": 2, "m": 3}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "a", "m"}, v.MapKeys())
	})

	t.Run("NestedStructures", func(t *testing.T) {
		v, err := DecodeJSON([]byte(`{"xs": [1, "two", {"k": false}]}`))
		require.NoError(t, err)
		xs, ok := v.MapGet("xs")
		require.True(t, ok)
		require.Equal(t, KindList, xs.Kind())
		require.Len(t, xs.ListVals(), 3)
		assert.Equal(t, int64(1), xs.ListVals()[0].Int64())
		assert.Equal(t, "two", xs.ListVals()[1].Str())
		assert.Equal(t, KindMap, xs.ListVals()[2].Kind())
	})

	t.Run("ExponentStaysFloat", func(t *testing.T) {
		v, err := DecodeJSON([]byte(`{"n": 1e3}`))
		require.NoError(t, err)
		n, _ := v.MapGet("n")
		assert.Equal(t, KindFloat, n.Kind())
	})

	t.Run("LargeIntegerExact", func(t *testing.T) {
		v, err := DecodeJSON([]byte(`{"n": 9007199254740993}`))
		require.NoError(t, err)
		n, _ := v.MapGet("n")
		require.Equal(t, KindInt, n.Kind())
		assert.Equal(t, int64(9007199254740993), n.Int64())
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := DecodeJSON([]byte(`{"a":`))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedJSON)
	})

	t.Run("FeedsValidation", func(t *testing.T) {
		spec := mustSpec(t, NewModel("User").
			Field(NewField("name", StringType())).
			Field(NewField("age", IntType())))

		v, err := DecodeJSON([]byte(`{"name": "ada", "age": "36"}`))
		require.NoError(t, err)
		inst, err := spec.Validate(v)
		require.NoError(t, err)
		assert.Equal(t, int64(36), inst.MustGet("age").Int64())
	})
}

// Test YAML decoding into the Value union
func TestDecodeYAML(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		v, err := DecodeYAML([]byte("b: true\nn: 42\nf: 1.5\ns: hello\nz: null\n"))
		require.NoError(t, err)

		b, _ := v.MapGet("b")
		assert.Equal(t, KindBool, b.Kind())
		n, _ := v.MapGet("n")
		require.Equal(t, KindInt, n.Kind())
		assert.Equal(t, int64(42), n.Int64())
		f, _ := v.MapGet("f")
		assert.Equal(t, 1.5, f.Float64())
		s, _ := v.MapGet("s")
		assert.Equal(t, "hello", s.Str())
		z, _ := v.MapGet("z")
		assert.True(t, z.IsNull())
	})

	t.Run("KeyOrderPreserved", func(t *testing.T) {
		v, err := DecodeYAML([]byte("z: 1\na: 2\nm: 3\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "a", "m"}, v.MapKeys())
	})

	t.Run("QuotedNumberStaysString", func(t *testing.T) {
		v, err := DecodeYAML([]byte("n: \"42\"\n"))
		require.NoError(t, err)
		n, _ := v.MapGet("n")
		assert.Equal(t, KindString, n.Kind())
	})

	t.Run("Sequences", func(t *testing.T) {
		v, err := DecodeYAML([]byte("xs:\n  - 1\n  - two\n"))
		require.NoError(t, err)
		xs, _ := v.MapGet("xs")
		require.Equal(t, KindList, xs.Kind())
		assert.Equal(t, int64(1), xs.ListVals()[0].Int64())
		assert.Equal(t, "two", xs.ListVals()[1].Str())
	})

	t.Run("Anchors", func(t *testing.T) {
		v, err := DecodeYAML([]byte("base: &b 7\nother: *b\n"))
		require.NoError(t, err)
		other, _ := v.MapGet("other")
		assert.Equal(t, int64(7), other.Int64())
	})

	t.Run("SpecialFloats", func(t *testing.T) {
		v, err := DecodeYAML([]byte("inf: .inf\nnan: .nan\n"))
		require.NoError(t, err)
		inf, _ := v.MapGet("inf")
		assert.True(t, math.IsInf(inf.Float64(), 1))
		nan, _ := v.MapGet("nan")
		assert.True(t, math.IsNaN(nan.Float64()))
	})

	t.Run("Empty", func(t *testing.T) {
		v, err := DecodeYAML(nil)
		require.NoError(t, err)
		assert.True(t, v.IsNull())
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := DecodeYAML([]byte("a: [unclosed\n"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedYAML)
	})
}
