package veld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test path construction and rendering
func TestPath(t *testing.T) {
	t.Run("Rendering", func(t *testing.T) {
		p := Path{PathName("items"), PathIndex(2), PathName("name")}
		assert.Equal(t, "items.2.name", p.String())
	})

	t.Run("PrependDoesNotMutate", func(t *testing.T) {
		inner := Path{PathName("b")}
		outer := inner.prepend(PathName("a"))
		assert.Equal(t, "a.b", outer.String())
		assert.Equal(t, "b", inner.String())
	})
}

// Test aggregate error formatting
func TestValidationErrorFormat(t *testing.T) {
	var acc errorAccumulator
	acc.add(newDetail(ErrTypeMissing, "a", "Field required", Null()))
	acc.add(newDetail(ErrTypeIntParsing, "b", "Input should be a valid integer, unable to parse string as an integer", String("x")))

	ve := acc.report("Thing")
	require.NotNil(t, ve)

	msg := ve.Error()
	assert.Contains(t, msg, "2 validation errors for Thing")
	assert.Contains(t, msg, "a: Field required [missing]")
	assert.Contains(t, msg, "[int_parsing]")
	assert.Len(t, ve.Details(), 2)
}

// Test the accumulator
func TestErrorAccumulator(t *testing.T) {
	t.Run("EmptyReportsNil", func(t *testing.T) {
		var acc errorAccumulator
		assert.True(t, acc.empty())
		assert.Nil(t, acc.report("M"))
	})

	t.Run("NestedPrefixing", func(t *testing.T) {
		nested := []ErrorDetail{
			newDetail(ErrTypeMissing, "x", "Field required", Null()),
		}
		var acc errorAccumulator
		acc.addNested(PathName("inner"), nested)
		ve := acc.report("Outer")
		require.NotNil(t, ve)
		assert.Equal(t, "inner.x", ve.Details()[0].Loc.String())
		// The source slice keeps its relative paths.
		assert.Equal(t, "x", nested[0].Loc.String())
	})
}

// Test hook rejection constructors
func TestHookErrors(t *testing.T) {
	err := Errorf("value %d out of range", 9)
	assert.Equal(t, "value 9 out of range", err.Error())

	terr := TypeErrorf("expected %s", "int")
	assert.Equal(t, "expected int", terr.Error())
}
