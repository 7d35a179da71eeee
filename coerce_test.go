package veld

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coerceOK(t *testing.T, v Value, typ TypeRef) Value {
	t.Helper()
	out, details := coerceValue(v, typ, false, NewRegistry(RegistryOpts{}))
	require.Empty(t, details)
	return out
}

func coerceFail(t *testing.T, v Value, typ TypeRef, strict bool) []ErrorDetail {
	t.Helper()
	_, details := coerceValue(v, typ, strict, NewRegistry(RegistryOpts{}))
	require.NotEmpty(t, details)
	return details
}

// Test integer coercion
func TestCoerceInt(t *testing.T) {
	t.Run("Identity", func(t *testing.T) {
		assert.Equal(t, int64(7), coerceOK(t, Int(7), IntType()).Int64())
	})

	t.Run("FromBool", func(t *testing.T) {
		assert.Equal(t, int64(1), coerceOK(t, Bool(true), IntType()).Int64())
		assert.Equal(t, int64(0), coerceOK(t, Bool(false), IntType()).Int64())
	})

	t.Run("FromIntegralFloat", func(t *testing.T) {
		assert.Equal(t, int64(4), coerceOK(t, Float(4.0), IntType()).Int64())
	})

	t.Run("FromFractionalFloat", func(t *testing.T) {
		details := coerceFail(t, Float(4.5), IntType(), false)
		require.Len(t, details, 1)
		assert.Equal(t, ErrTypeIntFromFloat, details[0].Type)
	})

	t.Run("FromString", func(t *testing.T) {
		assert.Equal(t, int64(123), coerceOK(t, String("123"), IntType()).Int64())
		assert.Equal(t, int64(-9), coerceOK(t, String(" -9 "), IntType()).Int64())
		assert.Equal(t, int64(4), coerceOK(t, String("4.0"), IntType()).Int64())
	})

	t.Run("FromBadString", func(t *testing.T) {
		details := coerceFail(t, String("x10"), IntType(), false)
		require.Len(t, details, 1)
		assert.Equal(t, ErrTypeIntParsing, details[0].Type)
		assert.Equal(t, "Input should be a valid integer, unable to parse string as an integer", details[0].Msg)
	})

	t.Run("FromBytes", func(t *testing.T) {
		assert.Equal(t, int64(55), coerceOK(t, Bytes([]byte("55")), IntType()).Int64())
	})

	t.Run("NonFinite", func(t *testing.T) {
		for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e300} {
			details := coerceFail(t, Float(f), IntType(), false)
			require.Len(t, details, 1)
			assert.Equal(t, ErrTypeFiniteNumber, details[0].Type)
			assert.Equal(t, "Input should be a finite number", details[0].Msg)
		}
	})

	t.Run("Strict_RejectsWidening", func(t *testing.T) {
		details := coerceFail(t, String("12"), IntType(), true)
		assert.Equal(t, ErrTypeIntType, details[0].Type)

		out, details := coerceValue(Int(12), IntType(), true, nil)
		require.Empty(t, details)
		assert.Equal(t, int64(12), out.Int64())
	})
}

// Test float coercion
func TestCoerceFloat(t *testing.T) {
	t.Run("Identity", func(t *testing.T) {
		assert.Equal(t, 1.25, coerceOK(t, Float(1.25), FloatType()).Float64())
	})

	t.Run("FromInt", func(t *testing.T) {
		assert.Equal(t, 3.0, coerceOK(t, Int(3), FloatType()).Float64())
	})

	t.Run("FromString", func(t *testing.T) {
		assert.Equal(t, 2.5, coerceOK(t, String("2.5"), FloatType()).Float64())
	})

	t.Run("FromBadString", func(t *testing.T) {
		details := coerceFail(t, String("nope"), FloatType(), false)
		assert.Equal(t, ErrTypeFloatParsing, details[0].Type)
	})

	t.Run("NonFinite_RejectedByDefault", func(t *testing.T) {
		details := coerceFail(t, Float(math.Inf(1)), FloatType(), false)
		assert.Equal(t, ErrTypeFiniteNumber, details[0].Type)
	})

	t.Run("NonFinite_AllowedWhenOptedIn", func(t *testing.T) {
		out := coerceOK(t, Float(math.NaN()), FloatType().AllowInfNan())
		assert.True(t, math.IsNaN(out.Float64()))
	})
}

// Test string, bytes and bool coercion
func TestCoerceTextAndBool(t *testing.T) {
	t.Run("String_FromBytes", func(t *testing.T) {
		assert.Equal(t, "abc", coerceOK(t, Bytes([]byte("abc")), StringType()).Str())
	})

	t.Run("String_InvalidUnicode", func(t *testing.T) {
		details := coerceFail(t, Bytes([]byte{0xff, 0xfe}), StringType(), false)
		assert.Equal(t, ErrTypeStringUnicode, details[0].Type)
	})

	t.Run("String_RejectsNumbers", func(t *testing.T) {
		details := coerceFail(t, Int(3), StringType(), false)
		assert.Equal(t, ErrTypeStringType, details[0].Type)
	})

	t.Run("Bytes_FromString", func(t *testing.T) {
		assert.Equal(t, []byte("abc"), coerceOK(t, String("abc"), BytesType()).BytesVal())
	})

	t.Run("Bool_Families", func(t *testing.T) {
		for _, s := range []string{"true", "1", "yes", "on", "True", "TRUE"} {
			assert.True(t, coerceOK(t, String(s), BoolType()).Bool(), s)
		}
		for _, s := range []string{"false", "0", "no", "off", "OFF"} {
			assert.False(t, coerceOK(t, String(s), BoolType()).Bool(), s)
		}
	})

	t.Run("Bool_FromNumbers", func(t *testing.T) {
		assert.True(t, coerceOK(t, Int(1), BoolType()).Bool())
		assert.False(t, coerceOK(t, Float(0), BoolType()).Bool())

		details := coerceFail(t, Int(2), BoolType(), false)
		assert.Equal(t, ErrTypeBoolParsing, details[0].Type)
	})
}

// Test container coercion
func TestCoerceContainers(t *testing.T) {
	t.Run("List_ElementsCoerced", func(t *testing.T) {
		out := coerceOK(t, List(String("1"), Int(2), Float(3.0)), ListOf(IntType()))
		require.Len(t, out.ListVals(), 3)
		for i, want := range []int64{1, 2, 3} {
			assert.Equal(t, want, out.ListVals()[i].Int64())
		}
	})

	t.Run("List_ElementErrorsCarryIndexes", func(t *testing.T) {
		details := coerceFail(t, List(Int(1), String("x"), String("y")), ListOf(IntType()), false)
		require.Len(t, details, 2)
		assert.Equal(t, "1", details[0].Loc.String())
		assert.Equal(t, "2", details[1].Loc.String())
	})

	t.Run("List_RejectsScalars", func(t *testing.T) {
		details := coerceFail(t, String("abc"), ListOf(StringType()), false)
		assert.Equal(t, ErrTypeListType, details[0].Type)
	})

	t.Run("Set_DeduplicatesAfterCoercion", func(t *testing.T) {
		// "1" and 1 collide once both coerce to int.
		out := coerceOK(t, List(String("1"), Int(1), Int(2)), SetOf(IntType()))
		assert.Equal(t, KindSet, out.Kind())
		assert.Len(t, out.ListVals(), 2)
	})

	t.Run("Set_KeepsUnequalNestedElements", func(t *testing.T) {
		// ["x,sy"] and ["x","y"] are unequal lists and must both survive
		// the set's dedup pass.
		out := coerceOK(t,
			List(List(String("x,sy")), List(String("x"), String("y"))),
			SetOf(ListOf(StringType())))
		assert.Equal(t, KindSet, out.Kind())
		assert.Len(t, out.ListVals(), 2)
	})

	t.Run("Set_RejectsNonSequence", func(t *testing.T) {
		details := coerceFail(t, String("123"), SetOf(IntType()), false)
		assert.Equal(t, ErrTypeFrozenSetType, details[0].Type)
		assert.Equal(t, "Input should be a valid frozenset", details[0].Msg)
	})

	t.Run("Map_ValuesCoerced", func(t *testing.T) {
		out := coerceOK(t, Map(map[string]Value{"a": String("1")}), MapOf(StringType(), IntType()))
		got, ok := out.MapGet("a")
		require.True(t, ok)
		assert.Equal(t, int64(1), got.Int64())
	})

	t.Run("Map_KeysCoerced", func(t *testing.T) {
		out := coerceOK(t, Map(map[string]Value{"10": Int(1)}), MapOf(IntType(), IntType()))
		_, ok := out.MapGet("10")
		assert.True(t, ok)
	})

	t.Run("Map_BadKeyReported", func(t *testing.T) {
		details := coerceFail(t, Map(map[string]Value{"oops": Int(1)}), MapOf(IntType(), IntType()), false)
		require.Len(t, details, 1)
		assert.Equal(t, "[key].oops", details[0].Loc.String())
	})

	t.Run("Map_BadValueReported", func(t *testing.T) {
		details := coerceFail(t, Map(map[string]Value{"a": String("x")}), MapOf(StringType(), IntType()), false)
		require.Len(t, details, 1)
		assert.Equal(t, "a", details[0].Loc.String())
	})
}

// Test literal-constrained coercion
func TestCoerceLiteral(t *testing.T) {
	t.Run("Permitted", func(t *testing.T) {
		out := coerceOK(t, String("red"), Literal(String("red"), String("blue")))
		assert.Equal(t, "red", out.Str())
	})

	t.Run("Rejected", func(t *testing.T) {
		details := coerceFail(t, String("green"), Literal(String("red"), String("blue")), false)
		require.Len(t, details, 1)
		assert.Equal(t, ErrTypeLiteral, details[0].Type)
		assert.Equal(t, `Input should be "red" or "blue"`, details[0].Msg)
		assert.Equal(t, `"red" or "blue"`, details[0].Ctx["expected"])
	})
}

// Test UUID and time coercion
func TestCoerceSpecialTypes(t *testing.T) {
	t.Run("UUID_FromString", func(t *testing.T) {
		u := "12345678-1234-5678-1234-567812345678"
		out := coerceOK(t, String(u), UUIDType())
		assert.Equal(t, uuid.MustParse(u), out.UUIDVal())
	})

	t.Run("UUID_Invalid", func(t *testing.T) {
		details := coerceFail(t, String("not-a-uuid"), UUIDType(), false)
		assert.Equal(t, ErrTypeUUIDParsing, details[0].Type)
	})

	t.Run("Time_FromRFC3339", func(t *testing.T) {
		out := coerceOK(t, String("2024-06-01T10:30:00Z"), TimeType())
		assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), out.TimeVal())
	})

	t.Run("Time_FromDateOnly", func(t *testing.T) {
		out := coerceOK(t, String("2024-06-01"), TimeType())
		assert.Equal(t, 2024, out.TimeVal().Year())
	})

	t.Run("Time_FromUnixSeconds", func(t *testing.T) {
		out := coerceOK(t, Int(0), TimeType())
		assert.Equal(t, time.Unix(0, 0).UTC(), out.TimeVal())
	})

	t.Run("Time_Invalid", func(t *testing.T) {
		details := coerceFail(t, String("whenever"), TimeType(), false)
		assert.Equal(t, ErrTypeDatetimeParsing, details[0].Type)
	})
}

// Test nested model coercion
func TestCoerceModel(t *testing.T) {
	reg := NewRegistry(RegistryOpts{})
	inner := NewModel("Inner").Field(NewField("n", IntType()))

	t.Run("FromMap", func(t *testing.T) {
		out, details := coerceValue(Map(map[string]Value{"n": String("5")}), ModelOf(inner), false, reg)
		require.Empty(t, details)
		require.Equal(t, KindModel, out.Kind())
		assert.Equal(t, int64(5), out.ModelVal().MustGet("n").Int64())
	})

	t.Run("FromInstance_SamePlan", func(t *testing.T) {
		spec := reg.MustCompile(inner)
		inst, err := spec.ValidateMap(map[string]Value{"n": Int(1)})
		require.NoError(t, err)

		out, details := coerceValue(Model(inst), ModelOf(inner), false, reg)
		require.Empty(t, details)
		assert.Same(t, inst, out.ModelVal())
	})

	t.Run("FromScalar", func(t *testing.T) {
		_, details := coerceValue(Int(3), ModelOf(inner), false, reg)
		require.Len(t, details, 1)
		assert.Equal(t, ErrTypeModelType, details[0].Type)
		assert.Equal(t, "Input should be a valid dictionary or instance of Inner", details[0].Msg)
	})

	t.Run("NestedFailureDetailsRelative", func(t *testing.T) {
		_, details := coerceValue(Map(map[string]Value{"n": String("x")}), ModelOf(inner), false, reg)
		require.Len(t, details, 1)
		assert.Equal(t, "n", details[0].Loc.String())
		assert.Equal(t, ErrTypeIntParsing, details[0].Type)
	})
}
