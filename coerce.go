package veld

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

///////////////////////////////////////////////////////////////////////////////
// Coercion entry point
///////////////////////////////////////////////////////////////////////////////

// coerceValue attempts to convert a raw value into the declared type.
// Coercion is total: every input maps to either a typed value or error
// details, never a fault. Detail paths are relative to the coerced value;
// the caller prefixes the field segment.
func coerceValue(v Value, t TypeRef, strict bool, reg *Registry) (Value, []ErrorDetail) {
	switch t.kind {
	case TypeAny:
		return v, nil
	case TypeInt:
		return coerceInt(v, strict)
	case TypeFloat:
		return coerceFloat(v, strict, t.allowInfNan)
	case TypeString:
		return coerceString(v, strict)
	case TypeBool:
		return coerceBool(v, strict)
	case TypeBytes:
		return coerceBytes(v, strict)
	case TypeList:
		return coerceList(v, t, strict, reg)
	case TypeSet:
		return coerceSet(v, t, strict, reg)
	case TypeMap:
		return coerceMap(v, t, strict, reg)
	case TypeModel:
		return coerceModel(v, t, reg)
	case TypeLiteral:
		return coerceLiteral(v, t)
	case TypeUUID:
		return coerceUUID(v, strict)
	case TypeTime:
		return coerceTime(v, strict)
	default:
		return Null(), []ErrorDetail{{
			Type:  ErrTypeValueError,
			Msg:   fmt.Sprintf("Value error, cannot coerce to unresolved type %s", t.signature()),
			Input: v,
		}}
	}
}

// oneDetail wraps a single relative-path failure.
func oneDetail(typ ErrorType, msg string, input Value) []ErrorDetail {
	return []ErrorDetail{{Type: typ, Msg: msg, Input: input}}
}

///////////////////////////////////////////////////////////////////////////////
// Numbers
///////////////////////////////////////////////////////////////////////////////

const (
	msgIntType      = "Input should be a valid integer"
	msgIntParsing   = "Input should be a valid integer, unable to parse string as an integer"
	msgIntFromFloat = "Input should be a valid integer, got a number with a fractional part"
	msgFiniteNumber = "Input should be a finite number"
)

func coerceInt(v Value, strict bool) (Value, []ErrorDetail) {
	if v.Kind() == KindInt {
		return v, nil
	}
	if strict {
		return Null(), oneDetail(ErrTypeIntType, msgIntType, v)
	}
	switch v.Kind() {
	case KindBool:
		if v.Bool() {
			return Int(1), nil
		}
		return Int(0), nil
	case KindFloat:
		return intFromFloat(v.Float64(), v)
	case KindString:
		return intFromString(v.Str(), v)
	case KindBytes:
		if !utf8.Valid(v.BytesVal()) {
			return Null(), oneDetail(ErrTypeIntParsing, msgIntParsing, v)
		}
		return intFromString(string(v.BytesVal()), v)
	default:
		return Null(), oneDetail(ErrTypeIntType, msgIntType, v)
	}
}

func intFromFloat(f float64, input Value) (Value, []ErrorDetail) {
	// Non-finite and out-of-range values never coerce, in any mode.
	if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return Null(), oneDetail(ErrTypeFiniteNumber, msgFiniteNumber, input)
	}
	if math.Trunc(f) != f {
		return Null(), oneDetail(ErrTypeIntFromFloat, msgIntFromFloat, input)
	}
	return Int(int64(f)), nil
}

func intFromString(s string, input Value) (Value, []ErrorDetail) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	// Integral float strings ("4.0", "1e3") still count as integers.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Null(), oneDetail(ErrTypeFiniteNumber, msgFiniteNumber, input)
		}
		if math.Trunc(f) == f && f >= math.MinInt64 && f < math.MaxInt64 {
			return Int(int64(f)), nil
		}
	}
	return Null(), oneDetail(ErrTypeIntParsing, msgIntParsing, input)
}

const (
	msgFloatType    = "Input should be a valid number"
	msgFloatParsing = "Input should be a valid number, unable to parse string as a number"
)

func coerceFloat(v Value, strict bool, allowInfNan bool) (Value, []ErrorDetail) {
	finite := func(f float64) (Value, []ErrorDetail) {
		if !allowInfNan && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return Null(), oneDetail(ErrTypeFiniteNumber, msgFiniteNumber, v)
		}
		return Float(f), nil
	}

	if v.Kind() == KindFloat {
		return finite(v.Float64())
	}
	if strict {
		return Null(), oneDetail(ErrTypeFloatType, msgFloatType, v)
	}
	switch v.Kind() {
	case KindInt:
		return Float(float64(v.Int64())), nil
	case KindString, KindBytes:
		s := v.Str()
		if v.Kind() == KindBytes {
			s = string(v.BytesVal())
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Null(), oneDetail(ErrTypeFloatParsing, msgFloatParsing, v)
		}
		return finite(f)
	default:
		return Null(), oneDetail(ErrTypeFloatType, msgFloatType, v)
	}
}

///////////////////////////////////////////////////////////////////////////////
// Strings, bytes, booleans
///////////////////////////////////////////////////////////////////////////////

const (
	msgStringType    = "Input should be a valid string"
	msgStringUnicode = "Input should be a valid string, invalid unicode"
	msgBytesType     = "Input should be a valid bytes"
	msgBoolType      = "Input should be a valid boolean"
	msgBoolParsing   = "Input should be a valid boolean, unable to interpret input"
)

func coerceString(v Value, strict bool) (Value, []ErrorDetail) {
	if v.Kind() == KindString {
		return v, nil
	}
	if strict {
		return Null(), oneDetail(ErrTypeStringType, msgStringType, v)
	}
	if v.Kind() == KindBytes {
		if !utf8.Valid(v.BytesVal()) {
			return Null(), oneDetail(ErrTypeStringUnicode, msgStringUnicode, v)
		}
		return String(string(v.BytesVal())), nil
	}
	return Null(), oneDetail(ErrTypeStringType, msgStringType, v)
}

func coerceBytes(v Value, strict bool) (Value, []ErrorDetail) {
	if v.Kind() == KindBytes {
		return v, nil
	}
	if strict {
		return Null(), oneDetail(ErrTypeBytesType, msgBytesType, v)
	}
	if v.Kind() == KindString {
		return Bytes([]byte(v.Str())), nil
	}
	return Null(), oneDetail(ErrTypeBytesType, msgBytesType, v)
}

func coerceBool(v Value, strict bool) (Value, []ErrorDetail) {
	if v.Kind() == KindBool {
		return v, nil
	}
	if strict {
		return Null(), oneDetail(ErrTypeBoolType, msgBoolType, v)
	}
	switch v.Kind() {
	case KindInt:
		switch v.Int64() {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		}
		return Null(), oneDetail(ErrTypeBoolParsing, msgBoolParsing, v)
	case KindFloat:
		switch v.Float64() {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		}
		return Null(), oneDetail(ErrTypeBoolParsing, msgBoolParsing, v)
	case KindString:
		return boolFromString(v.Str(), v)
	default:
		return Null(), oneDetail(ErrTypeBoolType, msgBoolType, v)
	}
}

// boolFromString interprets the common textual boolean representations.
func boolFromString(s string, input Value) (Value, []ErrorDetail) {
	switch s {
	case "true", "1", "yes", "on", "True", "TRUE", "YES", "ON":
		return Bool(true), nil
	case "false", "0", "no", "off", "False", "FALSE", "NO", "OFF":
		return Bool(false), nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return Bool(b), nil
	}
	return Null(), oneDetail(ErrTypeBoolParsing, msgBoolParsing, input)
}

///////////////////////////////////////////////////////////////////////////////
// Containers
///////////////////////////////////////////////////////////////////////////////

const (
	msgListType      = "Input should be a valid list"
	msgFrozenSetType = "Input should be a valid frozenset"
	msgMapType       = "Input should be a valid dictionary"
)

func coerceList(v Value, t TypeRef, strict bool, reg *Registry) (Value, []ErrorDetail) {
	if v.Kind() != KindList && v.Kind() != KindSet {
		return Null(), oneDetail(ErrTypeListType, msgListType, v)
	}
	elems := v.ListVals()
	out := make([]Value, 0, len(elems))
	var details []ErrorDetail
	for i, e := range elems {
		coerced, elemDetails := coerceValue(e, *t.elem, strict, reg)
		if len(elemDetails) > 0 {
			details = append(details, prefixDetails(PathIndex(i), elemDetails)...)
			continue
		}
		out = append(out, coerced)
	}
	if len(details) > 0 {
		return Null(), details
	}
	return List(out...), nil
}

func coerceSet(v Value, t TypeRef, strict bool, reg *Registry) (Value, []ErrorDetail) {
	// A string is not an acceptable element source even in lax mode.
	if v.Kind() != KindList && v.Kind() != KindSet {
		return Null(), oneDetail(ErrTypeFrozenSetType, msgFrozenSetType, v)
	}
	elems := v.ListVals()
	out := make([]Value, 0, len(elems))
	var details []ErrorDetail
	for i, e := range elems {
		coerced, elemDetails := coerceValue(e, *t.elem, strict, reg)
		if len(elemDetails) > 0 {
			details = append(details, prefixDetails(PathIndex(i), elemDetails)...)
			continue
		}
		out = append(out, coerced)
	}
	if len(details) > 0 {
		return Null(), details
	}
	return Set(out...), nil
}

func coerceMap(v Value, t TypeRef, strict bool, reg *Registry) (Value, []ErrorDetail) {
	if v.Kind() != KindMap {
		return Null(), oneDetail(ErrTypeMapType, msgMapType, v)
	}
	out := orderedmap.New[string, Value]()
	var details []ErrorDetail
	for pair := v.MapVal().Oldest(); pair != nil; pair = pair.Next() {
		key, keyDetails := coerceValue(String(pair.Key), *t.key, strict, reg)
		if len(keyDetails) > 0 {
			keyDetails = prefixDetails(PathName(pair.Key), keyDetails)
			details = append(details, prefixDetails(PathName("[key]"), keyDetails)...)
			continue
		}
		val, valDetails := coerceValue(pair.Value, *t.elem, strict, reg)
		if len(valDetails) > 0 {
			details = append(details, prefixDetails(PathName(pair.Key), valDetails)...)
			continue
		}
		out.Set(mapKeyString(key), val)
	}
	if len(details) > 0 {
		return Null(), details
	}
	return Dict(out), nil
}

// mapKeyString renders a coerced map key back into the string keyspace of
// the Value union.
func mapKeyString(v Value) string {
	switch v.Kind() {
	case KindString:
		return v.Str()
	case KindInt:
		return strconv.FormatInt(v.Int64(), 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool())
	default:
		return v.String()
	}
}

///////////////////////////////////////////////////////////////////////////////
// Nested models
///////////////////////////////////////////////////////////////////////////////

func coerceModel(v Value, t TypeRef, reg *Registry) (Value, []ErrorDetail) {
	nested, err := reg.Compile(t.model)
	if err != nil {
		return Null(), oneDetail(ErrTypeModelType,
			fmt.Sprintf("Input should be a valid dictionary or instance of %s (%v)", t.model.name, err), v)
	}

	switch v.Kind() {
	case KindModel:
		// An already-validated instance of the same plan passes through.
		if v.ModelVal().Spec() == nested {
			return v, nil
		}
		return Null(), oneDetail(ErrTypeModelType,
			fmt.Sprintf("Input should be a valid dictionary or instance of %s", nested.Name()), v)
	case KindMap:
		inst, err := nested.Validate(v)
		if err != nil {
			if ve, ok := err.(*ValidationError); ok {
				return Null(), ve.Details()
			}
			return Null(), oneDetail(ErrTypeModelType, err.Error(), v)
		}
		return Model(inst), nil
	default:
		return Null(), oneDetail(ErrTypeModelType,
			fmt.Sprintf("Input should be a valid dictionary or instance of %s", nested.Name()), v)
	}
}

///////////////////////////////////////////////////////////////////////////////
// Constrained and special types
///////////////////////////////////////////////////////////////////////////////

func coerceLiteral(v Value, t TypeRef) (Value, []ErrorDetail) {
	for _, permitted := range t.literals {
		if v.Equal(permitted) {
			return v, nil
		}
	}
	parts := make([]string, len(t.literals))
	for i, p := range t.literals {
		parts[i] = p.String()
	}
	expected := strings.Join(parts, " or ")
	return Null(), []ErrorDetail{{
		Type:  ErrTypeLiteral,
		Msg:   "Input should be " + expected,
		Input: v,
		Ctx:   map[string]any{"expected": expected},
	}}
}

const (
	msgUUIDParsing     = "Input should be a valid UUID"
	msgDatetimeParsing = "Input should be a valid datetime"
)

func coerceUUID(v Value, strict bool) (Value, []ErrorDetail) {
	if v.Kind() == KindUUID {
		return v, nil
	}
	if strict {
		return Null(), oneDetail(ErrTypeUUIDParsing, msgUUIDParsing, v)
	}
	switch v.Kind() {
	case KindString:
		u, err := uuid.Parse(v.Str())
		if err != nil {
			return Null(), oneDetail(ErrTypeUUIDParsing, fmt.Sprintf("%s, %v", msgUUIDParsing, err), v)
		}
		return UUID(u), nil
	case KindBytes:
		u, err := uuid.ParseBytes(v.BytesVal())
		if err != nil {
			return Null(), oneDetail(ErrTypeUUIDParsing, fmt.Sprintf("%s, %v", msgUUIDParsing, err), v)
		}
		return UUID(u), nil
	default:
		return Null(), oneDetail(ErrTypeUUIDParsing, msgUUIDParsing, v)
	}
}

// timeFormats are tried in order for textual timestamps.
var timeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
}

func coerceTime(v Value, strict bool) (Value, []ErrorDetail) {
	if v.Kind() == KindTime {
		return v, nil
	}
	if strict {
		return Null(), oneDetail(ErrTypeDatetimeParsing, msgDatetimeParsing, v)
	}
	switch v.Kind() {
	case KindString, KindBytes:
		s := v.Str()
		if v.Kind() == KindBytes {
			s = string(v.BytesVal())
		}
		for _, format := range timeFormats {
			if parsed, err := time.Parse(format, s); err == nil {
				return Time(parsed), nil
			}
		}
		return Null(), oneDetail(ErrTypeDatetimeParsing,
			fmt.Sprintf("%s, unable to parse %q", msgDatetimeParsing, s), v)
	case KindInt:
		// Numeric timestamps are Unix seconds.
		return Time(time.Unix(v.Int64(), 0).UTC()), nil
	case KindFloat:
		f := v.Float64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Null(), oneDetail(ErrTypeFiniteNumber, msgFiniteNumber, v)
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * float64(time.Second))
		return Time(time.Unix(sec, nsec).UTC()), nil
	default:
		return Null(), oneDetail(ErrTypeDatetimeParsing, msgDatetimeParsing, v)
	}
}
