package veld

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

///////////////////////////////////////////////////////////////////////////////
// Value Kinds
///////////////////////////////////////////////////////////////////////////////

// Kind discriminates the variants of the Value union.
//
// The first eight kinds are the raw variants an external decoder can produce.
// The remaining kinds only appear after coercion (typed output), but they live
// in the same union so every component of the engine speaks one value model.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindSet
	KindUUID
	KindTime
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindUUID:
		return "uuid"
	case KindTime:
		return "time"
	case KindModel:
		return "model"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

///////////////////////////////////////////////////////////////////////////////
// Value
///////////////////////////////////////////////////////////////////////////////

// Value is the tagged union carried through the whole engine: raw input from
// an external decoder, intermediate hook output, and fully coerced typed
// values are all Values. A Value is immutable once produced; "mutation" means
// building a new one.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	bs   []byte
	list []Value
	dict *orderedmap.OrderedMap[string, Value]
	u    uuid.UUID
	t    time.Time
	m    *Instance
}

// Null returns the null Value. The zero Value is also null.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes wraps a byte sequence.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bs: b} }

// List wraps an ordered sequence of Values.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Map wraps a string-keyed mapping. Keys are ordered lexicographically so a
// Value built from an unordered Go map is deterministic; use Dict when the
// source ordering matters.
func Map(m map[string]Value) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	om := orderedmap.New[string, Value]()
	for _, k := range keys {
		om.Set(k, m[k])
	}
	return Value{kind: KindMap, dict: om}
}

// Dict wraps an ordered mapping, preserving the given insertion order.
func Dict(om *orderedmap.OrderedMap[string, Value]) Value {
	if om == nil {
		om = orderedmap.New[string, Value]()
	}
	return Value{kind: KindMap, dict: om}
}

// Set wraps a de-duplicated collection. Elements are de-duplicated by
// canonical key and stored in canonical order so set output is deterministic.
func Set(vs ...Value) Value {
	seen := make(map[string]bool, len(vs))
	out := make([]Value, 0, len(vs))
	for _, v := range vs {
		key := v.canonicalKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].canonicalKey() < out[j].canonicalKey()
	})
	return Value{kind: KindSet, list: out}
}

// UUID wraps a uuid.UUID.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// Time wraps a time.Time.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Model wraps an already-validated instance.
func Model(inst *Instance) Value { return Value{kind: KindModel, m: inst} }

///////////////////////////////////////////////////////////////////////////////
// Accessors
///////////////////////////////////////////////////////////////////////////////

// Kind returns the variant tag of the Value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload. Valid only for KindBool.
func (v Value) Bool() bool { return v.b }

// Int64 returns the integer payload. Valid only for KindInt.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the float payload. Valid only for KindFloat.
func (v Value) Float64() float64 { return v.f }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.s }

// BytesVal returns the byte-sequence payload. Valid only for KindBytes.
func (v Value) BytesVal() []byte { return v.bs }

// ListVals returns the element slice. Valid for KindList and KindSet.
func (v Value) ListVals() []Value { return v.list }

// MapVal returns the ordered mapping. Valid only for KindMap.
func (v Value) MapVal() *orderedmap.OrderedMap[string, Value] { return v.dict }

// UUIDVal returns the UUID payload. Valid only for KindUUID.
func (v Value) UUIDVal() uuid.UUID { return v.u }

// TimeVal returns the time payload. Valid only for KindTime.
func (v Value) TimeVal() time.Time { return v.t }

// ModelVal returns the validated instance payload. Valid only for KindModel.
func (v Value) ModelVal() *Instance { return v.m }

// MapGet looks a key up in a KindMap Value.
func (v Value) MapGet(key string) (Value, bool) {
	if v.kind != KindMap || v.dict == nil {
		return Null(), false
	}
	return v.dict.Get(key)
}

// MapKeys returns the keys of a KindMap Value in stored order.
func (v Value) MapKeys() []string {
	if v.kind != KindMap || v.dict == nil {
		return nil
	}
	keys := make([]string, 0, v.dict.Len())
	for pair := v.dict.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

///////////////////////////////////////////////////////////////////////////////
// Equality and canonical ordering
///////////////////////////////////////////////////////////////////////////////

// Equal reports deep equality of two Values. Map equality ignores key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindBytes:
		return string(v.bs) == string(o.bs)
	case KindList, KindSet:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.dict.Len() != o.dict.Len() {
			return false
		}
		for pair := v.dict.Oldest(); pair != nil; pair = pair.Next() {
			ov, ok := o.dict.Get(pair.Key)
			if !ok || !pair.Value.Equal(ov) {
				return false
			}
		}
		return true
	case KindUUID:
		return v.u == o.u
	case KindTime:
		return v.t.Equal(o.t)
	case KindModel:
		return v.m.Equal(o.m)
	default:
		return false
	}
}

// canonicalKey encodes a Value as a string that is identical exactly for
// equal Values. Used for set de-duplication and deterministic set ordering.
func (v Value) canonicalKey() string {
	switch v.kind {
	case KindNull:
		return "z"
	case KindBool:
		if v.b {
			return "b1"
		}
		return "b0"
	case KindInt:
		return "i" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		return "f" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		// Quoted so payload bytes cannot mimic the encoding's own
		// delimiters and collide across element boundaries.
		return "s" + strconv.Quote(v.s)
	case KindBytes:
		return "y" + strconv.Quote(string(v.bs))
	case KindList, KindSet:
		var sb strings.Builder
		sb.WriteString("l[")
		for i, e := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(e.canonicalKey())
		}
		sb.WriteByte(']')
		return sb.String()
	case KindMap:
		keys := v.MapKeys()
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteString("m{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			e, _ := v.dict.Get(k)
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			sb.WriteString(e.canonicalKey())
		}
		sb.WriteByte('}')
		return sb.String()
	case KindUUID:
		return "u" + v.u.String()
	case KindTime:
		return "t" + v.t.UTC().Format(time.RFC3339Nano)
	case KindModel:
		return "M" + fmt.Sprintf("%p", v.m)
	default:
		return "?"
	}
}

// String renders the Value for error messages and debugging.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindBytes:
		return fmt.Sprintf("bytes(%q)", v.bs)
	case KindList, KindSet:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		if v.kind == KindSet {
			return "{" + strings.Join(parts, ", ") + "}"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		var sb strings.Builder
		sb.WriteByte('{')
		first := true
		for pair := v.dict.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(strconv.Quote(pair.Key))
			sb.WriteString(": ")
			sb.WriteString(pair.Value.String())
		}
		sb.WriteByte('}')
		return sb.String()
	case KindUUID:
		return v.u.String()
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindModel:
		if v.m == nil {
			return "model(nil)"
		}
		return v.m.String()
	default:
		return "invalid"
	}
}

///////////////////////////////////////////////////////////////////////////////
// Go interop
///////////////////////////////////////////////////////////////////////////////

// FromGo converts a Go native value into a Value. Unsupported Go types map to
// their string rendering; decoders should prefer the typed constructors.
func FromGo(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Int(int64(t))
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case uuid.UUID:
		return UUID(t)
	case time.Time:
		return Time(t)
	case *Instance:
		return Model(t)
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = FromGo(e)
		}
		return List(elems...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromGo(e)
		}
		return Map(m)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ToGo converts a Value back to a Go native value. Nested model instances
// become plain maps (see Instance.Dump); no validation happens on the way out.
func (v Value) ToGo() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.bs
	case KindList, KindSet:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.ToGo()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.dict.Len())
		for pair := v.dict.Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key] = pair.Value.ToGo()
		}
		return out
	case KindUUID:
		return v.u
	case KindTime:
		return v.t
	case KindModel:
		return v.m.Dump()
	default:
		return nil
	}
}
