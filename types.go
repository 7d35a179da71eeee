package veld

import (
	"fmt"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// Type descriptors
///////////////////////////////////////////////////////////////////////////////

// TypeKind discriminates the declared type of a field.
type TypeKind uint8

const (
	TypeAny TypeKind = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBool
	TypeBytes
	TypeList
	TypeSet
	TypeMap
	TypeModel
	TypeLiteral
	TypeUUID
	TypeTime
	TypeVar
)

// TypeRef describes a declared field type: a primitive, a container over
// element types, a nested model, a literal (constrained) set of permitted
// values, or an open type variable of a generic model.
type TypeRef struct {
	kind        TypeKind
	elem        *TypeRef // list/set element, map value
	key         *TypeRef // map key
	model       *ModelDef
	literals    []Value
	varName     string
	allowInfNan bool // float targets only
}

// AnyType accepts every raw variant unchanged.
func AnyType() TypeRef { return TypeRef{kind: TypeAny} }

// IntType declares an integer target.
func IntType() TypeRef { return TypeRef{kind: TypeInt} }

// FloatType declares a float target. NaN and infinities are rejected unless
// AllowInfNan is applied.
func FloatType() TypeRef { return TypeRef{kind: TypeFloat} }

// AllowInfNan permits non-finite values on a float target.
func (t TypeRef) AllowInfNan() TypeRef {
	t.allowInfNan = true
	return t
}

// StringType declares a string target.
func StringType() TypeRef { return TypeRef{kind: TypeString} }

// BoolType declares a boolean target.
func BoolType() TypeRef { return TypeRef{kind: TypeBool} }

// BytesType declares a byte-sequence target.
func BytesType() TypeRef { return TypeRef{kind: TypeBytes} }

// ListOf declares an ordered sequence whose elements coerce to elem.
func ListOf(elem TypeRef) TypeRef { return TypeRef{kind: TypeList, elem: &elem} }

// SetOf declares a de-duplicated collection whose elements coerce to elem.
func SetOf(elem TypeRef) TypeRef { return TypeRef{kind: TypeSet, elem: &elem} }

// MapOf declares a mapping with coerced keys and values.
func MapOf(key, value TypeRef) TypeRef {
	return TypeRef{kind: TypeMap, key: &key, elem: &value}
}

// ModelOf declares a nested model target.
func ModelOf(def *ModelDef) TypeRef { return TypeRef{kind: TypeModel, model: def} }

// Literal declares a constrained target permitting exactly the given values.
func Literal(permitted ...Value) TypeRef {
	return TypeRef{kind: TypeLiteral, literals: permitted}
}

// UUIDType declares a UUID target.
func UUIDType() TypeRef { return TypeRef{kind: TypeUUID} }

// TimeType declares a timestamp target.
func TimeType() TypeRef { return TypeRef{kind: TypeTime} }

// Var declares an open type variable, bound later via ModelDef.Bind or
// ModelDef.BindVars.
func Var(name string) TypeRef { return TypeRef{kind: TypeVar, varName: name} }

///////////////////////////////////////////////////////////////////////////////
// Binding resolution
///////////////////////////////////////////////////////////////////////////////

// resolve substitutes bound type variables, returning the resolved TypeRef
// and the names of variables still open underneath it.
func (t TypeRef) resolve(bindings map[string]TypeRef) (TypeRef, []string) {
	switch t.kind {
	case TypeVar:
		if bound, ok := bindings[t.varName]; ok {
			// A binding may itself reference further variables.
			return bound.resolve(bindings)
		}
		return t, []string{t.varName}
	case TypeList, TypeSet:
		elem, open := t.elem.resolve(bindings)
		t.elem = &elem
		return t, open
	case TypeMap:
		key, openK := t.key.resolve(bindings)
		elem, openV := t.elem.resolve(bindings)
		t.key = &key
		t.elem = &elem
		return t, append(openK, openV...)
	default:
		return t, nil
	}
}

// signature renders a canonical description of the type, used both for
// binding-tuple cache keys and error messages.
func (t TypeRef) signature() string {
	switch t.kind {
	case TypeAny:
		return "any"
	case TypeInt:
		return "int"
	case TypeFloat:
		if t.allowInfNan {
			return "float(inf-nan)"
		}
		return "float"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeBytes:
		return "bytes"
	case TypeList:
		return "list[" + t.elem.signature() + "]"
	case TypeSet:
		return "set[" + t.elem.signature() + "]"
	case TypeMap:
		return "map[" + t.key.signature() + "," + t.elem.signature() + "]"
	case TypeModel:
		if t.model == nil {
			return "model(?)"
		}
		return "model(" + t.model.name + "#" + fmt.Sprintf("%p", t.model.origin()) + t.model.bindingKey() + ")"
	case TypeLiteral:
		parts := make([]string, len(t.literals))
		for i, v := range t.literals {
			parts[i] = v.canonicalKey()
		}
		return "literal[" + strings.Join(parts, "|") + "]"
	case TypeUUID:
		return "uuid"
	case TypeTime:
		return "time"
	case TypeVar:
		return "$" + t.varName
	default:
		return "invalid"
	}
}
