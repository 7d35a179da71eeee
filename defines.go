package veld

// constants for hook phases
const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// Phase tags a hook as running before or after type coercion.
type Phase string

// constants for the extra-fields policy
const (
	extraUnset ExtraPolicy = iota // zero value, resolved to ExtraIgnore at compile
	ExtraIgnore
	ExtraForbid
	ExtraAllow
)

// ExtraPolicy controls what happens to input keys that match no declared
// field (and no alias).
type ExtraPolicy int

// Error type tags. The taxonomy is closed: new failures get new tags, existing
// tags are never overloaded with new meanings.
const (
	// structural
	ErrTypeMissing        ErrorType = "missing"
	ErrTypeExtraForbidden ErrorType = "extra_forbidden"

	// type-mismatch family
	ErrTypeIntType       ErrorType = "int_type"
	ErrTypeFloatType     ErrorType = "float_type"
	ErrTypeStringType    ErrorType = "string_type"
	ErrTypeBoolType      ErrorType = "bool_type"
	ErrTypeBytesType     ErrorType = "bytes_type"
	ErrTypeListType      ErrorType = "list_type"
	ErrTypeFrozenSetType ErrorType = "frozen_set_type"
	ErrTypeMapType       ErrorType = "map_type"
	ErrTypeModelType     ErrorType = "model_type"

	// coercion-failure family
	ErrTypeIntParsing      ErrorType = "int_parsing"
	ErrTypeIntFromFloat    ErrorType = "int_from_float"
	ErrTypeFiniteNumber    ErrorType = "finite_number"
	ErrTypeFloatParsing    ErrorType = "float_parsing"
	ErrTypeBoolParsing     ErrorType = "bool_parsing"
	ErrTypeStringUnicode   ErrorType = "string_unicode"
	ErrTypeUUIDParsing     ErrorType = "uuid_parsing"
	ErrTypeDatetimeParsing ErrorType = "datetime_parsing"
	ErrTypeLiteral         ErrorType = "literal_error"

	// hook-signaled failures
	ErrTypeValueError     ErrorType = "value_error"
	ErrTypeAssertionError ErrorType = "assertion_error"
	ErrTypeTypeError      ErrorType = "type_error"
)

// ErrorType is a tag from the closed error taxonomy.
type ErrorType string

// RootField is the path segment used for model-scoped hook failures.
const RootField = "__root__"
