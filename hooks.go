package veld

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

///////////////////////////////////////////////////////////////////////////////
// Errors
///////////////////////////////////////////////////////////////////////////////

var (
	ErrUnrecognizedHookSignature = errors.New("unrecognized validator signature")
	ErrDuplicateHook             = errors.New("duplicate validator function")
	ErrHookUnknownField          = errors.New("validator defined for unknown field")
	ErrEmptyHookName             = errors.New("validator must be registered under a non-empty name")
)

///////////////////////////////////////////////////////////////////////////////
// Hook calling conventions
///////////////////////////////////////////////////////////////////////////////

// Info is the explicit validation context handed to a field hook: the name of
// the field being processed and a read-only snapshot of the fields already
// validated earlier in declaration order. Later fields are never visible.
type Info struct {
	FieldName string
	Data      map[string]Value
}

// HookFunc is the canonical field-hook shape. Every supported registration
// convention is adapted to it at compile time.
type HookFunc func(v Value, info Info) (Value, error)

// ModelHookFunc is the model-scoped hook shape. The argument is always a
// KindMap Value: the raw input mapping for before hooks, the assembled field
// mapping for after hooks. The returned map replaces the previous one.
type ModelHookFunc func(values Value) (Value, error)

// hookDef is one registered, not-yet-adapted field hook.
type hookDef struct {
	name       string
	fn         any
	allowReuse bool
	always     bool
	eachItem   bool
}

// modelHookDef is one registered model-scoped hook.
type modelHookDef struct {
	name          string
	phase         Phase
	fn            ModelHookFunc
	allowReuse    bool
	skipOnFailure bool
}

// fieldHookDef targets a field by name from the model level, the surface used
// to attach hooks to inherited fields.
type fieldHookDef struct {
	field string
	phase Phase
	hookDef
}

///////////////////////////////////////////////////////////////////////////////
// Hook options
///////////////////////////////////////////////////////////////////////////////

type hookOpts struct {
	allowReuse    bool
	skipOnFailure bool
	always        bool
	eachItem      bool
}

// HookOpt adjusts hook registration behavior.
type HookOpt func(*hookOpts)

// AllowReuse permits registering the same hook name more than once in the
// same scope and phase, for shared validator functions.
func AllowReuse() HookOpt {
	return func(o *hookOpts) { o.allowReuse = true }
}

// SkipOnFailure marks an after-phase model hook to be skipped when any field
// failed, instead of running it with partial data.
func SkipOnFailure() HookOpt {
	return func(o *hookOpts) { o.skipOnFailure = true }
}

// Always marks a field hook to run even when the input supplies nothing and
// the default is committed. Coercion still does not run on defaults; only
// hooks carrying this option see the default value.
func Always() HookOpt {
	return func(o *hookOpts) { o.always = true }
}

// EachItem applies a field hook to each element of a list, set or map value
// instead of the container as a whole. Failures carry the element's index or
// key in their path. On non-container values the hook runs on the value
// itself.
func EachItem() HookOpt {
	return func(o *hookOpts) { o.eachItem = true }
}

func applyHookOpts(opts []HookOpt) hookOpts {
	var o hookOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

///////////////////////////////////////////////////////////////////////////////
// Signature adaptation
///////////////////////////////////////////////////////////////////////////////

// adaptHook recognizes the supported field-hook calling conventions and wraps
// them into the canonical HookFunc. The bare-value and explicit-Info shapes
// are the stable conventions; the values-map shape is the legacy one, still
// accepted but reported through the registry's lint logger so declarations
// can migrate.
func adaptHook(fn any, model, field, name string, lint zerolog.Logger) (HookFunc, error) {
	switch h := fn.(type) {
	case func(Value) (Value, error):
		return func(v Value, _ Info) (Value, error) {
			return h(v)
		}, nil
	case func(Value, Info) (Value, error):
		return HookFunc(h), nil
	case func(Value, map[string]Value) (Value, error):
		lint.Warn().
			Str("model", model).
			Str("field", field).
			Str("validator", name).
			Msg("validator signatures using a bare values map are deprecated; take veld.Info instead")
		return func(v Value, info Info) (Value, error) {
			return h(v, info.Data)
		}, nil
	default:
		return nil, fmt.Errorf("%w %T for validator %q on field %q", ErrUnrecognizedHookSignature, fn, name, field)
	}
}

///////////////////////////////////////////////////////////////////////////////
// Compiled hooks
///////////////////////////////////////////////////////////////////////////////

// compiledHook is a field hook after signature adaptation, ready to run.
type compiledHook struct {
	name     string
	fn       HookFunc
	always   bool
	eachItem bool
}

// compiledModelHook is a model-scoped hook with its resolved flags.
type compiledModelHook struct {
	name          string
	fn            ModelHookFunc
	skipOnFailure bool
}
