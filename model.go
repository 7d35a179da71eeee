package veld

import (
	"fmt"
	"sort"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// Model configuration
///////////////////////////////////////////////////////////////////////////////

// Config carries model-level validation flags. A derived model inherits its
// parent's config; fields the child leaves unset keep the parent's values
// (merged at compile time).
type Config struct {
	// Extra controls handling of input keys matching no declared field.
	Extra ExtraPolicy
	// ValidateAssignment re-runs the single-field pipeline slice on Set.
	ValidateAssignment bool
	// Strict disables type-widening coercions for every field that does not
	// set its own strictness.
	Strict bool
}

///////////////////////////////////////////////////////////////////////////////
// Model declaration
///////////////////////////////////////////////////////////////////////////////

// ModelDef is the mutable declaration of a model: its ordered fields, its
// hooks, its config and its generic type parameters. A ModelDef is a
// registration surface only; nothing validates until it compiles into a
// ModelSpec.
type ModelDef struct {
	name       string
	base       *ModelDef
	fields     []*FieldDef
	fieldHooks []fieldHookDef
	modelHooks []modelHookDef
	config     *Config
	typeParams []string
	bindings   map[string]TypeRef
	privates   []privateDef

	// boundFrom points at the declaration a Bind/BindVars derivative came
	// from, so every binding of one generic model shares a cache identity.
	boundFrom *ModelDef

	// defErrs collects declaration mistakes (bad Bind arity, unknown type
	// variable) surfaced as a SchemaError at compile time, keeping the
	// builder chainable.
	defErrs []error
}

// privateDef is a non-validated attribute initialized on every instance.
type privateDef struct {
	name string
	def  Value
}

// NewModel starts a model declaration.
func NewModel(name string) *ModelDef {
	return &ModelDef{name: name}
}

// Field appends a field declaration. Redeclaring an inherited field replaces
// it in place, keeping the parent's position in validation order.
func (d *ModelDef) Field(f *FieldDef) *ModelDef {
	d.fields = append(d.fields, f)
	return d
}

// BeforeField attaches a pre-coercion hook to a field by name, including
// fields inherited from a base model.
func (d *ModelDef) BeforeField(field, name string, fn any, opts ...HookOpt) *ModelDef {
	o := applyHookOpts(opts)
	d.fieldHooks = append(d.fieldHooks, fieldHookDef{
		field:   field,
		phase:   PhaseBefore,
		hookDef: hookDef{name: name, fn: fn, allowReuse: o.allowReuse, always: o.always, eachItem: o.eachItem},
	})
	return d
}

// AfterField attaches a post-coercion hook to a field by name.
func (d *ModelDef) AfterField(field, name string, fn any, opts ...HookOpt) *ModelDef {
	o := applyHookOpts(opts)
	d.fieldHooks = append(d.fieldHooks, fieldHookDef{
		field:   field,
		phase:   PhaseAfter,
		hookDef: hookDef{name: name, fn: fn, allowReuse: o.allowReuse, always: o.always, eachItem: o.eachItem},
	})
	return d
}

// BeforeModel registers a model-scoped hook receiving the raw input mapping
// before any field processing. Its returned map replaces the input wholesale.
func (d *ModelDef) BeforeModel(name string, fn ModelHookFunc, opts ...HookOpt) *ModelDef {
	o := applyHookOpts(opts)
	d.modelHooks = append(d.modelHooks, modelHookDef{
		name: name, phase: PhaseBefore, fn: fn, allowReuse: o.allowReuse,
	})
	return d
}

// AfterModel registers a model-scoped hook receiving the assembled field
// mapping after per-field processing.
func (d *ModelDef) AfterModel(name string, fn ModelHookFunc, opts ...HookOpt) *ModelDef {
	o := applyHookOpts(opts)
	d.modelHooks = append(d.modelHooks, modelHookDef{
		name: name, phase: PhaseAfter, fn: fn,
		allowReuse: o.allowReuse, skipOnFailure: o.skipOnFailure,
	})
	return d
}

// WithConfig sets the model's config flags.
func (d *ModelDef) WithConfig(cfg Config) *ModelDef {
	d.config = &cfg
	return d
}

// Private declares a non-validated attribute initialized to def on every
// instance, separate from declared fields.
func (d *ModelDef) Private(name string, def Value) *ModelDef {
	d.privates = append(d.privates, privateDef{name: name, def: def})
	return d
}

// TypeParams declares the model's open type variables, in binding order.
func (d *ModelDef) TypeParams(names ...string) *ModelDef {
	d.typeParams = names
	return d
}

// Extend starts a derived model: the parent's fields and hooks come first,
// the child's additions follow. Field hooks merge by concatenation, parent
// before child.
func (d *ModelDef) Extend(name string) *ModelDef {
	return &ModelDef{name: name, base: d}
}

///////////////////////////////////////////////////////////////////////////////
// Generic binding
///////////////////////////////////////////////////////////////////////////////

// Bind binds the model's type parameters positionally, producing a derived
// declaration. Binding fewer arguments than declared parameters is a
// declaration error; use BindVars for partial binding.
func (d *ModelDef) Bind(args ...TypeRef) *ModelDef {
	derived := d.derive()
	if len(args) != len(d.typeParams) {
		derived.defErrs = append(derived.defErrs, fmt.Errorf(
			"model %s declares %d type parameters, Bind got %d arguments",
			d.name, len(d.typeParams), len(args)))
		return derived
	}
	for i, name := range d.typeParams {
		derived.bindings[name] = args[i]
	}
	return derived
}

// BindVars binds type parameters by name. Partial binding is legal: the
// result compiles to a plan with the remaining variables still open, usable
// for further binding but not for validation.
func (d *ModelDef) BindVars(vars map[string]TypeRef) *ModelDef {
	derived := d.derive()
	known := make(map[string]bool, len(d.typeParams))
	for _, name := range d.allTypeParams() {
		known[name] = true
	}
	for name, t := range vars {
		if !known[name] {
			derived.defErrs = append(derived.defErrs, fmt.Errorf(
				"model %s has no type parameter %q", d.name, name))
			continue
		}
		derived.bindings[name] = t
	}
	return derived
}

// derive makes a shallow binding derivative sharing the declaration identity.
func (d *ModelDef) derive() *ModelDef {
	derived := *d
	derived.boundFrom = d.origin()
	derived.bindings = make(map[string]TypeRef, len(d.bindings)+2)
	for k, v := range d.bindings {
		derived.bindings[k] = v
	}
	derived.defErrs = append([]error(nil), d.defErrs...)
	return &derived
}

// origin returns the declaration all bindings of this model share.
func (d *ModelDef) origin() *ModelDef {
	if d.boundFrom != nil {
		return d.boundFrom
	}
	return d
}

// allTypeParams collects type parameters over the whole ancestry.
func (d *ModelDef) allTypeParams() []string {
	var names []string
	if d.base != nil {
		names = d.base.allTypeParams()
	}
	return append(names, d.typeParams...)
}

// bindingKey renders the binding tuple canonically; the compile cache is
// keyed on (declaration identity, bindingKey).
func (d *ModelDef) bindingKey() string {
	if len(d.bindings) == 0 {
		return ""
	}
	names := make([]string, 0, len(d.bindings))
	for name := range d.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + d.bindings[name].signature()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ancestry returns the declaration chain, root first.
func (d *ModelDef) ancestry() []*ModelDef {
	if d.base == nil {
		return []*ModelDef{d}
	}
	return append(d.base.ancestry(), d)
}
