package veld

import (
	"errors"
	"fmt"
	"sync"

	"dario.cat/mergo"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

///////////////////////////////////////////////////////////////////////////////
// Errors
///////////////////////////////////////////////////////////////////////////////

var (
	ErrNilModelDef        = errors.New("model definition is nil")
	ErrDuplicateField     = errors.New("duplicate field name in model")
	ErrDuplicateInputKey  = errors.New("two fields accept the same input key")
	ErrOpenTypeVariables  = errors.New("model has unbound type variables")
	ErrConfigMergeFailure = errors.New("failed to merge inherited model config")
)

// SchemaError reports a model declaration the registry refuses to compile.
// It aggregates every problem found, not just the first.
type SchemaError struct {
	Model string
	err   error
}

// Error implements the error interface.
func (se *SchemaError) Error() string {
	return fmt.Sprintf("invalid schema for model %s: %v", se.Model, se.err)
}

// Unwrap exposes the aggregated declaration problems.
func (se *SchemaError) Unwrap() error { return se.err }

///////////////////////////////////////////////////////////////////////////////
// Registry
///////////////////////////////////////////////////////////////////////////////

// Registry compiles model declarations into immutable ModelSpec plans and
// caches them per (declaration, binding tuple). Compilation is the only
// mutating path; concurrent first compilations of the same key converge on
// one cached result.
type Registry struct {
	cache     sync.Map // specKey -> *specEntry
	compiling sync.Map // specKey -> bool, keys mid-compilation (cycle guard)
	lint      zerolog.Logger
}

// specKey identifies one compilation: the root declaration plus the binding
// tuple. Holding the declaration pointer itself keeps it reachable for as
// long as its cached spec is.
type specKey struct {
	origin   *ModelDef
	bindings string
}

// specEntry is the once-guarded slot for one cache key.
type specEntry struct {
	once sync.Once
	spec *ModelSpec
	err  error
}

// RegistryOpts configures a Registry.
type RegistryOpts struct {
	// Lint receives compile-time diagnostics for accepted-but-deprecated
	// declarations (legacy hook signatures). Defaults to a no-op logger.
	Lint *zerolog.Logger
}

// NewRegistry creates a registry.
func NewRegistry(opts RegistryOpts) *Registry {
	lint := zerolog.Nop()
	if opts.Lint != nil {
		lint = *opts.Lint
	}
	return &Registry{lint: lint}
}

// Compile resolves a declaration (inherited fields, hook chains, type
// bindings, config) into a ModelSpec. Results are memoized: compiling the
// same declaration with the same binding tuple returns the same spec.
func (r *Registry) Compile(def *ModelDef) (*ModelSpec, error) {
	if def == nil {
		return nil, &SchemaError{Model: "<nil>", err: ErrNilModelDef}
	}

	key := specKey{origin: def.origin(), bindings: def.bindingKey()}

	v, _ := r.cache.LoadOrStore(key, &specEntry{})
	entry := v.(*specEntry)
	entry.once.Do(func() {
		r.compiling.Store(key, true)
		defer r.compiling.Delete(key)
		entry.spec, entry.err = r.compile(def)
	})
	return entry.spec, entry.err
}

// MustCompile is Compile, panicking on declaration errors. For package-level
// model variables.
func (r *Registry) MustCompile(def *ModelDef) *ModelSpec {
	spec, err := r.Compile(def)
	if err != nil {
		panic(err)
	}
	return spec
}

///////////////////////////////////////////////////////////////////////////////
// Compilation
///////////////////////////////////////////////////////////////////////////////

func (r *Registry) compile(def *ModelDef) (*ModelSpec, error) {
	var errs error

	chain := def.ancestry()

	for _, level := range chain {
		for _, defErr := range level.defErrs {
			errs = multierr.Append(errs, defErr)
		}
	}

	// Effective type bindings, root first so derived models may rebind.
	bindings := make(map[string]TypeRef)
	for _, level := range chain {
		for name, t := range level.bindings {
			bindings[name] = t
		}
	}

	// Field order: parent fields first, child-only fields appended.
	// Redeclared fields replace the parent's in place.
	type fieldLevel struct {
		def   *FieldDef
		level int
	}
	var order []string
	perField := make(map[string]*fieldLevel)
	for i, level := range chain {
		seenAtLevel := make(map[string]bool)
		for _, f := range level.fields {
			if seenAtLevel[f.name] {
				errs = multierr.Append(errs, fmt.Errorf("%w: %s.%s", ErrDuplicateField, level.name, f.name))
				continue
			}
			seenAtLevel[f.name] = true
			if existing, ok := perField[f.name]; ok {
				existing.def = f
				existing.level = i
				continue
			}
			perField[f.name] = &fieldLevel{def: f, level: i}
			order = append(order, f.name)
		}
	}

	// Field-scoped hooks: for each (field, phase), supertype hooks first,
	// then subtype hooks, declaration order within each level. Hooks on the
	// FieldDef itself count as declared at the level owning that FieldDef.
	beforeDefs := make(map[string][]hookScoped)
	afterDefs := make(map[string][]hookScoped)
	for i, level := range chain {
		for name, fl := range perField {
			if fl.level != i {
				continue
			}
			for _, h := range fl.def.before {
				beforeDefs[name] = append(beforeDefs[name], hookScoped{hookDef: h, model: level.name})
			}
			for _, h := range fl.def.after {
				afterDefs[name] = append(afterDefs[name], hookScoped{hookDef: h, model: level.name})
			}
		}
		for _, fh := range level.fieldHooks {
			if _, ok := perField[fh.field]; !ok {
				errs = multierr.Append(errs, fmt.Errorf(
					"%w: validator %q targets %q on model %s", ErrHookUnknownField, fh.name, fh.field, level.name))
				continue
			}
			target := afterDefs
			if fh.phase == PhaseBefore {
				target = beforeDefs
			}
			target[fh.field] = append(target[fh.field], hookScoped{hookDef: fh.hookDef, model: level.name})
		}
	}

	// Effective config: parent values filled in first, non-zero child
	// values override.
	var cfg Config
	for _, level := range chain {
		if level.config == nil {
			continue
		}
		if err := mergo.Merge(&cfg, *level.config, mergo.WithOverride); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %v", ErrConfigMergeFailure, err))
		}
	}
	if cfg.Extra == extraUnset {
		cfg.Extra = ExtraIgnore
	}

	spec := &ModelSpec{
		name:     def.name,
		byName:   make(map[string]int, len(order)),
		byKey:    make(map[string]int, len(order)),
		config:   cfg,
		registry: r,
	}

	var openVars []string
	for idx, name := range order {
		f := perField[name].def

		resolved, open := f.typ.resolve(bindings)
		openVars = append(openVars, open...)

		fs := &FieldSpec{
			Name:           f.name,
			Alias:          f.alias,
			Type:           resolved,
			Strict:         f.strict || cfg.Strict,
			Frozen:         f.frozen,
			HasDefault:     f.hasDefault,
			DefaultValue:   f.defaultValue,
			DefaultFactory: f.defaultFactory,
			populateByName: f.populateByName,
		}

		fs.before, errs = r.adaptHooks(def.name, name, beforeDefs[name], errs)
		fs.after, errs = r.adaptHooks(def.name, name, afterDefs[name], errs)

		spec.fields = append(spec.fields, fs)
		spec.byName[name] = idx
		for _, key := range fs.InputKeys() {
			if prev, taken := spec.byKey[key]; taken && prev != idx {
				errs = multierr.Append(errs, fmt.Errorf(
					"%w: %q claimed by both %s and %s", ErrDuplicateInputKey, key, spec.fields[prev].Name, name))
				continue
			}
			spec.byKey[key] = idx
		}
	}

	// Model-scoped hooks, parent first.
	seenModelHook := map[string]bool{}
	for _, level := range chain {
		for _, mh := range level.modelHooks {
			if mh.name == "" {
				errs = multierr.Append(errs, fmt.Errorf("%w (model %s)", ErrEmptyHookName, level.name))
				continue
			}
			scopeKey := string(mh.phase) + "/" + mh.name
			if seenModelHook[scopeKey] && !mh.allowReuse {
				errs = multierr.Append(errs, fmt.Errorf(
					"%w: %q (%s model hook on %s); mark it AllowReuse if intended", ErrDuplicateHook, mh.name, mh.phase, level.name))
				continue
			}
			seenModelHook[scopeKey] = true
			compiled := compiledModelHook{name: mh.name, fn: mh.fn, skipOnFailure: mh.skipOnFailure}
			if mh.phase == PhaseBefore {
				spec.beforeModel = append(spec.beforeModel, compiled)
			} else {
				spec.afterModel = append(spec.afterModel, compiled)
			}
		}
		for _, p := range level.privates {
			spec.privates = append(spec.privates, p)
		}
	}

	spec.openVars = dedupeStrings(openVars)

	// Surface nested-model declaration problems now rather than on first
	// use. Models already mid-compilation (self- or mutual recursion) are
	// resolved lazily through the cache instead.
	for _, fs := range spec.fields {
		errs = r.precompileNested(fs.Type, errs)
	}

	if errs != nil {
		return nil, &SchemaError{Model: def.name, err: errs}
	}
	return spec, nil
}

func (r *Registry) precompileNested(t TypeRef, errs error) error {
	switch t.kind {
	case TypeList, TypeSet:
		return r.precompileNested(*t.elem, errs)
	case TypeMap:
		errs = r.precompileNested(*t.key, errs)
		return r.precompileNested(*t.elem, errs)
	case TypeModel:
		nestedKey := specKey{origin: t.model.origin(), bindings: t.model.bindingKey()}
		if _, busy := r.compiling.Load(nestedKey); busy {
			return errs
		}
		if _, err := r.Compile(t.model); err != nil {
			errs = multierr.Append(errs, err)
		}
		return errs
	default:
		return errs
	}
}

// hookScoped tracks which declaration level a hook came from, for lint
// messages and duplicate reporting.
type hookScoped struct {
	hookDef
	model string
}

// adaptHooks resolves one (field, phase) hook chain: duplicate identity
// detection across the whole chain, then signature adaptation.
func (r *Registry) adaptHooks(model, field string, defs []hookScoped, errs error) ([]compiledHook, error) {
	if len(defs) == 0 {
		return nil, errs
	}
	out := make([]compiledHook, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, h := range defs {
		if h.name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w (field %q on model %s)", ErrEmptyHookName, field, h.model))
			continue
		}
		if seen[h.name] && !h.allowReuse {
			errs = multierr.Append(errs, fmt.Errorf(
				"%w: %q (field %q on model %s); mark it AllowReuse if intended", ErrDuplicateHook, h.name, field, h.model))
			continue
		}
		seen[h.name] = true

		fn, err := adaptHook(h.fn, h.model, field, h.name, r.lint)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, compiledHook{name: h.name, fn: fn, always: h.always, eachItem: h.eachItem})
	}
	return out, errs
}

func dedupeStrings(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

///////////////////////////////////////////////////////////////////////////////
// Global Singleton and Package Functions
///////////////////////////////////////////////////////////////////////////////

var _globalRegistry = NewRegistry(RegistryOpts{})

// Compile compiles a model declaration with the global registry.
func Compile(def *ModelDef) (*ModelSpec, error) {
	return _globalRegistry.Compile(def)
}

// MustCompile compiles with the global registry, panicking on declaration
// errors.
func MustCompile(def *ModelDef) *ModelSpec {
	return _globalRegistry.MustCompile(def)
}
