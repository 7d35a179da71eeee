package veld

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

///////////////////////////////////////////////////////////////////////////////
// Compiled model plan
///////////////////////////////////////////////////////////////////////////////

// ModelSpec is the compiled validation plan for one model and one type
// binding. It is immutable after compilation and safe for concurrent use;
// each validation call owns its own context.
type ModelSpec struct {
	name        string
	fields      []*FieldSpec
	byName      map[string]int
	byKey       map[string]int
	beforeModel []compiledModelHook
	afterModel  []compiledModelHook
	privates    []privateDef
	config      Config
	registry    *Registry
	openVars    []string
}

// Name returns the model name.
func (s *ModelSpec) Name() string { return s.name }

// Fields returns the ordered compiled field list. Callers must not modify it.
func (s *ModelSpec) Fields() []*FieldSpec { return s.fields }

// Config returns the effective model configuration.
func (s *ModelSpec) Config() Config { return s.config }

// Open reports whether type variables remain unbound. An open spec may be
// inspected and bound further but refuses validation.
func (s *ModelSpec) Open() bool { return len(s.openVars) > 0 }

// OpenVars returns the names of still-unbound type variables.
func (s *ModelSpec) OpenVars() []string { return s.openVars }

///////////////////////////////////////////////////////////////////////////////
// Validation context
///////////////////////////////////////////////////////////////////////////////

// runContext is the per-call mutable state threaded through one validation:
// already-validated field values (visible to later fields' hooks), collected
// extras, and the error accumulator. Never shared across calls.
type runContext struct {
	spec      *ModelSpec
	validated map[string]Value
	extras    *orderedmap.OrderedMap[string, Value]
	acc       errorAccumulator
}

func newRunContext(s *ModelSpec) *runContext {
	return &runContext{
		spec:      s,
		validated: make(map[string]Value, len(s.fields)),
		extras:    orderedmap.New[string, Value](),
	}
}

// snapshot copies the validated-fields view for a hook. Hooks get their own
// copy, never a live alias, so visibility order stays auditable.
func (ctx *runContext) snapshot(exclude string) map[string]Value {
	data := make(map[string]Value, len(ctx.validated))
	for name, v := range ctx.validated {
		if name == exclude {
			continue
		}
		data[name] = v
	}
	return data
}

///////////////////////////////////////////////////////////////////////////////
// Entry points
///////////////////////////////////////////////////////////////////////////////

// Validate checks a raw input mapping against the plan and returns either a
// fully populated instance or a ValidationError aggregating every failure.
func (s *ModelSpec) Validate(input Value) (*Instance, error) {
	if s.Open() {
		return nil, &SchemaError{Model: s.name, err: fmt.Errorf("%w: %v", ErrOpenTypeVariables, s.openVars)}
	}

	ctx := newRunContext(s)

	if input.Kind() != KindMap {
		ctx.acc.add(ErrorDetail{
			Type:  ErrTypeModelType,
			Loc:   Path{},
			Msg:   fmt.Sprintf("Input should be a valid dictionary or instance of %s", s.name),
			Input: input,
		})
		return nil, ctx.acc.report(s.name)
	}

	// Model before-hooks see the raw mapping ahead of any field processing
	// and may rewrite it wholesale. A failure here aborts: there is nothing
	// coherent to process.
	raw := input
	for _, h := range s.beforeModel {
		out, err := safeModelHook(h.fn, raw)
		if err != nil {
			ctx.acc.add(classifyHookError(err, Path{PathName(RootField)}, raw))
			return nil, ctx.acc.report(s.name)
		}
		if out.Kind() != KindMap {
			ctx.acc.add(ErrorDetail{
				Type:  ErrTypeValueError,
				Loc:   Path{PathName(RootField)},
				Msg:   fmt.Sprintf("Value error, model hook %q must return a mapping, got %s", h.name, out.Kind()),
				Input: raw,
			})
			return nil, ctx.acc.report(s.name)
		}
		raw = out
	}

	for _, fs := range s.fields {
		v, present := lookupField(raw, fs)
		s.processField(ctx, fs, v, present)
	}

	s.collectExtras(ctx, raw)
	s.runAfterModelHooks(ctx)

	if rep := ctx.acc.report(s.name); rep != nil {
		return nil, rep
	}
	return s.assemble(ctx), nil
}

// ValidateMap is Validate over a plain Go map.
func (s *ModelSpec) ValidateMap(m map[string]Value) (*Instance, error) {
	return s.Validate(Map(m))
}

// ValidateArgs validates positional input: values map onto declared fields in
// declaration order.
func (s *ModelSpec) ValidateArgs(args ...Value) (*Instance, error) {
	if len(args) > len(s.fields) {
		acc := errorAccumulator{}
		acc.add(ErrorDetail{
			Type:  ErrTypeTypeError,
			Loc:   Path{PathName(RootField)},
			Msg:   fmt.Sprintf("%s takes at most %d positional values, got %d", s.name, len(s.fields), len(args)),
			Input: List(args...),
		})
		return nil, acc.report(s.name)
	}
	om := orderedmap.New[string, Value]()
	for i, v := range args {
		key := s.fields[i].Name
		if s.fields[i].Alias != "" {
			key = s.fields[i].Alias
		}
		om.Set(key, v)
	}
	return s.Validate(Dict(om))
}

///////////////////////////////////////////////////////////////////////////////
// Per-field pipeline
///////////////////////////////////////////////////////////////////////////////

// lookupField finds the input value for a field under its accepted keys.
func lookupField(raw Value, fs *FieldSpec) (Value, bool) {
	for _, key := range fs.InputKeys() {
		if v, ok := raw.MapGet(key); ok {
			return v, true
		}
	}
	return Null(), false
}

// processField drives one field through hooks and coercion. A failure marks
// this field only; processing always continues with the next field.
func (s *ModelSpec) processField(ctx *runContext, fs *FieldSpec, raw Value, present bool) {
	info := Info{FieldName: fs.Name, Data: ctx.snapshot(fs.Name)}

	if !present {
		if fs.required() {
			ctx.acc.add(newDetail(ErrTypeMissing, fs.Name, "Field required", Null()))
			return
		}
		// Defaults skip coercion and ordinary hooks; only hooks marked
		// Always see the committed default.
		v := fs.defaultFor()
		if fs.hasAlwaysHooks() {
			v, ok := s.runHookChain(ctx, fs, fs.before, v, info, true)
			if !ok {
				return
			}
			v, ok = s.runHookChain(ctx, fs, fs.after, v, info, true)
			if !ok {
				return
			}
			ctx.validated[fs.Name] = v
			return
		}
		ctx.validated[fs.Name] = v
		return
	}

	v, ok := s.runHookChain(ctx, fs, fs.before, raw, info, false)
	if !ok {
		return
	}

	coerced, details := coerceValue(v, fs.Type, fs.Strict, s.registry)
	if len(details) > 0 {
		ctx.acc.addNested(PathName(fs.Name), details)
		return
	}

	v, ok = s.runHookChain(ctx, fs, fs.after, coerced, info, false)
	if !ok {
		return
	}

	ctx.validated[fs.Name] = v
}

// runHookChain threads a value through one phase's hooks. With onlyAlways set,
// hooks not marked Always are skipped. A failure records the field-prefixed
// details and stops the chain.
func (s *ModelSpec) runHookChain(ctx *runContext, fs *FieldSpec, hooks []compiledHook, v Value, info Info, onlyAlways bool) (Value, bool) {
	for _, h := range hooks {
		if onlyAlways && !h.always {
			continue
		}
		out, details := applyHook(h, v, info)
		if len(details) > 0 {
			ctx.acc.addNested(PathName(fs.Name), details)
			return v, false
		}
		v = out
	}
	return v, true
}

// applyHook runs one hook over a value, returning failure details with paths
// relative to the field. Hooks marked EachItem run per element of a list, set
// or map value, with the element's index or key on the path; on any other
// kind they run on the value itself.
func applyHook(h compiledHook, v Value, info Info) (Value, []ErrorDetail) {
	if h.eachItem {
		switch v.Kind() {
		case KindList, KindSet:
			elems := v.ListVals()
			out := make([]Value, 0, len(elems))
			var details []ErrorDetail
			for i, el := range elems {
				res, err := safeHook(h.fn, el, info)
				if err != nil {
					details = append(details, classifyHookError(err, Path{PathIndex(i)}, el))
					continue
				}
				out = append(out, res)
			}
			if len(details) > 0 {
				return v, details
			}
			if v.Kind() == KindSet {
				return Set(out...), nil
			}
			return List(out...), nil
		case KindMap:
			om := orderedmap.New[string, Value]()
			var details []ErrorDetail
			for pair := v.MapVal().Oldest(); pair != nil; pair = pair.Next() {
				res, err := safeHook(h.fn, pair.Value, info)
				if err != nil {
					details = append(details, classifyHookError(err, Path{PathName(pair.Key)}, pair.Value))
					continue
				}
				om.Set(pair.Key, res)
			}
			if len(details) > 0 {
				return v, details
			}
			return Dict(om), nil
		}
	}
	out, err := safeHook(h.fn, v, info)
	if err != nil {
		return v, []ErrorDetail{classifyHookError(err, Path{}, v)}
	}
	return out, nil
}

// collectExtras applies the extra-fields policy to unmatched input keys.
func (s *ModelSpec) collectExtras(ctx *runContext, raw Value) {
	for pair := raw.MapVal().Oldest(); pair != nil; pair = pair.Next() {
		if _, declared := s.byKey[pair.Key]; declared {
			continue
		}
		switch s.config.Extra {
		case ExtraForbid:
			ctx.acc.add(newDetail(ErrTypeExtraForbidden, pair.Key, "Extra inputs are not permitted", pair.Value))
		case ExtraAllow:
			ctx.extras.Set(pair.Key, pair.Value)
		default:
			// ExtraIgnore: dropped silently.
		}
	}
}

// runAfterModelHooks runs model after-hooks over the assembled field mapping.
// Hooks not marked SkipOnFailure run even when fields failed; their failures
// are appended to whatever field errors already exist.
func (s *ModelSpec) runAfterModelHooks(ctx *runContext) {
	if len(s.afterModel) == 0 {
		return
	}
	failed := !ctx.acc.empty()
	values := s.assembleValues(ctx)

	for _, h := range s.afterModel {
		if h.skipOnFailure && failed {
			continue
		}
		out, err := safeModelHook(h.fn, values)
		if err != nil {
			ctx.acc.add(classifyHookError(err, Path{PathName(RootField)}, values))
			continue
		}
		if out.Kind() != KindMap {
			ctx.acc.add(ErrorDetail{
				Type:  ErrTypeValueError,
				Loc:   Path{PathName(RootField)},
				Msg:   fmt.Sprintf("Value error, model hook %q must return a mapping, got %s", h.name, out.Kind()),
				Input: values,
			})
			continue
		}
		values = out
		s.applyValues(ctx, out)
	}
}

// assembleValues builds the declaration-ordered mapping of validated fields
// plus extras, the view model after-hooks receive.
func (s *ModelSpec) assembleValues(ctx *runContext) Value {
	om := orderedmap.New[string, Value]()
	for _, fs := range s.fields {
		if v, ok := ctx.validated[fs.Name]; ok {
			om.Set(fs.Name, v)
		}
	}
	for pair := ctx.extras.Oldest(); pair != nil; pair = pair.Next() {
		om.Set(pair.Key, pair.Value)
	}
	return Dict(om)
}

// applyValues writes a model hook's rewritten mapping back: declared fields
// are replaced, unknown keys become extras under extra=allow and are dropped
// otherwise. Fields the hook omitted keep their current values.
func (s *ModelSpec) applyValues(ctx *runContext, values Value) {
	for pair := values.MapVal().Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := s.byName[pair.Key]; ok {
			ctx.validated[pair.Key] = pair.Value
			continue
		}
		if s.config.Extra == ExtraAllow {
			ctx.extras.Set(pair.Key, pair.Value)
		}
	}
}

// assemble builds the instance once the accumulator is known to be empty.
func (s *ModelSpec) assemble(ctx *runContext) *Instance {
	inst := &Instance{
		spec:    s,
		values:  ctx.validated,
		extras:  ctx.extras,
		private: make(map[string]Value, len(s.privates)),
	}
	for _, p := range s.privates {
		inst.private[p.name] = p.def
	}
	return inst
}

///////////////////////////////////////////////////////////////////////////////
// Hook execution
///////////////////////////////////////////////////////////////////////////////

// panicError carries the text of a recovered hook panic.
type panicError struct {
	text string
}

func (e *panicError) Error() string { return e.text }

// safeHook invokes a field hook, converting a panic into a panicError so an
// arbitrary hook fault never escapes the pipeline boundary.
func safeHook(fn HookFunc, v Value, info Info) (out Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{text: fmt.Sprint(rec)}
		}
	}()
	return fn(v, info)
}

// safeModelHook invokes a model hook under the same panic barrier.
func safeModelHook(fn ModelHookFunc, values Value) (out Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{text: fmt.Sprint(rec)}
		}
	}()
	return fn(values)
}

// classifyHookError maps a hook failure onto the error taxonomy: domain
// rejections become value_error (type_error for the positional-logic
// convention), recovered panics become assertion_error.
func classifyHookError(err error, loc Path, input Value) ErrorDetail {
	switch e := err.(type) {
	case *panicError:
		return ErrorDetail{
			Type:  ErrTypeAssertionError,
			Loc:   loc,
			Msg:   "Assertion failed, " + e.text,
			Input: input,
			Ctx:   map[string]any{"error": e.text},
		}
	case *typeHookError:
		return ErrorDetail{
			Type:  ErrTypeTypeError,
			Loc:   loc,
			Msg:   e.msg,
			Input: input,
		}
	default:
		return ErrorDetail{
			Type:  ErrTypeValueError,
			Loc:   loc,
			Msg:   "Value error, " + err.Error(),
			Input: input,
			Ctx:   map[string]any{"error": err.Error()},
		}
	}
}
