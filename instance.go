package veld

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

///////////////////////////////////////////////////////////////////////////////
// Errors
///////////////////////////////////////////////////////////////////////////////

var (
	ErrFrozenField   = errors.New("field does not permit assignment")
	ErrUnknownExtra  = errors.New("model does not permit undeclared fields")
	ErrDecodeFailure = errors.New("failed to decode instance into destination")
)

///////////////////////////////////////////////////////////////////////////////
// Instance
///////////////////////////////////////////////////////////////////////////////

// Instance is the validated output of one successful validation call: a
// mapping from declared field name to coerced value, plus undeclared extras
// (under extra=allow) and private attributes. An Instance is never partially
// constructed: a failed validation produces no instance at all.
type Instance struct {
	spec    *ModelSpec
	values  map[string]Value
	extras  *orderedmap.OrderedMap[string, Value]
	private map[string]Value
}

// Spec returns the compiled plan this instance was validated against.
func (inst *Instance) Spec() *ModelSpec { return inst.spec }

// Get returns a declared field's value, or an extra stored under
// extra=allow.
func (inst *Instance) Get(name string) (Value, bool) {
	if v, ok := inst.values[name]; ok {
		return v, true
	}
	if v, ok := inst.extras.Get(name); ok {
		return v, true
	}
	return Null(), false
}

// MustGet is Get, panicking on unknown names. For tests and short-lived
// plumbing where the schema is known.
func (inst *Instance) MustGet(name string) Value {
	v, ok := inst.Get(name)
	if !ok {
		panic(fmt.Sprintf("veld: model %s has no field %q", inst.spec.name, name))
	}
	return v
}

// FieldNames returns declared field names in declaration order, followed by
// extras in insertion order.
func (inst *Instance) FieldNames() []string {
	names := make([]string, 0, len(inst.values)+inst.extras.Len())
	for _, fs := range inst.spec.fields {
		if _, ok := inst.values[fs.Name]; ok {
			names = append(names, fs.Name)
		}
	}
	for pair := inst.extras.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// GetPrivate reads a private attribute.
func (inst *Instance) GetPrivate(name string) (Value, bool) {
	v, ok := inst.private[name]
	return v, ok
}

// SetPrivate writes a private attribute. Private attributes are never
// validated.
func (inst *Instance) SetPrivate(name string, v Value) {
	inst.private[name] = v
}

///////////////////////////////////////////////////////////////////////////////
// Assignment
///////////////////////////////////////////////////////////////////////////////

// Set assigns a raw value to a field. With validate_assignment off the value
// is stored verbatim. With it on, the single-field pipeline slice re-runs
// with the instance's current other-field values visible to hooks; on
// failure the prior value is left untouched and the aggregate is returned.
// Undeclared names are assignable only under extra=allow.
func (inst *Instance) Set(name string, raw Value) error {
	s := inst.spec

	idx, declared := s.byName[name]
	if !declared {
		if s.config.Extra == ExtraAllow {
			inst.extras.Set(name, raw)
			return nil
		}
		return fmt.Errorf("%w: %q on model %s", ErrUnknownExtra, name, s.name)
	}

	fs := s.fields[idx]
	if fs.Frozen {
		return fmt.Errorf("%w: %q on model %s", ErrFrozenField, name, s.name)
	}

	if !s.config.ValidateAssignment {
		inst.values[name] = raw
		return nil
	}

	data := make(map[string]Value, len(inst.values))
	for k, v := range inst.values {
		data[k] = v
	}

	v, vErr := s.validateFieldSlice(fs, raw, data)
	if vErr != nil {
		return vErr
	}

	prior, hadPrior := inst.values[name]
	inst.values[name] = v

	if err := inst.runAssignmentModelHooks(); err != nil {
		// No partial mutation: the failed assignment is rolled back.
		if hadPrior {
			inst.values[name] = prior
		} else {
			delete(inst.values, name)
		}
		return err
	}
	return nil
}

// validateFieldSlice runs before-hooks, coercion and after-hooks for one
// field against a given validated-fields view.
func (s *ModelSpec) validateFieldSlice(fs *FieldSpec, raw Value, data map[string]Value) (Value, *ValidationError) {
	ctx := newRunContext(s)
	ctx.validated = data
	s.processField(ctx, fs, raw, true)
	if rep := ctx.acc.report(s.name); rep != nil {
		return Null(), rep
	}
	return ctx.validated[fs.Name], nil
}

// runAssignmentModelHooks re-runs model after-hooks with the refreshed field
// set, so derived fields stay consistent under assignment. SkipOnFailure
// hooks are skipped once an earlier hook has failed.
func (inst *Instance) runAssignmentModelHooks() error {
	s := inst.spec
	if len(s.afterModel) == 0 {
		return nil
	}

	om := orderedmap.New[string, Value]()
	for _, fs := range s.fields {
		if v, ok := inst.values[fs.Name]; ok {
			om.Set(fs.Name, v)
		}
	}
	for pair := inst.extras.Oldest(); pair != nil; pair = pair.Next() {
		om.Set(pair.Key, pair.Value)
	}
	values := Dict(om)

	var acc errorAccumulator
	for _, h := range s.afterModel {
		if h.skipOnFailure && !acc.empty() {
			continue
		}
		out, err := safeModelHook(h.fn, values)
		if err != nil {
			acc.add(classifyHookError(err, Path{PathName(RootField)}, values))
			continue
		}
		if out.Kind() != KindMap {
			acc.add(ErrorDetail{
				Type:  ErrTypeValueError,
				Loc:   Path{PathName(RootField)},
				Msg:   fmt.Sprintf("Value error, model hook %q must return a mapping, got %s", h.name, out.Kind()),
				Input: values,
			})
			continue
		}
		values = out
	}
	if rep := acc.report(s.name); rep != nil {
		return rep
	}

	for pair := values.MapVal().Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := s.byName[pair.Key]; ok {
			inst.values[pair.Key] = pair.Value
			continue
		}
		if s.config.Extra == ExtraAllow {
			inst.extras.Set(pair.Key, pair.Value)
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Dump / export
///////////////////////////////////////////////////////////////////////////////

// DumpValue converts the instance back into a plain mapping Value: a pure
// structural walk in field declaration order (extras last), recursing into
// nested model values. No re-validation happens on the way out.
func (inst *Instance) DumpValue() Value {
	om := orderedmap.New[string, Value]()
	for _, fs := range inst.spec.fields {
		if v, ok := inst.values[fs.Name]; ok {
			om.Set(fs.Name, dumpWalk(v))
		}
	}
	for pair := inst.extras.Oldest(); pair != nil; pair = pair.Next() {
		om.Set(pair.Key, dumpWalk(pair.Value))
	}
	return Dict(om)
}

func dumpWalk(v Value) Value {
	switch v.Kind() {
	case KindModel:
		return v.ModelVal().DumpValue()
	case KindList, KindSet:
		elems := v.ListVals()
		out := make([]Value, len(elems))
		for i, e := range elems {
			out[i] = dumpWalk(e)
		}
		if v.Kind() == KindSet {
			return Set(out...)
		}
		return List(out...)
	case KindMap:
		om := orderedmap.New[string, Value]()
		for pair := v.MapVal().Oldest(); pair != nil; pair = pair.Next() {
			om.Set(pair.Key, dumpWalk(pair.Value))
		}
		return Dict(om)
	default:
		return v
	}
}

// Dump converts the instance into Go natives, nested models included.
func (inst *Instance) Dump() map[string]any {
	out := make(map[string]any, len(inst.values)+inst.extras.Len())
	for name, v := range inst.values {
		out[name] = v.ToGo()
	}
	for pair := inst.extras.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value.ToGo()
	}
	return out
}

// DecodeInto dumps the instance and decodes the result into dest, a pointer
// to a caller struct.
func (inst *Instance) DecodeInto(dest any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  dest,
		TagName: "veld",
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if err := decoder.Decode(inst.Dump()); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Comparison and rendering
///////////////////////////////////////////////////////////////////////////////

// Equal reports whether two instances share a plan and hold equal field,
// extra and private values.
func (inst *Instance) Equal(o *Instance) bool {
	if inst == o {
		return true
	}
	if inst == nil || o == nil || inst.spec != o.spec {
		return false
	}
	if len(inst.values) != len(o.values) || inst.extras.Len() != o.extras.Len() {
		return false
	}
	for name, v := range inst.values {
		ov, ok := o.values[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	for pair := inst.extras.Oldest(); pair != nil; pair = pair.Next() {
		ov, ok := o.extras.Get(pair.Key)
		if !ok || !pair.Value.Equal(ov) {
			return false
		}
	}
	return true
}

// String renders the instance in declaration order.
func (inst *Instance) String() string {
	var sb strings.Builder
	sb.WriteString(inst.spec.name)
	sb.WriteByte('(')
	for i, name := range inst.FieldNames() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := inst.Get(name)
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(v.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
