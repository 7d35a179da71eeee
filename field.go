package veld

///////////////////////////////////////////////////////////////////////////////
// Field declaration
///////////////////////////////////////////////////////////////////////////////

// FieldDef is the mutable declaration of one model field. Methods return the
// receiver so declarations chain; a FieldDef is frozen once its model
// compiles.
type FieldDef struct {
	name           string
	typ            TypeRef
	alias          string
	populateByName bool
	hasDefault     bool
	defaultValue   Value
	defaultFactory func() Value
	strict         bool
	frozen         bool
	before         []hookDef
	after          []hookDef
}

// NewField declares a field with its name and target type.
func NewField(name string, typ TypeRef) *FieldDef {
	return &FieldDef{name: name, typ: typ}
}

// Alias sets the external input key for this field. When set, the alias - not
// the field name - is the only accepted key, unless PopulateByName is also
// applied.
func (f *FieldDef) Alias(alias string) *FieldDef {
	f.alias = alias
	return f
}

// PopulateByName additionally accepts the field name as an input key when an
// alias is set. The alias wins if both keys are present.
func (f *FieldDef) PopulateByName() *FieldDef {
	f.populateByName = true
	return f
}

// Default sets the value used when the input supplies nothing for this field.
// Defaults are committed as-is: hooks and coercion do not run on them.
func (f *FieldDef) Default(v Value) *FieldDef {
	f.hasDefault = true
	f.defaultValue = v
	return f
}

// DefaultFactory sets a per-validation default producer, for mutable or
// call-dependent defaults.
func (f *FieldDef) DefaultFactory(factory func() Value) *FieldDef {
	f.hasDefault = true
	f.defaultFactory = factory
	return f
}

// Strict disables type-widening coercions for this field.
func (f *FieldDef) Strict() *FieldDef {
	f.strict = true
	return f
}

// Frozen forbids assignment to this field after construction.
func (f *FieldDef) Frozen() *FieldDef {
	f.frozen = true
	return f
}

// Before registers a pre-coercion hook on this field. fn must match one of
// the supported calling conventions (see Info and HookFunc).
func (f *FieldDef) Before(name string, fn any, opts ...HookOpt) *FieldDef {
	o := applyHookOpts(opts)
	f.before = append(f.before, hookDef{name: name, fn: fn, allowReuse: o.allowReuse, always: o.always, eachItem: o.eachItem})
	return f
}

// After registers a post-coercion hook on this field.
func (f *FieldDef) After(name string, fn any, opts ...HookOpt) *FieldDef {
	o := applyHookOpts(opts)
	f.after = append(f.after, hookDef{name: name, fn: fn, allowReuse: o.allowReuse, always: o.always, eachItem: o.eachItem})
	return f
}

///////////////////////////////////////////////////////////////////////////////
// Compiled field
///////////////////////////////////////////////////////////////////////////////

// FieldSpec is the compiled, immutable plan for one field: resolved type,
// accepted input keys, default handling and the adapted hook chains. The
// exported fields are the inspection surface; mutation after compilation is a
// contract violation.
type FieldSpec struct {
	Name           string
	Alias          string
	Type           TypeRef
	Strict         bool
	Frozen         bool
	HasDefault     bool
	DefaultValue   Value
	DefaultFactory func() Value

	populateByName bool

	before []compiledHook
	after  []compiledHook
}

// InputKeys returns the external keys accepted for this field, most preferred
// first.
func (fs *FieldSpec) InputKeys() []string {
	if fs.Alias == "" {
		return []string{fs.Name}
	}
	keys := []string{fs.Alias}
	if fs.aliasAndName() {
		keys = append(keys, fs.Name)
	}
	return keys
}

func (fs *FieldSpec) aliasAndName() bool {
	return fs.Alias != "" && fs.populateByName
}

// required reports whether missing input is a failure for this field.
func (fs *FieldSpec) required() bool { return !fs.HasDefault }

// hasAlwaysHooks reports whether any hook in either phase runs on defaults.
func (fs *FieldSpec) hasAlwaysHooks() bool {
	for _, h := range fs.before {
		if h.always {
			return true
		}
	}
	for _, h := range fs.after {
		if h.always {
			return true
		}
	}
	return false
}

// defaultFor produces the default value for one validation call.
func (fs *FieldSpec) defaultFor() Value {
	if fs.DefaultFactory != nil {
		return fs.DefaultFactory()
	}
	return fs.DefaultValue
}
