// Package veld provides a schema-driven validation engine: a model declares
// its fields (names, types, defaults, constraints, validator hooks) through a
// builder API, the declaration is compiled once into an immutable validation
// plan, and raw dynamic input is then checked against that plan to produce
// either a fully coerced instance or a complete, ordered list of structured
// errors.
//
// The engine never stops at the first failing field: every field is attempted
// and every independent failure is reported with its own error kind, field
// path, message and offending input. A validation call either yields a usable
// *Instance or a *ValidationError carrying the whole aggregate; partially
// validated output is not a representable outcome.
//
// Declaring a model:
//
//	def := veld.NewModel("User").
//	    Field(veld.NewField("id", veld.UUIDType())).
//	    Field(veld.NewField("age", veld.IntType()).Default(veld.Int(0))).
//	    Field(veld.NewField("name", veld.StringType()).
//	        After("name_not_empty", func(v veld.Value) (veld.Value, error) {
//	            if v.Str() == "" {
//	                return v, veld.Errorf("name must not be empty")
//	            }
//	            return v, nil
//	        }))
//
// Compiling and validating:
//
//	spec, err := veld.Compile(def)
//	inst, err := spec.Validate(veld.Map(map[string]veld.Value{
//	    "id":   veld.String("8c8e8a3e-26b1-4a4e-9b5f-4dbad2e3d6b2"),
//	    "age":  veld.String("42"),
//	    "name": veld.String("ada"),
//	}))
//
// Raw input usually comes from an external decoder. DecodeJSON and DecodeYAML
// adapt JSON and YAML documents into the Value union the engine works on.
//
// Field hooks run in two phases: before hooks see the raw value ahead of type
// coercion, after hooks see the coerced value. Hooks registered on a derived
// model are appended after the parent's hooks for the same field. Model-scoped
// hooks bracket the whole run: a before model hook may rewrite the raw input
// map, an after model hook may rewrite the assembled field set.
//
// Generic models declare type variables with TypeParams and are bound with
// Bind; each distinct binding tuple compiles to its own cached plan, and
// compiling the same binding twice returns the same plan.
package veld
