package veld

import (
	"fmt"
	"strconv"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// Field paths
///////////////////////////////////////////////////////////////////////////////

// PathSegment is one step of a field path: a field or key name, or a sequence
// index for errors inside lists and sets.
type PathSegment struct {
	Name  string
	Index int
	IsIdx bool
}

// PathName builds a name segment.
func PathName(name string) PathSegment { return PathSegment{Name: name} }

// PathIndex builds an index segment.
func PathIndex(i int) PathSegment { return PathSegment{Index: i, IsIdx: true} }

func (s PathSegment) String() string {
	if s.IsIdx {
		return strconv.Itoa(s.Index)
	}
	return s.Name
}

// Path locates a failure within nested structures, outermost segment first.
type Path []PathSegment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// prepend returns a new Path with seg in front. The receiver is not modified;
// detail paths are immutable once accumulated.
func (p Path) prepend(seg PathSegment) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, seg)
	return append(out, p...)
}

///////////////////////////////////////////////////////////////////////////////
// Error details
///////////////////////////////////////////////////////////////////////////////

// ErrorDetail is one structured validation failure. Immutable once created.
type ErrorDetail struct {
	Type  ErrorType      // tag from the closed taxonomy
	Loc   Path           // where the failure happened
	Msg   string         // human-readable message
	Input Value          // the offending raw input, echoed back
	Ctx   map[string]any // optional structured context (bounds, hook message, ...)
}

func (d ErrorDetail) String() string {
	return fmt.Sprintf("%s: %s [%s]", d.Loc, d.Msg, d.Type)
}

// newDetail builds an ErrorDetail rooted at a single field name.
func newDetail(typ ErrorType, field string, msg string, input Value) ErrorDetail {
	return ErrorDetail{
		Type:  typ,
		Loc:   Path{PathName(field)},
		Msg:   msg,
		Input: input,
	}
}

///////////////////////////////////////////////////////////////////////////////
// ValidationError
///////////////////////////////////////////////////////////////////////////////

// ValidationError is the aggregate failure of one validation call: the
// ordered list of every independent failure found, in field-declaration
// order. It is returned only when at least one detail exists; success and
// failure are mutually exclusive outcomes.
type ValidationError struct {
	Model   string
	details []ErrorDetail
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	n := len(ve.details)
	plural := "s"
	if n == 1 {
		plural = ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation error%s for %s", n, plural, ve.Model)
	for _, d := range ve.details {
		sb.WriteString("\n  ")
		sb.WriteString(d.String())
	}
	return sb.String()
}

// Details returns the ordered failure list. The slice is shared; callers must
// not modify it.
func (ve *ValidationError) Details() []ErrorDetail { return ve.details }

///////////////////////////////////////////////////////////////////////////////
// Accumulator
///////////////////////////////////////////////////////////////////////////////

// errorAccumulator collects one ErrorDetail per independent failure point
// without short-circuiting and without de-duplication. Order of accumulation
// is field-declaration order, which is also the reported order.
type errorAccumulator struct {
	details []ErrorDetail
}

func (acc *errorAccumulator) add(d ErrorDetail) {
	acc.details = append(acc.details, d)
}

// addNested folds relative failure details in, prefixing every detail path
// with the enclosing segment.
func (acc *errorAccumulator) addNested(seg PathSegment, details []ErrorDetail) {
	acc.details = append(acc.details, prefixDetails(seg, details)...)
}

// prefixDetails returns the details with seg prepended to every path.
func prefixDetails(seg PathSegment, details []ErrorDetail) []ErrorDetail {
	out := make([]ErrorDetail, 0, len(details))
	for _, d := range details {
		d.Loc = d.Loc.prepend(seg)
		out = append(out, d)
	}
	return out
}

func (acc *errorAccumulator) empty() bool { return len(acc.details) == 0 }

// report assembles the final aggregate, or nil when nothing accumulated.
func (acc *errorAccumulator) report(model string) *ValidationError {
	if acc.empty() {
		return nil
	}
	return &ValidationError{Model: model, details: acc.details}
}

///////////////////////////////////////////////////////////////////////////////
// Hook rejection errors
///////////////////////////////////////////////////////////////////////////////

// HookError is a domain rejection signaled by a user hook. The pipeline maps
// it to a value_error detail carrying the hook's message in ctx.
type HookError struct {
	msg string
}

func (e *HookError) Error() string { return e.msg }

// Errorf builds a HookError; the idiomatic way for a hook to reject a value.
func Errorf(format string, args ...any) error {
	return &HookError{msg: fmt.Sprintf(format, args...)}
}

// TypeErrorf builds a hook rejection reported under the type_error tag, the
// convention for positional-logic failures.
func TypeErrorf(format string, args ...any) error {
	return &typeHookError{msg: fmt.Sprintf(format, args...)}
}

type typeHookError struct {
	msg string
}

func (e *typeHookError) Error() string { return e.msg }
