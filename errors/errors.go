package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad    Phase = "load"    // engine runtime loading
	PhaseRuntime Phase = "runtime" // engine lookups
	PhaseLayout  Phase = "layout"  // viewport measurement
	PhaseSetup   Phase = "setup"   // controller setup and path selection
	PhaseConfig  Phase = "config"  // option and config file validation
)

// Kind categorizes the error
type Kind string

const (
	KindEngineLoad       Kind = "engine_load_failure"
	KindNotReady         Kind = "not_ready"
	KindLayoutNotSettled Kind = "layout_not_settled"
	KindInvalidInput     Kind = "invalid_input"
	KindReleased         Kind = "released"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindInstantiation    Kind = "instantiation"
	KindTrap             Kind = "trap"
	KindABIMismatch      Kind = "abi_mismatch"
	KindAlreadyAttached  Kind = "already_attached"
)

// Sentinels for errors.Is. Matching compares Phase and Kind only.
var (
	ErrEngineLoad       = &Error{Phase: PhaseLoad, Kind: KindEngineLoad}
	ErrNotReady         = &Error{Phase: PhaseRuntime, Kind: KindNotReady}
	ErrLayoutNotSettled = &Error{Phase: PhaseLayout, Kind: KindLayoutNotSettled}
	ErrReleased         = &Error{Phase: PhaseRuntime, Kind: KindReleased}
	ErrAlreadyAttached  = &Error{Phase: PhaseSetup, Kind: KindAlreadyAttached}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// EngineLoad creates an engine runtime load failure
func EngineLoad(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindEngineLoad,
		Detail: "engine runtime failed to initialize",
		Cause:  cause,
	}
}

// NotReady creates a not-ready error for operations invoked before the gateway is ready
func NotReady(op string, status string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindNotReady,
		Op:     op,
		Detail: fmt.Sprintf("engine status is %s", status),
		Value:  status,
	}
}

// LayoutNotSettled creates a layout error for a viewport that has no extent yet
func LayoutNotSettled(extent float64) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindLayoutNotSettled,
		Detail: fmt.Sprintf("viewport extent %v", extent),
		Value:  extent,
	}
}

// Released creates a use-after-release error
func Released(op string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindReleased,
		Op:     op,
		Detail: "engine handle already released",
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, op string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Op:     op,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates an engine instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate engine handle",
		Cause:  cause,
	}
}

// Trap wraps a failed engine export call
func Trap(export string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTrap,
		Op:     export,
		Detail: "engine call failed",
		Cause:  cause,
	}
}

// ABIMismatch creates an error for an engine export whose signature differs from the declared ABI
func ABIMismatch(export string, detail string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindABIMismatch,
		Op:     export,
		Detail: detail,
	}
}

// AlreadyAttached creates an error for a second element bound to one controller
func AlreadyAttached() *Error {
	return &Error{
		Phase:  PhaseSetup,
		Kind:   KindAlreadyAttached,
		Detail: "controller already has a bound element; detach it first",
	}
}

// Is is errors.Is from the standard library, re-exported so callers need
// only this package.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
