package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfig   Phase = "config"   // descriptor and settings construction
	PhasePlan     Phase = "plan"     // access planning
	PhaseDecode   Phase = "decode"   // wasm binary decoding
	PhaseLoad     Phase = "load"     // module loading
	PhaseValidate Phase = "validate" // module validation
)

// Kind categorizes the error
type Kind string

const (
	KindOverflow     Kind = "overflow"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindInvalidData  Kind = "invalid_data"
	KindInvalidInput Kind = "invalid_input"
	KindUnsupported  Kind = "unsupported"
	KindNotFound     Kind = "not_found"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Setting string
	Detail  string
	Path    []string
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

	if e.Setting != "" {
		b.WriteString(": setting ")
		b.WriteString(e.Setting)
	}

	if e.Detail != "" {
		if e.Setting != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
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

// Path sets the location path (memory index, function, setting section)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Setting sets the name of the offending configuration setting
func (b *Builder) Setting(name string) *Builder {
	b.err.Setting = name
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

// Convenience constructors for common error patterns

// Overflow creates an arithmetic overflow error
func Overflow(phase Phase, path []string, what string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("%s overflows", what),
		Value:  value,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidSetting creates a configuration error for a single setting
func InvalidSetting(name string, value any, detail string) *Error {
	return &Error{
		Phase:   PhaseConfig,
		Kind:    KindInvalidInput,
		Setting: name,
		Value:   value,
		Detail:  detail,
	}
}

// UnknownSetting creates a not-found error for an unrecognized setting name
func UnknownSetting(name string) *Error {
	return &Error{
		Phase:   PhaseConfig,
		Kind:    KindNotFound,
		Setting: name,
		Detail:  "unknown setting",
	}
}

// UnsupportedOpcode creates a decode error for an instruction the scanner cannot skip.
// sub is ignored for single-byte opcodes (pass a negative value).
func UnsupportedOpcode(pc int, op byte, sub int64) *Error {
	detail := fmt.Sprintf("opcode 0x%02x at offset %d", op, pc)
	if sub >= 0 {
		detail = fmt.Sprintf("opcode 0x%02x 0x%x at offset %d", op, sub, pc)
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnsupported,
		Detail: detail,
		Value:  op,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// DecodeFailed creates a decoding error for the named section or body
func DecodeFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("decode %s", what),
		Cause:  cause,
	}
}

// ValidationFailed creates a module validation error
func ValidationFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidData,
		Detail: "module rejected by validator",
		Cause:  cause,
	}
}
