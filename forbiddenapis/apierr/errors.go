package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies why a verification run was aborted.
type Kind int

const (
	// ConfigurationKind is malformed, missing or contradictory configuration. Never policy-gated.
	ConfigurationKind Kind = iota
	// EnvironmentKind is a host runtime the checker cannot read.
	EnvironmentKind
	// ResourceIOKind is a signature or class resource that could not be read.
	ResourceIOKind
	// ViolationKind is a condition reported by the checking engine (violations, missing classes, unresolvable signatures).
	ViolationKind
)

var (
	ErrConfiguration = &Error{Kind: ConfigurationKind, Message: "configuration error"}
	ErrEnvironment   = &Error{Kind: EnvironmentKind, Message: "environment error"}
	ErrResourceIO    = &Error{Kind: ResourceIOKind, Message: "resource I/O error"}
	ErrViolation     = &Error{Kind: ViolationKind, Message: "forbidden API check failed"}
)

func (k Kind) String() string {
	switch k {
	case ConfigurationKind:
		return "configuration"
	case EnvironmentKind:
		return "environment"
	case ResourceIOKind:
		return "resource-io"
	case ViolationKind:
		return "violation"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single aborting signal returned from a verification run.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind. Resource I/O failures also count as configuration errors
// since an unreadable input is a broken configuration from the caller's point of view.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == ResourceIOKind && t.Kind == ConfigurationKind
}

func NewConfigurationError(format string, args ...interface{}) *Error {
	return &Error{Kind: ConfigurationKind, Message: fmt.Sprintf(format, args...)}
}

func NewEnvironmentError(format string, args ...interface{}) *Error {
	return &Error{Kind: EnvironmentKind, Message: fmt.Sprintf(format, args...)}
}

// NewResourceIOError wraps a read failure, naming the offending resource.
func NewResourceIOError(resource string, err error) *Error {
	return &Error{Kind: ResourceIOKind, Message: fmt.Sprintf("unable to read %q", resource), Err: err}
}

// NewViolationError carries the engine's message verbatim.
func NewViolationError(err error) *Error {
	return &Error{Kind: ViolationKind, Err: err}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
