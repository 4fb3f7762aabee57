/*
Package engine defines the contract of the checking engine driven by a verification run, and provides a reference
implementation that reads class file constant pools and matches them against forbidden signatures.
*/
package engine

import (
	"fmt"
	"io"

	"github.com/anchore/forbiddenapis/forbiddenapis/classpath"
)

// Listener receives findings while the engine runs.
type Listener interface {
	// Missing is called for a type or member that could not be resolved.
	Missing(message string)
	// Violation is called for every reference matching a forbidden signature.
	Violation(message string)
}

// Checker is the engine a verification run is assembled for.
type Checker interface {
	// IsSupportedRuntime reports whether the platform runtime's class file format can be read.
	IsSupportedRuntime() bool
	// RuntimeDescription names the platform runtime for diagnostics.
	RuntimeDescription() string
	AddSuppressAnnotation(className string)
	// AddBundledSignatures adds a named built-in signature set. A nil targetVersion asks the engine to resolve
	// the name on a best-effort basis.
	AddBundledSignatures(name string, targetVersion *string) error
	ParseSignaturesString(signatures string) error
	ParseSignaturesFile(r io.Reader, name string) error
	HasNoSignatures() bool
	AddClassToCheck(r io.Reader, name string) error
	// Run checks every added class. It returns a *ForbiddenAPIError when the run must fail.
	Run() error
}

// Factory constructs a Checker bound to the given loader.
type Factory func(loader classpath.Loader, options Options, listener Listener) (Checker, error)

// ParseError reports a malformed or unresolvable signature.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

func newParseError(format string, args ...interface{}) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// ForbiddenAPIError is raised at the end of a run that must fail (violations, missing classes).
type ForbiddenAPIError struct {
	Message string
	Err     error
}

func (e *ForbiddenAPIError) Error() string {
	return e.Message
}

func (e *ForbiddenAPIError) Unwrap() error {
	return e.Err
}
