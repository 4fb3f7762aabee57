/*
Package enginetest provides a scriptable engine.Checker that records how a verification run configured it.
*/
package enginetest

import (
	"fmt"
	"io"
	"strings"

	"github.com/anchore/forbiddenapis/forbiddenapis/classpath"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine"
)

type BundledCall struct {
	Name          string
	TargetVersion *string
}

type Resource struct {
	Name    string
	Content string
}

// Checker records every call. Findings listed in Missing and Violations are emitted through the listener when Run
// is called.
type Checker struct {
	Unsupported bool
	BundledErr  error
	Missing     []string
	Violations  []string
	RunErr      error

	Loader              classpath.Loader
	Options             engine.Options
	Listener            engine.Listener
	SuppressAnnotations []string
	Bundled             []BundledCall
	Inline              []string
	Files               []Resource
	Classes             []Resource
	Ran                 bool
}

// Factory hands out the given Checker, capturing the loader, options and listener it was built with.
func Factory(c *Checker) engine.Factory {
	return func(loader classpath.Loader, options engine.Options, listener engine.Listener) (engine.Checker, error) {
		c.Loader = loader
		c.Options = options
		c.Listener = listener
		return c, nil
	}
}

func (c *Checker) IsSupportedRuntime() bool {
	return !c.Unsupported
}

// RuntimeDescription names the loader the checker was built with, as the real engine does.
func (c *Checker) RuntimeDescription() string {
	if c.Loader == nil {
		return "test runtime"
	}
	return c.Loader.Description()
}

func (c *Checker) AddSuppressAnnotation(className string) {
	c.SuppressAnnotations = append(c.SuppressAnnotations, className)
}

func (c *Checker) AddBundledSignatures(name string, targetVersion *string) error {
	if c.BundledErr != nil {
		return c.BundledErr
	}
	c.Bundled = append(c.Bundled, BundledCall{Name: name, TargetVersion: targetVersion})
	return nil
}

func (c *Checker) ParseSignaturesString(signatures string) error {
	if strings.Contains(signatures, "!!") {
		return &engine.ParseError{Message: fmt.Sprintf("invalid signature %q", signatures)}
	}
	c.Inline = append(c.Inline, signatures)
	return nil
}

func (c *Checker) ParseSignaturesFile(r io.Reader, name string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.Files = append(c.Files, Resource{Name: name, Content: string(b)})
	return nil
}

func (c *Checker) HasNoSignatures() bool {
	return len(c.Bundled)+len(c.Inline)+len(c.Files) == 0
}

func (c *Checker) AddClassToCheck(r io.Reader, name string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.Classes = append(c.Classes, Resource{Name: name, Content: string(b)})
	return nil
}

func (c *Checker) Run() error {
	c.Ran = true
	for _, m := range c.Missing {
		c.Listener.Missing(m)
	}
	for _, v := range c.Violations {
		c.Listener.Violation(v)
	}
	if c.RunErr != nil {
		return c.RunErr
	}
	if len(c.Violations) > 0 && c.Options.Has(engine.FailOnViolation) {
		return &engine.ForbiddenAPIError{Message: fmt.Sprintf("Check for forbidden API calls failed, see log (%d error(s)).", len(c.Violations))}
	}
	return nil
}
