package classpath

import (
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/anchore/forbiddenapis/internal/log"
)

// Context owns the single loader used to resolve every type referenced during one verification run.
type Context struct {
	loader    Loader
	platform  Loader
	dedicated *PathLoader
	released  bool
	onRelease []func()
}

type ContextOption func(*Context)

// OnRelease registers a function called when a dedicated loader is torn down.
func OnRelease(fn func()) ContextOption {
	return func(c *Context) {
		c.onRelease = append(c.onRelease, fn)
	}
}

// NewContext builds the resolution context for the given classpath. With no elements the platform loader is used
// directly and there is nothing to release.
func NewContext(fs afero.Fs, platform Loader, elements []string, opts ...ContextOption) (*Context, error) {
	c := &Context{loader: platform, platform: platform}
	for _, opt := range opts {
		opt(c)
	}
	if len(elements) == 0 {
		return c, nil
	}

	l, err := NewPathLoader(fs, platform, elements)
	if err != nil {
		return nil, err
	}
	c.loader = l
	c.dedicated = l
	return c, nil
}

func (c *Context) Loader() Loader {
	return c.loader
}

// Dedicated reports whether a loader was created for this run (as opposed to using the platform loader).
func (c *Context) Dedicated() bool {
	return c.dedicated != nil
}

// Close tears down the dedicated loader and drops archive handles held by the platform loader. It is safe to call
// more than once; only the first call has an effect.
func (c *Context) Close() error {
	if c.released {
		return nil
	}
	c.released = true

	var errs error
	if c.dedicated != nil {
		log.Debugf("releasing %s", c.dedicated.Description())
		for _, fn := range c.onRelease {
			fn()
		}
		if err := c.dedicated.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if closer, ok := c.platform.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}
