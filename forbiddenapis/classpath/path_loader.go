package classpath

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// PathLoader resolves classes from an explicit list of classpath elements. Lookups are parent-first: the parent
// (platform) loader is asked before the elements are searched in declaration order.
type PathLoader struct {
	parent  Loader
	entries []entry
}

func NewPathLoader(fs afero.Fs, parent Loader, elements []string) (*PathLoader, error) {
	l := &PathLoader{parent: parent}
	for _, p := range elements {
		e, err := newEntry(fs, p)
		if err != nil {
			return nil, err
		}
		if e != nil {
			l.entries = append(l.entries, e)
		}
	}
	return l, nil
}

func (l *PathLoader) Open(internalName string) (io.ReadCloser, error) {
	if l.parent != nil {
		rc, err := l.parent.Open(internalName)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	for _, e := range l.entries {
		rc, err := e.open(internalName)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, fmt.Errorf("unable to read %s from %s: %w", BinaryName(internalName), e, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, BinaryName(internalName))
}

func (l *PathLoader) Description() string {
	names := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		names = append(names, e.String())
	}
	return fmt.Sprintf("classpath [%s]", strings.Join(names, ", "))
}

// Close releases every archive opened while resolving classes.
func (l *PathLoader) Close() error {
	var errs error
	for _, e := range l.entries {
		if err := e.close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("unable to close %s: %w", e, err))
		}
	}
	return errs
}
