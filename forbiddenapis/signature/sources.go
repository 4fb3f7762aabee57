/*
Package signature aggregates every source of forbidden signatures (inline text, signature files and bundled sets) and
feeds them to the checking engine.
*/
package signature

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/scylladb/go-set/strset"
	"github.com/spf13/afero"

	"github.com/anchore/forbiddenapis/forbiddenapis/apierr"
	"github.com/anchore/forbiddenapis/forbiddenapis/collect"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine"
	"github.com/anchore/forbiddenapis/internal/log"
)

type Kind int

const (
	Inline Kind = iota
	FileResource
	BundledName
)

func (k Kind) String() string {
	switch k {
	case Inline:
		return "inline"
	case FileResource:
		return "file"
	case BundledName:
		return "bundled"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Origin is one normalized signature input. Content holds the text for Inline origins, the file path for
// FileResource origins and the bundle name for BundledName origins.
type Origin struct {
	Kind          Kind
	Content       string
	TargetVersion *string
}

func (o Origin) String() string {
	switch o.Kind {
	case Inline:
		return "inline signatures"
	case BundledName:
		if o.TargetVersion != nil {
			return fmt.Sprintf("bundled signatures %s (target %s)", o.Content, *o.TargetVersion)
		}
		return "bundled signatures " + o.Content
	}
	return o.Content
}

// Parser is the part of the engine that consumes signatures.
type Parser interface {
	AddBundledSignatures(name string, targetVersion *string) error
	ParseSignaturesString(signatures string) error
	ParseSignaturesFile(r io.Reader, name string) error
	HasNoSignatures() bool
}

// Sources is the complete signature configuration of a run.
type Sources struct {
	Inline   []string
	Files    []string
	FileSets []collect.FileSet
	Bundled  []BundledReference
	// DefaultTargetVersion applies to JDK bundles without their own target version.
	DefaultTargetVersion string
	// InternalRuntimeForbidden is deprecated; it adds the non-portable JDK bundle.
	InternalRuntimeForbidden bool
}

// Origins normalizes the configuration into the ordered list of inputs: bundled references first, then inline
// text, then files. Bundled references and files are deduplicated.
func (s Sources) Origins(fs afero.Fs) ([]Origin, error) {
	var origins []Origin
	seen := strset.New()
	explicitNonPortable := false
	for _, b := range s.Bundled {
		version, err := b.Resolve(s.DefaultTargetVersion)
		if err != nil {
			return nil, err
		}
		if seen.Has(b.key()) {
			continue
		}
		seen.Add(b.key())
		if b.Name == NonPortableBundle {
			explicitNonPortable = true
		}
		origins = append(origins, Origin{Kind: BundledName, Content: b.Name, TargetVersion: version})
	}

	if s.InternalRuntimeForbidden {
		log.Warnf("The setting 'internal-runtime-forbidden' was deprecated and will be removed in next version. "+
			"For backwards compatibility it is mapped to bundled signatures %q.", NonPortableBundle)
		if !explicitNonPortable {
			origins = append(origins, Origin{Kind: BundledName, Content: NonPortableBundle})
		}
	}

	for _, text := range s.Inline {
		if strings.TrimSpace(text) == "" {
			continue
		}
		origins = append(origins, Origin{Kind: Inline, Content: text})
	}

	files := strset.New()
	addFile := func(p string) {
		if files.Has(p) {
			return
		}
		files.Add(p)
		origins = append(origins, Origin{Kind: FileResource, Content: p})
	}
	for _, f := range s.Files {
		addFile(f)
	}
	for _, set := range s.FileSets {
		resources, err := set.Resources(fs)
		if err != nil {
			return nil, apierr.NewResourceIOError(set.String(), err)
		}
		for _, r := range resources {
			addFile(r.Path)
		}
	}
	return origins, nil
}

// Load feeds every origin to the parser. Any failure aborts the run; a partially loaded signature set is never
// used. A run without any signature is a configuration error regardless of failure policy.
func (s Sources) Load(fs afero.Fs, p Parser) error {
	origins, err := s.Origins(fs)
	if err != nil {
		return err
	}
	for _, o := range origins {
		if err := load(fs, p, o); err != nil {
			return err
		}
	}
	if p.HasNoSignatures() {
		return apierr.NewConfigurationError("no signatures supplied: use signatures, signatures-files, bundled-signatures or inline text to define those")
	}
	return nil
}

func load(fs afero.Fs, p Parser, o Origin) error {
	var err error
	switch o.Kind {
	case BundledName:
		err = p.AddBundledSignatures(o.Content, o.TargetVersion)
	case Inline:
		err = p.ParseSignaturesString(o.Content)
	case FileResource:
		f, openErr := fs.Open(o.Content)
		if openErr != nil {
			return apierr.NewResourceIOError(o.Content, openErr)
		}
		defer log.CloseAndLogError(f, o.Content)
		err = p.ParseSignaturesFile(f, o.Content)
		var pe *engine.ParseError
		if err != nil && !errors.As(err, &pe) {
			return apierr.NewResourceIOError(o.Content, err)
		}
	}
	if err != nil {
		return &apierr.Error{Kind: apierr.ConfigurationKind, Message: fmt.Sprintf("parsing %s failed", o), Err: err}
	}
	return nil
}
