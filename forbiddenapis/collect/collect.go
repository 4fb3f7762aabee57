/*
Package collect enumerates resource collections (directory trees with include/exclude patterns and explicit file
lists) and turns them into the class artifacts handed to the checking engine.
*/
package collect

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v2"
	"github.com/scylladb/go-set/strset"
	"github.com/spf13/afero"

	"github.com/anchore/forbiddenapis/forbiddenapis/apierr"
)

const ClassFileSuffix = ".class"

// Resource is one file in a collection. Name is relative to the collection root and used for filtering and
// diagnostics; Path locates the file on the filesystem.
type Resource struct {
	Name string
	Path string
}

func (r Resource) String() string {
	return r.Path
}

type Collection interface {
	Resources(fs afero.Fs) ([]Resource, error)
	String() string
}

// FileSet selects files below Dir whose slash separated relative path matches any include pattern and no exclude
// pattern. An empty include list selects everything.
type FileSet struct {
	Dir      string   `yaml:"dir" json:"dir" mapstructure:"dir"`
	Includes []string `yaml:"includes" json:"includes" mapstructure:"includes"`
	Excludes []string `yaml:"excludes" json:"excludes" mapstructure:"excludes"`
}

// Dir is the convenience collection for a directory of compiled classes; it always applies "**/*.class".
func Dir(dir string) FileSet {
	return FileSet{Dir: dir, Includes: []string{"**/*" + ClassFileSuffix}}
}

func (s FileSet) String() string {
	return fmt.Sprintf("fileset(dir=%s, includes=%v, excludes=%v)", s.Dir, s.Includes, s.Excludes)
}

func (s FileSet) Resources(fs afero.Fs) ([]Resource, error) {
	info, err := fs.Stat(s.Dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", s.Dir)
	}

	var out []Resource
	err = afero.Walk(fs, s.Dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ok, err := s.selects(rel)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, Resource{Name: rel, Path: p})
		}
		return nil
	})
	return out, err
}

func (s FileSet) selects(rel string) (bool, error) {
	included := len(s.Includes) == 0
	for _, pattern := range s.Includes {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("bad include pattern %q: %w", pattern, err)
		}
		if ok {
			included = true
			break
		}
	}
	if !included {
		return false, nil
	}
	for _, pattern := range s.Excludes {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("bad exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

// FileList names files explicitly, relative to Dir when set. Files are not checked for existence until opened.
type FileList struct {
	Dir   string   `yaml:"dir" json:"dir" mapstructure:"dir"`
	Files []string `yaml:"files" json:"files" mapstructure:"files"`
}

func (l FileList) String() string {
	return fmt.Sprintf("filelist(dir=%s, files=%v)", l.Dir, l.Files)
}

func (l FileList) Resources(_ afero.Fs) ([]Resource, error) {
	out := make([]Resource, 0, len(l.Files))
	for _, f := range l.Files {
		p := f
		if l.Dir != "" && !filepath.IsAbs(f) {
			p = filepath.Join(l.Dir, f)
		}
		out = append(out, Resource{Name: filepath.ToSlash(f), Path: p})
	}
	return out, nil
}

// ClassArtifact is a class file waiting to be read by the engine. Its content is opened lazily.
type ClassArtifact struct {
	BinaryName string
	Resource   Resource
	fs         afero.Fs
}

func (a ClassArtifact) Open() (io.ReadCloser, error) {
	f, err := a.fs.Open(a.Resource.Path)
	if err != nil {
		return nil, apierr.NewResourceIOError(a.Resource.Path, err)
	}
	return f, nil
}

type Collector struct {
	Fs          afero.Fs
	Collections []Collection
	// RestrictClassFilename yields only resources ending in ".class".
	RestrictClassFilename bool
}

// Collect enumerates every collection in order. The same file reached through several collections is yielded once.
func (c Collector) Collect() ([]ClassArtifact, error) {
	seen := strset.New()
	var out []ClassArtifact
	for _, coll := range c.Collections {
		resources, err := coll.Resources(c.Fs)
		if err != nil {
			return nil, apierr.NewResourceIOError(coll.String(), err)
		}
		for _, r := range resources {
			if c.RestrictClassFilename && !strings.HasSuffix(r.Name, ClassFileSuffix) {
				continue
			}
			if seen.Has(r.Path) {
				continue
			}
			seen.Add(r.Path)
			out = append(out, ClassArtifact{
				BinaryName: strings.ReplaceAll(strings.TrimSuffix(r.Name, ClassFileSuffix), "/", "."),
				Resource:   r,
				fs:         c.Fs,
			})
		}
	}
	return out, nil
}
