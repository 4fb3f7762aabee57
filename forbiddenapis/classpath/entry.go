package classpath

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/anchore/forbiddenapis/internal/log"
)

// jmod files carry a 4 byte header ("JM" + version) in front of a regular zip archive.
const jmodHeaderSize = 4

type entry interface {
	open(internalName string) (io.ReadCloser, error)
	close() error
	String() string
}

type dirEntry struct {
	fs   afero.Fs
	root string
}

func (d *dirEntry) open(internalName string) (io.ReadCloser, error) {
	f, err := d.fs.Open(filepath.Join(d.root, filepath.FromSlash(ClassFileName(internalName))))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return f, nil
}

func (d *dirEntry) close() error {
	return nil
}

func (d *dirEntry) String() string {
	return d.root
}

// archiveEntry lazily opens a jar (or jmod) and keeps it open until the owning loader is released.
type archiveEntry struct {
	fs     afero.Fs
	path   string
	offset int64
	prefix string
	file   afero.File
	index  map[string]*zip.File
}

func (a *archiveEntry) load() error {
	if a.index != nil {
		return nil
	}
	f, err := a.fs.Open(a.path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		log.CloseAndLogError(f, a.path)
		return err
	}
	size := info.Size() - a.offset
	r, err := zip.NewReader(io.NewSectionReader(f, a.offset, size), size)
	if err != nil {
		log.CloseAndLogError(f, a.path)
		return fmt.Errorf("unable to read archive %q: %w", a.path, err)
	}
	a.index = make(map[string]*zip.File, len(r.File))
	for _, zf := range r.File {
		a.index[zf.Name] = zf
	}
	a.file = f
	return nil
}

func (a *archiveEntry) open(internalName string) (io.ReadCloser, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	zf, ok := a.index[path.Join(a.prefix, ClassFileName(internalName))]
	if !ok {
		return nil, ErrClassNotFound
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// entries are read fully so the archive handle is never shared with a caller
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s!%s: %w", a.path, zf.Name, err)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (a *archiveEntry) close() error {
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.index = nil
	return err
}

func (a *archiveEntry) String() string {
	return a.path
}

// newEntry classifies a single classpath element. A missing element yields a nil entry, matching how a JVM
// silently skips classpath elements that do not exist.
func newEntry(fs afero.Fs, p string) (entry, error) {
	info, err := fs.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("dropping %q from classpath as it does not exist", p)
			return nil, nil
		}
		return nil, err
	}
	if info.IsDir() {
		return &dirEntry{fs: fs, root: p}, nil
	}
	if strings.HasSuffix(strings.ToLower(p), ".jmod") {
		return &archiveEntry{fs: fs, path: p, offset: jmodHeaderSize, prefix: "classes"}, nil
	}

	isArchive, err := isZipArchive(fs, p)
	if err != nil {
		return nil, err
	}
	if !isArchive {
		return nil, fmt.Errorf("classpath element %q is neither a directory nor a jar archive", p)
	}
	return &archiveEntry{fs: fs, path: p}, nil
}

func isZipArchive(fs afero.Fs, p string) (bool, error) {
	f, err := fs.Open(p)
	if err != nil {
		return false, err
	}
	defer log.CloseAndLogError(f, p)

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return false, err
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true, nil
		}
	}
	return false, nil
}
