package classpath

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/anchore/forbiddenapis/internal/log"
)

const baseModule = "java.base.jmod"

// PlatformLoader resolves the Java runtime's own classes from a JDK installation: every module under jmods/ on
// modular runtimes, rt.jar on older ones. Archives are indexed on first use and held until Close.
type PlatformLoader struct {
	fs       afero.Fs
	javaHome string
	entries  []*archiveEntry
}

// NewPlatformLoader locates the runtime libraries under javaHome. When none is found the loader resolves nothing
// and the engine will consider the runtime unsupported.
func NewPlatformLoader(fs afero.Fs, javaHome string) *PlatformLoader {
	l := &PlatformLoader{fs: fs, javaHome: javaHome}
	if javaHome == "" {
		return l
	}

	modules, err := afero.Glob(fs, filepath.Join(javaHome, "jmods", "*.jmod"))
	if err != nil {
		log.Debugf("unable to list runtime modules under %q: %+v", javaHome, err)
	}
	for _, m := range orderModules(modules) {
		l.entries = append(l.entries, &archiveEntry{fs: fs, path: m, offset: jmodHeaderSize, prefix: "classes"})
	}
	if len(l.entries) > 0 {
		log.Debugf("using %d platform runtime module(s) under %q", len(l.entries), javaHome)
		return l
	}

	for _, jar := range []string{
		filepath.Join(javaHome, "lib", "rt.jar"),
		filepath.Join(javaHome, "jre", "lib", "rt.jar"),
	} {
		if ok, _ := afero.Exists(fs, jar); ok {
			log.Debugf("using platform runtime library %q", jar)
			l.entries = append(l.entries, &archiveEntry{fs: fs, path: jar})
			return l
		}
	}
	log.Debugf("no runtime library found under java home %q", javaHome)
	return l
}

// orderModules moves java.base to the front, most lookups resolve there.
func orderModules(modules []string) []string {
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		if filepath.Base(m) == baseModule {
			out = append(out, m)
		}
	}
	for _, m := range modules {
		if filepath.Base(m) != baseModule {
			out = append(out, m)
		}
	}
	return out
}

func (l *PlatformLoader) Open(internalName string) (io.ReadCloser, error) {
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

// Close drops every archive handle. The loader stays usable and reopens archives on demand.
func (l *PlatformLoader) Close() error {
	var errs error
	for _, e := range l.entries {
		if err := e.close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("unable to close %s: %w", e, err))
		}
	}
	return errs
}

// Description reads the runtime's release file, e.g. "Eclipse Adoptium 17.0.8".
func (l *PlatformLoader) Description() string {
	if l.javaHome == "" {
		return "unknown runtime (no java home)"
	}

	v := viper.New()
	v.SetFs(l.fs)
	v.SetConfigFile(filepath.Join(l.javaHome, "release"))
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		log.Debugf("unable to read runtime release file: %+v", err)
		return fmt.Sprintf("runtime at %s", l.javaHome)
	}

	implementor := v.GetString("IMPLEMENTOR")
	if implementor == "" {
		implementor = "Java"
	}
	if version := v.GetString("JAVA_VERSION"); version != "" {
		return fmt.Sprintf("%s %s", implementor, version)
	}
	return fmt.Sprintf("runtime at %s", l.javaHome)
}
