/*
Package classpath resolves class files by their internal name from an explicit list of classpath entries (directories,
jar archives and jmod files), delegating to a platform loader that represents the Java runtime.
*/
package classpath

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrClassNotFound is returned by a Loader that cannot resolve the requested class.
var ErrClassNotFound = errors.New("class not found")

// Loader resolves class files by internal name (e.g. "java/lang/Object").
type Loader interface {
	Open(internalName string) (io.ReadCloser, error)
	Description() string
}

// ClassFileName converts an internal class name to the path of its class file.
func ClassFileName(internalName string) string {
	return internalName + ".class"
}

// InternalName converts a binary class name ("java.lang.Object") to its internal form ("java/lang/Object").
func InternalName(binaryName string) string {
	return strings.ReplaceAll(binaryName, ".", "/")
}

// BinaryName converts an internal class name to its dotted binary form.
func BinaryName(internalName string) string {
	return strings.ReplaceAll(internalName, "/", ".")
}

// StaticLoader serves class files held in memory. An empty StaticLoader resolves nothing.
type StaticLoader struct {
	description string
	classes     map[string][]byte
}

func NewStaticLoader(description string, classes map[string][]byte) *StaticLoader {
	if classes == nil {
		classes = make(map[string][]byte)
	}
	return &StaticLoader{description: description, classes: classes}
}

func (l *StaticLoader) Open(internalName string) (io.ReadCloser, error) {
	b, ok := l.classes[internalName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, BinaryName(internalName))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (l *StaticLoader) Description() string {
	return l.description
}
