package suppression

import (
	"sort"
	"strings"

	"github.com/scylladb/go-set/strset"
)

// Registrar is the part of the engine that accepts suppression annotations.
type Registrar interface {
	AddSuppressAnnotation(className string)
}

// Registry is the set of annotation class names that exempt a class from reporting. Names are not validated;
// an annotation that never resolves simply never matches.
type Registry struct {
	names *strset.Set
}

func NewRegistry(classNames ...string) *Registry {
	r := &Registry{names: strset.New()}
	r.Add(classNames...)
	return r
}

func (r *Registry) Add(classNames ...string) {
	for _, n := range classNames {
		if n = strings.TrimSpace(n); n != "" {
			r.names.Add(n)
		}
	}
}

func (r *Registry) Len() int {
	return r.names.Size()
}

// List returns the registered names sorted, so registration order never depends on input order.
func (r *Registry) List() []string {
	names := r.names.List()
	sort.Strings(names)
	return names
}

func (r *Registry) RegisterWith(target Registrar) {
	for _, n := range r.List() {
		target.AddSuppressAnnotation(n)
	}
}
