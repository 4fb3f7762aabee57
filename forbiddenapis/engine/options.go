package engine

import "strings"

// Option is one switch understood by the checking engine itself.
type Option uint8

const (
	FailOnMissingClasses Option = 1 << iota
	FailOnViolation
	FailOnUnresolvableSignatures
	DisableClassloadingCache
)

var optionNames = []struct {
	opt  Option
	name string
}{
	{FailOnMissingClasses, "fail-on-missing-classes"},
	{FailOnViolation, "fail-on-violation"},
	{FailOnUnresolvableSignatures, "fail-on-unresolvable-signatures"},
	{DisableClassloadingCache, "disable-classloading-cache"},
}

// Options is a set of Option values.
type Options uint8

func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		o = o.With(opt)
	}
	return o
}

func (o Options) With(opt Option) Options {
	return o | Options(opt)
}

func (o Options) Has(opt Option) bool {
	return o&Options(opt) != 0
}

func (o Options) String() string {
	var names []string
	for _, n := range optionNames {
		if o.Has(n.opt) {
			names = append(names, n.name)
		}
	}
	return "[" + strings.Join(names, ", ") + "]"
}
