package forbiddenapis

import "github.com/anchore/forbiddenapis/forbiddenapis/engine"

// FailurePolicy holds the switches consulted at each decision point of a run.
type FailurePolicy struct {
	// FailOnUnsupportedJava turns an unreadable runtime into an EnvironmentError instead of a skipped run.
	FailOnUnsupportedJava bool
	FailOnMissingClasses  bool
	// FailOnUnresolvableSignatures fails when a signature names a class or member that does not exist.
	FailOnUnresolvableSignatures bool
	// FailOnViolation set to false still reports every violation, the run just does not fail.
	FailOnViolation bool
	// IgnoreEmptyFileSet turns "no class files" into a warning and a skipped run.
	IgnoreEmptyFileSet    bool
	RestrictClassFilename bool
	// DisableClassloadingCache makes the engine re-read referenced classes on every lookup.
	DisableClassloadingCache bool
}

func DefaultFailurePolicy() FailurePolicy {
	return FailurePolicy{
		FailOnMissingClasses:         true,
		FailOnUnresolvableSignatures: true,
		FailOnViolation:              true,
		RestrictClassFilename:        true,
	}
}

// EngineOptions is the subset of the policy the engine understands itself.
func (p FailurePolicy) EngineOptions() engine.Options {
	var opts engine.Options
	if p.FailOnMissingClasses {
		opts = opts.With(engine.FailOnMissingClasses)
	}
	if p.FailOnViolation {
		opts = opts.With(engine.FailOnViolation)
	}
	if p.FailOnUnresolvableSignatures {
		opts = opts.With(engine.FailOnUnresolvableSignatures)
	}
	if p.DisableClassloadingCache {
		opts = opts.With(engine.DisableClassloadingCache)
	}
	return opts
}
