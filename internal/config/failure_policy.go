package config

import (
	"github.com/spf13/viper"

	"github.com/anchore/forbiddenapis/forbiddenapis"
)

// FailurePolicy mirrors forbiddenapis.FailurePolicy with configuration keys.
type FailurePolicy struct {
	UnsupportedJava          bool `yaml:"fail-on-unsupported-java" json:"fail-on-unsupported-java" mapstructure:"fail-on-unsupported-java"`
	MissingClasses           bool `yaml:"fail-on-missing-classes" json:"fail-on-missing-classes" mapstructure:"fail-on-missing-classes"`
	UnresolvableSignatures   bool `yaml:"fail-on-unresolvable-signatures" json:"fail-on-unresolvable-signatures" mapstructure:"fail-on-unresolvable-signatures"`
	Violation                bool `yaml:"fail-on-violation" json:"fail-on-violation" mapstructure:"fail-on-violation"`
	IgnoreEmptyFileSet       bool `yaml:"ignore-empty-file-set" json:"ignore-empty-file-set" mapstructure:"ignore-empty-file-set"`
	RestrictClassFilename    bool `yaml:"restrict-class-filename" json:"restrict-class-filename" mapstructure:"restrict-class-filename"`
	DisableClassloadingCache bool `yaml:"disable-classloading-cache" json:"disable-classloading-cache" mapstructure:"disable-classloading-cache"`
	// InternalRuntimeForbidden is deprecated in favor of the jdk-non-portable bundle.
	InternalRuntimeForbidden bool `yaml:"internal-runtime-forbidden" json:"internal-runtime-forbidden" mapstructure:"internal-runtime-forbidden"`
}

func (cfg FailurePolicy) loadDefaultValues(v *viper.Viper) {
	d := forbiddenapis.DefaultFailurePolicy()
	v.SetDefault("fail-on-unsupported-java", d.FailOnUnsupportedJava)
	v.SetDefault("fail-on-missing-classes", d.FailOnMissingClasses)
	v.SetDefault("fail-on-unresolvable-signatures", d.FailOnUnresolvableSignatures)
	v.SetDefault("fail-on-violation", d.FailOnViolation)
	v.SetDefault("ignore-empty-file-set", d.IgnoreEmptyFileSet)
	v.SetDefault("restrict-class-filename", d.RestrictClassFilename)
	v.SetDefault("disable-classloading-cache", d.DisableClassloadingCache)
	v.SetDefault("internal-runtime-forbidden", false)
}

func (cfg FailurePolicy) policy() forbiddenapis.FailurePolicy {
	return forbiddenapis.FailurePolicy{
		FailOnUnsupportedJava:        cfg.UnsupportedJava,
		FailOnMissingClasses:         cfg.MissingClasses,
		FailOnUnresolvableSignatures: cfg.UnresolvableSignatures,
		FailOnViolation:              cfg.Violation,
		IgnoreEmptyFileSet:           cfg.IgnoreEmptyFileSet,
		RestrictClassFilename:        cfg.RestrictClassFilename,
		DisableClassloadingCache:     cfg.DisableClassloadingCache,
	}
}
