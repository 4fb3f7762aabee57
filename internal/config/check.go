package config

import (
	"strings"

	"github.com/spf13/afero"

	"github.com/anchore/forbiddenapis/forbiddenapis"
	"github.com/anchore/forbiddenapis/forbiddenapis/collect"
	"github.com/anchore/forbiddenapis/forbiddenapis/signature"
)

// CheckConfig assembles the library configuration of one run. Bundled names given without a version come first,
// followed by the structured bundled references.
func (cfg Application) CheckConfig(fs afero.Fs) forbiddenapis.Config {
	var bundled []signature.BundledReference
	for _, name := range cfg.Bundled {
		bundled = append(bundled, signature.BundledReference{Name: strings.TrimSpace(name)})
	}
	bundled = append(bundled, cfg.BundledSignatures...)

	var inline []string
	if cfg.Signatures != "" {
		inline = append(inline, cfg.Signatures)
	}

	var classFiles []collect.Collection
	for _, s := range cfg.Classes {
		classFiles = append(classFiles, s)
	}
	if len(cfg.ClassFiles) > 0 {
		classFiles = append(classFiles, collect.FileList{Files: cfg.ClassFiles})
	}

	return forbiddenapis.Config{
		Fs:         fs,
		Classpath:  cfg.Classpath,
		JavaHome:   cfg.JavaHome,
		Dir:        cfg.Dir,
		ClassFiles: classFiles,
		Signatures: signature.Sources{
			Inline:                   inline,
			Files:                    cfg.SignaturesFiles,
			FileSets:                 cfg.SignaturesFileSets,
			Bundled:                  bundled,
			DefaultTargetVersion:     cfg.TargetVersion,
			InternalRuntimeForbidden: cfg.InternalRuntimeForbidden,
		},
		SuppressAnnotations: cfg.SuppressAnnotations,
		Policy:              cfg.FailurePolicy.policy(),
	}
}
