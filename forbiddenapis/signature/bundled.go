package signature

import (
	"strings"

	"github.com/anchore/forbiddenapis/forbiddenapis/apierr"
	"github.com/anchore/forbiddenapis/internal/log"
)

// JDKPrefix marks bundled signature names that describe the Java runtime and therefore depend on a target version.
const JDKPrefix = "jdk-"

// NonPortableBundle is added by the deprecated internal-runtime-forbidden switch.
const NonPortableBundle = "jdk-non-portable"

// BundledReference names one built-in signature set, optionally with its own target version.
type BundledReference struct {
	Name          string `yaml:"name" json:"name" mapstructure:"name"`
	TargetVersion string `yaml:"target-version,omitempty" json:"targetVersion,omitempty" mapstructure:"target-version"`
}

func (b BundledReference) isJDK() bool {
	return strings.HasPrefix(b.Name, JDKPrefix)
}

// Resolve returns the version to hand to the engine for this reference. A nil result means no version is known
// and the engine resolves the name on a best-effort basis.
func (b BundledReference) Resolve(defaultVersion string) (*string, error) {
	if strings.TrimSpace(b.Name) == "" {
		return nil, apierr.NewConfigurationError("bundled signatures: missing name")
	}

	effective := defaultVersion
	if b.TargetVersion != "" {
		if !b.isJDK() {
			return nil, apierr.NewConfigurationError("bundled signatures %q: targetVersion only valid for JDK-prefixed bundles", b.Name)
		}
		effective = b.TargetVersion
	}

	if effective == "" {
		if b.isJDK() {
			log.Warnf("The 'target-version' parameter is missing. Trying to read bundled JDK signatures %q without compiler target. "+
				"You have to explicitly specify the version in the resource name.", b.Name)
		}
		return nil, nil
	}
	return &effective, nil
}

func (b BundledReference) key() string {
	return b.Name + "@" + b.TargetVersion
}
