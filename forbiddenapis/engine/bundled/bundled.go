/*
Package bundled holds the signature sets shipped with the checker. JDK sets exist per runtime version and are
referenced as "<name>-<version>" or as "<name>" plus a target version.
*/
package bundled

import (
	"embed"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
)

// JDKPrefix marks bundled sets that describe the Java runtime and may be version qualified.
const JDKPrefix = "jdk-"

//go:embed signatures/*.txt
var files embed.FS

var versionedName = regexp.MustCompile(`^(.+)-(\d+(?:\.\d+)?)$`)

// Names lists every bundled signature set.
func Names() []string {
	entries, err := files.ReadDir("signatures")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names
}

func read(name string) ([]byte, bool) {
	b, err := files.ReadFile(path.Join("signatures", name+".txt"))
	if err != nil {
		return nil, false
	}
	return b, true
}

// NormalizeVersion maps compiler target notations onto bundle versions: "8" and "1.8" become "1.8", "11.0.2"
// becomes "11".
func NormalizeVersion(v string) (string, error) {
	parsed, err := version.NewVersion(strings.TrimSpace(v))
	if err != nil {
		return "", fmt.Errorf("invalid target version %q: %w", v, err)
	}
	segs := parsed.Segments()
	switch {
	case segs[0] == 1 && len(segs) > 1:
		return "1." + strconv.Itoa(segs[1]), nil
	case segs[0] <= 8:
		return "1." + strconv.Itoa(segs[0]), nil
	default:
		return strconv.Itoa(segs[0]), nil
	}
}

type candidate struct {
	name    string
	version *version.Version
}

func versionsOf(family string) []candidate {
	var out []candidate
	for _, n := range Names() {
		m := versionedName.FindStringSubmatch(n)
		if m == nil || m[1] != family {
			continue
		}
		v, err := version.NewVersion(m[2])
		if err != nil {
			continue
		}
		out = append(out, candidate{name: n, version: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].version.LessThan(out[j].version)
	})
	return out
}

// Lookup resolves a bundled name to the set that should be loaded. Without a target version a versioned family
// resolves to its newest set; with one, to the newest set not newer than the target.
func Lookup(name string, targetVersion *string) (string, []byte, error) {
	if b, ok := read(name); ok {
		return name, b, nil
	}
	if !strings.HasPrefix(name, JDKPrefix) {
		return "", nil, fmt.Errorf("invalid bundled signature reference %q", name)
	}
	candidates := versionsOf(name)
	if len(candidates) == 0 {
		return "", nil, fmt.Errorf("invalid bundled signature reference %q", name)
	}
	if targetVersion == nil {
		best := candidates[len(candidates)-1]
		b, _ := read(best.name)
		return best.name, b, nil
	}

	normalized, err := NormalizeVersion(*targetVersion)
	if err != nil {
		return "", nil, err
	}
	want, err := version.NewVersion(normalized)
	if err != nil {
		return "", nil, err
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if !candidates[i].version.GreaterThan(want) {
			b, _ := read(candidates[i].name)
			return candidates[i].name, b, nil
		}
	}
	return "", nil, fmt.Errorf("no bundled signatures %q available for target version %s", name, *targetVersion)
}
