package forbiddenapis

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wagoodman/go-partybus"

	"github.com/anchore/forbiddenapis/forbiddenapis/apierr"
	"github.com/anchore/forbiddenapis/forbiddenapis/classpath"
	"github.com/anchore/forbiddenapis/forbiddenapis/collect"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine/classfile/classfiletest"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine/enginetest"
	"github.com/anchore/forbiddenapis/forbiddenapis/event"
	"github.com/anchore/forbiddenapis/forbiddenapis/event/monitor"
	"github.com/anchore/forbiddenapis/forbiddenapis/signature"
	"github.com/anchore/forbiddenapis/internal/bus"
	"github.com/anchore/forbiddenapis/internal/log/logtest"
)

var appClass = classfiletest.New("org/example/App").
	CallsMethod("java/lang/System", "exit", "(I)V").
	Bytes()

func testRuntime() classpath.Loader {
	object := classfiletest.New("java/lang/Object")
	object.SuperName = ""
	object.Major = 61

	return classpath.NewStaticLoader("test runtime 17", map[string][]byte{
		"java/lang/Object": object.Bytes(),
		"java/lang/System": classfiletest.New("java/lang/System").
			Declares("exit", "(I)V").
			Declares("currentTimeMillis", "()J").
			Bytes(),
	})
}

func classesFs(t *testing.T, files map[string][]byte) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/classes", 0o755))
	require.NoError(t, fs.MkdirAll("/lib", 0o755))
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fs, p, content, 0o644))
	}
	return fs
}

func testConfig(fs afero.Fs, c *enginetest.Checker) Config {
	return Config{
		Fs:         fs,
		Platform:   testRuntime(),
		Dir:        "/classes",
		Signatures: signature.Sources{Inline: []string{"java.lang.System#exit(int)"}},
		Policy:     DefaultFailurePolicy(),
		NewChecker: enginetest.Factory(c),
	}
}

func countReleases(t *testing.T) *int {
	t.Helper()
	released := 0
	original := newClasspathContext
	newClasspathContext = func(fs afero.Fs, platform classpath.Loader, elements []string, opts ...classpath.ContextOption) (*classpath.Context, error) {
		opts = append(opts, classpath.OnRelease(func() { released++ }))
		return original(fs, platform, elements, opts...)
	}
	t.Cleanup(func() { newClasspathContext = original })
	return &released
}

type recordingPublisher struct {
	events []partybus.Event
}

func (p *recordingPublisher) Publish(e partybus.Event) {
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []partybus.EventType {
	var out []partybus.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func capturePublisher(t *testing.T) *recordingPublisher {
	t.Helper()
	p := &recordingPublisher{}
	bus.Set(p)
	t.Cleanup(func() { bus.Set(nil) })
	return p
}

func TestCheck_CompletesWithoutFindings(t *testing.T) {
	fs := classesFs(t, map[string][]byte{"/classes/org/example/App.class": appClass})
	c := &enginetest.Checker{}

	outcome, err := Check(testConfig(fs, c))
	require.NoError(t, err)

	assert.Equal(t, Completed, outcome.State)
	assert.False(t, outcome.Skipped)
	assert.True(t, outcome.Supported)
	assert.Equal(t, "test runtime 17", outcome.Runtime)
	assert.Equal(t, 1, outcome.ScannedCount)
	assert.Equal(t, int64(len(appClass)), outcome.ScannedBytes)
	assert.Zero(t, outcome.Violations)
	assert.True(t, c.Ran)
	assert.Equal(t, []string{"java.lang.System#exit(int)"}, c.Inline)
	require.Len(t, c.Classes, 1)
	assert.Equal(t, "/classes/org/example/App.class", c.Classes[0].Name)
	assert.Equal(t, engine.NewOptions(
		engine.FailOnMissingClasses,
		engine.FailOnViolation,
		engine.FailOnUnresolvableSignatures,
	), c.Options)
}

func TestCheck_NoSignaturesAlwaysAborts(t *testing.T) {
	tests := []struct {
		name   string
		policy FailurePolicy
	}{
		{name: "defaults", policy: DefaultFailurePolicy()},
		{name: "nothing fails", policy: FailurePolicy{}},
		{
			name: "everything fails",
			policy: FailurePolicy{
				FailOnUnsupportedJava:        true,
				FailOnMissingClasses:         true,
				FailOnUnresolvableSignatures: true,
				FailOnViolation:              true,
				IgnoreEmptyFileSet:           true,
				RestrictClassFilename:        true,
				DisableClassloadingCache:     true,
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fs := classesFs(t, map[string][]byte{"/classes/App.class": appClass})
			c := &enginetest.Checker{}
			cfg := testConfig(fs, c)
			cfg.Signatures = signature.Sources{Inline: []string{"  \n"}}
			cfg.Policy = test.policy

			outcome, err := Check(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, apierr.ErrConfiguration)
			assert.Equal(t, Aborted, outcome.State)
			assert.Equal(t, "configuration", outcome.ErrorKind)
			assert.False(t, c.Ran)
		})
	}
}

func TestCheck_TargetVersionOnNonJDKBundle(t *testing.T) {
	for _, defaultVersion := range []string{"", "11"} {
		t.Run("default="+defaultVersion, func(t *testing.T) {
			fs := classesFs(t, map[string][]byte{"/classes/App.class": appClass})
			c := &enginetest.Checker{}
			cfg := testConfig(fs, c)
			cfg.Signatures = signature.Sources{
				Bundled:              []signature.BundledReference{{Name: "jdk-system-out"}, {Name: "commons-io-unsafe", TargetVersion: "2.5"}},
				DefaultTargetVersion: defaultVersion,
			}

			outcome, err := Check(cfg)
			assert.ErrorIs(t, err, apierr.ErrConfiguration)
			assert.Equal(t, Aborted, outcome.State)
			assert.Empty(t, c.Bundled)
		})
	}
}

func TestCheck_EmptyFileSet(t *testing.T) {
	t.Run("ignored", func(t *testing.T) {
		rec, restore := logtest.Capture()
		defer restore()

		c := &enginetest.Checker{}
		cfg := testConfig(classesFs(t, nil), c)
		cfg.Policy.IgnoreEmptyFileSet = true

		outcome, err := Check(cfg)
		require.NoError(t, err)
		assert.Equal(t, Completed, outcome.State)
		assert.True(t, outcome.Skipped)
		assert.Zero(t, outcome.ScannedCount)
		assert.Zero(t, outcome.Violations)
		assert.False(t, c.Ran)
		assert.True(t, rec.Contains("warn", "no class files to check"))
		assert.True(t, rec.Contains("info", "Scanned 0 class files"))
	})

	t.Run("not ignored", func(t *testing.T) {
		c := &enginetest.Checker{}
		outcome, err := Check(testConfig(classesFs(t, nil), c))
		require.Error(t, err)
		assert.ErrorIs(t, err, apierr.ErrConfiguration)
		assert.Contains(t, err.Error(), "no class files to check")
		assert.Equal(t, Aborted, outcome.State)
		assert.False(t, c.Ran)
	})
}

func TestCheck_RestrictClassFilename(t *testing.T) {
	files := map[string][]byte{
		"/classes/App.class":  appClass,
		"/classes/README.txt": []byte("not a class"),
	}

	tests := []struct {
		restrict bool
		want     []string
	}{
		{restrict: true, want: []string{"/classes/App.class"}},
		{restrict: false, want: []string{"/classes/App.class", "/classes/README.txt"}},
	}
	for _, test := range tests {
		c := &enginetest.Checker{}
		cfg := testConfig(classesFs(t, files), c)
		cfg.Dir = ""
		cfg.ClassFiles = []collect.Collection{collect.FileList{Dir: "/classes", Files: []string{"App.class", "README.txt"}}}
		cfg.SuppressAnnotations = []string{"org.example.SuppressForbidden"}
		cfg.Policy.RestrictClassFilename = test.restrict

		_, err := Check(cfg)
		require.NoError(t, err)

		var names []string
		for _, r := range c.Classes {
			names = append(names, r.Name)
		}
		assert.Equal(t, test.want, names)
		assert.Equal(t, []string{"java.lang.System#exit(int)"}, c.Inline)
		assert.Equal(t, []string{"org.example.SuppressForbidden"}, c.SuppressAnnotations)
	}
}

func TestCheck_ReleasesClasspathExactlyOnce(t *testing.T) {
	stages := []struct {
		name    string
		mutate  func(cfg *Config, c *enginetest.Checker)
		wantErr bool
	}{
		{name: "success", mutate: func(*Config, *enginetest.Checker) {}},
		{
			name: "unsupported runtime",
			mutate: func(cfg *Config, c *enginetest.Checker) {
				c.Unsupported = true
				cfg.Policy.FailOnUnsupportedJava = true
			},
			wantErr: true,
		},
		{
			name:   "unsupported runtime skipped",
			mutate: func(_ *Config, c *enginetest.Checker) { c.Unsupported = true },
		},
		{
			name:    "bad signatures",
			mutate:  func(cfg *Config, _ *enginetest.Checker) { cfg.Signatures.Inline = []string{"!!"} },
			wantErr: true,
		},
		{
			name:    "no classes",
			mutate:  func(cfg *Config, _ *enginetest.Checker) { cfg.Dir = "/lib" },
			wantErr: true,
		},
		{
			name:    "engine failure",
			mutate:  func(_ *Config, c *enginetest.Checker) { c.RunErr = errors.New("engine exploded") },
			wantErr: true,
		},
	}

	for _, cp := range [][]string{nil, {"/lib"}} {
		for _, stage := range stages {
			t.Run(stage.name, func(t *testing.T) {
				released := countReleases(t)
				c := &enginetest.Checker{}
				cfg := testConfig(classesFs(t, map[string][]byte{"/classes/App.class": appClass}), c)
				cfg.Classpath = cp
				stage.mutate(&cfg, c)

				_, err := Check(cfg)
				if stage.wantErr {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}

				want := 0
				if len(cp) > 0 {
					want = 1
				}
				assert.Equal(t, want, *released)
			})
		}
	}
}

func TestCheck_ClasspathConstructionFailureReleasesNothing(t *testing.T) {
	released := countReleases(t)
	c := &enginetest.Checker{}
	fs := classesFs(t, map[string][]byte{
		"/classes/App.class": appClass,
		"/lib/notes.txt":     []byte("plain text, not an archive"),
	})
	cfg := testConfig(fs, c)
	cfg.Classpath = []string{"/lib/notes.txt"}

	outcome, err := Check(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrConfiguration)
	assert.Equal(t, Aborted, outcome.State)
	assert.Zero(t, *released)
	assert.Nil(t, c.Loader)
}

func TestCheck_SystemExitScenario(t *testing.T) {
	tests := []struct {
		name            string
		failOnViolation bool
		wantErr         bool
		wantState       State
	}{
		{name: "fail on violation", failOnViolation: true, wantErr: true, wantState: Aborted},
		{name: "report only", failOnViolation: false, wantState: Completed},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec, restore := logtest.Capture()
			defer restore()

			fs := classesFs(t, map[string][]byte{"/classes/org/example/App.class": appClass})
			policy := DefaultFailurePolicy()
			policy.FailOnViolation = test.failOnViolation

			outcome, err := Check(Config{
				Fs:         fs,
				Platform:   testRuntime(),
				Dir:        "/classes",
				Signatures: signature.Sources{Inline: []string{"java.lang.System#exit(int)"}},
				Policy:     policy,
			})

			if test.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apierr.ErrViolation)
				assert.Contains(t, err.Error(), "Check for forbidden API calls failed")
				assert.Equal(t, "violation", outcome.ErrorKind)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, test.wantState, outcome.State)
			assert.Equal(t, 1, outcome.Violations)
			assert.True(t, rec.Contains("error", "Forbidden method invocation: java.lang.System#exit(int)"))
		})
	}
}

func writeJmod(t *testing.T, fs afero.Fs, path string, classes map[string][]byte) {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.Write([]byte{'J', 'M', 1, 0})
	w := zip.NewWriter(buf)
	for name, content := range classes {
		f, err := w.Create("classes/" + name + ".class")
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func TestCheck_ResolvesClassesFromEveryRuntimeModule(t *testing.T) {
	object := classfiletest.New("java/lang/Object")
	object.SuperName = ""
	object.Major = 61
	app := classfiletest.New("org/example/App").
		CallsMethod("java/sql/Connection", "close", "()V").
		CallsMethod("java/util/logging/Logger", "info", "(Ljava/lang/String;)V").
		Bytes()

	fs := classesFs(t, map[string][]byte{"/classes/org/example/App.class": app})
	writeJmod(t, fs, "/jdk/jmods/java.base.jmod", map[string][]byte{
		"java/lang/Object": object.Bytes(),
		"java/lang/System": classfiletest.New("java/lang/System").Declares("exit", "(I)V").Bytes(),
		"java/lang/String": classfiletest.New("java/lang/String").Bytes(),
	})
	writeJmod(t, fs, "/jdk/jmods/java.sql.jmod", map[string][]byte{
		"java/sql/Connection": classfiletest.New("java/sql/Connection").Declares("close", "()V").Bytes(),
	})
	writeJmod(t, fs, "/jdk/jmods/java.logging.jmod", map[string][]byte{
		"java/util/logging/Logger": classfiletest.New("java/util/logging/Logger").Declares("info", "(Ljava/lang/String;)V").Bytes(),
	})

	outcome, err := Check(Config{
		Fs:         fs,
		JavaHome:   "/jdk",
		Dir:        "/classes",
		Signatures: signature.Sources{Inline: []string{"java.lang.System#exit(int)"}},
		Policy:     DefaultFailurePolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, Completed, outcome.State)
	assert.True(t, outcome.Supported)
	assert.Zero(t, outcome.MissingReferences)
	assert.Zero(t, outcome.Violations)
}

func TestCheck_JDKBundleWithoutVersion(t *testing.T) {
	rec, restore := logtest.Capture()
	defer restore()

	c := &enginetest.Checker{}
	cfg := testConfig(classesFs(t, map[string][]byte{"/classes/App.class": appClass}), c)
	cfg.Signatures = signature.Sources{Bundled: []signature.BundledReference{{Name: "jdk-deprecated"}}}

	outcome, err := Check(cfg)
	require.NoError(t, err)
	assert.Equal(t, Completed, outcome.State)
	require.Len(t, c.Bundled, 1)
	assert.Equal(t, "jdk-deprecated", c.Bundled[0].Name)
	assert.Nil(t, c.Bundled[0].TargetVersion)
	assert.True(t, rec.Contains("warn", "target-version"))
}

func TestCheck_UnsupportedRuntime(t *testing.T) {
	t.Run("skipped", func(t *testing.T) {
		rec, restore := logtest.Capture()
		defer restore()

		c := &enginetest.Checker{Unsupported: true}
		outcome, err := Check(testConfig(classesFs(t, map[string][]byte{"/classes/App.class": appClass}), c))
		require.NoError(t, err)
		assert.Equal(t, Completed, outcome.State)
		assert.True(t, outcome.Skipped)
		assert.False(t, outcome.Supported)
		assert.Contains(t, outcome.SkipReason, "is not supported")
		assert.True(t, rec.Contains("warn", "is not supported"))
		assert.Empty(t, c.Inline)
		assert.False(t, c.Ran)
	})

	t.Run("fails", func(t *testing.T) {
		c := &enginetest.Checker{Unsupported: true}
		cfg := testConfig(classesFs(t, map[string][]byte{"/classes/App.class": appClass}), c)
		cfg.Policy.FailOnUnsupportedJava = true

		outcome, err := Check(cfg)
		assert.ErrorIs(t, err, apierr.ErrEnvironment)
		assert.Equal(t, Aborted, outcome.State)
		assert.Equal(t, "environment", outcome.ErrorKind)
	})
}

func TestCheck_FindingsAreLoggedAndPublished(t *testing.T) {
	rec, restore := logtest.Capture()
	defer restore()
	pub := capturePublisher(t)

	c := &enginetest.Checker{
		Missing:    []string{"Class 'org.example.Gone' not found on classpath"},
		Violations: []string{"Forbidden class use: java.util.Vector in org.example.App"},
	}
	cfg := testConfig(classesFs(t, map[string][]byte{"/classes/App.class": appClass}), c)
	cfg.Policy.FailOnViolation = false

	outcome, err := Check(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Violations)
	assert.Equal(t, 1, outcome.MissingReferences)
	assert.True(t, rec.Contains("warn", "org.example.Gone"))
	assert.True(t, rec.Contains("error", "java.util.Vector"))
	assert.Equal(t, []partybus.EventType{
		event.CheckStarted,
		event.MissingReference,
		event.ViolationFound,
		event.CheckFinished,
	}, pub.types())

	finished, ok := pub.events[len(pub.events)-1].Value.(Outcome)
	require.True(t, ok)
	assert.Equal(t, outcome, finished)

	mon, ok := pub.events[0].Value.(monitor.Checking)
	require.True(t, ok)
	assert.Equal(t, int64(1), mon.ClassesLoaded.Current())
	assert.Equal(t, int64(1), mon.ClassesLoaded.Size())
	assert.Equal(t, int64(1), mon.ViolationsFound.Current())
	assert.Equal(t, int64(1), mon.MissingReferences.Current())
}

func TestCheck_EngineErrorBecomesViolationError(t *testing.T) {
	c := &enginetest.Checker{RunErr: &engine.ForbiddenAPIError{Message: "Class 'org.example.Gone' not found on classpath"}}
	cfg := testConfig(classesFs(t, map[string][]byte{"/classes/App.class": appClass}), c)

	outcome, err := Check(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrViolation)
	assert.NotErrorIs(t, err, apierr.ErrConfiguration)
	assert.Contains(t, err.Error(), "org.example.Gone")
	assert.Equal(t, Aborted, outcome.State)

	var fe *engine.ForbiddenAPIError
	assert.True(t, errors.As(err, &fe))
}

func TestCheck_UnreadableSignatureFile(t *testing.T) {
	c := &enginetest.Checker{}
	cfg := testConfig(classesFs(t, map[string][]byte{"/classes/App.class": appClass}), c)
	cfg.Signatures = signature.Sources{Files: []string{"/missing/signatures.txt"}}

	_, err := Check(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrResourceIO)
	assert.ErrorIs(t, err, apierr.ErrConfiguration)
	assert.Contains(t, err.Error(), "/missing/signatures.txt")
}
