/*
Package forbiddenapis verifies that compiled classes do not reference forbidden APIs. Check assembles the inputs of
one run (signatures, suppression annotations, class files and an isolated classpath), drives the checking engine
and turns its findings into a pass, skip or fail outcome.
*/
package forbiddenapis

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/wagoodman/go-partybus"
	"github.com/wagoodman/go-progress"

	"github.com/anchore/forbiddenapis/forbiddenapis/apierr"
	"github.com/anchore/forbiddenapis/forbiddenapis/classpath"
	"github.com/anchore/forbiddenapis/forbiddenapis/collect"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine"
	"github.com/anchore/forbiddenapis/forbiddenapis/event"
	"github.com/anchore/forbiddenapis/forbiddenapis/event/monitor"
	"github.com/anchore/forbiddenapis/forbiddenapis/signature"
	"github.com/anchore/forbiddenapis/forbiddenapis/suppression"
	"github.com/anchore/forbiddenapis/internal/bus"
	"github.com/anchore/forbiddenapis/internal/log"
)

const noClassFilesMessage = "no class files to check: there is no class file collection given, or the collections do not contain any class files"

// Config is everything a single run needs. It is read-only once Check is called.
type Config struct {
	Fs afero.Fs
	// Classpath lists directories and archives used to resolve referenced types. Empty means only the platform
	// runtime is consulted.
	Classpath []string
	// JavaHome locates the platform runtime; defaults to $JAVA_HOME.
	JavaHome string
	// Dir is a directory of compiled classes, scanned with an implicit "**/*.class" pattern.
	Dir        string
	ClassFiles []collect.Collection
	Signatures signature.Sources
	// SuppressAnnotations are annotation class names that exempt a class from reporting.
	SuppressAnnotations []string
	Policy              FailurePolicy

	// NewChecker builds the engine; defaults to engine.New.
	NewChecker engine.Factory
	// Platform overrides the runtime loader derived from JavaHome.
	Platform classpath.Loader
}

var newClasspathContext = classpath.NewContext

func (cfg Config) withDefaults() Config {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.NewChecker == nil {
		cfg.NewChecker = engine.New
	}
	if cfg.JavaHome == "" {
		cfg.JavaHome = os.Getenv("JAVA_HOME")
	}
	if cfg.Platform == nil {
		cfg.Platform = classpath.NewPlatformLoader(cfg.Fs, cfg.JavaHome)
	}
	return cfg
}

func (cfg Config) classCollections() []collect.Collection {
	var out []collect.Collection
	if cfg.Dir != "" {
		out = append(out, collect.Dir(cfg.Dir))
	}
	return append(out, cfg.ClassFiles...)
}

type run struct {
	cfg     Config
	outcome Outcome

	classesLoaded     *progress.Manual
	violationsFound   *progress.Manual
	missingReferences *progress.Manual
}

func newRun(cfg Config) *run {
	return &run{
		cfg:               cfg.withDefaults(),
		classesLoaded:     &progress.Manual{},
		violationsFound:   &progress.Manual{},
		missingReferences: &progress.Manual{},
	}
}

// track announces the run to subscribers once the number of class files is known.
func (r *run) track(classes int) {
	r.classesLoaded.Total = int64(classes)
	bus.Publish(partybus.Event{
		Type: event.CheckStarted,
		Value: monitor.Checking{
			ClassesLoaded:     progress.Progressable(r.classesLoaded),
			ViolationsFound:   progress.Monitorable(r.violationsFound),
			MissingReferences: progress.Monitorable(r.missingReferences),
		},
	})
}

func (r *run) finishTracking() {
	for _, m := range []*progress.Manual{r.classesLoaded, r.violationsFound, r.missingReferences} {
		if m.Total < m.N {
			m.Total = m.N
		}
		m.SetCompleted()
	}
}

// Check performs one verification run. The returned error is always an *apierr.Error; the outcome is populated in
// both cases and also published as an event.CheckFinished event.
func Check(cfg Config) (Outcome, error) {
	r := newRun(cfg)
	err := r.execute()
	r.finishTracking()
	if err != nil {
		r.transition(Aborted)
		if kind, ok := apierr.KindOf(err); ok {
			r.outcome.ErrorKind = kind.String()
		}
		r.outcome.Error = err.Error()
	} else {
		r.transition(Completed)
	}

	bus.Publish(partybus.Event{
		Type:  event.CheckFinished,
		Value: r.outcome,
	})
	return r.outcome, err
}

func (r *run) transition(s State) {
	log.Tracef("forbidden API check: %s -> %s", r.outcome.State, s)
	r.outcome.State = s
}

func (r *run) skip(reason string) {
	r.outcome.Skipped = true
	r.outcome.SkipReason = reason
}

func (r *run) execute() error {
	r.transition(ResolvingRuntime)
	ctx, err := newClasspathContext(r.cfg.Fs, r.cfg.Platform, r.cfg.Classpath)
	if err != nil {
		return &apierr.Error{Kind: apierr.ConfigurationKind, Message: "unable to build classpath", Err: err}
	}
	defer func() {
		if err := ctx.Close(); err != nil {
			log.Warnf("unable to release classpath: %+v", err)
		}
	}()

	checker, err := r.cfg.NewChecker(ctx.Loader(), r.cfg.Policy.EngineOptions(), &listener{run: r})
	if err != nil {
		return &apierr.Error{Kind: apierr.ConfigurationKind, Message: "unable to create checker", Err: err}
	}
	r.outcome.Runtime = checker.RuntimeDescription()
	if !checker.IsSupportedRuntime() {
		msg := fmt.Sprintf("Your Java runtime (%s) is not supported by forbiddenapis. Please run the checks with a supported JDK!", r.outcome.Runtime)
		if r.cfg.Policy.FailOnUnsupportedJava {
			return apierr.NewEnvironmentError("%s", msg)
		}
		log.Warn(msg)
		r.skip(msg)
		return nil
	}
	r.outcome.Supported = true

	r.transition(LoadingSignatures)
	suppression.NewRegistry(r.cfg.SuppressAnnotations...).RegisterWith(checker)
	if err := r.cfg.Signatures.Load(r.cfg.Fs, checker); err != nil {
		return err
	}

	r.transition(EnumeratingClasses)
	log.Info("Loading classes to check...")
	artifacts, err := collect.Collector{
		Fs:                    r.cfg.Fs,
		Collections:           r.cfg.classCollections(),
		RestrictClassFilename: r.cfg.Policy.RestrictClassFilename,
	}.Collect()
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		if r.cfg.Policy.IgnoreEmptyFileSet {
			log.Warn(noClassFilesMessage)
			log.Info("Scanned 0 class files")
			r.skip(noClassFilesMessage)
			return nil
		}
		return apierr.NewConfigurationError(noClassFilesMessage)
	}
	r.track(len(artifacts))
	for _, a := range artifacts {
		if err := r.addClass(checker, a); err != nil {
			return err
		}
	}

	r.transition(Running)
	if err := checker.Run(); err != nil {
		return apierr.NewViolationError(err)
	}
	return nil
}

func (r *run) addClass(checker engine.Checker, a collect.ClassArtifact) error {
	rc, err := a.Open()
	if err != nil {
		return err
	}
	defer log.CloseAndLogError(rc, a.Resource.Path)

	counter := &countingReader{r: rc}
	if err := checker.AddClassToCheck(counter, a.Resource.Path); err != nil {
		return &apierr.Error{Kind: apierr.ResourceIOKind, Message: fmt.Sprintf("failed to load class file %q", a.Resource.Path), Err: err}
	}
	r.outcome.ScannedCount++
	r.outcome.ScannedBytes += counter.n
	r.classesLoaded.N++
	return nil
}

// listener routes engine findings to the log and the event bus. Neither channel aborts the run by itself.
type listener struct {
	run *run
}

func (l *listener) Missing(message string) {
	l.run.outcome.MissingReferences++
	l.run.missingReferences.N++
	log.Warn(message)
	bus.MissingReference(message)
}

func (l *listener) Violation(message string) {
	l.run.outcome.Violations++
	l.run.violationsFound.N++
	log.Error(message)
	bus.Violation(message)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
