package engine

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v2"
	"github.com/scylladb/go-set/strset"

	"github.com/anchore/forbiddenapis/forbiddenapis/classpath"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine/bundled"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine/classfile"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine/signatures"
	"github.com/anchore/forbiddenapis/internal/log"
)

type checkedClass struct {
	class  *classfile.Class
	source string
}

// checker is the reference Checker: it scans class file constant pools, which means a forbidden reference is
// reported once per class rather than once per call site.
type checker struct {
	loader   classpath.Loader
	options  Options
	listener Listener

	suppress       []string
	classes        map[string]*checkedClass
	order          []string
	cache          map[string]*classfile.Class
	bundlesLoaded  *strset.Set
	reportedMissed *strset.Set

	classSigs     map[string]signatures.Signature
	classPatterns []signatures.Signature
	memberSigs    map[string][]signatures.Signature
	signatureCnt  int
}

// New constructs the reference checker. It satisfies Factory.
func New(loader classpath.Loader, options Options, listener Listener) (Checker, error) {
	if loader == nil {
		return nil, fmt.Errorf("a class loader is required")
	}
	if listener == nil {
		return nil, fmt.Errorf("a listener is required")
	}
	log.Debugf("creating checker with options %s", options)
	return &checker{
		loader:         loader,
		options:        options,
		listener:       listener,
		classes:        make(map[string]*checkedClass),
		cache:          make(map[string]*classfile.Class),
		bundlesLoaded:  strset.New(),
		reportedMissed: strset.New(),
		classSigs:      make(map[string]signatures.Signature),
		memberSigs:     make(map[string][]signatures.Signature),
	}, nil
}

func (c *checker) IsSupportedRuntime() bool {
	obj, err := c.lookup("java/lang/Object")
	if err != nil {
		log.Debugf("unable to read the runtime's java.lang.Object: %v", err)
		return false
	}
	return obj.MajorVersion <= classfile.MaxSupportedMajorVersion
}

func (c *checker) RuntimeDescription() string {
	return c.loader.Description()
}

func (c *checker) AddSuppressAnnotation(className string) {
	c.suppress = append(c.suppress, classpath.InternalName(className))
}

func (c *checker) AddBundledSignatures(name string, targetVersion *string) error {
	resolved, content, err := bundled.Lookup(name, targetVersion)
	if err != nil {
		return newParseError("%v", err)
	}
	if c.bundlesLoaded.Has(resolved) {
		log.Debugf("bundled signatures %q already loaded", resolved)
		return nil
	}
	c.bundlesLoaded.Add(resolved)
	log.Debugf("reading bundled API signatures: %s", resolved)
	return c.parse(strings.NewReader(string(content)), "bundled:"+resolved)
}

func (c *checker) ParseSignaturesString(text string) error {
	return c.parse(strings.NewReader(text), "inline")
}

func (c *checker) ParseSignaturesFile(r io.Reader, name string) error {
	log.Debugf("reading API signatures: %s", name)
	return c.parse(r, name)
}

func (c *checker) parse(r io.Reader, source string) error {
	sigs, dirs, err := signatures.Parse(r, source)
	if err != nil {
		var pe *signatures.ParseError
		if errors.As(err, &pe) {
			return newParseError("%v", pe)
		}
		return err
	}
	for _, name := range dirs.IncludeBundled {
		if err := c.AddBundledSignatures(name, nil); err != nil {
			return err
		}
	}
	for _, sig := range sigs {
		if err := c.addSignature(sig); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) addSignature(sig signatures.Signature) error {
	c.signatureCnt++
	if sig.Kind == signatures.ClassPattern {
		c.classPatterns = append(c.classPatterns, sig)
		return nil
	}

	if _, err := c.lookup(sig.Class); err != nil {
		return c.unresolvable(sig, fmt.Sprintf("Class '%s' not found on classpath", classpath.BinaryName(sig.Class)))
	}

	switch sig.Kind {
	case signatures.ClassSignature:
		c.classSigs[sig.Class] = sig
	case signatures.MethodSignature:
		if !c.hierarchyDeclares(sig.Class, func(k *classfile.Class) bool { return declaresMethod(k, sig) }) {
			return c.unresolvable(sig, "Method not found")
		}
		key := sig.Class + "#" + sig.Name
		c.memberSigs[key] = append(c.memberSigs[key], sig)
	case signatures.FieldSignature:
		if !c.hierarchyDeclares(sig.Class, func(k *classfile.Class) bool { return declaresField(k, sig.Name) }) {
			return c.unresolvable(sig, "Field not found")
		}
		key := sig.Class + "#" + sig.Name
		c.memberSigs[key] = append(c.memberSigs[key], sig)
	}
	return nil
}

func (c *checker) unresolvable(sig signatures.Signature, reason string) error {
	if sig.IgnoreUnresolvable || !c.options.Has(FailOnUnresolvableSignatures) {
		log.Warnf("%s while parsing signature: %s [signature ignored]", reason, sig)
		return nil
	}
	return newParseError("%s while parsing signature: %s", reason, sig)
}

func declaresMethod(k *classfile.Class, sig signatures.Signature) bool {
	for _, m := range k.Methods {
		if m.Name != sig.Name {
			continue
		}
		if sig.Params == nil || signatures.MethodParams(m.Descriptor) == *sig.Params {
			return true
		}
	}
	return false
}

func declaresField(k *classfile.Class, name string) bool {
	for _, f := range k.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// hierarchyDeclares walks the class, its superclasses and interfaces. Unresolvable supertypes are skipped.
func (c *checker) hierarchyDeclares(name string, pred func(*classfile.Class) bool) bool {
	found := false
	c.walkHierarchy(name, func(k *classfile.Class) bool {
		found = pred(k)
		return !found
	})
	return found
}

func (c *checker) walkHierarchy(name string, visit func(*classfile.Class) bool) {
	seen := strset.New()
	queue := []string{name}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == "" || seen.Has(n) {
			continue
		}
		seen.Add(n)
		k, err := c.lookup(n)
		if err != nil {
			continue
		}
		if !visit(k) {
			return
		}
		queue = append(queue, k.SuperName)
		queue = append(queue, k.Interfaces...)
	}
}

func (c *checker) HasNoSignatures() bool {
	return c.signatureCnt == 0
}

func (c *checker) AddClassToCheck(r io.Reader, name string) error {
	k, err := classfile.Parse(r)
	if err != nil {
		return fmt.Errorf("unable to parse class file %s: %w", name, err)
	}
	if _, ok := c.classes[k.Name]; !ok {
		c.order = append(c.order, k.Name)
	}
	c.classes[k.Name] = &checkedClass{class: k, source: name}
	return nil
}

// lookup resolves a class first among the classes being checked, then through the loader.
func (c *checker) lookup(name string) (*classfile.Class, error) {
	if k, ok := c.classes[name]; ok {
		return k.class, nil
	}
	if k, ok := c.cache[name]; ok {
		return k, nil
	}
	rc, err := c.loader.Open(name)
	if err != nil {
		return nil, err
	}
	defer log.CloseAndLogError(rc, name)
	k, err := classfile.Parse(rc)
	if err != nil {
		return nil, err
	}
	if !c.options.Has(DisableClassloadingCache) {
		c.cache[name] = k
	}
	return k, nil
}

func (c *checker) Run() error {
	start := time.Now()
	violations := 0
	for _, name := range c.order {
		cc := c.classes[name]
		if c.isSuppressed(cc.class) {
			log.Debugf("skipping %s, it carries a suppression annotation", classpath.BinaryName(name))
			continue
		}
		n, err := c.checkClass(cc)
		if err != nil {
			return err
		}
		violations += n
	}

	log.Infof("Scanned %d class file(s) for forbidden API invocations (in %s), %d error(s).",
		len(c.order), time.Since(start).Round(time.Millisecond), violations)
	if violations > 0 && c.options.Has(FailOnViolation) {
		return &ForbiddenAPIError{Message: fmt.Sprintf("Check for forbidden API calls failed, see log (%d error(s)).", violations)}
	}
	return nil
}

func (c *checker) isSuppressed(k *classfile.Class) bool {
	for _, ann := range k.Annotations {
		for _, pattern := range c.suppress {
			if ok, _ := doublestar.Match(pattern, ann); ok {
				return true
			}
		}
	}
	return false
}

func (c *checker) checkClass(cc *checkedClass) (int, error) {
	k := cc.class
	where := fmt.Sprintf("in %s (%s)", classpath.BinaryName(k.Name), sourceName(cc))
	violations := 0
	report := func(kind string, sig signatures.Signature, what string) {
		msg := fmt.Sprintf("Forbidden %s: %s", kind, what)
		if sig.Message != "" {
			msg += " [" + sig.Message + "]"
		}
		c.listener.Violation(msg + " " + where)
		violations++
	}

	for _, ref := range k.ClassRefs {
		if sig, ok := c.forbiddenClass(ref); ok {
			report("class/interface use", sig, classpath.BinaryName(ref))
		}
		if _, err := c.lookup(ref); err != nil {
			if err := c.missing(ref, cc, err); err != nil {
				return violations, err
			}
		}
	}

	for _, ref := range k.MemberRefs {
		if ref.Owner == "" {
			continue
		}
		var hit *signatures.Signature
		c.walkHierarchy(ref.Owner, func(owner *classfile.Class) bool {
			for _, sig := range c.memberSigs[owner.Name+"#"+ref.Name] {
				if matchesMember(sig, ref) {
					s := sig
					hit = &s
					return false
				}
			}
			return true
		})
		if hit == nil {
			continue
		}
		if hit.Kind == signatures.FieldSignature {
			report("field access", *hit, hit.String())
		} else {
			report("method invocation", *hit, hit.String())
		}
	}
	return violations, nil
}

func matchesMember(sig signatures.Signature, ref classfile.MemberRef) bool {
	switch sig.Kind {
	case signatures.FieldSignature:
		return ref.Kind == classfile.FieldRef
	case signatures.MethodSignature:
		if ref.Kind == classfile.FieldRef {
			return false
		}
		return sig.Params == nil || signatures.MethodParams(ref.Descriptor) == *sig.Params
	}
	return false
}

func (c *checker) forbiddenClass(name string) (signatures.Signature, bool) {
	if sig, ok := c.classSigs[name]; ok {
		return sig, true
	}
	for _, sig := range c.classPatterns {
		if ok, _ := doublestar.Match(sig.Class, name); ok {
			return sig, true
		}
	}
	return signatures.Signature{}, false
}

func (c *checker) missing(ref string, cc *checkedClass, cause error) error {
	if !errors.Is(cause, classpath.ErrClassNotFound) {
		return &ForbiddenAPIError{
			Message: fmt.Sprintf("Check for forbidden API calls failed while scanning class '%s' (%s): %v",
				classpath.BinaryName(cc.class.Name), sourceName(cc), cause),
			Err: cause,
		}
	}
	if c.options.Has(FailOnMissingClasses) {
		return &ForbiddenAPIError{
			Message: fmt.Sprintf("Check for forbidden API calls failed while scanning class '%s' (%s): Class '%s' not found on classpath",
				classpath.BinaryName(cc.class.Name), sourceName(cc), classpath.BinaryName(ref)),
			Err: cause,
		}
	}
	if c.reportedMissed.Has(ref) {
		return nil
	}
	c.reportedMissed.Add(ref)
	c.listener.Missing(fmt.Sprintf("Class '%s' cannot be loaded (referenced from '%s'). Please fix the classpath!",
		classpath.BinaryName(ref), classpath.BinaryName(cc.class.Name)))
	return nil
}

func sourceName(cc *checkedClass) string {
	if cc.class.SourceFile != "" {
		return cc.class.SourceFile
	}
	return cc.source
}
