package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchore/forbiddenapis/forbiddenapis/classpath"
	"github.com/anchore/forbiddenapis/forbiddenapis/engine/classfile/classfiletest"
)

type recordingListener struct {
	missing    []string
	violations []string
}

func (l *recordingListener) Missing(msg string)   { l.missing = append(l.missing, msg) }
func (l *recordingListener) Violation(msg string) { l.violations = append(l.violations, msg) }

func runtimeClasses(major uint16) map[string][]byte {
	object := classfiletest.New("java/lang/Object")
	object.SuperName = ""
	object.Major = major
	object.Declares("toString", "()Ljava/lang/String;")

	return map[string][]byte{
		"java/lang/Object": object.Bytes(),
		"java/lang/System": classfiletest.New("java/lang/System").
			Declares("exit", "(I)V").
			Declares("currentTimeMillis", "()J").
			DeclaresField("out", "Ljava/io/PrintStream;").
			DeclaresField("err", "Ljava/io/PrintStream;").
			Bytes(),
		"java/io/PrintStream": classfiletest.New("java/io/PrintStream").Declares("println", "(Ljava/lang/String;)V").Bytes(),
		"java/lang/Throwable": classfiletest.New("java/lang/Throwable").Declares("printStackTrace", "()V").Bytes(),
		"java/lang/String":    classfiletest.New("java/lang/String").Declares("toLowerCase", "()Ljava/lang/String;").Bytes(),
	}
}

func newTestChecker(t *testing.T, opts Options) (*checker, *recordingListener) {
	t.Helper()
	listener := &recordingListener{}
	c, err := New(classpath.NewStaticLoader("test runtime 17", runtimeClasses(61)), opts, listener)
	require.NoError(t, err)
	return c.(*checker), listener
}

func appCallingExit() []byte {
	return classfiletest.New("org/example/App").
		CallsMethod("java/lang/System", "exit", "(I)V").
		Bytes()
}

func TestChecker_IsSupportedRuntime(t *testing.T) {
	tests := []struct {
		name     string
		classes  map[string][]byte
		expected bool
	}{
		{name: "java 17", classes: runtimeClasses(61), expected: true},
		{name: "newer than reader", classes: runtimeClasses(99), expected: false},
		{name: "no runtime library", classes: nil, expected: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, err := New(classpath.NewStaticLoader("rt", test.classes), NewOptions(), &recordingListener{})
			require.NoError(t, err)
			assert.Equal(t, test.expected, c.IsSupportedRuntime())
		})
	}
}

func TestChecker_MethodViolation(t *testing.T) {
	tests := []struct {
		name        string
		options     Options
		expectError bool
	}{
		{name: "fail on violation", options: NewOptions(FailOnViolation), expectError: true},
		{name: "report only", options: NewOptions(), expectError: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, listener := newTestChecker(t, test.options)
			require.NoError(t, c.ParseSignaturesString("java.lang.System#exit(int) @ use a proper shutdown"))
			require.NoError(t, c.AddClassToCheck(bytes.NewReader(appCallingExit()), "org/example/App.class"))

			err := c.Run()
			if test.expectError {
				var fae *ForbiddenAPIError
				require.True(t, errors.As(err, &fae))
				assert.Contains(t, fae.Message, "1 error(s)")
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, listener.violations, 1)
			assert.Equal(t, "Forbidden method invocation: java.lang.System#exit(int) [use a proper shutdown] in org.example.App (App.java)", listener.violations[0])
		})
	}
}

func TestChecker_FieldAndClassViolations(t *testing.T) {
	c, listener := newTestChecker(t, NewOptions(FailOnViolation))
	require.NoError(t, c.AddBundledSignatures("jdk-system-out", nil))
	require.NoError(t, c.ParseSignaturesString("org.legacy.**"))

	app := classfiletest.New("org/example/App").
		ReadsField("java/lang/System", "out", "Ljava/io/PrintStream;").
		CallsMethod("java/lang/System", "currentTimeMillis", "()J").
		UsesClass("org/legacy/Helper").
		Bytes()
	helper := classfiletest.New("org/legacy/Helper").Bytes()
	require.NoError(t, c.AddClassToCheck(bytes.NewReader(app), "App.class"))
	require.NoError(t, c.AddClassToCheck(bytes.NewReader(helper), "Helper.class"))

	assert.Error(t, c.Run())
	assert.Len(t, listener.violations, 2)
	assert.Contains(t, listener.violations[0], "Forbidden class/interface use: org.legacy.Helper")
	assert.Contains(t, listener.violations[1], "Forbidden field access: java.lang.System#out [Use a logger instead of writing to the console]")
}

func TestChecker_InheritedMethod(t *testing.T) {
	c, listener := newTestChecker(t, NewOptions(FailOnViolation))
	require.NoError(t, c.ParseSignaturesString("java.lang.Throwable#printStackTrace()"))

	custom := classfiletest.New("org/example/MyException")
	custom.SuperName = "java/lang/Throwable"
	app := classfiletest.New("org/example/App").CallsMethod("org/example/MyException", "printStackTrace", "()V")

	require.NoError(t, c.AddClassToCheck(bytes.NewReader(custom.Bytes()), "MyException.class"))
	require.NoError(t, c.AddClassToCheck(bytes.NewReader(app.Bytes()), "App.class"))

	assert.Error(t, c.Run())
	require.Len(t, listener.violations, 1)
	assert.Contains(t, listener.violations[0], "java.lang.Throwable#printStackTrace()")
}

func TestChecker_ArrayMembers(t *testing.T) {
	classes := runtimeClasses(61)
	object := classfiletest.New("java/lang/Object")
	object.SuperName = ""
	object.Major = 61
	classes["java/lang/Object"] = object.Declares("clone", "()Ljava/lang/Object;").Bytes()
	classes["java/util/Vector"] = classfiletest.New("java/util/Vector").Bytes()

	listener := &recordingListener{}
	c, err := New(classpath.NewStaticLoader("test runtime 17", classes), NewOptions(FailOnViolation, FailOnUnresolvableSignatures), listener)
	require.NoError(t, err)
	require.NoError(t, c.ParseSignaturesString("java.lang.Object#clone()\njava.util.Vector"))

	app := classfiletest.New("org/example/App").
		CallsMethod("[Ljava/lang/String;", "clone", "()Ljava/lang/Object;").
		CallsMethod("[Ljava/util/Vector;", "clone", "()Ljava/lang/Object;").
		Bytes()
	require.NoError(t, c.AddClassToCheck(bytes.NewReader(app), "App.class"))

	assert.Error(t, c.Run())
	require.Len(t, listener.violations, 1)
	assert.Contains(t, listener.violations[0], "Forbidden class/interface use: java.util.Vector")
	assert.Empty(t, listener.missing)
}

func TestChecker_SuppressAnnotation(t *testing.T) {
	c, listener := newTestChecker(t, NewOptions(FailOnViolation))
	c.AddSuppressAnnotation("**.SuppressForbidden")
	require.NoError(t, c.ParseSignaturesString("java.lang.System#exit(int)"))

	app := classfiletest.New("org/example/App").
		CallsMethod("java/lang/System", "exit", "(I)V").
		Annotated("org/example/util/SuppressForbidden").
		Bytes()
	require.NoError(t, c.AddClassToCheck(bytes.NewReader(app), "App.class"))

	assert.NoError(t, c.Run())
	assert.Empty(t, listener.violations)
}

func TestChecker_MissingClasses(t *testing.T) {
	app := classfiletest.New("org/example/App").UsesClass("org/dep/Gone").Bytes()

	t.Run("fail", func(t *testing.T) {
		c, listener := newTestChecker(t, NewOptions(FailOnMissingClasses))
		require.NoError(t, c.ParseSignaturesString("java.lang.System#exit(int)"))
		require.NoError(t, c.AddClassToCheck(bytes.NewReader(app), "App.class"))

		err := c.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Class 'org.dep.Gone' not found on classpath")
		assert.True(t, errors.Is(err, classpath.ErrClassNotFound))
		assert.Empty(t, listener.missing)
	})

	t.Run("warn", func(t *testing.T) {
		c, listener := newTestChecker(t, NewOptions())
		require.NoError(t, c.ParseSignaturesString("java.lang.System#exit(int)"))
		require.NoError(t, c.AddClassToCheck(bytes.NewReader(app), "App.class"))

		assert.NoError(t, c.Run())
		require.Len(t, listener.missing, 1)
		assert.Contains(t, listener.missing[0], "org.dep.Gone")
	})
}

func TestChecker_UnresolvableSignatures(t *testing.T) {
	tests := []struct {
		name      string
		options   Options
		text      string
		expectErr bool
	}{
		{name: "missing class fails", options: NewOptions(FailOnUnresolvableSignatures), text: "org.nowhere.Thing#run()", expectErr: true},
		{name: "missing method fails", options: NewOptions(FailOnUnresolvableSignatures), text: "java.lang.System#halt(int)", expectErr: true},
		{name: "missing field fails", options: NewOptions(FailOnUnresolvableSignatures), text: "java.lang.System#in", expectErr: true},
		{name: "ignored when option off", options: NewOptions(), text: "org.nowhere.Thing#run()", expectErr: false},
		{name: "ignored by directive", options: NewOptions(FailOnUnresolvableSignatures), text: "@ignoreUnresolvable\norg.nowhere.Thing", expectErr: false},
		{name: "patterns never resolve", options: NewOptions(FailOnUnresolvableSignatures), text: "org.nowhere.**", expectErr: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, _ := newTestChecker(t, test.options)
			err := c.ParseSignaturesString(test.text)
			if test.expectErr {
				var pe *ParseError
				assert.True(t, errors.As(err, &pe))
				return
			}
			assert.NoError(t, err)
			assert.False(t, c.HasNoSignatures())
		})
	}
}

func TestChecker_BundledSignatures(t *testing.T) {
	c, _ := newTestChecker(t, NewOptions())
	assert.True(t, c.HasNoSignatures())

	require.NoError(t, c.AddBundledSignatures("jdk-non-portable", nil))
	require.NoError(t, c.AddBundledSignatures("jdk-non-portable", nil))
	assert.False(t, c.HasNoSignatures())
	assert.Equal(t, 1, c.bundlesLoaded.Size())

	var pe *ParseError
	assert.True(t, errors.As(c.AddBundledSignatures("no-such-bundle", nil), &pe))
}

func TestChecker_ClassloadingCache(t *testing.T) {
	c, _ := newTestChecker(t, NewOptions(DisableClassloadingCache))
	_, err := c.lookup("java/lang/System")
	require.NoError(t, err)
	assert.Empty(t, c.cache)

	cached, _ := newTestChecker(t, NewOptions())
	_, err = cached.lookup("java/lang/System")
	require.NoError(t, err)
	assert.Len(t, cached.cache, 1)
}

func TestOptions_String(t *testing.T) {
	assert.Equal(t, "[fail-on-missing-classes, disable-classloading-cache]", NewOptions(DisableClassloadingCache, FailOnMissingClasses).String())
	assert.Equal(t, "[]", Options(0).String())
}
