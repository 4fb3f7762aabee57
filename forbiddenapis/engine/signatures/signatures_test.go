package signatures

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestParse(t *testing.T) {
	text := `
# comment lines and blanks are ignored

@defaultMessage Use a Locale aware variant
java.lang.String#toLowerCase()
java.lang.System#exit(int) @ terminates the JVM
java.lang.System#out
java.util.Arrays#fill(java.lang.Object[],java.lang.Object)
java.lang.Runtime#exec(**)
@ignoreUnresolvable
sun.misc.**
java.lang.Thread
@includeBundled jdk-system-out
`
	sigs, dirs, err := Parse(strings.NewReader(text), "inline")
	require.NoError(t, err)

	expected := []Signature{
		{Kind: MethodSignature, Class: "java/lang/String", Name: "toLowerCase", Params: strPtr("()"), Message: "Use a Locale aware variant", Line: 5},
		{Kind: MethodSignature, Class: "java/lang/System", Name: "exit", Params: strPtr("(I)"), Message: "terminates the JVM", Line: 6},
		{Kind: FieldSignature, Class: "java/lang/System", Name: "out", Message: "Use a Locale aware variant", Line: 7},
		{Kind: MethodSignature, Class: "java/util/Arrays", Name: "fill", Params: strPtr("([Ljava/lang/Object;Ljava/lang/Object;)"), Message: "Use a Locale aware variant", Line: 8},
		{Kind: MethodSignature, Class: "java/lang/Runtime", Name: "exec", Message: "Use a Locale aware variant", Line: 9},
		{Kind: ClassPattern, Class: "sun/misc/**", Message: "Use a Locale aware variant", IgnoreUnresolvable: true, Line: 11},
		{Kind: ClassSignature, Class: "java/lang/Thread", Message: "Use a Locale aware variant", IgnoreUnresolvable: true, Line: 12},
	}
	require.Len(t, sigs, len(expected))
	for i := range expected {
		expected[i].Source = "inline"
		assert.Equal(t, expected[i], sigs[i])
	}
	assert.Equal(t, []string{"jdk-system-out"}, dirs.IncludeBundled)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "unknown directive", text: "@frobnicate"},
		{name: "unterminated params", text: "java.lang.System#exit(int"},
		{name: "pattern with member", text: "java.lang.*#exit(int)"},
		{name: "void param", text: "java.lang.System#exit(void)"},
		{name: "missing member", text: "java.lang.System#"},
		{name: "include without name", text: "@includeBundled"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := Parse(strings.NewReader(test.text), "sigs.txt")
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "sigs.txt", pe.Source)
			assert.Equal(t, 1, pe.Line)
		})
	}
}

func TestSignatureString(t *testing.T) {
	sigs, _, err := Parse(strings.NewReader("java.util.Arrays#fill(java.lang.Object[],int)\njava.lang.System#out\nsun.misc.Unsafe"), "x")
	require.NoError(t, err)

	assert.Equal(t, "java.util.Arrays#fill(java.lang.Object[],int)", sigs[0].String())
	assert.Equal(t, "java.lang.System#out", sigs[1].String())
	assert.Equal(t, "sun.misc.Unsafe", sigs[2].String())
}

func TestMethodParams(t *testing.T) {
	assert.Equal(t, "(I)", MethodParams("(I)V"))
	assert.Equal(t, "([Ljava/lang/String;)", MethodParams("([Ljava/lang/String;)Ljava/lang/Object;"))
}
