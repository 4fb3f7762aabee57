/*
Package signatures parses forbidden API signature text:

	@defaultMessage Use the Locale aware variant
	java.lang.String#toLowerCase()
	java.lang.System#exit(int) @ terminates the JVM
	java.lang.System#out
	java.lang.Runtime#exec(**)
	sun.misc.**
	@includeBundled jdk-system-out
	@ignoreUnresolvable
*/
package signatures

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type Kind int

const (
	ClassSignature Kind = iota
	ClassPattern
	MethodSignature
	FieldSignature
)

// Signature is a single forbidden class, class pattern, method or field.
type Signature struct {
	Kind Kind
	// Class is the internal name (or doublestar pattern for ClassPattern).
	Class string
	Name  string
	// Params is the parameter part of the method descriptor including parentheses, e.g. "(I)". Nil for "(**)",
	// which matches every overload.
	Params             *string
	Message            string
	IgnoreUnresolvable bool
	// Source names the origin of the line for diagnostics.
	Source string
	Line   int
}

func (s Signature) String() string {
	cls := strings.ReplaceAll(s.Class, "/", ".")
	switch s.Kind {
	case MethodSignature:
		if s.Params == nil {
			return cls + "#" + s.Name
		}
		return cls + "#" + s.Name + ParamsToJava(*s.Params)
	case FieldSignature:
		return cls + "#" + s.Name
	}
	return cls
}

// Directives collects the non-signature lines of a file.
type Directives struct {
	IncludeBundled []string
}

type ParseError struct {
	Source string
	Line   int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Msg)
}

// Parse reads all signatures from the given text. Defaults set with @defaultMessage and @ignoreUnresolvable apply
// to the lines that follow them within the same source.
func Parse(r io.Reader, source string) ([]Signature, Directives, error) {
	var (
		sigs               []Signature
		dirs               Directives
		defaultMessage     string
		ignoreUnresolvable bool
		lineNo             int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "@") {
			directive, arg, _ := strings.Cut(line, " ")
			arg = strings.TrimSpace(arg)
			switch directive {
			case "@defaultMessage":
				defaultMessage = arg
			case "@ignoreUnresolvable", "@ignoreMissingClasses":
				ignoreUnresolvable = true
			case "@includeBundled", "@includeBundledSignatures":
				if arg == "" {
					return nil, dirs, &ParseError{Source: source, Line: lineNo, Msg: "@includeBundled requires a bundled signatures name"}
				}
				dirs.IncludeBundled = append(dirs.IncludeBundled, arg)
			default:
				return nil, dirs, &ParseError{Source: source, Line: lineNo, Msg: fmt.Sprintf("invalid directive %q", directive)}
			}
			continue
		}

		sig, err := parseLine(line)
		if err != nil {
			return nil, dirs, &ParseError{Source: source, Line: lineNo, Msg: err.Error()}
		}
		if sig.Message == "" {
			sig.Message = defaultMessage
		}
		sig.IgnoreUnresolvable = ignoreUnresolvable
		sig.Source = source
		sig.Line = lineNo
		sigs = append(sigs, sig)
	}
	if err := scanner.Err(); err != nil {
		return nil, dirs, err
	}
	return sigs, dirs, nil
}

func parseLine(line string) (Signature, error) {
	var sig Signature
	if idx := strings.Index(line, "@"); idx >= 0 {
		sig.Message = strings.TrimSpace(line[idx+1:])
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" {
		return sig, fmt.Errorf("empty signature")
	}

	cls, member, hasMember := strings.Cut(line, "#")
	if cls == "" {
		return sig, fmt.Errorf("missing class name in %q", line)
	}
	sig.Class = strings.ReplaceAll(cls, ".", "/")

	if !hasMember {
		if strings.ContainsAny(cls, "*?") {
			sig.Kind = ClassPattern
		} else {
			sig.Kind = ClassSignature
		}
		return sig, nil
	}
	if strings.ContainsAny(cls, "*?") {
		return sig, fmt.Errorf("class patterns are not allowed in member signatures: %q", line)
	}

	open := strings.IndexByte(member, '(')
	if open < 0 {
		if member == "" {
			return sig, fmt.Errorf("missing member name in %q", line)
		}
		sig.Kind = FieldSignature
		sig.Name = member
		return sig, nil
	}
	if !strings.HasSuffix(member, ")") {
		return sig, fmt.Errorf("unterminated parameter list in %q", line)
	}
	sig.Kind = MethodSignature
	sig.Name = member[:open]
	if sig.Name == "" {
		return sig, fmt.Errorf("missing method name in %q", line)
	}
	inner := strings.TrimSpace(member[open+1 : len(member)-1])
	if inner == "**" {
		return sig, nil
	}
	params, err := javaParamsToDescriptor(inner)
	if err != nil {
		return sig, fmt.Errorf("%v in %q", err, line)
	}
	sig.Params = &params
	return sig, nil
}

var primitives = map[string]string{
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
	"void":    "V",
}

func javaParamsToDescriptor(list string) (string, error) {
	var sb strings.Builder
	sb.WriteByte('(')
	list = strings.TrimSpace(list)
	if list != "" {
		for _, p := range strings.Split(list, ",") {
			d, err := typeDescriptor(strings.TrimSpace(p))
			if err != nil {
				return "", err
			}
			sb.WriteString(d)
		}
	}
	sb.WriteByte(')')
	return sb.String(), nil
}

func typeDescriptor(t string) (string, error) {
	dims := 0
	for strings.HasSuffix(t, "[]") {
		dims++
		t = strings.TrimSpace(strings.TrimSuffix(t, "[]"))
	}
	if strings.HasSuffix(t, "...") {
		dims++
		t = strings.TrimSuffix(t, "...")
	}
	if t == "" {
		return "", fmt.Errorf("empty parameter type")
	}
	prefix := strings.Repeat("[", dims)
	if p, ok := primitives[t]; ok {
		if p == "V" {
			return "", fmt.Errorf("void is not a parameter type")
		}
		return prefix + p, nil
	}
	if strings.ContainsAny(t, " ()#") {
		return "", fmt.Errorf("invalid parameter type %q", t)
	}
	return prefix + "L" + strings.ReplaceAll(t, ".", "/") + ";", nil
}

// ParamsToJava renders a descriptor parameter list back to source notation, "(I[Ljava/lang/String;)" becoming
// "(int,java.lang.String[])".
func ParamsToJava(params string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(params, "("), ")")
	var out []string
	for i := 0; i < len(inner); {
		dims := 0
		for i < len(inner) && inner[i] == '[' {
			dims++
			i++
		}
		if i >= len(inner) {
			break
		}
		var name string
		if inner[i] == 'L' {
			end := strings.IndexByte(inner[i:], ';')
			if end < 0 {
				break
			}
			name = strings.ReplaceAll(inner[i+1:i+end], "/", ".")
			i += end + 1
		} else {
			for k, v := range primitives {
				if v[0] == inner[i] {
					name = k
					break
				}
			}
			i++
		}
		out = append(out, name+strings.Repeat("[]", dims))
	}
	return "(" + strings.Join(out, ",") + ")"
}

// MethodParams returns the parameter part of a method descriptor, "(I)V" becoming "(I)".
func MethodParams(descriptor string) string {
	if idx := strings.IndexByte(descriptor, ')'); idx >= 0 {
		return descriptor[:idx+1]
	}
	return descriptor
}
