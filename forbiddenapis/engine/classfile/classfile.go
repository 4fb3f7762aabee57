/*
Package classfile reads the parts of a JVM class file needed to check references: the constant pool, the declared
members and the class level annotations.
*/
package classfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	magic = 0xCAFEBABE

	// MaxSupportedMajorVersion is the newest class file format understood by this reader (Java 21).
	MaxSupportedMajorVersion = 65
)

const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

var ErrNotAClassFile = errors.New("not a class file")

type RefKind int

const (
	FieldRef RefKind = iota
	MethodRef
	InterfaceMethodRef
)

// MemberRef is a field or method referenced from the constant pool.
type MemberRef struct {
	Kind       RefKind
	Owner      string
	Name       string
	Descriptor string
}

// Member is a field or method declared by the class.
type Member struct {
	Name       string
	Descriptor string
}

type Class struct {
	MajorVersion uint16
	MinorVersion uint16
	Name         string
	SuperName    string
	Interfaces   []string
	// ClassRefs holds every class referenced by the constant pool, array types reduced to their element class.
	ClassRefs   []string
	MemberRefs  []MemberRef
	Fields      []Member
	Methods     []Member
	Annotations []string
	SourceFile  string
}

type cpEntry struct {
	tag   uint8
	utf8  string
	index uint16
	other uint16
}

type reader struct {
	r    *bufio.Reader
	pool []cpEntry
	err  error
}

func (r *reader) u1() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	r.err = err
	return b
}

func (r *reader) u2() uint16 {
	var b [2]byte
	r.read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

func (r *reader) u4() uint32 {
	var b [4]byte
	r.read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func (r *reader) read(b []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.r, b)
}

func (r *reader) skip(n int) {
	if r.err != nil {
		return
	}
	_, r.err = r.r.Discard(n)
}

func (r *reader) utf8(idx uint16) string {
	if int(idx) >= len(r.pool) || r.pool[idx].tag != tagUtf8 {
		if r.err == nil {
			r.err = fmt.Errorf("constant pool index %d is not a utf8 entry", idx)
		}
		return ""
	}
	return r.pool[idx].utf8
}

func (r *reader) className(idx uint16) string {
	if idx == 0 {
		return ""
	}
	if int(idx) >= len(r.pool) || r.pool[idx].tag != tagClass {
		if r.err == nil {
			r.err = fmt.Errorf("constant pool index %d is not a class entry", idx)
		}
		return ""
	}
	return r.utf8(r.pool[idx].index)
}

// Parse reads a class file. Only the major version is checked against MaxSupportedMajorVersion by callers; the
// reader itself accepts any version whose constant pool layout it understands.
func Parse(in io.Reader) (*Class, error) {
	r := &reader{r: bufio.NewReader(in)}
	if r.u4() != magic {
		if r.err != nil {
			return nil, r.err
		}
		return nil, ErrNotAClassFile
	}
	c := &Class{}
	c.MinorVersion = r.u2()
	c.MajorVersion = r.u2()

	r.readConstantPool()
	if r.err != nil {
		return nil, fmt.Errorf("unable to read constant pool: %w", r.err)
	}

	r.skip(2) // access flags
	c.Name = r.className(r.u2())
	c.SuperName = r.className(r.u2())
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		c.Interfaces = append(c.Interfaces, r.className(r.u2()))
	}
	c.Fields = r.readMembers()
	c.Methods = r.readMembers()
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		name := r.utf8(r.u2())
		length := int(r.u4())
		switch name {
		case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
			c.Annotations = append(c.Annotations, r.readAnnotations()...)
		case "SourceFile":
			c.SourceFile = r.utf8(r.u2())
		default:
			r.skip(length)
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("unable to read class %q: %w", c.Name, r.err)
	}

	r.collectRefs(c)
	return c, nil
}

func (r *reader) readConstantPool() {
	count := int(r.u2())
	r.pool = make([]cpEntry, count)
	for i := 1; i < count && r.err == nil; i++ {
		tag := r.u1()
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			b := make([]byte, r.u2())
			r.read(b)
			e.utf8 = decodeModifiedUTF8(b)
		case tagInteger, tagFloat:
			r.skip(4)
		case tagLong, tagDouble:
			r.skip(8)
			r.pool[i] = e
			i++
			continue
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.index = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			e.index = r.u2()
			e.other = r.u2()
		case tagMethodHandle:
			r.skip(1)
			e.index = r.u2()
		default:
			if r.err == nil {
				r.err = fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
			}
		}
		r.pool[i] = e
	}
}

func (r *reader) readMembers() []Member {
	var members []Member
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		r.skip(2) // access flags
		m := Member{Name: r.utf8(r.u2()), Descriptor: r.utf8(r.u2())}
		for a := r.u2(); a > 0 && r.err == nil; a-- {
			r.skip(2)
			r.skip(int(r.u4()))
		}
		members = append(members, m)
	}
	return members
}

func (r *reader) readAnnotations() []string {
	var names []string
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		names = append(names, r.readAnnotation())
	}
	return names
}

func (r *reader) readAnnotation() string {
	desc := r.utf8(r.u2())
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		r.skip(2) // element name
		r.skipElementValue()
	}
	return strings.TrimSuffix(strings.TrimPrefix(desc, "L"), ";")
}

func (r *reader) skipElementValue() {
	switch tag := r.u1(); tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		r.skip(2)
	case 'e':
		r.skip(4)
	case '@':
		r.readAnnotation()
	case '[':
		for n := r.u2(); n > 0 && r.err == nil; n-- {
			r.skipElementValue()
		}
	default:
		if r.err == nil {
			r.err = fmt.Errorf("unknown annotation element tag %q", tag)
		}
	}
}

func (r *reader) collectRefs(c *Class) {
	seen := make(map[string]struct{})
	addClass := func(name string) {
		name = ElementClass(name)
		if name == "" || name == c.Name {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		c.ClassRefs = append(c.ClassRefs, name)
	}

	for _, e := range r.pool {
		switch e.tag {
		case tagClass:
			addClass(r.utf8(e.index))
		case tagFieldref, tagMethodref, tagInterfaceMethodref:
			if int(e.other) >= len(r.pool) {
				continue
			}
			owner := r.className(e.index)
			nat := r.pool[e.other]
			if strings.HasPrefix(owner, "[") {
				// members of array types (clone, length) only count as a use of the element class
				addClass(owner)
				for _, t := range DescriptorTypes(r.utf8(nat.other)) {
					addClass(t)
				}
				continue
			}
			ref := MemberRef{
				Owner:      owner,
				Name:       r.utf8(nat.index),
				Descriptor: r.utf8(nat.other),
			}
			switch e.tag {
			case tagFieldref:
				ref.Kind = FieldRef
			case tagMethodref:
				ref.Kind = MethodRef
			default:
				ref.Kind = InterfaceMethodRef
			}
			c.MemberRefs = append(c.MemberRefs, ref)
			for _, t := range DescriptorTypes(ref.Descriptor) {
				addClass(t)
			}
		}
	}
}

// ElementClass strips array dimensions from a class constant ("[Ljava/lang/String;" -> "java/lang/String"). Arrays
// of primitives yield an empty string.
func ElementClass(name string) string {
	if !strings.HasPrefix(name, "[") {
		return name
	}
	name = strings.TrimLeft(name, "[")
	if strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";") {
		return name[1 : len(name)-1]
	}
	return ""
}

// DescriptorTypes lists the object types mentioned by a field or method descriptor.
func DescriptorTypes(desc string) []string {
	var types []string
	for i := 0; i < len(desc); i++ {
		if desc[i] != 'L' {
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			break
		}
		types = append(types, desc[i+1:i+end])
		i += end
	}
	return types
}

// decodeModifiedUTF8 handles the JVM's encoding of NUL and supplementary characters well enough for names.
func decodeModifiedUTF8(b []byte) string {
	var sb strings.Builder
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			sb.WriteByte(c)
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			sb.WriteRune(rune(c&0x1F)<<6 | rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			sb.WriteRune(rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F))
			i += 3
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}
