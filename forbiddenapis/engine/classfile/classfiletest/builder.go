/*
Package classfiletest assembles minimal but well-formed class files for tests.
*/
package classfiletest

import (
	"bytes"
	"encoding/binary"
)

type ref struct {
	tag        uint8
	owner      string
	name       string
	descriptor string
}

// Builder describes one class. Zero values produce a public class extending java.lang.Object.
type Builder struct {
	Name        string
	SuperName   string
	Major       uint16
	Annotations []string
	Fields      [][2]string
	Methods     [][2]string
	refs        []ref
	classes     []string
}

func New(name string) *Builder {
	return &Builder{Name: name, SuperName: "java/lang/Object", Major: 52}
}

// CallsMethod adds a Methodref, e.g. CallsMethod("java/lang/System", "exit", "(I)V").
func (b *Builder) CallsMethod(owner, name, descriptor string) *Builder {
	b.refs = append(b.refs, ref{tag: 10, owner: owner, name: name, descriptor: descriptor})
	return b
}

func (b *Builder) ReadsField(owner, name, descriptor string) *Builder {
	b.refs = append(b.refs, ref{tag: 9, owner: owner, name: name, descriptor: descriptor})
	return b
}

func (b *Builder) UsesClass(name string) *Builder {
	b.classes = append(b.classes, name)
	return b
}

func (b *Builder) Annotated(annotationInternalName string) *Builder {
	b.Annotations = append(b.Annotations, annotationInternalName)
	return b
}

func (b *Builder) Declares(method, descriptor string) *Builder {
	b.Methods = append(b.Methods, [2]string{method, descriptor})
	return b
}

func (b *Builder) DeclaresField(field, descriptor string) *Builder {
	b.Fields = append(b.Fields, [2]string{field, descriptor})
	return b
}

type pool struct {
	buf   bytes.Buffer
	count uint16
	utf8  map[string]uint16
	class map[string]uint16
}

func (p *pool) u2(v uint16) {
	_ = binary.Write(&p.buf, binary.BigEndian, v)
}

func (p *pool) addUtf8(s string) uint16 {
	if idx, ok := p.utf8[s]; ok {
		return idx
	}
	p.count++
	p.buf.WriteByte(1)
	p.u2(uint16(len(s)))
	p.buf.WriteString(s)
	p.utf8[s] = p.count
	return p.count
}

func (p *pool) addClass(name string) uint16 {
	if idx, ok := p.class[name]; ok {
		return idx
	}
	n := p.addUtf8(name)
	p.count++
	p.buf.WriteByte(7)
	p.u2(n)
	p.class[name] = p.count
	return p.count
}

func (p *pool) addRef(r ref) {
	owner := p.addClass(r.owner)
	name := p.addUtf8(r.name)
	desc := p.addUtf8(r.descriptor)
	p.count++
	p.buf.WriteByte(12)
	p.u2(name)
	p.u2(desc)
	nat := p.count
	p.count++
	p.buf.WriteByte(r.tag)
	p.u2(owner)
	p.u2(nat)
}

// Bytes renders the class file.
func (b *Builder) Bytes() []byte {
	p := &pool{utf8: map[string]uint16{}, class: map[string]uint16{}}
	this := p.addClass(b.Name)
	var super uint16
	if b.SuperName != "" {
		super = p.addClass(b.SuperName)
	}
	for _, c := range b.classes {
		p.addClass(c)
	}
	for _, r := range b.refs {
		p.addRef(r)
	}
	type member struct{ name, desc uint16 }
	fields := make([]member, 0, len(b.Fields))
	for _, f := range b.Fields {
		fields = append(fields, member{p.addUtf8(f[0]), p.addUtf8(f[1])})
	}
	methods := make([]member, 0, len(b.Methods))
	for _, m := range b.Methods {
		methods = append(methods, member{p.addUtf8(m[0]), p.addUtf8(m[1])})
	}
	var annotationsAttr, sourceAttr uint16
	annotationTypes := make([]uint16, 0, len(b.Annotations))
	if len(b.Annotations) > 0 {
		annotationsAttr = p.addUtf8("RuntimeVisibleAnnotations")
		for _, a := range b.Annotations {
			annotationTypes = append(annotationTypes, p.addUtf8("L"+a+";"))
		}
	}
	sourceAttr = p.addUtf8("SourceFile")
	sourceName := p.addUtf8(simpleName(b.Name) + ".java")

	out := &bytes.Buffer{}
	w := func(v interface{}) { _ = binary.Write(out, binary.BigEndian, v) }
	w(uint32(0xCAFEBABE))
	w(uint16(0))
	w(b.Major)
	w(p.count + 1)
	out.Write(p.buf.Bytes())
	w(uint16(0x0021))
	w(this)
	w(super)
	w(uint16(0)) // interfaces
	for _, list := range [][]member{fields, methods} {
		w(uint16(len(list)))
		for _, m := range list {
			w(uint16(0x0001))
			w(m.name)
			w(m.desc)
			w(uint16(0))
		}
	}

	attrs := uint16(1)
	if len(annotationTypes) > 0 {
		attrs++
	}
	w(attrs)
	w(sourceAttr)
	w(uint32(2))
	w(sourceName)
	if len(annotationTypes) > 0 {
		w(annotationsAttr)
		w(uint32(2 + 4*len(annotationTypes)))
		w(uint16(len(annotationTypes)))
		for _, t := range annotationTypes {
			w(t)
			w(uint16(0))
		}
	}
	return out.Bytes()
}

func simpleName(internalName string) string {
	for i := len(internalName) - 1; i >= 0; i-- {
		if internalName[i] == '/' {
			return internalName[i+1:]
		}
	}
	return internalName
}
