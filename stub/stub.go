// Copyright © 2024 The ELPS authors

// Package stub implements the persisted, parse-free summary of a source
// file: its namespace and the definitions it declares.
//
// The binary layout (version 1) is
//
//	uvarint version
//	string  namespace
//	uvarint definition count
//	per definition:
//	  string name, string namespace, string type
//	  byte   flags (1 private, 2 synthetic, 4 dynamic)
//	  string parent type
//	  string type hint
//	  uvarint offset, uvarint name start, uvarint name end
//	  uvarint prototype count
//	  per prototype: string type hint, uvarint arg count, string args...
//
// where each string is a uvarint byte length followed by the bytes.
package stub

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
)

// Version is the schema version written by Encode.
const Version = 1

var (
	// ErrVersion is returned when decoding a stub of another version.
	ErrVersion = errors.New("unsupported stub version")
	// ErrCorrupt is returned for truncated or malformed stubs.
	ErrCorrupt = errors.New("corrupt stub")
)

// limit guards allocations driven by decoded counts and lengths.
const limit = 1 << 24

const (
	flagPrivate byte = 1 << iota
	flagSynthetic
	flagDynamic
)

// Stub summarizes one file.
type Stub struct {
	Path        string
	Namespace   string
	Definitions []*analysis.Definition
}

// FromState summarizes an analyzed file.
func FromState(st *analysis.State) *Stub {
	return &Stub{
		Path:        st.File,
		Namespace:   st.Namespace,
		Definitions: st.Definitions,
	}
}

// Marshal encodes s.
func (s *Stub) Marshal() []byte {
	var buf bytes.Buffer
	_ = Encode(&buf, s)
	return buf.Bytes()
}

// Unmarshal decodes a stub for the file at path.
func Unmarshal(path string, b []byte) (*Stub, error) {
	s, err := Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	s.Path = path
	for _, d := range s.Definitions {
		d.File = path
	}
	return s, nil
}

type encoder struct {
	w   *bufio.Writer
	tmp [binary.MaxVarintLen64]byte
	err error
}

func (e *encoder) uvarint(x uint64) {
	if e.err != nil {
		return
	}
	n := binary.PutUvarint(e.tmp[:], x)
	_, e.err = e.w.Write(e.tmp[:n])
}

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	if e.err == nil {
		_, e.err = e.w.WriteString(s)
	}
}

func (e *encoder) byte(b byte) {
	if e.err == nil {
		e.err = e.w.WriteByte(b)
	}
}

// Encode writes s to w.
func Encode(w io.Writer, s *Stub) error {
	e := &encoder{w: bufio.NewWriter(w)}
	e.uvarint(Version)
	e.str(s.Namespace)
	e.uvarint(uint64(len(s.Definitions)))
	for _, d := range s.Definitions {
		e.str(d.Key.Name)
		e.str(d.Key.Namespace)
		e.str(d.Key.Type)
		var flags byte
		if d.Meta[analysis.MetaPrivate] == "true" {
			flags |= flagPrivate
		}
		if d.Meta[analysis.MetaSynthetic] == "true" {
			flags |= flagSynthetic
		}
		if d.IsDynamic() {
			flags |= flagDynamic
		}
		e.byte(flags)
		e.str(d.ParentType)
		e.str(d.TypeHint())
		e.uvarint(uint64(d.Offset))
		e.uvarint(uint64(d.NameRange.Start))
		e.uvarint(uint64(d.NameRange.End))
		e.uvarint(uint64(len(d.Prototypes)))
		for _, p := range d.Prototypes {
			e.str(p.TypeHint)
			e.uvarint(uint64(len(p.Args)))
			for _, a := range p.Args {
				e.str(a)
			}
		}
	}
	if e.err != nil {
		return fmt.Errorf("encoding stub: %w", e.err)
	}
	return e.w.Flush()
}

type decoder struct {
	r   *bufio.Reader
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	x, err := binary.ReadUvarint(d.r)
	if err != nil {
		d.err = err
	}
	return x
}

func (d *decoder) count() int {
	n := d.uvarint()
	if n > limit && d.err == nil {
		d.err = fmt.Errorf("length %d out of range", n)
	}
	return int(n)
}

func (d *decoder) str() string {
	n := d.count()
	if d.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = err
		return ""
	}
	return string(b)
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	b, err := d.r.ReadByte()
	if err != nil {
		d.err = err
	}
	return b
}

// Decode reads a stub from r.  The returned definitions have no File set.
func Decode(r io.Reader) (*Stub, error) {
	d := &decoder{r: bufio.NewReader(r)}
	v := d.uvarint()
	if d.err != nil {
		return nil, fmt.Errorf("%w: reading version: %w", ErrCorrupt, d.err)
	}
	if v != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	s := &Stub{Namespace: d.str()}
	n := d.count()
	for i := 0; i < n && d.err == nil; i++ {
		s.Definitions = append(s.Definitions, d.definition())
	}
	if d.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, d.err)
	}
	return s, nil
}

func (d *decoder) definition() *analysis.Definition {
	def := &analysis.Definition{
		Key: analysis.SymbolKey{
			Name:      d.str(),
			Namespace: d.str(),
			Type:      d.str(),
		},
		Meta: make(map[string]string),
	}
	flags := d.byte()
	if flags&flagPrivate != 0 {
		def.Meta[analysis.MetaPrivate] = "true"
	}
	if flags&flagSynthetic != 0 {
		def.Meta[analysis.MetaSynthetic] = "true"
	}
	if flags&flagDynamic != 0 {
		def.Meta[analysis.MetaDynamic] = "true"
	}
	def.ParentType = d.str()
	if hint := d.str(); hint != "" {
		def.Meta[analysis.MetaTypeHint] = hint
	}
	def.Offset = int(d.uvarint())
	def.NameRange = form.Range{Start: int(d.uvarint()), End: int(d.uvarint())}
	n := d.count()
	for i := 0; i < n && d.err == nil; i++ {
		p := analysis.Prototype{TypeHint: d.str()}
		argc := d.count()
		for j := 0; j < argc && d.err == nil; j++ {
			p.Args = append(p.Args, d.str())
		}
		def.Prototypes = append(def.Prototypes, p)
	}
	if def.IsMethod() {
		if i := strings.LastIndexByte(def.Key.Namespace, '/'); i > 0 {
			def.Parent = analysis.SymbolKey{
				Name:      def.Key.Namespace[i+1:],
				Namespace: def.Key.Namespace[:i],
				Type:      def.ParentType,
			}
		}
	}
	return def
}
