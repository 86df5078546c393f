// Copyright © 2024 The ELPS authors

package token

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scanner facilitates construction of tokens from source text held in memory.
// Offsets reported by the scanner are byte offsets into the text.
type Scanner struct {
	file string
	path string
	src  string

	start     int // start of the current token
	startLine int
	startCol  int

	next int  // offset of the rune following c
	c    rune // the last scanned rune
	line int  // line of the rune at next
	col  int  // column of the rune at next
}

// NewScanner initializes and returns a new Scanner over src.
func NewScanner(file string, src string) *Scanner {
	return &Scanner{
		file:      file,
		src:       src,
		line:      1,
		col:       1,
		startLine: 1,
		startCol:  1,
	}
}

// SetPath associates a physical location (e.g. filesystem path) with s to aid
// in debugging projects which scan many ungrouped files.
func (s *Scanner) SetPath(path string) {
	s.path = path
}

// EmitToken returns a token containing the text scanned since the last call to
// either EmitToken or Ignore.
func (s *Scanner) EmitToken(typ Type) *Token {
	tok := &Token{
		Type:   typ,
		Text:   s.Text(),
		Source: s.LocStart(),
	}
	s.Ignore()
	return tok
}

// Ignore causes the scanner to skip all text scanned since the last call to
// either EmitToken or Ignore.
func (s *Scanner) Ignore() {
	s.start = s.next
	s.startLine = s.line
	s.startCol = s.col
}

// Text returns a string containing text scanned since the last call to either
// EmitToken or Ignore.
func (s *Scanner) Text() string {
	return s.src[s.start:s.next]
}

// Rune returns the current unicode rune that is being scanned.  The rune
// returned by Rune is the last rune in a token returned by EmitToken.
func (s *Scanner) Rune() rune {
	return s.c
}

// Peek returns the next rune to be scanned, if there are any.  If an invalid
// utf-8 sequence or EOF prevents futher runes from being scanned Peek returns
// a false second value.
func (s *Scanner) Peek() (rune, bool) {
	if s.next >= len(s.src) {
		return 0, false
	}
	c, n := utf8.DecodeRuneInString(s.src[s.next:])
	if c == utf8.RuneError && n == 1 {
		return utf8.RuneError, false
	}
	return c, true
}

// PeekN returns the rune n positions past the next rune, or 0.
func (s *Scanner) PeekN(n int) rune {
	off := s.next
	for ; off < len(s.src); n-- {
		c, w := utf8.DecodeRuneInString(s.src[off:])
		if n == 0 {
			return c
		}
		off += w
	}
	return 0
}

// ScanRune attempts to scan a utf-8 rune from the input for inclusion in the
// current token.
func (s *Scanner) ScanRune() error {
	if s.next >= len(s.src) {
		return io.EOF
	}
	c, n := utf8.DecodeRuneInString(s.src[s.next:])
	if c == utf8.RuneError && n == 1 {
		return fmt.Errorf("invalid utf-8 sequence in source text starting with byte %q", s.src[s.next])
	}
	s.c = c
	s.next += n
	if c == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return nil
}

// EOF returns true when all input has been scanned.
func (s *Scanner) EOF() bool {
	return s.next >= len(s.src)
}

func (s *Scanner) Accept(fn func(rune) bool) bool {
	peek, ok := s.Peek()
	if !ok {
		return false
	}
	if fn(peek) {
		return s.ScanRune() == nil
	}
	return false
}

func (s *Scanner) AcceptRune(c rune) bool {
	return s.Accept(func(r rune) bool { return r == c })
}

func (s *Scanner) AcceptSpace() bool {
	return s.Accept(isSpace)
}

func (s *Scanner) AcceptAny(charset string) bool {
	return s.Accept(func(r rune) bool { return strings.ContainsRune(charset, r) })
}

func (s *Scanner) AcceptSeq(fn func(rune) bool) int {
	var n int
	for s.Accept(fn) {
		n++
	}
	return n
}

func (s *Scanner) AcceptSeqSpace() int {
	return s.AcceptSeq(isSpace)
}

func (s *Scanner) AcceptString(literal string) (int, bool) {
	var n int
	for _, c := range literal {
		if !s.AcceptRune(c) {
			return n, false
		}
		n++
	}
	return n, true
}

// LocStart returns a Location referencing the beginning of the current token.
func (s *Scanner) LocStart() *Location {
	return &Location{
		File: s.file,
		Path: s.path,
		Pos:  s.start,
		Line: s.startLine,
		Col:  s.startCol,
	}
}

// Loc returns a Location referencing the current scanner position.
func (s *Scanner) Loc() *Location {
	return &Location{
		File: s.file,
		Path: s.path,
		Pos:  s.next,
		Line: s.line,
		Col:  s.col,
	}
}

// Commas are whitespace in Clojure.
func isSpace(c rune) bool {
	return c == ',' || unicode.IsSpace(c)
}
