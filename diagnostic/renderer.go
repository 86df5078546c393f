// Copyright © 2024 The ELPS authors

package diagnostic

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/muesli/reflow/ansi"

	"github.com/luthersystems/cljsym/form"
)

// Renderer formats diagnostics as annotated source snippets:
//
//	warning[unresolved-symbol]: unresolved symbol `g`
//	  --> src/app/core.clj:2:2
//	   |
//	 2 |  (g 1)
//	   |   ^ not declared in scope
//	   |
type Renderer struct {
	// Color controls ANSI color output. Default is ColorAuto.
	Color ColorMode

	// SourceReader reads source file contents. If nil, os.ReadFile is used.
	SourceReader func(string) ([]byte, error)
}

// TreeSource returns a SourceReader serving the sources of trees and
// reading any other file from disk.
func TreeSource(trees ...*form.Tree) func(string) ([]byte, error) {
	srcs := make(map[string]string, len(trees))
	for _, t := range trees {
		srcs[t.File] = t.Source
	}
	return func(name string) ([]byte, error) {
		if src, ok := srcs[name]; ok {
			return []byte(src), nil
		}
		return os.ReadFile(name) //nolint:gosec // source files named by the caller
	}
}

// Render writes a single diagnostic to w.
func (r *Renderer) Render(w io.Writer, d Diagnostic) error {
	return r.render(w, []Diagnostic{d})
}

// RenderAll writes all diagnostics to w separated by blank lines.  Each
// source file is read at most once.
func (r *Renderer) RenderAll(w io.Writer, diags []Diagnostic) error {
	return r.render(w, diags)
}

func (r *Renderer) render(w io.Writer, diags []Diagnostic) error {
	p := choosePalette(r.Color, fileFromWriter(w))
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}
	src := newSourceCache(r.SourceReader)
	for i, d := range diags {
		if i > 0 {
			ew.print("\n")
		}
		writeHeader(ew, d, p)
		for _, span := range d.Spans {
			writeSpan(ew, src, span, p)
		}
		for _, note := range d.Notes {
			ew.printf("   %s=%s note: %s\n", p.boldCyan, p.reset, note)
		}
	}
	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

// errWriter wraps a writer and captures the first error, short-circuiting
// subsequent writes. This avoids checking every fmt.Fprintf return value.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, a...)
}

func (ew *errWriter) print(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

// writeHeader writes "error: message" or "warning[code]: message".
func writeHeader(ew *errWriter, d Diagnostic, p palette) {
	var sevColor string
	switch d.Severity {
	case SeverityError:
		sevColor = p.boldRed
	case SeverityWarning:
		sevColor = p.yellow
	case SeverityNote:
		sevColor = p.boldCyan
	}
	label := d.Severity.String()
	if d.Code != "" {
		label += "[" + d.Code + "]"
	}
	ew.printf("%s%s%s%s: %s%s%s\n", sevColor, p.bold, label, p.reset, p.bold, d.Message, p.reset)
}

func writeSpan(ew *errWriter, src *sourceCache, span Span, p palette) {
	ew.printf("  %s-->%s %s\n", p.boldBlue, p.reset, span.location())

	source, ok := src.line(span.File, span.Line)
	if !ok {
		ew.printf("   %s|%s\n", p.boldBlue, p.reset)
		return
	}

	num := strconv.Itoa(span.Line)
	gutter := strings.Repeat(" ", len(num))
	ew.printf(" %s%s |%s\n", p.boldBlue, gutter, p.reset)
	ew.printf(" %s%s |%s  %s\n", p.boldBlue, num, p.reset, expandTabs(source))

	col := max(span.Col, 1)
	end := span.EndCol
	if end <= 0 {
		end = tokenEnd(source, col)
	}
	end = max(end, col)
	var indent int
	if col-1 <= len(source) {
		indent = displayWidth(source[:col-1])
	}
	ew.printf(" %s%s |%s  %s%s%s%s", p.boldBlue, gutter, p.reset,
		strings.Repeat(" ", indent), p.boldRed, strings.Repeat("^", end-col+1), p.reset)
	if span.Label != "" {
		ew.printf(" %s%s%s", p.boldRed, span.Label, p.reset)
	}
	ew.print("\n")
	ew.printf(" %s%s |%s\n", p.boldBlue, gutter, p.reset)
}

// location renders file:line:col, omitting the unknown parts.
func (s Span) location() string {
	switch {
	case s.Line <= 0:
		return s.File
	case s.Col <= 0:
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}

// sourceCache holds the lines of the files read during one render.
type sourceCache struct {
	read  func(string) ([]byte, error)
	files map[string][]string
}

func newSourceCache(read func(string) ([]byte, error)) *sourceCache {
	if read == nil {
		read = func(name string) ([]byte, error) {
			return os.ReadFile(name) //nolint:gosec // source files named by the caller
		}
	}
	return &sourceCache{read: read, files: make(map[string][]string)}
}

// line returns the 1-based line n of file.  It reports false when the file
// cannot be read or has no such line.
func (c *sourceCache) line(file string, n int) (string, bool) {
	if n <= 0 || file == "" {
		return "", false
	}
	lines, ok := c.files[file]
	if !ok {
		if data, err := c.read(file); err == nil {
			lines = strings.Split(string(data), "\n")
		}
		c.files[file] = lines
	}
	if n > len(lines) {
		return "", false
	}
	return strings.TrimSuffix(lines[n-1], "\r"), true
}

// delimiters end a token.
const delimiters = "()[]{}\";@^`~"

// tokenEnd returns the 1-based column of the last character of the token
// starting at col.
func tokenEnd(source string, col int) int {
	if col <= 0 || col > len(source) {
		return col
	}
	end := col - 1
	for end < len(source) {
		ch, size := utf8.DecodeRuneInString(source[end:])
		if unicode.IsSpace(ch) || ch == ',' || strings.ContainsRune(delimiters, ch) {
			break
		}
		end += size
	}
	return max(end, col)
}

const tabWidth = 4

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

// displayWidth returns the number of terminal cells s occupies once tabs
// are expanded.  Wide runes occupy two cells.
func displayWidth(s string) int {
	w := 0
	for i, part := range strings.Split(s, "\t") {
		if i > 0 {
			w += tabWidth
		}
		w += ansi.PrintableRuneWidth(part)
	}
	return w
}

// fileFromWriter attempts to extract an *os.File from a writer for terminal
// detection. Returns nil if the writer is not backed by a file.
func fileFromWriter(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}
