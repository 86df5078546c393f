// Copyright © 2024 The ELPS authors

// Package diagnostic renders findings about Clojure sources as annotated
// source snippets for command line output.  It depends only on the form
// and token packages so that any command can use it.
package diagnostic

import (
	"errors"
	"fmt"

	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser/token"
)

// Severity indicates the severity level of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// Span identifies a region of source code to highlight in the diagnostic.
type Span struct {
	File   string // path for reading source; display name if unreadable
	Line   int    // 1-based line number
	Col    int    // 1-based start column
	EndCol int    // 1-based inclusive end column (0 = detect from source)
	Label  string // text shown under the underline
}

// Diagnostic is a single finding with optional source annotations and
// trailing notes.
type Diagnostic struct {
	Severity Severity
	// Code names the check that produced the finding, if any.
	Code    string
	Message string
	Spans   []Span
	Notes   []string
}

// SpanOf returns the span covering r in tree.  Ranges crossing a line end
// are cut at the end of their first line.
func SpanOf(tree *form.Tree, r form.Range, label string) Span {
	line, col := tree.Position(r.Start)
	endLine, endCol := tree.Position(r.End)
	end := endCol - 1
	if endLine != line || end < col {
		end = 0
	}
	return Span{File: tree.File, Line: line, Col: col, EndCol: end, Label: label}
}

// FromParseError converts a syntax error recorded in tree.Errors.
func FromParseError(tree *form.Tree, err error) Diagnostic {
	d := Diagnostic{Severity: SeverityError, Code: "syntax", Message: err.Error()}
	var locErr *token.LocationError
	if errors.As(err, &locErr) && locErr.Source != nil {
		if locErr.Err != nil {
			d.Message = locErr.Err.Error()
		}
		pos := locErr.Source.Pos
		d.Spans = []Span{SpanOf(tree, form.Range{Start: pos, End: min(pos+1, len(tree.Source))}, "")}
	}
	return d
}

// Unresolved reports a symbol occurrence that denotes nothing.
func Unresolved(tree *form.Tree, n *form.Node) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Code:     "unresolved-symbol",
		Message:  fmt.Sprintf("unresolved symbol `%s`", n.Text),
		Spans:    []Span{SpanOf(tree, n.Range, "not declared in scope")},
	}
}
