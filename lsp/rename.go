// Copyright © 2024 The ELPS authors

package lsp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser"
	"github.com/luthersystems/cljsym/resolve"
)

var (
	// ErrNotRenameable is returned when the symbol under the cursor does
	// not denote a local or a workspace definition.
	ErrNotRenameable = errors.New("symbol cannot be renamed")
	// ErrInvalidName is returned for a new name that is not a plain symbol.
	ErrInvalidName = errors.New("invalid symbol name")
)

// textDocumentPrepareRename returns the range of the name under the
// cursor, or null when it cannot be renamed.
func (s *Server) textDocumentPrepareRename(_ *glsp.Context, params *protocol.PrepareRenameParams) (any, error) {
	s.ensureWorkspaceIndex()
	ctx, cancel := s.requestContext()
	defer cancel()

	st := s.documentState(ctx, params.TextDocument.URI)
	if st == nil {
		return nil, nil
	}
	n := nodeAtPosition(st, params.Position)
	if n == nil {
		return nil, nil
	}
	res := s.resolver.Resolve(ctx, st, n)
	if !renameable(res) {
		return nil, nil
	}
	name := completionLabel(res.Decls[0])
	return &protocol.RangeWithPlaceholder{
		Range:       rangeToLSP(st.Tree.Source, nameRange(n, name)),
		Placeholder: name,
	}, nil
}

// textDocumentRename handles the textDocument/rename request.  Occurrences
// are searched in the open documents, like references.  A definition
// declared in a file that is not open is renamed at its declaration.
func (s *Server) textDocumentRename(_ *glsp.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	s.ensureWorkspaceIndex()
	ctx, cancel := s.requestContext()
	defer cancel()

	st, target := s.resolveAt(ctx, params.TextDocument.URI, params.Position)
	if st == nil || target.Empty() {
		return nil, fmt.Errorf("%w: no symbol at position", ErrNotRenameable)
	}
	if !renameable(target) {
		return nil, fmt.Errorf("%w: %s", ErrNotRenameable, target.Decls[0])
	}
	if !validName(params.NewName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, params.NewName)
	}

	name := completionLabel(target.Decls[0])
	edits := make(map[protocol.DocumentUri][]protocol.TextEdit)
	s.occurrences(ctx, target, true, func(o occurrence) {
		uri := protocol.DocumentUri(o.uri)
		edits[uri] = append(edits[uri], protocol.TextEdit{
			Range:   rangeToLSP(o.st.Tree.Source, nameRange(o.node, name)),
			NewText: params.NewName,
		})
	})
	for _, d := range target.Decls {
		uri := pathToURI(d.File)
		if s.docs.Get(uri) != nil {
			continue
		}
		if loc, ok := s.declLocation(st, d); ok {
			key := protocol.DocumentUri(uri)
			edits[key] = append(edits[key], protocol.TextEdit{Range: loc.Range, NewText: params.NewName})
		}
	}
	return &protocol.WorkspaceEdit{Changes: edits}, nil
}

// renameable reports whether every declaration of res is a local or a
// definition of a workspace file.  Core vars, host members, synthetic
// factories and methods implemented for a host type keep their names.
func renameable(res resolve.Result) bool {
	if res.Empty() {
		return false
	}
	for _, d := range res.Decls {
		switch d.Kind {
		case resolve.KindLocal:
			if d.Key.Type == analysis.TypeMethod || d.Node == nil || d.Node.Kind != form.Symbol {
				return false
			}
		case resolve.KindDefinition:
			if d.Def == nil || d.File == "" || d.File == d.Key.Namespace || d.Def.Meta[analysis.MetaSynthetic] != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// nameRange returns the part of n spelling name, leaving out a namespace
// qualifier or constructor dot.
func nameRange(n *form.Node, name string) form.Range {
	i := strings.LastIndex(n.Text, name)
	if i < 0 {
		return n.Range
	}
	start := n.Range.Start + i
	return form.Range{Start: start, End: start + len(name)}
}

// validName reports whether name reads as a single unqualified symbol.
func validName(name string) bool {
	t := parser.Parse("", name)
	if len(t.Errors) > 0 || len(t.Forms) != 1 {
		return false
	}
	f := t.Forms[0]
	return f.Kind == form.Symbol && len(f.Prefixes) == 0 && f.Text == name && !strings.Contains(name, "/")
}
