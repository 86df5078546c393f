// Copyright © 2024 The ELPS authors

package lsp

import (
	"context"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/resolve"
)

// textDocumentReferences handles the textDocument/references request.  It
// searches the open documents for occurrences resolving to a declaration
// of the occurrence under the cursor.
func (s *Server) textDocumentReferences(_ *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	s.ensureWorkspaceIndex()
	ctx, cancel := s.requestContext()
	defer cancel()

	st, target := s.resolveAt(ctx, params.TextDocument.URI, params.Position)
	if st == nil || target.Empty() {
		return nil, nil
	}
	locs := []protocol.Location{}
	s.occurrences(ctx, target, params.Context.IncludeDeclaration, func(o occurrence) {
		locs = append(locs, protocol.Location{
			URI:   o.uri,
			Range: rangeToLSP(o.st.Tree.Source, o.node.Range),
		})
	})
	return locs, nil
}

// occurrence is a symbol or keyword of an open document.
type occurrence struct {
	uri  string
	st   *analysis.State
	node *form.Node
}

// occurrences calls fn for every occurrence in the open documents that
// denotes a declaration of target, in document and source order.
func (s *Server) occurrences(ctx context.Context, target resolve.Result, withDecl bool, fn func(occurrence)) {
	name := completionLabel(target.Decls[0])
	for _, doc := range s.docs.All() {
		other := s.stateOf(ctx, doc)
		if other == nil {
			continue
		}
		for _, n := range other.Tree.Nodes {
			if ctx.Err() != nil {
				return
			}
			if (n.Kind != form.Symbol && n.Kind != form.Keyword) || !mentions(n, name) {
				continue
			}
			if !withDecl && declares(other, n, target) {
				continue
			}
			if s.refersTo(ctx, other, n, target) {
				fn(occurrence{uri: doc.URI, st: other, node: n})
			}
		}
	}
}

// mentions is a cheap filter for occurrences that may denote name.
// Constructor calls and member accesses keep their decoration.
func mentions(n *form.Node, name string) bool {
	switch n.Name() {
	case name, name + ".", "." + name, ".-" + name:
		return true
	}
	return false
}

func (s *Server) refersTo(ctx context.Context, st *analysis.State, n *form.Node, target resolve.Result) bool {
	res := s.resolver.Resolve(ctx, st, n)
	for _, d := range res.Decls {
		for _, t := range target.Decls {
			if sameDecl(d, t) {
				return true
			}
		}
	}
	return false
}

// declares reports whether n is the declaring name of a target.
func declares(st *analysis.State, n *form.Node, target resolve.Result) bool {
	for _, t := range target.Decls {
		if t.File == st.File && t.Range == n.Range {
			return true
		}
	}
	return false
}

// sameDecl reports whether two declarations denote the same entity.
// Keywords and aliases are located at each occurrence so only their keys
// are compared.
func sameDecl(a, b *resolve.Declaration) bool {
	if a.Kind != b.Kind || a.Key != b.Key {
		return false
	}
	switch a.Kind {
	case resolve.KindKeyword, resolve.KindAlias, resolve.KindSpecialForm,
		resolve.KindDynamic, resolve.KindClass, resolve.KindPackage:
		return true
	case resolve.KindMethod:
		return a.Method == b.Method
	case resolve.KindField:
		return a.Field == b.Field
	}
	return a.File == b.File && a.Range == b.Range
}
