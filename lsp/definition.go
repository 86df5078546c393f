// Copyright © 2024 The ELPS authors

package lsp

import (
	"context"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/resolve"
)

// textDocumentDefinition handles the textDocument/definition request.  An
// occurrence with several declarations, such as a cljc symbol defined for
// both dialects or a multi-file namespace, yields every location.
// Declarations without a source file are left out.
func (s *Server) textDocumentDefinition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	s.ensureWorkspaceIndex()
	ctx, cancel := s.requestContext()
	defer cancel()

	st, res := s.resolveAt(ctx, params.TextDocument.URI, params.Position)
	if st == nil {
		return nil, nil
	}
	var locs []protocol.Location
	for _, d := range res.Decls {
		if loc, ok := s.declLocation(st, d); ok {
			locs = append(locs, loc)
		}
	}
	if len(locs) == 0 {
		return nil, nil
	}
	return locs, nil
}

// resolveAt resolves the occurrence under pos in the document at uri.  The
// state is nil when there is no document or no occurrence there.
func (s *Server) resolveAt(ctx context.Context, uri string, pos protocol.Position) (*analysis.State, resolve.Result) {
	st := s.documentState(ctx, uri)
	if st == nil {
		return nil, resolve.Result{}
	}
	n := nodeAtPosition(st, pos)
	if n == nil {
		return nil, resolve.Result{}
	}
	return st, s.resolver.Resolve(ctx, st, n)
}
