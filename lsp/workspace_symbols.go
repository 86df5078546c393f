// Copyright © 2024 The ELPS authors

package lsp

import (
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
)

// workspaceSymbol handles the workspace/symbol request.  It returns the
// definitions of the indexed files and the open documents whose name or
// qualified name matches the query.  An open document shadows its indexed
// version.  An empty query returns all symbols.
func (s *Server) workspaceSymbol(_ *glsp.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	s.ensureWorkspaceIndex()
	ctx, cancel := s.requestContext()
	defer cancel()

	query := strings.ToLower(params.Query)
	results := []protocol.SymbolInformation{}
	open := make(map[string]bool)

	for _, doc := range s.docs.All() {
		st := s.stateOf(ctx, doc)
		if st == nil {
			continue
		}
		open[st.File] = true
		results = appendSymbols(results, doc.URI, st.Tree.Source, st.Definitions, query)
	}

	for _, f := range s.registry.Files() {
		if ctx.Err() != nil {
			break
		}
		if open[f] {
			continue
		}
		defs, err := s.registry.FileDefinitions(ctx, f)
		if err != nil {
			s.log.Debug().Err(err).Str("file", f).Msg("workspace symbols skipped file")
			continue
		}
		if !anyMatches(defs, query) {
			continue
		}
		src, ok := s.source(f)
		if !ok {
			continue
		}
		results = appendSymbols(results, pathToURI(f), src, defs, query)
	}
	return results, nil
}

func appendSymbols(out []protocol.SymbolInformation, uri, src string, defs []*analysis.Definition, query string) []protocol.SymbolInformation {
	for _, d := range defs {
		if d.Meta[analysis.MetaSynthetic] == "true" || !symbolMatches(d, query) {
			continue
		}
		container := d.Key.Namespace
		out = append(out, protocol.SymbolInformation{
			Name:          d.Key.Name,
			Kind:          mapSymbolKind(d),
			Location:      protocol.Location{URI: uri, Range: rangeToLSP(src, d.NameRange)},
			ContainerName: &container,
		})
	}
	return out
}

func anyMatches(defs []*analysis.Definition, query string) bool {
	for _, d := range defs {
		if symbolMatches(d, query) {
			return true
		}
	}
	return false
}

func symbolMatches(d *analysis.Definition, query string) bool {
	return matchesQuery(d.Key.Name, query) || matchesQuery(d.Key.Qualified(), query)
}

// matchesQuery performs case-insensitive substring matching. An empty query
// matches everything (per LSP spec: empty string requests all symbols).
func matchesQuery(name, lowerQuery string) bool {
	if lowerQuery == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), lowerQuery)
}
