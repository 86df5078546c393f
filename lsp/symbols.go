// Copyright © 2024 The ELPS authors

package lsp

import (
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
)

// textDocumentDocumentSymbol handles the textDocument/documentSymbol
// request.  Methods are nested under the type or protocol declaring them.
func (s *Server) textDocumentDocumentSymbol(_ *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	ctx, cancel := s.requestContext()
	defer cancel()
	st := s.documentState(ctx, params.TextDocument.URI)
	if st == nil {
		return nil, nil
	}
	return documentSymbols(st), nil
}

func documentSymbols(st *analysis.State) []protocol.DocumentSymbol {
	src := st.Tree.Source
	symbols := []protocol.DocumentSymbol{}
	owners := make(map[analysis.SymbolKey]int)
	for _, d := range st.Definitions {
		if d.Meta[analysis.MetaSynthetic] == "true" {
			continue
		}
		full := d.NameRange
		if d.Node != nil {
			full = d.Node.OuterRange()
		}
		sym := protocol.DocumentSymbol{
			Name:           d.Key.Name,
			Detail:         symbolDetail(d),
			Kind:           mapSymbolKind(d),
			Range:          rangeToLSP(src, full),
			SelectionRange: rangeToLSP(src, d.NameRange),
		}
		if d.IsMethod() {
			if i, ok := owners[d.Parent]; ok {
				symbols[i].Children = append(symbols[i].Children, sym)
				continue
			}
		}
		owners[d.Key] = len(symbols)
		symbols = append(symbols, sym)
	}
	return symbols
}

// symbolDetail builds a short detail string: the defining head and the
// argument vectors.
func symbolDetail(d *analysis.Definition) *string {
	var sb strings.Builder
	sb.WriteString(d.Key.Type)
	for _, p := range d.Prototypes {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(p.Args, " "))
		sb.WriteString("]")
	}
	detail := sb.String()
	return &detail
}

// mapSymbolKind converts the defining head of a definition to an LSP
// SymbolKind.
func mapSymbolKind(d *analysis.Definition) protocol.SymbolKind {
	switch d.Key.Type {
	case analysis.TypeMethod:
		return protocol.SymbolKindMethod
	case "def", "defonce":
		if d.IsDynamic() {
			return protocol.SymbolKindVariable
		}
		return protocol.SymbolKindConstant
	case "defprotocol", "definterface":
		return protocol.SymbolKindInterface
	case "defrecord", "deftype":
		return protocol.SymbolKindStruct
	case analysis.TypeNamespace:
		return protocol.SymbolKindNamespace
	}
	return protocol.SymbolKindFunction
}
