// Copyright © 2024 The ELPS authors

package lsp

import (
	"context"
	"sort"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/resolve"
)

// maxCompletionItems bounds the items returned for one request.
const maxCompletionItems = 500

// textDocumentCompletion handles the textDocument/completion request.  An
// unqualified prefix completes the names visible at the cursor; a prefix
// of the form alias/partial completes the public vars of the aliased
// namespace.
func (s *Server) textDocumentCompletion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	s.ensureWorkspaceIndex()
	ctx, cancel := s.requestContext()
	defer cancel()

	st := s.documentState(ctx, params.TextDocument.URI)
	if st == nil {
		return nil, nil
	}
	offset := lspToOffset(st.Tree, params.Position)
	place := st.Tree.PlaceAt(offset)
	if place == nil {
		return []protocol.CompletionItem{}, nil
	}
	prefix := ""
	if place.Kind == form.Symbol && place.Range.Start <= offset {
		prefix = st.Tree.Text(form.Range{Start: place.Range.Start, End: offset})
	}

	var items []protocol.CompletionItem
	if q, partial, ok := strings.Cut(prefix, "/"); ok && q != "" {
		items = s.qualifiedCompletions(ctx, st, place, q, partial)
	} else {
		items = s.scopeCompletions(ctx, st, place, prefix)
	}
	return items, nil
}

// scopeCompletions returns the visible names starting with prefix,
// innermost first.
func (s *Server) scopeCompletions(ctx context.Context, st *analysis.State, place *form.Node, prefix string) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	s.resolver.EnumerateVisible(ctx, st, place, func(d *resolve.Declaration) bool {
		label := completionLabel(d)
		if !strings.HasPrefix(label, prefix) || (d.Node == place && place.Kind == form.Symbol) {
			return true
		}
		items = append(items, completionItem(label, d))
		return len(items) < maxCompletionItems
	})
	return items
}

// qualifiedCompletions returns the vars of the namespace q, or of the
// namespace q aliases, whose names start with partial.
func (s *Server) qualifiedCompletions(ctx context.Context, st *analysis.State, place *form.Node, q, partial string) []protocol.CompletionItem {
	ns := q
	for _, g := range st.ImportsAt(place.Range.Start, st.Annotations.Dialect(place)) {
		for _, imp := range g.Imports {
			if imp.Alias == q && !imp.IsPlatform() {
				ns = imp.Namespace
			}
		}
	}
	var defs []*analysis.Definition
	if ns == st.Namespace {
		defs = append(defs, st.Definitions...)
	}
	files, err := s.registry.FilesDeclaring(ctx, ns)
	if err != nil {
		return nil
	}
	for _, f := range files {
		if f == st.File {
			continue
		}
		fdefs, err := s.registry.FileDefinitions(ctx, f)
		if err != nil {
			s.log.Debug().Err(err).Str("file", f).Msg("completion skipped file")
			continue
		}
		defs = append(defs, fdefs...)
	}

	seen := make(map[string]bool)
	items := []protocol.CompletionItem{}
	for _, d := range defs {
		name := d.Key.Name
		if seen[name] || !strings.HasPrefix(name, partial) || d.MemberOf() != ns {
			continue
		}
		if d.IsPrivate() && ns != st.Namespace {
			continue
		}
		seen[name] = true
		items = append(items, completionItem(q+"/"+name, &resolve.Declaration{
			Kind: resolve.KindDefinition,
			Key:  d.Key,
			File: d.File,
			Def:  d,
		}))
		if len(items) == maxCompletionItems {
			break
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func completionItem(label string, d *resolve.Declaration) protocol.CompletionItem {
	kind := mapCompletionItemKind(d)
	detail := d.Key.Qualified()
	if d.Def != nil {
		detail = d.Def.Key.Type + " " + detail
	}
	return protocol.CompletionItem{
		Label:  label,
		Kind:   &kind,
		Detail: &detail,
	}
}

// completionLabel returns the name a declaration is visible under.
func completionLabel(d *resolve.Declaration) string {
	if d.Kind == resolve.KindClass {
		return d.Key.Name[strings.LastIndexByte(d.Key.Name, '.')+1:]
	}
	return d.Key.Name
}

// mapCompletionItemKind converts a declaration to an LSP CompletionItemKind.
func mapCompletionItemKind(d *resolve.Declaration) protocol.CompletionItemKind {
	switch d.Kind {
	case resolve.KindLocal:
		return protocol.CompletionItemKindVariable
	case resolve.KindNamespace, resolve.KindAlias, resolve.KindPackage:
		return protocol.CompletionItemKindModule
	case resolve.KindSpecialForm:
		return protocol.CompletionItemKindKeyword
	case resolve.KindClass:
		return protocol.CompletionItemKindClass
	case resolve.KindMethod:
		return protocol.CompletionItemKindMethod
	case resolve.KindField:
		return protocol.CompletionItemKindField
	case resolve.KindDynamic:
		return protocol.CompletionItemKindVariable
	}
	if d.Def != nil {
		switch d.Def.Key.Type {
		case "defmacro":
			return protocol.CompletionItemKindKeyword
		case "def", "defonce":
			return protocol.CompletionItemKindVariable
		case "defprotocol", "definterface":
			return protocol.CompletionItemKindInterface
		case "defrecord", "deftype":
			return protocol.CompletionItemKindStruct
		}
	}
	return protocol.CompletionItemKindFunction
}
