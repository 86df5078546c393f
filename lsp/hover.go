// Copyright © 2024 The ELPS authors

package lsp

import (
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/resolve"
)

// textDocumentHover handles the textDocument/hover request.  Each
// declaration of the occurrence contributes one section.
func (s *Server) textDocumentHover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
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
	if res.Empty() {
		return nil, nil
	}
	sections := make([]string, 0, len(res.Decls))
	for _, d := range res.Decls {
		sections = append(sections, buildHoverContent(d))
	}
	r := rangeToLSP(st.Tree.Source, n.Range)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: strings.Join(sections, "\n\n---\n\n"),
		},
		Range: &r,
	}, nil
}

// buildHoverContent builds Markdown hover text for a declaration.
func buildHoverContent(d *resolve.Declaration) string {
	var sb strings.Builder
	switch {
	case d.Def != nil:
		fmt.Fprintf(&sb, "**%s** `%s`", d.Def.Key.Type, d.Key.Qualified())
		for _, p := range d.Def.Prototypes {
			fmt.Fprintf(&sb, "\n\n```clojure\n(%s", d.Key.Name)
			if len(p.Args) > 0 {
				fmt.Fprintf(&sb, " [%s]", strings.Join(p.Args, " "))
			} else {
				sb.WriteString(" []")
			}
			sb.WriteString(")\n```")
			if p.TypeHint != "" {
				fmt.Fprintf(&sb, "\n\nReturns `%s`", p.TypeHint)
			}
		}
		var tags []string
		if d.Def.IsPrivate() {
			tags = append(tags, "private")
		}
		if d.Def.IsDynamic() {
			tags = append(tags, "dynamic")
		}
		if hint := d.Def.TypeHint(); hint != "" {
			tags = append(tags, "^"+hint)
		}
		if len(tags) > 0 {
			fmt.Fprintf(&sb, "\n\n_%s_", strings.Join(tags, ", "))
		}
		if d.File != "" && d.File != d.Key.Namespace {
			fmt.Fprintf(&sb, "\n\n*Defined in %s*", d.File)
		}
	case d.Method != nil:
		m := d.Method
		static := ""
		if m.Static {
			static = "static "
		}
		fmt.Fprintf(&sb, "**%smethod** `%s.%s`\n\n```java\n%s %s(%s)\n```",
			static, m.Class, m.Name, orVoid(m.Returns), m.Name, strings.Join(m.Params, ", "))
	case d.Field != nil:
		f := d.Field
		static := ""
		if f.Static {
			static = "static "
		}
		fmt.Fprintf(&sb, "**%sfield** `%s.%s`", static, f.Class, f.Name)
		if f.Type != "" {
			fmt.Fprintf(&sb, " : `%s`", f.Type)
		}
	case d.Class != nil:
		kind := "class"
		if d.Class.Interface {
			kind = "interface"
		}
		fmt.Fprintf(&sb, "**%s** `%s`", kind, d.Class.Name)
		if d.Class.Super != "" {
			fmt.Fprintf(&sb, "\n\nextends `%s`", d.Class.Super)
		}
		if len(d.Class.Interfaces) > 0 {
			fmt.Fprintf(&sb, "\n\nimplements `%s`", strings.Join(d.Class.Interfaces, "`, `"))
		}
	default:
		fmt.Fprintf(&sb, "**%s** `%s`", declKindLabel(d), d.Key.Qualified())
		if d.Kind == resolve.KindLocal && d.Key.Type != "" {
			fmt.Fprintf(&sb, " (%s)", d.Key.Type)
		}
	}
	return sb.String()
}

func declKindLabel(d *resolve.Declaration) string {
	switch d.Kind {
	case resolve.KindSpecialForm:
		return "special form"
	case resolve.KindKeyword:
		return "keyword"
	case resolve.KindAlias:
		return "alias"
	}
	return d.Kind.String()
}

func orVoid(t string) string {
	if t == "" {
		return "void"
	}
	return t
}
