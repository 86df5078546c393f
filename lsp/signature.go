// Copyright © 2024 The ELPS authors

package lsp

import (
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/resolve"
)

// textDocumentSignatureHelp handles textDocument/signatureHelp requests.
// It finds the call enclosing the cursor, resolves its head and offers
// one signature per prototype of the definition it denotes.
func (s *Server) textDocumentSignatureHelp(_ *glsp.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	s.ensureWorkspaceIndex()
	ctx, cancel := s.requestContext()
	defer cancel()

	st := s.documentState(ctx, params.TextDocument.URI)
	if st == nil {
		return nil, nil
	}
	call, arg := enclosingCall(st, lspToOffset(st.Tree, params.Position))
	if call == nil {
		return nil, nil
	}
	for _, d := range s.resolver.Resolve(ctx, st, call.Children[0]).Decls {
		if d.Def != nil && len(d.Def.Prototypes) > 0 {
			return signatureHelp(d, arg), nil
		}
	}
	return nil, nil
}

// enclosingCall returns the innermost call around offset whose head is a
// symbol the cursor has moved past, and the 0-based index of the argument
// at offset.  Quoted and commented lists are data, not calls.
func enclosingCall(st *analysis.State, offset int) (*form.Node, int) {
	for n := st.Tree.NodeAt(offset); n != nil; n = n.Parent {
		if n.Kind != form.List || len(n.Children) == 0 {
			continue
		}
		if st.Annotations.Flags(n)&(analysis.FlagQuoted|analysis.FlagCommented) != 0 {
			continue
		}
		head := n.Children[0]
		if head.Kind != form.Symbol || offset <= head.Range.End {
			continue
		}
		arg := 0
		for _, c := range n.Children[1:] {
			if c.OuterRange().End < offset {
				arg++
			}
		}
		return n, arg
	}
	return nil, 0
}

// signatureHelp builds the signatures of d.  The active signature is the
// first prototype accepting arg+1 arguments.
func signatureHelp(d *resolve.Declaration, arg int) *protocol.SignatureHelp {
	protos := d.Def.Prototypes
	sigs := make([]protocol.SignatureInformation, 0, len(protos))
	active := -1
	for i, p := range protos {
		sig, param, ok := signatureInfo(d.Key.Name, p, arg)
		sig.ActiveParameter = &param
		sigs = append(sigs, sig)
		if ok && active < 0 {
			active = i
		}
	}
	if active < 0 {
		active = len(protos) - 1
	}
	return &protocol.SignatureHelp{
		Signatures:      sigs,
		ActiveSignature: uintPtr(safeUint(active)),
		ActiveParameter: sigs[active].ActiveParameter,
	}
}

// signatureInfo renders "(name a b & more)" with offset labels for each
// parameter.  It returns the parameter index arg falls on and whether the
// prototype accepts that many arguments.
func signatureInfo(name string, p analysis.Prototype, arg int) (protocol.SignatureInformation, protocol.UInteger, bool) {
	var label strings.Builder
	label.WriteString("(" + name)
	var params []protocol.ParameterInformation
	rest := -1
	for _, a := range p.Args {
		label.WriteString(" ")
		if a == "&" {
			label.WriteString(a)
			rest = len(params)
			continue
		}
		start := label.Len()
		label.WriteString(a)
		params = append(params, protocol.ParameterInformation{
			Label: []protocol.UInteger{safeUint(start), safeUint(label.Len())},
		})
	}
	label.WriteString(")")

	fixed := len(params)
	if rest >= 0 {
		fixed = rest
	}
	param, ok := arg, arg < fixed
	if !ok && rest >= 0 && rest < len(params) {
		param, ok = rest, true
	}
	sig := protocol.SignatureInformation{Label: label.String(), Parameters: params}
	if p.TypeHint != "" {
		sig.Documentation = "Returns " + p.TypeHint
	}
	return sig, safeUint(min(param, max(len(params)-1, 0))), ok
}

func uintPtr(v protocol.UInteger) *protocol.UInteger {
	return &v
}
