// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"io"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/diagnostic"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/resolve"
)

func colorMode() diagnostic.ColorMode {
	mode, err := diagnostic.ParseColorMode(colorFlag)
	if err != nil {
		return diagnostic.ColorAuto
	}
	return mode
}

func newRenderer(trees ...*form.Tree) *diagnostic.Renderer {
	return &diagnostic.Renderer{Color: colorMode(), SourceReader: diagnostic.TreeSource(trees...)}
}

// fileDiagnostics reports the syntax errors of st and, when res is not nil,
// its unresolved symbols.
func fileDiagnostics(ctx context.Context, st *analysis.State, res *resolve.Resolver) []diagnostic.Diagnostic {
	var diags []diagnostic.Diagnostic
	for _, err := range st.Tree.Errors {
		diags = append(diags, diagnostic.FromParseError(st.Tree, err))
	}
	if res == nil {
		return diags
	}
	for _, n := range res.Unresolved(ctx, st) {
		diags = append(diags, diagnostic.Unresolved(st.Tree, n))
	}
	return diags
}

// renderDiagnostics renders diags read from trees to w.
func renderDiagnostics(w io.Writer, diags []diagnostic.Diagnostic, trees ...*form.Tree) error {
	return newRenderer(trees...).RenderAll(w, diags)
}
