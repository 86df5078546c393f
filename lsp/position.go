// Copyright © 2024 The ELPS authors

package lsp

import (
	"os"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/resolve"
)

// Positions are converted with byte columns.

// safeUint converts a non-negative int to protocol.UInteger, clamping
// negative values to zero.
func safeUint(n int) protocol.UInteger {
	if n < 0 {
		return 0
	}
	return protocol.UInteger(n) // #nosec G115 -- line/col are always small positive ints
}

// lspToOffset converts a 0-based LSP position into a byte offset of tree.
func lspToOffset(tree *form.Tree, pos protocol.Position) int {
	return tree.Offset(int(pos.Line)+1, int(pos.Character)+1)
}

// offsetToLSP converts a byte offset of src into a 0-based LSP position.
func offsetToLSP(src string, offset int) protocol.Position {
	line, col := (&form.Tree{Source: src}).Position(offset)
	return protocol.Position{
		Line:      safeUint(line - 1),
		Character: safeUint(col - 1),
	}
}

// rangeToLSP converts a byte range of src into an LSP range.
func rangeToLSP(src string, r form.Range) protocol.Range {
	return protocol.Range{
		Start: offsetToLSP(src, r.Start),
		End:   offsetToLSP(src, r.End),
	}
}

// nodeAtPosition returns the symbol or keyword under the 0-based LSP
// position, or nil.
func nodeAtPosition(st *analysis.State, pos protocol.Position) *form.Node {
	n := st.Tree.NodeAt(lspToOffset(st.Tree, pos))
	if n == nil || (n.Kind != form.Symbol && n.Kind != form.Keyword) {
		return nil
	}
	return n
}

// source returns the text of path, preferring the content of an open
// document.  Declarations without a readable file, such as the core
// catalog, report false.
func (s *Server) source(path string) (string, bool) {
	if doc := s.docs.Get(pathToURI(path)); doc != nil {
		doc.mu.Lock()
		defer doc.mu.Unlock()
		return doc.Content, true
	}
	b, err := os.ReadFile(path) //nolint:gosec // paths come from the workspace index
	if err != nil {
		return "", false
	}
	return string(b), true
}

// declLocation returns the location of the name a declaration was declared
// by.  st supplies the source when the declaration is in the same file.
func (s *Server) declLocation(st *analysis.State, d *resolve.Declaration) (protocol.Location, bool) {
	if d.File == "" {
		return protocol.Location{}, false
	}
	var src string
	if d.File == st.File {
		src = st.Tree.Source
	} else {
		var ok bool
		if src, ok = s.source(d.File); !ok {
			return protocol.Location{}, false
		}
	}
	return protocol.Location{
		URI:   pathToURI(d.File),
		Range: rangeToLSP(src, d.Range),
	}, true
}

// uriToPath converts a file:// URI to a filesystem path.
func uriToPath(uri string) string {
	if path, ok := strings.CutPrefix(uri, "file://"); ok {
		return path
	}
	return uri
}

// pathToURI converts a filesystem path to a file:// URI.
func pathToURI(path string) string {
	if strings.HasPrefix(path, "/") {
		return "file://" + path
	}
	return path
}
