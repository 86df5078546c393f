// Copyright © 2024 The ELPS authors

package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser"
)

const renameSource = "(defn add [a b] (+ a b))\n(add 1 2)\n(let [add 3] add)"

func rename(s *Server, uri string, pos protocol.Position, name string) (*protocol.WorkspaceEdit, error) {
	return s.textDocumentRename(mockContext(), &protocol.RenameParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		NewName: name,
	})
}

func editRanges(edits []protocol.TextEdit) []protocol.Range {
	ranges := make([]protocol.Range, len(edits))
	for i, e := range edits {
		ranges[i] = e.Range
	}
	return ranges
}

func TestRename(t *testing.T) {
	s := testServer(t)
	openDoc(s, testURI, renameSource)

	t.Run("definition and call sites", func(t *testing.T) {
		edit, err := rename(s, testURI, position(1, 2), "sum")
		require.NoError(t, err)
		require.Len(t, edit.Changes, 1)
		edits := edit.Changes[testURI]
		for _, e := range edits {
			assert.Equal(t, "sum", e.NewText)
		}
		assert.ElementsMatch(t, []protocol.Range{
			lspRange(0, 6, 0, 9),
			lspRange(1, 1, 1, 4),
		}, editRanges(edits), "the let binding shadows add and keeps its name")
	})

	t.Run("local", func(t *testing.T) {
		uri := "file:///work/src/app/local.clj"
		openDoc(s, uri, "(defn f [x] (let [y x] (+ x y)))")
		edit, err := rename(s, uri, position(0, 9), "n")
		require.NoError(t, err)
		assert.ElementsMatch(t, []protocol.Range{
			lspRange(0, 9, 0, 10),
			lspRange(0, 20, 0, 21),
			lspRange(0, 26, 0, 27),
		}, editRanges(edit.Changes[uri]))
	})

	t.Run("core var", func(t *testing.T) {
		_, err := rename(s, testURI, position(0, 17), "plus")
		assert.ErrorIs(t, err, ErrNotRenameable)
	})

	t.Run("no symbol", func(t *testing.T) {
		_, err := rename(s, testURI, position(1, 5), "x")
		assert.ErrorIs(t, err, ErrNotRenameable)
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "two words", "ns/x", ":kw", "(x)", "'x"} {
			_, err := rename(s, testURI, position(1, 2), name)
			assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
		}
	})
}

func TestPrepareRename(t *testing.T) {
	s := testServer(t)
	openDoc(s, testURI, renameSource)

	prepare := func(pos protocol.Position) any {
		t.Helper()
		result, err := s.textDocumentPrepareRename(mockContext(), &protocol.PrepareRenameParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
				Position:     pos,
			},
		})
		require.NoError(t, err)
		return result
	}

	result := prepare(position(1, 2))
	require.IsType(t, &protocol.RangeWithPlaceholder{}, result)
	r := result.(*protocol.RangeWithPlaceholder)
	assert.Equal(t, "add", r.Placeholder)
	assert.Equal(t, lspRange(1, 1, 1, 4), r.Range)

	assert.Nil(t, prepare(position(0, 17)), "core +")
	assert.Nil(t, prepare(position(1, 5)), "number literal")

	result, err := s.textDocumentPrepareRename(mockContext(), &protocol.PrepareRenameParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///work/missing.clj"},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestNameRange(t *testing.T) {
	tree := parser.Parse("", "(u/twice 1)")
	require.Empty(t, tree.Errors)
	sym := tree.Forms[0].Children[0]
	assert.Equal(t, form.Range{Start: 3, End: 8}, nameRange(sym, "twice"))
	assert.Equal(t, sym.Range, nameRange(sym, "other"))
}
