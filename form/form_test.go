// Copyright © 2024 The ELPS authors

package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSymbol(t *testing.T) {
	tests := []struct {
		text, name, ns string
	}{
		{"a", "a", ""},
		{"a.b/c", "c", "a.b"},
		{"/", "/", ""},
		{"clojure.core//", "/", "clojure.core"},
		{"a/", "a/", ""},
		{"/a", "/a", ""},
		{"String.", "String.", ""},
	}
	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			name, ns := SplitSymbol(test.text)
			assert.Equal(t, test.name, name)
			assert.Equal(t, test.ns, ns)
		})
	}
}

func TestKeywordNames(t *testing.T) {
	kw := &Node{Kind: Keyword, Text: "::alias/k"}
	assert.Equal(t, "k", kw.Name())
	assert.Equal(t, "alias", kw.Namespace())
	assert.True(t, kw.IsAutoKeyword())

	kw = &Node{Kind: Keyword, Text: ":k"}
	assert.Equal(t, "k", kw.Name())
	assert.Equal(t, "", kw.Namespace())
	assert.False(t, kw.IsAutoKeyword())
}

func TestNodeNavigation(t *testing.T) {
	a := &Node{Kind: Symbol, Text: "a"}
	b := &Node{Kind: Vector}
	c := &Node{Kind: Symbol, Text: "c"}
	list := &Node{Kind: List, Children: []*Node{a, b, c}}
	tree := NewTree("x.clj", "", []*Node{list})
	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, "a", list.HeadSymbol())
	assert.Same(t, b, list.FirstChild(Vector))
	assert.Same(t, b, a.NextSibling())
	assert.Same(t, b, c.PrevSibling())
	assert.Nil(t, c.NextSibling())
	assert.Equal(t, 2, c.Index())
	assert.True(t, list.IsAncestorOf(c))
	assert.False(t, a.IsAncestorOf(c))
	assert.Same(t, list, EnclosingList(c))
	assert.Equal(t, []*Node{list}, Ancestors(b))
}

func TestTreePositions(t *testing.T) {
	a := &Node{Kind: Symbol, Text: "a", Range: Range{1, 2}}
	b := &Node{Kind: Symbol, Text: "b", Range: Range{3, 4}}
	c := &Node{Kind: Symbol, Text: "c", Range: Range{7, 8}}
	first := &Node{Kind: List, Range: Range{0, 5}, Children: []*Node{a, b}}
	second := &Node{Kind: List, Range: Range{6, 9}, Children: []*Node{c}}
	tree := NewTree("x.clj", "(a b)\n(c)\n", []*Node{first, second})

	t.Run("node at", func(t *testing.T) {
		assert.Same(t, a, tree.NodeAt(1))
		assert.Same(t, a, tree.NodeAt(2), "the end of a symbol selects it")
		assert.Same(t, b, tree.NodeAt(3))
		assert.Same(t, first, tree.NodeAt(0))
		assert.Nil(t, tree.NodeAt(5))
	})
	t.Run("place at", func(t *testing.T) {
		assert.Same(t, c, tree.PlaceAt(7))
		assert.Same(t, first, tree.PlaceAt(5))
		assert.Same(t, second, tree.PlaceAt(10))
		empty := NewTree("y.clj", "  ", nil)
		assert.Nil(t, empty.PlaceAt(1))
	})
	t.Run("line and column", func(t *testing.T) {
		line, col := tree.Position(7)
		assert.Equal(t, []int{2, 2}, []int{line, col})
		assert.Equal(t, 7, tree.Offset(2, 2))
		assert.Equal(t, 5, tree.Offset(1, 99), "columns clamp to the line end")
		assert.Equal(t, "(c)", tree.Text(second.Range))
	})
}
