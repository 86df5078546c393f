// Copyright © 2024 The ELPS authors

package form

import (
	"path/filepath"
	"sort"
)

// Tree is a parsed source file.  Nodes holds every node, including metadata
// forms, indexed by ID in source order.
type Tree struct {
	File   string
	Source string
	Forms  []*Node
	Nodes  []*Node
	Errors []error
}

// NewTree links parent pointers and assigns node IDs in source order.
func NewTree(file, src string, forms []*Node) *Tree {
	t := &Tree{
		File:   file,
		Source: src,
		Forms:  forms,
	}
	for _, f := range forms {
		t.index(f, nil)
	}
	return t
}

func (t *Tree) index(n *Node, parent *Node) {
	for _, p := range n.Prefixes {
		if p.Meta != nil {
			p.Meta.Annotates = n
			t.index(p.Meta, n)
		}
	}
	n.Parent = parent
	n.ID = len(t.Nodes)
	t.Nodes = append(t.Nodes, n)
	for _, c := range n.Children {
		t.index(c, n)
	}
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// Ext returns the file extension, used to pick the default dialect.
func (t *Tree) Ext() string {
	return filepath.Ext(t.File)
}

// Text returns the source text covered by r.
func (t *Tree) Text(r Range) string {
	if r.Start < 0 || r.End > len(t.Source) || r.Start > r.End {
		return ""
	}
	return t.Source[r.Start:r.End]
}

// NodeAt returns the innermost node whose range contains offset.  An offset
// at the end of a symbol or keyword still selects it so that a cursor placed
// after a word finds the word.
func (t *Tree) NodeAt(offset int) *Node {
	i := sort.Search(len(t.Forms), func(i int) bool {
		return t.Forms[i].Range.End >= offset
	})
	for ; i < len(t.Forms); i++ {
		f := t.Forms[i]
		if f.OuterRange().Start > offset {
			break
		}
		if n := nodeAt(f, offset); n != nil {
			return n
		}
	}
	return nil
}

// PlaceAt returns the node whose scope applies at offset: the node under
// it, or else the closest preceding top-level form.  It returns nil before
// the first form.
func (t *Tree) PlaceAt(offset int) *Node {
	if n := t.NodeAt(offset); n != nil {
		return n
	}
	var place *Node
	for _, f := range t.Forms {
		if f.Range.Start > offset {
			break
		}
		place = f
	}
	return place
}

func nodeAt(n *Node, offset int) *Node {
	for _, p := range n.Prefixes {
		if p.Meta != nil {
			if m := nodeAt(p.Meta, offset); m != nil {
				return m
			}
		}
	}
	switch {
	case n.Range.Contains(offset):
	case !n.Kind.IsColl() && n.Range.End == offset:
	default:
		return nil
	}
	for _, c := range n.Children {
		if m := nodeAt(c, offset); m != nil {
			return m
		}
	}
	return n
}

// Walk calls fn for n and its descendants in source order, metadata forms
// included.  Returning false from fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	for _, p := range n.Prefixes {
		if p.Meta != nil {
			Walk(p.Meta, fn)
		}
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Ancestors returns the chain of enclosing nodes starting at n's parent.
func Ancestors(n *Node) []*Node {
	var out []*Node
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// EnclosingList returns the innermost list strictly containing n.
func EnclosingList(n *Node) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Kind == List {
			return p
		}
	}
	return nil
}

// Position converts a byte offset into 1-based line and column numbers.
func (t *Tree) Position(offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(t.Source); i++ {
		if t.Source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Offset converts 1-based line and column numbers into a byte offset.  A
// column beyond the end of the line clamps to the line end.
func (t *Tree) Offset(line, col int) int {
	l := 1
	i := 0
	for ; i < len(t.Source) && l < line; i++ {
		if t.Source[i] == '\n' {
			l++
		}
	}
	for c := 1; i < len(t.Source) && c < col && t.Source[i] != '\n'; c++ {
		i++
	}
	return i
}
