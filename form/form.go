// Copyright © 2024 The ELPS authors

// Package form defines the syntax tree read from Clojure and ClojureScript
// source.  A Tree is immutable once built; engine data attached to nodes
// lives in side tables indexed by Node.ID.
package form

import (
	"fmt"
	"strings"
)

// Kind is the tagged variant of a Node.
type Kind uint8

const (
	Invalid Kind = iota
	List
	Vector
	Map
	Set
	Symbol
	Keyword
	Literal
	numKinds
)

func (k Kind) String() string {
	names := [numKinds]string{
		Invalid: "invalid",
		List:    "list",
		Vector:  "vector",
		Map:     "map",
		Set:     "set",
		Symbol:  "symbol",
		Keyword: "keyword",
		Literal: "literal",
	}
	if k >= numKinds {
		return names[Invalid]
	}
	return names[k]
}

// IsColl returns true for list, vector, map and set kinds.
func (k Kind) IsColl() bool {
	return k == List || k == Vector || k == Map || k == Set
}

// LiteralType distinguishes the literal forms.
type LiteralType uint8

const (
	LitNone LiteralType = iota
	LitString
	LitNumber
	LitChar
	LitRegex
	LitNil
	LitBool
	LitSymbolic // ##Inf, ##-Inf, ##NaN
)

// PrefixKind enumerates reader macros and metadata applied to a form.
type PrefixKind uint8

const (
	PrefixQuote PrefixKind = iota
	PrefixSyntaxQuote
	PrefixUnquote
	PrefixUnquoteSplicing
	PrefixDeref
	PrefixVar
	PrefixDiscard
	PrefixReaderCond
	PrefixReaderCondSplicing
	PrefixAnonFn
	PrefixMeta
	PrefixLegacyMeta
	PrefixNamespacedMap
	PrefixTagged
	numPrefixKinds
)

func (k PrefixKind) String() string {
	names := [numPrefixKinds]string{
		PrefixQuote:              "'",
		PrefixSyntaxQuote:        "`",
		PrefixUnquote:            "~",
		PrefixUnquoteSplicing:    "~@",
		PrefixDeref:              "@",
		PrefixVar:                "#'",
		PrefixDiscard:            "#_",
		PrefixReaderCond:         "#?",
		PrefixReaderCondSplicing: "#?@",
		PrefixAnonFn:             "#(",
		PrefixMeta:               "^",
		PrefixLegacyMeta:         "#^",
		PrefixNamespacedMap:      "#:",
		PrefixTagged:             "#tag",
	}
	if k >= numPrefixKinds {
		return "?"
	}
	return names[k]
}

// IsReaderMacro returns true for prefixes other than metadata.
func (k PrefixKind) IsReaderMacro() bool {
	return k != PrefixMeta
}

// Range is a half-open byte range in the source text.
type Range struct {
	Start int
	End   int
}

// Contains reports whether offset lies within r.
func (r Range) Contains(offset int) bool {
	return r.Start <= offset && offset < r.End
}

// ContainsRange reports whether o lies entirely within r.
func (r Range) ContainsRange(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Prefix is a reader macro or metadata annotation preceding a form.  For
// metadata the annotation form is held in Meta.  Tag holds the tag text for
// tagged literals and the namespace text for namespaced maps (":ns", "::" or
// "::alias").
type Prefix struct {
	Kind  PrefixKind
	Range Range
	Tag   string
	Meta  *Node
}

// Node is one form of the tree.
type Node struct {
	ID       int
	Kind     Kind
	Lit      LiteralType
	Text     string
	Range    Range
	Children []*Node
	Parent   *Node
	Prefixes []*Prefix

	// Annotates is set on metadata forms to the form they annotate.  Parent
	// of such a node is the annotated form.
	Annotates *Node
}

func (n *Node) String() string {
	switch n.Kind {
	case Symbol, Keyword, Literal:
		return n.Text
	default:
		return fmt.Sprintf("%s%s", n.Kind, n.Range)
	}
}

// OuterRange covers the form including its prefixes.
func (n *Node) OuterRange() Range {
	r := n.Range
	if len(n.Prefixes) > 0 && n.Prefixes[0].Range.Start < r.Start {
		r.Start = n.Prefixes[0].Range.Start
	}
	return r
}

// HasPrefix reports whether n carries a prefix of kind k.
func (n *Node) HasPrefix(k PrefixKind) bool {
	return n.Prefix(k) != nil
}

// Prefix returns the first prefix of kind k, or nil.
func (n *Node) Prefix(k PrefixKind) *Prefix {
	for _, p := range n.Prefixes {
		if p.Kind == k {
			return p
		}
	}
	return nil
}

// HasReaderMacro reports whether any non-metadata prefix applies to n.
func (n *Node) HasReaderMacro() bool {
	for _, p := range n.Prefixes {
		if p.Kind.IsReaderMacro() {
			return true
		}
	}
	return false
}

// Metas returns the metadata forms attached to n in source order.
func (n *Node) Metas() []*Node {
	var metas []*Node
	for _, p := range n.Prefixes {
		if p.Meta != nil && p.Kind == PrefixMeta {
			metas = append(metas, p.Meta)
		}
	}
	return metas
}

// IsReaderCond reports whether n is a reader conditional list.
func (n *Node) IsReaderCond() bool {
	return n.Kind == List && (n.HasPrefix(PrefixReaderCond) || n.HasPrefix(PrefixReaderCondSplicing))
}

// IsSymbol reports whether n is a symbol with the given text.
func (n *Node) IsSymbol(text string) bool {
	return n != nil && n.Kind == Symbol && n.Text == text
}

// IsKeyword reports whether n is a keyword with the given text (including
// the leading colon).
func (n *Node) IsKeyword(text string) bool {
	return n != nil && n.Kind == Keyword && n.Text == text
}

// Index returns the position of n among its parent's children, or -1.
func (n *Node) Index() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// Head returns the first child of a list, or nil.
func (n *Node) Head() *Node {
	if n == nil || n.Kind != List || len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// HeadSymbol returns the text of the leading symbol of a list.
func (n *Node) HeadSymbol() string {
	h := n.Head()
	if h == nil || h.Kind != Symbol {
		return ""
	}
	return h.Text
}

// FirstChild returns the first child of kind k, or nil.
func (n *Node) FirstChild(k Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// NextSibling returns the child following n in its parent, or nil.
func (n *Node) NextSibling() *Node {
	i := n.Index()
	if i < 0 || i+1 >= len(n.Parent.Children) {
		return nil
	}
	return n.Parent.Children[i+1]
}

// PrevSibling returns the child preceding n in its parent, or nil.
func (n *Node) PrevSibling() *Node {
	i := n.Index()
	if i <= 0 {
		return nil
	}
	return n.Parent.Children[i-1]
}

// IsAncestorOf reports whether n is o or contains o.
func (n *Node) IsAncestorOf(o *Node) bool {
	for p := o; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// Name returns the unqualified name of a symbol or keyword.
func (n *Node) Name() string {
	name, _ := split(n.bareText())
	return name
}

// Namespace returns the qualifier of a symbol or keyword.  For auto-resolved
// keywords (::k and ::alias/k) the alias text is returned, which may be
// empty.
func (n *Node) Namespace() string {
	_, ns := split(n.bareText())
	return ns
}

// IsAutoKeyword reports whether n is written with a double colon.
func (n *Node) IsAutoKeyword() bool {
	return n.Kind == Keyword && strings.HasPrefix(n.Text, "::")
}

func (n *Node) bareText() string {
	if n.Kind == Keyword {
		return strings.TrimLeft(n.Text, ":")
	}
	return n.Text
}

// SplitSymbol splits symbol text into name and namespace.
func SplitSymbol(text string) (name, ns string) {
	return split(text)
}

func split(text string) (name, ns string) {
	if text == "/" {
		return text, ""
	}
	if strings.HasSuffix(text, "//") {
		return "/", text[:len(text)-2]
	}
	i := strings.IndexByte(text, '/')
	if i <= 0 || i == len(text)-1 {
		return text, ""
	}
	return text[i+1:], text[:i]
}
