// Copyright © 2024 The ELPS authors

package resolve

import (
	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
)

// locals runs step 3, walking the enclosing forms outward.  The innermost
// binding of a name wins.
func (s *search) locals() {
	child := s.place
	for a := s.place.Parent; a != nil && !s.done(); child, a = a, a.Parent {
		if a.Kind == form.List {
			s.scope(a, child)
		}
	}
}

// scope emits the locals list a binds for code inside child.
func (s *search) scope(a, child *form.Node) {
	head := a.HeadSymbol()
	for _, c := range a.Children {
		switch s.ann.Role(c) {
		case analysis.RoleArgVec:
			if c == child || c.Range.End <= s.offset {
				s.pattern(c, analysis.TypeArgument)
			}
		case analysis.RoleFieldVec:
			if c != child && c.Range.End <= s.offset {
				s.pattern(c, analysis.TypeField)
			}
		case analysis.RoleBndVec:
			if head == "letfn" {
				s.letfnNames(c)
			} else {
				s.bindings(head, c)
			}
		}
		if s.done() {
			return
		}
	}
	kids := a.Children
	switch {
	case head == "catch" && len(kids) > 2 && kids[2].Kind == form.Symbol && kids[2].Range.End <= s.offset:
		s.bind(kids[2], analysis.TypeLetBinding)
	case analysis.IsFnAlike(head) && len(kids) > 1 && kids[1].Kind == form.Symbol && kids[1] != child:
		s.bind(kids[1], analysis.TypeLetBinding)
	}
}

func (s *search) bind(n *form.Node, typ string) {
	if s.wants(n.Name()) {
		s.emit(n.Name(), s.local(n, typ))
	}
}

// pattern emits the names bound by a binding pattern, last first.
func (s *search) pattern(p *form.Node, typ string) {
	names := analysis.BoundSymbols(p)
	for i := len(names) - 1; i >= 0 && !s.done(); i-- {
		s.bind(names[i], typ)
	}
}

// bindings emits the names of a let-like binding vector visible at the
// place.  A binding is visible once its init form has ended, so that
// neither the binding itself nor earlier siblings see it.  The :or
// defaults of a pattern see the pattern's own names.  Mutually recursive
// forms see every binding.
func (s *search) bindings(head string, v *form.Node) {
	mutual := analysis.IsMutualAlike(head)
	pairs := analysis.BindingPairs(v, analysis.IsForAlike(head))
	for i := len(pairs) - 1; i >= 0 && !s.done(); i-- {
		b := pairs[i]
		visible := mutual || b.Pattern.IsAncestorOf(s.place) ||
			(b.Init != nil && b.Init.OuterRange().End <= s.offset)
		if !visible {
			continue
		}
		s.pattern(b.Pattern, analysis.TypeLetBinding)
	}
}

func (s *search) letfnNames(v *form.Node) {
	for i := len(v.Children) - 1; i >= 0 && !s.done(); i-- {
		if h := v.Children[i].Head(); h != nil && h.Kind == form.Symbol {
			s.bind(h, analysis.TypeLetBinding)
		}
	}
}

// initOf returns the init form bound to a let-like binding symbol.  Loop
// variables of comprehensions have no single init form.
func initOf(ann *analysis.Annotations, n *form.Node) *form.Node {
	v := n.Parent
	if v == nil || v.Kind != form.Vector || n.Annotates != nil {
		return nil
	}
	if l := v.Parent; l != nil && l.Kind == form.List {
		if ann.Role(v) != analysis.RoleBndVec {
			return nil
		}
		switch head := l.HeadSymbol(); {
		case analysis.IsForAlike(head), head == "dotimes":
			return nil
		}
	} else if prev := v.PrevSibling(); prev == nil || !prev.IsKeyword(":let") {
		return nil
	}
	for _, b := range analysis.BindingPairs(v, false) {
		if b.Pattern == n {
			return b.Init
		}
	}
	return nil
}
