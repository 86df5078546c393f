// Copyright © 2024 The ELPS authors

package analysis

import "github.com/luthersystems/cljsym/form"

// WalkPattern calls fn for every symbol or keyword bound by a binding
// pattern.  Keywords appear for :keys entries written as keywords; the bound
// name is the node's Name.  Walking stops when fn returns false, and
// WalkPattern reports whether it ran to completion.  Patterns that do not
// have the expected shape bind nothing.
func WalkPattern(pattern *form.Node, fn func(*form.Node) bool) bool {
	if pattern == nil {
		return true
	}
	switch pattern.Kind {
	case form.Symbol:
		if pattern.Text == "&" {
			return true
		}
		return fn(pattern)
	case form.Vector:
		for _, c := range pattern.Children {
			if c.Kind == form.Keyword {
				continue
			}
			if !WalkPattern(c, fn) {
				return false
			}
		}
		return true
	case form.Map:
		return walkMapPattern(pattern, fn)
	default:
		return true
	}
}

func walkMapPattern(m *form.Node, fn func(*form.Node) bool) bool {
	kids := m.Children
	for i := 0; i+1 < len(kids); i += 2 {
		k, v := kids[i], kids[i+1]
		switch k.Kind {
		case form.Keyword:
			switch k.Name() {
			case "or":
				// defaults, not bindings
			case "as":
				if v.Kind == form.Symbol && !fn(v) {
					return false
				}
			case "keys", "syms", "strs":
				if v.Kind != form.Vector {
					continue
				}
				for _, c := range v.Children {
					if c.Kind != form.Symbol && c.Kind != form.Keyword {
						continue
					}
					if !fn(c) {
						return false
					}
				}
			}
		case form.Symbol, form.Vector, form.Map:
			if !WalkPattern(k, fn) {
				return false
			}
		}
	}
	return true
}

// BoundSymbols returns the nodes bound by pattern in source order.
func BoundSymbols(pattern *form.Node) []*form.Node {
	var out []*form.Node
	WalkPattern(pattern, func(n *form.Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Binding is one pattern and its initializer in a binding vector.
type Binding struct {
	Pattern *form.Node
	Init    *form.Node
}

// BindingPairs splits a let-like binding vector into pattern/init pairs.
// For comprehensions (for, doseq) the :let modifier contributes its own
// pairs and :when/:while modifiers are skipped.
func BindingPairs(v *form.Node, comprehension bool) []Binding {
	if v == nil || v.Kind != form.Vector {
		return nil
	}
	var out []Binding
	kids := v.Children
	for i := 0; i < len(kids); i += 2 {
		k := kids[i]
		var init *form.Node
		if i+1 < len(kids) {
			init = kids[i+1]
		}
		if comprehension && k.Kind == form.Keyword {
			if k.Text == ":let" && init != nil {
				out = append(out, BindingPairs(init, false)...)
			}
			continue
		}
		out = append(out, Binding{Pattern: k, Init: init})
	}
	return out
}
