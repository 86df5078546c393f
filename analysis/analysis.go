// Copyright © 2024 The ELPS authors

// Package analysis assigns semantic roles to the forms of a parsed Clojure
// source file and derives the per-file state used by symbol resolution:
// the file's namespace, its definitions, and its import table.
//
// Role assignment never mutates the form tree.  Its results are stored in
// an Annotations side table indexed by node ID, and a State built from one
// tree revision is immutable once published.
package analysis

import (
	"context"
	"sort"

	"github.com/luthersystems/cljsym/form"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/luthersystems/cljsym/analysis"

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(tracerName)
}

// State is the analysis of one revision of a file.
type State struct {
	Revision  uint64
	File      string
	Namespace string
	// Dialect is the default dialect of the file.
	Dialect Dialect
	// Definitions in source order.  Synthetic factory functions follow the
	// type that declares them.
	Definitions []*Definition
	// Imports in source order.  Groups read from the same form for
	// different dialects share a Range.
	Imports     []*ImportGroup
	Tree        *form.Tree
	Annotations *Annotations

	byName map[string][]*Definition
}

// AssignRoles runs role assignment over tree and returns the resulting
// state.  When ctx is cancelled the returned error wraps ErrCancelled and
// the state is nil.
func AssignRoles(ctx context.Context, tree *form.Tree) (*State, error) {
	ctx, span := tracer().Start(ctx, "analysis.AssignRoles",
		trace.WithAttributes(semconv.CodeFilepath(tree.File)))
	defer span.End()
	st, _, err := assign(ctx, tree, nil)
	return st, err
}

// assign runs one pass.  The annotations are returned even when the pass
// was cancelled so that a later pass can reuse completed subtrees.
func assign(ctx context.Context, tree *form.Tree, prior *Annotations) (*State, *Annotations, error) {
	p := newPass(ctx, tree, prior)
	if err := p.run(); err != nil {
		return nil, p.ann, err
	}
	return p.state(), p.ann, nil
}

func (p *pass) state() *State {
	st := &State{
		File:        p.tree.File,
		Namespace:   p.ns,
		Dialect:     DialectForFile(p.tree.File),
		Imports:     p.groups,
		Tree:        p.tree,
		Annotations: p.ann,
		byName:      make(map[string][]*Definition),
	}
	ids := make([]int, 0, len(p.ann.defs))
	for id := range p.ann.defs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		d := p.ann.defs[id]
		st.Definitions = append(st.Definitions, d)
		st.Definitions = append(st.Definitions, d.Factories()...)
	}
	for _, d := range st.Definitions {
		st.byName[d.Key.Name] = append(st.byName[d.Key.Name], d)
	}
	return st
}

// ImportsAt returns the import groups in effect at offset for dialect d,
// latest first.
func (s *State) ImportsAt(offset int, d Dialect) []*ImportGroup {
	i := sort.Search(len(s.Imports), func(i int) bool {
		return s.Imports[i].Range.Start >= offset
	})
	var out []*ImportGroup
	for i--; i >= 0; i-- {
		if g := s.Imports[i]; g.Applies(offset, d) {
			out = append(out, g)
		}
	}
	return out
}

// DefinitionsBefore returns the top-level definitions that start before
// offset, latest first.  Methods are excluded.
func (s *State) DefinitionsBefore(offset int) []*Definition {
	var out []*Definition
	for i := len(s.Definitions) - 1; i >= 0; i-- {
		d := s.Definitions[i]
		if d.Offset < offset && !d.IsMethod() {
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns the definitions of the file named name in source order.
func (s *State) Lookup(name string) []*Definition {
	return s.byName[name]
}

// DefinitionAt returns the definition whose name node is n.
func (s *State) DefinitionAt(n *form.Node) *Definition {
	if n == nil || s.Annotations.Role(n) != RoleName {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if d := s.Annotations.Definition(p); d != nil && d.NameNode == n {
			return d
		}
		if p.Kind == form.List {
			break
		}
	}
	return nil
}
