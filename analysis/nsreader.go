// Copyright © 2024 The ELPS authors

package analysis

import (
	"strings"

	"github.com/luthersystems/cljsym/form"
)

// namespace reads an ns-like form into import groups.  A form containing
// reader conditionals, or any top-level form of a multi-dialect file, is
// read once per dialect so that each dialect sees only its own branches.
func (p *pass) namespace(n *form.Node, head string) {
	p.nsForms[n.ID] = true
	dialects := []Dialect{p.dialect()}
	if p.branches == 0 && (p.multi || containsReaderCond(n)) {
		dialects = []Dialect{Script, Host}
	}
	end := scopeEnd(n)
	var groups []*ImportGroup
	for _, d := range dialects {
		r := &nsReader{p: p, dialect: d}
		r.read(n, head)
		if r.ns != "" {
			p.ann.nsName[n.ID] = r.ns
		}
		if len(r.imports) == 0 {
			continue
		}
		groups = append(groups, &ImportGroup{
			Imports:  r.imports,
			Dialect:  d,
			Range:    n.OuterRange(),
			ScopeEnd: end,
		})
	}
	if name, ok := p.ann.nsName[n.ID]; ok {
		p.setNamespace(name)
	}
	if len(groups) > 0 {
		p.ann.nsGroups[n.ID] = groups
		p.groups = append(p.groups, groups...)
	}
}

// scopeEnd returns the end of the innermost enclosing form that is not a
// reader conditional, or -1 for top-level forms.
func scopeEnd(n *form.Node) int {
	for a := n.Parent; a != nil; a = a.Parent {
		if a.Kind.IsColl() && !a.IsReaderCond() {
			return a.Range.End
		}
	}
	return -1
}

func containsReaderCond(n *form.Node) bool {
	found := false
	form.Walk(n, func(c *form.Node) bool {
		if c.IsReaderCond() {
			found = true
		}
		return !found
	})
	return found
}

// featureMatches reports whether a reader conditional feature is selected
// when reading for d.
func featureMatches(feature string, d Dialect) bool {
	switch feature {
	case ":default":
		return true
	case ":clj":
		return d == Host
	case ":cljs":
		return d == Script
	}
	return false
}

// rcChildren expands reader conditionals among kids for dialect d.  The
// first matching branch is chosen and splicing conditionals contribute the
// branch's children.
func rcChildren(kids []*form.Node, d Dialect) []*form.Node {
	var out []*form.Node
	for _, c := range kids {
		if c.HasPrefix(form.PrefixDiscard) {
			continue
		}
		if !c.IsReaderCond() {
			out = append(out, c)
			continue
		}
		branch := rcSelect(c, d)
		switch {
		case branch == nil:
		case c.HasPrefix(form.PrefixReaderCondSplicing) && branch.Kind.IsColl():
			out = append(out, rcChildren(branch.Children, d)...)
		default:
			out = append(out, rcChildren([]*form.Node{branch}, d)...)
		}
	}
	return out
}

func rcSelect(rc *form.Node, d Dialect) *form.Node {
	kids := rc.Children
	for i := 0; i+1 < len(kids); i += 2 {
		if kids[i].Kind == form.Keyword && featureMatches(kids[i].Text, d) {
			return kids[i+1]
		}
	}
	return nil
}

// nsReader reads one ns-like form for one dialect.
type nsReader struct {
	p       *pass
	dialect Dialect
	inNs    bool
	ns      string
	imports []*Import
}

func (r *nsReader) hint(n *form.Node, key SymbolKey) {
	if _, ok := r.p.ann.hints[n.ID]; !ok {
		r.p.ann.hints[n.ID] = key
	}
}

func (r *nsReader) add(imp *Import) {
	r.imports = append(r.imports, imp)
}

func (r *nsReader) read(n *form.Node, head string) {
	kids := rcChildren(n.Children, r.dialect)
	if len(kids) == 0 {
		return
	}
	args := kids[1:]
	switch head {
	case "ns":
		r.inNs = true
		r.readNs(args)
	case "in-ns":
		if len(args) > 0 && args[0].Kind == form.Symbol {
			r.setNs(args[0])
		}
	default:
		r.clause(head, args, n.Range)
	}
}

func (r *nsReader) setNs(name *form.Node) {
	if r.ns == "" {
		r.ns = name.Text
	}
	r.hint(name, SymbolKey{Name: name.Text, Namespace: name.Text, Type: TypeNamespace})
}

func (r *nsReader) readNs(args []*form.Node) {
	if len(args) == 0 || args[0].Kind != form.Symbol {
		return
	}
	r.setNs(args[0])
	for _, c := range args[1:] {
		if c.Kind != form.List {
			continue
		}
		kids := rcChildren(c.Children, r.dialect)
		if len(kids) == 0 {
			continue
		}
		first := kids[0]
		if first.Kind != form.Keyword && first.Kind != form.Symbol {
			continue
		}
		r.clause(first.Name(), kids[1:], c.Range)
	}
}

func (r *nsReader) clause(name string, args []*form.Node, rng form.Range) {
	switch name {
	case "import":
		r.readImport(args, rng)
	case "require":
		r.readRequire(KindRequire, args, rng)
	case "require-macros":
		r.readRequire(KindRequireMacro, args, rng)
	case "use", "use-macros":
		r.readRequire(KindUse, args, rng)
	case "refer":
		r.readRefer(KindRefer, args, rng)
	case "refer-clojure":
		r.readRefer(KindReferClojure, args, rng)
	case "alias":
		r.readAlias(args, rng)
	}
}

// accepts reports whether a collection item is written the way the
// enclosing form expects: bare inside ns, quoted in a standalone call.
func (r *nsReader) accepts(item *form.Node) bool {
	quoted := item.HasPrefix(form.PrefixQuote)
	return r.inNs == !quoted
}

func (r *nsReader) readImport(args []*form.Node, rng form.Range) {
	for _, item := range args {
		switch item.Kind {
		case form.Symbol:
			pkg, short := splitClass(item.Text)
			if short == "" {
				continue
			}
			r.hint(item, SymbolKey{Name: item.Text, Type: TypeJavaClass})
			r.add(&Import{Kind: KindImport, Namespace: pkg, Refer: NewNameSet(short), Range: rng})
		case form.List, form.Vector:
			if !r.accepts(item) {
				continue
			}
			kids := rcChildren(item.Children, r.dialect)
			if len(kids) == 0 || kids[0].Kind != form.Symbol {
				continue
			}
			pkg := kids[0].Text
			r.hint(kids[0], SymbolKey{Name: pkg, Type: TypeJavaPackage})
			for _, c := range kids[1:] {
				if c.Kind != form.Symbol {
					continue
				}
				r.hint(c, SymbolKey{Name: pkg + "." + c.Text, Type: TypeJavaClass})
				r.add(&Import{Kind: KindImport, Namespace: pkg, Refer: NewNameSet(c.Text), Range: rng})
			}
		}
	}
}

// splitClass splits a fully qualified class name at its last dot.
func splitClass(fqn string) (pkg, short string) {
	i := strings.LastIndexByte(fqn, '.')
	if i <= 0 || i == len(fqn)-1 {
		return "", ""
	}
	return fqn[:i], fqn[i+1:]
}

func (r *nsReader) readRequire(kind string, args []*form.Node, rng form.Range) {
	for _, item := range args {
		switch item.Kind {
		case form.Symbol:
			r.nsHint(item, item.Text)
			r.add(&Import{Kind: kind, Namespace: item.Text, Range: rng})
		case form.Vector, form.List:
			if !r.accepts(item) {
				continue
			}
			kids := rcChildren(item.Children, r.dialect)
			if isLibspec(item, kids) {
				r.libspec(kind, "", kids, rng)
				continue
			}
			if len(kids) == 0 || kids[0].Kind != form.Symbol {
				continue
			}
			prefix := kids[0].Text
			for _, c := range kids[1:] {
				switch c.Kind {
				case form.Symbol:
					r.nsHint(c, prefix+"."+c.Text)
					r.add(&Import{Kind: kind, Namespace: prefix + "." + c.Text, Range: rng})
				case form.Vector:
					r.libspec(kind, prefix, rcChildren(c.Children, r.dialect), rng)
				}
			}
		}
	}
}

// isLibspec distinguishes [ns :opt val ...] from a prefix list
// (prefix suffix [suffix :opt val]).
func isLibspec(item *form.Node, kids []*form.Node) bool {
	if len(kids) == 0 {
		return false
	}
	if item.Kind == form.Vector && len(kids) == 1 {
		return true
	}
	for _, c := range kids[1:] {
		if c.Kind == form.Keyword {
			return true
		}
	}
	return false
}

func (r *nsReader) nsHint(n *form.Node, ns string) {
	r.hint(n, SymbolKey{Name: ns, Namespace: ns, Type: TypeNamespace})
}

func (r *nsReader) libspec(kind, prefix string, kids []*form.Node, rng form.Range) {
	if len(kids) == 0 || kids[0].Kind != form.Symbol {
		return
	}
	ns := kids[0].Text
	if prefix != "" {
		ns = prefix + "." + ns
	}
	r.nsHint(kids[0], ns)
	imp := &Import{Kind: kind, Namespace: ns, Range: rng}
	r.options(imp, kids[1:])
	r.add(imp)
}

func (r *nsReader) readRefer(kind string, args []*form.Node, rng form.Range) {
	ns := r.dialect.CoreNamespace()
	if kind == KindRefer {
		if len(args) == 0 || args[0].Kind != form.Symbol {
			return
		}
		ns = args[0].Text
		r.nsHint(args[0], ns)
		args = args[1:]
	}
	imp := &Import{Kind: kind, Namespace: ns, Range: rng}
	r.options(imp, args)
	r.add(imp)
}

func (r *nsReader) readAlias(args []*form.Node, rng form.Range) {
	if len(args) < 2 || args[0].Kind != form.Symbol || args[1].Kind != form.Symbol {
		return
	}
	alias, ns := args[0].Text, args[1].Text
	r.hint(args[0], SymbolKey{Name: alias, Namespace: ns, Type: TypeAlias})
	r.nsHint(args[1], ns)
	r.add(&Import{Kind: KindAlias, Namespace: ns, Alias: alias, Range: rng})
}

// options reads the keyword options of a libspec or refer form.  Malformed
// option values are ignored.
func (r *nsReader) options(imp *Import, opts []*form.Node) {
	for i := 0; i+1 < len(opts); i += 2 {
		k, v := opts[i], opts[i+1]
		if k.Kind != form.Keyword {
			i--
			continue
		}
		switch k.Name() {
		case "as", "as-alias":
			if v.Kind == form.Symbol {
				imp.Alias = v.Text
				r.hint(v, SymbolKey{Name: v.Text, Namespace: imp.Namespace, Type: TypeAlias})
			}
		case "refer", "refer-macros":
			if v.IsKeyword(":all") {
				imp.Refer = All
				continue
			}
			r.names(&imp.Refer, imp.Namespace, v)
		case "only":
			r.names(&imp.Only, imp.Namespace, v)
		case "exclude":
			r.names(&imp.Exclude, imp.Namespace, v)
		case "rename":
			r.rename(imp, v)
		}
	}
}

func (r *nsReader) names(s *NameSet, ns string, v *form.Node) {
	if v.Kind != form.Vector && v.Kind != form.List {
		return
	}
	for _, c := range rcChildren(v.Children, r.dialect) {
		if c.Kind != form.Symbol {
			continue
		}
		s.add(c.Text)
		r.hint(c, SymbolKey{Name: c.Text, Namespace: ns, Type: TypeDef})
	}
}

func (r *nsReader) rename(imp *Import, m *form.Node) {
	if m.Kind != form.Map {
		return
	}
	kids := rcChildren(m.Children, r.dialect)
	for i := 0; i+1 < len(kids); i += 2 {
		orig, local := kids[i], kids[i+1]
		if orig.Kind != form.Symbol || local.Kind != form.Symbol {
			continue
		}
		if imp.Rename == nil {
			imp.Rename = make(map[string]string)
		}
		imp.Rename[orig.Text] = local.Text
		key := SymbolKey{Name: orig.Text, Namespace: imp.Namespace, Type: TypeDef}
		r.hint(orig, key)
		r.hint(local, key)
	}
}
