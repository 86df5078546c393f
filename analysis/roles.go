// Copyright © 2024 The ELPS authors

package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/luthersystems/cljsym/form"
)

// ErrCancelled is returned, wrapping the context error, when a role
// assignment pass is interrupted.
var ErrCancelled = errors.New("role assignment cancelled")

// pass is one role assignment traversal over a tree.  A pass writes only to
// its own Annotations, so concurrent passes over the same tree never share
// mutable state.
type pass struct {
	ctx   context.Context
	tree  *form.Tree
	ann   *Annotations
	prior *Annotations

	dialects []Dialect
	branches int // depth of enclosing reader conditional branches
	multi    bool
	inert    int // depth of namespace forms being walked for flags only

	ns     string
	nsSet  bool
	groups []*ImportGroup

	seen    map[string]bool
	pending map[int]*Definition
	members map[int]bool
	nsForms map[int]bool
}

func newPass(ctx context.Context, tree *form.Tree, prior *Annotations) *pass {
	return &pass{
		ctx:      ctx,
		tree:     tree,
		ann:      newAnnotations(tree.Len()),
		prior:    prior,
		dialects: []Dialect{DialectForFile(tree.File)},
		multi:    IsMultiDialect(tree.File),
		ns:       DefaultNamespace,
		seen:     make(map[string]bool),
		pending:  make(map[int]*Definition),
		members:  make(map[int]bool),
		nsForms:  make(map[int]bool),
	}
}

// run traverses every top-level form.  On cancellation the partially filled
// table is returned with the error so that completed subtrees can be reused.
func (p *pass) run() error {
	for _, f := range p.tree.Forms {
		if err := p.visit(f, 0); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}
	return nil
}

func (p *pass) dialect() Dialect {
	return p.dialects[len(p.dialects)-1]
}

func (p *pass) visit(n *form.Node, inherited Flags) error {
	flags := flagsFor(n, inherited)
	p.ann.flags[n.ID] = flags
	p.ann.dialects[n.ID] = p.dialect()
	for _, pre := range n.Prefixes {
		if pre.Meta != nil {
			if err := p.visit(pre.Meta, flags); err != nil {
				return err
			}
		}
	}
	switch n.Kind {
	case form.Keyword:
		p.keyword(n)
		return nil
	case form.List, form.Vector, form.Map, form.Set:
	default:
		return nil
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}
	if n.Kind == form.List && p.reuse(n) {
		return nil
	}
	if n.IsReaderCond() {
		return p.readerCond(n, flags)
	}
	if n.Kind == form.List && p.inert == 0 && flags&(FlagQuoted|FlagCommented) == 0 {
		p.list(n)
		flags = p.ann.flags[n.ID]
	}
	if p.nsForms[n.ID] {
		p.inert++
		defer func() { p.inert-- }()
	}
	for _, c := range n.Children {
		if err := p.visit(c, flags); err != nil {
			return err
		}
	}
	p.finish(n)
	return nil
}

// finish marks a definition or namespace form once its whole subtree has
// been processed.  Only finished subtrees are reused by later passes.
func (p *pass) finish(n *form.Node) {
	if def := p.pending[n.ID]; def != nil {
		delete(p.pending, n.ID)
		p.ann.defs[n.ID] = def
		p.ann.roles[n.ID] = RoleDef
	}
	if p.nsForms[n.ID] {
		p.ann.roles[n.ID] = RoleNs
	}
}

// reuse copies a Def or Ns subtree completed by an earlier pass over the
// same tree.  The earlier pass reached the subtree in the same state, so the
// copied data is what this pass would compute.
func (p *pass) reuse(n *form.Node) bool {
	if p.prior == nil || p.inert > 0 {
		return false
	}
	switch p.prior.roles[n.ID] {
	case RoleDef, RoleNs:
	default:
		return false
	}
	p.ann.copySubtree(p.prior, n)
	form.Walk(n, func(c *form.Node) bool {
		if d := p.ann.defs[c.ID]; d != nil && !d.IsMethod() {
			p.seen[d.Key.Qualified()] = true
		}
		if name, ok := p.ann.nsName[c.ID]; ok {
			p.setNamespace(name)
		}
		p.groups = append(p.groups, p.ann.nsGroups[c.ID]...)
		return true
	})
	return true
}

func flagsFor(n *form.Node, inherited Flags) Flags {
	f := inherited
	for _, pre := range n.Prefixes {
		switch pre.Kind {
		case form.PrefixDiscard:
			f |= FlagCommented
		case form.PrefixQuote, form.PrefixSyntaxQuote:
			f = (f | FlagQuoted) &^ FlagUnquoted
		case form.PrefixUnquote, form.PrefixUnquoteSplicing:
			f = (f | FlagUnquoted) &^ FlagQuoted
		}
	}
	return f
}

// readerCond visits the branches of #?(...) pushing the dialect selected by
// each feature keyword.
func (p *pass) readerCond(n *form.Node, flags Flags) error {
	if n.HasPrefix(form.PrefixReaderCondSplicing) {
		p.ann.roles[n.ID] = RoleReaderCondSplicing
	} else {
		p.ann.roles[n.ID] = RoleReaderCondStandard
	}
	kids := n.Children
	for i := 0; i < len(kids); i++ {
		c := kids[i]
		if c.Kind != form.Keyword || i+1 >= len(kids) {
			if err := p.visit(c, flags); err != nil {
				return err
			}
			continue
		}
		if err := p.visit(c, flags); err != nil {
			return err
		}
		d, ok := DialectForFeature(c.Text)
		if !ok {
			d = p.dialect()
		}
		p.dialects = append(p.dialects, d)
		p.branches++
		err := p.visit(kids[i+1], flags)
		p.branches--
		p.dialects = p.dialects[:len(p.dialects)-1]
		if err != nil {
			return err
		}
		i++
	}
	return nil
}

// headNamespace determines which namespace a list head symbol refers to:
// an alias or explicit qualifier, a definition of the current file that
// shadows a core name, or the core namespace.
func (p *pass) headNamespace(head *form.Node) string {
	if q := head.Namespace(); q != "" {
		if ns := p.resolveAlias(q, head.Range.Start); ns != "" {
			return ns
		}
		return q
	}
	if p.seen[p.ns+"/"+head.Name()] {
		return p.ns
	}
	return p.dialect().CoreNamespace()
}

func isDefHead(name string, core bool) bool {
	if defAlike[name] && core {
		return true
	}
	return name != "defmethod" && name != "default" && name != "def" && strings.HasPrefix(name, "def")
}

func (p *pass) list(n *form.Node) {
	head := n.Head()
	if head == nil || head.Kind != form.Symbol || p.members[n.ID] {
		return
	}
	name := head.Name()
	core := p.headNamespace(head) == p.dialect().CoreNamespace()
	switch {
	case isDefHead(name, core):
		p.def(n, name)
	case !core:
	case nsAlike[name]:
		p.namespace(n, name)
	case letAlike[name]:
		p.bindings(n, name)
	case fnAlike[name]:
		p.prototypes(n)
	case name == "letfn":
		p.letfn(n)
	case name == "defmethod":
		p.defmethod(n)
	case typeAlike[name]:
		p.memberForms(n, nil)
	case name == "comment":
		p.ann.flags[n.ID] |= FlagCommented
	}
}

func (p *pass) def(n *form.Node, head string) {
	if len(n.Children) < 2 {
		return
	}
	nameNode := n.Children[1]
	if nameNode.Kind != form.Symbol || nameNode.HasReaderMacro() {
		return
	}
	typ := head
	if head == "create-ns" {
		typ = TypeNamespace
	}
	ns := p.ns
	if q := nameNode.Namespace(); q != "" {
		ns = q
		if a := p.resolveAlias(q, nameNode.Range.Start); a != "" {
			ns = a
		}
	}
	key := SymbolKey{Name: nameNode.Name(), Namespace: ns, Type: typ}
	p.ann.roles[nameNode.ID] = RoleName
	def := p.newDefinition(n, nameNode, key)
	p.readMetadata(n, nameNode, def)
	switch {
	case fieldAlike[head]:
		if v := n.FirstChild(form.Vector); v != nil {
			p.markVector(v, RoleFieldVec, RoleField)
			def.Prototypes = []Prototype{p.prototype(v)}
		}
	case noPrototypes[head]:
	default:
		for _, v := range p.prototypes(n) {
			def.Prototypes = append(def.Prototypes, p.prototype(v))
		}
	}
	commonHint(def)
	p.pending[n.ID] = def
	p.seen[key.Qualified()] = true
	if typeAlike[head] {
		p.memberForms(n, def)
	}
}

// Definition heads whose vectors are values rather than argument lists.
var noPrototypes = set(`def defonce defmulti defstruct defprotocol create-ns def-aset`)

func (p *pass) newDefinition(n, nameNode *form.Node, key SymbolKey) *Definition {
	return &Definition{
		Key:       key,
		Meta:      make(map[string]string),
		File:      p.tree.File,
		Offset:    n.OuterRange().Start,
		NameRange: nameNode.Range,
		Node:      n,
		NameNode:  nameNode,
	}
}

// readMetadata collects ^:private, ^Tag, ^{...} on the name and an attribute
// map following the name (after an optional docstring).
func (p *pass) readMetadata(n, nameNode *form.Node, def *Definition) {
	for _, m := range nameNode.Metas() {
		readMeta(m, def.Meta)
	}
	i := nameNode.Index() + 1
	if i < len(n.Children) && n.Children[i].Lit == form.LitString && i+1 < len(n.Children) {
		i++
	}
	if i < len(n.Children) && n.Children[i].Kind == form.Map && i+1 < len(n.Children) {
		readMeta(n.Children[i], def.Meta)
	}
}

func readMeta(m *form.Node, meta map[string]string) {
	switch m.Kind {
	case form.Symbol:
		meta[MetaTypeHint] = m.Text
	case form.Literal:
		if m.Lit == form.LitString {
			meta[MetaTypeHint] = strings.Trim(m.Text, `"`)
		}
	case form.Keyword:
		meta[m.Name()] = "true"
	case form.Map:
		kids := m.Children
		for i := 0; i+1 < len(kids); i += 2 {
			k, v := kids[i], kids[i+1]
			if k.Kind != form.Keyword {
				continue
			}
			switch k.Name() {
			case "tag":
				readMeta(v, meta)
			case MetaPrivate:
				if v.Lit == form.LitBool {
					meta[MetaPrivate] = v.Text
				}
			}
		}
	}
}

// commonHint uses the type hint shared by every prototype as the
// definition's hint when the name carries none.
func commonHint(def *Definition) {
	if def.TypeHint() != "" || len(def.Prototypes) == 0 {
		return
	}
	hint := def.Prototypes[0].TypeHint
	for _, proto := range def.Prototypes[1:] {
		if proto.TypeHint != hint {
			return
		}
	}
	if hint != "" {
		def.Meta[MetaTypeHint] = hint
	}
}

func (p *pass) prototype(v *form.Node) Prototype {
	var proto Prototype
	for _, c := range v.Children {
		if c.Kind == form.Symbol {
			proto.Args = append(proto.Args, c.Text)
		} else {
			proto.Args = append(proto.Args, p.tree.Text(c.OuterRange()))
		}
	}
	for _, m := range v.Metas() {
		if m.Kind == form.Symbol {
			proto.TypeHint = m.Text
		}
	}
	return proto
}

// prototypes marks the argument vectors of a function-like form: its first
// vector child and the leading vector of each arity body.
func (p *pass) prototypes(n *form.Node) []*form.Node {
	var vecs []*form.Node
	if v := n.FirstChild(form.Vector); v != nil {
		vecs = append(vecs, v)
	}
	for _, c := range n.Children[1:] {
		if c.Kind == form.List && len(c.Children) > 0 && c.Children[0].Kind == form.Vector {
			p.ann.roles[c.ID] = RoleBody
			vecs = append(vecs, c.Children[0])
		}
	}
	for _, v := range vecs {
		p.markVector(v, RoleArgVec, RoleArg)
	}
	return vecs
}

func (p *pass) markVector(v *form.Node, vecRole, bound Role) {
	p.ann.roles[v.ID] = vecRole
	WalkPattern(v, func(s *form.Node) bool {
		p.ann.roles[s.ID] = bound
		return true
	})
}

// memberForms handles the method lists of type and protocol forms.  When
// owner is set each method becomes a definition scoped under the owner's
// qualified name.
func (p *pass) memberForms(n *form.Node, owner *Definition) {
	for _, c := range n.Children[1:] {
		first := c.Head()
		if c.Kind != form.List || first == nil || first.Kind != form.Symbol {
			continue
		}
		p.members[c.ID] = true
		p.ann.roles[first.ID] = RoleName
		var vecs []*form.Node
		for _, v := range c.Children[1:] {
			switch {
			case v.Kind == form.Vector:
				vecs = append(vecs, v)
			case v.Kind == form.List && len(v.Children) > 0 && v.Children[0].Kind == form.Vector:
				p.ann.roles[v.ID] = RoleBody
				vecs = append(vecs, v.Children[0])
			}
		}
		for _, v := range vecs {
			p.markVector(v, RoleArgVec, RoleArg)
		}
		if owner == nil {
			continue
		}
		key := SymbolKey{Name: first.Name(), Namespace: owner.Key.Qualified(), Type: TypeMethod}
		def := p.newDefinition(c, first, key)
		def.Parent = owner.Key
		def.ParentType = owner.Key.Type
		for _, m := range first.Metas() {
			readMeta(m, def.Meta)
		}
		for _, v := range vecs {
			def.Prototypes = append(def.Prototypes, p.prototype(v))
		}
		commonHint(def)
		p.pending[c.ID] = def
	}
}

func (p *pass) bindings(n *form.Node, head string) {
	if len(n.Children) < 2 || n.Children[1].Kind != form.Vector {
		return
	}
	v := n.Children[1]
	p.ann.roles[v.ID] = RoleBndVec
	for _, b := range BindingPairs(v, forAlike[head]) {
		WalkPattern(b.Pattern, func(s *form.Node) bool {
			p.ann.roles[s.ID] = RoleBnd
			return true
		})
	}
}

func (p *pass) letfn(n *form.Node) {
	if len(n.Children) < 2 || n.Children[1].Kind != form.Vector {
		return
	}
	v := n.Children[1]
	p.ann.roles[v.ID] = RoleBndVec
	for _, fn := range v.Children {
		first := fn.Head()
		if first == nil || first.Kind != form.Symbol {
			continue
		}
		p.ann.roles[first.ID] = RoleName
		p.prototypes(fn)
	}
}

// defmethod: (defmethod multi dispatch [args] body) or with arity bodies
// following the dispatch value.
func (p *pass) defmethod(n *form.Node) {
	kids := n.Children
	if len(kids) > 1 && kids[1].Kind == form.Symbol {
		p.ann.roles[kids[1].ID] = RoleName
	}
	if len(kids) < 4 {
		return
	}
	if kids[3].Kind == form.Vector {
		p.markVector(kids[3], RoleArgVec, RoleArg)
		return
	}
	for _, c := range kids[3:] {
		if c.Kind == form.List && len(c.Children) > 0 && c.Children[0].Kind == form.Vector {
			p.ann.roles[c.ID] = RoleBody
			p.markVector(c.Children[0], RoleArgVec, RoleArg)
		}
	}
}

// keyword records the namespace a keyword is qualified with, resolving
// auto-resolved keywords and namespaced map literals.
func (p *pass) keyword(n *form.Node) {
	var ns string
	switch q := n.Namespace(); {
	case n.IsAutoKeyword() && q == "":
		ns = p.ns
	case n.IsAutoKeyword():
		ns = p.resolveAlias(q, n.Range.Start)
		if ns == "" {
			ns = q
		}
	case q != "":
		ns = q
	default:
		ns = p.mapNamespace(n)
	}
	if ns != "" {
		p.ann.keywordNS[n.ID] = ns
	}
}

// mapNamespace returns the namespace applied by a #:ns{} or #::{} map to an
// unqualified key.
func (p *pass) mapNamespace(n *form.Node) string {
	m := n.Parent
	if m == nil || m.Kind != form.Map || n.Annotates != nil || n.Index()%2 != 0 {
		return ""
	}
	pre := m.Prefix(form.PrefixNamespacedMap)
	if pre == nil {
		return ""
	}
	tag := pre.Tag
	switch {
	case tag == "::":
		return p.ns
	case strings.HasPrefix(tag, "::"):
		if ns := p.resolveAlias(tag[2:], n.Range.Start); ns != "" {
			return ns
		}
		return tag[2:]
	default:
		return strings.TrimPrefix(tag, ":")
	}
}

// resolveAlias finds the namespace bound to alias by the imports read so
// far that apply at offset in the current dialect.
func (p *pass) resolveAlias(alias string, offset int) string {
	d := p.dialect()
	for i := len(p.groups) - 1; i >= 0; i-- {
		g := p.groups[i]
		if !g.Applies(offset, d) {
			continue
		}
		for j := len(g.Imports) - 1; j >= 0; j-- {
			imp := g.Imports[j]
			if !imp.IsPlatform() && imp.Alias == alias {
				return imp.Namespace
			}
		}
	}
	return ""
}

func (p *pass) setNamespace(name string) {
	if p.nsSet {
		return
	}
	p.ns = name
	p.nsSet = true
}
