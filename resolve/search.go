// Copyright © 2024 The ELPS authors

package resolve

import (
	"context"
	"strings"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/hostclass"
)

// Type of declarations that are not definitions or classes.
const (
	typeSpecialForm = "special form"
	typeDynamic     = "dynamic"
)

// search is one resolution or enumeration.  Resolution looks up a single
// name and stops after the first step producing a declaration;
// enumeration visits every name, innermost first, suppressing names
// already visited.
type search struct {
	r       *Resolver
	ctx     context.Context
	st      *analysis.State
	ann     *analysis.Annotations
	place   *form.Node
	offset  int
	dialect analysis.Dialect

	name  string
	visit func(*Declaration) bool

	decls       []*Declaration
	seen        map[string]bool
	stopped     bool
	coreVisited bool

	// inferring guards type inference against self-referential hints.
	// It is shared by the searches spawned while inferring.
	inferring map[int]bool
}

func (r *Resolver) newSearch(ctx context.Context, st *analysis.State, n *form.Node, d analysis.Dialect) *search {
	return &search{
		r:         r,
		ctx:       ctx,
		st:        st,
		ann:       st.Annotations,
		place:     n,
		offset:    n.Range.Start,
		dialect:   d,
		seen:      make(map[string]bool),
		inferring: make(map[int]bool),
	}
}

// sub starts a nested resolution of n sharing the inference guard.
func (s *search) sub(n *form.Node) *search {
	sub := s.r.newSearch(s.ctx, s.st, n, s.dialect)
	sub.inferring = s.inferring
	return sub
}

func (s *search) enumerating() bool {
	return s.visit != nil
}

// wants reports whether declarations named name are looked for.
func (s *search) wants(name string) bool {
	return s.enumerating() || name == s.name
}

// done reports whether the current step may stop early.
func (s *search) done() bool {
	return s.stopped || (!s.enumerating() && len(s.decls) > 0)
}

// emit offers d, visible under name.
func (s *search) emit(name string, d *Declaration) {
	if s.stopped || d == nil {
		return
	}
	if !s.enumerating() {
		if name == s.name {
			s.decls = append(s.decls, d)
		}
		return
	}
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	if !s.visit(d) {
		s.stopped = true
	}
}

func (s *search) resolve() Result {
	n := s.place
	flags := s.ann.Flags(n)
	if flags.Has(analysis.FlagCommented) {
		return Result{Skip: true}
	}
	switch n.Kind {
	case form.Keyword:
		key := s.ann.KeywordKey(n)
		return Result{Decls: []*Declaration{{
			Kind:  KindKeyword,
			Key:   key,
			File:  s.st.File,
			Range: n.Range,
			Node:  n,
		}}}
	case form.Symbol:
	default:
		return Result{}
	}
	skip := s.symbol(n)
	if len(s.decls) == 0 {
		return Result{Skip: skip || flags.Has(analysis.FlagQuoted)}
	}
	return Result{Decls: s.decls}
}

// symbol runs the resolution steps for a symbol.  It reports whether an
// empty outcome is to be suppressed.
func (s *search) symbol(n *form.Node) bool {
	if d := s.self(n); d != nil {
		s.decls = append(s.decls, d)
		return false
	}
	if key, ok := s.ann.Hint(n); ok {
		s.hinted(key)
		return false
	}
	text := n.Text
	switch {
	case text == "&":
		return true
	case len(text) > 1 && strings.HasSuffix(text, "#"):
		s.gensym(n)
		return true
	case text == "&form" || text == "&env":
		if s.inDefmacro() {
			s.decls = append(s.decls, s.local(n, analysis.TypeArgument))
			return false
		}
	case isAnonArg(text):
		if fn := anonFn(n); fn != nil {
			s.decls = append(s.decls, &Declaration{
				Kind:  KindLocal,
				Key:   analysis.SymbolKey{Name: text, Type: analysis.TypeArgument},
				File:  s.st.File,
				Range: fn.Range,
				Node:  fn,
			})
			return false
		}
	case analysis.IsSymbolicValue(text):
		return true
	case isMemberAccess(text):
		return s.memberAccess(n)
	case isConstructor(text):
		s.constructor(strings.TrimSuffix(text, "."))
		return true
	}
	if recv, scope, arity, ok := s.dotForm(n); ok {
		return s.dotMember(n.Name(), recv, scope, arity)
	}
	name, q := n.Name(), n.Namespace()
	s.name = name
	if q != "" {
		return s.qualified(n, q, name)
	}
	s.unqualified()
	return false
}

// unqualified runs steps 3 to 8 for s.name, stopping after the first step
// that finds a declaration.
func (s *search) unqualified() {
	steps := []func(){
		s.locals,
		s.fileDefs,
		s.imports,
		s.home,
		s.builtins,
		s.hostClasses,
	}
	for _, step := range steps {
		step()
		if s.done() {
			return
		}
	}
}

func (s *search) enumerate() {
	s.unqualified()
}

// self returns the declaration a declaring occurrence denotes: the
// occurrence itself.
func (s *search) self(n *form.Node) *Declaration {
	switch s.ann.Role(n) {
	case analysis.RoleName:
		if d := s.st.DefinitionAt(n); d != nil {
			return defDecl(d)
		}
		if isLetfnName(s.ann, n) {
			return s.local(n, analysis.TypeLetBinding)
		}
		if isMethodName(n) {
			return s.local(n, analysis.TypeMethod)
		}
	case analysis.RoleArg:
		return s.local(n, analysis.TypeArgument)
	case analysis.RoleBnd:
		return s.local(n, analysis.TypeLetBinding)
	case analysis.RoleField:
		return s.local(n, analysis.TypeField)
	}
	if isFnName(n) || isCatchBinding(n) {
		return s.local(n, analysis.TypeLetBinding)
	}
	return nil
}

func (s *search) local(n *form.Node, typ string) *Declaration {
	return &Declaration{
		Kind:  KindLocal,
		Key:   analysis.SymbolKey{Name: n.Name(), Type: typ},
		File:  s.st.File,
		Range: n.Range,
		Node:  n,
	}
}

func defDecl(d *analysis.Definition) *Declaration {
	return &Declaration{
		Kind:  KindDefinition,
		Key:   d.Key,
		File:  d.File,
		Range: d.NameRange,
		Node:  d.NameNode,
		Def:   d,
	}
}

// hinted resolves a target recorded by the namespace reader.
func (s *search) hinted(key analysis.SymbolKey) {
	s.name = key.Name
	switch key.Type {
	case analysis.TypeNamespace:
		s.namespace(key.Namespace)
	case analysis.TypeAlias:
		s.decls = append(s.decls, &Declaration{
			Kind:  KindAlias,
			Key:   key,
			File:  s.st.File,
			Range: s.place.Range,
			Node:  s.place,
		})
	case analysis.TypeDef:
		s.members(key.Namespace)
	case analysis.TypeJavaClass:
		s.emit(key.Name, s.classDecl(key.Name, true))
	case analysis.TypeJavaPackage:
		s.emit(key.Name, s.packageDecl(key.Name, true))
	default:
		if s.r.index == nil {
			return
		}
		d, err := s.r.index.FindDefinition(s.ctx, key)
		if err != nil {
			s.indexError(err, "find definition", key.String())
			return
		}
		if d != nil {
			s.emit(key.Name, defDecl(d))
		}
	}
}

// namespace declares ns by each file that declares it.
func (s *search) namespace(ns string) {
	key := analysis.SymbolKey{Name: ns, Namespace: ns, Type: analysis.TypeNamespace}
	var files []string
	if ns == s.st.Namespace {
		files = append(files, s.st.File)
	}
	for _, f := range s.filesDeclaring(ns) {
		if f != s.st.File {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		if _, ok := coreDialect(ns); ok {
			files = append(files, ns)
		}
	}
	for _, f := range files {
		s.decls = append(s.decls, &Declaration{Kind: KindNamespace, Key: key, File: f})
	}
}

// qualified runs step 2 for ns-or-alias/name.
func (s *search) qualified(n *form.Node, q, name string) bool {
	if s.dialect == analysis.Script && analysis.IsScriptGlobal(q) {
		return true
	}
	// :exclude and :rename only limit referred names; ns/name still reaches the var.
	if ns := s.alias(q); ns != "" {
		s.members(ns)
		return false
	}
	s.members(q)
	if len(s.decls) > 0 {
		return false
	}
	if fqn := s.classFor(q); fqn != "" {
		s.statics(n, fqn, name)
	}
	return false
}

// alias returns the namespace q is an alias of at the search's place.
func (s *search) alias(q string) string {
	for _, g := range s.st.ImportsAt(s.offset, s.dialect) {
		for i := len(g.Imports) - 1; i >= 0; i-- {
			imp := g.Imports[i]
			if !imp.IsPlatform() && imp.Alias == q {
				return imp.Namespace
			}
		}
	}
	return ""
}

// memberOf reports whether d is a var of ns.  Protocol methods are vars of
// the protocol's namespace; other methods exist only inside their type.
func memberOf(d *analysis.Definition, ns string) bool {
	if d.IsMethod() && d.ParentType != "defprotocol" {
		return false
	}
	return d.MemberOf() == ns
}

// members emits the vars of ns named s.name, or every var when
// enumerating.
func (s *search) members(ns string) {
	if ns == s.st.Namespace {
		for _, d := range s.st.Definitions {
			if memberOf(d, ns) && s.wants(d.Key.Name) && s.visibleDef(d) {
				s.emit(d.Key.Name, defDecl(d))
			}
		}
	}
	s.foreign(ns, func(d *analysis.Definition) (string, bool) {
		return d.Key.Name, true
	})
}

// foreign emits the vars of ns defined outside the resolved file under the
// local name chosen by local.  Private vars of another namespace are
// hidden, except in the script dialect which does not enforce privacy.
func (s *search) foreign(ns string, local func(*analysis.Definition) (string, bool)) {
	publicOnly := ns != s.st.Namespace
	checkPrivate := publicOnly && s.dialect != analysis.Script
	for _, d := range s.nsDefs(ns) {
		if s.stopped {
			return
		}
		if !memberOf(d, ns) || (checkPrivate && d.IsPrivate()) {
			continue
		}
		if name, ok := local(d); ok && s.wants(name) {
			s.emit(name, defDecl(d))
		}
	}
}

// nsDefs returns the definitions of the other files declaring ns.  The
// core namespaces fall back to the built-in catalog when no file is
// indexed for them.
func (s *search) nsDefs(ns string) []*analysis.Definition {
	var out []*analysis.Definition
	for _, f := range s.filesDeclaring(ns) {
		if f == s.st.File {
			continue
		}
		defs, err := s.r.index.FileDefinitions(s.ctx, f)
		if err != nil {
			s.indexError(err, "file definitions", f)
			continue
		}
		out = append(out, defs...)
	}
	if len(out) == 0 {
		if d, ok := coreDialect(ns); ok {
			out = analysis.CoreDefinitions(d)
		}
	}
	return out
}

func (s *search) filesDeclaring(ns string) []string {
	if s.r.index == nil {
		return nil
	}
	files, err := s.r.index.FilesDeclaring(s.ctx, ns)
	if err != nil {
		s.indexError(err, "files declaring", ns)
		return nil
	}
	return files
}

func (s *search) indexError(err error, op, subject string) {
	s.r.log.Debug().
		Err(err).
		Str("op", op).
		Str("subject", subject).
		Str("file", s.st.File).
		Msg("registry lookup failed")
}

func coreDialect(ns string) (analysis.Dialect, bool) {
	switch ns {
	case analysis.Host.CoreNamespace():
		return analysis.Host, true
	case analysis.Script.CoreNamespace():
		return analysis.Script, true
	}
	return analysis.Host, false
}

// visibleDef reports whether d exists in the search's dialect.
func (s *search) visibleDef(d *analysis.Definition) bool {
	if d.Node == nil {
		return true
	}
	return visibleIn(s.ann, d.Node, s.dialect)
}

// visibleIn reports whether n is read in dialect d.  Forms outside reader
// conditional branches are read in every dialect.
func visibleIn(ann *analysis.Annotations, n *form.Node, d analysis.Dialect) bool {
	if !inBranch(ann, n) {
		return true
	}
	return ann.Dialect(n) == d
}

// inBranch reports whether n lies in a reader conditional branch.
func inBranch(ann *analysis.Annotations, n *form.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		switch ann.Role(p) {
		case analysis.RoleReaderCondStandard, analysis.RoleReaderCondSplicing:
			return true
		}
	}
	return false
}

// fileDefs runs step 4: definitions of the file preceding the place, or
// all of them inside macro code, latest first.
func (s *search) fileDefs() {
	all := s.inMacroContext()
	defs := s.st.Definitions
	for i := len(defs) - 1; i >= 0 && !s.done(); i-- {
		d := defs[i]
		if !s.wants(d.Key.Name) || !memberOf(d, s.st.Namespace) {
			continue
		}
		if (!all && d.Offset >= s.offset) || !s.visibleDef(d) {
			continue
		}
		s.emit(d.Key.Name, defDecl(d))
	}
}

// inMacroContext reports whether the place is inside a defmacro or inside
// a call of a macro defined in the same file.
func (s *search) inMacroContext() bool {
	for a := s.place.Parent; a != nil; a = a.Parent {
		if d := s.ann.Definition(a); d != nil && d.Key.Type == "defmacro" {
			return true
		}
		h := a.Head()
		if h == nil || h == s.place || h.Kind != form.Symbol || h.Namespace() != "" {
			continue
		}
		for _, d := range s.st.Lookup(h.Name()) {
			if d.Key.Type == "defmacro" {
				return true
			}
		}
	}
	return false
}

func (s *search) inDefmacro() bool {
	for a := s.place.Parent; a != nil; a = a.Parent {
		if d := s.ann.Definition(a); d != nil && d.Key.Type == "defmacro" {
			return true
		}
	}
	return false
}

// imports runs step 5 over the imports in effect at the place, latest
// first.
func (s *search) imports() {
	for _, g := range s.st.ImportsAt(s.offset, s.dialect) {
		for i := len(g.Imports) - 1; i >= 0 && !s.done(); i-- {
			imp := g.Imports[i]
			if imp.IsPlatform() {
				s.platformImport(imp)
				continue
			}
			if _, core := coreDialect(imp.Namespace); core && imp.RefersByDefault() {
				s.coreVisited = true
			}
			s.referred(imp)
		}
		if s.done() {
			return
		}
	}
}

func (s *search) platformImport(imp *analysis.Import) {
	for _, short := range imp.Refer.Names() {
		if !s.wants(short) {
			continue
		}
		d := s.classDecl(imp.Namespace+"."+short, true)
		d.File = s.st.File
		d.Range = imp.Range
		s.emit(short, d)
	}
}

// referred emits the vars imp makes visible unqualified.
func (s *search) referred(imp *analysis.Import) {
	if s.enumerating() {
		s.foreign(imp.Namespace, func(d *analysis.Definition) (string, bool) {
			return imp.LocalName(d.Key.Name)
		})
		return
	}
	orig, ok := imp.Original(s.name)
	if !ok {
		return
	}
	s.foreign(imp.Namespace, func(d *analysis.Definition) (string, bool) {
		return s.name, d.Key.Name == orig
	})
}

// home runs step 6: the core namespace unless an import already decided
// which core vars are referred, then the file's namespace in other files.
func (s *search) home() {
	core := s.dialect.CoreNamespace()
	if !s.coreVisited && s.st.Namespace != core {
		s.foreign(core, func(d *analysis.Definition) (string, bool) {
			return d.Key.Name, true
		})
	}
	if s.done() {
		return
	}
	s.foreign(s.st.Namespace, func(d *analysis.Definition) (string, bool) {
		return d.Key.Name, true
	})
}

// builtins runs step 7: special forms and dynamic var names.
func (s *search) builtins() {
	if s.enumerating() {
		for _, name := range s.dialect.SpecialForms() {
			s.emit(name, specialForm(name))
		}
		return
	}
	switch {
	case s.dialect.IsSpecialForm(s.name):
		s.emit(s.name, specialForm(s.name))
	case analysis.IsDynamicName(s.name):
		s.emit(s.name, &Declaration{
			Kind: KindDynamic,
			Key:  analysis.SymbolKey{Name: s.name, Type: typeDynamic},
		})
	}
}

func specialForm(name string) *Declaration {
	return &Declaration{
		Kind: KindSpecialForm,
		Key:  analysis.SymbolKey{Name: name, Type: typeSpecialForm},
	}
}

// hostClasses runs step 8: fully qualified classes and packages, then the
// classes imported by default.
func (s *search) hostClasses() {
	if s.dialect != analysis.Host || s.r.classes == nil {
		return
	}
	if s.enumerating() {
		for _, pkg := range hostclass.DefaultPackages {
			p, ok := s.r.classes.FindPackage(pkg)
			if !ok {
				continue
			}
			for _, short := range p.Classes {
				s.emit(short, s.classDecl(pkg+"."+short, false))
			}
		}
		for short, fqn := range hostclass.DefaultImports {
			s.emit(short, s.classDecl(fqn, true))
		}
		return
	}
	if strings.Contains(s.name, ".") {
		if d := s.classDecl(s.name, false); d != nil {
			s.emit(s.name, d)
			return
		}
		s.emit(s.name, s.packageDecl(s.name, false))
		return
	}
	if fqn := s.defaultClass(s.name); fqn != "" {
		s.emit(s.name, s.classDecl(fqn, true))
	}
}

// defaultClass returns the class a short name denotes without an import.
func (s *search) defaultClass(short string) string {
	if s.r.classes != nil {
		for _, pkg := range hostclass.DefaultPackages {
			if _, ok := s.r.classes.FindClass(pkg + "." + short); ok {
				return pkg + "." + short
			}
		}
	}
	return hostclass.DefaultImports[short]
}

// classDecl declares the class fqn.  Classes unknown to the lookup are
// declared only when force is set.
func (s *search) classDecl(fqn string, force bool) *Declaration {
	var c *hostclass.Class
	if s.r.classes != nil {
		c, _ = s.r.classes.FindClass(fqn)
	}
	if c == nil && !force {
		return nil
	}
	return &Declaration{
		Kind:  KindClass,
		Key:   analysis.SymbolKey{Name: fqn, Type: analysis.TypeJavaClass},
		Class: c,
	}
}

func (s *search) packageDecl(name string, force bool) *Declaration {
	if !force {
		if s.r.classes == nil {
			return nil
		}
		if _, ok := s.r.classes.FindPackage(name); !ok {
			return nil
		}
	}
	return &Declaration{
		Kind: KindPackage,
		Key:  analysis.SymbolKey{Name: name, Type: analysis.TypeJavaPackage},
	}
}

// constructor resolves the class of a Name. constructor call.
func (s *search) constructor(name string) {
	s.name = name
	if strings.Contains(name, ".") {
		s.emit(name, s.classDecl(name, false))
		return
	}
	for _, step := range []func(){s.fileDefs, s.imports, s.hostClasses} {
		step()
		s.decls = onlyTypes(s.decls)
		if s.done() {
			return
		}
	}
}

func onlyTypes(decls []*Declaration) []*Declaration {
	out := decls[:0]
	for _, d := range decls {
		switch {
		case d.Kind == KindClass:
		case d.Kind == KindDefinition && (d.Key.Type == "deftype" || d.Key.Type == "defrecord"):
		default:
			continue
		}
		out = append(out, d)
	}
	return out
}

// gensym resolves an auto-gensym to its first occurrence in the enclosing
// syntax-quoted form.
func (s *search) gensym(n *form.Node) {
	var quoted *form.Node
	for p := n; p != nil; p = p.Parent {
		if p.HasPrefix(form.PrefixSyntaxQuote) {
			quoted = p
		}
	}
	if quoted == nil {
		return
	}
	var first *form.Node
	form.Walk(quoted, func(c *form.Node) bool {
		if first == nil && c.Kind == form.Symbol && c.Text == n.Text {
			first = c
		}
		return first == nil
	})
	s.decls = append(s.decls, s.local(first, analysis.TypeLetBinding))
}

func isAnonArg(text string) bool {
	if text == "%" || text == "%&" {
		return true
	}
	if len(text) < 2 || text[0] != '%' {
		return false
	}
	for _, c := range text[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func anonFn(n *form.Node) *form.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.HasPrefix(form.PrefixAnonFn) {
			return p
		}
	}
	return nil
}

func isMemberAccess(text string) bool {
	return len(text) > 1 && text[0] == '.' && text != ".." && !strings.Contains(text, "/")
}

func isConstructor(text string) bool {
	return len(text) > 1 && strings.HasSuffix(text, ".") && text != ".." && !strings.Contains(text, "/")
}

// isMethodName reports whether n names a method implemented by reify,
// proxy or extend forms, which define no var.
func isMethodName(n *form.Node) bool {
	l := n.Parent
	return l != nil && l.Kind == form.List && n.Index() == 0 &&
		l.Parent != nil && l.Parent.Kind == form.List
}

func isLetfnName(ann *analysis.Annotations, n *form.Node) bool {
	l := n.Parent
	if l == nil || l.Kind != form.List || n.Index() != 0 || l.Parent == nil {
		return false
	}
	v := l.Parent
	return ann.Role(v) == analysis.RoleBndVec && v.Parent != nil && v.Parent.HeadSymbol() == "letfn"
}

func isFnName(n *form.Node) bool {
	p := n.Parent
	return n.Annotates == nil && p != nil && n.Index() == 1 && analysis.IsFnAlike(p.HeadSymbol())
}

func isCatchBinding(n *form.Node) bool {
	p := n.Parent
	return n.Annotates == nil && p != nil && n.Index() == 2 && p.HeadSymbol() == "catch"
}

// isCallHead reports whether n is the operator of a list.
func isCallHead(n *form.Node) bool {
	return n.Annotates == nil && n.Parent != nil && n.Parent.Kind == form.List && n.Index() == 0
}
