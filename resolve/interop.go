// Copyright © 2024 The ELPS authors

package resolve

import (
	"strings"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/hostclass"
)

// Types of expressions whose class does not come from a class table.
var (
	literalTypes = map[form.LiteralType]string{
		form.LitString: "java.lang.String",
		form.LitRegex:  "java.util.regex.Pattern",
		form.LitChar:   "java.lang.Character",
		form.LitBool:   "java.lang.Boolean",
	}
	collectionTypes = map[form.Kind]string{
		form.Vector:  "clojure.lang.PersistentVector",
		form.Map:     "clojure.lang.PersistentArrayMap",
		form.Set:     "clojure.lang.PersistentHashSet",
		form.Keyword: "clojure.lang.Keyword",
	}
	dynamicTypes = map[string]string{
		"*out*": "java.io.Writer",
		"*err*": "java.io.Writer",
		"*in*":  "java.io.Reader",
		"*ns*":  "clojure.lang.Namespace",
	}
	primitives = map[string]bool{
		"long": true, "int": true, "short": true, "byte": true, "double": true,
		"float": true, "boolean": true, "char": true, "void": true,
		"longs": true, "ints": true, "doubles": true, "floats": true,
		"booleans": true, "chars": true, "bytes": true, "shorts": true,
		"objects": true,
	}
	// Forms that thread a value into their child calls.
	threading = map[string]bool{
		"doto": true, "->": true, "->>": true, "some->": true, "some->>": true,
		"cond->": true, "cond->>": true, "..": true,
	}
	// Forms whose value is the value of their last child.
	lastValue = map[string]bool{
		"do": true, "let": true, "let*": true, "binding": true, "locking": true,
		"with-open": true, "with-redefs": true, "when-let": true, "when-some": true,
		"when-first": true, "loop": true, "letfn": true,
	}
)

// memberAccess resolves the method of (.method x ...) or the field of
// (.-field x).  The receiver's type comes from inference.  A member that
// is not found is never reported as unresolved: class tables are partial.
func (s *search) memberAccess(n *form.Node) bool {
	if !isCallHead(n) || len(n.Parent.Children) < 2 || threaded(n.Parent) {
		return true
	}
	name := n.Text[1:]
	field := strings.HasPrefix(name, "-") && len(name) > 1
	if field {
		name = name[1:]
	}
	s.name = name
	list := n.Parent
	fqn, scope := s.receiver(list.Children[1])
	if fqn == "" {
		return true
	}
	if field {
		s.fields(fqn, scope, name)
	} else {
		s.methods(fqn, scope, name, len(list.Children)-2)
	}
	return true
}

// threaded reports whether call is a step of a threading form, whose
// receiver is the threaded value rather than the call's first argument.
func threaded(call *form.Node) bool {
	p := call.Parent
	return p != nil && p.Kind == form.List && call.Index() > 1 && threading[p.HeadSymbol()]
}

// dotForm recognizes the member position of (. recv member args),
// (. recv (member args)) and (.. recv m1 (m2 args)), returning the
// receiver type and scope and the call's arity.
func (s *search) dotForm(n *form.Node) (recv string, scope hostclass.Scope, arity int, ok bool) {
	p := n.Parent
	if p == nil || p.Kind != form.List || n.Annotates != nil {
		return "", hostclass.Any, 0, false
	}
	call := p
	idx := n.Index()
	arity = -1
	if idx == 0 && p.Parent != nil && p.Parent.Kind == form.List {
		call, idx = p.Parent, p.Index()
		arity = len(p.Children) - 1
	} else if idx == 0 {
		return "", hostclass.Any, 0, false
	}
	switch call.HeadSymbol() {
	case ".":
		if idx != 2 {
			return "", hostclass.Any, 0, false
		}
		if arity < 0 {
			arity = len(call.Children) - 3
		}
		recv, scope = s.receiver(call.Children[1])
		return recv, scope, arity, true
	case "..":
		if idx < 2 {
			return "", hostclass.Any, 0, false
		}
		if arity < 0 {
			arity = 0
		}
		recv, scope = s.chain(call, idx)
		return recv, scope, arity, true
	}
	return "", hostclass.Any, 0, false
}

// dotMember resolves a member named in a dot form.  Like memberAccess it
// never reports a member as unresolved.
func (s *search) dotMember(name, recv string, scope hostclass.Scope, arity int) bool {
	if recv == "" {
		return true
	}
	s.name = name
	if strings.HasPrefix(name, "-") && len(name) > 1 {
		s.name = name[1:]
		s.fields(recv, scope, s.name)
		return true
	}
	s.methods(recv, scope, name, arity)
	if len(s.decls) == 0 && arity == 0 {
		s.fields(recv, scope, name)
	}
	return true
}

// chain returns the receiver of the member at index idx of a (.. ) form.
func (s *search) chain(call *form.Node, idx int) (string, hostclass.Scope) {
	recv, scope := s.receiver(call.Children[1])
	for i := 2; i < idx && recv != ""; i++ {
		m := call.Children[i]
		arity := 0
		if m.Kind == form.List {
			arity = len(m.Children) - 1
			m = m.Head()
		}
		if m == nil || m.Kind != form.Symbol {
			return "", hostclass.Any
		}
		recv = s.returnType(recv, scope, m.Text, arity)
		scope = hostclass.Instance
	}
	return recv, scope
}

// receiver returns the class of a receiver expression.  A receiver naming
// a class selects its static members.
func (s *search) receiver(n *form.Node) (string, hostclass.Scope) {
	if n.Kind == form.Symbol && !n.HasReaderMacro() {
		sub := s.sub(n)
		sub.symbol(n)
		for _, d := range sub.decls {
			if d.Kind == KindClass {
				return d.Key.Name, hostclass.Static
			}
		}
	}
	return s.typeOf(n), hostclass.Instance
}

func (s *search) returnType(class string, scope hostclass.Scope, member string, arity int) string {
	if s.r.classes == nil {
		return ""
	}
	if strings.HasPrefix(member, "-") && len(member) > 1 {
		if fs := s.r.classes.FindFields(class, scope, member[1:]); len(fs) > 0 {
			return fs[0].Type
		}
		return ""
	}
	for _, m := range s.r.classes.FindMethods(class, scope, member, arity) {
		if m.Returns != "" {
			return m.Returns
		}
	}
	return ""
}

func (s *search) methods(class string, scope hostclass.Scope, name string, arity int) {
	if s.r.classes == nil {
		return
	}
	for _, m := range s.r.classes.FindMethods(class, scope, name, arity) {
		s.emit(s.name, &Declaration{
			Kind:   KindMethod,
			Key:    analysis.SymbolKey{Name: m.Name, Namespace: m.Class, Type: analysis.TypeMethod},
			Method: m,
		})
	}
}

func (s *search) fields(class string, scope hostclass.Scope, name string) {
	if s.r.classes == nil {
		return
	}
	for _, f := range s.r.classes.FindFields(class, scope, name) {
		s.emit(s.name, &Declaration{
			Kind:  KindField,
			Key:   analysis.SymbolKey{Name: f.Name, Namespace: f.Class, Type: analysis.TypeField},
			Field: f,
		})
	}
}

// statics resolves Class/member.  In operator position the member is a
// method; elsewhere a field, or a method used as a value.
func (s *search) statics(n *form.Node, class, name string) {
	if isCallHead(n) {
		s.methods(class, hostclass.Static, name, len(n.Parent.Children)-1)
		return
	}
	s.fields(class, hostclass.Static, name)
	if len(s.decls) == 0 {
		s.methods(class, hostclass.Static, name, hostclass.AnyArity)
	}
}

// classFor returns the fully qualified class a class name denotes at the
// place, or "" for primitives and unknown short names.
func (s *search) classFor(name string) string {
	switch {
	case name == "" || primitives[name] || strings.HasSuffix(name, "[]"):
		return ""
	case strings.Contains(name, "."):
		return name
	}
	for _, g := range s.st.ImportsAt(s.offset, s.dialect) {
		for i := len(g.Imports) - 1; i >= 0; i-- {
			if imp := g.Imports[i]; imp.IsPlatform() && imp.Refer.Has(name) {
				return imp.Namespace + "." + name
			}
		}
	}
	if s.dialect != analysis.Host {
		return ""
	}
	return s.defaultClass(name)
}

// typeOf infers the class of the value of n.  Results are cached per tree
// revision; re-entering the inference of a node yields "".
func (s *search) typeOf(n *form.Node) string {
	if n == nil {
		return ""
	}
	key := typeKey{tree: s.st.Tree, id: n.ID, dialect: s.dialect}
	if t, ok := s.r.types.Get(key); ok {
		return t
	}
	if s.inferring[n.ID] {
		return ""
	}
	s.inferring[n.ID] = true
	t := s.infer(n)
	delete(s.inferring, n.ID)
	s.r.types.Add(key, t)
	return t
}

func (s *search) infer(n *form.Node) string {
	if t := s.tagOf(n); t != "" {
		return t
	}
	if n.HasPrefix(form.PrefixVar) {
		return "clojure.lang.Var"
	}
	if s.dialect != analysis.Host {
		return ""
	}
	switch {
	case n.HasPrefix(form.PrefixAnonFn):
		return "clojure.lang.IFn"
	case n.HasPrefix(form.PrefixQuote) && n.Kind == form.Symbol:
		return "clojure.lang.Symbol"
	case n.HasPrefix(form.PrefixQuote) && n.Kind == form.List:
		return "clojure.lang.PersistentList"
	}
	switch n.Kind {
	case form.Literal:
		if n.Lit == form.LitNumber {
			return numberType(n.Text)
		}
		return literalTypes[n.Lit]
	case form.Symbol:
		return s.symbolType(n)
	case form.List:
		return s.callType(n)
	}
	return collectionTypes[n.Kind]
}

// tagOf returns the class named by ^Tag or ^{:tag Tag} metadata on n.
func (s *search) tagOf(n *form.Node) string {
	for _, m := range n.Metas() {
		switch m.Kind {
		case form.Symbol:
			return s.classFor(m.Text)
		case form.Literal:
			if m.Lit == form.LitString {
				return s.classFor(strings.Trim(m.Text, `"`))
			}
		case form.Map:
			for i := 0; i+1 < len(m.Children); i += 2 {
				if m.Children[i].IsKeyword(":tag") && m.Children[i+1].Kind == form.Symbol {
					return s.classFor(m.Children[i+1].Text)
				}
			}
		}
	}
	return ""
}

func numberType(text string) string {
	switch {
	case strings.HasSuffix(text, "M"):
		return "java.math.BigDecimal"
	case strings.HasSuffix(text, "N"):
		return "clojure.lang.BigInt"
	case strings.Contains(text, "/"):
		return "clojure.lang.Ratio"
	case strings.HasPrefix(text, "0x"), strings.HasPrefix(text, "-0x"):
		return "java.lang.Long"
	case strings.ContainsAny(text, ".eE"):
		return "java.lang.Double"
	}
	return "java.lang.Long"
}

func (s *search) symbolType(n *form.Node) string {
	if t, ok := dynamicTypes[n.Text]; ok {
		return t
	}
	sub := s.sub(n)
	sub.symbol(n)
	for _, d := range sub.decls {
		switch d.Kind {
		case KindLocal:
			return s.localType(d.Node)
		case KindDefinition:
			return s.defType(d.Def)
		case KindClass:
			return "java.lang.Class"
		case KindField:
			return d.Field.Type
		}
	}
	return ""
}

func (s *search) localType(n *form.Node) string {
	if n == nil {
		return ""
	}
	if t := s.tagOf(n); t != "" {
		return t
	}
	if isCatchBinding(n) {
		return s.classFor(n.Parent.Children[1].Text)
	}
	if init := initOf(s.ann, n); init != nil {
		return s.typeOf(init)
	}
	return ""
}

func (s *search) defType(d *analysis.Definition) string {
	if h := d.TypeHint(); h != "" {
		return s.classFor(h)
	}
	// (def x value) takes the type of its value.
	if n := d.Node; n != nil && d.Key.Type == "def" && len(n.Children) == 3 && d.NameNode == n.Children[1] {
		return s.typeOf(n.Children[2])
	}
	return ""
}

// callType infers the result class of a list form.
func (s *search) callType(n *form.Node) string {
	h := n.Head()
	if h == nil || h.Kind != form.Symbol {
		return ""
	}
	kids := n.Children
	text := h.Text
	switch {
	case text == "new" && len(kids) > 1:
		return s.classFor(kids[1].Text)
	case text == "var":
		return "clojure.lang.Var"
	case isConstructor(text):
		return s.classFor(strings.TrimSuffix(text, "."))
	case isMemberAccess(text):
		if len(kids) < 2 {
			return ""
		}
		recv, scope := s.receiver(kids[1])
		if recv == "" {
			return ""
		}
		return s.returnType(recv, scope, text[1:], len(kids)-2)
	case text == "." && len(kids) > 2:
		recv, scope := s.receiver(kids[1])
		m, arity := kids[2], len(kids)-3
		if m.Kind == form.List {
			m, arity = m.Head(), len(m.Children)-1
		}
		if recv == "" || m == nil || m.Kind != form.Symbol {
			return ""
		}
		return s.returnType(recv, scope, m.Text, arity)
	case text == ".." && len(kids) > 2:
		recv, scope := s.chain(n, len(kids)-1)
		m, arity := kids[len(kids)-1], 0
		if m.Kind == form.List {
			m, arity = m.Head(), len(m.Children)-1
		}
		if recv == "" || m == nil || m.Kind != form.Symbol {
			return ""
		}
		return s.returnType(recv, scope, m.Text, arity)
	case lastValue[text] && len(kids) > 1:
		return s.typeOf(kids[len(kids)-1])
	}
	sub := s.sub(h)
	sub.symbol(h)
	for _, d := range sub.decls {
		switch d.Kind {
		case KindMethod:
			return d.Method.Returns
		case KindDefinition:
			if hint := d.Def.TypeHint(); hint != "" {
				return s.classFor(hint)
			}
			for _, p := range d.Def.Prototypes {
				if p.TypeHint != "" && len(p.Args) == len(kids)-1 {
					return s.classFor(p.TypeHint)
				}
			}
		}
	}
	return ""
}
