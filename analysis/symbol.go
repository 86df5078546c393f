// Copyright © 2024 The ELPS authors

package analysis

import (
	"github.com/luthersystems/cljsym/form"
)

// Key types used by the engine.  Definitions use the text of their defining
// head ("defn", "defmacro", ...) as type.
const (
	TypeNamespace   = "ns"
	TypeAlias       = "alias"
	TypeDef         = "def"
	TypeKeyword     = "keyword"
	TypeArgument    = "argument"
	TypeLetBinding  = "let-binding"
	TypeField       = "field"
	TypeMethod      = "method"
	TypeJavaClass   = "java class"
	TypeJavaPackage = "java package"
	TypeScriptClass = "#js"
)

// Metadata keys of a Definition.
const (
	MetaPrivate   = "private"
	MetaTypeHint  = "typeHint"
	MetaSynthetic = "synthetic"
	MetaDynamic   = "dynamic"
)

// SymbolKey identifies a resolvable entity.  Keys are comparable and used
// directly as map keys.
type SymbolKey struct {
	Name      string
	Namespace string
	Type      string
}

// Qualified returns "ns/name", or just the name for keys without namespace.
func (k SymbolKey) Qualified() string {
	if k.Namespace == "" {
		return k.Name
	}
	return k.Namespace + "/" + k.Name
}

func (k SymbolKey) String() string {
	return k.Type + ":" + k.Qualified()
}

// IsZero reports whether k is the zero key.
func (k SymbolKey) IsZero() bool {
	return k == SymbolKey{}
}

// Prototype is one arity of a callable definition.
type Prototype struct {
	Args     []string
	TypeHint string
}

// Definition is a top-level or member definition found in a file.
type Definition struct {
	Key        SymbolKey
	Prototypes []Prototype
	Meta       map[string]string

	File      string
	Offset    int
	NameRange form.Range

	// Owner of a method definition and the head that declared it.
	Parent     SymbolKey
	ParentType string

	// Node and NameNode are set for definitions read from a tree.  They are
	// nil for definitions loaded from stubs.
	Node     *form.Node
	NameNode *form.Node
}

// IsPrivate reports whether d is invisible outside its namespace.
func (d *Definition) IsPrivate() bool {
	return d.Key.Type == "defn-" || d.Meta[MetaPrivate] == "true"
}

// IsDynamic reports whether d was declared ^:dynamic.
func (d *Definition) IsDynamic() bool {
	return d.Meta[MetaDynamic] == "true"
}

// IsMethod reports whether d is a member of a type or protocol.
func (d *Definition) IsMethod() bool {
	return d.Key.Type == TypeMethod
}

// TypeHint returns the declared return or value type, if any.
func (d *Definition) TypeHint() string {
	return d.Meta[MetaTypeHint]
}

// MemberOf returns the namespace whose members include d.  Protocol methods
// are vars of the protocol's namespace while other methods only exist
// inside their owning type.
func (d *Definition) MemberOf() string {
	if d.IsMethod() && d.ParentType == "defprotocol" {
		return d.Parent.Namespace
	}
	return d.Key.Namespace
}

// Factories returns the constructor functions a deftype or defrecord
// implicitly defines.
func (d *Definition) Factories() []*Definition {
	if d.Key.Type != "deftype" && d.Key.Type != "defrecord" {
		return nil
	}
	mk := func(name string, protos []Prototype) *Definition {
		return &Definition{
			Key:        SymbolKey{Name: name, Namespace: d.Key.Namespace, Type: "defn"},
			Prototypes: protos,
			Meta:       map[string]string{MetaSynthetic: "true", MetaTypeHint: d.Key.Name},
			File:       d.File,
			Offset:     d.Offset,
			NameRange:  d.NameRange,
			Node:       d.Node,
			NameNode:   d.NameNode,
		}
	}
	var fields []string
	if len(d.Prototypes) > 0 {
		fields = d.Prototypes[0].Args
	}
	out := []*Definition{mk("->"+d.Key.Name, []Prototype{{Args: fields}})}
	if d.Key.Type == "defrecord" {
		out = append(out, mk("map->"+d.Key.Name, []Prototype{{Args: []string{"m"}}}))
	}
	return out
}

// Import directive kinds.
const (
	KindImport       = "import"
	KindRequire      = "require"
	KindRequireMacro = "require-macros"
	KindUse          = "use"
	KindRefer        = "refer"
	KindReferClojure = "refer-clojure"
	KindAlias        = "alias"
)

// NameSet is a set of names.  The All sentinel stands for every public name
// of a namespace.
type NameSet struct {
	names map[string]struct{}
	all   bool
}

// All is the distinguished set produced by ":refer :all".
var All = NameSet{all: true}

// NewNameSet returns a set holding names.
func NewNameSet(names ...string) NameSet {
	s := NameSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

// IsAll reports whether s is the All sentinel.
func (s NameSet) IsAll() bool { return s.all }

// Empty reports whether s holds no names and is not All.
func (s NameSet) Empty() bool { return !s.all && len(s.names) == 0 }

// Has reports whether name is in s.  All contains every name.
func (s NameSet) Has(name string) bool {
	if s.all {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// Names returns the explicit names of s in unspecified order.
func (s NameSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	return out
}

func (s *NameSet) add(name string) {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[name] = struct{}{}
}

// Import is one directive of a namespace form or a standalone import call.
type Import struct {
	Kind      string
	Namespace string
	Alias     string
	Refer     NameSet
	Only      NameSet
	Exclude   NameSet
	Rename    map[string]string // original name to local name
	Range     form.Range
}

// IsPlatform reports whether imp imports host classes rather than a
// namespace.
func (imp *Import) IsPlatform() bool {
	return imp.Kind == KindImport
}

// RefersByDefault reports whether imp refers every public name when no
// :only or :refer list is given.
func (imp *Import) RefersByDefault() bool {
	switch imp.Kind {
	case KindUse, KindRefer, KindReferClojure:
		return true
	}
	return false
}

// LocalName returns the name under which name is visible through imp, or
// false when imp does not make name visible unqualified.
func (imp *Import) LocalName(name string) (string, bool) {
	if imp.IsPlatform() || imp.Exclude.Has(name) {
		return "", false
	}
	if local, ok := imp.Rename[name]; ok {
		return local, true
	}
	switch {
	case imp.Refer.Has(name), imp.Only.Has(name):
		return name, true
	case imp.RefersByDefault() && imp.Only.Empty() && imp.Refer.Empty():
		return name, true
	}
	return "", false
}

// Original maps a local name back to the name it refers to through imp.
// Renamed originals are hidden under their own names.
func (imp *Import) Original(local string) (string, bool) {
	for orig, l := range imp.Rename {
		if l == local {
			return orig, true
		}
	}
	if _, renamed := imp.Rename[local]; renamed {
		return "", false
	}
	if _, ok := imp.LocalName(local); ok {
		return local, true
	}
	return "", false
}

// ImportGroup holds the imports read from one form for one dialect.
type ImportGroup struct {
	Imports  []*Import
	Dialect  Dialect
	Range    form.Range
	ScopeEnd int // offset past which the group no longer applies, or -1
}

// Applies reports whether g is in effect at offset for dialect d.
func (g *ImportGroup) Applies(offset int, d Dialect) bool {
	return g.Dialect == d && (g.ScopeEnd < 0 || offset < g.ScopeEnd)
}
