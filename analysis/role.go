// Copyright © 2024 The ELPS authors

package analysis

import "github.com/luthersystems/cljsym/form"

// Role is the semantic classification of a form.
type Role uint8

const (
	RoleNone Role = iota
	RoleDef
	RoleNs
	RoleName
	RoleArgVec
	RoleBndVec
	RoleFieldVec
	RoleBody
	RoleReaderCondStandard
	RoleReaderCondSplicing
	RoleArg
	RoleBnd
	RoleField
	numRoles
)

func (r Role) String() string {
	names := [numRoles]string{
		RoleNone:               "none",
		RoleDef:                "def",
		RoleNs:                 "ns",
		RoleName:               "name",
		RoleArgVec:             "arg-vec",
		RoleBndVec:             "bnd-vec",
		RoleFieldVec:           "field-vec",
		RoleBody:               "body",
		RoleReaderCondStandard: "reader-cond",
		RoleReaderCondSplicing: "reader-cond-splicing",
		RoleArg:                "arg",
		RoleBnd:                "bnd",
		RoleField:              "field",
	}
	if r >= numRoles {
		return "unknown"
	}
	return names[r]
}

// Flags mark forms whose content is not evaluated normally.
type Flags uint8

const (
	FlagCommented Flags = 1 << iota
	FlagQuoted
	FlagUnquoted
)

// Has reports whether all bits of o are set in f.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// Annotations is the side table of one role assignment pass, indexed by
// form.Node.ID.  A published table is never modified.
type Annotations struct {
	roles    []Role
	flags    []Flags
	dialects []Dialect

	defs      map[int]*Definition
	hints     map[int]SymbolKey
	keywordNS map[int]string

	// Results of namespace forms, kept so that a later pass over the same
	// tree can reuse them.
	nsGroups map[int][]*ImportGroup
	nsName   map[int]string
}

func newAnnotations(n int) *Annotations {
	return &Annotations{
		roles:     make([]Role, n),
		flags:     make([]Flags, n),
		dialects:  make([]Dialect, n),
		defs:      make(map[int]*Definition),
		hints:     make(map[int]SymbolKey),
		keywordNS: make(map[int]string),
		nsGroups:  make(map[int][]*ImportGroup),
		nsName:    make(map[int]string),
	}
}

// Role returns the role of n.
func (a *Annotations) Role(n *form.Node) Role {
	if n == nil || n.ID >= len(a.roles) {
		return RoleNone
	}
	return a.roles[n.ID]
}

// Flags returns the flags of n, inherited from its enclosing forms.
func (a *Annotations) Flags(n *form.Node) Flags {
	if n == nil || n.ID >= len(a.flags) {
		return 0
	}
	return a.flags[n.ID]
}

// Dialect returns the dialect in effect at n.
func (a *Annotations) Dialect(n *form.Node) Dialect {
	if n == nil || n.ID >= len(a.dialects) {
		return Host
	}
	return a.dialects[n.ID]
}

// Definition returns the definition built for a Def list.
func (a *Annotations) Definition(n *form.Node) *Definition {
	if n == nil {
		return nil
	}
	return a.defs[n.ID]
}

// Hint returns the target precomputed for a symbol by the namespace reader.
func (a *Annotations) Hint(n *form.Node) (SymbolKey, bool) {
	if n == nil {
		return SymbolKey{}, false
	}
	k, ok := a.hints[n.ID]
	return k, ok
}

// KeywordKey returns the identity of a keyword occurrence.
func (a *Annotations) KeywordKey(n *form.Node) SymbolKey {
	return SymbolKey{Name: n.Name(), Namespace: a.keywordNS[n.ID], Type: TypeKeyword}
}

// copySubtree copies the entries of every node under n from src.
func (a *Annotations) copySubtree(src *Annotations, n *form.Node) {
	form.Walk(n, func(c *form.Node) bool {
		id := c.ID
		a.roles[id] = src.roles[id]
		a.flags[id] = src.flags[id]
		a.dialects[id] = src.dialects[id]
		if d, ok := src.defs[id]; ok {
			a.defs[id] = d
		}
		if h, ok := src.hints[id]; ok {
			a.hints[id] = h
		}
		if ns, ok := src.keywordNS[id]; ok {
			a.keywordNS[id] = ns
		}
		if g, ok := src.nsGroups[id]; ok {
			a.nsGroups[id] = g
		}
		if name, ok := src.nsName[id]; ok {
			a.nsName[id] = name
		}
		return true
	})
}
