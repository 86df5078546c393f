// Copyright © 2024 The ELPS authors

package analysis

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser"
)

// analyze parses src and runs role assignment over it.
func analyze(t *testing.T, file, src string) *State {
	t.Helper()
	tree := parser.Parse(file, src)
	require.Empty(t, tree.Errors)
	st, err := AssignRoles(context.Background(), tree)
	require.NoError(t, err)
	return st
}

// find returns the nth (zero based) symbol or keyword with the given text.
func find(t *testing.T, st *State, text string, nth int) *form.Node {
	t.Helper()
	for _, n := range st.Tree.Nodes {
		if (n.Kind == form.Symbol || n.Kind == form.Keyword) && n.Text == text {
			if nth == 0 {
				return n
			}
			nth--
		}
	}
	require.FailNow(t, "node not found", text)
	return nil
}

func TestAssignRoles_Defn(t *testing.T) {
	st := analyze(t, "a.clj", `(defn foo "doc" [a {:keys [b] :as c}] (let [d a] d))`)
	ann := st.Annotations

	name := find(t, st, "foo", 0)
	def := name.Parent
	assert.Equal(t, RoleDef, ann.Role(def))
	assert.Equal(t, RoleName, ann.Role(name))
	assert.Equal(t, RoleArgVec, ann.Role(def.FirstChild(form.Vector)))
	for _, arg := range []string{"a", "b", "c"} {
		assert.Equal(t, RoleArg, ann.Role(find(t, st, arg, 0)), arg)
	}
	assert.Equal(t, RoleBnd, ann.Role(find(t, st, "d", 0)))
	assert.Equal(t, RoleNone, ann.Role(find(t, st, "d", 1)))
	assert.Equal(t, RoleNone, ann.Role(find(t, st, "a", 1)))

	require.Len(t, st.Definitions, 1)
	d := st.Definitions[0]
	assert.Equal(t, SymbolKey{Name: "foo", Namespace: "user", Type: "defn"}, d.Key)
	assert.Equal(t, []Prototype{{Args: []string{"a", "{:keys [b] :as c}"}}}, d.Prototypes)
	assert.Equal(t, "a.clj", d.File)
	assert.Equal(t, name.Range, d.NameRange)
	assert.Same(t, d, st.DefinitionAt(name))
}

func TestAssignRoles_Metadata(t *testing.T) {
	st := analyze(t, "a.clj", `
(defn- p [] 1)
(def ^:private x 1)
(def ^String s "a")
(defn ^long f [] 1)
(defn g (^String [] "") (^String [x] ""))
(defn h {:private true :tag Integer} [] 1)`)

	byName := func(name string) *Definition {
		defs := st.Lookup(name)
		require.Len(t, defs, 1, name)
		return defs[0]
	}
	assert.True(t, byName("p").IsPrivate())
	assert.True(t, byName("x").IsPrivate())
	assert.False(t, byName("s").IsPrivate())
	assert.Equal(t, "String", byName("s").TypeHint())
	assert.Equal(t, "long", byName("f").TypeHint())
	assert.Equal(t, "String", byName("g").TypeHint())
	assert.Len(t, byName("g").Prototypes, 2)
	assert.True(t, byName("h").IsPrivate())
	assert.Equal(t, "Integer", byName("h").TypeHint())
	assert.Nil(t, byName("x").Prototypes)
}

func TestAssignRoles_Flags(t *testing.T) {
	st := analyze(t, "a.clj", "'(a b) `(c ~d) #_(e) (comment (g)) (h)")
	ann := st.Annotations

	tests := []struct {
		sym   string
		flags Flags
	}{
		{"a", FlagQuoted},
		{"b", FlagQuoted},
		{"c", FlagQuoted},
		{"d", FlagUnquoted},
		{"e", FlagCommented},
		{"g", FlagCommented},
		{"h", 0},
	}
	for _, test := range tests {
		assert.Equal(t, test.flags, ann.Flags(find(t, st, test.sym, 0)), test.sym)
	}
}

func TestAssignRoles_QuotedDefIgnored(t *testing.T) {
	st := analyze(t, "a.clj", "'(defn a [x] x) (comment (defn b [y] y))")
	assert.Empty(t, st.Definitions)
	assert.Equal(t, RoleNone, st.Annotations.Role(find(t, st, "x", 0)))
}

func TestAssignRoles_Record(t *testing.T) {
	st := analyze(t, "a.clj", `(ns shapes) (defrecord Point [x y] Shape (area [this] x))`)
	ann := st.Annotations

	fields := find(t, st, "x", 0).Parent
	assert.Equal(t, RoleFieldVec, ann.Role(fields))
	assert.Equal(t, RoleField, ann.Role(find(t, st, "x", 0)))
	assert.Equal(t, RoleField, ann.Role(find(t, st, "y", 0)))
	assert.Equal(t, RoleName, ann.Role(find(t, st, "area", 0)))
	assert.Equal(t, RoleArg, ann.Role(find(t, st, "this", 0)))
	assert.Equal(t, RoleNone, ann.Role(find(t, st, "x", 1)))

	var keys []SymbolKey
	for _, d := range st.Definitions {
		keys = append(keys, d.Key)
	}
	want := []SymbolKey{
		{Name: "Point", Namespace: "shapes", Type: "defrecord"},
		{Name: "->Point", Namespace: "shapes", Type: "defn"},
		{Name: "map->Point", Namespace: "shapes", Type: "defn"},
		{Name: "area", Namespace: "shapes/Point", Type: TypeMethod},
	}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("definitions (-want +got):\n%s", diff)
	}
	factory := st.Definitions[1]
	assert.Equal(t, []Prototype{{Args: []string{"x", "y"}}}, factory.Prototypes)
	assert.Equal(t, "Point", factory.TypeHint())
	method := st.Definitions[3]
	assert.Equal(t, "defrecord", method.ParentType)
	assert.Equal(t, "shapes/Point", method.MemberOf())
}

func TestAssignRoles_Protocol(t *testing.T) {
	st := analyze(t, "a.clj", `(ns shapes) (defprotocol Shape "doc" (area [s]) (scale [s] [s k]))`)
	var methods []*Definition
	for _, d := range st.Definitions {
		if d.IsMethod() {
			methods = append(methods, d)
		}
	}
	require.Len(t, methods, 2)
	assert.Equal(t, "shapes", methods[0].MemberOf())
	assert.Equal(t, SymbolKey{Name: "Shape", Namespace: "shapes", Type: "defprotocol"}, methods[1].Parent)
	assert.Len(t, methods[1].Prototypes, 2)
}

func TestAssignRoles_HeadResolution(t *testing.T) {
	st := analyze(t, "a.clj", `
(ns a (:require [clojure.core :as c]))
(defn let [x] x)
(let [y 1] y)
(c/let [z 1] z)
(deftest my-test (is true))`)
	ann := st.Annotations
	assert.Equal(t, RoleNone, ann.Role(find(t, st, "y", 0)), "file definition shadows core let")
	assert.Equal(t, RoleBnd, ann.Role(find(t, st, "z", 0)))
	require.Len(t, st.Lookup("my-test"), 1)
	assert.Equal(t, "deftest", st.Lookup("my-test")[0].Key.Type)
}

func TestAssignRoles_Bindings(t *testing.T) {
	st := analyze(t, "a.clj", `
(letfn [(f [x] (g x)) (g [y] y)] (f 1))
(defmethod area :circle [{:keys [r]}] r)
(for [i (range) :let [j i] :when j] j)
(fn self ([a] a) ([a b] b))`)
	ann := st.Annotations
	assert.Equal(t, RoleName, ann.Role(find(t, st, "f", 0)))
	assert.Equal(t, RoleName, ann.Role(find(t, st, "g", 1)))
	assert.Equal(t, RoleArg, ann.Role(find(t, st, "x", 0)))
	assert.Equal(t, RoleArg, ann.Role(find(t, st, "y", 0)))
	assert.Equal(t, RoleName, ann.Role(find(t, st, "area", 0)))
	assert.Equal(t, RoleArg, ann.Role(find(t, st, "r", 0)))
	assert.Equal(t, RoleBnd, ann.Role(find(t, st, "i", 0)))
	assert.Equal(t, RoleBnd, ann.Role(find(t, st, "j", 0)))
	assert.Equal(t, RoleNone, ann.Role(find(t, st, "j", 1)))
	assert.Equal(t, RoleBody, ann.Role(find(t, st, "a", 0).Parent.Parent))
	assert.Equal(t, RoleArg, ann.Role(find(t, st, "b", 0)))
	assert.Empty(t, st.Definitions)
}

func TestAssignRoles_Keywords(t *testing.T) {
	st := analyze(t, "a.clj", `(ns a.b (:require [x.y :as xy]))
[::k ::xy/k :q/k :k #:m{:k 1} #::{:k 2} #::xy{:k 3}]`)
	ann := st.Annotations
	tests := []struct {
		text string
		nth  int
		ns   string
	}{
		{"::k", 0, "a.b"},
		{"::xy/k", 0, "x.y"},
		{":q/k", 0, "q"},
		{":k", 0, ""},
		{":k", 1, "m"},
		{":k", 2, "a.b"},
		{":k", 3, "x.y"},
	}
	for _, test := range tests {
		key := ann.KeywordKey(find(t, st, test.text, test.nth))
		assert.Equal(t, test.ns, key.Namespace, test.text)
		assert.Equal(t, "k", key.Name, test.text)
		assert.Equal(t, TypeKeyword, key.Type)
	}
}

func TestAssignRoles_ReaderConditional(t *testing.T) {
	st := analyze(t, "a.cljc", `#?(:clj (defn a []) :cljs (defn b [])) #?@(:cljs [(def c 1)]) (def d 2)`)
	ann := st.Annotations
	a, b := find(t, st, "a", 0), find(t, st, "b", 0)
	assert.Equal(t, Host, ann.Dialect(a))
	assert.Equal(t, Script, ann.Dialect(b))
	assert.Equal(t, Script, ann.Dialect(find(t, st, "c", 0)))
	assert.Equal(t, Host, ann.Dialect(find(t, st, "d", 0)))
	assert.Equal(t, RoleReaderCondStandard, ann.Role(a.Parent.Parent))
	assert.Equal(t, RoleReaderCondSplicing, ann.Role(find(t, st, "c", 0).Parent.Parent.Parent))
	assert.Len(t, st.Definitions, 4)
}

func TestAssignRoles_ScriptFile(t *testing.T) {
	st := analyze(t, "a.cljs", `(ns app) (defn f [] 1)`)
	assert.Equal(t, Script, st.Dialect)
	assert.Equal(t, Script, st.Annotations.Dialect(find(t, st, "f", 0)))
	assert.Equal(t, "app", st.Namespace)
}

func TestAssignRoles_Cancelled(t *testing.T) {
	tree := parser.Parse("a.clj", `(defn f [] 1)`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := AssignRoles(ctx, tree)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, st)
}
