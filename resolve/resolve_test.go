// Copyright © 2024 The ELPS authors

package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/hostclass"
	"github.com/luthersystems/cljsym/internal/metrics"
	"github.com/luthersystems/cljsym/parser"
)

// fakeIndex serves the states of analyzed files.
type fakeIndex struct {
	states map[string]*analysis.State
	err    error
	panic  bool
}

func (x *fakeIndex) FilesDeclaring(ctx context.Context, ns string) ([]string, error) {
	if x.panic {
		panic("index exploded")
	}
	var files []string
	for f, st := range x.states {
		if st.Namespace == ns {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (x *fakeIndex) FileDefinitions(ctx context.Context, file string) ([]*analysis.Definition, error) {
	if x.err != nil {
		return nil, x.err
	}
	st, ok := x.states[file]
	if !ok {
		return nil, os.ErrNotExist
	}
	return st.Definitions, nil
}

func (x *fakeIndex) FindDefinition(ctx context.Context, key analysis.SymbolKey) (*analysis.Definition, error) {
	for _, st := range x.states {
		for _, d := range st.Definitions {
			if d.Key == key {
				return d, nil
			}
		}
	}
	return nil, nil
}

func analyze(t *testing.T, file, src string) *analysis.State {
	t.Helper()
	tree := parser.Parse(file, src)
	require.Empty(t, tree.Errors)
	st, err := analysis.AssignRoles(context.Background(), tree)
	require.NoError(t, err)
	return st
}

// workspace analyzes the given files and returns an index over them.
func workspace(t *testing.T, files map[string]string) *fakeIndex {
	t.Helper()
	x := &fakeIndex{states: make(map[string]*analysis.State)}
	for f, src := range files {
		x.states[f] = analyze(t, f, src)
	}
	return x
}

// find returns the nth (zero based) symbol or keyword with the given text.
func find(t *testing.T, st *analysis.State, text string, nth int) *form.Node {
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

func resolveAt(t *testing.T, r *Resolver, st *analysis.State, text string, nth int) Result {
	t.Helper()
	return r.Resolve(context.Background(), st, find(t, st, text, nth))
}

// summarize flattens a result into comparable lines.
func summarize(res Result) []string {
	out := []string{fmt.Sprintf("skip=%t", res.Skip)}
	for _, d := range res.Decls {
		id := -1
		if d.Node != nil {
			id = d.Node.ID
		}
		out = append(out, fmt.Sprintf("%s %s %s node=%d", d, d.File, d.Range, id))
	}
	return out
}

// single asserts that res holds one declaration and returns it.
func single(t *testing.T, res Result) *Declaration {
	t.Helper()
	require.Len(t, res.Decls, 1, "%v", res.Decls)
	return res.Decls[0]
}

func TestResolve_Shadowing(t *testing.T) {
	st := analyze(t, "a.clj", `(ns a) (def x 1) (let [x 2] x) x`)
	r := New(nil, hostclass.Default())

	d := single(t, resolveAt(t, r, st, "x", 2))
	assert.Equal(t, KindLocal, d.Kind)
	assert.Same(t, find(t, st, "x", 1), d.Node)
	assert.Equal(t, analysis.TypeLetBinding, d.Key.Type)

	d = single(t, resolveAt(t, r, st, "x", 3))
	assert.Equal(t, KindDefinition, d.Kind)
	assert.Equal(t, analysis.SymbolKey{Name: "x", Namespace: "a", Type: "def"}, d.Key)
	assert.Same(t, find(t, st, "x", 0), d.Node)
}

func TestResolve_Idempotent(t *testing.T) {
	st := analyze(t, "a.clj", `(ns a (:import java.util.Date))
(defn f [{:keys [a]} ^String s] (let [d (Date.)] (.getTime d) (.trim s) (str a)))`)
	r := New(nil, hostclass.Default())
	for _, n := range st.Tree.Nodes {
		if n.Kind != form.Symbol {
			continue
		}
		first := summarize(r.Resolve(context.Background(), st, n))
		second := summarize(r.Resolve(context.Background(), st, n))
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("resolving %s twice differs (-first +second):\n%s", n.Text, diff)
		}
	}
}

func TestResolve_QualificationBypass(t *testing.T) {
	st := analyze(t, "a.clj", `(let [str 1] (clojure.core/str str))`)
	r := New(nil, nil)
	d := single(t, resolveAt(t, r, st, "clojure.core/str", 0))
	assert.Equal(t, analysis.SymbolKey{Name: "str", Namespace: "clojure.core", Type: "defn"}, d.Key)
	assert.Equal(t, "clojure.core", d.File)

	d = single(t, resolveAt(t, r, st, "str", 1))
	assert.Equal(t, KindLocal, d.Kind)
}

func TestResolve_Exclusion(t *testing.T) {
	x := workspace(t, map[string]string{
		"ns/a.clj": `(ns ns.a) (defn foo []) (defn bar [])`,
	})
	st := analyze(t, "m.clj", `(ns m) (require '[ns.a :refer :all :exclude [foo]]) (foo) (bar)`)
	r := New(x, nil)

	res := resolveAt(t, r, st, "foo", 1)
	assert.Empty(t, res.Decls)
	assert.False(t, res.Skip)

	d := single(t, resolveAt(t, r, st, "bar", 0))
	assert.Equal(t, analysis.SymbolKey{Name: "bar", Namespace: "ns.a", Type: "defn"}, d.Key)
	assert.Equal(t, "ns/a.clj", d.File)
}

func TestResolve_Destructuring(t *testing.T) {
	st := analyze(t, "a.clj", `(defn f [{:keys [a b]}] a) b`)
	r := New(nil, nil)

	d := single(t, resolveAt(t, r, st, "a", 1))
	assert.Equal(t, KindLocal, d.Kind)
	assert.Equal(t, analysis.TypeArgument, d.Key.Type)
	assert.Same(t, find(t, st, "a", 0), d.Node)

	res := resolveAt(t, r, st, "b", 1)
	assert.Empty(t, res.Decls)
	assert.False(t, res.Skip)

	d = single(t, resolveAt(t, r, st, "b", 0))
	assert.Same(t, find(t, st, "b", 0), d.Node, "a binding resolves to itself")
}

func TestResolve_DialectBranching(t *testing.T) {
	st := analyze(t, "a.cljc", `#?(:clj (slurp "x") :cljs (clj->js {})) (clj->js 1) (slurp "y")`)
	r := New(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		text    string
		nth     int
		dialect analysis.Dialect
		ns      string
	}{
		{"host branch", "slurp", 0, analysis.Script, "clojure.core"},
		{"script branch", "clj->js", 0, analysis.Host, "cljs.core"},
		{"shared code as host", "slurp", 1, analysis.Host, "clojure.core"},
		{"shared code as script", "clj->js", 1, analysis.Script, "cljs.core"},
		{"host only name as script", "slurp", 1, analysis.Script, ""},
		{"script only name as host", "clj->js", 1, analysis.Host, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := r.ResolveIn(ctx, st, find(t, st, test.text, test.nth), test.dialect)
			if test.ns == "" {
				assert.Empty(t, res.Decls)
				return
			}
			d := single(t, res)
			assert.Equal(t, test.ns, d.Key.Namespace)
		})
	}
}

func TestResolve_Privacy(t *testing.T) {
	x := workspace(t, map[string]string{
		"lib.clj": `(ns lib) (defn- secret []) (def ^:private hidden 1) (defn open [])`,
	})
	src := `(ns m (:require [lib :as l])) (l/secret) (l/open) l/hidden`
	r := New(x, nil)

	host := analyze(t, "m.clj", src)
	assert.Empty(t, resolveAt(t, r, host, "l/secret", 0).Decls)
	assert.Empty(t, resolveAt(t, r, host, "l/hidden", 0).Decls)
	assert.Len(t, resolveAt(t, r, host, "l/open", 0).Decls, 1)

	script := analyze(t, "m.cljs", src)
	assert.Len(t, resolveAt(t, r, script, "l/secret", 0).Decls, 1)
	assert.Len(t, resolveAt(t, r, script, "l/hidden", 0).Decls, 1)
}

func TestResolve_OwnNamespaceOtherFiles(t *testing.T) {
	x := workspace(t, map[string]string{
		"app/impl.clj": `(in-ns 'app) (defn- helper [])`,
	})
	st := analyze(t, "app.clj", `(ns app) (load "impl") (helper)`)
	d := single(t, resolveAt(t, New(x, nil), st, "helper", 0))
	assert.Equal(t, "app/impl.clj", d.File)
}

func TestResolve_Locals(t *testing.T) {
	st := analyze(t, "a.clj", `
(def a 0)
(let [a a b a] [a b])
(letfn [(f [x] (g x)) (g [y] y)] (f 1))
(fn self [n] (self n))
(try (f) (catch Exception e e))
(defrecord P [fld] Object (toString [_] fld))
(for [i (range) :let [j i]] j)
(loop [k 1 m k] m)`)
	r := New(nil, nil)

	tests := []struct {
		name     string
		text     string
		nth      int
		declText string
		declNth  int
		kind     Kind
	}{
		{"init sees outer", "a", 2, "a", 0, KindDefinition},
		{"later init sees earlier", "a", 3, "a", 1, KindLocal},
		{"body", "a", 4, "a", 1, KindLocal},
		{"letfn forward", "g", 0, "g", 1, KindLocal},
		{"letfn body", "f", 1, "f", 0, KindLocal},
		{"fn name", "self", 1, "self", 0, KindLocal},
		{"catch", "e", 1, "e", 0, KindLocal},
		{"record field", "fld", 1, "fld", 0, KindLocal},
		{"for let", "j", 1, "j", 0, KindLocal},
		{"loop", "m", 1, "m", 0, KindLocal},
		{"loop sees all", "k", 1, "k", 0, KindLocal},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := single(t, resolveAt(t, r, st, test.text, test.nth))
			assert.Equal(t, test.kind, d.Kind)
			assert.Same(t, find(t, st, test.declText, test.declNth), d.Node)
		})
	}
}

func TestResolve_Imports(t *testing.T) {
	x := workspace(t, map[string]string{
		"lib.clj": `(ns lib) (defn open []) (defn close [])`,
	})
	st := analyze(t, "m.clj", `(ns m
  (:require [lib :as l :refer [open] :rename {close shut}])
  (:refer-clojure :exclude [map] :rename {filter keep-only}))
(open) (shut) (close) (map inc []) (keep-only odd? []) (filter odd? [])`)
	r := New(x, nil)

	tests := []struct {
		text string
		nth  int
		key  analysis.SymbolKey
	}{
		{"open", 1, analysis.SymbolKey{Name: "open", Namespace: "lib", Type: "defn"}},
		{"shut", 1, analysis.SymbolKey{Name: "close", Namespace: "lib", Type: "defn"}},
		{"keep-only", 1, analysis.SymbolKey{Name: "filter", Namespace: "clojure.core", Type: "defn"}},
		// Names written in the ns form resolve through their hints.
		{"open", 0, analysis.SymbolKey{Name: "open", Namespace: "lib", Type: "defn"}},
		{"l", 0, analysis.SymbolKey{Name: "l", Namespace: "lib", Type: analysis.TypeAlias}},
		{"lib", 0, analysis.SymbolKey{Name: "lib", Namespace: "lib", Type: analysis.TypeNamespace}},
	}
	for _, test := range tests {
		d := single(t, resolveAt(t, r, st, test.text, test.nth))
		assert.Equal(t, test.key, d.Key, test.text)
	}
	for _, text := range []string{"close", "map", "filter"} {
		assert.Empty(t, resolveAt(t, r, st, text, 1).Decls, text)
	}
}

func TestResolve_Builtins(t *testing.T) {
	st := analyze(t, "a.clj", `(if true (recur) [*foo* *out*]) ::k :x/y`)
	r := New(nil, nil)

	assert.Equal(t, KindSpecialForm, single(t, resolveAt(t, r, st, "if", 0)).Kind)
	assert.Equal(t, KindSpecialForm, single(t, resolveAt(t, r, st, "recur", 0)).Kind)
	assert.Equal(t, KindDynamic, single(t, resolveAt(t, r, st, "*foo*", 0)).Kind)

	out := single(t, resolveAt(t, r, st, "*out*", 0))
	assert.Equal(t, KindDefinition, out.Kind)
	assert.True(t, out.Def.IsDynamic())

	k := single(t, resolveAt(t, r, st, "::k", 0))
	assert.Equal(t, KindKeyword, k.Kind)
	assert.Equal(t, analysis.SymbolKey{Name: "k", Namespace: "user", Type: analysis.TypeKeyword}, k.Key)
	assert.Equal(t, "x", single(t, resolveAt(t, r, st, ":x/y", 0)).Key.Namespace)
}

func TestResolve_Skip(t *testing.T) {
	st := analyze(t, "a.clj", "'(undefined-a) (comment (undefined-b)) (Undefined.) (defn f [a & more]) (.foo undefined-c) x# `(let [y# 1] y#)")
	r := New(nil, hostclass.Default())

	for _, text := range []string{"undefined-a", "undefined-b", "Undefined.", "&", ".foo", "x#"} {
		res := resolveAt(t, r, st, text, 0)
		assert.Empty(t, res.Decls, text)
		assert.True(t, res.Skip, text)
	}
	res := resolveAt(t, r, st, "undefined-c", 0)
	assert.False(t, res.Skip)

	d := single(t, resolveAt(t, r, st, "y#", 1))
	assert.Same(t, find(t, st, "y#", 0), d.Node)
}

func TestUnresolved(t *testing.T) {
	st := analyze(t, "a.clj", "(ns a) (defn f [x] (g x) (clojure.string/foo x) '(h) (str x) (k))")
	r := New(nil, hostclass.Default())

	var names []string
	for _, n := range r.Unresolved(context.Background(), st) {
		names = append(names, n.Text)
	}
	assert.Equal(t, []string{"g", "k"}, names)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, r.Unresolved(ctx, st))
}

func TestResolve_AnonymousFunction(t *testing.T) {
	st := analyze(t, "a.clj", `(map #(+ % %2 %&) [])`)
	r := New(nil, nil)
	for _, text := range []string{"%", "%2", "%&"} {
		d := single(t, resolveAt(t, r, st, text, 0))
		assert.Equal(t, KindLocal, d.Kind, text)
		assert.True(t, d.Node.HasPrefix(form.PrefixAnonFn), text)
	}
}

func TestResolve_MacroForwardReference(t *testing.T) {
	st := analyze(t, "a.clj", `
(defmacro m [] (later &form))
(defmacro with-x [& body] body)
(with-x (later))
(defn g [] (later))
(defn later [])`)
	r := New(nil, nil)

	assert.Len(t, resolveAt(t, r, st, "later", 0).Decls, 1)
	assert.Equal(t, KindLocal, single(t, resolveAt(t, r, st, "&form", 0)).Kind)
	assert.Len(t, resolveAt(t, r, st, "later", 1).Decls, 1)
	assert.Empty(t, resolveAt(t, r, st, "later", 2).Decls)
}

func TestResolve_HostClasses(t *testing.T) {
	st := analyze(t, "a.clj", `(ns a (:import java.util.Date (java.io File)))
(String/valueOf 1) Math/PI (java.util.Date.) (Date.) (File. "x") Long BigDecimal
java.util.UUID java.util (Math/nope)`)
	r := New(nil, hostclass.Default())

	tests := []struct {
		text string
		kind Kind
		key  analysis.SymbolKey
	}{
		{"String/valueOf", KindMethod, analysis.SymbolKey{Name: "valueOf", Namespace: "java.lang.String", Type: analysis.TypeMethod}},
		{"Math/PI", KindField, analysis.SymbolKey{Name: "PI", Namespace: "java.lang.Math", Type: analysis.TypeField}},
		{"java.util.Date.", KindClass, analysis.SymbolKey{Name: "java.util.Date", Type: analysis.TypeJavaClass}},
		{"Date.", KindClass, analysis.SymbolKey{Name: "java.util.Date", Type: analysis.TypeJavaClass}},
		{"File.", KindClass, analysis.SymbolKey{Name: "java.io.File", Type: analysis.TypeJavaClass}},
		{"Long", KindClass, analysis.SymbolKey{Name: "java.lang.Long", Type: analysis.TypeJavaClass}},
		{"BigDecimal", KindClass, analysis.SymbolKey{Name: "java.math.BigDecimal", Type: analysis.TypeJavaClass}},
		{"java.util.UUID", KindClass, analysis.SymbolKey{Name: "java.util.UUID", Type: analysis.TypeJavaClass}},
		{"java.util", KindPackage, analysis.SymbolKey{Name: "java.util", Type: analysis.TypeJavaPackage}},
	}
	for _, test := range tests {
		d := single(t, resolveAt(t, r, st, test.text, 0))
		assert.Equal(t, test.kind, d.Kind, test.text)
		assert.Equal(t, test.key, d.Key, test.text)
	}
	assert.Empty(t, resolveAt(t, r, st, "Math/nope", 0).Decls)

	script := analyze(t, "a.cljs", `(js/alert "x") Long`)
	assert.True(t, resolveAt(t, r, script, "js/alert", 0).Skip)
	assert.Empty(t, resolveAt(t, r, script, "Long", 0).Decls)
}

func TestResolve_Interop(t *testing.T) {
	st := analyze(t, "a.clj", `
(let [s "abc"] (.substring s 1))
(.. "abc" (substring 1) toUpperCase)
(try nil (catch IllegalStateException e (.getMessage e)))
(.write *out* "x")
(.println System/out "x")
(defn f [^java.util.Date d] (.getTime d))
(. Math abs -1.5)
(. "abc" (trim))
(.-x (Object.))
(defn ^String g [] "") (.isEmpty (g))`)
	r := New(nil, hostclass.Default())

	tests := []struct {
		text  string
		nth   int
		class string
	}{
		{".substring", 0, "java.lang.String"},
		{"toUpperCase", 0, "java.lang.String"},
		{"substring", 0, "java.lang.String"},
		{".getMessage", 0, "java.lang.Throwable"},
		{".write", 0, "java.io.Writer"},
		{".println", 0, "java.io.PrintStream"},
		{".getTime", 0, "java.util.Date"},
		{"abs", 0, "java.lang.Math"},
		{"trim", 0, "java.lang.String"},
		{".isEmpty", 0, "java.lang.String"},
	}
	for _, test := range tests {
		d := single(t, resolveAt(t, r, st, test.text, test.nth))
		assert.Equal(t, KindMethod, d.Kind, test.text)
		assert.Equal(t, test.class, d.Method.Class, test.text)
	}
	res := resolveAt(t, r, st, ".-x", 0)
	assert.Empty(t, res.Decls)
	assert.True(t, res.Skip, "class tables are partial")
}

func TestResolve_InteropNotReported(t *testing.T) {
	st := analyze(t, "a.clj", `
(doto (java.util.ArrayList.) (.add 1))
(-> "abc" (.substring 1))
(.. System (getProperties) (get "a"))
(.frobnicate "abc")`)
	r := New(nil, hostclass.Default())

	for _, text := range []string{".add", ".substring", "getProperties", "get", ".frobnicate"} {
		res := resolveAt(t, r, st, text, 0)
		assert.Empty(t, res.Decls, text)
		assert.True(t, res.Skip, text)
	}
	assert.Empty(t, r.Unresolved(context.Background(), st))
}

func TestResolve_DefaultsSeeTheirPattern(t *testing.T) {
	st := analyze(t, "a.clj", `
(defn f [{:keys [a] :or {a 1}}] a)
(let [{:keys [b] :or {b 1}} {}] b)
(defn g [& {:keys [c] :or {c 2}}] c)
(defn h [x {:keys [d] :or {d x}}] d)`)
	r := New(nil, nil)

	for _, name := range []string{"a", "b", "c", "d"} {
		d := single(t, resolveAt(t, r, st, name, 1))
		assert.Equal(t, KindLocal, d.Kind, name)
		assert.Same(t, find(t, st, name, 0), d.Node, name)
	}
	d := single(t, resolveAt(t, r, st, "x", 1))
	assert.Same(t, find(t, st, "x", 0), d.Node, "earlier arguments stay visible")
	assert.Empty(t, r.Unresolved(context.Background(), st))
}

func TestResolve_ImplementedMethods(t *testing.T) {
	st := analyze(t, "a.clj", `(ns a)
(defprotocol P (foo [x]))
(reify Object (toString [_] "1"))
(proxy [Object] [] (toString [] "x"))
(extend-protocol P String (foo [this] this))
(extend-type Long P (foo [n] n))`)
	r := New(nil, hostclass.Default())

	for _, c := range []struct {
		text string
		nth  int
	}{{"toString", 0}, {"toString", 1}, {"foo", 1}, {"foo", 2}} {
		d := single(t, resolveAt(t, r, st, c.text, c.nth))
		assert.Equal(t, KindLocal, d.Kind, c.text)
		assert.Equal(t, analysis.TypeMethod, d.Key.Type, c.text)
		assert.Same(t, find(t, st, c.text, c.nth), d.Node, c.text)
	}
	assert.Empty(t, r.Unresolved(context.Background(), st))
}

func TestEnumerateVisible_Panic(t *testing.T) {
	x := workspace(t, map[string]string{"lib.clj": `(ns lib) (defn open [])`})
	st := analyze(t, "m.clj", `(ns m (:require [lib :refer :all])) here`)
	x.panic = true
	r := New(x, nil)
	done := r.EnumerateVisible(context.Background(), st, find(t, st, "here", 0), func(*Declaration) bool {
		return true
	})
	assert.False(t, done)
}

func TestResolve_InferenceTerminates(t *testing.T) {
	st := analyze(t, "a.clj", `(def x (.trim x)) (def ^Y y 1) (.foo y)`)
	r := New(nil, hostclass.Default())
	res := resolveAt(t, r, st, ".trim", 0)
	assert.Empty(t, res.Decls)
	assert.True(t, res.Skip)
	assert.True(t, resolveAt(t, r, st, ".foo", 0).Skip)
}

func TestResolve_TypeCache(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	st := analyze(t, "a.clj", `(let [s "abc"] (.trim s))`)
	r := New(nil, hostclass.Default(), WithMetrics(m), WithCacheSize(16))
	resolveAt(t, r, st, ".trim", 0)
	resolveAt(t, r, st, ".trim", 0)
	assert.Greater(t, testutil.ToFloat64(m.CacheHits.WithLabelValues("resolve_types")), 0.0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues(metrics.OutcomeResolved)))
}

func TestResolve_IndexFailures(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	x := workspace(t, map[string]string{"lib.clj": `(ns lib) (defn open [])`})
	st := analyze(t, "m.clj", `(ns m (:require [lib :as l])) (l/open) (str)`)

	x.err = errors.New("disk on fire")
	r := New(x, nil, WithMetrics(m))
	assert.Empty(t, resolveAt(t, r, st, "l/open", 0).Decls)
	assert.Len(t, resolveAt(t, r, st, "str", 0).Decls, 1)

	x.err = nil
	x.panic = true
	assert.Equal(t, Result{}, resolveAt(t, r, st, "l/open", 0))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues(metrics.OutcomeEmpty)))
}

func TestResolve_Span(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	st := analyze(t, "a.clj", `(str 1)`)
	resolveAt(t, New(nil, nil), st, "str", 0)
	spans := rec.Ended()
	require.NotEmpty(t, spans)
	last := spans[len(spans)-1]
	assert.Equal(t, "resolve.Resolve", last.Name())
}

func TestEnumerateVisible(t *testing.T) {
	st := analyze(t, "a.clj", `(defn top []) (defn f [a] (let [b 1 map 2] here)) (defn later [])`)
	r := New(nil, hostclass.Default())
	place := find(t, st, "here", 0)

	var names []string
	byName := make(map[string]*Declaration)
	done := r.EnumerateVisible(context.Background(), st, place, func(d *Declaration) bool {
		name := d.Key.Name
		if d.Kind == KindClass {
			name = d.Key.Name[strings.LastIndexByte(d.Key.Name, '.')+1:]
		}
		names = append(names, name)
		byName[name] = d
		return true
	})
	assert.True(t, done)
	require.GreaterOrEqual(t, len(names), 5)
	assert.Equal(t, []string{"map", "b", "a", "f", "top"}, names[:5])
	assert.NotContains(t, names, "later")

	assert.Equal(t, KindLocal, byName["map"].Kind, "local shadows core")
	assert.Equal(t, KindDefinition, byName["str"].Kind)
	assert.Equal(t, KindSpecialForm, byName["if"].Kind)
	assert.Equal(t, KindClass, byName["String"].Kind)

	seen := make(map[string]int)
	for _, n := range names {
		seen[n]++
	}
	for n, c := range seen {
		assert.Equal(t, 1, c, n)
	}
}

func TestEnumerateVisible_Stop(t *testing.T) {
	st := analyze(t, "a.clj", `(str 1)`)
	r := New(nil, nil)
	calls := 0
	done := r.EnumerateVisible(context.Background(), st, find(t, st, "str", 0), func(*Declaration) bool {
		calls++
		return calls < 3
	})
	assert.False(t, done)
	assert.Equal(t, 3, calls)
}
