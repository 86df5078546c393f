// Copyright © 2024 The ELPS authors

package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/internal/metrics"
	"github.com/luthersystems/cljsym/parser"
	"github.com/luthersystems/cljsym/resolve"
	"github.com/luthersystems/cljsym/stub"
)

func newRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r, err := New(opts...)
	require.NoError(t, err)
	return r
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, src := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	}
}

func names(defs []*analysis.Definition) []string {
	var out []string
	for _, d := range defs {
		out = append(out, d.Key.Name)
	}
	return out
}

func TestRegistry_AddRemove(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	r := newRegistry(t, WithMetrics(m))

	require.NoError(t, r.Add(ctx, "a/one.clj", `(ns a) (defn f []) (defrecord R [x] P (m [_]))`))
	require.NoError(t, r.Add(ctx, "a/two.clj", `(in-ns 'a) (def g 1)`))
	require.NoError(t, r.Add(ctx, "b.clj", `(ns b) (defn- h [])`))
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilesIndexed))
	assert.Equal(t, []string{"a", "b"}, r.Namespaces())

	files, err := r.FilesDeclaring(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one.clj", "a/two.clj"}, files)

	defs, err := r.FileDefinitions(ctx, "a/two.clj")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "a/two.clj", defs[0].File)
	assert.Nil(t, defs[0].Node, "indexed definitions are detached from the tree")

	d, err := r.FindDefinition(ctx, analysis.SymbolKey{Name: "h", Namespace: "b", Type: "defn-"})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.IsPrivate())

	method, err := r.FindDefinition(ctx, analysis.SymbolKey{Name: "m", Namespace: "a/R", Type: analysis.TypeMethod})
	require.NoError(t, err)
	if assert.NotNil(t, method) {
		assert.Equal(t, "a/one.clj", method.File)
	}

	// Re-adding a file replaces its stub and namespace.
	require.NoError(t, r.Add(ctx, "b.clj", `(ns c) (defn k [])`))
	assert.Equal(t, []string{"a", "c"}, r.Namespaces())

	require.NoError(t, r.Remove(ctx, "a/one.clj"))
	files, err = r.FilesDeclaring(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/two.clj"}, files)
	_, err = r.FileDefinitions(ctx, "a/one.clj")
	assert.ErrorIs(t, err, ErrNotIndexed)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesIndexed))
}

func TestRegistry_CoreCatalog(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	for _, d := range []analysis.Dialect{analysis.Host, analysis.Script} {
		ns := d.CoreNamespace()
		files, err := r.FilesDeclaring(ctx, ns)
		require.NoError(t, err)
		assert.Equal(t, []string{ns}, files)
		defs, err := r.FileDefinitions(ctx, ns)
		require.NoError(t, err)
		assert.Equal(t, analysis.CoreDefinitions(d), defs)
	}
	d, err := r.FindDefinition(ctx, analysis.SymbolKey{Name: "map", Namespace: "clojure.core", Type: "defn"})
	require.NoError(t, err)
	require.NotNil(t, d)

	// An indexed source of a core namespace replaces the catalog.
	require.NoError(t, r.Add(ctx, "clojure/core.clj", `(ns clojure.core) (defn map [])`))
	files, err := r.FilesDeclaring(ctx, "clojure.core")
	require.NoError(t, err)
	assert.Equal(t, []string{"clojure/core.clj"}, files)
}

func TestRegistry_Definitions(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	require.NoError(t, r.Add(ctx, "b.clj", `(ns b) (def map 1)`))
	require.NoError(t, r.Add(ctx, "a.clj", `(ns a) (defn map [f])`))

	defs, err := r.Definitions(ctx, "map")
	require.NoError(t, err)
	var qualified []string
	for _, d := range defs {
		qualified = append(qualified, d.Key.Qualified())
	}
	require.GreaterOrEqual(t, len(qualified), 3)
	assert.Equal(t, []string{"a/map", "b/map", "clojure.core/map"}, qualified[:3],
		"indexed files come first in path order")

	defs, err = r.Definitions(ctx, "no-such-var")
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestRegistry_ResolvesAcrossFiles(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	require.NoError(t, r.Add(ctx, "lib.clj", `(ns lib) (defn open [])`))

	st, err := analysis.AssignRoles(ctx, parser.Parse("main.clj", `(ns main (:require [lib :as l])) (l/open) (map inc [])`))
	require.NoError(t, err)
	res := resolve.New(r, nil)

	var open, mapped resolve.Result
	for _, n := range st.Tree.Nodes {
		switch n.Text {
		case "l/open":
			open = res.Resolve(ctx, st, n)
		case "map":
			mapped = res.Resolve(ctx, st, n)
		}
	}
	require.Len(t, open.Decls, 1)
	assert.Equal(t, "lib.clj", open.Decls[0].File)
	require.Len(t, mapped.Decls, 1)
	assert.Equal(t, "clojure.core", mapped.Decls[0].File)
}

func TestRegistry_Store(t *testing.T) {
	ctx := context.Background()
	store, err := stub.OpenStore(filepath.Join(t.TempDir(), "stubs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := metrics.New(prometheus.NewRegistry())
	r := newRegistry(t, WithStore(store), WithMetrics(m), WithCacheSize(1))
	require.NoError(t, r.Add(ctx, "a.clj", `(ns a) (defn f [])`))
	require.NoError(t, r.Add(ctx, "b.clj", `(ns b) (defn g [])`))

	// The second stub evicted the first; reading it goes back to the store.
	defs, err := r.FileDefinitions(ctx, "a.clj")
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, names(defs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("registry_stubs")))
	defs, err = r.FileDefinitions(ctx, "a.clj")
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, names(defs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("registry_stubs")))

	// A fresh registry over the same store knows the files without
	// re-analyzing them.
	reopened := newRegistry(t, WithStore(store))
	require.NoError(t, reopened.Open(ctx))
	assert.Equal(t, []string{"a.clj", "b.clj"}, reopened.Files())
	d, err := reopened.FindDefinition(ctx, analysis.SymbolKey{Name: "g", Namespace: "b", Type: "defn"})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "b.clj", d.File)

	require.NoError(t, reopened.Remove(ctx, "b.clj"))
	_, err = store.Load(ctx, "b.clj")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithExcludes_Invalid(t *testing.T) {
	_, err := New(WithExcludes("[unclosed"))
	assert.Error(t, err)
}

func TestScanWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/app/core.clj":      `(ns app.core) (defn main [])`,
		"src/app/util.cljc":     `(ns app.util) (defn helper [])`,
		"src/app/ui.cljs":       `(ns app.ui) (defn render [])`,
		"src/app/README.md":     `not clojure`,
		".git/hooks/x.clj":      `(ns hidden)`,
		"node_modules/m/x.cljs": `(ns vendored)`,
		"gen/out.clj":           `(ns generated)`,
		"src/app/skip_me.clj":   `(ns skipped)`,
	})
	require.NoError(t, os.Symlink(filepath.Join(root, "missing.clj"), filepath.Join(root, "src", "dangling.clj")))

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := newRegistry(t, WithExcludes("gen/**", "**/skip_*"), WithWorkers(2))
	res, err := r.ScanWorkspace(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Indexed: 3, Failed: 1}, res)
	assert.Equal(t, []string{"app.core", "app.ui", "app.util"}, r.Namespaces())

	var scan sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == "registry.ScanWorkspace" {
			scan = s
		}
	}
	require.NotNil(t, scan)
}

func TestScanWorkspace_Errors(t *testing.T) {
	r := newRegistry(t)
	_, err := r.ScanWorkspace(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.clj": `(ns a)`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ScanWorkspace(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.clj": `(ns a)`})
	r := newRegistry(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, root, WithDebounce(10*time.Millisecond)) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	path := filepath.Join(root, "src", "b.clj")
	assert.Eventually(t, func() bool {
		// Rewrite until the watch is established and has seen an event.
		_ = os.WriteFile(path, []byte(`(ns b) (defn f [])`), 0o600)
		files, _ := r.FilesDeclaring(ctx, "b")
		return len(files) == 1
	}, 5*time.Second, 50*time.Millisecond)

	nested := filepath.Join(root, "src", "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(nested, "c.clj"), []byte(`(ns c)`), 0o600)
		files, _ := r.FilesDeclaring(ctx, "c")
		return len(files) == 1
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		files, _ := r.FilesDeclaring(ctx, "b")
		return len(files) == 0
	}, 5*time.Second, 20*time.Millisecond)
}
