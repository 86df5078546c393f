// Copyright © 2024 The ELPS authors

package hostclass

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/cljsym/internal/metrics"
)

func TestDefault(t *testing.T) {
	tab := Default()
	assert.Greater(t, tab.Len(), 40)

	c, ok := tab.FindClass("java.lang.String")
	require.True(t, ok)
	assert.Equal(t, "String", c.ShortName())
	assert.Equal(t, "java.lang", c.Package())

	_, ok = tab.FindClass("String")
	assert.False(t, ok)

	p, ok := tab.FindPackage("java.util")
	require.True(t, ok)
	assert.Contains(t, p.Classes, "Date")
	_, ok = tab.FindPackage("java")
	assert.False(t, ok)

	p, ok = tab.PackageOf("java.util.regex.Pattern")
	require.True(t, ok)
	assert.Equal(t, "java.util.regex", p.Name)
}

func TestFindMethods(t *testing.T) {
	tab := Default()
	tests := []struct {
		name   string
		class  string
		scope  Scope
		method string
		arity  int
		want   []string
	}{
		{"instance", "java.lang.String", Instance, "substring", 1, []string{"java.lang.String.substring"}},
		{"any arity", "java.lang.String", Instance, "substring", AnyArity, []string{"java.lang.String.substring", "java.lang.String.substring"}},
		{"static excluded", "java.lang.String", Instance, "valueOf", 1, nil},
		{"static", "java.lang.String", Static, "valueOf", 1, []string{"java.lang.String.valueOf"}},
		{"inherited", "java.lang.RuntimeException", Instance, "getMessage", 0, []string{"java.lang.Throwable.getMessage"}},
		{"object", "java.util.Date", Any, "hashCode", 0, []string{"java.lang.Object.hashCode"}},
		{"interface", "java.util.ArrayList", Instance, "size", 0, []string{"java.util.Collection.size"}},
		{"override", "java.lang.String", Instance, "length", 0, []string{"java.lang.String.length"}},
		{"varargs", "java.lang.String", Static, "format", 3, []string{"java.lang.String.format"}},
		{"unknown class", "com.example.Nope", Any, "x", AnyArity, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var got []string
			for _, m := range tab.FindMethods(test.class, test.scope, test.method, test.arity) {
				got = append(got, m.Class+"."+m.Name)
			}
			assert.Equal(t, test.want, got)
		})
	}
}

func TestFindMethods_Wildcard(t *testing.T) {
	tab := Default()
	ms := tab.FindMethods("java.lang.Math", Static, AnyName, AnyArity)
	assert.GreaterOrEqual(t, len(ms), 8)
	for _, m := range ms {
		assert.True(t, m.Static, m.Name)
	}
}

func TestFindFields(t *testing.T) {
	tab := Default()
	fs := tab.FindFields("java.lang.System", Static, "out")
	require.Len(t, fs, 1)
	assert.Equal(t, "java.io.PrintStream", fs[0].Type)
	assert.Empty(t, tab.FindFields("java.lang.System", Instance, "out"))
	assert.Len(t, tab.FindFields("java.math.BigDecimal", Static, AnyName), 2)
}

func TestSupertypes(t *testing.T) {
	tab := Default()
	assert.Equal(t, []string{
		"java.lang.IllegalArgumentException",
		"java.lang.RuntimeException",
		"java.lang.Exception",
		"java.lang.Throwable",
		"java.lang.Object",
	}, tab.Supertypes("java.lang.IllegalArgumentException"))
	assert.Equal(t, []string{"com.example.Nope"}, tab.Supertypes("com.example.Nope"))
}

func TestLoadAndMerge(t *testing.T) {
	src := `
classes:
  - name: com.example.Widget
    super: java.lang.Object
    methods:
      - {name: spin, params: [int], returns: com.example.Widget}
    fields:
      - {name: DEFAULT, type: com.example.Widget, static: true}
`
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))

	extra, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, extra.Len())

	tab := Default()
	n := tab.Len()
	tab.Merge(extra)
	assert.Equal(t, n+1, tab.Len())
	ms := tab.FindMethods("com.example.Widget", Instance, "spin", 1)
	require.Len(t, ms, 1)
	assert.Equal(t, "com.example.Widget", ms[0].Returns)
	assert.Len(t, tab.FindMethods("com.example.Widget", Instance, "toString", 0), 1)
	p, ok := tab.FindPackage("com.example")
	require.True(t, ok)
	assert.Equal(t, []string{"Widget"}, p.Classes)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader("classes:\n  - name: a.B\n    colour: red\n"))
	assert.Error(t, err)
	_, err = Load(strings.NewReader("classes:\n  - super: a.B\n"))
	assert.Error(t, err)
	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	tab, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, tab.Len())
}

func TestMemberCache(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	tab := Default(WithMetrics(m), WithCacheSize(8))
	tab.FindMethods("java.lang.String", Instance, "trim", 0)
	tab.FindMethods("java.lang.String", Instance, "trim", 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("hostclass_methods")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("hostclass_methods")))
}
