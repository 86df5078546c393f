// Copyright © 2024 The ELPS authors

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filter(t *testing.T, paths []string, patterns ...string) []string {
	t.Helper()
	globs, err := compileExcludes(patterns)
	require.NoError(t, err)
	return filterExcludes(paths, globs)
}

func TestFilterExcludes_ByName(t *testing.T) {
	paths := []string{
		"src/app/core.clj",
		"src/app/user.clj",
		"lib/utils.cljc",
	}
	assert.Equal(t, []string{"src/app/core.clj", "lib/utils.cljc"}, filter(t, paths, "user.clj"))
}

func TestFilterExcludes_ByDirectory(t *testing.T) {
	paths := []string{
		"src/app/core.clj",
		"target/out.cljs",
		"target/sub/deep.cljs",
		"lib/utils.cljc",
	}
	assert.Equal(t, []string{"src/app/core.clj", "lib/utils.cljc"}, filter(t, paths, "target"))
}

func TestFilterExcludes_GlobPattern(t *testing.T) {
	paths := []string{
		"src/app/core.clj",
		"src/app/generated_foo.clj",
		"src/app/generated_bar.clj",
		"lib/utils.cljc",
	}
	assert.Equal(t, []string{"src/app/core.clj", "lib/utils.cljc"}, filter(t, paths, "generated_*"))
}

func TestFilterExcludes_MultiplePatterns(t *testing.T) {
	paths := []string{
		"src/app/core.clj",
		"target/out.cljs",
		"src/app/user.clj",
		"lib/utils.cljc",
	}
	assert.Equal(t, []string{"src/app/core.clj", "lib/utils.cljc"}, filter(t, paths, "target", "user.clj"))
}

func TestFilterExcludes_NoMatches(t *testing.T) {
	paths := []string{"src/app/core.clj", "lib/utils.cljc"}
	assert.Equal(t, paths, filter(t, paths, "nonexistent"))
}

func TestFilterExcludes_EmptyExcludes(t *testing.T) {
	paths := []string{"src/app/core.clj"}
	assert.Equal(t, paths, filterExcludes(paths, nil))
}

func TestMatchesAny(t *testing.T) {
	globs, err := compileExcludes([]string{"src/*/*.clj", "{target,out}"})
	require.NoError(t, err)

	assert.True(t, matchesAny("src/app/core.clj", globs), "full path")
	assert.False(t, matchesAny("src/app/nested/core.clj", globs), "* stops at separators")
	assert.True(t, matchesAny("project/out/core.cljs", globs), "component")
	assert.False(t, matchesAny("project/src/core.cljs", globs))
}

func TestCompileExcludes_Invalid(t *testing.T) {
	_, err := compileExcludes([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c.clj"}, splitPath("./a/b/c.clj"))
}

func TestExpandArgs(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{
		"src/app/core.clj",
		"src/app/ui.cljs",
		"src/app/README.md",
		"src/.hidden/x.clj",
		"target/gen.cljc",
	} {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("(ns x)"), 0o600))
	}

	got, err := expandArgs([]string{dir + "/...", "other.clj"}, []string{"target"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "src/app/core.clj"),
		filepath.Join(dir, "src/app/ui.cljs"),
		"other.clj",
	}, got)

	_, err = expandArgs([]string{filepath.Join(dir, "missing") + "/..."}, nil)
	assert.Error(t, err)
}
