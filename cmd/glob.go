// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/luthersystems/cljsym/parser"
)

// expandArgs expands arguments, resolving patterns ending with "/..." to all
// Clojure source files found recursively under the given directory, and
// drops paths matching any of the exclude patterns. Non-pattern arguments
// pass through unchanged.
func expandArgs(args []string, excludes []string) ([]string, error) {
	globs, err := compileExcludes(excludes)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, arg := range args {
		if dir, ok := strings.CutSuffix(arg, "/..."); ok {
			if dir == "" {
				dir = "."
			}
			files, err := findSourceFiles(dir)
			if err != nil {
				return nil, fmt.Errorf("expanding %s: %w", arg, err)
			}
			out = append(out, files...)
		} else {
			out = append(out, arg)
		}
	}
	return filterExcludes(out, globs), nil
}

func findSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if parser.IsSource(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func filterExcludes(paths []string, globs []glob.Glob) []string {
	if len(globs) == 0 {
		return paths
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !matchesAny(p, globs) {
			out = append(out, p)
		}
	}
	return out
}

// matchesAny reports whether a pattern matches the whole path, its base
// name, or any one of its directory components.
func matchesAny(path string, globs []glob.Glob) bool {
	slashed := filepath.ToSlash(path)
	for _, g := range globs {
		if g.Match(slashed) {
			return true
		}
		for _, c := range splitPath(slashed) {
			if g.Match(c) {
				return true
			}
		}
	}
	return false
}

func splitPath(path string) []string {
	var parts []string
	for _, c := range strings.Split(filepath.ToSlash(path), "/") {
		if c != "" && c != "." {
			parts = append(parts, c)
		}
	}
	return parts
}
