// Copyright © 2024 The ELPS authors

// Package parser reads Clojure, ClojureScript and cljc source into form
// trees.
package parser

import (
	"fmt"
	"os"

	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser/rdparser"
	"github.com/luthersystems/cljsym/parser/token"
)

// Extensions lists the file extensions the reader accepts.
var Extensions = []string{".clj", ".cljs", ".cljc", ".edn"}

// Parse reads src into a tree.  The tree is always usable; syntax problems
// are recorded in Tree.Errors.
func Parse(file, src string) *form.Tree {
	s := token.NewScanner(file, src)
	p := rdparser.New(s)
	forms := p.ParseProgram()
	t := form.NewTree(file, src, forms)
	t.Errors = p.Errors()
	return t
}

// ParseFile reads and parses the file at path.
func ParseFile(path string) (*form.Tree, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path supplied by the caller
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, string(b)), nil
}

// IsSource reports whether path has a Clojure source extension.
func IsSource(path string) bool {
	for _, ext := range Extensions {
		if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}
