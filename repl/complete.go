// Copyright © 2018 The ELPS authors

package repl

import (
	"sort"
	"strings"

	"github.com/luthersystems/cljsym/registry"
)

// shellCompleter implements readline.AutoCompleter.  It completes command
// names, the namespaces of the index after ns, and indexed files after
// resolve and visible.
type shellCompleter struct {
	registry *registry.Registry
}

func (c *shellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	start := pos
	for start > 0 {
		ch := line[start-1]
		if ch == ' ' || ch == '\t' {
			break
		}
		start--
	}
	prefix := string(line[start:pos])
	words := strings.Fields(string(line[:start]))

	var candidates []string
	switch {
	case len(words) == 0:
		candidates = commandNames()
	case len(words) == 1 && words[0] == "ns":
		candidates = c.registry.Namespaces()
	case len(words) == 1 && (words[0] == "resolve" || words[0] == "visible"):
		candidates = c.registry.Files()
	}

	var result [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(cand, prefix) && cand != prefix {
			result = append(result, []rune(cand[len(prefix):]))
		}
	}
	return result, len([]rune(prefix))
}

func commandNames() []string {
	names := []string{"help", "quit"}
	for _, c := range commands {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}
