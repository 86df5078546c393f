// Copyright © 2024 The ELPS authors

package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/padding"
	"github.com/muesli/reflow/wordwrap"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/diagnostic"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser"
	"github.com/luthersystems/cljsym/registry"
	"github.com/luthersystems/cljsym/resolve"
)

var (
	// ErrUsage is returned for a command given the wrong arguments.
	ErrUsage = errors.New("usage")
	// ErrUnknownCommand is returned for a command the shell does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrPosition is returned for a malformed LINE:COL argument.
	ErrPosition = errors.New("invalid position")
	// ErrNoSymbol is returned when no symbol or keyword is at a position.
	ErrNoSymbol = errors.New("no symbol at position")
	// ErrNotFound is returned for unknown namespaces and names.
	ErrNotFound = errors.New("not found")
)

// DefaultWidth is the listing width used when Query.Width is zero.
const DefaultWidth = 80

// typeColumn is the width of the definition type column of listings.
const typeColumn = 14

// Query answers questions about an indexed workspace.  It backs the
// explore shell and the one-shot commands.
type Query struct {
	Registry *registry.Registry
	Resolver *resolve.Resolver
	// Width bounds the width of listings.
	Width int
	// Color controls colors in rendered resolutions.
	Color diagnostic.ColorMode
}

type command struct {
	name  string
	usage string
	help  string
	arity int
	run   func(ctx context.Context, q *Query, w io.Writer, args []string) error
}

var commands = []command{
	{
		name: "ns", usage: "ns NAME", arity: 1,
		help: "list the files and definitions of a namespace",
		run: func(ctx context.Context, q *Query, w io.Writer, args []string) error {
			return q.Namespace(ctx, w, args[0])
		},
	},
	{
		name: "defs", usage: "defs NAME", arity: 1,
		help: "list the definitions named NAME in every namespace",
		run: func(ctx context.Context, q *Query, w io.Writer, args []string) error {
			return q.Definitions(ctx, w, args[0])
		},
	},
	{
		name: "resolve", usage: "resolve FILE LINE:COL", arity: 2,
		help: "show the declarations of the symbol at a position",
		run: func(ctx context.Context, q *Query, w io.Writer, args []string) error {
			line, col, err := ParsePosition(args[1])
			if err != nil {
				return err
			}
			return q.Resolve(ctx, w, args[0], line, col)
		},
	},
	{
		name: "visible", usage: "visible FILE LINE:COL", arity: 2,
		help: "list the declarations visible at a position",
		run: func(ctx context.Context, q *Query, w io.Writer, args []string) error {
			line, col, err := ParsePosition(args[1])
			if err != nil {
				return err
			}
			return q.Visible(ctx, w, args[0], line, col)
		},
	},
}

// Exec runs one shell command line, writing its output to w.
func (q *Query) Exec(ctx context.Context, w io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	if fields[0] == "help" {
		return writeHelp(w)
	}
	for _, c := range commands {
		if c.name != fields[0] {
			continue
		}
		if len(fields)-1 != c.arity {
			return fmt.Errorf("%w: %s", ErrUsage, c.usage)
		}
		return c.run(ctx, q, w, fields[1:])
	}
	return fmt.Errorf("%w %q (try help)", ErrUnknownCommand, fields[0])
}

func writeHelp(w io.Writer) error {
	var b strings.Builder
	for _, c := range commands {
		fmt.Fprintf(&b, "%s%s\n", padding.String(c.usage, 24), c.help)
	}
	b.WriteString("quit                    leave the shell\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// ParsePosition parses a 1-based LINE:COL argument.
func ParsePosition(s string) (line, col int, err error) {
	ls, cs, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w %q: want LINE:COL", ErrPosition, s)
	}
	line, err = strconv.Atoi(ls)
	if err != nil || line < 1 {
		return 0, 0, fmt.Errorf("%w %q: bad line", ErrPosition, s)
	}
	col, err = strconv.Atoi(cs)
	if err != nil || col < 1 {
		return 0, 0, fmt.Errorf("%w %q: bad column", ErrPosition, s)
	}
	return line, col, nil
}

func (q *Query) width() int {
	if q.Width > 0 {
		return q.Width
	}
	return DefaultWidth
}

// Namespace lists the files declaring the namespace name and the
// definitions of each.
func (q *Query) Namespace(ctx context.Context, w io.Writer, name string) error {
	files, err := q.Registry.FilesDeclaring(ctx, name)
	if err != nil {
		return fmt.Errorf("namespace %s: %w", name, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("namespace %s: %w", name, ErrNotFound)
	}
	var b strings.Builder
	b.WriteString(name + "\n")
	for _, f := range files {
		defs, err := q.Registry.FileDefinitions(ctx, f)
		if err != nil {
			return fmt.Errorf("namespace %s: %w", name, err)
		}
		fmt.Fprintf(&b, "  %s\n", f)
		for _, d := range defs {
			if d.Meta[analysis.MetaSynthetic] == "true" {
				continue
			}
			fmt.Fprintf(&b, "    %s%s\n", padding.String(d.Key.Type+" ", typeColumn), Signature(d))
		}
	}
	_, err = io.WriteString(w, b.String())
	return err
}

// Definitions lists every definition named name with its location.
func (q *Query) Definitions(ctx context.Context, w io.Writer, name string) error {
	defs, err := q.Registry.Definitions(ctx, name)
	if err != nil {
		return fmt.Errorf("definitions of %s: %w", name, err)
	}
	if len(defs) == 0 {
		return fmt.Errorf("definitions of %s: %w", name, ErrNotFound)
	}
	trees := make(map[string]*form.Tree)
	var b strings.Builder
	for _, d := range defs {
		fmt.Fprintf(&b, "%s%s  %s\n",
			padding.String(d.Key.Type+" ", typeColumn),
			d.Key.Qualified(),
			location(trees, d.File, d.NameRange))
	}
	_, err = io.WriteString(w, b.String())
	return err
}

// Signature renders a definition's name, prototypes and tags.
func Signature(d *analysis.Definition) string {
	var b strings.Builder
	b.WriteString(d.Key.Name)
	for _, p := range d.Prototypes {
		fmt.Fprintf(&b, " [%s]", strings.Join(p.Args, " "))
	}
	if d.IsPrivate() {
		b.WriteString("  (private)")
	}
	if d.IsDynamic() {
		b.WriteString("  (dynamic)")
	}
	return b.String()
}

// location renders file:line:col for r, or just the file when its source
// cannot be read.  trees caches the sources read so far.
func location(trees map[string]*form.Tree, file string, r form.Range) string {
	t := sourceTree(trees, file)
	if t == nil {
		return file
	}
	line, col := t.Position(r.Start)
	return fmt.Sprintf("%s:%d:%d", file, line, col)
}

// sourceTree returns an unparsed tree over the source of file, for
// position arithmetic.  It returns nil for unreadable files such as the
// core catalog.
func sourceTree(trees map[string]*form.Tree, file string) *form.Tree {
	if t, ok := trees[file]; ok {
		return t
	}
	var t *form.Tree
	if b, err := os.ReadFile(file); err == nil { //nolint:gosec // paths come from the index
		t = &form.Tree{File: file, Source: string(b)}
	}
	trees[file] = t
	return t
}

// occurrence analyzes file and returns its state and the symbol or keyword
// at line:col.
func occurrence(ctx context.Context, file string, line, col int) (*analysis.State, *form.Node, error) {
	st, err := load(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	n := st.Tree.NodeAt(st.Tree.Offset(line, col))
	if n == nil || (n.Kind != form.Symbol && n.Kind != form.Keyword) {
		return nil, nil, fmt.Errorf("%w %s:%d:%d", ErrNoSymbol, file, line, col)
	}
	return st, n, nil
}

func load(ctx context.Context, file string) (*analysis.State, error) {
	tree, err := parser.ParseFile(file)
	if err != nil {
		return nil, err
	}
	return analysis.AssignRoles(ctx, tree)
}

// Resolve renders the declarations denoted by the occurrence at line:col
// of file.
func (q *Query) Resolve(ctx context.Context, w io.Writer, file string, line, col int) error {
	st, n, err := occurrence(ctx, file, line, col)
	if err != nil {
		return err
	}
	res := q.Resolver.Resolve(ctx, st, n)
	r := &diagnostic.Renderer{Color: q.Color, SourceReader: diagnostic.TreeSource(st.Tree)}
	return r.RenderAll(w, Resolution(st, n, res))
}

// Resolution describes a resolution result as diagnostics: one note per
// declaration located at its declaring name, a note for exempt
// occurrences, or an unresolved symbol warning.
func Resolution(st *analysis.State, n *form.Node, res resolve.Result) []diagnostic.Diagnostic {
	switch {
	case res.Empty() && res.Skip:
		return []diagnostic.Diagnostic{{
			Severity: diagnostic.SeverityNote,
			Message:  fmt.Sprintf("`%s` is exempt from resolution", n.Text),
			Spans:    []diagnostic.Span{diagnostic.SpanOf(st.Tree, n.Range, "")},
		}}
	case res.Empty():
		return []diagnostic.Diagnostic{diagnostic.Unresolved(st.Tree, n)}
	}
	trees := map[string]*form.Tree{st.File: st.Tree}
	out := make([]diagnostic.Diagnostic, 0, len(res.Decls))
	for _, d := range res.Decls {
		diag := diagnostic.Diagnostic{
			Severity: diagnostic.SeverityNote,
			Message:  fmt.Sprintf("`%s` resolves to %s", n.Text, Describe(d)),
		}
		if t := sourceTree(trees, d.File); t != nil && d.Range != (form.Range{}) {
			diag.Spans = []diagnostic.Span{diagnostic.SpanOf(t, d.Range, "declared here")}
		} else if d.File != "" {
			diag.Notes = []string{"declared in " + d.File}
		}
		out = append(out, diag)
	}
	return out
}

// Describe renders a declaration in one line.
func Describe(d *resolve.Declaration) string {
	switch {
	case d.Method != nil:
		m := d.Method
		kind := "method"
		if m.Static {
			kind = "static method"
		}
		params := strings.Join(m.Params, ", ")
		if m.Varargs {
			params += "..."
		}
		return fmt.Sprintf("%s %s.%s(%s) %s", kind, m.Class, m.Name, params, orVoid(m.Returns))
	case d.Field != nil:
		return fmt.Sprintf("field %s.%s %s", d.Field.Class, d.Field.Name, d.Field.Type)
	case d.Def != nil:
		return fmt.Sprintf("%s %s", d.Key.Type, d.Key.Qualified())
	case d.Kind == resolve.KindLocal:
		return fmt.Sprintf("local %s (%s)", d.Key.Name, d.Key.Type)
	case d.Kind == resolve.KindNamespace, d.Kind == resolve.KindClass, d.Kind == resolve.KindPackage:
		return fmt.Sprintf("%s %s", d.Kind, d.Key.Name)
	}
	return d.String()
}

func orVoid(t string) string {
	if t == "" {
		return "void"
	}
	return t
}

// Visible lists the declarations visible at line:col of file grouped by
// kind, innermost kinds first.
func (q *Query) Visible(ctx context.Context, w io.Writer, file string, line, col int) error {
	st, err := load(ctx, file)
	if err != nil {
		return err
	}
	place := st.Tree.PlaceAt(st.Tree.Offset(line, col))
	if place == nil {
		return fmt.Errorf("%w %s:%d:%d", ErrNoSymbol, file, line, col)
	}

	var order []resolve.Kind
	groups := make(map[resolve.Kind][]string)
	q.Resolver.EnumerateVisible(ctx, st, place, func(d *resolve.Declaration) bool {
		if _, ok := groups[d.Kind]; !ok {
			order = append(order, d.Kind)
		}
		groups[d.Kind] = append(groups[d.Kind], d.Key.Name)
		return true
	})

	var b strings.Builder
	for _, k := range order {
		fmt.Fprintf(&b, "%s (%d)\n", k, len(groups[k]))
		b.WriteString(indent.String(wrap(strings.Join(groups[k], " "), q.width()-2), 2))
		b.WriteString("\n")
	}
	_, err = io.WriteString(w, b.String())
	return err
}

// wrap word-wraps s at spaces only; Clojure names contain hyphens.
func wrap(s string, limit int) string {
	ww := wordwrap.NewWriter(limit)
	ww.Breakpoints = nil
	_, _ = ww.Write([]byte(s))
	_ = ww.Close()
	return ww.String()
}
