// Copyright © 2024 The ELPS authors

package hostclass

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dghubble/trie"
	"gopkg.in/yaml.v3"

	"github.com/luthersystems/cljsym/internal/cache"
	"github.com/luthersystems/cljsym/internal/metrics"
)

//go:embed classes.yaml
var defaultTable []byte

// document is the YAML layout of a class table.
type document struct {
	Classes []*Class `yaml:"classes"`
}

type memberKey struct {
	class string
	scope Scope
	name  string
	arity int
}

// Table is an in-memory class table.  A Table is safe for concurrent
// lookups; Merge must not run concurrently with lookups.
type Table struct {
	classes  map[string]*Class
	packages *trie.PathTrie
	methods  *cache.LRU[memberKey, []*Method]
	fields   *cache.LRU[memberKey, []*Field]
}

// Option configures a Table.
type Option func(*tableConfig)

type tableConfig struct {
	cacheSize int
	metrics   *metrics.Metrics
}

// WithCacheSize bounds the member lookup cache.
func WithCacheSize(n int) Option {
	return func(c *tableConfig) { c.cacheSize = n }
}

// WithMetrics reports member cache hits and misses to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *tableConfig) { c.metrics = m }
}

// NewTable returns an empty table.
func NewTable(opts ...Option) *Table {
	var cfg tableConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Table{
		classes: make(map[string]*Class),
		packages: trie.NewPathTrieWithConfig(&trie.PathTrieConfig{
			Segmenter: dotSegmenter,
		}),
		methods: cache.New[memberKey, []*Method]("hostclass_methods", cfg.cacheSize, cfg.metrics),
		fields:  cache.New[memberKey, []*Field]("hostclass_fields", cfg.cacheSize, cfg.metrics),
	}
}

var (
	defaultOnce sync.Once
	defaultDoc  document
	defaultErr  error
)

// Default returns a new table holding the embedded JDK and Clojure runtime
// classes.
func Default(opts ...Option) *Table {
	defaultOnce.Do(func() {
		defaultErr = decode(bytes.NewReader(defaultTable), &defaultDoc)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded class table: %v", defaultErr))
	}
	t := NewTable(opts...)
	t.add(defaultDoc.Classes)
	return t
}

// Load reads a YAML class table.
func Load(r io.Reader, opts ...Option) (*Table, error) {
	var doc document
	if err := decode(r, &doc); err != nil {
		return nil, err
	}
	t := NewTable(opts...)
	t.add(doc.Classes)
	return t, nil
}

// LoadFile reads the YAML class table at path.
func LoadFile(path string, opts ...Option) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // path supplied by configuration
	if err != nil {
		return nil, fmt.Errorf("opening class table: %w", err)
	}
	defer f.Close() //nolint:errcheck
	t, err := Load(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func decode(r io.Reader, doc *document) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil && err != io.EOF {
		return fmt.Errorf("decoding class table: %w", err)
	}
	for _, c := range doc.Classes {
		if c.Name == "" {
			return fmt.Errorf("decoding class table: class without name")
		}
	}
	return nil
}

// Merge adds the classes of o to t.  Classes of o replace classes of t with
// the same name.
func (t *Table) Merge(o *Table) {
	classes := make([]*Class, 0, len(o.classes))
	for _, c := range o.classes {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	t.add(classes)
}

func (t *Table) add(classes []*Class) {
	for _, c := range classes {
		for _, m := range c.Methods {
			m.Class = c.Name
		}
		for _, f := range c.Fields {
			f.Class = c.Name
		}
		_, replaced := t.classes[c.Name]
		t.classes[c.Name] = c
		pkg := c.Package()
		if pkg == "" || replaced {
			continue
		}
		p, ok := t.packages.Get(pkg).(*Package)
		if !ok {
			p = &Package{Name: pkg}
			t.packages.Put(pkg, p)
		}
		p.Classes = append(p.Classes, c.ShortName())
	}
	t.methods.Clear()
	t.fields.Clear()
}

// Len returns the number of classes in t.
func (t *Table) Len() int {
	return len(t.classes)
}

// FindClass returns the class with the fully qualified name.
func (t *Table) FindClass(name string) (*Class, bool) {
	c, ok := t.classes[name]
	return c, ok
}

// FindPackage returns the package with the given name.
func (t *Table) FindPackage(name string) (*Package, bool) {
	p, ok := t.packages.Get(name).(*Package)
	return p, ok
}

// PackageOf returns the longest known package that prefixes name.
func (t *Table) PackageOf(name string) (*Package, bool) {
	var last *Package
	_ = t.packages.WalkPath(name, func(_ string, value any) error {
		if p, ok := value.(*Package); ok {
			last = p
		}
		return nil
	})
	return last, last != nil
}

// Supertypes returns class followed by its superclasses and interfaces,
// breadth first and without duplicates.  Unknown types end the walk along
// their branch.
func (t *Table) Supertypes(class string) []string {
	var out []string
	seen := make(map[string]bool)
	queue := []string{class}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		c, ok := t.classes[name]
		if !ok {
			continue
		}
		if c.Super != "" {
			queue = append(queue, c.Super)
		}
		queue = append(queue, c.Interfaces...)
		if c.Super == "" && !c.Interface && name != "java.lang.Object" {
			queue = append(queue, "java.lang.Object")
		}
	}
	return out
}

// FindMethods returns the methods of class and its supertypes named name
// that accept arity arguments.  Methods overridden in a subtype are
// reported once, from the most specific type.
func (t *Table) FindMethods(class string, scope Scope, name string, arity int) []*Method {
	key := memberKey{class: class, scope: scope, name: name, arity: arity}
	if v, ok := t.methods.Get(key); ok {
		return v
	}
	var found []*Method
	seen := make(map[string]bool)
	for _, st := range t.Supertypes(class) {
		c, ok := t.classes[st]
		if !ok {
			continue
		}
		for _, m := range c.Methods {
			if !matchName(name, m.Name) || !scope.matches(m.Static) || !m.Accepts(arity) {
				continue
			}
			sig := m.Name + "(" + strings.Join(m.Params, ",") + ")"
			if seen[sig] {
				continue
			}
			seen[sig] = true
			found = append(found, m)
		}
	}
	t.methods.Add(key, found)
	return found
}

// FindFields returns the fields of class and its supertypes named name.
func (t *Table) FindFields(class string, scope Scope, name string) []*Field {
	key := memberKey{class: class, scope: scope, name: name, arity: AnyArity}
	if v, ok := t.fields.Get(key); ok {
		return v
	}
	var found []*Field
	seen := make(map[string]bool)
	for _, st := range t.Supertypes(class) {
		c, ok := t.classes[st]
		if !ok {
			continue
		}
		for _, f := range c.Fields {
			if !matchName(name, f.Name) || !scope.matches(f.Static) || seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			found = append(found, f)
		}
	}
	t.fields.Add(key, found)
	return found
}

func matchName(pattern, name string) bool {
	return pattern == AnyName || pattern == name
}

// dotSegmenter segments dotted names: "java.util.Map" yields "java",
// ".util" and ".Map" in successive calls.
func dotSegmenter(path string, start int) (segment string, next int) {
	if len(path) == 0 || start < 0 || start > len(path)-1 {
		return "", -1
	}
	end := strings.IndexRune(path[start+1:], '.')
	if end == -1 {
		return path[start:], -1
	}
	return path[start : start+end+1], start + end + 1
}
