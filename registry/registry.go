// Copyright © 2024 The ELPS authors

// Package registry indexes the definitions of a workspace so that symbols
// can be resolved across files.  Files are summarized as stubs; with a
// stub store configured the stubs are persisted and only a bounded number
// are kept in memory.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/internal/cache"
	"github.com/luthersystems/cljsym/internal/metrics"
	"github.com/luthersystems/cljsym/parser"
	"github.com/luthersystems/cljsym/stub"
)

const tracerName = "github.com/luthersystems/cljsym/registry"

// ErrNotIndexed is returned for files the registry does not know.
var ErrNotIndexed = errors.New("file not indexed")

// Registry is a concurrency safe index of file stubs keyed by path.
type Registry struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	store    *stub.Store
	excludes []glob.Glob
	workers  int

	cacheSize int

	mu    sync.RWMutex
	files map[string]*entry
	byNS  map[string]map[string]struct{}

	// stubs holds loaded stubs when a store is configured.
	stubs *cache.LRU[string, *stub.Stub]
}

type entry struct {
	ns   string
	defs []*analysis.Definition // nil when the stub lives in the store
}

// Option configures a Registry.
type Option func(*Registry) error

// WithLogger sets the registry's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) error {
		r.log = log
		return nil
	}
}

// WithMetrics sets the collectors updated by the registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) error {
		r.metrics = m
		return nil
	}
}

// WithStore persists stubs in s and loads them lazily.
func WithStore(s *stub.Store) Option {
	return func(r *Registry) error {
		r.store = s
		return nil
	}
}

// WithExcludes skips workspace paths matching any of the glob patterns.
// Patterns are matched against slash separated paths relative to the
// scanned root.
func WithExcludes(patterns ...string) Option {
	return func(r *Registry) error {
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return fmt.Errorf("invalid exclude pattern %q: %w", p, err)
			}
			r.excludes = append(r.excludes, g)
		}
		return nil
	}
}

// WithWorkers bounds the number of files analyzed concurrently by a scan.
func WithWorkers(n int) Option {
	return func(r *Registry) error {
		if n > 0 {
			r.workers = n
		}
		return nil
	}
}

// WithCacheSize bounds the number of stubs held in memory when a store is
// configured.
func WithCacheSize(n int) Option {
	return func(r *Registry) error {
		r.cacheSize = n
		return nil
	}
}

// New returns an empty registry.
func New(opts ...Option) (*Registry, error) {
	r := &Registry{
		log:     zerolog.Nop(),
		workers: 8,
		files:   make(map[string]*entry),
		byNS:    make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.stubs = cache.New[string, *stub.Stub]("registry_stubs", r.cacheSize, r.metrics)
	return r, nil
}

// Open loads the paths and namespaces of the stubs already in the store.
// Their definitions are read when first needed.
func (r *Registry) Open(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	nss, err := r.store.Namespaces(ctx)
	if err != nil {
		return fmt.Errorf("loading stub index: %w", err)
	}
	r.mu.Lock()
	for path, ns := range nss {
		r.put(path, &entry{ns: ns})
	}
	n := len(r.files)
	r.mu.Unlock()
	r.metrics.SetFiles(n)
	r.log.Debug().Int("files", n).Msg("stub index loaded")
	return nil
}

// Add parses and indexes the source of the file at path.
func (r *Registry) Add(ctx context.Context, path, src string) error {
	tree := parser.Parse(path, src)
	st, err := analysis.AssignRoles(ctx, tree)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", path, err)
	}
	return r.AddState(ctx, st)
}

// AddFile reads, parses and indexes the file at path.
func (r *Registry) AddFile(ctx context.Context, path string) error {
	tree, err := parser.ParseFile(path)
	if err != nil {
		return err
	}
	st, err := analysis.AssignRoles(ctx, tree)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", path, err)
	}
	return r.AddState(ctx, st)
}

// AddState indexes an analyzed file, replacing any earlier stub of the
// same path.
func (r *Registry) AddState(ctx context.Context, st *analysis.State) error {
	s, err := detach(stub.FromState(st))
	if err != nil {
		return err
	}
	e := &entry{ns: s.Namespace}
	if r.store != nil {
		if err := r.store.Put(ctx, s); err != nil {
			return err
		}
		r.stubs.Add(s.Path, s)
	} else {
		e.defs = s.Definitions
	}
	r.mu.Lock()
	r.drop(s.Path)
	r.put(s.Path, e)
	n := len(r.files)
	r.mu.Unlock()
	r.metrics.SetFiles(n)
	return nil
}

// detach re-decodes s so that the indexed definitions hold no references
// into the analyzed tree.
func detach(s *stub.Stub) (*stub.Stub, error) {
	b := s.Marshal()
	d, err := stub.Unmarshal(s.Path, b)
	if err != nil {
		return nil, fmt.Errorf("encoding stub of %s: %w", s.Path, err)
	}
	return d, nil
}

// Remove drops the file at path from the registry and the store.
func (r *Registry) Remove(ctx context.Context, path string) error {
	r.mu.Lock()
	r.drop(path)
	n := len(r.files)
	r.mu.Unlock()
	r.stubs.Remove(path)
	r.metrics.SetFiles(n)
	if r.store != nil {
		return r.store.Delete(ctx, path)
	}
	return nil
}

func (r *Registry) put(path string, e *entry) {
	r.files[path] = e
	paths, ok := r.byNS[e.ns]
	if !ok {
		paths = make(map[string]struct{})
		r.byNS[e.ns] = paths
	}
	paths[path] = struct{}{}
}

func (r *Registry) drop(path string) {
	e, ok := r.files[path]
	if !ok {
		return
	}
	delete(r.files, path)
	paths := r.byNS[e.ns]
	delete(paths, path)
	if len(paths) == 0 {
		delete(r.byNS, e.ns)
	}
}

// Len returns the number of indexed files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// Files returns the indexed paths, sorted.
func (r *Registry) Files() []string {
	r.mu.RLock()
	files := make([]string, 0, len(r.files))
	for f := range r.files {
		files = append(files, f)
	}
	r.mu.RUnlock()
	sort.Strings(files)
	return files
}

// Namespaces returns the namespaces declared by indexed files, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	nss := make([]string, 0, len(r.byNS))
	for ns := range r.byNS {
		nss = append(nss, ns)
	}
	r.mu.RUnlock()
	sort.Strings(nss)
	return nss
}

// FilesDeclaring returns the indexed files whose namespace is ns, sorted.
// The core namespaces are declared by a pseudo-file named after the
// namespace when no source file of theirs is indexed.
func (r *Registry) FilesDeclaring(ctx context.Context, ns string) ([]string, error) {
	r.mu.RLock()
	files := make([]string, 0, len(r.byNS[ns]))
	for f := range r.byNS[ns] {
		files = append(files, f)
	}
	r.mu.RUnlock()
	if len(files) == 0 {
		if _, ok := coreDialect(ns); ok {
			return []string{ns}, nil
		}
	}
	sort.Strings(files)
	return files, nil
}

// FileDefinitions returns the definitions of an indexed file.  The result
// is shared and must not be modified.
func (r *Registry) FileDefinitions(ctx context.Context, file string) ([]*analysis.Definition, error) {
	r.mu.RLock()
	e, ok := r.files[file]
	r.mu.RUnlock()
	if !ok {
		if d, core := coreDialect(file); core {
			return analysis.CoreDefinitions(d), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, file)
	}
	if e.defs != nil || r.store == nil {
		return e.defs, nil
	}
	if s, ok := r.stubs.Get(file); ok {
		return s.Definitions, nil
	}
	s, err := r.store.Load(ctx, file)
	if err != nil {
		return nil, err
	}
	r.stubs.Add(file, s)
	return s.Definitions, nil
}

// FindDefinition returns the definition identified by key, or nil.
func (r *Registry) FindDefinition(ctx context.Context, key analysis.SymbolKey) (*analysis.Definition, error) {
	ns, _, _ := strings.Cut(key.Namespace, "/")
	files, err := r.FilesDeclaring(ctx, ns)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		defs, err := r.FileDefinitions(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			if d.Key == key {
				return d, nil
			}
		}
	}
	return nil, nil
}

// Definitions returns every definition named name: those of the indexed
// files in file order, then those of the core catalog.
func (r *Registry) Definitions(ctx context.Context, name string) ([]*analysis.Definition, error) {
	var out []*analysis.Definition
	collect := func(defs []*analysis.Definition) {
		for _, d := range defs {
			if d.Key.Name == name {
				out = append(out, d)
			}
		}
	}
	for _, f := range r.Files() {
		defs, err := r.FileDefinitions(ctx, f)
		if err != nil {
			return nil, err
		}
		collect(defs)
	}
	for _, d := range []analysis.Dialect{analysis.Host, analysis.Script} {
		collect(analysis.CoreDefinitions(d))
	}
	return out, nil
}

func coreDialect(ns string) (analysis.Dialect, bool) {
	for _, d := range []analysis.Dialect{analysis.Host, analysis.Script} {
		if d.CoreNamespace() == ns {
			return d, true
		}
	}
	return analysis.Host, false
}

// excluded reports whether rel, a slash separated path relative to the
// scanned root, matches an exclude pattern.
func (r *Registry) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range r.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
