// Copyright © 2024 The ELPS authors

// Package resolve finds the declarations a symbol or keyword occurrence
// denotes.  Resolution is purely structural: it walks the enclosing forms,
// the file's definitions and imports, the core namespace, and finally the
// host platform's classes.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/hostclass"
	"github.com/luthersystems/cljsym/internal/cache"
	"github.com/luthersystems/cljsym/internal/metrics"
)

const tracerName = "github.com/luthersystems/cljsym/resolve"

// Index is the cross-file definition registry consulted for namespaces
// other than the file being resolved.
type Index interface {
	// FilesDeclaring returns the files whose namespace is ns.
	FilesDeclaring(ctx context.Context, ns string) ([]string, error)
	// FileDefinitions returns the definitions of an indexed file.
	FileDefinitions(ctx context.Context, file string) ([]*analysis.Definition, error)
	// FindDefinition returns the definition identified by key, or nil.
	FindDefinition(ctx context.Context, key analysis.SymbolKey) (*analysis.Definition, error)
}

// Classes looks up host platform classes and their members.
// *hostclass.Table implements it.
type Classes interface {
	FindClass(name string) (*hostclass.Class, bool)
	FindPackage(name string) (*hostclass.Package, bool)
	FindMethods(class string, scope hostclass.Scope, name string, arity int) []*hostclass.Method
	FindFields(class string, scope hostclass.Scope, name string) []*hostclass.Field
}

// Kind classifies a declaration.
type Kind uint8

const (
	KindDefinition Kind = iota
	KindLocal
	KindNamespace
	KindAlias
	KindSpecialForm
	KindDynamic
	KindClass
	KindPackage
	KindMethod
	KindField
	KindKeyword
	numKinds
)

func (k Kind) String() string {
	names := [numKinds]string{
		KindDefinition:  "definition",
		KindLocal:       "local",
		KindNamespace:   "namespace",
		KindAlias:       "alias",
		KindSpecialForm: "special-form",
		KindDynamic:     "dynamic",
		KindClass:       "class",
		KindPackage:     "package",
		KindMethod:      "method",
		KindField:       "field",
		KindKeyword:     "keyword",
	}
	if k >= numKinds {
		return "unknown"
	}
	return names[k]
}

// Declaration is one entity an occurrence may denote.
type Declaration struct {
	Kind Kind
	Key  analysis.SymbolKey
	// File and Range locate the declaring name when known.  Range is the
	// zero range for declarations without a source location.
	File  string
	Range form.Range
	// Node is the declaring form when it belongs to the resolved file.
	Node *form.Node

	Def    *analysis.Definition
	Class  *hostclass.Class
	Method *hostclass.Method
	Field  *hostclass.Field
}

func (d *Declaration) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.Key.Qualified())
}

// Result is the outcome of resolving one occurrence.  An empty result with
// Skip set means the occurrence should not be reported as unresolved.
type Result struct {
	Decls []*Declaration
	Skip  bool
}

// Empty reports whether r holds no declarations.
func (r Result) Empty() bool {
	return len(r.Decls) == 0
}

// Resolver resolves occurrences against per-file states.  It is safe for
// concurrent use.
type Resolver struct {
	index   Index
	classes Classes
	log     zerolog.Logger
	metrics *metrics.Metrics
	types   *cache.LRU[typeKey, string]
}

// typeKey identifies an inferred expression type.  A tree is one
// revision of a file, so entries of older revisions are never read again
// and age out of the cache.
type typeKey struct {
	tree    *form.Tree
	id      int
	dialect analysis.Dialect
}

// Option configures a Resolver.
type Option func(*config)

type config struct {
	log       zerolog.Logger
	metrics   *metrics.Metrics
	cacheSize int
}

// WithLogger sets the logger used to report recovered failures and index
// errors.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithMetrics sets the collectors updated by resolution.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithCacheSize bounds the type inference cache.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// New returns a Resolver.  Either collaborator may be nil, in which case
// the corresponding lookups find nothing.
func New(index Index, classes Classes, opts ...Option) *Resolver {
	c := config{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	return &Resolver{
		index:   index,
		classes: classes,
		log:     c.log,
		metrics: c.metrics,
		types:   cache.New[typeKey, string]("resolve_types", c.cacheSize, c.metrics),
	}
}

// Resolve returns the declarations n denotes in the dialect in effect at
// n.  It never fails: problems reading other files are logged and treated
// as missing declarations.
func (r *Resolver) Resolve(ctx context.Context, st *analysis.State, n *form.Node) Result {
	return r.resolve(ctx, st, n, st.Annotations.Dialect(n), false)
}

// ResolveIn is like Resolve but resolves for dialect d.  Occurrences inside
// a reader conditional branch keep the branch's dialect.
func (r *Resolver) ResolveIn(ctx context.Context, st *analysis.State, n *form.Node, d analysis.Dialect) Result {
	return r.resolve(ctx, st, n, d, true)
}

func (r *Resolver) resolve(ctx context.Context, st *analysis.State, n *form.Node, d analysis.Dialect, override bool) (res Result) {
	start := time.Now()
	ctx, span := otel.GetTracerProvider().Tracer(tracerName).Start(ctx, "resolve.Resolve",
		trace.WithAttributes(
			semconv.CodeFilepath(st.File),
			attribute.String("cljsym.symbol", n.Text),
		))
	defer func() {
		if v := recover(); v != nil {
			r.logPanic(v, st, n, "resolution failed")
			res = Result{}
		}
		outcome := metrics.OutcomeResolved
		switch {
		case res.Skip:
			outcome = metrics.OutcomeSkipped
		case res.Empty():
			outcome = metrics.OutcomeEmpty
		}
		span.SetAttributes(attribute.String("cljsym.outcome", outcome))
		span.End()
		r.metrics.Resolved(outcome, time.Since(start).Seconds())
	}()
	if !override || inBranch(st.Annotations, n) {
		d = st.Annotations.Dialect(n)
	}
	s := r.newSearch(ctx, st, n, d)
	return s.resolve()
}

// EnumerateVisible calls visit for every declaration visible at place,
// innermost first.  A name shadowed by an inner declaration is not visited
// again.  It returns false if visit stopped the enumeration.
func (r *Resolver) EnumerateVisible(ctx context.Context, st *analysis.State, place *form.Node, visit func(*Declaration) bool) (completed bool) {
	defer func() {
		if v := recover(); v != nil {
			r.logPanic(v, st, place, "enumeration failed")
			completed = false
		}
	}()
	s := r.newSearch(ctx, st, place, st.Annotations.Dialect(place))
	s.visit = visit
	s.enumerate()
	return !s.stopped
}

func (r *Resolver) logPanic(v any, st *analysis.State, n *form.Node, msg string) {
	r.log.Error().
		Str("file", st.File).
		Str("symbol", n.Text).
		Interface("panic", v).
		Msg(msg)
}

// Unresolved returns the unqualified symbols of st that denote nothing and
// are not exempt from resolution, in source order.  Qualified symbols are
// left alone since their namespace is often outside the workspace.
func (r *Resolver) Unresolved(ctx context.Context, st *analysis.State) []*form.Node {
	var out []*form.Node
	for _, n := range st.Tree.Nodes {
		if ctx.Err() != nil {
			break
		}
		if n.Kind != form.Symbol || n.Namespace() != "" {
			continue
		}
		if res := r.Resolve(ctx, st, n); res.Empty() && !res.Skip {
			out = append(out, n)
		}
	}
	return out
}
