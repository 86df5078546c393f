// Copyright © 2024 The ELPS authors

package analysis

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/internal/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// File holds the current tree of a source file and lazily computes its
// State.  All methods are safe for concurrent use and never block on
// another goroutine: two callers may compute the same state concurrently,
// in which case the first to finish is published and the other result is
// discarded.
type File struct {
	snap    atomic.Pointer[snapshot]
	state   atomic.Pointer[State]
	partial atomic.Pointer[partialPass]

	log     zerolog.Logger
	metrics *metrics.Metrics
}

type snapshot struct {
	tree *form.Tree
	rev  uint64
}

// partialPass keeps the annotations of a cancelled pass for reuse by the
// next pass over the same revision.
type partialPass struct {
	rev uint64
	ann *Annotations
}

// FileOption configures a File.
type FileOption func(*File)

// WithLogger sets the logger used to report state computation.
func WithLogger(log zerolog.Logger) FileOption {
	return func(f *File) { f.log = log }
}

// WithMetrics sets the collectors updated by state computation.
func WithMetrics(m *metrics.Metrics) FileOption {
	return func(f *File) { f.metrics = m }
}

// NewFile returns a File at revision 1 holding tree.
func NewFile(tree *form.Tree, opts ...FileOption) *File {
	f := &File{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	f.snap.Store(&snapshot{tree: tree, rev: 1})
	return f
}

// Update replaces the tree after an edit and returns the new revision.
// States of earlier revisions are no longer returned by State.
func (f *File) Update(tree *form.Tree) uint64 {
	for {
		old := f.snap.Load()
		next := &snapshot{tree: tree, rev: old.rev + 1}
		if f.snap.CompareAndSwap(old, next) {
			return next.rev
		}
	}
}

// Revision returns the current revision.
func (f *File) Revision() uint64 {
	return f.snap.Load().rev
}

// Tree returns the current tree.
func (f *File) Tree() *form.Tree {
	return f.snap.Load().tree
}

// Path returns the file name of the current tree.
func (f *File) Path() string {
	return f.snap.Load().tree.File
}

// State returns the state of the current revision, computing it if needed.
// A pass interrupted by ctx returns an error wrapping ErrCancelled and
// leaves nothing published; calling State again runs a new pass.
func (f *File) State(ctx context.Context) (*State, error) {
	snap := f.snap.Load()
	if st := f.state.Load(); st != nil && st.Revision == snap.rev {
		return st, nil
	}
	ctx, span := tracer().Start(ctx, "analysis.File.State", trace.WithAttributes(
		semconv.CodeFilepath(snap.tree.File),
		attribute.Int64("cljsym.revision", int64(snap.rev)),
	))
	defer span.End()

	var prior *Annotations
	if pp := f.partial.Load(); pp != nil && pp.rev == snap.rev {
		prior = pp.ann
	}
	st, ann, err := assign(ctx, snap.tree, prior)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			f.partial.Store(&partialPass{rev: snap.rev, ann: ann})
			f.metrics.StateCancelled()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.log.Debug().Err(err).Str("file", snap.tree.File).Uint64("rev", snap.rev).Msg("state computation interrupted")
		return nil, err
	}
	st.Revision = snap.rev
	f.metrics.StateComputed()
	for {
		cur := f.state.Load()
		if cur != nil && cur.Revision >= st.Revision {
			if cur.Revision == st.Revision {
				f.metrics.StateDiscarded()
				f.log.Debug().Str("file", st.File).Uint64("rev", st.Revision).Msg("discarding duplicate state")
				return cur, nil
			}
			return st, nil
		}
		if f.state.CompareAndSwap(cur, st) {
			f.log.Debug().
				Str("file", st.File).
				Str("ns", st.Namespace).
				Uint64("rev", st.Revision).
				Int("defs", len(st.Definitions)).
				Msg("state published")
			return st, nil
		}
	}
}
