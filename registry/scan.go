// Copyright © 2024 The ELPS authors

package registry

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/parser"
)

// ScanResult summarizes a workspace scan.
type ScanResult struct {
	Indexed int
	Failed  int
}

// ScanWorkspace walks root and indexes every source file.  Hidden
// directories, node_modules and excluded paths are skipped.  A file that
// cannot be read or analyzed is logged and skipped; only cancellation of
// ctx or a failure to walk root fails the scan.
func (r *Registry) ScanWorkspace(ctx context.Context, root string) (ScanResult, error) {
	ctx, span := otel.GetTracerProvider().Tracer(tracerName).Start(ctx, "registry.ScanWorkspace")
	defer span.End()
	span.SetAttributes(attribute.String("cljsym.root", root))

	paths, err := r.sourceFiles(root)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScanResult{}, err
	}

	var indexed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := r.AddFile(gctx, path)
			switch {
			case err == nil:
				indexed.Add(1)
			case errors.Is(err, analysis.ErrCancelled) || gctx.Err() != nil:
				return gctx.Err()
			default:
				failed.Add(1)
				r.log.Warn().Err(err).Str("file", path).Msg("skipping file")
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	res := ScanResult{Indexed: int(indexed.Load()), Failed: int(failed.Load())}
	span.SetAttributes(
		attribute.Int("cljsym.indexed", res.Indexed),
		attribute.Int("cljsym.failed", res.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	r.log.Info().
		Str("root", root).
		Int("indexed", res.Indexed).
		Int("failed", res.Failed).
		Msg("workspace scanned")
	return res, nil
}

// sourceFiles lists the source files under root that a scan indexes.
func (r *Registry) sourceFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // skip unreadable entries
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if path != root && (shouldSkipDir(d.Name()) || r.excluded(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if parser.IsSource(path) && !r.excluded(rel) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// shouldSkipDir reports whether a directory is never scanned: hidden
// directories and node_modules.
func shouldSkipDir(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return (len(name) > 0 && name[0] == '.') || name == "node_modules"
}
