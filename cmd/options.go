// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/luthersystems/cljsym/hostclass"
	"github.com/luthersystems/cljsym/internal/logging"
	"github.com/luthersystems/cljsym/internal/metrics"
	"github.com/luthersystems/cljsym/registry"
	"github.com/luthersystems/cljsym/resolve"
	"github.com/luthersystems/cljsym/stub"
)

// Option configures an exported command factory (LSPCommand,
// ResolveCommand).
type Option func(*cmdConfig)

type cmdConfig struct {
	classes    *hostclass.Table
	registerer prometheus.Registerer
}

// WithClassTable adds host classes known to an embedder to the built-in
// class table, for example the classes of a project's Java sources.
func WithClassTable(t *hostclass.Table) Option {
	return func(c *cmdConfig) { c.classes = t }
}

// WithRegisterer registers the engine's collectors with reg instead of the
// default Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *cmdConfig) { c.registerer = reg }
}

func newCmdConfig(opts []Option) *cmdConfig {
	var cfg cmdConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &cfg
}

// resolveClasses returns the built-in class table merged with the table
// named by hostclasses.file and any table supplied by the embedder.
func (c *cmdConfig) resolveClasses(m *metrics.Metrics) (*hostclass.Table, error) {
	opts := []hostclass.Option{
		hostclass.WithCacheSize(viper.GetInt("cache.size")),
		hostclass.WithMetrics(m),
	}
	t := hostclass.Default(opts...)
	if path := viper.GetString("hostclasses.file"); path != "" {
		extra, err := hostclass.LoadFile(path, opts...)
		if err != nil {
			return nil, err
		}
		t.Merge(extra)
	}
	if c.classes != nil {
		t.Merge(c.classes)
	}
	return t, nil
}

// workspace bundles the engine components a command works with.
type workspace struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	store    *stub.Store
	registry *registry.Registry
	resolver *resolve.Resolver
}

// openWorkspace builds the registry and resolver from configuration.  With
// index.db set the registry is backed by the stub store there and starts
// out holding the stubs already stored.
func (c *cmdConfig) openWorkspace(ctx context.Context, m *metrics.Metrics) (*workspace, error) {
	log, err := logging.New(viper.GetString("log.level"), os.Stderr)
	if err != nil {
		return nil, err
	}
	ws := &workspace{log: log, metrics: m}

	regOpts := []registry.Option{
		registry.WithLogger(log),
		registry.WithMetrics(m),
		registry.WithExcludes(viper.GetStringSlice("workspace.exclude")...),
		registry.WithCacheSize(viper.GetInt("cache.size")),
	}
	if path := viper.GetString("index.db"); path != "" {
		ws.store, err = stub.OpenStore(path)
		if err != nil {
			return nil, err
		}
		regOpts = append(regOpts, registry.WithStore(ws.store))
	}
	ws.registry, err = registry.New(regOpts...)
	if err != nil {
		ws.Close() //nolint:errcheck,gosec // already failing
		return nil, err
	}
	if err := ws.registry.Open(ctx); err != nil {
		ws.Close() //nolint:errcheck,gosec // already failing
		return nil, err
	}

	classes, err := c.resolveClasses(m)
	if err != nil {
		ws.Close() //nolint:errcheck,gosec // already failing
		return nil, err
	}
	ws.resolver = resolve.New(ws.registry, classes,
		resolve.WithLogger(log),
		resolve.WithMetrics(m),
		resolve.WithCacheSize(viper.GetInt("cache.size")),
	)
	return ws, nil
}

// scan indexes root, or workspace.root when root is empty.  Scanning
// nothing is not an error.
func (ws *workspace) scan(ctx context.Context, root string) (registry.ScanResult, error) {
	if root == "" {
		root = viper.GetString("workspace.root")
	}
	if root == "" {
		return registry.ScanResult{}, nil
	}
	res, err := ws.registry.ScanWorkspace(ctx, root)
	if err != nil {
		return res, fmt.Errorf("indexing %s: %w", root, err)
	}
	return res, nil
}

func (ws *workspace) Close() error {
	if ws.store == nil {
		return nil
	}
	return ws.store.Close()
}
