// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luthersystems/cljsym/internal/logging"
	"github.com/luthersystems/cljsym/internal/metrics"
	"github.com/luthersystems/cljsym/lsp"
)

// LSPCommand creates the "lsp" cobra command with optional embedder
// configuration. Embedders can pass WithClassTable to inject host classes
// and WithRegisterer to collect the server's metrics themselves.
func LSPCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts)

	var (
		stdio bool
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "lsp [flags]",
		Short: "Start the Language Server Protocol server",
		Long: `Start an LSP server for Clojure, ClojureScript and cljc source files.

The language server reports syntax errors and unresolved symbols, and
provides hover, go-to-definition, references, completion, document and
workspace symbols and folding ranges.  The workspace folder given by the
client is indexed in the background; with --watch (the default) files
changed outside the editor are re-indexed.

Transport modes:
  --stdio      Use stdin/stdout for LSP communication (default)
  --port N     Listen for an LSP client on TCP port N

With metrics.addr set (or --metrics-addr), Prometheus metrics are served
at /metrics on that address.

Examples:
  cljsym lsp                                  Start with stdio transport
  cljsym lsp --stdio                          Same as above (explicit)
  cljsym lsp --port 7998                      Start with TCP on port 7998
  cljsym lsp --metrics-addr localhost:9464    Also serve metrics

Editor configuration (VS Code):
  Install a generic LSP client extension and configure it to run
  "cljsym lsp --stdio" for .clj, .cljs and .cljc files.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			log, err := logging.New(viper.GetString("log.level"), os.Stderr)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fail := func(err error) {
				log.Error().Err(err).Msg("lsp server error")
				os.Exit(1)
			}

			var m *metrics.Metrics
			if addr := viper.GetString("metrics.addr"); addr != "" {
				if m, err = cfg.serveMetrics(ctx, addr, log); err != nil {
					fail(err)
				}
			}

			ws, err := cfg.openWorkspace(ctx, m)
			if err != nil {
				fail(err)
			}
			defer ws.Close() //nolint:errcheck // stubs are committed as they are written

			srv := lsp.New(ws.registry, ws.resolver,
				lsp.WithLogger(ws.log),
				lsp.WithMetrics(m),
				lsp.WithWatch(watch),
			)

			if !stdio && port > 0 {
				addr := fmt.Sprintf("localhost:%d", port)
				ws.log.Info().Str("addr", addr).Msg("lsp server listening")
				err = srv.RunTCP(addr)
			} else {
				err = srv.RunStdio()
			}
			if err != nil {
				fail(err)
			}
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false,
		"Use stdin/stdout for LSP communication (default behavior)")
	cmd.Flags().IntVar(&port, "port", 0,
		"TCP port for LSP server (use instead of --stdio)")
	cmd.Flags().BoolVar(&watch, "watch", true,
		"Re-index workspace files changed outside the editor")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics at /metrics on this address")
	if err := viper.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr")); err != nil {
		panic(err)
	}

	return cmd
}

// serveMetrics registers the engine's collectors and serves them on addr
// until ctx is done.
func (c *cmdConfig) serveMetrics(ctx context.Context, addr string, log zerolog.Logger) (*metrics.Metrics, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	var (
		reg     prometheus.Registerer = prometheus.DefaultRegisterer
		handler                       = promhttp.Handler()
	)
	if c.registerer != nil {
		reg = c.registerer
		if g, ok := c.registerer.(prometheus.Gatherer); ok {
			handler = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
		}
	}
	m := metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	return m, nil
}

func init() {
	rootCmd.AddCommand(LSPCommand())
}
