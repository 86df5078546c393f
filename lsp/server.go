// Copyright © 2024 The ELPS authors

// Package lsp implements a Language Server Protocol server for Clojure,
// ClojureScript and cljc sources.  It provides diagnostics for syntax
// errors and unresolved symbols, hover, go-to-definition, references,
// completion, document and workspace symbols, and folding ranges.
package lsp

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tliron/glsp"
	glspserver "github.com/tliron/glsp/server"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/internal/metrics"
	"github.com/luthersystems/cljsym/registry"
	"github.com/luthersystems/cljsym/resolve"
)

const serverName = "cljsym-lsp"

// DefaultRequestTimeout bounds the analysis and resolution work done for a
// single request.
const DefaultRequestTimeout = 5 * time.Second

// Server is the language server.
type Server struct {
	handler  protocol.Handler
	glspSrv  *glspserver.Server
	docs     *DocumentStore
	rootURI  string
	rootPath string

	registry *registry.Registry
	resolver *resolve.Resolver

	log     zerolog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	watch   bool

	indexOnce   sync.Once
	watchMu     sync.Mutex
	cancelWatch context.CancelFunc

	// Debouncer for didChange notifications.
	debounceMu sync.Mutex
	debounce   map[string]*time.Timer

	// Context for sending notifications (captured from latest request).
	notifyMu sync.Mutex
	notify   glsp.NotifyFunc

	// exitFn is called on the LSP exit notification. Defaults to os.Exit.
	// Overridable for testing.
	exitFn func(int)
}

// Option configures the LSP server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics sets the collectors updated while analyzing open documents.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithWatch keeps the registry current with the workspace files after the
// initial scan.
func WithWatch(watch bool) Option {
	return func(s *Server) { s.watch = watch }
}

// WithRequestTimeout bounds the work done for one request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a language server resolving symbols against reg through res.
func New(reg *registry.Registry, res *resolve.Resolver, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		resolver: res,
		log:      zerolog.Nop(),
		timeout:  DefaultRequestTimeout,
		debounce: make(map[string]*time.Timer),
		exitFn:   os.Exit,
	}
	for _, o := range opts {
		o(s)
	}
	s.docs = NewDocumentStore(
		analysis.WithLogger(s.log),
		analysis.WithMetrics(s.metrics),
	)

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		Exit:        s.exit,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidSave:   s.textDocumentDidSave,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentReferences:     s.textDocumentReferences,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
		TextDocumentFoldingRange:   s.textDocumentFoldingRange,
		TextDocumentPrepareRename:  s.textDocumentPrepareRename,
		TextDocumentRename:         s.textDocumentRename,
		TextDocumentSignatureHelp:  s.textDocumentSignatureHelp,
		WorkspaceSymbol:            s.workspaceSymbol,
	}

	s.glspSrv = glspserver.NewServer(&s.handler, serverName, false)
	return s
}

// RunStdio starts the server using stdio transport.
func (s *Server) RunStdio() error {
	return s.glspSrv.RunStdio()
}

// RunTCP starts the server listening on the given address.
func (s *Server) RunTCP(addr string) error {
	return s.glspSrv.RunTCP(addr)
}

// initialize handles the LSP initialize request.
func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.captureNotify(ctx)

	if params.RootURI != nil {
		s.rootURI = *params.RootURI
		s.rootPath = uriToPath(s.rootURI)
	} else if params.RootPath != nil {
		s.rootPath = *params.RootPath
		s.rootURI = pathToURI(s.rootPath)
	}

	capabilities := s.handler.CreateServerCapabilities()

	// Override text document sync to full.
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(false)},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"(", ":", "/", "."},
	}
	capabilities.RenameProvider = &protocol.RenameOptions{
		PrepareProvider: boolPtr(true),
	}
	capabilities.SignatureHelpProvider = &protocol.SignatureHelpOptions{
		TriggerCharacters:   []string{" "},
		RetriggerCharacters: []string{" ", ")"},
	}

	version := "0.1.0"
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

// initialized starts indexing the workspace in the background so the first
// requests find it ready.
func (s *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	s.captureNotify(ctx)
	go s.ensureWorkspaceIndex()
	return nil
}

// shutdown handles the LSP shutdown request.
func (s *Server) shutdown(_ *glsp.Context) error {
	s.debounceMu.Lock()
	for _, t := range s.debounce {
		t.Stop()
	}
	s.debounce = make(map[string]*time.Timer)
	s.debounceMu.Unlock()

	s.watchMu.Lock()
	if s.cancelWatch != nil {
		s.cancelWatch()
		s.cancelWatch = nil
	}
	s.watchMu.Unlock()
	return nil
}

// exit handles the LSP exit notification by terminating the process.
func (s *Server) exit(_ *glsp.Context) error {
	s.exitFn(0)
	return nil
}

// setTrace handles the $/setTrace notification (required by some clients).
func (s *Server) setTrace(_ *glsp.Context, _ *protocol.SetTraceParams) error {
	return nil
}

// ensureWorkspaceIndex guarantees the workspace has been scanned at least
// once.  The first caller scans; diagnostics of the documents opened in the
// meantime are then republished against the full index.
func (s *Server) ensureWorkspaceIndex() {
	built := false
	s.indexOnce.Do(func() {
		s.buildWorkspaceIndex()
		built = true
	})
	if built {
		s.reanalyzeOpenDocuments()
	}
}

// buildWorkspaceIndex scans the workspace root into the registry and, if
// configured, starts watching it.
func (s *Server) buildWorkspaceIndex() {
	if s.rootPath == "" {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			s.log.Error().Interface("panic", v).Msg("workspace scan failed")
		}
	}()
	res, err := s.registry.ScanWorkspace(context.Background(), s.rootPath)
	if err != nil {
		s.log.Warn().Err(err).Str("root", s.rootPath).Msg("workspace scan incomplete")
	}
	s.log.Info().Int("indexed", res.Indexed).Int("failed", res.Failed).Msg("workspace indexed")

	if !s.watch {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.watchMu.Lock()
	s.cancelWatch = cancel
	s.watchMu.Unlock()
	go func() {
		err := s.registry.Watch(ctx, s.rootPath, registry.OnReindex(func([]string) {
			s.reanalyzeOpenDocuments()
		}))
		if err != nil {
			s.log.Error().Err(err).Str("root", s.rootPath).Msg("workspace watch stopped")
		}
	}()
}

// reanalyzeOpenDocuments re-publishes diagnostics of every open document
// against the current registry.
func (s *Server) reanalyzeOpenDocuments() {
	for _, doc := range s.docs.All() {
		s.analyzeAndPublish(doc)
	}
}

// requestContext returns the context bounding the work of one request.
func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// documentState returns the analyzed state of the document at uri, or nil
// when the document is not open or its analysis was interrupted.
func (s *Server) documentState(ctx context.Context, uri string) *analysis.State {
	doc := s.docs.Get(uri)
	if doc == nil {
		return nil
	}
	return s.stateOf(ctx, doc)
}

func (s *Server) stateOf(ctx context.Context, doc *Document) *analysis.State {
	st, err := doc.File().State(ctx)
	if err != nil {
		s.log.Debug().Err(err).Str("uri", doc.URI).Msg("document analysis interrupted")
		return nil
	}
	return st
}

// captureNotify stores the notification function from the context for
// async use (e.g., publishing diagnostics after a debounce).
func (s *Server) captureNotify(ctx *glsp.Context) {
	s.notifyMu.Lock()
	s.notify = ctx.Notify
	s.notifyMu.Unlock()
}

// sendNotification sends a notification to the client.
func (s *Server) sendNotification(method string, params any) {
	s.notifyMu.Lock()
	fn := s.notify
	s.notifyMu.Unlock()
	if fn != nil {
		fn(method, params)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
