// Copyright © 2024 The ELPS authors

package lsp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser/token"
)

const debounceDelay = 300 * time.Millisecond

const (
	diagnosticSource = "cljsym"
	codeUnresolved   = "unresolved-symbol"
)

// textDocumentDidOpen handles the textDocument/didOpen notification.
func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.captureNotify(ctx)
	doc := s.docs.Open(
		params.TextDocument.URI,
		int32(params.TextDocument.Version),
		params.TextDocument.Text,
	)
	s.analyzeAndPublish(doc)
	return nil
}

// textDocumentDidChange handles the textDocument/didChange notification.
func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.captureNotify(ctx)
	// With full sync, the last content change is the complete document.
	var content string
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			content = c.Text
		case protocol.TextDocumentContentChangeEvent:
			content = c.Text
		}
	}

	doc := s.docs.Change(
		params.TextDocument.URI,
		int32(params.TextDocument.Version),
		content,
	)

	// Debounce: delay analysis to avoid thrashing during rapid edits.
	s.debounceMu.Lock()
	if t, ok := s.debounce[doc.URI]; ok {
		t.Stop()
	}
	s.debounce[doc.URI] = time.AfterFunc(debounceDelay, func() {
		defer func() {
			if v := recover(); v != nil {
				s.log.Error().Interface("panic", v).Str("uri", doc.URI).Msg("analysis failed")
			}
		}()
		if d := s.docs.Get(doc.URI); d != nil {
			s.analyzeAndPublish(d)
		}
	})
	s.debounceMu.Unlock()
	return nil
}

// textDocumentDidSave handles the textDocument/didSave notification.  The
// saved content replaces the file's entry in the registry.
func (s *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.captureNotify(ctx)
	s.stopDebounce(params.TextDocument.URI)

	doc := s.docs.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}
	rctx, cancel := s.requestContext()
	defer cancel()
	if st := s.stateOf(rctx, doc); st != nil {
		if err := s.registry.AddState(rctx, st); err != nil {
			s.log.Warn().Err(err).Str("file", st.File).Msg("re-indexing saved file failed")
		}
	}
	s.analyzeAndPublish(doc)
	return nil
}

// textDocumentDidClose handles the textDocument/didClose notification.
func (s *Server) textDocumentDidClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.stopDebounce(params.TextDocument.URI)

	// Clear diagnostics for the closed file.
	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})

	s.docs.Close(params.TextDocument.URI)
	return nil
}

func (s *Server) stopDebounce(uri string) {
	s.debounceMu.Lock()
	if t, ok := s.debounce[uri]; ok {
		t.Stop()
		delete(s.debounce, uri)
	}
	s.debounceMu.Unlock()
}

// analyzeAndPublish analyzes a document and publishes its syntax errors
// and unresolved symbols to the client.
func (s *Server) analyzeAndPublish(doc *Document) {
	s.ensureWorkspaceIndex()

	ctx, cancel := s.requestContext()
	defer cancel()
	st := s.stateOf(ctx, doc)
	if st == nil {
		return
	}

	diags := []protocol.Diagnostic{}
	for _, err := range st.Tree.Errors {
		diags = append(diags, protocol.Diagnostic{
			Range:    parseErrorRange(st.Tree.Source, err),
			Severity: severity(protocol.DiagnosticSeverityError),
			Source:   strPtr(diagnosticSource),
			Message:  parseErrorMessage(err),
		})
	}
	diags = append(diags, s.unresolved(ctx, st)...)

	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Diagnostics: diags,
	})
}

// unresolved reports the symbols of st that denote nothing.
func (s *Server) unresolved(ctx context.Context, st *analysis.State) []protocol.Diagnostic {
	var diags []protocol.Diagnostic
	for _, n := range s.resolver.Unresolved(ctx, st) {
		diags = append(diags, protocol.Diagnostic{
			Range:    rangeToLSP(st.Tree.Source, n.Range),
			Severity: severity(protocol.DiagnosticSeverityWarning),
			Source:   strPtr(diagnosticSource),
			Code:     &protocol.IntegerOrString{Value: codeUnresolved},
			Message:  fmt.Sprintf("unresolved symbol `%s`", n.Text),
		})
	}
	return diags
}

func severity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

// parseErrorRange returns a one character range at the location of a
// syntax error.
func parseErrorRange(src string, err error) protocol.Range {
	var locErr *token.LocationError
	if errors.As(err, &locErr) && locErr.Source != nil {
		return rangeToLSP(src, form.Range{Start: locErr.Source.Pos, End: min(locErr.Source.Pos+1, len(src))})
	}
	return protocol.Range{}
}

// parseErrorMessage strips the location prefix the client already shows.
func parseErrorMessage(err error) string {
	var locErr *token.LocationError
	if errors.As(err, &locErr) && locErr.Err != nil {
		return locErr.Err.Error()
	}
	return err.Error()
}

func strPtr(s string) *string {
	return &s
}
