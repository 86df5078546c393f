// Copyright © 2024 The ELPS authors

package lsp

import (
	"sort"
	"sync"

	"github.com/luthersystems/cljsym/analysis"
	"github.com/luthersystems/cljsym/parser"
)

// Document represents an open text document tracked by the LSP server.
// Every edit re-parses the content into a new revision of file; analysis of
// a revision happens on demand.
type Document struct {
	mu      sync.Mutex
	URI     string
	Version int32
	Content string
	file    *analysis.File
}

func newDocument(uri string, version int32, content string, opts []analysis.FileOption) *Document {
	tree := parser.Parse(uriToPath(uri), content)
	return &Document{
		URI:     uri,
		Version: version,
		Content: content,
		file:    analysis.NewFile(tree, opts...),
	}
}

// File returns the analysis handle of the document.
func (d *Document) File() *analysis.File {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file
}

// update replaces the content and returns the new revision.
func (d *Document) update(version int32, content string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Version = version
	d.Content = content
	return d.file.Update(parser.Parse(uriToPath(d.URI), content))
}

// DocumentStore manages open documents with thread-safe access.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
	opts []analysis.FileOption
}

// NewDocumentStore creates an empty document store.  The options configure
// the analysis of every document opened in it.
func NewDocumentStore(opts ...analysis.FileOption) *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]*Document),
		opts: opts,
	}
}

// Open adds a document to the store and parses it.
func (s *DocumentStore) Open(uri string, version int32, content string) *Document {
	doc := newDocument(uri, version, content, s.opts)
	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()
	return doc
}

// Change updates a document's content (full sync) and re-parses it.  A
// change to a document that was never opened opens it.
func (s *DocumentStore) Change(uri string, version int32, content string) *Document {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		doc = newDocument(uri, version, content, s.opts)
		s.docs[uri] = doc
		s.mu.Unlock()
		return doc
	}
	s.mu.Unlock()
	doc.update(version, content)
	return doc
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Get retrieves a document by URI. Returns nil if not found.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

// All returns the open documents ordered by URI.
func (s *DocumentStore) All() []*Document {
	s.mu.RLock()
	docs := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}
