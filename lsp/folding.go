// Copyright © 2024 The ELPS authors

package lsp

import (
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/cljsym/form"
)

// textDocumentFoldingRange handles the textDocument/foldingRange request.
// It returns folding ranges for multi-line collections and consecutive
// comment blocks.  A top-level ns form folds as imports.
func (s *Server) textDocumentFoldingRange(_ *glsp.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	doc := s.docs.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	tree := doc.File().Tree()

	var ranges []protocol.FoldingRange
	for _, f := range tree.Forms {
		collectFoldingRanges(tree.Source, f, &ranges)
	}
	ranges = append(ranges, commentFoldingRanges(tree.Source)...)
	return ranges, nil
}

// collectFoldingRanges walks a form and emits a folding range for each
// collection that spans more than one line.
func collectFoldingRanges(src string, top *form.Node, ranges *[]protocol.FoldingRange) {
	form.Walk(top, func(n *form.Node) bool {
		if !n.Kind.IsColl() {
			return false
		}
		start := offsetToLSP(src, n.Range.Start)
		end := offsetToLSP(src, n.Range.End)
		if end.Line > start.Line {
			kind := string(protocol.FoldingRangeKindRegion)
			if n == top && n.HeadSymbol() == "ns" {
				kind = string(protocol.FoldingRangeKindImports)
			}
			*ranges = append(*ranges, protocol.FoldingRange{
				StartLine: start.Line,
				EndLine:   end.Line,
				Kind:      &kind,
			})
		}
		return true
	})
}

// commentFoldingRanges detects consecutive lines starting with ";" and
// produces a folding range for each block of 2+ lines.
func commentFoldingRanges(content string) []protocol.FoldingRange {
	lines := strings.Split(content, "\n")
	var ranges []protocol.FoldingRange
	emit := func(from, to int) {
		if to > from {
			kind := string(protocol.FoldingRangeKindComment)
			ranges = append(ranges, protocol.FoldingRange{
				StartLine: safeUint(from),
				EndLine:   safeUint(to),
				Kind:      &kind,
			})
		}
	}
	blockStart := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ";") {
			if blockStart < 0 {
				blockStart = i
			}
			continue
		}
		if blockStart >= 0 {
			emit(blockStart, i-1)
		}
		blockStart = -1
	}
	if blockStart >= 0 {
		emit(blockStart, len(lines)-1)
	}
	return ranges
}
