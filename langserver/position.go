package langserver

import (
	"fmt"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/docsight/go-highlightserver/pkg/highlight"
)

// offsetForPosition converts a 0-based LSP line/character position into a
// byte offset in contents. The returned offset may equal len(contents) (a
// cursor at end of file is valid).
func offsetForPosition(contents []byte, p lsp.Position) (offset int, valid bool, whyInvalid string) {
	line := 0
	col := 0
	for _, b := range contents {
		if line == p.Line && col == p.Character {
			return offset, true, ""
		}
		if (line == p.Line && col > p.Character) || line > p.Line {
			return 0, false, fmt.Sprintf("character %d is beyond line %d boundary", p.Character, p.Line)
		}
		offset++
		if b == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	if line == p.Line && col == p.Character {
		return offset, true, ""
	}
	if line == 0 && p.Line == 0 && p.Character == 0 {
		return 0, true, ""
	}
	return 0, false, fmt.Sprintf("file only has %d lines", line+1)
}

// positionForOffset is the inverse of offsetForPosition. Offsets beyond the
// end of contents clamp to the final position.
func positionForOffset(contents []byte, offset int) lsp.Position {
	if offset > len(contents) {
		offset = len(contents)
	}
	var p lsp.Position
	for _, b := range contents[:offset] {
		if b == '\n' {
			p.Line++
			p.Character = 0
		} else {
			p.Character++
		}
	}
	return p
}

// rangeForSpan converts a byte span into an LSP range within contents.
func rangeForSpan(contents []byte, span highlight.Span) lsp.Range {
	return lsp.Range{
		Start: positionForOffset(contents, span.Start),
		End:   positionForOffset(contents, span.End),
	}
}
