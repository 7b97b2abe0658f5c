// Package highlight defines the result surface of the document highlights
// engine: per-document collections of (span, is-definition) pairs. It is
// shared by the engine and by protocol frontends that render the spans.
package highlight

import (
	lsp "github.com/sourcegraph/go-lsp"
)

// Span is a half-open byte-offset interval [Start, End) into a document's
// current text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether offset lies within the span.
func (s Span) Contains(offset int) bool { return s.Start <= offset && offset < s.End }

// HighlightSpan is one occurrence of the queried symbol.
type HighlightSpan struct {
	Span Span `json:"span"`

	// IsDefinition is true if the span is a declaration of the symbol
	// rather than a use of it.
	IsDefinition bool `json:"isDefinition,omitempty"`
}

// DocumentHighlights groups every highlight span found in a single document.
// A document with no spans never appears in a result set.
type DocumentHighlights struct {
	URI   lsp.DocumentURI `json:"uri"`
	Spans []HighlightSpan `json:"spans"`
}

// DocumentHighlight is the wire representation of one span in a
// textDocument/documentHighlight response.
//
// See: https://microsoft.github.io/language-server-protocol/specification#textDocument_documentHighlight
type DocumentHighlight struct {
	Range lsp.Range `json:"range"`
	Kind  Kind      `json:"kind,omitempty"`
}

// Kind is the LSP document highlight kind.
type Kind int

const (
	Text  Kind = 1
	Read  Kind = 2
	Write Kind = 3
)
