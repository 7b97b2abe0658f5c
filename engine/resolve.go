package engine

import (
	"context"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/docsight/go-highlightserver/pkg/highlight"
)

// resolveSymbol finds the symbol at offset in uri. It asks for a speculative
// model around a zero-width span first, then fetches the authoritative full
// model. If the full model is the same handle the speculative answer stands;
// otherwise the lookup is re-run against the full model and that answer wins,
// even if it is nil. Speculative models are cheap but may reflect a
// transient, partial analysis; a differing full model is the source of truth.
func (e *Engine) resolveSymbol(ctx context.Context, uri lsp.DocumentURI, offset int) (Symbol, error) {
	spec, err := e.Models.SpeculativeModel(ctx, uri, highlight.Span{Start: offset, End: offset})
	if err != nil {
		return nil, err
	}

	sym, err := spec.SymbolAt(ctx, offset)
	if err != nil {
		return nil, err
	}
	if sym == nil {
		// Whitespace or trivia. Empty result, not an error.
		return nil, nil
	}

	full, err := e.Models.FullModel(ctx, uri)
	if err != nil {
		return nil, err
	}
	if full == spec {
		return sym, nil
	}
	return full.SymbolAt(ctx, offset)
}
