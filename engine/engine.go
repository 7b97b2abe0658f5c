package engine

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/docsight/go-highlightserver/pkg/highlight"
)

var errDocumentUnknown = errors.New("highlights: location's tree is not part of the solution")

// Engine computes document highlights. All collaborators are injected; the
// engine itself holds no mutable state and a single Engine value may serve
// concurrent requests.
type Engine struct {
	Models ModelProvider
	Search ReferenceSearcher
	Facts  SyntaxFacts
	Syntax Syntax

	// Filters are the record-narrowing predicates. Required.
	Filters RecordFilters

	// Additional contributes language-specific extra occurrences. Optional.
	Additional AdditionalReferenceProvider

	// MaxParallelism bounds fan-out in the collection and span-resolution
	// stages. Zero means a small default.
	MaxParallelism int
}

func (e *Engine) parallelism() int {
	if e.MaxParallelism > 0 {
		return e.MaxParallelism
	}
	return 8
}

// Highlights returns every occurrence of the symbol at offset in uri across
// the documents in scope, grouped per document. A position on whitespace, an
// inadmissible symbol, or an empty scope all yield an empty result with a nil
// error. The only errors surfaced are cancellation and internal contract
// violations.
func (e *Engine) Highlights(ctx context.Context, sol Solution, uri lsp.DocumentURI, offset int, scope DocumentSet) ([]highlight.DocumentHighlights, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "highlights")
	defer span.Finish()
	span.SetTag("uri", string(uri))
	span.SetTag("offset", offset)
	highlightRequests.Inc()

	result, err := e.highlights(ctx, sol, uri, offset, scope)
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
		return nil, err
	}
	if len(result) == 0 {
		highlightEmptyResults.Inc()
	}
	return result, nil
}

func (e *Engine) highlights(ctx context.Context, sol Solution, uri lsp.DocumentURI, offset int, scope DocumentSet) ([]highlight.DocumentHighlights, error) {
	if offset < 0 {
		return nil, errors.Errorf("highlights: negative offset %d", offset)
	}
	if len(scope) == 0 {
		return nil, nil
	}

	sym, err := e.resolveSymbol(ctx, uri, offset)
	if err != nil {
		return nil, err
	}
	if sym == nil {
		return nil, nil
	}

	recs, additional, err := e.collectReferences(ctx, sym, scope)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 && len(additional) == 0 {
		return nil, nil
	}

	recs, err = e.filterRecords(recs, sym)
	if err != nil {
		return nil, err
	}

	return e.buildHighlights(ctx, sol, sym, recs, additional, scope)
}

// References returns the raw filtered reference locations for the symbol at
// offset, without span narrowing or definition classification. It reuses the
// resolution, collection and filter stages and backs textDocument/references.
func (e *Engine) References(ctx context.Context, sym Symbol, scope DocumentSet) ([]ReferencedSymbol, []Location, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "references")
	defer span.Finish()

	recs, additional, err := e.collectReferences(ctx, sym, scope)
	if err != nil {
		return nil, nil, err
	}
	recs, err = e.filterRecords(recs, sym)
	if err != nil {
		return nil, nil, err
	}
	return recs, additional, nil
}

// ResolveSymbol exposes the resolution stage (speculative model first,
// authoritative model reconciliation) for callers that need the symbol
// itself, e.g. the references handler.
func (e *Engine) ResolveSymbol(ctx context.Context, uri lsp.DocumentURI, offset int) (Symbol, error) {
	return e.resolveSymbol(ctx, uri, offset)
}
