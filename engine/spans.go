package engine

import (
	"context"
	"sort"

	"github.com/neelance/parallel"
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/docsight/go-highlightserver/pkg/highlight"
)

// spanJob is one location awaiting span resolution, in insertion-priority
// order. Definitions are enqueued before references so that a location
// appearing in both sets keeps its definition classification at the dedup
// step.
type spanJob struct {
	loc          Location
	isDefinition bool
}

type resolvedSpan struct {
	uri  lsp.DocumentURI
	span highlight.Span
	ok   bool
}

// buildHighlights turns filtered records plus additional references into
// per-document highlight collections. Span resolution fans out; admission
// into the shared dedup set happens in a single sequential merge over the
// original job order, which is the linearization point the
// definition-before-reference guarantee relies on.
func (e *Engine) buildHighlights(ctx context.Context, sol Solution, sym Symbol, recs []ReferencedSymbol, additional []Location, scope DocumentSet) ([]highlight.DocumentHighlights, error) {
	var jobs []spanJob

	// Definitions. An alias highlights its own declaration, never the
	// aliased target's, so the alias's first location is the only definition
	// and every record's definition locations are suppressed.
	aliasOnly := sym.Kind() == SymbolAlias && len(sym.Locations()) > 0
	if aliasOnly {
		jobs = append(jobs, spanJob{loc: sym.Locations()[0], isDefinition: true})
	} else {
		for _, rec := range recs {
			if rec.Definition == nil || !includeDefinition(rec.Definition) {
				continue
			}
			for _, loc := range rec.Definition.Locations() {
				if !loc.InSource {
					continue
				}
				jobs = append(jobs, spanJob{loc: loc, isDefinition: true})
			}
		}
	}

	// References are never subject to the definition admissibility check.
	for _, rec := range recs {
		for _, loc := range rec.References {
			jobs = append(jobs, spanJob{loc: loc})
		}
	}
	for _, loc := range additional {
		jobs = append(jobs, spanJob{loc: loc})
	}

	resolved, err := e.resolveSpans(ctx, sol, jobs)
	if err != nil {
		return nil, err
	}

	// Merge. The dedup key is (document, final span); the first
	// classification encountered wins and is never upgraded.
	type dedupKey struct {
		uri  lsp.DocumentURI
		span highlight.Span
	}
	seen := make(map[dedupKey]struct{})
	byDoc := make(map[lsp.DocumentURI][]highlight.HighlightSpan)
	for i, job := range jobs {
		r := resolved[i]
		if !r.ok {
			continue
		}
		if job.isDefinition && !aliasOnly && !scope.Contains(r.uri) {
			continue
		}
		key := dedupKey{uri: r.uri, span: r.span}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		byDoc[r.uri] = append(byDoc[r.uri], highlight.HighlightSpan{
			Span:         r.span,
			IsDefinition: job.isDefinition,
		})
	}

	// Documents with zero spans are omitted, not returned empty.
	result := make([]highlight.DocumentHighlights, 0, len(byDoc))
	for uri, spans := range byDoc {
		sort.Slice(spans, func(i, j int) bool { return spans[i].Span.Start < spans[j].Span.Start })
		result = append(result, highlight.DocumentHighlights{URI: uri, Spans: spans})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].URI < result[j].URI })
	return result, nil
}

// includeDefinition reports whether sym's declarations may be shown as
// definition spans. Namespaces span whole files; implicit container types
// have no source-visible name; an indexer parameter's reference is already
// carried by the accessor method.
func includeDefinition(sym Symbol) bool {
	switch sym.Kind() {
	case SymbolNamespace:
		return false
	case SymbolType:
		if impl, ok := sym.(ImplicitlyDeclared); ok && impl.IsImplicitlyDeclared() {
			return false
		}
	case SymbolParameter:
		if p, ok := sym.(IndexerParameter); ok && p.IsIndexerParameter() {
			return false
		}
	}
	return true
}

// resolveSpans computes the final (document, span) for every job. Each call
// reads only immutable inputs and writes to its own slot, so resolution runs
// concurrently; failures mark the slot absent and never fail the request.
func (e *Engine) resolveSpans(ctx context.Context, sol Solution, jobs []spanJob) ([]resolvedSpan, error) {
	var (
		par      = parallel.NewRun(e.parallelism())
		resolved = make([]resolvedSpan, len(jobs))
		soft     = &softErrors{}
	)
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			break
		}
		par.Acquire()
		go func(i int, loc Location) {
			defer par.Release()
			uri, span, err := e.resolveSpan(ctx, sol, loc)
			if err != nil {
				soft.add(err)
				return
			}
			resolved[i] = resolvedSpan{uri: uri, span: span, ok: true}
		}(i, job.loc)
	}
	par.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	soft.log("span resolution")
	return resolved, nil
}

// resolveSpan maps a location to its owning document and final span. The
// token at the location's start is looked up with trivia included so
// documentation-comment cross-references still land on a token. When the
// token's parent is a generic name or an indexer member cross-reference the
// span narrows to the token itself: such locations cover a whole
// instantiation or cref, but only the identifier should light up.
func (e *Engine) resolveSpan(ctx context.Context, sol Solution, loc Location) (lsp.DocumentURI, highlight.Span, error) {
	uri, ok := sol.Document(loc.Tree)
	if !ok {
		return "", highlight.Span{}, errDocumentUnknown
	}

	root, err := e.Syntax.Root(ctx, loc.Tree)
	if err != nil {
		return "", highlight.Span{}, err
	}
	tok, err := e.Syntax.FindToken(root, loc.Span.Start, true)
	if err != nil {
		return "", highlight.Span{}, err
	}

	span := loc.Span
	if parent := tok.Parent(); parent != nil &&
		(e.Facts.IsGenericName(parent) || e.Facts.IsIndexerMemberCrossReference(parent)) {
		span = tok.Span()
	}
	return uri, span, nil
}
