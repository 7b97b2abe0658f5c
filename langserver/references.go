package langserver

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/docsight/go-highlightserver/engine"
)

func (h *LangHandler) handleTextDocumentReferences(ctx context.Context, conn jsonrpc2.JSONRPC2, req *jsonrpc2.Request, params lsp.ReferenceParams) ([]lsp.Location, error) {
	uri := params.TextDocument.URI
	contents, ok := h.overlay.get(uri)
	if !ok {
		return nil, errors.Errorf("document not open: %s", uri)
	}
	offset, valid, why := offsetForPosition(contents, params.Position)
	if !valid {
		return nil, errors.Errorf("invalid position %d:%d in %s (%s)", params.Position.Line, params.Position.Character, uri, why)
	}

	ws, eng, err := h.workspace()
	if err != nil {
		return nil, err
	}
	scope := h.scopeFor(ws, uri)

	sym, err := eng.ResolveSymbol(ctx, uri, offset)
	if err != nil {
		return nil, err
	}
	if sym == nil {
		return []lsp.Location{}, nil
	}

	recs, additional, err := eng.References(ctx, sym, scope)
	if err != nil {
		return nil, err
	}

	locs := []lsp.Location{}
	add := func(l engine.Location) {
		treeURI, ok := ws.Document(l.Tree)
		if !ok || !scope.Contains(treeURI) {
			return
		}
		text, ok := ws.Text(treeURI)
		if !ok {
			return
		}
		locs = append(locs, lsp.Location{
			URI:   treeURI,
			Range: rangeForSpan(text, l.Span),
		})
	}
	for _, rec := range recs {
		if params.Context.IncludeDeclaration {
			for _, l := range rec.Definition.Locations() {
				if l.InSource {
					add(l)
				}
			}
		}
		for _, l := range rec.References {
			add(l)
		}
	}
	for _, l := range additional {
		add(l)
	}

	sort.Slice(locs, func(i, j int) bool {
		if locs[i].URI != locs[j].URI {
			return locs[i].URI < locs[j].URI
		}
		if locs[i].Range.Start.Line != locs[j].Range.Start.Line {
			return locs[i].Range.Start.Line < locs[j].Range.Start.Line
		}
		return locs[i].Range.Start.Character < locs[j].Range.Start.Character
	})
	return dedupLocations(locs), nil
}

func dedupLocations(locs []lsp.Location) []lsp.Location {
	out := locs[:0]
	var prev lsp.Location
	for i, l := range locs {
		if i > 0 && l == prev {
			continue
		}
		out = append(out, l)
		prev = l
	}
	return out
}
