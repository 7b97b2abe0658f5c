package langserver

import (
	"context"

	"github.com/pkg/errors"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/docsight/go-highlightserver/pkg/highlight"
)

func (h *LangHandler) handleDocumentHighlight(ctx context.Context, conn jsonrpc2.JSONRPC2, req *jsonrpc2.Request, params lsp.TextDocumentPositionParams) ([]highlight.DocumentHighlight, error) {
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

	groups, err := eng.Highlights(ctx, ws, uri, offset, scope)
	if err != nil {
		return nil, err
	}

	// The LSP response covers only the document the request was issued
	// against; occurrences in other documents stay engine-side.
	result := []highlight.DocumentHighlight{}
	for _, g := range groups {
		if g.URI != uri {
			continue
		}
		for _, s := range g.Spans {
			kind := highlight.Read
			if s.IsDefinition {
				kind = highlight.Write
			}
			result = append(result, highlight.DocumentHighlight{
				Range: rangeForSpan(contents, s.Span),
				Kind:  kind,
			})
		}
	}
	return result, nil
}
