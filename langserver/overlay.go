package langserver

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
)

// overlay owns the live contents of documents the client has opened. All
// highlight and reference requests run against these contents, never the
// disk.
type overlay struct {
	mu   sync.Mutex
	docs map[lsp.DocumentURI][]byte
}

func newOverlay() *overlay {
	return &overlay{docs: make(map[lsp.DocumentURI][]byte)}
}

func (o *overlay) get(uri lsp.DocumentURI) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	text, ok := o.docs[uri]
	return text, ok
}

func (o *overlay) set(uri lsp.DocumentURI, text []byte) {
	o.mu.Lock()
	o.docs[uri] = text
	o.mu.Unlock()
}

func (o *overlay) del(uri lsp.DocumentURI) {
	o.mu.Lock()
	delete(o.docs, uri)
	o.mu.Unlock()
}

// snapshot copies the overlay for an immutable per-request workspace.
func (o *overlay) snapshot() map[lsp.DocumentURI][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	m := make(map[lsp.DocumentURI][]byte, len(o.docs))
	for uri, text := range o.docs {
		m[uri] = text
	}
	return m
}

// IsFileSystemRequest reports whether the request mutates the overlay.
func IsFileSystemRequest(method string) bool {
	switch method {
	case "textDocument/didOpen", "textDocument/didChange", "textDocument/didClose", "textDocument/didSave":
		return true
	}
	return false
}

// handleFileSystemRequest applies a textDocument/did* notification to the
// overlay. The caller invalidates cached analysis afterwards.
func (h *LangHandler) handleFileSystemRequest(ctx context.Context, req *jsonrpc2.Request) error {
	switch req.Method {
	case "textDocument/didOpen":
		var params lsp.DidOpenTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return err
		}
		h.overlay.set(params.TextDocument.URI, []byte(params.TextDocument.Text))
		return nil

	case "textDocument/didChange":
		var params lsp.DidChangeTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return err
		}
		if len(params.ContentChanges) == 0 {
			return nil
		}
		// Sync is full-text (TDSKFull): the last change carries the whole
		// document.
		change := params.ContentChanges[len(params.ContentChanges)-1]
		if change.Range != nil {
			return errors.Errorf("incremental sync not supported (got ranged change for %s)", params.TextDocument.URI)
		}
		h.overlay.set(params.TextDocument.URI, []byte(change.Text))
		return nil

	case "textDocument/didClose":
		var params lsp.DidCloseTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return err
		}
		h.overlay.del(params.TextDocument.URI)
		return nil

	case "textDocument/didSave":
		// Nothing to do: the overlay already has the saved contents.
		return nil
	}
	return errors.Errorf("unknown file system request %q", req.Method)
}
