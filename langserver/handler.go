package langserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/docsight/go-highlightserver/engine"
	"github.com/docsight/go-highlightserver/gosrc"
)

// NewHandler creates a document-highlight language server handler.
func NewHandler(cfg Config) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError((&LangHandler{
		config:  cfg,
		overlay: newOverlay(),
	}).handle)
}

// LangHandler is a document-highlight LSP/JSON-RPC handler.
type LangHandler struct {
	mu       sync.Mutex
	config   Config
	init     *lsp.InitializeParams // set by "initialize" request
	shutdown bool

	overlay *overlay

	// cached workspace snapshot, invalidated on every overlay change
	wsMu sync.Mutex
	ws   *gosrc.Workspace
	eng  *engine.Engine
}

// handle implements jsonrpc2.Handler.
func (h *LangHandler) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result interface{}, err error) {
	return h.Handle(ctx, conn, req)
}

// Handle implements jsonrpc2.Handler, except conn is an interface type for
// testability.
func (h *LangHandler) Handle(ctx context.Context, conn jsonrpc2.JSONRPC2, req *jsonrpc2.Request) (result interface{}, err error) {
	// Prevent any uncaught panics from taking the entire server down.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected panic: %v", r)

			// Same as net/http
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Printf("highlightserver: panic serving %v: %v\n%s", req.Method, r, buf)
			return
		}
	}()

	h.mu.Lock()
	if req.Method != "initialize" && h.init == nil {
		h.mu.Unlock()
		return nil, errors.New("server must be initialized")
	}
	if h.shutdown && req.Method != "exit" {
		h.mu.Unlock()
		return nil, errors.New("server is shutting down")
	}
	h.mu.Unlock()

	span, ctx := opentracing.StartSpanFromContext(ctx, "lang."+req.Method)
	defer func() {
		if err != nil {
			ext.Error.Set(span, true)
			span.LogKV("error", err.Error())
		}
		span.Finish()
	}()

	switch req.Method {
	case "initialize":
		if h.init != nil {
			return nil, errors.New("language server is already initialized")
		}
		if req.Params == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
		}
		var params lsp.InitializeParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.init = &params
		h.mu.Unlock()

		kind := lsp.TDSKFull
		return lsp.InitializeResult{
			Capabilities: lsp.ServerCapabilities{
				TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
					Kind: &kind,
				},
				DocumentHighlightProvider: true,
				ReferencesProvider:        true,
			},
		}, nil

	case "shutdown":
		h.mu.Lock()
		h.shutdown = true
		h.mu.Unlock()
		return nil, nil

	case "exit":
		if c, ok := conn.(*jsonrpc2.Conn); ok {
			c.Close()
		}
		return nil, nil

	case "textDocument/documentHighlight":
		if req.Params == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
		}
		var params lsp.TextDocumentPositionParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		return h.handleDocumentHighlight(ctx, conn, req, params)

	case "textDocument/references":
		if req.Params == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
		}
		var params lsp.ReferenceParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		return h.handleTextDocumentReferences(ctx, conn, req, params)

	default:
		if IsFileSystemRequest(req.Method) {
			err := h.handleFileSystemRequest(ctx, req)
			h.resetWorkspace() // a file changed, so we must re-analyze
			return nil, err
		}

		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: fmt.Sprintf("method not supported: %s", req.Method)}
	}
}

// workspace returns the current snapshot, building it from the overlay if a
// file change invalidated the previous one.
func (h *LangHandler) workspace() (*gosrc.Workspace, *engine.Engine, error) {
	h.wsMu.Lock()
	defer h.wsMu.Unlock()
	if h.ws == nil {
		ws, err := gosrc.NewWorkspace(h.overlay.snapshot())
		if err != nil {
			return nil, nil, err
		}
		h.ws = ws
		h.eng = gosrc.NewEngine(ws, h.config.MaxParallelism)
	}
	return h.ws, h.eng, nil
}

func (h *LangHandler) resetWorkspace() {
	h.wsMu.Lock()
	h.ws = nil
	h.eng = nil
	h.wsMu.Unlock()
}

// scopeFor returns the document set a request against uri runs over.
func (h *LangHandler) scopeFor(ws *gosrc.Workspace, uri lsp.DocumentURI) engine.DocumentSet {
	if h.config.SingleDocumentScope {
		return engine.NewDocumentSet(uri)
	}
	return engine.NewDocumentSet(ws.URIs()...)
}
