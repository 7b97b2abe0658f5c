package gosrc

import (
	"context"
	"go/ast"
	"go/importer"
	"go/types"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	lsp "github.com/sourcegraph/go-lsp"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/docsight/go-highlightserver/engine"
	"github.com/docsight/go-highlightserver/pkg/highlight"
)

// analysis is one typechecking pass: the files it covered and the resolved
// type information. The full analysis covers the whole workspace; speculative
// analyses cover a single file.
type analysis struct {
	files []*ast.File
	info  *types.Info
}

func (ws *Workspace) analyze(files []*ast.File) *analysis {
	info := &types.Info{
		Uses:      make(map[*ast.Ident]types.Object),
		Defs:      make(map[*ast.Ident]types.Object),
		Implicits: make(map[ast.Node]types.Object),
	}

	// Files may span several packages; check each group into the shared
	// Info. Type errors are tolerated: a partial Info still answers most
	// lookups, which is all a highlight request needs.
	groups := make(map[string][]*ast.File)
	var names []string
	for _, f := range files {
		name := f.Name.Name
		if _, ok := groups[name]; !ok {
			names = append(names, name)
		}
		groups[name] = append(groups[name], f)
	}
	sort.Strings(names)

	conf := types.Config{
		Importer: importer.Default(),
		Error:    func(error) {},
	}
	for _, name := range names {
		g := groups[name]
		sort.Slice(g, func(i, j int) bool {
			return ws.fset.Position(g[i].Pos()).Filename < ws.fset.Position(g[j].Pos()).Filename
		})
		conf.Check(name, ws.fset, g, info)
	}
	return &analysis{files: files, info: info}
}

func (an *analysis) objectOf(id *ast.Ident) types.Object {
	if obj, ok := an.info.Uses[id]; ok {
		return obj
	}
	return an.info.Defs[id]
}

// ModelProvider implements engine.ModelProvider over a workspace snapshot.
// The authoritative analysis covers every document and is computed at most
// once; speculative models are cheap single-file analyses, cached in a small
// LRU. Once the full analysis exists the speculative path hands out the very
// same per-document model handle the full path does, so the engine's
// identity check short-circuits the second lookup.
type ModelProvider struct {
	ws   *Workspace
	syms *symcache

	mu    sync.Mutex
	full  *analysis
	views map[lsp.DocumentURI]*model
	spec  *lru.Cache // lsp.DocumentURI -> *model, single-file analyses
}

func NewModelProvider(ws *Workspace) *ModelProvider {
	spec, _ := lru.New(64)
	return &ModelProvider{
		ws:    ws,
		syms:  newSymcache(ws),
		views: make(map[lsp.DocumentURI]*model),
		spec:  spec,
	}
}

// SpeculativeModel implements engine.ModelProvider.
func (p *ModelProvider) SpeculativeModel(ctx context.Context, uri lsp.DocumentURI, span highlight.Span) (engine.Model, error) {
	doc, ok := p.ws.docs[uri]
	if !ok {
		return nil, errors.Errorf("gosrc: unknown document %s", uri)
	}

	p.mu.Lock()
	if p.full != nil {
		m := p.viewLocked(uri)
		p.mu.Unlock()
		return m, nil
	}
	p.mu.Unlock()

	if cached, ok := p.spec.Get(uri); ok {
		return cached.(*model), nil
	}
	m := &model{uri: uri, an: p.ws.analyze([]*ast.File{doc.file}), p: p}
	p.spec.Add(uri, m)
	return m, nil
}

// FullModel implements engine.ModelProvider.
func (p *ModelProvider) FullModel(ctx context.Context, uri lsp.DocumentURI) (engine.Model, error) {
	if _, ok := p.ws.docs[uri]; !ok {
		return nil, errors.Errorf("gosrc: unknown document %s", uri)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full == nil {
		files := make([]*ast.File, 0, len(p.ws.docs))
		for _, doc := range p.ws.docs {
			files = append(files, doc.file)
		}
		p.full = p.ws.analyze(files)
	}
	return p.viewLocked(uri), nil
}

// fullAnalysis is used by the searcher and the additional-reference provider,
// which always operate on authoritative information.
func (p *ModelProvider) fullAnalysis() *analysis {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full == nil {
		files := make([]*ast.File, 0, len(p.ws.docs))
		for _, doc := range p.ws.docs {
			files = append(files, doc.file)
		}
		p.full = p.ws.analyze(files)
	}
	return p.full
}

func (p *ModelProvider) viewLocked(uri lsp.DocumentURI) *model {
	m, ok := p.views[uri]
	if !ok {
		m = &model{uri: uri, an: p.full, p: p}
		p.views[uri] = m
	}
	return m
}

// model is a document-scoped view over an analysis.
type model struct {
	uri lsp.DocumentURI
	an  *analysis
	p   *ModelProvider
}

// SymbolAt implements engine.Model. A nil symbol with a nil error means the
// position is on whitespace, a keyword, a literal, or an unresolved name.
func (m *model) SymbolAt(ctx context.Context, offset int) (engine.Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := m.p.ws.docs[m.uri]
	tf := m.p.ws.fset.File(doc.file.Pos())
	if tf == nil || offset < 0 || offset > tf.Size() {
		return nil, errors.Errorf("gosrc: offset %d out of range for %s", offset, m.uri)
	}
	pos := tf.Pos(offset)

	path, _ := astutil.PathEnclosingInterval(doc.file, pos, pos)
	// A position at the very end of an identifier encloses the next node;
	// retry one byte to the left, the way gopls does.
	if len(path) == 0 || !lookupable(path[0]) {
		if offset > 0 {
			if prev, _ := astutil.PathEnclosingInterval(doc.file, pos-1, pos-1); len(prev) > 0 && lookupable(prev[0]) {
				path = prev
			}
		}
	}
	if len(path) == 0 {
		return nil, nil
	}

	switch n := path[0].(type) {
	case *ast.Ident:
		obj := m.an.objectOf(n)
		if obj == nil {
			return nil, nil
		}
		return m.p.syms.symbolFor(obj), nil
	case *ast.BasicLit:
		// The path string of an import: the implicit package name.
		if len(path) > 1 {
			if spec, ok := path[1].(*ast.ImportSpec); ok {
				if obj := m.an.info.Implicits[spec]; obj != nil {
					return m.p.syms.symbolFor(obj), nil
				}
			}
		}
	}
	return nil, nil
}

func lookupable(n ast.Node) bool {
	switch n.(type) {
	case *ast.Ident, *ast.BasicLit:
		return true
	}
	return false
}

// symcache canonicalizes symbols: one *symbol per types.Object, so the
// engine's identity comparisons (Original() ==) hold across stages.
type symcache struct {
	ws *Workspace

	mu   sync.Mutex
	syms map[types.Object]*symbol
}

func newSymcache(ws *Workspace) *symcache {
	return &symcache{ws: ws, syms: make(map[types.Object]*symbol)}
}

func (c *symcache) symbolFor(obj types.Object) *symbol {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.syms[obj]
	if !ok {
		s = &symbol{ws: c.ws, obj: obj}
		c.syms[obj] = s
	}
	return s
}
