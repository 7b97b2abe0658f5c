package engine

import (
	"context"
	"sync/atomic"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/docsight/go-highlightserver/pkg/highlight"
)

// Fake collaborators. They model just enough of a language binding for the
// engine's behavior to be observable: symbols with attributes, models with
// per-offset lookup tables, a canned reference search, and a syntax world
// that maps trees to documents and offsets to tokens.

type fakeSymbol struct {
	name         string
	kind         SymbolKind
	methodKind   MethodKind
	locs         []Location
	canonical    Symbol
	implicit     bool
	indexerParam bool
}

func (s *fakeSymbol) Name() string          { return s.name }
func (s *fakeSymbol) Kind() SymbolKind      { return s.kind }
func (s *fakeSymbol) Locations() []Location { return s.locs }
func (s *fakeSymbol) MethodKind() MethodKind {
	return s.methodKind
}
func (s *fakeSymbol) IsImplicitlyDeclared() bool { return s.implicit }
func (s *fakeSymbol) IsIndexerParameter() bool   { return s.indexerParam }
func (s *fakeSymbol) Original() Symbol {
	if s.canonical != nil {
		return s.canonical
	}
	return s
}

type fakeModel struct {
	syms    map[int]Symbol // offset -> symbol at that offset
	lookups int32
}

func (m *fakeModel) SymbolAt(ctx context.Context, offset int) (Symbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	atomic.AddInt32(&m.lookups, 1)
	return m.syms[offset], nil
}

type fakeModels struct {
	speculative Model
	full        Model
}

func (p *fakeModels) SpeculativeModel(ctx context.Context, uri lsp.DocumentURI, span highlight.Span) (Model, error) {
	return p.speculative, nil
}

func (p *fakeModels) FullModel(ctx context.Context, uri lsp.DocumentURI) (Model, error) {
	if p.full != nil {
		return p.full, nil
	}
	return p.speculative, nil
}

type fakeSearch struct {
	recs    []ReferencedSymbol
	calls   int
	lastSym Symbol
}

func (s *fakeSearch) FindReferences(ctx context.Context, sym Symbol, scope DocumentSet) ([]ReferencedSymbol, error) {
	s.calls++
	s.lastSym = sym
	return s.recs, nil
}

type fakeAdditional struct {
	locs map[lsp.DocumentURI][]Location
	errs map[lsp.DocumentURI]error
}

func (a *fakeAdditional) AdditionalReferences(ctx context.Context, uri lsp.DocumentURI, sym Symbol) ([]Location, error) {
	if err := a.errs[uri]; err != nil {
		return nil, err
	}
	return a.locs[uri], nil
}

// passFilters applies no narrowing but records the call order.
type passFilters struct {
	order []string
}

func (f *passFilters) WithoutUnreferencedSyntheticDefinitions(recs []ReferencedSymbol) []ReferencedSymbol {
	f.order = append(f.order, "synthetic")
	return recs
}

func (f *passFilters) WithoutNonMatchingNames(recs []ReferencedSymbol, sym Symbol) []ReferencedSymbol {
	f.order = append(f.order, "names")
	return recs
}

func (f *passFilters) AliasMatches(recs []ReferencedSymbol, sym Symbol) []ReferencedSymbol {
	f.order = append(f.order, "alias")
	return recs
}

// fakeWorld is Solution + Syntax + SyntaxFacts in one. Trees are *fakeTree
// pointers; Root returns the tree itself as the root node.
type fakeTree struct {
	uri lsp.DocumentURI
}

type fakeToken struct {
	span   highlight.Span
	parent Node
}

func (t *fakeToken) Span() highlight.Span { return t.span }
func (t *fakeToken) Parent() Node         { return t.parent }

type fakeWorld struct {
	tokens       map[TreeRef]map[int]*fakeToken
	genericNames map[Node]bool
	indexerCrefs map[Node]bool
	unknownTrees map[TreeRef]bool
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		tokens:       map[TreeRef]map[int]*fakeToken{},
		genericNames: map[Node]bool{},
		indexerCrefs: map[Node]bool{},
		unknownTrees: map[TreeRef]bool{},
	}
}

func (w *fakeWorld) Document(tree TreeRef) (lsp.DocumentURI, bool) {
	if w.unknownTrees[tree] {
		return "", false
	}
	t, ok := tree.(*fakeTree)
	if !ok {
		return "", false
	}
	return t.uri, true
}

func (w *fakeWorld) Root(ctx context.Context, tree TreeRef) (Node, error) {
	return tree, nil
}

func (w *fakeWorld) FindToken(root Node, offset int, includeTrivia bool) (Token, error) {
	if toks := w.tokens[root]; toks != nil {
		if tok, ok := toks[offset]; ok {
			return tok, nil
		}
	}
	return &fakeToken{span: highlight.Span{Start: offset, End: offset}}, nil
}

func (w *fakeWorld) IsGenericName(n Node) bool { return w.genericNames[n] }

func (w *fakeWorld) IsIndexerMemberCrossReference(n Node) bool { return w.indexerCrefs[n] }

// loc builds an in-source location in tree.
func loc(tree TreeRef, start, end int) Location {
	return Location{Tree: tree, Span: highlight.Span{Start: start, End: end}, InSource: true}
}

func newTestEngine(w *fakeWorld, models ModelProvider, search ReferenceSearcher, additional AdditionalReferenceProvider) *Engine {
	return &Engine{
		Models:     models,
		Search:     search,
		Facts:      w,
		Syntax:     w,
		Filters:    &passFilters{},
		Additional: additional,
	}
}
