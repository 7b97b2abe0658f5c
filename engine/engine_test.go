package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/docsight/go-highlightserver/pkg/highlight"
)

const (
	uriA = lsp.DocumentURI("file:///a.src")
	uriB = lsp.DocumentURI("file:///b.src")
	uriC = lsp.DocumentURI("file:///c.src")
)

func TestSimpleLocalVariable(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	sym := &fakeSymbol{name: "x", kind: SymbolLocal, locs: []Location{loc(tree, 10, 11)}}
	models := &fakeModels{speculative: &fakeModel{syms: map[int]Symbol{10: sym}}}
	search := &fakeSearch{recs: []ReferencedSymbol{{
		Definition: sym,
		References: []Location{loc(tree, 20, 21), loc(tree, 30, 31)},
	}}}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	got, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 10, NewDocumentSet(uriA))
	if err != nil {
		t.Fatal(err)
	}

	want := []highlight.DocumentHighlights{{
		URI: uriA,
		Spans: []highlight.HighlightSpan{
			{Span: highlight.Span{Start: 10, End: 11}, IsDefinition: true},
			{Span: highlight.Span{Start: 20, End: 21}},
			{Span: highlight.Span{Start: 30, End: 31}},
		},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAuthoritativeModelWins(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	stale := &fakeSymbol{name: "stale", kind: SymbolLocal, locs: []Location{loc(tree, 5, 6)}}
	fresh := &fakeSymbol{name: "fresh", kind: SymbolLocal, locs: []Location{loc(tree, 5, 6)}}
	models := &fakeModels{
		speculative: &fakeModel{syms: map[int]Symbol{5: stale}},
		full:        &fakeModel{syms: map[int]Symbol{5: fresh}},
	}
	search := &fakeSearch{}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	if _, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 5, NewDocumentSet(uriA)); err != nil {
		t.Fatal(err)
	}
	if search.lastSym != fresh {
		t.Errorf("searched for %v, want the authoritative model's symbol", search.lastSym)
	}
}

func TestAuthoritativeModelNilWins(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	stale := &fakeSymbol{name: "stale", kind: SymbolLocal, locs: []Location{loc(tree, 5, 6)}}
	models := &fakeModels{
		speculative: &fakeModel{syms: map[int]Symbol{5: stale}},
		full:        &fakeModel{}, // differs by identity, resolves nothing
	}
	search := &fakeSearch{}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	got, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 5, NewDocumentSet(uriA))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want empty result", got)
	}
	if search.calls != 0 {
		t.Errorf("search issued %d times for a stale-only symbol", search.calls)
	}
}

func TestSpeculativeModelReused(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	sym := &fakeSymbol{name: "x", kind: SymbolLocal, locs: []Location{loc(tree, 5, 6)}}
	m := &fakeModel{syms: map[int]Symbol{5: sym}}
	models := &fakeModels{speculative: m} // FullModel returns the same handle
	search := &fakeSearch{}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	if _, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 5, NewDocumentSet(uriA)); err != nil {
		t.Fatal(err)
	}
	if m.lookups != 1 {
		t.Errorf("model consulted %d times, want 1 when the full model is identical", m.lookups)
	}
	if search.lastSym != sym {
		t.Errorf("searched for %v, want the speculative symbol reused as-is", search.lastSym)
	}
}

func TestNoSymbolAtPosition(t *testing.T) {
	models := &fakeModels{speculative: &fakeModel{}}
	search := &fakeSearch{}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	got, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 3, NewDocumentSet(uriA))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want empty result for whitespace position", got)
	}
	if search.calls != 0 {
		t.Error("search must not run without a symbol")
	}
}

func TestAccessorExclusion(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	for _, mk := range []MethodKind{
		MethodAnonymousFunction,
		MethodPropertyGet, MethodPropertySet,
		MethodEventAdd, MethodEventRemove, MethodEventRaise,
	} {
		sym := &fakeSymbol{name: "get_P", kind: SymbolMethod, methodKind: mk, locs: []Location{loc(tree, 0, 5)}}
		models := &fakeModels{speculative: &fakeModel{syms: map[int]Symbol{0: sym}}}
		search := &fakeSearch{recs: []ReferencedSymbol{{Definition: sym, References: []Location{loc(tree, 9, 10)}}}}

		e := newTestEngine(newFakeWorld(), models, search, nil)
		got, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 0, NewDocumentSet(uriA))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("method kind %d: got %+v, want empty result", mk, got)
		}
		if search.calls != 0 {
			t.Errorf("method kind %d: search issued for inadmissible symbol", mk)
		}
	}
}

func TestOrdinaryMethodAdmissible(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	sym := &fakeSymbol{name: "Run", kind: SymbolMethod, methodKind: MethodOrdinary, locs: []Location{loc(tree, 0, 3)}}
	models := &fakeModels{speculative: &fakeModel{syms: map[int]Symbol{0: sym}}}
	search := &fakeSearch{recs: []ReferencedSymbol{{Definition: sym, References: []Location{loc(tree, 9, 12)}}}}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	got, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 0, NewDocumentSet(uriA))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got[0].Spans) != 2 {
		t.Fatalf("got %+v, want one collection with definition and reference", got)
	}
}

func TestFilterOrder(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	sym := &fakeSymbol{name: "x", kind: SymbolLocal, locs: []Location{loc(tree, 0, 1)}}
	models := &fakeModels{speculative: &fakeModel{syms: map[int]Symbol{0: sym}}}
	search := &fakeSearch{recs: []ReferencedSymbol{{Definition: sym}}}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	filters := e.Filters.(*passFilters)
	if _, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 0, NewDocumentSet(uriA)); err != nil {
		t.Fatal(err)
	}
	want := []string{"synthetic", "names", "alias"}
	if !reflect.DeepEqual(filters.order, want) {
		t.Errorf("filter order %v, want %v", filters.order, want)
	}
}

func TestConstructorOverloadNarrowing(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	ctor1 := &fakeSymbol{name: "Foo", kind: SymbolConstructor, locs: []Location{loc(tree, 10, 13)}}
	ctor2 := &fakeSymbol{name: "Foo", kind: SymbolConstructor, locs: []Location{loc(tree, 50, 53)}}
	models := &fakeModels{speculative: &fakeModel{syms: map[int]Symbol{100: ctor1}}}
	search := &fakeSearch{recs: []ReferencedSymbol{
		{Definition: ctor1, References: []Location{loc(tree, 100, 103)}},
		{Definition: ctor2, References: []Location{loc(tree, 200, 203)}},
	}}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	got, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 100, NewDocumentSet(uriA))
	if err != nil {
		t.Fatal(err)
	}

	want := []highlight.DocumentHighlights{{
		URI: uriA,
		Spans: []highlight.HighlightSpan{
			{Span: highlight.Span{Start: 10, End: 13}, IsDefinition: true},
			{Span: highlight.Span{Start: 100, End: 103}},
		},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want only the queried overload: %+v", got, want)
	}
}

func TestNilSymbolIsContractViolation(t *testing.T) {
	e := newTestEngine(newFakeWorld(), &fakeModels{speculative: &fakeModel{}}, &fakeSearch{}, nil)
	if _, err := e.filterRecords(nil, nil); err == nil {
		t.Fatal("expected an error for a nil symbol reaching the filter stage")
	}
}

func TestAdditionalReferenceFailureIsolated(t *testing.T) {
	treeB := &fakeTree{uri: uriB}
	sym := &fakeSymbol{name: "x", kind: SymbolLocal, locs: []Location{loc(treeB, 0, 1)}}
	models := &fakeModels{speculative: &fakeModel{syms: map[int]Symbol{0: sym}}}
	search := &fakeSearch{recs: []ReferencedSymbol{{Definition: sym}}}
	additional := &fakeAdditional{
		locs: map[lsp.DocumentURI][]Location{uriB: {loc(treeB, 7, 8)}},
		errs: map[lsp.DocumentURI]error{uriA: errors.New("binding crashed")},
	}

	e := newTestEngine(newFakeWorld(), models, search, additional)
	got, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriB, 0, NewDocumentSet(uriA, uriB))
	if err != nil {
		t.Fatal(err)
	}

	want := []highlight.DocumentHighlights{{
		URI: uriB,
		Spans: []highlight.HighlightSpan{
			{Span: highlight.Span{Start: 0, End: 1}, IsDefinition: true},
			{Span: highlight.Span{Start: 7, End: 8}},
		},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v (failing document isolated)", got, want)
	}
}

func TestCancellationPropagates(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	sym := &fakeSymbol{name: "x", kind: SymbolLocal, locs: []Location{loc(tree, 0, 1)}}
	models := &fakeModels{speculative: &fakeModel{syms: map[int]Symbol{0: sym}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(newFakeWorld(), models, &fakeSearch{}, nil)
	if _, err := e.Highlights(ctx, e.Syntax.(*fakeWorld), uriA, 0, NewDocumentSet(uriA)); err == nil {
		t.Fatal("expected cancellation to abort the request")
	}
}

func TestEmptyScope(t *testing.T) {
	e := newTestEngine(newFakeWorld(), &fakeModels{speculative: &fakeModel{}}, &fakeSearch{}, nil)
	got, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want empty result for empty scope", got)
	}
}

func TestIdempotence(t *testing.T) {
	tree := &fakeTree{uri: uriA}
	sym := &fakeSymbol{name: "x", kind: SymbolLocal, locs: []Location{loc(tree, 10, 11)}}
	models := &fakeModels{speculative: &fakeModel{syms: map[int]Symbol{10: sym}}}
	search := &fakeSearch{recs: []ReferencedSymbol{{
		Definition: sym,
		References: []Location{loc(tree, 20, 21), loc(tree, 30, 31)},
	}}}

	e := newTestEngine(newFakeWorld(), models, search, nil)
	first, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 10, NewDocumentSet(uriA))
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Highlights(context.Background(), e.Syntax.(*fakeWorld), uriA, 10, NewDocumentSet(uriA))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ across identical invocations:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
