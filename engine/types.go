// Package engine computes document highlights: given a position in a
// document, it resolves the symbol at that position and reports every
// occurrence of it (definitions and references) across a caller-specified set
// of documents, grouped per document.
//
// The engine is language-neutral. Everything it knows about syntax and
// semantics comes through the collaborator interfaces below, which a language
// binding (see the gosrc package) implements. The engine holds no state
// between calls; every invocation is a fresh computation over immutable
// snapshots.
package engine

import (
	"context"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/docsight/go-highlightserver/pkg/highlight"
)

// SymbolKind classifies a symbol for the admissibility and filtering rules.
// The set is closed; language bindings map their own symbol taxonomy onto it.
type SymbolKind int

const (
	SymbolOther SymbolKind = iota
	SymbolMethod
	SymbolNamespace
	SymbolType
	SymbolParameter
	SymbolLocal
	SymbolField
	SymbolAlias
	SymbolConstructor
)

// MethodKind is the sub-kind of a SymbolMethod symbol.
type MethodKind int

const (
	MethodOrdinary MethodKind = iota
	MethodAnonymousFunction
	MethodPropertyGet
	MethodPropertySet
	MethodEventAdd
	MethodEventRemove
	MethodEventRaise
)

// Symbol is an opaque handle into a language binding's symbol table. The
// engine only reads attributes and compares identity; it never owns or
// mutates symbols. Identity comparisons go through Original, which must
// return a stable canonical handle: two Symbol values denote the same
// program entity iff their Original results are ==.
type Symbol interface {
	Name() string
	Kind() SymbolKind

	// Locations returns the symbol's declaration locations, in declaration
	// order. May be empty (e.g. synthesized symbols).
	Locations() []Location

	// Original returns the canonical definition of this symbol (e.g. the
	// uninstantiated generic, the definition part of a partial method).
	Original() Symbol
}

// MethodSymbol is implemented by symbols of kind SymbolMethod that carry a
// sub-kind. A method symbol that does not implement it is treated as
// MethodOrdinary.
type MethodSymbol interface {
	Symbol
	MethodKind() MethodKind
}

// ImplicitlyDeclared is implemented by symbols that are compiler-synthesized
// containers (e.g. implicit script/top-level types). Such types are never
// shown as definitions.
type ImplicitlyDeclared interface {
	IsImplicitlyDeclared() bool
}

// IndexerParameter is implemented by parameter symbols that belong to an
// indexer member. Those parameters are never shown as definitions; the
// accessor method already carries the reference.
type IndexerParameter interface {
	IsIndexerParameter() bool
}

// TreeRef identifies a syntax tree. Values must be comparable; a language
// binding typically uses a pointer to its parsed file.
type TreeRef interface{}

// Location is a source position: the owning syntax tree, a byte span within
// it, and whether the position is in source at all (as opposed to e.g.
// metadata or generated code).
type Location struct {
	Tree     TreeRef
	Span     highlight.Span
	InSource bool
}

// ReferencedSymbol pairs one definition symbol with the locations that refer
// to it. Produced by the reference search; immutable once received.
type ReferencedSymbol struct {
	Definition Symbol
	References []Location
}

// DocumentSet is the caller-specified set of documents a request is
// restricted to.
type DocumentSet map[lsp.DocumentURI]struct{}

// NewDocumentSet builds a DocumentSet from the given URIs.
func NewDocumentSet(uris ...lsp.DocumentURI) DocumentSet {
	s := make(DocumentSet, len(uris))
	for _, uri := range uris {
		s[uri] = struct{}{}
	}
	return s
}

func (s DocumentSet) Contains(uri lsp.DocumentURI) bool {
	_, ok := s[uri]
	return ok
}

// Solution maps syntax trees back to the documents that own them. It is an
// immutable snapshot for the duration of one request.
type Solution interface {
	// Document returns the URI of the document owning tree, or false if the
	// tree is not part of this solution.
	Document(tree TreeRef) (lsp.DocumentURI, bool)
}

// Model is a semantic model over one or more documents. A nil Symbol with a
// nil error means no symbol occupies the position.
type Model interface {
	SymbolAt(ctx context.Context, offset int) (Symbol, error)
}

// ModelProvider supplies semantic models. SpeculativeModel may return a
// cheaper, possibly transient analysis valid around span; FullModel must
// return the authoritative model for the whole document. When both calls
// return the same handle the speculative answer is trusted as-is.
type ModelProvider interface {
	SpeculativeModel(ctx context.Context, uri lsp.DocumentURI, span highlight.Span) (Model, error)
	FullModel(ctx context.Context, uri lsp.DocumentURI) (Model, error)
}

// ReferenceSearcher is the external reference-search service. It returns one
// record per found definition, with references restricted to scope. The
// search may intentionally over-return related definitions (overloads,
// partials); the engine's filter stage narrows them.
type ReferenceSearcher interface {
	FindReferences(ctx context.Context, sym Symbol, scope DocumentSet) ([]ReferencedSymbol, error)
}

// AdditionalReferenceProvider contributes occurrences the generic reference
// search misses (e.g. implicit operator slots, unnamed import specs). Called
// once per in-scope document.
type AdditionalReferenceProvider interface {
	AdditionalReferences(ctx context.Context, uri lsp.DocumentURI, sym Symbol) ([]Location, error)
}

// RecordFilters are the language/solution-scoped filtering predicates applied
// to raw search records, in the order declared here. Each is a pure function:
// it returns a (possibly) narrowed copy and never mutates its input.
type RecordFilters interface {
	// WithoutUnreferencedSyntheticDefinitions drops records whose definition
	// is purely synthetic and has no source-visible reference.
	WithoutUnreferencedSyntheticDefinitions(recs []ReferencedSymbol) []ReferencedSymbol

	// WithoutNonMatchingNames drops records whose definition name does not
	// match sym's name under the solution's matching rules.
	WithoutNonMatchingNames(recs []ReferencedSymbol, sym Symbol) []ReferencedSymbol

	// AliasMatches keeps only records matching the alias target when sym is
	// an alias; it keeps everything when sym is not an alias.
	AliasMatches(recs []ReferencedSymbol, sym Symbol) []ReferencedSymbol
}

// Node is an opaque syntax node handle, only ever passed to SyntaxFacts.
type Node interface{}

// Token is a syntax token found at a location's start offset.
type Token interface {
	Span() highlight.Span

	// Parent returns the node the token belongs to, or nil at the root.
	Parent() Node
}

// SyntaxFacts classifies a token's syntactic context. Both predicates drive
// the sub-span narrowing rule: when the token's parent is a generic name or
// an indexer member cross-reference, only the token itself is highlighted.
type SyntaxFacts interface {
	IsGenericName(n Node) bool
	IsIndexerMemberCrossReference(n Node) bool
}

// Syntax grants access to syntax trees for span resolution.
type Syntax interface {
	Root(ctx context.Context, tree TreeRef) (Node, error)

	// FindToken returns the token at offset under root. includeTrivia asks
	// for tokens inside structured trivia as well, so documentation-comment
	// cross-references resolve to a token instead of falling through.
	FindToken(root Node, offset int, includeTrivia bool) (Token, error)
}
