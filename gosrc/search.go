package gosrc

import (
	"context"
	"go/ast"
	"go/types"
	"sort"

	"github.com/pkg/errors"
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/docsight/go-highlightserver/engine"
	"github.com/docsight/go-highlightserver/pkg/highlight"
)

func importedPathOf(obj types.Object) string {
	if pn, ok := obj.(*types.PkgName); ok {
		return pn.Imported().Path()
	}
	return ""
}

// Searcher implements engine.ReferenceSearcher by walking every in-scope file
// and matching identifiers against the symbol's object identity in the
// authoritative analysis.
type Searcher struct {
	ws     *Workspace
	models *ModelProvider
}

// FindReferences implements engine.ReferenceSearcher. It returns a single
// record pairing the definition with every use; the declaring identifier is
// carried by the definition's own locations, not repeated as a reference.
func (s *Searcher) FindReferences(ctx context.Context, sym engine.Symbol, scope engine.DocumentSet) ([]engine.ReferencedSymbol, error) {
	target, ok := sym.(*symbol)
	if !ok {
		return nil, errors.New("gosrc: symbol does not belong to this binding")
	}
	an := s.models.fullAnalysis()

	uris := make([]lsp.DocumentURI, 0, len(s.ws.docs))
	for uri := range s.ws.docs {
		if scope.Contains(uri) {
			uris = append(uris, uri)
		}
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	rec := engine.ReferencedSymbol{Definition: sym}
	for _, uri := range uris {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc := s.ws.docs[uri]
		ast.Inspect(doc.file, func(n ast.Node) bool {
			id, ok := n.(*ast.Ident)
			if !ok {
				return true
			}
			obj := an.objectOf(id)
			if obj == nil || obj != target.obj {
				return true
			}
			if id.Pos() == target.obj.Pos() {
				return true // the declaration itself
			}
			if loc, ok := s.ws.locationFor(id.Pos(), len(id.Name)); ok {
				rec.References = append(rec.References, loc)
			}
			return true
		})
	}
	return []engine.ReferencedSymbol{rec}, nil
}

// AdditionalRefs implements engine.AdditionalReferenceProvider. The generic
// identifier walk cannot see a use of a package name inside an unnamed
// import spec (there is no identifier, just the path string); this provider
// contributes those occurrences.
type AdditionalRefs struct {
	ws     *Workspace
	models *ModelProvider
}

func (a *AdditionalRefs) AdditionalReferences(ctx context.Context, uri lsp.DocumentURI, sym engine.Symbol) ([]engine.Location, error) {
	target, ok := sym.(*symbol)
	if !ok {
		return nil, errors.New("gosrc: symbol does not belong to this binding")
	}
	path, ok := target.importedPath()
	if !ok {
		return nil, nil
	}
	doc, ok := a.ws.docs[uri]
	if !ok {
		return nil, errors.Errorf("gosrc: unknown document %s", uri)
	}
	an := a.models.fullAnalysis()

	var locs []engine.Location
	for _, spec := range doc.file.Imports {
		if spec.Name != nil {
			continue // named imports have an identifier; the search saw it
		}
		obj := an.info.Implicits[spec]
		if obj == nil {
			continue
		}
		// Another file's import of the same path is a distinct object;
		// match those by path so cross-file occurrences still show.
		if obj != target.obj && importedPathOf(obj) != path {
			continue
		}
		// Highlight the path text inside the quotes.
		start := a.ws.fset.Position(spec.Path.Pos()).Offset + 1
		end := a.ws.fset.Position(spec.Path.End()).Offset - 1
		if f, ok := a.ws.fileForPos(spec.Path.Pos()); ok {
			locs = append(locs, engine.Location{
				Tree:     f,
				Span:     highlight.Span{Start: start, End: end},
				InSource: true,
			})
		}
	}
	return locs, nil
}

// Filters implements engine.RecordFilters with Go-appropriate semantics.
type Filters struct{}

// WithoutUnreferencedSyntheticDefinitions drops records whose definition has
// no source location and no references, e.g. objects synthesized during
// error recovery.
func (Filters) WithoutUnreferencedSyntheticDefinitions(recs []engine.ReferencedSymbol) []engine.ReferencedSymbol {
	kept := recs[:0:0]
	for _, rec := range recs {
		if rec.Definition == nil {
			continue
		}
		if len(rec.Definition.Locations()) == 0 && len(rec.References) == 0 {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// WithoutNonMatchingNames drops records whose definition name differs from
// the queried symbol's. Go name matching is case-sensitive and exact.
func (Filters) WithoutNonMatchingNames(recs []engine.ReferencedSymbol, sym engine.Symbol) []engine.ReferencedSymbol {
	kept := recs[:0:0]
	for _, rec := range recs {
		if rec.Definition != nil && rec.Definition.Name() == sym.Name() {
			kept = append(kept, rec)
		}
	}
	return kept
}

// AliasMatches keeps records that denote the alias itself or another alias
// of the same imported package; it keeps everything for non-aliases.
func (Filters) AliasMatches(recs []engine.ReferencedSymbol, sym engine.Symbol) []engine.ReferencedSymbol {
	if sym.Kind() != engine.SymbolAlias {
		return recs
	}
	target, ok := sym.(*symbol)
	if !ok {
		return recs
	}
	path, ok := target.importedPath()
	if !ok {
		return recs
	}
	kept := recs[:0:0]
	for _, rec := range recs {
		if rec.Definition == nil {
			continue
		}
		if rec.Definition.Original() == sym.Original() {
			kept = append(kept, rec)
			continue
		}
		if def, ok := rec.Definition.(*symbol); ok {
			if p, isAlias := def.importedPath(); isAlias && p == path {
				kept = append(kept, rec)
			}
		}
	}
	return kept
}
