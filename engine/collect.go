package engine

import (
	"context"
	"log"
	"sort"
	"sync"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/neelance/parallel"
	lsp "github.com/sourcegraph/go-lsp"
)

// admissible reports whether sym may be highlighted at all. Anonymous
// functions and property/event accessors are synthetic from the user's point
// of view; highlighting their definitions would only confuse.
func admissible(sym Symbol) bool {
	if sym.Kind() != SymbolMethod {
		return true
	}
	m, ok := sym.(MethodSymbol)
	if !ok {
		return true
	}
	switch m.MethodKind() {
	case MethodAnonymousFunction,
		MethodPropertyGet, MethodPropertySet,
		MethodEventAdd, MethodEventRemove, MethodEventRaise:
		return false
	}
	return true
}

// collectReferences runs the scoped reference search and gathers additional
// references from the language binding, one call per in-scope document. The
// per-document calls are independent and fan out; a failing document
// contributes nothing and never aborts the others. Only cancellation aborts
// the whole collection.
func (e *Engine) collectReferences(ctx context.Context, sym Symbol, scope DocumentSet) ([]ReferencedSymbol, []Location, error) {
	if !admissible(sym) {
		return nil, nil, nil
	}

	recs, err := e.Search.FindReferences(ctx, sym, scope)
	if err != nil {
		return nil, nil, err
	}

	additional, err := e.collectAdditional(ctx, sym, scope)
	if err != nil {
		return nil, nil, err
	}
	return recs, additional, nil
}

func (e *Engine) collectAdditional(ctx context.Context, sym Symbol, scope DocumentSet) ([]Location, error) {
	if e.Additional == nil || len(scope) == 0 {
		return nil, nil
	}

	uris := make([]lsp.DocumentURI, 0, len(scope))
	for uri := range scope {
		uris = append(uris, uri)
	}
	// Deterministic fan-out order keeps results and logs stable.
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	var (
		par   = parallel.NewRun(e.parallelism())
		slots = make([][]Location, len(uris))
		soft  = &softErrors{}
	)
	for i, uri := range uris {
		if err := ctx.Err(); err != nil {
			break
		}
		par.Acquire()
		go func(i int, uri lsp.DocumentURI) {
			defer par.Release()
			locs, err := e.Additional.AdditionalReferences(ctx, uri, sym)
			if err != nil {
				// Absence of a contribution, not a failure of the request.
				soft.add(err)
				return
			}
			slots[i] = locs
		}(i, uri)
	}
	par.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	soft.log("additional references")

	var all []Location
	for _, locs := range slots {
		all = append(all, locs...)
	}
	return all, nil
}

// softErrors accumulates isolated collaborator failures. They are logged and
// counted but never fail the request (cancellation is handled separately by
// the callers).
type softErrors struct {
	mu  sync.Mutex
	err *multierror.Error
}

func (s *softErrors) add(err error) {
	s.mu.Lock()
	s.err = multierror.Append(s.err, err)
	s.mu.Unlock()
}

func (s *softErrors) log(stage string) {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err == nil {
		return
	}
	collaboratorFailures.Add(float64(len(err.Errors)))
	log.Printf("highlightserver: %s: %d contribution(s) dropped: %v", stage, len(err.Errors), err)
}
