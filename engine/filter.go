package engine

import (
	"github.com/pkg/errors"
)

// filterRecords narrows raw search records. The rules run in a fixed order;
// each narrows the previous result:
//
//  1. drop unreferenced synthetic definitions,
//  2. drop definitions whose name does not match the queried symbol,
//  3. for aliases, keep only records matching the alias target,
//  4. for constructors, keep only the exact overload (by canonical identity).
//
// Steps 1-3 are delegated to the injected predicates; step 4 is kind-local.
func (e *Engine) filterRecords(recs []ReferencedSymbol, sym Symbol) ([]ReferencedSymbol, error) {
	if sym == nil {
		// Contract violation: the resolver short-circuits nil symbols before
		// this stage. Fail fast rather than degrade silently.
		return nil, errors.New("highlights: nil symbol reached the filter stage")
	}

	recs = e.Filters.WithoutUnreferencedSyntheticDefinitions(recs)
	recs = e.Filters.WithoutNonMatchingNames(recs, sym)
	recs = e.Filters.AliasMatches(recs, sym)

	if sym.Kind() == SymbolConstructor {
		recs = constructorOverload(recs, sym)
	}
	return recs, nil
}

// constructorOverload keeps only records whose definition is the queried
// constructor itself. The underlying search conflates sibling overloads of
// the same type; canonical identity tells them apart.
func constructorOverload(recs []ReferencedSymbol, sym Symbol) []ReferencedSymbol {
	kept := recs[:0:0]
	for _, rec := range recs {
		if rec.Definition != nil && rec.Definition.Original() == sym.Original() {
			kept = append(kept, rec)
		}
	}
	return kept
}
