package gosrc

import (
	"go/token"
	"go/types"

	"github.com/docsight/go-highlightserver/engine"
)

// symbol wraps a types.Object. Instances are canonicalized by symcache, so
// two symbols denote the same program entity iff they are the same pointer.
type symbol struct {
	ws  *Workspace
	obj types.Object
}

func (s *symbol) Name() string { return s.obj.Name() }

func (s *symbol) Kind() engine.SymbolKind {
	switch obj := s.obj.(type) {
	case *types.PkgName:
		// An import binds a name that stands for the package: an alias.
		return engine.SymbolAlias
	case *types.TypeName:
		return engine.SymbolType
	case *types.Func:
		return engine.SymbolMethod
	case *types.Var:
		if obj.IsField() {
			return engine.SymbolField
		}
		return engine.SymbolLocal
	}
	return engine.SymbolOther
}

// MethodKind: every Go function with a name is an ordinary method for the
// engine's purposes. Function literals carry no object and never resolve to
// a symbol at all.
func (s *symbol) MethodKind() engine.MethodKind { return engine.MethodOrdinary }

func (s *symbol) Locations() []engine.Location {
	if s.obj.Pos() == token.NoPos {
		return nil
	}
	if _, isPkg := s.obj.(*types.PkgName); isPkg {
		if loc, ok := s.ws.importLocation(s.obj.Pos()); ok {
			return []engine.Location{loc}
		}
	}
	loc, ok := s.ws.locationFor(s.obj.Pos(), len(s.obj.Name()))
	if !ok {
		return nil
	}
	return []engine.Location{loc}
}

func (s *symbol) Original() engine.Symbol { return s }

// importedPath returns the imported package path if the symbol is a package
// name, i.e. an import alias.
func (s *symbol) importedPath() (string, bool) {
	pkg, ok := s.obj.(*types.PkgName)
	if !ok {
		return "", false
	}
	return pkg.Imported().Path(), true
}
