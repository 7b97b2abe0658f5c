package gosrc

import (
	"go/ast"

	"github.com/docsight/go-highlightserver/engine"
)

// Facts implements engine.SyntaxFacts for Go syntax.
type Facts struct{}

// IsGenericName reports whether n is a generic instantiation expression. A
// reference location for an instantiated name can cover the whole
// `Name[Args]` expression; only the identifier should highlight.
func (Facts) IsGenericName(n engine.Node) bool {
	switch n.(type) {
	case *ast.IndexExpr, *ast.IndexListExpr:
		return true
	}
	return false
}

// IsIndexerMemberCrossReference is always false: Go has no indexer members,
// so no cross-reference syntax for them exists.
func (Facts) IsIndexerMemberCrossReference(n engine.Node) bool { return false }
