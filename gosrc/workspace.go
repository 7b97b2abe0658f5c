// Package gosrc binds the highlights engine to Go source code. It implements
// every collaborator interface the engine consumes — semantic models over
// go/types, object-identity reference search, import-spec additional
// references, filtering predicates and syntax facts — against an immutable
// snapshot of parsed documents.
package gosrc

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/pkg/errors"
	lsp "github.com/sourcegraph/go-lsp"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/docsight/go-highlightserver/engine"
	"github.com/docsight/go-highlightserver/pkg/highlight"
)

// Workspace is an immutable snapshot of Go documents, parsed once at
// construction. It serves as the engine's Solution and Syntax collaborator:
// trees are *ast.File pointers and spans are byte offsets into the document
// text the snapshot was built from.
type Workspace struct {
	fset   *token.FileSet
	docs   map[lsp.DocumentURI]*document
	byFile map[*ast.File]lsp.DocumentURI
}

type document struct {
	uri  lsp.DocumentURI
	text []byte
	file *ast.File
}

// NewWorkspace parses the given documents. Files with parse errors are kept
// as long as a partial tree exists; highlight requests against broken files
// then work with what parsed.
func NewWorkspace(files map[lsp.DocumentURI][]byte) (*Workspace, error) {
	ws := &Workspace{
		fset:   token.NewFileSet(),
		docs:   make(map[lsp.DocumentURI]*document, len(files)),
		byFile: make(map[*ast.File]lsp.DocumentURI, len(files)),
	}
	for uri, text := range files {
		f, err := parser.ParseFile(ws.fset, string(uri), text, parser.ParseComments)
		if f == nil {
			return nil, errors.Wrapf(err, "parsing %s", uri)
		}
		ws.docs[uri] = &document{uri: uri, text: text, file: f}
		ws.byFile[f] = uri
	}
	return ws, nil
}

// URIs returns every document in the snapshot.
func (ws *Workspace) URIs() []lsp.DocumentURI {
	uris := make([]lsp.DocumentURI, 0, len(ws.docs))
	for uri := range ws.docs {
		uris = append(uris, uri)
	}
	return uris
}

// Text returns the text the snapshot holds for uri.
func (ws *Workspace) Text(uri lsp.DocumentURI) ([]byte, bool) {
	doc, ok := ws.docs[uri]
	if !ok {
		return nil, false
	}
	return doc.text, true
}

// Document implements engine.Solution.
func (ws *Workspace) Document(tree engine.TreeRef) (lsp.DocumentURI, bool) {
	f, ok := tree.(*ast.File)
	if !ok {
		return "", false
	}
	uri, ok := ws.byFile[f]
	return uri, ok
}

// Root implements engine.Syntax; the parsed file is its own root node.
func (ws *Workspace) Root(ctx context.Context, tree engine.TreeRef) (engine.Node, error) {
	f, ok := tree.(*ast.File)
	if !ok {
		return nil, errors.New("gosrc: tree is not an *ast.File")
	}
	if _, ok := ws.byFile[f]; !ok {
		return nil, errors.New("gosrc: tree does not belong to this workspace")
	}
	return f, nil
}

// FindToken implements engine.Syntax. Identifiers and import-path literals
// are the tokens the highlight pipeline asks about; positions inside comments
// are served when includeTrivia is set, so references written in doc comments
// still resolve to a word-sized token.
func (ws *Workspace) FindToken(root engine.Node, offset int, includeTrivia bool) (engine.Token, error) {
	f, ok := root.(*ast.File)
	if !ok {
		return nil, errors.New("gosrc: root is not an *ast.File")
	}
	uri, ok := ws.byFile[f]
	if !ok {
		return nil, errors.New("gosrc: root does not belong to this workspace")
	}
	doc := ws.docs[uri]

	tf := ws.fset.File(f.Pos())
	if tf == nil || offset < 0 || offset > tf.Size() {
		return nil, errors.Errorf("gosrc: offset %d out of range for %s", offset, uri)
	}
	pos := tf.Pos(offset)

	path, _ := astutil.PathEnclosingInterval(f, pos, pos)
	if len(path) > 0 {
		switch n := path[0].(type) {
		case *ast.Ident:
			return &goToken{span: ws.spanOf(n.Pos(), n.End()), parent: parentOf(path)}, nil
		case *ast.BasicLit:
			// An import path is a token-like position: the path text inside
			// the quotes stands for the package name.
			if len(path) > 1 {
				if _, ok := path[1].(*ast.ImportSpec); ok {
					span := ws.spanOf(n.Pos(), n.End())
					span.Start++
					span.End--
					return &goToken{span: span, parent: parentOf(path)}, nil
				}
			}
		}
	}

	if includeTrivia {
		for _, cg := range f.Comments {
			if cg.Pos() <= pos && pos < cg.End() {
				return &goToken{span: wordAt(doc.text, offset)}, nil
			}
		}
	}
	return nil, errors.Errorf("gosrc: no token at offset %d in %s", offset, uri)
}

func parentOf(path []ast.Node) engine.Node {
	if len(path) < 2 {
		return nil
	}
	return path[1]
}

func (ws *Workspace) spanOf(start, end token.Pos) highlight.Span {
	return highlight.Span{
		Start: ws.fset.Position(start).Offset,
		End:   ws.fset.Position(end).Offset,
	}
}

// fileForPos returns the parsed file containing pos.
func (ws *Workspace) fileForPos(pos token.Pos) (*ast.File, bool) {
	tf := ws.fset.File(pos)
	if tf == nil {
		return nil, false
	}
	for f := range ws.byFile {
		if ws.fset.File(f.Pos()) == tf {
			return f, true
		}
	}
	return nil, false
}

// locationFor builds the engine location of an identifier-sized span at pos.
func (ws *Workspace) locationFor(pos token.Pos, length int) (engine.Location, bool) {
	f, ok := ws.fileForPos(pos)
	if !ok {
		return engine.Location{}, false
	}
	start := ws.fset.Position(pos).Offset
	return engine.Location{
		Tree:     f,
		Span:     highlight.Span{Start: start, End: start + length},
		InSource: true,
	}, true
}

// importLocation resolves the declaration span of a package name declared at
// pos: the name identifier for a named import, or the path text inside the
// quotes for an unnamed one.
func (ws *Workspace) importLocation(pos token.Pos) (engine.Location, bool) {
	f, ok := ws.fileForPos(pos)
	if !ok {
		return engine.Location{}, false
	}
	for _, spec := range f.Imports {
		if pos < spec.Pos() || pos > spec.End() {
			continue
		}
		if spec.Name != nil {
			return ws.locationFor(spec.Name.Pos(), len(spec.Name.Name))
		}
		return engine.Location{
			Tree: f,
			Span: highlight.Span{
				Start: ws.fset.Position(spec.Path.Pos()).Offset + 1,
				End:   ws.fset.Position(spec.Path.End()).Offset - 1,
			},
			InSource: true,
		}, true
	}
	return engine.Location{}, false
}

type goToken struct {
	span   highlight.Span
	parent engine.Node
}

func (t *goToken) Span() highlight.Span { return t.span }
func (t *goToken) Parent() engine.Node  { return t.parent }

// wordAt returns the span of the identifier-like word covering offset.
func wordAt(text []byte, offset int) highlight.Span {
	isWord := func(b byte) bool {
		return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
	}
	start, end := offset, offset
	for start > 0 && isWord(text[start-1]) {
		start--
	}
	for end < len(text) && isWord(text[end]) {
		end++
	}
	return highlight.Span{Start: start, End: end}
}
