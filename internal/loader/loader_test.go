package loader_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/loader"
	"github.com/corelang/corec/internal/scanner"
	"github.com/corelang/corec/internal/source"
)

// inMemoryContent mirrors the teacher's InMemoryImportLoader
// (grammar_import_loaders.go) so import resolution can be tested
// without touching a filesystem.
type inMemoryContent struct {
	files map[string][]byte
}

func (c *inMemoryContent) Resolve(importPath, fromURI string) (string, error) {
	if importPath == fromURI {
		return importPath, nil
	}
	return importPath, nil
}

func (c *inMemoryContent) ReadFile(uri string) ([]byte, error) {
	b, ok := c.files[uri]
	if !ok {
		return nil, fmt.Errorf("not found: %s", uri)
	}
	return b, nil
}

// stubParser builds a fixed, hand-rolled AST per URI rather than
// running the real scanner/parser pipeline, keeping this package's
// tests independent of the parser package.
type stubParser struct {
	idents *scanner.IdentifierTable
	units  map[source.Location]func(idents *scanner.IdentifierTable) *ast.Node
	table  *source.Table
}

func (p *stubParser) ParseUnit(loc source.Location) (*ast.Node, error) {
	path := p.table.GetFilePath(loc)
	build, ok := p.unitFor(path)
	if !ok {
		return &ast.Node{Kind: ast.KindCompilationUnit}, nil
	}
	return build(p.idents), nil
}

func (p *stubParser) unitFor(path string) (func(idents *scanner.IdentifierTable) *ast.Node, bool) {
	b, ok := p.units[pathLocation(p, path)]
	return b, ok
}

// pathLocation is a tiny helper translating back from path to the
// Location the test registered the builder under, since stubParser
// keys its unit table by Location for simplicity.
func pathLocation(p *stubParser, path string) source.Location {
	for loc := range p.units {
		if p.table.GetFilePath(loc) == path {
			return loc
		}
	}
	return source.Invalid
}

func TestLoadSimpleLibraryPopulatesScope(t *testing.T) {
	table := source.NewTable()
	idents := scanner.NewIdentifierTable()
	content := &inMemoryContent{files: map[string][]byte{
		"core.dart": []byte("// core"),
		"main.dart": []byte("// main"),
	}}

	fooID := idents.Intern([]byte("Foo"))

	units := map[source.Location]func(*scanner.IdentifierTable) *ast.Node{}
	p := &stubParser{idents: idents, units: units, table: table}

	coreBase := table.LoadBytes("core.dart", content.files["core.dart"])
	units[coreBase] = func(*scanner.IdentifierTable) *ast.Node {
		return &ast.Node{Kind: ast.KindCompilationUnit}
	}

	mainBase := table.LoadBytes("main.dart", content.files["main.dart"])
	units[mainBase] = func(*scanner.IdentifierTable) *ast.Node {
		class := &ast.Node{Kind: ast.KindClass, NameID: fooID}
		return &ast.Node{Kind: ast.KindCompilationUnit, Children: []*ast.Node{class}}
	}

	l := loader.New(p, content, table, idents, "core.dart", "")
	lib, err := l.Load("main.dart")
	require.NoError(t, err)
	require.Len(t, lib.Classes, 1)

	entry, ok := lib.Scope.LookupLocal(fooID)
	require.True(t, ok)
	require.Equal(t, lib.Classes[0], entry.Member)
}

func TestLoadCachesByURI(t *testing.T) {
	table := source.NewTable()
	idents := scanner.NewIdentifierTable()
	content := &inMemoryContent{files: map[string][]byte{"a.dart": []byte("x")}}
	units := map[source.Location]func(*scanner.IdentifierTable) *ast.Node{}
	p := &stubParser{idents: idents, units: units, table: table}
	base := table.LoadBytes("a.dart", content.files["a.dart"])
	units[base] = func(*scanner.IdentifierTable) *ast.Node { return &ast.Node{Kind: ast.KindCompilationUnit} }

	l := loader.New(p, content, table, idents, "a.dart", "")
	lib1, err := l.Load("a.dart")
	require.NoError(t, err)
	lib2, err := l.Load("a.dart")
	require.NoError(t, err)
	require.Same(t, lib1, lib2)
}

func TestMissingFileIsLoadError(t *testing.T) {
	table := source.NewTable()
	idents := scanner.NewIdentifierTable()
	content := &inMemoryContent{files: map[string][]byte{}}
	p := &stubParser{idents: idents, units: map[source.Location]func(*scanner.IdentifierTable) *ast.Node{}, table: table}

	l := loader.New(p, content, table, idents, "missing-core.dart", "")
	_, err := l.Load("missing.dart")
	require.Error(t, err)
	var loadErr *loader.LoadError
	require.ErrorAs(t, err, &loadErr)
}
