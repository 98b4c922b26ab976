package ast_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/zone"
)

func TestBuilderBinaryBalance(t *testing.T) {
	b := ast.NewBuilder(zone.NewArena[ast.Node]())
	b.Push(ast.KindLiteralInteger, 0).IntValue = 1
	b.Push(ast.KindLiteralInteger, 0).IntValue = 2
	require.Equal(t, 2, b.Depth())

	n := b.DoBinary(0, 42)
	require.Equal(t, 1, b.Depth(), "DoBinary must pop 2 and push 1")
	require.Equal(t, ast.KindBinary, n.Kind)
	require.Equal(t, int64(1), n.A.IntValue)
	require.Equal(t, int64(2), n.B.IntValue)
}

func TestBuilderBlockBalance(t *testing.T) {
	b := ast.NewBuilder(zone.NewArena[ast.Node]())
	for i := 0; i < 3; i++ {
		b.Push(ast.KindEmptyStatement, 0)
	}
	n := b.DoBlock(0, 3)
	require.Equal(t, 1, b.Depth())
	require.Len(t, n.Children, 3)
}

func TestPopAssertsKind(t *testing.T) {
	b := ast.NewBuilder(zone.NewArena[ast.Node]())
	b.Push(ast.KindNull, 0)
	require.Panics(t, func() { b.Pop(ast.KindThis) })
}

func TestDoClassCarriesHeritage(t *testing.T) {
	b := ast.NewBuilder(zone.NewArena[ast.Node]())
	mixinA := b.Push(ast.KindIdentifier, 0)
	implA := b.Push(ast.KindIdentifier, 0)
	b.PopN(2) // pull them back off so DoClass's member count is independent
	n := b.DoClass(0, 7, 0, nil, []*ast.Node{mixinA}, []*ast.Node{implA})
	require.Equal(t, []*ast.Node{mixinA}, ast.Mixins(n))
	require.Equal(t, []*ast.Node{implA}, ast.Implements(n))
}

func TestKindClassification(t *testing.T) {
	require.True(t, ast.KindBinary.IsExpression())
	require.False(t, ast.KindBinary.IsStatement())
	require.True(t, ast.KindIf.IsStatement())
	require.False(t, ast.KindIf.IsExpression())
}
