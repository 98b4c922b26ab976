package constpool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/constpool"
	"github.com/corelang/corec/internal/source"
)

func TestSingletonsAreInternedByIdentity(t *testing.T) {
	p := constpool.New(source.NewTable())
	require.Equal(t, p.Null(), p.Null())
	require.Equal(t, p.Bool(true), p.Bool(true))
	require.NotEqual(t, p.Bool(true), p.Bool(false))
	require.NotEqual(t, p.Null(), p.Bool(true))
}

func TestIntegerDedupByValue(t *testing.T) {
	p := constpool.New(source.NewTable())
	a := p.Integer(42)
	b := p.Integer(42)
	c := p.Integer(43)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestDoubleDedupByBitPattern(t *testing.T) {
	p := constpool.New(source.NewTable())
	a := p.Double(1.5)
	b := p.Double(1.5)
	require.Equal(t, a, b)
}

func TestStringDedupByContent(t *testing.T) {
	p := constpool.New(source.NewTable())
	a := p.String("hello")
	b := p.String("hello")
	c := p.String("world")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestListDedupStructural(t *testing.T) {
	p := constpool.New(source.NewTable())
	one, two := p.Integer(1), p.Integer(2)
	a := p.List([]int32{one, two})
	b := p.List([]int32{one, two})
	c := p.List([]int32{two, one})
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestMapDedupStructural(t *testing.T) {
	p := constpool.New(source.NewTable())
	k, v := p.String("k"), p.Integer(1)
	a := p.Map([]int32{k}, []int32{v})
	b := p.Map([]int32{k}, []int32{v})
	require.Equal(t, a, b)
}

func TestInstanceDedupPerClassAndFields(t *testing.T) {
	p := constpool.New(source.NewTable())
	classA := &ast.Node{Kind: ast.KindClass, NameID: 10}
	classB := &ast.Node{Kind: ast.KindClass, NameID: 20}

	one := p.Integer(1)
	a := p.Instance(classA, constpool.ClassDedupKeyOf(classA), []int32{one})
	b := p.Instance(classA, constpool.ClassDedupKeyOf(classA), []int32{one})
	c := p.Instance(classB, constpool.ClassDedupKeyOf(classB), []int32{one})

	require.Equal(t, a, b)
	require.NotEqual(t, a, c, "same field ids under a different class must not collide")
}
