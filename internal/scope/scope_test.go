package scope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/scope"
)

func TestDeclareAndLookupLocal(t *testing.T) {
	s := scope.New(nil)
	require.True(t, s.Declare(1, &scope.Entry{Kind: scope.EntryFormalParameter, Index: 0}))
	require.False(t, s.Declare(1, &scope.Entry{Kind: scope.EntryFormalParameter, Index: 1}), "redeclaration must fail")

	e, ok := s.LookupLocal(1)
	require.True(t, ok)
	require.Equal(t, 0, e.Index)
}

func TestLookupWalksParentChain(t *testing.T) {
	outer := scope.New(nil)
	outer.Declare(5, &scope.Entry{Kind: scope.EntryLocalDeclaration, Index: 2})
	inner := scope.New(outer)

	e, ok := inner.Lookup(5)
	require.True(t, ok)
	require.Equal(t, 2, e.Index)

	_, ok = inner.LookupLocal(5)
	require.False(t, ok, "LookupLocal must not see parent bindings")
}

func TestLookupMissReturnsFalse(t *testing.T) {
	s := scope.New(nil)
	_, ok := s.Lookup(99)
	require.False(t, ok)
}
