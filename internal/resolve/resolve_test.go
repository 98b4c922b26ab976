package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/resolve"
	"github.com/corelang/corec/internal/scope"
)

func TestParamsResolveToFormalParameterEntries(t *testing.T) {
	classScope := scope.New(nil)
	r := resolve.NewScopeResolver(classScope)

	param := &ast.Node{Kind: ast.KindVariableDeclaration, NameID: 1}
	use := &ast.Node{Kind: ast.KindIdentifier, NameID: 1}
	body := &ast.Node{Kind: ast.KindBlock, Children: []*ast.Node{
		{Kind: ast.KindReturn, A: use},
	}}

	r.Resolve([]*ast.Node{param}, body)

	entry, ok := param.Binding.(*scope.Entry)
	require.True(t, ok)
	require.Equal(t, scope.EntryFormalParameter, entry.Kind)

	useEntry, ok := use.Binding.(*scope.Entry)
	require.True(t, ok)
	require.Same(t, entry, useEntry)
}

// capturedBody builds `{ var/final v; () { v; }; }`: a local whose
// only use sits inside a nested function expression, so it must be
// classified as captured.
func capturedBody(decl *ast.Node) *ast.Node {
	use := &ast.Node{Kind: ast.KindIdentifier, NameID: decl.NameID}
	fn := &ast.Node{Kind: ast.KindFunctionExpression, A: &ast.Node{
		Kind:     ast.KindBlock,
		Children: []*ast.Node{{Kind: ast.KindExpressionStatement, A: use}},
	}}
	return &ast.Node{Kind: ast.KindBlock, Children: []*ast.Node{
		{Kind: ast.KindVariableDeclarationStatement, Children: []*ast.Node{decl}},
		{Kind: ast.KindExpressionStatement, A: fn},
	}}
}

func TestFinalLocalIsCapturedByValue(t *testing.T) {
	classScope := scope.New(nil)
	r := resolve.NewScopeResolver(classScope)

	decl := &ast.Node{Kind: ast.KindVariableDeclaration, NameID: 5, IsFinal: true}
	r.Resolve(nil, capturedBody(decl))

	require.Equal(t, ast.ByValue, decl.CaptureKind)
}

func TestMutableLocalIsCapturedByReference(t *testing.T) {
	classScope := scope.New(nil)
	r := resolve.NewScopeResolver(classScope)

	decl := &ast.Node{Kind: ast.KindVariableDeclaration, NameID: 6, IsFinal: false}
	r.Resolve(nil, capturedBody(decl))

	require.Equal(t, ast.ByReference, decl.CaptureKind)
}

func TestUncapturedLocalStaysUncaptured(t *testing.T) {
	classScope := scope.New(nil)
	r := resolve.NewScopeResolver(classScope)

	decl := &ast.Node{Kind: ast.KindVariableDeclaration, NameID: 7}
	use := &ast.Node{Kind: ast.KindIdentifier, NameID: 7}
	body := &ast.Node{Kind: ast.KindBlock, Children: []*ast.Node{
		{Kind: ast.KindVariableDeclarationStatement, Children: []*ast.Node{decl}},
		{Kind: ast.KindReturn, A: use},
	}}
	r.Resolve(nil, body)

	require.Equal(t, ast.NotCaptured, decl.CaptureKind)
}

func TestResolverBindFallsBackToScope(t *testing.T) {
	classScope := scope.New(nil)
	memberDecl := &ast.Node{Kind: ast.KindMethod, NameID: 9}
	classScope.Declare(9, &scope.Entry{Kind: scope.EntryMember, Member: memberDecl})

	use := &ast.Node{Kind: ast.KindIdentifier, NameID: 9}
	var resolver resolve.Resolver
	entry := resolver.Bind(use, classScope)
	require.NotNil(t, entry)
	require.Equal(t, memberDecl, entry.Member)
}

func TestResolverBindUnknownReturnsNil(t *testing.T) {
	classScope := scope.New(nil)
	use := &ast.Node{Kind: ast.KindIdentifier, NameID: 123}
	var resolver resolve.Resolver
	require.Nil(t, resolver.Bind(use, classScope))
}
