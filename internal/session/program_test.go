package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/compiler"
	"github.com/corelang/corec/internal/constpool"
	"github.com/corelang/corec/internal/emit"
	"github.com/corelang/corec/internal/session"
)

// buildTwoClassProgram mirrors spec §8 end-to-end scenario 6: two
// classes sharing one selector offset with different targets.
func buildTwoClassProgram(t *testing.T) ([]*compiler.ClassInfo, []*compiler.MethodInfo, *constpool.Pool, *compiler.Compiler) {
	t.Helper()

	pool := constpool.New(nil)
	constID := pool.Integer(42)

	comp := compiler.New(compiler.CompileOptions{}, pool, nil)

	fooSelector := compiler.Selector{NameID: 100, Kind: compiler.SelectorMethod, Arity: 0}

	classA := &compiler.ClassInfo{
		Node:    &ast.Node{NameID: 1},
		SuperID: -1,
		MethodTable: []compiler.MethodTableEntry{
			{Selector: fooSelector, MethodID: 0},
		},
	}
	classB := &compiler.ClassInfo{
		Node:    &ast.Node{NameID: 2},
		SuperID: 0,
		MethodTable: []compiler.MethodTableEntry{
			{Selector: fooSelector, MethodID: 1},
		},
	}

	methodA := &compiler.MethodInfo{
		ClassID: 0,
		Code: emit.Code{
			Arity:      1,
			Bytes:      []byte{1, 2, 3},
			LiteralIDs: []int32{emit.PackLiteral(constID, emit.LiteralConstant)},
		},
	}
	methodB := &compiler.MethodInfo{
		ClassID: 1,
		Code:    emit.Code{Arity: 1, Bytes: []byte{9, 9}},
	}

	return []*compiler.ClassInfo{classA, classB}, []*compiler.MethodInfo{methodA, methodB}, pool, comp
}

func TestEmitProgramWritesThreeIdentityMaps(t *testing.T) {
	classes, methods, pool, comp := buildTwoClassProgram(t)

	w := session.New()
	session.EmitProgram(w, comp, classes, methods, nil, pool, 0)

	buf := w.Bytes()
	require.GreaterOrEqual(t, len(buf), 3)
	require.Equal(t, byte(session.OpNewMap), buf[0])
}

func TestEmitProgramEndsWithCommitThenEntryPoint(t *testing.T) {
	classes, methods, pool, comp := buildTwoClassProgram(t)

	w := session.New()
	session.EmitProgram(w, comp, classes, methods, nil, pool, 0)

	buf := w.Bytes()
	// PushEntryPoint is the final frame: tag + 4B arity + 8B method id.
	entryStart := len(buf) - 13
	require.Equal(t, byte(session.OpPushEntryPoint), buf[entryStart])

	// Immediately before it sits exactly one CommitChanges frame (tag + 4B count).
	commitStart := entryStart - 5
	require.Equal(t, byte(session.OpCommitChanges), buf[commitStart])
}

func TestEmitProgramDoesNotPanicWithEmptyStatics(t *testing.T) {
	classes, methods, pool, comp := buildTwoClassProgram(t)
	w := session.New()
	require.NotPanics(t, func() {
		session.EmitProgram(w, comp, classes, methods, nil, pool, 1)
	})
}
