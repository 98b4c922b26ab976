package compiler_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/compiler"
	"github.com/corelang/corec/internal/constpool"
	"github.com/corelang/corec/internal/emit"
	"github.com/corelang/corec/internal/loader"
	"github.com/corelang/corec/internal/parser"
	"github.com/corelang/corec/internal/scanner"
	"github.com/corelang/corec/internal/source"
	"github.com/corelang/corec/internal/zone"
)

type memContent map[string][]byte

func (c memContent) Resolve(importPath, fromURI string) (string, error) { return importPath, nil }

func (c memContent) ReadFile(uri string) ([]byte, error) {
	b, ok := c[uri]
	if !ok {
		return nil, fmt.Errorf("not found: %s", uri)
	}
	return b, nil
}

type compiled struct {
	comp    *compiler.Compiler
	idents  *scanner.IdentifierTable
	classes []*compiler.ClassInfo
	methods []*compiler.MethodInfo
	pool    *constpool.Pool
}

// compileSource drives the same pipeline the corec entry point does,
// but hands back the compiler state for inspection.
func compileSource(t *testing.T, src string) compiled {
	t.Helper()

	table := source.NewTable()
	idents := scanner.NewIdentifierTable()
	arena := zone.NewArena[ast.Node]()
	p := parser.New(table, idents, arena)
	ld := loader.New(p, memContent{"main.dart": []byte(src)}, table, idents, "", "")

	lib, err := ld.Load("main.dart")
	require.NoError(t, err)
	compiler.LinkSuperClasses(ld.Libraries())
	compiler.LinkClassScopes(ld.Libraries())

	pool := constpool.New(table)
	comp := compiler.New(compiler.CompileOptions{Optimize: true, StrictConst: true}, pool, ld)
	comp.Names = idents
	comp.IteratorNameID = idents.Intern([]byte("iterator"))
	comp.MoveNextNameID = idents.Intern([]byte("moveNext"))
	comp.CurrentNameID = idents.Intern([]byte("current"))
	comp.CallNameID = idents.Intern([]byte("call"))

	entry, ok := lib.Scope.Lookup(idents.Intern([]byte("main")))
	require.True(t, ok, "source must declare main")

	entryID := comp.EnqueueMethod(entry.Member, -1, lib.Scope)
	classes, methods, _, finalID := comp.Finalize(entryID)
	require.NoError(t, comp.Err())
	require.EqualValues(t, entryID, finalID)

	return compiled{comp: comp, idents: idents, classes: classes, methods: methods, pool: pool}
}

func (c compiled) methodNamed(t *testing.T, name string) *compiler.MethodInfo {
	t.Helper()
	id := c.idents.Intern([]byte(name))
	for _, m := range c.methods {
		if m.Node != nil && m.Node.NameID == id {
			return m
		}
	}
	t.Fatalf("no compiled method named %q", name)
	return nil
}

func (c compiled) classNamed(t *testing.T, name string) *compiler.ClassInfo {
	t.Helper()
	id := c.idents.Intern([]byte(name))
	for _, info := range c.classes {
		if info.Node.NameID == id {
			return info
		}
	}
	t.Fatalf("no compiled class named %q", name)
	return nil
}

func containsOpcode(bytes []byte, op emit.Opcode) bool {
	// Good enough for the assertions below: the opcodes looked for
	// never occur as operand bytes in these tiny fixtures.
	for _, b := range bytes {
		if b == byte(op) {
			return true
		}
	}
	return false
}

func TestEmptyBodyMainReturnsNull(t *testing.T) {
	c := compileSource(t, "main() { { } }")
	code := c.methods[0].Code
	require.Equal(t, 0, code.Arity)
	require.Equal(t, byte(emit.OpLoadLiteral0), code.Bytes[0], "an empty body returns the null literal")
	require.Equal(t, byte(emit.OpReturn), code.Bytes[1])
}

func TestParameterLoadsFromFrameSlot(t *testing.T) {
	c := compileSource(t, "main() { return foo(1); } foo(x) { return x; }")
	foo := c.methodNamed(t, "foo")
	require.Equal(t, 1, foo.Code.Arity)
	require.Equal(t, byte(emit.OpLoadLocal0), foo.Code.Bytes[0])
	require.Equal(t, byte(0), foo.Code.Bytes[1], "parameter x occupies frame slot 0")
	require.Equal(t, byte(emit.OpReturn), foo.Code.Bytes[2])
}

func TestIntegerAddUsesSpecializedOpcode(t *testing.T) {
	c := compileSource(t, "main() { return 2 + 2; }")
	code := c.methods[0].Code
	require.True(t, containsOpcode(code.Bytes, emit.OpInvokeAdd))
	require.Len(t, code.LiteralIDs, 1, "both 2s intern to one constant-pool literal slot")
}

func TestClosureCapturesByReference(t *testing.T) {
	c := compileSource(t, "main() { var y = 87; var f = () { y = 1; }; return y; }")

	code := c.methods[0].Code
	require.True(t, containsOpcode(code.Bytes, emit.OpAllocateBoxed), "a mutable captured local is boxed at declaration")
	require.True(t, containsOpcode(code.Bytes, emit.OpAllocate), "the closure object is allocated in main")
	require.True(t, containsOpcode(code.Bytes, emit.OpLoadBoxed), "reads of the captured local go through the box")
	require.NotEmpty(t, c.classes, "a closure synthesizes a class")

	call := c.methodNamed(t, "call")
	require.True(t, containsOpcode(call.Code.Bytes, emit.OpStoreBoxed), "the closure writes through the shared box")
}

func TestFinalCaptureIsByValue(t *testing.T) {
	c := compileSource(t, "main() { final y = 87; var f = () { return y; }; return y; }")
	code := c.methods[0].Code
	require.False(t, containsOpcode(code.Bytes, emit.OpAllocateBoxed), "a final captured local is copied, not boxed")
	require.True(t, containsOpcode(code.Bytes, emit.OpAllocate))
}

func TestTryFinallyUsesSubroutine(t *testing.T) {
	c := compileSource(t, "main() { try { return; } finally { } }")
	code := c.methods[0].Code
	require.True(t, containsOpcode(code.Bytes, emit.OpSubroutineCall))
	require.True(t, containsOpcode(code.Bytes, emit.OpSubroutineReturn))
	require.Len(t, code.TryRanges, 1, "the try body records its byte range")
	tr := code.TryRanges[0]
	require.Less(t, tr.Start, tr.End)
	require.GreaterOrEqual(t, tr.HandlerPC, tr.End)
}

func TestOverriddenMethodSharesSelectorRow(t *testing.T) {
	c := compileSource(t, `
class A { foo() { return 1; } }
class B extends A { foo() { return 2; } }
main() { var x = new B(); return x.foo(); }
`)
	a := c.classNamed(t, "A")
	b := c.classNamed(t, "B")

	fooID := c.idents.Intern([]byte("foo"))
	find := func(info *compiler.ClassInfo) (compiler.MethodTableEntry, bool) {
		for _, row := range info.MethodTable {
			if row.Selector.NameID == fooID && row.Selector.Kind == compiler.SelectorMethod {
				return row, true
			}
		}
		return compiler.MethodTableEntry{}, false
	}
	rowA, okA := find(a)
	rowB, okB := find(b)
	require.True(t, okA)
	require.True(t, okB)
	require.Equal(t, rowA.Selector, rowB.Selector, "both rows share one selector offset")
	require.NotEqual(t, rowA.MethodID, rowB.MethodID, "the targets differ per class")

	aID := int32(-1)
	for i, info := range c.classes {
		if info == a {
			aID = int32(i)
		}
	}
	require.Equal(t, aID, b.SuperID, "B links to A")
}

func TestConstructorAllocatesAllFields(t *testing.T) {
	c := compileSource(t, `
class C { var a; var b; C(this.a); }
main() { return new C(1); }
`)
	info := c.classNamed(t, "C")
	require.Equal(t, 2, info.FieldCount)

	ctorID, ok := info.ConstructorMap[c.idents.Intern([]byte("C"))]
	require.True(t, ok)
	ctor := c.methods[ctorID]
	require.Equal(t, 1, ctor.Code.Arity, "constructors are receiverless; this.a binds the only parameter")
	require.True(t, containsOpcode(ctor.Code.Bytes, emit.OpAllocate))
	require.True(t, containsOpcode(ctor.Code.Bytes, emit.OpReturn))
}

func TestOptionalArgumentCallGetsForwardingStub(t *testing.T) {
	c := compileSource(t, "foo(a, [b]) { return a; } main() { return foo(1); }")
	// main, foo, and the arity-1 forwarding stub.
	require.Len(t, c.methods, 3)
	main := c.methods[0].Code
	require.True(t, containsOpcode(main.Bytes, emit.OpInvokeStatic))
}

func TestNamedArgumentCallGetsForwardingStub(t *testing.T) {
	c := compileSource(t, "foo(a, {b}) { return b; } main() { return foo(1, b: 2); }")
	require.Len(t, c.methods, 3)
	stub := c.methods[2]
	require.Equal(t, 2, stub.Code.Arity, "the stub's frame matches the caller's shape")
}

func TestIsTestMaterializesSyntheticSelector(t *testing.T) {
	c := compileSource(t, `
class A { }
main() { var x = new A(); return x is A; }
`)
	a := c.classNamed(t, "A")
	found := false
	for _, row := range a.MethodTable {
		if row.Selector.Kind == compiler.SelectorIs {
			found = true
			target := c.methods[row.MethodID]
			require.Equal(t, byte(emit.OpLoadLiteral1), target.Code.Bytes[0], "an is@T hit always returns true")
		}
	}
	require.True(t, found, "A's method table carries the synthetic is@A row")
}

func TestDeterministicIDs(t *testing.T) {
	src := `
class A { foo() { return 1; } bar() { return 2; } }
class B extends A { foo() { return 3; } }
main() { var x = new B(); x.foo(); x.bar(); return x is A; }
`
	first := compileSource(t, src)
	second := compileSource(t, src)

	require.Equal(t, len(first.methods), len(second.methods))
	require.Equal(t, len(first.classes), len(second.classes))
	require.Equal(t, first.pool.Len(), second.pool.Len())
	for i := range first.methods {
		require.Equal(t, first.methods[i].Code.Bytes, second.methods[i].Code.Bytes, "method %d", i)
		require.Equal(t, first.methods[i].Code.LiteralIDs, second.methods[i].Code.LiteralIDs, "method %d", i)
	}
	for i := range first.classes {
		require.Equal(t, first.classes[i].MethodTable, second.classes[i].MethodTable, "class %d", i)
	}
}

func TestConstConstructorFoldsToInstanceConstant(t *testing.T) {
	c := compileSource(t, `
class Point { final x; final y; const Point(this.x, this.y); }
main() { return const Point(1, 2); }
`)
	var instance *constpool.Const
	for id := 0; id < c.pool.Len(); id++ {
		if cst := c.pool.Get(int32(id)); cst.Tag == constpool.TagInstance {
			instance = cst
		}
	}
	require.NotNil(t, instance, "const Point(1, 2) folds to a pool instance")
	require.Len(t, instance.Fields, 2)
	require.Equal(t, c.pool.Integer(1), instance.Fields[0])
	require.Equal(t, c.pool.Integer(2), instance.Fields[1])

	code := c.methods[0].Code
	require.False(t, containsOpcode(code.Bytes, emit.OpInvokeFactory), "a folded const new never reaches the runtime constructor")
}

func TestConstConstructorDedupsStructurally(t *testing.T) {
	c := compileSource(t, `
class Point { final x; final y; const Point(this.x, this.y); }
main() { var a = const Point(1, 2); var b = const Point(1, 2); return a; }
`)
	count := 0
	for id := 0; id < c.pool.Len(); id++ {
		if c.pool.Get(int32(id)).Tag == constpool.TagInstance {
			count++
		}
	}
	require.Equal(t, 1, count, "structurally equal const instances intern to one pool entry")
}

func TestConstConstructorInitializerListFolds(t *testing.T) {
	c := compileSource(t, `
class Pair { final a; final b; const Pair(x) : a = x, b = x + 1; }
main() { return const Pair(4); }
`)
	var instance *constpool.Const
	for id := 0; id < c.pool.Len(); id++ {
		if cst := c.pool.Get(int32(id)); cst.Tag == constpool.TagInstance {
			instance = cst
		}
	}
	require.NotNil(t, instance)
	require.Equal(t, c.pool.Integer(4), instance.Fields[0])
	require.Equal(t, c.pool.Integer(5), instance.Fields[1], "initializer-list expressions see the call site's argument")
}

func TestGreaterEqualAndShiftRightRecombine(t *testing.T) {
	c := compileSource(t, `
main() {
  var a = 8;
  if (a >= 2) { a = a >> 1; }
  a >>= 2;
  return a;
}
`)
	code := c.methods[0].Code
	require.True(t, containsOpcode(code.Bytes, emit.OpInvokeGe), ">= reassembles from kGtStart + =")
	require.True(t, containsOpcode(code.Bytes, emit.OpInvokeMethod), ">> and >>= dispatch through the generic invoke path")
}

func TestStringInterpolationConcatenates(t *testing.T) {
	c := compileSource(t, "main() { var n = 3; return 'n is $n!'; }")
	code := c.methods[0].Code
	require.True(t, containsOpcode(code.Bytes, emit.OpInvokeAdd), "interpolation chains string concatenation")
}

func TestSwitchCompilesToSequentialEquality(t *testing.T) {
	c := compileSource(t, `
main() {
  var x = 2;
  switch (x) {
    case 1: return 10;
    case 2: return 20;
    default: return 0;
  }
}
`)
	code := c.methods[0].Code
	require.True(t, containsOpcode(code.Bytes, emit.OpInvokeEq))
	require.True(t, containsOpcode(code.Bytes, emit.OpBranchIfTrue))
}
