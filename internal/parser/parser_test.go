package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/parser"
	"github.com/corelang/corec/internal/scanner"
	"github.com/corelang/corec/internal/source"
	"github.com/corelang/corec/internal/zone"
)

func parseUnit(t *testing.T, text string) *ast.Node {
	t.Helper()
	table := source.NewTable()
	loc := table.LoadBytes("<test>", []byte(text))
	idents := scanner.NewIdentifierTable()
	arena := zone.NewArena[ast.Node]()
	unit, err := parser.New(table, idents, arena).ParseUnit(loc)
	require.NoError(t, err)
	return unit
}

// Parser balance (spec §8): every production ends with exactly one Do*
// call, so a well-formed unit always parses down to a single
// CompilationUnit node with no residue left on the builder stack. A
// grammar bug that double-pushes or forgets a pop would either panic
// mid-parse or leave ParseUnit returning something other than a single
// top-level node, so asserting the returned Kind is enough to catch it.
func TestParseUnitReturnsCompilationUnit(t *testing.T) {
	unit := parseUnit(t, "main() { return 1; }")
	require.Equal(t, ast.KindCompilationUnit, unit.Kind)
	require.Len(t, unit.Children, 1)
	require.Equal(t, ast.KindMethod, unit.Children[0].Kind)
}

func TestParseClassWithSuperAndMembers(t *testing.T) {
	unit := parseUnit(t, `
class Animal {
  String name;
  Animal(this.name);
  speak() { return name; }
}

class Dog extends Animal {
  Dog(String name) : super(name);
  speak() { return "woof"; }
}
`)
	require.Len(t, unit.Children, 2)

	animal := unit.Children[0]
	require.Equal(t, ast.KindClass, animal.Kind)
	require.Nil(t, animal.A)

	dog := unit.Children[1]
	require.Equal(t, ast.KindClass, dog.Kind)
	require.NotNil(t, dog.A, "extends clause should populate the super reference slot")
	require.Equal(t, ast.KindIdentifier, dog.A.Kind)
}

func TestParseBinaryPrecedence(t *testing.T) {
	// 1 + 2 * 3 must parse as 1 + (2 * 3): the outer node is the '+'.
	unit := parseUnit(t, "main() { return 1 + 2 * 3; }")
	method := unit.Children[0]
	block := method.A
	require.Equal(t, ast.KindBlock, block.Kind)
	ret := block.Children[0]
	require.Equal(t, ast.KindReturn, ret.Kind)

	plus := ret.A
	require.Equal(t, ast.KindBinary, plus.Kind)
	require.Equal(t, int16(scanner.KPlus), plus.Operator)

	star := plus.B
	require.Equal(t, ast.KindBinary, star.Kind)
	require.Equal(t, int16(scanner.KStar), star.Operator)
}

func TestParseIfElse(t *testing.T) {
	unit := parseUnit(t, `main() {
  if (true) {
    return 1;
  } else {
    return 2;
  }
}`)
	block := unit.Children[0].A
	ifStmt := block.Children[0]
	require.Equal(t, ast.KindIf, ifStmt.Kind)
	require.NotNil(t, ifStmt.C, "else branch should be present")
}

func TestParseForLoop(t *testing.T) {
	unit := parseUnit(t, "main() { for (var i = 0; i < 10; i++) { print(i); } }")
	block := unit.Children[0].A
	forStmt := block.Children[0]
	require.Equal(t, ast.KindFor, forStmt.Kind)
}

func TestParseForInLoop(t *testing.T) {
	unit := parseUnit(t, "main() { for (var x in items) { print(x); } }")
	block := unit.Children[0].A
	forIn := block.Children[0]
	require.Equal(t, ast.KindForIn, forIn.Kind)
}

func TestParseNamedArguments(t *testing.T) {
	unit := parseUnit(t, "main() { return greet(name: \"a\", loud: true); }")
	block := unit.Children[0].A
	ret := block.Children[0]
	invoke := ret.A
	require.Equal(t, ast.KindInvoke, invoke.Kind)
	require.Len(t, invoke.Children, 2)
}

func TestParseImportExportPartDecls(t *testing.T) {
	unit := parseUnit(t, `
import 'dart:core';
export 'foo.dart';
part 'bar.dart';
main() {}
`)
	require.Len(t, unit.Children, 4)
	require.Equal(t, ast.KindImport, unit.Children[0].Kind)
	require.Equal(t, ast.KindExport, unit.Children[1].Kind)
	require.Equal(t, ast.KindPart, unit.Children[2].Kind)
	require.Equal(t, ast.KindMethod, unit.Children[3].Kind)
}

func TestParseGenericTypeArgsSkippedInO1(t *testing.T) {
	// The `<int, String>` argument list must not leak into the AST: a
	// malformed bracket-match distance would either hang the parser or
	// mis-skip tokens, so asserting the declaration parses at all and
	// the field name survives is enough to exercise the O(1) skip path
	// (spec §4.4 / §4.5).
	unit := parseUnit(t, "class Box { Map<int, String> values; }")
	class := unit.Children[0]
	require.Equal(t, ast.KindClass, class.Kind)
	require.Len(t, class.Children, 1)
	require.Equal(t, ast.KindVariableDeclarationStatement, class.Children[0].Kind)
}

func TestParseFailsOnUnexpectedToken(t *testing.T) {
	table := source.NewTable()
	loc := table.LoadBytes("<test>", []byte("class {}"))
	idents := scanner.NewIdentifierTable()
	arena := zone.NewArena[ast.Node]()
	_, err := parser.New(table, idents, arena).ParseUnit(loc)
	require.Error(t, err)
	require.ErrorAs(t, err, new(*parser.ParseError))
}

// firstExpr digs the expression out of `main() { return <expr>; }`.
func firstExpr(t *testing.T, unit *ast.Node) *ast.Node {
	t.Helper()
	ret := unit.Children[0].A.Children[0]
	require.Equal(t, ast.KindReturn, ret.Kind)
	return ret.A
}

func TestParseGreaterEqualRecombines(t *testing.T) {
	// The scanner emits `>=` as kGtStart followed by `=` (spec §4.4);
	// the parser must reassemble the relational operator.
	unit := parseUnit(t, "main() { return a >= b; }")
	expr := firstExpr(t, unit)
	require.Equal(t, ast.KindBinary, expr.Kind)
	require.Equal(t, int16(scanner.KGe), expr.Operator)
}

func TestParseShiftRightRecombines(t *testing.T) {
	unit := parseUnit(t, "main() { return a >> b; }")
	expr := firstExpr(t, unit)
	require.Equal(t, ast.KindBinary, expr.Kind)
	require.Equal(t, int16(scanner.KShr), expr.Operator)
}

func TestParseShiftRightAssignRecombines(t *testing.T) {
	unit := parseUnit(t, "main() { a >>= 2; }")
	stmt := unit.Children[0].A.Children[0]
	require.Equal(t, ast.KindExpressionStatement, stmt.Kind)
	require.Equal(t, ast.KindAssign, stmt.A.Kind)
	require.Equal(t, int16(scanner.KShrEq), stmt.A.Operator)
}

func TestParseNestedGenericCloseStillSplits(t *testing.T) {
	// `List<List<int>>` ends in two matched generic closes; neither
	// may fuse into a `>>` operator (spec §4.4 kGtStart
	// disambiguation, gated on the bracket payload).
	unit := parseUnit(t, "class Box { List<List<int>> values; }")
	class := unit.Children[0]
	require.Len(t, class.Children, 1)
	require.Equal(t, ast.KindVariableDeclarationStatement, class.Children[0].Kind)
}

func TestParseConstConstructor(t *testing.T) {
	unit := parseUnit(t, "class Point { final x; const Point(this.x); }")
	class := unit.Children[0]
	var ctor *ast.Node
	for _, member := range class.Children {
		if member.Kind == ast.KindMethod && member.NameID == class.NameID {
			ctor = member
		}
	}
	require.NotNil(t, ctor, "const constructors route to the constructor production")
	require.True(t, ctor.IsConst)
	require.Len(t, ctor.Children, 1)
	require.True(t, ctor.Children[0].ThisBind)
}
