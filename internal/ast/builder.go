package ast

import (
	"fmt"

	"github.com/corelang/corec/internal/source"
	"github.com/corelang/corec/internal/zone"
)

// Builder is the pushdown stack the parser drives (spec §4.5, §9
// "Preserve this abstraction — it is a robust decoupling of grammar
// from storage"). The parser never constructs a *Node directly; every
// grammar production ends with a `Do*` call that pops a fixed number
// of nodes off the stack and pushes exactly one combined node, which
// makes push/pop balance trivially checkable (spec §8 "Parser
// balance"). All nodes are allocated from arena, which owns their
// storage for the lifetime of one compile.
type Builder struct {
	arena *zone.Arena[Node]
	stack []*Node
}

// NewBuilder creates a Builder backed by arena.
func NewBuilder(arena *zone.Arena[Node]) *Builder {
	return &Builder{arena: arena}
}

// Depth returns the current stack depth, used by callers that want to
// assert balance around an optional production.
func (b *Builder) Depth() int { return len(b.stack) }

func (b *Builder) alloc(kind Kind, loc source.Location) *Node {
	n := b.arena.New()
	n.Kind = kind
	n.Location = loc
	return n
}

// Push allocates a new leaf node of kind and pushes it, returning it
// for the caller to fill in (used for identifiers, literals, and other
// zero-child productions).
func (b *Builder) Push(kind Kind, loc source.Location) *Node {
	n := b.alloc(kind, loc)
	b.stack = append(b.stack, n)
	return n
}

// Pop removes and returns the top node, asserting it has the expected
// kind (spec §9 "typed wrappers that assert kind == expected on pop").
func (b *Builder) Pop(expected Kind) *Node {
	n := b.pop()
	if n.Kind != expected {
		panic(fmt.Sprintf("builder: expected %v on stack, got %v", expected, n.Kind))
	}
	return n
}

// PopAny removes and returns the top node without a kind assertion,
// used where a production accepts any expression or statement.
func (b *Builder) PopAny() *Node { return b.pop() }

func (b *Builder) pop() *Node {
	n := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return n
}

// PopN removes and returns the top count nodes in original (bottom-to-
// top) order, for productions that collect a variable-length child
// list (argument lists, block statements, case arms).
func (b *Builder) PopN(count int) []*Node {
	if count == 0 {
		return nil
	}
	start := len(b.stack) - count
	out := make([]*Node, count)
	copy(out, b.stack[start:])
	b.stack = b.stack[:start]
	return out
}

// DoBlock pops count statements and pushes a Block (spec §8
// "DoX(count) pops exactly count + fixed_k nodes").
func (b *Builder) DoBlock(loc source.Location, count int) *Node {
	stmts := b.PopN(count)
	n := b.alloc(KindBlock, loc)
	n.Children = stmts
	b.stack = append(b.stack, n)
	return n
}

// DoBinary pops a right operand, then a left operand, and pushes a
// Binary node carrying the operator token kind.
func (b *Builder) DoBinary(loc source.Location, op int16) *Node {
	right := b.PopAny()
	left := b.PopAny()
	n := b.alloc(KindBinary, loc)
	n.A, n.B = left, right
	n.Operator = op
	b.stack = append(b.stack, n)
	return n
}

// DoUnary pops one operand and pushes a Unary node.
func (b *Builder) DoUnary(loc source.Location, op int16) *Node {
	operand := b.PopAny()
	n := b.alloc(KindUnary, loc)
	n.A = operand
	n.Operator = op
	b.stack = append(b.stack, n)
	return n
}

// DoAssign pops a value, then a target, and pushes an Assign node.
// Compound assignment carries its widened operator (spec §4.5
// "compound assignment is recognized and pushed with its operator
// token").
func (b *Builder) DoAssign(loc source.Location, op int16) *Node {
	value := b.PopAny()
	target := b.PopAny()
	n := b.alloc(KindAssign, loc)
	n.A, n.B = target, value
	n.Operator = op
	b.stack = append(b.stack, n)
	return n
}

// DoInvoke pops argCount arguments, then a receiver, and pushes an
// Invoke node. nameID is the selector's simple name id (0 for a bare
// call-expression target); the trailing len(namedLabels) arguments are
// named-argument values paired by position with namedLabels.
func (b *Builder) DoInvoke(loc source.Location, argCount int, nameID int32, namedLabels []int32) *Node {
	args := b.PopN(argCount)
	receiver := b.PopAny()
	n := b.alloc(KindInvoke, loc)
	n.A = receiver
	n.Children = args
	n.NameID = nameID
	if len(namedLabels) > 0 {
		n.Binding = namedLabels
	}
	b.stack = append(b.stack, n)
	return n
}

// DoDot pops a receiver and pushes a Dot (member-access) node for
// nameID.
func (b *Builder) DoDot(loc source.Location, nameID int32) *Node {
	receiver := b.PopAny()
	n := b.alloc(KindDot, loc)
	n.A = receiver
	n.NameID = nameID
	b.stack = append(b.stack, n)
	return n
}

// DoConditional pops the else-branch, then-branch, and condition (in
// that push order) and pushes a Conditional node.
func (b *Builder) DoConditional(loc source.Location) *Node {
	elseExpr := b.PopAny()
	thenExpr := b.PopAny()
	cond := b.PopAny()
	n := b.alloc(KindConditional, loc)
	n.A, n.B, n.C = cond, thenExpr, elseExpr
	b.stack = append(b.stack, n)
	return n
}

// DoVariableDeclaration pops an optional initializer (present iff
// hasInit) and pushes a VariableDeclaration for nameID.
func (b *Builder) DoVariableDeclaration(loc source.Location, nameID int32, hasInit bool, mod ParamModifier, final bool) *Node {
	var init *Node
	if hasInit {
		init = b.PopAny()
	}
	n := b.alloc(KindVariableDeclaration, loc)
	n.NameID = nameID
	n.A = init
	n.Modifiers = mod
	n.IsFinal = final
	b.stack = append(b.stack, n)
	return n
}

// DoClass pops memberCount member declarations and pushes a Class
// node; superRef/mixins/impls are nil/empty when absent.
func (b *Builder) DoClass(loc source.Location, nameID int32, memberCount int, superRef *Node, mixins, impls []*Node) *Node {
	members := b.PopN(memberCount)
	n := b.alloc(KindClass, loc)
	n.NameID = nameID
	n.Children = members
	n.A = superRef
	n.ClassMixins = mixins
	n.ClassImplements = impls
	b.stack = append(b.stack, n)
	return n
}

// DoMethod pops a body when hasBody is set (nil for abstract
// declarations) and pushes a Method node. params, the parameter list
// already materialized as VariableDeclaration nodes, is passed
// directly and is not popped.
func (b *Builder) DoMethod(loc source.Location, nameID int32, params []*Node, hasBody bool, static, factory, isConst bool) *Node {
	var body *Node
	if hasBody {
		body = b.PopAny()
	}
	n := b.alloc(KindMethod, loc)
	n.NameID = nameID
	n.Children = params
	n.A = body
	n.IsStatic = static
	n.IsFactory = factory
	n.IsConst = isConst
	b.stack = append(b.stack, n)
	return n
}

// DoCompilationUnit pops declCount top-level declarations and pushes a
// CompilationUnit root node.
func (b *Builder) DoCompilationUnit(loc source.Location, declCount int) *Node {
	decls := b.PopN(declCount)
	n := b.alloc(KindCompilationUnit, loc)
	n.Children = decls
	b.stack = append(b.stack, n)
	return n
}

// DoImport pushes an Import declaration naming uri, with prefixID (0
// for unprefixed) and the combinator name ids `show`/`hide` filters to
// (spec §4.6 step 5, "optionally under a prefix").
func (b *Builder) DoImport(loc source.Location, uri string, prefixID int32, combinators []int32) *Node {
	n := b.alloc(KindImport, loc)
	n.StringValue = uri
	n.NameID = prefixID
	n.Binding = combinators
	b.stack = append(b.stack, n)
	return n
}

// DoExport pushes an Export declaration naming uri.
func (b *Builder) DoExport(loc source.Location, uri string) *Node {
	n := b.alloc(KindExport, loc)
	n.StringValue = uri
	b.stack = append(b.stack, n)
	return n
}

// DoPart pushes a Part declaration naming uri.
func (b *Builder) DoPart(loc source.Location, uri string) *Node {
	n := b.alloc(KindPart, loc)
	n.StringValue = uri
	b.stack = append(b.stack, n)
	return n
}

// DoPartOf pushes a PartOf declaration naming the owning library.
func (b *Builder) DoPartOf(loc source.Location, libraryName string) *Node {
	n := b.alloc(KindPartOf, loc)
	n.StringValue = libraryName
	b.stack = append(b.stack, n)
	return n
}

// DoTypedef pushes a Typedef declaration; type annotations are
// recognized by the parser but erased here (spec §4.5 "Type
// annotations are recognized but erased").
func (b *Builder) DoTypedef(loc source.Location, nameID int32) *Node {
	n := b.alloc(KindTypedef, loc)
	n.NameID = nameID
	b.stack = append(b.stack, n)
	return n
}

// DoIf pops an optional else-branch (iff hasElse), a then-branch, and
// a condition, and pushes an If node.
func (b *Builder) DoIf(loc source.Location, hasElse bool) *Node {
	var elseBranch *Node
	if hasElse {
		elseBranch = b.PopAny()
	}
	thenBranch := b.PopAny()
	cond := b.PopAny()
	n := b.alloc(KindIf, loc)
	n.A, n.B, n.C = cond, thenBranch, elseBranch
	b.stack = append(b.stack, n)
	return n
}

// DoWhile pops a body then a condition and pushes a While node.
func (b *Builder) DoWhile(loc source.Location) *Node {
	body := b.PopAny()
	cond := b.PopAny()
	n := b.alloc(KindWhile, loc)
	n.A, n.B = cond, body
	b.stack = append(b.stack, n)
	return n
}

// DoDoWhile pops a condition then a body and pushes a DoWhile node.
func (b *Builder) DoDoWhile(loc source.Location) *Node {
	cond := b.PopAny()
	body := b.PopAny()
	n := b.alloc(KindDoWhile, loc)
	n.A, n.B = cond, body
	b.stack = append(b.stack, n)
	return n
}

// DoFor pops a body, an optional increment/condition/init (each iff
// the corresponding has* flag is set, popped in increment, condition,
// init order since that is reverse of source order) and pushes a For
// node. A clause absent in source pushes nothing, so hasInit/hasCond/
// hasIncr tell DoFor how many of the four slots were actually pushed.
func (b *Builder) DoFor(loc source.Location, hasInit, hasCond, hasIncr bool) *Node {
	body := b.PopAny()
	var incr, cond, init *Node
	if hasIncr {
		incr = b.PopAny()
	}
	if hasCond {
		cond = b.PopAny()
	}
	if hasInit {
		init = b.PopAny()
	}
	n := b.alloc(KindFor, loc)
	n.A, n.B, n.C, n.D = init, cond, incr, body
	b.stack = append(b.stack, n)
	return n
}

// DoForIn pops a body, an iterable expression, and a loop-variable
// declaration (already pushed via DoVariableDeclaration) and pushes a
// ForIn node.
func (b *Builder) DoForIn(loc source.Location) *Node {
	body := b.PopAny()
	iterable := b.PopAny()
	loopVar := b.PopAny()
	n := b.alloc(KindForIn, loc)
	n.A, n.B, n.C = loopVar, iterable, body
	b.stack = append(b.stack, n)
	return n
}

// DoBreak pushes a Break statement, optionally naming a target label.
func (b *Builder) DoBreak(loc source.Location, labelNameID int32) *Node {
	n := b.alloc(KindBreak, loc)
	n.LabelNameID = labelNameID
	b.stack = append(b.stack, n)
	return n
}

// DoContinue pushes a Continue statement, optionally naming a target
// label.
func (b *Builder) DoContinue(loc source.Location, labelNameID int32) *Node {
	n := b.alloc(KindContinue, loc)
	n.LabelNameID = labelNameID
	b.stack = append(b.stack, n)
	return n
}

// DoReturn pops an optional value (iff hasValue) and pushes a Return
// statement.
func (b *Builder) DoReturn(loc source.Location, hasValue bool) *Node {
	var value *Node
	if hasValue {
		value = b.PopAny()
	}
	n := b.alloc(KindReturn, loc)
	n.A = value
	b.stack = append(b.stack, n)
	return n
}

// DoAssert pops an optional message (iff hasMessage) then a condition
// and pushes an Assert statement.
func (b *Builder) DoAssert(loc source.Location, hasMessage bool) *Node {
	var message *Node
	if hasMessage {
		message = b.PopAny()
	}
	cond := b.PopAny()
	n := b.alloc(KindAssert, loc)
	n.A, n.B = cond, message
	b.stack = append(b.stack, n)
	return n
}

// DoRethrow pushes a bare Rethrow statement.
func (b *Builder) DoRethrow(loc source.Location) *Node {
	n := b.alloc(KindRethrow, loc)
	b.stack = append(b.stack, n)
	return n
}

// DoLabelled pops a statement and pushes a Labelled wrapper naming
// labelNameID.
func (b *Builder) DoLabelled(loc source.Location, labelNameID int32) *Node {
	stmt := b.PopAny()
	n := b.alloc(KindLabelled, loc)
	n.LabelNameID = labelNameID
	n.A = stmt
	b.stack = append(b.stack, n)
	return n
}

// DoExpressionStatement pops one expression and pushes an
// ExpressionStatement wrapper.
func (b *Builder) DoExpressionStatement(loc source.Location) *Node {
	expr := b.PopAny()
	n := b.alloc(KindExpressionStatement, loc)
	n.A = expr
	b.stack = append(b.stack, n)
	return n
}

// DoVariableDeclarationStatement pops count VariableDeclaration nodes
// (already pushed via DoVariableDeclaration) and pushes a wrapping
// statement node.
func (b *Builder) DoVariableDeclarationStatement(loc source.Location, count int) *Node {
	decls := b.PopN(count)
	n := b.alloc(KindVariableDeclarationStatement, loc)
	n.Children = decls
	b.stack = append(b.stack, n)
	return n
}

// DoEmptyStatement pushes a bare EmptyStatement (a lone `;`).
func (b *Builder) DoEmptyStatement(loc source.Location) *Node {
	return b.Push(KindEmptyStatement, loc)
}

// DoCase pops count statements then a case-label expression (nil for
// `default:`, signalled by hasLabel) and pushes a Case node; Switch
// collects Case nodes as its Children.
func (b *Builder) DoCase(loc source.Location, hasLabel bool, stmtCount int) *Node {
	stmts := b.PopN(stmtCount)
	var label *Node
	if hasLabel {
		label = b.PopAny()
	}
	n := b.alloc(KindCase, loc)
	n.A = label
	n.Children = stmts
	b.stack = append(b.stack, n)
	return n
}

// DoSwitch pops caseCount Case nodes then a scrutinee expression and
// pushes a Switch node.
func (b *Builder) DoSwitch(loc source.Location, caseCount int) *Node {
	cases := b.PopN(caseCount)
	scrutinee := b.PopAny()
	n := b.alloc(KindSwitch, loc)
	n.A = scrutinee
	n.Children = cases
	b.stack = append(b.stack, n)
	return n
}

// DoCatch pops a catch block then an optional exception-variable
// declaration (stack-trace variable, if any, is threaded through
// Binding by the parser) and pushes a Catch node; Try collects Catch
// nodes as its Children.
func (b *Builder) DoCatch(loc source.Location, hasVar bool, exceptionClass *Node) *Node {
	block := b.PopAny()
	var exVar *Node
	if hasVar {
		exVar = b.PopAny()
	}
	n := b.alloc(KindCatch, loc)
	n.A = exVar
	n.B = block
	n.C = exceptionClass
	b.stack = append(b.stack, n)
	return n
}

// DoTry pops an optional finally block (iff hasFinally), catchCount
// Catch nodes, then a try body, and pushes a Try node.
func (b *Builder) DoTry(loc source.Location, hasFinally bool, catchCount int) *Node {
	var finallyBlock *Node
	if hasFinally {
		finallyBlock = b.PopAny()
	}
	catches := b.PopN(catchCount)
	body := b.PopAny()
	n := b.alloc(KindTry, loc)
	n.A = body
	n.B = finallyBlock
	n.Children = catches
	b.stack = append(b.stack, n)
	return n
}

// DoParenthesized pops one expression and pushes a Parenthesized
// wrapper (kept distinct from its inner expression so the constant
// interpreter and codegen can unwrap it uniformly).
func (b *Builder) DoParenthesized(loc source.Location) *Node {
	inner := b.PopAny()
	n := b.alloc(KindParenthesized, loc)
	n.A = inner
	b.stack = append(b.stack, n)
	return n
}

// DoIndex pops an index expression then a receiver and pushes an
// Index node (`receiver[index]`).
func (b *Builder) DoIndex(loc source.Location) *Node {
	index := b.PopAny()
	receiver := b.PopAny()
	n := b.alloc(KindIndex, loc)
	n.A, n.B = receiver, index
	b.stack = append(b.stack, n)
	return n
}

// DoIs pops a target expression and pushes an Is node testing against
// classRef (a resolved class/identifier reference, attached directly
// rather than popped since type annotations carry no expression
// form).
func (b *Builder) DoIs(loc source.Location, negated bool, classRef *Node) *Node {
	target := b.PopAny()
	n := b.alloc(KindIs, loc)
	n.A = target
	n.B = classRef
	n.BoolValue = negated
	b.stack = append(b.stack, n)
	return n
}

// DoAs pops a target expression and pushes an As node casting to
// classRef.
func (b *Builder) DoAs(loc source.Location, classRef *Node) *Node {
	target := b.PopAny()
	n := b.alloc(KindAs, loc)
	n.A = target
	n.B = classRef
	b.stack = append(b.stack, n)
	return n
}

// DoNew pops argCount arguments then a class reference and pushes a
// New node; constName is the constructor's simple name id (0 for the
// unnamed constructor). isConst marks a `const` invocation, folded by
// the constant interpreter (spec §4.11 "new vs. const new").
func (b *Builder) DoNew(loc source.Location, argCount int, constName int32, namedLabels []int32, isConst bool) *Node {
	args := b.PopN(argCount)
	classRef := b.PopAny()
	n := b.alloc(KindNew, loc)
	n.A = classRef
	n.Children = args
	n.NameID = constName
	n.IsConst = isConst
	if len(namedLabels) > 0 {
		n.Binding = namedLabels
	}
	b.stack = append(b.stack, n)
	return n
}

// PushNode pushes an already-built node back onto the stack, letting
// the parser reuse one evaluated subexpression (e.g. a cascade's
// shared receiver) across several productions without re-allocating
// or re-parsing it.
func (b *Builder) PushNode(n *Node) *Node {
	b.stack = append(b.stack, n)
	return n
}

// DoCascade pops sectionCount cascaded member-access/invoke/assign
// expressions, each already built against its own PushNode'd copy of
// receiver, and pushes a Cascade node that evaluates to receiver
// itself once every section has run (spec §4.5 precedence table,
// "cascade" tier; §9 glossary "Cascade").
func (b *Builder) DoCascade(loc source.Location, receiver *Node, sectionCount int) *Node {
	sections := b.PopN(sectionCount)
	n := b.alloc(KindCascade, loc)
	n.A = receiver
	n.Children = sections
	b.stack = append(b.stack, n)
	return n
}

// DoThrow pops a value and pushes a Throw expression.
func (b *Builder) DoThrow(loc source.Location) *Node {
	value := b.PopAny()
	n := b.alloc(KindThrow, loc)
	n.A = value
	b.stack = append(b.stack, n)
	return n
}

// DoStringInterpolation pops partCount alternating literal-string and
// expression parts (spec §4.4 "kStringInterpolation 'prefix'
// expression kStringInterpolation 'mid' ... kStringInterpolationEnd
// 'suffix'") and pushes a StringInterpolation node.
func (b *Builder) DoStringInterpolation(loc source.Location, partCount int) *Node {
	parts := b.PopN(partCount)
	n := b.alloc(KindStringInterpolation, loc)
	n.Children = parts
	b.stack = append(b.stack, n)
	return n
}

// DoLiteralList pops elementCount elements and pushes a LiteralList
// node; isConst marks it foldable by the constant interpreter.
func (b *Builder) DoLiteralList(loc source.Location, elementCount int, isConst bool) *Node {
	elements := b.PopN(elementCount)
	n := b.alloc(KindLiteralList, loc)
	n.Children = elements
	n.IsConst = isConst
	b.stack = append(b.stack, n)
	return n
}

// DoLiteralMap pops 2*entryCount alternating key/value elements and
// pushes a LiteralMap node.
func (b *Builder) DoLiteralMap(loc source.Location, entryCount int, isConst bool) *Node {
	elements := b.PopN(2 * entryCount)
	n := b.alloc(KindLiteralMap, loc)
	n.Children = elements
	n.IsConst = isConst
	b.stack = append(b.stack, n)
	return n
}

// DoFunctionExpression pops a body and pushes a FunctionExpression
// node whose Children are already-pushed parameter
// VariableDeclarations (passed directly since they are materialized
// the same way a method's parameter list is, not popped off the
// expression stack).
func (b *Builder) DoFunctionExpression(loc source.Location, params []*Node, hasBody bool) *Node {
	var body *Node
	if hasBody {
		body = b.PopAny()
	}
	n := b.alloc(KindFunctionExpression, loc)
	n.Children = params
	n.A = body
	b.stack = append(b.stack, n)
	return n
}
