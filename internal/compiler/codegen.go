package compiler

import (
	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/constpool"
	"github.com/corelang/corec/internal/emit"
	"github.com/corelang/corec/internal/loader"
	"github.com/corelang/corec/internal/scanner"
	"github.com/corelang/corec/internal/scope"
)

// Native operation ids referenced by invoke-native bytecodes. The VM
// installs these as a fixed table; ids past nativeFieldBase encode the
// shared per-field-index accessor stubs (spec §4.10 "instance fields
// share generated getter/setter stubs keyed by field index").
const (
	nativeUnresolved int32 = iota
	nativeListLiteral
	nativeMapLiteral
	nativeFieldBase
)

func fieldGetterNative(index int) int32 { return nativeFieldBase + int32(2*index) }
func fieldSetterNative(index int) int32 { return nativeFieldBase + int32(2*index) + 1 }

// closureStub marks a function expression's synthesized `call` method:
// captured entries arrive as fields on the closure object, copied into
// local slots by the method prologue so load-boxed/store-boxed keep
// addressing frame slots (spec §4.11 "Function expression / local
// function").
type closureStub struct {
	captures     []*scope.Entry
	capturesThis bool
}

// restoreFrame is one entry of the emitter-side unwinding stack (spec
// glossary "Restore label"): non-local control flow (break, continue,
// return) walks it to find its target and to run every pending finally
// block on the way out.
type restoreFrame struct {
	breakLabel    *emit.Label
	continueLabel *emit.Label
	finallyLabel  *emit.Label
	depth         int
	nameID        int32
}

// codegen is the single code-generation visitor of spec §4.11: one
// instance per method, walking every statement and expression while
// the emitter mirrors the VM's operand stack.
//
// Frame layout: the receiver (when the method has one) occupies slot
// 0, declared parameters follow, then ScopeResolver's local slots,
// then captured-variable slots for closure bodies, then scratch slots
// the visitor allocates for receivers, switch scrutinees and
// assignment results. Everything past the arguments is reserved
// through the emitter rather than pushed, so the operand-stack balance
// invariants of spec §8 hold unchanged.
type codegen struct {
	compiler   *Compiler
	scope      *scope.Scope
	classID    int32
	classNode  *ast.Node
	isInstance bool
	isCtor     bool
	paramCount int
	localCount int

	e            *emit.Emitter
	captureCount int
	captureSlots map[*scope.Entry]int
	cascadeSlots map[*ast.Node]int
	restores     []*restoreFrame
	exceptions   []int // temp slots holding the in-flight exception, innermost last

	ctorThisSlot  int
	outerThisSlot int
	pendingLabel  int32

	tempNext int
	tempMax  int
}

func (g *codegen) thisOffset() int {
	if g.isInstance {
		return 1
	}
	return 0
}

func (g *codegen) arity() int { return g.thisOffset() + g.paramCount }

func (g *codegen) tempBase() int { return g.arity() + g.localCount + g.captureCount }

func (g *codegen) allocTemp() int {
	slot := g.tempBase() + g.tempNext
	g.tempNext++
	if g.tempNext > g.tempMax {
		g.tempMax = g.tempNext
	}
	return slot
}

func (g *codegen) freeTemp() { g.tempNext-- }

func (g *codegen) takePendingLabel() int32 {
	l := g.pendingLabel
	g.pendingLabel = 0
	return l
}

func (g *codegen) constEval(n *ast.Node) (int32, bool) {
	ip := &constpool.Interpreter{Pool: g.compiler.Pool, Resolver: g.compiler.Resolve}
	id, ok, err := ip.Eval(n, g.scope)
	if err != nil {
		// resolver.strict_const gates the const-context unresolved
		// fatality (spec §4.7): lenient mode demotes it to "cannot
		// fold", leaving the expression to the runtime path.
		if _, unresolved := err.(*constpool.ConstUnresolvedError); unresolved && !g.compiler.Options.StrictConst {
			return 0, false
		}
		g.compiler.fail(err)
		return 0, false
	}
	if ok {
		g.enqueueConstClasses(id)
	}
	return id, ok
}

// enqueueConstClasses enqueues the class of every instance constant
// reachable from id, so the session writer can resolve each folded
// instance's class id when it pushes the pool (spec §6.2
// PushNewInstance pops the class from ClassMap).
func (g *codegen) enqueueConstClasses(id int32) {
	c := g.compiler.Pool.Get(id)
	switch c.Tag {
	case constpool.TagInstance:
		g.compiler.EnqueueClass(c.Class)
	case constpool.TagList, constpool.TagMap:
	default:
		return
	}
	for _, f := range c.Fields {
		g.enqueueConstClasses(f)
	}
}

func unwrapParens(n *ast.Node) *ast.Node {
	for n != nil && n.Kind == ast.KindParenthesized {
		n = n.A
	}
	return n
}

// emitMethodBody drives the whole visitor for one method, dispatching
// first on the synthesized-stub markers the worklist plants in a
// method node's Binding, then falling through to the general
// statement walk.
func (g *codegen) emitMethodBody(e *emit.Emitter, method *ast.Node) {
	g.e = e
	g.captureSlots = map[*scope.Entry]int{}
	g.cascadeSlots = map[*ast.Node]int{}
	g.ctorThisSlot = -1
	g.outerThisSlot = -1

	switch stub := method.Binding.(type) {
	case fieldAccessorStub:
		g.emitFieldAccessor(stub)
	case isSelectorStub:
		e.LoadLiteralBool(true)
		e.Return()
		e.SetStackDepth(0)
	case tearoffStub:
		g.emitTearoffCall(stub)
	case namedForwardStub:
		g.emitNamedForward(stub)
	case staticInitStub:
		if stub.field.A != nil {
			g.emitExpression(stub.field.A)
		} else {
			e.LoadLiteralNull()
		}
		e.Return()
		e.SetStackDepth(0)
	case closureStub:
		g.emitClosurePrologue(stub)
		g.emitPlainBody(method)
	default:
		if g.isCtor {
			g.emitConstructor(method)
		} else {
			g.emitPlainBody(method)
		}
	}

	e.ReserveLocals(g.localCount + g.captureCount + g.tempMax)
}

func (g *codegen) emitPlainBody(method *ast.Node) {
	if method.A != nil {
		g.emitStatement(method.A)
	}
	g.e.LoadLiteralNull()
	g.e.Return()
	g.e.SetStackDepth(0)
}

func (g *codegen) emitFieldAccessor(stub fieldAccessorStub) {
	g.e.LoadLocal(0)
	if stub.isSetter {
		g.e.LoadLocal(1)
		g.e.InvokeNative(fieldSetterNative(stub.fieldIndex), 1)
	} else {
		g.e.InvokeNative(fieldGetterNative(stub.fieldIndex), 0)
	}
	g.e.Return()
	g.e.SetStackDepth(0)
}

func (g *codegen) emitTearoffCall(stub tearoffStub) {
	g.e.LoadLocal(0)
	g.e.InvokeNative(fieldGetterNative(0), 0) // the bound receiver, field 0
	for i := 0; i < stub.arity; i++ {
		g.e.LoadLocal(1 + i)
	}
	g.e.InvokeStatic(stub.targetMethodID, stub.arity+1)
	g.e.Return()
	g.e.SetStackDepth(0)
}

func (g *codegen) emitNamedForward(stub namedForwardStub) {
	if g.isInstance {
		g.e.LoadLocal(0)
	}
	posIdx := 0
	for _, p := range stub.target.Children {
		if p.Modifiers == ast.ParamNamedOptional {
			if j := indexOfLabel(stub.callerLabels, p.NameID); j >= 0 {
				g.e.LoadLocal(g.thisOffset() + stub.callerPositional + j)
			} else {
				g.emitParamDefault(p)
			}
			continue
		}
		if posIdx < stub.callerPositional {
			g.e.LoadLocal(g.thisOffset() + posIdx)
		} else {
			g.emitParamDefault(p)
		}
		posIdx++
	}
	argc := len(stub.target.Children)
	if g.isInstance {
		argc++
	}
	g.e.InvokeStatic(stub.targetID, argc)
	g.e.Return()
	g.e.SetStackDepth(0)
}

func indexOfLabel(labels []int32, id int32) int {
	for i, l := range labels {
		if l == id {
			return i
		}
	}
	return -1
}

// emitParamDefault loads an omitted optional parameter's default value
// through the constant interpreter (spec §4.10 "loading defaults for
// omitted optionals from the method's default-value expressions via
// the constant interpreter").
func (g *codegen) emitParamDefault(p *ast.Node) {
	if p.A != nil {
		if id, ok := g.constEval(p.A); ok {
			g.e.LoadConstant(id)
			return
		}
	}
	g.e.LoadLiteralNull()
}

func (g *codegen) emitClosurePrologue(stub closureStub) {
	g.captureCount = len(stub.captures)
	if stub.capturesThis {
		g.captureCount++
	}
	base := g.arity() + g.localCount
	fieldIdx := 0
	if stub.capturesThis {
		g.e.LoadLocal(0)
		g.e.InvokeNative(fieldGetterNative(0), 0)
		g.e.StoreLocal(base)
		g.outerThisSlot = base
		fieldIdx = 1
	}
	for i, entry := range stub.captures {
		slot := base + fieldIdx + i
		g.e.LoadLocal(0)
		g.e.InvokeNative(fieldGetterNative(fieldIdx+i), 0)
		g.e.StoreLocal(slot)
		g.captureSlots[entry] = slot
	}
}

// ---- constructors ---------------------------------------------------

func (g *codegen) emitConstructor(ctor *ast.Node) {
	info := g.compiler.classes[g.classID]
	g.emitCtorFields(info, ctor, nil)
	g.e.Allocate(g.classID, info.FieldOffset+info.FieldCount)
	g.ctorThisSlot = g.allocTemp()
	g.e.StoreLocal(g.ctorThisSlot)
	if ctor.A != nil {
		g.emitStatement(ctor.A)
	}
	g.e.LoadLocal(g.ctorThisSlot)
	g.e.Return()
	g.e.SetStackDepth(0)
}

// emitCtorFields pushes one value per instance field of info's class,
// superclass fields first so push order equals field-index order
// (spec §4.10 "field offset counter continues from super's last").
// args maps a chained constructor's parameter name to a thunk
// producing its argument value; nil for the constructor actually
// invoked, whose parameters live in the current frame.
func (g *codegen) emitCtorFields(info *ClassInfo, ctor *ast.Node, args map[int32]func()) {
	if info.SuperID >= 0 {
		superInfo := g.compiler.classes[info.SuperID]
		var superCall *ast.SuperCall
		if ctor != nil {
			superCall = ctor.Super
		}
		ctors := loader.ClassConstructors(superInfo.Node)
		key := superInfo.Node.NameID
		if superCall != nil && superCall.NamedCtorID != 0 {
			key = superCall.NamedCtorID
		}
		superCtor := ctors[key]
		superArgs := map[int32]func(){}
		if superCtor != nil && superCall != nil {
			for i, p := range superCtor.Children {
				if i < len(superCall.Args) {
					arg := superCall.Args[i]
					outer := args
					superArgs[p.NameID] = func() { g.emitCtorExpr(arg, outer) }
				}
			}
		}
		g.emitCtorFields(superInfo, superCtor, superArgs)
	}

	for _, member := range info.Node.Children {
		if member.Kind != ast.KindVariableDeclarationStatement {
			continue
		}
		for _, field := range member.Children {
			if field.IsStatic {
				continue
			}
			g.emitCtorFieldValue(field, ctor, args)
		}
	}
}

func (g *codegen) emitCtorFieldValue(field *ast.Node, ctor *ast.Node, args map[int32]func()) {
	if ctor != nil {
		for i, p := range ctor.Children {
			if p.ThisBind && p.NameID == field.NameID {
				switch {
				case args == nil:
					g.e.LoadLocal(i) // constructors are receiverless, so parameter i sits at slot i
				case args[p.NameID] != nil:
					args[p.NameID]()
				case p.A != nil:
					g.emitCtorExpr(p.A, nil)
				default:
					g.e.LoadLiteralNull()
				}
				return
			}
		}
		for _, init := range ctor.Initializers {
			if init.FieldNameID == field.NameID {
				g.emitCtorExpr(init.Value, args)
				return
			}
		}
	}
	if field.A != nil {
		g.emitCtorExpr(field.A, nil)
		return
	}
	g.e.LoadLiteralNull()
}

// emitCtorExpr evaluates a constructor initializer expression,
// substituting a chained constructor's parameter references through
// args. Substitution is per-identifier: a chained parameter appearing
// inside a larger expression is replaced where it is the whole
// (sub)expression the initializer names.
func (g *codegen) emitCtorExpr(n *ast.Node, args map[int32]func()) {
	n = unwrapParens(n)
	if args != nil && n != nil && n.Kind == ast.KindIdentifier {
		if thunk := args[n.NameID]; thunk != nil {
			thunk()
			return
		}
	}
	g.emitExpression(n)
}

// ---- statements -----------------------------------------------------

func (g *codegen) emitStatement(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindBlock:
		for _, s := range n.Children {
			g.emitStatement(s)
		}
	case ast.KindExpressionStatement:
		g.emitExpression(n.A)
		g.e.Pop()
	case ast.KindVariableDeclarationStatement:
		for _, decl := range n.Children {
			g.emitVariableDeclaration(decl)
		}
	case ast.KindIf:
		g.emitIf(n)
	case ast.KindWhile:
		g.emitWhile(n)
	case ast.KindDoWhile:
		g.emitDoWhile(n)
	case ast.KindFor:
		g.emitFor(n)
	case ast.KindForIn:
		g.emitForIn(n)
	case ast.KindReturn:
		g.emitReturn(n)
	case ast.KindBreak:
		g.emitBreak(n)
	case ast.KindContinue:
		g.emitContinue(n)
	case ast.KindLabelled:
		g.emitLabelled(n)
	case ast.KindSwitch:
		g.emitSwitch(n)
	case ast.KindTry:
		g.emitTry(n)
	case ast.KindAssert:
		g.emitAssert(n)
	case ast.KindRethrow:
		g.emitRethrow()
	case ast.KindThrow:
		g.emitExpression(n.A)
		g.e.Throw()
	case ast.KindEmptyStatement:
	default:
		if n.Kind.IsExpression() {
			g.emitExpression(n)
			g.e.Pop()
		}
	}
}

func (g *codegen) emitVariableDeclaration(decl *ast.Node) {
	if decl.A != nil {
		g.emitExpression(decl.A)
	} else {
		g.e.LoadLiteralNull()
	}
	entry, _ := decl.Binding.(*scope.Entry)
	if entry == nil {
		g.e.Pop()
		return
	}
	if entry.CaptureKind == ast.ByReference {
		g.e.AllocateBoxed()
	}
	g.e.StoreLocal(g.arity() + entry.Index)
}

func (g *codegen) emitIf(n *ast.Node) {
	elseLabel := g.e.NewLabel()
	g.emitExpression(n.A)
	g.e.BranchIfFalse(elseLabel)
	g.emitStatement(n.B)
	if n.C == nil {
		g.e.BindLabel(elseLabel)
		return
	}
	done := g.e.NewLabel()
	g.e.Branch(done)
	g.e.BindLabel(elseLabel)
	g.emitStatement(n.C)
	g.e.BindLabel(done)
}

func (g *codegen) emitWhile(n *ast.Node) {
	start := g.e.NewLabel()
	breakLabel := g.e.NewLabel()
	g.restores = append(g.restores, &restoreFrame{
		breakLabel: breakLabel, continueLabel: start,
		depth: g.e.StackDepth(), nameID: g.takePendingLabel(),
	})
	g.e.BindLabel(start)
	g.emitExpression(n.A)
	g.e.BranchIfFalse(breakLabel)
	g.emitStatement(n.B)
	g.e.Branch(start)
	g.e.BindLabel(breakLabel)
	g.restores = g.restores[:len(g.restores)-1]
}

func (g *codegen) emitDoWhile(n *ast.Node) {
	start := g.e.NewLabel()
	cont := g.e.NewLabel()
	breakLabel := g.e.NewLabel()
	g.restores = append(g.restores, &restoreFrame{
		breakLabel: breakLabel, continueLabel: cont,
		depth: g.e.StackDepth(), nameID: g.takePendingLabel(),
	})
	g.e.BindLabel(start)
	g.emitStatement(n.A)
	g.e.BindLabel(cont)
	g.emitExpression(n.B)
	g.e.BranchIfTrue(start)
	g.e.BindLabel(breakLabel)
	g.restores = g.restores[:len(g.restores)-1]
}

func (g *codegen) emitFor(n *ast.Node) {
	if n.A != nil {
		if n.A.Kind.IsStatement() {
			g.emitStatement(n.A)
		} else {
			g.emitExpression(n.A)
			g.e.Pop()
		}
	}
	start := g.e.NewLabel()
	cont := g.e.NewLabel()
	breakLabel := g.e.NewLabel()
	g.restores = append(g.restores, &restoreFrame{
		breakLabel: breakLabel, continueLabel: cont,
		depth: g.e.StackDepth(), nameID: g.takePendingLabel(),
	})
	g.e.BindLabel(start)
	if n.B != nil {
		g.emitExpression(n.B)
		g.e.BranchIfFalse(breakLabel)
	}
	g.emitStatement(n.D)
	g.e.BindLabel(cont)
	if n.C != nil {
		g.emitExpression(n.C)
		g.e.Pop()
	}
	g.e.Branch(start)
	g.e.BindLabel(breakLabel)
	g.restores = g.restores[:len(g.restores)-1]
}

// emitForIn desugars `for (var x in e)` into the iterator protocol:
// `var it = e.iterator; while (it.moveNext()) { x = it.current; body }`
// (spec §4.5 "for-in"), with the iterator held in a scratch slot.
func (g *codegen) emitForIn(n *ast.Node) {
	c := g.compiler
	itSlot := g.allocTemp()
	g.emitExpression(n.B)
	c.markSelector(c.IteratorNameID, SelectorGetter)
	g.e.InvokeMethod("", 0, PackSelector(c.IteratorNameID, SelectorGetter, 0))
	g.e.StoreLocal(itSlot)

	cont := g.e.NewLabel()
	breakLabel := g.e.NewLabel()
	g.restores = append(g.restores, &restoreFrame{
		breakLabel: breakLabel, continueLabel: cont,
		depth: g.e.StackDepth(), nameID: g.takePendingLabel(),
	})
	g.e.BindLabel(cont)
	g.e.LoadLocal(itSlot)
	c.markInvokeSelector(c.MoveNextNameID, 0, nil)
	g.e.InvokeMethod("", 0, PackSelector(c.MoveNextNameID, SelectorMethod, 0))
	g.e.BranchIfFalse(breakLabel)

	g.e.LoadLocal(itSlot)
	c.markSelector(c.CurrentNameID, SelectorGetter)
	g.e.InvokeMethod("", 0, PackSelector(c.CurrentNameID, SelectorGetter, 0))
	if entry, ok := n.A.Binding.(*scope.Entry); ok {
		if entry.CaptureKind == ast.ByReference {
			g.e.AllocateBoxed() // a fresh cell per iteration, so closures see that iteration's value
		}
		g.e.StoreLocal(g.arity() + entry.Index)
	} else {
		g.e.Pop()
	}
	g.emitStatement(n.C)
	g.e.Branch(cont)
	g.e.BindLabel(breakLabel)
	g.restores = g.restores[:len(g.restores)-1]
	g.freeTemp()
}

func (g *codegen) emitReturn(n *ast.Node) {
	if g.isCtor {
		g.runPendingFinallies(0)
		g.e.LoadLocal(g.ctorThisSlot)
	} else {
		if n != nil && n.A != nil {
			g.emitExpression(n.A)
		} else {
			g.e.LoadLiteralNull()
		}
		g.runPendingFinallies(0)
	}
	g.e.Return()
	g.e.SetStackDepth(0)
}

// runPendingFinallies subroutine-calls every finally block between the
// current position and restore-stack depth stop, innermost first
// (spec §4.11 "every non-local exit consults the emitter's restore-
// label stack... to call pending finally blocks").
func (g *codegen) runPendingFinallies(stop int) {
	for i := len(g.restores) - 1; i >= stop; i-- {
		if f := g.restores[i].finallyLabel; f != nil {
			g.e.SubroutineCall(f)
		}
	}
}

func (g *codegen) emitBreak(n *ast.Node) {
	for i := len(g.restores) - 1; i >= 0; i-- {
		r := g.restores[i]
		if r.breakLabel == nil || (n.LabelNameID != 0 && r.nameID != n.LabelNameID) {
			if r.finallyLabel != nil {
				g.e.SubroutineCall(r.finallyLabel)
			}
			continue
		}
		g.e.SetStackDepth(r.depth)
		g.e.Branch(r.breakLabel)
		return
	}
}

func (g *codegen) emitContinue(n *ast.Node) {
	for i := len(g.restores) - 1; i >= 0; i-- {
		r := g.restores[i]
		if r.continueLabel == nil || (n.LabelNameID != 0 && r.nameID != n.LabelNameID) {
			if r.finallyLabel != nil {
				g.e.SubroutineCall(r.finallyLabel)
			}
			continue
		}
		g.e.SetStackDepth(r.depth)
		g.e.Branch(r.continueLabel)
		return
	}
}

func (g *codegen) emitLabelled(n *ast.Node) {
	switch n.A.Kind {
	case ast.KindWhile, ast.KindDoWhile, ast.KindFor, ast.KindForIn, ast.KindSwitch:
		g.pendingLabel = n.LabelNameID
		g.emitStatement(n.A)
		g.pendingLabel = 0
	default:
		breakLabel := g.e.NewLabel()
		g.restores = append(g.restores, &restoreFrame{
			breakLabel: breakLabel, depth: g.e.StackDepth(), nameID: n.LabelNameID,
		})
		g.emitStatement(n.A)
		g.e.BindLabel(breakLabel)
		g.restores = g.restores[:len(g.restores)-1]
	}
}

// emitSwitch compiles sequential equality comparisons against the
// scrutinee, then the case bodies in source order (spec §4.11 "switch
// compiles as sequential equality comparisons with labels").
func (g *codegen) emitSwitch(n *ast.Node) {
	scrut := g.allocTemp()
	g.emitExpression(n.A)
	g.e.StoreLocal(scrut)

	breakLabel := g.e.NewLabel()
	g.restores = append(g.restores, &restoreFrame{
		breakLabel: breakLabel, depth: g.e.StackDepth(), nameID: g.takePendingLabel(),
	})

	caseLabels := make([]*emit.Label, len(n.Children))
	defaultIdx := -1
	for i, c := range n.Children {
		caseLabels[i] = g.e.NewLabel()
		if c.A == nil {
			defaultIdx = i
			continue
		}
		g.e.LoadLocal(scrut)
		g.emitExpression(c.A)
		g.emitGenericInvoke("==", 1)
		g.e.BranchIfTrue(caseLabels[i])
	}
	if defaultIdx >= 0 {
		g.e.Branch(caseLabels[defaultIdx])
	} else {
		g.e.Branch(breakLabel)
	}
	for i, c := range n.Children {
		g.e.BindLabel(caseLabels[i])
		for _, s := range c.Children {
			g.emitStatement(s)
		}
	}
	g.e.BindLabel(breakLabel)
	g.restores = g.restores[:len(g.restores)-1]
	g.freeTemp()
}

func (g *codegen) emitTry(n *ast.Node) {
	base := g.e.StackDepth()
	var finallyLabel *emit.Label
	if n.B != nil {
		finallyLabel = g.e.NewLabel()
	}
	done := g.e.NewLabel()

	g.restores = append(g.restores, &restoreFrame{finallyLabel: finallyLabel, depth: base})
	g.e.EnterTry()
	g.emitStatement(n.A)
	if finallyLabel != nil {
		g.e.SubroutineCall(finallyLabel)
	}
	g.e.Branch(done)
	handlerPC := g.e.Pos()
	g.e.ExitTry(handlerPC)

	// Handler entry: the VM pushes the in-flight exception.
	g.e.SetStackDepth(base + 1)
	exSlot := g.allocTemp()
	g.e.StoreLocal(exSlot)
	g.exceptions = append(g.exceptions, exSlot)

	for _, clause := range n.Children {
		next := g.e.NewLabel()
		if clause.C != nil {
			g.e.LoadLocal(exSlot)
			g.emitIsTest(clause.C)
			g.e.BranchIfFalse(next)
		}
		if clause.A != nil {
			if entry, ok := clause.A.Binding.(*scope.Entry); ok {
				g.e.LoadLocal(exSlot)
				if entry.CaptureKind == ast.ByReference {
					g.e.AllocateBoxed()
				}
				g.e.StoreLocal(g.arity() + entry.Index)
			}
		}
		g.emitStatement(clause.B)
		if finallyLabel != nil {
			g.e.SubroutineCall(finallyLabel)
		}
		g.e.Branch(done)
		g.e.BindLabel(next)
		g.e.SetStackDepth(base)
	}

	// No clause matched: run the finally, then propagate.
	g.e.LoadLocal(exSlot)
	if finallyLabel != nil {
		g.e.SubroutineCall(finallyLabel)
	}
	g.e.Throw()

	g.exceptions = g.exceptions[:len(g.exceptions)-1]
	g.freeTemp()
	g.restores = g.restores[:len(g.restores)-1]

	if finallyLabel != nil {
		g.e.BindLabel(finallyLabel)
		g.e.SetStackDepth(base)
		g.emitStatement(n.B)
		g.e.SubroutineReturn()
	}
	g.e.BindLabel(done)
	g.e.SetStackDepth(base)
}

func (g *codegen) emitAssert(n *ast.Node) {
	done := g.e.NewLabel()
	g.emitExpression(n.A)
	g.e.BranchIfTrue(done)
	if n.B != nil {
		g.emitExpression(n.B)
	} else {
		g.e.LoadLiteralNull()
	}
	g.e.Throw()
	g.e.BindLabel(done)
}

func (g *codegen) emitRethrow() {
	if len(g.exceptions) > 0 {
		g.e.LoadLocal(g.exceptions[len(g.exceptions)-1])
	} else {
		g.e.LoadLiteralNull()
	}
	g.e.Throw()
}

// ---- expressions ----------------------------------------------------

func (g *codegen) emitExpression(n *ast.Node) {
	if n == nil {
		g.e.LoadLiteralNull()
		return
	}
	if slot, ok := g.cascadeSlots[n]; ok {
		g.e.LoadLocal(slot)
		return
	}
	switch n.Kind {
	case ast.KindParenthesized:
		g.emitExpression(n.A)
	case ast.KindLiteralInteger:
		g.e.LoadConstant(g.compiler.Pool.Integer(n.IntValue))
	case ast.KindLiteralDouble:
		g.e.LoadConstant(g.compiler.Pool.Double(n.DoubleValue))
	case ast.KindLiteralString:
		g.e.LoadConstant(g.compiler.Pool.String(n.StringValue))
	case ast.KindLiteralBoolean:
		g.e.LoadConstant(g.compiler.Pool.Bool(n.BoolValue))
	case ast.KindNull:
		g.e.LoadLiteralNull()
	case ast.KindThis, ast.KindSuper:
		g.emitThis()
	case ast.KindIdentifier:
		g.emitIdentifierRead(n)
	case ast.KindAssign:
		g.emitAssign(n)
	case ast.KindBinary:
		g.emitBinary(n)
	case ast.KindUnary:
		g.emitUnary(n)
	case ast.KindDot:
		g.emitDot(n)
	case ast.KindInvoke:
		g.emitInvoke(n)
	case ast.KindIndex:
		g.emitIndexRead(n)
	case ast.KindConditional:
		g.emitConditional(n)
	case ast.KindIs:
		g.emitIs(n)
	case ast.KindAs:
		g.emitExpression(n.A) // types are erased; the cast is a runtime no-op here
	case ast.KindNew:
		g.emitNew(n)
	case ast.KindCascade:
		g.emitCascade(n)
	case ast.KindStringInterpolation:
		g.emitStringInterpolation(n)
	case ast.KindFunctionExpression:
		g.emitFunctionExpression(n)
	case ast.KindThrow:
		g.emitExpression(n.A)
		g.e.Throw()
		g.e.LoadLiteralNull() // unreachable; keeps the expression contract of one pushed value
	case ast.KindLiteralList:
		g.emitListLiteral(n)
	case ast.KindLiteralMap:
		g.emitMapLiteral(n)
	default:
		g.e.LoadLiteralNull()
	}
}

func (g *codegen) hasThis() bool {
	return g.outerThisSlot >= 0 || g.isInstance || (g.isCtor && g.ctorThisSlot >= 0)
}

func (g *codegen) emitThis() {
	switch {
	case g.outerThisSlot >= 0:
		g.e.LoadLocal(g.outerThisSlot)
	case g.isInstance:
		g.e.LoadLocal(0)
	case g.isCtor && g.ctorThisSlot >= 0:
		g.e.LoadLocal(g.ctorThisSlot)
	default:
		g.e.LoadLiteralNull()
	}
}

func (g *codegen) bindingOf(n *ast.Node) *scope.Entry {
	return g.compiler.Resolve.Bind(n, g.scope)
}

// emitUnresolved compiles the runtime half of spec §7: an identifier
// with no static binding becomes a call to the VM's _unresolved(name)
// helper rather than a compile error.
func (g *codegen) emitUnresolved(nameID int32) {
	g.e.LoadConstant(g.compiler.Pool.String(g.compiler.Names.Name(nameID)))
	g.e.InvokeNative(nativeUnresolved, 0)
}

func (g *codegen) emitArgsDiscarded(args []*ast.Node) {
	for _, a := range args {
		g.emitExpression(a)
		g.e.Pop()
	}
}

func (g *codegen) emitIdentifierRead(n *ast.Node) {
	entry := g.bindingOf(n)
	if entry == nil {
		g.emitUnresolved(n.NameID)
		return
	}
	switch entry.Kind {
	case scope.EntryFormalParameter, scope.EntryLocalDeclaration:
		g.emitLocalRead(entry)
	case scope.EntryMember:
		g.emitMemberRead(n.NameID, entry)
	default:
		g.emitUnresolved(n.NameID)
	}
}

func (g *codegen) emitLocalRead(entry *scope.Entry) {
	if slot, ok := g.captureSlots[entry]; ok {
		if entry.CaptureKind == ast.ByReference {
			g.e.LoadBoxed(slot)
		} else {
			g.e.LoadLocal(slot)
		}
		return
	}
	switch entry.Kind {
	case scope.EntryFormalParameter:
		g.e.LoadLocal(g.thisOffset() + entry.Index)
	default:
		slot := g.arity() + entry.Index
		if entry.CaptureKind == ast.ByReference {
			g.e.LoadBoxed(slot)
		} else {
			g.e.LoadLocal(slot)
		}
	}
}

func (g *codegen) emitLocalWrite(entry *scope.Entry) {
	if slot, ok := g.captureSlots[entry]; ok {
		if entry.CaptureKind == ast.ByReference {
			g.e.StoreBoxed(slot)
		} else {
			g.e.StoreLocal(slot) // by-value capture: writes mutate this frame's copy only
		}
		return
	}
	switch entry.Kind {
	case scope.EntryFormalParameter:
		g.e.StoreLocal(g.thisOffset() + entry.Index)
	default:
		slot := g.arity() + entry.Index
		if entry.CaptureKind == ast.ByReference {
			g.e.StoreBoxed(slot)
		} else {
			g.e.StoreLocal(slot)
		}
	}
}

// memberScope recovers the scope a member declaration must be
// compiled against: its owning class's member scope, or its owning
// library's top-level scope (stashed on the compilation unit by the
// loader).
func (g *codegen) memberScope(m *ast.Node) *scope.Scope {
	if m.OwnerClass != nil {
		if s := loader.ClassScope(m.OwnerClass); s != nil {
			return s
		}
	}
	if m.OwnerLib != nil {
		if s, ok := m.OwnerLib.Binding.(*scope.Scope); ok {
			return s
		}
	}
	return g.scope
}

func (g *codegen) emitMemberRead(nameID int32, entry *scope.Entry) {
	m := entry.Member
	switch m.Kind {
	case ast.KindVariableDeclaration:
		if m.OwnerClass != nil && !m.IsStatic {
			if !g.hasThis() {
				g.emitUnresolved(nameID)
				return
			}
			g.emitThis()
			g.compiler.markSelector(nameID, SelectorGetter)
			g.e.InvokeMethod("", 0, PackSelector(nameID, SelectorGetter, 0))
			return
		}
		slot := g.compiler.StaticSlot(m)
		if m.A != nil {
			initID := g.compiler.staticInitMethod(m, g.memberScope(m))
			g.e.LoadStaticInit(slot, initID)
		} else {
			g.e.LoadStatic(slot)
		}
	case ast.KindMethod:
		if m.OwnerClass != nil && !m.IsStatic {
			if !g.hasThis() {
				g.emitUnresolved(nameID)
				return
			}
			classID := g.compiler.EnqueueClass(m.OwnerClass)
			id := g.compiler.EnqueueMethod(m, classID, loader.ClassScope(m.OwnerClass))
			tearClassID := g.compiler.GetMethodTearOff(id, false)
			g.emitThis()
			g.e.Allocate(tearClassID, 1)
			return
		}
		id := g.compiler.EnqueueMethod(m, -1, g.memberScope(m))
		g.e.LoadConstant(g.compiler.GetMethodTearOff(id, true))
	default:
		g.emitUnresolved(nameID)
	}
}

// ---- assignment and lvalues -----------------------------------------

// lvalue abstracts one assignable location: load pushes its current
// value, store pops a value into it, release frees any scratch slots
// the location evaluation claimed.
type lvalue interface {
	load()
	store()
	release()
}

type localLV struct {
	g     *codegen
	entry *scope.Entry
}

func (l localLV) load()    { l.g.emitLocalRead(l.entry) }
func (l localLV) store()   { l.g.emitLocalWrite(l.entry) }
func (l localLV) release() {}

type staticLV struct {
	g     *codegen
	slot  int32
	field *ast.Node
}

func (l staticLV) load() {
	if l.field.A != nil {
		initID := l.g.compiler.staticInitMethod(l.field, l.g.memberScope(l.field))
		l.g.e.LoadStaticInit(l.slot, initID)
	} else {
		l.g.e.LoadStatic(l.slot)
	}
}
func (l staticLV) store()   { l.g.e.StoreStatic(l.slot) }
func (l staticLV) release() {}

type thisFieldLV struct {
	g      *codegen
	nameID int32
}

func (l thisFieldLV) load() {
	l.g.emitThis()
	l.g.compiler.markSelector(l.nameID, SelectorGetter)
	l.g.e.InvokeMethod("", 0, PackSelector(l.nameID, SelectorGetter, 0))
}

func (l thisFieldLV) store() {
	tmp := l.g.allocTemp()
	l.g.e.StoreLocal(tmp)
	l.g.emitThis()
	l.g.e.LoadLocal(tmp)
	l.g.compiler.markSelector(l.nameID, SelectorSetter)
	l.g.e.InvokeMethod("", 1, PackSelector(l.nameID, SelectorSetter, 1))
	l.g.e.Pop()
	l.g.freeTemp()
}
func (l thisFieldLV) release() {}

type dotLV struct {
	g        *codegen
	recvSlot int
	nameID   int32
}

func (l dotLV) load() {
	l.g.e.LoadLocal(l.recvSlot)
	l.g.compiler.markSelector(l.nameID, SelectorGetter)
	l.g.e.InvokeMethod("", 0, PackSelector(l.nameID, SelectorGetter, 0))
}

func (l dotLV) store() {
	tmp := l.g.allocTemp()
	l.g.e.StoreLocal(tmp)
	l.g.e.LoadLocal(l.recvSlot)
	l.g.e.LoadLocal(tmp)
	l.g.compiler.markSelector(l.nameID, SelectorSetter)
	l.g.e.InvokeMethod("", 1, PackSelector(l.nameID, SelectorSetter, 1))
	l.g.e.Pop()
	l.g.freeTemp()
}
func (l dotLV) release() { l.g.freeTemp() }

type indexLV struct {
	g        *codegen
	recvSlot int
	idxSlot  int
}

func (l indexLV) load() {
	l.g.e.LoadLocal(l.recvSlot)
	l.g.e.LoadLocal(l.idxSlot)
	l.g.emitGenericInvoke("[]", 1)
}

func (l indexLV) store() {
	tmp := l.g.allocTemp()
	l.g.e.StoreLocal(tmp)
	l.g.e.LoadLocal(l.recvSlot)
	l.g.e.LoadLocal(l.idxSlot)
	l.g.e.LoadLocal(tmp)
	l.g.emitGenericInvoke("[]=", 2)
	l.g.e.Pop()
	l.g.freeTemp()
}

func (l indexLV) release() {
	l.g.freeTemp()
	l.g.freeTemp()
}

type unresolvedLV struct {
	g      *codegen
	nameID int32
}

func (l unresolvedLV) load() { l.g.emitUnresolved(l.nameID) }
func (l unresolvedLV) store() {
	l.g.e.Pop()
	l.g.emitUnresolved(l.nameID)
	l.g.e.Pop()
}
func (l unresolvedLV) release() {}

func (g *codegen) lvalueFor(target *ast.Node) lvalue {
	target = unwrapParens(target)
	switch target.Kind {
	case ast.KindIdentifier:
		entry := g.bindingOf(target)
		if entry == nil {
			return unresolvedLV{g, target.NameID}
		}
		switch entry.Kind {
		case scope.EntryFormalParameter, scope.EntryLocalDeclaration:
			return localLV{g, entry}
		case scope.EntryMember:
			m := entry.Member
			if m.Kind == ast.KindVariableDeclaration {
				if m.OwnerClass != nil && !m.IsStatic {
					if g.hasThis() {
						return thisFieldLV{g, target.NameID}
					}
					return unresolvedLV{g, target.NameID}
				}
				return staticLV{g, g.compiler.StaticSlot(m), m}
			}
			return unresolvedLV{g, target.NameID}
		default:
			return unresolvedLV{g, target.NameID}
		}
	case ast.KindDot:
		slot := g.allocTemp()
		g.emitExpression(target.A)
		g.e.StoreLocal(slot)
		return dotLV{g, slot, target.NameID}
	case ast.KindIndex:
		recv := g.allocTemp()
		g.emitExpression(target.A)
		g.e.StoreLocal(recv)
		idx := g.allocTemp()
		g.emitExpression(target.B)
		g.e.StoreLocal(idx)
		return indexLV{g, recv, idx}
	default:
		return unresolvedLV{g, 0}
	}
}

func (g *codegen) emitAssign(n *ast.Node) {
	lv := g.lvalueFor(n.A)
	op := scanner.Kind(n.Operator)
	switch op {
	case scanner.KEq:
		g.emitExpression(n.B)
	case scanner.KAmpAmpEq, scanner.KPipePipeEq, scanner.KQuestionQuestionEq:
		lv.load()
		g.emitLogicalCombine(op, func() { g.emitExpression(n.B) })
	default:
		lv.load()
		g.emitExpression(n.B)
		g.emitCompoundOp(op)
	}
	result := g.allocTemp()
	g.e.StoreLocal(result)
	g.e.LoadLocal(result)
	lv.store()
	g.e.LoadLocal(result)
	g.freeTemp()
	lv.release()
}

// emitCompoundOp applies a compound-assignment operator token with
// both operands on the stack, per spec §4.11 "x op= v is lowered to
// x = (x) op (v)".
func (g *codegen) emitCompoundOp(op scanner.Kind) {
	switch op {
	case scanner.KPlusEq:
		g.emitGenericInvoke("+", 1)
	case scanner.KMinusEq:
		g.emitGenericInvoke("-", 1)
	case scanner.KStarEq:
		g.emitGenericInvoke("*", 1)
	case scanner.KSlashEq:
		g.emitGenericInvoke("/", 1)
	case scanner.KPercentEq:
		g.emitGenericInvoke("%", 1)
	case scanner.KAmpEq:
		g.emitGenericInvoke("&", 1)
	case scanner.KPipeEq:
		g.emitGenericInvoke("|", 1)
	case scanner.KCaretEq:
		g.emitGenericInvoke("^", 1)
	case scanner.KShlEq:
		g.emitGenericInvoke("<<", 1)
	case scanner.KShrEq:
		g.emitGenericInvoke(">>", 1)
	default:
		g.e.Pop() // unknown operator: keep the left value
	}
}

// emitGenericInvoke dispatches an operator-style selector, marking
// the call-site shape so declarations and trampolines link up (spec
// §4.10 "Marking an invoke selector"). The emitter's specialized
// arithmetic/comparison opcodes (spec §4.9) are an optimization and
// only chosen when CompileOptions.Optimize is on; either way the
// packed selector rides along for the generic dispatch path.
func (g *codegen) emitGenericInvoke(name string, argCount int) {
	nameID := g.compiler.internName(name)
	g.compiler.markInvokeSelector(nameID, argCount, nil)
	selector := ""
	if g.compiler.Options.Optimize {
		selector = name
	}
	g.e.InvokeMethod(selector, argCount, PackSelector(nameID, SelectorMethod, argCount))
}

func (g *codegen) emitBinary(n *ast.Node) {
	op := scanner.Kind(n.Operator)
	switch op {
	case scanner.KAmpAmp, scanner.KPipePipe:
		g.emitExpression(n.A)
		g.emitLogicalCombine(op, func() { g.emitExpression(n.B) })
	case scanner.KQuestionQuestion:
		g.emitExpression(n.A)
		g.emitLogicalCombine(op, func() { g.emitExpression(n.B) })
	case scanner.KEqEq, scanner.KBangEq:
		g.emitExpression(n.A)
		g.emitExpression(n.B)
		if unwrapParens(n.A).Kind == ast.KindNull || unwrapParens(n.B).Kind == ast.KindNull {
			g.e.Identical(false)
		} else {
			g.emitGenericInvoke("==", 1)
		}
		if op == scanner.KBangEq {
			g.e.Negate()
		}
	default:
		g.emitExpression(n.A)
		g.emitExpression(n.B)
		g.emitBinaryOp(op)
	}
}

func (g *codegen) emitBinaryOp(op scanner.Kind) {
	switch op {
	case scanner.KPlus:
		g.emitGenericInvoke("+", 1)
	case scanner.KMinus:
		g.emitGenericInvoke("-", 1)
	case scanner.KLAngle:
		g.emitGenericInvoke("<", 1)
	case scanner.KLe:
		g.emitGenericInvoke("<=", 1)
	case scanner.KGtStart:
		g.emitGenericInvoke(">", 1)
	case scanner.KGe:
		g.emitGenericInvoke(">=", 1)
	case scanner.KStar:
		g.emitGenericInvoke("*", 1)
	case scanner.KSlash:
		g.emitGenericInvoke("/", 1)
	case scanner.KPercent:
		g.emitGenericInvoke("%", 1)
	case scanner.KTildeSlash:
		g.emitGenericInvoke("~/", 1)
	case scanner.KShl:
		g.emitGenericInvoke("<<", 1)
	case scanner.KShr:
		g.emitGenericInvoke(">>", 1)
	case scanner.KAmp:
		g.emitGenericInvoke("&", 1)
	case scanner.KPipe:
		g.emitGenericInvoke("|", 1)
	case scanner.KCaret:
		g.emitGenericInvoke("^", 1)
	default:
		g.e.Pop() // unrecognized operator: keep the left operand as the result
	}
}

// emitLogicalCombine finishes a short-circuit operator with the left
// value already on the stack (spec §4.11 "&&/|| short-circuit via
// branches, leaving a boolean on the stack").
func (g *codegen) emitLogicalCombine(op scanner.Kind, rhs func()) {
	d := g.e.StackDepth() - 1
	done := g.e.NewLabel()
	switch op {
	case scanner.KAmpAmp, scanner.KAmpAmpEq:
		short := g.e.NewLabel()
		g.e.BranchIfFalse(short)
		rhs()
		g.e.Branch(done)
		g.e.BindLabel(short)
		g.e.SetStackDepth(d)
		g.e.LoadConstant(g.compiler.Pool.Bool(false))
	case scanner.KPipePipe, scanner.KPipePipeEq:
		short := g.e.NewLabel()
		g.e.BranchIfTrue(short)
		rhs()
		g.e.Branch(done)
		g.e.BindLabel(short)
		g.e.SetStackDepth(d)
		g.e.LoadConstant(g.compiler.Pool.Bool(true))
	default: // ?? and ??=
		isNull := g.e.NewLabel()
		g.e.Dup()
		g.e.LoadLiteralNull()
		g.e.Identical(false)
		g.e.BranchIfTrue(isNull)
		g.e.Branch(done)
		g.e.BindLabel(isNull)
		g.e.SetStackDepth(d + 1)
		g.e.Pop()
		rhs()
	}
	g.e.BindLabel(done)
	g.e.SetStackDepth(d + 1)
}

func (g *codegen) emitUnary(n *ast.Node) {
	switch n.Operator {
	case int16(scanner.KBang):
		g.emitExpression(n.A)
		g.e.Negate()
	case int16(scanner.KMinus):
		operand := unwrapParens(n.A)
		if operand.Kind == ast.KindLiteralInteger {
			g.e.LoadConstant(g.compiler.Pool.Integer(-operand.IntValue))
			return
		}
		if operand.Kind == ast.KindLiteralDouble {
			g.e.LoadConstant(g.compiler.Pool.Double(-operand.DoubleValue))
			return
		}
		g.emitExpression(n.A)
		g.emitGenericInvoke("unary-", 0)
	case int16(scanner.KTilde):
		g.emitExpression(n.A)
		g.emitGenericInvoke("~", 0)
	case int16(scanner.KPlusPlus):
		g.emitIncDec(n.A, true, false)
	case int16(scanner.KMinusMinus):
		g.emitIncDec(n.A, false, false)
	case ast.OpPostfixIncrement:
		g.emitIncDec(n.A, true, true)
	case ast.OpPostfixDecrement:
		g.emitIncDec(n.A, false, true)
	default:
		g.emitExpression(n.A)
	}
}

// emitIncDec lowers ++/-- to a read-modify-write, keeping the old
// value around for the postfix forms (spec §4.11 "pre/post
// increment/decrement similarly").
func (g *codegen) emitIncDec(target *ast.Node, increment, postfix bool) {
	lv := g.lvalueFor(target)
	result := g.allocTemp()
	lv.load()
	if postfix {
		g.e.StoreLocal(result)
		g.e.LoadLocal(result)
	}
	g.e.LoadConstant(g.compiler.Pool.Integer(1))
	if increment {
		g.emitGenericInvoke("+", 1)
	} else {
		g.emitGenericInvoke("-", 1)
	}
	if !postfix {
		g.e.StoreLocal(result)
		g.e.LoadLocal(result)
	}
	lv.store()
	g.e.LoadLocal(result)
	g.freeTemp()
	lv.release()
}

func (g *codegen) emitConditional(n *ast.Node) {
	d := g.e.StackDepth()
	elseLabel := g.e.NewLabel()
	done := g.e.NewLabel()
	g.emitExpression(n.A)
	g.e.BranchIfFalse(elseLabel)
	g.emitExpression(n.B)
	g.e.Branch(done)
	g.e.BindLabel(elseLabel)
	g.e.SetStackDepth(d)
	g.emitExpression(n.C)
	g.e.BindLabel(done)
	g.e.SetStackDepth(d + 1)
}

// resolveClassRef resolves a heritage/type-position reference (a bare
// identifier or a prefixed `lib.Name` dot) to its class node, or nil.
func (g *codegen) resolveClassRef(ref *ast.Node) *ast.Node {
	ref = unwrapParens(ref)
	if ref == nil {
		return nil
	}
	switch ref.Kind {
	case ast.KindClass:
		return ref
	case ast.KindIdentifier:
		if entry := g.bindingOf(ref); entry != nil && entry.Kind == scope.EntryMember {
			if m := entry.Member; m != nil && m.Kind == ast.KindClass {
				return m
			}
		}
	case ast.KindDot:
		inner := unwrapParens(ref.A)
		if inner == nil || inner.Kind != ast.KindIdentifier {
			return nil
		}
		if entry := g.bindingOf(inner); entry != nil && entry.Kind == scope.EntryLibraryReference && entry.Library != nil {
			if e2, ok := entry.Library.LookupLocal(ref.NameID); ok && e2.Member != nil && e2.Member.Kind == ast.KindClass {
				return e2.Member
			}
		}
	}
	return nil
}

func (g *codegen) emitIs(n *ast.Node) {
	cls := g.resolveClassRef(n.B)
	if cls == nil {
		g.emitExpression(n.A)
		g.e.Pop()
		nameID := int32(0)
		if b := unwrapParens(n.B); b != nil {
			nameID = b.NameID
		}
		g.emitUnresolved(nameID)
		return
	}
	g.emitExpression(n.A)
	g.emitIsTest(cls)
	if n.BoolValue {
		g.e.Negate()
	}
}

// emitIsTest consumes the value on the stack and pushes the boolean
// result of an `is` check against cls, via the synthetic is@T
// selector (spec §4.10 "An is T check compiles to a dispatch-table
// entry at a synthetic is@T selector").
func (g *codegen) emitIsTest(ref *ast.Node) {
	cls := ref
	if cls.Kind != ast.KindClass {
		cls = g.resolveClassRef(ref)
	}
	if cls == nil {
		g.e.Pop()
		g.e.LoadConstant(g.compiler.Pool.Bool(false))
		return
	}
	g.compiler.MarkIsSelector(cls)
	g.e.InvokeMethod("", 0, PackSelector(cls.NameID, SelectorIs, 0))
}

// ---- calls ----------------------------------------------------------

func namedLabelsOfCall(n *ast.Node) []int32 {
	labels, _ := n.Binding.([]int32)
	return labels
}

func (g *codegen) emitInvoke(n *ast.Node) {
	args := n.Children
	labels := namedLabelsOfCall(n)

	if n.NameID == 0 {
		g.emitCallExpression(n, args, labels)
		return
	}

	recv := unwrapParens(n.A)
	if recv != nil {
		switch recv.Kind {
		case ast.KindSuper:
			g.emitSuperCall(n, args, labels)
			return
		case ast.KindIdentifier:
			if entry := g.bindingOf(recv); entry != nil {
				if entry.Kind == scope.EntryLibraryReference && entry.Library != nil {
					if e2, ok := entry.Library.LookupLocal(n.NameID); ok && e2.Member != nil && e2.Member.Kind == ast.KindMethod {
						g.emitStaticCall(e2.Member, args, labels, n.NameID)
						return
					}
				}
				if entry.Kind == scope.EntryMember && entry.Member != nil && entry.Member.Kind == ast.KindClass {
					cls := entry.Member
					if s := loader.ClassScope(cls); s != nil {
						if e2, ok := s.LookupLocal(n.NameID); ok && e2.Member != nil && e2.Member.Kind == ast.KindMethod && e2.Member.IsStatic {
							g.emitStaticCall(e2.Member, args, labels, n.NameID)
							return
						}
					}
					if ctor := loader.ClassConstructors(cls)[n.NameID]; ctor != nil {
						g.emitCtorInvoke(cls, ctor, args, labels)
						return
					}
				}
			}
		}
	}

	// Dynamic dispatch on the receiver expression.
	nullAware := n.Operator == int16(scanner.KQuestionDot)
	invoke := func() {
		for _, a := range args {
			g.emitExpression(a)
		}
		g.compiler.markInvokeSelector(n.NameID, len(args), labels)
		g.e.InvokeMethod("", len(args), PackSelector(n.NameID, SelectorMethod, len(args)))
	}
	if nullAware {
		g.emitNullAware(n.A, invoke)
	} else {
		g.emitExpression(n.A)
		invoke()
	}
}

// emitNullAware evaluates recv and runs action (which consumes the
// receiver and pushes one value) only when the receiver is non-null,
// pushing null otherwise.
func (g *codegen) emitNullAware(recv *ast.Node, action func()) {
	d := g.e.StackDepth()
	isNull := g.e.NewLabel()
	done := g.e.NewLabel()
	g.emitExpression(recv)
	g.e.Dup()
	g.e.LoadLiteralNull()
	g.e.Identical(false)
	g.e.BranchIfTrue(isNull)
	action()
	g.e.Branch(done)
	g.e.BindLabel(isNull)
	g.e.SetStackDepth(d + 1)
	g.e.Pop()
	g.e.LoadLiteralNull()
	g.e.BindLabel(done)
	g.e.SetStackDepth(d + 1)
}

// emitCallExpression handles a bare `callee(args)` invocation: a
// direct static call, an implicit-this method call, a closure-valued
// local, or the runtime-unresolved path.
func (g *codegen) emitCallExpression(n *ast.Node, args []*ast.Node, labels []int32) {
	callee := unwrapParens(n.A)
	if callee != nil && callee.Kind == ast.KindIdentifier {
		entry := g.bindingOf(callee)
		if entry == nil {
			g.emitArgsDiscarded(args)
			g.emitUnresolved(callee.NameID)
			return
		}
		switch entry.Kind {
		case scope.EntryFormalParameter, scope.EntryLocalDeclaration:
			g.emitLocalRead(entry)
			g.emitCallSelector(args, labels)
			return
		case scope.EntryMember:
			m := entry.Member
			switch m.Kind {
			case ast.KindMethod:
				if m.OwnerClass != nil && !m.IsStatic {
					if !g.hasThis() {
						g.emitArgsDiscarded(args)
						g.emitUnresolved(callee.NameID)
						return
					}
					g.emitThis()
					for _, a := range args {
						g.emitExpression(a)
					}
					g.compiler.markInvokeSelector(callee.NameID, len(args), labels)
					g.e.InvokeMethod("", len(args), PackSelector(callee.NameID, SelectorMethod, len(args)))
					return
				}
				g.emitStaticCall(m, args, labels, callee.NameID)
				return
			case ast.KindVariableDeclaration:
				g.emitMemberRead(callee.NameID, entry) // a field holding a closure
				g.emitCallSelector(args, labels)
				return
			case ast.KindClass:
				if ctor := loader.ClassConstructors(m)[m.NameID]; ctor != nil {
					g.emitCtorInvoke(m, ctor, args, labels)
					return
				}
			}
			g.emitArgsDiscarded(args)
			g.emitUnresolved(callee.NameID)
			return
		default:
			g.emitArgsDiscarded(args)
			g.emitUnresolved(callee.NameID)
			return
		}
	}
	g.emitExpression(n.A)
	g.emitCallSelector(args, labels)
}

// emitCallSelector invokes the `call` selector on a closure value
// already on the stack.
func (g *codegen) emitCallSelector(args []*ast.Node, labels []int32) {
	for _, a := range args {
		g.emitExpression(a)
	}
	c := g.compiler
	c.markInvokeSelector(c.CallNameID, len(args), labels)
	g.e.InvokeMethod("", len(args), PackSelector(c.CallNameID, SelectorMethod, len(args)))
}

// emitStaticCall compiles a direct call to a top-level, static or
// known-target method, routing shape mismatches through a forwarding
// stub (spec §4.10 "Named-argument dispatch").
func (g *codegen) emitStaticCall(m *ast.Node, args []*ast.Node, labels []int32, nameID int32) {
	scopeFor := g.memberScope(m)
	targetID := g.compiler.EnqueueMethod(m, -1, scopeFor)
	if len(labels) > 0 || len(args) != len(m.Children) {
		synthetic := g.compiler.syntheticShapeName(nameID, len(args), labels)
		stubID := g.compiler.GetNamedStaticMethodStub(m, synthetic, len(args), labels, scopeFor)
		if stubID == -1 {
			g.emitArgsDiscarded(args)
			g.emitUnresolved(nameID)
			return
		}
		for _, a := range args {
			g.emitExpression(a)
		}
		g.e.InvokeStatic(stubID, len(args))
		return
	}
	for _, a := range args {
		g.emitExpression(a)
	}
	g.e.InvokeStatic(targetID, len(args))
}

func (g *codegen) emitSuperCall(n *ast.Node, args []*ast.Node, labels []int32) {
	var target *ast.Node
	var owner *ast.Node
	if g.classNode != nil && g.classNode.A != nil && g.classNode.A.Kind == ast.KindClass {
		for sc := g.classNode.A; sc != nil; {
			if s := loader.ClassScope(sc); s != nil {
				if e, ok := s.LookupLocal(n.NameID); ok && e.Member != nil && e.Member.Kind == ast.KindMethod {
					target, owner = e.Member, sc
					break
				}
			}
			if sc.A != nil && sc.A.Kind == ast.KindClass {
				sc = sc.A
			} else {
				break
			}
		}
	}
	if target == nil || !g.hasThis() {
		g.emitArgsDiscarded(args)
		g.emitUnresolved(n.NameID)
		return
	}
	ownerID := g.compiler.EnqueueClass(owner)
	targetID := g.compiler.EnqueueMethod(target, ownerID, loader.ClassScope(owner))
	if len(labels) > 0 || len(args) != len(target.Children) {
		synthetic := g.compiler.syntheticShapeName(n.NameID, len(args), labels)
		stubID := g.compiler.GetNamedStaticMethodStub(target, synthetic, len(args), labels, loader.ClassScope(owner))
		if stubID == -1 {
			g.emitArgsDiscarded(args)
			g.emitUnresolved(n.NameID)
			return
		}
		targetID = stubID
	}
	g.emitThis()
	for _, a := range args {
		g.emitExpression(a)
	}
	g.e.InvokeStatic(targetID, len(args)+1)
}

func (g *codegen) emitDot(n *ast.Node) {
	recv := unwrapParens(n.A)
	if recv != nil && recv.Kind == ast.KindSuper {
		g.emitSuperDot(n)
		return
	}
	if g.tryStaticDotRead(n) {
		return
	}
	getter := func() {
		g.compiler.markSelector(n.NameID, SelectorGetter)
		g.e.InvokeMethod("", 0, PackSelector(n.NameID, SelectorGetter, 0))
	}
	if n.Operator == int16(scanner.KQuestionDot) {
		g.emitNullAware(n.A, getter)
		return
	}
	g.emitExpression(n.A)
	getter()
}

// tryStaticDotRead handles `prefix.member` and `Class.staticMember`
// dots whose receiver is a name, not a value; reports whether it
// emitted anything.
func (g *codegen) tryStaticDotRead(n *ast.Node) bool {
	recv := unwrapParens(n.A)
	if recv == nil || recv.Kind != ast.KindIdentifier {
		return false
	}
	entry := g.bindingOf(recv)
	if entry == nil {
		return false
	}
	switch entry.Kind {
	case scope.EntryLibraryReference:
		if entry.Library != nil {
			if e2, ok := entry.Library.LookupLocal(n.NameID); ok && e2.Kind == scope.EntryMember {
				g.emitMemberRead(n.NameID, e2)
				return true
			}
		}
		g.emitUnresolved(n.NameID)
		return true
	case scope.EntryMember:
		if m := entry.Member; m != nil && m.Kind == ast.KindClass {
			if s := loader.ClassScope(m); s != nil {
				if e2, ok := s.LookupLocal(n.NameID); ok && e2.Kind == scope.EntryMember && e2.Member != nil && e2.Member.IsStatic {
					g.emitMemberRead(n.NameID, e2)
					return true
				}
			}
			g.emitUnresolved(n.NameID)
			return true
		}
	}
	return false
}

// emitSuperDot reads a member off the superclass chain without
// dynamic dispatch: a field through its shared native accessor, a
// getter through a direct invoke.
func (g *codegen) emitSuperDot(n *ast.Node) {
	if g.classNode == nil || g.classNode.A == nil || g.classNode.A.Kind != ast.KindClass || !g.hasThis() {
		g.emitUnresolved(n.NameID)
		return
	}
	for sc := g.classNode.A; sc != nil; {
		scID := g.compiler.EnqueueClass(sc)
		info := g.compiler.classes[scID]
		if s := loader.ClassScope(sc); s != nil {
			if e, ok := s.LookupLocal(n.NameID); ok && e.Member != nil {
				m := e.Member
				if m.Kind == ast.KindVariableDeclaration && !m.IsStatic {
					if idx, ok := fieldIndexOf(info, m); ok {
						g.emitThis()
						g.e.InvokeNative(fieldGetterNative(idx), 0)
						return
					}
				}
				if m.Kind == ast.KindMethod && !m.IsStatic {
					targetID := g.compiler.EnqueueMethod(m, scID, s)
					g.emitThis()
					g.e.InvokeStatic(targetID, 1)
					return
				}
			}
		}
		if sc.A != nil && sc.A.Kind == ast.KindClass {
			sc = sc.A
		} else {
			break
		}
	}
	g.emitUnresolved(n.NameID)
}

// fieldIndexOf recovers a field's absolute instance-field index in
// info's class (its slot offset continues from the super's last
// field, spec §4.10).
func fieldIndexOf(info *ClassInfo, field *ast.Node) (int, bool) {
	idx := info.FieldOffset
	for _, member := range info.Node.Children {
		if member.Kind != ast.KindVariableDeclarationStatement {
			continue
		}
		for _, f := range member.Children {
			if f.IsStatic {
				continue
			}
			if f == field {
				return idx, true
			}
			idx++
		}
	}
	return 0, false
}

func (g *codegen) emitIndexRead(n *ast.Node) {
	g.emitExpression(n.A)
	g.emitExpression(n.B)
	g.emitGenericInvoke("[]", 1)
}

func (g *codegen) emitNew(n *ast.Node) {
	cls := g.resolveClassRef(n.A)
	if n.IsConst && cls != nil {
		g.compiler.EnqueueClass(cls) // the folded instance's class must exist for session emission
		if id, ok := g.constEval(n); ok {
			g.e.LoadConstant(id)
			return
		}
	}
	if cls == nil {
		g.emitArgsDiscarded(n.Children)
		nameID := int32(0)
		if a := unwrapParens(n.A); a != nil {
			nameID = a.NameID
		}
		g.emitUnresolved(nameID)
		return
	}
	key := n.NameID
	if key == 0 {
		key = cls.NameID
	}
	ctor := loader.ClassConstructors(cls)[key]
	if ctor == nil {
		g.emitArgsDiscarded(n.Children)
		g.emitUnresolved(key)
		return
	}
	g.emitCtorInvoke(cls, ctor, n.Children, namedLabelsOfCall(n))
}

// emitCtorInvoke enqueues a constructor and compiles the allocation
// site as an invoke-factory (spec §4.11 "the non-const form enqueues
// the constructor and emits an invoke-factory").
func (g *codegen) emitCtorInvoke(cls *ast.Node, ctor *ast.Node, args []*ast.Node, labels []int32) {
	classID := g.compiler.EnqueueClass(cls)
	methodID, ok := g.compiler.constructors[ctor]
	if !ok {
		methodID = g.compiler.EnqueueMethod(ctor, classID, loader.ClassScope(cls))
		g.compiler.constructors[ctor] = methodID
	}
	if len(labels) > 0 || len(args) != len(ctor.Children) {
		synthetic := g.compiler.syntheticShapeName(cls.NameID, len(args), labels)
		stubID := g.compiler.GetNamedStaticMethodStub(ctor, synthetic, len(args), labels, loader.ClassScope(cls))
		if stubID == -1 {
			g.emitArgsDiscarded(args)
			g.emitUnresolved(cls.NameID)
			return
		}
		for _, a := range args {
			g.emitExpression(a)
		}
		g.e.InvokeStatic(stubID, len(args))
		return
	}
	for _, a := range args {
		g.emitExpression(a)
	}
	g.e.InvokeFactory(classID, methodID, len(args))
}

func (g *codegen) emitCascade(n *ast.Node) {
	slot := g.allocTemp()
	g.emitExpression(n.A)
	g.e.StoreLocal(slot)
	prev, hadPrev := g.cascadeSlots[n.A]
	g.cascadeSlots[n.A] = slot
	for _, section := range n.Children {
		g.emitExpression(section)
		g.e.Pop()
	}
	if hadPrev {
		g.cascadeSlots[n.A] = prev
	} else {
		delete(g.cascadeSlots, n.A)
	}
	g.e.LoadLocal(slot)
	g.freeTemp()
}

func (g *codegen) emitStringInterpolation(n *ast.Node) {
	if len(n.Children) == 0 {
		g.e.LoadConstant(g.compiler.Pool.String(""))
		return
	}
	for i, part := range n.Children {
		if part.Kind == ast.KindLiteralString {
			g.e.LoadConstant(g.compiler.Pool.String(part.StringValue))
		} else {
			g.emitExpression(part)
			toStringID := g.compiler.internName("toString")
			g.compiler.markInvokeSelector(toStringID, 0, nil)
			g.e.InvokeMethod("", 0, PackSelector(toStringID, SelectorMethod, 0))
		}
		if i > 0 {
			g.emitGenericInvoke("+", 1)
		}
	}
}

func (g *codegen) emitListLiteral(n *ast.Node) {
	if n.IsConst {
		if id, ok := g.constEval(n); ok {
			g.e.LoadConstant(id)
			return
		}
	}
	g.e.LoadLiteralNull() // receiver slot for the native list builder
	for _, el := range n.Children {
		g.emitExpression(el)
	}
	g.e.InvokeNative(nativeListLiteral, len(n.Children))
}

func (g *codegen) emitMapLiteral(n *ast.Node) {
	if n.IsConst {
		if id, ok := g.constEval(n); ok {
			g.e.LoadConstant(id)
			return
		}
	}
	g.e.LoadLiteralNull()
	for _, el := range n.Children {
		g.emitExpression(el)
	}
	g.e.InvokeNative(nativeMapLiteral, len(n.Children))
}

// ---- closures -------------------------------------------------------

// emitFunctionExpression synthesizes the closure class for a function
// expression, then allocates it with the current values (or boxes) of
// every captured variable (spec §4.11; spec §9 "Captured-variable
// boxing").
func (g *codegen) emitFunctionExpression(n *ast.Node) {
	captures, capturesThis := g.collectCaptures(n)
	fieldCount := len(captures)
	if capturesThis {
		fieldCount++
	}
	call := &ast.Node{
		Kind:     ast.KindMethod,
		NameID:   g.compiler.CallNameID,
		Location: n.Location,
		Children: n.Children,
		A:        n.A,
		Binding:  closureStub{captures: captures, capturesThis: capturesThis},
	}
	classID := g.compiler.NewClosureClass(call, fieldCount, g.scope)
	if capturesThis {
		g.emitThis()
	}
	for _, entry := range captures {
		g.pushCaptureRaw(entry)
	}
	g.e.Allocate(classID, fieldCount)
}

// pushCaptureRaw pushes a captured slot's raw content: the box itself
// for a by-reference capture, the current value for a by-value one.
func (g *codegen) pushCaptureRaw(entry *scope.Entry) {
	if slot, ok := g.captureSlots[entry]; ok {
		g.e.LoadLocal(slot)
		return
	}
	switch entry.Kind {
	case scope.EntryFormalParameter:
		g.e.LoadLocal(g.thisOffset() + entry.Index)
	default:
		g.e.LoadLocal(g.arity() + entry.Index)
	}
}

// collectCaptures walks a function expression's body, returning every
// outer local/parameter it references (in first-reference order) and
// whether it needs the enclosing receiver.
func (g *codegen) collectCaptures(fn *ast.Node) ([]*scope.Entry, bool) {
	declared := map[*scope.Entry]bool{}
	seen := map[*scope.Entry]bool{}
	var captures []*scope.Entry
	capturesThis := false

	for _, p := range fn.Children {
		if entry, ok := p.Binding.(*scope.Entry); ok {
			declared[entry] = true
		}
	}

	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case ast.KindThis, ast.KindSuper:
			capturesThis = true
		case ast.KindVariableDeclaration:
			if entry, ok := n.Binding.(*scope.Entry); ok {
				declared[entry] = true
			}
			walk(n.A)
			return
		case ast.KindIdentifier:
			entry, ok := n.Binding.(*scope.Entry)
			if !ok {
				return
			}
			switch entry.Kind {
			case scope.EntryFormalParameter, scope.EntryLocalDeclaration:
				if !declared[entry] && !seen[entry] {
					seen[entry] = true
					captures = append(captures, entry)
				}
			case scope.EntryMember:
				if m := entry.Member; m != nil && m.OwnerClass != nil && !m.IsStatic && m.Kind != ast.KindClass {
					capturesThis = true
				}
			}
			return
		case ast.KindFunctionExpression:
			for _, p := range n.Children {
				if entry, ok := p.Binding.(*scope.Entry); ok {
					declared[entry] = true
				}
			}
		case ast.KindMethod, ast.KindClass:
			return
		}
		walk(n.A)
		walk(n.B)
		walk(n.C)
		walk(n.D)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(fn.A)

	// Entries declared later in the body than their reference point
	// cannot occur (use before declaration), so a single filter pass
	// suffices to drop closure-internal locals collected before their
	// declaration statement was walked.
	kept := captures[:0]
	for _, entry := range captures {
		if !declared[entry] {
			kept = append(kept, entry)
		}
	}
	return kept, capturesThis
}
